// Package schedule generates the last closed quarter's reports on a cron schedule.
package schedule

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const requestedBy = "scheduler"

// RunResult tracks what one scheduled run did per team.
type RunResult struct {
	Quarter   string
	Generated []string
	Skipped   []string
	Errors    []string
}

// RunScheduledReports builds a report for every configured scheduled team for
// the most recent quarter that ended at or before now. Teams that already
// have a report for that quarter are skipped.
func RunScheduledReports(ctx context.Context, cfg Config, creator ReportCreator, checker RunChecker, now time.Time) (RunResult, error) {
	var result RunResult
	if len(cfg.ScheduledReports) == 0 {
		return result, fmt.Errorf("no scheduled_reports configured")
	}
	quarter, ok := cfg.LastClosedQuarter(now)
	if !ok {
		return result, fmt.Errorf("no configured quarter has ended before %s", now.Format("2006-01-02"))
	}
	result.Quarter = quarter.Label
	log.Printf("scheduled reports quarter=%s teams=%d", quarter.Label, len(cfg.ScheduledReports))

	for _, sr := range cfg.ScheduledReports {
		if checker != nil {
			exists, err := checker.ReportRunExists(sr.Team, quarter.Label)
			if err != nil {
				log.Printf("scheduled reports history check team=%s: %v", sr.Team, err)
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", sr.Team, err))
				continue
			}
			if exists {
				log.Printf("scheduled reports skip team=%s quarter=%s: already generated", sr.Team, quarter.Label)
				result.Skipped = append(result.Skipped, sr.Team)
				continue
			}
		}

		res, err := creator.Create(ctx, ReportRequest{
			Team:        sr.Team,
			Quarter:     quarter.Label,
			PlannedFTE:  formatValues(sr.PlannedFTE),
			PlannedSP:   formatValues(sr.PlannedSP),
			RequestedBy: requestedBy,
		})
		if err != nil {
			log.Printf("scheduled reports error team=%s quarter=%s: %v", sr.Team, quarter.Label, err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", sr.Team, err))
			continue
		}
		result.Generated = append(result.Generated, fmt.Sprintf("%s %s", sr.Team, res.URL))
	}

	if len(result.Errors) > 0 && len(result.Generated) == 0 && len(result.Skipped) == 0 {
		return result, fmt.Errorf("all scheduled reports failed: %s", strings.Join(result.Errors, "; "))
	}
	return result, nil
}

func formatValues(vals []float64) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return out
}

// FormatRunSummary returns a human-readable summary of a RunResult.
func FormatRunSummary(result RunResult) string {
	if result.Quarter == "" {
		if len(result.Errors) > 0 {
			return fmt.Sprintf("Error generating scheduled reports:\n%s", strings.Join(result.Errors, "\n"))
		}
		return "No quarter to report on."
	}

	var lines []string
	if len(result.Generated) == 0 {
		msg := fmt.Sprintf("No new capacity reports for %s", result.Quarter)
		if len(result.Skipped) > 0 {
			msg += fmt.Sprintf(" (%d already generated)", len(result.Skipped))
		}
		lines = append(lines, msg+".")
	} else {
		lines = append(lines, fmt.Sprintf("Generated %d capacity report(s) for %s:", len(result.Generated), result.Quarter))
		for _, g := range result.Generated {
			lines = append(lines, "• "+g)
		}
		if len(result.Skipped) > 0 {
			lines = append(lines, fmt.Sprintf("Skipped (already generated): %s", strings.Join(result.Skipped, ", ")))
		}
	}
	if len(result.Errors) > 0 {
		lines = append(lines, fmt.Sprintf("Errors:\n%s", strings.Join(result.Errors, "\n")))
	}
	return strings.Join(lines, "\n")
}

// StartReportScheduler starts a cron-based loop that generates scheduled
// reports and posts a summary through notifier. The schedule is a standard
// 5-field cron expression, for example "0 8 2 1,4,7,10 *" for the second day
// of every quarter at 8am. It returns false when scheduling is disabled.
func StartReportScheduler(ctx context.Context, cfg Config, creator ReportCreator, checker RunChecker, notifier Notifier) bool {
	spec := strings.TrimSpace(cfg.ReportSchedule)
	if spec == "" {
		log.Println("Scheduled reports disabled (report_schedule not set)")
		return false
	}
	if len(cfg.ScheduledReports) == 0 {
		log.Println("Scheduled reports disabled: scheduled_reports is empty")
		return false
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(spec)
	if err != nil {
		log.Printf("Invalid report_schedule '%s': %v; scheduled reports disabled", spec, err)
		return false
	}
	log.Printf("Scheduled reports enabled (cron: %s) teams=%d", spec, len(cfg.ScheduledReports))

	go func() {
		for {
			now := time.Now().In(cfg.Location)
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next scheduled report run at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				log.Println("Report scheduler stopped")
				return
			case <-timer.C:
			}

			result, runErr := RunScheduledReports(ctx, cfg, creator, checker, time.Now().In(cfg.Location))
			if runErr != nil {
				log.Printf("Scheduled reports error: %v", runErr)
			}
			summary := FormatRunSummary(result)
			log.Printf("Scheduled reports complete: %s", summary)

			if notifier != nil {
				if err := notifier.Notify(summary); err != nil {
					log.Printf("Scheduled reports post error: %v", err)
				}
			}
		}
	}()
	return true
}
