package slackbot

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"capacityreport/internal/domain"
	"capacityreport/internal/report"
)

const capacityReportUsage = "Usage: `/capacity-report TEAM QUARTER FTE FTE FTE FTE SP SP SP SP`\n" +
	">*Example:* `/capacity-report RHELBLD CY22Q1 2 1 1 0.5 40 20 20 10`\n" +
	">Values are given in bucket order: work packages, release operations, maintenance, standalone."

// parseReportArgs splits the slash command text into a report request. Values
// may be separated by spaces or commas; numbers are validated by the pipeline.
func parseReportArgs(text, userID string) (ReportRequest, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t' || r == '\n'
	})
	want := 2 + 2*domain.BucketCount
	if len(fields) != want {
		return ReportRequest{}, fmt.Errorf("expected %d arguments, got %d", want, len(fields))
	}
	return ReportRequest{
		Team:        fields[0],
		Quarter:     fields[1],
		PlannedFTE:  fields[2 : 2+domain.BucketCount],
		PlannedSP:   fields[2+domain.BucketCount:],
		RequestedBy: userID,
	}, nil
}

// userMessage turns a pipeline error into text for the requester.
func userMessage(req ReportRequest, err error) string {
	var verr *report.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Message
	case errors.Is(err, domain.ErrAuthentication):
		return "Jira rejected the configured token. Ask an admin to check `jira_token`."
	case errors.Is(err, domain.ErrTrackerQuery):
		return fmt.Sprintf("Jira query failed: %v", err)
	case errors.Is(err, domain.ErrDivisionByZero):
		return fmt.Sprintf("No estimated issues were resolved in %s for %s, so there is no actual distribution to report.",
			req.Quarter, req.Team)
	default:
		return fmt.Sprintf("Error generating report: %v", err)
	}
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v*100, 'f', 0, 64) + "%"
}

func formatSignedPoints(v float64) string {
	pp := math.Round(v * 100)
	switch {
	case pp == 0:
		return "±0pp"
	case pp > 0:
		return "+" + strconv.FormatFloat(pp, 'f', 0, 64) + "pp"
	default:
		return strconv.FormatFloat(pp, 'f', 0, 64) + "pp"
	}
}

func metricName(cfg Config, i int) string {
	if i < len(cfg.MetricNames) && cfg.MetricNames[i] != "" {
		return cfg.MetricNames[i]
	}
	return domain.Buckets[i].String()
}

// formatReportResult is the channel message announcing a finished report.
func formatReportResult(cfg Config, res ReportResult) string {
	lines := []string{
		fmt.Sprintf("*Capacity report %s %s*: %s", res.Quarter, res.Team, res.URL),
		"",
	}
	for i := range domain.Buckets {
		diff := formatSignedPoints(res.Diff[i])
		lines = append(lines, fmt.Sprintf("• %s: planned %s, actual %s (%s, %s SP)",
			metricName(cfg, i), formatPercent(res.PlannedRatio[i]), formatPercent(res.FinalRatio[i]),
			diff, strconv.FormatFloat(res.FinalSP[i], 'f', -1, 64)))
	}
	if n := len(res.MissingEstimate); n > 0 {
		lines = append(lines, fmt.Sprintf("%d issue(s) without story points were left out.", n))
	}
	if n := len(res.MultiTagged); n > 0 {
		lines = append(lines, fmt.Sprintf("%d issue(s) with more than one EXD-WorkType were left out.", n))
	}
	if s := strings.TrimSpace(res.Summary); s != "" {
		lines = append(lines, "", ">"+strings.ReplaceAll(s, "\n", "\n>"))
	}
	return strings.Join(lines, "\n")
}

// formatOptions lists the teams, quarters and bucket names a report accepts.
func formatOptions(cfg Config) string {
	lines := []string{"*Teams*"}
	for _, team := range cfg.Teams {
		lines = append(lines, "• `"+team+"`")
	}
	lines = append(lines, "", "*Quarters*")
	for _, label := range cfg.QuarterLabels() {
		q, _ := cfg.Quarter(label)
		lines = append(lines, fmt.Sprintf("• `%s` %s to %s", label,
			q.Start.Format("2006-01-02"), q.End.AddDate(0, 0, -1).Format("2006-01-02")))
	}
	lines = append(lines, "", "*Buckets* (argument order)")
	for i := range domain.Buckets {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, metricName(cfg, i)))
	}
	return strings.Join(lines, "\n")
}

func formatHistory(cfg Config, runs []domain.ReportRun) string {
	if len(runs) == 0 {
		return "No capacity reports have been generated yet."
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	lines := []string{"*Recent capacity reports*"}
	for _, run := range runs {
		by := run.RequestedBy
		if by == "" {
			by = "unknown"
		} else if isLikelySlackID(by) {
			by = "<@" + by + ">"
		}
		lines = append(lines, fmt.Sprintf("• %s %s: %s (by %s, %s), %d without SP, %d multi-tagged",
			run.Quarter, run.Team, run.URL, by,
			run.CreatedAt.In(loc).Format("2006-01-02 15:04"),
			run.MissingEstimateCount, run.MultiTaggedCount))
	}
	return strings.Join(lines, "\n")
}
