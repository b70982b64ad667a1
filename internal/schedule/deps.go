package schedule

import (
	"context"

	"capacityreport/internal/config"
	"capacityreport/internal/report"
)

type Config = config.Config
type ReportRequest = report.Request
type ReportResult = report.Result

// ReportCreator runs the report pipeline for one request.
type ReportCreator interface {
	Create(ctx context.Context, req ReportRequest) (ReportResult, error)
}

// RunChecker reports whether a team already has a report for a quarter.
type RunChecker interface {
	ReportRunExists(team, quarter string) (bool, error)
}

// Notifier delivers the summary of a scheduled run.
type Notifier interface {
	Notify(text string) error
}
