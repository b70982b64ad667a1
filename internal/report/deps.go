package report

import (
	"context"

	"capacityreport/internal/config"
	"capacityreport/internal/domain"
)

type Config = config.Config
type WorkItem = domain.WorkItem
type AllocationVector = domain.AllocationVector
type RatioVector = domain.RatioVector
type ReportRun = domain.ReportRun
type ExcludedItem = domain.ExcludedItem

// Tracker is the issue tracker a report is built from.
type Tracker interface {
	Authenticate(ctx context.Context) (string, error)
	Fetch(ctx context.Context, q domain.IssueQuery) ([]WorkItem, error)
}

// Publisher turns a rendered document into something a reader can open.
type Publisher interface {
	Publish(ctx context.Context, doc Document) (string, error)
}

// Summarizer writes an optional narrative paragraph for a report.
type Summarizer interface {
	Summarize(ctx context.Context, s Summary) (string, error)
}

// RunStore records generated reports.
type RunStore interface {
	InsertReportRun(run ReportRun, excluded []ExcludedItem) (int64, error)
}
