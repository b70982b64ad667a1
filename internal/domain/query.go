package domain

import "time"

type QueryKind int

const (
	QueryFeatureWork QueryKind = iota
	QueryReleaseOperations
	QueryMaintenance
	QueryStandalone
	QueryMultiTagged
	QueryMissingEstimate
)

// QueryKinds lists the bucket-defining queries in the order a report run executes them.
var QueryKinds = []QueryKind{
	QueryMissingEstimate,
	QueryMultiTagged,
	QueryFeatureWork,
	QueryReleaseOperations,
	QueryMaintenance,
	QueryStandalone,
}

func (k QueryKind) String() string {
	switch k {
	case QueryFeatureWork:
		return "feature-work"
	case QueryReleaseOperations:
		return "release-operations"
	case QueryMaintenance:
		return "maintenance"
	case QueryStandalone:
		return "standalone"
	case QueryMultiTagged:
		return "multi-tagged"
	case QueryMissingEstimate:
		return "missing-estimate"
	default:
		return "unknown"
	}
}

// IssueQuery selects the issues of one project resolved in [From, To).
type IssueQuery struct {
	Kind    QueryKind
	Project string
	From    time.Time
	To      time.Time
}

type QuarterRange struct {
	Label string
	Start time.Time
	End   time.Time
}

func (q QuarterRange) Contains(t time.Time) bool {
	return !t.Before(q.Start) && t.Before(q.End)
}

type ReportRun struct {
	ID                   int64
	Team                 string
	Quarter              string
	URL                  string
	PlannedFTE           AllocationVector
	PlannedSP            AllocationVector
	PlannedRatio         RatioVector
	FinalSP              AllocationVector
	FinalRatio           RatioVector
	FinalFTE             AllocationVector
	MissingEstimateCount int
	MultiTaggedCount     int
	RequestedBy          string
	CreatedAt            time.Time
}

// Exclusion reasons recorded for items left out of every bucket.
const (
	ExclusionMissingEstimate = "missing-estimate"
	ExclusionMultiTagged     = "multi-tagged"
)

// ExcludedItem is an issue a report run could not count.
type ExcludedItem struct {
	RunID   int64
	Key     string
	Summary string
	Reason  string
	URL     string
}
