package report

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"capacityreport/internal/config"
	"capacityreport/internal/domain"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg, err := config.Prepare(config.Config{
		JiraURL:   "https://issues.example.com",
		JiraToken: "pat-test",
		Teams:     []string{"RHELBLD", "CLOUDX"},
		Quarters: map[string][2]string{
			"CY22Q1": {"2022-01-01", "2022-04-01"},
			"CY22Q2": {"2022-04-01", "2022-07-01"},
		},
	})
	if err != nil {
		t.Fatalf("prepare config: %v", err)
	}
	return cfg
}

type fakeTracker struct {
	authErr   error
	fetchErr  error
	byKind    map[domain.QueryKind][]WorkItem
	authCalls int
	queries   []domain.IssueQuery
}

func (f *fakeTracker) Authenticate(context.Context) (string, error) {
	f.authCalls++
	if f.authErr != nil {
		return "", f.authErr
	}
	return "Report Bot", nil
}

func (f *fakeTracker) Fetch(_ context.Context, q domain.IssueQuery) ([]WorkItem, error) {
	f.queries = append(f.queries, q)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.byKind[q.Kind], nil
}

type fakePublisher struct {
	docs []Document
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, doc Document) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.docs = append(f.docs, doc)
	return "https://docs.example.com/d/1", nil
}

type fakeSummarizer struct {
	got Summary
	err error
}

func (f *fakeSummarizer) Summarize(_ context.Context, s Summary) (string, error) {
	f.got = s
	if f.err != nil {
		return "", f.err
	}
	return "Maintenance took more than planned.", nil
}

type fakeStore struct {
	runs     []ReportRun
	excluded []ExcludedItem
	err      error
}

func (f *fakeStore) InsertReportRun(run ReportRun, excluded []ExcludedItem) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.runs = append(f.runs, run)
	f.excluded = append(f.excluded, excluded...)
	return int64(len(f.runs)), nil
}

func item(key string, sp *float64, epic bool, workTypes ...string) WorkItem {
	return WorkItem{
		Key:         key,
		Summary:     "Issue " + key,
		Status:      "Closed",
		Created:     time.Date(2022, 2, 3, 4, 5, 6, 0, time.UTC),
		Reporter:    "Reporter",
		WorkTypes:   workTypes,
		HasEpicLink: epic,
		Estimate:    sp,
		URL:         "https://issues.example.com/browse/" + key,
	}
}

func goodRequest() Request {
	return Request{
		Team:        "RHELBLD",
		Quarter:     "CY22Q1",
		PlannedFTE:  []string{"1", "2", "3", "4"},
		PlannedSP:   []string{"10", "10", "10", "10"},
		RequestedBy: "U123",
	}
}

func populatedTracker() *fakeTracker {
	feature := item("RHELBLD-1", domain.Estimate(5), true)
	return &fakeTracker{byKind: map[domain.QueryKind][]WorkItem{
		domain.QueryMissingEstimate: {item("RHELBLD-9", nil, false)},
		domain.QueryMultiTagged: {
			item("RHELBLD-8", domain.Estimate(3), false, domain.WorkTypeReleaseOperations, domain.WorkTypeMaintenance),
		},
		domain.QueryFeatureWork:       {feature},
		domain.QueryReleaseOperations: {item("RHELBLD-2", domain.Estimate(2), false, domain.WorkTypeReleaseOperations)},
		domain.QueryMaintenance: {
			item("RHELBLD-3", domain.Estimate(2), false, domain.WorkTypeMaintenance),
			feature,
		},
		domain.QueryStandalone: {item("RHELBLD-4", domain.Estimate(1), false)},
	}}
}

func TestCreateHappyPath(t *testing.T) {
	cfg := testConfig(t)
	tracker := populatedTracker()
	publisher := &fakePublisher{}
	summarizer := &fakeSummarizer{}
	store := &fakeStore{}
	a := NewAssembler(cfg, tracker, publisher, summarizer, store)

	res, err := a.Create(context.Background(), goodRequest())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if res.URL != "https://docs.example.com/d/1" {
		t.Fatalf("unexpected url: %q", res.URL)
	}
	if len(tracker.queries) != len(domain.QueryKinds) {
		t.Fatalf("expected %d tracker queries, got %d", len(domain.QueryKinds), len(tracker.queries))
	}
	q := tracker.queries[0]
	if q.Project != "RHELBLD" || !q.From.Equal(time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)) ||
		!q.To.Equal(time.Date(2022, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected query: %+v", q)
	}

	// The feature item appears in two query results but is counted once.
	if res.FinalSP != (AllocationVector{5, 2, 2, 1}) {
		t.Fatalf("unexpected final SP: %v", res.FinalSP)
	}
	if res.PlannedRatio != (RatioVector{0.1, 0.2, 0.3, 0.4}) {
		t.Fatalf("unexpected planned ratio: %v", res.PlannedRatio)
	}
	if res.FinalRatio != (RatioVector{0.5, 0.2, 0.2, 0.1}) {
		t.Fatalf("unexpected final ratio: %v", res.FinalRatio)
	}
	if res.Diff != [4]float64{0.4, 0, -0.1, -0.3} {
		t.Fatalf("unexpected diff: %v", res.Diff)
	}
	if got := res.FinalFTE.Sum(); got < 9.999 || got > 10.001 {
		t.Fatalf("final FTE should preserve planned total 10, got %v", got)
	}
	if len(res.MissingEstimate) != 1 || len(res.MultiTagged) != 1 {
		t.Fatalf("unexpected exclusions: missing=%d multi=%d", len(res.MissingEstimate), len(res.MultiTagged))
	}

	if len(publisher.docs) != 1 {
		t.Fatalf("expected one published document, got %d", len(publisher.docs))
	}
	doc := publisher.docs[0]
	if doc.Title != "CY22Q1 RHELBLD" {
		t.Fatalf("unexpected title: %q", doc.Title)
	}
	if len(doc.Sheets) != 3 {
		t.Fatalf("expected report and two error sheets, got %d", len(doc.Sheets))
	}
	if doc.Summary != "Maintenance took more than planned." {
		t.Fatalf("unexpected summary: %q", doc.Summary)
	}
	if summarizer.got.MissingEstimateCount != 1 || summarizer.got.Quarter != "CY22Q1" {
		t.Fatalf("unexpected summarizer input: %+v", summarizer.got)
	}

	if len(store.runs) != 1 || res.RunID != 1 {
		t.Fatalf("expected run to be recorded, runs=%d id=%d", len(store.runs), res.RunID)
	}
	if store.runs[0].RequestedBy != "U123" || store.runs[0].MultiTaggedCount != 1 {
		t.Fatalf("unexpected recorded run: %+v", store.runs[0])
	}
	if len(store.excluded) != 2 || store.excluded[0].Reason != domain.ExclusionMissingEstimate {
		t.Fatalf("unexpected excluded items: %+v", store.excluded)
	}
}

func TestCreateInvalidTeamMakesNoTrackerCall(t *testing.T) {
	tracker := populatedTracker()
	publisher := &fakePublisher{}
	a := NewAssembler(testConfig(t), tracker, publisher, nil, nil)

	req := goodRequest()
	req.Team = "UNKNOWN"
	_, err := a.Create(context.Background(), req)
	if !errors.Is(err, domain.ErrInvalidTeam) {
		t.Fatalf("expected ErrInvalidTeam, got %v", err)
	}
	if !strings.Contains(err.Error(), "RHELBLD, CLOUDX") {
		t.Fatalf("expected valid teams in message, got %q", err.Error())
	}
	if tracker.authCalls != 0 || len(tracker.queries) != 0 {
		t.Fatalf("tracker must not be called, auth=%d queries=%d", tracker.authCalls, len(tracker.queries))
	}
	if len(publisher.docs) != 0 {
		t.Fatal("nothing must be published")
	}
}

func TestCreateValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Request)
		want    error
		message string
	}{
		{"quarter", func(r *Request) { r.Quarter = "CY30Q9" }, domain.ErrInvalidQuarter, "CY22Q2, CY22Q1"},
		{"non numeric fte", func(r *Request) { r.PlannedFTE[2] = "three" }, domain.ErrInvalidNumericInput, "place 3"},
		{"negative sp", func(r *Request) { r.PlannedSP[0] = "-1" }, domain.ErrInvalidNumericInput, "planned SP on place 1"},
		{"nan", func(r *Request) { r.PlannedSP[1] = "NaN" }, domain.ErrInvalidNumericInput, "place 2"},
		{"short vector", func(r *Request) { r.PlannedFTE = r.PlannedFTE[:3] }, domain.ErrInvalidNumericInput, "got 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := populatedTracker()
			req := goodRequest()
			tt.mutate(&req)
			_, err := NewAssembler(testConfig(t), tracker, &fakePublisher{}, nil, nil).Create(context.Background(), req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Fatalf("expected %q in message, got %q", tt.message, err.Error())
			}
			if tracker.authCalls != 0 {
				t.Fatal("tracker must not be called on validation failure")
			}
		})
	}
}

func TestCreateAuthenticationFailure(t *testing.T) {
	tracker := populatedTracker()
	tracker.authErr = errors.New("connection refused")
	publisher := &fakePublisher{}

	_, err := NewAssembler(testConfig(t), tracker, publisher, nil, nil).Create(context.Background(), goodRequest())
	if !errors.Is(err, domain.ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
	if len(tracker.queries) != 0 || len(publisher.docs) != 0 {
		t.Fatal("no queries or publishing after failed authentication")
	}
}

func TestCreateTrackerQueryFailure(t *testing.T) {
	tracker := populatedTracker()
	tracker.fetchErr = errors.New("Jira API returned 500")
	publisher := &fakePublisher{}

	_, err := NewAssembler(testConfig(t), tracker, publisher, nil, nil).Create(context.Background(), goodRequest())
	if !errors.Is(err, domain.ErrTrackerQuery) {
		t.Fatalf("expected ErrTrackerQuery, got %v", err)
	}
	if len(tracker.queries) != 1 {
		t.Fatalf("pipeline should stop at the first failed query, got %d queries", len(tracker.queries))
	}
	if len(publisher.docs) != 0 {
		t.Fatal("nothing must be published")
	}
}

func TestCreateNoEstimatesIsDivisionByZero(t *testing.T) {
	tracker := &fakeTracker{byKind: map[domain.QueryKind][]WorkItem{
		domain.QueryMissingEstimate: {item("RHELBLD-1", nil, false)},
	}}
	publisher := &fakePublisher{}

	_, err := NewAssembler(testConfig(t), tracker, publisher, nil, nil).Create(context.Background(), goodRequest())
	if !errors.Is(err, domain.ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}
	if len(publisher.docs) != 0 {
		t.Fatal("nothing must be published")
	}
}

func TestCreateZeroPlannedFTEFallsBackToSP(t *testing.T) {
	req := goodRequest()
	req.PlannedFTE = []string{"0", "0", "0", "0"}

	res, err := NewAssembler(testConfig(t), populatedTracker(), &fakePublisher{}, nil, nil).Create(context.Background(), req)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if res.PlannedRatio != (RatioVector{0.25, 0.25, 0.25, 0.25}) {
		t.Fatalf("unexpected planned ratio: %v", res.PlannedRatio)
	}
	if res.FinalFTE.Sum() != 0 {
		t.Fatalf("final FTE should be zero with no planned FTE, got %v", res.FinalFTE)
	}
}

func TestCreateSurvivesSummaryAndStoreFailures(t *testing.T) {
	publisher := &fakePublisher{}
	a := NewAssembler(testConfig(t), populatedTracker(), publisher,
		&fakeSummarizer{err: errors.New("rate limited")}, &fakeStore{err: errors.New("disk full")})

	res, err := a.Create(context.Background(), goodRequest())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if res.Summary != "" || res.RunID != 0 {
		t.Fatalf("expected no summary and no run id, got %q %d", res.Summary, res.RunID)
	}
	if len(publisher.docs) != 1 {
		t.Fatal("report should still be published")
	}
}

func TestCreatePublisherFailure(t *testing.T) {
	store := &fakeStore{}
	a := NewAssembler(testConfig(t), populatedTracker(), &fakePublisher{err: errors.New("quota exceeded")}, nil, store)

	_, err := a.Create(context.Background(), goodRequest())
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected publisher error, got %v", err)
	}
	if len(store.runs) != 0 {
		t.Fatal("failed runs must not be recorded")
	}
}
