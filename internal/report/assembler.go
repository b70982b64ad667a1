// Package report turns a validated request into a published capacity report.
package report

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"capacityreport/internal/classify"
	"capacityreport/internal/domain"
	"capacityreport/internal/ratio"
)

// Result is what a successful run produced.
type Result struct {
	URL             string
	RunID           int64
	Team            string
	Quarter         string
	PlannedFTE      AllocationVector
	PlannedSP       AllocationVector
	PlannedRatio    RatioVector
	FinalFTE        AllocationVector
	FinalSP         AllocationVector
	FinalRatio      RatioVector
	Diff            [domain.BucketCount]float64
	MissingEstimate []WorkItem
	MultiTagged     []WorkItem
	Summary         string
}

// Assembler runs the report pipeline. Summarizer and store are optional.
type Assembler struct {
	cfg        Config
	tracker    Tracker
	publisher  Publisher
	summarizer Summarizer
	store      RunStore
	now        func() time.Time
}

func NewAssembler(cfg Config, tracker Tracker, publisher Publisher, summarizer Summarizer, store RunStore) *Assembler {
	return &Assembler{
		cfg:        cfg,
		tracker:    tracker,
		publisher:  publisher,
		summarizer: summarizer,
		store:      store,
		now:        time.Now,
	}
}

// Create validates req, fetches and classifies the quarter's issues, computes
// the ratios and publishes the document. Nothing is published unless every
// earlier stage succeeded.
func (a *Assembler) Create(ctx context.Context, req Request) (Result, error) {
	log.Printf("report create team=%s quarter=%s requested_by=%s", req.Team, req.Quarter, req.RequestedBy)

	in, err := validate(a.cfg, req)
	if err != nil {
		log.Printf("report validation failed team=%s quarter=%s: %v", req.Team, req.Quarter, err)
		return Result{}, err
	}

	user, err := a.tracker.Authenticate(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrAuthentication) {
			err = fmt.Errorf("%w: %v", domain.ErrAuthentication, err)
		}
		return Result{}, err
	}
	log.Printf("report tracker authenticated user=%s", user)

	items, err := a.fetchAll(ctx, in)
	if err != nil {
		return Result{}, err
	}

	classified := classify.Classify(items)
	f, err := computeFigures(in.PlannedFTE, in.PlannedSP, classified.Totals())
	if err != nil {
		return Result{}, err
	}
	log.Printf("report classified team=%s quarter=%s counted=%d missing_estimate=%d multi_tagged=%d",
		in.Team, in.Quarter.Label, classified.Classified(), len(classified.MissingEstimate), len(classified.MultiTagged))

	doc := buildDocument(a.cfg, in.Team, in.Quarter.Label, f, classified.MissingEstimate, classified.MultiTagged)
	doc.Summary = a.summarize(ctx, in, f, classified)

	url, err := a.publisher.Publish(ctx, doc)
	if err != nil {
		return Result{}, fmt.Errorf("publishing report: %w", err)
	}
	log.Printf("report published team=%s quarter=%s url=%s", in.Team, in.Quarter.Label, url)

	res := Result{
		URL:             url,
		Team:            in.Team,
		Quarter:         in.Quarter.Label,
		PlannedFTE:      f.PlannedFTE,
		PlannedSP:       f.PlannedSP,
		PlannedRatio:    f.PlannedRatio,
		FinalFTE:        f.FinalFTE,
		FinalSP:         f.FinalSP,
		FinalRatio:      f.FinalRatio,
		Diff:            f.Diff,
		MissingEstimate: classified.MissingEstimate,
		MultiTagged:     classified.MultiTagged,
		Summary:         doc.Summary,
	}
	res.RunID = a.record(res, req.RequestedBy)
	return res, nil
}

func (a *Assembler) fetchAll(ctx context.Context, in validRequest) ([]WorkItem, error) {
	var all []WorkItem
	for _, kind := range domain.QueryKinds {
		q := domain.IssueQuery{
			Kind:    kind,
			Project: in.Team,
			From:    in.Quarter.Start,
			To:      in.Quarter.End,
		}
		items, err := a.tracker.Fetch(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("%w: %s query: %v", domain.ErrTrackerQuery, kind, err)
		}
		log.Printf("report fetched kind=%s items=%d", kind, len(items))
		all = append(all, items...)
	}
	return all, nil
}

func computeFigures(plannedFTE, plannedSP, finalSP AllocationVector) (figures, error) {
	plannedRatio, err := ratio.ComputeRatio(plannedFTE, plannedSP)
	if err != nil {
		return figures{}, fmt.Errorf("planned capacity distribution: %w", err)
	}
	finalRatio, err := ratio.ComputeRatio(finalSP, AllocationVector{})
	if err != nil {
		return figures{}, fmt.Errorf("final capacity distribution: %w", err)
	}
	return figures{
		PlannedFTE:   plannedFTE,
		PlannedSP:    plannedSP,
		PlannedRatio: plannedRatio,
		FinalFTE:     ratio.DeriveAllocation(finalRatio, plannedFTE.Sum()),
		FinalSP:      finalSP,
		FinalRatio:   finalRatio,
		Diff:         ratio.Diff(plannedRatio, finalRatio),
	}, nil
}

func (a *Assembler) summarize(ctx context.Context, in validRequest, f figures, c classify.Result) string {
	if a.summarizer == nil {
		return ""
	}
	text, err := a.summarizer.Summarize(ctx, Summary{
		Team:                 in.Team,
		Quarter:              in.Quarter.Label,
		MetricNames:          a.cfg.MetricNames,
		PlannedRatio:         f.PlannedRatio,
		FinalRatio:           f.FinalRatio,
		Diff:                 f.Diff,
		FinalSP:              f.FinalSP,
		MissingEstimateCount: len(c.MissingEstimate),
		MultiTaggedCount:     len(c.MultiTagged),
	})
	if err != nil {
		log.Printf("report summary skipped team=%s quarter=%s: %v", in.Team, in.Quarter.Label, err)
		return ""
	}
	return text
}

func (a *Assembler) record(res Result, requestedBy string) int64 {
	if a.store == nil {
		return 0
	}
	run := ReportRun{
		Team:                 res.Team,
		Quarter:              res.Quarter,
		URL:                  res.URL,
		PlannedFTE:           res.PlannedFTE,
		PlannedSP:            res.PlannedSP,
		PlannedRatio:         res.PlannedRatio,
		FinalSP:              res.FinalSP,
		FinalRatio:           res.FinalRatio,
		FinalFTE:             res.FinalFTE,
		MissingEstimateCount: len(res.MissingEstimate),
		MultiTaggedCount:     len(res.MultiTagged),
		RequestedBy:          requestedBy,
		CreatedAt:            a.now().UTC(),
	}
	excluded := make([]ExcludedItem, 0, len(res.MissingEstimate)+len(res.MultiTagged))
	for _, item := range res.MissingEstimate {
		excluded = append(excluded, excludedItem(item, domain.ExclusionMissingEstimate))
	}
	for _, item := range res.MultiTagged {
		excluded = append(excluded, excludedItem(item, domain.ExclusionMultiTagged))
	}
	id, err := a.store.InsertReportRun(run, excluded)
	if err != nil {
		log.Printf("report run not recorded team=%s quarter=%s: %v", res.Team, res.Quarter, err)
		return 0
	}
	return id
}

func excludedItem(item WorkItem, reason string) ExcludedItem {
	return ExcludedItem{Key: item.Key, Summary: item.Summary, Reason: reason, URL: item.URL}
}
