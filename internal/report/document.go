package report

import (
	"fmt"
	"time"

	"capacityreport/internal/domain"
	"capacityreport/internal/ratio"
)

const (
	ReportSheetTitle          = "Report"
	MissingEstimateSheetTitle = "Issues without story points"
	MultiTaggedSheetTitle     = "Issues with multiple EXD-WorkType"

	createdLayout = "2006-01-02 15:04:05"
)

type ChartType string

const (
	ChartPie    ChartType = "PIE"
	ChartColumn ChartType = "COLUMN"
)

// Document is a publisher-neutral rendition of one report.
type Document struct {
	Title   string
	Sheets  []Sheet
	Charts  []Chart
	Summary string
}

// Sheet is a grid of values plus presentation hints in A1 notation.
// Cell values are string, float64 or Link.
type Sheet struct {
	Title        string
	Rows         [][]any
	Merges       []string
	Styles       []Style
	ColumnWidths []ColumnWidth
}

// Link is a cell that points at a URL.
type Link struct {
	URL  string
	Text string
}

// Style names a palette color; the publisher resolves it.
type Style struct {
	Range      string
	Background string
	Bold       bool
	FontSize   int
	Bordered   bool
	Centered   bool
}

type ColumnWidth struct {
	Columns string
	Pixels  int
}

// Chart plots Series against Domain, both ranges on Sheet.
type Chart struct {
	Title  string
	Type   ChartType
	Sheet  string
	Domain string
	Series []string
}

// Summary is the computed content a narrative is written from.
type Summary struct {
	Team                 string
	Quarter              string
	MetricNames          []string
	PlannedRatio         RatioVector
	FinalRatio           RatioVector
	Diff                 [domain.BucketCount]float64
	FinalSP              AllocationVector
	MissingEstimateCount int
	MultiTaggedCount     int
}

// figures holds every computed vector of a report run.
type figures struct {
	PlannedFTE   AllocationVector
	PlannedSP    AllocationVector
	PlannedRatio RatioVector
	FinalFTE     AllocationVector
	FinalSP      AllocationVector
	FinalRatio   RatioVector
	Diff         [domain.BucketCount]float64
}

func documentTitle(quarter, team string) string {
	return quarter + " " + team
}

// buildDocument lays out the report table, the error sheets that have rows,
// and the charts.
func buildDocument(cfg Config, team, quarter string, f figures, missing, multi []WorkItem) Document {
	doc := Document{
		Title:  documentTitle(quarter, team),
		Sheets: []Sheet{reportSheet(cfg, f)},
		Charts: reportCharts(),
	}
	if len(missing) > 0 {
		doc.Sheets = append(doc.Sheets, issueSheet(MissingEstimateSheetTitle, missing))
	}
	if len(multi) > 0 {
		doc.Sheets = append(doc.Sheets, issueSheet(MultiTaggedSheetTitle, multi))
	}
	return doc
}

func reportSheet(cfg Config, f figures) Sheet {
	header := []any{
		"Total Available capacity",
		f.PlannedFTE.Sum(),
		"Planned FTEs",
		"Planned SPs",
		"Planned capacity distribution",
		"Final FTEs",
		"Final SPs",
		"Final capacity distribution",
		"Diff planned vs real",
	}
	rows := [][]any{header}

	groups := [domain.BucketCount]string{"Change Portfolio", "Business As Usual", "", ""}
	for i := range domain.Buckets {
		rows = append(rows, []any{
			groups[i],
			metricName(cfg, i),
			f.PlannedFTE[i],
			f.PlannedSP[i],
			f.PlannedRatio[i],
			f.FinalFTE[i],
			f.FinalSP[i],
			f.FinalRatio[i],
			f.Diff[i],
		})
	}

	var diffSum float64
	for _, d := range f.Diff {
		diffSum += d
	}
	rows = append(rows,
		[]any{
			"", "Total",
			f.PlannedFTE.Sum(),
			f.PlannedSP.Sum(),
			ratio.Round2(f.PlannedRatio.Sum()),
			f.FinalFTE.Sum(),
			f.FinalSP.Sum(),
			ratio.Round2(f.FinalRatio.Sum()),
			ratio.Round2(diffSum),
		},
		[]any{
			"", "Source",
			"User input",
			"User input",
			"Computed from planned FTEs, or planned SPs when no FTEs are given",
			"Same as planned total",
			"Story points",
			"Computed from final SPs",
			"Final minus planned",
		},
	)

	return Sheet{
		Title:  ReportSheetTitle,
		Rows:   rows,
		Merges: []string{"A3:A5"},
		Styles: []Style{
			{Range: "A1:I7", Bordered: true, Centered: true},
			{Range: "A1:A7", Background: "dark_grey", Bold: true, FontSize: 13},
			{Range: "B2:B7", Background: "dark_grey", Bold: true, FontSize: 13},
			{Range: "C1:I1", Background: "dark_grey", Bold: true, FontSize: 13},
			{Range: "B1", Background: "light_orange"},
			{Range: "C2:D7", Background: "light_orange"},
			{Range: "E2:E7", Background: "orange"},
			{Range: "F2:H5", Background: "light_grey"},
			{Range: "F6:H7", Background: "grey"},
			{Range: "I2:I5", Background: "light_red"},
			{Range: "I6:I7", Background: "red"},
		},
		ColumnWidths: []ColumnWidth{{Columns: "A:I", Pixels: 245}},
	}
}

func metricName(cfg Config, i int) string {
	if i < len(cfg.MetricNames) && cfg.MetricNames[i] != "" {
		return cfg.MetricNames[i]
	}
	return domain.Buckets[i].String()
}

func issueSheet(title string, items []WorkItem) Sheet {
	rows := [][]any{{"Key", "Issue name", "Status", "Created (GMT+0)", "Reporter", "Assignee"}}
	for _, item := range items {
		var key any = item.Key
		if item.URL != "" {
			key = Link{URL: item.URL, Text: item.Key}
		}
		rows = append(rows, []any{
			key,
			item.Summary,
			item.Status,
			formatCreated(item.Created),
			item.Reporter,
			item.Assignee,
		})
	}
	return Sheet{
		Title: title,
		Rows:  rows,
		Styles: []Style{
			{Range: fmt.Sprintf("A1:F%d", len(rows)), Bordered: true, Centered: true},
			{Range: "A1:F1", Background: "dark_grey", Bold: true, FontSize: 13},
		},
		ColumnWidths: []ColumnWidth{
			{Columns: "A:F", Pixels: 200},
			{Columns: "B", Pixels: 700},
		},
	}
}

func formatCreated(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(createdLayout)
}

func reportCharts() []Chart {
	return []Chart{
		{Title: "Planned Capacity", Type: ChartPie, Sheet: ReportSheetTitle, Domain: "B2:B5", Series: []string{"E2:E5"}},
		{Title: "Actual Capacity", Type: ChartPie, Sheet: ReportSheetTitle, Domain: "B2:B5", Series: []string{"H2:H5"}},
		{Title: "Planned vs Actual Capacity", Type: ChartColumn, Sheet: ReportSheetTitle, Domain: "B2:B5", Series: []string{"E2:E5", "H2:H5"}},
	}
}
