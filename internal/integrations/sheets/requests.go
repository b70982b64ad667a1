package sheets

import (
	"fmt"
	"strings"

	"capacityreport/internal/report"

	"github.com/lucasb-eyer/go-colorful"
	gsheets "google.golang.org/api/sheets/v4"
)

const (
	valueInputOption = "USER_ENTERED"
	minGridRows      = 100
	gridColumns      = 26
	chartAnchorRow   = 9
	chartColumnStep  = 3
)

// Palette resolves the color names a Document uses.
type Palette func(name string) (colorful.Color, bool)

// sheetID is the id assigned to the i-th document sheet. The first sheet of
// a new spreadsheet already exists with id 0 and is renamed.
func sheetID(i int) int64 {
	return int64(i)
}

// structureRequests renames the default sheet and adds the others.
func structureRequests(doc report.Document) []*gsheets.Request {
	var reqs []*gsheets.Request
	for i, sh := range doc.Sheets {
		if i == 0 {
			reqs = append(reqs, &gsheets.Request{
				UpdateSheetProperties: &gsheets.UpdateSheetPropertiesRequest{
					Properties: &gsheets.SheetProperties{SheetId: sheetID(i), Title: sh.Title},
					Fields:     "title",
				},
			})
			continue
		}
		rows := len(sh.Rows) + 1
		if rows < minGridRows {
			rows = minGridRows
		}
		reqs = append(reqs, &gsheets.Request{
			AddSheet: &gsheets.AddSheetRequest{
				Properties: &gsheets.SheetProperties{
					SheetId: sheetID(i),
					Title:   sh.Title,
					Index:   int64(i),
					GridProperties: &gsheets.GridProperties{
						RowCount:    int64(rows),
						ColumnCount: gridColumns,
					},
				},
			},
		})
	}
	return reqs
}

// valueRanges returns one USER_ENTERED block per sheet anchored at A1.
func valueRanges(doc report.Document) []*gsheets.ValueRange {
	out := make([]*gsheets.ValueRange, 0, len(doc.Sheets))
	for _, sh := range doc.Sheets {
		values := make([][]interface{}, 0, len(sh.Rows))
		for _, row := range sh.Rows {
			line := make([]interface{}, 0, len(row))
			for _, cell := range row {
				line = append(line, cellValue(cell))
			}
			values = append(values, line)
		}
		out = append(out, &gsheets.ValueRange{
			Range:          quoteSheet(sh.Title) + "!A1",
			MajorDimension: "ROWS",
			Values:         values,
		})
	}
	return out
}

func cellValue(v any) interface{} {
	switch x := v.(type) {
	case nil:
		return ""
	case report.Link:
		if x.URL == "" {
			return x.Text
		}
		return fmt.Sprintf(`=HYPERLINK(%s, %s)`, formulaString(x.URL), formulaString(x.Text))
	default:
		return x
	}
}

func formulaString(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// formatRequests merges, styles, sizes columns and adds charts.
func formatRequests(doc report.Document, palette Palette) ([]*gsheets.Request, error) {
	ids := make(map[string]int64, len(doc.Sheets))
	var reqs []*gsheets.Request
	for i, sh := range doc.Sheets {
		id := sheetID(i)
		ids[sh.Title] = id

		for _, m := range sh.Merges {
			gr, err := gridRange(id, m)
			if err != nil {
				return nil, err
			}
			reqs = append(reqs, &gsheets.Request{
				MergeCells: &gsheets.MergeCellsRequest{Range: gr, MergeType: "MERGE_ALL"},
			})
		}

		for _, st := range sh.Styles {
			styleReqs, err := styleRequests(id, st, palette)
			if err != nil {
				return nil, err
			}
			reqs = append(reqs, styleReqs...)
		}

		for _, w := range sh.ColumnWidths {
			cr, err := report.ParseA1(w.Columns)
			if err != nil {
				return nil, err
			}
			reqs = append(reqs, &gsheets.Request{
				UpdateDimensionProperties: &gsheets.UpdateDimensionPropertiesRequest{
					Range: &gsheets.DimensionRange{
						SheetId:    id,
						Dimension:  "COLUMNS",
						StartIndex: int64(cr.StartCol),
						EndIndex:   int64(cr.EndCol),
					},
					Properties: &gsheets.DimensionProperties{PixelSize: int64(w.Pixels)},
					Fields:     "pixelSize",
				},
			})
		}
	}

	for i, ch := range doc.Charts {
		id, ok := ids[ch.Sheet]
		if !ok {
			return nil, fmt.Errorf("chart %q references unknown sheet %q", ch.Title, ch.Sheet)
		}
		req, err := chartRequest(id, i, ch)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func styleRequests(id int64, st report.Style, palette Palette) ([]*gsheets.Request, error) {
	gr, err := gridRange(id, st.Range)
	if err != nil {
		return nil, err
	}
	var reqs []*gsheets.Request

	format := &gsheets.CellFormat{}
	var fields []string
	if st.Background != "" {
		col, ok := palette(st.Background)
		if !ok {
			return nil, fmt.Errorf("style %s: unknown color %q", st.Range, st.Background)
		}
		format.BackgroundColor = sheetsColor(col)
		fields = append(fields, "backgroundColor")
	}
	if st.Bold || st.FontSize > 0 {
		format.TextFormat = &gsheets.TextFormat{Bold: st.Bold, FontSize: int64(st.FontSize)}
		fields = append(fields, "textFormat")
	}
	if st.Centered {
		format.HorizontalAlignment = "CENTER"
		format.VerticalAlignment = "MIDDLE"
		fields = append(fields, "horizontalAlignment", "verticalAlignment")
	}
	if len(fields) > 0 {
		reqs = append(reqs, &gsheets.Request{
			RepeatCell: &gsheets.RepeatCellRequest{
				Range:  gr,
				Cell:   &gsheets.CellData{UserEnteredFormat: format},
				Fields: "userEnteredFormat(" + strings.Join(fields, ",") + ")",
			},
		})
	}

	if st.Bordered {
		solid := func() *gsheets.Border { return &gsheets.Border{Style: "SOLID"} }
		reqs = append(reqs, &gsheets.Request{
			UpdateBorders: &gsheets.UpdateBordersRequest{
				Range:           gr,
				Top:             solid(),
				Bottom:          solid(),
				Left:            solid(),
				Right:           solid(),
				InnerHorizontal: solid(),
				InnerVertical:   solid(),
			},
		})
	}
	return reqs, nil
}

func sheetsColor(c colorful.Color) *gsheets.Color {
	r, g, b := c.Clamped().RGB255()
	col := &gsheets.Color{
		Red:   float64(r) / 255,
		Green: float64(g) / 255,
		Blue:  float64(b) / 255,
	}
	// Zero channels are dropped by omitempty unless forced.
	col.ForceSendFields = []string{"Red", "Green", "Blue"}
	return col
}

func gridRange(id int64, a1 string) (*gsheets.GridRange, error) {
	cr, err := report.ParseA1(a1)
	if err != nil {
		return nil, err
	}
	gr := &gsheets.GridRange{
		SheetId:          id,
		StartColumnIndex: int64(cr.StartCol),
		EndColumnIndex:   int64(cr.EndCol),
	}
	if cr.EndRow > 0 {
		gr.StartRowIndex = int64(cr.StartRow)
		gr.EndRowIndex = int64(cr.EndRow)
	}
	return gr, nil
}

func chartData(id int64, a1 string) (*gsheets.ChartData, error) {
	gr, err := gridRange(id, a1)
	if err != nil {
		return nil, err
	}
	return &gsheets.ChartData{
		SourceRange: &gsheets.ChartSourceRange{Sources: []*gsheets.GridRange{gr}},
	}, nil
}

func chartRequest(id int64, index int, ch report.Chart) (*gsheets.Request, error) {
	domain, err := chartData(id, ch.Domain)
	if err != nil {
		return nil, err
	}
	spec := &gsheets.ChartSpec{Title: ch.Title}

	switch ch.Type {
	case report.ChartPie:
		if len(ch.Series) != 1 {
			return nil, fmt.Errorf("pie chart %q needs exactly one series, got %d", ch.Title, len(ch.Series))
		}
		series, err := chartData(id, ch.Series[0])
		if err != nil {
			return nil, err
		}
		spec.PieChart = &gsheets.PieChartSpec{
			LegendPosition: "RIGHT_LEGEND",
			Domain:         domain,
			Series:         series,
		}
	case report.ChartColumn:
		basic := &gsheets.BasicChartSpec{
			ChartType:      "COLUMN",
			LegendPosition: "BOTTOM_LEGEND",
			Domains:        []*gsheets.BasicChartDomain{{Domain: domain}},
		}
		for _, s := range ch.Series {
			series, err := chartData(id, s)
			if err != nil {
				return nil, err
			}
			basic.Series = append(basic.Series, &gsheets.BasicChartSeries{
				Series:     series,
				TargetAxis: "LEFT_AXIS",
			})
		}
		spec.BasicChart = basic
	default:
		return nil, fmt.Errorf("chart %q: unsupported type %q", ch.Title, ch.Type)
	}

	return &gsheets.Request{
		AddChart: &gsheets.AddChartRequest{
			Chart: &gsheets.EmbeddedChart{
				Spec: spec,
				Position: &gsheets.EmbeddedObjectPosition{
					OverlayPosition: &gsheets.OverlayPosition{
						AnchorCell: &gsheets.GridCoordinate{
							SheetId:     id,
							RowIndex:    chartAnchorRow,
							ColumnIndex: int64(index * chartColumnStep),
						},
					},
				},
			},
		},
	}, nil
}
