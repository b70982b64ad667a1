package report

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FilePublisher writes the document as a markdown file. It is used when no
// spreadsheet backend is configured.
type FilePublisher struct {
	OutputDir string
	now       func() time.Time
}

func NewFilePublisher(outputDir string) *FilePublisher {
	return &FilePublisher{OutputDir: outputDir, now: time.Now}
}

func (p *FilePublisher) Publish(_ context.Context, doc Document) (string, error) {
	path, err := WriteReportFile(RenderMarkdown(doc), p.OutputDir, p.now(), doc.Title)
	if err != nil {
		return "", fmt.Errorf("writing report file: %w", err)
	}
	log.Printf("report file written path=%s", path)
	return path, nil
}

func WriteReportFile(content, outputDir string, reportDate time.Time, title string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}
	filename := fmt.Sprintf("%s_%s.md", sanitizeFilename(title), reportDate.Format("20060102_150405"))
	path := filepath.Join(outputDir, filename)
	return path, os.WriteFile(path, []byte(content), 0644)
}

func sanitizeFilename(s string) string {
	s = unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(s), "_")
	if s == "" {
		return "report"
	}
	return s
}

// RenderMarkdown renders every sheet as a table and every chart as the
// label/value pairs it plots.
func RenderMarkdown(doc Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", doc.Title)
	if s := strings.TrimSpace(doc.Summary); s != "" {
		b.WriteString(s)
		b.WriteString("\n\n")
	}

	sheets := make(map[string]Sheet, len(doc.Sheets))
	for _, sh := range doc.Sheets {
		sheets[sh.Title] = sh
		fmt.Fprintf(&b, "## %s\n\n", sh.Title)
		writeMarkdownTable(&b, sh.Rows)
		b.WriteString("\n")
	}

	if len(doc.Charts) > 0 {
		b.WriteString("## Charts\n\n")
	}
	for _, ch := range doc.Charts {
		fmt.Fprintf(&b, "### %s\n\n", ch.Title)
		sh, ok := sheets[ch.Sheet]
		if !ok {
			continue
		}
		labels, err := ParseA1(ch.Domain)
		if err != nil {
			continue
		}
		labelCells := labels.Values(sh.Rows)
		var series [][][]any
		for _, s := range ch.Series {
			r, err := ParseA1(s)
			if err != nil {
				continue
			}
			series = append(series, r.Values(sh.Rows))
		}
		for i, label := range labelCells {
			var vals []string
			for _, s := range series {
				if i < len(s) && len(s[i]) > 0 {
					vals = append(vals, formatCell(s[i][0]))
				}
			}
			fmt.Fprintf(&b, "- %s: %s\n", formatCell(firstCell(label)), strings.Join(vals, " / "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeMarkdownTable(b *strings.Builder, rows [][]any) {
	if len(rows) == 0 {
		return
	}
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	for i, row := range rows {
		cells := make([]string, width)
		for j := range cells {
			if j < len(row) {
				cells[j] = escapeMarkdownCell(formatCell(row[j]))
			}
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
		if i == 0 {
			b.WriteString("|" + strings.Repeat(" --- |", width) + "\n")
		}
	}
}

func firstCell(row []any) any {
	if len(row) == 0 {
		return nil
	}
	return row[0]
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(math.Round(x*1e4)/1e4, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case Link:
		if x.URL == "" {
			return x.Text
		}
		return "[" + x.Text + "](" + x.URL + ")"
	default:
		return fmt.Sprint(x)
	}
}

func escapeMarkdownCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
