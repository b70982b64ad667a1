package report

import (
	"fmt"
	"strconv"
	"strings"
)

// CellRange is a zero-based, end-exclusive rectangle. EndRow 0 means the
// range runs to the bottom of the sheet.
type CellRange struct {
	StartRow int
	EndRow   int
	StartCol int
	EndCol   int
}

// ParseA1 reads "B2", "A1:I7", "B" or "A:F".
func ParseA1(a1 string) (CellRange, error) {
	a1 = strings.TrimSpace(a1)
	if a1 == "" {
		return CellRange{}, fmt.Errorf("empty A1 range")
	}
	first, last, isPair := strings.Cut(a1, ":")
	if !isPair {
		last = first
	}
	sc, sr, err := parseA1Cell(first)
	if err != nil {
		return CellRange{}, fmt.Errorf("range %q: %w", a1, err)
	}
	ec, er, err := parseA1Cell(last)
	if err != nil {
		return CellRange{}, fmt.Errorf("range %q: %w", a1, err)
	}
	if (sr < 0) != (er < 0) {
		return CellRange{}, fmt.Errorf("range %q: mixes row and column references", a1)
	}
	if ec < sc || er < sr {
		return CellRange{}, fmt.Errorf("range %q: end before start", a1)
	}
	r := CellRange{StartCol: sc, EndCol: ec + 1}
	if sr >= 0 {
		r.StartRow = sr
		r.EndRow = er + 1
	}
	return r, nil
}

// parseA1Cell returns the zero-based column and row; row is -1 when absent.
func parseA1Cell(s string) (int, int, error) {
	i := 0
	col := 0
	for i < len(s) && s[i] >= 'A' && s[i] <= 'Z' {
		col = col*26 + int(s[i]-'A'+1)
		i++
	}
	if i == 0 {
		return 0, 0, fmt.Errorf("missing column in %q", s)
	}
	if i == len(s) {
		return col - 1, -1, nil
	}
	row, err := strconv.Atoi(s[i:])
	if err != nil || row < 1 {
		return 0, 0, fmt.Errorf("bad row in %q", s)
	}
	return col - 1, row - 1, nil
}

// Values returns the cells of r found in rows, row by row.
func (r CellRange) Values(rows [][]any) [][]any {
	end := r.EndRow
	if end == 0 || end > len(rows) {
		end = len(rows)
	}
	var out [][]any
	for i := r.StartRow; i < end; i++ {
		var line []any
		for j := r.StartCol; j < r.EndCol; j++ {
			if j < len(rows[i]) {
				line = append(line, rows[i][j])
			} else {
				line = append(line, nil)
			}
		}
		out = append(out, line)
	}
	return out
}
