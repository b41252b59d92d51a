// Package extract turns a page of a paginated document into retrievable text
// units: table facts and prose clauses.
package extract

import (
	"fmt"
	"strings"
)

// Rect is an axis-aligned region of a page in PDF user space (origin bottom-left).
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// Contains reports whether the point lies inside the rectangle, edges included.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X0 && x <= r.X1 && y >= r.Y0 && y <= r.Y1
}

// Table is a table detected on a page: its cell grid and its bounds.
// Cells[0] is the header row; Cells[i][0] labels data row i.
type Table struct {
	Cells  [][]string
	Bounds Rect
}

// FlattenTable converts a table grid into one sentence per
// (row label, column header, cell) triple, in reading order.
// Grids with fewer than two rows carry no facts and produce nothing.
func FlattenTable(rows [][]string) []string {
	if len(rows) < 2 {
		return nil
	}
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	var out []string
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		subject := strings.TrimSpace(row[0])
		if subject == "" {
			continue
		}
		for col := 1; col < len(row); col++ {
			if col >= len(headers) {
				break
			}
			cell := strings.TrimSpace(row[col])
			header := headers[col]
			if cell == "" || header == "" {
				continue
			}
			out = append(out, fmt.Sprintf("For the benefit '%s', the value under '%s' is '%s'.", subject, header, cell))
		}
	}
	return out
}
