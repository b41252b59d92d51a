package pdfdoc

import (
	"math"
	"sort"
	"strings"

	"github.com/tsawler/tabula/graphicsstate"
	"github.com/tsawler/tabula/model"
	"github.com/tsawler/tabula/tables"

	"docqa/internal/extract"
)

// Lattice detection settings, in points.
const (
	alignTolerance = 3.0
	maxRuleWidth   = 2.0
	minRuleLength  = 10.0
)

// latticeConfig tunes the geometric detector for cell fragments cut from a
// ruled grid: every edge already sits on a grid line, and merged-cell
// detection is off because neighbouring cells share an edge.
var latticeConfig = tables.Config{
	MinRows:            2,
	MinCols:            2,
	MinConfidence:      0.5,
	UseLines:           true,
	MaxCellGap:         5,
	AlignmentTolerance: 1,
	DetectMergedCells:  false,
}

// box is a filled or stroked rectangle drawn on the page.
type box struct {
	x0, y0, x1, y1 float64
}

func (b box) normalized() box {
	return box{
		x0: math.Min(b.x0, b.x1), y0: math.Min(b.y0, b.y1),
		x1: math.Max(b.x0, b.x1), y1: math.Max(b.y0, b.y1),
	}
}

// ruling is a horizontal or vertical line segment. For a horizontal ruling
// pos is its y and [from, to] its x extent; for a vertical one pos is x.
type ruling struct {
	pos, from, to float64
}

// rulings classifies page rectangles into horizontal and vertical rulings.
// Thin rectangles are rules; larger ones contribute their four edges.
func rulings(boxes []box) (horiz, vert []ruling) {
	for _, raw := range boxes {
		b := raw.normalized()
		w, h := b.x1-b.x0, b.y1-b.y0
		switch {
		case h <= maxRuleWidth && w >= minRuleLength:
			horiz = append(horiz, ruling{pos: (b.y0 + b.y1) / 2, from: b.x0, to: b.x1})
		case w <= maxRuleWidth && h >= minRuleLength:
			vert = append(vert, ruling{pos: (b.x0 + b.x1) / 2, from: b.y0, to: b.y1})
		case w >= minRuleLength && h >= minRuleLength:
			horiz = append(horiz,
				ruling{pos: b.y0, from: b.x0, to: b.x1},
				ruling{pos: b.y1, from: b.x0, to: b.x1})
			vert = append(vert,
				ruling{pos: b.x0, from: b.y0, to: b.y1},
				ruling{pos: b.x1, from: b.y0, to: b.y1})
		}
	}
	return horiz, vert
}

// graphicsRulings turns the stroked segments and rectangles of a decoded
// content stream into rulings.
func graphicsRulings(ge *graphicsstate.GraphicsExtractor) (horiz, vert []ruling) {
	grid := ge.GetGridLines()
	for _, l := range grid.Horizontals {
		from, to := math.Min(l.Start.X, l.End.X), math.Max(l.Start.X, l.End.X)
		if to-from >= minRuleLength {
			horiz = append(horiz, ruling{pos: (l.Start.Y + l.End.Y) / 2, from: from, to: to})
		}
	}
	for _, l := range grid.Verticals {
		from, to := math.Min(l.Start.Y, l.End.Y), math.Max(l.Start.Y, l.End.Y)
		if to-from >= minRuleLength {
			vert = append(vert, ruling{pos: (l.Start.X + l.End.X) / 2, from: from, to: to})
		}
	}

	rects := ge.GetFilteredRectangles()
	boxes := make([]box, 0, len(rects))
	for _, r := range rects {
		boxes = append(boxes, box{x0: r.BBox.Left(), y0: r.BBox.Bottom(), x1: r.BBox.Right(), y1: r.BBox.Top()})
	}
	h, v := rulings(boxes)
	return append(horiz, h...), append(vert, v...)
}

func crosses(h, v ruling) bool {
	return v.pos >= h.from-alignTolerance && v.pos <= h.to+alignTolerance &&
		h.pos >= v.from-alignTolerance && h.pos <= v.to+alignTolerance
}

// detectTables finds ruled grids and fills their cells with the glyphs inside.
// Grids need at least two rows and two columns and some text.
func detectTables(glyphs []glyph, horiz, vert []ruling) []extract.Table {
	if len(horiz) < 3 || len(vert) < 3 {
		return nil
	}

	// union-find over rulings; horizontal i is node i, vertical j is len(horiz)+j
	parent := make([]int, len(horiz)+len(vert))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	for i, h := range horiz {
		for j, v := range vert {
			if crosses(h, v) {
				a, b := find(i), find(len(horiz)+j)
				if a != b {
					parent[a] = b
				}
			}
		}
	}

	type component struct {
		ys, xs []float64
		lines  []model.Line
	}
	groups := map[int]*component{}
	var order []int
	add := func(root int) *component {
		c, ok := groups[root]
		if !ok {
			c = &component{}
			groups[root] = c
			order = append(order, root)
		}
		return c
	}
	for i, h := range horiz {
		c := add(find(i))
		c.ys = append(c.ys, h.pos)
		c.lines = append(c.lines, model.Line{
			Start: model.Point{X: h.from, Y: h.pos},
			End:   model.Point{X: h.to, Y: h.pos},
		})
	}
	for j, v := range vert {
		c := add(find(len(horiz) + j))
		c.xs = append(c.xs, v.pos)
		c.lines = append(c.lines, model.Line{
			Start: model.Point{X: v.pos, Y: v.from},
			End:   model.Point{X: v.pos, Y: v.to},
		})
	}

	var found []extract.Table
	for _, root := range order {
		c := groups[root]
		ys := clusterValues(c.ys, alignTolerance)
		xs := clusterValues(c.xs, alignTolerance)
		if len(ys) < 3 || len(xs) < 3 {
			continue
		}
		sort.Sort(sort.Reverse(sort.Float64Slice(ys)))
		if t, ok := gridTable(glyphs, ys, xs, c.lines); ok {
			found = append(found, t)
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Bounds.Y1 > found[j].Bounds.Y1
	})
	return found
}

// clusterValues merges sorted values closer than tolerance into their running mean.
func clusterValues(values []float64, tolerance float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	clustered := []float64{sorted[0]}
	counts := []int{1}
	for _, v := range sorted[1:] {
		last := len(clustered) - 1
		if v-clustered[last] > tolerance {
			clustered = append(clustered, v)
			counts = append(counts, 1)
			continue
		}
		counts[last]++
		clustered[last] += (v - clustered[last]) / float64(counts[last])
	}
	return clustered
}

// gridTable cuts the lattice delimited by ys (descending) and xs (ascending)
// into one text fragment per cell and lets the geometric detector confirm
// the grid and assign the fragments. A lattice with no text is not a table.
func gridTable(glyphs []glyph, ys, xs []float64, lines []model.Line) (extract.Table, bool) {
	bounds := extract.Rect{X0: xs[0], Y0: ys[len(ys)-1], X1: xs[len(xs)-1], Y1: ys[0]}
	rows, cols := len(ys)-1, len(xs)-1

	cellGlyphs := make([][][]glyph, rows)
	for r := range cellGlyphs {
		cellGlyphs[r] = make([][]glyph, cols)
	}

	hasText := false
	for _, g := range glyphs {
		if !g.inside(bounds) {
			continue
		}
		cx, cy := g.center()
		r, c := findCell(cx, cy, ys, xs)
		if r < 0 || c < 0 {
			continue
		}
		cellGlyphs[r][c] = append(cellGlyphs[r][c], g)
		hasText = true
	}
	if !hasText {
		return extract.Table{}, false
	}

	page := model.NewPage(bounds.X1-bounds.X0, bounds.Y1-bounds.Y0)
	page.RawLines = lines
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			page.RawText = append(page.RawText, model.TextFragment{
				Text: strings.Join(strings.Fields(renderText(cellGlyphs[r][c])), " "),
				BBox: model.NewBBox(xs[c], ys[r+1], xs[c+1]-xs[c], ys[r]-ys[r+1]),
			})
		}
	}

	detector := tables.NewGeometricDetector()
	if err := detector.Configure(latticeConfig); err != nil {
		return extract.Table{}, false
	}
	detected, err := detector.Detect(page)
	if err != nil || len(detected) == 0 {
		return extract.Table{}, false
	}

	t := detected[0]
	cells := make([][]string, t.RowCount())
	for r := range cells {
		cells[r] = make([]string, t.ColCount())
		for c := range cells[r] {
			cells[r][c] = t.GetCell(r, c).Text
		}
	}
	return extract.Table{
		Cells:  cells,
		Bounds: extract.Rect{X0: t.BBox.Left(), Y0: t.BBox.Bottom(), X1: t.BBox.Right(), Y1: t.BBox.Top()},
	}, true
}

func findCell(x, y float64, ys, xs []float64) (int, int) {
	row, col := -1, -1
	for i := 0; i < len(ys)-1; i++ {
		if y <= ys[i] && y >= ys[i+1] {
			row = i
			break
		}
	}
	for j := 0; j < len(xs)-1; j++ {
		if x >= xs[j] && x <= xs[j+1] {
			col = j
			break
		}
	}
	return row, col
}
