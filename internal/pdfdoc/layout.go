package pdfdoc

import (
	"math"
	"sort"
	"strings"

	"docqa/internal/extract"
)

const defaultFontSize = 10.0

// wordGapRatio is the fraction of the font size that separates two glyphs into two words.
const wordGapRatio = 0.2

// lineRatio is the fraction of the font size within which two baselines share a line.
const lineRatio = 0.3

const minLineTolerance = 1.0

// glyph is one positioned piece of text as drawn on the page.
// y is the baseline in PDF user space.
type glyph struct {
	x, y, w, size float64
	s             string
}

func (g glyph) fontSize() float64 {
	if g.size <= 0 {
		return defaultFontSize
	}
	return g.size
}

// center returns a point inside the glyph box used for region membership.
func (g glyph) center() (float64, float64) {
	return g.x + g.w/2, g.y + g.fontSize()*0.3
}

func (g glyph) inside(r extract.Rect) bool {
	cx, cy := g.center()
	return r.Contains(cx, cy)
}

// Layout is the analysed content of one page. It implements extract.Page.
type Layout struct {
	glyphs []glyph
	tables []extract.Table
	text   string
}

func newLayout(glyphs []glyph, horiz, vert []ruling) *Layout {
	l := &Layout{glyphs: glyphs}
	l.tables = detectTables(glyphs, horiz, vert)
	l.text = l.render()
	return l
}

// Text returns the page text, one line per visual line, each newline-terminated.
// A table is rendered as one contiguous block placed at its top edge, so text
// laid out beside it never interleaves with its rows.
func (l *Layout) Text() string { return l.text }

// Tables returns the ruled tables found on the page.
func (l *Layout) Tables() []extract.Table { return l.tables }

// ClipText renders only the glyphs that fall inside r.
func (l *Layout) ClipText(r extract.Rect) string {
	var clipped []glyph
	for _, g := range l.glyphs {
		if g.inside(r) {
			clipped = append(clipped, g)
		}
	}
	return renderText(clipped)
}

// block is a run of rendered text anchored at the y of its top edge.
type block struct {
	top  float64
	text string
}

func (l *Layout) render() string {
	if len(l.tables) == 0 {
		return renderText(l.glyphs)
	}

	inTable := make([][]glyph, len(l.tables))
	var prose []glyph
	for _, g := range l.glyphs {
		owner := -1
		for i, t := range l.tables {
			if g.inside(t.Bounds) {
				owner = i
				break
			}
		}
		if owner < 0 {
			prose = append(prose, g)
			continue
		}
		inTable[owner] = append(inTable[owner], g)
	}

	var blocks []block
	for _, line := range groupLines(prose) {
		s := strings.TrimRight(renderLine(line), " \t")
		if s == "" {
			continue
		}
		top := line[0].y
		for _, g := range line[1:] {
			top = math.Max(top, g.y)
		}
		blocks = append(blocks, block{top: top, text: s + "\n"})
	}
	for i, t := range l.tables {
		if s := renderText(inTable[i]); s != "" {
			blocks = append(blocks, block{top: t.Bounds.Y1, text: s})
		}
	}
	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].top > blocks[j].top })

	var sb strings.Builder
	for _, b := range blocks {
		sb.WriteString(b.text)
	}
	return sb.String()
}

// renderText groups glyphs into visual lines top to bottom and joins them.
// The same glyph subset always renders to the same string, which is what lets
// a table's clipped text be found verbatim inside the page text.
func renderText(glyphs []glyph) string {
	var sb strings.Builder
	for _, line := range groupLines(glyphs) {
		s := strings.TrimRight(renderLine(line), " \t")
		if s == "" {
			continue
		}
		sb.WriteString(s)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func groupLines(glyphs []glyph) [][]glyph {
	if len(glyphs) == 0 {
		return nil
	}
	sorted := make([]glyph, 0, len(glyphs))
	for _, g := range glyphs {
		if g.s != "" {
			sorted = append(sorted, g)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].y != sorted[j].y {
			return sorted[i].y > sorted[j].y
		}
		return sorted[i].x < sorted[j].x
	})

	var lines [][]glyph
	var lineY, tol float64
	for _, g := range sorted {
		if len(lines) > 0 && math.Abs(lineY-g.y) <= tol {
			lines[len(lines)-1] = append(lines[len(lines)-1], g)
			continue
		}
		lines = append(lines, []glyph{g})
		lineY = g.y
		tol = math.Max(minLineTolerance, g.fontSize()*lineRatio)
	}
	for _, line := range lines {
		sort.SliceStable(line, func(i, j int) bool { return line[i].x < line[j].x })
	}
	return lines
}

func renderLine(line []glyph) string {
	var sb strings.Builder
	for i, g := range line {
		if i > 0 {
			prev := line[i-1]
			gap := g.x - (prev.x + prev.w)
			if gap > g.fontSize()*wordGapRatio &&
				!strings.HasSuffix(prev.s, " ") && !strings.HasPrefix(g.s, " ") {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(g.s)
	}
	return sb.String()
}
