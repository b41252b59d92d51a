package extract

import (
	"strings"

	"docqa/internal/domain"
)

// Page is a single page of a paginated document as seen by the extractor.
type Page interface {
	// Text returns the full running text of the page.
	Text() string
	// Tables returns the tables detected on the page.
	Tables() []Table
	// ClipText returns the page text restricted to the given region, rendered
	// the same way Text renders it so it can be located inside Text.
	ClipText(r Rect) string
}

// ExtractPage produces the retrievable units of one page: every table fact
// first, then every prose clause. index is the 0-based page index; units carry
// the 1-based page number. Text that belongs to a table is removed from the
// prose before segmentation so it is never emitted twice.
func ExtractPage(page Page, index int, source string) []domain.TextUnit {
	meta := func(kind domain.Kind) domain.Metadata {
		return domain.Metadata{Source: source, Page: index + 1, Kind: kind}
	}

	tables := page.Tables()
	var units []domain.TextUnit
	for _, t := range tables {
		for _, sentence := range FlattenTable(t.Cells) {
			units = append(units, domain.TextUnit{Content: sentence, Metadata: meta(domain.KindTable)})
		}
	}

	prose := page.Text()
	for _, t := range tables {
		clipped := page.ClipText(t.Bounds)
		if clipped == "" {
			continue
		}
		prose = strings.ReplaceAll(prose, clipped, "")
	}

	for _, clause := range SegmentClauses(prose) {
		units = append(units, domain.TextUnit{Content: clause, Metadata: meta(domain.KindClause)})
	}
	return units
}
