// Package pdfdoc reads PDF pages into positioned text and ruled tables.
package pdfdoc

import (
	"errors"
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
	"github.com/tsawler/tabula/core"
	"github.com/tsawler/tabula/graphicsstate"
	"github.com/tsawler/tabula/pages"
	"github.com/tsawler/tabula/reader"

	"docqa/internal/extract"
)

// Document is an open PDF file. It is not safe for concurrent use; open one
// Document per goroutine.
//
// Text fragments and stroked rulings come from tabula. The ledongthuc reader
// is opened alongside it for the rectangles tabula does not report (several
// "re" operators painted by one fill) and takes over the text when tabula
// cannot parse the file.
type Document struct {
	tab   *reader.Reader
	pages int

	file *os.File
	pdf  *pdf.Reader
}

// Open opens the PDF at path.
func Open(path string) (*Document, error) {
	d := &Document{}

	tab, tabErr := reader.Open(path)
	if tabErr == nil {
		n, err := tab.PageCount()
		if err != nil {
			_ = tab.Close()
			tabErr = err
		} else {
			d.tab, d.pages = tab, n
		}
	}

	file, r, err := openLedongthuc(path)
	if err == nil {
		d.file, d.pdf = file, r
		if d.tab == nil {
			d.pages = r.NumPage()
		}
	}

	if d.tab == nil && d.pdf == nil {
		return nil, fmt.Errorf("pdfdoc: open %s: %w", path, errors.Join(tabErr, err))
	}
	return d, nil
}

func openLedongthuc(path string) (file *os.File, r *pdf.Reader, err error) {
	defer func() {
		if p := recover(); p != nil {
			file, r, err = nil, nil, fmt.Errorf("%v", p)
		}
	}()
	return pdf.Open(path)
}

// NumPages returns the number of pages in the document.
func (d *Document) NumPages() int { return d.pages }

// Page analyses the page at the 0-based index. Malformed content streams
// surface as errors rather than panics.
func (d *Document) Page(index int) (extract.Page, error) {
	if index < 0 || index >= d.pages {
		return nil, fmt.Errorf("pdfdoc: page index %d out of range [0,%d)", index, d.pages)
	}

	var (
		glyphs      []glyph
		horiz, vert []ruling
		tabErr      = errors.New("tabula reader unavailable")
	)
	if d.tab != nil {
		glyphs, horiz, vert, tabErr = d.tabulaPage(index)
	}

	if d.pdf != nil {
		lgGlyphs, boxes, err := d.ledongthucPage(index)
		switch {
		case err == nil:
			h, v := rulings(boxes)
			horiz, vert = append(horiz, h...), append(vert, v...)
			if tabErr != nil {
				glyphs = lgGlyphs
			}
		case tabErr != nil:
			return nil, err
		}
	} else if tabErr != nil {
		return nil, tabErr
	}

	return newLayout(glyphs, horiz, vert), nil
}

func (d *Document) tabulaPage(index int) (glyphs []glyph, horiz, vert []ruling, err error) {
	defer func() {
		if r := recover(); r != nil {
			glyphs, horiz, vert, err = nil, nil, nil, fmt.Errorf("pdfdoc: page %d: %v", index+1, r)
		}
	}()

	page, err := d.tab.GetPage(index)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("pdfdoc: page %d: %w", index+1, err)
	}
	frags, err := d.tab.ExtractTextFragments(page)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("pdfdoc: page %d: %w", index+1, err)
	}
	glyphs = make([]glyph, 0, len(frags))
	for _, f := range frags {
		glyphs = append(glyphs, glyph{x: f.X, y: f.Y, w: f.Width, size: f.FontSize, s: f.Text})
	}

	// Missing rulings only cost table detection, so graphics errors leave the text in place.
	data, err := contentBytes(page)
	if err != nil || len(data) == 0 {
		return glyphs, nil, nil, nil
	}
	ge := graphicsstate.NewGraphicsExtractor()
	if err := ge.ExtractFromBytes(data); err != nil {
		return glyphs, nil, nil, nil
	}
	horiz, vert = graphicsRulings(ge)
	return glyphs, horiz, vert, nil
}

// contentBytes concatenates the decoded content streams of a page.
func contentBytes(page *pages.Page) ([]byte, error) {
	contents, err := page.Contents()
	if err != nil {
		return nil, err
	}
	var data []byte
	for _, obj := range contents {
		stream, ok := obj.(*core.Stream)
		if !ok {
			continue
		}
		decoded, err := stream.Decode()
		if err != nil {
			return nil, err
		}
		data = append(data, decoded...)
		data = append(data, '\n')
	}
	return data, nil
}

func (d *Document) ledongthucPage(index int) (glyphs []glyph, boxes []box, err error) {
	defer func() {
		if r := recover(); r != nil {
			glyphs, boxes, err = nil, nil, fmt.Errorf("pdfdoc: page %d: %v", index+1, r)
		}
	}()

	p := d.pdf.Page(index + 1)
	if p.V.IsNull() {
		return nil, nil, fmt.Errorf("pdfdoc: page %d: missing page object", index+1)
	}
	content := p.Content()

	glyphs = make([]glyph, 0, len(content.Text))
	for _, t := range content.Text {
		glyphs = append(glyphs, glyph{x: t.X, y: t.Y, w: t.W, size: t.FontSize, s: t.S})
	}
	boxes = make([]box, 0, len(content.Rect))
	for _, r := range content.Rect {
		boxes = append(boxes, box{x0: r.Min.X, y0: r.Min.Y, x1: r.Max.X, y1: r.Max.Y})
	}
	return glyphs, boxes, nil
}

// Close releases the underlying files.
func (d *Document) Close() error {
	var errs []error
	if d.tab != nil {
		errs = append(errs, d.tab.Close())
	}
	if d.file != nil {
		errs = append(errs, d.file.Close())
	}
	return errors.Join(errs...)
}
