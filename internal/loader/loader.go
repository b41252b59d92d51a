// Package loader turns files on disk into ordered, tagged text units.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"docqa/internal/domain"
	"docqa/internal/extract"
	"docqa/internal/pdfdoc"
)

// PaginatedDocument is an open, page-addressable source. Implementations are
// not required to be safe for concurrent use.
type PaginatedDocument interface {
	NumPages() int
	Page(index int) (extract.Page, error)
	Close() error
}

// Opener opens a paginated document for reading.
type Opener func(path string) (PaginatedDocument, error)

func openPDF(path string) (PaginatedDocument, error) {
	return pdfdoc.Open(path)
}

// Loader dispatches files by extension and extracts their units.
type Loader struct {
	openPDF Opener
	workers int
	logger  *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithPDFOpener replaces the PDF backend.
func WithPDFOpener(open Opener) Option {
	return func(l *Loader) {
		if open != nil {
			l.openPDF = open
		}
	}
}

// WithWorkers sets how many pages are extracted concurrently. Values of one
// or less extract pages sequentially.
func WithWorkers(n int) Option {
	return func(l *Loader) { l.workers = n }
}

// WithLogger sets the logger used for per-file failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a Loader. Without options it reads PDFs with pdfdoc, one page
// at a time.
func New(opts ...Option) *Loader {
	l := &Loader{openPDF: openPDF, workers: 1, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load extracts every unit of the file at path, in document order.
//
// Read failures are logged and produce no units; the caller decides whether an
// empty result is an error. The only error returned is the context's, in which
// case no units of the file are returned.
func (l *Loader) Load(ctx context.Context, path string) (units []domain.TextUnit, err error) {
	source := domain.NormalizeSource(path)
	log := l.logger.With("source", source)

	defer func() {
		if r := recover(); r != nil {
			log.Error("load.panic", "panic", fmt.Sprint(r))
			units, err = nil, nil
		}
	}()

	var loadErr error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		units, loadErr = l.loadPaginated(ctx, path, source)
	case ".txt":
		units, loadErr = loadText(path, source)
	case ".xlsx", ".xlsm", ".xls":
		units, loadErr = loadSpreadsheet(path, source)
	default:
		log.Debug("load.unsupported", "ext", filepath.Ext(path))
		return nil, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if loadErr != nil {
		log.Warn("load.failed", "err", loadErr)
		return nil, nil
	}
	log.Debug("load.ok", "units", len(units))
	return units, nil
}

func loadText(path, source string) ([]domain.TextUnit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	return []domain.TextUnit{{
		Content:  string(data),
		Metadata: domain.Metadata{Source: source, Kind: domain.KindPlainText},
	}}, nil
}

func (l *Loader) loadPaginated(ctx context.Context, path, source string) ([]domain.TextUnit, error) {
	doc, err := l.openPDF(path)
	if err != nil {
		return nil, err
	}
	n := doc.NumPages()

	if l.workers <= 1 {
		defer doc.Close()
		var units []domain.TextUnit
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			units = append(units, l.extractPage(doc, i, source)...)
		}
		return units, nil
	}

	// Workers each hold their own handle, so the handle used to count pages is released first.
	_ = doc.Close()

	pages := make([][]domain.TextUnit, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d, err := l.openPDF(path)
			if err != nil {
				l.logger.Warn("load.page.open_failed", "source", source, "page", i+1, "err", err)
				return nil
			}
			defer d.Close()
			pages[i] = l.extractPage(d, i, source)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var units []domain.TextUnit
	for _, p := range pages {
		units = append(units, p...)
	}
	return units, nil
}

// extractPage runs the page extractor, logging and skipping a page that
// cannot be read.
func (l *Loader) extractPage(doc PaginatedDocument, index int, source string) (units []domain.TextUnit) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Warn("load.page.panic", "source", source, "page", index+1, "panic", fmt.Sprint(r))
			units = nil
		}
	}()
	page, err := doc.Page(index)
	if err != nil {
		l.logger.Warn("load.page.failed", "source", source, "page", index+1, "err", err)
		return nil
	}
	return extract.ExtractPage(page, index, source)
}
