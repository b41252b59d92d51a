// Package chunker splits oversized text units into bounded, overlapping windows.
package chunker

import (
	"strings"
	"unicode/utf8"

	"docqa/internal/domain"
)

// DefaultChunkSize is the default maximum number of characters per window.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of characters shared by neighbouring windows.
const DefaultChunkOverlap = 100

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// RecursiveChunker splits text on the coarsest separator that occurs in it,
// falling back to finer ones for pieces that are still too long, and merges
// the pieces back into windows of at most chunkSize characters.
type RecursiveChunker struct {
	chunkSize  int
	overlap    int
	separators []string
}

// Option configures the chunker.
type Option func(*RecursiveChunker)

// WithChunkSize sets the window size in characters.
func WithChunkSize(size int) Option {
	return func(c *RecursiveChunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between windows in characters.
func WithOverlap(overlap int) Option {
	return func(c *RecursiveChunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a recursive chunker with the given options.
func New(opts ...Option) *RecursiveChunker {
	c := &RecursiveChunker{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: defaultSeparators,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}
	return c
}

// Chunk returns the units ready for embedding. Units that already fit are
// returned unchanged; longer ones are replaced by their windows, each carrying
// the original metadata. Blank units are dropped.
func (c *RecursiveChunker) Chunk(units []domain.TextUnit) []domain.TextUnit {
	out := make([]domain.TextUnit, 0, len(units))
	for _, u := range units {
		if strings.TrimSpace(u.Content) == "" {
			continue
		}
		if runeLen(u.Content) <= c.chunkSize {
			out = append(out, u)
			continue
		}
		for _, window := range c.split(u.Content, c.separators) {
			out = append(out, domain.TextUnit{Content: window, Metadata: u.Metadata})
		}
	}
	return out
}

func (c *RecursiveChunker) split(text string, separators []string) []string {
	sep := separators[len(separators)-1]
	var finer []string
	for i, s := range separators {
		if s == "" || strings.Contains(text, s) {
			sep = s
			finer = separators[i+1:]
			break
		}
	}

	var pieces []string
	if sep == "" {
		pieces = strings.Split(text, "")
	} else {
		pieces = strings.Split(text, sep)
	}

	var windows, fitting []string
	for _, p := range pieces {
		if p == "" {
			continue
		}
		if runeLen(p) < c.chunkSize {
			fitting = append(fitting, p)
			continue
		}
		if len(fitting) > 0 {
			windows = append(windows, c.merge(fitting, sep)...)
			fitting = nil
		}
		if len(finer) == 0 {
			windows = append(windows, p)
		} else {
			windows = append(windows, c.split(p, finer)...)
		}
	}
	if len(fitting) > 0 {
		windows = append(windows, c.merge(fitting, sep)...)
	}
	return windows
}

// merge packs pieces joined by sep into windows, carrying trailing pieces of
// up to overlap characters into the next window.
func (c *RecursiveChunker) merge(pieces []string, sep string) []string {
	sepLen := runeLen(sep)
	var windows, current []string
	total := 0

	joinedLen := func(n int) int {
		if len(current) > 0 {
			return n + sepLen
		}
		return n
	}

	for _, p := range pieces {
		n := runeLen(p)
		if total+joinedLen(n) > c.chunkSize && len(current) > 0 {
			if w := strings.TrimSpace(strings.Join(current, sep)); w != "" {
				windows = append(windows, w)
			}
			for total > c.overlap || (total > 0 && total+joinedLen(n) > c.chunkSize) {
				drop := runeLen(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
		}
		total += joinedLen(n)
		current = append(current, p)
	}
	if w := strings.TrimSpace(strings.Join(current, sep)); w != "" {
		windows = append(windows, w)
	}
	return windows
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
