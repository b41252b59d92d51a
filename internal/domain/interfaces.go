package domain

import (
	"os"
	"path"
	"strings"
)

// Kind tags where a text unit came from.
type Kind string

const (
	KindClause    Kind = "clause"
	KindTable     Kind = "table"
	KindExcelBlob Kind = "excel-blob"
	KindPlainText Kind = "plain-text"
)

// Metadata describes the origin of a text unit.
// Page is 1-based; zero means the unit has no page.
type Metadata struct {
	Source string `json:"source"`
	Page   int    `json:"page,omitempty"`
	Kind   Kind   `json:"kind"`
}

// TextUnit is an independently retrievable piece of a document.
type TextUnit struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// SearchResult represents a matching unit with a relevance score.
type SearchResult struct {
	ID    string
	Unit  TextUnit
	Score float64
}

// Answer is the outcome of a question answered over the index.
type Answer struct {
	Text    string         `json:"answer"`
	Pages   []int          `json:"pages"`
	Sources []string       `json:"sources"`
	Context []SearchResult `json:"-"`
}

// Chunker splits oversized units into bounded windows suitable for embedding.
type Chunker interface {
	Chunk(units []TextUnit) []TextUnit
}

// NormalizeSource turns a file path into the stable identifier used as the
// source of its units. Both separators map to '/', so the same file yields the
// same key on every platform.
func NormalizeSource(p string) string {
	if p == "" {
		return ""
	}
	s := strings.ReplaceAll(p, `\`, "/")
	if os.PathSeparator != '/' {
		s = strings.ReplaceAll(s, string(os.PathSeparator), "/")
	}
	return path.Clean(s)
}
