package extract

import (
	"regexp"
	"strings"
)

// clauseBoundary matches the start of a new clause: a numbered heading that
// ends in a code tag, e.g. "\n3) Maternity cover (Code -MAT)", or a lettered
// sub-item marker such as "\nb. ".
var clauseBoundary = regexp.MustCompile(`\n\d+\)\s.*?\(Code\s-\w+\)|\n[a-z]\.\s`)

// SegmentClauses splits running prose into clauses at heading and enumeration
// boundaries. Text before the first boundary is kept as its own clause. Each
// boundary becomes "heading\ncontent"; a trailing heading with no content is
// kept alone. Empty clauses are dropped. Text without markers comes back as a
// single clause.
func SegmentClauses(text string) []string {
	bounds := clauseBoundary.FindAllStringIndex(text, -1)

	var clauses []string
	add := func(s string) {
		if s != "" {
			clauses = append(clauses, s)
		}
	}

	lead := text
	if len(bounds) > 0 {
		lead = text[:bounds[0][0]]
	}
	add(strings.TrimSpace(lead))

	for i, b := range bounds {
		heading := strings.TrimSpace(text[b[0]:b[1]])
		end := len(text)
		if i+1 < len(bounds) {
			end = bounds[i+1][0]
		}
		content := strings.TrimSpace(text[b[1]:end])
		if content == "" {
			add(heading)
			continue
		}
		add(heading + "\n" + content)
	}
	return clauses
}
