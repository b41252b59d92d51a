// Package extractive answers from the prompt's own context by picking the
// sentences that best match the question. It needs no model or network.
package extractive

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"docqa/internal/prompt"
)

// NoAnswer is returned when the context holds nothing to extract.
const NoAnswer = "The provided documents do not contain an answer to this question."

// DefaultMaxSentences bounds the answer length when unset.
const DefaultMaxSentences = 3

// questionWeight scales how much a shared question term outweighs corpus frequency.
const questionWeight = 2.0

var (
	tokenPattern    = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)
	sentencePattern = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// Generator ranks context sentences by word frequency, biased towards the
// question's terms, and returns the best ones in their original order.
type Generator struct {
	maxSentences int
	stopwords    map[string]struct{}
}

// New creates an extractive generator returning at most maxSentences sentences.
func New(maxSentences int) *Generator {
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	return &Generator{maxSentences: maxSentences, stopwords: defaultStopwords()}
}

// Name returns the identifier of this generator implementation.
func (g *Generator) Name() string { return "extractive" }

// Generate answers a prompt rendered by the prompt package. Any other text is
// treated as context with no question.
func (g *Generator) Generate(ctx context.Context, p string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, question, ok := prompt.Parse(p)
	if !ok {
		text, question = p, ""
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return NoAnswer, nil
	}

	qTerms := map[string]struct{}{}
	for _, tok := range g.tokens(question) {
		qTerms[tok] = struct{}{}
	}

	// Compute word frequencies
	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range g.tokens(sent) {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	type pair struct {
		idx     int
		score   float64
		matches int
	}
	scores := make([]pair, len(sentences))
	for i, sent := range sentences {
		toks := g.tokens(sent)
		score := 0.0
		matches := 0
		seen := map[string]struct{}{}
		for _, tok := range toks {
			score += freq[tok]
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			if _, ok := qTerms[tok]; ok {
				score += questionWeight
				matches++
			}
		}
		// Normalize by sentence length to avoid bias
		if l := float64(len(toks)); l > 0 {
			score /= math.Sqrt(l)
		}
		scores[i] = pair{idx: i, score: score, matches: matches}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if len(qTerms) > 0 && scores[0].matches == 0 {
		return NoAnswer, nil
	}

	n := min(g.maxSentences, len(scores))
	selected := make([]int, 0, n)
	for _, s := range scores[:n] {
		if len(qTerms) > 0 && s.matches == 0 {
			continue
		}
		selected = append(selected, s.idx)
	}
	// Keep original order among selected
	sort.Ints(selected)
	out := make([]string, 0, len(selected))
	for _, idx := range selected {
		out = append(out, sentences[idx])
	}
	return strings.Join(out, " "), nil
}

// splitSentences breaks context into sentences. Passages and lines are kept
// apart so clause headings and table facts without final punctuation survive.
func splitSentences(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "---" {
			continue
		}
		matched := sentencePattern.FindAllStringIndex(line, -1)
		end := 0
		for _, m := range matched {
			if s := strings.TrimSpace(line[m[0]:m[1]]); s != "" {
				out = append(out, s)
			}
			end = m[1]
		}
		if rest := strings.TrimSpace(line[end:]); rest != "" && tokenPattern.MatchString(rest) {
			out = append(out, rest)
		}
	}
	return out
}

func (g *Generator) tokens(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := g.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "which", "who", "how", "does", "do", "did", "my", "i", "me", "we", "our", "you", "your",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
