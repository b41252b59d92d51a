// Package prompt renders and reads back the grounded question-answering prompt.
package prompt

import "strings"

const (
	contextHeader = "CONTEXT:\n---\n"
	contextFooter = "\n---\nQUESTION: "
	answerCue     = "\n\nANSWER (Based only on the context provided):"
)

// ContextSeparator joins retrieved passages inside the context block.
const ContextSeparator = "\n\n"

// Build renders the prompt sent to the generation model: the retrieved
// passages, the question, and an instruction to answer only from them.
func Build(question string, passages []string) string {
	var sb strings.Builder
	sb.WriteString(contextHeader)
	sb.WriteString(strings.Join(passages, ContextSeparator))
	sb.WriteString(contextFooter)
	sb.WriteString(strings.TrimSpace(question))
	sb.WriteString(answerCue)
	return sb.String()
}

// Parse splits a prompt produced by Build back into its context block and
// question. ok is false when p does not have that shape.
func Parse(p string) (context, question string, ok bool) {
	rest, found := strings.CutPrefix(p, contextHeader)
	if !found {
		return "", "", false
	}
	i := strings.LastIndex(rest, contextFooter)
	if i < 0 {
		return "", "", false
	}
	context = rest[:i]
	question, found = strings.CutSuffix(rest[i+len(contextFooter):], answerCue)
	if !found {
		return "", "", false
	}
	return context, question, true
}
