package tui

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docqa/internal/domain"
)

// RAGPort is the TUI-facing subset of the RAG service.
type RAGPort interface {
	Ask(ctx context.Context, question string) (domain.Answer, error)
}

type answerMsg struct {
	question string
	answer   domain.Answer
	err      error
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	ctx       context.Context
	service   RAGPort
	input     textinput.Model
	viewport  viewport.Model
	answer    *domain.Answer
	results   []domain.SearchResult
	summary   string
	status    string
	cursor    int
	ready     bool
	asking    bool
	lastQuery string
}

// New creates a new TUI model instance.
func New(ctx context.Context, service RAGPort, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{ctx: ctx, service: service, input: ti, viewport: vp, summary: summary, status: "Ready. Ask about your documents."}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) ask(q string) tea.Cmd {
	return func() tea.Msg {
		a, err := m.service.Ask(m.ctx, q)
		return answerMsg{question: q, answer: a, err: err}
	}
}

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2                                    // header + summary
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		reserved += answerHeight
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case answerMsg:
		m.asking = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.answer = nil
			m.results = nil
		} else {
			a := msg.answer
			m.answer = &a
			m.results = a.Context
			m.cursor = 0
			m.lastQuery = msg.question
			m.status = fmt.Sprintf("Answered %q from %d passages", msg.question, len(a.Context))
		}
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.asking {
				m.asking = true
				m.status = fmt.Sprintf("Thinking about %q...", q)
				m.input.SetValue("")
				return m, m.ask(q)
			}
		case "down":
			if len(m.results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.results)
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		case "up":
			if len(m.results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout, the answer and the current context passage.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Document Q&A")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	answer := answerStyle.Width(max(20, m.viewport.Width-2)).Render(m.renderAnswer())
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + answer + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderAnswer() string {
	if m.answer == nil {
		return "No answer yet."
	}
	var sb strings.Builder
	sb.WriteString(m.answer.Text)
	if len(m.answer.Sources) > 0 {
		sb.WriteString("\n")
		sb.WriteString(metaStyle.Render("Sources: " + strings.Join(m.answer.Sources, ", ")))
	}
	if len(m.answer.Pages) > 0 {
		pages := make([]string, len(m.answer.Pages))
		for i, p := range m.answer.Pages {
			pages[i] = strconv.Itoa(p)
		}
		sb.WriteString("\n")
		sb.WriteString(metaStyle.Render("Pages: " + strings.Join(pages, ", ")))
	}
	return sb.String()
}

func (m Model) renderCurrentResult() string {
	if len(m.results) == 0 {
		return "No passages yet."
	}
	r := m.results[m.cursor]
	title := fmt.Sprintf("Passage %d/%d  score=%.3f  %s", m.cursor+1, len(m.results), r.Score, origin(r.Unit.Metadata))
	body := highlightBestSentence(r.Unit.Content, m.lastQuery)
	return title + "\n\n" + body
}

func origin(md domain.Metadata) string {
	s := path.Base(md.Source)
	if md.Page > 0 {
		s += fmt.Sprintf(" p.%d", md.Page)
	}
	return s + " [" + string(md.Kind) + "]"
}

// answerHeight is the number of lines reserved for the answer pane.
const answerHeight = 6

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	answerStyle    = lipgloss.NewStyle().Padding(0, 1).MaxHeight(answerHeight)
	metaStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?\n]+[.!?\n])`)
)

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := splitSentences(text)
	best := bestSentence(sentences, query)
	if best < 0 {
		return strings.Join(sentences, " ")
	}
	sentences[best] = highlightStyle.Render(sentences[best])
	return strings.Join(sentences, " ")
}

// splitSentences keeps a trailing fragment without final punctuation, so
// clause headings and table facts are never lost.
func splitSentences(text string) []string {
	var out []string
	end := 0
	for _, m := range sentenceRe.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[m[0]:m[1]]); s != "" {
			out = append(out, s)
		}
		end = m[1]
	}
	if rest := strings.TrimSpace(text[end:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

// bestSentence returns the index of the sentence sharing most terms with
// query, or -1 when none shares any.
func bestSentence(sentences []string, query string) int {
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return -1
	}
	bestIdx, bestScore := -1, 0
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	return bestIdx
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
