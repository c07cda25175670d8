package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dgallion1/coursegest/internal/corpus"
	"github.com/dgallion1/coursegest/internal/query"
)

// Handler is the TUI-facing subset of the query orchestrator.
type Handler interface {
	Handle(ctx context.Context, line string) (*query.Response, error)
}

type responseMsg struct {
	resp *query.Response
	err  error
}

// Model is the Bubble Tea model for the question/quiz REPL.
type Model struct {
	ctx      context.Context
	handler  Handler
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	history  []string
	summary  string
	status   string
	busy     bool
	ready    bool
}

// New creates the REPL model. summary is shown under the header.
func New(ctx context.Context, h Handler, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "Q> "
	ti.Placeholder = "Ask a question, or /quiz chapters 1-3 n=5"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = statusStyle

	return Model{
		ctx:      ctx,
		handler:  h,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		summary:  summary,
		status:   "Ready. Type exit to quit.",
	}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and response events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, fh := historyBoxStyle.GetFrameSize()
		_, qh := inputBoxStyle.GetFrameSize()
		// header, summary, status and the input line
		reserved := 4 + qh + fh
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.Type {
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			if line == "" || m.busy {
				return m, nil
			}
			switch strings.ToLower(line) {
			case "exit", "quit", ":q":
				return m, tea.Quit
			}
			m.input.Reset()
			m.history = append(m.history, promptStyle.Render("Q> ")+line)
			m.busy = true
			m.status = "Thinking..."
			m.refresh()
			return m, tea.Batch(m.spinner.Tick, m.submit(line))
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case responseMsg:
		m.busy = false
		if msg.err != nil {
			m.history = append(m.history, errorStyle.Render("Error: "+msg.err.Error()))
			m.status = "Request failed."
		} else {
			m.history = append(m.history, render(msg.resp))
			m.status = "Ready."
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit(line string) tea.Cmd {
	return func() tea.Msg {
		resp, err := m.handler.Handle(m.ctx, line)
		return responseMsg{resp: resp, err: err}
	}
}

func (m *Model) refresh() {
	if len(m.history) == 0 {
		m.viewport.SetContent(hintStyle.Render("No questions yet."))
		return
	}
	m.viewport.SetContent(strings.Join(m.history, "\n\n"))
	m.viewport.GotoBottom()
}

// View renders the header, history, input line and status.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("coursegest")
	summary := hintStyle.Render(m.summary)
	status := statusStyle.Render(m.status)
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + summary + "\n" +
		historyBoxStyle.Render(m.viewport.View()) + "\n" +
		inputBoxStyle.Render(m.input.View()) + "\n" + status
}

// render formats a response the way the line-mode REPL prints it.
func render(resp *query.Response) string {
	if resp == nil {
		return ""
	}
	if resp.Quiz != nil {
		if resp.Quiz.NoMatch {
			return resp.Quiz.Message
		}
		data, err := json.MarshalIndent(resp.Quiz.Quiz, "", "  ")
		if err != nil {
			return errorStyle.Render("Error: " + err.Error())
		}
		return string(data)
	}
	if resp.Answer == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(resp.Answer.Text)
	if cites := citations(resp.Answer.Sources); cites != "" {
		b.WriteString("\n")
		b.WriteString(hintStyle.Render("Sources: " + cites))
	}
	return b.String()
}

// citations lists distinct citations in retrieval order.
func citations(chunks []corpus.Chunk) string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range chunks {
		cite := c.Citation()
		if seen[cite] {
			continue
		}
		seen[cite] = true
		out = append(out, cite)
	}
	return strings.Join(out, " ")
}

var (
	headerStyle     = lipgloss.NewStyle().Bold(true)
	hintStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	promptStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	historyBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Summary describes a loaded index for the header line.
func Summary(chunks, files int, family string) string {
	return fmt.Sprintf("Loaded %d chunks from %d files (%s)", chunks, files, family)
}
