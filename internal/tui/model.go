// Package tui is the terminal front end of the assistant: a thread sidebar,
// the active transcript and a composer, all driven through a
// session.Controller.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"gwi.com/assistant/internal/reveal"
	"gwi.com/assistant/internal/session"
)

type inputMode int

const (
	modeCompose inputMode = iota
	modeFilter
	modeRename
)

const composePlaceholder = "Ask about orders, dealers, stock..."

// revealMsg carries a reveal snapshot from the engine goroutine into the
// program loop.
type revealMsg reveal.Snapshot

type replyMsg struct {
	exchange *session.Exchange
	err      error
}

type Options struct {
	// MarkdownStyle is a glamour standard style name: "dark", "light",
	// "notty", ...
	MarkdownStyle string
}

type Model struct {
	ctx  context.Context
	ctrl *session.Controller
	opts Options

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model

	mode     inputMode
	renderer *glamour.TermRenderer
	rendered map[string]string // assistant message id -> rendered markdown
	status   string

	width  int
	height int
}

func New(ctx context.Context, ctrl *session.Controller, opts Options) Model {
	if opts.MarkdownStyle == "" {
		opts.MarkdownStyle = "dark"
	}

	ti := textinput.New()
	ti.Placeholder = composePlaceholder
	ti.CharLimit = 2000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:      ctx,
		ctrl:     ctrl,
		opts:     opts,
		input:    ti,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		help:     help.New(),
		rendered: make(map[string]string),
	}
	m.setRenderer(80)
	m.refresh()
	return m
}

// RevealSink forwards reveal snapshots to a running program. Register it
// with reveal.Engine.OnSnapshot once the program exists.
func RevealSink(p *tea.Program) func(reveal.Snapshot) {
	return func(s reveal.Snapshot) { p.Send(revealMsg(s)) }
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refresh()
		return m, nil

	case revealMsg:
		m.refresh()
		return m, nil

	case replyMsg:
		m.status = ""
		if msg.err != nil {
			m.status = msg.err.Error()
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.ctrl.Pending() {
			m.refresh()
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			return m, tea.Quit
		}
		switch m.mode {
		case modeFilter:
			return m.updateFilter(msg)
		case modeRename:
			return m.updateRename(msg)
		}
		return m.updateCompose(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) updateCompose(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Send):
		return m.send()

	case key.Matches(msg, keys.NewThread):
		m.ctrl.StartNewThread()
		m.input.SetValue("")
		m.refresh()
		return m, nil

	case key.Matches(msg, keys.Delete):
		if t, ok := m.ctrl.ActiveThread(); ok {
			m.ctrl.DeleteThread(t.ID)
		}
		m.refresh()
		return m, nil

	case key.Matches(msg, keys.PrevThread):
		m.step(-1)
		return m, nil

	case key.Matches(msg, keys.NextThread):
		m.step(1)
		return m, nil

	case key.Matches(msg, keys.Filter):
		m.ctrl.SetDraft(m.input.Value())
		m.mode = modeFilter
		m.input.Placeholder = "Filter threads"
		m.input.SetValue(m.ctrl.Filter())
		m.input.CursorEnd()
		return m, nil

	case key.Matches(msg, keys.Rename):
		t, ok := m.ctrl.ActiveThread()
		if !ok {
			return m, nil
		}
		m.ctrl.SetDraft(m.input.Value())
		m.mode = modeRename
		m.input.Placeholder = "Thread title"
		m.input.SetValue(t.Title)
		m.input.CursorEnd()
		return m, nil

	case key.Matches(msg, keys.Prompt):
		prompts := m.ctrl.SuggestedPrompts()
		i := int(msg.Runes[0] - '1')
		if i >= 0 && i < len(prompts) {
			m.ctrl.SelectSuggestedPrompt(prompts[i])
			m.input.SetValue(m.ctrl.Draft())
			m.input.CursorEnd()
		}
		return m, nil

	case msg.Type == tea.KeyPgUp, msg.Type == tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.ctrl.SetDraft(m.input.Value())
	return m, cmd
}

func (m Model) send() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if strings.TrimSpace(text) == "" || m.ctrl.Pending() {
		return m, nil
	}
	if _, ok := m.ctrl.ActiveThread(); !ok {
		m.status = "No thread selected. Press ctrl+n to start one."
		m.refresh()
		return m, nil
	}
	m.input.SetValue("")
	m.status = ""

	ctx, ctrl := m.ctx, m.ctrl
	sendCmd := func() tea.Msg {
		ex, err := ctrl.SendMessage(ctx, text)
		return replyMsg{exchange: ex, err: err}
	}
	return m, tea.Batch(sendCmd, m.spinner.Tick)
}

func (m *Model) step(delta int) {
	threads := m.ctrl.Threads()
	if len(threads) == 0 {
		return
	}
	idx := -1
	if t, ok := m.ctrl.ActiveThread(); ok {
		for i := range threads {
			if threads[i].ID == t.ID {
				idx = i
				break
			}
		}
	}
	next := idx + delta
	if idx == -1 {
		next = 0
	}
	if next < 0 || next >= len(threads) {
		return
	}
	if err := m.ctrl.SelectThread(threads[next].ID); err != nil {
		m.status = err.Error()
	}
	m.refresh()
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Cancel):
		m.ctrl.SetFilter("")
		return m.leaveMode(), nil
	case key.Matches(msg, keys.Send):
		return m.leaveMode(), nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.ctrl.SetFilter(m.input.Value())
	m.refresh()
	return m, cmd
}

func (m Model) updateRename(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Cancel):
		return m.leaveMode(), nil
	case key.Matches(msg, keys.Send):
		if t, ok := m.ctrl.ActiveThread(); ok {
			if err := m.ctrl.RenameThread(t.ID, m.input.Value()); err != nil {
				m.status = err.Error()
			}
		}
		return m.leaveMode(), nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// leaveMode restores the composer with the draft saved on entering the mode.
func (m Model) leaveMode() Model {
	m.mode = modeCompose
	m.input.Placeholder = composePlaceholder
	m.input.SetValue(m.ctrl.Draft())
	m.input.CursorEnd()
	m.refresh()
	return m
}

func (m *Model) resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	m.width, m.height = width, height

	mainWidth := max(width-sidebarWidth-2, 20)
	m.input.Width = mainWidth - 4
	m.help.Width = mainWidth
	m.viewport.Width = mainWidth
	m.viewport.Height = max(height-5, 3) // typing line, input, help, status
	m.setRenderer(mainWidth - 2)
}

func (m *Model) setRenderer(wrap int) {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.opts.MarkdownStyle),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		// Fallback to plain text
		r = nil
	}
	m.renderer = r
	clear(m.rendered)
}

func (m *Model) renderMarkdown(id, content string) string {
	if out, ok := m.rendered[id]; ok {
		return out
	}
	if m.renderer == nil {
		return content
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	out = strings.Trim(out, "\n")
	m.rendered[id] = out
	return out
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.transcript())
	m.viewport.GotoBottom()
}

func greeting(prompts []string) string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render("Hello! How can I help you today?"))
	sb.WriteString("\n\n")
	for i, p := range prompts {
		sb.WriteString(mutedStyle.Render(fmt.Sprintf("alt+%d", i+1)))
		sb.WriteString("  ")
		sb.WriteString(p)
		sb.WriteString("\n")
	}
	return sb.String()
}
