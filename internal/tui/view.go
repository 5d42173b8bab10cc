package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gwi.com/assistant/internal/chat"
)

func (m Model) View() string {
	pane := lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		m.typingLine(),
		m.input.View(),
		m.statusLine(),
		m.help.View(keys),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, m.sidebar(), pane)
}

func (m Model) sidebar() string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render("Threads"))
	if f := m.ctrl.Filter(); f != "" {
		sb.WriteString(mutedStyle.Render("  /" + f))
	}
	sb.WriteString("\n\n")

	active, _ := m.ctrl.ActiveThread()
	threads := m.ctrl.Threads()
	if len(threads) == 0 {
		sb.WriteString(mutedStyle.Render(" no threads"))
	}
	for _, t := range threads {
		title := chat.Truncate(t.Title, sidebarWidth-4)
		if t.ID == active.ID {
			sb.WriteString(activeThreadStyle.Render("› " + title))
		} else {
			sb.WriteString(threadStyle.Render("  " + title))
		}
		sb.WriteString("\n")
		if t.Summary != "" {
			sb.WriteString(summaryStyle.Render("  " + chat.Truncate(t.Summary, sidebarWidth-6)))
			sb.WriteString("\n")
		}
	}
	return sidebarStyle.Height(max(m.height, 1)).Render(sb.String())
}

// transcript renders the active thread. The message currently being revealed
// shows its latest snapshot instead of the full content.
func (m *Model) transcript() string {
	t, ok := m.ctrl.ActiveThread()
	if !ok {
		return mutedStyle.Render("No thread selected. Press ctrl+n to start one.")
	}
	if !t.HasMessages() {
		return greeting(m.ctrl.SuggestedPrompts())
	}

	snap, revealing := m.ctrl.Revealing()

	var sb strings.Builder
	for i, msg := range t.Messages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		if msg.Sender == chat.SenderUser {
			sb.WriteString(userLabelStyle.Render("You"))
			sb.WriteString("\n")
			sb.WriteString(msg.Content)
			continue
		}
		sb.WriteString(assistantLabelStyle.Render("Assistant"))
		sb.WriteString("\n")
		if revealing && snap.MessageID == msg.ID {
			sb.WriteString(snap.Text)
			continue
		}
		sb.WriteString(m.renderMarkdown(msg.ID, msg.Content))
	}
	return sb.String()
}

func (m Model) typingLine() string {
	t, ok := m.ctrl.ActiveThread()
	if ok && m.ctrl.PendingThreadID() == t.ID {
		return m.spinner.View() + mutedStyle.Render(" Assistant is typing...")
	}
	return ""
}

func (m Model) statusLine() string {
	switch {
	case m.status != "":
		return errorStyle.Render(m.status)
	case m.mode == modeFilter:
		return mutedStyle.Render("filtering threads: enter to keep, esc to clear")
	case m.mode == modeRename:
		return mutedStyle.Render("renaming thread: enter to save, esc to cancel")
	}
	return ""
}
