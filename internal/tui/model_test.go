package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gwi.com/assistant/internal/chat"
	"gwi.com/assistant/internal/dispatch"
	"gwi.com/assistant/internal/reveal"
	"gwi.com/assistant/internal/session"
)

type stubDispatcher struct {
	mu      sync.Mutex
	result  dispatch.Result
	queries []string
}

func (s *stubDispatcher) Dispatch(_ context.Context, _, query string) dispatch.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	return s.result
}

func (s *stubDispatcher) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

func newTestModel(t *testing.T, d dispatch.Dispatcher) (Model, *session.Controller) {
	t.Helper()
	ctrl := session.NewController(chat.NewThreadStore(), d, reveal.NewEngine(8, time.Millisecond),
		session.StaticIdentity("deepak.mehta"), zaptest.NewLogger(t))
	t.Cleanup(ctrl.Close)
	m := New(context.Background(), ctrl, Options{MarkdownStyle: "notty"})
	return update(m, tea.WindowSizeMsg{Width: 120, Height: 40}), ctrl
}

func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func press(m Model, k tea.KeyType) (Model, tea.Cmd) {
	next, cmd := m.Update(tea.KeyMsg{Type: k})
	return next.(Model), cmd
}

func typeText(m Model, s string) Model {
	for _, r := range s {
		m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

// collect runs cmd, expanding batches, and returns the messages it produced.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return []tea.Msg{msg}
	}
	var out []tea.Msg
	for _, c := range batch {
		out = append(out, collect(c)...)
	}
	return out
}

func TestEmptyThreadShowsGreeting(t *testing.T) {
	m, ctrl := newTestModel(t, &stubDispatcher{})

	view := m.View()
	assert.Contains(t, view, "How can I help you today?")
	for _, p := range ctrl.SuggestedPrompts() {
		assert.Contains(t, view, p)
	}
	assert.Contains(t, view, chat.DefaultThreadTitle)
}

func TestSuggestedPromptSeedsComposer(t *testing.T) {
	d := &stubDispatcher{}
	m, ctrl := newTestModel(t, d)

	m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'2'}, Alt: true})
	assert.Equal(t, ctrl.SuggestedPrompts()[1], m.input.Value())
	assert.Equal(t, ctrl.SuggestedPrompts()[1], ctrl.Draft())
	assert.Zero(t, d.count())
}

func TestBlankEnterIsIgnored(t *testing.T) {
	d := &stubDispatcher{}
	m, _ := newTestModel(t, d)

	m = typeText(m, "   ")
	_, cmd := press(m, tea.KeyEnter)
	assert.Nil(t, cmd)
	assert.Zero(t, d.count())
}

func TestSendShowsRevealedReply(t *testing.T) {
	d := &stubDispatcher{result: dispatch.Success("Dealer seven has three open invoices.")}
	m, ctrl := newTestModel(t, d)

	m = typeText(m, "Which dealers owe us?")
	m, cmd := press(m, tea.KeyEnter)
	require.NotNil(t, cmd)
	assert.Empty(t, m.input.Value())

	var reply *replyMsg
	for _, msg := range collect(cmd) {
		if r, ok := msg.(replyMsg); ok {
			reply = &r
		}
	}
	require.NotNil(t, reply)
	require.NoError(t, reply.err)
	require.NotNil(t, reply.exchange)
	assert.Equal(t, dispatch.KindSuccess, reply.exchange.Outcome)
	m = update(m, *reply)

	require.Eventually(t, func() bool {
		_, revealing := ctrl.Revealing()
		return !revealing
	}, time.Second, 5*time.Millisecond)
	m = update(m, revealMsg{})

	view := m.View()
	assert.Contains(t, view, "Which dealers owe us?")
	assert.Contains(t, view, "open invoices")
	assert.NotContains(t, view, "How can I help you today?")
	assert.Equal(t, []string{"Which dealers owe us?"}, d.queries)

	active, ok := ctrl.ActiveThread()
	require.True(t, ok)
	assert.Equal(t, "Which dealers owe us?", active.Title)
}

func TestUnavailableShowsApology(t *testing.T) {
	d := &stubDispatcher{result: dispatch.Unavailable(errors.New("connection refused"))}
	m, _ := newTestModel(t, d)

	m = typeText(m, "hello")
	m, cmd := press(m, tea.KeyEnter)
	for _, msg := range collect(cmd) {
		m = update(m, msg)
	}
	assert.Contains(t, m.View(), "assist with that")
}

func TestThreadNavigation(t *testing.T) {
	m, ctrl := newTestModel(t, &stubDispatcher{})

	m, _ = press(m, tea.KeyCtrlN)
	m, _ = press(m, tea.KeyCtrlN)
	threads := ctrl.Threads()
	require.Len(t, threads, 3)
	active, _ := ctrl.ActiveThread()
	assert.Equal(t, threads[0].ID, active.ID)

	m, _ = press(m, tea.KeyCtrlDown)
	active, _ = ctrl.ActiveThread()
	assert.Equal(t, threads[1].ID, active.ID)

	m, _ = press(m, tea.KeyCtrlUp)
	m, _ = press(m, tea.KeyCtrlUp)
	active, _ = ctrl.ActiveThread()
	assert.Equal(t, threads[0].ID, active.ID)

	m, _ = press(m, tea.KeyCtrlX)
	require.Len(t, ctrl.Threads(), 2)
	active, _ = ctrl.ActiveThread()
	assert.Equal(t, threads[1].ID, active.ID)

	m, _ = press(m, tea.KeyCtrlX)
	m, _ = press(m, tea.KeyCtrlX)
	assert.Empty(t, ctrl.Threads())
	assert.Contains(t, m.View(), "No thread selected")

	_, cmd := press(typeText(m, "anyone there?"), tea.KeyEnter)
	assert.Nil(t, cmd)
}

func TestRenameAndFilter(t *testing.T) {
	m, ctrl := newTestModel(t, &stubDispatcher{})
	m = typeText(m, "half-typed")

	m, _ = press(m, tea.KeyCtrlR)
	assert.Equal(t, modeRename, m.mode)
	assert.Equal(t, chat.DefaultThreadTitle, m.input.Value())
	m.input.SetValue("")
	m = typeText(m, "Dealer dues")
	m, _ = press(m, tea.KeyEnter)
	assert.Equal(t, modeCompose, m.mode)
	assert.Equal(t, "half-typed", m.input.Value())
	active, _ := ctrl.ActiveThread()
	assert.Equal(t, "Dealer dues", active.Title)

	m, _ = press(m, tea.KeyCtrlF)
	assert.Equal(t, modeFilter, m.mode)
	m = typeText(m, "zzz")
	assert.Equal(t, "zzz", ctrl.Filter())
	assert.Empty(t, ctrl.Threads())
	assert.Contains(t, m.View(), "no threads")

	m, _ = press(m, tea.KeyEsc)
	assert.Equal(t, modeCompose, m.mode)
	assert.Empty(t, ctrl.Filter())
	assert.Len(t, ctrl.Threads(), 1)
	assert.Equal(t, "half-typed", m.input.Value())
}

func TestQuit(t *testing.T) {
	m, _ := newTestModel(t, &stubDispatcher{})
	_, cmd := press(m, tea.KeyCtrlC)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestResizeIgnoresDegenerateSizes(t *testing.T) {
	m, _ := newTestModel(t, &stubDispatcher{})
	m = update(m, tea.WindowSizeMsg{Width: 0, Height: 0})
	assert.Equal(t, 120, m.width)
	assert.Equal(t, 40, m.height)
	assert.NotEmpty(t, m.View())
}
