// Package session coordinates a user's conversation: it owns the transient
// session state and drives the thread store, the dispatcher and the reveal
// engine in response to user actions.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"gwi.com/assistant/internal/chat"
	"gwi.com/assistant/internal/dispatch"
	"gwi.com/assistant/internal/reveal"
)

const ApologyMessage = "Sorry, I can't assist with that."

var ErrNoActiveThread = errors.New("no active thread")

var DefaultSuggestedPrompts = []string{
	"How many orders were placed this month?",
	"Which dealers have pending payments?",
	"Summarize last week's sales by region",
	"What is the stock level of our top products?",
}

// Exchange describes one settled send: the user's message, the reply that
// was appended for it, and how the dispatch ended.
type Exchange struct {
	ThreadID  string
	Query     chat.Message
	Reply     chat.Message
	Outcome   dispatch.Kind
	Revealing bool
}

type Controller struct {
	mu         sync.Mutex
	store      *chat.ThreadStore
	dispatcher dispatch.Dispatcher
	revealer   *reveal.Engine
	identity   IdentitySource
	logger     *zap.Logger

	pending         bool
	pendingThreadID string
	draft           string
	filter          string
	prompts         []string
}

// NewController starts a session. An empty store gets one default thread,
// which becomes active.
func NewController(store *chat.ThreadStore, dispatcher dispatch.Dispatcher, revealer *reveal.Engine, identity IdentitySource, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store.Len() == 0 {
		t := store.CreateThread()
		_ = store.SetActive(t.ID)
	} else if _, ok := store.Active(); !ok {
		_ = store.SetActive(store.ListThreads("")[0].ID)
	}
	return &Controller{
		store:      store,
		dispatcher: dispatcher,
		revealer:   revealer,
		identity:   identity,
		logger:     logger,
		prompts:    DefaultSuggestedPrompts,
	}
}

// SendMessage appends text to the active thread, asks the answering service
// and appends its reply to the same thread, even if the user has moved to
// another thread meanwhile. Blank text, or a send while another is in flight,
// is ignored and returns a nil Exchange. The only error is a thread that
// disappeared before the exchange could be recorded.
func (c *Controller) SendMessage(ctx context.Context, text string) (*Exchange, error) {
	c.mu.Lock()
	if strings.TrimSpace(text) == "" || c.pending {
		c.mu.Unlock()
		return nil, nil
	}
	thread, ok := c.store.Active()
	if !ok {
		c.mu.Unlock()
		return nil, ErrNoActiveThread
	}
	firstExchange := !thread.HasMessages()

	query := chat.NewMessage(chat.SenderUser, text)
	if err := c.store.AppendMessage(thread.ID, query); err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("failed to append user message: %w", err)
	}
	c.pending = true
	c.pendingThreadID = thread.ID
	c.draft = ""
	c.mu.Unlock()

	defer c.settle()

	log := c.logger.With(zap.String("thread_id", thread.ID), zap.String("message_id", query.ID))
	res := c.dispatch(ctx, text)

	content := ApologyMessage
	if res.OK() {
		content = res.Answer
	} else {
		log.Warn("query not answered",
			zap.Stringer("outcome", res.Kind),
			zap.String("service_message", res.Message),
			zap.Error(res.Err))
	}
	reply := chat.NewMessage(chat.SenderAssistant, content)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.AppendMessage(thread.ID, reply); err != nil {
		log.Warn("thread removed while query was in flight, dropping reply", zap.Error(err))
		return nil, fmt.Errorf("failed to append reply: %w", err)
	}

	ex := &Exchange{
		ThreadID: thread.ID,
		Query:    query,
		Reply:    reply,
		Outcome:  res.Kind,
	}
	if !res.OK() {
		return ex, nil
	}

	if firstExchange {
		if current, err := c.store.GetThread(thread.ID); err == nil && current.Title == chat.DefaultThreadTitle {
			_ = c.store.RenameThread(thread.ID, chat.Truncate(strings.TrimSpace(text), chat.TitleLength))
		}
	}
	if c.store.ActiveID() == thread.ID {
		c.revealer.Start(reply.ID, reply.Content)
		ex.Revealing = true
	}
	log.Debug("query answered", zap.String("reply_id", reply.ID), zap.Bool("revealing", ex.Revealing))
	return ex, nil
}

func (c *Controller) dispatch(ctx context.Context, text string) dispatch.Result {
	identity, err := c.identity.Identity()
	if err != nil {
		return dispatch.Unavailable(fmt.Errorf("failed to resolve identity: %w", err))
	}
	return c.dispatcher.Dispatch(ctx, identity, text)
}

func (c *Controller) settle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = false
	c.pendingThreadID = ""
}

func (c *Controller) StartNewThread() chat.Thread {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.store.CreateThread()
	_ = c.store.SetActive(t.ID)
	c.draft = ""
	c.revealer.Stop()
	c.logger.Debug("started thread", zap.String("thread_id", t.ID))
	return t
}

// DeleteThread removes a thread. When it was active, the most recent
// remaining thread takes over; with none left the session has no active
// thread until StartNewThread is called.
func (c *Controller) DeleteThread(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	wasActive := c.store.ActiveID() == id
	if !c.store.DeleteThread(id) {
		return false
	}
	if wasActive {
		c.revealer.Stop()
	}
	c.logger.Debug("deleted thread", zap.String("thread_id", id), zap.Int("remaining", c.store.Len()))
	return true
}

func (c *Controller) SelectThread(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store.ActiveID() == id {
		return nil
	}
	if err := c.store.SetActive(id); err != nil {
		return err
	}
	c.revealer.Stop()
	return nil
}

func (c *Controller) RenameThread(id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}
	return c.store.RenameThread(id, title)
}

// SelectSuggestedPrompt seeds the draft; it does not send.
func (c *Controller) SelectSuggestedPrompt(text string) {
	c.SetDraft(text)
}

func (c *Controller) SuggestedPrompts() []string {
	return append([]string(nil), c.prompts...)
}

func (c *Controller) SetDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
}

func (c *Controller) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

func (c *Controller) SetFilter(q string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = q
}

func (c *Controller) Filter() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// Threads lists threads matching the current filter, newest first.
func (c *Controller) Threads() []chat.Thread {
	return c.store.ListThreads(c.Filter())
}

func (c *Controller) ActiveThread() (chat.Thread, bool) {
	return c.store.Active()
}

func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// PendingThreadID is the thread the in-flight query is bound to, if any.
func (c *Controller) PendingThreadID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingThreadID
}

// Revealing returns the message being revealed and its latest snapshot.
func (c *Controller) Revealing() (reveal.Snapshot, bool) {
	return c.revealer.Current()
}

func (c *Controller) Close() {
	c.revealer.Close()
}
