package chat

import (
	"time"

	"github.com/google/uuid"
)

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

const (
	DefaultThreadTitle = "New Thread"
	SummaryLength      = 50
	TitleLength        = 30
	ellipsis           = "..."
)

type Message struct {
	ID        string    `json:"id"` // UUID
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	CreatedAt time.Time `json:"created_at"`
}

func NewMessage(sender Sender, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Content:   content,
		Sender:    sender,
		CreatedAt: time.Now(),
	}
}

type Thread struct {
	ID        string    `json:"id"` // UUID
	Title     string    `json:"title"`
	Summary   string    `json:"summary"` // Preview of the latest message
	CreatedAt time.Time `json:"created_at"`
	Messages  []Message `json:"messages"`
}

// HasMessages reports whether anything has been said in the thread yet.
func (t Thread) HasMessages() bool {
	return len(t.Messages) > 0
}

func (t Thread) clone() Thread {
	c := t
	c.Messages = append([]Message(nil), t.Messages...)
	return c
}

// Truncate shortens s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + ellipsis
}
