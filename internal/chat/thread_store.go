package chat

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("thread not found")

// ThreadStore owns every thread of a session, newest first, along with the
// reference to the active one. All reads hand out copies.
type ThreadStore struct {
	mu       sync.RWMutex
	threads  []*Thread
	activeID string
	now      func() time.Time
}

func NewThreadStore() *ThreadStore {
	return &ThreadStore{now: time.Now}
}

func (s *ThreadStore) CreateThread() Thread {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &Thread{
		ID:        uuid.NewString(),
		Title:     DefaultThreadTitle,
		CreatedAt: s.now(),
		Messages:  []Message{},
	}
	s.threads = append([]*Thread{t}, s.threads...)
	return t.clone()
}

// DeleteThread removes the thread and reports whether it existed. If it was
// the active thread, the most recent remaining thread becomes active.
func (s *ThreadStore) DeleteThread(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return false
	}
	s.threads = append(s.threads[:idx], s.threads[idx+1:]...)

	if s.activeID == id {
		s.activeID = ""
		if len(s.threads) > 0 {
			s.activeID = s.threads[0].ID
		}
	}
	return true
}

func (s *ThreadStore) AppendMessage(threadID string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(threadID)
	if t == nil {
		return ErrNotFound
	}
	t.Messages = append(t.Messages, msg)
	t.Summary = Truncate(msg.Content, SummaryLength)
	return nil
}

func (s *ThreadStore) RenameThread(threadID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(threadID)
	if t == nil {
		return ErrNotFound
	}
	t.Title = title
	return nil
}

// ListThreads returns the threads whose title or summary contains filter,
// ignoring case. An empty filter matches everything.
func (s *ThreadStore) ListThreads(filter string) []Thread {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(filter))
	out := make([]Thread, 0, len(s.threads))
	for _, t := range s.threads {
		if needle == "" ||
			strings.Contains(strings.ToLower(t.Title), needle) ||
			strings.Contains(strings.ToLower(t.Summary), needle) {
			out = append(out, t.clone())
		}
	}
	return out
}

func (s *ThreadStore) GetThread(id string) (Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := s.findLocked(id)
	if t == nil {
		return Thread{}, ErrNotFound
	}
	return t.clone(), nil
}

func (s *ThreadStore) SetActive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findLocked(id) == nil {
		return ErrNotFound
	}
	s.activeID = id
	return nil
}

// Active returns the active thread, or false when there are no threads left.
func (s *ThreadStore) Active() (Thread, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := s.findLocked(s.activeID)
	if t == nil {
		return Thread{}, false
	}
	return t.clone(), true
}

func (s *ThreadStore) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

func (s *ThreadStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.threads)
}

func (s *ThreadStore) indexLocked(id string) int {
	for i, t := range s.threads {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s *ThreadStore) findLocked(id string) *Thread {
	if i := s.indexLocked(id); i >= 0 {
		return s.threads[i]
	}
	return nil
}
