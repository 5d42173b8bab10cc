// Package reveal paces the display of a finished reply so that it appears
// to be typed out, a few characters per tick.
package reveal

import (
	"context"
	"iter"
	"sync"
	"time"
)

const (
	DefaultChunkSize = 4
	DefaultInterval  = 20 * time.Millisecond
)

// Snapshots yields successively longer prefixes of text, chunk runes at a
// time, ending with text itself. Empty text yields a single empty snapshot.
func Snapshots(text string, chunk int) iter.Seq[string] {
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	return func(yield func(string) bool) {
		runes := []rune(text)
		for n := chunk; n < len(runes); n += chunk {
			if !yield(string(runes[:n])) {
				return
			}
		}
		yield(text)
	}
}

type Snapshot struct {
	MessageID string
	Text      string
	Done      bool
}

// Engine plays at most one reveal at a time on a ticker. Starting a new
// reveal cancels the previous one; snapshots of a cancelled reveal are never
// recorded.
type Engine struct {
	mu        sync.Mutex
	chunkSize int
	interval  time.Duration
	sink      func(Snapshot)

	gen     uint64
	cancel  context.CancelFunc
	done    chan struct{}
	current Snapshot
	active  bool
}

func NewEngine(chunkSize int, interval time.Duration) *Engine {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Engine{chunkSize: chunkSize, interval: interval}
}

// OnSnapshot registers a callback invoked after every recorded snapshot. It
// runs on the engine's goroutine, outside the engine lock, and may observe a
// snapshot that was superseded a moment later; Current is authoritative.
func (e *Engine) OnSnapshot(fn func(Snapshot)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink = fn
}

func (e *Engine) Start(messageID, text string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done
	e.current = Snapshot{MessageID: messageID}
	e.active = true

	go e.run(ctx, e.gen, messageID, text, done)
}

// Stop cancels the reveal in progress, if any. It does not wait for the
// ticker goroutine to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

// Close stops the reveal in progress and waits for its goroutine.
func (e *Engine) Close() {
	e.mu.Lock()
	e.stopLocked()
	done := e.done
	e.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Current returns the latest snapshot and whether a reveal is still running.
func (e *Engine) Current() (Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return Snapshot{}, false
	}
	return e.current, true
}

func (e *Engine) stopLocked() {
	e.gen++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.active = false
	e.current = Snapshot{}
}

func (e *Engine) run(ctx context.Context, gen uint64, messageID, text string, done chan struct{}) {
	defer close(done)

	next, stop := iter.Pull(Snapshots(text, e.chunkSize))
	defer stop()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		partial, ok := next()
		if !ok {
			return
		}
		snap := Snapshot{MessageID: messageID, Text: partial, Done: partial == text}

		e.mu.Lock()
		if e.gen != gen {
			e.mu.Unlock()
			return
		}
		e.current = snap
		if snap.Done {
			e.active = false
			e.cancel()
			e.cancel = nil
		}
		sink := e.sink
		e.mu.Unlock()

		if sink != nil {
			sink(snap)
		}
		if snap.Done {
			return
		}
	}
}
