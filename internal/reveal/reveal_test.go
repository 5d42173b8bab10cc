package reveal

import (
	"slices"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSnapshotsStrictlyGrowToFullText(t *testing.T) {
	texts := []string{
		"Hello",
		"abcd",
		"abcdefgh",
		"a",
		"Total revenue in **Q3** was ₹4.2 cr, up 12% (नमस्ते).",
	}
	for _, text := range texts {
		snaps := slices.Collect(Snapshots(text, 4))
		require.NotEmpty(t, snaps, text)
		assert.Equal(t, text, snaps[len(snaps)-1], text)
		for i := 1; i < len(snaps); i++ {
			assert.Greater(t, utf8.RuneCountInString(snaps[i]), utf8.RuneCountInString(snaps[i-1]))
			assert.True(t, utf8.ValidString(snaps[i]))
		}
	}
}

func TestSnapshotsChunking(t *testing.T) {
	assert.Equal(t, []string{"Hell", "Hello"}, slices.Collect(Snapshots("Hello", 4)))
	assert.Equal(t, []string{"abcd"}, slices.Collect(Snapshots("abcd", 4)))
	assert.Equal(t, []string{"ab", "abcd", "abcde"}, slices.Collect(Snapshots("abcde", 2)))
	assert.Equal(t, []string{""}, slices.Collect(Snapshots("", 4)))
	assert.Equal(t, []string{"abcd", "abcde"}, slices.Collect(Snapshots("abcde", 0)))
}

func TestSnapshotsStopEarly(t *testing.T) {
	var got []string
	for s := range Snapshots("abcdefghijkl", 4) {
		got = append(got, s)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"abcd", "abcdefgh"}, got)
}

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) record(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) finished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps) > 0 && r.snaps[len(r.snaps)-1].Done
}

func (r *recorder) all() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.snaps...)
}

func TestEngineEmitsUntilDone(t *testing.T) {
	e := NewEngine(4, time.Millisecond)
	defer e.Close()
	rec := &recorder{}
	e.OnSnapshot(rec.record)

	e.Start("m1", "The answer is 42.")
	snap, active := e.Current()
	assert.True(t, active)
	assert.Equal(t, "m1", snap.MessageID)

	require.Eventually(t, rec.finished, time.Second, time.Millisecond)

	_, active = e.Current()
	assert.False(t, active)

	snaps := rec.all()
	last := snaps[len(snaps)-1]
	assert.True(t, last.Done)
	assert.Equal(t, "The answer is 42.", last.Text)
	for i := 1; i < len(snaps); i++ {
		assert.Greater(t, len(snaps[i].Text), len(snaps[i-1].Text))
		assert.Equal(t, "m1", snaps[i].MessageID)
	}
}

func TestEngineRestartCancelsPrevious(t *testing.T) {
	e := NewEngine(1, 5*time.Millisecond)
	defer e.Close()
	rec := &recorder{}
	e.OnSnapshot(rec.record)

	e.Start("old", "a fairly long message that will not finish in time")
	time.Sleep(12 * time.Millisecond)
	e.Start("new", "hi")

	require.Eventually(t, rec.finished, time.Second, time.Millisecond)

	snaps := rec.all()
	require.NotEmpty(t, snaps)
	assert.Equal(t, "new", snaps[len(snaps)-1].MessageID)
	assert.Equal(t, "hi", snaps[len(snaps)-1].Text)
	for _, s := range snaps {
		assert.False(t, s.MessageID == "old" && s.Done, "cancelled reveal must not complete")
	}
}

func TestEngineStop(t *testing.T) {
	e := NewEngine(1, time.Hour)
	e.Start("m1", "never shown")
	e.Stop()

	_, active := e.Current()
	assert.False(t, active)
	e.Close()
}
