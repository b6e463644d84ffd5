package spool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	termerrors "github.com/Aman-CERP/termsearch/internal/errors"
	"github.com/Aman-CERP/termsearch/internal/notify"
)

type fakeProcessor struct {
	mu    sync.Mutex
	got   []string // first node id of each notification
	errFn func(n *notify.Notification) error
}

func (f *fakeProcessor) Process(_ context.Context, n *notify.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(n.Body.Nodes) > 0 {
		f.got = append(f.got, n.Body.Nodes[0].ID)
	}
	if f.errFn != nil {
		return f.errFn(n)
	}
	return nil
}

func (f *fakeProcessor) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.got...)
}

func writeNotification(t *testing.T, dir, name, nodeID string, modTime time.Time) {
	t.Helper()
	n := notify.Notification{
		Type: notify.NodeSavedEvent,
		Body: notify.Body{Nodes: []notify.Node{notify.NewNode(nodeID, "Concept", "g1")}},
	}
	data, err := json.Marshal(n)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	if !modTime.IsZero() {
		require.NoError(t, os.Chtimes(path, modTime, modTime))
	}
}

func newTestSpool(t *testing.T, p Processor) *Spool {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "spool"), p, Options{PollInterval: 50 * time.Millisecond})
	require.NoError(t, err)
	return s
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// =============================================================================
// Sweep
// =============================================================================

func TestSweep_ProcessesOldestFirstAndMovesToDone(t *testing.T) {
	// Given: two settled files, the later name being older
	p := &fakeProcessor{}
	s := newTestSpool(t, p)
	base := time.Now().Add(-time.Hour)
	writeNotification(t, s.Dir(), "a.json", "second", base.Add(time.Minute))
	writeNotification(t, s.Dir(), "b.json", "first", base)

	// When: sweeping
	s.Sweep(context.Background())

	// Then: processed in modification order and archived
	assert.Equal(t, []string{"first", "second"}, p.seen())
	assert.True(t, exists(filepath.Join(s.Dir(), DoneDir, "a.json")))
	assert.True(t, exists(filepath.Join(s.Dir(), DoneDir, "b.json")))
	assert.False(t, exists(filepath.Join(s.Dir(), "a.json")))
	assert.Equal(t, Stats{Processed: 2}, s.Stats())
}

func TestSweep_SkipsNonCandidatesAndUnsettledFiles(t *testing.T) {
	p := &fakeProcessor{}
	s, err := New(t.TempDir(), p, Options{Settle: time.Hour})
	require.NoError(t, err)

	writeNotification(t, s.Dir(), "fresh.json", "fresh", time.Time{})
	writeNotification(t, s.Dir(), ".hidden.json", "hidden", time.Now().Add(-2*time.Hour))
	writeNotification(t, s.Dir(), "note.txt", "txt", time.Now().Add(-2*time.Hour))

	s.Sweep(context.Background())

	assert.Empty(t, p.seen())
	assert.True(t, exists(filepath.Join(s.Dir(), "fresh.json")))
}

func TestSweep_InvalidFileGoesToFailedWithReport(t *testing.T) {
	// Given: a file that is not JSON
	p := &fakeProcessor{}
	s := newTestSpool(t, p)
	path := filepath.Join(s.Dir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o644))
	old := time.Now().Add(-time.Minute)
	require.NoError(t, os.Chtimes(path, old, old))

	// When: sweeping
	s.Sweep(context.Background())

	// Then: it is quarantined with a JSON error report
	assert.Empty(t, p.seen())
	assert.True(t, exists(filepath.Join(s.Dir(), FailedDir, "broken.json")))

	report, err := os.ReadFile(filepath.Join(s.Dir(), FailedDir, "broken.json.err"))
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(report, &body))
	assert.Equal(t, termerrors.ErrCodeInvalidInput, body["code"])
	assert.Equal(t, Stats{Failed: 1}, s.Stats())
}

func TestSweep_RetryableFailureStaysForNextSweep(t *testing.T) {
	// Given: a processor that is unavailable once
	calls := 0
	p := &fakeProcessor{errFn: func(*notify.Notification) error {
		calls++
		if calls == 1 {
			return termerrors.UnavailableError("circuit open", nil)
		}
		return nil
	}}
	s := newTestSpool(t, p)
	writeNotification(t, s.Dir(), "n.json", "c1", time.Now().Add(-time.Minute))

	// When: sweeping twice
	s.Sweep(context.Background())
	assert.True(t, exists(filepath.Join(s.Dir(), "n.json")), "left in place after a retryable error")
	s.Sweep(context.Background())

	// Then: the second sweep succeeds
	assert.True(t, exists(filepath.Join(s.Dir(), DoneDir, "n.json")))
	assert.Equal(t, Stats{Processed: 1, Deferred: 1}, s.Stats())
}

func TestSweep_DeferredFileHoldsBackNewerFiles(t *testing.T) {
	// Given: an older file the processor cannot apply the first time
	failed := false
	p := &fakeProcessor{errFn: func(n *notify.Notification) error {
		if n.Body.Nodes[0].ID == "first" && !failed {
			failed = true
			return termerrors.UnavailableError("index unavailable", nil)
		}
		return nil
	}}
	s := newTestSpool(t, p)
	now := time.Now()
	writeNotification(t, s.Dir(), "1-save.json", "first", now.Add(-2*time.Minute))
	writeNotification(t, s.Dir(), "2-next.json", "second", now.Add(-time.Minute))

	// When: the first sweep defers the older file
	s.Sweep(context.Background())

	// Then: the newer file is not applied ahead of it
	assert.Equal(t, []string{"first"}, p.seen())
	assert.True(t, exists(filepath.Join(s.Dir(), "2-next.json")))
	assert.Equal(t, Stats{Deferred: 1}, s.Stats())

	// When: the next sweep succeeds
	s.Sweep(context.Background())

	// Then: both are applied in order
	assert.Equal(t, []string{"first", "first", "second"}, p.seen())
	assert.True(t, exists(filepath.Join(s.Dir(), DoneDir, "1-save.json")))
	assert.True(t, exists(filepath.Join(s.Dir(), DoneDir, "2-next.json")))
	assert.Equal(t, Stats{Processed: 2, Deferred: 1}, s.Stats())
}

func TestSweep_PermanentFailureGoesToFailed(t *testing.T) {
	p := &fakeProcessor{errFn: func(*notify.Notification) error {
		return termerrors.New(termerrors.ErrCodeDispatchFailed, "graph g1 failed", nil)
	}}
	s := newTestSpool(t, p)
	writeNotification(t, s.Dir(), "n.json", "c1", time.Now().Add(-time.Minute))

	s.Sweep(context.Background())

	assert.True(t, exists(filepath.Join(s.Dir(), FailedDir, "n.json")))
	assert.True(t, exists(filepath.Join(s.Dir(), FailedDir, "n.json.err")))
}

// =============================================================================
// Run
// =============================================================================

func TestRun_PicksUpNewFiles(t *testing.T) {
	// Given: a running spool with no settle delay
	p := &fakeProcessor{}
	s, err := New(t.TempDir(), p, Options{PollInterval: 50 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// When: a file is renamed into place
	tmp := filepath.Join(s.Dir(), ".incoming")
	writeNotification(t, s.Dir(), ".incoming", "c42", time.Time{})
	require.NoError(t, os.Rename(tmp, filepath.Join(s.Dir(), "c42.json")))

	// Then: it is processed either by fsnotify or by the next sweep
	assert.Eventually(t, func() bool {
		return exists(filepath.Join(s.Dir(), DoneDir, "c42.json"))
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"c42"}, p.seen())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("spool did not stop")
	}
}

func TestNew_RequiresProcessor(t *testing.T) {
	_, err := New(t.TempDir(), nil, Options{})
	assert.Error(t, err)
}

func TestOptions_WithDefaults(t *testing.T) {
	o := Options{Settle: -time.Second}.WithDefaults()
	assert.Equal(t, DefaultOptions().PollInterval, o.PollInterval)
	assert.Zero(t, o.Settle)
}

func TestIsCandidate(t *testing.T) {
	assert.True(t, isCandidate("/x/y/n.json"))
	assert.False(t, isCandidate("/x/y/.n.json"))
	assert.False(t, isCandidate("n.json.tmp"))
	assert.False(t, isCandidate("n.json.err"))
}
