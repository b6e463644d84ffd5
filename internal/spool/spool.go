package spool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	termerrors "github.com/Aman-CERP/termsearch/internal/errors"
	"github.com/Aman-CERP/termsearch/internal/notify"
)

// Subdirectories of the spool directory.
const (
	DoneDir   = "done"
	FailedDir = "failed"
)

// Processor applies one notification. *notify.Processor implements it.
type Processor interface {
	Process(ctx context.Context, n *notify.Notification) error
}

// Options configures a Spool.
type Options struct {
	// PollInterval is the period of the fallback sweep.
	PollInterval time.Duration
	// Settle is how long a file must be unmodified before it is picked up.
	Settle time.Duration
}

// DefaultOptions returns the default spool options.
func DefaultOptions() Options {
	return Options{
		PollInterval: 5 * time.Second,
		Settle:       250 * time.Millisecond,
	}
}

// WithDefaults fills zero fields from DefaultOptions.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.Settle < 0 {
		o.Settle = 0
	}
	return o
}

// Stats counts spool outcomes since start.
type Stats struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Deferred  int `json:"deferred"`
}

// Spool watches a directory and feeds its files to a Processor.
type Spool struct {
	dir       string
	processor Processor
	opts      Options
	now       func() time.Time

	// sweepMu serializes sweeps; fsnotify and the ticker may overlap.
	sweepMu sync.Mutex

	statsMu sync.Mutex
	stats   Stats
}

// New creates a Spool over dir, creating dir and its done/ and failed/
// subdirectories.
func New(dir string, p Processor, opts Options) (*Spool, error) {
	if p == nil {
		return nil, errors.New("spool: processor is required")
	}
	for _, d := range []string{dir, filepath.Join(dir, DoneDir), filepath.Join(dir, FailedDir)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create spool directory %s: %w", d, err)
		}
	}
	return &Spool{
		dir:       dir,
		processor: p,
		opts:      opts.WithDefaults(),
		now:       time.Now,
	}, nil
}

// Dir returns the spool directory.
func (s *Spool) Dir() string {
	return s.dir
}

// Stats returns a snapshot of the outcome counters.
func (s *Spool) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

// Run sweeps once, then keeps sweeping on fsnotify events and on every
// poll interval until ctx is cancelled. If fsnotify cannot be set up the
// spool runs on polling alone.
func (s *Spool) Run(ctx context.Context) error {
	var events <-chan fsnotify.Event
	var watchErrs <-chan error

	fsw, err := fsnotify.NewWatcher()
	if err == nil {
		if addErr := fsw.Add(s.dir); addErr != nil {
			_ = fsw.Close()
			err = addErr
		}
	}
	if err != nil {
		slog.Warn("spool_fsnotify_unavailable",
			slog.String("dir", s.dir),
			slog.String("error", err.Error()),
			slog.Duration("poll_interval", s.opts.PollInterval))
	} else {
		defer func() { _ = fsw.Close() }()
		events = fsw.Events
		watchErrs = fsw.Errors
	}

	slog.Info("spool_started", slog.String("dir", s.dir), slog.Bool("fsnotify", events != nil))

	s.Sweep(ctx)

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	// A burst of events collapses into one sweep after the settle window.
	var settle *time.Timer
	var settleC <-chan time.Time
	defer func() {
		if settle != nil {
			settle.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("spool_stopped", slog.String("dir", s.dir))
			return nil

		case <-ticker.C:
			s.Sweep(ctx)

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !isCandidate(ev.Name) || !ev.Has(fsnotify.Create|fsnotify.Write|fsnotify.Rename) {
				continue
			}
			if settle == nil {
				settle = time.NewTimer(s.opts.Settle)
				settleC = settle.C
			} else {
				settle.Reset(s.opts.Settle)
			}

		case <-settleC:
			s.Sweep(ctx)

		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			slog.Warn("spool_watch_error", slog.String("error", err.Error()))
		}
	}
}

// Sweep processes every settled *.json file in the spool directory,
// oldest first. A deferred file stops the sweep so nothing newer is applied
// before it; the next sweep starts from it again.
func (s *Spool) Sweep(ctx context.Context) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	files, err := s.pending()
	if err != nil {
		slog.Warn("spool_scan_failed", slog.String("dir", s.dir), slog.String("error", err.Error()))
		return
	}

	for _, path := range files {
		if ctx.Err() != nil {
			return
		}
		if !s.processFile(ctx, path) {
			return
		}
	}
}

type pendingFile struct {
	path    string
	modTime time.Time
}

// pending lists settled candidate files ordered by modification time,
// then name.
func (s *Spool) pending() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	cutoff := s.now().Add(-s.opts.Settle)
	var files []pendingFile
	for _, e := range entries {
		if e.IsDir() || !isCandidate(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed since ReadDir
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		files = append(files, pendingFile{path: filepath.Join(s.dir, e.Name()), modTime: info.ModTime()})
	}

	sort.Slice(files, func(i, j int) bool {
		if !files[i].modTime.Equal(files[j].modTime) {
			return files[i].modTime.Before(files[j].modTime)
		}
		return files[i].path < files[j].path
	})

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}

// processFile applies one file and reports whether the sweep may move on
// to the next one.
func (s *Spool) processFile(ctx context.Context, path string) bool {
	name := filepath.Base(path)
	log := slog.With(slog.String("file", name))

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("spool_read_failed", slog.String("error", err.Error()))
			return false
		}
		return true
	}

	n, err := notify.Decode(bytes.NewReader(data))
	if err == nil {
		err = s.processor.Process(ctx, n)
	}

	switch {
	case err == nil:
		if mvErr := os.Rename(path, filepath.Join(s.dir, DoneDir, name)); mvErr != nil {
			log.Error("spool_move_failed", slog.String("error", mvErr.Error()))
		}
		s.count(func(st *Stats) { st.Processed++ })
		log.Debug("spool_file_processed")
		return true

	case termerrors.IsRetryable(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		s.count(func(st *Stats) { st.Deferred++ })
		log.Warn("spool_file_deferred", slog.Any("error", termerrors.FormatForLog(err)))
		return false

	default:
		s.fail(path, err)
		s.count(func(st *Stats) { st.Failed++ })
		log.Warn("spool_file_failed", slog.Any("error", termerrors.FormatForLog(err)))
		return true
	}
}

// fail moves path into failed/ and writes the error report next to it.
func (s *Spool) fail(path string, cause error) {
	name := filepath.Base(path)
	target := filepath.Join(s.dir, FailedDir, name)

	report, err := termerrors.FormatJSON(cause)
	if err != nil {
		report = []byte(cause.Error())
	}
	if err := os.WriteFile(target+".err", append(report, '\n'), 0o644); err != nil {
		slog.Error("spool_report_failed", slog.String("file", name), slog.String("error", err.Error()))
	}
	if err := os.Rename(path, target); err != nil {
		slog.Error("spool_move_failed", slog.String("file", name), slog.String("error", err.Error()))
	}
}

func (s *Spool) count(fn func(*Stats)) {
	s.statsMu.Lock()
	fn(&s.stats)
	s.statsMu.Unlock()
}

// isCandidate reports whether a file name is a spooled notification.
// Hidden files are in-progress writes by convention.
func isCandidate(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(base, ".json") && !strings.HasPrefix(base, ".")
}
