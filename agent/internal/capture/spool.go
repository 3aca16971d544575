package capture

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/guidesense/guidesense/agent/internal/config"
	"github.com/guidesense/guidesense/pkg/waveform"
)

// defaultSettle is how long a spool file must stay unmodified before it is
// read. Data loggers usually write a capture in several chunks.
const defaultSettle = 500 * time.Millisecond

// maxSeen bounds the processed-file index kept when no archive directory
// is set. pruneEvery is how often entries for vanished files are dropped.
const (
	defaultMaxSeen = 4096
	pruneEvery     = time.Minute
)

type spoolCapturer struct {
	src        config.Source
	maxSamples int
	now        func() time.Time
	settle     time.Duration

	// seen maps processed paths to their modification time so unchanged
	// files are not analysed twice when no archive directory is set.
	seen    map[string]time.Time
	maxSeen int
}

// Run processes files already present in the spool directory, then watches
// it for new ones until ctx is cancelled.
func (s *spoolCapturer) Run(ctx context.Context, out chan<- *Capture) error {
	if s.settle <= 0 {
		s.settle = defaultSettle
	}
	s.seen = make(map[string]time.Time)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("capture %q: %w", s.src.ID, err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.src.Path); err != nil {
		return fmt.Errorf("capture %q: watch %s: %w", s.src.ID, s.src.Path, err)
	}
	if s.src.ArchiveDir != "" {
		if err := os.MkdirAll(s.src.ArchiveDir, 0o755); err != nil {
			return fmt.Errorf("capture %q: create archive dir: %w", s.src.ID, err)
		}
	}
	slog.Info("capture: watching spool", "source", s.src.ID, "path", s.src.Path)

	if err := s.backlog(ctx, out); err != nil {
		return nil // context cancelled while draining
	}

	ticker := time.NewTicker(s.settle / 2)
	defer ticker.Stop()
	pending := make(map[string]time.Time)
	lastPrune := s.now()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				delete(s.seen, event.Name)
				delete(pending, event.Name)
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !eligible(event.Name) {
				continue
			}
			pending[event.Name] = s.now()

		case <-ticker.C:
			now := s.now()
			if now.Sub(lastPrune) >= pruneEvery {
				s.prune()
				lastPrune = now
			}
			ready := make([]string, 0, len(pending))
			for path, last := range pending {
				if now.Sub(last) >= s.settle {
					ready = append(ready, path)
				}
			}
			sort.Strings(ready)
			for _, path := range ready {
				delete(pending, path)
				if !s.process(ctx, path, out) {
					return nil
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("capture: spool watcher error", "source", s.src.ID, "err", err)
		}
	}
}

// backlog processes files present before the watch started, oldest name
// first. PHM captures are numbered so lexical order is capture order.
func (s *spoolCapturer) backlog(ctx context.Context, out chan<- *Capture) error {
	entries, err := os.ReadDir(s.src.Path)
	if err != nil {
		slog.Warn("capture: read spool dir", "source", s.src.ID, "err", err)
		return nil
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(s.src.Path, e.Name())
		if !eligible(path) {
			continue
		}
		if !s.process(ctx, path, out) {
			return ctx.Err()
		}
	}
	return nil
}

// process decodes one spool file and delivers the resulting capture.
// It reports false only when ctx was cancelled before delivery.
func (s *spoolCapturer) process(ctx context.Context, path string, out chan<- *Capture) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return true // removed or replaced by a directory since the event
	}
	if mod, ok := s.seen[path]; ok && mod.Equal(info.ModTime()) {
		return true
	}
	s.seen[path] = info.ModTime()

	c := s.read(path)
	if c.Err != nil {
		slog.Warn("capture: spool file rejected", "source", s.src.ID, "path", path, "err", c.Err)
	} else {
		slog.Debug("capture: spool file read", "source", s.src.ID, "path", path, "samples", len(c.Sample.Samples))
	}
	if !send(ctx, out, c) {
		return false
	}
	s.archive(path)
	return true
}

func (s *spoolCapturer) read(path string) *Capture {
	now := s.now()
	f, err := os.Open(path)
	if err != nil {
		return failed(s.src, path, now, fmt.Errorf("capture %q: %w", s.src.ID, err))
	}
	defer f.Close()

	w, err := waveform.Decode(f, decodeOptions(s.src, s.maxSamples))
	if err != nil {
		return failed(s.src, path, now, fmt.Errorf("capture %q: %s: %w", s.src.ID, filepath.Base(path), err))
	}
	return newCapture(s.src, path, now, w)
}

// archive moves a processed file out of the spool when archive_dir is set.
func (s *spoolCapturer) archive(path string) {
	if s.src.ArchiveDir == "" {
		return
	}
	dst := filepath.Join(s.src.ArchiveDir, filepath.Base(path))
	if err := os.Rename(path, dst); err != nil {
		slog.Warn("capture: archive failed", "source", s.src.ID, "path", path, "err", err)
		return
	}
	delete(s.seen, path)
}

// prune drops index entries for files no longer in the spool, then evicts
// the oldest modification times while the index exceeds its cap.
func (s *spoolCapturer) prune() {
	for path := range s.seen {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			delete(s.seen, path)
		}
	}
	limit := s.maxSeen
	if limit <= 0 {
		limit = defaultMaxSeen
	}
	if over := len(s.seen) - limit; over > 0 {
		paths := make([]string, 0, len(s.seen))
		for path := range s.seen {
			paths = append(paths, path)
		}
		sort.Slice(paths, func(i, j int) bool { return s.seen[paths[i]].Before(s.seen[paths[j]]) })
		for _, path := range paths[:over] {
			delete(s.seen, path)
		}
	}
}

// eligible skips hidden files and the temporary names editors and copy
// tools use while a file is still being written.
func eligible(path string) bool {
	name := filepath.Base(path)
	switch {
	case strings.HasPrefix(name, "."),
		strings.HasSuffix(name, "~"),
		strings.HasSuffix(name, ".tmp"),
		strings.HasSuffix(name, ".part"):
		return false
	}
	return true
}

func send(ctx context.Context, out chan<- *Capture, c *Capture) bool {
	select {
	case out <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
