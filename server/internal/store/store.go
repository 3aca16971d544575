package store

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/guidesense/guidesense/pkg/types"
)

// ErrSpecExists is returned by CreateSpec when an explicit id is taken.
var ErrSpecExists = errors.New("store: guide spec already exists")

// Store is a thread-safe in-memory report history and guide-spec registry.
//
// Reports are grouped by guide-spec id and kept in timestamp order. A
// background goroutine (Run) periodically evicts reports older than the
// retention window; Put trims each guide to maxPerGuide reports.
type Store struct {
	mu          sync.RWMutex
	byGuide     map[int64][]*types.DiagnosisReport // chronological
	byID        map[string]*types.DiagnosisReport
	specs       map[int64]types.GuideSpec
	nextSpecID  int64
	retention   time.Duration
	maxPerGuide int
	now         func() time.Time // injectable for deterministic tests
}

// New creates a Store that keeps reports for retention and at most
// maxPerGuide reports per guide spec.
func New(retention time.Duration, maxPerGuide int) *Store {
	return &Store{
		byGuide:     make(map[int64][]*types.DiagnosisReport),
		byID:        make(map[string]*types.DiagnosisReport),
		specs:       make(map[int64]types.GuideSpec),
		nextSpecID:  1,
		retention:   retention,
		maxPerGuide: maxPerGuide,
		now:         time.Now,
	}
}

// Put stores a report. A report whose ID is already held replaces the
// earlier copy. Callers must not modify r after calling Put.
func (s *Store) Put(r *types.DiagnosisReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byID[r.ID]; ok {
		s.removeLocked(old)
	}

	list := s.byGuide[r.GuideSpecID]
	i := sort.Search(len(list), func(i int) bool { return list[i].Timestamp.After(r.Timestamp) })
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = r

	kept := true
	if over := len(list) - s.maxPerGuide; s.maxPerGuide > 0 && over > 0 {
		for _, old := range list[:over] {
			delete(s.byID, old.ID)
		}
		// A late report older than everything held is trimmed on arrival.
		kept = i >= over
		list = append(list[:0:0], list[over:]...)
	}
	s.byGuide[r.GuideSpecID] = list
	if kept {
		s.byID[r.ID] = r
	}
}

// Get returns the report with the given id.
func (s *Store) Get(id string) (*types.DiagnosisReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	return r, ok
}

// Results returns up to limit reports, newest first. guideSpecID 0 selects
// every guide. limit <= 0 means no limit.
func (s *Store) Results(guideSpecID int64, limit int) []*types.DiagnosisReport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.DiagnosisReport
	if guideSpecID != 0 {
		list := s.byGuide[guideSpecID]
		out = make([]*types.DiagnosisReport, 0, len(list))
		for i := len(list) - 1; i >= 0; i-- {
			out = append(out, list[i])
		}
	} else {
		out = make([]*types.DiagnosisReport, 0, len(s.byID))
		for _, list := range s.byGuide {
			out = append(out, list...)
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Trend returns the trend points of a guide with timestamp at or after
// since, oldest first.
func (s *Store) Trend(guideSpecID int64, since time.Time) []types.TrendPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.byGuide[guideSpecID]
	i := sort.Search(len(list), func(i int) bool { return !list[i].Timestamp.Before(since) })
	out := make([]types.TrendPoint, 0, len(list)-i)
	for _, r := range list[i:] {
		out = append(out, r.Trend())
	}
	return out
}

// KurtosisHistory returns the time-domain kurtosis of every report held for
// a guide, oldest first.
func (s *Store) KurtosisHistory(guideSpecID int64) []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.byGuide[guideSpecID]
	out := make([]float64, len(list))
	for i, r := range list {
		out[i] = r.TimeFeatures.Kurtosis
	}
	return out
}

// Latest returns the newest report of every guide, ordered by guide-spec id.
func (s *Store) Latest() []*types.DiagnosisReport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.DiagnosisReport, 0, len(s.byGuide))
	for _, list := range s.byGuide {
		if len(list) > 0 {
			out = append(out, list[len(list)-1])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GuideSpecID < out[j].GuideSpecID })
	return out
}

// Count returns the total number of reports currently held.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Evict removes reports whose timestamp is older than now minus the
// retention window. It returns the number of reports removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-s.retention)
	removed := 0
	for id, list := range s.byGuide {
		i := sort.Search(len(list), func(i int) bool { return list[i].Timestamp.After(cutoff) })
		if i == 0 {
			continue
		}
		for _, r := range list[:i] {
			delete(s.byID, r.ID)
		}
		removed += i
		if i == len(list) {
			delete(s.byGuide, id)
		} else {
			s.byGuide[id] = append(list[:0:0], list[i:]...)
		}
	}
	return removed
}

// Run starts the background retention loop. It ticks at a hundredth of the
// retention window, between one second and one hour. Run blocks until ctx
// is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := min(max(s.retention/100, time.Second), time.Hour)
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted expired reports", "count", n)
			}
		}
	}
}

func (s *Store) removeLocked(r *types.DiagnosisReport) {
	delete(s.byID, r.ID)
	list := s.byGuide[r.GuideSpecID]
	for i, x := range list {
		if x == r {
			s.byGuide[r.GuideSpecID] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}
