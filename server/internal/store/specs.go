package store

import (
	"fmt"
	"sort"

	"github.com/guidesense/guidesense/pkg/types"
)

// Seed registers the configured guide catalog. Specs keep their ids; later
// CreateSpec calls allocate ids above the highest seeded one.
func (s *Store) Seed(specs []types.GuideSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range specs {
		if g.CreatedAt.IsZero() {
			g.CreatedAt = s.now().UTC()
		}
		s.specs[g.ID] = g
		if g.ID >= s.nextSpecID {
			s.nextSpecID = g.ID + 1
		}
	}
}

// CreateSpec registers a new guide spec. A zero ID is allocated by the
// store; an explicit one must be free.
func (s *Store) CreateSpec(g types.GuideSpec) (types.GuideSpec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g.ID == 0 {
		g.ID = s.nextSpecID
	} else if _, ok := s.specs[g.ID]; ok {
		return types.GuideSpec{}, fmt.Errorf("%w: id %d", ErrSpecExists, g.ID)
	}
	if g.ID >= s.nextSpecID {
		s.nextSpecID = g.ID + 1
	}
	g.CreatedAt = s.now().UTC()
	s.specs[g.ID] = g
	return g, nil
}

// Spec returns the guide spec with the given id.
func (s *Store) Spec(id int64) (types.GuideSpec, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.specs[id]
	return g, ok
}

// Specs returns every registered guide spec ordered by id.
func (s *Store) Specs() []types.GuideSpec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.GuideSpec, 0, len(s.specs))
	for _, g := range s.specs {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
