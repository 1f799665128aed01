package errsim

import (
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Store keeps the set of actively simulated error codes. Entries
// expire so a forgotten simulation cannot linger across test sessions.
type Store struct {
	cache *gocache.Cache
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{
		cache: gocache.New(ttl, 10*time.Minute),
	}
}

// Activate marks the code as simulated until it expires or is
// deactivated.
func (s *Store) Activate(code string) {
	s.cache.SetDefault(code, time.Now().UTC())
}

// Deactivate removes the simulation for the code.
func (s *Store) Deactivate(code string) {
	s.cache.Delete(code)
}

// Active reports whether the code is currently simulated.
func (s *Store) Active(code string) bool {
	_, found := s.cache.Get(code)
	return found
}

// ActiveCode returns one actively simulated code, if any. Iteration
// order is not defined, but only one simulation is usually active.
func (s *Store) ActiveCode() (string, bool) {
	for code := range s.cache.Items() {
		return code, true
	}
	return "", false
}

// List returns the actively simulated codes in sorted order.
func (s *Store) List() []string {
	items := s.cache.Items()
	codes := make([]string, 0, len(items))
	for code := range items {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
