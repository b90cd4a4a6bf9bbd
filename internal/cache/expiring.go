package cache

import (
	"sync"
	"time"
)

// ExpiringSet remembers keys until their deadline. Unlike LRUCache it is
// never bounded by size: a key only leaves the set once it has expired, so
// it is safe for data that must not be forgotten early, such as revoked
// session ids.
type ExpiringSet struct {
	mu    sync.Mutex
	items map[string]time.Time
	now   func() time.Time
}

var _ Cleaner = (*ExpiringSet)(nil)

func NewExpiringSet() *ExpiringSet {
	return &ExpiringSet{items: make(map[string]time.Time), now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (s *ExpiringSet) WithClock(now func() time.Time) *ExpiringSet {
	s.now = now
	return s
}

// Add keeps key until expiresAt. A later deadline for the same key wins.
func (s *ExpiringSet) Add(key string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.items[key]; ok && cur.After(expiresAt) {
		return
	}
	s.items[key] = expiresAt
}

// Contains reports whether key was added and has not yet expired.
func (s *ExpiringSet) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.items[key]
	if !ok {
		return false
	}
	if s.now().After(exp) {
		delete(s.items, key)
		return false
	}
	return true
}

func (s *ExpiringSet) CleanExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for k, exp := range s.items {
		if now.After(exp) {
			delete(s.items, k)
			removed++
		}
	}
	return removed
}

func (s *ExpiringSet) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
