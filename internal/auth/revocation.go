package auth

import "sync"

// RevocationSet remembers the identifiers of revoked tokens. It only
// grows; entries live for the lifetime of the process, which matches the
// maximum lifetime of the tokens they invalidate plus slack.
type RevocationSet struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewRevocationSet returns an empty set.
func NewRevocationSet() *RevocationSet {
	return &RevocationSet{ids: make(map[string]struct{})}
}

// Add marks a token identifier as revoked. Idempotent.
func (s *RevocationSet) Add(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	s.ids[id] = struct{}{}
	s.mu.Unlock()
}

// Contains reports whether the identifier has been revoked.
func (s *RevocationSet) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}
