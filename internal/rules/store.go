package rules

import "sync/atomic"

// Store holds the active RuleSet. Replacing it is a single pointer swap, so
// a reader sees either the old set or the new one.
type Store struct {
	current atomic.Pointer[RuleSet]
}

// NewStore returns a store holding set.
func NewStore(set *RuleSet) *Store {
	s := &Store{}
	s.current.Store(set)
	return s
}

// Load returns the active set.
func (s *Store) Load() *RuleSet {
	return s.current.Load()
}

// Swap replaces the active set and returns the previous one.
func (s *Store) Swap(set *RuleSet) *RuleSet {
	return s.current.Swap(set)
}
