package util

import "sync"

// Set is a mutex-guarded set of comparable values. The zero value is ready
// to use and a Set must not be copied after first use
type Set[K comparable] struct {
	mu    sync.Mutex
	items map[K]struct{}
}

// Add inserts key, returning false if it was already present
func (s *Set[K]) Add(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; ok {
		return false
	}
	if s.items == nil {
		s.items = map[K]struct{}{}
	}
	s.items[key] = struct{}{}
	return true
}

// Remove deletes key, returning false if it was absent
func (s *Set[K]) Remove(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; !ok {
		return false
	}
	delete(s.items, key)
	return true
}

func (s *Set[K]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Items returns a copy of the elements in unspecified order
func (s *Set[K]) Items() []K {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]K, 0, len(s.items))
	for k := range s.items {
		res = append(res, k)
	}
	return res
}
