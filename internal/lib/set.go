package lib

import (
	"sort"
	"sync"
)

// Set is thread-safe and can be passed by value.
type Set[T comparable] struct {
	data map[T]struct{}
	mu   *sync.RWMutex
}

func NewSet[T comparable]() Set[T] {
	return Set[T]{
		data: make(map[T]struct{}),
		mu:   &sync.RWMutex{},
	}
}

// Add inserts elem and reports whether it was not already present.
func (s Set[T]) Add(elem T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[elem]; exists {
		return false
	}
	s.data[elem] = struct{}{}
	return true
}

func (s Set[T]) Remove(elem T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, elem)
}

func (s Set[T]) Contains(elem T) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.data[elem]
	return exists
}

func (s Set[T]) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s Set[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.data)
}

func (s Set[T]) AsSlice() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	elements := make([]T, 0, len(s.data))
	for elem := range s.data {
		elements = append(elements, elem)
	}

	return elements
}

// Sorted returns the elements of a string set in lexical order.
func Sorted(s Set[string]) []string {
	elements := s.AsSlice()
	sort.Strings(elements)
	return elements
}
