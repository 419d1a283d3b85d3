package core

import (
	"sort"
	"sync"
)

type SignalID uint64

type slot[T any] struct {
	id    SignalID
	order float32
	fn    func(T)
}

// Signal is an ordered list of callbacks. Lower order runs first; equal
// orders run in subscription order. Safe to trigger from any goroutine.
type Signal[T any] struct {
	mu    sync.Mutex
	next  SignalID
	slots []slot[T]
}

func (s *Signal[T]) Notify(fn func(T), order float32) SignalID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	s.slots = append(s.slots, slot[T]{id: s.next, order: order, fn: fn})
	sort.SliceStable(s.slots, func(i, j int) bool {
		return s.slots[i].order < s.slots[j].order
	})
	return s.next
}

func (s *Signal[T]) Remove(id SignalID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sl := range s.slots {
		if sl.id == id {
			s.slots = append(s.slots[:i], s.slots[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Signal[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

// Trigger calls every subscriber with v. Callbacks may subscribe or
// unsubscribe while running; changes apply to the next trigger.
func (s *Signal[T]) Trigger(v T) {
	s.mu.Lock()
	slots := make([]slot[T], len(s.slots))
	copy(slots, s.slots)
	s.mu.Unlock()

	for _, sl := range slots {
		sl.fn(v)
	}
}
