package service

import "sync"

// slotLocks serializes reservation commits per slot key. Requests for
// different keys proceed independently; a global lock would serialize
// unrelated bookings needlessly.
type slotLocks struct {
	mu    sync.Mutex
	locks map[string]*slotLock
}

type slotLock struct {
	mu   sync.Mutex
	refs int
}

func newSlotLocks() *slotLocks {
	return &slotLocks{locks: make(map[string]*slotLock)}
}

// Lock acquires the mutex for the key and returns its unlock function.
// Entries are reference-counted and removed once the last holder leaves,
// so the map does not grow with every slot ever touched.
func (s *slotLocks) Lock(key string) func() {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &slotLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}
