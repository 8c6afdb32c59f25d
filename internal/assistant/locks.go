package assistant

import "sync"

// sessionLocks serialises turns within one conversation session while
// letting different sessions proceed in parallel.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// lock blocks until id is free and returns its release func. An empty id
// is never serialised.
func (s *sessionLocks) lock(id string) func() {
	if id == "" {
		return func() {}
	}

	s.mu.Lock()
	if s.locks == nil {
		s.locks = make(map[string]*sessionLock)
	}
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}
