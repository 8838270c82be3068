package connectivity

import "sync"

// Manual is a ConnectivitySource driven by explicit Set calls.
type Manual struct {
	mu     sync.Mutex
	online bool
	subs   map[int]func(bool)
	nextID int
}

// NewManual creates a Manual source with the given initial signal.
func NewManual(online bool) *Manual {
	return &Manual{online: online, subs: make(map[int]func(bool))}
}

func (s *Manual) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// Set emits online to every subscriber, even if unchanged.
func (s *Manual) Set(online bool) {
	s.mu.Lock()
	s.online = online
	subs := make([]func(bool), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(online)
	}
}

func (s *Manual) Subscribe(fn func(online bool)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}
