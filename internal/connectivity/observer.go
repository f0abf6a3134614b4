package connectivity

import "sync"

// Observer reports current network reachability and notifies subscribers when
// connectivity transitions from offline to online.
type Observer interface {
	IsOnline() bool
	OnOnline(fn func())
}

// Static is a manually toggled Observer.
type Static struct {
	mu     sync.Mutex
	online bool
	subs   []func()
}

// NewStatic creates a Static observer with the given initial state.
func NewStatic(online bool) *Static {
	return &Static{online: online}
}

// IsOnline implements Observer.
func (s *Static) IsOnline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// OnOnline implements Observer.
func (s *Static) OnOnline(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// SetOnline updates the state. An offline→online transition fires all
// registered callbacks synchronously.
func (s *Static) SetOnline(online bool) {
	s.mu.Lock()
	transition := online && !s.online
	s.online = online
	subs := append([]func(){}, s.subs...)
	s.mu.Unlock()
	if transition {
		for _, fn := range subs {
			fn()
		}
	}
}
