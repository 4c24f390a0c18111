package dispatch

import "sync"

// DispatcherSharedState is the set of signals every Connector belonging to
// one Dispatcher watches and can trip: a cross-connector pause rendezvous
// and the two shutdown phases. Pause is a closed-channel broadcast combined
// with a counting barrier: every connector must independently observe the
// pause and exit before any of them is released to restart, so a pause
// always brings every connector down and back up together, never just the
// one that tripped it.
type DispatcherSharedState struct {
	mu        sync.Mutex
	paused    bool
	pauseChan chan struct{}

	participants int
	arrived      int
	resumeChan   chan struct{}

	slowOnce     sync.Once
	fastOnce     sync.Once
	slowShutdown chan struct{}
	fastShutdown chan struct{}
}

// NewDispatcherSharedState returns a fresh, unpaused, not-shutting-down
// state.
func NewDispatcherSharedState() *DispatcherSharedState {
	return &DispatcherSharedState{
		pauseChan:    make(chan struct{}),
		resumeChan:   make(chan struct{}),
		slowShutdown: make(chan struct{}),
		fastShutdown: make(chan struct{}),
	}
}

// SetParticipants fixes the number of connectors a pause rendezvous must see
// arrive before it releases them. Called once by a Dispatcher before it
// launches any connector goroutines.
func (s *DispatcherSharedState) SetParticipants(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants = n
}

// PauseChan is closed when any connector requests a cross-connector pause.
// A connector's event loop selects on it to learn it must stop sending and
// exit.
func (s *DispatcherSharedState) PauseChan() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pauseChan
}

// RequestPause trips the pause signal if it is not already tripped. Safe to
// call from any connector goroutine; redundant calls while already paused
// are no-ops, matching the idempotent-pause-request invariant.
func (s *DispatcherSharedState) RequestPause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		return
	}
	s.paused = true
	close(s.pauseChan)
}

// IsPaused reports whether a pause is currently in effect.
func (s *DispatcherSharedState) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// PauseRendezvous blocks until every participant has arrived, then clears
// the pause and releases them all together, so the dispatcher restarts
// every connector with the same fresh view of the pause's cause. It returns
// false instead if a dispatcher-wide shutdown preempts the wait, in which
// case the caller must not restart its connector.
//
// Called once per connector by the code supervising it, after that
// connector has already exited in response to the pause -- never from
// within the connector's own event loop.
func (s *DispatcherSharedState) PauseRendezvous() bool {
	s.mu.Lock()
	s.arrived++
	if s.arrived < s.participants {
		wait := s.resumeChan
		s.mu.Unlock()
		select {
		case <-wait:
			return true
		case <-s.fastShutdown:
			return false
		case <-s.slowShutdown:
			return false
		}
	}

	s.arrived = 0
	s.paused = false
	done := s.resumeChan
	s.pauseChan = make(chan struct{})
	s.resumeChan = make(chan struct{})
	s.mu.Unlock()
	close(done)
	return true
}

// SlowShutdownChan is closed exactly once, the first time StartSlowShutdown
// is called on the owning Dispatcher.
func (s *DispatcherSharedState) SlowShutdownChan() <-chan struct{} { return s.slowShutdown }

// FastShutdownChan is closed exactly once, the first time StartFastShutdown
// is called on the owning Dispatcher, whether or not a slow shutdown was
// already in progress.
func (s *DispatcherSharedState) FastShutdownChan() <-chan struct{} { return s.fastShutdown }

func (s *DispatcherSharedState) triggerSlowShutdown() {
	s.slowOnce.Do(func() { close(s.slowShutdown) })
}

func (s *DispatcherSharedState) triggerFastShutdown() {
	s.fastOnce.Do(func() { close(s.fastShutdown) })
}
