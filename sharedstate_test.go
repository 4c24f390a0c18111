package dispatch

import (
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/require"
)

func TestSharedStatePauseRequestIsIdempotent(t *testing.T) {
	defer leaktest.Check(t)()

	s := NewDispatcherSharedState()
	require.False(t, s.IsPaused())

	s.RequestPause()
	require.True(t, s.IsPaused())

	select {
	case <-s.PauseChan():
	default:
		t.Fatal("expected pause channel to be closed after RequestPause")
	}

	// A second RequestPause while already paused must not panic by
	// double-closing pauseChan.
	s.RequestPause()

	s.SetParticipants(1)
	require.True(t, s.PauseRendezvous())
	require.False(t, s.IsPaused())
}

func TestSharedStatePauseRendezvousReleasesAllParticipantsTogether(t *testing.T) {
	defer leaktest.Check(t)()

	s := NewDispatcherSharedState()
	s.SetParticipants(3)
	s.RequestPause()

	released := make(chan bool, 3)
	for i := 0; i < 3; i++ {
		go func() { released <- s.PauseRendezvous() }()
	}

	select {
	case <-released:
		t.Fatal("rendezvous released before every participant arrived")
	case <-time.After(50 * time.Millisecond):
	}

	for i := 0; i < 3; i++ {
		select {
		case ok := <-released:
			require.True(t, ok)
		case <-time.After(time.Second):
			t.Fatal("rendezvous never released all participants")
		}
	}

	require.False(t, s.IsPaused())
}

func TestSharedStatePauseRendezvousPreemptedByShutdown(t *testing.T) {
	defer leaktest.Check(t)()

	s := NewDispatcherSharedState()
	s.SetParticipants(2)
	s.RequestPause()

	done := make(chan bool, 1)
	go func() { done <- s.PauseRendezvous() }()

	time.Sleep(20 * time.Millisecond)
	s.triggerFastShutdown()

	select {
	case ok := <-done:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("rendezvous never unblocked on shutdown")
	}
}

func TestSharedStatePauseChannelIsRearmedAfterRendezvous(t *testing.T) {
	s := NewDispatcherSharedState()
	s.SetParticipants(1)
	first := s.PauseChan()

	s.RequestPause()
	s.PauseRendezvous()

	second := s.PauseChan()
	select {
	case <-second:
		t.Fatal("expected the rearmed pause channel to be open")
	default:
	}

	select {
	case <-first:
	default:
		t.Fatal("expected the original pause channel to remain closed")
	}
}

func TestSharedStateShutdownSignalsAreIdempotent(t *testing.T) {
	s := NewDispatcherSharedState()

	s.triggerSlowShutdown()
	s.triggerSlowShutdown()

	select {
	case <-s.SlowShutdownChan():
	default:
		t.Fatal("expected slow shutdown channel to be closed")
	}

	select {
	case <-s.FastShutdownChan():
		t.Fatal("fast shutdown should not have tripped")
	default:
	}

	s.triggerFastShutdown()
	s.triggerFastShutdown()

	select {
	case <-s.FastShutdownChan():
	default:
		t.Fatal("expected fast shutdown channel to be closed")
	}
}
