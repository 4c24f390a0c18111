package dispatch

import (
	"testing"
	"time"

	"github.com/kafkarelay/dispatch/batch"
	"github.com/stretchr/testify/require"
)

func TestInputQueueGetReleasesOnlyAfterLinger(t *testing.T) {
	q := NewInputQueue(50*time.Millisecond, 0, 0)
	q.Put(batch.NewMsg("t", 0, nil, []byte("a")))

	ready, expiry := q.Get(time.Now())
	require.Empty(t, ready)
	require.False(t, expiry.IsZero())

	ready, _ = q.Get(time.Now().Add(time.Hour))
	require.Len(t, ready, 1)
	require.Len(t, ready[0], 1)
}

func TestInputQueueZeroLingerIsImmediatelyReady(t *testing.T) {
	q := NewInputQueue(0, 0, 0)
	q.Put(batch.NewMsg("t", 0, nil, []byte("a")))

	ready, expiry := q.Get(time.Now())
	require.Len(t, ready, 1)
	require.True(t, expiry.IsZero())
}

func TestInputQueueMaxMessagesReleasesEarly(t *testing.T) {
	q := NewInputQueue(time.Hour, 2, 0)
	q.Put(batch.NewMsg("t", 0, nil, []byte("a")))
	q.Put(batch.NewMsg("t", 0, nil, []byte("b")))

	ready, _ := q.Get(time.Now())
	require.Len(t, ready, 1)
	require.Len(t, ready[0], 2)
}

func TestInputQueueKeepsPartitionsIndependent(t *testing.T) {
	q := NewInputQueue(time.Hour, 0, 0)
	q.Put(batch.NewMsg("t", 0, nil, []byte("a")))
	q.Put(batch.NewMsg("t", 1, nil, []byte("b")))

	ready := q.NonblockingGet()
	require.Len(t, ready, 2)
}

func TestInputQueueSignalsNotifyFd(t *testing.T) {
	q := NewInputQueue(0, 0, 0)
	q.Put(batch.NewMsg("t", 0, nil, []byte("x")))

	select {
	case <-q.GetSenderNotifyFd():
	default:
		t.Fatal("expected notify channel to be signaled after Put")
	}
}

func TestInputQueuePutFrontPrependsAndMarksReady(t *testing.T) {
	q := NewInputQueue(time.Hour, 0, 0)
	existing := batch.NewMsg("t", 0, nil, []byte("existing"))
	q.Put(existing)

	resent := batch.NewMsg("t", 0, nil, []byte("resent"))
	q.PutFront([]*batch.Msg{resent})

	ready, _ := q.Get(time.Now())
	require.Len(t, ready, 1)
	require.Equal(t, resent, ready[0][0])
	require.Equal(t, existing, ready[0][1])
}

func TestInputQueueGetAllOnShutdownDrains(t *testing.T) {
	q := NewInputQueue(time.Hour, 0, 0)
	q.Put(batch.NewMsg("t", 0, nil, []byte("a")))
	q.Put(batch.NewMsg("u", 1, nil, []byte("b")))

	all := q.GetAllOnShutdown()
	require.Len(t, all, 2)
	require.Equal(t, 0, q.Len())
}

func TestInputQueueReset(t *testing.T) {
	q := NewInputQueue(time.Hour, 0, 0)
	q.Put(batch.NewMsg("t", 0, nil, []byte("a")))
	q.Reset()
	require.Equal(t, 0, q.Len())
}
