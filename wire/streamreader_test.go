package wire

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func frame(body []byte) []byte {
	out := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(out, uint32(len(body)))
	copy(out[4:], body)
	return out
}

func pipePair(t *testing.T) (net.Conn, net.Conn) {
	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}

func TestStreamReaderAssemblesSplitFrame(t *testing.T) {
	client, server := pipePair(t)
	r := NewStreamReader(client, false, true, 1<<20, 16)

	body := []byte("hello world")
	full := frame(body)

	go func() {
		_, _ = server.Write(full[:3])
		time.Sleep(10 * time.Millisecond)
		_, _ = server.Write(full[3:])
	}()

	deadline := time.Now().Add(time.Second)
	for {
		_ = client.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
		state, err := r.Read()
		require.NoError(t, err)
		if state == MsgReady {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("frame never assembled")
		}
	}

	require.Equal(t, body, r.GetReadyMsg())
}

func TestStreamReaderRejectsOversizedFrame(t *testing.T) {
	client, server := pipePair(t)
	r := NewStreamReader(client, false, true, 4, 16)

	go func() {
		_, _ = server.Write(frame([]byte("way too big")))
	}()

	deadline := time.Now().Add(time.Second)
	for {
		_ = client.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
		state, err := r.Read()
		require.NoError(t, err)
		if state == DataInvalid {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("expected DataInvalid before deadline")
		}
	}
}

func TestStreamReaderReportsAtEndOnClose(t *testing.T) {
	client, server := pipePair(t)
	r := NewStreamReader(client, false, true, 1<<20, 16)

	server.Close()

	_ = client.SetReadDeadline(time.Now().Add(time.Second))
	state, err := r.Read()
	require.NoError(t, err)
	require.Equal(t, AtEnd, state)
}

func TestStreamReaderConsumeShiftsTrailingBytes(t *testing.T) {
	client, server := pipePair(t)
	r := NewStreamReader(client, false, true, 1<<20, 16)

	first := frame([]byte("one"))
	second := frame([]byte("two"))

	go func() {
		_, _ = server.Write(append(append([]byte{}, first...), second...))
	}()

	deadline := time.Now().Add(time.Second)
	for r.State() != MsgReady {
		_ = client.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
		_, err := r.Read()
		require.NoError(t, err)
		if time.Now().After(deadline) {
			t.Fatal("first frame never arrived")
		}
	}
	require.Equal(t, []byte("one"), r.GetReadyMsg())
	r.ConsumeReadyMsg()

	deadline = time.Now().Add(time.Second)
	for r.State() != MsgReady {
		_ = client.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
		_, err := r.Read()
		require.NoError(t, err)
		if time.Now().After(deadline) {
			t.Fatal("second frame never arrived")
		}
	}
	require.Equal(t, []byte("two"), r.GetReadyMsg())
}
