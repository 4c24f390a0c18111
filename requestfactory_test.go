package dispatch

import (
	"testing"

	"github.com/kafkarelay/dispatch/batch"
	"github.com/kafkarelay/dispatch/compress"
	"github.com/stretchr/testify/require"
)

func TestRequestFactoryBuildRequestDrainsPending(t *testing.T) {
	f := NewRequestFactory("client", compress.CodecNone, 1<<20, 0)
	require.True(t, f.IsEmpty())

	list := batch.MsgList{batch.NewMsg("events", 0, nil, []byte("hi"))}
	f.Put(list)
	require.False(t, f.IsEmpty())

	req, ok := f.BuildRequest()
	require.True(t, ok)
	require.True(t, f.IsEmpty())
	require.Len(t, req.Topics["events"].Partitions[0], 1)

	_, ok = f.BuildRequest()
	require.False(t, ok)
}

func TestRequestFactoryPutFrontOrdersAheadOfPending(t *testing.T) {
	f := NewRequestFactory("client", compress.CodecNone, 1<<20, 0)

	older := batch.NewMsg("events", 0, nil, []byte("older"))
	newer := batch.NewMsg("events", 0, nil, []byte("newer"))

	f.Put(batch.MsgList{newer})
	f.PutFront(batch.MsgList{older})

	req, ok := f.BuildRequest()
	require.True(t, ok)
	list := req.Topics["events"].Partitions[0]
	require.Len(t, list, 2)
	require.Equal(t, older, list[0])
	require.Equal(t, newer, list[1])
}

func TestRequestFactoryEncodeAppliesCompression(t *testing.T) {
	f := NewRequestFactory("client", compress.CodecGZIP, 1<<20, 0)
	f.Put(batch.MsgList{batch.NewMsg("events", 0, nil, []byte("payload"))})

	req, ok := f.BuildRequest()
	require.True(t, ok)

	frame, err := f.Encode(req, WaitForLocal, 5000)
	require.NoError(t, err)
	require.Greater(t, len(frame), 4)
}

func TestRequestFactoryGetAllDrainsEverything(t *testing.T) {
	f := NewRequestFactory("client", compress.CodecNone, 1<<20, 0)
	f.Put(batch.MsgList{batch.NewMsg("a", 0, nil, []byte("1"))})
	f.Put(batch.MsgList{batch.NewMsg("b", 1, nil, []byte("2"))})

	all := f.GetAll()
	require.Len(t, all, 2)
	require.True(t, f.IsEmpty())
}

func TestRequestFactoryBuildRequestCapsMessagesPerPartition(t *testing.T) {
	f := NewRequestFactory("client", compress.CodecNone, 1<<20, 2)
	f.Put(batch.MsgList{
		batch.NewMsg("events", 0, nil, []byte("a")),
		batch.NewMsg("events", 0, nil, []byte("b")),
		batch.NewMsg("events", 0, nil, []byte("c")),
	})

	req, ok := f.BuildRequest()
	require.True(t, ok)
	require.Len(t, req.Topics["events"].Partitions[0], 2)
	require.False(t, f.IsEmpty())

	req, ok = f.BuildRequest()
	require.True(t, ok)
	require.Len(t, req.Topics["events"].Partitions[0], 1)
	require.True(t, f.IsEmpty())
}
