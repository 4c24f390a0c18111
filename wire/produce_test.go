package wire

import (
	"testing"

	"github.com/kafkarelay/dispatch/compress"
	"github.com/stretchr/testify/require"
)

func TestProduceRequestResponseRoundTrip(t *testing.T) {
	topics := map[string]TopicProduceData{
		"events": {
			0: NewMessageSet([]Message{
				{Value: []byte("hello")},
				{Value: []byte("world")},
			}),
		},
	}

	frame, err := EncodeProduceRequest(7, "dispatch-test", 1, 5000, topics)
	require.NoError(t, err)
	require.Greater(t, len(frame), 4)

	resp := &ProduceResponse{
		CorrelationID: 7,
		Blocks: map[string]map[int32]ProduceResponseBlock{
			"events": {0: {Err: ErrNoError, Offset: 100}},
		},
	}
	body, err := EncodeProduceResponse(resp)
	require.NoError(t, err)

	decoded, err := DecodeProduceResponse(body)
	require.NoError(t, err)
	require.Equal(t, int32(7), decoded.CorrelationID)

	block := decoded.GetBlock("events", 0)
	require.NotNil(t, block)
	require.Equal(t, ErrNoError, block.Err)
	require.Equal(t, int64(100), block.Offset)
}

func TestMessageEncodeDecodeRoundTrip(t *testing.T) {
	e := newEncoder(64)
	m := Message{Codec: compress.CodecNone, Key: []byte("k"), Value: []byte("v")}
	require.NoError(t, m.encode(e))

	var out Message
	require.NoError(t, out.decode(newDecoder(e.bytes())))
	require.Equal(t, m.Key, out.Key)
	require.Equal(t, m.Value, out.Value)
	require.Equal(t, m.Codec, out.Codec)
}

func TestKErrorClassification(t *testing.T) {
	require.True(t, ErrRequestTimedOut.RetryImmediate())
	require.True(t, ErrLeaderNotAvailable.NeedsMetadataRefresh())
	require.True(t, ErrMessageSizeTooLarge.Fatal())
	require.False(t, ErrNoError.Fatal())
	require.False(t, ErrNoError.RetryImmediate())
	require.False(t, ErrNoError.NeedsMetadataRefresh())
}

func TestDecodeProduceResponseMissingBlockIsNil(t *testing.T) {
	resp := &ProduceResponse{Blocks: map[string]map[int32]ProduceResponseBlock{}}
	require.Nil(t, resp.GetBlock("missing", 0))
}
