package dispatch

import (
	"github.com/kafkarelay/dispatch/batch"
	"github.com/kafkarelay/dispatch/compress"
	"github.com/kafkarelay/dispatch/wire"
)

// RequestFactory accumulates messages per topic/partition, keyed by topic
// then partition, and assembles them into produce requests: a standalone,
// reusable collaborator a Connector owns for its own broker.
type RequestFactory struct {
	clientID                string
	codec                   compress.Codec
	maxRequestBytes         int
	maxMessagesPerPartition int
	pending                 AllTopics
	nextCorrelationID       int32
}

// NewRequestFactory returns an empty factory bound to one connector's
// config. maxMessagesPerPartition, when positive, caps how many messages
// from a single partition BuildRequest will fold into one request,
// deferring the rest to the next call; zero means no per-partition cap
// beyond whatever maxRequestBytes already imposes.
func NewRequestFactory(clientID string, codec compress.Codec, maxRequestBytes, maxMessagesPerPartition int) *RequestFactory {
	return &RequestFactory{
		clientID:                clientID,
		codec:                   codec,
		maxRequestBytes:         maxRequestBytes,
		maxMessagesPerPartition: maxMessagesPerPartition,
		pending:                 make(AllTopics),
	}
}

func (f *RequestFactory) groupFor(topic string) *MultiPartitionGroup {
	g, ok := f.pending[topic]
	if !ok {
		g = newMultiPartitionGroup()
		f.pending[topic] = g
	}
	return g
}

// Put appends one partition's worth of messages to the pending set,
// preserving their relative order after whatever is already queued for
// that partition.
func (f *RequestFactory) Put(list batch.MsgList) {
	if len(list) == 0 {
		return
	}
	g := f.groupFor(list[0].Topic)
	g.append(list[0].Partition, list)
}

// PutFront re-queues list ahead of anything already pending for its
// partition, used for immediate-resend ACKs that must go out before
// messages that have never been sent.
func (f *RequestFactory) PutFront(list batch.MsgList) {
	if len(list) == 0 {
		return
	}
	g := f.groupFor(list[0].Topic)
	g.prepend(list[0].Partition, list)
}

// PutAll is a convenience wrapper for draining a whole batch of lists
// through Put in order.
func (f *RequestFactory) PutAll(lists batch.BatchOfLists) {
	for _, l := range lists {
		f.Put(l)
	}
}

// IsEmpty reports whether any message is pending assembly into a request.
func (f *RequestFactory) IsEmpty() bool {
	return f.pending.isEmpty()
}

// GetAll drains every pending message across every topic and partition,
// clearing the factory. Used on the shutdown path to surface undelivered,
// never-sent messages for disposition upstream.
func (f *RequestFactory) GetAll() batch.BatchOfLists {
	out := f.pending.flatten()
	f.pending = make(AllTopics)
	return out
}

// BuildRequest drains as much of the pending set as fits within
// maxRequestBytes into a single ProduceRequest, leaving any remainder
// pending for the next call. It returns (nil, false) if nothing is
// pending, matching the BugProduceRequestEmpty guard the connector checks
// before ever calling Encode.
func (f *RequestFactory) BuildRequest() (*ProduceRequest, bool) {
	if f.IsEmpty() {
		return nil, false
	}

	req := &ProduceRequest{
		CorrelationID: f.nextCorrelationID,
		Topics:        make(AllTopics),
	}
	f.nextCorrelationID++

	budget := f.maxRequestBytes
	remaining := make(AllTopics)

	for topic, group := range f.pending {
		destGroup := newMultiPartitionGroup()
		restGroup := newMultiPartitionGroup()

		for partition, list := range group.Partitions {
			capped := list
			var overflow batch.MsgList
			if f.maxMessagesPerPartition > 0 && len(list) > f.maxMessagesPerPartition {
				capped = list[:f.maxMessagesPerPartition]
				overflow = list[f.maxMessagesPerPartition:]
			}

			size := capped.ByteSize()
			if budget-size >= 0 || destGroup.isEmpty() && req.Topics.isEmpty() {
				destGroup.Partitions[partition] = capped
				destGroup.MessageSetBytes += size
				budget -= size
				if len(overflow) > 0 {
					restGroup.Partitions[partition] = overflow
					restGroup.MessageSetBytes += overflow.ByteSize()
				}
				continue
			}
			restGroup.Partitions[partition] = list
			restGroup.MessageSetBytes += list.ByteSize()
		}

		if !destGroup.isEmpty() {
			req.Topics[topic] = destGroup
		}
		if !restGroup.isEmpty() {
			remaining[topic] = restGroup
		}
	}

	f.pending = remaining
	return req, true
}

// Encode serializes req into a ready-to-send, length-prefixed Produce
// request frame, applying the factory's configured compression codec to
// each partition's message set as a single wrapping message when the codec
// is not CodecNone.
func (f *RequestFactory) Encode(req *ProduceRequest, requiredAcks RequiredAcks, timeoutMs int32) ([]byte, error) {
	topics := make(map[string]wire.TopicProduceData, len(req.Topics))

	for topic, group := range req.Topics {
		data := make(wire.TopicProduceData, len(group.Partitions))
		for partition, list := range group.Partitions {
			set, err := f.buildMessageSet(list)
			if err != nil {
				return nil, err
			}
			data[partition] = set
		}
		topics[topic] = data
	}

	return wire.EncodeProduceRequest(req.CorrelationID, f.clientID, int16(requiredAcks), timeoutMs, topics)
}

func (f *RequestFactory) buildMessageSet(list batch.MsgList) (*wire.MessageSet, error) {
	msgs := make([]wire.Message, len(list))
	for i, m := range list {
		msgs[i] = wire.Message{Codec: compress.CodecNone, Key: m.Key, Value: m.Value}
	}
	inner := wire.NewMessageSet(msgs)

	if f.codec == compress.CodecNone {
		return inner, nil
	}

	rawSet, err := inner.Encode()
	if err != nil {
		return nil, err
	}
	compressed, err := compress.Encode(f.codec, rawSet)
	if err != nil {
		return nil, err
	}
	return wire.NewMessageSet([]wire.Message{{Codec: f.codec, Value: compressed}}), nil
}
