// Package batch defines the message types that flow between the router,
// the input queue, the request factory and the broker connectors.
package batch

import "time"

// MsgState is the lifecycle state of a Msg as it moves through a connector.
type MsgState int

const (
	// StateNew is the state of a Msg that has not yet been handed to a
	// connector's input queue.
	StateNew MsgState = iota
	// StateBatching means the Msg is sitting in a connector's input queue
	// or request factory, waiting for its batch to flush.
	StateBatching
	// StateAckWait means the Msg's produce request has been fully written
	// to the broker socket and is awaiting an ACK.
	StateAckWait
	// StateProcessed means the Msg was successfully acknowledged (or sent
	// under RequiredAcks == 0, where the send itself is the acknowledgment).
	StateProcessed
	// StateLost means the Msg was dropped by a fatal ACK error and cannot
	// be delivered.
	StateLost
)

func (s MsgState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateBatching:
		return "batching"
	case StateAckWait:
		return "ack_wait"
	case StateProcessed:
		return "processed"
	case StateLost:
		return "lost"
	default:
		return "unknown"
	}
}

// Msg is the atomic unit dispatched to a broker. Ownership is exclusive: a
// Msg is passed by pointer and moves through the pipeline, never copied.
type Msg struct {
	Topic     string
	Key       []byte
	Partition int32
	Value     []byte
	Timestamp time.Time

	state MsgState
}

// NewMsg constructs a Msg in StateNew.
func NewMsg(topic string, partition int32, key, value []byte) *Msg {
	return &Msg{
		Topic:     topic,
		Key:       key,
		Partition: partition,
		Value:     value,
		Timestamp: time.Now(),
		state:     StateNew,
	}
}

// State returns the message's current lifecycle state.
func (m *Msg) State() MsgState {
	return m.state
}

// ByteSize is the approximate wire footprint of the message, used for
// batch-size and request-size accounting.
func (m *Msg) ByteSize() int {
	// crc(4) + magic(1) + attributes(1) + key len(4) + value len(4)
	const overhead = 14
	return overhead + len(m.Key) + len(m.Value)
}

// MsgList is an ordered sequence of messages destined for the same
// topic/partition. Order must be preserved across every pipeline stage.
type MsgList []*Msg

// ByteSize sums the wire footprint of every message in the list.
func (l MsgList) ByteSize() int {
	total := 0
	for _, m := range l {
		total += m.ByteSize()
	}
	return total
}

// BatchOfLists is an ordered sequence of MsgLists, each possibly bound for a
// different partition, forming one scheduling unit between the router and a
// connector.
type BatchOfLists []MsgList

// Flatten returns every Msg in the batch in list order, partition order
// preserved within each list.
func (b BatchOfLists) Flatten() []*Msg {
	var out []*Msg
	for _, l := range b {
		out = append(out, l...)
	}
	return out
}
