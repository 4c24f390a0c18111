// Package dispatch implements the per-broker Kafka producer connector: the
// component that owns one TCP connection to one broker, assembles and
// pipelines Produce requests, classifies ACKs, and coordinates shutdown
// and pause with its sibling connectors.
package dispatch

import "github.com/kafkarelay/dispatch/batch"

// MultiPartitionGroup is the pending or in-flight message data for every
// partition of one topic within a single produce request, keyed by
// partition id. MessageSetBytes is a running total kept in sync by every
// mutator; BuildRequest sizes each partition from its list, not from it.
type MultiPartitionGroup struct {
	Partitions      map[int32]batch.MsgList
	MessageSetBytes int
}

func newMultiPartitionGroup() *MultiPartitionGroup {
	return &MultiPartitionGroup{Partitions: make(map[int32]batch.MsgList)}
}

func (g *MultiPartitionGroup) append(partition int32, list batch.MsgList) {
	g.Partitions[partition] = append(g.Partitions[partition], list...)
	g.MessageSetBytes += list.ByteSize()
}

func (g *MultiPartitionGroup) prepend(partition int32, list batch.MsgList) {
	g.Partitions[partition] = append(append(batch.MsgList{}, list...), g.Partitions[partition]...)
	g.MessageSetBytes += list.ByteSize()
}

func (g *MultiPartitionGroup) isEmpty() bool {
	for _, l := range g.Partitions {
		if len(l) > 0 {
			return false
		}
	}
	return true
}

// AllTopics composes one produce request: topic name to its
// MultiPartitionGroup. Insertion order is irrelevant; encoding imposes its
// own deterministic (sorted) order.
type AllTopics map[string]*MultiPartitionGroup

func (t AllTopics) isEmpty() bool {
	for _, g := range t {
		if !g.isEmpty() {
			return false
		}
	}
	return true
}

// flatten returns every non-empty MsgList held across every
// topic/partition. Topics and partitions are walked in map order, so the
// order of the lists is not defined; messages within a partition keep
// their relative order.
func (t AllTopics) flatten() batch.BatchOfLists {
	var out batch.BatchOfLists
	for _, g := range t {
		for _, list := range g.Partitions {
			if len(list) > 0 {
				out = append(out, list)
			}
		}
	}
	return out
}

// ProduceRequest pairs a correlation id with the topic data it carries.
// Constructed by the RequestFactory, moved to the Connector's AckWaitQueue
// once fully sent, consumed by the ProduceResponseProcessor on ACK, or
// drained into the residual queues on shutdown.
type ProduceRequest struct {
	CorrelationID int32
	Topics        AllTopics
}
