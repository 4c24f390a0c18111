package dispatch

import (
	"fmt"

	"github.com/kafkarelay/dispatch/batch"
	"github.com/kafkarelay/dispatch/wire"
)

// AckResult buckets every message in a produce request by what its ACK (or
// its request's own failure) means for it: a four-way split over Kafka
// error codes (success, retry-immediately, refresh-then-retry, and
// non-retryable loss).
type AckResult struct {
	// Successes are messages the broker confirmed. Offset is not
	// retained here; callers that need it can read it off
	// wire.ProduceResponseBlock directly during Process.
	Successes batch.MsgList

	// ImmediateResend are messages to resend on this same connector
	// right away, no pause needed (transient timeouts, replica
	// shortfalls).
	ImmediateResend batch.MsgList

	// PauseAndResend are messages whose topic/partition needs a metadata
	// refresh before resending; the caller is expected to signal a
	// cross-connector pause before requeueing these.
	PauseAndResend batch.MsgList

	// Lost are messages the broker will never accept as sent (fatal,
	// non-retryable errors): too large, corrupt, or a config mismatch.
	// These are handed to the upstream disposition path as losses, never
	// resent.
	Lost batch.MsgList
}

// ProduceResponseProcessor classifies a broker's ProduceResponse against
// the ProduceRequest that produced it, message by message.
type ProduceResponseProcessor struct {
	tracker *batch.StateTracker
}

// NewProduceResponseProcessor returns a processor that records every state
// transition it makes in tracker.
func NewProduceResponseProcessor(tracker *batch.StateTracker) *ProduceResponseProcessor {
	return &ProduceResponseProcessor{tracker: tracker}
}

// Process classifies every message in req against resp. When
// RequiredAcks == NoResponse, resp is nil and every message is treated as
// an immediate, unconditional success (the broker never replies, so
// "sent" and "acknowledged" collapse into the same event).
func (p *ProduceResponseProcessor) Process(req *ProduceRequest, resp *wire.ProduceResponse) (*AckResult, error) {
	result := &AckResult{}

	for topic, group := range req.Topics {
		for partition, list := range group.Partitions {
			if resp == nil {
				result.Successes = append(result.Successes, list...)
				p.tracker.MsgEnterProcessed(list)
				continue
			}

			block := resp.GetBlock(topic, partition)
			if block == nil {
				return nil, fmt.Errorf("%w: response missing block for %s/%d", ErrBadProduceResponse, topic, partition)
			}

			switch {
			case block.Err == wire.ErrNoError:
				result.Successes = append(result.Successes, list...)
				p.tracker.MsgEnterProcessed(list)
			case block.Err.RetryImmediate():
				result.ImmediateResend = append(result.ImmediateResend, list...)
				p.tracker.MsgRequeueForResend(list)
			case block.Err.NeedsMetadataRefresh():
				result.PauseAndResend = append(result.PauseAndResend, list...)
				p.tracker.MsgRequeueForResend(list)
			default:
				// Either explicitly Fatal() or an error code this
				// connector does not recognize; both are treated as
				// non-retryable losses rather than risk an infinite
				// resend loop on an error the classification table
				// doesn't know about.
				result.Lost = append(result.Lost, list...)
				p.tracker.MsgEnterLost(list)
			}
		}
	}

	return result, nil
}
