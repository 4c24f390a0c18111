package wire

// KError is a Kafka broker-side per-partition error code, as returned in a
// ProduceResponse block. The numeric values match the Kafka wire protocol;
// the subset enumerated here is what the response processor's
// classification table needs to distinguish.
type KError int16

const (
	ErrNoError                    KError = 0
	ErrUnknown                    KError = -1
	ErrCorruptMessage             KError = 2
	ErrUnknownTopicOrPartition    KError = 3
	ErrLeaderNotAvailable         KError = 5
	ErrNotLeaderForPartition      KError = 6
	ErrRequestTimedOut            KError = 7
	ErrMessageSizeTooLarge        KError = 10
	ErrNotEnoughReplicas          KError = 19
	ErrNotEnoughReplicasAfterAppend KError = 20
	ErrInvalidRequiredAcks        KError = 21
	ErrKafkaStorageError          KError = 56
)

func (e KError) Error() string {
	switch e {
	case ErrNoError:
		return "kafka: no error"
	case ErrUnknown:
		return "kafka: unknown server error"
	case ErrCorruptMessage:
		return "kafka: corrupt message"
	case ErrUnknownTopicOrPartition:
		return "kafka: unknown topic or partition"
	case ErrLeaderNotAvailable:
		return "kafka: leader not available"
	case ErrNotLeaderForPartition:
		return "kafka: not leader for partition"
	case ErrRequestTimedOut:
		return "kafka: request timed out"
	case ErrMessageSizeTooLarge:
		return "kafka: message size too large"
	case ErrNotEnoughReplicas:
		return "kafka: not enough replicas"
	case ErrNotEnoughReplicasAfterAppend:
		return "kafka: not enough replicas after append"
	case ErrInvalidRequiredAcks:
		return "kafka: invalid required acks"
	case ErrKafkaStorageError:
		return "kafka: storage error"
	default:
		return "kafka: error code"
	}
}

// RetryImmediate reports whether the error class indicates a transient
// condition the connector can retry without fetching fresh metadata.
func (e KError) RetryImmediate() bool {
	switch e {
	case ErrRequestTimedOut, ErrNotEnoughReplicas, ErrNotEnoughReplicasAfterAppend, ErrKafkaStorageError:
		return true
	default:
		return false
	}
}

// NeedsMetadataRefresh reports whether the error class indicates the
// connector's topology view is stale and the message should be rerouted
// once the dispatcher restarts with fresh metadata.
func (e KError) NeedsMetadataRefresh() bool {
	switch e {
	case ErrLeaderNotAvailable, ErrNotLeaderForPartition, ErrUnknownTopicOrPartition:
		return true
	default:
		return false
	}
}

// Fatal reports whether the error class indicates the message cannot be
// delivered regardless of retry or metadata refresh.
func (e KError) Fatal() bool {
	switch e {
	case ErrCorruptMessage, ErrMessageSizeTooLarge, ErrInvalidRequiredAcks:
		return true
	default:
		return false
	}
}
