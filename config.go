package dispatch

import (
	"fmt"
	"time"

	"github.com/kafkarelay/dispatch/compress"
)

// RequiredAcks is the number of broker acknowledgements a produce request
// demands before the broker replies, mirroring the Kafka protocol's
// RequiredAcks request field.
type RequiredAcks int16

const (
	// NoResponse means the broker sends no response at all; the
	// connector must synthesize success locally the instant the bytes
	// leave the socket.
	NoResponse RequiredAcks = 0
	// WaitForLocal waits only for the partition leader to write the
	// record to its local log.
	WaitForLocal RequiredAcks = 1
	// WaitForAll waits for all in-sync replicas to acknowledge.
	WaitForAll RequiredAcks = -1
)

// Config bundles every tunable a Dispatcher and its Connectors need. The
// Producer.* tree covers request assembly and delivery semantics; the
// fields beyond it cover socket timeouts and the shutdown/restart backoffs
// this single-purpose dispatcher needs.
type Config struct {
	// ClientID is sent as part of every produce request.
	ClientID string

	// ChannelBufferSize sizes the buffered channel on which a Connector's
	// read loop delivers response frames.
	ChannelBufferSize int

	Producer struct {
		RequiredAcks    RequiredAcks
		Timeout         time.Duration
		MaxMessageBytes int
		MaxRequestBytes int
		Compression     compress.Codec

		Flush struct {
			// Frequency is the linger duration an InputQueue holds a
			// partition's messages before releasing them for batching,
			// from the first message landing in an otherwise-empty
			// partition. Zero means a partition is ready the instant it
			// has anything in it.
			Frequency time.Duration
			// Bytes, once a partition's pending batch reaches this many
			// bytes, releases it early regardless of Frequency. Zero
			// disables the byte threshold.
			Bytes int
			// Messages, once a partition's pending batch reaches this
			// many messages, releases it early regardless of Frequency.
			// Zero disables the message-count threshold.
			Messages int
			// MaxMessages caps how many messages from a single partition
			// a RequestFactory will pack into one produce request; any
			// excess carries over to the next request instead of growing
			// a single partition's block without bound. Zero means no
			// cap.
			MaxMessages int
		}

		Retry struct {
			Max     int
			Backoff time.Duration
		}
	}

	// KafkaSocketTimeout bounds how long a Connector's StreamReader will
	// wait on a single non-blocking read attempt before yielding back to
	// the event loop's select.
	KafkaSocketTimeout time.Duration

	// ShutdownMaxDelay is the slow-drain deadline: the longest a
	// Connector will wait for in-flight ACKs once a slow shutdown has
	// been requested before escalating to a fast shutdown on its own.
	ShutdownMaxDelay time.Duration

	// DispatcherRestartMaxDelay caps the exponential backoff a Dispatcher
	// applies between a Connector's abnormal exit and its restart.
	DispatcherRestartMaxDelay time.Duration
}

// NewConfig returns a Config populated with reasonable production defaults.
func NewConfig() *Config {
	c := &Config{
		ClientID:          "dispatch",
		ChannelBufferSize: 256,
	}
	c.Producer.RequiredAcks = WaitForLocal
	c.Producer.Timeout = 10 * time.Second
	c.Producer.MaxMessageBytes = 1000000
	c.Producer.MaxRequestBytes = 4000000
	c.Producer.Compression = compress.CodecNone
	c.Producer.Retry.Max = 3
	c.Producer.Retry.Backoff = 100 * time.Millisecond

	c.KafkaSocketTimeout = 5 * time.Second
	c.ShutdownMaxDelay = 30 * time.Second
	c.DispatcherRestartMaxDelay = 20 * time.Second

	return c
}

// Validate returns ErrInvalidConfig (wrapped with detail) for any setting
// that would make a Connector or Dispatcher misbehave. Checked once at
// startup rather than defensively on every use.
func (c *Config) Validate() error {
	switch {
	case c.Producer.RequiredAcks < -1:
		return fmt.Errorf("%w: Producer.RequiredAcks must be >= -1", ErrInvalidConfig)
	case c.Producer.Timeout <= 0:
		return fmt.Errorf("%w: Producer.Timeout must be positive", ErrInvalidConfig)
	case c.Producer.MaxMessageBytes <= 0:
		return fmt.Errorf("%w: Producer.MaxMessageBytes must be positive", ErrInvalidConfig)
	case c.Producer.MaxRequestBytes < c.Producer.MaxMessageBytes:
		return fmt.Errorf("%w: Producer.MaxRequestBytes must be >= MaxMessageBytes", ErrInvalidConfig)
	case c.Producer.Retry.Max < 0:
		return fmt.Errorf("%w: Producer.Retry.Max must be >= 0", ErrInvalidConfig)
	case c.ChannelBufferSize < 0:
		return fmt.Errorf("%w: ChannelBufferSize must be >= 0", ErrInvalidConfig)
	case c.KafkaSocketTimeout <= 0:
		return fmt.Errorf("%w: KafkaSocketTimeout must be positive", ErrInvalidConfig)
	case c.ShutdownMaxDelay <= 0:
		return fmt.Errorf("%w: ShutdownMaxDelay must be positive", ErrInvalidConfig)
	case c.DispatcherRestartMaxDelay <= 0:
		return fmt.Errorf("%w: DispatcherRestartMaxDelay must be positive", ErrInvalidConfig)
	}
	return nil
}
