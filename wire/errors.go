package wire

import "errors"

// Sentinel errors returned by the encoder/decoder.
var (
	// ErrInsufficientData is returned when decoding and the packet is
	// truncated; the caller should wait for more bytes and retry.
	ErrInsufficientData = errors.New("wire: insufficient data to decode packet")

	// ErrInvalidLength is returned when a declared length field exceeds
	// the configured ceiling or is otherwise nonsensical.
	ErrInvalidLength = errors.New("wire: invalid length field")

	// ErrInvalidArrayLength is returned when a declared array count is
	// negative or absurdly large.
	ErrInvalidArrayLength = errors.New("wire: invalid array length")

	// ErrBadCRC is returned when a decoded CRC32 does not match the
	// recomputed checksum of the enclosed bytes.
	ErrBadCRC = errors.New("wire: crc32 mismatch")

	// ErrUnsupportedCodec is returned when a message declares a
	// compression codec this build was not linked with.
	ErrUnsupportedCodec = errors.New("wire: unsupported compression codec")
)

// EncodingError wraps a lower-level error encountered while serializing a
// packet, distinguishing "our fault" encoding failures from broker-side
// protocol failures.
type EncodingError struct {
	Err error
}

func (e EncodingError) Error() string { return "wire: encoding error: " + e.Err.Error() }
func (e EncodingError) Unwrap() error { return e.Err }

// DecodingError wraps a lower-level error encountered while parsing a
// packet received from the broker.
type DecodingError struct {
	Err error
}

func (e DecodingError) Error() string { return "wire: decoding error: " + e.Err.Error() }
func (e DecodingError) Unwrap() error { return e.Err }
