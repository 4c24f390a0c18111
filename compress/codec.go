// Package compress implements the pluggable message-set compression codecs
// referenced by the request factory: gzip, snappy, and lz4, selected by a
// per-message attribute bit the same way the Kafka wire format does.
package compress

import (
	"bytes"
	"io"

	"github.com/eapache/go-xerial-snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies a Kafka message compression scheme. The numeric values
// match the attribute bits Kafka expects on the wire.
type Codec int8

const (
	CodecNone Codec = 0
	CodecGZIP Codec = 1
	// CodecSnappy uses xerial framing, matching the attribute Kafka
	// brokers expect for snappy-compressed message sets.
	CodecSnappy Codec = 2
	CodecLZ4    Codec = 3
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecGZIP:
		return "gzip"
	case CodecSnappy:
		return "snappy"
	case CodecLZ4:
		return "lz4"
	default:
		return "unknown"
	}
}

// ByName resolves a codec by its configuration-friendly name, for use by
// Config parsing.
func ByName(name string) (Codec, bool) {
	switch name {
	case "", "none":
		return CodecNone, true
	case "gzip":
		return CodecGZIP, true
	case "snappy":
		return CodecSnappy, true
	case "lz4":
		return CodecLZ4, true
	default:
		return 0, false
	}
}

// Encode compresses raw with the given codec. CodecNone returns raw
// unchanged without copying.
func Encode(c Codec, raw []byte) ([]byte, error) {
	switch c {
	case CodecNone:
		return raw, nil
	case CodecGZIP:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CodecSnappy:
		return snappy.Encode(raw), nil
	case CodecLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, ErrUnsupportedCodec
	}
}

// Decode restores the original bytes compressed by Encode.
func Decode(c Codec, compressed []byte) ([]byte, error) {
	switch c {
	case CodecNone:
		return compressed, nil
	case CodecGZIP:
		r, err := gzip.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case CodecSnappy:
		return snappy.Decode(compressed)
	case CodecLZ4:
		r := lz4.NewReader(bytes.NewReader(compressed))
		return io.ReadAll(r)
	default:
		return nil, ErrUnsupportedCodec
	}
}
