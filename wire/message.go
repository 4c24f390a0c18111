package wire

import "github.com/kafkarelay/dispatch/compress"

const messageFormatVersion int8 = 0

// Message is a single Kafka message: an optional key, a value, and the
// codec its value was compressed with. Compression is delegated to the
// compress package instead of being inlined per-codec.
type Message struct {
	Codec compress.Codec
	Key   []byte
	Value []byte
}

func (m *Message) encode(e *encoder) error {
	e.push(&crcField{})
	e.putInt8(messageFormatVersion)
	e.putInt8(int8(m.Codec) & 0x07) // low 3 bits carry the codec, matching Kafka's attribute byte
	if err := e.putBytes(m.Key); err != nil {
		return err
	}
	if err := e.putBytes(m.Value); err != nil {
		return err
	}
	e.pop()
	return nil
}

func (m *Message) decode(d *decoder) error {
	crcStart := d.off
	if _, err := d.getInt32(); err != nil { // crc, verified below once length is known
		return err
	}
	bodyStart := d.off

	format, err := d.getInt8()
	if err != nil {
		return err
	}
	if format != messageFormatVersion {
		return DecodingError{ErrInvalidLength}
	}

	attr, err := d.getInt8()
	if err != nil {
		return err
	}
	m.Codec = compress.Codec(attr & 0x07)

	if m.Key, err = d.getBytes(); err != nil {
		return err
	}
	rawValue, err := d.getBytes()
	if err != nil {
		return err
	}

	bodyLen := d.off - bodyStart
	d2 := &decoder{buf: d.buf[crcStart:], off: 0}
	if err := d2.expectCRC(bodyLen); err != nil {
		return err
	}

	if m.Codec == compress.CodecNone {
		m.Value = rawValue
	} else {
		m.Value, err = compress.Decode(m.Codec, rawValue)
		if err != nil {
			return err
		}
	}
	return nil
}

// MessageSet is an ordered sequence of (offset, Message) pairs sharing a
// single partition, mirroring a single Kafka message set on the wire.
type MessageSet struct {
	Messages []Message
}

// NewMessageSet wraps msgs as a MessageSet in the given order.
func NewMessageSet(msgs []Message) *MessageSet {
	return &MessageSet{Messages: msgs}
}

// Encode serializes the message set on its own, with no outer length
// prefix, for use as the Value of a single wrapping Message when a request
// factory compresses a whole partition's batch into one entry.
func (s *MessageSet) Encode() ([]byte, error) {
	e := newEncoder(256)
	if err := s.encode(e); err != nil {
		return nil, err
	}
	return e.bytes(), nil
}

func (s *MessageSet) encode(e *encoder) error {
	for i, m := range s.Messages {
		e.putInt64(int64(i)) // relative offset; broker assigns the real one
		e.push(&lengthField{})
		if err := m.encode(e); err != nil {
			return err
		}
		e.pop()
	}
	return nil
}

// decodeMessageSet parses as many complete (offset, message) entries as fit
// in buf, ignoring a partial trailing message the way real Kafka clients
// do (the broker may return a few extra bytes at the end of a fetch).
func decodeMessageSet(buf []byte) (*MessageSet, error) {
	d := newDecoder(buf)
	set := &MessageSet{}
	for d.remaining() > 0 {
		if d.remaining() < 12 {
			break
		}
		if _, err := d.getInt64(); err != nil { // offset, unused on the request path
			return nil, err
		}
		msgLen, err := d.getInt32()
		if err != nil {
			return nil, err
		}
		if int(msgLen) > d.remaining() {
			break // partial trailing message
		}
		msgBuf, err := d.getRawBytes(int(msgLen))
		if err != nil {
			return nil, err
		}
		var m Message
		if err := m.decode(newDecoder(msgBuf)); err != nil {
			return nil, err
		}
		set.Messages = append(set.Messages, m)
	}
	return set, nil
}
