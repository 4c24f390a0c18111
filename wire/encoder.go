package wire

import (
	"encoding/binary"
	"hash/crc32"
)

// pushEncoder is a length- or checksum-field placeholder: it reserves space
// in the encoder's buffer up front, then backfills it once the enclosed
// bytes are known.
type pushEncoder interface {
	reserveLength() int
	fill(curOffset int, buf []byte)
}

type lengthField struct{ startOffset int }

func (l *lengthField) reserveLength() int { return 4 }

func (l *lengthField) fill(curOffset int, buf []byte) {
	binary.BigEndian.PutUint32(buf[l.startOffset:], uint32(curOffset-l.startOffset-4))
}

var crcTable = crc32.MakeTable(crc32.Castagnoli)

type crcField struct{ startOffset int }

func (c *crcField) reserveLength() int { return 4 }

func (c *crcField) fill(curOffset int, buf []byte) {
	sum := crc32.Checksum(buf[c.startOffset+4:curOffset], crcTable)
	binary.BigEndian.PutUint32(buf[c.startOffset:], sum)
}

// encoder accumulates a single wire-format request or response into a
// growable byte buffer, in one pass: Go slices grow on demand, so there is
// no separate size-counting pass before the real encode.
type encoder struct {
	buf    []byte
	stack  []pushEncoder
	starts []int
}

func newEncoder(capacityHint int) *encoder {
	return &encoder{buf: make([]byte, 0, capacityHint)}
}

func (e *encoder) push(pe pushEncoder) {
	start := len(e.buf)
	e.buf = append(e.buf, make([]byte, pe.reserveLength())...)
	e.stack = append(e.stack, pe)
	e.starts = append(e.starts, start)
	switch f := pe.(type) {
	case *lengthField:
		f.startOffset = start
	case *crcField:
		f.startOffset = start
	}
}

func (e *encoder) pop() {
	n := len(e.stack) - 1
	pe := e.stack[n]
	pe.fill(len(e.buf), e.buf)
	e.stack = e.stack[:n]
	e.starts = e.starts[:n]
}

func (e *encoder) putInt8(v int8)   { e.buf = append(e.buf, byte(v)) }
func (e *encoder) putBool(v bool) {
	if v {
		e.putInt8(1)
	} else {
		e.putInt8(0)
	}
}

func (e *encoder) putInt16(v int16) {
	e.buf = append(e.buf, 0, 0)
	binary.BigEndian.PutUint16(e.buf[len(e.buf)-2:], uint16(v))
}

func (e *encoder) putInt32(v int32) {
	e.buf = append(e.buf, 0, 0, 0, 0)
	binary.BigEndian.PutUint32(e.buf[len(e.buf)-4:], uint32(v))
}

func (e *encoder) putInt64(v int64) {
	e.buf = append(e.buf, 0, 0, 0, 0, 0, 0, 0, 0)
	binary.BigEndian.PutUint64(e.buf[len(e.buf)-8:], uint64(v))
}

func (e *encoder) putArrayLength(n int) error {
	if n > 1<<20 {
		return EncodingError{ErrInvalidArrayLength}
	}
	e.putInt32(int32(n))
	return nil
}

// putBytes writes a nullable byte array: -1 length means nil.
func (e *encoder) putBytes(b []byte) error {
	if b == nil {
		e.putInt32(-1)
		return nil
	}
	return e.putRawBytes(b, true)
}

func (e *encoder) putRawBytes(b []byte, withLength bool) error {
	if withLength {
		e.putInt32(int32(len(b)))
	}
	e.buf = append(e.buf, b...)
	return nil
}

func (e *encoder) putString(s string) error {
	if len(s) > 1<<15 {
		return EncodingError{ErrInvalidLength}
	}
	e.putInt16(int16(len(s)))
	e.buf = append(e.buf, s...)
	return nil
}

func (e *encoder) bytes() []byte { return e.buf }
