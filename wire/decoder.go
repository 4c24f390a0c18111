package wire

import (
	"encoding/binary"
	"hash/crc32"
)

// decoder parses a single wire-format request or response out of a byte
// slice already known to hold a complete frame, exposing only what
// ProduceResponse decoding needs.
type decoder struct {
	buf []byte
	off int
}

func newDecoder(buf []byte) *decoder {
	return &decoder{buf: buf}
}

func (d *decoder) remaining() int { return len(d.buf) - d.off }

func (d *decoder) getInt8() (int8, error) {
	if d.remaining() < 1 {
		return 0, ErrInsufficientData
	}
	v := int8(d.buf[d.off])
	d.off++
	return v, nil
}

func (d *decoder) getBool() (bool, error) {
	v, err := d.getInt8()
	return v != 0, err
}

func (d *decoder) getInt16() (int16, error) {
	if d.remaining() < 2 {
		return 0, ErrInsufficientData
	}
	v := int16(binary.BigEndian.Uint16(d.buf[d.off:]))
	d.off += 2
	return v, nil
}

func (d *decoder) getInt32() (int32, error) {
	if d.remaining() < 4 {
		return 0, ErrInsufficientData
	}
	v := int32(binary.BigEndian.Uint32(d.buf[d.off:]))
	d.off += 4
	return v, nil
}

func (d *decoder) getInt64() (int64, error) {
	if d.remaining() < 8 {
		return 0, ErrInsufficientData
	}
	v := int64(binary.BigEndian.Uint64(d.buf[d.off:]))
	d.off += 8
	return v, nil
}

func (d *decoder) getArrayLength() (int, error) {
	n, err := d.getInt32()
	if err != nil {
		return 0, err
	}
	if n < -1 || n > 1<<20 {
		return 0, DecodingError{ErrInvalidArrayLength}
	}
	if n == -1 {
		return 0, nil
	}
	return int(n), nil
}

// getBytes reads a nullable byte array; a -1 length decodes to nil.
func (d *decoder) getBytes() ([]byte, error) {
	n, err := d.getInt32()
	if err != nil {
		return nil, err
	}
	if n == -1 {
		return nil, nil
	}
	if n < 0 || int(n) > d.remaining() {
		return nil, DecodingError{ErrInsufficientData}
	}
	out := d.buf[d.off : d.off+int(n)]
	d.off += int(n)
	return out, nil
}

func (d *decoder) getRawBytes(n int) ([]byte, error) {
	if n < 0 || n > d.remaining() {
		return nil, ErrInsufficientData
	}
	out := d.buf[d.off : d.off+n]
	d.off += n
	return out, nil
}

func (d *decoder) getString() (string, error) {
	n, err := d.getInt16()
	if err != nil {
		return "", err
	}
	if n == -1 {
		return "", nil
	}
	if n < 0 || int(n) > d.remaining() {
		return "", DecodingError{ErrInsufficientData}
	}
	out := string(d.buf[d.off : d.off+int(n)])
	d.off += int(n)
	return out, nil
}

// expectCRC verifies that the crc32 field at the decoder's current offset
// matches the Castagnoli checksum of the following length bytes, then
// advances past the crc field itself.
func (d *decoder) expectCRC(followingLen int) error {
	sum, err := d.getInt32()
	if err != nil {
		return err
	}
	if d.remaining() < followingLen {
		return ErrInsufficientData
	}
	got := crc32.Checksum(d.buf[d.off:d.off+followingLen], crcTable)
	if uint32(sum) != got {
		return DecodingError{ErrBadCRC}
	}
	return nil
}
