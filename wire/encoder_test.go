package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncoderPrimitives(t *testing.T) {
	e := newEncoder(32)
	e.putInt8(-1)
	e.putBool(true)
	e.putInt16(1000)
	e.putInt32(-70000)
	e.putInt64(1 << 40)
	require.NoError(t, e.putString("hi"))
	require.NoError(t, e.putBytes([]byte("bytes")))

	d := newDecoder(e.bytes())
	i8, err := d.getInt8()
	require.NoError(t, err)
	require.EqualValues(t, -1, i8)

	b, err := d.getBool()
	require.NoError(t, err)
	require.True(t, b)

	i16, err := d.getInt16()
	require.NoError(t, err)
	require.EqualValues(t, 1000, i16)

	i32, err := d.getInt32()
	require.NoError(t, err)
	require.EqualValues(t, -70000, i32)

	i64, err := d.getInt64()
	require.NoError(t, err)
	require.EqualValues(t, 1<<40, i64)

	s, err := d.getString()
	require.NoError(t, err)
	require.Equal(t, "hi", s)

	raw, err := d.getBytes()
	require.NoError(t, err)
	require.Equal(t, []byte("bytes"), raw)
}

func TestEncoderPutBytesNilIsMinusOneLength(t *testing.T) {
	e := newEncoder(8)
	require.NoError(t, e.putBytes(nil))

	d := newDecoder(e.bytes())
	got, err := d.getBytes()
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestLengthFieldFillsBackfilledSize(t *testing.T) {
	e := newEncoder(16)
	e.push(&lengthField{})
	e.putInt32(1)
	e.putInt32(2)
	e.pop()

	d := newDecoder(e.bytes())
	n, err := d.getInt32()
	require.NoError(t, err)
	require.EqualValues(t, 8, n)
}

func TestCRCFieldRoundTrips(t *testing.T) {
	e := newEncoder(16)
	e.push(&crcField{})
	e.putInt32(123)
	e.pop()

	d := newDecoder(e.bytes())
	require.NoError(t, d.expectCRC(4))
}

func TestCRCFieldDetectsCorruption(t *testing.T) {
	e := newEncoder(16)
	e.push(&crcField{})
	e.putInt32(123)
	e.pop()

	buf := e.bytes()
	buf[len(buf)-1] ^= 0xFF

	d := newDecoder(buf)
	err := d.expectCRC(4)
	require.ErrorIs(t, err, ErrBadCRC)
}

func TestDecoderInsufficientData(t *testing.T) {
	d := newDecoder([]byte{0x00})
	_, err := d.getInt32()
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestArrayLengthRejectsAbsurdCounts(t *testing.T) {
	e := newEncoder(8)
	e.putInt32(1 << 21)
	d := newDecoder(e.bytes())
	_, err := d.getArrayLength()
	require.ErrorIs(t, err, ErrInvalidArrayLength)
}

func TestPutArrayLengthRejectsAbsurdCounts(t *testing.T) {
	e := newEncoder(8)
	err := e.putArrayLength(1 << 21)
	require.ErrorIs(t, err, ErrInvalidArrayLength)
}
