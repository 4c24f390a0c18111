package wire

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
)

// ReaderState is the state of a StreamReader's current frame assembly.
type ReaderState int

const (
	// ReadNeeded means no complete frame is buffered; the caller must
	// wait for the socket to become readable again and call Read.
	ReadNeeded ReaderState = iota
	// MsgReady means a complete, length-validated frame is available via
	// GetReadyMsg.
	MsgReady
	// DataInvalid means the declared frame length exceeded the reader's
	// maxBodySize.
	DataInvalid
	// AtEnd means the peer closed the connection (EOF), whether mid-frame
	// or at a frame boundary.
	AtEnd
)

// ErrConnectionLost is returned by Read when the underlying socket reports
// the connection has been reset or otherwise lost, distinguishing that
// case from an orderly EOF (AtEnd).
var ErrConnectionLost = errors.New("wire: connection lost")

const sizeFieldLen = 4

// StreamReader is a length-prefixed framer over a non-blocking socket. It
// accumulates bytes across possibly-partial reads and exposes a complete
// frame once one is available. Non-blocking reads are realized via a short
// read deadline on the net.Conn rather than raw poll(2).
type StreamReader struct {
	conn               net.Conn
	maxBodySize        int
	includeSizeInBody  bool
	trailingDataAfter  bool
	buf                []byte
	filled             int
	state              ReaderState
}

// NewStreamReader constructs a StreamReader bound to conn. maxBodySize is
// the hard ceiling on a declared frame length.
func NewStreamReader(conn net.Conn, includeSizeInBody, trailingDataAfter bool, maxBodySize, initialBufSize int) *StreamReader {
	return &StreamReader{
		conn:              conn,
		maxBodySize:       maxBodySize,
		includeSizeInBody: includeSizeInBody,
		trailingDataAfter: trailingDataAfter,
		buf:               make([]byte, initialBufSize),
		state:             ReadNeeded,
	}
}

// Reset rebinds the reader to a new connection and clears all buffered
// state, for use on reconnect.
func (r *StreamReader) Reset(conn net.Conn) {
	r.conn = conn
	r.filled = 0
	r.state = ReadNeeded
}

// State returns the reader's current state.
func (r *StreamReader) State() ReaderState { return r.state }

func (r *StreamReader) declaredBodyLen() (int, bool) {
	if r.filled < sizeFieldLen {
		return 0, false
	}
	n := int(binary.BigEndian.Uint32(r.buf[:sizeFieldLen]))
	if r.includeSizeInBody {
		n -= sizeFieldLen
	}
	return n, true
}

func (r *StreamReader) frameTotalLen(bodyLen int) int {
	return sizeFieldLen + bodyLen
}

func (r *StreamReader) growTo(n int) {
	if cap(r.buf) >= n {
		r.buf = r.buf[:n]
		return
	}
	next := make([]byte, n)
	copy(next, r.buf[:r.filled])
	r.buf = next
}

// Read performs one non-blocking read from the socket and advances the
// framing state machine. It returns ErrConnectionLost if the read fails
// for a reason other than "no data currently available" or EOF (a timeout
// from the connection's read deadline is not a failure: it just means no
// more bytes arrived this call, and the state is advanced from whatever is
// buffered).
func (r *StreamReader) Read() (ReaderState, error) {
	if r.state == MsgReady || r.state == DataInvalid || r.state == AtEnd {
		return r.state, nil
	}

	if bodyLen, ok := r.declaredBodyLen(); ok {
		r.growTo(r.frameTotalLen(bodyLen))
	} else {
		r.growTo(sizeFieldLen)
	}

	n, err := r.conn.Read(r.buf[r.filled:])
	if n > 0 {
		r.filled += n
	}
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return r.advance(), nil
		}
		if errors.Is(err, io.EOF) {
			r.state = AtEnd
			return r.state, nil
		}
		return r.state, ErrConnectionLost
	}
	if n == 0 {
		r.state = AtEnd
		return r.state, nil
	}

	return r.advance(), nil
}

func (r *StreamReader) advance() ReaderState {
	bodyLen, ok := r.declaredBodyLen()
	if !ok {
		r.state = ReadNeeded
		return r.state
	}

	if bodyLen < 0 || bodyLen > r.maxBodySize {
		r.state = DataInvalid
		return r.state
	}

	total := r.frameTotalLen(bodyLen)
	if r.filled < total {
		r.growTo(total)
		r.state = ReadNeeded
		return r.state
	}

	r.state = MsgReady
	return r.state
}

// GetReadyMsg returns the body of the currently complete frame (the length
// prefix stripped). Valid only when State() == MsgReady.
func (r *StreamReader) GetReadyMsg() []byte {
	bodyLen, _ := r.declaredBodyLen()
	return r.buf[sizeFieldLen : sizeFieldLen+bodyLen]
}

// GetReadyMsgSize returns the byte length of the currently complete frame's
// body.
func (r *StreamReader) GetReadyMsgSize() int {
	bodyLen, _ := r.declaredBodyLen()
	return bodyLen
}

// ConsumeReadyMsg drops the current frame, shifting any already-buffered
// trailing bytes (the start of the next frame, or of an unsolicited
// response) to the front of the buffer, and returns the reader's new
// state.
func (r *StreamReader) ConsumeReadyMsg() ReaderState {
	bodyLen, _ := r.declaredBodyLen()
	total := r.frameTotalLen(bodyLen)
	remaining := r.filled - total
	if remaining > 0 {
		copy(r.buf, r.buf[total:r.filled])
	}
	r.filled = remaining
	if remaining == 0 {
		r.buf = r.buf[:sizeFieldLen]
		r.state = ReadNeeded
		return r.state
	}
	return r.advance()
}
