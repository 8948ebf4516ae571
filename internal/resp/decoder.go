package resp

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

// Protocol limits to prevent a single client from forcing huge allocations
const (
	// MaxBulkLength limits bulk string size to 512MB
	MaxBulkLength = 512 * 1024 * 1024

	// MaxArrayLen limits the number of elements in a request
	MaxArrayLen = 1 << 20

	// MaxLineSize limits the length of a "*<n>" or "$<n>" header line
	MaxLineSize = 64 * 1024
)

// ErrProtocol is the root of every decoding failure. A protocol error is fatal to the connection
var ErrProtocol = errors.New("ERR protocol error")

var (
	ErrExpectedArray  = fmt.Errorf("%w: expected '*'", ErrProtocol)
	ErrExpectedBulk   = fmt.Errorf("%w: expected '$'", ErrProtocol)
	ErrInvalidEnding  = fmt.Errorf("%w: invalid line ending", ErrProtocol)
	ErrInvalidLength  = fmt.Errorf("%w: invalid length", ErrProtocol)
	ErrLineTooLong    = fmt.Errorf("%w: line too long", ErrProtocol)
	ErrBulkTooLarge   = fmt.Errorf("%w: bulk string exceeds 512MB limit", ErrProtocol)
	ErrArrayTooLong   = fmt.Errorf("%w: array exceeds 1M elements limit", ErrProtocol)
	errNeedMoreInput  = errors.New("incomplete request")
	crlf              = []byte{'\r', '\n'}
	emptyBulkArgument = []byte{}
)

// Decoder accumulates bytes read from a stream and extracts complete requests from them.
// Only arrays of bulk strings are accepted, which is what clients send.
// A Decoder is not safe for concurrent use
type Decoder struct {
	buf   []byte
	pos   int        // start of the first unconsumed byte
	frame frameState // progress on the request starting at pos
}

// frameState remembers how far a partially received request has been parsed,
// so that completed elements are not parsed again when more input arrives.
// Offsets are relative to the start of the frame and survive buffer compaction
type frameState struct {
	started bool
	count   int    // elements announced by the array header
	off     int    // end of the last complete element
	spans   []span // bounds of the complete elements
}

// span holds element bounds inside a frame; a negative start marks a null element
type span struct{ start, end int }

// NewDecoder creates an empty Decoder
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends p to the internal buffer. p is copied
func (d *Decoder) Feed(p []byte) {
	if d.pos > 0 {
		n := copy(d.buf, d.buf[d.pos:])
		d.buf = d.buf[:n]
		d.pos = 0
	}
	d.buf = append(d.buf, p...)
}

// Buffered returns the number of fed bytes that have not been consumed by a request yet
func (d *Decoder) Buffered() int {
	return len(d.buf) - d.pos
}

// Next extracts one complete request from the buffer.
// It returns ok == false when the buffer holds only part of a frame; more input must be fed.
// On success exactly the bytes of that request are consumed, so pipelined requests
// already in the buffer can be taken by further calls
func (d *Decoder) Next() (req Request, ok bool, err error) {
	req, n, err := d.frame.parse(d.buf[d.pos:])
	if err != nil {
		if errors.Is(err, errNeedMoreInput) {
			return nil, false, nil
		}
		d.frame.reset()
		return nil, false, err
	}

	d.pos += n
	if d.pos == len(d.buf) {
		d.buf = d.buf[:0]
		d.pos = 0
	}

	return req, true, nil
}

func (f *frameState) reset() {
	f.started = false
	f.count = 0
	f.off = 0
	f.spans = f.spans[:0]
}

// parse continues parsing "*N\r\n($len\r\n<bytes>\r\n){N}" at the start of b.
// It returns the request and the number of bytes it occupies, or errNeedMoreInput
// after recording the elements completed so far
func (f *frameState) parse(b []byte) (Request, int, error) {
	if !f.started {
		if len(b) == 0 {
			return nil, 0, errNeedMoreInput
		}

		if b[0] != TypeArray {
			return nil, 0, ErrExpectedArray
		}

		count, off, err := readLength(b, 0)
		if err != nil {
			return nil, 0, err
		}

		if count > MaxArrayLen {
			return nil, 0, ErrArrayTooLong
		}

		// null and negative arrays carry no elements
		f.started = true
		f.count = max(count, 0)
		f.off = off
	}

	for len(f.spans) < f.count {
		off := f.off
		if off < len(b) && b[off] != TypeBulkString {
			return nil, 0, ErrExpectedBulk
		}

		size, next, err := readLength(b, off)
		if err != nil {
			return nil, 0, err
		}

		if size == -1 {
			f.spans = append(f.spans, span{-1, -1})
			f.off = next
			continue
		}

		if size < 0 {
			return nil, 0, ErrInvalidLength
		}

		if size > MaxBulkLength {
			return nil, 0, ErrBulkTooLarge
		}

		if len(b)-next < size+2 {
			return nil, 0, errNeedMoreInput
		}

		if b[next+size] != '\r' || b[next+size+1] != '\n' {
			return nil, 0, ErrInvalidEnding
		}

		f.spans = append(f.spans, span{next, next + size})
		f.off = next + size + 2
	}

	// one copy of the whole frame backs every element
	n := f.off
	frame := bytes.Clone(b[:n])
	req := make(Request, len(f.spans))
	for i, s := range f.spans {
		if s.start < 0 {
			req[i] = emptyBulkArgument
			continue
		}
		req[i] = frame[s.start:s.end:s.end]
	}

	f.reset()
	return req, n, nil
}

// readLength parses a "<prefix><integer>\r\n" header line starting at off.
// It returns the integer and the offset just past the line
func readLength(b []byte, off int) (int, int, error) {
	idx := bytes.Index(b[off:], crlf)
	if idx < 0 {
		if len(b)-off > MaxLineSize {
			return 0, 0, ErrLineTooLong
		}
		return 0, 0, errNeedMoreInput
	}

	if idx > MaxLineSize {
		return 0, 0, ErrLineTooLong
	}

	n, err := strconv.Atoi(string(b[off+1 : off+idx]))
	if err != nil {
		return 0, 0, ErrInvalidLength
	}

	return n, off + idx + 2, nil
}
