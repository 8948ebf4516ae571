package resp

import (
	"bufio"
	"io"
	"strconv"
)

// Encoder handles the serialization of RESP Value objects into an output stream.
// Writes are buffered until Flush is called
type Encoder struct {
	writer *bufio.Writer
}

// NewEncoder initializes an Encoder with a buffered writer
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		writer: bufio.NewWriter(w)}
}

// Write serializes a RESP Value into the write buffer
func (e *Encoder) Write(v Value) error {
	_, err := e.writer.Write(AppendValue(e.writer.AvailableBuffer(), v))
	return err
}

// Flush sends all buffered data to the underlying writer
func (e *Encoder) Flush() error {
	return e.writer.Flush()
}

// Buffered returns the number of bytes waiting for Flush
func (e *Encoder) Buffered() int {
	return e.writer.Buffered()
}

// Marshal returns the wire form of v
func Marshal(v Value) []byte {
	return AppendValue(nil, v)
}

// AppendValue appends the wire form of v to dst and returns the extended slice
func AppendValue(dst []byte, v Value) []byte {
	switch v.Type {
	case TypeInteger:
		return appendHeader(dst, ':', v.Integer)

	case TypeSimpleString:
		return appendRaw(dst, '+', v.String)

	case TypeError:
		return appendRaw(dst, '-', v.String)

	case TypeBulkString:
		if v.IsNull {
			return append(dst, "$-1\r\n"...)
		}
		return appendBulk(dst, v.String)

	case TypeArray:
		dst = appendHeader(dst, '*', int64(len(v.Array)))
		for _, el := range v.Array {
			dst = AppendValue(dst, el)
		}
		return dst
	}

	return dst
}

// appendHeader writes the type prefix, numeric value, and CRLF
func appendHeader(dst []byte, prefix byte, n int64) []byte {
	dst = append(dst, prefix)
	dst = strconv.AppendInt(dst, n, 10)
	return append(dst, '\r', '\n')
}

// appendRaw writes the type prefix, raw bytes, and CRLF (for SimpleString and Error)
func appendRaw(dst []byte, prefix byte, b []byte) []byte {
	dst = append(dst, prefix)
	dst = append(dst, b...)
	return append(dst, '\r', '\n')
}

func appendBulk(dst []byte, b []byte) []byte {
	dst = appendHeader(dst, '$', int64(len(b)))
	dst = append(dst, b...)
	return append(dst, '\r', '\n')
}
