package resp

// EncodeRequest converts a request into the array-of-bulk-strings frame a client sends.
// It is the format of the append-only file
func EncodeRequest(req Request) []byte {
	size := 16
	for _, part := range req {
		size += len(part) + 16
	}

	buf := appendHeader(make([]byte, 0, size), '*', int64(len(req)))
	for _, part := range req {
		buf = appendBulk(buf, part)
	}

	return buf
}
