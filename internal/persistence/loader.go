package persistence

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/eternalApril/minikv/internal/resp"
)

// ErrTruncated means the file ends in the middle of a request, usually after a crash during a write
var ErrTruncated = errors.New("aof ends with an incomplete request")

const readChunkSize = 64 * 1024

// Load reads the AOF file and returns the requests to be replayed in file order.
// A missing file is an empty log. A malformed request is always an error;
// an incomplete trailing request is dropped only when allowTruncated is set
func (a *AOF) Load(allowTruncated bool) ([]resp.Request, error) {
	file, err := os.Open(a.filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // Fresh start
		}
		return nil, errors.Wrapf(err, "open aof %s", a.filename)
	}
	defer file.Close() //nolint:errcheck

	commands, rest, err := ReadAll(file)
	if err != nil {
		return nil, errors.Wrapf(err, "read aof %s", a.filename)
	}

	if rest > 0 {
		if !allowTruncated {
			return nil, errors.Wrapf(ErrTruncated, "%s: %d trailing bytes after %d requests", a.filename, rest, len(commands))
		}
		a.logger.Warn("AOF truncated, discarding incomplete tail",
			zap.String("file", a.filename),
			zap.Int("requests", len(commands)),
			zap.Int("discarded_bytes", rest),
		)
	}

	return commands, nil
}

// ReadAll decodes every complete request from r.
// It returns them in order together with the number of trailing bytes that did not form a request
func ReadAll(r io.Reader) ([]resp.Request, int, error) {
	dec := resp.NewDecoder()
	buf := make([]byte, readChunkSize)
	var commands []resp.Request

	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])

			for {
				req, ok, err := dec.Next()
				if err != nil {
					return nil, 0, err
				}
				if !ok {
					break
				}
				commands = append(commands, req)
			}
		}

		if readErr == io.EOF {
			return commands, dec.Buffered(), nil
		}
		if readErr != nil {
			return nil, 0, readErr
		}
	}
}
