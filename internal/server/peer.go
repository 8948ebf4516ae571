package server

import (
	"net"
	"sync"

	"github.com/eternalApril/minikv/internal/resp"
)

const readBufferSize = 16 * 1024

// Peer represents a connected client.
// It wraps a network connection with a private request decoder and a buffered reply encoder
type Peer struct {
	conn    net.Conn
	reader  *resp.Decoder
	writer  *resp.Encoder
	buf     []byte
	readErr error // error returned together with the last bytes read
	mu      sync.Mutex
}

// NewPeer initializes a new client peer from a network connection
func NewPeer(conn net.Conn) *Peer {
	return &Peer{
		conn:   conn,
		reader: resp.NewDecoder(),
		writer: resp.NewEncoder(conn),
		buf:    make([]byte, readBufferSize),
	}
}

// Send encodes a RESP value into the reply buffer.
// This method is thread-safe and can be called from multiple goroutines
func (p *Peer) Send(v resp.Value) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writer.Write(v)
}

// ReadCommand returns the next request sent by the client.
// Pipelined requests already buffered are returned without touching the socket;
// pending replies are flushed before blocking on a read
func (p *Peer) ReadCommand() (resp.Request, error) {
	for {
		req, ok, err := p.reader.Next()
		if err != nil {
			return nil, err
		}
		if ok {
			return req, nil
		}

		if err := p.Flush(); err != nil {
			return nil, err
		}

		if p.readErr != nil {
			return nil, p.readErr
		}

		n, err := p.conn.Read(p.buf)
		if n > 0 {
			p.reader.Feed(p.buf[:n])
		}
		if err != nil {
			if n == 0 {
				return nil, err
			}
			p.readErr = err
		}
	}
}

// Close terminates the underlying network connection
func (p *Peer) Close() error {
	return p.conn.Close()
}

// Flush sends all buffered replies to the client
func (p *Peer) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writer.Flush()
}
