package persistence

import (
	"bufio"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	// ErrLogClosed is returned by Append after Close
	ErrLogClosed = errors.New("aof is closed")
	// ErrLogBroken is returned by Append once an earlier append failed
	ErrLogBroken = errors.New("aof is unusable after a failed write")
)

type fsyncStrategy int

const (
	fsyncAlways fsyncStrategy = iota + 1
	fsyncEverySec
	fsyncNo
)

// AOF Append Only File persistence.
// It is safe for concurrent use, appends are written in call order
type AOF struct {
	mu       sync.Mutex
	file     *os.File
	writer   *bufio.Writer
	filename string
	strategy fsyncStrategy
	err      error // first write failure, sticky
	closed   bool

	stopChan chan struct{}
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// NewAOF opens (or creates) the file for appending
func NewAOF(filename string, strategyStr string, logger *zap.Logger) (*AOF, error) {
	strategy := parseStrategy(strategyStr)

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create aof directory %s", dir)
		}
	}

	// open file in Append mode, Create if not exists, Read/Write
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "open aof %s", filename)
	}

	aof := &AOF{
		file:     f,
		writer:   bufio.NewWriter(f), // default 4KB buffer
		filename: filename,
		strategy: strategy,
		stopChan: make(chan struct{}),
		logger:   logger,
	}

	if strategy == fsyncEverySec {
		// background fsync
		aof.wg.Add(1)
		go aof.syncLoop()
	}

	return aof, nil
}

// Filename returns the path of the log file
func (a *AOF) Filename() string {
	return a.filename
}

// Append writes payload to the end of the file. With the "always" strategy the data
// is fsynced before Append returns. A failure makes every later Append fail too
func (a *AOF) Append(payload []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrLogClosed
	}

	if a.err != nil {
		return errors.Wrap(ErrLogBroken, a.err.Error())
	}

	if err := a.write(payload); err != nil {
		a.err = err
		a.logger.Error("AOF write error", zap.String("file", a.filename), zap.Error(err))
		return err
	}

	return nil
}

// write must be called with a.mu held
func (a *AOF) write(payload []byte) error {
	if _, err := a.writer.Write(payload); err != nil {
		return errors.Wrap(err, "aof write")
	}

	if err := a.writer.Flush(); err != nil {
		return errors.Wrap(err, "aof flush")
	}

	if a.strategy == fsyncAlways {
		if err := a.file.Sync(); err != nil {
			return errors.Wrap(err, "aof fsync")
		}
	}

	return nil
}

func (a *AOF) syncLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.mu.Lock()
			if !a.closed && a.err == nil {
				if err := a.file.Sync(); err != nil {
					a.logger.Warn("AOF background fsync failed", zap.Error(err))
				}
			}
			a.mu.Unlock()

		case <-a.stopChan:
			return
		}
	}
}

// Close flushes pending data, fsyncs and releases the file.
// It is safe to call more than once
func (a *AOF) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.stopChan)
	a.mu.Unlock()

	a.wg.Wait() // wait for background routine to finish

	a.mu.Lock()
	defer a.mu.Unlock()

	return multierr.Combine(
		a.writer.Flush(),
		a.file.Sync(),
		a.file.Close(),
	)
}

func parseStrategy(s string) fsyncStrategy {
	switch s {
	case "everysec":
		return fsyncEverySec
	case "no":
		return fsyncNo
	default:
		return fsyncAlways
	}
}
