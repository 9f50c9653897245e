package transport

import (
	"context"
	"errors"
	"io"
	"sync"
)

// Console is the local byte-stream link, usually a serial port or stdio.
// Bytes are read in the background so ReadByte never blocks.
type Console struct {
	ReadWriter io.ReadWriter

	byteCh    chan byte
	writeLock sync.Mutex
}

// DefaultConsoleBuffer is the number of bytes buffered from the console.
const DefaultConsoleBuffer = 1024

// NewConsole creates a Console.
func NewConsole(rw io.ReadWriter) *Console {
	return &Console{
		ReadWriter: rw,
		byteCh:     make(chan byte, DefaultConsoleBuffer),
	}
}

// ReadByte returns the next buffered byte without blocking.
func (c *Console) ReadByte() (byte, bool) {
	select {
	case b := <-c.byteCh:
		return b, true
	default:
		return 0, false
	}
}

// Write implements io.Writer.
func (c *Console) Write(p []byte) (int, error) {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	return c.ReadWriter.Write(p)
}

// WriteString writes s.
func (c *Console) WriteString(s string) (int, error) {
	return c.Write([]byte(s))
}

// Run implements Runnable. It returns nil when the reader reaches EOF.
func (c *Console) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.readLoop(subCtx, errCh)
	select {
	case err := <-errCh:
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Console) readLoop(ctx context.Context, errCh chan error) {
	buf := make([]byte, 64)
	for {
		n, err := c.ReadWriter.Read(buf)
		for i := 0; i < n; i++ {
			select {
			case c.byteCh <- buf[i]:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			errCh <- err
			return
		}
	}
}
