package feed

import (
	"net"
	"sync"

	"github.com/errdeck/errdeck/internal/errx"
	"github.com/errdeck/errdeck/pkg/entry"
)

// Client forwards notifications to a remote viewer. It satisfies the
// sink's Notifier contract, so it can be subscribed like any local
// listener. Writes are serialized by an internal lock.
type Client struct {
	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

// Dial connects to a viewer's unix socket.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, errx.Wrap(ErrDial, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) AddEntries(batch []entry.Entry) error {
	return c.send(&Frame{Op: OpAdd, Entries: batch})
}

func (c *Client) RemoveEntries(batch []entry.Entry) error {
	return c.send(&Frame{Op: OpRemove, Entries: batch})
}

// Raise asks the viewer to present itself to the user.
func (c *Client) Raise() error {
	return c.send(&Frame{Op: OpRaise})
}

func (c *Client) send(f *Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	return writeFrame(c.conn, f)
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
