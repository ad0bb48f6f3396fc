// Package socket maintains the persistent frame channel to the message
// broker: connect/disconnect lifecycle, serialized frame writes, and
// per-destination demultiplexing of the incoming frame stream.
package socket

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Conn abstracts the bidirectional byte channel under the transport. The
// production implementation is a websocket; tests substitute an in-memory
// pipe.
type Conn interface {
	// Read returns the next chunk of bytes from the peer. Frames may span
	// chunks; reassembly is the caller's concern.
	Read(ctx context.Context) ([]byte, error)

	// Write sends one chunk of bytes to the peer.
	Write(ctx context.Context, data []byte) error

	// Close closes the channel.
	Close() error
}

// Dialer opens a Conn to the given URL. Injectable so tests can run the
// transport against an in-memory peer.
type Dialer func(ctx context.Context, url string) (Conn, error)

// DialWebsocket is the default Dialer, a websocket client connection.
func DialWebsocket(ctx context.Context, url string) (Conn, error) {
	conn, br, _, err := ws.DefaultDialer.Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	// The handshake may leave application bytes in the bufio reader; keep
	// draining it ahead of the raw connection.
	var r io.Reader = conn
	if br != nil {
		r = br
	}
	return &wsConn{
		conn: conn,
		rw: struct {
			io.Reader
			io.Writer
		}{r, conn},
	}, nil
}

// wsConn adapts a gobwas websocket connection to Conn.
type wsConn struct {
	conn net.Conn
	rw   io.ReadWriter
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(deadline)
		defer c.conn.SetReadDeadline(noDeadline)
	}
	return wsutil.ReadServerText(c.rw)
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
		defer c.conn.SetWriteDeadline(noDeadline)
	}
	return wsutil.WriteClientText(c.conn, data)
}

func (c *wsConn) Close() error {
	_ = wsutil.WriteClientMessage(c.conn, ws.OpClose, nil)
	return c.conn.Close()
}

// noDeadline clears a previously set deadline.
var noDeadline = time.Time{}
