package socket

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/chatwire/chatwire/pkg/failure"
	"github.com/chatwire/chatwire/pkg/frame"
)

// State is the connection lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// Transport is the persistent frame channel to the broker. It owns the
// underlying connection exclusively; writes are serialized, reads run in a
// single loop that fans frames out to subscriptions in arrival order.
//
// The transport never reconnects on its own. When the connection drops, all
// subscription channels are closed and the caller decides what to do next.
type Transport struct {
	url  string
	dial Dialer

	mu      sync.RWMutex
	state   State
	conn    Conn
	subs    map[string]*Subscription
	done    chan struct{}
	settled chan struct{}

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

// Option configures a Transport.
type Option func(*Transport)

// WithDialer substitutes the connection dialer, used by tests to run the
// transport over an in-memory pipe.
func WithDialer(d Dialer) Option {
	return func(t *Transport) { t.dial = d }
}

// New creates a disconnected transport for the given broker URL.
func New(url string, opts ...Option) *Transport {
	t := &Transport{
		url:  url,
		dial: DialWebsocket,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// State returns the current lifecycle state.
func (t *Transport) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Connect dials the broker and performs the handshake: a CONNECT frame out,
// a CONNECTED frame back. An ERROR frame or any transport fault fails the
// attempt and returns the transport to the disconnected state. Calling
// Connect while already connected is a successful no-op; a call racing an
// in-flight Connect or Disconnect waits for that transition to settle and
// then proceeds from whatever state it left behind.
func (t *Transport) Connect(ctx context.Context) error {
	const op = "socket.Connect"

	t.mu.Lock()
	for t.state == StateConnecting || t.state == StateDisconnecting {
		settled := t.settled
		t.mu.Unlock()
		select {
		case <-settled:
		case <-ctx.Done():
			return failure.Network(op, "connect canceled while waiting for transition", ctx.Err())
		}
		t.mu.Lock()
	}
	if t.state == StateConnected {
		t.mu.Unlock()
		return nil
	}
	t.state = StateConnecting
	t.settled = make(chan struct{})
	t.mu.Unlock()

	conn, err := t.dial(ctx, t.url)
	if err != nil {
		t.setDisconnected()
		return failure.Network(op, "dial failed", err)
	}

	connect := frame.New(frame.CmdConnect,
		"accept-version", "1.2",
		"heart-beat", "0,0",
	)
	if err := conn.Write(ctx, frame.Encode(connect)); err != nil {
		_ = conn.Close()
		t.setDisconnected()
		return failure.Network(op, "handshake write failed", err)
	}

	extra, remainder, err := t.awaitConnected(ctx, conn)
	if err != nil {
		_ = conn.Close()
		t.setDisconnected()
		return err
	}

	done := make(chan struct{})
	t.mu.Lock()
	t.conn = conn
	t.subs = make(map[string]*Subscription)
	t.done = done
	t.state = StateConnected
	t.settle()
	t.mu.Unlock()

	t.wg.Add(1)
	go t.readLoop(conn, done, extra, remainder)
	return nil
}

// awaitConnected reads frames until the broker acknowledges or rejects the
// session. Frames and bytes past the acknowledgement are handed back so the
// read loop can pick up exactly where the handshake stopped.
func (t *Transport) awaitConnected(ctx context.Context, conn Conn) ([]frame.Frame, []byte, error) {
	const op = "socket.Connect"
	var buf []byte
	for {
		frames, rest, derr := frame.Decode(buf)
		if derr != nil {
			return nil, nil, failure.Network(op, "malformed handshake frame", derr)
		}
		if len(frames) > 0 {
			ack := frames[0]
			switch ack.Command {
			case frame.CmdConnected:
				return frames[1:], rest, nil
			case frame.CmdError:
				msg, _ := ack.Header(frame.HdrMessage)
				if msg == "" {
					msg = string(ack.Body)
				}
				return nil, nil, failure.Network(op, fmt.Sprintf("broker rejected session: %s", msg), nil)
			default:
				return nil, nil, failure.Network(op, fmt.Sprintf("unexpected %s frame during handshake", ack.Command), nil)
			}
		}
		data, err := conn.Read(ctx)
		if err != nil {
			return nil, nil, failure.Network(op, "handshake read failed", err)
		}
		buf = append(buf, data...)
	}
}

// Disconnect sends a DISCONNECT frame if connected, then closes the
// connection regardless of acknowledgement. It always succeeds.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	if t.state != StateConnected {
		t.mu.Unlock()
		return
	}
	t.state = StateDisconnecting
	t.settled = make(chan struct{})
	conn := t.conn
	done := t.done
	t.mu.Unlock()

	// Best effort; the socket closes either way.
	t.writeFrame(context.Background(), conn, frame.New(frame.CmdDisconnect))
	close(done)
	_ = conn.Close()
	t.wg.Wait()
}

// Subscribe registers interest in a destination and returns the
// subscription delivering its frames. Distinct destinations are independent;
// closing one never affects another or the connection itself.
func (t *Transport) Subscribe(ctx context.Context, destination string) (*Subscription, error) {
	const op = "socket.Subscribe"

	t.mu.Lock()
	if t.state != StateConnected {
		state := t.state
		t.mu.Unlock()
		return nil, failure.Network(op, fmt.Sprintf("not connected: %s", state), nil)
	}
	sub := &Subscription{
		id:          uuid.NewString(),
		destination: destination,
		frames:      make(chan frame.Frame, subscriptionBuffer),
		closed:      make(chan struct{}),
		transport:   t,
	}
	t.subs[sub.id] = sub
	conn := t.conn
	t.mu.Unlock()

	subscribe := frame.New(frame.CmdSubscribe,
		frame.HdrID, sub.id,
		frame.HdrDestination, destination,
	)
	if err := t.writeFrame(ctx, conn, subscribe); err != nil {
		t.mu.Lock()
		delete(t.subs, sub.id)
		t.mu.Unlock()
		return nil, failure.Network(op, "subscribe write failed", err)
	}
	return sub, nil
}

// Send publishes a body to a destination. It succeeds when the socket write
// completes; no broker acknowledgement is awaited.
func (t *Transport) Send(ctx context.Context, destination string, body []byte, headers ...frame.Header) error {
	const op = "socket.Send"

	t.mu.RLock()
	if t.state != StateConnected {
		state := t.state
		t.mu.RUnlock()
		return failure.Network(op, fmt.Sprintf("not connected: %s", state), nil)
	}
	conn := t.conn
	t.mu.RUnlock()

	f := frame.New(frame.CmdSend,
		frame.HdrDestination, destination,
		frame.HdrContentType, "application/json",
		frame.HdrContentLength, strconv.Itoa(len(body)),
		frame.HdrReceipt, uuid.NewString(),
	)
	for _, h := range headers {
		f = f.WithHeader(h.Name, h.Value)
	}
	f = f.WithBody(body)

	if err := t.writeFrame(ctx, conn, f); err != nil {
		return failure.Network(op, "send write failed", err)
	}
	return nil
}

// writeFrame serializes concurrent writers onto the single socket.
func (t *Transport) writeFrame(ctx context.Context, conn Conn, f frame.Frame) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return conn.Write(ctx, frame.Encode(f))
}

// readLoop is the single reader of the socket. It reassembles frames across
// reads and routes them to subscriptions in arrival order.
func (t *Transport) readLoop(conn Conn, done chan struct{}, pending []frame.Frame, buf []byte) {
	defer t.wg.Done()
	defer t.teardown()

	for _, f := range pending {
		t.route(f, done)
	}

	for {
		frames, rest, err := frame.Decode(buf)
		if err != nil {
			log.Printf("socket: dropping malformed frame: %v", err)
		}
		buf = rest
		for _, f := range frames {
			t.route(f, done)
		}

		data, err := conn.Read(context.Background())
		if err != nil {
			select {
			case <-done:
				// Intentional disconnect.
			default:
				log.Printf("socket: read error, connection lost: %v", err)
			}
			return
		}
		buf = append(buf, data...)
	}
}

// route delivers one frame to its subscription. MESSAGE frames resolve by
// the subscription header first, then by destination; anything unmatched is
// discarded with a diagnostic log.
func (t *Transport) route(f frame.Frame, done chan struct{}) {
	switch f.Command {
	case frame.CmdMessage:
		targets := t.match(f)
		if len(targets) == 0 {
			dest, _ := f.Header(frame.HdrDestination)
			t.mu.RLock()
			active := lo.Map(lo.Values(t.subs), func(s *Subscription, _ int) string {
				return s.destination
			})
			t.mu.RUnlock()
			log.Printf("socket: discarding frame for %q, active subscriptions: %v", dest, active)
			return
		}
		for _, sub := range targets {
			select {
			case sub.frames <- f:
			case <-sub.closed:
			case <-done:
				return
			}
		}
	case frame.CmdError:
		msg, _ := f.Header(frame.HdrMessage)
		log.Printf("socket: broker error frame: %s", msg)
	default:
		log.Printf("socket: discarding unexpected %s frame", f.Command)
	}
}

// match resolves the subscriptions a MESSAGE frame belongs to.
func (t *Transport) match(f frame.Frame) []*Subscription {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if id, ok := f.Header(frame.HdrSubscription); ok {
		if sub, ok := t.subs[id]; ok {
			return []*Subscription{sub}
		}
		return nil
	}
	dest, ok := f.Header(frame.HdrDestination)
	if !ok {
		return nil
	}
	var targets []*Subscription
	for _, sub := range t.subs {
		if sub.destination == dest {
			targets = append(targets, sub)
		}
	}
	return targets
}

// teardown closes every live subscription channel and resets the state once
// the read loop exits, for whatever reason.
func (t *Transport) teardown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, sub := range t.subs {
		close(sub.frames)
		delete(t.subs, id)
	}
	t.conn = nil
	t.state = StateDisconnected
	t.settle()
}

func (t *Transport) setDisconnected() {
	t.mu.Lock()
	t.state = StateDisconnected
	t.settle()
	t.mu.Unlock()
}

// settle wakes Connect callers waiting out a state transition. Caller holds mu.
func (t *Transport) settle() {
	if t.settled != nil {
		close(t.settled)
		t.settled = nil
	}
}
