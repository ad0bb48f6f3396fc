package socket

import (
	"context"
	"sync"

	"github.com/chatwire/chatwire/pkg/frame"
)

// subscriptionBuffer bounds how far a subscription's consumer may lag
// behind the socket before deliveries to it start blocking the read loop.
const subscriptionBuffer = 16

// Subscription is one registered destination on the transport. Frames
// arrive on Frames() in socket arrival order. The channel is closed when
// the connection goes away; an explicitly closed subscription signals
// Done() instead.
type Subscription struct {
	id          string
	destination string
	frames      chan frame.Frame
	closed      chan struct{}
	once        sync.Once
	transport   *Transport
}

// ID returns the broker-visible subscription id.
func (s *Subscription) ID() string { return s.id }

// Destination returns the subscribed destination.
func (s *Subscription) Destination() string { return s.destination }

// Frames returns the channel of frames for this destination.
func (s *Subscription) Frames() <-chan frame.Frame { return s.frames }

// Done is signalled when the subscription has been explicitly closed.
func (s *Subscription) Done() <-chan struct{} { return s.closed }

// Close detaches the destination registration, sending a best-effort
// UNSUBSCRIBE frame. Other subscriptions and the connection itself are
// unaffected. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.closed)

		t := s.transport
		t.mu.Lock()
		delete(t.subs, s.id)
		connected := t.state == StateConnected
		conn := t.conn
		t.mu.Unlock()

		if connected && conn != nil {
			unsubscribe := frame.New(frame.CmdUnsubscribe, frame.HdrID, s.id)
			_ = t.writeFrame(context.Background(), conn, unsubscribe)
		}
	})
}
