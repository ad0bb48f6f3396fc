package repository

import (
	"github.com/chatwire/chatwire/internal/chat"
	"github.com/chatwire/chatwire/internal/mapper"
	"github.com/chatwire/chatwire/internal/socket"
	"github.com/chatwire/chatwire/internal/wire"
	"github.com/chatwire/chatwire/pkg/failure"
	"github.com/chatwire/chatwire/pkg/frame"
	"github.com/chatwire/chatwire/pkg/result"
)

// Delivery is one element of a message stream: either a mapped message or
// the failure that element produced. The consumer decides whether a failed
// element ends its loop; the stream itself keeps going.
type Delivery struct {
	Message chat.ChatMessage
	Err     error
}

// MessageStream adapts a raw frame subscription into parsed, mapped chat
// messages. The channel closes when the connection drops or the stream is
// closed.
type MessageStream struct {
	sub *socket.Subscription
	out chan Delivery
}

func newMessageStream(sub *socket.Subscription) *MessageStream {
	s := &MessageStream{
		sub: sub,
		out: make(chan Delivery),
	}
	go s.pump()
	return s
}

// Messages returns the stream of deliveries.
func (s *MessageStream) Messages() <-chan Delivery { return s.out }

// RoomDestination returns the broker destination this stream consumes.
func (s *MessageStream) RoomDestination() string { return s.sub.Destination() }

// Close detaches the underlying subscription. The connection and any other
// streams stay untouched.
func (s *MessageStream) Close() { s.sub.Close() }

func (s *MessageStream) pump() {
	defer close(s.out)
	for {
		select {
		case f, ok := <-s.sub.Frames():
			if !ok {
				return
			}
			select {
			case s.out <- deliver(f):
			case <-s.sub.Done():
				return
			}
		case <-s.sub.Done():
			return
		}
	}
}

// deliver runs the per-frame pipeline: body present, then parse, then map.
func deliver(f frame.Frame) Delivery {
	if f.Body == nil {
		return Delivery{Err: failure.Decode("repository.MessageStream", "frame has no body", nil)}
	}
	msg, err := result.FlatMap(wire.DecodeChatMessage(f.Body), mapper.ToChatMessage).Unpack()
	return Delivery{Message: msg, Err: err}
}
