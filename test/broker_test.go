package test

import (
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/chatwire/chatwire/pkg/frame"
)

// broker is a minimal in-process message broker for end-to-end tests. It
// accepts websocket sessions, answers the CONNECT handshake, tracks
// subscriptions, and fans SEND frames published to /app/chat.queue.<room>
// out as MESSAGE frames to every subscriber of
// /exchange/chat.exchange/room.<room>.
type broker struct {
	srv *httptest.Server

	mu       sync.Mutex
	sessions map[*brokerSession]struct{}
}

type brokerSession struct {
	conn net.Conn
	rw   io.ReadWriter

	writeMu sync.Mutex
	subs    map[string]string // subscription id -> destination
}

func newBroker() *broker {
	b := &broker{sessions: make(map[*brokerSession]struct{})}
	b.srv = httptest.NewServer(http.HandlerFunc(b.handleUpgrade))
	return b
}

// url returns the ws:// endpoint of the broker.
func (b *broker) url() string {
	return "ws" + strings.TrimPrefix(b.srv.URL, "http")
}

func (b *broker) close() {
	b.mu.Lock()
	for s := range b.sessions {
		s.conn.Close()
		delete(b.sessions, s)
	}
	b.mu.Unlock()
	b.srv.Close()
}

func (b *broker) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, brw, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Printf("broker: upgrade failed: %v", err)
		return
	}
	session := &brokerSession{
		conn: conn,
		rw: struct {
			io.Reader
			io.Writer
		}{brw, conn},
		subs: make(map[string]string),
	}
	b.mu.Lock()
	b.sessions[session] = struct{}{}
	b.mu.Unlock()

	go b.serve(session)
}

func (b *broker) serve(s *brokerSession) {
	defer func() {
		b.mu.Lock()
		delete(b.sessions, s)
		b.mu.Unlock()
		s.conn.Close()
	}()

	var buf []byte
	for {
		data, err := wsutil.ReadClientText(s.rw)
		if err != nil {
			return
		}
		buf = append(buf, data...)

		frames, rest, derr := frame.Decode(buf)
		if derr != nil {
			log.Printf("broker: malformed frame from client: %v", derr)
		}
		buf = rest
		for _, f := range frames {
			b.handle(s, f)
		}
	}
}

func (b *broker) handle(s *brokerSession, f frame.Frame) {
	switch f.Command {
	case frame.CmdConnect:
		s.write(frame.New(frame.CmdConnected, "version", "1.2"))
	case frame.CmdSubscribe:
		id, _ := f.Header(frame.HdrID)
		dest, _ := f.Header(frame.HdrDestination)
		b.mu.Lock()
		s.subs[id] = dest
		b.mu.Unlock()
	case frame.CmdUnsubscribe:
		id, _ := f.Header(frame.HdrID)
		b.mu.Lock()
		delete(s.subs, id)
		b.mu.Unlock()
	case frame.CmdSend:
		dest, _ := f.Header(frame.HdrDestination)
		room, ok := strings.CutPrefix(dest, "/app/chat.queue.")
		if !ok {
			return
		}
		b.broadcast("/exchange/chat.exchange/room."+room, f.Body)
	case frame.CmdDisconnect:
		// Session closes when its socket does.
	}
}

// broadcast delivers a MESSAGE frame to every subscription of the
// destination, across all sessions.
func (b *broker) broadcast(destination string, body []byte) {
	b.mu.Lock()
	type target struct {
		session *brokerSession
		subID   string
	}
	var targets []target
	for s := range b.sessions {
		for id, dest := range s.subs {
			if dest == destination {
				targets = append(targets, target{session: s, subID: id})
			}
		}
	}
	b.mu.Unlock()

	for _, tg := range targets {
		msg := frame.New(frame.CmdMessage,
			frame.HdrSubscription, tg.subID,
			frame.HdrDestination, destination,
		).WithBody(body)
		tg.session.write(msg)
	}
}

func (s *brokerSession) write(f frame.Frame) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := wsutil.WriteServerText(s.conn, frame.Encode(f)); err != nil {
		log.Printf("broker: write failed: %v", err)
	}
}
