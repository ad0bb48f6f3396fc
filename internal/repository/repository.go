// Package repository composes the transports, parser and mapper into the
// public chat operations. Each operation is one linear pipeline: build the
// request, run the transport, parse, map. The first failing step is the
// operation's result; later steps never run.
package repository

import (
	"context"
	"net/http"
	"strconv"

	"github.com/chatwire/chatwire/internal/chat"
	"github.com/chatwire/chatwire/internal/config"
	"github.com/chatwire/chatwire/internal/mapper"
	"github.com/chatwire/chatwire/internal/rest"
	"github.com/chatwire/chatwire/internal/socket"
	"github.com/chatwire/chatwire/internal/wire"
	"github.com/chatwire/chatwire/pkg/failure"
	"github.com/chatwire/chatwire/pkg/frame"
	"github.com/chatwire/chatwire/pkg/result"
)

// Repository is the entry point of the chat client. One instance owns one
// persistent broker connection plus stateless REST clients; all methods are
// safe for concurrent use.
type Repository struct {
	cfg     config.Config
	socket  *socket.Transport
	backend *rest.Client
	files   *rest.Client
}

// Option configures a Repository.
type Option func(*settings)

type settings struct {
	httpClient *http.Client
	socketOpts []socket.Option
}

// WithHTTPClient substitutes the HTTP client used for REST and upload calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *settings) { s.httpClient = hc }
}

// WithSocketOptions forwards options to the socket transport, used by tests
// to inject an in-memory dialer.
func WithSocketOptions(opts ...socket.Option) Option {
	return func(s *settings) { s.socketOpts = append(s.socketOpts, opts...) }
}

// New wires a repository from configuration.
func New(cfg config.Config, opts ...Option) (*Repository, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	backend, err := rest.New(cfg.BackendBaseURL, s.httpClient)
	if err != nil {
		return nil, err
	}
	files, err := rest.New(cfg.LambdaBaseURL, s.httpClient)
	if err != nil {
		return nil, err
	}
	return &Repository{
		cfg:     cfg,
		socket:  socket.New(cfg.SocketURL, s.socketOpts...),
		backend: backend,
		files:   files,
	}, nil
}

// Destination templates of the broker.
func publishDestination(roomID string) string {
	return "/app/chat.queue." + roomID
}

func subscribeDestination(roomID string) string {
	return "/exchange/chat.exchange/room." + roomID
}

// Connect opens the persistent broker connection.
func (r *Repository) Connect(ctx context.Context) error {
	return r.socket.Connect(ctx)
}

// Disconnect closes the broker connection; active subscriptions end.
func (r *Repository) Disconnect() {
	r.socket.Disconnect()
}

// SendChatMessage publishes one CHAT message to a room. Fire and forget:
// success means the frame left the socket, not that anyone received it.
func (r *Repository) SendChatMessage(ctx context.Context, appID, roomID, accessToken, senderID, content, attachmentURL string) error {
	const op = "repository.SendChatMessage"

	msg := chat.NewOutgoingMessage(chat.KindChat).
		App(appID).
		Room(roomID).
		Sender(senderID).
		Content(content).
		Attachment(attachmentURL).
		Build()

	sent := result.FlatMap(wire.EncodeOutgoingMessage(msg), func(body []byte) result.Result[struct{}] {
		err := r.socket.Send(ctx, publishDestination(roomID), body,
			frame.Header{Name: "Authorization", Value: accessToken})
		return result.Of(op, struct{}{}, err)
	})
	_, err := sent.Unpack()
	return err
}

// SubscribeToChatMessages opens a stream of mapped chat messages for a
// room. Per-element decode or mapping failures surface on the stream; the
// connection and other subscriptions are unaffected.
func (r *Repository) SubscribeToChatMessages(ctx context.Context, roomID string) (*MessageStream, error) {
	sub, err := r.socket.Subscribe(ctx, subscribeDestination(roomID))
	if err != nil {
		return nil, err
	}
	return newMessageStream(sub), nil
}

// RequestChatRoomsList fetches one page of chat rooms.
func (r *Repository) RequestChatRoomsList(ctx context.Context, page, size int) ([]chat.ChatRoom, error) {
	req := wire.NewRequest(http.MethodGet, "chatrooms").
		WithQuery("page", strconv.Itoa(page)).
		WithQuery("size", strconv.Itoa(size))

	rooms := result.FlatMap(
		result.FlatMap(r.backend.Do(ctx, req), wire.DecodeChatRoomList),
		mapper.ToChatRooms,
	)
	return rooms.Unpack()
}

// CreateChatRoom creates a group room. The returned entity is mapped from
// the local create request after the status check; the server's response
// body is discarded, so a server-assigned id is only visible through a
// later RequestChatRoomsList or GetChatHistory call.
func (r *Repository) CreateChatRoom(ctx context.Context, appID, accessToken, userID, roomName string) (chat.ChatRoom, error) {
	create := chat.RoomCreateRequest{UserID: userID, Name: roomName, Kind: chat.RoomGroup}

	req := result.Map(
		wire.EncodeRoomCreate(create),
		func(body []byte) wire.Request {
			built := wire.NewRequest(http.MethodPost, "chatrooms").
				WithHeader("Authorization", accessToken).
				WithHeader("App-Id", appID).
				WithHeader("Content-Type", "application/json")
			built.Body = body
			return built
		},
	)
	room := result.FlatMap(req, func(built wire.Request) result.Result[chat.ChatRoom] {
		return result.FlatMap(r.backend.Do(ctx, built), func([]byte) result.Result[chat.ChatRoom] {
			return mapper.FromCreateRequest(create)
		})
	})
	return room.Unpack()
}

// GetChatHistory fetches the fixed first window of a room's messages, in
// server-returned order.
func (r *Repository) GetChatHistory(ctx context.Context, roomID string) ([]chat.ChatMessage, error) {
	req := wire.NewRequest(http.MethodGet, "chatrooms/detail/"+roomID).
		WithQuery("page", "0").
		WithQuery("size", "100")

	messages := result.FlatMap(
		result.FlatMap(r.backend.Do(ctx, req), wire.DecodeChatMessageList),
		mapper.ToChatMessages,
	)
	return messages.Unpack()
}

// EnterChatRoom is intentionally not provided yet.
func (r *Repository) EnterChatRoom(ctx context.Context, roomID, userID string) error {
	return failure.Unimplemented("repository.EnterChatRoom")
}

// LeaveChatRoom is intentionally not provided yet.
func (r *Repository) LeaveChatRoom(ctx context.Context, roomID, userID string) error {
	return failure.Unimplemented("repository.LeaveChatRoom")
}

// GetUserChatRooms is intentionally not provided yet.
func (r *Repository) GetUserChatRooms(ctx context.Context, userID string) ([]chat.ChatRoom, error) {
	return nil, failure.Unimplemented("repository.GetUserChatRooms")
}
