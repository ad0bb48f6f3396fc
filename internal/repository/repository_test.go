package repository_test

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatwire/chatwire/internal/config"
	"github.com/chatwire/chatwire/internal/repository"
	"github.com/chatwire/chatwire/internal/socket"
	"github.com/chatwire/chatwire/pkg/failure"
	"github.com/chatwire/chatwire/pkg/frame"
)

// fakeConn stands in for the broker connection: tests feed frames into
// incoming and observe everything the repository publishes.
type fakeConn struct {
	incoming  chan []byte
	wrote     chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		incoming: make(chan []byte, 32),
		wrote:    make(chan []byte, 32),
		closed:   make(chan struct{}),
	}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-c.incoming:
		return data, nil
	case <-c.closed:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Write(_ context.Context, data []byte) error {
	select {
	case <-c.closed:
		return net.ErrClosed
	default:
	}
	c.wrote <- append([]byte(nil), data...)
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(f frame.Frame) {
	c.incoming <- frame.Encode(f)
}

func (c *fakeConn) nextWritten(t *testing.T) frame.Frame {
	t.Helper()
	select {
	case data := <-c.wrote:
		frames, _, err := frame.Decode(data)
		require.NoError(t, err)
		require.Len(t, frames, 1)
		return frames[0]
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a written frame")
		return frame.Frame{}
	}
}

func (c *fakeConn) expectSilence(t *testing.T) {
	t.Helper()
	select {
	case data := <-c.wrote:
		t.Fatalf("unexpected frame written: %q", data)
	case <-time.After(50 * time.Millisecond):
	}
}

// newConnectedRepo builds a repository wired to a fakeConn with a completed
// broker handshake; the CONNECT frame is already consumed.
func newConnectedRepo(t *testing.T, cfg config.Config) (*repository.Repository, *fakeConn) {
	t.Helper()
	fc := newFakeConn()
	repo, err := repository.New(cfg, repository.WithSocketOptions(
		socket.WithDialer(func(context.Context, string) (socket.Conn, error) {
			return fc, nil
		}),
	))
	require.NoError(t, err)

	fc.push(frame.New(frame.CmdConnected, "version", "1.2"))
	require.NoError(t, repo.Connect(context.Background()))
	t.Cleanup(repo.Disconnect)

	got := fc.nextWritten(t)
	require.Equal(t, frame.CmdConnect, got.Command)
	return repo, fc
}

func testConfig() config.Config {
	return config.Config{
		SocketURL:         "ws://broker.test/ws",
		BackendBaseURL:    "http://backend.test",
		LambdaBaseURL:     "http://lambda.test",
		CloudFrontBaseURL: "https://cdn.test",
	}
}

func TestSendChatMessagePublishesOneFrame(t *testing.T) {
	repo, fc := newConnectedRepo(t, testConfig())

	err := repo.SendChatMessage(context.Background(), "app1", "42", "tok", "u1", "hi", "")
	require.NoError(t, err)

	got := fc.nextWritten(t)
	assert.Equal(t, frame.CmdSend, got.Command)
	dest, _ := got.Header(frame.HdrDestination)
	assert.Equal(t, "/app/chat.queue.42", dest)
	auth, _ := got.Header("Authorization")
	assert.Equal(t, "tok", auth)
	assert.Contains(t, string(got.Body), `"type":"CHAT"`)
	assert.Contains(t, string(got.Body), `"content":"hi"`)

	fc.expectSilence(t)
}

func TestSendChatMessageNotConnected(t *testing.T) {
	repo, err := repository.New(testConfig())
	require.NoError(t, err)

	err = repo.SendChatMessage(context.Background(), "app1", "42", "tok", "u1", "hi", "")
	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.KindNetwork))
}

func TestSubscribeToChatMessages(t *testing.T) {
	repo, fc := newConnectedRepo(t, testConfig())

	stream, err := repo.SubscribeToChatMessages(context.Background(), "7")
	require.NoError(t, err)
	defer stream.Close()
	assert.Equal(t, "/exchange/chat.exchange/room.7", stream.RoomDestination())
	fc.nextWritten(t) // SUBSCRIBE

	fc.push(frame.New(frame.CmdMessage,
		frame.HdrDestination, "/exchange/chat.exchange/room.7",
	).WithBody([]byte(`{"id":"m1","roomId":"7","senderId":"u2","content":"hello","type":"CHAT"}`)))

	select {
	case d := <-stream.Messages():
		require.NoError(t, d.Err)
		assert.Equal(t, "m1", d.Message.ID)
		assert.Equal(t, "7", d.Message.RoomID)
		assert.Equal(t, "hello", d.Message.Content)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a delivery")
	}
}

func TestSubscribeStreamSurfacesElementFailures(t *testing.T) {
	repo, fc := newConnectedRepo(t, testConfig())

	stream, err := repo.SubscribeToChatMessages(context.Background(), "7")
	require.NoError(t, err)
	defer stream.Close()
	fc.nextWritten(t)

	dest := "/exchange/chat.exchange/room.7"
	// A body-less frame, a malformed body, an invalid transfer object, then
	// a good message: each earlier failure is one element, not the end of
	// the stream.
	fc.push(frame.New(frame.CmdMessage, frame.HdrDestination, dest))
	fc.push(frame.New(frame.CmdMessage, frame.HdrDestination, dest).WithBody([]byte(`{broken`)))
	fc.push(frame.New(frame.CmdMessage, frame.HdrDestination, dest).WithBody([]byte(`{"senderId":"u2","type":"CHAT"}`)))
	fc.push(frame.New(frame.CmdMessage, frame.HdrDestination, dest).WithBody([]byte(`{"roomId":"7","senderId":"u2","type":"CHAT"}`)))

	wantKinds := []failure.Kind{failure.KindDecode, failure.KindDecode, failure.KindValidation}
	for i, want := range wantKinds {
		select {
		case d := <-stream.Messages():
			require.Error(t, d.Err, "element %d", i)
			assert.True(t, failure.IsKind(d.Err, want), "element %d: got %v", i, d.Err)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for element %d", i)
		}
	}

	select {
	case d := <-stream.Messages():
		require.NoError(t, d.Err)
		assert.Equal(t, "u2", d.Message.SenderID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the good message")
	}
}

func TestRequestChatRoomsList(t *testing.T) {
	var gotURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.String()
		w.Write([]byte(`[
			{"id":"r1","name":"general","type":"GROUP","memberCount":3},
			{"id":"r2","name":"pair","type":"SINGLE","memberCount":2}
		]`))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.BackendBaseURL = srv.URL
	repo, err := repository.New(cfg)
	require.NoError(t, err)

	rooms, err := repo.RequestChatRoomsList(context.Background(), 1, 20)
	require.NoError(t, err)
	assert.Equal(t, "/chatrooms?page=1&size=20", gotURL)
	require.Len(t, rooms, 2)
	assert.Equal(t, "r1", rooms[0].ID)
	assert.Equal(t, "r2", rooms[1].ID)
}

func TestGetChatHistoryIssuesFixedWindowOnce(t *testing.T) {
	var calls int
	var gotURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		gotURL = r.URL.String()
		w.Write([]byte(`[
			{"id":"m1","roomId":"7","senderId":"u1","content":"first","type":"CHAT"},
			{"id":"m2","roomId":"7","senderId":"u2","content":"second","type":"CHAT"}
		]`))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.BackendBaseURL = srv.URL
	repo, err := repository.New(cfg)
	require.NoError(t, err)

	messages, err := repo.GetChatHistory(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "/chatrooms/detail/7?page=0&size=100", gotURL)
	require.Len(t, messages, 2)
	assert.Equal(t, "m1", messages[0].ID)
	assert.Equal(t, "m2", messages[1].ID)
}

func TestGetChatHistoryServerErrorShortCircuits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.BackendBaseURL = srv.URL
	repo, err := repository.New(cfg)
	require.NoError(t, err)

	_, err = repo.GetChatHistory(context.Background(), "7")
	require.Error(t, err)
	// The transport failure is the result; the error body never reached the
	// parser, or this would be a decode failure.
	assert.True(t, failure.IsKind(err, failure.KindNetwork))
}

func TestCreateChatRoom(t *testing.T) {
	var gotAuth, gotAppID, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAppID = r.Header.Get("App-Id")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		// A server-assigned id the client deliberately ignores.
		w.Write([]byte(`{"id":"server-assigned","name":"renamed by server"}`))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.BackendBaseURL = srv.URL
	repo, err := repository.New(cfg)
	require.NoError(t, err)

	room, err := repo.CreateChatRoom(context.Background(), "app1", "tok", "u1", "general")
	require.NoError(t, err)
	assert.Equal(t, "tok", gotAuth)
	assert.Equal(t, "app1", gotAppID)
	assert.JSONEq(t, `{"userId":"u1","name":"general","type":"GROUP"}`, gotBody)

	// Mapped from the local request, not the server response.
	assert.Equal(t, "general", room.Name)
	assert.Empty(t, room.ID)
}

func TestCreateChatRoomRejectedByServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "duplicate name", http.StatusConflict)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.BackendBaseURL = srv.URL
	repo, err := repository.New(cfg)
	require.NoError(t, err)

	_, err = repo.CreateChatRoom(context.Background(), "app1", "tok", "u1", "general")
	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.KindNetwork))
}

func TestUnimplementedOperations(t *testing.T) {
	repo, err := repository.New(testConfig())
	require.NoError(t, err)
	ctx := context.Background()

	assert.True(t, failure.IsKind(repo.EnterChatRoom(ctx, "7", "u1"), failure.KindUnimplemented))
	assert.True(t, failure.IsKind(repo.LeaveChatRoom(ctx, "7", "u1"), failure.KindUnimplemented))
	_, err = repo.GetUserChatRooms(ctx, "u1")
	assert.True(t, failure.IsKind(err, failure.KindUnimplemented))
}

func TestRequestPresignedUploadURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"body":{"fileName":"cat.png","fileType":"image/png"}}`, string(body))
		w.Write([]byte(`{"body":"{\"uploadURL\":\"https://x/y\"}"}`))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.LambdaBaseURL = srv.URL
	repo, err := repository.New(cfg)
	require.NoError(t, err)

	uploadURL, err := repo.RequestPresignedUploadURL(context.Background(), "cat.png", "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://x/y", uploadURL)
}

func TestRequestPresignedUploadURLMissingField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"body":"{}"}`))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.LambdaBaseURL = srv.URL
	repo, err := repository.New(cfg)
	require.NoError(t, err)

	_, err = repo.RequestPresignedUploadURL(context.Background(), "cat.png", "image/png")
	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.KindDecode))
	assert.Contains(t, err.Error(), "uploadURL")
}

func TestUploadAttachmentAlreadyRemote(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.LambdaBaseURL = srv.URL
	repo, err := repository.New(cfg)
	require.NoError(t, err)

	got, err := repo.UploadAttachment(context.Background(), "https://cdn.test/uploads/cat.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/uploads/cat.png", got)
	assert.Zero(t, calls, "an already-uploaded attachment must not touch the network")
}

func TestUploadAttachmentFlow(t *testing.T) {
	var putContentType string
	var putBody []byte
	uploadSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		putContentType = r.Header.Get("Content-Type")
		putBody, _ = io.ReadAll(r.Body)
	}))
	defer uploadSrv.Close()

	lambdaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"body":"{\"uploadURL\":\"` + uploadSrv.URL + `/signed\"}"}`))
	}))
	defer lambdaSrv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("attachment payload"), 0o600))

	cfg := testConfig()
	cfg.LambdaBaseURL = lambdaSrv.URL
	repo, err := repository.New(cfg)
	require.NoError(t, err)

	publicURL, err := repo.UploadAttachment(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/uploads/note.txt", publicURL)
	assert.Equal(t, []byte("attachment payload"), putBody)
	assert.True(t, strings.HasPrefix(putContentType, "text/plain"),
		"detected content type, got %q", putContentType)
}

func TestUploadAttachmentRejectedPut(t *testing.T) {
	uploadSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "signature expired", http.StatusForbidden)
	}))
	defer uploadSrv.Close()

	lambdaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"body":"{\"uploadURL\":\"` + uploadSrv.URL + `/signed\"}"}`))
	}))
	defer lambdaSrv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o600))

	cfg := testConfig()
	cfg.LambdaBaseURL = lambdaSrv.URL
	repo, err := repository.New(cfg)
	require.NoError(t, err)

	_, err = repo.UploadAttachment(context.Background(), path)
	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.KindNetwork))
	assert.Contains(t, err.Error(), "403")
}
