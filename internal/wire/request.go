package wire

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/chatwire/chatwire/internal/chat"
	"github.com/chatwire/chatwire/pkg/result"
)

// Request is a fully assembled outgoing REST request, still detached from
// any base URL or HTTP client. Builders below are pure value constructors.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// NewRequest starts a request for the given method and relative path.
func NewRequest(method, path string) Request {
	return Request{
		Method: method,
		Path:   path,
		Query:  url.Values{},
		Header: http.Header{},
	}
}

// WithQuery returns a copy of the request with the query parameter set.
func (r Request) WithQuery(key, value string) Request {
	q := url.Values{}
	for k, vs := range r.Query {
		q[k] = append([]string(nil), vs...)
	}
	q.Set(key, value)
	r.Query = q
	return r
}

// WithHeader returns a copy of the request with the header set.
func (r Request) WithHeader(key, value string) Request {
	h := r.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set(key, value)
	r.Header = h
	return r
}

// WithJSONBody returns a copy of the request carrying v as a JSON body.
func (r Request) WithJSONBody(v any) result.Result[Request] {
	body, err := json.Marshal(v)
	if err != nil {
		return result.Of("wire.WithJSONBody", r, err)
	}
	r.Body = body
	r.Header = r.Header.Clone()
	if r.Header == nil {
		r.Header = http.Header{}
	}
	r.Header.Set("Content-Type", "application/json")
	return result.Ok(r)
}

// EncodeOutgoingMessage serializes an outgoing chat message to the JSON
// body published over the socket.
func EncodeOutgoingMessage(msg chat.OutgoingMessage) result.Result[[]byte] {
	dto := outgoingMessageDTO{
		AppID:              msg.AppID,
		RoomID:             msg.RoomID,
		SenderID:           msg.SenderID,
		Content:            msg.Content,
		CloudFrontImageURL: msg.AttachmentURL,
		Type:               string(msg.Kind),
	}
	body, err := json.Marshal(dto)
	return result.Of("wire.EncodeOutgoingMessage", body, err)
}

// EncodeRoomCreate serializes a room create request to its JSON body.
func EncodeRoomCreate(req chat.RoomCreateRequest) result.Result[[]byte] {
	dto := roomCreateDTO{
		UserID: req.UserID,
		Name:   req.Name,
		Type:   string(req.Kind),
	}
	body, err := json.Marshal(dto)
	return result.Of("wire.EncodeRoomCreate", body, err)
}

// EncodePresignRequest serializes the file-service request envelope, e.g.
// {"body":{"fileName":"a.png","fileType":"image/png"}}.
func EncodePresignRequest(fileName, fileType string) result.Result[[]byte] {
	dto := envelopeDTO[presignRequestDTO]{
		Body: presignRequestDTO{FileName: fileName, FileType: fileType},
	}
	body, err := json.Marshal(dto)
	return result.Of("wire.EncodePresignRequest", body, err)
}
