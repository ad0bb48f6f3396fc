package wire

import (
	"encoding/json"
	"fmt"

	"github.com/chatwire/chatwire/pkg/failure"
	"github.com/chatwire/chatwire/pkg/result"
)

// DecodeChatMessage parses one chat message body, typically the body of a
// MESSAGE frame.
func DecodeChatMessage(body []byte) result.Result[ChatMessageDTO] {
	const op = "wire.DecodeChatMessage"
	if len(body) == 0 {
		return result.Err[ChatMessageDTO](failure.Decode(op, "empty body", nil))
	}
	var dto ChatMessageDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return result.Err[ChatMessageDTO](failure.Decode(op, "malformed message body", err))
	}
	return result.Ok(dto)
}

// DecodeChatMessageList parses a JSON array of chat messages, as returned by
// the history endpoint.
func DecodeChatMessageList(body []byte) result.Result[[]ChatMessageDTO] {
	const op = "wire.DecodeChatMessageList"
	if len(body) == 0 {
		return result.Err[[]ChatMessageDTO](failure.Decode(op, "empty body", nil))
	}
	var dtos []ChatMessageDTO
	if err := json.Unmarshal(body, &dtos); err != nil {
		return result.Err[[]ChatMessageDTO](failure.Decode(op, "malformed message list", err))
	}
	return result.Ok(dtos)
}

// DecodeChatRoomList parses a JSON array of chat rooms.
func DecodeChatRoomList(body []byte) result.Result[[]ChatRoomDTO] {
	const op = "wire.DecodeChatRoomList"
	if len(body) == 0 {
		return result.Err[[]ChatRoomDTO](failure.Decode(op, "empty body", nil))
	}
	var dtos []ChatRoomDTO
	if err := json.Unmarshal(body, &dtos); err != nil {
		return result.Err[[]ChatRoomDTO](failure.Decode(op, "malformed room list", err))
	}
	return result.Ok(dtos)
}

// DecodeUploadURL unwraps the file-service response envelope. The outer
// document's "body" field is itself a JSON string that must contain an
// "uploadURL" field. The two missing-field cases produce distinct messages
// so that a broken deploy of the file service stays debuggable.
func DecodeUploadURL(body []byte) result.Result[string] {
	const op = "wire.DecodeUploadURL"
	var envelope envelopeDTO[string]
	if err := json.Unmarshal(body, &envelope); err != nil {
		return result.Err[string](failure.Decode(op, "malformed envelope", err))
	}
	if envelope.Body == "" {
		return result.Err[string](failure.Decode(op, "envelope has no body field", nil))
	}
	var inner struct {
		UploadURL string `json:"uploadURL"`
	}
	if err := json.Unmarshal([]byte(envelope.Body), &inner); err != nil {
		return result.Err[string](failure.Decode(op, fmt.Sprintf("envelope body is not JSON: %q", envelope.Body), err))
	}
	if inner.UploadURL == "" {
		return result.Err[string](failure.Decode(op, "envelope body has no uploadURL field", nil))
	}
	return result.Ok(inner.UploadURL)
}
