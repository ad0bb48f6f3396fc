// Package mapper converts transfer objects into domain entities. Every
// function is pure: no network, no clock, no side effects. Malformed input
// is rejected with a validation failure naming the offending fields.
package mapper

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/chatwire/chatwire/internal/chat"
	"github.com/chatwire/chatwire/internal/wire"
	"github.com/chatwire/chatwire/pkg/failure"
	"github.com/chatwire/chatwire/pkg/result"
)

var validate = newValidator()

// newValidator reports field names by their json tag so that validation
// failures reference the wire field the server actually sent.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ToChatMessage maps one message transfer object to its domain entity.
func ToChatMessage(dto wire.ChatMessageDTO) result.Result[chat.ChatMessage] {
	const op = "mapper.ToChatMessage"
	if err := validate.Struct(dto); err != nil {
		return result.Err[chat.ChatMessage](failure.Validation(op, describe(err), err))
	}
	var sentAt time.Time
	if dto.CreatedAt != "" {
		parsed, err := time.Parse(time.RFC3339, dto.CreatedAt)
		if err != nil {
			return result.Err[chat.ChatMessage](failure.Validation(op, "createdAt is not a timestamp", err))
		}
		sentAt = parsed
	}
	return result.Ok(chat.ChatMessage{
		ID:            dto.ID,
		RoomID:        dto.RoomID,
		SenderID:      dto.SenderID,
		Content:       dto.Content,
		AttachmentURL: dto.CloudFrontImageURL,
		Kind:          chat.MessageKind(dto.Type),
		SentAt:        sentAt,
	})
}

// ToChatMessages maps a list atomically: the first invalid element fails the
// whole list, never yielding a partial result.
func ToChatMessages(dtos []wire.ChatMessageDTO) result.Result[[]chat.ChatMessage] {
	messages := make([]chat.ChatMessage, 0, len(dtos))
	for i, dto := range dtos {
		res := ToChatMessage(dto)
		if !res.IsOk() {
			f := res.Failure()
			f.Msg = fmt.Sprintf("element %d: %s", i, f.Msg)
			return result.Err[[]chat.ChatMessage](f)
		}
		messages = append(messages, res.Value())
	}
	return result.Ok(messages)
}

// ToChatRoom maps one room transfer object to its domain entity.
func ToChatRoom(dto wire.ChatRoomDTO) result.Result[chat.ChatRoom] {
	const op = "mapper.ToChatRoom"
	if err := validate.Struct(dto); err != nil {
		return result.Err[chat.ChatRoom](failure.Validation(op, describe(err), err))
	}
	return result.Ok(chat.ChatRoom{
		ID:          dto.ID,
		Name:        dto.Name,
		Kind:        chat.RoomKind(dto.Type),
		MemberCount: dto.MemberCount,
	})
}

// ToChatRooms maps a list of rooms with the same atomic semantics as
// ToChatMessages.
func ToChatRooms(dtos []wire.ChatRoomDTO) result.Result[[]chat.ChatRoom] {
	rooms := make([]chat.ChatRoom, 0, len(dtos))
	for i, dto := range dtos {
		res := ToChatRoom(dto)
		if !res.IsOk() {
			f := res.Failure()
			f.Msg = fmt.Sprintf("element %d: %s", i, f.Msg)
			return result.Err[[]chat.ChatRoom](f)
		}
		rooms = append(rooms, res.Value())
	}
	return result.Ok(rooms)
}

// FromCreateRequest maps a locally constructed room create request into a
// domain entity. The room id stays empty: the server's assignment is only
// observable through a later list or history fetch.
func FromCreateRequest(req chat.RoomCreateRequest) result.Result[chat.ChatRoom] {
	const op = "mapper.FromCreateRequest"
	if req.Name == "" {
		return result.Err[chat.ChatRoom](failure.Validation(op, "name is required", nil))
	}
	if req.Kind != chat.RoomSingle && req.Kind != chat.RoomGroup {
		return result.Err[chat.ChatRoom](failure.Validation(op, fmt.Sprintf("unknown room kind %q", req.Kind), nil))
	}
	return result.Ok(chat.ChatRoom{Name: req.Name, Kind: req.Kind})
}

// describe flattens validator output into "field (rule)" pairs.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	fields := lo.Map(verrs, func(fe validator.FieldError, _ int) string {
		return fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag())
	})
	return "invalid fields: " + strings.Join(fields, ", ")
}
