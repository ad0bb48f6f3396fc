// Package chat holds the domain entities of the chat client. Entities are
// plain immutable values produced by the mapper; they carry no wire or
// transport concerns.
package chat

import "time"

// MessageKind classifies a chat message.
type MessageKind string

const (
	KindChat  MessageKind = "CHAT"
	KindJoin  MessageKind = "JOIN"
	KindLeave MessageKind = "LEAVE"
)

// ChatMessage is a message as seen by the UI layer.
type ChatMessage struct {
	ID            string
	RoomID        string
	SenderID      string
	Content       string
	AttachmentURL string
	Kind          MessageKind
	SentAt        time.Time
}

// OutgoingMessage is a message about to be published to a room. It is built
// once via OutgoingMessageBuilder and serialized to the wire exactly once.
type OutgoingMessage struct {
	AppID         string
	RoomID        string
	SenderID      string
	Content       string
	AttachmentURL string
	Kind          MessageKind
}

// OutgoingMessageBuilder assembles an OutgoingMessage. The builder is a
// value; each method returns an updated copy, so partially built messages
// can be shared safely.
type OutgoingMessageBuilder struct {
	msg OutgoingMessage
}

// NewOutgoingMessage starts a builder for the given kind.
func NewOutgoingMessage(kind MessageKind) OutgoingMessageBuilder {
	return OutgoingMessageBuilder{msg: OutgoingMessage{Kind: kind}}
}

// App sets the application id.
func (b OutgoingMessageBuilder) App(appID string) OutgoingMessageBuilder {
	b.msg.AppID = appID
	return b
}

// Room sets the destination room id.
func (b OutgoingMessageBuilder) Room(roomID string) OutgoingMessageBuilder {
	b.msg.RoomID = roomID
	return b
}

// Sender sets the sending user id.
func (b OutgoingMessageBuilder) Sender(senderID string) OutgoingMessageBuilder {
	b.msg.SenderID = senderID
	return b
}

// Content sets the text content.
func (b OutgoingMessageBuilder) Content(content string) OutgoingMessageBuilder {
	b.msg.Content = content
	return b
}

// Attachment sets the optional attachment URL.
func (b OutgoingMessageBuilder) Attachment(url string) OutgoingMessageBuilder {
	b.msg.AttachmentURL = url
	return b
}

// Build returns the assembled message.
func (b OutgoingMessageBuilder) Build() OutgoingMessage {
	return b.msg
}
