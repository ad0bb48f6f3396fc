// Package wire holds the transfer objects and the pure encode/decode steps
// between raw bytes and the mapper. Nothing here performs I/O.
package wire

// ChatMessageDTO mirrors a chat message exactly as received from the wire.
// It exists only between decode and mapping; validation tags are enforced
// by the mapper, not the parser.
type ChatMessageDTO struct {
	ID                 string `json:"id"`
	RoomID             string `json:"roomId" validate:"required"`
	SenderID           string `json:"senderId" validate:"required"`
	Content            string `json:"content"`
	CloudFrontImageURL string `json:"cloudFrontImageURL"`
	Type               string `json:"type" validate:"required,oneof=CHAT JOIN LEAVE"`
	CreatedAt          string `json:"createdAt" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// ChatRoomDTO mirrors a chat room exactly as received from the wire.
type ChatRoomDTO struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Type        string `json:"type" validate:"required,oneof=SINGLE GROUP"`
	MemberCount int    `json:"memberCount" validate:"gte=0"`
}

// outgoingMessageDTO is the outbound wire shape of chat.OutgoingMessage.
type outgoingMessageDTO struct {
	AppID              string `json:"appId"`
	RoomID             string `json:"roomId"`
	SenderID           string `json:"senderId"`
	Content            string `json:"content"`
	CloudFrontImageURL string `json:"cloudFrontImageURL"`
	Type               string `json:"type"`
}

// roomCreateDTO is the outbound wire shape of chat.RoomCreateRequest.
type roomCreateDTO struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Type   string `json:"type"`
}

// presignRequestDTO is the inner payload of the file-service request.
type presignRequestDTO struct {
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
}

// envelopeDTO is the outer wrapper used by the file service in both
// directions: outbound it carries presignRequestDTO, inbound its Body is a
// JSON string that itself needs a second decode.
type envelopeDTO[T any] struct {
	Body T `json:"body"`
}
