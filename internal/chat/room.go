package chat

// RoomKind distinguishes one-to-one rooms from group rooms.
type RoomKind string

const (
	RoomSingle RoomKind = "SINGLE"
	RoomGroup  RoomKind = "GROUP"
)

// ChatRoom is a room as seen by the UI layer.
type ChatRoom struct {
	ID          string
	Name        string
	Kind        RoomKind
	MemberCount int
}

// RoomCreateRequest carries the caller's intent to create a room. It is
// serialized outbound only; the server's response body is not mapped back.
type RoomCreateRequest struct {
	UserID string
	Name   string
	Kind   RoomKind
}
