// Package frame implements the text wire protocol spoken with the message
// broker: a command line, newline-delimited "name:value" headers, a blank
// line, then an optional NUL-terminated or content-length-bounded body.
package frame

// Broker commands.
const (
	CmdConnect     = "CONNECT"
	CmdConnected   = "CONNECTED"
	CmdSend        = "SEND"
	CmdSubscribe   = "SUBSCRIBE"
	CmdUnsubscribe = "UNSUBSCRIBE"
	CmdMessage     = "MESSAGE"
	CmdError       = "ERROR"
	CmdDisconnect  = "DISCONNECT"
)

// Well-known header names.
const (
	HdrContentLength = "content-length"
	HdrContentType   = "content-type"
	HdrDestination   = "destination"
	HdrSubscription  = "subscription"
	HdrID            = "id"
	HdrReceipt       = "receipt"
	HdrMessage       = "message"
)

// Header is a single name:value pair.
type Header struct {
	Name  string
	Value string
}

// Frame is one discrete unit of the wire protocol.
//
// Headers keep insertion order so that encoding is byte-for-byte
// reproducible. A nil Body means the frame carries no body at all (e.g. a
// handshake acknowledgement); an empty non-nil Body is a zero-length body
// and is encoded with an explicit content-length.
type Frame struct {
	Command string
	Headers []Header
	Body    []byte
}

// New builds a frame from a command and alternating name, value pairs.
func New(command string, nameValue ...string) Frame {
	f := Frame{Command: command}
	for i := 0; i+1 < len(nameValue); i += 2 {
		f.Headers = append(f.Headers, Header{Name: nameValue[i], Value: nameValue[i+1]})
	}
	return f
}

// Header returns the value of the named header. When the name occurs more
// than once the last occurrence wins.
func (f Frame) Header(name string) (string, bool) {
	for i := len(f.Headers) - 1; i >= 0; i-- {
		if f.Headers[i].Name == name {
			return f.Headers[i].Value, true
		}
	}
	return "", false
}

// WithHeader returns a copy of the frame with the header appended.
func (f Frame) WithHeader(name, value string) Frame {
	headers := make([]Header, len(f.Headers), len(f.Headers)+1)
	copy(headers, f.Headers)
	f.Headers = append(headers, Header{Name: name, Value: value})
	return f
}

// WithBody returns a copy of the frame carrying the given body.
func (f Frame) WithBody(body []byte) Frame {
	f.Body = body
	return f
}
