package frame

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/chatwire/chatwire/pkg/failure"
)

const nul = 0x00

// Encode serializes a frame. The output is reproducible byte for byte:
// headers are emitted in insertion order exactly as stored, so
// Decode(Encode(f)) round-trips. A body that cannot be NUL-terminated
// unambiguously — empty, or containing a NUL byte — is given an explicit
// content-length header when none is present, since the terminator alone
// cannot delimit it.
func Encode(f Frame) []byte {
	var buf bytes.Buffer
	buf.WriteString(f.Command)
	buf.WriteByte('\n')
	headers := f.Headers
	if f.Body != nil && (len(f.Body) == 0 || bytes.IndexByte(f.Body, nul) >= 0) {
		if _, ok := f.Header(HdrContentLength); !ok {
			headers = append(append([]Header{}, headers...), Header{Name: HdrContentLength, Value: strconv.Itoa(len(f.Body))})
		}
	}
	for _, h := range headers {
		buf.WriteString(h.Name)
		buf.WriteByte(':')
		buf.WriteString(h.Value)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	if f.Body != nil {
		buf.Write(f.Body)
	}
	buf.WriteByte(nul)
	return buf.Bytes()
}

// Decode parses as many complete frames as the buffer holds. It returns the
// parsed frames, the unconsumed remainder (a frame split across reads stays
// in the remainder until the rest arrives), and the first decode failure
// encountered, if any.
//
// Bare newlines between frames are heartbeats and are skipped. After a
// malformed frame the decoder resynchronizes at the byte following the next
// NUL terminator and keeps parsing, so one corrupt frame never poisons the
// stream; if the buffer holds no NUL yet, the remainder is left untouched so
// that resynchronization can happen once more bytes arrive.
func Decode(data []byte) ([]Frame, []byte, error) {
	var (
		frames   []Frame
		firstErr error
	)
	for {
		// Heartbeats are bare EOL bytes between frames.
		for len(data) > 0 && (data[0] == '\n' || data[0] == '\r') {
			data = data[1:]
		}
		if len(data) == 0 {
			return frames, nil, firstErr
		}

		f, consumed, err := decodeOne(data)
		switch {
		case err == errIncomplete:
			return frames, data, firstErr
		case err != nil:
			if firstErr == nil {
				firstErr = failure.Decode("frame.Decode", err.Error(), nil)
			}
			skip := bytes.IndexByte(data, nul)
			if skip < 0 {
				// Cannot resync yet; wait for more bytes.
				return frames, data, firstErr
			}
			data = data[skip+1:]
		default:
			frames = append(frames, f)
			data = data[consumed:]
		}
	}
}

// errIncomplete signals that the buffer ends mid-frame.
var errIncomplete = fmt.Errorf("incomplete frame")

func decodeOne(data []byte) (Frame, int, error) {
	end := bytes.IndexByte(data, '\n')
	if end < 0 {
		return Frame{}, 0, errIncomplete
	}
	command := strings.TrimSuffix(string(data[:end]), "\r")
	if !validCommand(command) {
		return Frame{}, 0, fmt.Errorf("malformed command line %q", command)
	}
	f := Frame{Command: command}

	pos := end + 1
	for {
		eol := bytes.IndexByte(data[pos:], '\n')
		if eol < 0 {
			return Frame{}, 0, errIncomplete
		}
		line := strings.TrimSuffix(string(data[pos:pos+eol]), "\r")
		pos += eol + 1
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok || name == "" {
			return Frame{}, 0, fmt.Errorf("malformed header line %q in %s frame", line, command)
		}
		f.Headers = append(f.Headers, Header{Name: name, Value: value})
	}

	if raw, ok := f.Header(HdrContentLength); ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return Frame{}, 0, fmt.Errorf("malformed content-length %q in %s frame", raw, command)
		}
		if pos+n >= len(data) {
			return Frame{}, 0, errIncomplete
		}
		if data[pos+n] != nul {
			return Frame{}, 0, fmt.Errorf("%s frame body not NUL-terminated after %d bytes", command, n)
		}
		f.Body = append([]byte{}, data[pos:pos+n]...)
		return f, pos + n + 1, nil
	}

	term := bytes.IndexByte(data[pos:], nul)
	if term < 0 {
		return Frame{}, 0, errIncomplete
	}
	if term > 0 {
		f.Body = append([]byte(nil), data[pos:pos+term]...)
	}
	return f, pos + term + 1, nil
}

// validCommand accepts the upper-case command words of the wire protocol.
func validCommand(command string) bool {
	if command == "" {
		return false
	}
	for _, r := range command {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
