package nsqc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"regexp"
)

// Frame types, as they appear in the 4-byte frame_type field of every
// inbound frame (spec.md §4.1).
const (
	FrameTypeResponse int32 = 0
	FrameTypeError    int32 = 1
	FrameTypeMessage  int32 = 2
)

var heartbeatBytes = []byte("_heartbeat_")

// topicChannelNameRegexp is the binding validation rule from spec.md §6.
var topicChannelNameRegexp = regexp.MustCompile(`^[.a-zA-Z0-9_\-]{2,64}(#ephemeral)?$`)

// IsValidTopicName reports whether name is an acceptable topic name.
func IsValidTopicName(name string) bool {
	return isValidName(name)
}

// IsValidChannelName reports whether name is an acceptable channel name.
func IsValidChannelName(name string) bool {
	return isValidName(name)
}

func isValidName(name string) bool {
	return topicChannelNameRegexp.MatchString(name)
}

// Frame is the tagged union described in spec.md §3: a Response, an Error,
// or a Message. Exactly one of the three payload shapes is meaningful,
// selected by Type.
type Frame struct {
	Type      int32
	Body      []byte // Response/Error payload, or the Message body
	Timestamp int64  // Message only
	Attempts  uint16 // Message only
	ID        MessageID
}

// IsHeartbeat reports whether this frame is the broker's periodic
// keepalive (a Response frame whose body is the literal "_heartbeat_").
func (f *Frame) IsHeartbeat() bool {
	return f.Type == FrameTypeResponse && bytes.Equal(f.Body, heartbeatBytes)
}

// decoder phases.
const (
	phaseNeedSize = iota
	phaseHaveSize
)

// Decoder is a stateful, buffered parser over the NSQ wire framing:
// size:int32 | frame_type:int32 | payload. It is fed arbitrary byte
// chunks via Feed and yields fully-assembled frames via Poll. Frame
// decoding is a pure function of the concatenation of fed chunks; chunk
// boundaries (including zero-length feeds, or a feed that splits a frame
// anywhere, including inside the 4-byte size header) never affect the
// frames produced.
type Decoder struct {
	buf       bytes.Buffer
	phase     int
	frameSize int32
}

// NewDecoder returns an empty Decoder ready to accept bytes.
func NewDecoder() *Decoder {
	return &Decoder{phase: phaseNeedSize}
}

// Feed appends newly-read bytes to the decoder's internal buffer. It never
// fails; malformed input only surfaces as an error from Poll, once the
// size header (for an invalid size) or the full frame is buffered.
func (d *Decoder) Feed(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	d.buf.Write(chunk)
}

// Poll attempts to assemble one complete frame from previously-fed bytes.
// It returns (frame, true, nil) on success, (nil, false, nil) if more bytes
// are needed, or (nil, false, err) on a fatal framing violation (a size
// below 4, an unknown frame_type, or a short message frame). Callers should keep calling Poll after a successful
// decode until it reports "need more bytes", since one Feed may carry
// several frames.
func (d *Decoder) Poll() (*Frame, bool, error) {
	if d.phase == phaseNeedSize {
		if d.buf.Len() < 4 {
			return nil, false, nil
		}
		var size int32
		if err := binary.Read(bytes.NewReader(d.buf.Next(4)), binary.BigEndian, &size); err != nil {
			return nil, false, err
		}
		if size < 4 {
			return nil, false, ErrProtocol{Reason: fmt.Sprintf("invalid frame size %d", size)}
		}
		d.frameSize = size
		d.phase = phaseHaveSize
	}

	if d.buf.Len() < int(d.frameSize) {
		return nil, false, nil
	}

	payload := make([]byte, d.frameSize)
	if _, err := d.buf.Read(payload); err != nil {
		return nil, false, err
	}
	d.phase = phaseNeedSize
	d.frameSize = 0

	frame, err := decodeFramePayload(payload)
	if err != nil {
		return nil, false, err
	}
	return frame, true, nil
}

func decodeFramePayload(payload []byte) (*Frame, error) {
	if len(payload) < 4 {
		return nil, ErrProtocol{Reason: "short frame payload"}
	}
	frameType := int32(binary.BigEndian.Uint32(payload[:4]))
	body := payload[4:]

	switch frameType {
	case FrameTypeResponse:
		return &Frame{Type: FrameTypeResponse, Body: body}, nil
	case FrameTypeError:
		return &Frame{Type: FrameTypeError, Body: body}, nil
	case FrameTypeMessage:
		msg, err := decodeMessageFrame(body)
		if err != nil {
			return nil, err
		}
		return msg, nil
	default:
		return nil, ErrProtocol{Reason: fmt.Sprintf("unknown frame type %d", frameType)}
	}
}

// decodeMessageFrame parses timestamp:int64 | attempts:int16 | id:16 bytes
// | body:rest into a Frame tagged FrameTypeMessage.
func decodeMessageFrame(payload []byte) (*Frame, error) {
	if len(payload) < 8+2+MsgIDLength {
		return nil, ErrProtocol{Reason: "short message frame"}
	}
	f := &Frame{Type: FrameTypeMessage}
	f.Timestamp = int64(binary.BigEndian.Uint64(payload[:8]))
	f.Attempts = binary.BigEndian.Uint16(payload[8:10])
	copy(f.ID[:], payload[10:10+MsgIDLength])
	f.Body = payload[10+MsgIDLength:]
	return f, nil
}
