package nsqc

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Command is a single outbound protocol command: a name, a positional
// argument list, and an optional payload (spec.md §3/§4.1). Payload is
// either a single byte string (Body) or, for MPUB-style batching, a list
// of byte strings (Bodies); at most one of the two is set.
type Command struct {
	Name   []byte
	Params [][]byte
	Body   []byte
	Bodies [][]byte
}

// coerceArg converts a single command argument into its wire string form,
// per spec.md §4.1: byte sequences pass through; strings are used as-is;
// integers/floats/decimals are stringified; time.Time values are rendered
// as RFC3339 (ISO 8601); fmt.Stringer values (our enum-likes) use their
// Name/String form. Anything else fails with ErrTypeCoercion.
func coerceArg(v interface{}) ([]byte, error) {
	switch t := v.(type) {
	case []byte:
		return t, nil
	case string:
		return []byte(t), nil
	case int:
		return []byte(strconv.Itoa(t)), nil
	case int32:
		return []byte(strconv.FormatInt(int64(t), 10)), nil
	case int64:
		return []byte(strconv.FormatInt(t, 10)), nil
	case uint:
		return []byte(strconv.FormatUint(uint64(t), 10)), nil
	case uint64:
		return []byte(strconv.FormatUint(t, 10)), nil
	case float32:
		return []byte(strconv.FormatFloat(float64(t), 'f', -1, 32)), nil
	case float64:
		return []byte(strconv.FormatFloat(t, 'f', -1, 64)), nil
	case time.Time:
		return []byte(t.Format(time.RFC3339)), nil
	case fmt.Stringer:
		return []byte(t.String()), nil
	case map[string]interface{}:
		return json.Marshal(t)
	default:
		return nil, ErrTypeCoercion{Value: v}
	}
}

func newCommand(name string, body []byte, args ...interface{}) (*Command, error) {
	cmd := &Command{Name: []byte(name), Body: body}
	for _, a := range args {
		enc, err := coerceArg(a)
		if err != nil {
			return nil, err
		}
		cmd.Params = append(cmd.Params, enc)
	}
	return cmd, nil
}

// String renders the command line (without trailing body) for logging.
func (c *Command) String() string {
	var buf bytes.Buffer
	buf.Write(c.Name)
	for _, p := range c.Params {
		buf.WriteByte(' ')
		buf.Write(p)
	}
	return buf.String()
}

// Write serializes the command onto w: "NAME[ arg1[ arg2 ...]]\n[body]".
// A single Body is framed as len:int32|bytes; Bodies (MPUB-style batching)
// as outer_len:int32|count:int32|(len:int32|bytes)*count.
func (c *Command) Write(w io.Writer) error {
	if _, err := w.Write(c.Name); err != nil {
		return err
	}
	for _, p := range c.Params {
		if _, err := w.Write([]byte{' '}); err != nil {
			return err
		}
		if _, err := w.Write(p); err != nil {
			return err
		}
	}
	if _, err := w.Write([]byte{'\n'}); err != nil {
		return err
	}

	if c.Bodies != nil {
		return writeBatchedBody(w, c.Bodies)
	}
	if c.Body != nil {
		return writeLengthPrefixed(w, c.Body)
	}
	return nil
}

func writeLengthPrefixed(w io.Writer, body []byte) error {
	if err := binary.Write(w, binary.BigEndian, int32(len(body))); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

func writeBatchedBody(w io.Writer, bodies [][]byte) error {
	var inner bytes.Buffer
	if err := binary.Write(&inner, binary.BigEndian, int32(len(bodies))); err != nil {
		return err
	}
	for _, b := range bodies {
		if err := binary.Write(&inner, binary.BigEndian, int32(len(b))); err != nil {
			return err
		}
		inner.Write(b)
	}
	if err := binary.Write(w, binary.BigEndian, int32(inner.Len())); err != nil {
		return err
	}
	_, err := w.Write(inner.Bytes())
	return err
}

// Identify returns the IDENTIFY command with its feature payload encoded
// as compact JSON (spec.md §4.1/§6).
func Identify(features map[string]interface{}) (*Command, error) {
	body, err := json.Marshal(features)
	if err != nil {
		return nil, err
	}
	return &Command{Name: []byte("IDENTIFY"), Body: body}, nil
}

// Auth returns the AUTH command with secret as its single payload.
func Auth(secret string) (*Command, error) {
	return &Command{Name: []byte("AUTH"), Body: []byte(secret)}, nil
}

// Subscribe returns the SUB command for (topic, channel).
func Subscribe(topic, channel string) (*Command, error) {
	return newCommand("SUB", nil, topic, channel)
}

// Publish returns the PUB command for a single message body.
func Publish(topic string, body []byte) (*Command, error) {
	cmd, err := newCommand("PUB", body, topic)
	if err != nil {
		return nil, err
	}
	return cmd, nil
}

// MultiPublish returns the MPUB command batching several message bodies
// into a single publish.
func MultiPublish(topic string, bodies [][]byte) (*Command, error) {
	cmd, err := newCommand("MPUB", nil, topic)
	if err != nil {
		return nil, err
	}
	cmd.Bodies = bodies
	return cmd, nil
}

// DeferredPublish returns the DPUB command publishing body to topic after
// delayMs milliseconds.
func DeferredPublish(topic string, delayMs int64, body []byte) (*Command, error) {
	return newCommand("DPUB", body, topic, delayMs)
}

// Ready returns the RDY command updating the desired in-flight count.
func Ready(count int) *Command {
	cmd, _ := newCommand("RDY", nil, count)
	return cmd
}

// Finish returns the FIN command acknowledging id.
func Finish(id MessageID) *Command {
	cmd, _ := newCommand("FIN", nil, string(id[:]))
	return cmd
}

// Requeue returns the REQ command requeueing id after delayMs milliseconds.
func Requeue(id MessageID, delayMs int64) *Command {
	cmd, _ := newCommand("REQ", nil, string(id[:]), delayMs)
	return cmd
}

// Touch returns the TOUCH command resetting id's timeout.
func Touch(id MessageID) *Command {
	cmd, _ := newCommand("TOUCH", nil, string(id[:]))
	return cmd
}

// CommandClose returns the CLS command, requesting a graceful shutdown of
// the subscription (named CommandClose to avoid colliding with Conn.Close).
func CommandClose() *Command {
	cmd, _ := newCommand("CLS", nil)
	return cmd
}

// Nop returns the NOP command, the idle/heartbeat-reply no-op.
func Nop() *Command {
	cmd, _ := newCommand("NOP", nil)
	return cmd
}

// expectsResponse reports whether cmd's protocol defines a response frame.
// Per spec.md §4.2, NOP/FIN/RDY/REQ/TOUCH resolve immediately with a nil
// result instead of enqueueing a pending waiter.
func expectsResponse(cmd *Command) bool {
	switch string(cmd.Name) {
	case "NOP", "FIN", "RDY", "REQ", "TOUCH":
		return false
	default:
		return true
	}
}
