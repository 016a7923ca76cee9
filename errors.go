package nsqc

import "fmt"

// ErrNotConnected is returned when a Producer's connection pool has no
// usable connection, and by Conn operations attempted before Connect.
// Named after the teacher's Writer.ErrNotConnected sentinel.
var ErrNotConnected = fmt.Errorf("not connected")

// ErrStopped names an operation against a stopped Producer/Consumer/Conn.
// No function in this package returns it; a stopped Producer reports
// ErrNotConnected and a closed Conn reports ErrConnectionClosed.
var ErrStopped = fmt.Errorf("stopped")

// ErrNoConnections is returned by NewProducer when the caller supplies an
// empty broker address list, and by Consumer.ConnectToNSQLookupds when it
// is given an empty lookupd address list (spec.md §4.3/§4.5).
var ErrNoConnections = fmt.Errorf("no connections")

// ErrClosing names a connection in StateClosing or StateClosed. No
// function in this package returns it; Conn operations in those states
// return ErrConnectionClosed.
var ErrClosing = fmt.Errorf("connection closing")

// ErrOverMaxInFlight names a max-in-flight value above the broker's
// negotiated max RDY count. No function in this package returns it;
// Consumer.SetMaxInFlight rejects only negative values.
var ErrOverMaxInFlight = fmt.Errorf("over max-in-flight")

// ErrProtocol signals that the wire stream violated the framing contract
// (spec.md §4.1): an invalid frame size, an unrecognized frame type, or a
// truncated frame payload or message frame. It is always fatal to the
// Conn that raised it.
type ErrProtocol struct {
	Reason string
}

func (e ErrProtocol) Error() string {
	return fmt.Sprintf("protocol error - %s", e.Reason)
}

// ErrIdentify wraps any failure encountered while negotiating IDENTIFY,
// mirroring the teacher's ErrIdentify type in conn.go.
type ErrIdentify struct {
	Reason string
}

func (e ErrIdentify) Error() string {
	return fmt.Sprintf("failed to IDENTIFY - %s", e.Reason)
}

// ErrUnauthorized is raised locally (never sent over the wire) when SUB,
// PUB, MPUB, DPUB or RDY is issued while the broker requires auth and AUTH
// has not succeeded. FIN, REQ, TOUCH, NOP and CLS are not checked.
type ErrUnauthorized struct {
	Command string
}

func (e ErrUnauthorized) Error() string {
	return fmt.Sprintf("AUTH required before %s", e.Command)
}

// ErrConnectionClosed is delivered to any pending command waiter that was
// outstanding when the Conn closed.
var ErrConnectionClosed = fmt.Errorf("connection closed")

// ErrMessageFinished is returned by Message.Finish/Requeue/Touch once the
// message has already been finished or requeued, or once its client-side
// deadline has elapsed. Spec.md calls this out as a non-fatal warning to
// user code, not a fatal error, so callers are expected to log and move on
// rather than treat it as a protocol failure.
var ErrMessageFinished = fmt.Errorf("message has already been finished, requeued, or timed out")

// ErrBadTopicOrChannel reports a topic/channel name that fails the
// ^[.a-zA-Z0-9_\-]{2,64}(#ephemeral)?$ validation in spec.md §4.2/§6.
type ErrBadTopicOrChannel struct {
	Kind  string // "topic" or "channel"
	Value string
}

func (e ErrBadTopicOrChannel) Error() string {
	return fmt.Sprintf("invalid %s name %q", e.Kind, e.Value)
}

// ErrTypeCoercion is raised synchronously at the call site when a Command
// argument or body is of a type the encoder cannot coerce into a wire
// representation (spec.md §4.1).
type ErrTypeCoercion struct {
	Value interface{}
}

func (e ErrTypeCoercion) Error() string {
	return fmt.Sprintf("cannot encode value of type %T as a command argument", e.Value)
}

// BrokerError is the taxonomy of broker-reported E_* error codes
// (spec.md §6/§7). Fatal codes trigger connection close + reconnect;
// non-fatal ones are delivered to the error callback only.
type BrokerError struct {
	Code    string
	Message string
	Fatal   bool
}

func (e *BrokerError) Error() string {
	return fmt.Sprintf("%s %s", e.Code, e.Message)
}

// nonFatalBrokerCodes enumerates the E_* codes the spec marks as non-fatal:
// they may arrive unsolicited (no pending waiter) for commands that have no
// normal response (RDY/FIN/REQ/TOUCH) and must not close the connection.
var nonFatalBrokerCodes = map[string]bool{
	"E_FIN_FAILED":     true,
	"E_REQ_FAILED":     true,
	"E_REQUEUE_FAILED": true,
	"E_TOUCH_FAILED":   true,
}

// ParseBrokerError splits an Error frame's body ("CODE message...") into a
// *BrokerError, tagging it fatal unless its code is one of the non-fatal
// in-flight-ack codes.
func ParseBrokerError(body []byte) *BrokerError {
	code, msg := splitErrorBody(body)
	return &BrokerError{
		Code:    code,
		Message: msg,
		Fatal:   !nonFatalBrokerCodes[code],
	}
}

func splitErrorBody(body []byte) (code, message string) {
	for i, b := range body {
		if b == ' ' || b == '\t' {
			return string(body[:i]), string(body[i+1:])
		}
	}
	return string(body), ""
}
