package nsqc

import (
	"bytes"
	"encoding/binary"
	"io"
	"sync"
	"time"
)

// MsgIDLength is the fixed width, in bytes, of a Message.ID.
const MsgIDLength = 16

// MessageID is the broker-assigned identifier carried by every Message
// frame and echoed back on FIN/REQ/TOUCH.
type MessageID [MsgIDLength]byte

// Message is the user-facing wrapper around a decoded Message frame,
// bound to the Conn that delivered it so that Finish/Requeue/Touch are
// sent on the correct socket (spec.md §3, §9 "Per-Connection back
// reference on Message"). A Message is *processable* iff it has not yet
// been finished/requeued AND its client-side deadline has not elapsed;
// Finish and Requeue are terminal (one-shot), Touch is not.
type Message struct {
	ID        MessageID
	Body      []byte
	Timestamp time.Time
	Attempts  uint16

	conn     msgConn
	deadline time.Time

	mtx       sync.Mutex
	processed bool
}

// msgConn is the slice of Conn that Message needs, kept narrow so tests can
// fake it without standing up a real socket.
type msgConn interface {
	sendFin(MessageID) error
	sendReq(MessageID, time.Duration) error
	sendTouch(MessageID) error
}

// newMessage builds a user-facing Message from a decoded Message frame,
// computing its client-side deadline from the connection's negotiated
// msg_timeout (spec.md §3).
func newMessage(f *Frame, conn msgConn, msgTimeout time.Duration) *Message {
	return &Message{
		ID:        f.ID,
		Body:      f.Body,
		Timestamp: time.Unix(0, f.Timestamp),
		Attempts:  f.Attempts,
		conn:      conn,
		deadline:  time.Now().Add(msgTimeout),
	}
}

// CanBeProcessed reports whether the message is still eligible for
// Finish/Requeue/Touch: not yet terminally processed, and its client-side
// deadline has not elapsed.
func (m *Message) CanBeProcessed() bool {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return !m.processed && time.Now().Before(m.deadline)
}

// tryMark flips the one-shot processed flag for Finish/Requeue; it is a
// no-op check for Touch. Returns ErrMessageFinished if the message is no
// longer processable.
func (m *Message) tryMark(terminal bool) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.processed || !time.Now().Before(m.deadline) {
		return ErrMessageFinished
	}
	if terminal {
		m.processed = true
	}
	return nil
}

// Finish acknowledges the message. It is a one-shot, terminal operation:
// calling Finish/Requeue/Touch again afterward, or after the client-side
// deadline elapses, returns ErrMessageFinished and performs no network I/O.
func (m *Message) Finish() error {
	if err := m.tryMark(true); err != nil {
		return err
	}
	return m.conn.sendFin(m.ID)
}

// Requeue requeues the message with the broker, to be redelivered after
// delay. It is a one-shot, terminal operation like Finish.
func (m *Message) Requeue(delay time.Duration) error {
	if err := m.tryMark(true); err != nil {
		return err
	}
	return m.conn.sendReq(m.ID, delay)
}

// Touch resets the broker's timeout for this message without finishing or
// requeuing it. Unlike Finish/Requeue it is not terminal: it may be called
// repeatedly as long as the message remains processable.
func (m *Message) Touch() error {
	if err := m.tryMark(false); err != nil {
		return err
	}
	return m.conn.sendTouch(m.ID)
}

// EncodeBytes serializes the message (timestamp, attempts, id, body) into
// a new, returned, []byte, in the wire format described in spec.md §4.1.
func (m *Message) EncodeBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write serializes the message onto w.
func (m *Message) Write(w io.Writer) error {
	if err := binary.Write(w, binary.BigEndian, m.Timestamp.UnixNano()); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, m.Attempts); err != nil {
		return err
	}
	if _, err := w.Write(m.ID[:]); err != nil {
		return err
	}
	_, err := w.Write(m.Body)
	return err
}
