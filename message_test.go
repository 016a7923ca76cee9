package nsqc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMsgConn struct {
	fins    []MessageID
	reqs    []MessageID
	reqDelays []time.Duration
	touches []MessageID
}

func (f *fakeMsgConn) sendFin(id MessageID) error {
	f.fins = append(f.fins, id)
	return nil
}

func (f *fakeMsgConn) sendReq(id MessageID, delay time.Duration) error {
	f.reqs = append(f.reqs, id)
	f.reqDelays = append(f.reqDelays, delay)
	return nil
}

func (f *fakeMsgConn) sendTouch(id MessageID) error {
	f.touches = append(f.touches, id)
	return nil
}

func newTestMessage(conn msgConn, timeout time.Duration) *Message {
	return newMessage(&Frame{
		Type:      FrameTypeMessage,
		Timestamp: time.Now().UnixNano(),
		Body:      []byte("hello"),
	}, conn, timeout)
}

func TestMessageFinishIsOneShot(t *testing.T) {
	conn := &fakeMsgConn{}
	msg := newTestMessage(conn, time.Minute)

	require.NoError(t, msg.Finish())
	assert.Len(t, conn.fins, 1)

	err := msg.Finish()
	assert.ErrorIs(t, err, ErrMessageFinished)
	assert.Len(t, conn.fins, 1, "a second Finish must not send FIN again")
}

func TestMessageRequeueIsOneShot(t *testing.T) {
	conn := &fakeMsgConn{}
	msg := newTestMessage(conn, time.Minute)

	require.NoError(t, msg.Requeue(5*time.Second))
	assert.Len(t, conn.reqs, 1)

	err := msg.Requeue(5 * time.Second)
	assert.ErrorIs(t, err, ErrMessageFinished)
}

func TestMessageTouchIsRepeatable(t *testing.T) {
	conn := &fakeMsgConn{}
	msg := newTestMessage(conn, time.Minute)

	require.NoError(t, msg.Touch())
	require.NoError(t, msg.Touch())
	assert.Len(t, conn.touches, 2)

	require.NoError(t, msg.Finish())
	err := msg.Touch()
	assert.ErrorIs(t, err, ErrMessageFinished, "Touch after Finish must fail")
}

func TestMessageCanBeProcessedAfterDeadline(t *testing.T) {
	conn := &fakeMsgConn{}
	msg := newTestMessage(conn, time.Millisecond)

	time.Sleep(5 * time.Millisecond)
	assert.False(t, msg.CanBeProcessed())

	err := msg.Finish()
	assert.ErrorIs(t, err, ErrMessageFinished)
	assert.Empty(t, conn.fins, "Finish past the deadline must not perform network I/O")
}

func TestMessageFinishSendsCorrectID(t *testing.T) {
	conn := &fakeMsgConn{}
	msg := newTestMessage(conn, time.Minute)
	var id MessageID
	copy(id[:], []byte("abcdefghij012345"))
	msg.ID = id

	require.NoError(t, msg.Finish())
	require.Len(t, conn.fins, 1)
	assert.Equal(t, id, conn.fins[0])
}
