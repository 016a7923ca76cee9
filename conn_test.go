package nsqc

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeNSQD is a minimal single-connection stand-in for nsqd, enough to
// drive Conn through a handshake and a message or two without a real
// broker. Tests script its behavior by reading commands off cmds and
// writing canned frames to the accepted connection.
type fakeNSQD struct {
	ln    net.Listener
	conn  net.Conn
	cmds  chan string
	ready chan struct{} // closed once conn is accepted and the magic read
}

// newFakeNSQD listens and returns at once; the Conn under test dials only
// after this returns, so the accept and the magic read happen in the
// background and are checked when the test finishes.
func newFakeNSQD(t *testing.T) *fakeNSQD {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	f := &fakeNSQD{ln: ln, cmds: make(chan string, 64), ready: make(chan struct{})}

	magic := make([]byte, 4)
	var magicErr error
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		f.conn = conn
		_, magicErr = io.ReadFull(conn, magic)
		close(f.ready)
		f.readCommands(t)
	}()

	t.Cleanup(func() { ln.Close() })
	t.Cleanup(func() {
		select {
		case <-f.ready:
		case <-time.After(time.Second):
			t.Fatal("fakeNSQD: never accepted a connection")
		}
		require.NoError(t, magicErr)
		require.Equal(t, "  V2", string(magic))
	})

	return f
}

func (f *fakeNSQD) readCommands(t *testing.T) {
	r := bufio.NewReader(f.conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := line[:len(line)-1]
		switch {
		case len(cmd) >= 8 && cmd[:8] == "IDENTIFY":
			var size int32
			binary.Read(r, binary.BigEndian, &size)
			body := make([]byte, size)
			io.ReadFull(r, body)
		case len(cmd) >= 3 && cmd[:3] == "PUB":
			var size int32
			binary.Read(r, binary.BigEndian, &size)
			body := make([]byte, size)
			io.ReadFull(r, body)
		}
		select {
		case f.cmds <- cmd:
		default:
		}
	}
}

func (f *fakeNSQD) writeResponse(body []byte) {
	f.writeFrame(FrameTypeResponse, body)
}

func (f *fakeNSQD) writeFrame(frameType int32, body []byte) {
	<-f.ready
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, int32(4+len(body)))
	binary.Write(&buf, binary.BigEndian, frameType)
	buf.Write(body)
	f.conn.Write(buf.Bytes())
}

func (f *fakeNSQD) writeMessage(id MessageID, body []byte) {
	var inner bytes.Buffer
	binary.Write(&inner, binary.BigEndian, time.Now().UnixNano())
	binary.Write(&inner, binary.BigEndian, uint16(0))
	inner.Write(id[:])
	inner.Write(body)
	f.writeFrame(FrameTypeMessage, inner.Bytes())
}

func (f *fakeNSQD) addr() string { return f.ln.Addr().String() }

func TestConnConnectWritesMagic(t *testing.T) {
	fake := newFakeNSQD(t)
	c := NewConn(fake.addr(), NewConfig(), nil, NewDiscardLogger())
	require.NoError(t, c.Connect())
	require.Equal(t, StateConnected, c.State())
	c.Close()
}

func TestConnIdentify(t *testing.T) {
	fake := newFakeNSQD(t)
	c := NewConn(fake.addr(), NewConfig(), nil, NewDiscardLogger())
	require.NoError(t, c.Connect())

	go func() {
		<-fake.cmds
		fake.writeResponse([]byte("OK"))
	}()

	resp, err := c.Identify()
	require.NoError(t, err)
	require.Nil(t, resp) // plain "OK", no negotiated capabilities
	c.Close()
}

func TestConnMessageDispatchAndFinish(t *testing.T) {
	fake := newFakeNSQD(t)

	received := make(chan *Message, 1)
	delegate := &testConnDelegate{onMessage: func(c *Conn, m *Message) {
		received <- m
	}}

	c := NewConn(fake.addr(), NewConfig(), delegate, NewDiscardLogger())
	require.NoError(t, c.Connect())

	var id MessageID
	copy(id[:], []byte("message0000001id"))
	fake.writeMessage(id, []byte("payload"))

	var msg *Message
	select {
	case msg = <-received:
	case <-time.After(time.Second):
		t.Fatal("message never dispatched")
	}
	require.Equal(t, id, msg.ID)
	require.Equal(t, []byte("payload"), msg.Body)
	require.Equal(t, int64(1), c.InFlight())

	go func() {
		<-fake.cmds // FIN
	}()
	require.NoError(t, msg.Finish())
	require.Equal(t, int64(0), c.InFlight())

	c.Close()
}

func TestConnHeartbeatRepliesWithNop(t *testing.T) {
	fake := newFakeNSQD(t)
	c := NewConn(fake.addr(), NewConfig(), nil, NewDiscardLogger())
	require.NoError(t, c.Connect())

	fake.writeResponse([]byte("_heartbeat_"))

	select {
	case cmd := <-fake.cmds:
		require.Equal(t, "NOP", cmd)
	case <-time.After(time.Second):
		t.Fatal("no NOP reply to heartbeat")
	}
	c.Close()
}

// testConnDelegate is a minimal ConnDelegate for tests that only care
// about one or two callbacks.
type testConnDelegate struct {
	noopConnDelegate
	onMessage func(*Conn, *Message)
}

func (d *testConnDelegate) OnMessage(c *Conn, m *Message) {
	if d.onMessage != nil {
		d.onMessage(c, m)
	}
}
