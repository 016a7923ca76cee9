package nsqc

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducerRejectsEmptyAddrs(t *testing.T) {
	_, err := NewProducer(nil, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoConnections)
}

func TestProducerPickReturnsErrNotConnectedWhenPoolEmpty(t *testing.T) {
	p := &Producer{conns: map[string]*Conn{}}
	_, err := p.pick()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestProducerPickOnlyReturnsConnectedConns(t *testing.T) {
	connecting := NewConn("127.0.0.1:1", NewConfig(), nil, NewDiscardLogger())
	connected := NewConn("127.0.0.1:2", NewConfig(), nil, NewDiscardLogger())
	connected.setState(StateConnected)

	p := &Producer{
		conns: map[string]*Conn{
			connecting.Address(): connecting,
			connected.Address():  connected,
		},
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		log: NewDiscardLogger(),
	}

	for i := 0; i < 10; i++ {
		conn, err := p.pick()
		require.NoError(t, err)
		assert.Equal(t, connected.Address(), conn.Address())
	}
}

func TestProducerRemoveConn(t *testing.T) {
	c := NewConn("127.0.0.1:1", NewConfig(), nil, NewDiscardLogger())
	p := &Producer{conns: map[string]*Conn{"127.0.0.1:1": c}}
	p.removeConn("127.0.0.1:1")
	_, err := p.pick()
	assert.ErrorIs(t, err, ErrNotConnected)
}
