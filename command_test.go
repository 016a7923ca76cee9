package nsqc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceArg(t *testing.T) {
	b, err := coerceArg(42)
	require.NoError(t, err)
	assert.Equal(t, []byte("42"), b)

	b, err = coerceArg("topic")
	require.NoError(t, err)
	assert.Equal(t, []byte("topic"), b)

	_, err = coerceArg(struct{}{})
	require.Error(t, err)
	var coercionErr ErrTypeCoercion
	require.ErrorAs(t, err, &coercionErr)
}

func TestPublishCommandWireFormat(t *testing.T) {
	cmd, err := Publish("events", []byte("hello"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, cmd.Write(&buf))

	want := "PUB events\n" + "\x00\x00\x00\x05" + "hello"
	assert.Equal(t, want, buf.String())
}

func TestMultiPublishCommandWireFormat(t *testing.T) {
	cmd, err := MultiPublish("events", [][]byte{[]byte("a"), []byte("bb")})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, cmd.Write(&buf))

	out := buf.Bytes()
	// "MPUB events\n" then outer_len:int32, count:int32, (len:int32|bytes)*2
	assert.True(t, bytes.HasPrefix(out, []byte("MPUB events\n")))
	rest := out[len("MPUB events\n"):]
	require.True(t, len(rest) > 4)
	outerLen := int32(rest[0])<<24 | int32(rest[1])<<16 | int32(rest[2])<<8 | int32(rest[3])
	assert.Equal(t, len(rest)-4, int(outerLen))
}

func TestSubscribeCommandWireFormat(t *testing.T) {
	cmd, err := Subscribe("events", "main")
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, cmd.Write(&buf))
	assert.Equal(t, "SUB events main\n", buf.String())
}

func TestReadyFinishRequeueTouchDontExpectResponse(t *testing.T) {
	assert.False(t, expectsResponse(Ready(10)))
	var id MessageID
	assert.False(t, expectsResponse(Finish(id)))
	assert.False(t, expectsResponse(Requeue(id, 1000)))
	assert.False(t, expectsResponse(Touch(id)))
	assert.False(t, expectsResponse(Nop()))
}

func TestIdentifyCommandExpectsResponse(t *testing.T) {
	cmd, err := Identify(map[string]interface{}{"client_id": "test"})
	require.NoError(t, err)
	assert.True(t, expectsResponse(cmd))
	assert.Equal(t, "IDENTIFY", string(cmd.Name))
}

func TestFinishCommandEncodesMessageID(t *testing.T) {
	var id MessageID
	copy(id[:], []byte("0123456789abcdef"))
	cmd := Finish(id)

	var buf bytes.Buffer
	require.NoError(t, cmd.Write(&buf))
	assert.Equal(t, "FIN 0123456789abcdef\n", buf.String())
}
