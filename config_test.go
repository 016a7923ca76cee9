package nsqc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, DefaultHeartbeatInterval, cfg.HeartbeatInterval)
	assert.Equal(t, DefaultMsgTimeout, cfg.MsgTimeout)
	assert.Equal(t, 1, cfg.MaxInFlight)
	assert.True(t, cfg.FeatureNegotiation)
	assert.NoError(t, cfg.Validate())
}

func TestConfigSetBySnakeCaseName(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Set("max_in_flight", 200))
	assert.Equal(t, 200, cfg.MaxInFlight)
}

func TestConfigSetByFieldName(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Set("ClientID", "worker-1"))
	assert.Equal(t, "worker-1", cfg.ClientID)
}

func TestConfigSetMillisecondDuration(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Set("msg_timeout", 5000))
	assert.Equal(t, 5*time.Second, cfg.MsgTimeout)
}

func TestConfigSetUnknownOptionFails(t *testing.T) {
	cfg := NewConfig()
	err := cfg.Set("does_not_exist", 1)
	assert.Error(t, err)
}

func TestConfigSetWeaklyTypedString(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Set("deflate", "true"))
	assert.True(t, cfg.Deflate)
}

func TestConfigValidateRejectsBadValues(t *testing.T) {
	cfg := NewConfig()
	cfg.HeartbeatInterval = 0
	assert.Error(t, cfg.Validate())

	cfg = NewConfig()
	cfg.MaxInFlight = -1
	assert.Error(t, cfg.Validate())

	cfg = NewConfig()
	cfg.DeflateLevel = 99
	assert.Error(t, cfg.Validate())
}
