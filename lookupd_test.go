package nsqc

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupParsesProducers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lookup", r.URL.Path)
		assert.Equal(t, "events", r.URL.Query().Get("topic"))
		w.Write([]byte(`{
			"producers": [
				{"broadcast_address": "10.0.0.1", "tcp_port": 4150},
				{"broadcast_address": "10.0.0.2", "tcp_port": 4150}
			]
		}`))
	}))
	defer srv.Close()

	producers, err := Lookup(srv.Listener.Addr().String(), "events")
	require.NoError(t, err)
	require.Len(t, producers, 2)
	assert.Equal(t, "10.0.0.1:4150", producers[0].Addr())
	assert.Equal(t, "10.0.0.2:4150", producers[1].Addr())
}

func TestLookupMalformedResponseIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := Lookup(srv.Listener.Addr().String(), "events")
	assert.Error(t, err)
}

func TestLookupMissingProducersKeyIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status_code": 200}`))
	}))
	defer srv.Close()

	_, err := Lookup(srv.Listener.Addr().String(), "events")
	assert.Error(t, err)
}

func TestConnectToNSQLookupdsRoundRobinsEndpoints(t *testing.T) {
	var hits1, hits2 int
	srv1 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits1++
		w.Write([]byte(`{"producers": []}`))
	}))
	defer srv1.Close()
	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits2++
		w.Write([]byte(`{"producers": []}`))
	}))
	defer srv2.Close()

	c, err := NewConsumer("events", "main", nil, nil)
	require.NoError(t, err)
	defer c.Stop()

	c.pollOnce()
	addrs := []string{srv1.Listener.Addr().String(), srv2.Listener.Addr().String()}
	c.mtx.Lock()
	c.lookupdAddrs = addrs
	c.mtx.Unlock()

	c.pollOnce() // index 0 -> srv1
	c.pollOnce() // index 1 -> srv2
	c.pollOnce() // index 0 again -> srv1

	assert.Equal(t, 2, hits1)
	assert.Equal(t, 1, hits2)
}

func TestLookupdLoopStopsOnStopChannel(t *testing.T) {
	cfg := NewConfig()
	cfg.LookupPollInterval = time.Hour

	c, err := NewConsumer("events", "main", cfg, nil)
	require.NoError(t, err)

	require.NoError(t, c.ConnectToNSQLookupd("127.0.0.1:1"))
	c.mtx.Lock()
	enabled := c.lookupdEnabled
	c.mtx.Unlock()
	assert.True(t, enabled)

	c.Stop() // must not hang waiting on the poller's long interval
}
