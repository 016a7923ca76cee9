package nsqc

import (
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	simplejson "github.com/bitly/go-simplejson"
)

// LookupProducer is one entry of a nsqlookupd /lookup response's
// producers[] array — the only shape spec.md §6 binds for the lookup
// service (everything else about that HTTP API is out of scope).
type LookupProducer struct {
	BroadcastAddress string
	TCPPort          int
}

// Addr returns the "host:port" this producer's nsqd TCP listener is
// reachable at.
func (p LookupProducer) Addr() string {
	return fmt.Sprintf("%s:%d", p.BroadcastAddress, p.TCPPort)
}

var httpClient = &http.Client{Timeout: 10 * time.Second}

// Lookup queries a single nsqlookupd HTTP endpoint's GET /lookup?topic=T
// and returns its producers. A malformed response (missing producers,
// wrong shape) is a returned error, not a panic, so pollers can log and
// skip it per spec.md §4.5.
func Lookup(lookupdHTTPAddr, topic string) ([]LookupProducer, error) {
	endpoint := fmt.Sprintf("http://%s/lookup?topic=%s", lookupdHTTPAddr, url.QueryEscape(topic))
	resp, err := httpClient.Get(endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	js, err := simplejson.NewFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("nsqc: malformed lookupd response from %s - %w", endpoint, err)
	}

	producersJS, ok := js.CheckGet("producers")
	if !ok {
		return nil, fmt.Errorf("nsqc: lookupd response from %s missing \"producers\"", endpoint)
	}
	arr, err := producersJS.Array()
	if err != nil {
		return nil, fmt.Errorf("nsqc: lookupd response from %s has non-array \"producers\" - %w", endpoint, err)
	}

	out := make([]LookupProducer, 0, len(arr))
	for i := range arr {
		entry := producersJS.GetIndex(i)
		addr := entry.Get("broadcast_address").MustString()
		port := entry.Get("tcp_port").MustInt()
		if addr == "" || port == 0 {
			continue
		}
		out = append(out, LookupProducer{BroadcastAddress: addr, TCPPort: port})
	}
	return out, nil
}

// ConnectToNSQLookupd starts polling a single nsqlookupd endpoint for
// producers of the consumer's topic (spec.md §4.5). Call
// ConnectToNSQLookupds for more than one.
func (c *Consumer) ConnectToNSQLookupd(addr string) error {
	return c.ConnectToNSQLookupds([]string{addr})
}

// ConnectToNSQLookupds starts the poller against a non-empty set of
// nsqlookupd HTTP endpoints, round-robining across them on each poll
// iteration.
func (c *Consumer) ConnectToNSQLookupds(addrs []string) error {
	if len(addrs) == 0 {
		return ErrNoConnections
	}

	c.mtx.Lock()
	if c.lookupdEnabled {
		c.lookupdAddrs = append(c.lookupdAddrs, addrs...)
		c.mtx.Unlock()
		return nil
	}
	c.lookupdEnabled = true
	c.lookupdAddrs = append([]string{}, addrs...)
	c.lookupdStop = make(chan struct{})
	stop := c.lookupdStop
	c.mtx.Unlock()

	c.wg.Add(1)
	go c.lookupdLoop(stop)
	return nil
}

// lookupdLoop is the Consumer's independent long-lived poller task
// (spec.md §4.5, §5): an initial jittered startup delay, one lookup, then
// sleep-poll-reconcile forever until stop is closed.
func (c *Consumer) lookupdLoop(stop chan struct{}) {
	defer c.wg.Done()

	interval := c.cfg.LookupPollInterval
	if interval <= 0 {
		interval = DefaultLookupPollInterval
	}
	jitter := c.cfg.LookupPollJitter
	if jitter < 0 {
		jitter = 0
	}

	startupDelay := time.Duration(rand.Float64() * jitter * float64(interval))
	select {
	case <-time.After(startupDelay):
	case <-stop:
		return
	}

	c.pollOnce()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.pollOnce()
		}
	}
}

// pollOnce queries the next lookupd endpoint in round-robin order and
// reconciles the consumer's pool against the discovered producer set.
// A failure against one endpoint does not pause the loop (spec.md §4.5);
// the next tick simply tries the next endpoint.
func (c *Consumer) pollOnce() {
	c.mtx.Lock()
	if len(c.lookupdAddrs) == 0 {
		c.mtx.Unlock()
		return
	}
	addr := c.lookupdAddrs[c.lookupdNext%len(c.lookupdAddrs)]
	c.lookupdNext++
	c.mtx.Unlock()

	producers, err := Lookup(addr, c.topic)
	if err != nil {
		c.log.Output(LogLevelWarning, "lookupd %s - %s", addr, err)
		return
	}

	discovered := make(map[string]bool, len(producers))
	for _, p := range producers {
		discovered[p.Addr()] = true
	}

	c.mtx.Lock()
	existing := make(map[string]bool, len(c.conns))
	for a := range c.conns {
		existing[a] = true
	}
	c.mtx.Unlock()

	for a := range discovered {
		if !existing[a] {
			go func(addr string) {
				if err := c.ConnectToNSQD(addr); err != nil {
					c.log.Output(LogLevelWarning, "[%s] lookupd-discovered connect failed - %s", addr, err)
				}
			}(a)
		}
	}
	// Connections for producers no longer reported by lookupd are left to
	// drain on their own (nsqd deregisters itself from lookupd on a clean
	// shutdown, which is what produces the Conn-level close that drives
	// dropConn); we don't force-disconnect a still-healthy connection
	// just because one lookupd's view momentarily omitted it.
}
