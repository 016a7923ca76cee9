// Package nsqc is a client library for NSQ (https://nsq.io).
//
// It implements the NSQ TCP protocol's connection state machine (Conn),
// and two thin multi-connection facades on top of it: Producer, which
// load-balances publishes across a pool of nsqd connections, and
// Consumer, which fans in messages from a pool of subscribed connections,
// optionally discovered and reconciled via nsqlookupd.
package nsqc

import "time"

// VERSION is the client library version advertised in the IDENTIFY
// user_agent field by default.
const VERSION = "1.0.0"

// MagicV2 is written once, immediately after the TCP connection is
// established, before any command.
var MagicV2 = []byte("  V2")

// Default ports of the two NSQ daemons a client may talk to: nsqd (TCP,
// HTTP) and nsqlookupd (TCP, HTTP).
const (
	DefaultTCPPort      = 4150
	DefaultHTTPPort     = 4151
	DefaultLookupTCPPort  = 4160
	DefaultLookupHTTPPort = 4161
)

// Default protocol timings, per spec.
const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultMsgTimeout        = 60 * time.Second
	DefaultDialTimeout       = time.Second
	DefaultReadTimeout       = 60 * time.Second
	DefaultWriteTimeout      = time.Second

	// DefaultLowRdyIdleTimeout bounds how long a consumer connection can sit
	// at RDY 0 before being nudged back into the redistribution rotation.
	DefaultLowRdyIdleTimeout = 10 * time.Second

	// DefaultLookupPollInterval is how often the lookup poller re-queries.
	DefaultLookupPollInterval = 60 * time.Second
	// DefaultLookupPollJitter bounds the fraction of DefaultLookupPollInterval
	// used as a random initial startup delay, to avoid thundering herds.
	DefaultLookupPollJitter = 0.3

	// reconnect backoff, see Conn's auto-reconnect scheduler.
	defaultReconnectInitialInterval = 2 * time.Second
	defaultReconnectMaxInterval     = 2048 * time.Second
)
