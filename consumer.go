package nsqc

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nsqio/go-nsqc/internal/queue"
)

// Consumer aggregates messages from a pool of Conn, each subscribed to the
// same (topic, channel), into one shared closeable queue, and manages RDY
// distribution across them (spec.md §4.4). Connections may be added
// directly (ConnectToNSQD) or discovered via one or more nsqlookupd
// instances (ConnectToNSQLookupd, see lookupd.go).
type Consumer struct {
	topic, channel string
	cfg            *Config
	log            Logger

	mtx       sync.Mutex
	conns     map[string]*Conn
	connOrder []string // rotation order for RDY redistribution

	maxInFlight int64 // atomic

	q *queue.Messages

	lookupdEnabled bool
	lookupdAddrs   []string
	lookupdNext    int
	lookupdStop    chan struct{}

	autoReconnect bool

	// optional hooks, invoked from the connection's read loop goroutine;
	// spec.md §4.2 treats an exception escaping one as a fatal error for
	// that connection.
	MessageHook   func(*Message) *Message
	HeartbeatHook func(*Conn)
	ErrorHook     func(*Conn, error)

	rdyStop chan struct{}
	wg      sync.WaitGroup

	stopOnce sync.Once
}

// NewConsumer validates (topic, channel) and returns an idle Consumer;
// call ConnectToNSQD/ConnectToNSQLookupd(s) to start receiving.
func NewConsumer(topic, channel string, cfg *Config, logger Logger) (*Consumer, error) {
	if !IsValidTopicName(topic) {
		return nil, ErrBadTopicOrChannel{Kind: "topic", Value: topic}
	}
	if !IsValidChannelName(channel) {
		return nil, ErrBadTopicOrChannel{Kind: "channel", Value: channel}
	}
	if cfg == nil {
		cfg = NewConfig()
	}
	if logger == nil {
		logger = NewStdLogger()
	}
	c := &Consumer{
		topic:         topic,
		channel:       channel,
		cfg:           cfg,
		log:           logger,
		conns:         make(map[string]*Conn),
		maxInFlight:   int64(cfg.MaxInFlight),
		q:             queue.New(),
		autoReconnect: true,
		rdyStop:       make(chan struct{}),
	}
	c.wg.Add(1)
	go c.rdyLoop()
	return c, nil
}

// SetAutoReconnect toggles per-connection auto-reconnect for connections
// added from this point forward (and is read by the lookup poller).
func (c *Consumer) SetAutoReconnect(on bool) { c.autoReconnect = on }

// MaxInFlight returns the consumer-wide desired in-flight ceiling.
func (c *Consumer) MaxInFlight() int { return int(atomic.LoadInt64(&c.maxInFlight)) }

// SetMaxInFlight updates the consumer-wide RDY budget and immediately
// redistributes it across live connections (spec.md §4.4).
func (c *Consumer) SetMaxInFlight(n int) error {
	if n < 0 {
		return fmt.Errorf("nsqc: MaxInFlight must be >= 0")
	}
	atomic.StoreInt64(&c.maxInFlight, int64(n))
	c.redistributeRDY()
	return nil
}

// consumerDelegate adapts Conn's callback set for Consumer.
type consumerDelegate struct {
	noopConnDelegate
	c *Consumer
}

func (d *consumerDelegate) OnMessage(conn *Conn, msg *Message) {
	if d.c.MessageHook != nil {
		msg = d.c.MessageHook(msg)
		if msg == nil {
			return
		}
	}
	d.c.q.Push(msg)
}

func (d *consumerDelegate) OnHeartbeat(conn *Conn) {
	if d.c.HeartbeatHook != nil {
		d.c.HeartbeatHook(conn)
	}
}

func (d *consumerDelegate) OnError(conn *Conn, err *BrokerError) {
	d.c.log.Output(LogLevelWarning, "[%s] error %s", conn, err)
	if d.c.ErrorHook != nil {
		d.c.ErrorHook(conn, err)
	}
}

func (d *consumerDelegate) OnIOError(conn *Conn, err error) {
	d.c.log.Output(LogLevelWarning, "[%s] IO error %s", conn, err)
}

func (d *consumerDelegate) OnMessageFinished(conn *Conn, requeued bool) {
	// RDY accounting happens via the periodic rdyLoop/redistributeRDY
	// rather than per-ack, matching the spec's minimum-correct policy of
	// rebalancing "whenever the connection set changes or SetMaxInFlight
	// is called" rather than on every single ack.
}

func (d *consumerDelegate) OnClose(conn *Conn) {
	d.c.dropConn(conn.Address())
}

// dropConn removes addr from the pool and, per spec.md §4.4's termination
// rule, closes the shared queue only if the pool is now empty AND neither
// lookupd discovery nor per-connection auto-reconnect could ever refill it
// — otherwise a momentarily empty pool is not "end of input".
func (c *Consumer) dropConn(addr string) {
	c.mtx.Lock()
	delete(c.conns, addr)
	for i, a := range c.connOrder {
		if a == addr {
			c.connOrder = append(c.connOrder[:i], c.connOrder[i+1:]...)
			break
		}
	}
	empty := len(c.conns) == 0
	lookupdOrReconnect := c.lookupdEnabled || c.autoReconnect
	c.mtx.Unlock()

	if empty && !lookupdOrReconnect {
		c.q.Close()
	} else if !empty {
		c.redistributeRDY()
	}
}

// ConnectToNSQD opens, IDENTIFYs, and subscribes one connection to addr,
// then redistributes RDY across the (now larger) pool.
func (c *Consumer) ConnectToNSQD(addr string) error {
	c.mtx.Lock()
	if _, exists := c.conns[addr]; exists {
		c.mtx.Unlock()
		return nil
	}
	c.mtx.Unlock()

	conn := NewConn(addr, c.cfg, &consumerDelegate{c: c}, c.log)
	conn.SetAutoReconnect(c.autoReconnect)

	if err := conn.Connect(); err != nil {
		return err
	}
	if _, err := conn.Identify(); err != nil {
		conn.Close()
		return err
	}
	if c.cfg.AuthSecret != "" {
		if err := conn.Auth(c.cfg.AuthSecret); err != nil {
			conn.Close()
			return err
		}
	}

	c.mtx.Lock()
	c.conns[addr] = conn
	c.connOrder = append(c.connOrder, addr)
	c.mtx.Unlock()

	if err := conn.Subscribe(c.topic, c.channel, 0); err != nil {
		conn.Close()
		return err
	}

	c.redistributeRDY()
	return nil
}

// RemoveNSQD closes and drops the connection to addr, if present.
func (c *Consumer) RemoveNSQD(addr string) {
	c.mtx.Lock()
	conn, ok := c.conns[addr]
	c.mtx.Unlock()
	if ok {
		conn.Close()
	}
}

// redistributeRDY implements spec.md §4.4's RDY distribution law: given
// max_in_flight M and N live connections, every connection gets floor(M/N)
// and the first (M mod N) connections (in rotation order) get one extra.
func (c *Consumer) redistributeRDY() {
	c.mtx.Lock()
	addrs := make([]string, len(c.connOrder))
	copy(addrs, c.connOrder)
	conns := make(map[string]*Conn, len(c.conns))
	for k, v := range c.conns {
		conns[k] = v
	}
	c.mtx.Unlock()

	live := make([]*Conn, 0, len(addrs))
	for _, a := range addrs {
		if conn, ok := conns[a]; ok && conn.State() == StateConnected {
			live = append(live, conn)
		}
	}
	n := len(live)
	if n == 0 {
		return
	}

	m := int(atomic.LoadInt64(&c.maxInFlight))
	base := m / n
	extra := m % n

	for i, conn := range live {
		rdy := base
		if i < extra {
			rdy++
		}
		if err := conn.RDYCommand(rdy); err != nil {
			c.log.Output(LogLevelWarning, "[%s] failed to set RDY %d - %s", conn, rdy, err)
		}
	}
}

// rdyLoop periodically rotates the pool's rotation order so that, when
// N > M (more connections than RDY budget), the set of connections parked
// at RDY 0 changes over time instead of starving the same ones forever
// (spec.md §4.4's rotation policy, left to the implementation).
func (c *Consumer) rdyLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(DefaultLowRdyIdleTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-c.rdyStop:
			return
		case <-ticker.C:
			c.mtx.Lock()
			if len(c.connOrder) > 1 {
				c.connOrder = append(c.connOrder[1:], c.connOrder[0])
			}
			c.mtx.Unlock()
			c.redistributeRDY()
		}
	}
}

// Next blocks until a processable message is available or the queue is
// closed and drained. It silently skips any message that has already
// exceeded its client-side deadline by the time it is popped (spec.md
// §4.4), which can happen if a slow consumer leaves it sitting in the
// shared queue past msg_timeout.
func (c *Consumer) Next() (*Message, bool) {
	for {
		v, ok := c.q.Pop()
		if !ok {
			return nil, false
		}
		msg := v.(*Message)
		if !msg.CanBeProcessed() {
			continue
		}
		return msg, true
	}
}

// Messages returns a channel yielding every message Next would, closed
// once the consumer is finished (spec.md §4.4's iterator, in Go's native
// range-over-channel idiom).
func (c *Consumer) Messages() <-chan *Message {
	out := make(chan *Message)
	go func() {
		defer close(out)
		for {
			msg, ok := c.Next()
			if !ok {
				return
			}
			out <- msg
		}
	}()
	return out
}

// Stop closes every connection, stops the lookup poller (if any) and the
// RDY rotation loop, and unconditionally closes the shared queue so
// Next/Messages terminate even if lookupd or auto-reconnect was enabled.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() {
		c.mtx.Lock()
		c.lookupdEnabled = false
		c.autoReconnect = false
		conns := make([]*Conn, 0, len(c.conns))
		for _, conn := range c.conns {
			conns = append(conns, conn)
		}
		lookupdStop := c.lookupdStop
		c.mtx.Unlock()

		if lookupdStop != nil {
			close(lookupdStop)
		}
		close(c.rdyStop)

		for _, conn := range conns {
			conn.SetAutoReconnect(false)
			conn.Close()
		}

		c.wg.Wait()
		c.q.Close()
	})
}
