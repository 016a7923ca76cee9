package nsqc

import (
	"math/rand"
	"sync"
	"time"
)

// producerDelegate adapts Conn's callbacks for Producer: a Producer never
// subscribes, so OnMessage is unreachable in practice, but the delegate
// still needs to log unsolicited responses/errors and react to a
// connection closing by dropping it from the pool.
type producerDelegate struct {
	noopConnDelegate
	p *Producer
}

func (d *producerDelegate) OnResponse(c *Conn, data []byte) {
	d.p.log.Output(LogLevelDebug, "[%s] response %q", c, data)
}

func (d *producerDelegate) OnError(c *Conn, err *BrokerError) {
	d.p.log.Output(LogLevelWarning, "[%s] error %s", c, err)
}

func (d *producerDelegate) OnIOError(c *Conn, err error) {
	d.p.log.Output(LogLevelWarning, "[%s] IO error %s", c, err)
}

func (d *producerDelegate) OnClose(c *Conn) {
	d.p.removeConn(c.Address())
}

// Producer load-balances PUB/MPUB/DPUB across a pool of Conn, one per
// configured broker address, each IDENTIFYed but never subscribed
// (spec.md §4.3).
type Producer struct {
	cfg *Config
	log Logger

	mtx   sync.RWMutex
	conns map[string]*Conn

	rng *rand.Rand
}

// NewProducer opens one connection per address in addrs and IDENTIFYs
// each. Startup fails if addrs is empty (spec.md §4.3).
func NewProducer(addrs []string, cfg *Config, logger Logger) (*Producer, error) {
	if len(addrs) == 0 {
		return nil, ErrNoConnections
	}
	if cfg == nil {
		cfg = NewConfig()
	}
	if logger == nil {
		logger = NewStdLogger()
	}
	p := &Producer{
		cfg:   cfg,
		log:   logger,
		conns: make(map[string]*Conn),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, addr := range addrs {
		conn := NewConn(addr, cfg, &producerDelegate{p: p}, logger)
		if err := conn.Connect(); err != nil {
			p.log.Output(LogLevelWarning, "[%s] failed to connect - %s", addr, err)
			continue
		}
		if _, err := conn.Identify(); err != nil {
			p.log.Output(LogLevelWarning, "[%s] failed to IDENTIFY - %s", addr, err)
			conn.Close()
			continue
		}
		if cfg.AuthSecret != "" {
			if err := conn.Auth(cfg.AuthSecret); err != nil {
				p.log.Output(LogLevelWarning, "[%s] failed to AUTH - %s", addr, err)
				conn.Close()
				continue
			}
		}
		p.mtx.Lock()
		p.conns[addr] = conn
		p.mtx.Unlock()
	}
	if len(p.conns) == 0 {
		return nil, ErrNotConnected
	}
	return p, nil
}

func (p *Producer) removeConn(addr string) {
	p.mtx.Lock()
	delete(p.conns, addr)
	p.mtx.Unlock()
}

// pick returns a uniformly random Connected connection, or ErrNotConnected
// if none is currently usable (spec.md §4.3).
func (p *Producer) pick() (*Conn, error) {
	p.mtx.RLock()
	defer p.mtx.RUnlock()

	candidates := make([]*Conn, 0, len(p.conns))
	for _, c := range p.conns {
		if c.State() == StateConnected {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNotConnected
	}
	return candidates[p.rng.Intn(len(candidates))], nil
}

// Publish picks a connected broker and sends PUB for body.
func (p *Producer) Publish(topic string, body []byte) error {
	conn, err := p.pick()
	if err != nil {
		return err
	}
	frameType, data, err := conn.Pub(topic, body)
	if err != nil {
		return err
	}
	if frameType == FrameTypeError {
		return ParseBrokerError(data)
	}
	return nil
}

// MultiPublish picks a connected broker and sends MPUB for bodies.
func (p *Producer) MultiPublish(topic string, bodies [][]byte) error {
	conn, err := p.pick()
	if err != nil {
		return err
	}
	frameType, data, err := conn.MPub(topic, bodies)
	if err != nil {
		return err
	}
	if frameType == FrameTypeError {
		return ParseBrokerError(data)
	}
	return nil
}

// DeferredPublish picks a connected broker and sends DPUB for body, to be
// delivered after delay.
func (p *Producer) DeferredPublish(topic string, delay time.Duration, body []byte) error {
	conn, err := p.pick()
	if err != nil {
		return err
	}
	frameType, data, err := conn.DPub(topic, delay, body)
	if err != nil {
		return err
	}
	if frameType == FrameTypeError {
		return ParseBrokerError(data)
	}
	return nil
}

// Stop closes every connection in the pool.
func (p *Producer) Stop() {
	p.mtx.Lock()
	conns := make([]*Conn, 0, len(p.conns))
	for _, c := range p.conns {
		conns = append(conns, c)
	}
	p.conns = make(map[string]*Conn)
	p.mtx.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
