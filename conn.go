package nsqc

import (
	"bufio"
	"bytes"
	"compress/flate"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	snappystream "github.com/mreiferson/go-snappystream"
)

// pendingResult is delivered to a waiter once its command's response frame
// (or a terminal failure) arrives.
type pendingResult struct {
	frameType int32
	body      []byte
	err       error
}

// pendingQueue is the FIFO of outstanding response-expecting commands
// described in spec.md §4.2: responses arrive in send order, so a single
// queue suffices to match them back to callers.
type pendingQueue struct {
	mtx sync.Mutex
	q   []chan *pendingResult
}

func (p *pendingQueue) push() chan *pendingResult {
	ch := make(chan *pendingResult, 1)
	p.mtx.Lock()
	p.q = append(p.q, ch)
	p.mtx.Unlock()
	return ch
}

func (p *pendingQueue) pop() (chan *pendingResult, bool) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if len(p.q) == 0 {
		return nil, false
	}
	ch := p.q[0]
	p.q = p.q[1:]
	return ch, true
}

func (p *pendingQueue) failAll(err error) {
	p.mtx.Lock()
	pending := p.q
	p.q = nil
	p.mtx.Unlock()
	for _, ch := range pending {
		ch <- &pendingResult{err: err}
	}
}

// subscription records the (topic, channel, desired RDY) a Conn has
// established, so reconnect() can re-establish it atomically before the
// connection is declared usable again (spec.md §4.2).
type subscription struct {
	topic, channel string
	rdy            int
}

// Conn owns one TCP socket to one nsqd broker and drives the NSQ protocol
// state machine: framing, IDENTIFY/AUTH/SUB handshakes, heartbeat replies,
// message dispatch, RDY flow control, and auto-reconnect with resubscribe
// (spec.md §4.2). It is the core of the library; Producer and Consumer are
// thin pools of Conn plus a ConnDelegate each.
type Conn struct {
	addr string
	cfg  *Config
	log  Logger

	delegate ConnDelegate

	netConn net.Conn
	reader  io.Reader
	writer  io.Writer

	tlsConn     *tls.Conn
	flateWriter *flate.Writer

	writeMtx sync.Mutex

	stateMtx sync.Mutex
	cond     *sync.Cond
	state    State

	maxRdyCount      int64
	rdyCount         int64
	lastRdyCount     int64
	messagesInFlight int64
	lastHeartbeat    int64 // unix nano, atomic

	subMtx sync.Mutex
	sub    *subscription

	authSecret   string
	authRequired bool
	authorized   bool

	pending *pendingQueue

	autoReconnect       bool
	reconnectInitial    time.Duration
	reconnectMax        time.Duration

	readLoopExit chan struct{} // closed each time a read-loop generation exits
	stopFlag     int32
	closeOnce    sync.Once
	finalOnce    sync.Once
	wg           sync.WaitGroup
}

// NewConn returns a Conn in StateInit for addr. delegate may be nil, in
// which case a no-op delegate is used (useful for ad hoc/low-level use).
func NewConn(addr string, cfg *Config, delegate ConnDelegate, logger Logger) *Conn {
	if cfg == nil {
		cfg = NewConfig()
	}
	if delegate == nil {
		delegate = noopConnDelegate{}
	}
	if logger == nil {
		logger = NewStdLogger()
	}
	c := &Conn{
		addr:             addr,
		cfg:              cfg,
		log:              logger,
		delegate:         delegate,
		state:            StateInit,
		maxRdyCount:      2500,
		pending:          &pendingQueue{},
		autoReconnect:    true,
		reconnectInitial: defaultReconnectInitialInterval,
		reconnectMax:     defaultReconnectMaxInterval,
	}
	c.cond = sync.NewCond(&c.stateMtx)
	return c
}

// SetAutoReconnect enables or disables the reconnect scheduler described in
// spec.md §4.2. The setting is read when a read/write failure occurs, so
// it applies to the next failure after the call.
func (c *Conn) SetAutoReconnect(on bool) { c.autoReconnect = on }

// Address returns the configured destination nsqd address.
func (c *Conn) Address() string { return c.addr }

// String returns the fully-qualified address/topic/channel, matching the
// teacher's Conn.String.
func (c *Conn) String() string {
	c.subMtx.Lock()
	defer c.subMtx.Unlock()
	if c.sub == nil {
		return c.addr
	}
	return fmt.Sprintf("%s/%s/%s", c.addr, c.sub.topic, c.sub.channel)
}

// State returns the Conn's current lifecycle state.
func (c *Conn) State() State {
	c.stateMtx.Lock()
	defer c.stateMtx.Unlock()
	return c.state
}

func (c *Conn) setState(s State) {
	c.stateMtx.Lock()
	c.state = s
	c.cond.Broadcast()
	c.stateMtx.Unlock()
}

// RDY returns the client's currently outstanding RDY count.
func (c *Conn) RDY() int64 { return atomic.LoadInt64(&c.rdyCount) }

// LastRDY returns the last RDY value sent to the broker.
func (c *Conn) LastRDY() int64 { return atomic.LoadInt64(&c.lastRdyCount) }

// MaxRDY returns the nsqd-negotiated ceiling on RDY for this connection.
func (c *Conn) MaxRDY() int64 { return atomic.LoadInt64(&c.maxRdyCount) }

// InFlight returns the number of messages received but not yet
// finished/requeued on this connection.
func (c *Conn) InFlight() int64 { return atomic.LoadInt64(&c.messagesInFlight) }

// LastMessageTime reports when the last Message or heartbeat frame was
// received.
func (c *Conn) LastMessageTime() time.Time {
	return time.Unix(0, atomic.LoadInt64(&c.lastHeartbeat))
}

// Connect dials the broker, writes the magic preamble, transitions to
// Connected, and starts the read loop. It does not IDENTIFY; callers
// invoke Identify explicitly (spec.md §4.2).
func (c *Conn) Connect() error {
	conn, err := net.DialTimeout("tcp", c.addr, c.cfg.DialTimeout)
	if err != nil {
		return err
	}
	c.netConn = conn
	c.reader = bufio.NewReader(conn)
	c.writer = conn

	if _, err := c.writeRaw(MagicV2); err != nil {
		conn.Close()
		return fmt.Errorf("[%s] failed to write magic - %w", c.addr, err)
	}

	c.setState(StateConnected)
	c.startReadLoop()
	return nil
}

func (c *Conn) writeRaw(b []byte) (int, error) {
	c.netConn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.writer.Write(b)
}

func (c *Conn) startReadLoop() {
	c.readLoopExit = make(chan struct{})
	c.wg.Add(1)
	go c.readLoop(c.readLoopExit)
}

// SendCommand serializes and writes cmd to the socket. It is the low-level
// primitive behind every public operation; concurrent callers (the read
// loop's NOP replies, a user goroutine's FIN, another goroutine's PUB) are
// serialized by writeMtx.
func (c *Conn) SendCommand(cmd *Command) error {
	c.writeMtx.Lock()
	defer c.writeMtx.Unlock()

	var buf bytes.Buffer
	if err := cmd.Write(&buf); err != nil {
		return err
	}
	c.netConn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if _, err := buf.WriteTo(c.writer); err != nil {
		return err
	}
	if c.flateWriter != nil {
		return c.flateWriter.Flush()
	}
	return nil
}

// execute is the low-level primitive backing every public operation that
// expects a response (IDENTIFY, AUTH, SUB, PUB, MPUB, DPUB). If the Conn is
// Reconnecting, it blocks until the reconnect completes (or the Conn is
// permanently closed), then sends fresh (spec.md §4.2 state machine
// table). It never retries a command whose response frame arrives after
// the underlying socket has already failed; that failure surfaces as
// ErrConnectionClosed from the waiter itself.
func (c *Conn) execute(cmd *Command) (int32, []byte, error) {
	c.stateMtx.Lock()
	for c.state == StateReconnecting {
		c.cond.Wait()
	}
	s := c.state
	c.stateMtx.Unlock()

	if s == StateClosing || s == StateClosed {
		return -1, nil, ErrConnectionClosed
	}
	if s == StateInit {
		return -1, nil, ErrNotConnected
	}

	if !expectsResponse(cmd) {
		if err := c.SendCommand(cmd); err != nil {
			return -1, nil, err
		}
		return -1, nil, nil
	}

	waiter := c.pending.push()
	if err := c.SendCommand(cmd); err != nil {
		return -1, nil, err
	}
	res := <-waiter
	return res.frameType, res.body, res.err
}

// Identify sends IDENTIFY with the Config's feature payload and awaits the
// broker's response (spec.md §4.2). On auth_required, the Conn is marked
// as requiring AUTH before any other command. On tls_v1/snappy/deflate
// being advertised, the corresponding upgrade hook runs.
func (c *Conn) Identify() (*IdentifyResponse, error) {
	cmd, err := Identify(c.cfg.identifyPayload())
	if err != nil {
		return nil, ErrIdentify{Reason: err.Error()}
	}

	frameType, data, err := c.execute(cmd)
	if err != nil {
		return nil, ErrIdentify{Reason: err.Error()}
	}
	if frameType == FrameTypeError {
		return nil, ErrIdentify{Reason: string(data)}
	}
	if len(data) == 0 || data[0] != '{' {
		// server responded plain "OK" with no negotiated capabilities.
		return nil, nil
	}

	resp := &IdentifyResponse{}
	if err := json.Unmarshal(data, resp); err != nil {
		return nil, ErrIdentify{Reason: err.Error()}
	}
	atomic.StoreInt64(&c.maxRdyCount, resp.MaxRdyCount)
	if resp.AuthRequired {
		c.authRequired = true
	}

	if resp.TLSv1 {
		if err := c.upgradeTLS(); err != nil {
			return nil, ErrIdentify{Reason: err.Error()}
		}
	}
	if resp.Snappy {
		if err := c.upgradeSnappy(); err != nil {
			return nil, ErrIdentify{Reason: err.Error()}
		}
	}
	if resp.Deflate {
		if err := c.upgradeDeflate(); err != nil {
			return nil, ErrIdentify{Reason: err.Error()}
		}
	}

	return resp, nil
}

// upgrade hooks pause the running read loop, perform the handshake
// against the raw socket, swap in the new reader/writer, then resume a
// fresh read-loop generation reading through the upgraded transport. A
// paused loop's own goroutine returns silently (spec.md §5): it is not
// treated as a connection failure.
func (c *Conn) pauseReadLoop() {
	close(c.readLoopExit)
	c.wg.Wait()
}

func (c *Conn) resumeReadLoop() {
	c.wg.Add(1)
	c.readLoopExit = make(chan struct{})
	go c.readLoop(c.readLoopExit)
}

func (c *Conn) upgradeTLS() error {
	c.pauseReadLoop()
	defer c.resumeReadLoop()

	tlsConf := c.cfg.TLSConfig
	if tlsConf == nil {
		tlsConf = &tls.Config{}
	}
	tlsConn := tls.Client(c.netConn, tlsConf)
	if err := tlsConn.Handshake(); err != nil {
		return err
	}
	c.tlsConn = tlsConn
	c.reader = bufio.NewReader(tlsConn)
	c.writer = tlsConn

	frame, err := readFrameSync(c.reader)
	if err != nil {
		return err
	}
	if frame.Type != FrameTypeResponse || !bytes.Equal(frame.Body, []byte("OK")) {
		return errors.New("invalid response from TLS upgrade")
	}
	return nil
}

func (c *Conn) upgradeDeflate() error {
	c.pauseReadLoop()
	defer c.resumeReadLoop()

	underlying := c.underlyingConn()
	c.reader = flate.NewReader(underlying)
	fw, err := flate.NewWriter(underlying, c.cfg.DeflateLevel)
	if err != nil {
		return err
	}
	c.flateWriter = fw
	c.writer = fw

	frame, err := readFrameSync(c.reader)
	if err != nil {
		return err
	}
	if frame.Type != FrameTypeResponse || !bytes.Equal(frame.Body, []byte("OK")) {
		return errors.New("invalid response from Deflate upgrade")
	}
	return nil
}

func (c *Conn) upgradeSnappy() error {
	c.pauseReadLoop()
	defer c.resumeReadLoop()

	underlying := c.underlyingConn()
	c.reader = snappystream.NewReader(underlying, snappystream.SkipVerifyChecksum)
	c.writer = snappystream.NewWriter(underlying)

	frame, err := readFrameSync(c.reader)
	if err != nil {
		return err
	}
	if frame.Type != FrameTypeResponse || !bytes.Equal(frame.Body, []byte("OK")) {
		return errors.New("invalid response from Snappy upgrade")
	}
	return nil
}

func (c *Conn) underlyingConn() io.ReadWriter {
	if c.tlsConn != nil {
		return c.tlsConn
	}
	return c.netConn
}

// readFrameSync reads exactly one frame directly from r, bypassing the
// chunked Decoder; it is only used for the synchronous upgrade-confirmation
// reads above, where nothing else is concurrently reading r.
func readFrameSync(r io.Reader) (*Frame, error) {
	var sizeBuf [4]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		return nil, err
	}
	size := int32(sizeBuf[0])<<24 | int32(sizeBuf[1])<<16 | int32(sizeBuf[2])<<8 | int32(sizeBuf[3])
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return decodeFramePayload(payload)
}

// Auth sends AUTH with secret as its payload; on success the secret is
// remembered for reconnects and the Conn is marked authorized.
func (c *Conn) Auth(secret string) error {
	cmd, err := Auth(secret)
	if err != nil {
		return err
	}
	frameType, data, err := c.execute(cmd)
	if err != nil {
		return err
	}
	if frameType == FrameTypeError {
		return ParseBrokerError(data)
	}
	c.authSecret = secret
	c.authorized = true
	return nil
}

// requireAuthorized enforces the auth taxonomy in spec.md §7: if the
// broker requires auth and AUTH has not succeeded, the command is rejected
// locally rather than sent. SUB, PUB, MPUB, DPUB and RDY call it; FIN,
// REQ, TOUCH, NOP and CLS are sent without this check.
func (c *Conn) requireAuthorized(command string) error {
	if c.authRequired && !c.authorized {
		return ErrUnauthorized{Command: command}
	}
	return nil
}

// Subscribe sends SUB for (topic, channel); on success it records the
// subscription and sends the initial RDY.
func (c *Conn) Subscribe(topic, channel string, rdy int) error {
	if !IsValidTopicName(topic) {
		return ErrBadTopicOrChannel{Kind: "topic", Value: topic}
	}
	if !IsValidChannelName(channel) {
		return ErrBadTopicOrChannel{Kind: "channel", Value: channel}
	}
	if err := c.requireAuthorized("SUB"); err != nil {
		return err
	}

	cmd, err := Subscribe(topic, channel)
	if err != nil {
		return err
	}
	frameType, data, err := c.execute(cmd)
	if err != nil {
		return err
	}
	if frameType == FrameTypeError {
		return ParseBrokerError(data)
	}

	c.subMtx.Lock()
	c.sub = &subscription{topic: topic, channel: channel, rdy: rdy}
	c.subMtx.Unlock()

	return c.RDYCommand(rdy)
}

// Pub sends PUB for a single message body.
func (c *Conn) Pub(topic string, body []byte) (int32, []byte, error) {
	if !IsValidTopicName(topic) {
		return -1, nil, ErrBadTopicOrChannel{Kind: "topic", Value: topic}
	}
	if err := c.requireAuthorized("PUB"); err != nil {
		return -1, nil, err
	}
	cmd, err := Publish(topic, body)
	if err != nil {
		return -1, nil, err
	}
	return c.execute(cmd)
}

// MPub sends MPUB, batching several message bodies into one publish.
func (c *Conn) MPub(topic string, bodies [][]byte) (int32, []byte, error) {
	if !IsValidTopicName(topic) {
		return -1, nil, ErrBadTopicOrChannel{Kind: "topic", Value: topic}
	}
	if err := c.requireAuthorized("MPUB"); err != nil {
		return -1, nil, err
	}
	cmd, err := MultiPublish(topic, bodies)
	if err != nil {
		return -1, nil, err
	}
	return c.execute(cmd)
}

// DPub sends DPUB, publishing body to topic after delay.
func (c *Conn) DPub(topic string, delay time.Duration, body []byte) (int32, []byte, error) {
	if !IsValidTopicName(topic) {
		return -1, nil, ErrBadTopicOrChannel{Kind: "topic", Value: topic}
	}
	if err := c.requireAuthorized("DPUB"); err != nil {
		return -1, nil, err
	}
	cmd, err := DeferredPublish(topic, int64(delay/time.Millisecond), body)
	if err != nil {
		return -1, nil, err
	}
	return c.execute(cmd)
}

// RDYCommand sends RDY n, updating the client's desired in-flight count.
// n must be >= 0.
func (c *Conn) RDYCommand(n int) error {
	if n < 0 {
		return fmt.Errorf("nsqc: RDY count must be >= 0, got %d", n)
	}
	if err := c.requireAuthorized("RDY"); err != nil {
		return err
	}
	if _, _, err := c.execute(Ready(n)); err != nil {
		return err
	}
	atomic.StoreInt64(&c.rdyCount, int64(n))
	atomic.StoreInt64(&c.lastRdyCount, int64(n))
	c.subMtx.Lock()
	if c.sub != nil {
		c.sub.rdy = n
	}
	c.subMtx.Unlock()
	return nil
}

// sendFin implements msgConn for Message.Finish. FIN produces no response;
// the in-flight counter is decremented optimistically, before any broker
// acknowledgement, per the spec's endorsed bookkeeping simplification
// (spec.md §9).
func (c *Conn) sendFin(id MessageID) error {
	_, _, err := c.execute(Finish(id))
	c.decrementInFlight()
	if err == nil {
		c.delegate.OnMessageFinished(c, false)
	}
	return err
}

func (c *Conn) sendReq(id MessageID, delay time.Duration) error {
	_, _, err := c.execute(Requeue(id, int64(delay/time.Millisecond)))
	c.decrementInFlight()
	if err == nil {
		c.delegate.OnMessageFinished(c, true)
	}
	return err
}

// decrementInFlight saturates at 0 (spec.md §4.2's in-flight counter
// invariant), since Finish/Requeue may race with a connection failure that
// already reset bookkeeping.
func (c *Conn) decrementInFlight() {
	for {
		cur := atomic.LoadInt64(&c.messagesInFlight)
		if cur <= 0 {
			return
		}
		if atomic.CompareAndSwapInt64(&c.messagesInFlight, cur, cur-1) {
			return
		}
	}
}

func (c *Conn) sendTouch(id MessageID) error {
	_, _, err := c.execute(Touch(id))
	return err
}

// readLoop is one generation of the connection's single read task: read a
// chunk, feed the decoder, drain every complete frame the buffer yields,
// and dispatch each (spec.md §4.2). It runs until EOF/error, an explicit
// pause (upgrade in progress), or the Conn stopping.
func (c *Conn) readLoop(myExit chan struct{}) {
	defer c.wg.Done()

	decoder := NewDecoder()
	buf := make([]byte, 16*1024)

	for {
		select {
		case <-myExit:
			return
		default:
		}

		c.netConn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		n, err := c.reader.Read(buf)
		if n > 0 {
			decoder.Feed(buf[:n])
			for {
				frame, ok, ferr := decoder.Poll()
				if ferr != nil {
					c.handleIOError(ferr)
					return
				}
				if !ok {
					break
				}
				c.dispatch(frame)
			}
		}
		if err != nil {
			select {
			case <-myExit:
				// paused for an upgrade; not a failure.
				return
			default:
			}
			if atomic.LoadInt32(&c.stopFlag) == 1 {
				c.beginClose()
				return
			}
			c.handleIOError(err)
			return
		}
	}
}

func (c *Conn) dispatch(frame *Frame) {
	switch {
	case frame.IsHeartbeat():
		atomic.StoreInt64(&c.lastHeartbeat, time.Now().UnixNano())
		c.delegate.OnHeartbeat(c)
		if err := c.SendCommand(Nop()); err != nil {
			c.handleIOError(err)
		}
	case frame.Type == FrameTypeMessage:
		atomic.AddInt64(&c.rdyCount, -1)
		atomic.AddInt64(&c.messagesInFlight, 1)
		atomic.StoreInt64(&c.lastHeartbeat, time.Now().UnixNano())
		msg := newMessage(frame, c, c.cfg.MsgTimeout)
		c.delegate.OnMessage(c, msg)
	case frame.Type == FrameTypeResponse:
		if waiter, ok := c.pending.pop(); ok {
			waiter <- &pendingResult{frameType: FrameTypeResponse, body: frame.Body}
		} else {
			c.delegate.OnResponse(c, frame.Body)
		}
	case frame.Type == FrameTypeError:
		brokerErr := ParseBrokerError(frame.Body)
		if waiter, ok := c.pending.pop(); ok {
			waiter <- &pendingResult{frameType: FrameTypeError, body: frame.Body, err: brokerErr}
		} else {
			c.delegate.OnError(c, brokerErr)
			if brokerErr.Fatal {
				c.handleIOError(brokerErr)
			}
		}
	}
}

// handleIOError is the single place a read/write failure (including a
// fatal ProtocolError) funnels through: it fails every pending waiter,
// notifies the delegate, and either starts the reconnect scheduler or
// closes permanently.
func (c *Conn) handleIOError(err error) {
	c.delegate.OnIOError(c, err)
	c.pending.failAll(ErrConnectionClosed)

	if _, fatal := err.(ErrProtocol); fatal {
		c.finalClose()
		return
	}

	if atomic.LoadInt32(&c.stopFlag) == 1 || !c.autoReconnect {
		c.finalClose()
		return
	}

	c.setState(StateReconnecting)
	go c.reconnectLoop()
}

func (c *Conn) reconnectLoop() {
	interval := c.reconnectInitial
	for {
		if atomic.LoadInt32(&c.stopFlag) == 1 {
			c.finalClose()
			return
		}
		time.Sleep(interval)
		if err := c.reconnect(); err != nil {
			c.log.Output(LogLevelWarning, "[%s] failed to reconnect - %s", c.addr, err)
			interval *= 2
			if interval > c.reconnectMax {
				interval = c.reconnectMax
			}
			continue
		}
		return
	}
}

// reconnect tears down any stale transport state, dials, IDENTIFYs, AUTHs
// if a secret was stored, and re-subscribes if a (topic, channel, rdy) was
// recorded — all before the connection is declared Connected again
// (spec.md §4.2).
func (c *Conn) reconnect() error {
	c.tlsConn = nil
	c.flateWriter = nil

	conn, err := net.DialTimeout("tcp", c.addr, c.cfg.DialTimeout)
	if err != nil {
		return err
	}
	c.netConn = conn
	c.reader = bufio.NewReader(conn)
	c.writer = conn

	if _, err := c.writeRaw(MagicV2); err != nil {
		conn.Close()
		return err
	}

	// temporarily flip to Connected so execute()/SendCommand used by the
	// handshake below don't block on the Reconnecting gate.
	c.setState(StateConnected)
	c.startReadLoop()

	if _, err := c.Identify(); err != nil {
		return err
	}
	if c.authSecret != "" {
		if err := c.Auth(c.authSecret); err != nil {
			return err
		}
	}

	c.subMtx.Lock()
	sub := c.sub
	c.subMtx.Unlock()
	if sub != nil {
		if err := c.Subscribe(sub.topic, sub.channel, sub.rdy); err != nil {
			return err
		}
	}

	return nil
}

// Close gracefully shuts the connection down: sends CLS if subscribed,
// cancels the read loop, fails pending waiters, closes the socket, and
// transitions to Closed (spec.md §4.2, §5). It is idempotent.
func (c *Conn) Close() error {
	c.subMtx.Lock()
	subscribed := c.sub != nil
	c.subMtx.Unlock()

	if subscribed && c.State() == StateConnected {
		c.SendCommand(CommandClose())
	}

	atomic.StoreInt32(&c.stopFlag, 1)
	c.beginClose()
	return nil
}

func (c *Conn) beginClose() {
	c.closeOnce.Do(func() {
		c.setState(StateClosing)
		if c.netConn != nil {
			c.netConn.Close()
		}
		c.finalClose()
	})
}

func (c *Conn) finalClose() {
	c.finalOnce.Do(func() {
		if c.netConn != nil {
			c.netConn.Close()
		}
		c.pending.failAll(ErrConnectionClosed)
		c.setState(StateClosed)
		c.delegate.OnClose(c)
	})
}
