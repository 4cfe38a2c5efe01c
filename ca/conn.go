package ca

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// options collects the knobs shared by Conn and SearchWriter.
type options struct {
	log        zerolog.Logger
	met        *Metrics
	alloc      Allocator
	prio       uint16
	echoEvery  time.Duration
	user, host string
}

func defaultOptions() options {
	return options{
		log:   zerolog.Nop(),
		alloc: NewBlockPool(0),
	}
}

// Option customizes a Conn or SearchWriter.
type Option func(*options)

// WithLogger attaches a logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithMetrics attaches send-path collectors.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.met = m }
}

// WithAllocator substitutes the block allocator, e.g. a bounded pool.
func WithAllocator(a Allocator) Option {
	return func(o *options) { o.alloc = a }
}

// WithPriority sets the circuit priority announced to the server.
func WithPriority(p uint16) Option {
	return func(o *options) { o.prio = p }
}

// WithEchoInterval makes the circuit probe liveness with an echo request
// whenever the interval elapses. Zero disables probing.
func WithEchoInterval(d time.Duration) Option {
	return func(o *options) { o.echoEvery = d }
}

// WithIdentity sets the user and host names announced to servers that
// evaluate access security. Either may be empty to stay silent.
func WithIdentity(user, host string) Option {
	return func(o *options) {
		o.user = user
		o.host = host
	}
}

// Conn drives the outgoing half of one TCP circuit. It owns a SendQueue and
// supplies the locking discipline the queue leaves to its callers: one mutex
// serializes every begin/push/commit sequence and every pop, and socket
// writes happen outside it, so a slow peer holds up producers for at most
// one block hand-off.
type Conn struct {
	nc         net.Conn
	alloc      Allocator
	log        zerolog.Logger
	met        *Metrics
	prio       uint16
	echoEvery  time.Duration
	user, host string

	// peerMinor is the server's minor revision, zero until its version
	// response arrives. An unheard-from peer gets no extension-dependent
	// traffic.
	peerMinor atomic.Uint32

	mu sync.Mutex // guards q
	q  *SendQueue

	fmu sync.Mutex // serializes flushers

	kick      chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewConn wraps an established circuit and queues the version exchange. The
// queue stays local until a threshold or an explicit Flush pushes it out.
func NewConn(nc net.Conn, opts ...Option) (*Conn, error) {
	if nc == nil {
		return nil, ErrNilConn
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	c := &Conn{
		nc:        nc,
		alloc:     o.alloc,
		log:       o.log.With().Str("peer", nc.RemoteAddr().String()).Logger(),
		met:       o.met,
		prio:      o.prio,
		echoEvery: o.echoEvery,
		user:      o.user,
		host:      o.host,
		kick:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	c.q = NewSendQueue(c.alloc)
	if err := c.Send(func(q *SendQueue) error { return q.VersionRequest(c.prio) }); err != nil {
		return nil, err
	}
	c.wg.Add(1)
	go c.flushLoop()
	return c, nil
}

// Send builds one message under the queue lock: BeginMsg, build, CommitMsg.
// The build callback may emit several requests; they commit together. A
// build error rolls the partial message back before it surfaces. After a
// commit the flush policy runs: past the hard threshold the call drains the
// queue itself, past the early threshold it wakes the background flusher.
func (c *Conn) Send(build func(q *SendQueue) error) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	c.mu.Lock()
	c.q.BeginMsg()
	if err := build(c.q); err != nil {
		c.q.BeginMsg()
		c.mu.Unlock()
		if c.met != nil {
			c.met.MessagesDiscarded.Inc()
		}
		return err
	}
	c.q.CommitMsg()
	pending := c.q.OccupiedBytes()
	hard := c.q.FlushBlockThreshold(0)
	early := c.q.FlushEarlyThreshold(0)
	c.mu.Unlock()

	if c.met != nil {
		c.met.MessagesCommitted.Inc()
		c.met.PendingBytes.Set(float64(pending))
	}
	if hard {
		return c.Flush()
	}
	if early {
		select {
		case c.kick <- struct{}{}:
		default:
		}
	}
	return nil
}

// OccupiedBytes returns the bytes queued and not yet written out.
func (c *Conn) OccupiedBytes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.q.OccupiedBytes()
}

// SetPeerRevision records the minor revision the server announced in its
// version response. Crossing the name service threshold queues the identity
// configured with WithIdentity.
func (c *Conn) SetPeerRevision(minor uint16) {
	old := uint16(c.peerMinor.Swap(uint32(minor)))
	c.log.Debug().Uint16("minor", minor).Msg("peer revision learned")
	if supportsNameService(minor) && !supportsNameService(old) {
		c.sendIdentity()
	}
}

// LargeArraysOK reports whether the peer accepts the extended header form.
// Builders take the answer as their extendedOK argument.
func (c *Conn) LargeArraysOK() bool {
	return supportsLargeArrays(uint16(c.peerMinor.Load()))
}

func (c *Conn) sendIdentity() {
	if c.user != "" {
		if err := c.Send(func(q *SendQueue) error { return q.ClientNameRequest(c.user) }); err != nil {
			c.log.Warn().Err(err).Msg("client name request failed")
		}
	}
	if c.host != "" {
		if err := c.Send(func(q *SendQueue) error { return q.HostNameRequest(c.host) }); err != nil {
			c.log.Warn().Err(err).Msg("host name request failed")
		}
	}
}

// Flush drains every committed block to the socket.
func (c *Conn) Flush() error {
	c.fmu.Lock()
	defer c.fmu.Unlock()
	if c.met != nil {
		c.met.Flushes.Inc()
	}
	for {
		c.mu.Lock()
		b, ok := c.q.PopBlock()
		pending := c.q.OccupiedBytes()
		c.mu.Unlock()
		if !ok {
			if c.met != nil {
				c.met.PendingBytes.Set(float64(pending))
			}
			return nil
		}
		n, err := b.WriteTo(c.nc)
		c.alloc.Put(b)
		if c.met != nil {
			c.met.BlocksFlushed.Inc()
			c.met.BytesFlushed.Add(float64(n))
		}
		if err != nil {
			if c.met != nil {
				c.met.SendErrors.Inc()
			}
			c.log.Error().Err(err).Msg("circuit write failed")
			return err
		}
	}
}

// flushLoop services early-threshold wakeups and, when configured, the echo
// probe timer.
func (c *Conn) flushLoop() {
	defer c.wg.Done()
	var tick <-chan time.Time
	if c.echoEvery > 0 {
		t := time.NewTicker(c.echoEvery)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-c.kick:
			c.flushLogged()
		case <-tick:
			if err := c.Send(func(q *SendQueue) error { return q.EchoRequest() }); err == nil {
				c.flushLogged()
			}
		case <-c.done:
			return
		}
	}
}

func (c *Conn) flushLogged() {
	if err := c.Flush(); err != nil {
		c.log.Warn().Err(err).Msg("background flush failed")
	}
}

// Close stops the flusher, drains what is committed, and closes the socket.
// The drain error wins over the close error. Later calls return nil.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		c.wg.Wait()
		err = c.Flush()
		if cerr := c.nc.Close(); err == nil {
			err = cerr
		}
	})
	return err
}
