package rtmp

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// Errors returned by Conn operations.
var (
	// ErrInvalidOnPacket is returned when no packet handler is provided.
	ErrInvalidOnPacket = errors.New("invalid on packet callback")
	// ErrConnectionClosed is returned when operating on a closed Conn.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrBufferFull is returned when the send queue cannot take more packets.
	// The peer is not keeping up; drop the packet or use WriteBlocking.
	ErrBufferFull = errors.New("send buffer full")
)

// ErrorAction tells a Conn what to do after a read or write error.
type ErrorAction int

const (
	// Disconnect stops the Conn.
	Disconnect ErrorAction = iota
	// Continue ignores the error.
	Continue
)

// defaultBufferSize is the default size of the send queue.
const defaultBufferSize = 16

type connOptions struct {
	bufferSize int
	onPacket   func(*Packet) error
	onError    func(error) ErrorAction
	logger     Logger
}

// ConnOption configures a Conn.
type ConnOption func(*connOptions)

// OnPacketOption sets the handler called for every received packet.
// Required.
func OnPacketOption(cb func(*Packet) error) ConnOption {
	return func(o *connOptions) {
		o.onPacket = cb
	}
}

// OnErrorOption sets the error callback. The default disconnects on any
// error.
func OnErrorOption(cb func(error) ErrorAction) ConnOption {
	return func(o *connOptions) {
		o.onError = cb
	}
}

// BufferSizeOption sets the size of the send queue.
func BufferSizeOption(size int) ConnOption {
	return func(o *connOptions) {
		o.bufferSize = size
	}
}

// ConnLoggerOption sets the logger. The session logger is used by default.
func ConnLoggerOption(logger Logger) ConnOption {
	return func(o *connOptions) {
		o.logger = logger
	}
}

func checkConnOptions(opts *connOptions) error {
	if opts.bufferSize <= 0 {
		opts.bufferSize = defaultBufferSize
	}

	if opts.onPacket == nil {
		return ErrInvalidOnPacket
	}

	if opts.onError == nil {
		opts.onError = func(err error) ErrorAction { return Disconnect }
	}

	return nil
}

// Conn pumps packets in and out of a Session.
//
// A single goroutine drives the session: it flushes queued packets, then
// blocks in ReadPacket for up to the session timeout, then hands the packet
// to the OnPacket handler. The session is therefore never used from two
// goroutines at once; queued packets wait at most one read.
type Conn struct {
	session *Session
	logger  Logger
	opts    connOptions

	sendPkt chan *Packet
	closed  atomic.Bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

// NewConn wraps session. The Conn owns the session from now on and closes it
// when Run returns.
func NewConn(session *Session, opt ...ConnOption) (*Conn, error) {
	var opts connOptions
	for _, o := range opt {
		o(&opts)
	}

	if err := checkConnOptions(&opts); err != nil {
		return nil, err
	}
	if opts.logger == nil {
		opts.logger = session.logger
	}

	return &Conn{
		session: session,
		logger:  opts.logger,
		opts:    opts,
		sendPkt: make(chan *Packet, opts.bufferSize),
	}, nil
}

// Session returns the wrapped session.
func (c *Conn) Session() *Session { return c.session }

// Run drives the session until the context is canceled, the handler fails
// or an error makes OnError return Disconnect. The session is closed when
// Run returns.
func (c *Conn) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.closed.Load() || c.running {
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.running = true
	c.mu.Unlock()

	c.logger.Info("connection established", "session", c.session.ID())
	c.logger.Debug("connection options", "session", c.session.ID(), "buffer_size", c.opts.bufferSize)

	err := c.loop(ctx)
	c.closeConn()

	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Info("connection closed with error", "session", c.session.ID(), "error", err)
	} else {
		c.logger.Info("connection closed", "session", c.session.ID())
	}
	return err
}

func (c *Conn) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := c.flush(); err != nil {
			return err
		}

		p, err := c.session.ReadPacket()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Debug("read error", "session", c.session.ID(), "error", err)
			if errors.Is(err, ErrHandleUnavailable) || c.opts.onError(err) == Disconnect {
				return err
			}
			continue
		}

		if err := c.opts.onPacket(p); err != nil {
			return err
		}
	}
}

// flush writes every queued packet.
func (c *Conn) flush() error {
	for {
		select {
		case p := <-c.sendPkt:
			if err := c.session.WritePacket(p); err != nil {
				c.logger.Debug("write error", "session", c.session.ID(), "error", err)
				if errors.Is(err, ErrHandleUnavailable) || c.opts.onError(err) == Disconnect {
					return err
				}
			}
		default:
			return nil
		}
	}
}

// Close stops Run. If Run was never started the session is closed directly.
// Safe to call multiple times.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil // already closed
	}

	c.mu.Lock()
	cancel, running := c.cancel, c.running
	c.mu.Unlock()

	if running {
		cancel()
		return nil
	}
	return c.session.Close()
}

// IsClosed returns true if the connection has been closed.
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// Write queues p without blocking. p must not be modified until it is sent.
//
// Returns:
//   - nil: p was queued (not yet sent)
//   - ErrBufferFull: the queue is full, p was NOT queued
//   - ErrConnectionClosed: the connection is closed
func (c *Conn) Write(p *Packet) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	select {
	case c.sendPkt <- p:
		return nil
	default:
		return ErrBufferFull
	}
}

// WriteBlocking queues p, waiting for queue space until ctx is done.
func (c *Conn) WriteBlocking(ctx context.Context, p *Packet) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	select {
	case c.sendPkt <- p:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WriteTimeout queues p, waiting for queue space up to timeout.
// It returns ErrBufferFull when the timeout expires.
func (c *Conn) WriteTimeout(p *Packet, timeout time.Duration) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case c.sendPkt <- p:
		return nil
	case <-timer.C:
		return ErrBufferFull
	}
}

// WriteCommand encodes cmd and queues it like Write.
func (c *Conn) WriteCommand(cmd *Command) error {
	p, err := cmd.Packet()
	if err != nil {
		return err
	}
	return c.Write(p)
}

// closeConn marks the connection closed and releases the session.
func (c *Conn) closeConn() {
	c.closed.Store(true)
	c.session.Close()
}
