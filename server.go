package rtmp

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Handler is the interface for handling sessions accepted by a Server.
type Handler interface {
	// Handle is called once the server side handshake succeeded. The server
	// closes the session when Handle returns.
	Handle(ctx context.Context, s *Session)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, s *Session)

// Handle calls f(ctx, s).
func (f HandlerFunc) Handle(ctx context.Context, s *Session) { f(ctx, s) }

// Server accepts TCP connections and runs the RTMP server handshake on each
// through a Bridge.
type Server struct {
	listener        *net.TCPListener
	bridge          *Bridge
	logger          Logger
	shutdownTimeout time.Duration
	sessionOpts     []SessionOption

	mu          sync.Mutex
	shutdown    bool
	shutdownNow chan struct{} // signals immediate shutdown, bypassing timeout
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// ServerLoggerOption sets the logger for the server.
func ServerLoggerOption(logger Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// ServerShutdownTimeoutOption sets the graceful shutdown timeout.
// When the context is canceled, the server waits up to this duration before
// closing the listener. Default is 0 (immediate shutdown).
func ServerShutdownTimeoutOption(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.shutdownTimeout = timeout
	}
}

// ServerSessionOption applies opts to every accepted session.
func ServerSessionOption(opts ...SessionOption) ServerOption {
	return func(s *Server) {
		s.sessionOpts = append(s.sessionOpts, opts...)
	}
}

// NewServer creates a server bound to addr.
// Returns an error if the address cannot be bound.
func NewServer(addr *net.TCPAddr, b *Bridge, opts ...ServerOption) (*Server, error) {
	listener, err := net.ListenTCP(addr.Network(), addr)
	if err != nil {
		return nil, err
	}

	s := &Server{
		listener:    listener,
		bridge:      b,
		logger:      slog.Default(),
		shutdownNow: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.sessionOpts = append([]SessionOption{EnableWriteOption(false)}, s.sessionOpts...)
	return s, nil
}

// Serve accepts connections and dispatches established sessions to handler.
// It blocks until the context is canceled or accepting fails, then waits for
// running handlers to return. On shutdown the sockets of running sessions
// are shut down, which makes their blocking calls fail.
func (s *Server) Serve(ctx context.Context, handler Handler) error {
	s.logger.Info("server started", "addr", s.listener.Addr())

	group, child := errgroup.WithContext(ctx)

	go func() {
		<-ctx.Done()

		if s.shutdownTimeout > 0 {
			s.logger.Info("graceful shutdown initiated", "timeout", s.shutdownTimeout)
			select {
			case <-time.After(s.shutdownTimeout):
			case <-s.shutdownNow:
				s.logger.Debug("shutdown timeout bypassed via Close()")
			}
		}

		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		// Set a deadline to unblock Accept
		_ = s.listener.SetDeadline(time.Now())
	}()

	var acceptErr error
	for {
		conn, err := s.listener.AcceptTCP()
		if err != nil {
			s.mu.Lock()
			isShutdown := s.shutdown
			s.mu.Unlock()

			if isShutdown {
				acceptErr = ctx.Err()
				break
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			s.logger.Error("accept error", "error", err)
			acceptErr = err
			break
		}

		s.logger.Debug("accepted connection", "remote_addr", conn.RemoteAddr())
		group.Go(func() error {
			s.serveConn(child, conn, handler)
			return nil
		})
	}

	_ = group.Wait()
	s.logger.Info("server stopped", "addr", s.listener.Addr())
	return acceptErr
}

// serveConn hands conn's descriptor to a new session and runs the handshake.
func (s *Server) serveConn(ctx context.Context, conn *net.TCPConn, handler Handler) {
	remote := conn.RemoteAddr()

	fd, err := DetachFD(conn)
	if err != nil {
		s.logger.Error("detach descriptor", "remote_addr", remote, "error", err)
		_ = conn.Close()
		return
	}

	session, err := NewSession(s.bridge, s.sessionOpts...)
	if err != nil {
		s.logger.Error("allocate session", "remote_addr", remote, "error", err)
		_ = closeFD(fd)
		return
	}

	// Blocking engine calls only return early when the socket goes away.
	guard := &socketGuard{fd: fd, shutdown: shutdownFD}
	session.closeGuard = guard.close
	stop := context.AfterFunc(ctx, guard.interrupt)
	defer session.Close()
	defer stop()

	if err := session.Serve(fd); err != nil {
		s.logger.Warn("handshake failed", "remote_addr", remote, "session", session.ID(), "error", err)
		return
	}

	s.logger.Debug("session established", "remote_addr", remote, "session", session.ID())
	handler.Handle(ctx, session)
}

// socketGuard orders a shutdown triggered by cancellation against the close
// of the session owning fd. Once closed, the descriptor number may belong to
// another connection and must not be touched.
type socketGuard struct {
	mu       sync.Mutex
	fd       int
	closed   bool
	shutdown func(fd int) error
}

func (g *socketGuard) interrupt() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.closed {
		_ = g.shutdown(g.fd)
	}
}

// close runs closeFn, which releases fd, and disables later shutdowns.
func (g *socketGuard) close(closeFn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	closeFn()
	g.closed = true
}

// Close stops the server by closing the underlying listener.
// If a shutdown timeout is configured, Close() bypasses the remaining timeout.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	select {
	case s.shutdownNow <- struct{}{}:
	default:
	}

	return s.listener.Close()
}

// Addr returns the listener's network address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
