package rtmp

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Zereker/rtmp/native"
)

// Session is an RTMP connection owning one Bridge handle.
// Writes are serialized; other calls must not run concurrently with each
// other or with Close.
type Session struct {
	bridge *Bridge
	handle Handle
	id     string
	logger Logger

	opts sessionOptions

	writeMu sync.Mutex
	closed  atomic.Bool

	// closeGuard, when set, wraps the release of the handle.
	closeGuard func(release func())
}

// NewSession allocates a handle on b and applies the session options.
// Returns ErrAlloc if the bridge cannot allocate.
func NewSession(b *Bridge, opt ...SessionOption) (*Session, error) {
	opts := sessionOptions{enableWrite: true}
	for _, o := range opt {
		o(&opts)
	}
	if opts.logger == nil {
		opts.logger = b.logger
	}

	h := b.Alloc()
	if !h.Valid() {
		return nil, ErrAlloc
	}

	s := &Session{
		bridge: b,
		handle: h,
		id:     uuid.NewString(),
		logger: opts.logger,
		opts:   opts,
	}

	if opts.timeout > 0 {
		if err := s.SetTimeout(opts.timeout); err != nil {
			s.Close()
			return nil, err
		}
	}
	if len(opts.videoCodecs) > 0 {
		if err := s.SetSupportedVideoCodecs(opts.videoCodecs); err != nil {
			s.Close()
			return nil, err
		}
	}

	s.logger.Debug("session created", "session", s.id, "handle", h)
	return s, nil
}

// ID returns the session id used in log lines.
func (s *Session) ID() string { return s.id }

// Handle returns the underlying bridge handle.
func (s *Session) Handle() Handle { return s.handle }

// check converts status into an error. A protocol failure becomes failure.
func (s *Session) check(op string, status int, failure error) error {
	if status >= 0 {
		return nil
	}
	err := StatusError(status)
	if status == StatusFailure {
		err = failure
	}
	s.logger.Debug("session operation failed", "session", s.id, "op", op, "error", err)
	return errors.Wrap(err, op)
}

// Link returns the connection parameters parsed by Connect.
func (s *Session) Link() (native.Link, error) {
	l, ok := s.bridge.Link(s.handle)
	if !ok {
		return native.Link{}, errors.Wrap(ErrHandleUnavailable, opLink)
	}
	return l, nil
}

// IsConnected reports whether the connection is still open.
func (s *Session) IsConnected() bool {
	return s.bridge.IsConnected(s.handle)
}

// Timeout returns the connection timeout.
func (s *Session) Timeout() (int, error) {
	t := s.bridge.Timeout(s.handle)
	if err := s.check(opTimeout, t, ErrProtocol); err != nil {
		return 0, err
	}
	return t, nil
}

// SetTimeout sets the connection timeout.
func (s *Session) SetTimeout(timeout int) error {
	return s.check(opTimeout, s.bridge.SetTimeout(s.handle, timeout), ErrProtocol)
}

// SupportedVideoCodecs lists the video mime types announced on connect,
// standard codecs first.
func (s *Session) SupportedVideoCodecs() ([]string, error) {
	mask := s.bridge.VideoCodecs(s.handle)
	if err := s.check(opVideoCodecs, mask, ErrProtocol); err != nil {
		return nil, err
	}

	list := VideoCodecs(mask).MimeTypes()
	if raw, ok := s.bridge.ExVideoCodecs(s.handle); ok {
		ex, err := ParseExVideoCodecs(raw)
		if err != nil {
			return nil, err
		}
		list = append(list, ex.MimeTypes()...)
	}
	return list, nil
}

// SetSupportedVideoCodecs splits mimeTypes into the standard videoCodecs
// bitmask and the enhanced RTMP fourCC list. At least one codec is required.
func (s *Session) SetSupportedVideoCodecs(mimeTypes []string) error {
	if len(mimeTypes) == 0 {
		return errors.New("at least one codec must be supported")
	}

	var standard, extended []string
	for _, m := range mimeTypes {
		switch {
		case IsSupportedVideoCodec(m):
			standard = append(standard, m)
		case IsSupportedExVideoCodec(m):
			extended = append(extended, m)
		default:
			return errors.Errorf("unsupported codec %s", m)
		}
	}

	mask, err := VideoCodecsFromMimeTypes(standard)
	if err != nil {
		return err
	}
	ex, err := ExVideoCodecsFromMimeTypes(extended)
	if err != nil {
		return err
	}

	if err := s.check(opVideoCodecs, s.bridge.SetVideoCodec(s.handle, int(mask)), ErrProtocol); err != nil {
		return err
	}
	return s.check(opExVideoCodecs, s.bridge.SetExVideoCodec(s.handle, ex.Value()), ErrProtocol)
}

// Connect parses url, enables publishing if configured and connects to the
// server. Call ConnectStream afterwards. Options for the connect command may
// be appended to url as space separated name=value pairs.
func (s *Session) Connect(url string) error {
	if status := s.bridge.SetupURL(s.handle, url); status != StatusOK {
		return errors.Wrapf(s.check(opSetupURL, status, ErrInvalidURL), "url %s", url)
	}

	if s.opts.enableWrite {
		if err := s.check(opEnableWrite, s.bridge.EnableWrite(s.handle), ErrEnableWrite); err != nil {
			return err
		}
	}

	if err := s.check(opConnect, s.bridge.Connect(s.handle), ErrConnect); err != nil {
		return err
	}

	s.logger.Info("session connected", "session", s.id, "url", url)
	return nil
}

// ConnectStream creates a new stream.
func (s *Session) ConnectStream() error {
	return s.check(opConnectStream, s.bridge.ConnectStream(s.handle), ErrConnectStream)
}

// DeleteStream deletes the running stream.
func (s *Session) DeleteStream() error {
	return s.check(opDeleteStream, s.bridge.DeleteStream(s.handle), ErrDeleteStream)
}

// Pause pauses the stream.
func (s *Session) Pause() error {
	return s.check(opPause, s.bridge.Pause(s.handle), ErrPause)
}

// Resume resumes the stream after Pause.
func (s *Session) Resume() error {
	return s.check(opResume, s.bridge.Resume(s.handle), ErrResume)
}

// transfer maps a byte count from Read or Write into (n, error).
func (s *Session) transfer(op string, n int) (int, error) {
	switch {
	case n > 0:
		return n, nil
	case n == 0:
		return 0, errors.Wrap(ErrTimeout, op)
	default:
		return 0, s.check(op, n, ErrConnection)
	}
}

// Write sends FLV data and returns the number of bytes sent.
//
// Returns:
//   - ErrTimeout: nothing was sent before the timeout
//   - ErrConnection: the connection failed
//   - ErrHandleUnavailable: the session is closed
func (s *Session) Write(p []byte) (int, error) {
	s.writeMu.Lock()
	n := s.bridge.Write(s.handle, p, 0, len(p))
	s.writeMu.Unlock()
	return s.transfer(opWrite, n)
}

// Read reads FLV data into p and returns the number of bytes received.
// Errors are the same as for Write.
func (s *Session) Read(p []byte) (int, error) {
	return s.transfer(opRead, s.bridge.Read(s.handle, p, 0, len(p)))
}

// WritePacket sends an RTMP packet. p.Body is not retained.
func (s *Session) WritePacket(p *Packet) error {
	s.writeMu.Lock()
	status := s.bridge.WritePacket(s.handle, p)
	s.writeMu.Unlock()
	return s.check(opWritePacket, status, ErrWritePacket)
}

// ReadPacket reads the next RTMP packet.
func (s *Session) ReadPacket() (*Packet, error) {
	p := s.bridge.ReadPacket(s.handle)
	if p != nil {
		return p, nil
	}
	if _, ok := s.bridge.handles.lookup(s.handle); !ok {
		return nil, errors.Wrap(ErrHandleUnavailable, opReadPacket)
	}
	return nil, errors.Wrap(ErrReadPacket, opReadPacket)
}

// Serve runs the server side handshake on fd, an already connected socket.
// The session owns fd afterwards and closes it in Close.
func (s *Session) Serve(fd int) error {
	return s.check(opServe, s.bridge.Serve(s.handle, fd), ErrServe)
}

// Close closes the connection and releases the handle.
// Safe to call multiple times.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil // already closed
	}
	release := func() { s.bridge.Close(s.handle) }
	if s.closeGuard != nil {
		s.closeGuard(release)
	} else {
		release()
	}
	s.logger.Debug("session closed", "session", s.id)
	return nil
}

// IsClosed returns true if the session has been closed.
func (s *Session) IsClosed() bool {
	return s.closed.Load()
}
