// Package rtmp exposes RTMP sessions driven by an external protocol engine.
//
// A Bridge owns the session contexts created through it and hands them out
// as opaque Handles. Every Bridge call resolves its Handle first; a closed or
// unknown Handle yields StatusHandleUnavailable instead of touching the
// engine. Session wraps a single Handle with Go errors.
//
// The package does no locking per handle: callers must not issue two calls on
// the same Handle concurrently.
package rtmp

import (
	"github.com/Zereker/rtmp/native"
)

// Operation names used in logs and metrics.
const (
	opAlloc         = "alloc"
	opSetupURL      = "setup_url"
	opLink          = "link"
	opConnect       = "connect"
	opConnectStream = "connect_stream"
	opDeleteStream  = "delete_stream"
	opEnableWrite   = "enable_write"
	opTimeout       = "timeout"
	opVideoCodecs   = "video_codecs"
	opExVideoCodecs = "ex_video_codecs"
	opPause         = "pause"
	opResume        = "resume"
	opWrite         = "write"
	opRead          = "read"
	opWritePacket   = "write_packet"
	opReadPacket    = "read_packet"
	opServe         = "serve"
	opClose         = "close"
)

// Bridge drives an Engine on behalf of callers holding Handles.
type Bridge struct {
	engine  native.Engine
	handles *registry
	logger  Logger
	metrics *Metrics
}

// NewBridge creates a Bridge over engine and routes engine logs to the
// configured LogSink.
func NewBridge(engine native.Engine, opt ...Option) *Bridge {
	var opts options
	for _, o := range opt {
		o(&opts)
	}
	checkOptions(&opts)

	engine.SetLogFunc(NewLogBridge(opts.logSink).Handle)

	return &Bridge{
		engine:  engine,
		handles: newRegistry(opts.maxHandles),
		logger:  opts.logger,
		metrics: opts.metrics,
	}
}

// Live returns the number of allocated handles.
func (b *Bridge) Live() int {
	return b.handles.len()
}

// resolve recovers the context behind h. A failed resolution means there is
// no active session.
func (b *Bridge) resolve(h Handle, op string) (*sessionContext, bool) {
	ctx, ok := b.handles.lookup(h)
	if !ok || ctx.native == nil {
		b.logger.Debug("handle unavailable", "op", op, "handle", h)
		b.metrics.observe(op, StatusHandleUnavailable)
		return nil, false
	}
	return ctx, true
}

// result records status for op, logging failures.
func (b *Bridge) result(op string, h Handle, status int) int {
	if status < 0 {
		b.logger.Error("rtmp operation failed", "op", op, "handle", h, "status", status)
	}
	b.metrics.observe(op, status)
	return status
}

func boolStatus(ok bool) int {
	if ok {
		return StatusOK
	}
	return StatusFailure
}

// Alloc allocates and initializes a protocol handle. It returns
// InvalidHandle when the engine or the registry cannot allocate.
func (b *Bridge) Alloc() Handle {
	ns := b.engine.Alloc()
	if ns == nil {
		b.result(opAlloc, InvalidHandle, StatusNoMemory)
		return InvalidHandle
	}
	ns.Init()

	h, ok := b.handles.register(newSessionContext(ns))
	if !ok {
		ns.Free()
		b.result(opAlloc, InvalidHandle, StatusNoMemory)
		return InvalidHandle
	}

	b.metrics.handleAllocated()
	b.metrics.observe(opAlloc, StatusOK)
	b.logger.Debug("rtmp context allocated", "handle", h)
	return h
}

// SetupURL stores a copy of url and lets the engine parse it. On a parse
// failure the copy is kept until Close.
func (b *Bridge) SetupURL(h Handle, url string) int {
	ctx, ok := b.resolve(h, opSetupURL)
	if !ok {
		return StatusHandleUnavailable
	}

	owned := ctx.setURL(url)
	if !ctx.native.SetupURL(owned) {
		b.logger.Error("can't parse url", "handle", h, "url", url)
		return b.result(opSetupURL, h, StatusFailure)
	}

	ctx.setLink(owned, ctx.native.Link())
	return b.result(opSetupURL, h, StatusOK)
}

// Link returns the link parameters parsed by the last successful SetupURL.
func (b *Bridge) Link(h Handle) (native.Link, bool) {
	ctx, ok := b.resolve(h, opLink)
	if !ok {
		return native.Link{}, false
	}
	return ctx.link, true
}

// Connect opens the network connection and runs the connect command.
func (b *Bridge) Connect(h Handle) int {
	ctx, ok := b.resolve(h, opConnect)
	if !ok {
		return StatusHandleUnavailable
	}
	return b.result(opConnect, h, boolStatus(ctx.native.Connect()))
}

// ConnectStream creates the stream and starts playing or publishing.
func (b *Bridge) ConnectStream(h Handle) int {
	ctx, ok := b.resolve(h, opConnectStream)
	if !ok {
		return StatusHandleUnavailable
	}
	return b.result(opConnectStream, h, boolStatus(ctx.native.ConnectStream(0)))
}

// DeleteStream deletes the running stream.
func (b *Bridge) DeleteStream(h Handle) int {
	ctx, ok := b.resolve(h, opDeleteStream)
	if !ok {
		return StatusHandleUnavailable
	}
	ctx.native.DeleteStream()
	return b.result(opDeleteStream, h, StatusOK)
}

// EnableWrite switches the session to publishing.
func (b *Bridge) EnableWrite(h Handle) int {
	ctx, ok := b.resolve(h, opEnableWrite)
	if !ok {
		return StatusHandleUnavailable
	}
	ctx.native.EnableWrite()
	return b.result(opEnableWrite, h, StatusOK)
}

// IsConnected reports whether the session has an open connection.
// It returns false for an unavailable handle.
func (b *Bridge) IsConnected(h Handle) bool {
	ctx, ok := b.handles.lookup(h)
	if !ok || ctx.native == nil {
		return false
	}
	return ctx.native.IsConnected()
}

// Timeout returns the engine timeout.
func (b *Bridge) Timeout(h Handle) int {
	ctx, ok := b.resolve(h, opTimeout)
	if !ok {
		return StatusHandleUnavailable
	}
	return ctx.native.Timeout()
}

// SetTimeout sets the engine timeout.
func (b *Bridge) SetTimeout(h Handle, timeout int) int {
	ctx, ok := b.resolve(h, opTimeout)
	if !ok {
		return StatusHandleUnavailable
	}
	ctx.native.SetTimeout(timeout)
	return StatusOK
}

// VideoCodecs returns the videoCodecs bitmask announced on connect.
func (b *Bridge) VideoCodecs(h Handle) int {
	ctx, ok := b.resolve(h, opVideoCodecs)
	if !ok {
		return StatusHandleUnavailable
	}
	return ctx.videoCodecs
}

// SetVideoCodec sets the videoCodecs bitmask announced on connect.
func (b *Bridge) SetVideoCodec(h Handle, mask int) int {
	ctx, ok := b.resolve(h, opVideoCodecs)
	if !ok {
		return StatusHandleUnavailable
	}
	ctx.setVideoCodecs(mask)
	return StatusOK
}

// ExVideoCodecs returns the enhanced RTMP fourCC list, if one is set.
func (b *Bridge) ExVideoCodecs(h Handle) (string, bool) {
	ctx, ok := b.resolve(h, opExVideoCodecs)
	if !ok || ctx.exVideoCodec == nil {
		return "", false
	}
	return *ctx.exVideoCodec, true
}

// SetExVideoCodec replaces the enhanced RTMP fourCC list. nil clears it.
func (b *Bridge) SetExVideoCodec(h Handle, codec *string) int {
	ctx, ok := b.resolve(h, opExVideoCodecs)
	if !ok {
		return StatusHandleUnavailable
	}
	ctx.setExVideoCodec(codec)
	return StatusOK
}

// Pause pauses a playing stream.
func (b *Bridge) Pause(h Handle) int {
	ctx, ok := b.resolve(h, opPause)
	if !ok {
		return StatusHandleUnavailable
	}
	return b.result(opPause, h, boolStatus(ctx.native.Pause(true)))
}

// Resume resumes a paused stream.
func (b *Bridge) Resume(h Handle) int {
	ctx, ok := b.resolve(h, opResume)
	if !ok {
		return StatusHandleUnavailable
	}
	return b.result(opResume, h, boolStatus(ctx.native.Pause(false)))
}

func inBounds(size, offset, length int) bool {
	return offset >= 0 && length >= 0 && offset <= size && length <= size-offset
}

// Write sends buf[offset:offset+length] as FLV data. It returns the number
// of bytes sent, 0 on timeout, or a negative status.
func (b *Bridge) Write(h Handle, buf []byte, offset, length int) int {
	ctx, ok := b.resolve(h, opWrite)
	if !ok {
		return StatusHandleUnavailable
	}
	if !inBounds(len(buf), offset, length) {
		return b.result(opWrite, h, StatusOutOfBounds)
	}

	n := ctx.native.Write(buf[offset : offset+length])
	if n < 0 {
		// any engine error is a protocol failure, never a bridge status
		n = StatusFailure
	}
	b.metrics.transferred("out", n)
	return b.result(opWrite, h, n)
}

// Read reads FLV data into buf[offset:offset+length]. It returns the number
// of bytes read, 0 on timeout, or a negative status. A window past the end
// of buf is rejected without reading.
func (b *Bridge) Read(h Handle, buf []byte, offset, length int) int {
	ctx, ok := b.resolve(h, opRead)
	if !ok {
		return StatusHandleUnavailable
	}
	if !inBounds(len(buf), offset, length) {
		return b.result(opRead, h, StatusOutOfBounds)
	}

	n := ctx.native.Read(buf[offset : offset+length])
	if n < 0 {
		// any engine error is a protocol failure, never a bridge status
		n = StatusFailure
	}
	b.metrics.transferred("in", n)
	return b.result(opRead, h, n)
}

// WritePacket sends p. p.Body is borrowed for the duration of the call only.
func (b *Bridge) WritePacket(h Handle, p *Packet) int {
	ctx, ok := b.resolve(h, opWritePacket)
	if !ok {
		return StatusHandleUnavailable
	}
	if p == nil {
		return b.result(opWritePacket, h, StatusFailure)
	}

	rec := toNative(b.engine, p)
	if rec == nil {
		return b.result(opWritePacket, h, StatusNoMemory)
	}
	b.metrics.recordAcquired()
	defer func() {
		releaseNative(b.engine, rec)
		b.metrics.recordReleased()
	}()

	if !ctx.native.SendPacket(rec, false) {
		b.logger.Error("can't write rtmp packet", "handle", h)
		return b.result(opWritePacket, h, StatusFailure)
	}
	b.metrics.transferred("out", len(p.Body))
	return b.result(opWritePacket, h, StatusOK)
}

// ReadPacket reads the next complete packet. It returns nil on failure.
func (b *Bridge) ReadPacket(h Handle) *Packet {
	ctx, ok := b.resolve(h, opReadPacket)
	if !ok {
		return nil
	}

	var rec native.Packet
	if !ctx.native.ReadPacket(&rec) {
		b.logger.Error("can't read rtmp packet", "handle", h)
		b.result(opReadPacket, h, StatusFailure)
		return nil
	}

	b.metrics.transferred("in", len(rec.Body))
	b.metrics.observe(opReadPacket, StatusOK)
	return toManaged(&rec)
}

// Serve installs an already connected socket descriptor and runs the server
// side handshake on it. The handle owns fd from then on.
func (b *Bridge) Serve(h Handle, fd int) int {
	ctx, ok := b.resolve(h, opServe)
	if !ok {
		return StatusHandleUnavailable
	}
	ctx.native.SetSocket(fd)
	return b.result(opServe, h, boolStatus(ctx.native.Serve()))
}

// Close closes the connection and frees the handle. Later calls with h
// report StatusHandleUnavailable. Closing an unknown handle does nothing.
func (b *Bridge) Close(h Handle) {
	ctx, ok := b.handles.release(h)
	if !ok {
		b.metrics.observe(opClose, StatusHandleUnavailable)
		return
	}

	ctx.teardown()
	b.metrics.handleReleased()
	b.metrics.observe(opClose, StatusOK)
	b.logger.Debug("rtmp context closed", "handle", h)
}
