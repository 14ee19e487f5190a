// Package enginetest provides a scriptable in-memory protocol engine.
//
// The Engine counts every packet record and protocol handle it hands out so
// tests can assert that the bridge releases what it acquires. Sessions
// replay queued packets and bytes instead of talking to a network.
package enginetest

import (
	"strconv"
	"strings"
	"sync"

	"github.com/eapache/queue"

	"github.com/Zereker/rtmp/native"
)

// Defaults reported by a fresh Session.
const (
	DefaultTimeout     = 30
	DefaultVideoCodecs = 252
)

// Failure selects an engine call that should report failure.
type Failure int

// Scriptable failures.
const (
	FailAlloc Failure = iota + 1
	FailPacketAlloc
	FailSetupURL
	FailConnect
	FailConnectStream
	FailPause
	FailServe
	FailSend
	FailRead
)

// Engine is an in-memory native.Engine.
type Engine struct {
	mu          sync.Mutex
	failures    map[Failure]bool
	logFunc     native.LogFunc
	socketClose func(fd int)

	sessions     []*Session
	packets      map[*native.Packet]bool
	packetAllocs int
	packetFrees  int
	doubleFrees  int
}

// New returns an engine with no scripted failures.
func New() *Engine {
	return &Engine{
		failures: make(map[Failure]bool),
		packets:  make(map[*native.Packet]bool),
	}
}

// Fail makes calls of kind f fail until Heal.
func (e *Engine) Fail(f Failure) {
	e.mu.Lock()
	e.failures[f] = true
	e.mu.Unlock()
}

// Heal clears a scripted failure.
func (e *Engine) Heal(f Failure) {
	e.mu.Lock()
	delete(e.failures, f)
	e.mu.Unlock()
}

func (e *Engine) failing(f Failure) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failures[f]
}

// Alloc implements native.Engine.
func (e *Engine) Alloc() native.Session {
	if e.failing(FailAlloc) {
		e.logf(native.LogError, "RTMP_Alloc: out of memory")
		return nil
	}

	s := &Session{
		engine:      e,
		timeout:     DefaultTimeout,
		videoCodecs: DefaultVideoCodecs,
		inbound:     queue.New(),
		stream:      queue.New(),
	}

	e.mu.Lock()
	e.sessions = append(e.sessions, s)
	e.mu.Unlock()
	return s
}

// AllocPacket implements native.Engine.
func (e *Engine) AllocPacket() *native.Packet {
	if e.failing(FailPacketAlloc) {
		return nil
	}

	rec := &native.Packet{}
	e.mu.Lock()
	e.packets[rec] = true
	e.packetAllocs++
	e.mu.Unlock()
	return rec
}

// FreePacket implements native.Engine.
func (e *Engine) FreePacket(rec *native.Packet) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.packets[rec] {
		e.doubleFrees++
		return
	}
	delete(e.packets, rec)
	e.packetFrees++
}

// SetLogFunc implements native.Engine.
func (e *Engine) SetLogFunc(f native.LogFunc) {
	e.mu.Lock()
	e.logFunc = f
	e.mu.Unlock()
}

// OnSocketClose sets the function that releases installed sockets when a
// session is closed, as a real engine closes its socket.
func (e *Engine) OnSocketClose(f func(fd int)) {
	e.mu.Lock()
	e.socketClose = f
	e.mu.Unlock()
}

// Log emits a line through the installed log function, as the engine would.
func (e *Engine) Log(level native.LogLevel, format string, args ...any) {
	e.logf(level, format, args...)
}

func (e *Engine) logf(level native.LogLevel, format string, args ...any) {
	e.mu.Lock()
	f := e.logFunc
	e.mu.Unlock()

	if f != nil {
		f(level, format, args...)
	}
}

// PacketStats returns how many packet records were allocated and freed, and
// how many frees hit a record that was not outstanding.
func (e *Engine) PacketStats() (allocs, frees, doubleFrees int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.packetAllocs, e.packetFrees, e.doubleFrees
}

// OutstandingPackets returns the number of records not yet freed.
func (e *Engine) OutstandingPackets() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.packets)
}

// Sessions returns every session allocated so far, freed ones included.
func (e *Engine) Sessions() []*Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Session(nil), e.sessions...)
}

// LiveSessions returns the number of sessions not yet freed.
func (e *Engine) LiveSessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for _, s := range e.sessions {
		if !s.freed {
			n++
		}
	}
	return n
}

// LastSession returns the most recently allocated session.
func (e *Engine) LastSession() *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.sessions) == 0 {
		return nil
	}
	return e.sessions[len(e.sessions)-1]
}

// Session is an in-memory native.Session. Its link parser stores the whole
// URL path as the application, leaving the split to the caller.
type Session struct {
	engine *Engine

	// mu guards the queues and Sent, which tests touch while a reader runs.
	mu sync.Mutex

	initialized bool
	url         string
	link        native.Link
	writable    bool
	connected   bool
	streaming   bool
	paused      bool
	timeout     int
	videoCodecs int
	fourCCList  string
	socket      int

	inbound *queue.Queue // of native.Packet
	stream  *queue.Queue // of []byte
	current []byte
	body    []byte

	Sent       []native.Packet
	Written    []byte
	ReadCalls  int
	CloseCalls int
	freed      bool
}

// Init implements native.Session.
func (s *Session) Init() {
	s.initialized = true
	s.socket = -1
}

// SetupURL implements native.Session.
func (s *Session) SetupURL(url string) bool {
	s.url = url
	if s.engine.failing(FailSetupURL) {
		s.engine.logf(native.LogError, "Couldn't parse the specified url (%s)!", url)
		return false
	}

	scheme, rest, ok := strings.Cut(url, "://")
	if !ok {
		s.engine.logf(native.LogError, "RTMP URL: No :// in url!")
		return false
	}
	hostport, path, _ := strings.Cut(rest, "/")
	if hostport == "" {
		s.engine.logf(native.LogError, "No hostname in URL!")
		return false
	}

	link := native.Link{Host: hostport, Port: 1935, App: path}
	if host, port, ok := strings.Cut(hostport, ":"); ok {
		link.Host = host
		if n, err := strconv.Atoi(port); err == nil {
			link.Port = n
		}
	}
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		link.PlayPath = path[i+1:]
	}
	link.TcURL = scheme + "://" + hostport + "/" + path
	s.link = link
	return true
}

// Link implements native.Session.
func (s *Session) Link() native.Link { return s.link }

// EnableWrite implements native.Session.
func (s *Session) EnableWrite() { s.writable = true }

// Writable reports whether EnableWrite was called.
func (s *Session) Writable() bool { return s.writable }

// Connect implements native.Session.
func (s *Session) Connect() bool {
	if s.url == "" || s.engine.failing(FailConnect) {
		s.engine.logf(native.LogError, "RTMP_Connect0, failed to connect socket")
		return false
	}
	s.connected = true
	s.engine.logf(native.LogDebug, "RTMP_Connect1, handshaked")
	return true
}

// ConnectStream implements native.Session.
func (s *Session) ConnectStream(seekTime int) bool {
	if !s.connected || s.engine.failing(FailConnectStream) {
		return false
	}
	s.streaming = true
	return true
}

// DeleteStream implements native.Session.
func (s *Session) DeleteStream() { s.streaming = false }

// Streaming reports whether a stream is open.
func (s *Session) Streaming() bool { return s.streaming }

// IsConnected implements native.Session.
func (s *Session) IsConnected() bool { return s.connected }

// Timeout implements native.Session.
func (s *Session) Timeout() int { return s.timeout }

// SetTimeout implements native.Session.
func (s *Session) SetTimeout(timeout int) { s.timeout = timeout }

// VideoCodecs implements native.CodecSession.
func (s *Session) VideoCodecs() int { return s.videoCodecs }

// SetVideoCodecs implements native.CodecSession.
func (s *Session) SetVideoCodecs(mask int) { s.videoCodecs = mask }

// SetFourCCList implements native.FourCCSession.
func (s *Session) SetFourCCList(list string) { s.fourCCList = list }

// FourCCList returns the last fourCC list announced.
func (s *Session) FourCCList() string { return s.fourCCList }

// Pause implements native.Session.
func (s *Session) Pause(pause bool) bool {
	if !s.streaming || s.engine.failing(FailPause) {
		return false
	}
	s.paused = pause
	return true
}

// Paused reports whether the stream is paused.
func (s *Session) Paused() bool { return s.paused }

// Write implements native.Session.
func (s *Session) Write(p []byte) int {
	if !s.connected {
		return -1
	}
	s.Written = append(s.Written, p...)
	return len(p)
}

// Read implements native.Session. It returns 0 once the queued bytes are
// drained.
func (s *Session) Read(p []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ReadCalls++
	if !s.connected {
		return -1
	}

	n := 0
	for n < len(p) {
		if len(s.current) == 0 {
			if s.stream.Length() == 0 {
				break
			}
			s.current = s.stream.Remove().([]byte)
		}
		c := copy(p[n:], s.current)
		s.current = s.current[c:]
		n += c
	}
	return n
}

// QueueBytes makes b available to Read.
func (s *Session) QueueBytes(b []byte) {
	s.mu.Lock()
	s.stream.Add(append([]byte(nil), b...))
	s.mu.Unlock()
}

// SendPacket implements native.Session. The body is copied, as a real
// engine serializes it to the wire before returning.
func (s *Session) SendPacket(pkt *native.Packet, queued bool) bool {
	if !s.connected || s.engine.failing(FailSend) {
		return false
	}
	sent := *pkt
	sent.Body = append([]byte(nil), pkt.Body...)

	s.mu.Lock()
	s.Sent = append(s.Sent, sent)
	s.mu.Unlock()
	return true
}

// SentPackets returns a copy of the packets sent so far.
func (s *Session) SentPackets() []native.Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]native.Packet(nil), s.Sent...)
}

// QueuePacket makes pkt available to ReadPacket.
func (s *Session) QueuePacket(pkt native.Packet) {
	s.mu.Lock()
	s.inbound.Add(pkt)
	s.mu.Unlock()
}

// ReadPacket implements native.Session. The returned body aliases a buffer
// that the next ReadPacket call overwrites.
func (s *Session) ReadPacket(pkt *native.Packet) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ReadCalls++
	if s.engine.failing(FailRead) || s.inbound.Length() == 0 {
		return false
	}

	next := s.inbound.Remove().(native.Packet)
	s.body = append(s.body[:0], next.Body...)
	*pkt = next
	pkt.Body = s.body
	return true
}

// SetSocket implements native.Session.
func (s *Session) SetSocket(fd int) { s.socket = fd }

// Socket returns the installed descriptor, -1 if none.
func (s *Session) Socket() int { return s.socket }

// Serve implements native.Session.
func (s *Session) Serve() bool {
	if s.socket < 0 || s.engine.failing(FailServe) {
		return false
	}
	s.connected = true
	return true
}

// Close implements native.Session.
func (s *Session) Close() {
	s.CloseCalls++
	s.connected = false
	s.streaming = false

	if s.socket < 0 {
		return
	}
	s.engine.mu.Lock()
	f := s.engine.socketClose
	s.engine.mu.Unlock()
	if f != nil {
		f(s.socket)
	}
	s.socket = -1
}

// Free implements native.Session.
func (s *Session) Free() {
	s.engine.mu.Lock()
	s.freed = true
	s.engine.mu.Unlock()
}

// Freed reports whether Free was called.
func (s *Session) Freed() bool {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	return s.freed
}

// URL returns the string last passed to SetupURL.
func (s *Session) URL() string { return s.url }
