// Package native declares the contract an RTMP protocol engine must honor to
// be driven by the rtmp package. The engine owns the wire protocol: handshake,
// chunk streams, AMF command dispatch, URL parsing. Implementations live in
// librtmp (cgo) and enginetest (in-memory).
package native

// LogLevel is the engine's ordered log severity.
type LogLevel int

// Engine log levels, most severe first.
const (
	LogCritical LogLevel = iota
	LogError
	LogWarning
	LogInfo
	LogDebug
	LogDebug2
	LogAll
)

// LogFunc receives engine log lines. format and args are passed through
// untouched so the receiver decides how to render them.
type LogFunc func(level LogLevel, format string, args ...any)

// Engine allocates protocol handles and the transient packet records used
// on the send path.
type Engine interface {
	// Alloc returns a new protocol handle, or nil when it cannot allocate.
	// The handle must be initialized with Init before use.
	Alloc() Session
	// AllocPacket returns a zeroed packet record, or nil when it cannot allocate.
	AllocPacket() *Packet
	// FreePacket releases a record obtained from AllocPacket.
	FreePacket(*Packet)
	// SetLogFunc routes engine log lines to f. A nil f silences the engine.
	SetLogFunc(f LogFunc)
}

// Session is one protocol handle. Boolean results report success.
// A Session is not safe for concurrent use.
type Session interface {
	Init()
	// SetupURL parses url into the handle's link parameters. The engine may
	// keep references into url for the lifetime of the handle.
	SetupURL(url string) bool
	// Link reports the link parameters filled by SetupURL.
	Link() Link
	EnableWrite()
	Connect() bool
	ConnectStream(seekTime int) bool
	DeleteStream()
	IsConnected() bool
	Timeout() int
	SetTimeout(timeout int)
	Pause(pause bool) bool
	// Write sends FLV data and returns the number of bytes consumed,
	// 0 on timeout or a negative value on error.
	Write(p []byte) int
	// Read fills p with FLV data and returns the number of bytes read,
	// 0 on timeout or a negative value on error.
	Read(p []byte) int
	SendPacket(pkt *Packet, queue bool) bool
	// ReadPacket fills pkt with one packet record read from the wire.
	// pkt.Body stays valid only until the next call on this Session.
	ReadPacket(pkt *Packet) bool
	// SetSocket installs an already connected socket descriptor.
	SetSocket(fd int)
	// Serve runs the server side handshake on the installed socket.
	Serve() bool
	Close()
	Free()
}

// CodecSession is implemented by engines that announce the standard
// videoCodecs capability in the connect command.
type CodecSession interface {
	VideoCodecs() int
	SetVideoCodecs(mask int)
}

// FourCCSession is implemented by engines that speak enhanced RTMP and
// announce a fourCcList in the connect command. An empty list clears it.
type FourCCSession interface {
	SetFourCCList(list string)
}

// Packet is the engine-side packet record.
type Packet struct {
	HeaderType      uint8
	PacketType      uint8
	HasAbsTimestamp bool
	Channel         int
	Timestamp       uint32
	InfoField2      int32
	Body            []byte
}

// Link holds the connection parameters parsed from a URL.
type Link struct {
	Protocol int
	Host     string
	Port     int
	App      string
	PlayPath string
	TcURL    string
}
