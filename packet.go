package rtmp

import (
	"github.com/Zereker/rtmp/native"
)

// HeaderType is the chunk message header format of a packet.
type HeaderType int

// Chunk message header formats.
const (
	HeaderLarge   HeaderType = 0 // 11-byte header
	HeaderMedium  HeaderType = 1 // 7-byte header, same stream id
	HeaderSmall   HeaderType = 2 // 3-byte header, same length and stream id
	HeaderMinimum HeaderType = 3 // no header
)

// PacketType is the RTMP message type id.
type PacketType int

// Message type ids.
const (
	PacketTypeChunkSize      PacketType = 0x01
	PacketTypeAbort          PacketType = 0x02
	PacketTypeBytesRead      PacketType = 0x03
	PacketTypeControl        PacketType = 0x04
	PacketTypeServerBW       PacketType = 0x05
	PacketTypeClientBW       PacketType = 0x06
	PacketTypeAudio          PacketType = 0x08
	PacketTypeVideo          PacketType = 0x09
	PacketTypeFlexStreamSend PacketType = 0x0F
	PacketTypeFlexSharedObj  PacketType = 0x10
	PacketTypeFlexMessage    PacketType = 0x11
	PacketTypeInfo           PacketType = 0x12
	PacketTypeSharedObject   PacketType = 0x13
	PacketTypeCommand        PacketType = 0x14
	PacketTypeFlashVideo     PacketType = 0x16
)

// Chunk stream channels used by the common RTMP peers.
const (
	ChannelProtocol = 0x02
	ChannelCommand  = 0x03
	ChannelAudio    = 0x04
	ChannelVideo    = 0x05
	ChannelSource   = 0x06
)

// Packet is one RTMP message. On send, Body is borrowed for the duration of
// the call. A received Packet owns its Body.
type Packet struct {
	Channel    int
	HeaderType HeaderType
	PacketType PacketType
	Timestamp  uint32
	Body       []byte
}

// NewPacket returns a packet carrying body on channel.
func NewPacket(channel int, header HeaderType, typ PacketType, timestamp uint32, body []byte) *Packet {
	return &Packet{
		Channel:    channel,
		HeaderType: header,
		PacketType: typ,
		Timestamp:  timestamp,
		Body:       body,
	}
}

// Length returns the body size.
func (p *Packet) Length() int { return len(p.Body) }

// toNative builds a transient engine record for p. The record aliases
// p.Body and must be released with releaseNative after a single send.
// It returns nil when the engine cannot allocate a record.
func toNative(e native.Engine, p *Packet) *native.Packet {
	rec := e.AllocPacket()
	if rec == nil {
		return nil
	}

	rec.Channel = p.Channel
	rec.HeaderType = uint8(p.HeaderType)
	rec.PacketType = uint8(p.PacketType)
	// the send path computes these itself
	rec.Timestamp = 0
	rec.InfoField2 = 0
	rec.HasAbsTimestamp = false
	rec.Body = p.Body
	return rec
}

func releaseNative(e native.Engine, rec *native.Packet) {
	rec.Body = nil
	e.FreePacket(rec)
}

// toManaged copies an engine record into a new Packet. The engine reuses the
// record body on its next read, so the bytes are copied out.
func toManaged(rec *native.Packet) *Packet {
	body := make([]byte, len(rec.Body))
	copy(body, rec.Body)

	return &Packet{
		Channel:    rec.Channel,
		HeaderType: HeaderType(rec.HeaderType),
		PacketType: PacketType(rec.PacketType),
		Timestamp:  rec.Timestamp,
		Body:       body,
	}
}
