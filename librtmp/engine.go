//go:build librtmp

package librtmp

/*
#cgo pkg-config: librtmp
#include <stdlib.h>
#include <string.h>
#include <stdio.h>
#include <stdarg.h>
#include <stdint.h>
#include <librtmp/rtmp.h>
#include <librtmp/log.h>

extern void goRTMPLog(int level, char *msg);

static void bridge_log(int level, const char *fmt, va_list args) {
	char line[2048];
	vsnprintf(line, sizeof(line), fmt, args);
	goRTMPLog(level, line);
}

static void bridge_install_log(void) {
	RTMP_LogSetCallback(bridge_log);
}

// bridge_send copies body behind RTMP_MAX_HEADER_SIZE bytes of headroom,
// since RTMP_SendPacket writes the chunk header in front of m_body.
static int bridge_send(RTMP *r, uint8_t header_type, uint8_t packet_type,
		uint8_t abs_timestamp, int channel, uint32_t timestamp, int32_t info,
		const char *body, uint32_t size, int queue) {
	char *buf = malloc(RTMP_MAX_HEADER_SIZE + size);
	if (buf == NULL) {
		return 0;
	}
	if (size > 0) {
		memcpy(buf + RTMP_MAX_HEADER_SIZE, body, size);
	}

	RTMPPacket p;
	memset(&p, 0, sizeof(p));
	p.m_headerType = header_type;
	p.m_packetType = packet_type;
	p.m_hasAbsTimestamp = abs_timestamp;
	p.m_nChannel = channel;
	p.m_nTimeStamp = timestamp;
	p.m_nInfoField2 = info;
	p.m_nBodySize = size;
	p.m_body = buf + RTMP_MAX_HEADER_SIZE;

	int ok = RTMP_SendPacket(r, &p, queue);
	free(buf);
	return ok;
}

static RTMPPacket *bridge_packet_new(void) {
	return calloc(1, sizeof(RTMPPacket));
}

static void bridge_packet_reset(RTMPPacket *p) {
	RTMPPacket_Free(p);
	memset(p, 0, sizeof(*p));
}

static int bridge_packet_ready(RTMPPacket *p) {
	return RTMPPacket_IsReady(p);
}
*/
import "C"

import (
	"unsafe"

	"github.com/Zereker/rtmp/native"
)

func init() {
	C.bridge_install_log()
	C.RTMP_LogSetLevel(C.RTMP_LOGINFO)
}

// SetLogLevel sets the most verbose level librtmp emits. It is process wide.
func SetLogLevel(level native.LogLevel) {
	C.RTMP_LogSetLevel(C.RTMP_LogLevel(level))
}

type engine struct{}

// New returns an Engine backed by librtmp.
func New() (native.Engine, error) {
	return engine{}, nil
}

func (engine) Alloc() native.Session {
	r := C.RTMP_Alloc()
	if r == nil {
		return nil
	}
	return &session{r: r}
}

// AllocPacket returns a Go side record; the C packet is built in SendPacket.
func (engine) AllocPacket() *native.Packet { return &native.Packet{} }

func (engine) FreePacket(*native.Packet) {}

func (engine) SetLogFunc(f native.LogFunc) { setLogFunc(f) }

type session struct {
	r    *C.RTMP
	urls []*C.char
	in   *C.RTMPPacket
}

func (s *session) Init() { C.RTMP_Init(s.r) }

// SetupURL hands librtmp a C copy of url. librtmp keeps pointers into it, so
// every copy lives until Free.
func (s *session) SetupURL(url string) bool {
	curl := C.CString(url)
	s.urls = append(s.urls, curl)
	return C.RTMP_SetupURL(s.r, curl) != 0
}

func avString(v C.AVal) string {
	if v.av_val == nil || v.av_len <= 0 {
		return ""
	}
	return C.GoStringN(v.av_val, v.av_len)
}

func (s *session) Link() native.Link {
	l := &s.r.Link
	return native.Link{
		Protocol: int(l.protocol),
		Host:     avString(l.hostname),
		Port:     int(l.port),
		App:      avString(l.app),
		PlayPath: avString(l.playpath),
		TcURL:    avString(l.tcUrl),
	}
}

func (s *session) EnableWrite() { C.RTMP_EnableWrite(s.r) }

func (s *session) Connect() bool { return C.RTMP_Connect(s.r, nil) != 0 }

func (s *session) ConnectStream(seekTime int) bool {
	return C.RTMP_ConnectStream(s.r, C.int(seekTime)) != 0
}

func (s *session) DeleteStream() { C.RTMP_DeleteStream(s.r) }

func (s *session) IsConnected() bool { return C.RTMP_IsConnected(s.r) != 0 }

func (s *session) Timeout() int { return int(s.r.Link.timeout) }

func (s *session) SetTimeout(timeout int) { s.r.Link.timeout = C.int(timeout) }

func (s *session) VideoCodecs() int { return int(s.r.m_fVideoCodecs) }

func (s *session) SetVideoCodecs(mask int) { s.r.m_fVideoCodecs = C.double(mask) }

func (s *session) Pause(pause bool) bool {
	doPause := C.int(0)
	if pause {
		doPause = 1
	}
	return C.RTMP_Pause(s.r, doPause) != 0
}

func bytesPtr(p []byte) *C.char {
	if len(p) == 0 {
		return nil
	}
	return (*C.char)(unsafe.Pointer(unsafe.SliceData(p)))
}

func (s *session) Write(p []byte) int {
	return int(C.RTMP_Write(s.r, bytesPtr(p), C.int(len(p))))
}

func (s *session) Read(p []byte) int {
	if len(p) == 0 {
		return 0
	}
	return int(C.RTMP_Read(s.r, bytesPtr(p), C.int(len(p))))
}

func (s *session) SendPacket(pkt *native.Packet, queued bool) bool {
	abs := C.uint8_t(0)
	if pkt.HasAbsTimestamp {
		abs = 1
	}
	queue := C.int(0)
	if queued {
		queue = 1
	}

	ok := C.bridge_send(s.r,
		C.uint8_t(pkt.HeaderType), C.uint8_t(pkt.PacketType), abs,
		C.int(pkt.Channel), C.uint32_t(pkt.Timestamp), C.int32_t(pkt.InfoField2),
		bytesPtr(pkt.Body), C.uint32_t(len(pkt.Body)), queue)
	return ok != 0
}

// ReadPacket reads one chunk. A packet whose body is still incomplete is
// reported with an empty body. The body aliases C memory released on the
// next ReadPacket or on Free.
func (s *session) ReadPacket(pkt *native.Packet) bool {
	if s.in == nil {
		if s.in = C.bridge_packet_new(); s.in == nil {
			return false
		}
	} else {
		C.bridge_packet_reset(s.in)
	}

	if C.RTMP_ReadPacket(s.r, s.in) == 0 {
		return false
	}

	in := s.in
	*pkt = native.Packet{
		HeaderType:      uint8(in.m_headerType),
		PacketType:      uint8(in.m_packetType),
		HasAbsTimestamp: in.m_hasAbsTimestamp != 0,
		Channel:         int(in.m_nChannel),
		Timestamp:       uint32(in.m_nTimeStamp),
		InfoField2:      int32(in.m_nInfoField2),
	}
	if C.bridge_packet_ready(in) != 0 && in.m_body != nil && in.m_nBodySize > 0 {
		pkt.Body = unsafe.Slice((*byte)(unsafe.Pointer(in.m_body)), int(in.m_nBodySize))
	}
	return true
}

func (s *session) SetSocket(fd int) { s.r.m_sb.sb_socket = C.int(fd) }

func (s *session) Serve() bool { return C.RTMP_Serve(s.r) != 0 }

func (s *session) Close() { C.RTMP_Close(s.r) }

func (s *session) Free() {
	if s.in != nil {
		C.bridge_packet_reset(s.in)
		C.free(unsafe.Pointer(s.in))
		s.in = nil
	}
	C.RTMP_Free(s.r)
	s.r = nil
	for _, u := range s.urls {
		C.free(unsafe.Pointer(u))
	}
	s.urls = nil
}
