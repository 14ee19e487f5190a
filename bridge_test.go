package rtmp

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Zereker/rtmp/enginetest"
	"github.com/Zereker/rtmp/native"
)

func newTestBridge(t *testing.T, opts ...Option) (*Bridge, *enginetest.Engine) {
	t.Helper()
	engine := enginetest.New()
	opts = append([]Option{LoggerOption(NopLogger{})}, opts...)
	return NewBridge(engine, opts...), engine
}

// connected allocates a handle and connects it to a test url.
func connected(t *testing.T, b *Bridge, engine *enginetest.Engine) (Handle, *enginetest.Session) {
	t.Helper()
	h := b.Alloc()
	if !h.Valid() {
		t.Fatal("Alloc returned an invalid handle")
	}
	if status := b.SetupURL(h, "rtmp://localhost/live/stream"); status != StatusOK {
		t.Fatalf("SetupURL = %d, want %d", status, StatusOK)
	}
	if status := b.Connect(h); status != StatusOK {
		t.Fatalf("Connect = %d, want %d", status, StatusOK)
	}
	return h, engine.LastSession()
}

func TestBridge_AllocClose(t *testing.T) {
	b, engine := newTestBridge(t)

	h := b.Alloc()
	if !h.Valid() {
		t.Fatal("Alloc returned an invalid handle")
	}
	if b.Live() != 1 {
		t.Errorf("Live = %d, want 1", b.Live())
	}

	ns := engine.LastSession()
	if ns.Socket() != -1 {
		t.Error("native handle was not initialized")
	}

	b.Close(h)
	b.Close(h)

	if b.Live() != 0 {
		t.Errorf("Live = %d, want 0", b.Live())
	}
	if !ns.Freed() {
		t.Error("native handle not freed")
	}
	if ns.CloseCalls != 1 {
		t.Errorf("native Close called %d times, want 1", ns.CloseCalls)
	}
}

func TestBridge_HandlesNotReused(t *testing.T) {
	b, _ := newTestBridge(t)

	first := b.Alloc()
	b.Close(first)
	second := b.Alloc()

	if first == second {
		t.Fatalf("handle %v reused", first)
	}
	if status := b.Connect(first); status != StatusHandleUnavailable {
		t.Errorf("Connect(stale) = %d, want %d", status, StatusHandleUnavailable)
	}
}

func TestBridge_ClosedHandle(t *testing.T) {
	b, engine := newTestBridge(t)

	h, ns := connected(t, b, engine)
	b.Close(h)

	statuses := map[string]int{
		"SetupURL":      b.SetupURL(h, "rtmp://localhost/live"),
		"Connect":       b.Connect(h),
		"ConnectStream": b.ConnectStream(h),
		"DeleteStream":  b.DeleteStream(h),
		"EnableWrite":   b.EnableWrite(h),
		"Timeout":       b.Timeout(h),
		"SetTimeout":    b.SetTimeout(h, 5),
		"VideoCodecs":   b.VideoCodecs(h),
		"SetVideoCodec": b.SetVideoCodec(h, 0x80),
		"SetExVideo":    b.SetExVideoCodec(h, nil),
		"Pause":         b.Pause(h),
		"Resume":        b.Resume(h),
		"Write":         b.Write(h, make([]byte, 4), 0, 4),
		"Read":          b.Read(h, make([]byte, 4), 0, 4),
		"WritePacket":   b.WritePacket(h, NewPacket(ChannelCommand, HeaderLarge, PacketTypeCommand, 0, []byte{1})),
		"Serve":         b.Serve(h, 3),
	}
	for name, status := range statuses {
		if status != StatusHandleUnavailable {
			t.Errorf("%s = %d, want %d", name, status, StatusHandleUnavailable)
		}
	}

	if p := b.ReadPacket(h); p != nil {
		t.Errorf("ReadPacket = %v, want nil", p)
	}
	if b.IsConnected(h) {
		t.Error("IsConnected = true on a closed handle")
	}
	if _, ok := b.ExVideoCodecs(h); ok {
		t.Error("ExVideoCodecs reported a value on a closed handle")
	}
	if _, ok := b.Link(h); ok {
		t.Error("Link reported a value on a closed handle")
	}
	if ns.ReadCalls != 0 {
		t.Errorf("engine read %d times after close", ns.ReadCalls)
	}
}

func TestBridge_UnknownHandle(t *testing.T) {
	b, _ := newTestBridge(t)

	for _, h := range []Handle{InvalidHandle, -1, 42} {
		if status := b.Connect(h); status != StatusHandleUnavailable {
			t.Errorf("Connect(%v) = %d, want %d", h, status, StatusHandleUnavailable)
		}
		b.Close(h)
	}
}

func TestBridge_AllocFailure(t *testing.T) {
	b, engine := newTestBridge(t)
	engine.Fail(enginetest.FailAlloc)

	if h := b.Alloc(); h != InvalidHandle {
		t.Errorf("Alloc = %v, want InvalidHandle", h)
	}
	if b.Live() != 0 {
		t.Errorf("Live = %d, want 0", b.Live())
	}
}

func TestBridge_AllocRegistryFull(t *testing.T) {
	b, engine := newTestBridge(t, MaxHandlesOption(1))

	if h := b.Alloc(); !h.Valid() {
		t.Fatal("first Alloc failed")
	}
	if h := b.Alloc(); h != InvalidHandle {
		t.Errorf("second Alloc = %v, want InvalidHandle", h)
	}
	if n := engine.LiveSessions(); n != 1 {
		t.Errorf("engine holds %d sessions, want 1", n)
	}
}

func TestBridge_SetupURL(t *testing.T) {
	b, engine := newTestBridge(t)
	h := b.Alloc()

	if status := b.SetupURL(h, "rtmp://host/app/stream"); status != StatusOK {
		t.Fatalf("SetupURL = %d, want %d", status, StatusOK)
	}

	link, ok := b.Link(h)
	if !ok {
		t.Fatal("Link not available")
	}
	if link.App != "app" {
		t.Errorf("App = %q, want %q", link.App, "app")
	}
	if link.Host != "host" {
		t.Errorf("Host = %q, want %q", link.Host, "host")
	}
	if got := engine.LastSession().URL(); got != "rtmp://host/app/stream" {
		t.Errorf("engine url = %q", got)
	}
}

func TestBridge_SetupURLFailure(t *testing.T) {
	logger := &mockLogger{}
	b, engine := newTestBridge(t, LoggerOption(logger))
	h := b.Alloc()

	engine.Fail(enginetest.FailSetupURL)
	if status := b.SetupURL(h, "rtmp://host/app"); status != StatusFailure {
		t.Fatalf("SetupURL = %d, want %d", status, StatusFailure)
	}
	if logger.count("error") == 0 {
		t.Error("parse failure not logged")
	}

	// the url copy stays with the context until close
	engine.Heal(enginetest.FailSetupURL)
	if status := b.Connect(h); status != StatusOK {
		t.Errorf("Connect = %d, want %d", status, StatusOK)
	}
}

func TestAppBoundary(t *testing.T) {
	cases := []struct {
		url  string
		app  string
		okay bool
	}{
		{"rtmp://host/app", "app", true},
		{"rtmp://host/app/stream", "app", true},
		{"rtmp://host:1935/app/inst/stream", "app/inst", true},
		{"rtmp://host/app/inst/mp4:folder/file", "app/inst/mp4:folder", true},
		{"rtmp://host/ondemand/mp4:file", "ondemand", true},
		{"rtmp://host/app/inst?slist=stream", "app/inst", true},
		{"rtmp://host/app/stream live=1", "app", true},
		{"rtmp://host", "", false},
		{"rtmp://host/", "", false},
		{"host/app", "", false},
	}

	for _, c := range cases {
		app, ok := appBoundary(c.url)
		if ok != c.okay || app != c.app {
			t.Errorf("appBoundary(%q) = %q, %v; want %q, %v", c.url, app, ok, c.app, c.okay)
		}
	}
}

func TestBridge_ReadOutOfBounds(t *testing.T) {
	b, engine := newTestBridge(t)
	h, ns := connected(t, b, engine)

	buf := make([]byte, 10)
	if n := b.Read(h, buf, 8, 5); n != StatusOutOfBounds {
		t.Errorf("Read = %d, want %d", n, StatusOutOfBounds)
	}
	if n := b.Read(h, buf, -1, 2); n != StatusOutOfBounds {
		t.Errorf("Read(negative offset) = %d, want %d", n, StatusOutOfBounds)
	}
	if ns.ReadCalls != 0 {
		t.Errorf("engine read %d times, want 0", ns.ReadCalls)
	}

	if n := b.Write(h, buf, 8, 5); n != StatusOutOfBounds {
		t.Errorf("Write = %d, want %d", n, StatusOutOfBounds)
	}
	if len(ns.Written) != 0 {
		t.Errorf("engine received %d bytes, want 0", len(ns.Written))
	}
}

func TestBridge_ReadWrite(t *testing.T) {
	b, engine := newTestBridge(t)
	h, ns := connected(t, b, engine)

	ns.QueueBytes([]byte("FLV\x01"))

	buf := make([]byte, 8)
	if n := b.Read(h, buf, 2, 4); n != 4 {
		t.Fatalf("Read = %d, want 4", n)
	}
	if !bytes.Equal(buf, []byte("\x00\x00FLV\x01\x00\x00")) {
		t.Errorf("buf = %q", buf)
	}
	if n := b.Read(h, buf, 0, 8); n != 0 {
		t.Errorf("Read on a drained stream = %d, want 0", n)
	}

	if n := b.Write(h, []byte("xxFLVyy"), 2, 3); n != 3 {
		t.Fatalf("Write = %d, want 3", n)
	}
	if string(ns.Written) != "FLV" {
		t.Errorf("written = %q, want FLV", ns.Written)
	}
}

// countEngine hands out sessions whose Read and Write always return n.
type countEngine struct {
	*enginetest.Engine
	n int
}

func (e countEngine) Alloc() native.Session {
	ns := e.Engine.Alloc()
	if ns == nil {
		return nil
	}
	return countSession{Session: ns, n: e.n}
}

type countSession struct {
	native.Session
	n int
}

func (s countSession) Read([]byte) int  { return s.n }
func (s countSession) Write([]byte) int { return s.n }

func TestBridge_ReadWriteEngineErrors(t *testing.T) {
	for _, n := range []int{-1, -2, -3, -4, -100} {
		b := NewBridge(countEngine{Engine: enginetest.New(), n: n}, LoggerOption(NopLogger{}))
		h := b.Alloc()
		buf := make([]byte, 4)

		if got := b.Read(h, buf, 0, len(buf)); got != StatusFailure {
			t.Errorf("engine read %d: Read = %d, want %d", n, got, StatusFailure)
		}
		if got := b.Write(h, buf, 0, len(buf)); got != StatusFailure {
			t.Errorf("engine write %d: Write = %d, want %d", n, got, StatusFailure)
		}

		s, err := NewSession(b)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := s.Read(buf); !errors.Is(err, ErrConnection) || errors.Is(err, ErrHandleUnavailable) {
			t.Errorf("engine read %d: Session.Read error = %v, want ErrConnection", n, err)
		}
		s.Close()
		b.Close(h)
	}
}

func TestBridge_WritePacket(t *testing.T) {
	b, engine := newTestBridge(t)
	h, ns := connected(t, b, engine)

	body := []byte{0x02, 0x00, 0x01, 'x'}
	p := NewPacket(ChannelCommand, HeaderMedium, PacketTypeCommand, 1234, body)
	if status := b.WritePacket(h, p); status != StatusOK {
		t.Fatalf("WritePacket = %d, want %d", status, StatusOK)
	}

	if len(ns.Sent) != 1 {
		t.Fatalf("sent %d packets, want 1", len(ns.Sent))
	}
	sent := ns.Sent[0]
	if sent.Channel != ChannelCommand || sent.HeaderType != uint8(HeaderMedium) || sent.PacketType != uint8(PacketTypeCommand) {
		t.Errorf("sent header = %+v", sent)
	}
	if sent.Timestamp != 0 || sent.InfoField2 != 0 || sent.HasAbsTimestamp {
		t.Errorf("send path fields not zeroed: %+v", sent)
	}
	if !bytes.Equal(sent.Body, body) {
		t.Errorf("sent body = %v, want %v", sent.Body, body)
	}
	if p.Timestamp != 1234 {
		t.Error("WritePacket modified the caller's packet")
	}
}

func TestBridge_WritePacketReleasesRecords(t *testing.T) {
	b, engine := newTestBridge(t)
	h, _ := connected(t, b, engine)

	p := NewPacket(ChannelVideo, HeaderLarge, PacketTypeVideo, 0, make([]byte, 64))
	for i := 0; i < 10000; i++ {
		want := StatusOK
		if i%2 == 1 {
			engine.Fail(enginetest.FailSend)
			want = StatusFailure
		}
		if status := b.WritePacket(h, p); status != want {
			t.Fatalf("cycle %d: WritePacket = %d, want %d", i, status, want)
		}
		engine.Heal(enginetest.FailSend)
	}

	allocs, frees, doubleFrees := engine.PacketStats()
	if allocs != 10000 || frees != 10000 {
		t.Errorf("records allocated %d, freed %d, want 10000 each", allocs, frees)
	}
	if doubleFrees != 0 {
		t.Errorf("%d double frees", doubleFrees)
	}
	if n := engine.OutstandingPackets(); n != 0 {
		t.Errorf("%d records outstanding", n)
	}
}

func TestBridge_WritePacketFailures(t *testing.T) {
	b, engine := newTestBridge(t)
	h, _ := connected(t, b, engine)

	if status := b.WritePacket(h, nil); status != StatusFailure {
		t.Errorf("WritePacket(nil) = %d, want %d", status, StatusFailure)
	}

	engine.Fail(enginetest.FailPacketAlloc)
	p := NewPacket(ChannelAudio, HeaderLarge, PacketTypeAudio, 0, []byte{1})
	if status := b.WritePacket(h, p); status != StatusNoMemory {
		t.Errorf("WritePacket = %d, want %d", status, StatusNoMemory)
	}
}

func TestBridge_ReadPacket(t *testing.T) {
	b, engine := newTestBridge(t)
	h, ns := connected(t, b, engine)

	ns.QueuePacket(native.Packet{
		HeaderType: uint8(HeaderLarge),
		PacketType: uint8(PacketTypeVideo),
		Channel:    ChannelVideo,
		Timestamp:  40,
		Body:       []byte{0x17, 0x01},
	})
	ns.QueuePacket(native.Packet{PacketType: uint8(PacketTypeAudio), Channel: ChannelAudio, Body: []byte{0xaf, 0x01}})

	first := b.ReadPacket(h)
	if first == nil {
		t.Fatal("ReadPacket returned nil")
	}
	second := b.ReadPacket(h)
	if second == nil {
		t.Fatal("second ReadPacket returned nil")
	}

	if first.PacketType != PacketTypeVideo || first.Channel != ChannelVideo || first.Timestamp != 40 {
		t.Errorf("first = %+v", first)
	}
	// the engine reused its buffer, the managed copy must not change
	if !bytes.Equal(first.Body, []byte{0x17, 0x01}) {
		t.Errorf("first body = %v", first.Body)
	}
	if first.Length() != 2 || second.PacketType != PacketTypeAudio {
		t.Errorf("second = %+v", second)
	}

	if p := b.ReadPacket(h); p != nil {
		t.Errorf("ReadPacket on an empty queue = %+v, want nil", p)
	}
}

func TestBridge_ConnectStreamPauseResume(t *testing.T) {
	b, engine := newTestBridge(t)
	h, ns := connected(t, b, engine)

	if status := b.Pause(h); status != StatusFailure {
		t.Errorf("Pause before ConnectStream = %d, want %d", status, StatusFailure)
	}
	if status := b.ConnectStream(h); status != StatusOK {
		t.Fatalf("ConnectStream = %d, want %d", status, StatusOK)
	}
	if status := b.Pause(h); status != StatusOK || !ns.Paused() {
		t.Errorf("Pause = %d, paused %v", status, ns.Paused())
	}
	if status := b.Resume(h); status != StatusOK || ns.Paused() {
		t.Errorf("Resume = %d, paused %v", status, ns.Paused())
	}
	if status := b.DeleteStream(h); status != StatusOK || ns.Streaming() {
		t.Errorf("DeleteStream = %d, streaming %v", status, ns.Streaming())
	}
}

func TestBridge_ConnectFailure(t *testing.T) {
	b, engine := newTestBridge(t)
	h := b.Alloc()
	b.SetupURL(h, "rtmp://localhost/live")

	engine.Fail(enginetest.FailConnect)
	if status := b.Connect(h); status != StatusFailure {
		t.Errorf("Connect = %d, want %d", status, StatusFailure)
	}
	if b.IsConnected(h) {
		t.Error("IsConnected = true after a failed connect")
	}
}

func TestBridge_EnableWrite(t *testing.T) {
	b, engine := newTestBridge(t)
	h := b.Alloc()

	if status := b.EnableWrite(h); status != StatusOK {
		t.Fatalf("EnableWrite = %d", status)
	}
	if !engine.LastSession().Writable() {
		t.Error("engine not switched to publishing")
	}
}

func TestBridge_Timeout(t *testing.T) {
	b, _ := newTestBridge(t)
	h := b.Alloc()

	if got := b.Timeout(h); got != enginetest.DefaultTimeout {
		t.Errorf("Timeout = %d, want %d", got, enginetest.DefaultTimeout)
	}
	if status := b.SetTimeout(h, 5); status != StatusOK {
		t.Fatalf("SetTimeout = %d", status)
	}
	if got := b.Timeout(h); got != 5 {
		t.Errorf("Timeout = %d, want 5", got)
	}
}

func TestBridge_VideoCodecs(t *testing.T) {
	b, engine := newTestBridge(t)
	h := b.Alloc()

	if got := b.VideoCodecs(h); got != enginetest.DefaultVideoCodecs {
		t.Errorf("VideoCodecs = %d, want %d", got, enginetest.DefaultVideoCodecs)
	}

	b.SetVideoCodec(h, int(SupportVidH264))
	if got := b.VideoCodecs(h); got != int(SupportVidH264) {
		t.Errorf("VideoCodecs = %d, want %d", got, SupportVidH264)
	}
	if got := engine.LastSession().VideoCodecs(); got != int(SupportVidH264) {
		t.Errorf("engine videoCodecs = %d, want %d", got, SupportVidH264)
	}
}

func TestBridge_ExVideoCodec(t *testing.T) {
	b, engine := newTestBridge(t)
	h := b.Alloc()
	ns := engine.LastSession()

	if _, ok := b.ExVideoCodecs(h); ok {
		t.Error("ExVideoCodecs set on a fresh handle")
	}

	list := "hvc1,av01"
	b.SetExVideoCodec(h, &list)
	list = "vp09"

	got, ok := b.ExVideoCodecs(h)
	if !ok || got != "hvc1,av01" {
		t.Errorf("ExVideoCodecs = %q, %v; want hvc1,av01", got, ok)
	}
	if ns.FourCCList() != "hvc1,av01" {
		t.Errorf("engine fourCC list = %q", ns.FourCCList())
	}

	b.SetExVideoCodec(h, nil)
	if _, ok := b.ExVideoCodecs(h); ok {
		t.Error("ExVideoCodecs not cleared")
	}
	if ns.FourCCList() != "" {
		t.Errorf("engine fourCC list = %q, want empty", ns.FourCCList())
	}
}

func TestBridge_Serve(t *testing.T) {
	b, engine := newTestBridge(t)
	h := b.Alloc()

	if status := b.Serve(h, 7); status != StatusOK {
		t.Fatalf("Serve = %d, want %d", status, StatusOK)
	}
	if fd := engine.LastSession().Socket(); fd != 7 {
		t.Errorf("engine socket = %d, want 7", fd)
	}
	if !b.IsConnected(h) {
		t.Error("IsConnected = false after Serve")
	}

	h2 := b.Alloc()
	engine.Fail(enginetest.FailServe)
	if status := b.Serve(h2, 8); status != StatusFailure {
		t.Errorf("Serve = %d, want %d", status, StatusFailure)
	}
}

func TestBridge_EngineLogsReachSink(t *testing.T) {
	sink := &recordingSink{}
	_, engine := newTestBridge(t, LogSinkOption(sink))

	engine.Log(native.LogWarning, "slow peer %s", "a")
	engine.Log(native.LogCritical, "boom")

	lines := sink.snapshot()
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0].sev != SeverityWarn || lines[0].text != "slow peer a" {
		t.Errorf("line 0 = %+v", lines[0])
	}
	if lines[1].sev != SeverityFatal {
		t.Errorf("line 1 severity = %v, want fatal", lines[1].sev)
	}
}
