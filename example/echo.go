package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Zereker/rtmp"
	"github.com/Zereker/rtmp/amf"
	"github.com/Zereker/rtmp/librtmp"
	"github.com/Zereker/rtmp/logging"
)

// streamID is the only message stream this server hands out.
const streamID = 1.0

func status(level, code, description string) *amf.ObjectValue {
	info := &amf.ObjectValue{}
	info.AddNamed("level", level)
	info.AddNamed("code", code)
	info.AddNamed("description", description)
	return info
}

// Server accepts publishers and players, answers their commands and counts
// the media they send.
type Server struct {
	logger *logging.Logger

	sync.RWMutex
	connections map[string]*rtmp.Conn
}

func newHandler(logger *logging.Logger) *Server {
	return &Server{logger: logger, connections: make(map[string]*rtmp.Conn)}
}

func (s *Server) Handle(ctx context.Context, session *rtmp.Session) {
	id := session.ID()

	var conn *rtmp.Conn
	var media, bytes int

	errorOption := rtmp.OnErrorOption(func(err error) rtmp.ErrorAction {
		s.logger.Error("connection error", "session", id, "error", err)
		return rtmp.Disconnect
	})

	onPacketOption := rtmp.OnPacketOption(func(p *rtmp.Packet) error {
		switch p.PacketType {
		case rtmp.PacketTypeAudio, rtmp.PacketTypeVideo:
			media++
			bytes += p.Length()
			return nil
		case rtmp.PacketTypeCommand, rtmp.PacketTypeFlexMessage:
		default:
			return nil
		}

		// chunks of a packet that is not complete yet carry no body
		if p.Length() == 0 {
			return nil
		}

		cmd, err := rtmp.DecodeCommand(p)
		if err != nil {
			s.logger.Warn("bad command", "session", id, "error", err)
			return nil
		}
		return s.answer(conn, cmd)
	})

	conn, err := rtmp.NewConn(session, onPacketOption, errorOption)
	if err != nil {
		s.logger.Error("failed to create conn", "session", id, "error", err)
		session.Close()
		return
	}

	s.addConn(id, conn)
	defer s.deleteConn(id)

	if err := conn.Run(ctx); err != nil {
		s.logger.Debug("conn stopped", "session", id, "error", err)
	}
	s.logger.Info("session done", "session", id, "media_packets", media, "media_bytes", bytes)
}

func (s *Server) answer(conn *rtmp.Conn, cmd *rtmp.Command) error {
	s.logger.Debug("command", "name", cmd.Name, "transaction", cmd.TransactionID)

	switch cmd.Name {
	case "connect":
		props := &amf.ObjectValue{}
		props.AddNamed("fmsVer", "FMS/3,5,7,7009")
		props.AddNamed("capabilities", 31.0)
		return conn.WriteCommand(&rtmp.Command{
			Name:          "_result",
			TransactionID: cmd.TransactionID,
			Object:        props,
			Args:          []any{status("status", "NetConnection.Connect.Success", "Connection succeeded.")},
		})
	case "createStream":
		return conn.WriteCommand(&rtmp.Command{
			Name:          "_result",
			TransactionID: cmd.TransactionID,
			Args:          []any{streamID},
		})
	case "publish":
		return conn.WriteCommand(&rtmp.Command{
			Name: "onStatus",
			Args: []any{status("status", "NetStream.Publish.Start", "Start publishing.")},
		})
	case "play":
		return conn.WriteCommand(&rtmp.Command{
			Name: "onStatus",
			Args: []any{status("status", "NetStream.Play.Start", "Start playing.")},
		})
	}
	return nil
}

func (s *Server) addConn(id string, conn *rtmp.Conn) {
	s.Lock()
	defer s.Unlock()

	s.logger.Info("add new conn", "session", id)
	s.connections[id] = conn
}

func (s *Server) deleteConn(id string) {
	s.Lock()
	defer s.Unlock()

	delete(s.connections, id)
}

func main() {
	logger, err := logging.New(logging.Config{Level: "debug", App: "rtmp-echo"})
	if err != nil {
		panic(err)
	}

	addr, err := net.ResolveTCPAddr("tcp", "127.0.0.1:1935")
	if err != nil {
		panic(err)
	}

	engine, err := librtmp.New()
	if err != nil {
		logger.Error("librtmp unavailable", "error", err)
		os.Exit(1)
	}
	bridge := rtmp.NewBridge(engine, rtmp.LoggerOption(logger), rtmp.LogSinkOption(logger))

	server, err := rtmp.NewServer(addr, bridge, rtmp.ServerLoggerOption(logger))
	if err != nil {
		logger.Error("failed to create server", "error", err)
		return
	}

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down server...")
		cancel()
	}()

	logger.Info("server start", "addr", addr.String())
	if err := server.Serve(ctx, newHandler(logger)); err != nil && err != context.Canceled {
		logger.Error("server error", "error", err)
	}
}
