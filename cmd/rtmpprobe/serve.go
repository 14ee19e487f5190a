package main

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Zereker/rtmp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept RTMP clients and log what they send",
	Long: `Serve listens on the configured address, runs the server handshake for
every client and logs each packet it receives until the client leaves.
Stop it with SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// packetLogger logs every packet of a session and counts them.
type packetLogger struct {
	p     *probe
	total atomic.Int64
}

func (h *packetLogger) Handle(ctx context.Context, s *rtmp.Session) {
	conn, err := rtmp.NewConn(s, rtmp.OnPacketOption(func(pkt *rtmp.Packet) error {
		h.total.Add(1)
		h.p.logger.Debug("packet", "session", s.ID(), "type", int(pkt.PacketType),
			"channel", pkt.Channel, "timestamp", pkt.Timestamp, "size", pkt.Length())
		return nil
	}))
	if err != nil {
		h.p.logger.Error("failed to create conn", "session", s.ID(), "error", err)
		return
	}
	_ = conn.Run(ctx)
}

func runServe(cmd *cobra.Command, args []string) error {
	p, err := newProbe(cmd)
	if err != nil {
		return err
	}

	addr, err := net.ResolveTCPAddr("tcp", p.cfg.Listen)
	if err != nil {
		return err
	}

	server, err := rtmp.NewServer(addr, p.bridge,
		rtmp.ServerLoggerOption(p.logger),
		rtmp.ServerSessionOption(rtmp.SessionTimeoutOption(p.cfg.Timeout)))
	if err != nil {
		return err
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := &packetLogger{p: p}
	err = server.Serve(ctx, h)
	p.logger.Info("server done", "packets", h.total.Load())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
