package main

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/Zereker/rtmp"
)

var (
	pullPackets int
	pullBytes   int
	pullMetrics bool
)

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Read from a stream and report counts",
	Long: `Pull plays the configured url and reads from it until the limit is hit or
the server stops sending.

With --packets it reads RTMP packets and counts them by type. Otherwise it
reads FLV data with Read until --bytes bytes arrived.`,
	Args: cobra.NoArgs,
	RunE: runPull,
}

func init() {
	pullCmd.Flags().IntVar(&pullPackets, "packets", 0, "number of packets to read")
	pullCmd.Flags().IntVar(&pullBytes, "bytes", 64*1024, "number of FLV bytes to read")
	pullCmd.Flags().BoolVar(&pullMetrics, "metrics", false, "print bridge metrics when done")
	rootCmd.AddCommand(pullCmd)
}

func runPull(cmd *cobra.Command, args []string) error {
	p, err := newProbe(cmd)
	if err != nil {
		return err
	}
	p.cfg.Publish = false

	s, err := p.session()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.ConnectStream(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if pullPackets > 0 {
		counts, err := pullPacketCounts(s, pullPackets)
		types := make([]rtmp.PacketType, 0, len(counts))
		for typ := range counts {
			types = append(types, typ)
		}
		slices.Sort(types)
		for _, typ := range types {
			fmt.Fprintf(out, "type=%#02x packets=%d\n", int(typ), counts[typ])
		}
		if err != nil {
			return err
		}
	} else {
		n, err := pullFLV(s, pullBytes)
		fmt.Fprintf(out, "bytes=%d\n", n)
		if err != nil {
			return err
		}
	}

	if pullMetrics {
		return p.printMetrics(cmd)
	}
	return nil
}

// pullPacketCounts reads up to limit packets. A failed read ends the pull
// without an error once at least one packet arrived.
func pullPacketCounts(s *rtmp.Session, limit int) (map[rtmp.PacketType]int, error) {
	counts := make(map[rtmp.PacketType]int)
	for read := 0; read < limit; read++ {
		pkt, err := s.ReadPacket()
		if err != nil {
			if read > 0 && errors.Is(err, rtmp.ErrReadPacket) {
				return counts, nil
			}
			return counts, err
		}
		counts[pkt.PacketType]++
	}
	return counts, nil
}

// pullFLV reads FLV data until limit bytes arrived or the stream times out.
func pullFLV(s *rtmp.Session, limit int) (int, error) {
	buf := make([]byte, 4096)
	total := 0
	for total < limit {
		n, err := s.Read(buf[:min(len(buf), limit-total)])
		total += n
		if err != nil {
			if errors.Is(err, rtmp.ErrTimeout) {
				return total, nil
			}
			return total, err
		}
	}
	return total, nil
}
