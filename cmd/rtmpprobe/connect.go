package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var connectStream bool

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to the server and print the parsed link",
	Long: `Connect runs the RTMP handshake and connect command against the configured
url, then prints the link parameters the engine parsed from it along with
the session timeout and the video codecs announced.`,
	Args: cobra.NoArgs,
	RunE: runConnect,
}

func init() {
	connectCmd.Flags().BoolVar(&connectStream, "stream", true, "also create the stream")
	rootCmd.AddCommand(connectCmd)
}

func runConnect(cmd *cobra.Command, args []string) error {
	p, err := newProbe(cmd)
	if err != nil {
		return err
	}

	s, err := p.session()
	if err != nil {
		return err
	}
	defer s.Close()

	if connectStream {
		if err := s.ConnectStream(); err != nil {
			return err
		}
	}

	link, err := s.Link()
	if err != nil {
		return err
	}
	timeout, err := s.Timeout()
	if err != nil {
		return err
	}
	codecs, err := s.SupportedVideoCodecs()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, linkString(link))
	fmt.Fprintf(out, "connected=%t timeout=%d\n", s.IsConnected(), timeout)
	fmt.Fprintf(out, "video codecs: %v\n", codecs)
	return nil
}
