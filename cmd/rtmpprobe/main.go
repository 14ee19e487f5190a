package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Zereker/rtmp"
	"github.com/Zereker/rtmp/config"
	"github.com/Zereker/rtmp/librtmp"
	"github.com/Zereker/rtmp/logging"
	"github.com/Zereker/rtmp/native"
)

// newEngine is replaced in tests.
var newEngine = librtmp.New

var (
	configFile string
	urlFlag    string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "rtmpprobe",
	Short:         "Inspect RTMP servers through the native bridge",
	SilenceUsage:  true,
	SilenceErrors: false,
	Long: `rtmpprobe connects to RTMP servers with the librtmp engine and reports
what it sees: the parsed link, packets and bytes pulled from a stream, or the
AMF0 encoding of a single value.

Settings come from a TOML or YAML file given with --config. Flags override
the file.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (.toml, .yaml)")
	rootCmd.PersistentFlags().StringVar(&urlFlag, "url", "", "rtmp url, overrides the config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level, overrides the config file")
}

// loadConfig reads the config file if one was given and applies the
// persistent flag overrides.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return config.Config{}, err
		}
	}
	if urlFlag != "" {
		cfg.URL = urlFlag
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, cfg.Validate()
}

// probe bundles what every subcommand needs.
type probe struct {
	cfg      config.Config
	logger   *logging.Logger
	bridge   *rtmp.Bridge
	registry *prometheus.Registry
}

func newProbe(cmd *cobra.Command) (*probe, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
		App:    "rtmpprobe",
	})
	if err != nil {
		return nil, err
	}

	engine, err := newEngine()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	metrics, err := rtmp.NewMetrics(registry)
	if err != nil {
		return nil, err
	}

	bridge := rtmp.NewBridge(engine,
		rtmp.LoggerOption(logger),
		rtmp.LogSinkOption(logger),
		rtmp.MetricsOption(metrics),
		rtmp.MaxHandlesOption(cfg.MaxHandles),
	)
	return &probe{cfg: cfg, logger: logger, bridge: bridge, registry: registry}, nil
}

// session opens a session on the configured url.
func (p *probe) session() (*rtmp.Session, error) {
	if p.cfg.URL == "" {
		return nil, fmt.Errorf("no url: use --url or set url in the config file")
	}

	s, err := rtmp.NewSession(p.bridge, p.cfg.SessionOptions()...)
	if err != nil {
		return nil, err
	}
	if err := s.Connect(p.cfg.URL); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// printMetrics writes the counters gathered so far.
func (p *probe) printMetrics(cmd *cobra.Command) error {
	families, err := p.registry.Gather()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := ""
			for _, l := range m.GetLabel() {
				labels += fmt.Sprintf(" %s=%s", l.GetName(), l.GetValue())
			}
			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			}
			fmt.Fprintf(out, "%s%s %g\n", mf.GetName(), labels, value)
		}
	}
	return nil
}

func linkString(l native.Link) string {
	return fmt.Sprintf("host=%s port=%d app=%s playpath=%s tcUrl=%s", l.Host, l.Port, l.App, l.PlayPath, l.TcURL)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
