// Package config loads rtmpprobe settings from TOML or YAML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/Zereker/rtmp"
	"github.com/Zereker/rtmp/logging"
)

// Config is the probe configuration.
type Config struct {
	URL         string   `toml:"url" yaml:"url"`
	Listen      string   `toml:"listen" yaml:"listen"`
	Publish     bool     `toml:"publish" yaml:"publish"`
	Timeout     int      `toml:"timeout" yaml:"timeout"`
	MaxHandles  int      `toml:"max_handles" yaml:"max_handles"`
	VideoCodecs []string `toml:"video_codecs" yaml:"video_codecs"`
	Log         Log      `toml:"log" yaml:"log"`
}

// Log configures the logger.
type Log struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Listen:     ":1935",
		Timeout:    30,
		MaxHandles: 64,
		Log: Log{
			Level:  "info",
			Format: logging.FormatConsole,
		},
	}
}

// Load reads path, chosen by extension: .toml, .yaml or .yml. Keys missing
// from the file keep their Default value.
func Load(path string) (Config, error) {
	var (
		cfg Config
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		cfg, err = loadTOML(path)
	case ".yaml", ".yml":
		cfg, err = loadYAML(path)
	default:
		return Config{}, fmt.Errorf("unsupported config file %s", path)
	}
	if err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func loadTOML(path string) (Config, error) {
	cfg := Default()

	var raw Config
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("unknown config key %s", undecoded[0])
	}

	if meta.IsDefined("url") {
		cfg.URL = strings.TrimSpace(raw.URL)
	}
	if meta.IsDefined("listen") {
		cfg.Listen = strings.TrimSpace(raw.Listen)
	}
	if meta.IsDefined("publish") {
		cfg.Publish = raw.Publish
	}
	if meta.IsDefined("timeout") {
		cfg.Timeout = raw.Timeout
	}
	if meta.IsDefined("max_handles") {
		cfg.MaxHandles = raw.MaxHandles
	}
	if meta.IsDefined("video_codecs") {
		cfg.VideoCodecs = normalize(raw.VideoCodecs)
	}
	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "format") {
		cfg.Log.Format = strings.TrimSpace(raw.Log.Format)
	}
	return cfg, nil
}

func loadYAML(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg.URL = strings.TrimSpace(cfg.URL)
	cfg.VideoCodecs = normalize(cfg.VideoCodecs)
	return cfg, nil
}

func normalize(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Validate checks value ranges and codec names.
func (c Config) Validate() error {
	if c.URL != "" && !strings.Contains(c.URL, "://") {
		return fmt.Errorf("url %q has no scheme", c.URL)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %d", c.Timeout)
	}
	if c.MaxHandles < 0 {
		return fmt.Errorf("max_handles must not be negative, got %d", c.MaxHandles)
	}
	for _, codec := range c.VideoCodecs {
		if !rtmp.IsSupportedVideoCodec(codec) && !rtmp.IsSupportedExVideoCodec(codec) {
			return fmt.Errorf("unsupported video codec %s", codec)
		}
	}
	switch strings.ToLower(c.Log.Format) {
	case "", logging.FormatConsole, logging.FormatJSON:
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// Logger builds the configured logger.
func (c Config) Logger() (*logging.Logger, error) {
	return logging.New(logging.Config{
		Level:  c.Log.Level,
		Format: c.Log.Format,
		App:    "rtmpprobe",
	})
}

// SessionOptions returns the session options implied by c.
func (c Config) SessionOptions() []rtmp.SessionOption {
	opts := []rtmp.SessionOption{
		rtmp.EnableWriteOption(c.Publish),
		rtmp.SessionTimeoutOption(c.Timeout),
	}
	if len(c.VideoCodecs) > 0 {
		opts = append(opts, rtmp.SessionVideoCodecsOption(c.VideoCodecs...))
	}
	return opts
}
