package rtmp

// defaultMaxHandles bounds the registry when MaxHandlesOption is not set.
const defaultMaxHandles = 4096

// options holds the configuration for a Bridge.
type options struct {
	logger     Logger
	logSink    LogSink
	metrics    *Metrics
	maxHandles int
}

// Option is a function that configures a Bridge.
type Option func(*options)

// LoggerOption sets the logger for bridge diagnostics.
// If not set, the default slog logger will be used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// LogSinkOption sets where engine log lines go.
// If not set, they are written to the bridge logger.
func LogSinkOption(sink LogSink) Option {
	return func(o *options) {
		o.logSink = sink
	}
}

// MetricsOption enables Prometheus metrics.
func MetricsOption(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// MaxHandlesOption bounds the number of live handles. Alloc fails once the
// bound is reached. A negative value removes the bound.
func MaxHandlesOption(n int) Option {
	return func(o *options) {
		o.maxHandles = n
	}
}

// checkOptions sets default values for bridge options.
func checkOptions(opts *options) {
	if opts.logger == nil {
		opts.logger = defaultLogger()
	}

	if opts.logSink == nil {
		opts.logSink = LoggerSink(opts.logger)
	}

	if opts.maxHandles == 0 {
		opts.maxHandles = defaultMaxHandles
	}
}

// sessionOptions holds the configuration for a Session.
type sessionOptions struct {
	logger      Logger
	enableWrite bool
	timeout     int
	videoCodecs []string
}

// SessionOption configures a Session.
type SessionOption func(*sessionOptions)

// EnableWriteOption selects publishing (true, the default) or playing.
func EnableWriteOption(enable bool) SessionOption {
	return func(o *sessionOptions) {
		o.enableWrite = enable
	}
}

// SessionTimeoutOption sets the engine timeout, in engine units, applied
// right after allocation. Zero keeps the engine default.
func SessionTimeoutOption(timeout int) SessionOption {
	return func(o *sessionOptions) {
		o.timeout = timeout
	}
}

// SessionVideoCodecsOption announces the given video mime types on connect.
func SessionVideoCodecsOption(mimeTypes ...string) SessionOption {
	return func(o *sessionOptions) {
		o.videoCodecs = mimeTypes
	}
}

// SessionLoggerOption overrides the bridge logger for one session.
func SessionLoggerOption(logger Logger) SessionOption {
	return func(o *sessionOptions) {
		o.logger = logger
	}
}
