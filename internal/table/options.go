package table

import "log/slog"

// Option configures table construction.
type Option func(*options)

type options struct {
	cloneRows bool
	logger    *slog.Logger
}

// WithoutCloning makes the table adopt the caller's rows instead of deep-copying
// them. The caller must not touch the rows afterwards.
func WithoutCloning() Option {
	return func(o *options) {
		o.cloneRows = false
	}
}

// WithLogger sets the logger used for structural events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func applyOptions(opts []Option) *options {
	o := &options{cloneRows: true}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}
