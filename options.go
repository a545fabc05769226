package gpures

import "log/slog"

// InstanceOption configures an Instance during creation.
//
// Example:
//
//	cfg, err := gpures.LoadConfig("gpures.toml")
//	...
//	inst, err := gpures.NewInstance(dev,
//	    gpures.WithConfig(cfg),
//	    gpures.WithLabelPrefix("sim/"),
//	)
type InstanceOption func(*instanceOptions)

// instanceOptions holds optional configuration for Instance creation.
type instanceOptions struct {
	config      Config
	logger      *slog.Logger
	labelPrefix *string
}

// defaultOptions returns the default instance options.
func defaultOptions() instanceOptions {
	return instanceOptions{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) InstanceOption {
	return func(o *instanceOptions) {
		o.config = cfg
	}
}

// WithLogger gives the instance its own logger instead of the package
// logger. The device receives it too if it accepts a logger.
func WithLogger(l *slog.Logger) InstanceOption {
	return func(o *instanceOptions) {
		o.logger = l
	}
}

// WithLabelPrefix overrides Config.LabelPrefix.
func WithLabelPrefix(prefix string) InstanceOption {
	return func(o *instanceOptions) {
		o.labelPrefix = &prefix
	}
}

func resolveOptions(opts []InstanceOption) instanceOptions {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.labelPrefix != nil {
		o.config.LabelPrefix = *o.labelPrefix
	}
	return o
}
