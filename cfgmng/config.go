package cfgmng

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type options struct {
	envPrefix string
	defaults  map[string]any
	optional  bool
}

type Option func(*options)

// WithEnvPrefix makes PREFIX_SECTION_KEY override section.key
func WithEnvPrefix(prefix string) Option {
	return func(o *options) {
		o.envPrefix = prefix
	}
}

// WithDefaults seeds values for keys absent from the file and the
// environment. Keys use viper's dotted form.
func WithDefaults(defaults map[string]any) Option {
	return func(o *options) {
		o.defaults = defaults
	}
}

// Optional tolerates a missing config file
func Optional() Option {
	return func(o *options) {
		o.optional = true
	}
}

func LoadConfig[T any](path string, filename string, opts ...Option) (*T, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName(filename)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	if o.envPrefix != "" {
		v.SetEnvPrefix(o.envPrefix)
	}
	v.AutomaticEnv()

	for key, value := range o.defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !o.optional || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config %s/%s: %w", path, filename, err)
		}
	}

	var cfg T
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &cfg, nil
}
