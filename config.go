package gpures

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/gpures/gpucore"
)

// ErrInvalidConfig is returned when a Config fails validation.
var ErrInvalidConfig = errors.New("gpures: invalid config")

// Duration is a time.Duration that reads and writes as a Go duration
// string ("5s", "250ms") in TOML.
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config tunes an Instance. The zero value is not valid; start from
// DefaultConfig.
//
// A TOML file looks like:
//
//	backend = "memory"
//	label_prefix = "app/"
//	readback_timeout = "5s"
//	texture_row_alignment = 256
//	uniform_usage = ["uniform", "copy_dst"]
type Config struct {
	// Backend is the registered device used by Open when no name is given.
	// The backend package must be imported for its name to resolve.
	Backend string `toml:"backend"`

	// LabelPrefix is prepended to every device object label.
	LabelPrefix string `toml:"label_prefix"`

	// ReadbackTimeout bounds a device-to-host transfer on devices that
	// wait on fences.
	ReadbackTimeout Duration `toml:"readback_timeout"`

	// TextureRowAlignment is the row pitch alignment of Texture2D host
	// storage. Must be a power of two.
	TextureRowAlignment uint32 `toml:"texture_row_alignment"`

	// UniformUsage lists the usage flags of uniform buffers by name.
	UniformUsage []string `toml:"uniform_usage"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Backend:             "memory",
		ReadbackTimeout:     Duration(5 * time.Second),
		TextureRowAlignment: gpucore.CopyRowAlignment,
		UniformUsage:        []string{"uniform", "copy_dst"},
	}
}

var bufferUsageNames = map[string]gputypes.BufferUsage{
	"map_read":  gputypes.BufferUsageMapRead,
	"map_write": gputypes.BufferUsageMapWrite,
	"copy_src":  gputypes.BufferUsageCopySrc,
	"copy_dst":  gputypes.BufferUsageCopyDst,
	"index":     gputypes.BufferUsageIndex,
	"vertex":    gputypes.BufferUsageVertex,
	"uniform":   gputypes.BufferUsageUniform,
	"storage":   gputypes.BufferUsageStorage,
	"indirect":  gputypes.BufferUsageIndirect,
}

// ParseBufferUsage combines usage flag names ("uniform", "copy_dst", ...)
// into a gputypes.BufferUsage.
func ParseBufferUsage(names []string) (gputypes.BufferUsage, error) {
	var usage gputypes.BufferUsage
	for _, name := range names {
		u, ok := bufferUsageNames[strings.ToLower(name)]
		if !ok {
			return 0, fmt.Errorf("%w: unknown buffer usage %q", ErrInvalidConfig, name)
		}
		usage |= u
	}
	return usage, nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.ReadbackTimeout <= 0 {
		return fmt.Errorf("%w: readback_timeout must be positive, got %v", ErrInvalidConfig, time.Duration(c.ReadbackTimeout))
	}
	a := c.TextureRowAlignment
	if a == 0 || a&(a-1) != 0 {
		return fmt.Errorf("%w: texture_row_alignment must be a power of two, got %d", ErrInvalidConfig, a)
	}
	usage, err := ParseBufferUsage(c.UniformUsage)
	if err != nil {
		return err
	}
	if usage&gputypes.BufferUsageUniform == 0 {
		return fmt.Errorf("%w: uniform_usage must include \"uniform\"", ErrInvalidConfig)
	}
	if usage&gputypes.BufferUsageCopyDst == 0 {
		return fmt.Errorf("%w: uniform_usage must include \"copy_dst\"", ErrInvalidConfig)
	}
	return nil
}

// uniformUsage returns the parsed uniform usage. The config must be valid.
func (c Config) uniformUsage() gputypes.BufferUsage {
	usage, _ := ParseBufferUsage(c.UniformUsage)
	return usage
}

// ParseConfig decodes a TOML document over DefaultConfig and validates
// the result. Keys missing from data keep their default; unknown keys are
// an error.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("gpures: parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a TOML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("gpures: load config: %w", err)
	}
	return ParseConfig(data)
}

// Marshal encodes the config as TOML.
func (c Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}
