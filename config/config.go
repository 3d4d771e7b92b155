// Package config loads the mapgen configuration from a file and MAPGEN_*
// environment variables.
package config

import (
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/IvanBrykalov/mapgen/cache"
	"github.com/IvanBrykalov/mapgen/policy"
	"github.com/IvanBrykalov/mapgen/policy/fifo"
	"github.com/IvanBrykalov/mapgen/policy/lru"
)

// Config is the whole configuration.
type Config struct {
	Store StoreConfig `mapstructure:"store"`
	Cache CacheConfig `mapstructure:"cache"`
	Tiles TilesConfig `mapstructure:"tiles"`
	Log   LogConfig   `mapstructure:"log"`
}

// StoreConfig selects the blob store driver. Location is a directory for
// leveldb and pebble, a file for sqlite, and unused for memory.
type StoreConfig struct {
	Driver   string `mapstructure:"driver" validate:"required,oneof=memory leveldb pebble sqlite"`
	Location string `mapstructure:"location"`
}

// CacheConfig mirrors cache.Options.
type CacheConfig struct {
	HardMaxSize   ByteSize      `mapstructure:"hard_max_size" validate:"gte=0"`
	SoftMaxSize   ByteSize      `mapstructure:"soft_max_size" validate:"gte=0"`
	MinObjects    int           `mapstructure:"min_objects" validate:"gte=0"`
	Interval      time.Duration `mapstructure:"interval" validate:"gte=0"`
	NegativeTTL   time.Duration `mapstructure:"negative_ttl" validate:"gte=0"`
	Policy        string        `mapstructure:"policy" validate:"oneof=fifo lru"`
	NonPersistent bool          `mapstructure:"non_persistent"`
	NoWriteback   bool          `mapstructure:"no_writeback"`
	NoMemoryLimit bool          `mapstructure:"no_memory_limit"`
}

// TilesConfig shapes the tile grid.
type TilesConfig struct {
	Size     float64 `mapstructure:"size" validate:"gt=0,lte=180"`
	MaxDepth int     `mapstructure:"max_depth" validate:"gte=1,lte=32"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

// ByteSize is a size in bytes. It decodes from integers and from strings
// such as "64MiB" or "1.5GB".
type ByteSize int64

func (b ByteSize) String() string { return humanize.IBytes(uint64(max(b, 0))) }

var defaults = map[string]any{
	"store.driver":          "memory",
	"store.location":        "",
	"cache.hard_max_size":   "256MiB",
	"cache.soft_max_size":   "0",
	"cache.min_objects":     16,
	"cache.interval":        100 * time.Millisecond,
	"cache.negative_ttl":    time.Duration(0),
	"cache.policy":          "fifo",
	"cache.non_persistent":  false,
	"cache.no_writeback":    false,
	"cache.no_memory_limit": false,
	"tiles.size":            0.1,
	"tiles.max_depth":       16,
	"log.level":             "info",
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(err)
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.SetEnvPrefix("mapgen")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads filename (any format viper understands) over the defaults;
// an empty filename uses the defaults and the environment only.
func Load(filename string) (*Config, error) {
	v := newViper()
	if filename != "" {
		v.SetConfigFile(filename)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read configuration file: %w", err)
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			ByteSizeDecodeHook(),
		),
		ErrorUnused: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ByteSizeDecodeHook parses human readable sizes into ByteSize.
func ByteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(ByteSize(0)) {
			return data, nil
		}
		n, err := humanize.ParseBytes(strings.TrimSpace(data.(string)))
		if err != nil {
			return nil, fmt.Errorf("invalid size %q: %w", data, err)
		}
		return ByteSize(n), nil
	}
}

// Validate checks field ranges and the rules spanning several fields.
func Validate(cfg *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterStructValidation(func(sl validator.StructLevel) {
		s := sl.Current().Interface().(StoreConfig)
		if s.Driver != "memory" && s.Location == "" {
			sl.ReportError(s.Location, "Location", "Location", "required_unless_memory", "")
		}
	}, StoreConfig{})

	validate.RegisterStructValidation(func(sl validator.StructLevel) {
		c := sl.Current().Interface().(CacheConfig)
		if c.NoMemoryLimit {
			return
		}
		if c.HardMaxSize == 0 {
			sl.ReportError(c.HardMaxSize, "HardMaxSize", "HardMaxSize", "required_with_memory_limit", "")
		}
		if c.SoftMaxSize > c.HardMaxSize {
			sl.ReportError(c.SoftMaxSize, "SoftMaxSize", "SoftMaxSize", "ltefield", "HardMaxSize")
		}
	}, CacheConfig{})

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

// Flags returns the cache flags the configuration switches on.
func (c CacheConfig) Flags() cache.Flags {
	var f cache.Flags
	if c.NonPersistent {
		f |= cache.NonPersistent
	}
	if c.NoWriteback {
		f |= cache.NoWriteback
	}
	if c.NoMemoryLimit {
		f |= cache.NoMemoryLimit
	}
	return f
}

// CacheOptions builds cache options from c. Metrics may be nil.
func CacheOptions[K cache.ID, V any](c CacheConfig, logger *log.Logger, m cache.Metrics) cache.Options[K, V] {
	var order policy.Factory[K] = fifo.New[K]()
	if c.Policy == "lru" {
		order = lru.New[K]()
	}
	return cache.Options[K, V]{
		Flags:       c.Flags(),
		MinObjects:  c.MinObjects,
		HardMaxSize: int64(c.HardMaxSize),
		SoftMaxSize: int64(c.SoftMaxSize),
		Interval:    c.Interval,
		NegativeTTL: c.NegativeTTL,
		Policy:      order,
		Metrics:     m,
		Logger:      logger,
	}
}

// Logger returns a logger writing to w at the configured level.
func (c LogConfig) Logger(w io.Writer) *log.Logger {
	lvl, err := log.ParseLevel(c.Level)
	if err != nil {
		lvl = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           lvl,
	})
}
