// Package config resolves connector configuration from a string property bag,
// a YAML file or functional options, and validates it before any connection is made.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"github.com/gozephyr/aerospike-mapstore/errors"
	"github.com/gozephyr/aerospike-mapstore/ttl"
)

// PropertyPrefix is the prefix of every recognized property key.
const PropertyPrefix = "aerospike."

// Record key types accepted by RecordKeyType.
const (
	KeyTypeString = "string"
	KeyTypeInt    = "int"
	KeyTypeLong   = "long"
)

// Default values for configuration
const (
	DefaultNamespace      = "test"
	DefaultBinName        = "mapbin"
	DefaultValueBin       = "value"
	DefaultHost           = "127.0.0.1"
	DefaultPort           = 3000
	DefaultConnectTimeout = 1 * time.Second
	DefaultTotalTimeout   = 1 * time.Second
	DefaultSocketTimeout  = 30 * time.Second
	DefaultMaxRetries     = 2
)

// Config holds everything needed to reach the remote store for one map
type Config struct {
	// MapName is the logical map name; it is the default set and record key
	MapName string `mapstructure:"-" yaml:"-"`

	Namespace string `mapstructure:"namespace" yaml:"namespace"`
	Set       string `mapstructure:"set" yaml:"set"`

	// BinName is the container bin of the aggregated record
	BinName string `mapstructure:"mapBinName" yaml:"mapBinName"`
	// RecordKeyType is one of string, int or long
	RecordKeyType string `mapstructure:"recordKeyType" yaml:"recordKeyType"`
	// RecordKey is the primary key value of the aggregated record
	RecordKey string `mapstructure:"recordKey" yaml:"recordKey"`

	// ValueBin is the bin used by the string record mapper
	ValueBin string `mapstructure:"valueBin" yaml:"valueBin"`

	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`

	ConnectTimeout time.Duration `mapstructure:"connectTimeout" yaml:"connectTimeout"`
	TotalTimeout   time.Duration `mapstructure:"totalTimeout" yaml:"totalTimeout"`
	SocketTimeout  time.Duration `mapstructure:"socketTimeout" yaml:"socketTimeout"`
	MaxRetries     int           `mapstructure:"maxRetries" yaml:"maxRetries"`

	// RecordTTL is applied to every write; 0 keeps the namespace default
	RecordTTL time.Duration `mapstructure:"recordTTL" yaml:"recordTTL"`
	// SendKey stores the user key with each record so scans can echo it back
	SendKey bool `mapstructure:"sendKey" yaml:"sendKey"`

	TTLConfig ttl.Config `mapstructure:"-" yaml:"-"`
}

// Default returns the configuration used for a map when nothing is overridden
func Default(mapName string) Config {
	return Config{
		MapName:        mapName,
		Namespace:      DefaultNamespace,
		Set:            mapName,
		BinName:        DefaultBinName,
		RecordKeyType:  KeyTypeString,
		RecordKey:      mapName,
		ValueBin:       DefaultValueBin,
		Host:           DefaultHost,
		Port:           DefaultPort,
		ConnectTimeout: DefaultConnectTimeout,
		TotalTimeout:   DefaultTotalTimeout,
		SocketTimeout:  DefaultSocketTimeout,
		MaxRetries:     DefaultMaxRetries,
		SendKey:        true,
		TTLConfig:      ttl.DefaultConfig(),
	}
}

// FromProperties builds a configuration from a host-supplied property bag.
// Only keys carrying the "aerospike." prefix are considered; values are strings.
func FromProperties(mapName string, props map[string]string, opts ...Option) (Config, error) {
	raw := make(map[string]any, len(props))
	for k, v := range props {
		if name, ok := strings.CutPrefix(k, PropertyPrefix); ok {
			raw[name] = v
		}
	}
	return fromMap(mapName, raw, opts...)
}

// Load reads a YAML configuration file. Keys may be nested under an "aerospike" section.
func Load(path, mapName string, opts ...Option) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Invalid("config.Load", fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err))
	}
	return Parse(data, mapName, opts...)
}

// Parse decodes YAML configuration data.
func Parse(data []byte, mapName string, opts ...Option) (Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, errors.Invalid("config.Parse", fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err))
	}
	if section, ok := raw[strings.TrimSuffix(PropertyPrefix, ".")].(map[string]any); ok {
		raw = section
	}
	return fromMap(mapName, raw, opts...)
}

func fromMap(mapName string, raw map[string]any, opts ...Option) (Config, error) {
	cfg := Default(mapName)

	if v, ok := raw["port"]; ok {
		if _, err := parsePort(v); err != nil {
			return Config{}, errors.Invalid("config.port", err)
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		// Unknown properties are configuration mistakes
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		Result:           &cfg,
	})
	if err != nil {
		return Config{}, errors.Invalid("config.decode", fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err))
	}
	if err := decoder.Decode(raw); err != nil {
		return Config{}, errors.Invalid("config.decode", fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err))
	}

	if err := cfg.Apply(opts...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Apply applies options and validates the result
func (c *Config) Apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return errors.Invalid("config.Apply", err)
		}
	}
	return c.Validate()
}

// Validate reports configuration defects that must fail initialization
func (c *Config) Validate() error {
	if c.Namespace == "" {
		return errors.Invalid("config.Validate", fmt.Errorf("%w: empty namespace", errors.ErrInvalidConfig))
	}
	if c.Host == "" {
		return errors.Invalid("config.Validate", fmt.Errorf("%w: empty host", errors.ErrInvalidConfig))
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Invalid("config.Validate", fmt.Errorf("%w: %d", errors.ErrInvalidPort, c.Port))
	}
	keyType := strings.ToLower(c.RecordKeyType)
	switch keyType {
	case KeyTypeString, KeyTypeInt, KeyTypeLong:
		c.RecordKeyType = keyType
	default:
		return errors.Invalid("config.Validate", fmt.Errorf("%w: %q", errors.ErrInvalidKeyType, c.RecordKeyType))
	}
	if _, err := c.RecordKeyValue(); err != nil {
		return errors.Invalid("config.Validate", err)
	}
	if c.TTLConfig == (ttl.Config{}) {
		c.TTLConfig = ttl.DefaultConfig()
	}
	return ttl.Validate(c.RecordTTL, c.TTLConfig)
}

// RecordKeyValue returns the primary key value of the aggregated record,
// typed according to RecordKeyType.
func (c *Config) RecordKeyValue() (any, error) {
	switch strings.ToLower(c.RecordKeyType) {
	case KeyTypeString:
		return c.RecordKey, nil
	case KeyTypeInt:
		n, err := strconv.ParseInt(c.RecordKey, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an int: %w", errors.ErrInvalidRecordKey, c.RecordKey, err)
		}
		return int(n), nil
	case KeyTypeLong:
		n, err := strconv.ParseInt(c.RecordKey, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a long: %w", errors.ErrInvalidRecordKey, c.RecordKey, err)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrInvalidKeyType, c.RecordKeyType)
	}
}

// Address returns host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func parsePort(v any) (int, error) {
	switch p := v.(type) {
	case int:
		return p, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0, fmt.Errorf("%w: %q", errors.ErrInvalidPort, p)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %v", errors.ErrInvalidPort, v)
	}
}
