package config

import (
	"fmt"
	"time"

	"github.com/gozephyr/aerospike-mapstore/errors"
)

// Option is a function that configures a Config
type Option func(*Config) error

// WithHost sets the seed host and port
func WithHost(host string, port int) Option {
	return func(c *Config) error {
		if host == "" {
			return fmt.Errorf("%w: empty host", errors.ErrInvalidConfig)
		}
		if port <= 0 || port > 65535 {
			return fmt.Errorf("%w: %d", errors.ErrInvalidPort, port)
		}
		c.Host = host
		c.Port = port
		return nil
	}
}

// WithNamespace sets the namespace
func WithNamespace(namespace string) Option {
	return func(c *Config) error {
		c.Namespace = namespace
		return nil
	}
}

// WithSet sets the set name
func WithSet(set string) Option {
	return func(c *Config) error {
		c.Set = set
		return nil
	}
}

// WithBinName sets the container bin of the aggregated record
func WithBinName(bin string) Option {
	return func(c *Config) error {
		if bin == "" {
			return fmt.Errorf("%w: empty bin name", errors.ErrInvalidConfig)
		}
		c.BinName = bin
		return nil
	}
}

// WithValueBin sets the bin used by the string record mapper
func WithValueBin(bin string) Option {
	return func(c *Config) error {
		if bin == "" {
			return fmt.Errorf("%w: empty bin name", errors.ErrInvalidConfig)
		}
		c.ValueBin = bin
		return nil
	}
}

// WithRecordKey sets the primary key of the aggregated record
func WithRecordKey(keyType, value string) Option {
	return func(c *Config) error {
		c.RecordKeyType = keyType
		c.RecordKey = value
		return nil
	}
}

// WithRecordTTL sets the expiration applied on every write
func WithRecordTTL(d time.Duration) Option {
	return func(c *Config) error {
		c.RecordTTL = d
		return nil
	}
}

// WithTimeouts sets the connect, total and socket timeouts
func WithTimeouts(connect, total, socket time.Duration) Option {
	return func(c *Config) error {
		if connect < 0 || total < 0 || socket < 0 {
			return fmt.Errorf("%w: negative timeout", errors.ErrInvalidConfig)
		}
		c.ConnectTimeout = connect
		c.TotalTimeout = total
		c.SocketTimeout = socket
		return nil
	}
}

// WithCredentials sets the user and password for clusters with security enabled
func WithCredentials(user, password string) Option {
	return func(c *Config) error {
		c.User = user
		c.Password = password
		return nil
	}
}

// WithSendKey controls whether user keys are stored with records
func WithSendKey(enable bool) Option {
	return func(c *Config) error {
		c.SendKey = enable
		return nil
	}
}
