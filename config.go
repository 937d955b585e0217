package unigraph

import (
	"net"
	"strconv"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout        = 30 * time.Second
	DefaultMaxConnections = 10
)

// Config is the connection record accepted by every adapter. Credentials are
// opaque strings supplied by the caller.
type Config struct {
	Hosts          []string          `yaml:"hosts"`
	Port           int               `yaml:"port"`
	Database       string            `yaml:"database"`
	Username       string            `yaml:"username"`
	Password       string            `yaml:"password"`
	Timeout        time.Duration     `yaml:"timeout"`
	MaxConnections int               `yaml:"max_connections"`
	Options        map[string]string `yaml:"options"` // Provider-specific; unknown keys are ignored.
}

// Validate checks the parts of the record shared by every adapter.
func (c *Config) Validate() error {
	if len(c.Hosts) == 0 {
		return Errorf(KindConnectionFailed, "config: at least one host is required")
	}
	for _, h := range c.Hosts {
		if h == "" {
			return Errorf(KindConnectionFailed, "config: empty host")
		}
	}
	if c.Port < 0 || c.Port > 65535 {
		return Errorf(KindConnectionFailed, "config: port %d out of range", c.Port)
	}
	if c.Timeout < 0 {
		return Errorf(KindConnectionFailed, "config: negative timeout")
	}
	if c.MaxConnections < 0 {
		return Errorf(KindConnectionFailed, "config: negative max connections")
	}
	return nil
}

// RequireCredentials reports authentication-failed when the username or
// password is missing.
func (c *Config) RequireCredentials() error {
	if c.Username == "" || c.Password == "" {
		return Errorf(KindAuthenticationFailed, "config: username and password are required")
	}
	return nil
}

// WithDefaults returns a copy with zero fields set to defaults. The port
// default is backend specific and passed in.
func (c Config) WithDefaults(port int) Config {
	if c.Port == 0 {
		c.Port = port
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxConnections == 0 {
		c.MaxConnections = DefaultMaxConnections
	}
	return c
}

// Option returns the provider option stored under key, or def.
func (c *Config) Option(key, def string) string {
	if v, ok := c.Options[key]; ok && v != "" {
		return v
	}
	return def
}

// BoolOption parses a boolean provider option, returning def when the key is
// missing or malformed.
func (c *Config) BoolOption(key string, def bool) bool {
	b, err := strconv.ParseBool(c.Option(key, ""))
	if err != nil {
		return def
	}
	return b
}

// Addresses returns host:port for every host. Hosts that already carry a
// port keep it.
func (c *Config) Addresses() []string {
	addrs := make([]string, 0, len(c.Hosts))
	for _, h := range c.Hosts {
		if _, _, err := net.SplitHostPort(h); err == nil {
			addrs = append(addrs, h)
			continue
		}
		addrs = append(addrs, net.JoinHostPort(h, strconv.Itoa(c.Port)))
	}
	return addrs
}
