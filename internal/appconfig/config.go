package appconfig

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// Config holds the user's defaults for the persistent CLI flags.
type Config struct {
	DefaultRoom string `json:"defaultRoom,omitempty"`
	DefaultIP   string `json:"defaultIP,omitempty"`
	Format      string `json:"format,omitempty"`
	// Timeout is a Go duration string, e.g. "5s".
	Timeout string `json:"timeout,omitempty"`
}

// Keys lists the settable keys in display order.
var Keys = []string{"defaultRoom", "defaultIP", "format", "timeout"}

// key binds a JSON key name to its field and validator. check returns the
// value to store.
type key struct {
	field func(*Config) *string
	check func(string) (string, error)
}

var keys = map[string]key{
	"defaultRoom": {
		field: func(c *Config) *string { return &c.DefaultRoom },
		check: func(v string) (string, error) { return v, nil },
	},
	"defaultIP": {
		field: func(c *Config) *string { return &c.DefaultIP },
		check: func(v string) (string, error) {
			if v != "" && net.ParseIP(v) == nil {
				return "", fmt.Errorf("invalid IP address: %q", v)
			}
			return v, nil
		},
	},
	"format": {
		field: func(c *Config) *string { return &c.Format },
		check: func(v string) (string, error) {
			v = strings.ToLower(v)
			if !isValidFormat(v) {
				return "", fmt.Errorf("invalid format: %q (expected plain|json|tsv)", v)
			}
			return v, nil
		},
	},
	"timeout": {
		field: func(c *Config) *string { return &c.Timeout },
		check: func(v string) (string, error) {
			if v != "" && parseTimeout(v) == 0 {
				return "", fmt.Errorf("invalid timeout: %q", v)
			}
			return v, nil
		},
	},
}

func lookupKey(name string) (key, error) {
	k, ok := keys[name]
	if !ok {
		return key{}, fmt.Errorf("unknown key: %q (expected one of %s)", name, strings.Join(Keys, ", "))
	}
	return k, nil
}

// Set validates value and stores it under name. Invalid values are rejected
// rather than normalized away.
func (c *Config) Set(name, value string) error {
	k, err := lookupKey(name)
	if err != nil {
		return err
	}
	v, err := k.check(strings.TrimSpace(value))
	if err != nil {
		return err
	}
	*k.field(c) = v
	return nil
}

func (c Config) Get(name string) (string, error) {
	k, err := lookupKey(name)
	if err != nil {
		return "", err
	}
	return *k.field(&c), nil
}

// Unset clears name so the built-in default applies again.
func (c *Config) Unset(name string) error {
	k, err := lookupKey(name)
	if err != nil {
		return err
	}
	*k.field(c) = ""
	return nil
}

// Normalize trims every value and drops the ones that would not validate.
// Empty values mean the built-in default.
func (c Config) Normalize() Config {
	var out Config
	for _, name := range Keys {
		k := keys[name]
		v, err := k.check(strings.TrimSpace(*k.field(&c)))
		if err == nil {
			*k.field(&out) = v
		}
	}
	return out
}

// TimeoutDuration returns the configured timeout, or zero when unset.
func (c Config) TimeoutDuration() time.Duration {
	return parseTimeout(strings.TrimSpace(c.Timeout))
}

func parseTimeout(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}

func isValidFormat(format string) bool {
	switch format {
	case "plain", "json", "tsv":
		return true
	}
	return false
}
