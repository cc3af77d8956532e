// Package config assembles the typed client configuration from viper. Values
// come from flags, PIXURE_* environment variables and the optional config
// file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Viper keys.
const (
	KeyAPIURL       = "api_url"
	KeyOutput       = "output"
	KeyDebug        = "debug"
	KeySession      = "session"
	KeyPollInterval = "poll.interval"
	KeyPollMaxWait  = "poll.max_wait"
	KeyWindowDays   = "certs.window_days"
	KeyServeAddr    = "serve.addr"
	KeyRateLimit    = "api.rate_limit"
	KeyTimeout      = "api.timeout"
)

type Config struct {
	APIURL      string
	Output      string
	Debug       bool
	SessionPath string

	PollInterval time.Duration
	PollMaxWait  time.Duration
	WindowDays   int

	ServeAddr string
	RateLimit int
	Timeout   time.Duration
}

// Dir is the per-user directory holding the config file and session.
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "pixure")
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyAPIURL, "http://127.0.0.1:8000/api")
	v.SetDefault(KeyOutput, "./reports")
	v.SetDefault(KeyDebug, false)
	v.SetDefault(KeySession, filepath.Join(Dir(), "session.json"))
	v.SetDefault(KeyPollInterval, 5*time.Second)
	v.SetDefault(KeyPollMaxWait, time.Duration(0))
	v.SetDefault(KeyWindowDays, 30)
	v.SetDefault(KeyServeAddr, ":8090")
	v.SetDefault(KeyRateLimit, 10)
	v.SetDefault(KeyTimeout, 30*time.Second)
}

// FromViper reads and validates the configuration held by v.
func FromViper(v *viper.Viper) (Config, error) {
	c := Config{
		APIURL:       strings.TrimRight(v.GetString(KeyAPIURL), "/"),
		Output:       v.GetString(KeyOutput),
		Debug:        v.GetBool(KeyDebug),
		SessionPath:  v.GetString(KeySession),
		PollInterval: v.GetDuration(KeyPollInterval),
		PollMaxWait:  v.GetDuration(KeyPollMaxWait),
		WindowDays:   v.GetInt(KeyWindowDays),
		ServeAddr:    v.GetString(KeyServeAddr),
		RateLimit:    v.GetInt(KeyRateLimit),
		Timeout:      v.GetDuration(KeyTimeout),
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("%s: %q is not an http(s) URL", KeyAPIURL, c.APIURL))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyPollInterval))
	}
	if c.PollMaxWait < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyPollMaxWait))
	}
	if c.WindowDays <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyWindowDays))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyRateLimit))
	}
	if c.SessionPath == "" {
		errs = append(errs, fmt.Errorf("%s must be set", KeySession))
	}
	return errors.Join(errs...)
}
