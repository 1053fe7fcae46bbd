// Package config loads pageprobe settings from pageprobe.yaml, PAGEPROBE_*
// environment variables and command line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DriverPlaywright = "playwright"
	DriverChromedp   = "chromedp"
)

// Drivers lists the supported browser drivers.
var Drivers = []string{DriverPlaywright, DriverChromedp}

// EnvPrefix prefixes environment variables, e.g. PAGEPROBE_BASE_URL or
// PAGEPROBE_DASHBOARD_ADDR.
const EnvPrefix = "PAGEPROBE"

type Config struct {
	BaseURL        string          `mapstructure:"base_url"`
	Driver         string          `mapstructure:"driver"`
	Headless       bool            `mapstructure:"headless"`
	ChromeURL      string          `mapstructure:"chrome_url"` // Remote debugging URL for chromedp
	ArtifactsDir   string          `mapstructure:"artifacts_dir"`
	GoldenDir      string          `mapstructure:"golden_dir"`
	DefaultTimeout time.Duration   `mapstructure:"default_timeout"`
	WaitForTarget  time.Duration   `mapstructure:"wait_for_target"`
	HookNamespace  string          `mapstructure:"hook_namespace"`
	Dashboard      DashboardConfig `mapstructure:"dashboard"`

	// File is the config file that was read, empty if none.
	File string `mapstructure:"-"`
}

type DashboardConfig struct {
	Addr     string `mapstructure:"addr"`
	Capacity uint64 `mapstructure:"capacity"`
}

// FlagKeys maps flag names to config keys. Flags that are defined and
// changed on the command line override every other source.
var FlagKeys = map[string]string{
	"base-url":        "base_url",
	"driver":          "driver",
	"headless":        "headless",
	"chrome-url":      "chrome_url",
	"artifacts-dir":   "artifacts_dir",
	"golden-dir":      "golden_dir",
	"timeout":         "default_timeout",
	"wait-for-target": "wait_for_target",
	"hook-namespace":  "hook_namespace",
	"addr":            "dashboard.addr",
	"capacity":        "dashboard.capacity",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "http://localhost:8000")
	v.SetDefault("driver", DriverPlaywright)
	v.SetDefault("headless", true)
	v.SetDefault("chrome_url", "")
	v.SetDefault("artifacts_dir", "verification")
	v.SetDefault("golden_dir", "testdata/golden")
	v.SetDefault("default_timeout", "5s")
	v.SetDefault("wait_for_target", "0s")
	v.SetDefault("hook_namespace", "")
	v.SetDefault("dashboard.addr", ":8090")
	v.SetDefault("dashboard.capacity", 100)
}

// Load reads the configuration. With an empty path, pageprobe.yaml in the
// working directory is read if it exists. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range FlagKeys {
			if flag := flags.Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
	} else {
		v.SetConfigName("pageprobe")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if !isDriver(c.Driver) {
		errs = append(errs, fmt.Errorf("driver: %q is not one of %s", c.Driver, strings.Join(Drivers, ", ")))
	}
	if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("base_url: %q is not an absolute http(s) URL", c.BaseURL))
	}
	if c.ChromeURL != "" && c.Driver != DriverChromedp {
		errs = append(errs, fmt.Errorf("chrome_url: only supported by the %s driver", DriverChromedp))
	}
	if c.DefaultTimeout < 0 {
		errs = append(errs, fmt.Errorf("default_timeout: must not be negative"))
	}
	if c.WaitForTarget < 0 {
		errs = append(errs, fmt.Errorf("wait_for_target: must not be negative"))
	}
	if c.Dashboard.Capacity == 0 {
		errs = append(errs, fmt.Errorf("dashboard.capacity: must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func isDriver(name string) bool {
	for _, d := range Drivers {
		if d == name {
			return true
		}
	}
	return false
}
