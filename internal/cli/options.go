package cli

import (
	"io"

	"github.com/networkteam/pageprobe/driver"
	"github.com/networkteam/pageprobe/driver/cdpdriver"
	"github.com/networkteam/pageprobe/driver/pwdriver"
	"github.com/networkteam/pageprobe/internal/config"
	"github.com/networkteam/pageprobe/runner"
)

// runnerOptions maps the loaded config to runner options. Diagnostic prints
// go to stdout.
func (o *RootOptions) runnerOptions(stdout io.Writer) runner.Options {
	cfg := o.Config

	opts := runner.DefaultOptions()
	opts.Launcher, opts.Driver = o.launcher()
	opts.Launch = driver.LaunchOptions{
		Headless:  cfg.Headless,
		RemoteURL: cfg.ChromeURL,
		Logger:    o.Logger,
	}
	opts.BaseURL = cfg.BaseURL
	opts.ArtifactsDir = cfg.ArtifactsDir
	opts.GoldenDir = cfg.GoldenDir
	opts.DefaultTimeout = cfg.DefaultTimeout
	opts.WaitForTarget = cfg.WaitForTarget
	opts.HookNamespace = cfg.HookNamespace
	opts.Stdout = stdout
	opts.Logger = o.Logger
	return opts
}

func (o *RootOptions) launcher() (driver.Launcher, string) {
	if o.Launcher != nil {
		return o.Launcher, o.Config.Driver
	}
	switch o.Config.Driver {
	case config.DriverChromedp:
		return cdpdriver.Launch, config.DriverChromedp
	default:
		return pwdriver.Launch, config.DriverPlaywright
	}
}
