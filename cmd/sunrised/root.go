package main

import (
	"fmt"
	"net"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dokzlo13/sunrised/internal/alarm"
	"github.com/dokzlo13/sunrised/internal/app"
	"github.com/dokzlo13/sunrised/internal/config"
)

type rootOptions struct {
	configPath   string
	end          string
	fadeDuration string
	url          string
	apiKey       string
	listen       string
	logLevel     string
}

func newRootCmd() (*cobra.Command, *rootOptions) {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "sunrised",
		Short: "Sunrise light alarm daemon",
		Long: `sunrised gradually raises the brightness and color temperature of every
light on a Hue compatible gateway so they reach full brightness at the wake time.

The schedule and the activation flag can be changed at runtime over HTTP.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return run(cfg, opts.configPath)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "config.yaml", "Path to configuration file")
	flags.StringVar(&opts.end, "end", "", "Wake time, HH:MM[:SS] or a duration since midnight (overrides alarm.wake_time)")
	flags.StringVar(&opts.fadeDuration, "fade-duration", "", "Fade window length, e.g. 30m (overrides alarm.fade_duration)")
	flags.StringVar(&opts.url, "url", "", "Gateway URL (overrides gateway.url)")
	flags.StringVar(&opts.apiKey, "api-key", "", "Gateway API key (overrides gateway.api_key)")
	flags.StringVar(&opts.listen, "listen", "", "API listen address host:port (overrides api.host and api.port)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides log.level)")

	return cmd, opts
}

// loadConfig reads the config file, applies flag overrides and validates the result.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := applyFlags(cmd, opts, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, opts *rootOptions, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("end") {
		if _, err := alarm.ParseWakeTime(opts.end); err != nil {
			return fmt.Errorf("--end: %w", err)
		}
		cfg.Alarm.WakeTime = opts.end
	}
	if flags.Changed("fade-duration") {
		d, err := alarm.ParseDuration(opts.fadeDuration)
		if err != nil {
			return fmt.Errorf("--fade-duration: %w", err)
		}
		cfg.Alarm.FadeDuration = config.Duration(d)
	}
	if flags.Changed("url") {
		cfg.Gateway.URL = config.ExpandEnvString(opts.url)
	}
	if flags.Changed("api-key") {
		cfg.Gateway.APIKey = config.ExpandEnvString(opts.apiKey)
	}
	if flags.Changed("listen") {
		host, port, err := parseListen(opts.listen)
		if err != nil {
			return fmt.Errorf("--listen: %w", err)
		}
		cfg.API.Host, cfg.API.Port = host, port
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	return nil
}

func parseListen(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	if host == "" {
		host = "0.0.0.0"
	}
	return host, port, nil
}

func run(cfg *config.Config, configPath string) error {
	setupLogging(cfg.Log.Level, cfg.Log.JSON, cfg.Log.Colors)

	log.Info().
		Str("config", configPath).
		Str("version", Version).
		Msg("Starting sunrised")

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	if err := application.Run(app.SignalContext()); err != nil {
		return fmt.Errorf("sunrised stopped: %w", err)
	}
	return nil
}
