package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/obsrelay/internal/cliconfig"
	"github.com/bft-labs/obsrelay/pkg/log"
	"github.com/bft-labs/obsrelay/pkg/obsrelay"
	"github.com/bft-labs/obsrelay/plugins/configwatcher"
)

const helpDescription = `
Relay OBS Studio control to browsers and phones on your network.

Highlights:
  - Keeps one obs-websocket v5 session and reconnects with the last good endpoint.
  - Exposes every OBS operation over a WebSocket at /ws, replies tagged by call id.
  - Relays chat commands to a game bot and stream events to an OSC chatbox.
  - Configure via file, env (OBSRELAY_*), or flags; the file is watched for OBS changes.
`

var exampleUsage = strings.TrimSpace(`
  obsrelay --obs-host 127.0.0.1 --obs-port 4455 --obs-password <password>
  obsrelay --config $HOME/.obsrelay/config.toml --bot-command "node bot.js"
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	zl := log.NewConsoleLogger(os.Stderr)

	root := &cobra.Command{
		Use:          "obsrelay",
		Short:        "Relay OBS Studio control to WebSocket and HTTP clients",
		Long:         strings.TrimSpace(helpDescription),
		Example:      exampleUsage,
		Version:      fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			// Build set of changed flags
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			// Environment overrides the file; explicit flags override both.
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}
			log.SetLevel(cfg.LogLevel)

			logCfg := cfg
			if logCfg.OBSPassword != "" {
				logCfg.OBSPassword = "*****"
			}
			zl.Info().Interface("config", logCfg).Msg("configuration")

			libCfg := obsrelay.Config{
				OBSHost:             cfg.OBSHost,
				OBSPort:             cfg.OBSPort,
				OBSPassword:         cfg.OBSPassword,
				HTTPAddr:            cfg.HTTPAddr(),
				HTTPSAddr:           cfg.HTTPSAddr(),
				TLSCertFile:         cfg.TLSCertFile,
				TLSKeyFile:          cfg.TLSKeyFile,
				OnboardingURLs:      cfg.OnboardingURLs(),
				StateDir:            cfg.StateDir,
				OSCTarget:           cfg.OSCTarget,
				OSCListen:           cfg.OSCListen,
				BotCommand:          cfg.BotCommand,
				CommandDelay:        cfg.CommandDelay,
				EventDelay:          cfg.EventDelay,
				GuardTimeout:        cfg.GuardTimeout,
				GuardRetries:        cfg.GuardRetries,
				GuardDelay:          cfg.GuardDelay,
				ReconnectAttempts:   cfg.ReconnectAttempts,
				ReconnectDelay:      cfg.ReconnectDelay,
				ReconnectMultiplier: cfg.ReconnectMultiplier,
				AutoReconnect:       cfg.AutoReconnect,
			}
			opts := []obsrelay.Option{obsrelay.WithLogger(log.NewZerologAdapterWithLogger(zl))}
			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				libCfg.ConfigPath = cfgFile
				opts = append(opts, configwatcher.WithConfigWatcher(configwatcher.DefaultConfig()))
			}

			r, err := obsrelay.New(libCfg, opts...)
			if err != nil {
				return fmt.Errorf("create relay: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := r.Start(ctx); err != nil {
				return fmt.Errorf("start relay: %w", err)
			}
			for _, u := range libCfg.OnboardingURLs {
				zl.Info().Str("url", u).Msg("control panel")
			}

			<-ctx.Done()
			zl.Info().Msg("received signal, stopping...")

			if err := r.Stop(); err != nil {
				return fmt.Errorf("stop relay: %w", err)
			}
			return nil
		},
	}

	// Flags
	f := root.Flags()
	f.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.obsrelay/config.toml)")

	f.StringVar(&cfg.OBSHost, "obs-host", cfg.OBSHost, "obs-websocket host used when nothing was persisted")
	f.IntVar(&cfg.OBSPort, "obs-port", cfg.OBSPort, "obs-websocket port")
	f.StringVar(&cfg.OBSPassword, "obs-password", cfg.OBSPassword, "obs-websocket password")

	f.IntVar(&cfg.HTTPPort, "http-port", cfg.HTTPPort, "HTTP and WebSocket port")
	f.IntVar(&cfg.HTTPSPort, "https-port", cfg.HTTPSPort, "HTTPS port (0 disables TLS)")
	f.StringVar(&cfg.TLSCertFile, "tls-cert", cfg.TLSCertFile, "TLS certificate file")
	f.StringVar(&cfg.TLSKeyFile, "tls-key", cfg.TLSKeyFile, "TLS key file")
	f.StringVar(&cfg.AdvertiseHost, "advertise-host", cfg.AdvertiseHost, "host put in onboarding QR codes (default: first LAN address)")
	f.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for connection.json and state.json (default: $HOME/.obsrelay)")

	f.StringVar(&cfg.OSCTarget, "osc-target", cfg.OSCTarget, "OSC chatbox address (empty disables stream events)")
	f.StringVar(&cfg.OSCListen, "osc-listen", cfg.OSCListen, "OSC listen address (empty disables)")

	f.StringVar(&cfg.BotCommand, "bot-command", cfg.BotCommand, "command that runs the game bot (empty disables)")
	f.DurationVar(&cfg.CommandDelay, "command-delay", cfg.CommandDelay, "extra delay per relayed command in the last minute")
	f.DurationVar(&cfg.EventDelay, "event-delay", cfg.EventDelay, "delay before chat lines reach the chatbox")

	f.DurationVar(&cfg.GuardTimeout, "guard-timeout", cfg.GuardTimeout, "how long a call waits for the OBS session")
	f.IntVar(&cfg.GuardRetries, "guard-retries", cfg.GuardRetries, "session polls per call")
	f.DurationVar(&cfg.GuardDelay, "guard-delay", cfg.GuardDelay, "wait between session polls")

	f.IntVar(&cfg.ReconnectAttempts, "reconnect-attempts", cfg.ReconnectAttempts, "consecutive reconnect failures before giving up")
	f.DurationVar(&cfg.ReconnectDelay, "reconnect-delay", cfg.ReconnectDelay, "wait before each reconnect")
	f.Float64Var(&cfg.ReconnectMultiplier, "reconnect-multiplier", cfg.ReconnectMultiplier, "growth of the reconnect delay (1 keeps it fixed)")
	f.BoolVar(&cfg.AutoReconnect, "auto-reconnect", cfg.AutoReconnect, "reconnect to OBS after the session drops")

	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: trace, debug, info, warn, error")

	if err := root.Execute(); err != nil {
		zl.Error().Err(err).Msg("obsrelay")
		os.Exit(1)
	}
}
