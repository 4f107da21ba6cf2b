package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-minutes/internal/app"
	"github.com/vovakirdan/wirechat-minutes/internal/config"
	wclog "github.com/vovakirdan/wirechat-minutes/internal/log"
)

var version = "dev"

type serveFlags struct {
	configPath      string
	addr            string
	logLevel        string
	shutdownTimeout time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &serveFlags{}

	serve := func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd, flags)
	}

	root := &cobra.Command{
		Use:           "wirechat-minutes",
		Short:         "Room signaling relay with live transcription and emailed minutes",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve,
	}
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay server",
		RunE:  serve,
	}
	for _, c := range []*cobra.Command{root, serveCmd} {
		c.Flags().StringVar(&flags.configPath, "config", "", "path to config.yaml")
		c.Flags().StringVar(&flags.addr, "addr", "", "HTTP listen address")
		c.Flags().StringVar(&flags.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
		c.Flags().DurationVar(&flags.shutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	}

	root.AddCommand(serveCmd, &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	return root
}

func runServe(cmd *cobra.Command, flags *serveFlags) error {
	bootLogger := wclog.New("info", "console")

	cfg, path, err := config.Load(bootLogger, flags.configPath)
	if err != nil {
		bootLogger.Error().Err(err).Msg("failed to load config")
		return err
	}
	if flags.addr != "" {
		cfg.Addr = flags.addr
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if flags.shutdownTimeout > 0 {
		cfg.ShutdownTimeout = flags.shutdownTimeout
	}

	logger := wclog.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info().Str("config", path).Str("version", version).Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(&cfg, logger)
	if err != nil {
		if errors.Is(err, config.ErrMissingCredential) {
			logger.Fatal().Err(err).Msg("cannot start without credentials")
		}
		logger.Error().Err(err).Msg("failed to initialize app")
		return err
	}

	logger.Info().Str("addr", cfg.Addr).Msg("starting wirechat-minutes server")
	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
