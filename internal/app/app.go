package app

import (
	"context"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/vovakirdan/wirechat-minutes/internal/config"
	"github.com/vovakirdan/wirechat-minutes/internal/core"
	"github.com/vovakirdan/wirechat-minutes/internal/departure"
	wclog "github.com/vovakirdan/wirechat-minutes/internal/log"
	"github.com/vovakirdan/wirechat-minutes/internal/mailer"
	"github.com/vovakirdan/wirechat-minutes/internal/store"
	"github.com/vovakirdan/wirechat-minutes/internal/store/file"
	"github.com/vovakirdan/wirechat-minutes/internal/store/sqlite"
	"github.com/vovakirdan/wirechat-minutes/internal/transcript"
	"github.com/vovakirdan/wirechat-minutes/internal/transcription"
	transporthttp "github.com/vovakirdan/wirechat-minutes/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	departures      *departure.Pipeline
	store           store.TranscriptLog
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := openStore(cfg.Transcript)
	if err != nil {
		return nil, fmt.Errorf("init transcript store: %w", err)
	}
	logger.Info().Str("backend", cfg.Transcript.Backend).Msg("transcript store initialized")

	clock, err := transcript.NewClock(cfg.TimeZone)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	transcripts := transcript.NewService(st, clock, cfg.Transcript.RetainOnEmpty, wclog.Module(logger, "transcript"))

	engine := transcription.NewDeepgramEngine(cfg.Deepgram, wclog.Module(logger, "deepgram"))
	bridges := transcription.NewManager(engine, transcription.Options{
		Language:       cfg.Deepgram.Language,
		Punctuate:      true,
		InterimResults: false,
		Encoding:       cfg.Deepgram.Encoding,
		SampleRate:     cfg.Deepgram.SampleRate,
	}, transcripts, wclog.Module(logger, "transcription"))

	if cfg.Mail.Username == "" {
		logger.Warn().Msg("mail username not set, transcripts will not be mailed")
	}
	departures := departure.New(transcripts, mailer.NewSMTPMailer(cfg.Mail), afero.NewOsFs(), departure.Config{
		From:          cfg.MailFrom(),
		Subject:       cfg.Mail.Subject,
		ArtifactDir:   cfg.Mail.ArtifactDir,
		SendTimeout:   cfg.Mail.SendTimeout,
		MaxConcurrent: cfg.Mail.MaxConcurrent,
		KeepArtifacts: cfg.Mail.KeepArtifacts,
	}, wclog.Module(logger, "departure"))

	hub := core.NewHub(core.Options{
		DefaultRoom: cfg.DefaultRoom,
		Transcripts: transcripts,
		Bridges:     bridges,
		Departures:  departures,
		Logger:      wclog.Module(logger, "core"),
	})
	server := transporthttp.NewServer(hub, transcripts, *cfg, wclog.Module(logger, "http"))

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		departures:      departures,
		store:           st,
		log:             logger,
	}, nil
}

func openStore(cfg config.TranscriptConfig) (store.TranscriptLog, error) {
	switch cfg.Backend {
	case "sqlite":
		return sqlite.New(cfg.DBPath)
	default:
		return file.New(afero.NewOsFs(), cfg.Dir)
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
// On shutdown, open connections are cancelled so their departures run, and pending
// mail is drained within the shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.hub.Run(ctx)

	a.server.BaseContext = func(net.Listener) context.Context { return ctx }

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup(context.Background())
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup(shutdownCtx)
			return err
		}

		a.cleanup(shutdownCtx)
		return <-serverErr
	}
}

// cleanup waits for connections and departures, then closes the store.
func (a *App) cleanup(ctx context.Context) {
	if err := a.hub.Wait(ctx); err != nil {
		a.log.Warn().Err(err).Msg("connections still open at shutdown")
	}
	if err := a.departures.Shutdown(ctx); err != nil {
		a.log.Warn().Err(err).Msg("pending transcript mail abandoned")
	} else {
		a.log.Info().Msg("departures drained")
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
