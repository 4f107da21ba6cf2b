// Package departure delivers a departing participant's share of the room transcript
// by mail.
package departure

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/semaphore"

	"github.com/vovakirdan/wirechat-minutes/internal/core"
	"github.com/vovakirdan/wirechat-minutes/internal/mailer"
)

// AttachmentName is the file name recipients see.
const AttachmentName = "transcript.txt"

// Slicer reads the part of a room transcript that starts at a participant's join line.
type Slicer interface {
	Slice(ctx context.Context, room, name string, joinedAt time.Time) (string, error)
}

// Outcome is the result of one departure.
type Outcome int

const (
	OutcomeSent Outcome = iota
	OutcomeSentWithoutAttachment
	OutcomeFailed
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	case OutcomeSentWithoutAttachment:
		return "sent_without_attachment"
	case OutcomeFailed:
		return "failed"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Config tunes the pipeline.
type Config struct {
	From          string
	Subject       string
	ArtifactDir   string
	SendTimeout   time.Duration
	MaxConcurrent int64
	KeepArtifacts bool
}

// Pipeline runs once per disconnected participant. The transcript slice is taken
// synchronously; artifact handling and mail delivery run in the background.
type Pipeline struct {
	slicer Slicer
	mail   mailer.Mailer
	fs     afero.Fs
	cfg    Config
	sem    *semaphore.Weighted
	log    *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// observe, when set, receives every finished departure.
	observe func(core.Identity, Outcome)
}

// New builds a pipeline.
func New(slicer Slicer, m mailer.Mailer, fs afero.Fs, cfg Config, logger *zerolog.Logger) *Pipeline {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		slicer: slicer,
		mail:   m,
		fs:     fs,
		cfg:    cfg,
		sem:    semaphore.NewWeighted(cfg.MaxConcurrent),
		log:    logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Depart reads the slice for ident and schedules its delivery.
func (p *Pipeline) Depart(ident core.Identity) {
	slice, err := p.slicer.Slice(p.ctx, ident.Room, ident.Name, ident.JoinedAt)
	if err != nil {
		p.log.Warn().Err(err).Str("conn_id", ident.ConnID).Str("room", ident.Room).Msg("transcript slice unavailable, sending empty")
		slice = ""
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		outcome := p.Deliver(p.ctx, ident, slice)
		if p.observe != nil {
			p.observe(ident, outcome)
		}
	}()
}

// Deliver writes the artifact and mails it, retrying once without the attachment.
func (p *Pipeline) Deliver(ctx context.Context, ident core.Identity, slice string) Outcome {
	logger := p.log.With().Str("conn_id", ident.ConnID).Str("room", ident.Room).Str("to", ident.Email).Logger()

	if ident.Email == "" {
		logger.Warn().Msg("no contact address, transcript not sent")
		return OutcomeSkipped
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		logger.Warn().Err(err).Msg("departure aborted")
		return OutcomeFailed
	}
	defer p.sem.Release(1)

	path := p.artifactPath(ident.ConnID)
	data := []byte(slice)
	if err := p.writeArtifact(path, data); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("failed to write transcript artifact")
	} else if stored, err := afero.ReadFile(p.fs, path); err == nil {
		data = stored
	}

	msg := mailer.Message{
		From:       p.cfg.From,
		To:         ident.Email,
		Subject:    p.cfg.Subject,
		Body:       Body(ident.Name),
		Attachment: &mailer.Attachment{Name: AttachmentName, Data: data},
	}

	outcome := OutcomeSent
	if err := p.send(ctx, msg); err != nil {
		logger.Warn().Err(err).Msg("transcript mail failed, retrying without attachment")
		if err := p.send(ctx, msg.WithoutAttachment()); err != nil {
			logger.Error().Err(err).Msg("transcript mail failed")
			return OutcomeFailed
		}
		outcome = OutcomeSentWithoutAttachment
	}

	logger.Info().Str("outcome", outcome.String()).Msg("transcript mail sent")
	if !p.cfg.KeepArtifacts {
		p.removeArtifact(path, &logger)
	}
	return outcome
}

// Shutdown waits for in-flight deliveries. When ctx expires first the remaining
// deliveries are cancelled.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

// Body is the mail text addressed to name.
func Body(name string) string {
	return fmt.Sprintf("Hello %s, here is your auto-generated minutes of the meeting attached below.", name)
}

func (p *Pipeline) send(ctx context.Context, msg mailer.Message) error {
	if p.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.SendTimeout)
		defer cancel()
	}
	return p.mail.Send(ctx, msg)
}

func (p *Pipeline) artifactPath(connID string) string {
	return filepath.Join(p.cfg.ArtifactDir, connID+".txt")
}

func (p *Pipeline) writeArtifact(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := p.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create artifact dir: %w", err)
		}
	}
	return afero.WriteFile(p.fs, path, data, 0o644)
}

func (p *Pipeline) removeArtifact(path string, logger *zerolog.Logger) {
	if err := p.fs.Remove(path); err != nil {
		logger.Debug().Err(err).Str("path", path).Msg("artifact cleanup skipped")
	}
}
