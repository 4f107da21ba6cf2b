package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrMissingCredential is returned by Validate when a required external-service
// credential is absent. The server cannot start without it.
var ErrMissingCredential = errors.New("missing required credential")

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`
	DefaultRoom       string        `mapstructure:"default_room" yaml:"default_room"`
	TimeZone          string        `mapstructure:"time_zone" yaml:"time_zone"`

	WS         WSConfig         `mapstructure:"ws" yaml:"ws"`
	Transcript TranscriptConfig `mapstructure:"transcript" yaml:"transcript"`
	Deepgram   DeepgramConfig   `mapstructure:"deepgram" yaml:"deepgram"`
	Mail       MailConfig       `mapstructure:"mail" yaml:"mail"`
}

// WSConfig tunes the client WebSocket endpoint.
type WSConfig struct {
	MaxMessageBytes int64 `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	// RateLimit caps inbound text messages per minute per connection; 0 disables it.
	RateLimit   int `mapstructure:"rate_limit" yaml:"rate_limit"`
	EventBuffer int `mapstructure:"event_buffer" yaml:"event_buffer"`
}

// TranscriptConfig selects where room transcripts are persisted.
type TranscriptConfig struct {
	Backend       string `mapstructure:"backend" yaml:"backend"` // file or sqlite
	Dir           string `mapstructure:"dir" yaml:"dir"`
	DBPath        string `mapstructure:"db_path" yaml:"db_path"`
	RetainOnEmpty bool   `mapstructure:"retain_on_empty" yaml:"retain_on_empty"`
}

// DeepgramConfig configures the streaming speech-to-text session.
type DeepgramConfig struct {
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	URL         string        `mapstructure:"url" yaml:"url"`
	Language    string        `mapstructure:"language" yaml:"language"`
	Encoding    string        `mapstructure:"encoding" yaml:"encoding"`
	SampleRate  int           `mapstructure:"sample_rate" yaml:"sample_rate"`
	OpenTimeout time.Duration `mapstructure:"open_timeout" yaml:"open_timeout"`
}

// MailConfig configures outbound transcript delivery.
type MailConfig struct {
	Host          string        `mapstructure:"host" yaml:"host"`
	Port          int           `mapstructure:"port" yaml:"port"`
	Username      string        `mapstructure:"username" yaml:"username"`
	Password      string        `mapstructure:"password" yaml:"password"`
	From          string        `mapstructure:"from" yaml:"from"`
	Subject       string        `mapstructure:"subject" yaml:"subject"`
	SendTimeout   time.Duration `mapstructure:"send_timeout" yaml:"send_timeout"`
	MaxConcurrent int64         `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	ArtifactDir   string        `mapstructure:"artifact_dir" yaml:"artifact_dir"`
	KeepArtifacts bool          `mapstructure:"keep_artifacts" yaml:"keep_artifacts"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		DefaultRoom:       "smartmom",
		TimeZone:          "Asia/Kolkata",
		WS: WSConfig{
			MaxMessageBytes: 1 << 20,
			RateLimit:       600,
			EventBuffer:     32,
		},
		Transcript: TranscriptConfig{
			Backend:       "file",
			Dir:           "transcripts",
			DBPath:        "transcripts.db",
			RetainOnEmpty: true,
		},
		Deepgram: DeepgramConfig{
			URL:         "wss://api.deepgram.com/v1/listen",
			Language:    "en-IN",
			SampleRate:  16000,
			OpenTimeout: 10 * time.Second,
		},
		Mail: MailConfig{
			Host:          "smtp-mail.outlook.com",
			Port:          587,
			Subject:       "TRANSCRIPT OF THE MEETING",
			SendTimeout:   30 * time.Second,
			MaxConcurrent: 4,
			ArtifactDir:   "artifacts",
		},
	}
}

// Validate reports configuration the server cannot run without.
func (c *Config) Validate() error {
	if c.Deepgram.APIKey == "" {
		return fmt.Errorf("deepgram api key (DG_KEY): %w", ErrMissingCredential)
	}
	switch c.Transcript.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("unknown transcript backend %q", c.Transcript.Backend)
	}
	return nil
}

// MailFrom returns the sender address, falling back to the SMTP username.
func (c *Config) MailFrom() string {
	if c.Mail.From != "" {
		return c.Mail.From
	}
	return c.Mail.Username
}
