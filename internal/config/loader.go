package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envConfigDefaultPath = "MINUTES_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
	envPrefix            = "MINUTES"
)

// legacyEnv maps config keys to the bare environment names older deployments use.
var legacyEnv = map[string]string{
	"deepgram.api_key": "DG_KEY",
	"mail.username":    "EMAILID",
	"mail.password":    "PASSWORD",
}

// Load builds configuration from defaults, optional config file, .env file and env vars,
// and returns the resolved path.
// Precedence: defaults < config file < env vars (.env included) < caller overrides.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, "", fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		if err := v.BindEnv(key, envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), legacy); err != nil {
			return cfg, "", fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}

	// PORT overrides the default addr unless MINUTES_ADDR is set.
	if port := os.Getenv("PORT"); port != "" && os.Getenv(envPrefix+"_ADDR") == "" {
		cfg.Addr = ":" + port
	}

	return cfg, configPath, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("read_header_timeout", cfg.ReadHeaderTimeout)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("default_room", cfg.DefaultRoom)
	v.SetDefault("time_zone", cfg.TimeZone)

	v.SetDefault("ws.max_message_bytes", cfg.WS.MaxMessageBytes)
	v.SetDefault("ws.rate_limit", cfg.WS.RateLimit)
	v.SetDefault("ws.event_buffer", cfg.WS.EventBuffer)

	v.SetDefault("transcript.backend", cfg.Transcript.Backend)
	v.SetDefault("transcript.dir", cfg.Transcript.Dir)
	v.SetDefault("transcript.db_path", cfg.Transcript.DBPath)
	v.SetDefault("transcript.retain_on_empty", cfg.Transcript.RetainOnEmpty)

	v.SetDefault("deepgram.api_key", cfg.Deepgram.APIKey)
	v.SetDefault("deepgram.url", cfg.Deepgram.URL)
	v.SetDefault("deepgram.language", cfg.Deepgram.Language)
	v.SetDefault("deepgram.encoding", cfg.Deepgram.Encoding)
	v.SetDefault("deepgram.sample_rate", cfg.Deepgram.SampleRate)
	v.SetDefault("deepgram.open_timeout", cfg.Deepgram.OpenTimeout)

	v.SetDefault("mail.host", cfg.Mail.Host)
	v.SetDefault("mail.port", cfg.Mail.Port)
	v.SetDefault("mail.username", cfg.Mail.Username)
	v.SetDefault("mail.password", cfg.Mail.Password)
	v.SetDefault("mail.from", cfg.Mail.From)
	v.SetDefault("mail.subject", cfg.Mail.Subject)
	v.SetDefault("mail.send_timeout", cfg.Mail.SendTimeout)
	v.SetDefault("mail.max_concurrent", cfg.Mail.MaxConcurrent)
	v.SetDefault("mail.artifact_dir", cfg.Mail.ArtifactDir)
	v.SetDefault("mail.keep_artifacts", cfg.Mail.KeepArtifacts)
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

// writeDefaultConfig never persists credentials; they belong in env vars.
func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	cfg.Deepgram.APIKey = ""
	cfg.Mail.Password = ""
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
