package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"media-resolver/internal/platform"
	"media-resolver/internal/provider"
	"media-resolver/pkg/models"
)

// Manager manages application configuration
type Manager struct {
	config *models.Config
	viper  *viper.Viper
	logger zerolog.Logger
}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{
		config: &models.Config{},
		viper:  viper.New(),
		logger: zerolog.New(os.Stdout).With().Timestamp().Logger(),
	}
}

// Load loads configuration from file and environment
func (m *Manager) Load(configPath string) (*models.Config, error) {
	m.setDefaults()

	m.viper.SetConfigName("config")
	m.viper.SetConfigType("yaml")

	if configPath != "" {
		m.viper.AddConfigPath(configPath)
	} else {
		m.viper.AddConfigPath(".")
		m.viper.AddConfigPath("./config")
		m.viper.AddConfigPath("$HOME/.media-resolver")
		m.viper.AddConfigPath("/etc/media-resolver")
	}

	m.viper.AutomaticEnv()
	m.viper.SetEnvPrefix("MR")

	if err := m.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := m.createDefaultConfig(); err != nil {
			m.logger.Warn().Msgf("Failed to create default config: %v", err)
		}
	}

	if err := m.viper.Unmarshal(m.config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := m.ensureDirectories(); err != nil {
		return nil, fmt.Errorf("error ensuring directories: %w", err)
	}

	m.configureLogger()

	return m.config, nil
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *models.Config {
	return m.config
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	m.viper.SetDefault("server.host", "0.0.0.0")
	m.viper.SetDefault("server.port", 8080)
	m.viper.SetDefault("server.read_timeout", 30)
	m.viper.SetDefault("server.write_timeout", 60)

	// Resolver defaults
	m.viper.SetDefault("resolver.attempt_timeout", 10)
	m.viper.SetDefault("resolver.total_timeout", 45)

	// Provider defaults
	m.viper.SetDefault("providers.rapidapi.enabled", true)
	m.viper.SetDefault("providers.rapidapi.api_key", "")
	m.viper.SetDefault("providers.rapidapi.api_host", "youtube-media-downloader.p.rapidapi.com")
	m.viper.SetDefault("providers.cobalt.enabled", true)
	m.viper.SetDefault("providers.cobalt.instances", provider.DefaultCobaltInstances)

	// Platform defaults
	m.viper.SetDefault("platforms.allowed_domains", platform.DefaultAllowedDomains)

	// Database defaults
	m.viper.SetDefault("database.path", "./data/media-resolver.db")
	m.viper.SetDefault("database.max_conns", 10)

	// Log defaults
	m.viper.SetDefault("log.level", "info")
	m.viper.SetDefault("log.format", "text")
	m.viper.SetDefault("log.output", "stdout")

	// Auth defaults
	m.viper.SetDefault("auth.enabled", true)
	m.viper.SetDefault("auth.jwt_secret", "change-this-secret-in-production")
	m.viper.SetDefault("auth.token_expiry", 24)
	m.viper.SetDefault("auth.admin_password", "admin123")

	// Rate limit defaults
	m.viper.SetDefault("rate_limit.enabled", true)
	m.viper.SetDefault("rate_limit.requests_per_window", 10)
	m.viper.SetDefault("rate_limit.window_seconds", 60)
	m.viper.SetDefault("rate_limit.api_requests_per_second", 10)
	m.viper.SetDefault("rate_limit.api_burst", 30)
	m.viper.SetDefault("rate_limit.whitelisted_ips", []string{"127.0.0.1", "::1"})
}

// createDefaultConfig creates a default configuration file
func (m *Manager) createDefaultConfig() error {
	configDir := "./config"
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	configFile := filepath.Join(configDir, "config.yaml")

	defaultConfig := `# Media Resolver Configuration

server:
  host: 0.0.0.0
  port: 8080
  read_timeout: 30
  write_timeout: 60

resolver:
  attempt_timeout: 10   # seconds per provider attempt
  total_timeout: 45     # seconds for the whole fallback chain

providers:
  rapidapi:
    enabled: true
    api_key: ""         # provider is skipped while unset
    api_host: youtube-media-downloader.p.rapidapi.com

  cobalt:
    enabled: true
    instances:
      - https://api.cobalt.tools
      - https://cobalt-api.kwiatekmiki.com

platforms:
  allowed_domains:
    - youtube.com
    - youtu.be
    - tiktok.com
    - vm.tiktok.com
    - instagram.com
    - twitter.com
    - x.com
    - facebook.com
    - fb.watch
    - reddit.com
    - vimeo.com
    - twitch.tv
    - clips.twitch.tv
    - soundcloud.com
    - open.spotify.com

database:
  path: ./data/media-resolver.db
  max_conns: 10

log:
  level: info
  format: text
  output: stdout

proxy:
  enabled: false
  url: ""

auth:
  enabled: true
  jwt_secret: "change-this-secret-in-production"
  token_expiry: 24
  admin_password: "admin123"

rate_limit:
  enabled: true
  requests_per_window: 10
  window_seconds: 60
  api_requests_per_second: 10
  api_burst: 30
  whitelisted_ips:
    - "127.0.0.1"
    - "::1"
`

	if err := os.WriteFile(configFile, []byte(defaultConfig), 0644); err != nil {
		return fmt.Errorf("error writing default config: %w", err)
	}

	m.logger.Info().Msgf("Created default config file at: %s", configFile)
	return nil
}

// ensureDirectories ensures all required directories exist
func (m *Manager) ensureDirectories() error {
	dirs := []string{
		filepath.Dir(m.config.Database.Path),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating directory %s: %w", dir, err)
		}
	}

	return nil
}

// configureLogger configures the logger based on settings
func (m *Manager) configureLogger() {
	level, err := zerolog.ParseLevel(m.config.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if m.config.Log.Format != "json" {
		m.logger = m.logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if m.config.Log.Output != "stdout" {
		file, err := os.OpenFile(m.config.Log.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			m.logger = m.logger.Output(file)
		}
	}
}

// GetLogger returns the logger instance
func (m *Manager) GetLogger() zerolog.Logger {
	return m.logger
}
