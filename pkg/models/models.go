package models

import (
	"fmt"
	"time"
)

// Platform represents the supported source platforms
type Platform string

const (
	PlatformYouTube    Platform = "youtube"
	PlatformFacebook   Platform = "facebook"
	PlatformInstagram  Platform = "instagram"
	PlatformTikTok     Platform = "tiktok"
	PlatformTwitter    Platform = "twitter"
	PlatformReddit     Platform = "reddit"
	PlatformVimeo      Platform = "vimeo"
	PlatformTwitch     Platform = "twitch"
	PlatformSoundCloud Platform = "soundcloud"
	PlatformSpotify    Platform = "spotify"
	PlatformUnknown    Platform = "unknown"
)

// FileFormat represents the desired output format
type FileFormat string

const (
	FormatMP3  FileFormat = "MP3"
	FormatMP4  FileFormat = "MP4"
	FormatJPEG FileFormat = "JPEG"
	FormatPNG  FileFormat = "PNG"
	FormatWEBP FileFormat = "WEBP"
)

// Extension returns the lowercase file extension for the format
func (f FileFormat) Extension() string {
	switch f {
	case FormatMP3:
		return "mp3"
	case FormatJPEG:
		return "jpeg"
	case FormatPNG:
		return "png"
	case FormatWEBP:
		return "webp"
	default:
		return "mp4"
	}
}

// IsAudio reports whether the format is audio-only
func (f FileFormat) IsAudio() bool {
	return f == FormatMP3
}

// ConversionOptions holds optional quality knobs for a resolution
type ConversionOptions struct {
	Resolution   string `json:"resolution,omitempty"`    // 720p, 1080p, 4k
	Bitrate      string `json:"bitrate,omitempty"`       // 128k, 192k, 320k
	Codec        string `json:"codec,omitempty"`         // AAC, OPUS, MP3
	ImageQuality string `json:"image_quality,omitempty"` // LOW, MEDIUM, HIGH
	Mute         bool   `json:"mute,omitempty"`
}

// ResolutionRequest describes one media URL to resolve.
// Immutable once constructed; owned by the caller for one resolution.
type ResolutionRequest struct {
	URL     string            `json:"url"`
	Format  FileFormat        `json:"format"`
	Options ConversionOptions `json:"options"`
}

// ResolutionResult is the sole artifact returned to callers. The download
// URL is time-limited by the issuing provider; it is valid at return time
// and carries no freshness guarantee beyond that.
type ResolutionResult struct {
	DownloadURL string `json:"download_url"`
	Filename    string `json:"filename"`
	FileSize    string `json:"file_size"` // human label, or "Unknown"/"Direct Link"/"Variable"
	Provider    string `json:"provider"`  // name of the provider that served the result
}

// FailureClass categorizes a failed provider attempt or resolution
type FailureClass string

const (
	// FailureTransientProvider means the next provider should be tried
	FailureTransientProvider FailureClass = "transient_provider"
	// FailureContentUnavailable is authoritative: the content itself cannot
	// be served, so the whole chain aborts
	FailureContentUnavailable FailureClass = "content_unavailable"
	// FailureRateLimited aborts and is surfaced to the caller with a
	// retry-after hint
	FailureRateLimited FailureClass = "rate_limited"
	// FailureMalformedResponse is treated like a transient provider failure
	FailureMalformedResponse FailureClass = "malformed_response"
	// FailureConfigurationMissing skips the provider without counting it as
	// a failed attempt
	FailureConfigurationMissing FailureClass = "configuration_missing"
	// FailureInvalidInput is a caller error and is never retried
	FailureInvalidInput FailureClass = "invalid_input"
)

// AttemptError captures a failed provider attempt where the provider
// actually replied. Transport failures stay plain errors.
type AttemptError struct {
	Provider string
	Status   int    // HTTP status, 0 if the failure was in the payload
	Code     string // payload-embedded error code, if any
	Text     string // payload-embedded error text, if any
}

func (e *AttemptError) Error() string {
	switch {
	case e.Code != "":
		return fmt.Sprintf("%s: %s", e.Provider, e.Code)
	case e.Text != "":
		return fmt.Sprintf("%s: %s", e.Provider, e.Text)
	default:
		return fmt.Sprintf("%s: status %d", e.Provider, e.Status)
	}
}

// ProviderKind distinguishes commercial keyed APIs from public instances
type ProviderKind string

const (
	ProviderKeyedAPI       ProviderKind = "keyed_api"
	ProviderPublicInstance ProviderKind = "public_instance"
)

// ProviderSpec is static provider configuration, read-only after startup
type ProviderSpec struct {
	Name      string
	Kind      ProviderKind
	Endpoints []string // ordered URL templates, tried as sub-attempts
}

// ResolutionRecord is one resolution stored in history
type ResolutionRecord struct {
	ID           string       `json:"id" gorm:"primaryKey"`
	URL          string       `json:"url" gorm:"index"`
	Platform     Platform     `json:"platform" gorm:"index"`
	Format       FileFormat   `json:"format"`
	Status       string       `json:"status" gorm:"index"` // success or failed
	FailureClass FailureClass `json:"failure_class,omitempty"`
	Provider     string       `json:"provider,omitempty"`
	DownloadURL  string       `json:"download_url,omitempty"`
	Filename     string       `json:"filename,omitempty"`
	FileSize     string       `json:"file_size,omitempty"`
	ClientID     string       `json:"client_id" gorm:"index"`
	Duration     int64        `json:"duration_ms"`
	CreatedAt    time.Time    `json:"created_at" gorm:"autoCreateTime;index"`
}

// RecordStatus values for ResolutionRecord.Status
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Stats represents aggregate resolution statistics
type Stats struct {
	TotalResolutions  int64            `json:"total_resolutions"`
	SuccessCount      int64            `json:"success_count"`
	FailedCount       int64            `json:"failed_count"`
	SuccessRate       float64          `json:"success_rate"`
	ResolutionsToday  int64            `json:"resolutions_today"`
	ByPlatform        map[string]int64 `json:"by_platform"`
	AvgDurationMillis float64          `json:"avg_duration_ms"`
}

// User represents a user account for the protected API surface
type User struct {
	ID        string     `json:"id" gorm:"primaryKey"`
	Username  string     `json:"username" gorm:"uniqueIndex"`
	Password  string     `json:"-" gorm:"not null"`
	Role      string     `json:"role" gorm:"default:user"`
	Active    bool       `json:"active" gorm:"default:true"`
	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	LastLogin *time.Time `json:"last_login"`
}

// Config represents the application configuration
type Config struct {
	Server struct {
		Host         string `mapstructure:"host" yaml:"host"`
		Port         int    `mapstructure:"port" yaml:"port"`
		ReadTimeout  int    `mapstructure:"read_timeout" yaml:"read_timeout"`
		WriteTimeout int    `mapstructure:"write_timeout" yaml:"write_timeout"`
	} `mapstructure:"server" yaml:"server"`

	Resolver struct {
		AttemptTimeout int `mapstructure:"attempt_timeout" yaml:"attempt_timeout"` // seconds, per provider attempt
		TotalTimeout   int `mapstructure:"total_timeout" yaml:"total_timeout"`     // seconds, whole chain
	} `mapstructure:"resolver" yaml:"resolver"`

	Providers struct {
		RapidAPI struct {
			Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
			APIKey  string `mapstructure:"api_key" yaml:"api_key"`
			APIHost string `mapstructure:"api_host" yaml:"api_host"`
		} `mapstructure:"rapidapi" yaml:"rapidapi"`

		Cobalt struct {
			Enabled   bool     `mapstructure:"enabled" yaml:"enabled"`
			Instances []string `mapstructure:"instances" yaml:"instances"`
		} `mapstructure:"cobalt" yaml:"cobalt"`
	} `mapstructure:"providers" yaml:"providers"`

	Platforms struct {
		AllowedDomains []string `mapstructure:"allowed_domains" yaml:"allowed_domains"`
	} `mapstructure:"platforms" yaml:"platforms"`

	Database struct {
		Path     string `mapstructure:"path" yaml:"path"`
		MaxConns int    `mapstructure:"max_conns" yaml:"max_conns"`
	} `mapstructure:"database" yaml:"database"`

	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
		Output string `mapstructure:"output" yaml:"output"`
	} `mapstructure:"log" yaml:"log"`

	Proxy struct {
		Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
		URL     string `mapstructure:"url" yaml:"url"`
	} `mapstructure:"proxy" yaml:"proxy"`

	Auth struct {
		Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
		JWTSecret     string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
		TokenExpiry   int    `mapstructure:"token_expiry" yaml:"token_expiry"`
		AdminPassword string `mapstructure:"admin_password" yaml:"admin_password"`
	} `mapstructure:"auth" yaml:"auth"`

	RateLimit struct {
		Enabled           bool     `mapstructure:"enabled" yaml:"enabled"`
		RequestsPerWindow int      `mapstructure:"requests_per_window" yaml:"requests_per_window"`
		WindowSeconds     int      `mapstructure:"window_seconds" yaml:"window_seconds"`
		APIRequestsPerSec int      `mapstructure:"api_requests_per_second" yaml:"api_requests_per_second"`
		APIBurst          int      `mapstructure:"api_burst" yaml:"api_burst"`
		WhitelistedIPs    []string `mapstructure:"whitelisted_ips" yaml:"whitelisted_ips"`
	} `mapstructure:"rate_limit" yaml:"rate_limit"`
}
