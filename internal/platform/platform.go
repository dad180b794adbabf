package platform

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"media-resolver/pkg/models"
)

// DefaultAllowedDomains is the default platform allowlist. Hostname checks
// are exact match or suffix match on a dot-qualified parent domain; this is
// a security boundary keeping the engine from proxying arbitrary hosts.
var DefaultAllowedDomains = []string{
	"youtube.com", "youtu.be",
	"tiktok.com", "vm.tiktok.com",
	"instagram.com",
	"twitter.com", "x.com",
	"facebook.com", "fb.watch",
	"reddit.com",
	"vimeo.com",
	"twitch.tv", "clips.twitch.tv",
	"soundcloud.com",
	"open.spotify.com",
}

// domainPlatforms maps parent domains to platform tags
var domainPlatforms = map[string]models.Platform{
	"youtube.com":      models.PlatformYouTube,
	"youtu.be":         models.PlatformYouTube,
	"facebook.com":     models.PlatformFacebook,
	"fb.watch":         models.PlatformFacebook,
	"instagram.com":    models.PlatformInstagram,
	"tiktok.com":       models.PlatformTikTok,
	"twitter.com":      models.PlatformTwitter,
	"x.com":            models.PlatformTwitter,
	"reddit.com":       models.PlatformReddit,
	"vimeo.com":        models.PlatformVimeo,
	"twitch.tv":        models.PlatformTwitch,
	"soundcloud.com":   models.PlatformSoundCloud,
	"open.spotify.com": models.PlatformSpotify,
	"spotify.com":      models.PlatformSpotify,
}

// youtubeIDPatterns match the known ID-bearing URL shapes in priority order.
// The video ID is always 11 characters.
var youtubeIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[?&]v=([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`youtu\.be/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`/shorts/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`/embed/([A-Za-z0-9_-]{11})`),
}

// mediaExtensions are raw media file extensions eligible for the
// direct-link shortcut
var mediaExtensions = []string{
	".mp4", ".mp3", ".wav", ".ogg", ".webm", ".jpg", ".jpeg", ".png", ".webp", ".gif",
}

// Classifier validates media URLs against the platform allowlist and
// extracts platform tags and canonical content IDs. Pure; safe for
// concurrent use.
type Classifier struct {
	allowed []string
}

// NewClassifier creates a classifier with the given domain allowlist.
// An empty list falls back to DefaultAllowedDomains.
func NewClassifier(allowedDomains []string) *Classifier {
	if len(allowedDomains) == 0 {
		allowedDomains = DefaultAllowedDomains
	}
	allowed := make([]string, len(allowedDomains))
	for i, d := range allowedDomains {
		allowed[i] = strings.ToLower(d)
	}
	return &Classifier{allowed: allowed}
}

// Classification is the outcome of classifying one input URL
type Classification struct {
	Platform    models.Platform
	CanonicalID string // empty when the platform has no stable ID shape
	DirectMedia bool   // URL path already ends in a raw media extension
}

// Classify validates the input and derives its platform tag. It returns
// false when the input is not an absolute http(s) URL or its host is not on
// the allowlist; zero providers should be contacted in that case.
func (c *Classifier) Classify(rawURL string) (Classification, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Classification{Platform: models.PlatformUnknown}, false
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return Classification{Platform: models.PlatformUnknown}, false
	}

	host := strings.ToLower(u.Hostname())
	if !c.hostAllowed(host) {
		return Classification{Platform: detectPlatform(host)}, false
	}

	cls := Classification{
		Platform:    detectPlatform(host),
		DirectMedia: IsDirectMedia(rawURL),
	}
	if cls.Platform == models.PlatformYouTube {
		cls.CanonicalID = extractYouTubeID(rawURL)
	}
	return cls, true
}

// hostAllowed checks exact match or dot-qualified suffix match
func (c *Classifier) hostAllowed(host string) bool {
	for _, domain := range c.allowed {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// detectPlatform derives the platform tag from the hostname. UNKNOWN is a
// valid terminal classification, not an error.
func detectPlatform(host string) models.Platform {
	for domain, platform := range domainPlatforms {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return platform
		}
	}
	return models.PlatformUnknown
}

// extractYouTubeID returns the 11-character video ID via the first matching
// pattern, or empty if no shape matches. A missing ID is not a failure; the
// providers consume the full URL directly.
func extractYouTubeID(rawURL string) string {
	for _, pattern := range youtubeIDPatterns {
		if m := pattern.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
	}
	return ""
}

// IsDirectMedia reports whether the URL path already points at a raw media
// file, so the whole provider chain can be bypassed.
func IsDirectMedia(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	for _, known := range mediaExtensions {
		if ext == known {
			return true
		}
	}
	return false
}
