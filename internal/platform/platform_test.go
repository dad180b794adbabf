package platform

import (
	"testing"

	"media-resolver/pkg/models"
)

func TestClassifyPlatforms(t *testing.T) {
	c := NewClassifier(nil)

	tests := []struct {
		name     string
		url      string
		platform models.Platform
		ok       bool
	}{
		{
			name:     "youtube watch URL",
			url:      "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			platform: models.PlatformYouTube,
			ok:       true,
		},
		{
			name:     "youtube short link",
			url:      "https://youtu.be/dQw4w9WgXcQ",
			platform: models.PlatformYouTube,
			ok:       true,
		},
		{
			name:     "tiktok video",
			url:      "https://www.tiktok.com/@user/video/1234567890",
			platform: models.PlatformTikTok,
			ok:       true,
		},
		{
			name:     "twitter status",
			url:      "https://twitter.com/user/status/123",
			platform: models.PlatformTwitter,
			ok:       true,
		},
		{
			name:     "x.com status",
			url:      "https://x.com/user/status/123",
			platform: models.PlatformTwitter,
			ok:       true,
		},
		{
			name:     "spotify track",
			url:      "https://open.spotify.com/track/abc",
			platform: models.PlatformSpotify,
			ok:       true,
		},
		{
			name:     "unlisted host rejected",
			url:      "https://evil.example.com/watch?v=dQw4w9WgXcQ",
			platform: models.PlatformUnknown,
			ok:       false,
		},
		{
			name:     "relative URL rejected",
			url:      "/watch?v=dQw4w9WgXcQ",
			platform: models.PlatformUnknown,
			ok:       false,
		},
		{
			name:     "ftp scheme rejected",
			url:      "ftp://youtube.com/video",
			platform: models.PlatformUnknown,
			ok:       false,
		},
		{
			name:     "empty string rejected",
			url:      "",
			platform: models.PlatformUnknown,
			ok:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls, ok := c.Classify(tt.url)
			if ok != tt.ok {
				t.Errorf("Classify(%q) ok = %v, want %v", tt.url, ok, tt.ok)
			}
			if cls.Platform != tt.platform {
				t.Errorf("Classify(%q) platform = %v, want %v", tt.url, cls.Platform, tt.platform)
			}
		})
	}
}

func TestHostSuffixMatching(t *testing.T) {
	c := NewClassifier(nil)

	// Subdomains of allowed domains pass, lookalike hosts do not
	tests := []struct {
		url string
		ok  bool
	}{
		{"https://music.youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"https://m.youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"https://notyoutube.com/watch?v=dQw4w9WgXcQ", false},
		{"https://youtube.com.evil.net/watch?v=dQw4w9WgXcQ", false},
	}

	for _, tt := range tests {
		_, ok := c.Classify(tt.url)
		if ok != tt.ok {
			t.Errorf("Classify(%q) ok = %v, want %v", tt.url, ok, tt.ok)
		}
	}
}

func TestExtractYouTubeID(t *testing.T) {
	c := NewClassifier(nil)

	tests := []struct {
		name string
		url  string
		id   string
	}{
		{"watch param", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"watch param with extras", "https://www.youtube.com/watch?list=PL1&v=dQw4w9WgXcQ&t=10", "dQw4w9WgXcQ"},
		{"short link", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"shorts path", "https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"embed path", "https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"channel page has no ID", "https://www.youtube.com/@somechannel", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls, ok := c.Classify(tt.url)
			if !ok {
				t.Fatalf("Classify(%q) rejected", tt.url)
			}
			if cls.CanonicalID != tt.id {
				t.Errorf("CanonicalID = %q, want %q", cls.CanonicalID, tt.id)
			}
		})
	}
}

func TestIsDirectMedia(t *testing.T) {
	tests := []struct {
		url    string
		direct bool
	}{
		{"https://cdn.youtube.com/clip.mp4", true},
		{"https://youtube.com/audio.MP3", true},
		{"https://youtube.com/image.webp", true},
		{"https://youtube.com/watch?v=dQw4w9WgXcQ", false},
		{"https://youtube.com/file.mp4?sig=abc", true},
		{"https://youtube.com/file.txt", false},
	}

	for _, tt := range tests {
		if got := IsDirectMedia(tt.url); got != tt.direct {
			t.Errorf("IsDirectMedia(%q) = %v, want %v", tt.url, got, tt.direct)
		}
	}
}

func TestCustomAllowlist(t *testing.T) {
	c := NewClassifier([]string{"vimeo.com"})

	if _, ok := c.Classify("https://vimeo.com/12345"); !ok {
		t.Error("expected vimeo.com to be allowed")
	}
	if _, ok := c.Classify("https://www.youtube.com/watch?v=dQw4w9WgXcQ"); ok {
		t.Error("expected youtube.com to be rejected with a custom allowlist")
	}
}
