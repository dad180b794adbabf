package provider

import (
	"testing"

	"media-resolver/pkg/models"
)

func TestVideoQuality(t *testing.T) {
	tests := []struct {
		resolution string
		want       string
	}{
		{"4k", "2160"},
		{"720p", "720"},
		{"1080p", "1080"},
		{"", "1080"},
		{"480p", "1080"},
	}

	for _, tt := range tests {
		if got := videoQuality(tt.resolution); got != tt.want {
			t.Errorf("videoQuality(%q) = %q, want %q", tt.resolution, got, tt.want)
		}
	}
}

func TestAudioQuality(t *testing.T) {
	tests := []struct {
		bitrate string
		want    string
	}{
		{"320k", "320"},
		{"192k", "192"},
		{"128k", "128"},
		{"", "128"},
	}

	for _, tt := range tests {
		if got := audioQuality(tt.bitrate); got != tt.want {
			t.Errorf("audioQuality(%q) = %q, want %q", tt.bitrate, got, tt.want)
		}
	}
}

func TestPayloadError(t *testing.T) {
	tests := []struct {
		name    string
		payload any
		want    *models.AttemptError
	}{
		{
			name: "structured error envelope",
			payload: map[string]any{
				"status": "error",
				"error": map[string]any{
					"code": "error.api.content.video.unavailable",
					"text": "video unavailable",
				},
			},
			want: &models.AttemptError{
				Provider: "cobalt",
				Code:     "error.api.content.video.unavailable",
				Text:     "video unavailable",
			},
		},
		{
			name: "string error field",
			payload: map[string]any{
				"status": "error",
				"error":  "something broke",
			},
			want: &models.AttemptError{Provider: "cobalt", Text: "something broke"},
		},
		{
			name:    "tunnel status is not an error",
			payload: map[string]any{"status": "tunnel", "url": "https://x"},
			want:    nil,
		},
		{
			name:    "non-map payload",
			payload: []any{},
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := payloadError("cobalt", tt.payload)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("payloadError() = %v, want %v", got, tt.want)
			}
			if got == nil {
				return
			}
			if got.Code != tt.want.Code || got.Text != tt.want.Text || got.Provider != tt.want.Provider {
				t.Errorf("payloadError() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestChainOrdering(t *testing.T) {
	cfg := &models.Config{}
	cfg.Providers.RapidAPI.Enabled = true
	cfg.Providers.RapidAPI.APIKey = "key"
	cfg.Providers.Cobalt.Enabled = true
	cfg.Providers.Cobalt.Instances = []string{"https://api.cobalt.tools"}

	chain := Chain(cfg, NewClient(cfg))
	if len(chain) != 2 {
		t.Fatalf("chain length = %d, want 2", len(chain))
	}
	if chain[0].Kind() != models.ProviderKeyedAPI {
		t.Errorf("first provider kind = %v, want keyed API first", chain[0].Kind())
	}
	if chain[1].Kind() != models.ProviderPublicInstance {
		t.Errorf("second provider kind = %v, want public instance", chain[1].Kind())
	}
}

func TestChainDisabledProviders(t *testing.T) {
	cfg := &models.Config{}
	cfg.Providers.Cobalt.Enabled = true
	cfg.Providers.Cobalt.Instances = []string{"https://api.cobalt.tools"}

	chain := Chain(cfg, NewClient(cfg))
	if len(chain) != 1 {
		t.Fatalf("chain length = %d, want 1", len(chain))
	}
	if chain[0].Name() != "cobalt" {
		t.Errorf("provider = %q, want cobalt", chain[0].Name())
	}
}

func TestRapidAPIConfigured(t *testing.T) {
	cfg := &models.Config{}
	client := NewClient(cfg)

	keyed := NewRapidAPI("secret", "", client)
	if !keyed.Configured() {
		t.Error("provider with a key reports unconfigured")
	}

	unkeyed := NewRapidAPI("", "", client)
	if unkeyed.Configured() {
		t.Error("provider without a key reports configured")
	}
}

func TestCobaltAlwaysConfigured(t *testing.T) {
	cfg := &models.Config{}
	c := NewCobalt(nil, NewClient(cfg))
	if !c.Configured() {
		t.Error("public instance provider must always report configured")
	}
	if len(c.Endpoints()) == 0 {
		t.Error("nil instances must fall back to the default instance list")
	}
}
