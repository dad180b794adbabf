package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"media-resolver/internal/utils"
	"media-resolver/pkg/models"
)

// DefaultCobaltInstances are the public community instances tried in order
var DefaultCobaltInstances = []string{
	"https://api.cobalt.tools",
	"https://cobalt-api.kwiatekmiki.com",
}

// Cobalt is the public-instance fallback backend. Path conventions differ
// between community instances, so each instance is a separate endpoint
// template tried as a sub-attempt.
type Cobalt struct {
	instances []string
	client    *utils.HTTPClient
	logger    zerolog.Logger
}

// NewCobalt creates the Cobalt provider over the given instance list
func NewCobalt(instances []string, client *utils.HTTPClient) *Cobalt {
	if len(instances) == 0 {
		instances = DefaultCobaltInstances
	}
	return &Cobalt{
		instances: instances,
		client:    client,
		logger:    zerolog.New(os.Stdout).With().Timestamp().Str("provider", "cobalt").Logger(),
	}
}

// Name returns the provider name
func (p *Cobalt) Name() string { return "cobalt" }

// Kind returns the provider kind
func (p *Cobalt) Kind() models.ProviderKind { return models.ProviderPublicInstance }

// Configured always reports true; public instances need no credentials
func (p *Cobalt) Configured() bool { return true }

// Endpoints returns the configured instance URLs in priority order
func (p *Cobalt) Endpoints() []string { return p.instances }

// cobaltRequest is the instance request body
type cobaltRequest struct {
	URL           string `json:"url"`
	DownloadMode  string `json:"downloadMode"`
	AudioFormat   string `json:"audioFormat"`
	VideoQuality  string `json:"videoQuality"`
	FilenameStyle string `json:"filenameStyle"`
}

// Fetch performs one extraction attempt against the given instance
func (p *Cobalt) Fetch(ctx context.Context, endpoint string, req *models.ResolutionRequest) (any, error) {
	body := cobaltRequest{
		URL:           req.URL,
		DownloadMode:  "auto",
		AudioFormat:   "best",
		VideoQuality:  videoQuality(req.Options.Resolution),
		FilenameStyle: "basic",
	}
	if req.Format.IsAudio() {
		body.DownloadMode = "audio"
		body.AudioFormat = "mp3"
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("cobalt encode: %w", err)
	}

	headers := map[string]string{"Accept": "application/json"}
	resp, err := p.client.Post(ctx, endpoint, "application/json", bytes.NewReader(encoded), headers)
	if err != nil {
		return nil, fmt.Errorf("cobalt request: %w", err)
	}
	defer resp.Body.Close()

	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &models.AttemptError{Provider: p.Name(), Status: resp.StatusCode}
		}
		return nil, fmt.Errorf("cobalt decode: %w", err)
	}

	// Instances report failures in the payload, usually alongside a 4xx
	if attemptErr := payloadError(p.Name(), payload); attemptErr != nil {
		attemptErr.Status = resp.StatusCode
		p.logger.Debug().Str("code", attemptErr.Code).Int("status", resp.StatusCode).Msg("Instance reported error")
		return nil, attemptErr
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &models.AttemptError{Provider: p.Name(), Status: resp.StatusCode}
	}

	return payload, nil
}
