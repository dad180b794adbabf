package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"media-resolver/internal/utils"
	"media-resolver/pkg/models"
)

const defaultRapidAPIHost = "youtube-media-downloader.p.rapidapi.com"

// RapidAPI is the keyed commercial extraction backend. It is tried first
// when a credential is configured.
type RapidAPI struct {
	apiKey  string
	apiHost string
	client  *utils.HTTPClient
	logger  zerolog.Logger
}

// NewRapidAPI creates the RapidAPI provider
func NewRapidAPI(apiKey, apiHost string, client *utils.HTTPClient) *RapidAPI {
	if apiHost == "" {
		apiHost = defaultRapidAPIHost
	}
	return &RapidAPI{
		apiKey:  apiKey,
		apiHost: apiHost,
		client:  client,
		logger:  zerolog.New(os.Stdout).With().Timestamp().Str("provider", "rapidapi").Logger(),
	}
}

// Name returns the provider name
func (p *RapidAPI) Name() string { return "rapidapi" }

// Kind returns the provider kind
func (p *RapidAPI) Kind() models.ProviderKind { return models.ProviderKeyedAPI }

// Configured reports whether the API key is present
func (p *RapidAPI) Configured() bool { return p.apiKey != "" }

// Endpoints returns the single download endpoint template
func (p *RapidAPI) Endpoints() []string {
	return []string{fmt.Sprintf("https://%s/ajax/download.php", p.apiHost)}
}

// Fetch performs one extraction attempt against the endpoint
func (p *RapidAPI) Fetch(ctx context.Context, endpoint string, req *models.ResolutionRequest) (any, error) {
	params := map[string]string{
		"url":                     req.URL,
		"add_info":                "0",
		"allow_extended_duration": "false",
		"no_merge":                "false",
	}
	if req.Format.IsAudio() {
		params["format"] = "mp3"
		params["audio_quality"] = audioQuality(req.Options.Bitrate)
		params["audio_language"] = "en"
	} else {
		params["format"] = "mp4"
		params["quality"] = videoQuality(req.Options.Resolution)
	}

	headers := map[string]string{
		"x-rapidapi-key":  p.apiKey,
		"x-rapidapi-host": p.apiHost,
	}

	resp, err := p.client.Get(ctx, utils.BuildURL(endpoint, params), headers)
	if err != nil {
		return nil, fmt.Errorf("rapidapi request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// The raw body is diagnostics only; it must not feed marker
		// classification, so it is logged and dropped
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		p.logger.Warn().Int("status", resp.StatusCode).Str("body", string(body)).Msg("Provider returned error status")
		return nil, &models.AttemptError{Provider: p.Name(), Status: resp.StatusCode}
	}

	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("rapidapi decode: %w", err)
	}

	if attemptErr := payloadError(p.Name(), payload); attemptErr != nil {
		return nil, attemptErr
	}

	return payload, nil
}
