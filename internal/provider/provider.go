// Package provider implements the external extraction backends that turn a
// platform URL into a direct asset link, and the classification of their
// failures.
package provider

import (
	"time"

	"media-resolver/internal/utils"
	"media-resolver/pkg/models"
)

// Chain builds the ordered provider list from configuration. Ordering is
// fixed at startup: a keyed API with a credential is tried before the
// public-instance fallbacks.
func Chain(cfg *models.Config, client *utils.HTTPClient) []models.Provider {
	var chain []models.Provider

	if cfg.Providers.RapidAPI.Enabled {
		chain = append(chain, NewRapidAPI(cfg.Providers.RapidAPI.APIKey, cfg.Providers.RapidAPI.APIHost, client))
	}
	if cfg.Providers.Cobalt.Enabled {
		chain = append(chain, NewCobalt(cfg.Providers.Cobalt.Instances, client))
	}

	return chain
}

// NewClient builds the HTTP client the providers share
func NewClient(cfg *models.Config) *utils.HTTPClient {
	clientCfg := utils.ClientConfig{
		Timeout:         time.Duration(cfg.Resolver.AttemptTimeout) * time.Second,
		MaxIdleConns:    20,
		IdleConnTimeout: 90 * time.Second,
	}
	if cfg.Proxy.Enabled {
		clientCfg.ProxyURL = cfg.Proxy.URL
	}
	return utils.NewHTTPClient(clientCfg)
}

// videoQuality maps the requested resolution to the providers' quality knob
func videoQuality(resolution string) string {
	switch resolution {
	case "4k":
		return "2160"
	case "720p":
		return "720"
	default:
		return "1080"
	}
}

// audioQuality maps the requested bitrate to the providers' quality knob
func audioQuality(bitrate string) string {
	switch bitrate {
	case "320k":
		return "320"
	case "192k":
		return "192"
	default:
		return "128"
	}
}

// payloadError inspects a decoded payload for an embedded error envelope.
// Returns nil when the payload does not announce a failure.
func payloadError(providerName string, payload any) *models.AttemptError {
	m, ok := payload.(map[string]any)
	if !ok {
		return nil
	}
	status, _ := m["status"].(string)
	if status != "error" {
		return nil
	}

	attemptErr := &models.AttemptError{Provider: providerName}
	switch e := m["error"].(type) {
	case map[string]any:
		attemptErr.Code, _ = e["code"].(string)
		attemptErr.Text, _ = e["text"].(string)
	case string:
		attemptErr.Text = e
	}
	return attemptErr
}
