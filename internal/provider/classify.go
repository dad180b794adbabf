package provider

import (
	"errors"
	"net/http"
	"strings"

	"media-resolver/internal/normalize"
	"media-resolver/pkg/models"
)

// Markers in provider error codes/texts. A match on unavailableMarkers is
// authoritative: the content itself cannot be served, so no other backend
// is worth trying.
var (
	rateLimitMarkers   = []string{"rate_limit", "rate-limit", "rate limit", "too_many", "quota"}
	unavailableMarkers = []string{"unavailable", "private", "invalid"}
)

// Classify assigns a failed provider attempt to the failure taxonomy. It is
// a pure function of the error: the same outcome always yields the same
// class. Unrecognized failures classify as transient so the chain fails
// open toward the next provider, never toward a silent success.
func Classify(err error) models.FailureClass {
	if errors.Is(err, normalize.ErrMalformed) {
		return models.FailureMalformedResponse
	}

	var attemptErr *models.AttemptError
	if !errors.As(err, &attemptErr) {
		// Transport failure: network error, timeout, cancellation
		return models.FailureTransientProvider
	}

	if attemptErr.Status == http.StatusTooManyRequests {
		return models.FailureRateLimited
	}

	// Markers are trusted only in payload-embedded error envelopes: a coded
	// envelope, or free text from a payload-level failure (Status zero). An
	// HTTP error status with no envelope says nothing authoritative about the
	// content, so it falls through to transient and the chain keeps going.
	if attemptErr.Code != "" || attemptErr.Status == 0 {
		marker := strings.ToLower(attemptErr.Code + " " + attemptErr.Text)
		for _, m := range rateLimitMarkers {
			if strings.Contains(marker, m) {
				return models.FailureRateLimited
			}
		}
		for _, m := range unavailableMarkers {
			if strings.Contains(marker, m) {
				return models.FailureContentUnavailable
			}
		}
	}

	// 404s stay transient: some providers have uncertain path conventions
	// and the orchestrator may still have alternate templates to try
	return models.FailureTransientProvider
}
