// Package resolver drives the ordered provider fallback chain that turns a
// user-supplied media URL into a concrete, time-limited download link.
package resolver

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"media-resolver/internal/monitor"
	"media-resolver/internal/normalize"
	"media-resolver/internal/platform"
	"media-resolver/internal/provider"
	"media-resolver/internal/ratelimit"
	"media-resolver/pkg/models"
)

// User-visible failure messages. Diagnostic detail (which provider, which
// endpoint, raw status) is logged, never returned to callers.
const (
	msgInvalidInput = "Invalid or unsupported URL. Supported platforms: YouTube, TikTok, Instagram, Twitter/X, Facebook, Reddit, Vimeo, Twitch, SoundCloud, Spotify"
	msgRateLimited  = "Too many requests. Please wait a moment and try again."
	msgUnavailable  = "This content is unavailable or private."
	msgExhausted    = "All download services are busy. Please try again later."
)

// Error is a terminal resolution failure: the failure class plus one short,
// non-technical message for the caller.
type Error struct {
	Class      models.FailureClass
	Message    string
	RetryAfter time.Duration // set for rate limited failures
}

func (e *Error) Error() string {
	return e.Message
}

// Engine owns the ordered provider list and produces exactly one of a
// result or a terminal failure per request. Provider attempts within one
// resolution are strictly sequential: attribution stays deterministic and
// each provider's own throttling is respected, at the cost of worst-case
// latency when early providers fail.
type Engine struct {
	classifier     *platform.Classifier
	limiter        *ratelimit.Manager
	providers      []models.Provider
	storage        models.Storage
	monitor        *monitor.Monitor
	attemptTimeout time.Duration
	totalTimeout   time.Duration
	logger         zerolog.Logger
}

// Option configures the engine
type Option func(*Engine)

// WithStorage enables resolution history persistence
func WithStorage(storage models.Storage) Option {
	return func(e *Engine) { e.storage = storage }
}

// WithMonitor enables metrics collection
func WithMonitor(mon *monitor.Monitor) Option {
	return func(e *Engine) { e.monitor = mon }
}

// WithTimeouts overrides the per-attempt and total deadlines
func WithTimeouts(attempt, total time.Duration) Option {
	return func(e *Engine) {
		e.attemptTimeout = attempt
		e.totalTimeout = total
	}
}

// NewEngine creates a resolution engine over the given provider chain
func NewEngine(classifier *platform.Classifier, limiter *ratelimit.Manager, providers []models.Provider, opts ...Option) *Engine {
	e := &Engine{
		classifier:     classifier,
		limiter:        limiter,
		providers:      providers,
		attemptTimeout: 10 * time.Second,
		totalTimeout:   45 * time.Second,
		logger:         zerolog.New(os.Stdout).With().Timestamp().Str("component", "resolver").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resolve runs one resolution for the caller identity. It returns either a
// result or an *Error, never both and never neither.
func (e *Engine) Resolve(ctx context.Context, req *models.ResolutionRequest, clientID string) (*models.ResolutionResult, error) {
	started := time.Now()

	cls, allowed := e.classifier.Classify(req.URL)
	if !allowed {
		return nil, e.finishFailure(req, cls.Platform, clientID, started, &Error{
			Class:   models.FailureInvalidInput,
			Message: msgInvalidInput,
		}, "")
	}

	// Direct link shortcut: the URL already points at a raw media file
	if cls.DirectMedia {
		result := normalize.DirectLinkResult(req.URL, req.Format)
		return e.finishSuccess(req, cls.Platform, clientID, started, result, "direct"), nil
	}

	if ok, retryAfter := e.limiter.Admit(clientID); !ok {
		if e.monitor != nil {
			e.monitor.RecordRateLimitRejection()
		}
		return nil, e.finishFailure(req, cls.Platform, clientID, started, &Error{
			Class:      models.FailureRateLimited,
			Message:    msgRateLimited,
			RetryAfter: retryAfter,
		}, "")
	}

	if e.monitor != nil {
		e.monitor.RecordResolutionStart(string(cls.Platform), string(req.Format))
	}

	ctx, cancel := context.WithTimeout(ctx, e.totalTimeout)
	defer cancel()

	result, provName, terminal := e.runChain(ctx, req, cls)
	if terminal != nil {
		if e.monitor != nil {
			e.monitor.RecordResolutionFailure(string(cls.Platform), string(req.Format), string(terminal.Class), time.Since(started))
		}
		return nil, e.finishFailure(req, cls.Platform, clientID, started, terminal, provName)
	}

	if e.monitor != nil {
		e.monitor.RecordResolutionSuccess(string(cls.Platform), string(req.Format), time.Since(started))
	}
	return e.finishSuccess(req, cls.Platform, clientID, started, result, provName), nil
}

// runChain drives the sequential provider fallback state machine. The
// abort-vs-continue decision is a pure function of the classified failure.
func (e *Engine) runChain(ctx context.Context, req *models.ResolutionRequest, cls platform.Classification) (*models.ResolutionResult, string, *Error) {
	lastClass := models.FailureTransientProvider

	for _, p := range e.providers {
		// Unconfigured keyed providers are skipped silently; this is
		// operator-visible, not caller-visible, and does not count as a
		// failed attempt
		if !p.Configured() {
			e.logger.Warn().Str("provider", p.Name()).Msg("Provider skipped: missing configuration")
			continue
		}

		for _, endpoint := range p.Endpoints() {
			// Caller cancellation or the chain deadline stops further
			// attempts promptly
			if err := ctx.Err(); err != nil {
				e.logger.Debug().Err(err).Msg("Resolution stopped before exhausting providers")
				return nil, p.Name(), &Error{Class: lastClass, Message: msgExhausted}
			}

			result, err := e.attempt(ctx, p, endpoint, req)
			if err == nil {
				return result, p.Name(), nil
			}

			class := provider.Classify(err)
			e.logger.Info().
				Str("provider", p.Name()).
				Str("endpoint", endpoint).
				Str("platform", string(cls.Platform)).
				Str("failure_class", string(class)).
				Err(err).
				Msg("Provider attempt failed")
			if e.monitor != nil {
				e.monitor.RecordProviderError(p.Name(), string(class))
			}

			switch class {
			case models.FailureContentUnavailable:
				// Authoritative: the content itself cannot be served, so
				// trying other backends or templates is futile
				return nil, p.Name(), &Error{Class: class, Message: msgUnavailable}
			case models.FailureRateLimited:
				return nil, p.Name(), &Error{Class: class, Message: msgRateLimited, RetryAfter: time.Minute}
			default:
				lastClass = class
			}
		}
	}

	return nil, "", &Error{Class: lastClass, Message: msgExhausted}
}

// attempt performs one provider/endpoint sub-attempt under its own timeout
func (e *Engine) attempt(ctx context.Context, p models.Provider, endpoint string, req *models.ResolutionRequest) (*models.ResolutionResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.attemptTimeout)
	defer cancel()

	attemptStart := time.Now()
	payload, err := p.Fetch(attemptCtx, endpoint, req)
	if e.monitor != nil {
		e.monitor.RecordProviderAttempt(p.Name(), time.Since(attemptStart))
	}
	if err != nil {
		return nil, err
	}

	return normalize.Normalize(payload, req)
}

// finishSuccess records and returns a successful result
func (e *Engine) finishSuccess(req *models.ResolutionRequest, pf models.Platform, clientID string, started time.Time, result *models.ResolutionResult, provName string) *models.ResolutionResult {
	result.Provider = provName
	e.logger.Info().
		Str("platform", string(pf)).
		Str("format", string(req.Format)).
		Str("provider", provName).
		Dur("duration", time.Since(started)).
		Msg("Resolution succeeded")
	e.recordHistory(req, pf, clientID, started, result, nil, provName)
	return result
}

// finishFailure records and returns a terminal failure
func (e *Engine) finishFailure(req *models.ResolutionRequest, pf models.Platform, clientID string, started time.Time, terminal *Error, provName string) *Error {
	e.logger.Info().
		Str("platform", string(pf)).
		Str("failure_class", string(terminal.Class)).
		Dur("duration", time.Since(started)).
		Msg("Resolution failed")
	e.recordHistory(req, pf, clientID, started, nil, terminal, provName)
	return terminal
}

// recordHistory persists the resolution outcome when storage is configured
func (e *Engine) recordHistory(req *models.ResolutionRequest, pf models.Platform, clientID string, started time.Time, result *models.ResolutionResult, terminal *Error, provName string) {
	if e.storage == nil {
		return
	}

	rec := &models.ResolutionRecord{
		ID:       uuid.NewString(),
		URL:      req.URL,
		Platform: pf,
		Format:   req.Format,
		ClientID: clientID,
		Provider: provName,
		Duration: time.Since(started).Milliseconds(),
	}
	if result != nil {
		rec.Status = models.StatusSuccess
		rec.DownloadURL = result.DownloadURL
		rec.Filename = result.Filename
		rec.FileSize = result.FileSize
	} else {
		rec.Status = models.StatusFailed
		rec.FailureClass = terminal.Class
	}

	if err := e.storage.SaveRecord(rec); err != nil {
		e.logger.Error().Err(err).Msg("Failed to save resolution record")
	}
}
