package resolver

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"media-resolver/internal/platform"
	"media-resolver/internal/ratelimit"
	"media-resolver/pkg/models"
)

// fakeProvider is a scripted provider for chain tests. Each endpoint attempt
// consumes the next scripted outcome.
type fakeProvider struct {
	name       string
	configured bool
	endpoints  []string
	outcomes   []fakeOutcome
	calls      int
}

type fakeOutcome struct {
	payload any
	err     error
}

func (f *fakeProvider) Name() string              { return f.name }
func (f *fakeProvider) Kind() models.ProviderKind { return models.ProviderPublicInstance }
func (f *fakeProvider) Configured() bool          { return f.configured }
func (f *fakeProvider) Endpoints() []string       { return f.endpoints }

func (f *fakeProvider) Fetch(ctx context.Context, endpoint string, req *models.ResolutionRequest) (any, error) {
	idx := f.calls
	f.calls++
	if idx >= len(f.outcomes) {
		return nil, errors.New("unscripted call")
	}
	out := f.outcomes[idx]
	return out.payload, out.err
}

// slowProvider blocks until its context expires
type slowProvider struct {
	name  string
	calls int
}

func (s *slowProvider) Name() string              { return s.name }
func (s *slowProvider) Kind() models.ProviderKind { return models.ProviderPublicInstance }
func (s *slowProvider) Configured() bool          { return true }
func (s *slowProvider) Endpoints() []string       { return []string{"https://slow.example.com"} }

func (s *slowProvider) Fetch(ctx context.Context, endpoint string, req *models.ResolutionRequest) (any, error) {
	s.calls++
	<-ctx.Done()
	return nil, ctx.Err()
}

// memStorage keeps records in memory for history assertions
type memStorage struct {
	records []*models.ResolutionRecord
}

func (m *memStorage) SaveRecord(rec *models.ResolutionRecord) error {
	m.records = append(m.records, rec)
	return nil
}

func (m *memStorage) GetRecord(id string) (*models.ResolutionRecord, error) { return nil, nil }
func (m *memStorage) ListRecords(filter models.HistoryFilter) ([]*models.ResolutionRecord, error) {
	return m.records, nil
}
func (m *memStorage) DeleteRecord(id string) error     { return nil }
func (m *memStorage) GetStats() (*models.Stats, error) { return &models.Stats{}, nil }
func (m *memStorage) SaveUser(user *models.User) error { return nil }
func (m *memStorage) GetUserByUsername(username string) (*models.User, error) {
	return nil, errors.New("user not found")
}
func (m *memStorage) GetUserByID(id string) (*models.User, error) { return nil, nil }
func (m *memStorage) UpdateUser(user *models.User) error          { return nil }
func (m *memStorage) Close() error                                { return nil }

func openLimiter() *ratelimit.Manager {
	return ratelimit.NewManager(&ratelimit.Config{Enabled: false})
}

func newTestEngine(providers []models.Provider, opts ...Option) *Engine {
	return NewEngine(platform.NewClassifier(nil), openLimiter(), providers, opts...)
}

const watchURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

func mp4Request(url string) *models.ResolutionRequest {
	return &models.ResolutionRequest{URL: url, Format: models.FormatMP4}
}

func resultPayload(url string) map[string]any {
	return map[string]any{"url": url}
}

func TestResolveSuccessFirstProvider(t *testing.T) {
	p := &fakeProvider{
		name:       "primary",
		configured: true,
		endpoints:  []string{"https://a.example.com"},
		outcomes: []fakeOutcome{{payload: map[string]any{
			"url":  "https://cdn.example.com/ok.mp4",
			"size": float64(5242880),
		}}},
	}
	fallback := &fakeProvider{
		name:       "fallback",
		configured: true,
		endpoints:  []string{"https://b.example.com"},
	}

	engine := newTestEngine([]models.Provider{p, fallback})

	result, err := engine.Resolve(context.Background(), mp4Request(watchURL), "test")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if result.DownloadURL != "https://cdn.example.com/ok.mp4" {
		t.Errorf("DownloadURL = %q", result.DownloadURL)
	}
	if !strings.HasSuffix(result.Filename, ".mp4") {
		t.Errorf("Filename = %q, want .mp4 suffix", result.Filename)
	}
	if result.FileSize != "5 MB" {
		t.Errorf("FileSize = %q, want %q", result.FileSize, "5 MB")
	}
	if p.calls != 1 {
		t.Errorf("provider calls = %d, want 1", p.calls)
	}
	if fallback.calls != 0 {
		t.Errorf("fallback calls = %d, want 0", fallback.calls)
	}
}

func TestResolveFallbackToSecondProvider(t *testing.T) {
	primary := &fakeProvider{
		name:       "primary",
		configured: true,
		endpoints:  []string{"https://a.example.com"},
		outcomes:   []fakeOutcome{{err: errors.New("connection reset")}},
	}
	fallback := &fakeProvider{
		name:       "fallback",
		configured: true,
		endpoints:  []string{"https://b.example.com"},
		outcomes: []fakeOutcome{{payload: map[string]any{
			"status": "tunnel",
			"url":    "https://relay.example.com/x",
		}}},
	}

	engine := newTestEngine([]models.Provider{primary, fallback})

	result, err := engine.Resolve(context.Background(), mp4Request(watchURL), "test")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if result.DownloadURL != "https://relay.example.com/x" {
		t.Errorf("DownloadURL = %q", result.DownloadURL)
	}
	if primary.calls != 1 || fallback.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", primary.calls, fallback.calls)
	}
}

func TestResolveEndpointTemplatesExhaustedFirst(t *testing.T) {
	// Both templates of the first provider are tried before advancing
	primary := &fakeProvider{
		name:       "primary",
		configured: true,
		endpoints:  []string{"https://a1.example.com", "https://a2.example.com"},
		outcomes: []fakeOutcome{
			{err: &models.AttemptError{Provider: "primary", Status: 404}},
			{payload: resultPayload("https://cdn.example.com/second-template.mp4")},
		},
	}
	fallback := &fakeProvider{
		name:       "fallback",
		configured: true,
		endpoints:  []string{"https://b.example.com"},
	}

	engine := newTestEngine([]models.Provider{primary, fallback})

	result, err := engine.Resolve(context.Background(), mp4Request(watchURL), "test")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if result.DownloadURL != "https://cdn.example.com/second-template.mp4" {
		t.Errorf("DownloadURL = %q", result.DownloadURL)
	}
	if primary.calls != 2 {
		t.Errorf("primary calls = %d, want 2", primary.calls)
	}
	if fallback.calls != 0 {
		t.Errorf("fallback calls = %d, want 0", fallback.calls)
	}
}

func TestResolveContentUnavailableAbortsChain(t *testing.T) {
	primary := &fakeProvider{
		name:       "primary",
		configured: true,
		endpoints:  []string{"https://a1.example.com", "https://a2.example.com"},
		outcomes: []fakeOutcome{
			{err: &models.AttemptError{Provider: "primary", Code: "error.api.content.video.unavailable"}},
		},
	}
	fallback := &fakeProvider{
		name:       "fallback",
		configured: true,
		endpoints:  []string{"https://b.example.com"},
	}

	engine := newTestEngine([]models.Provider{primary, fallback})

	_, err := engine.Resolve(context.Background(), mp4Request(watchURL), "test")
	if err == nil {
		t.Fatal("Resolve() succeeded, want content unavailable failure")
	}

	var resErr *Error
	if !errors.As(err, &resErr) {
		t.Fatalf("error type = %T", err)
	}
	if resErr.Class != models.FailureContentUnavailable {
		t.Errorf("Class = %v, want %v", resErr.Class, models.FailureContentUnavailable)
	}
	if primary.calls != 1 {
		t.Errorf("primary calls = %d, want 1: remaining templates must be skipped", primary.calls)
	}
	if fallback.calls != 0 {
		t.Errorf("fallback calls = %d, want 0: chain must abort", fallback.calls)
	}
}

func TestResolveAuthFailureFallsThrough(t *testing.T) {
	// A keyed provider rejecting its credential is an operator problem, not a
	// verdict on the content; the chain must keep going
	keyed := &fakeProvider{
		name:       "keyed",
		configured: true,
		endpoints:  []string{"https://keyed.example.com"},
		outcomes: []fakeOutcome{
			{err: &models.AttemptError{Provider: "keyed", Status: 403, Text: `{"message":"Invalid API key"}`}},
		},
	}
	fallback := &fakeProvider{
		name:       "fallback",
		configured: true,
		endpoints:  []string{"https://b.example.com"},
		outcomes:   []fakeOutcome{{payload: resultPayload("https://cdn.example.com/ok.mp4")}},
	}

	engine := newTestEngine([]models.Provider{keyed, fallback})

	result, err := engine.Resolve(context.Background(), mp4Request(watchURL), "test")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if result.DownloadURL != "https://cdn.example.com/ok.mp4" {
		t.Errorf("DownloadURL = %q", result.DownloadURL)
	}
	if fallback.calls != 1 {
		t.Errorf("fallback calls = %d, want 1", fallback.calls)
	}
}

func TestResolveRateLimitedProviderAborts(t *testing.T) {
	primary := &fakeProvider{
		name:       "primary",
		configured: true,
		endpoints:  []string{"https://a.example.com"},
		outcomes: []fakeOutcome{
			{err: &models.AttemptError{Provider: "primary", Status: 429}},
		},
	}
	fallback := &fakeProvider{
		name:       "fallback",
		configured: true,
		endpoints:  []string{"https://b.example.com"},
	}

	engine := newTestEngine([]models.Provider{primary, fallback})

	_, err := engine.Resolve(context.Background(), mp4Request(watchURL), "test")
	var resErr *Error
	if !errors.As(err, &resErr) {
		t.Fatalf("error = %v", err)
	}
	if resErr.Class != models.FailureRateLimited {
		t.Errorf("Class = %v, want %v", resErr.Class, models.FailureRateLimited)
	}
	if resErr.RetryAfter <= 0 {
		t.Error("RetryAfter not set")
	}
	if fallback.calls != 0 {
		t.Errorf("fallback calls = %d, want 0", fallback.calls)
	}
}

func TestResolveExhaustedChain(t *testing.T) {
	providers := []models.Provider{
		&fakeProvider{
			name:       "primary",
			configured: true,
			endpoints:  []string{"https://a.example.com"},
			outcomes:   []fakeOutcome{{err: errors.New("timeout")}},
		},
		&fakeProvider{
			name:       "fallback",
			configured: true,
			endpoints:  []string{"https://b.example.com"},
			outcomes:   []fakeOutcome{{payload: map[string]any{"nonsense": true}}},
		},
	}

	engine := newTestEngine(providers)

	_, err := engine.Resolve(context.Background(), mp4Request(watchURL), "test")
	var resErr *Error
	if !errors.As(err, &resErr) {
		t.Fatalf("error = %v", err)
	}
	// The last failure class wins: the fallback returned an unusable payload
	if resErr.Class != models.FailureMalformedResponse {
		t.Errorf("Class = %v, want %v", resErr.Class, models.FailureMalformedResponse)
	}
	if resErr.Message != msgExhausted {
		t.Errorf("Message = %q, want %q", resErr.Message, msgExhausted)
	}
}

func TestResolveSkipsUnconfiguredProvider(t *testing.T) {
	unconfigured := &fakeProvider{
		name:       "keyed",
		configured: false,
		endpoints:  []string{"https://keyed.example.com"},
	}
	fallback := &fakeProvider{
		name:       "fallback",
		configured: true,
		endpoints:  []string{"https://b.example.com"},
		outcomes:   []fakeOutcome{{payload: resultPayload("https://cdn.example.com/ok.mp4")}},
	}

	engine := newTestEngine([]models.Provider{unconfigured, fallback})

	result, err := engine.Resolve(context.Background(), mp4Request(watchURL), "test")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if result == nil || unconfigured.calls != 0 {
		t.Errorf("unconfigured provider calls = %d, want 0", unconfigured.calls)
	}
}

func TestResolveInvalidInputContactsNoProvider(t *testing.T) {
	p := &fakeProvider{
		name:       "primary",
		configured: true,
		endpoints:  []string{"https://a.example.com"},
	}

	engine := newTestEngine([]models.Provider{p})

	_, err := engine.Resolve(context.Background(), mp4Request("https://evil.example.com/x"), "test")
	var resErr *Error
	if !errors.As(err, &resErr) {
		t.Fatalf("error = %v", err)
	}
	if resErr.Class != models.FailureInvalidInput {
		t.Errorf("Class = %v, want %v", resErr.Class, models.FailureInvalidInput)
	}
	if p.calls != 0 {
		t.Errorf("provider calls = %d, want 0", p.calls)
	}
}

func TestResolveDirectLinkBypassesProviders(t *testing.T) {
	p := &fakeProvider{
		name:       "primary",
		configured: true,
		endpoints:  []string{"https://a.example.com"},
	}

	engine := newTestEngine([]models.Provider{p})

	result, err := engine.Resolve(context.Background(), mp4Request("https://cdn.youtube.com/clip.mp4"), "test")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if result.DownloadURL != "https://cdn.youtube.com/clip.mp4" {
		t.Errorf("DownloadURL = %q", result.DownloadURL)
	}
	if result.Filename != "clip.mp4" {
		t.Errorf("Filename = %q, want clip.mp4", result.Filename)
	}
	if p.calls != 0 {
		t.Errorf("provider calls = %d, want 0", p.calls)
	}
}

func TestResolveRateLimitedCaller(t *testing.T) {
	limiter := ratelimit.NewManager(&ratelimit.Config{
		Enabled:           true,
		RequestsPerWindow: 1,
		Window:            time.Minute,
	})
	defer limiter.Stop()

	p := &fakeProvider{
		name:       "primary",
		configured: true,
		endpoints:  []string{"https://a.example.com"},
		outcomes: []fakeOutcome{
			{payload: resultPayload("https://cdn.example.com/ok.mp4")},
		},
	}

	engine := NewEngine(platform.NewClassifier(nil), limiter, []models.Provider{p})

	if _, err := engine.Resolve(context.Background(), mp4Request(watchURL), "client-a"); err != nil {
		t.Fatalf("first Resolve() error = %v", err)
	}

	_, err := engine.Resolve(context.Background(), mp4Request(watchURL), "client-a")
	var resErr *Error
	if !errors.As(err, &resErr) {
		t.Fatalf("second Resolve() error = %v, want rate limited", err)
	}
	if resErr.Class != models.FailureRateLimited {
		t.Errorf("Class = %v, want %v", resErr.Class, models.FailureRateLimited)
	}
	if resErr.RetryAfter <= 0 {
		t.Error("RetryAfter not set")
	}
	if p.calls != 1 {
		t.Errorf("provider calls = %d, want 1", p.calls)
	}
}

func TestResolveContextCancellation(t *testing.T) {
	slow := &slowProvider{name: "slow"}
	after := &fakeProvider{
		name:       "after",
		configured: true,
		endpoints:  []string{"https://b.example.com"},
	}

	engine := newTestEngine([]models.Provider{slow, after})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := engine.Resolve(ctx, mp4Request(watchURL), "test")
	if err == nil {
		t.Fatal("Resolve() succeeded after cancellation")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Resolve() took %v after cancellation, want prompt return", elapsed)
	}
	if after.calls != 0 {
		t.Errorf("later provider calls = %d, want 0 after cancellation", after.calls)
	}
}

func TestResolveAttemptTimeout(t *testing.T) {
	slow := &slowProvider{name: "slow"}
	fallback := &fakeProvider{
		name:       "fallback",
		configured: true,
		endpoints:  []string{"https://b.example.com"},
		outcomes:   []fakeOutcome{{payload: resultPayload("https://cdn.example.com/ok.mp4")}},
	}

	engine := newTestEngine([]models.Provider{slow, fallback},
		WithTimeouts(30*time.Millisecond, 5*time.Second))

	result, err := engine.Resolve(context.Background(), mp4Request(watchURL), "test")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if result.DownloadURL != "https://cdn.example.com/ok.mp4" {
		t.Errorf("DownloadURL = %q", result.DownloadURL)
	}
	if slow.calls != 1 {
		t.Errorf("slow provider calls = %d, want 1", slow.calls)
	}
}

func TestResolveRecordsHistory(t *testing.T) {
	store := &memStorage{}
	p := &fakeProvider{
		name:       "primary",
		configured: true,
		endpoints:  []string{"https://a.example.com"},
		outcomes: []fakeOutcome{
			{payload: resultPayload("https://cdn.example.com/ok.mp4")},
			{err: errors.New("boom")},
		},
	}

	engine := newTestEngine([]models.Provider{p}, WithStorage(store))

	if _, err := engine.Resolve(context.Background(), mp4Request(watchURL), "client-a"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	engine.Resolve(context.Background(), mp4Request(watchURL), "client-a")

	if len(store.records) != 2 {
		t.Fatalf("records = %d, want 2", len(store.records))
	}

	first := store.records[0]
	if first.Status != models.StatusSuccess {
		t.Errorf("first record status = %q", first.Status)
	}
	if first.Platform != models.PlatformYouTube {
		t.Errorf("first record platform = %q", first.Platform)
	}
	if first.Provider != "primary" {
		t.Errorf("first record provider = %q", first.Provider)
	}

	second := store.records[1]
	if second.Status != models.StatusFailed {
		t.Errorf("second record status = %q", second.Status)
	}
	if second.FailureClass != models.FailureTransientProvider {
		t.Errorf("second record failure class = %q", second.FailureClass)
	}
}
