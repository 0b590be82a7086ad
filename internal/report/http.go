package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/coral-mesh/rtmon/internal/errors"
)

// HTTPConfig configures the HTTP reporter.
type HTTPConfig struct {
	// URL receives production envelopes.
	URL string
	// DevURL receives envelopes reported with Options.Dev. Falls back to URL.
	DevURL string
	// Timeout bounds each POST (default: 5s).
	Timeout time.Duration
	// MaxInFlight bounds concurrent POSTs; envelopes beyond it are dropped (default: 4).
	MaxInFlight int64
	// Client overrides the HTTP client (optional).
	Client *http.Client
}

// HTTPReporter posts envelopes as base64-encoded JSON in a text/plain body.
// Delivery is best-effort: failures are logged, never retried.
type HTTPReporter struct {
	config   HTTPConfig
	client   *http.Client
	inFlight *semaphore.Weighted
	logger   zerolog.Logger
	now      func() time.Time

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewHTTPReporter creates an HTTP reporter.
func NewHTTPReporter(config HTTPConfig, logger zerolog.Logger) (*HTTPReporter, error) {
	if config.URL == "" && config.DevURL == "" {
		return nil, fmt.Errorf("http reporter requires at least one endpoint")
	}

	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	if config.MaxInFlight == 0 {
		config.MaxInFlight = 4
	}

	client := config.Client
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}

	return &HTTPReporter{
		config:   config,
		client:   client,
		inFlight: semaphore.NewWeighted(config.MaxInFlight),
		logger:   logger.With().Str("component", "http_reporter").Logger(),
		now:      time.Now,
	}, nil
}

// Report stamps env with the client timestamp and posts it in the background.
func (r *HTTPReporter) Report(env Envelope, opts Options) {
	url := r.config.URL
	if opts.Dev && r.config.DevURL != "" {
		url = r.config.DevURL
	}
	if url == "" {
		r.logger.Debug().Str("type", string(env.Type)).Msg("No endpoint configured for envelope, skipping")
		return
	}

	env.Base.ClientTimestamp = r.now().UnixMilli()
	body, err := Encode(env)
	if err != nil {
		r.logger.Error().Err(err).Str("type", string(env.Type)).Msg("Failed to encode envelope")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.logger.Debug().Str("type", string(env.Type)).Msg("Reporter closed, dropping envelope")
		return
	}

	if !r.inFlight.TryAcquire(1) {
		r.logger.Warn().Str("type", string(env.Type)).Msg("Too many reports in flight, dropping envelope")
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.inFlight.Release(1)
		r.post(url, body, env.Type)
	}()
}

// Close waits for in-flight posts to finish. Envelopes reported after
// Close are dropped.
func (r *HTTPReporter) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.wg.Wait()
	return nil
}

func (r *HTTPReporter) post(url string, body []byte, t Type) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		r.logger.Error().Err(err).Str("url", url).Msg("Failed to build report request")
		return
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn().Err(err).Str("url", url).Str("type", string(t)).Msg("Failed to post report")
		return
	}
	defer errors.DeferClose(r.logger, resp.Body, "failed to close report response body")

	if resp.StatusCode >= http.StatusMultipleChoices {
		r.logger.Warn().
			Int("status", resp.StatusCode).
			Str("url", url).
			Str("type", string(t)).
			Msg("Report endpoint rejected envelope")
	}
}

// Encode renders env as base64-encoded JSON, the body format of the HTTP reporter.
func Encode(env Envelope) ([]byte, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	out := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
	base64.StdEncoding.Encode(out, raw)
	return out, nil
}

// Decode reverses Encode into a generic envelope whose Data is left as raw JSON.
func Decode(body []byte) (Envelope, json.RawMessage, error) {
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(body)))
	n, err := base64.StdEncoding.Decode(raw, body)
	if err != nil {
		return Envelope{}, nil, fmt.Errorf("failed to decode base64 body: %w", err)
	}

	var wire struct {
		Type Type            `json:"type"`
		Base Base            `json:"base"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw[:n], &wire); err != nil {
		return Envelope{}, nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	return Envelope{Type: wire.Type, Base: wire.Base}, wire.Data, nil
}
