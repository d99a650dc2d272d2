package prober

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tickwatch/internal/config"
)

// The shop endpoint serves the ticket fragment over htmx, so the request
// mimics the browser widget: without the HX-* headers some deployments return
// the full page shell instead of the fragment.
var fragmentHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.6 Safari/605.1.15",
	"Accept":          "*/*",
	"Accept-Language": "en-US,en;q=0.9",
	"HX-Request":      "true",
	"HX-Target":       "ticket",
	"HX-Trigger":      "ticket",
}

const maxBodyBytes = 2 << 20

// Result is the outcome of a single successful probe.
type Result struct {
	Available  bool
	StatusCode int
	Body       string
}

// Error is returned when the probe could not determine availability
// (transport failure or unexpected HTTP status).
type Error struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("probe %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("probe %s failed: status=%d", e.URL, e.StatusCode)
}

func (e *Error) Unwrap() error { return e.Err }

// Prober checks one page for the sold-out marker text.
type Prober struct {
	target     *url.URL
	marker     string
	referer    string
	httpClient *http.Client
}

// New constructs a Prober from configuration.
func New(cfg config.ProbeConfig) (*Prober, error) {
	raw := strings.TrimSpace(cfg.TargetURL)
	if raw == "" {
		return nil, fmt.Errorf("probe.target_url cannot be empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing probe.target_url failed: %w", err)
	}
	marker := strings.TrimSpace(cfg.SoldOutMarker)
	if marker == "" {
		return nil, fmt.Errorf("probe.sold_out_marker cannot be empty")
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Prober{
		target:     parsed,
		marker:     marker,
		referer:    strings.TrimSpace(cfg.Referer),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (p *Prober) SetHTTPClient(client *http.Client) {
	p.httpClient = client
}

// Target returns the watched URL.
func (p *Prober) Target() string {
	if p == nil || p.target == nil {
		return ""
	}
	return p.target.String()
}

// Probe fetches the target page once. Available means the sold-out marker is
// absent from a 200 body. Anything else yields a *Error.
func (p *Prober) Probe(ctx context.Context) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.target.String(), nil)
	if err != nil {
		return Result{}, &Error{URL: p.target.String(), Err: err}
	}
	for k, v := range fragmentHeaders {
		req.Header.Set(k, v)
	}
	if p.referer != "" {
		req.Header.Set("Referer", p.referer)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Result{}, &Error{URL: p.target.String(), Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Result{}, &Error{URL: p.target.String(), StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, &Error{URL: p.target.String(), StatusCode: resp.StatusCode}
	}
	text := string(body)
	return Result{
		Available:  !strings.Contains(text, p.marker),
		StatusCode: resp.StatusCode,
		Body:       text,
	}, nil
}
