package prober

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"tickwatch/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const marker = "Currently all event tickets are sold-out!"

func newTestProber(t *testing.T, handler http.HandlerFunc) (*Prober, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p, err := New(config.ProbeConfig{
		TargetURL:      srv.URL,
		SoldOutMarker:  marker,
		TimeoutSeconds: 5,
		Referer:        "https://example.test/shop",
	})
	require.NoError(t, err)
	return p, srv
}

func TestProbeSoldOut(t *testing.T) {
	p, _ := newTestProber(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<div>" + marker + "</div>"))
	})
	res, err := p.Probe(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Available)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestProbeAvailable(t *testing.T) {
	p, _ := newTestProber(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<div>Buy your ticket now</div>"))
	})
	res, err := p.Probe(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Available)
}

func TestProbeSendsFragmentHeaders(t *testing.T) {
	var got http.Header
	p, _ := newTestProber(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte(marker))
	})
	_, err := p.Probe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "true", got.Get("HX-Request"))
	assert.Equal(t, "ticket", got.Get("HX-Target"))
	assert.Equal(t, "https://example.test/shop", got.Get("Referer"))
	assert.NotEmpty(t, got.Get("User-Agent"))
}

func TestProbeNon200IsError(t *testing.T) {
	p, _ := newTestProber(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	})
	_, err := p.Probe(context.Background())
	require.Error(t, err)
	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusServiceUnavailable, perr.StatusCode)
}

func TestProbeTransportError(t *testing.T) {
	p, srv := newTestProber(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()
	_, err := p.Probe(context.Background())
	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Error(t, perr.Unwrap())
}

func TestNewValidation(t *testing.T) {
	_, err := New(config.ProbeConfig{SoldOutMarker: marker})
	assert.Error(t, err, "target required")

	_, err = New(config.ProbeConfig{TargetURL: "https://example.test"})
	assert.Error(t, err, "marker required")
}
