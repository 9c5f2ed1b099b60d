package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"image-scraper/pkg/config"
	"image-scraper/pkg/utils"
)

// testConfig returns an AppConfig with defaults applied
func testConfig() *config.AppConfig {
	cfg := &config.AppConfig{UserAgent: "test-agent/1.0", Referer: "https://referer.example"}
	cfg.Validate()
	return cfg
}

// testLogger returns a logger that discards output
func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// mockServer creates an httptest.Server that returns status codes in sequence.
// Returns the server and an atomic counter tracking request attempts.
func mockServer(t *testing.T, statusCodes []int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	attemptCount := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idx := int(attemptCount.Add(1)) - 1
		if idx >= len(statusCodes) {
			idx = len(statusCodes) - 1 // repeat last status
		}
		w.WriteHeader(statusCodes[idx])
	}))
	t.Cleanup(server.Close)
	return server, attemptCount
}

func TestGet_Success(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"200 OK", http.StatusOK},
		{"201 Created", http.StatusCreated},
		{"204 No Content", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, attempts := mockServer(t, []int{tt.statusCode})
			cfg := testConfig()
			fetcher := NewFetcher(NewClient(cfg.HTTPClientSettings, testLogger()), cfg, testLogger())

			resp, err := fetcher.Get(context.Background(), server.URL)

			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.statusCode {
				t.Errorf("expected status %d, got %d", tt.statusCode, resp.StatusCode)
			}
			if attempts.Load() != 1 {
				t.Errorf("expected 1 attempt, got %d", attempts.Load())
			}
		})
	}
}

func TestGet_SendsIdentityHeaders(t *testing.T) {
	var gotUA, gotReferer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
	}))
	defer server.Close()

	cfg := testConfig()
	fetcher := NewFetcher(server.Client(), cfg, testLogger())

	resp, err := fetcher.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if gotUA != "test-agent/1.0" {
		t.Errorf("User-Agent = %q, want %q", gotUA, "test-agent/1.0")
	}
	if gotReferer != "https://referer.example" {
		t.Errorf("Referer = %q, want %q", gotReferer, "https://referer.example")
	}
}

func TestGet_StatusErrorsAreNotRetried(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		sentinel   error
	}{
		{"404", http.StatusNotFound, utils.ErrClientHTTPError},
		{"429", http.StatusTooManyRequests, utils.ErrClientHTTPError},
		{"500", http.StatusInternalServerError, utils.ErrServerHTTPError},
		{"503", http.StatusServiceUnavailable, utils.ErrServerHTTPError},
		{"304", http.StatusNotModified, utils.ErrOtherHTTPError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, attempts := mockServer(t, []int{tt.statusCode, http.StatusOK})
			cfg := testConfig()
			fetcher := NewFetcher(server.Client(), cfg, testLogger())

			resp, err := fetcher.Get(context.Background(), server.URL)

			if err == nil {
				resp.Body.Close()
				t.Fatal("expected error for non-2xx status")
			}
			if resp != nil {
				t.Error("expected nil response on status error")
			}
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("expected %v, got: %v", tt.sentinel, err)
			}
			if attempts.Load() != 1 {
				t.Errorf("expected exactly 1 attempt, got %d", attempts.Load())
			}
		})
	}
}

func TestGet_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	serverURL := server.URL
	server.Close() // Nothing listening any more

	cfg := testConfig()
	fetcher := NewFetcher(NewClient(cfg.HTTPClientSettings, testLogger()), cfg, testLogger())

	// Words in the path must not leak into the category
	resp, err := fetcher.Get(context.Background(), serverURL+"/tls-timeout-certificate-gallery")
	if err == nil {
		resp.Body.Close()
		t.Fatal("expected network error")
	}
	if got := utils.CategorizeError(err); got != "Network_ConnectionRefused" {
		t.Errorf("CategorizeError = %q, want Network_ConnectionRefused", got)
	}
	if got := utils.UserMessage(err); got != "The connection was refused." {
		t.Errorf("UserMessage = %q", got)
	}
}

func TestGet_UnsupportedScheme(t *testing.T) {
	cfg := testConfig()
	fetcher := NewFetcher(http.DefaultClient, cfg, testLogger())

	for _, rawURL := range []string{"data:image/png;base64,AAAA", "javascript:void(0)", "ftp://example.com/a.png"} {
		_, err := fetcher.Get(context.Background(), rawURL)
		if !errors.Is(err, utils.ErrUnsupportedScheme) {
			t.Errorf("Get(%q): expected ErrUnsupportedScheme, got: %v", rawURL, err)
		}
	}
}

func TestGet_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.HTTPClientSettings.Timeout = 50 * time.Millisecond
	fetcher := NewFetcher(NewClient(cfg.HTTPClientSettings, testLogger()), cfg, testLogger())

	_, err := fetcher.Get(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if got := utils.CategorizeError(err); got != "Network_Timeout" {
		t.Errorf("CategorizeError = %q, want Network_Timeout", got)
	}
}

func TestGet_InvalidURL(t *testing.T) {
	cfg := testConfig()
	fetcher := NewFetcher(http.DefaultClient, cfg, testLogger())

	_, err := fetcher.Get(context.Background(), "http://[::1")
	if !errors.Is(err, utils.ErrRequestCreation) {
		t.Errorf("expected ErrRequestCreation, got: %v", err)
	}
}

func TestNewClient_RedirectLimit(t *testing.T) {
	var hits atomic.Int32
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Redirect(w, r, server.URL+"/loop", http.StatusFound)
	}))
	defer server.Close()

	settings := testConfig().HTTPClientSettings
	settings.MaxRedirects = 3
	client := NewClient(settings, testLogger())

	_, err := client.Get(server.URL)
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		t.Fatalf("expected *url.Error, got %v", err)
	}
	if !errors.Is(err, utils.ErrTooManyRedirects) {
		t.Errorf("expected ErrTooManyRedirects, got %v", err)
	}
	if hits.Load() != 3 {
		t.Errorf("expected 3 requests before the redirect limit, got %d", hits.Load())
	}
}
