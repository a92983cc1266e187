package validator

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"ostplayer/internal/cache"
	"ostplayer/internal/config"

	"github.com/sirupsen/logrus"
)

func newTestValidator(verdicts *cache.VerdictCache) *Validator {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return New(config.DefaultConfig().Validator, verdicts, logger)
}

func TestIsValidSource(t *testing.T) {
	var heads int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("Expected HEAD probe, got %s", r.Method)
		}
		atomic.AddInt32(&heads, 1)
		switch r.URL.Path {
		case "/song.mp3":
			w.Header().Set("Content-Type", "audio/mpeg")
		case "/page.html":
			w.Header().Set("Content-Type", "text/html")
		case "/missing.mp3":
			w.Header().Set("Content-Type", "audio/mpeg")
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	v := newTestValidator(nil)
	ctx := context.Background()

	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"audio content type", server.URL + "/song.mp3", true},
		{"html content type", server.URL + "/page.html", false},
		{"not found", server.URL + "/missing.mp3", false},
		{"empty url", "", false},
		{"unreachable host", "http://127.0.0.1:1/song.mp3", false},
		{"malformed url", "http://%zz/song.mp3", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.IsValidSource(ctx, tt.url); got != tt.want {
				t.Errorf("IsValidSource(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestTrustedSourceSkipsProbe(t *testing.T) {
	var heads int32
	client := &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			atomic.AddInt32(&heads, 1)
			return nil, http.ErrHandlerTimeout
		}),
	}
	v := newTestValidator(nil).WithClient(client)

	url := "https://www.dropbox.com/scl/fi/abc/song.mp3?rlkey=xyz&raw=1"
	if !v.IsValidSource(context.Background(), url) {
		t.Error("Expected trusted dropbox URL to be valid")
	}
	if atomic.LoadInt32(&heads) != 0 {
		t.Errorf("Expected no network probe, got %d", heads)
	}

	// Same host without the raw marker must be probed (and fail here)
	if v.IsValidSource(context.Background(), "https://www.dropbox.com/scl/fi/abc/song.mp3?dl=0") {
		t.Error("Expected untrusted dropbox URL to be probed and rejected")
	}
	if atomic.LoadInt32(&heads) != 1 {
		t.Errorf("Expected one network probe, got %d", heads)
	}
}

func TestVerdictCacheAvoidsSecondProbe(t *testing.T) {
	var heads int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&heads, 1)
		w.Header().Set("Content-Type", "audio/ogg")
	}))
	defer server.Close()

	verdicts := cache.NewVerdictCache(time.Minute)
	defer verdicts.Close()
	v := newTestValidator(verdicts)

	for i := 0; i < 3; i++ {
		if !v.IsValidSource(context.Background(), server.URL+"/a.ogg") {
			t.Fatalf("Expected probe %d to succeed", i)
		}
	}
	if got := atomic.LoadInt32(&heads); got != 1 {
		t.Errorf("Expected a single HEAD request, got %d", got)
	}
}

func TestLocalSources(t *testing.T) {
	dir := t.TempDir()
	song := filepath.Join(dir, "song.mp3")
	notes := filepath.Join(dir, "notes.txt")
	for _, p := range []string{song, notes} {
		if err := os.WriteFile(p, []byte("data"), 0644); err != nil {
			t.Fatalf("Failed to create %s: %v", p, err)
		}
	}

	v := newTestValidator(nil)
	ctx := context.Background()

	testCases := []struct {
		src      string
		expected bool
	}{
		{song, true},
		{"file://" + song, true},
		{notes, false},
		{filepath.Join(dir, "absent.mp3"), false},
		{dir, false},
	}

	for _, tc := range testCases {
		if got := v.IsValidSource(ctx, tc.src); got != tc.expected {
			t.Errorf("IsValidSource(%s): expected %v, got %v", tc.src, tc.expected, got)
		}
	}
}

func TestCanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if newTestValidator(nil).IsValidSource(ctx, server.URL+"/song.mp3") {
		t.Error("Expected canceled probe to be invalid")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
