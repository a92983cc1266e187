// Package validator decides whether an audio source is worth loading
// without downloading it.
package validator

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ostplayer/internal/cache"
	"ostplayer/internal/config"

	"github.com/sirupsen/logrus"
)

// Validator checks audio URLs with a HEAD probe. It never returns errors:
// every failure is reported as an invalid source.
type Validator struct {
	client  *http.Client
	trusted []config.TrustedSource
	formats []string
	cache   *cache.VerdictCache
	logger  *logrus.Logger
}

// New creates a validator from configuration. The verdict cache may be nil.
func New(cfg config.ValidatorConfig, verdicts *cache.VerdictCache, logger *logrus.Logger) *Validator {
	return &Validator{
		client: &http.Client{
			Timeout: time.Duration(cfg.ProbeTimeoutSeconds) * time.Second,
		},
		trusted: cfg.TrustedSources,
		formats: cfg.SupportedFormats,
		cache:   verdicts,
		logger:  logger,
	}
}

// WithClient replaces the HTTP client used for probes
func (v *Validator) WithClient(client *http.Client) *Validator {
	v.client = client
	return v
}

// IsValidSource reports whether src looks playable
func (v *Validator) IsValidSource(ctx context.Context, src string) bool {
	if src == "" {
		return false
	}
	if v.isTrusted(src) {
		return true
	}
	if v.cache != nil && v.cache.IsKnownValid(src) {
		return true
	}

	var valid bool
	if path, ok := localPath(src); ok {
		valid = v.checkLocal(path)
	} else {
		valid = v.probe(ctx, src)
	}

	if valid && v.cache != nil {
		v.cache.MarkValid(src)
	}
	return valid
}

// isTrusted matches known direct-download providers that do not always send
// an audio content type
func (v *Validator) isTrusted(src string) bool {
	for _, ts := range v.trusted {
		if strings.Contains(src, ts.Host) && strings.Contains(src, ts.Marker) {
			return true
		}
	}
	return false
}

func (v *Validator) probe(ctx context.Context, src string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, src, nil)
	if err != nil {
		v.logger.WithError(err).WithField("url", src).Debug("Invalid audio URL")
		return false
	}

	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.WithError(err).WithField("url", src).Debug("Audio probe failed")
		return false
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300 && strings.Contains(contentType, "audio")

	v.logger.WithFields(logrus.Fields{
		"url":          src,
		"status":       resp.StatusCode,
		"content_type": contentType,
		"valid":        ok,
	}).Debug("Probed audio source")

	return ok
}

func (v *Validator) checkLocal(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		v.logger.WithField("path", path).Debug("Local audio source missing")
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range v.formats {
		if ext == format {
			return true
		}
	}
	return false
}

// localPath extracts a filesystem path from file:// URLs and bare paths
func localPath(src string) (string, bool) {
	u, err := url.Parse(src)
	if err != nil {
		return "", false
	}
	switch u.Scheme {
	case "file":
		return u.Path, true
	case "":
		return src, true
	default:
		return "", false
	}
}
