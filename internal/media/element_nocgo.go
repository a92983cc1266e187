//go:build !((linux && cgo) || windows || darwin)

package media

import (
	"context"
	"net/http"
	"sync"
	"time"

	"ostplayer/internal/player"

	"github.com/sirupsen/logrus"
)

// AudioAvailable indicates whether audio playback is supported in this build.
// Audio requires CGO for native sound libraries.
const AudioAvailable = false

// Element keeps the player state consistent without producing sound.
// Play always fails with ErrAudioUnavailable.
type Element struct {
	mu     sync.Mutex
	source string
	volume float64
	loop   bool
}

// New creates a silent element
func New(_ *http.Client, _ *logrus.Logger) *Element {
	return &Element{volume: 1}
}

// Bind is a no-op; a silent element never raises events
func (e *Element) Bind(player.Events) {}

// Prepare records src without decoding it
func (e *Element) Prepare(_ context.Context, src string) (player.PreparedSource, error) {
	return &Prepared{url: src}, nil
}

func (e *Element) SetSource(src player.PreparedSource) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.source = ""
	if src != nil {
		e.source = src.URL()
	}
	return nil
}

func (e *Element) Source() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.source
}

func (e *Element) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.source == "" {
		return ErrNoSource
	}
	return ErrAudioUnavailable
}

func (e *Element) Pause() {}

func (e *Element) Paused() bool { return true }

func (e *Element) Seek(time.Duration) {}

func (e *Element) CurrentTime() time.Duration { return 0 }

func (e *Element) Duration() time.Duration { return 0 }

func (e *Element) SetVolume(volume float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = volume
}

func (e *Element) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

func (e *Element) SetLoop(loop bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loop = loop
}

// Close releases nothing
func (e *Element) Close() error { return nil }
