package player

import (
	"context"
	"time"

	"ostplayer/pkg/models"
)

// MediaElement is the single audio output the machine drives. Duration
// returns 0 while it is unknown.
//
// Prepare fetches and decodes a source without affecting the one in use and
// must not block the element's other methods. SetSource swaps a prepared
// source in; nil clears the current one.
type MediaElement interface {
	Prepare(ctx context.Context, src string) (PreparedSource, error)
	SetSource(src PreparedSource) error
	Source() string
	Play() error
	Pause()
	Paused() bool
	Seek(position time.Duration)
	CurrentTime() time.Duration
	Duration() time.Duration
	SetVolume(volume float64)
	Volume() float64
	SetLoop(loop bool)
}

// PreparedSource is a decoded source waiting to be assigned. Close releases
// it when it is discarded instead.
type PreparedSource interface {
	URL() string
	Close() error
}

// Events are dispatched by the media element into the machine
type Events interface {
	OnLoadedMetadata(duration time.Duration)
	OnTimeUpdate(position, duration time.Duration)
	OnEnded()
	OnPlaybackError(err error)
}

// SourceValidator decides whether an audio URL is worth assigning
type SourceValidator interface {
	IsValidSource(ctx context.Context, url string) bool
}

// SnapshotStore persists the session snapshot
type SnapshotStore interface {
	Save(snapshot models.SessionSnapshot) error
	Load() models.SessionSnapshot
}

// Timer is a pending AfterFunc call
type Timer interface {
	Stop() bool
}

// Clock provides time and delayed callbacks
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemClock is the Clock backed by package time
type SystemClock struct{}

// Now returns time.Now()
func (SystemClock) Now() time.Time { return time.Now() }

// AfterFunc wraps time.AfterFunc
func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
