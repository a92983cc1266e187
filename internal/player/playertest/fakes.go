// Package playertest provides in-memory stand-ins for the player's
// capabilities.
package playertest

import (
	"context"
	"sort"
	"sync"
	"time"

	"ostplayer/internal/player"
)

// Media is a MediaElement that only records what it was asked to do. When
// PrepareGate is set, each Prepare blocks until a value is received from it.
type Media struct {
	mu sync.Mutex

	source   string
	paused   bool
	position time.Duration
	duration time.Duration
	volume   float64
	loop     bool

	PlayErr      error // returned by Play when set
	PrepareErr   error // returned by Prepare when set
	SetSourceErr error // returned by SetSource when set
	PrepareGate  chan struct{}
	OnPrepare    func(src string)
	PlayCalls    int
	PauseCalls   int
	Sources      []string
	Discarded    []string // prepared sources closed without being assigned
}

// Source is the PreparedSource handed out by Media
type Source struct {
	media *Media
	url   string
}

func (s *Source) URL() string { return s.url }

func (s *Source) Close() error {
	s.media.mu.Lock()
	defer s.media.mu.Unlock()
	s.media.Discarded = append(s.media.Discarded, s.url)
	return nil
}

// NewMedia returns a paused media element at full volume
func NewMedia() *Media {
	return &Media{paused: true, volume: 1}
}

func (f *Media) Prepare(ctx context.Context, src string) (player.PreparedSource, error) {
	f.mu.Lock()
	gate, onPrepare, err := f.PrepareGate, f.OnPrepare, f.PrepareErr
	f.mu.Unlock()

	if onPrepare != nil {
		onPrepare(src)
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &Source{media: f, url: src}, nil
}

func (f *Media) SetSource(src player.PreparedSource) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetSourceErr != nil {
		return f.SetSourceErr
	}
	f.source = ""
	if src != nil {
		f.source = src.URL()
	}
	f.paused = true
	f.position = 0
	f.duration = 0
	f.Sources = append(f.Sources, f.source)
	return nil
}

// DiscardedSources returns the prepared sources that were closed unused
func (f *Media) DiscardedSources() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Discarded...)
}

func (f *Media) Source() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.source
}

func (f *Media) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PlayCalls++
	if f.PlayErr != nil {
		return f.PlayErr
	}
	f.paused = false
	return nil
}

func (f *Media) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PauseCalls++
	f.paused = true
}

func (f *Media) Paused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

func (f *Media) Seek(position time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.position = position
}

func (f *Media) CurrentTime() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *Media) Duration() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.duration
}

func (f *Media) SetVolume(volume float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = volume
}

func (f *Media) Volume() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume
}

func (f *Media) SetLoop(loop bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loop = loop
}

// Loop reports the loop flag last set by the machine
func (f *Media) Loop() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loop
}

// SetTimes simulates decoded metadata and playback progress
func (f *Media) SetTimes(position, duration time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.position = position
	f.duration = duration
}

// Calls returns the Play and Pause call counts
func (f *Media) Calls() (plays, pauses int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.PlayCalls, f.PauseCalls
}

// Validator accepts every URL except the ones listed in Invalid. When Gate
// is set, each probe blocks until a value is received from it.
type Validator struct {
	mu      sync.Mutex
	Invalid map[string]bool
	Gate    chan struct{}
	Probed  []string
	OnProbe func(url string)
}

func (v *Validator) IsValidSource(ctx context.Context, url string) bool {
	v.mu.Lock()
	v.Probed = append(v.Probed, url)
	onProbe := v.OnProbe
	gate := v.Gate
	invalid := v.Invalid[url]
	v.mu.Unlock()

	if onProbe != nil {
		onProbe(url)
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return false
		}
	}
	return !invalid
}

// ProbeCount returns how many probes were made
func (v *Validator) ProbeCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.Probed)
}

// Clock is a manual clock; AfterFunc callbacks run inside Advance
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*timer
}

type timer struct {
	clock   *Clock
	at      time.Time
	f       func()
	stopped bool
}

// NewClock starts at a fixed instant
func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) AfterFunc(d time.Duration, f func()) player.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &timer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and fires due timers in order
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due, pending []*timer
	for _, t := range c.timers {
		if t.stopped {
			continue
		}
		if !t.at.After(c.now) {
			due = append(due, t)
		} else {
			pending = append(pending, t)
		}
	}
	c.timers = pending
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

func (t *timer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}
