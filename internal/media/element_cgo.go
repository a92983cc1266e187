//go:build (linux && cgo) || windows || darwin

package media

import (
	"context"
	"net/http"
	"sync"
	"time"

	"ostplayer/internal/player"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/sirupsen/logrus"
)

// AudioAvailable indicates whether audio playback is supported in this build.
const AudioAvailable = true

// Element decodes one source at a time and plays it on the speaker
type Element struct {
	mu sync.Mutex

	client       *http.Client
	logger       *logrus.Logger
	events       player.Events
	sampleRate   beep.SampleRate
	tickInterval time.Duration
	loadTimeout  time.Duration
	speakerReady bool

	source   string
	stream   *stream
	gen      uint64 // bumped whenever the stream is replaced
	paused   bool
	volume   float64
	loop     bool
	stopTick chan struct{}
}

// New creates an element at full volume. The speaker is opened on first Play.
func New(client *http.Client, logger *logrus.Logger) *Element {
	if client == nil {
		client = http.DefaultClient
	}
	return &Element{
		client:       client,
		logger:       logger,
		sampleRate:   beep.SampleRate(44100),
		tickInterval: 250 * time.Millisecond,
		loadTimeout:  time.Minute,
		paused:       true,
		volume:       1,
	}
}

// Bind sets the receiver of media events
func (e *Element) Bind(events player.Events) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = events
}

// Prepare fetches and decodes src. It does not take the element lock, so a
// slow download never stalls the other methods.
func (e *Element) Prepare(ctx context.Context, src string) (player.PreparedSource, error) {
	ctx, cancel := context.WithTimeout(ctx, e.loadTimeout)
	defer cancel()

	streamer, format, err := Open(ctx, e.client, src)
	if err != nil {
		return nil, err
	}
	return &Prepared{url: src, source: streamer, format: format}, nil
}

// SetSource replaces the current stream with a prepared one
func (e *Element) SetSource(src player.PreparedSource) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var p *Prepared
	if src != nil {
		var ok bool
		if p, ok = src.(*Prepared); !ok || p.source == nil {
			return ErrForeignSource
		}
	}

	e.releaseLocked()
	e.source = ""
	if p == nil {
		return nil
	}

	e.stream = newStream(p.source, p.format, e.sampleRate, e.volume)
	e.source = p.url

	duration := e.stream.duration()
	e.logger.WithFields(logrus.Fields{
		"source":      p.url,
		"sample_rate": p.format.SampleRate,
		"duration":    duration,
	}).Debug("Audio source decoded")

	e.dispatchLocked(func(ev player.Events) { ev.OnLoadedMetadata(duration) })
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

	if e.stream == nil {
		return ErrNoSource
	}
	if err := e.initSpeakerLocked(); err != nil {
		return err
	}
	if !e.stream.queued {
		e.queueLocked()
	}

	speaker.Lock()
	e.stream.ctrl.Paused = false
	speaker.Unlock()

	e.paused = false
	e.startTickerLocked()
	return nil
}

func (e *Element) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stream != nil && e.speakerReady {
		speaker.Lock()
		e.stream.ctrl.Paused = true
		speaker.Unlock()
	}
	e.paused = true
	e.stopTickerLocked()
}

func (e *Element) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

func (e *Element) Seek(position time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stream == nil {
		return
	}
	speaker.Lock()
	err := e.stream.seek(position)
	speaker.Unlock()
	if err != nil {
		e.logger.WithError(err).WithField("position", position).Warn("Seek failed")
	}
}

func (e *Element) CurrentTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stream == nil {
		return 0
	}
	speaker.Lock()
	defer speaker.Unlock()
	return e.stream.position()
}

func (e *Element) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stream == nil {
		return 0
	}
	return e.stream.duration()
}

func (e *Element) SetVolume(volume float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.volume = volume
	if e.stream != nil {
		speaker.Lock()
		setGain(e.stream.gain, volume)
		speaker.Unlock()
	}
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

// Close stops playback and releases the current source
func (e *Element) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.releaseLocked()
	e.source = ""
	return nil
}

func (e *Element) initSpeakerLocked() error {
	if e.speakerReady {
		return nil
	}
	if err := speaker.Init(e.sampleRate, e.sampleRate.N(time.Second/10)); err != nil {
		return err
	}
	e.speakerReady = true
	return nil
}

// queueLocked hands the stream to the speaker; the callback fires when the
// decoder runs out of samples
func (e *Element) queueLocked() {
	gen := e.gen
	e.stream.queued = true
	speaker.Play(beep.Seq(e.stream.ctrl, beep.Callback(func() {
		// Runs on the speaker goroutine with the mixer locked
		go e.finished(gen)
	})))
}

func (e *Element) finished(gen uint64) {
	e.mu.Lock()
	if gen != e.gen || e.stream == nil {
		e.mu.Unlock()
		return
	}
	e.stream.queued = false

	if e.loop {
		speaker.Lock()
		err := e.stream.seek(0)
		speaker.Unlock()
		if err == nil {
			e.queueLocked()
			e.mu.Unlock()
			return
		}
		e.logger.WithError(err).Warn("Failed to rewind looping track")
	}

	e.paused = true
	e.stopTickerLocked()
	e.dispatchLocked(func(ev player.Events) { ev.OnEnded() })
	e.mu.Unlock()
}

// releaseLocked detaches the current stream from the speaker
func (e *Element) releaseLocked() {
	e.gen++
	e.stopTickerLocked()
	e.paused = true
	if e.stream == nil {
		return
	}

	var err error
	if e.speakerReady {
		speaker.Lock()
		err = e.stream.detach()
		speaker.Unlock()
	} else {
		err = e.stream.detach()
	}
	if err != nil {
		e.logger.WithError(err).Debug("Failed to close decoder")
	}
	e.stream = nil
}

func (e *Element) startTickerLocked() {
	if e.stopTick != nil {
		return
	}
	stop := make(chan struct{})
	e.stopTick = stop
	go e.tick(stop)
}

func (e *Element) stopTickerLocked() {
	if e.stopTick != nil {
		close(e.stopTick)
		e.stopTick = nil
	}
}

func (e *Element) tick(stop <-chan struct{}) {
	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			position, duration := e.CurrentTime(), e.Duration()
			e.mu.Lock()
			events := e.events
			e.mu.Unlock()
			if events != nil {
				events.OnTimeUpdate(position, duration)
			}
		}
	}
}

// dispatchLocked delivers an event without holding the element lock, so the
// receiver may call back into the element
func (e *Element) dispatchLocked(fn func(player.Events)) {
	if e.events == nil {
		return
	}
	events := e.events
	go fn(events)
}
