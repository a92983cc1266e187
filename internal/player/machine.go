// Package player owns the playback state machine: track selection,
// shuffle and repeat, source validation and the session snapshot.
package player

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"ostplayer/internal/catalog"
	"ostplayer/pkg/models"

	"github.com/sirupsen/logrus"
)

// Options tune the machine's behaviour
type Options struct {
	NoticeDuration   time.Duration // how long a notice stays visible
	RestartThreshold time.Duration // Previous restarts the track past this point
	VolumeStep       float64
}

// DefaultOptions mirrors config.DefaultConfig
func DefaultOptions() Options {
	return Options{
		NoticeDuration:   3 * time.Second,
		RestartThreshold: 3 * time.Second,
		VolumeStep:       0.1,
	}
}

// Deps are the collaborators the machine drives
type Deps struct {
	Media     MediaElement
	Validator SourceValidator
	Store     SnapshotStore
	Clock     Clock
	Logger    *logrus.Logger
	Rand      *rand.Rand
}

type resumeRequest struct {
	index   int
	elapsed time.Duration
}

// Machine is the only writer of the player state. Operations are
// serialized by mu; the lock is released while a source is validated.
type Machine struct {
	mu sync.Mutex

	catalog   *catalog.Catalog
	media     MediaElement
	validator SourceValidator
	store     SnapshotStore
	clock     Clock
	logger    *logrus.Logger
	rng       *rand.Rand
	opts      Options

	state   State
	display Display

	notice      *Notice
	noticeTimer Timer
	noticeSeq   uint64

	loadGen       uint64 // bumped by every LoadTrack; stale loads are dropped
	unlocked      bool
	pendingResume *resumeRequest

	listeners []chan View
}

// New creates a machine in the Idle state with the first track on display
func New(cat *catalog.Catalog, deps Deps, opts Options) *Machine {
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}

	m := &Machine{
		catalog:   cat,
		media:     deps.Media,
		validator: deps.Validator,
		store:     deps.Store,
		clock:     deps.Clock,
		logger:    deps.Logger,
		rng:       deps.Rand,
		opts:      opts,
		state: State{
			Status: StatusIdle,
			Volume: deps.Media.Volume(),
		},
	}

	if track, ok := cat.Track(0); ok {
		m.showTrackLocked(track)
	}
	return m
}

// Restore applies a saved session. A snapshot that was playing resumes on
// the first user interaction.
func (m *Machine) Restore() {
	snapshot := m.store.Load()

	m.mu.Lock()
	defer m.mu.Unlock()

	if snapshot.Volume != nil {
		m.applyVolumeLocked(*snapshot.Volume)
	}

	if m.catalog.Len() > 0 {
		if snapshot.CurrentIndex != nil {
			m.state.CurrentIndex = m.catalog.Constrain(*snapshot.CurrentIndex)
		}
		track, _ := m.catalog.Track(m.state.CurrentIndex)
		m.showTrackLocked(track)

		if snapshot.Playing != nil && *snapshot.Playing && snapshot.ElapsedSeconds != nil {
			m.pendingResume = &resumeRequest{
				index:   m.state.CurrentIndex,
				elapsed: time.Duration(*snapshot.ElapsedSeconds * float64(time.Second)),
			}
		}
	}

	m.logger.WithFields(logrus.Fields{
		"index":  m.state.CurrentIndex,
		"volume": m.state.Volume,
		"resume": m.pendingResume != nil,
	}).Debug("Session restored")
	m.notifyLocked()
}

// LoadTrack selects index (constrained into the catalog), shows it and
// assigns its source once validated. It reports whether the source was assigned.
func (m *Machine) LoadTrack(ctx context.Context, index int) bool {
	m.mu.Lock()
	if m.catalog.Len() == 0 {
		m.mu.Unlock()
		return false
	}

	index = m.catalog.Constrain(index)
	track, _ := m.catalog.Track(index)

	m.state.CurrentIndex = index
	m.state.Status = StatusLoading
	m.showTrackLocked(track)
	m.loadGen++
	gen := m.loadGen
	m.notifyLocked()
	m.mu.Unlock()

	valid := m.validator.IsValidSource(ctx, track.AudioURL)

	// Fetching and decoding can take a while; controls keep working meanwhile
	var prepared PreparedSource
	var prepareErr error
	if valid && m.current(gen) {
		prepared, prepareErr = m.media.Prepare(ctx, track.AudioURL)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.loadGen {
		m.logger.WithField("index", index).Debug("Discarding superseded load")
		discard(prepared, m.logger)
		return false
	}

	if !valid {
		m.state.Status = m.settledStatusLocked()
		m.showNoticeLocked(InvalidAudioSource, fmt.Sprintf("Audio for %q is not valid.", track.Title))
		m.notifyLocked()
		return false
	}

	if prepareErr != nil {
		m.logger.WithError(prepareErr).WithField("url", track.AudioURL).Error("Failed to load audio source")
		m.failLocked(MediaElementError, "Error loading audio.")
		return false
	}

	if err := m.media.SetSource(prepared); err != nil {
		m.logger.WithError(err).WithField("url", track.AudioURL).Error("Failed to assign audio source")
		discard(prepared, m.logger)
		m.failLocked(MediaElementError, "Error loading audio.")
		return false
	}

	m.state.Playing = false
	m.state.Status = StatusReady
	m.logger.WithFields(logrus.Fields{
		"index":  index,
		"title":  track.Title,
		"artist": track.Artist,
	}).Info("Track loaded")

	m.persistLocked()
	m.notifyLocked()
	return true
}

// current reports whether gen is still the latest load
func (m *Machine) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.loadGen
}

func discard(src PreparedSource, logger *logrus.Logger) {
	if src == nil {
		return
	}
	if err := src.Close(); err != nil {
		logger.WithError(err).WithField("url", src.URL()).Debug("Failed to release discarded source")
	}
}

// Play starts playback of the current track, loading it first if needed
func (m *Machine) Play(ctx context.Context) {
	m.mu.Lock()
	if m.catalog.Len() == 0 {
		m.mu.Unlock()
		return
	}
	hasSource := m.media.Source() != ""
	index := m.state.CurrentIndex
	m.mu.Unlock()

	if !hasSource && !m.LoadTrack(ctx, index) {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.UserHasInteracted {
		m.showNoticeLocked(AutoplayBlocked, "Press again to start playback.")
		m.unlockLocked()
		m.notifyLocked()
		return
	}

	if err := m.media.Play(); err != nil {
		m.logger.WithError(err).Error("Playback failed")
		m.failLocked(PlaybackRejected, "Playback failed. Try again or pick another track.")
		return
	}

	m.state.Playing = true
	m.state.Status = StatusPlaying
	m.display.PanelVisible = true
	m.persistLocked()
	m.notifyLocked()
}

// Pause always succeeds
func (m *Machine) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pauseLocked()
	m.notifyLocked()
}

// TogglePlay pauses when playing and plays otherwise
func (m *Machine) TogglePlay(ctx context.Context) {
	m.mu.Lock()
	playing := m.state.Playing
	m.mu.Unlock()

	if playing {
		m.Pause()
		return
	}
	m.Play(ctx)
}

// Next advances to the following (or a random) track
func (m *Machine) Next(ctx context.Context) {
	m.advance(ctx, 1)
}

// Previous restarts the current track when it has played past the restart
// threshold (shuffle off); otherwise it steps back like Next.
func (m *Machine) Previous(ctx context.Context) {
	m.mu.Lock()
	if m.catalog.Len() == 0 {
		m.mu.Unlock()
		return
	}
	if !m.state.Shuffle && m.media.CurrentTime() > m.opts.RestartThreshold {
		m.media.Seek(0)
		m.display.Elapsed = 0
		m.display.ElapsedLabel = FormatDuration(0)
		m.display.Progress = 0
		m.notifyLocked()
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.advance(ctx, -1)
}

func (m *Machine) advance(ctx context.Context, step int) {
	m.mu.Lock()
	n := m.catalog.Len()
	if n == 0 {
		m.mu.Unlock()
		return
	}

	wasPlaying := m.state.Playing
	var target int
	if m.state.Shuffle {
		target = m.pickShuffleLocked()
	} else {
		target = ((m.state.CurrentIndex+step)%n + n) % n
	}
	m.mu.Unlock()

	if m.LoadTrack(ctx, target) && wasPlaying {
		m.Play(ctx)
	}
}

// pickShuffleLocked draws a uniformly random index distinct from the current
// one. With a single track there is no alternative, so a repeat is allowed.
func (m *Machine) pickShuffleLocked() int {
	n := m.catalog.Len()
	next := m.rng.Intn(n)
	for next == m.state.CurrentIndex && n > 1 {
		next = m.rng.Intn(n)
	}
	return next
}

// ToggleShuffle flips shuffle mode
func (m *Machine) ToggleShuffle() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.Shuffle = !m.state.Shuffle
	m.notifyLocked()
}

// ToggleRepeat flips repeat mode; the media element loops the current track
func (m *Machine) ToggleRepeat() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.Repeat = !m.state.Repeat
	m.media.SetLoop(m.state.Repeat)
	m.notifyLocked()
}

// OnTrackEnded advances unless repeat is on (the media element loops then)
func (m *Machine) OnTrackEnded(ctx context.Context) {
	m.mu.Lock()
	repeat := m.state.Repeat
	m.mu.Unlock()

	if repeat {
		return
	}
	m.Next(ctx)
}

// Seek moves to fraction of the duration; no-op while the duration is unknown
func (m *Machine) Seek(fraction float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	duration := m.media.Duration()
	if duration <= 0 {
		return
	}
	fraction = clamp01(fraction)
	position := time.Duration(fraction * float64(duration))
	m.media.Seek(position)
	m.setProgressLocked(position, duration)
	m.notifyLocked()
}

// SetVolume clamps volume into [0,1], applies and persists it
func (m *Machine) SetVolume(volume float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.applyVolumeLocked(volume)
	m.persistLocked()
	m.notifyLocked()
}

// VolumeUp raises the volume by one step
func (m *Machine) VolumeUp() {
	m.stepVolume(m.opts.VolumeStep)
}

// VolumeDown lowers the volume by one step
func (m *Machine) VolumeDown() {
	m.stepVolume(-m.opts.VolumeStep)
}

func (m *Machine) stepVolume(delta float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// round away float drift so ten steps land exactly on 0 or 1
	m.applyVolumeLocked(math.Round((m.state.Volume+delta)*1000) / 1000)
	m.persistLocked()
	m.notifyLocked()
}

// Interact records a user gesture. The first one performs the one-time
// unlock and resumes a restored session that was playing.
func (m *Machine) Interact(ctx context.Context) {
	m.mu.Lock()
	first := !m.unlocked
	m.unlockLocked()
	resume := m.pendingResume
	m.pendingResume = nil
	if first {
		m.notifyLocked()
	}
	m.mu.Unlock()

	if resume == nil {
		return
	}
	if !m.LoadTrack(ctx, resume.index) {
		return
	}
	m.mu.Lock()
	m.media.Seek(resume.elapsed)
	m.mu.Unlock()
	m.Play(ctx)
}

// HidePanel closes the now-playing panel
func (m *Machine) HidePanel() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.display.PanelVisible = false
	m.notifyLocked()
}

// Persist writes the session snapshot (called on shutdown)
func (m *Machine) Persist() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.persistLocked()
}

// OnLoadedMetadata replaces the catalog duration label with the measured one
func (m *Machine) OnLoadedMetadata(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.display.DurationLabel = FormatDuration(duration)
	m.notifyLocked()
}

// OnTimeUpdate refreshes progress from the media element's clock
func (m *Machine) OnTimeUpdate(position, duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setProgressLocked(position, duration)
	m.notifyLocked()
}

// OnEnded is the media element's end-of-track event
func (m *Machine) OnEnded() {
	m.OnTrackEnded(context.Background())
}

// OnPlaybackError forces the player to paused and reports the failure
func (m *Machine) OnPlaybackError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.WithError(err).Error("Media element error")
	m.failLocked(MediaElementError, "Error loading audio.")
}

// View returns a copy of the current state
func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.viewLocked()
}

// Catalog returns the catalog the machine plays from
func (m *Machine) Catalog() *catalog.Catalog {
	return m.catalog
}

// Subscribe adds a listener for state changes
func (m *Machine) Subscribe() <-chan View {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan View, 16) // Buffered channel to prevent blocking
	m.listeners = append(m.listeners, ch)
	return ch
}

// Unsubscribe removes a listener (call this when done to prevent leaks)
func (m *Machine) Unsubscribe(ch <-chan View) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, listener := range m.listeners {
		if listener == ch {
			close(listener)
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			break
		}
	}
}

// notifyLocked sends the view to every listener, dropping listeners that
// stopped draining (must be called with lock held)
func (m *Machine) notifyLocked() {
	if len(m.listeners) == 0 {
		return
	}
	view := m.viewLocked()
	kept := m.listeners[:0]
	for _, listener := range m.listeners {
		select {
		case listener <- view:
			kept = append(kept, listener)
		default:
			close(listener)
		}
	}
	m.listeners = kept
}

func (m *Machine) viewLocked() View {
	view := View{
		State:   m.state,
		Display: m.display,
		Catalog: m.catalog.Len(),
	}
	if m.notice != nil {
		n := *m.notice
		view.Notice = &n
	}
	if track, ok := m.catalog.Track(m.state.CurrentIndex); ok {
		view.Track = &track
		view.Selected = true
	}
	return view
}

// showTrackLocked projects track onto the display and resets progress
func (m *Machine) showTrackLocked(track models.Track) {
	m.display.Title = track.Title
	m.display.Artist = track.Artist
	m.display.ThumbnailURL = track.ThumbnailURL
	m.display.DurationLabel = track.DurationLabel
	m.display.Elapsed = 0
	m.display.ElapsedLabel = FormatDuration(0)
	m.display.Progress = 0
}

func (m *Machine) setProgressLocked(position, duration time.Duration) {
	m.display.Elapsed = position
	m.display.ElapsedLabel = FormatDuration(position)
	m.display.Progress = clamp01(float64(position) / float64(duration))
}

// unlockLocked performs the one-time silent start/stop that satisfies the
// gesture requirement for later playback
func (m *Machine) unlockLocked() {
	if m.unlocked {
		return
	}
	m.unlocked = true
	m.state.UserHasInteracted = true

	if m.media.Paused() && m.media.Source() != "" {
		if err := m.media.Play(); err != nil {
			m.logger.WithError(err).Debug("Unlock playback attempt failed")
		}
		m.media.Pause()
	}
}

func (m *Machine) pauseLocked() {
	m.state.Playing = false
	m.media.Pause()
	m.state.Status = m.settledStatusLocked()
	m.persistLocked()
}

// failLocked forces paused, enters Error and shows a notice
func (m *Machine) failLocked(kind NoticeKind, message string) {
	m.pauseLocked()
	m.state.Status = StatusError
	m.showNoticeLocked(kind, message)
	m.notifyLocked()
}

// settledStatusLocked derives the resting status from the media element
func (m *Machine) settledStatusLocked() Status {
	switch {
	case m.media.Source() == "":
		return StatusIdle
	case m.state.Playing:
		return StatusPlaying
	default:
		return StatusReady
	}
}

func (m *Machine) applyVolumeLocked(volume float64) {
	volume = clamp01(volume)
	m.state.Volume = volume
	m.media.SetVolume(volume)
}

func (m *Machine) persistLocked() {
	if m.store == nil {
		return
	}
	snapshot := models.NewSessionSnapshot(
		m.state.CurrentIndex,
		m.state.Playing,
		m.media.CurrentTime().Seconds(),
		m.state.Volume,
	)
	if err := m.store.Save(snapshot); err != nil {
		m.logger.WithError(err).Warn("Failed to persist session state")
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
