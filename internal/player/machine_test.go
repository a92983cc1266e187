package player_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"testing"
	"time"

	"ostplayer/internal/catalog"
	"ostplayer/internal/database"
	"ostplayer/internal/player"
	"ostplayer/internal/player/playertest"
	"ostplayer/internal/session"
	"ostplayer/pkg/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	machine   *player.Machine
	media     *playertest.Media
	validator *playertest.Validator
	clock     *playertest.Clock
	store     *session.Store
}

func testTracks(n int) []models.Track {
	tracks := make([]models.Track, n)
	for i := range tracks {
		tracks[i] = models.Track{
			Title:         fmt.Sprintf("Track %d", i),
			Artist:        fmt.Sprintf("Artist %d", i),
			DurationLabel: fmt.Sprintf("%d:00", i+1),
			ThumbnailURL:  fmt.Sprintf("https://img.example/%d.jpg", i),
			AudioURL:      fmt.Sprintf("https://cdn.example/track-%d.mp3", i),
			Rating:        i % 6,
		}
	}
	return tracks
}

func newHarness(t *testing.T, n int) *harness {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	h := &harness{
		media:     playertest.NewMedia(),
		validator: &playertest.Validator{Invalid: map[string]bool{}},
		clock:     playertest.NewClock(),
		store:     session.NewStore(database.NewMemoryStorage()),
	}
	h.machine = player.New(catalog.New(testTracks(n)), player.Deps{
		Media:     h.media,
		Validator: h.validator,
		Store:     h.store,
		Clock:     h.clock,
		Logger:    logger,
		Rand:      rand.New(rand.NewSource(42)),
	}, player.DefaultOptions())
	return h
}

func (h *harness) index() int {
	return h.machine.View().State.CurrentIndex
}

func TestNextCyclesThroughCatalog(t *testing.T) {
	ctx := context.Background()
	for n := 1; n <= 6; n++ {
		h := newHarness(t, n)
		for start := 0; start < n; start++ {
			require.True(t, h.machine.LoadTrack(ctx, start))
			for i := 0; i < n; i++ {
				h.machine.Next(ctx)
			}
			assert.Equal(t, start, h.index(), "catalog of %d starting at %d", n, start)
		}
	}
}

func TestPreviousWrapsBackward(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 4)

	h.machine.Previous(ctx)
	assert.Equal(t, 3, h.index())
	h.machine.Previous(ctx)
	assert.Equal(t, 2, h.index())
}

func TestLoadTrackUpdatesDisplayBeforeValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 3)
	track := testTracks(3)[2]
	h.validator.Invalid[track.AudioURL] = true

	var during player.View
	h.validator.OnProbe = func(string) {
		during = h.machine.View()
	}

	require.True(t, h.machine.LoadTrack(ctx, 0))
	h.media.SetTimes(30*time.Second, 60*time.Second)
	h.machine.OnTimeUpdate(30*time.Second, 60*time.Second)

	assert.False(t, h.machine.LoadTrack(ctx, 2))

	assert.Equal(t, player.StatusLoading, during.State.Status)
	assert.Equal(t, 2, during.State.CurrentIndex)
	assert.Equal(t, track.Title, during.Display.Title)
	assert.Equal(t, track.Artist, during.Display.Artist)
	assert.Equal(t, track.ThumbnailURL, during.Display.ThumbnailURL)
	assert.Equal(t, track.DurationLabel, during.Display.DurationLabel)
	assert.Equal(t, 0.0, during.Display.Progress)
	assert.Equal(t, "0:00", during.Display.ElapsedLabel)

	// The failed load leaves the previous source in place
	view := h.machine.View()
	assert.Equal(t, testTracks(3)[0].AudioURL, h.media.Source())
	assert.Equal(t, player.StatusReady, view.State.Status)
	require.NotNil(t, view.Notice)
	assert.Equal(t, player.InvalidAudioSource, view.Notice.Kind)
	assert.Contains(t, view.Notice.Message, track.Title)
}

func TestInvalidSourceDoesNotDisturbPlayback(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 2)
	h.validator.Invalid[testTracks(2)[1].AudioURL] = true

	h.machine.Interact(ctx)
	h.machine.Play(ctx)
	require.True(t, h.machine.View().State.Playing)

	h.machine.Next(ctx)

	view := h.machine.View()
	assert.Equal(t, 1, view.State.CurrentIndex)
	assert.True(t, view.State.Playing)
	assert.False(t, h.media.Paused())
	assert.Equal(t, testTracks(2)[0].AudioURL, h.media.Source())
}

func TestPreviousRestartsAfterThreshold(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 3)
	require.True(t, h.machine.LoadTrack(ctx, 1))
	probes := h.validator.ProbeCount()

	h.media.SetTimes(5*time.Second, 120*time.Second)
	h.machine.Previous(ctx)

	assert.Equal(t, 1, h.index())
	assert.Equal(t, time.Duration(0), h.media.CurrentTime())
	assert.Equal(t, probes, h.validator.ProbeCount())

	h.media.SetTimes(2*time.Second, 120*time.Second)
	h.machine.Previous(ctx)
	assert.Equal(t, 0, h.index())
}

func TestShuffleNeverRepeatsCurrent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 5)
	h.machine.ToggleShuffle()
	require.True(t, h.machine.View().State.Shuffle)

	for i := 0; i < 100; i++ {
		before := h.index()
		h.machine.Next(ctx)
		assert.NotEqual(t, before, h.index(), "next trial %d", i)

		before = h.index()
		h.media.SetTimes(10*time.Second, 60*time.Second) // shuffle ignores the restart rule
		h.machine.Previous(ctx)
		assert.NotEqual(t, before, h.index(), "previous trial %d", i)
	}
}

func TestShuffleWithSingleTrackTerminates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1)
	h.machine.ToggleShuffle()

	done := make(chan struct{})
	go func() {
		h.machine.Next(ctx)
		h.machine.Previous(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shuffle with a single track did not terminate")
	}
	assert.Equal(t, 0, h.index())
}

func TestSetVolumeClamps(t *testing.T) {
	h := newHarness(t, 1)

	tests := []struct {
		in   float64
		want float64
	}{
		{-0.5, 0},
		{1.7, 1},
		{0.35, 0.35},
	}

	for _, tt := range tests {
		h.machine.SetVolume(tt.in)
		assert.Equal(t, tt.want, h.machine.View().State.Volume)
		assert.Equal(t, tt.want, h.media.Volume())
		require.NotNil(t, h.store.Load().Volume)
		assert.Equal(t, tt.want, *h.store.Load().Volume)
	}
}

func TestVolumeSteps(t *testing.T) {
	h := newHarness(t, 1)
	h.machine.SetVolume(0.75)

	h.machine.VolumeUp()
	assert.InDelta(t, 0.85, h.machine.View().State.Volume, 1e-9)
	h.machine.VolumeUp()
	h.machine.VolumeUp()
	assert.Equal(t, 1.0, h.machine.View().State.Volume)

	for i := 0; i < 15; i++ {
		h.machine.VolumeDown()
	}
	assert.Equal(t, 0.0, h.machine.View().State.Volume)
}

func TestPlayBeforeGestureIsBlocked(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 2)

	h.machine.Play(ctx)

	view := h.machine.View()
	assert.False(t, view.State.Playing)
	assert.NotEqual(t, player.StatusPlaying, view.State.Status)
	require.NotNil(t, view.Notice)
	assert.Equal(t, player.AutoplayBlocked, view.Notice.Kind)
	assert.True(t, view.State.UserHasInteracted)

	plays, pauses := h.media.Calls()
	assert.Equal(t, 1, plays, "exactly one unlock attempt")
	assert.Equal(t, 1, pauses)
	assert.True(t, h.media.Paused())

	// A later gesture does not unlock again
	h.machine.Interact(ctx)
	plays, _ = h.media.Calls()
	assert.Equal(t, 1, plays)

	h.machine.Play(ctx)
	assert.True(t, h.machine.View().State.Playing)
	assert.True(t, h.machine.View().Display.PanelVisible)
}

func TestPlayRejected(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 2)
	h.machine.Interact(ctx)
	h.media.PlayErr = errors.New("decode failed")

	h.machine.Play(ctx)

	view := h.machine.View()
	assert.False(t, view.State.Playing)
	assert.Equal(t, player.StatusError, view.State.Status)
	require.NotNil(t, view.Notice)
	assert.Equal(t, player.PlaybackRejected, view.Notice.Kind)

	plays, _ := h.media.Calls()
	assert.Equal(t, 1, plays, "no automatic retry")
}

func TestTrackEndedAdvancesOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 3)
	h.machine.Interact(ctx)
	h.machine.Play(ctx)
	probes := h.validator.ProbeCount()

	h.machine.OnEnded()

	assert.Equal(t, 1, h.index())
	assert.Equal(t, probes+1, h.validator.ProbeCount())
	assert.True(t, h.machine.View().State.Playing)
	assert.False(t, h.media.Paused())
}

func TestTrackEndedWithRepeatLoops(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 3)
	h.machine.Interact(ctx)
	h.machine.Play(ctx)

	h.machine.ToggleRepeat()
	assert.True(t, h.media.Loop())
	probes := h.validator.ProbeCount()

	h.machine.OnEnded()
	assert.Equal(t, 0, h.index())
	assert.Equal(t, probes, h.validator.ProbeCount())

	h.machine.ToggleRepeat()
	assert.False(t, h.media.Loop())
}

func TestSeek(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1)
	require.True(t, h.machine.LoadTrack(ctx, 0))

	h.machine.Seek(0.5)
	assert.Equal(t, time.Duration(0), h.media.CurrentTime(), "duration unknown")

	h.media.SetTimes(0, 200*time.Second)
	h.machine.Seek(0.25)
	assert.Equal(t, 50*time.Second, h.media.CurrentTime())
	assert.InDelta(t, 0.25, h.machine.View().Display.Progress, 1e-9)
	assert.Equal(t, "0:50", h.machine.View().Display.ElapsedLabel)

	h.machine.Seek(3)
	assert.Equal(t, 200*time.Second, h.media.CurrentTime())
}

func TestNoticeClearsAfterInterval(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 2)
	h.validator.Invalid[testTracks(2)[0].AudioURL] = true

	h.machine.LoadTrack(ctx, 0)
	require.NotNil(t, h.machine.View().Notice)

	h.clock.Advance(2 * time.Second)
	require.NotNil(t, h.machine.View().Notice)

	// A newer notice restarts the timer
	h.machine.LoadTrack(ctx, 0)
	h.clock.Advance(2 * time.Second)
	require.NotNil(t, h.machine.View().Notice)

	h.clock.Advance(time.Second)
	assert.Nil(t, h.machine.View().Notice)
}

func TestSupersededLoadIsDiscarded(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 3)
	gate := make(chan struct{})
	probed := make(chan string, 2)
	h.validator.Gate = gate
	h.validator.OnProbe = func(url string) { probed <- url }

	results := make(chan bool, 2)
	go func() { results <- h.machine.LoadTrack(ctx, 1) }()
	<-probed
	go func() { results <- h.machine.LoadTrack(ctx, 2) }()
	<-probed

	gate <- struct{}{}
	gate <- struct{}{}
	<-results
	<-results

	assert.Equal(t, []string{testTracks(3)[2].AudioURL}, h.media.Sources)
	assert.Equal(t, 2, h.index())
	assert.Equal(t, "Track 2", h.machine.View().Display.Title)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 3)
	require.NoError(t, h.store.Save(models.NewSessionSnapshot(7, true, 42, 0.4)))

	h.machine.Restore()

	view := h.machine.View()
	assert.Equal(t, 2, view.State.CurrentIndex, "out-of-range index is constrained")
	assert.Equal(t, 0.4, view.State.Volume)
	assert.Equal(t, 0.4, h.media.Volume())
	assert.Equal(t, "Track 2", view.Display.Title)
	assert.False(t, view.State.Playing)
	assert.Empty(t, h.media.Source(), "resume waits for a gesture")

	h.machine.Interact(ctx)

	view = h.machine.View()
	assert.True(t, view.State.Playing)
	assert.Equal(t, testTracks(3)[2].AudioURL, h.media.Source())
	assert.Equal(t, 42*time.Second, h.media.CurrentTime())
}

func TestRestoreWithoutSnapshot(t *testing.T) {
	h := newHarness(t, 2)
	h.machine.Restore()

	view := h.machine.View()
	assert.Equal(t, 0, view.State.CurrentIndex)
	assert.Equal(t, 1.0, view.State.Volume)
	assert.Equal(t, player.StatusIdle, view.State.Status)
}

func TestEmptyCatalog(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0)

	h.machine.Interact(ctx)
	h.machine.Play(ctx)
	h.machine.Next(ctx)
	h.machine.Previous(ctx)
	assert.False(t, h.machine.LoadTrack(ctx, 0))

	view := h.machine.View()
	assert.False(t, view.Selected)
	assert.Nil(t, view.Track)
	assert.Equal(t, 0, h.validator.ProbeCount())
	assert.Empty(t, h.media.Sources)
}

func TestPlaybackErrorEvent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 2)
	h.machine.Interact(ctx)
	h.machine.Play(ctx)

	h.machine.OnPlaybackError(errors.New("network"))

	view := h.machine.View()
	assert.False(t, view.State.Playing)
	assert.Equal(t, player.StatusError, view.State.Status)
	require.NotNil(t, view.Notice)
	assert.Equal(t, player.MediaElementError, view.Notice.Kind)
	assert.True(t, h.media.Paused())
}

func TestPauseAndToggle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 2)
	h.machine.Interact(ctx)

	h.machine.TogglePlay(ctx)
	assert.True(t, h.machine.View().State.Playing)

	h.machine.TogglePlay(ctx)
	view := h.machine.View()
	assert.False(t, view.State.Playing)
	assert.Equal(t, player.StatusReady, view.State.Status)

	snapshot := h.store.Load()
	require.NotNil(t, snapshot.Playing)
	assert.False(t, *snapshot.Playing)
}

func TestMetadataAndTimeEvents(t *testing.T) {
	h := newHarness(t, 1)

	h.machine.OnLoadedMetadata(0)
	assert.Equal(t, "1:00", h.machine.View().Display.DurationLabel)

	h.machine.OnLoadedMetadata(271 * time.Second)
	assert.Equal(t, "4:31", h.machine.View().Display.DurationLabel)

	h.machine.OnTimeUpdate(65*time.Second, 130*time.Second)
	view := h.machine.View()
	assert.Equal(t, "1:05", view.Display.ElapsedLabel)
	assert.InDelta(t, 0.5, view.Display.Progress, 1e-9)
}

func TestSubscribe(t *testing.T) {
	h := newHarness(t, 2)
	updates := h.machine.Subscribe()

	h.machine.ToggleShuffle()

	select {
	case view := <-updates:
		assert.True(t, view.State.Shuffle)
	case <-time.After(time.Second):
		t.Fatal("expected a state update")
	}

	h.machine.Unsubscribe(updates)
	_, open := <-updates
	assert.False(t, open)
}

func TestHidePanel(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1)
	h.machine.Interact(ctx)
	h.machine.Play(ctx)
	require.True(t, h.machine.View().Display.PanelVisible)

	h.machine.HidePanel()
	assert.False(t, h.machine.View().Display.PanelVisible)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{9 * time.Second, "0:09"},
		{271 * time.Second, "4:31"},
		{3601 * time.Second, "60:01"},
		{-time.Second, "0:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, player.FormatDuration(tt.in))
	}
}

func TestControlsRespondWhileSourceLoads(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 3)
	gate := make(chan struct{})
	preparing := make(chan string, 1)
	h.media.PrepareGate = gate
	h.media.OnPrepare = func(src string) { preparing <- src }

	loaded := make(chan bool, 1)
	go func() { loaded <- h.machine.LoadTrack(ctx, 1) }()
	assert.Equal(t, testTracks(3)[1].AudioURL, <-preparing)

	views := make(chan player.View, 1)
	go func() {
		h.machine.Pause()
		h.machine.SetVolume(0.5)
		views <- h.machine.View()
	}()

	select {
	case view := <-views:
		assert.Equal(t, "Track 1", view.Display.Title)
		assert.Equal(t, 0.5, view.State.Volume)
	case <-time.After(2 * time.Second):
		t.Fatal("controls blocked while the source was being fetched")
	}

	gate <- struct{}{}
	assert.True(t, <-loaded)
	assert.Equal(t, testTracks(3)[1].AudioURL, h.media.Source())
	assert.Empty(t, h.media.DiscardedSources())
}

func TestSupersededPreparedSourceIsReleased(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 3)
	gate := make(chan struct{})
	preparing := make(chan string, 2)
	h.media.PrepareGate = gate
	h.media.OnPrepare = func(src string) { preparing <- src }

	results := make(chan bool, 2)
	go func() { results <- h.machine.LoadTrack(ctx, 1) }()
	<-preparing
	go func() { results <- h.machine.LoadTrack(ctx, 2) }()
	<-preparing

	gate <- struct{}{}
	gate <- struct{}{}
	assert.ElementsMatch(t, []bool{true, false}, []bool{<-results, <-results})

	assert.Equal(t, []string{testTracks(3)[2].AudioURL}, h.media.Sources)
	assert.Equal(t, []string{testTracks(3)[1].AudioURL}, h.media.DiscardedSources())
	assert.Equal(t, "Track 2", h.machine.View().Display.Title)
}

func TestPrepareFailureShowsMediaError(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 2)
	h.media.PrepareErr = errors.New("truncated stream")

	assert.False(t, h.machine.LoadTrack(ctx, 1))

	view := h.machine.View()
	assert.Equal(t, player.StatusError, view.State.Status)
	require.NotNil(t, view.Notice)
	assert.Equal(t, player.MediaElementError, view.Notice.Kind)
	assert.Empty(t, h.media.Source())
}
