package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ostplayer/internal/config"
	"ostplayer/internal/database"
	"ostplayer/internal/player"

	"github.com/sirupsen/logrus"
)

// RemoteServer exposes the player as a local JSON remote control
type RemoteServer struct {
	machine   *player.Machine
	config    *config.Config
	db        *database.Database // nil when sessions are ephemeral
	logger    *logrus.Logger
	startedAt time.Time
	audio     bool
}

// NewRemoteServer creates a remote server for machine. db may be nil.
func NewRemoteServer(cfg *config.Config, machine *player.Machine, db *database.Database, logger *logrus.Logger) *RemoteServer {
	return &RemoteServer{
		machine:   machine,
		config:    cfg,
		db:        db,
		logger:    logger,
		startedAt: time.Now(),
		audio:     true,
	}
}

// WithAudioAvailable records whether the media element can produce sound
func (rs *RemoteServer) WithAudioAvailable(available bool) *RemoteServer {
	rs.audio = available
	return rs
}

// Handler returns the routed handler wrapped in middleware
func (rs *RemoteServer) Handler() http.Handler {
	mux := http.NewServeMux()
	rs.setupRoutes(mux)

	var handler http.Handler = mux
	handler = rs.corsMiddleware(handler)
	handler = rs.requestLoggingMiddleware(handler)
	handler = rs.panicRecoveryMiddleware(handler)
	return handler
}

func (rs *RemoteServer) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", rs.handleHealthCheck)
	mux.HandleFunc("GET /api/catalog", rs.handleGetCatalog)
	mux.HandleFunc("GET /api/tracks/{index}/audio", rs.handleTrackAudio)
	mux.HandleFunc("GET /api/tracks/{index}/thumbnail", rs.handleTrackThumbnail)

	// Player state routes
	mux.HandleFunc("GET /api/player/state", rs.handleGetPlayerState)
	mux.HandleFunc("POST /api/player/play", rs.action(func(ctx context.Context) { rs.machine.Play(ctx) }))
	mux.HandleFunc("POST /api/player/pause", rs.action(func(context.Context) { rs.machine.Pause() }))
	mux.HandleFunc("POST /api/player/toggle", rs.action(rs.machine.TogglePlay))
	mux.HandleFunc("POST /api/player/next", rs.action(rs.machine.Next))
	mux.HandleFunc("POST /api/player/previous", rs.action(rs.machine.Previous))
	mux.HandleFunc("POST /api/player/shuffle", rs.action(func(context.Context) { rs.machine.ToggleShuffle() }))
	mux.HandleFunc("POST /api/player/repeat", rs.action(func(context.Context) { rs.machine.ToggleRepeat() }))
	mux.HandleFunc("POST /api/player/interact", rs.action(rs.machine.Interact))
	mux.HandleFunc("POST /api/player/close", rs.action(func(context.Context) { rs.machine.HidePanel() }))
	mux.HandleFunc("POST /api/player/volume/up", rs.action(func(context.Context) { rs.machine.VolumeUp() }))
	mux.HandleFunc("POST /api/player/volume/down", rs.action(func(context.Context) { rs.machine.VolumeDown() }))
	mux.HandleFunc("POST /api/player/volume", rs.handleSetVolume)
	mux.HandleFunc("POST /api/player/seek", rs.handleSeek)
	mux.HandleFunc("POST /api/player/load/{index}", rs.handleLoadTrack)
}

// Start serves until ctx is canceled, then shuts down gracefully
func (rs *RemoteServer) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:        rs.config.GetAddress(),
		Handler:     rs.Handler(),
		ReadTimeout: time.Duration(rs.config.Server.ReadTimeout) * time.Second,
	}

	rs.logger.WithFields(logrus.Fields{
		"address": "http://" + rs.config.GetAddress(),
		"tracks":  rs.machine.Catalog().Len(),
		"audio":   rs.audio,
	}).Info("Remote control server starting")

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	rs.logger.Info("Shutting down remote control server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	rs.logger.Info("Remote control server shutdown complete")
	return nil
}
