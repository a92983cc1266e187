// Package app assembles the player from configuration.
package app

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"ostplayer/internal/cache"
	"ostplayer/internal/catalog"
	"ostplayer/internal/config"
	"ostplayer/internal/database"
	"ostplayer/internal/media"
	"ostplayer/internal/player"
	"ostplayer/internal/session"
	"ostplayer/internal/validator"

	"github.com/sirupsen/logrus"
)

// App owns every long-lived component of a running player
type App struct {
	Config    *config.Config
	Logger    *logrus.Logger
	Catalog   *catalog.Catalog
	Machine   *player.Machine
	DB        *database.Database // nil when sessions are disabled
	SessionID string

	media    *media.Element
	verdicts *cache.VerdictCache
}

// New builds the player described by cfg and restores the saved session.
// logOutput is used when no log file is configured.
func New(cfg *config.Config, logOutput io.Writer) (*App, error) {
	logger, err := cfg.Logging.NewLogger(logOutput)
	if err != nil {
		return nil, err
	}

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	if cat.Len() == 0 {
		logger.WithField("path", cfg.Catalog.Path).Warn("Catalog is empty")
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Catalog:  cat,
		verdicts: cache.NewVerdictCache(time.Duration(cfg.Validator.CacheTTLMinutes) * time.Minute),
	}

	var storage database.Storage = database.NewMemoryStorage()
	if cfg.Session.Enabled {
		storage, err = a.openSession()
		if err != nil {
			a.verdicts.Close()
			return nil, err
		}
	}

	a.media = media.New(&http.Client{Timeout: time.Minute}, logger)
	a.media.SetVolume(cfg.Player.DefaultVolume)

	a.Machine = player.New(cat, player.Deps{
		Media:     a.media,
		Validator: validator.New(cfg.Validator, a.verdicts, logger),
		Store:     session.NewStore(storage),
		Logger:    logger,
	}, player.Options{
		NoticeDuration:   cfg.NoticeDuration(),
		RestartThreshold: time.Duration(cfg.Player.RestartThreshold * float64(time.Second)),
		VolumeStep:       cfg.Player.VolumeStep,
	})
	a.media.Bind(a.Machine)
	a.Machine.Restore()

	logger.WithFields(logrus.Fields{
		"tracks":  cat.Len(),
		"session": a.SessionID,
		"audio":   media.AudioAvailable,
	}).Info("Player ready")

	return a, nil
}

// openSession opens the session database and scopes storage to the
// current session, pruning sessions that went idle
func (a *App) openSession() (database.Storage, error) {
	db, err := database.NewDatabase(a.Config.Session.DatabasePath, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	id, created, err := session.Identify(a.Config.Session.ScopeFile)
	if err != nil {
		db.Close()
		return nil, err
	}

	if idle := a.Config.SessionIdleTimeout(); idle > 0 {
		pruned, err := db.PruneIdle(idle)
		if err != nil {
			a.Logger.WithError(err).Warn("Failed to prune idle sessions")
		} else if pruned > 0 {
			a.Logger.WithField("count", pruned).Info("Pruned idle sessions")
		}
	}

	a.Logger.WithFields(logrus.Fields{
		"session": id,
		"new":     created,
	}).Debug("Session identified")

	a.DB = db
	a.SessionID = id
	return db.Scope(id), nil
}

// Close persists the session and releases audio and storage
func (a *App) Close() error {
	a.Machine.Persist()
	a.media.Close()
	a.verdicts.Close()
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
