package session

import (
	"errors"
	"fmt"
	"strconv"

	"ostplayer/internal/database"
	"ostplayer/pkg/models"
)

// Keys under which the snapshot is persisted
const (
	KeyCurrentIndex = "currentSongIndex"
	KeyPlaying      = "isPlaying"
	KeyCurrentTime  = "currentTime"
	KeyVolume       = "volume"
)

// Store saves and restores the player's session snapshot as plain strings
type Store struct {
	storage database.Storage
}

// NewStore creates a store on top of a session-scoped storage
func NewStore(storage database.Storage) *Store {
	return &Store{storage: storage}
}

// Save writes every present field of snapshot. Absent fields are left as they are.
func (s *Store) Save(snapshot models.SessionSnapshot) error {
	var errs []error
	set := func(key, value string) {
		if err := s.storage.Set(key, value); err != nil {
			errs = append(errs, fmt.Errorf("save %s: %w", key, err))
		}
	}

	if snapshot.CurrentIndex != nil {
		set(KeyCurrentIndex, strconv.Itoa(*snapshot.CurrentIndex))
	}
	if snapshot.Playing != nil {
		set(KeyPlaying, strconv.FormatBool(*snapshot.Playing))
	}
	if snapshot.ElapsedSeconds != nil {
		set(KeyCurrentTime, strconv.FormatFloat(*snapshot.ElapsedSeconds, 'f', -1, 64))
	}
	if snapshot.Volume != nil {
		set(KeyVolume, strconv.FormatFloat(*snapshot.Volume, 'f', -1, 64))
	}

	return errors.Join(errs...)
}

// Load reads the snapshot. Missing or unparseable values come back nil.
func (s *Store) Load() models.SessionSnapshot {
	var snapshot models.SessionSnapshot

	if raw, ok := s.storage.Get(KeyCurrentIndex); ok {
		if v, err := strconv.Atoi(raw); err == nil {
			snapshot.CurrentIndex = &v
		}
	}
	if raw, ok := s.storage.Get(KeyPlaying); ok {
		if v, err := strconv.ParseBool(raw); err == nil {
			snapshot.Playing = &v
		}
	}
	if raw, ok := s.storage.Get(KeyCurrentTime); ok {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			snapshot.ElapsedSeconds = &v
		}
	}
	if raw, ok := s.storage.Get(KeyVolume); ok {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			snapshot.Volume = &v
		}
	}

	return snapshot
}
