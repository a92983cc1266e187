package server

import (
	"context"
	"encoding/json"
	"net/http"
)

// handleGetPlayerState returns the current player view
func (rs *RemoteServer) handleGetPlayerState(w http.ResponseWriter, r *http.Request) {
	rs.respondJSON(w, http.StatusOK, rs.machine.View())
}

// action adapts a machine operation into a handler that replies with the
// resulting view
func (rs *RemoteServer) action(op func(ctx context.Context)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op(r.Context())
		rs.respondJSON(w, http.StatusOK, rs.machine.View())
	}
}

// handleLoadTrack selects a track by catalog index and shows it without
// starting playback
func (rs *RemoteServer) handleLoadTrack(w http.ResponseWriter, r *http.Request) {
	index, verr := rs.validateTrackIndex(r.PathValue("index"))
	if verr != nil {
		rs.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	if !rs.machine.LoadTrack(r.Context(), index) {
		view := rs.machine.View()
		rs.logger.WithField("index", index).Debug("Track source rejected")
		rs.respondJSON(w, http.StatusUnprocessableEntity, view)
		return
	}
	rs.respondJSON(w, http.StatusOK, rs.machine.View())
}

// handleSeek moves playback to a fraction of the track
func (rs *RemoteServer) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fraction *float64 `json:"fraction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rs.respondWithError(w, r, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if verr := validateUnitInterval("fraction", req.Fraction); verr != nil {
		rs.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	rs.machine.Seek(*req.Fraction)
	rs.respondJSON(w, http.StatusOK, rs.machine.View())
}

// handleSetVolume sets the volume; out-of-range values are clamped by the player
func (rs *RemoteServer) handleSetVolume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Volume *float64 `json:"volume"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rs.respondWithError(w, r, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if req.Volume == nil {
		rs.respondWithValidationError(w, r, []ValidationError{{
			Field:   "volume",
			Message: "Volume is required",
			Code:    "MISSING_VOLUME",
		}})
		return
	}

	rs.machine.SetVolume(*req.Volume)
	rs.respondJSON(w, http.StatusOK, rs.machine.View())
}
