package server

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// ValidationError represents a validation error with details
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidationResult contains validation results
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// respondJSON writes payload with the given status code
func (rs *RemoteServer) respondJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		rs.logger.WithError(err).Error("Failed to encode response")
	}
}

// respondWithValidationError sends a structured validation error response
func (rs *RemoteServer) respondWithValidationError(w http.ResponseWriter, r *http.Request, errors []ValidationError) {
	rs.logger.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"errors": errors,
	}).Warn("Validation failed")

	rs.respondJSON(w, http.StatusBadRequest, ValidationResult{
		Valid:  false,
		Errors: errors,
	})
}

// respondWithError sends a structured error response
func (rs *RemoteServer) respondWithError(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error) {
	logEntry := rs.logger.WithFields(logrus.Fields{
		"method":      r.Method,
		"path":        r.URL.Path,
		"status_code": statusCode,
		"message":     message,
	})

	if err != nil {
		logEntry = logEntry.WithError(err)
	}

	if statusCode >= 500 {
		logEntry.Error("Server error")
	} else {
		logEntry.Warn("Client error")
	}

	rs.respondJSON(w, statusCode, map[string]interface{}{
		"error":   message,
		"code":    statusCode,
		"success": false,
	})
}

// validateTrackIndex parses a catalog index from a path segment
func (rs *RemoteServer) validateTrackIndex(raw string) (int, *ValidationError) {
	if raw == "" {
		return 0, &ValidationError{
			Field:   "index",
			Message: "Track index is required",
			Code:    "MISSING_TRACK_INDEX",
		}
	}

	index, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ValidationError{
			Field:   "index",
			Message: "Track index must be a valid integer",
			Code:    "INVALID_TRACK_INDEX_FORMAT",
		}
	}

	if n := rs.machine.Catalog().Len(); index < 0 || index >= n {
		return 0, &ValidationError{
			Field:   "index",
			Message: fmt.Sprintf("Track index must be between 0 and %d", n-1),
			Code:    "TRACK_INDEX_OUT_OF_RANGE",
		}
	}

	return index, nil
}

// validateSearchQuery validates search query parameters
func (rs *RemoteServer) validateSearchQuery(query string) *ValidationError {
	if len(query) > 1000 {
		return &ValidationError{
			Field:   "search",
			Message: "Search query too long (max 1000 characters)",
			Code:    "SEARCH_QUERY_TOO_LONG",
		}
	}

	if strings.Contains(query, "\x00") {
		return &ValidationError{
			Field:   "search",
			Message: "Search query contains invalid characters",
			Code:    "INVALID_SEARCH_CHARACTERS",
		}
	}

	return nil
}

// validateUnitInterval requires a finite value in [0,1]
func validateUnitInterval(field string, value *float64) *ValidationError {
	if value == nil {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s is required", field),
			Code:    "MISSING_" + strings.ToUpper(field),
		}
	}
	if math.IsNaN(*value) || *value < 0 || *value > 1 {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s must be between 0 and 1", field),
			Code:    "INVALID_" + strings.ToUpper(field),
		}
	}
	return nil
}

// sanitizeInput sanitizes user input to prevent injection attacks
func sanitizeInput(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Trim whitespace
	input = strings.TrimSpace(input)

	return input
}
