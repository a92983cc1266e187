package server

import (
	"net/http"

	"ostplayer/internal/catalog"
)

// CatalogResponse lists catalog entries with their indices
type CatalogResponse struct {
	Count   int             `json:"count"`
	Entries []catalog.Entry `json:"entries"`
}

// handleGetCatalog returns the catalog, optionally narrowed to the featured
// or popular section and searched within it.
func (rs *RemoteServer) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	cat := rs.machine.Catalog()

	raw := r.URL.Query().Get("search")
	if verr := rs.validateSearchQuery(raw); verr != nil {
		rs.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}
	query := sanitizeInput(raw)

	var entries []catalog.Entry
	switch section := r.URL.Query().Get("section"); section {
	case "featured":
		entries = catalog.Narrow(cat.Featured(), query)
	case "popular":
		entries = catalog.Narrow(cat.Popular(), query)
	case "", "all":
		entries = cat.Search(query)
	default:
		rs.respondWithValidationError(w, r, []ValidationError{{
			Field:   "section",
			Message: "Section must be one of all, featured or popular",
			Code:    "INVALID_SECTION",
		}})
		return
	}

	if entries == nil {
		entries = []catalog.Entry{}
	}
	rs.respondJSON(w, http.StatusOK, CatalogResponse{Count: len(entries), Entries: entries})
}
