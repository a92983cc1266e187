package server

import (
	"net/http"
	"os"

	"ostplayer/internal/metadata"
)

// maxThumbnailSize bounds cover art read into memory
const maxThumbnailSize = 8 << 20

// handleTrackThumbnail serves a track's cover art. Imported covers live on
// disk; remote thumbnails are redirected to.
func (rs *RemoteServer) handleTrackThumbnail(w http.ResponseWriter, r *http.Request) {
	track, ok := rs.trackFromPath(w, r)
	if !ok {
		return
	}
	if track.ThumbnailURL == "" {
		rs.respondWithError(w, r, http.StatusNotFound, "Track has no thumbnail", nil)
		return
	}

	path, local := localFile(track.ThumbnailURL)
	if !local {
		http.Redirect(w, r, track.ThumbnailURL, http.StatusFound)
		return
	}

	stat, err := os.Stat(path)
	if err != nil || stat.Size() > maxThumbnailSize {
		rs.respondWithError(w, r, http.StatusNotFound, "Thumbnail not found", err)
		return
	}
	artData, err := os.ReadFile(path)
	if err != nil {
		rs.respondWithError(w, r, http.StatusNotFound, "Thumbnail not found", err)
		return
	}

	w.Header().Set("Content-Type", metadata.GetAlbumArtMimeType(artData))
	w.Header().Set("Cache-Control", "public, max-age=3600") // Cache for 1 hour
	w.Write(artData)
}
