package server

import (
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"ostplayer/pkg/models"
)

// handleTrackAudio streams a track's audio. Local files are served with
// range and ETag support; remote sources are redirected to.
func (rs *RemoteServer) handleTrackAudio(w http.ResponseWriter, r *http.Request) {
	track, ok := rs.trackFromPath(w, r)
	if !ok {
		return
	}

	path, local := localFile(track.AudioURL)
	if !local {
		http.Redirect(w, r, track.AudioURL, http.StatusFound)
		return
	}

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := rs.serveLocalFile(w, r, path, contentType); err != nil {
		rs.respondWithError(w, r, http.StatusNotFound, "Audio file not found", err)
	}
}

// serveLocalFile writes path with caching headers; http.ServeContent
// answers Range and If-None-Match requests
func (rs *RemoteServer) serveLocalFile(w http.ResponseWriter, r *http.Request, path, contentType string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error opening file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("error reading file info: %w", err)
	}
	if stat.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("ETag", fmt.Sprintf(`"%d-%d"`, stat.ModTime().Unix(), stat.Size()))
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")

	http.ServeContent(w, r, stat.Name(), stat.ModTime(), file)
	return nil
}

// trackFromPath resolves the {index} path value or writes a 400
func (rs *RemoteServer) trackFromPath(w http.ResponseWriter, r *http.Request) (models.Track, bool) {
	index, verr := rs.validateTrackIndex(r.PathValue("index"))
	if verr != nil {
		rs.respondWithValidationError(w, r, []ValidationError{*verr})
		return models.Track{}, false
	}
	track, _ := rs.machine.Catalog().Track(index)
	return track, true
}

// localFile extracts a filesystem path from file:// URLs and bare paths
func localFile(src string) (string, bool) {
	u, err := url.Parse(src)
	if err != nil {
		return "", false
	}
	switch u.Scheme {
	case "file":
		return u.Path, true
	case "":
		return src, src != ""
	default:
		return "", false
	}
}
