package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"ostplayer/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackAudio(t *testing.T) {
	dir := t.TempDir()
	audioPath := filepath.Join(dir, "theme.wav")
	require.NoError(t, os.WriteFile(audioPath, []byte("RIFF0123456789abcdef"), 0644))

	tracks := []models.Track{
		{Title: "Local", AudioURL: "file://" + filepath.ToSlash(audioPath)},
		{Title: "Remote", AudioURL: "https://cdn.example/remote.mp3"},
		{Title: "Gone", AudioURL: filepath.Join(dir, "missing.mp3")},
	}
	h := newTestRig(tracks, nil).server.Handler()

	t.Run("full file", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/tracks/0/audio", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "RIFF0123456789abcdef", rec.Body.String())
		assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
		assert.NotEmpty(t, rec.Header().Get("ETag"))
	})

	t.Run("range", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/tracks/0/audio", nil)
		req.Header.Set("Range", "bytes=4-7")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusPartialContent, rec.Code)
		assert.Equal(t, "0123", rec.Body.String())
	})

	t.Run("not modified", func(t *testing.T) {
		etag := do(t, h, http.MethodGet, "/api/tracks/0/audio", "").Header().Get("ETag")

		req := httptest.NewRequest(http.MethodGet, "/api/tracks/0/audio", nil)
		req.Header.Set("If-None-Match", etag)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotModified, rec.Code)
	})

	t.Run("remote redirects", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/tracks/1/audio", "")
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "https://cdn.example/remote.mp3", rec.Header().Get("Location"))
	})

	t.Run("missing file", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/tracks/2/audio", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad index", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/tracks/9/audio", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTrackThumbnail(t *testing.T) {
	dir := t.TempDir()
	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	artPath := filepath.Join(dir, "cover.png")
	require.NoError(t, os.WriteFile(artPath, png, 0644))

	tracks := []models.Track{
		{Title: "Local art", AudioURL: "https://cdn.example/a.mp3", ThumbnailURL: "file://" + filepath.ToSlash(artPath)},
		{Title: "Remote art", AudioURL: "https://cdn.example/b.mp3", ThumbnailURL: "https://img.example/b.jpg"},
		{Title: "No art", AudioURL: "https://cdn.example/c.mp3"},
	}
	h := newTestRig(tracks, nil).server.Handler()

	rec := do(t, h, http.MethodGet, "/api/tracks/0/thumbnail", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, png, rec.Body.Bytes())

	rec = do(t, h, http.MethodGet, "/api/tracks/1/thumbnail", "")
	assert.Equal(t, http.StatusFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/tracks/2/thumbnail", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLocalFile(t *testing.T) {
	path, ok := localFile("file:///music/a.mp3")
	assert.True(t, ok)
	assert.Equal(t, "/music/a.mp3", path)

	path, ok = localFile("/music/b.mp3")
	assert.True(t, ok)
	assert.Equal(t, "/music/b.mp3", path)

	_, ok = localFile("https://cdn.example/c.mp3")
	assert.False(t, ok)

	_, ok = localFile("")
	assert.False(t, ok)
}
