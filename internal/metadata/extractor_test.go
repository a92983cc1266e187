package metadata

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExtractor() *Extractor {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewExtractor([]string{".mp3", ".flac", ".wav", ".m4a"}, logger)
}

// writeWAV writes a silent mono WAV of the given number of seconds
func writeWAV(t *testing.T, path string, seconds int) {
	t.Helper()
	const rate = 8000

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Data:           make([]int, rate*seconds),
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
}

func TestIsAudioFile(t *testing.T) {
	extractor := newTestExtractor()

	testCases := []struct {
		filename string
		expected bool
	}{
		{"song.mp3", true},
		{"song.MP3", true},
		{"song.flac", true},
		{"song.FLAC", true},
		{"song.wav", true},
		{"song.m4a", true},
		{"song.txt", false},
		{"song.jpg", false},
		{"song", false},
		{"", false},
	}

	for _, tc := range testCases {
		result := extractor.IsAudioFile(tc.filename)
		if result != tc.expected {
			t.Errorf("IsAudioFile(%s): expected %v, got %v", tc.filename, tc.expected, result)
		}
	}
}

func TestGetAlbumArtMimeType(t *testing.T) {
	testCases := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"JPEG", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "image/jpeg"},
		{"PNG", []byte{0x89, 0x50, 0x4E, 0x47}, "image/png"},
		{"GIF", []byte{0x47, 0x49, 0x46, 0x38}, "image/gif"},
		{"Unknown", []byte{0x00, 0x00, 0x00, 0x00}, "application/octet-stream"},
		{"Too short", []byte{0xFF}, "application/octet-stream"},
		{"Empty", []byte{}, "application/octet-stream"},
	}

	for _, tc := range testCases {
		result := GetAlbumArtMimeType(tc.data)
		if result != tc.expected {
			t.Errorf("GetAlbumArtMimeType(%s): expected %s, got %s", tc.name, tc.expected, result)
		}
	}
}

func TestDurationLabel(t *testing.T) {
	assert.Equal(t, "0:00", durationLabel(0))
	assert.Equal(t, "0:07", durationLabel(7))
	assert.Equal(t, "4:31", durationLabel(271))
	assert.Equal(t, "0:00", durationLabel(-3))
}

func TestExtractFromWAV(t *testing.T) {
	extractor := newTestExtractor()
	dir := t.TempDir()
	path := filepath.Join(dir, "Field Theme.wav")
	writeWAV(t, path, 3)

	track, err := extractor.ExtractFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "Field Theme", track.Title)
	assert.Equal(t, "Unknown Artist", track.Artist)
	assert.Equal(t, "0:03", track.DurationLabel)
	assert.Empty(t, track.ThumbnailURL)

	u, err := url.Parse(track.AudioURL)
	require.NoError(t, err)
	assert.Equal(t, "file", u.Scheme)
	assert.Equal(t, filepath.ToSlash(path), u.Path)
}

func TestExtractionFallback(t *testing.T) {
	extractor := newTestExtractor()

	t.Run("ExtractFromNonExistentFile", func(t *testing.T) {
		_, err := extractor.ExtractFromFile("/nonexistent/file.mp3")
		if err == nil {
			t.Error("Expected error when extracting from non-existent file")
		}
	})

	t.Run("ExtractFromInvalidFile", func(t *testing.T) {
		testDir := t.TempDir()
		invalidFile := filepath.Join(testDir, "invalid.mp3")

		err := os.WriteFile(invalidFile, []byte("this is not an audio file"), 0644)
		require.NoError(t, err)

		track, err := extractor.ExtractFromFile(invalidFile)
		require.NoError(t, err)

		assert.Equal(t, "invalid", track.Title)
		assert.Equal(t, "Unknown Artist", track.Artist)
		assert.True(t, strings.HasPrefix(track.AudioURL, "file://"))
	})
}

func TestDurationM4A(t *testing.T) {
	extractor := newTestExtractor()
	path := filepath.Join(t.TempDir(), "clip.m4a")

	// ftyp atom, then moov containing a version 0 mvhd: timescale 1000, 95000 units
	ftyp := []byte{0, 0, 0, 16, 'f', 't', 'y', 'p', 'M', '4', 'A', ' ', 0, 0, 0, 0}
	mvhd := []byte{
		0, 0, 0, 28, 'm', 'v', 'h', 'd',
		0,       // version
		0, 0, 0, // flags
		0, 0, 0, 0, // creation
		0, 0, 0, 0, // modification
		0, 0, 0x03, 0xE8, // timescale 1000
		0, 0x01, 0x73, 0x18, // duration 95000
	}
	moov := append([]byte{0, 0, 0, byte(8 + len(mvhd)), 'm', 'o', 'o', 'v'}, mvhd...)
	require.NoError(t, os.WriteFile(path, append(ftyp, moov...), 0644))

	secs, err := extractor.durationM4A(path)
	require.NoError(t, err)
	assert.Equal(t, 95, secs)
}

func TestImport(t *testing.T) {
	extractor := newTestExtractor()
	dir := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "disc2"), 0755))
	writeWAV(t, filepath.Join(dir, "b.wav"), 2)
	writeWAV(t, filepath.Join(dir, "a.wav"), 1)
	writeWAV(t, filepath.Join(dir, "disc2", "c.wav"), 4)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cover.jpg"), []byte{0xFF, 0xD8}, 0644))

	result, err := extractor.Import(context.Background(), dir, ImportOptions{Workers: 2})
	require.NoError(t, err)

	require.Len(t, result.Tracks, 3)
	assert.Equal(t, "a", result.Tracks[0].Title)
	assert.Equal(t, "b", result.Tracks[1].Title)
	assert.Equal(t, "c", result.Tracks[2].Title)
	assert.Equal(t, "0:04", result.Tracks[2].DurationLabel)
	assert.Empty(t, result.Failed)
	assert.Contains(t, result.Describe(), "Imported 3 tracks")
}

func TestImportCanceled(t *testing.T) {
	extractor := newTestExtractor()
	dir := t.TempDir()
	writeWAV(t, filepath.Join(dir, "a.wav"), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := extractor.Import(ctx, dir, ImportOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestImportMissingDirectory(t *testing.T) {
	_, err := newTestExtractor().Import(context.Background(), "/nonexistent/dir", ImportOptions{})
	assert.Error(t, err)
}
