package metadata

import (
	"crypto/md5"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ostplayer/pkg/models"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/sirupsen/logrus"
	"github.com/tcolgate/mp3"
)

// Extractor turns local audio files into catalog tracks
type Extractor struct {
	supportedFormats []string
	logger           *logrus.Logger
	thumbnailDir     string // embedded cover art is written here; empty disables it
}

// NewExtractor creates a new metadata extractor
func NewExtractor(supportedFormats []string, logger *logrus.Logger) *Extractor {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return &Extractor{
		supportedFormats: supportedFormats,
		logger:           logger,
	}
}

// WithThumbnailDir enables writing embedded cover art to dir
func (e *Extractor) WithThumbnailDir(dir string) *Extractor {
	e.thumbnailDir = dir
	return e
}

// ExtractFromFile reads tags and duration from an audio file. Missing tags
// fall back to the file name; an unreadable duration leaves the label at 0:00.
func (e *Extractor) ExtractFromFile(filePath string) (models.Track, error) {
	startTime := time.Now()

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return models.Track{}, err
	}

	file, err := os.Open(absPath)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"filePath": filePath,
			"error":    err.Error(),
		}).Error("Failed to open audio file")
		return models.Track{}, err
	}
	defer file.Close()

	duration, err := e.calculateDuration(absPath)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"filePath": filePath,
			"error":    err.Error(),
		}).Warn("Failed to calculate duration, setting to 0")
		duration = 0
	}

	track := models.Track{
		Title:         strings.TrimSuffix(filepath.Base(absPath), filepath.Ext(absPath)),
		Artist:        "Unknown Artist",
		DurationLabel: durationLabel(duration),
		AudioURL:      fileURL(absPath),
	}

	metadata, err := tag.ReadFrom(file)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"filePath": filePath,
			"error":    err.Error(),
		}).Warn("Failed to extract metadata, using filename")
		return track, nil
	}

	if title := strings.TrimSpace(metadata.Title()); title != "" {
		track.Title = title
	}
	if artist := strings.TrimSpace(metadata.Artist()); artist != "" {
		track.Artist = artist
	} else if albumArtist := strings.TrimSpace(metadata.AlbumArtist()); albumArtist != "" {
		track.Artist = albumArtist
	}

	if thumbnail, ok := e.extractAlbumArt(metadata); ok {
		track.ThumbnailURL = thumbnail
	}

	e.logger.WithFields(logrus.Fields{
		"filePath":       filePath,
		"title":          track.Title,
		"artist":         track.Artist,
		"duration":       duration,
		"hasThumbnail":   track.ThumbnailURL != "",
		"processingTime": time.Since(startTime),
	}).Debug("Successfully extracted metadata")

	return track, nil
}

// calculateDuration calculates the duration of an audio file in seconds
func (e *Extractor) calculateDuration(filePath string) (int, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".mp3":
		return e.durationMP3(filePath)
	case ".flac":
		return e.durationFLAC(filePath)
	case ".wav":
		return e.durationWAV(filePath)
	case ".m4a":
		return e.durationM4A(filePath)
	default:
		return 0, fmt.Errorf("unsupported format: %s", ext)
	}
}

// MP3 duration using frame decoding; fallback to average bitrate estimation only if frames fail entirely.
func (e *Extractor) durationMP3(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	dec := mp3.NewDecoder(f)
	var total time.Duration
	var skipped int
	frames := 0
	for {
		var fr mp3.Frame
		if err := dec.Decode(&fr, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if frames == 0 {
				return e.estimateFromFileSize(path, 192000) // assume 192 kbps
			}
			break // partial decode; use what we have
		}
		total += fr.Duration()
		frames++
	}
	return int(total.Seconds() + 0.5), nil
}

// FLAC duration via STREAMINFO metadata block
func (e *Extractor) durationFLAC(path string) (int, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return 0, err
	}
	defer stream.Close()
	si := stream.Info
	if si.NSamples > 0 && si.SampleRate > 0 {
		secs := float64(si.NSamples) / float64(si.SampleRate)
		return int(secs + 0.5), nil
	}
	return 0, fmt.Errorf("flac stream missing sample info")
}

// WAV duration from the header
func (e *Extractor) durationWAV(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("invalid wav file")
	}
	d, err := dec.Duration()
	if err != nil {
		return 0, fmt.Errorf("invalid wav header: %w", err)
	}
	return int(d.Seconds() + 0.5), nil
}

// M4A (AAC in MP4) duration from the 'mvhd' timescale and duration fields.
// Only the top-level moov atom is scanned.
func (e *Extractor) durationM4A(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	for {
		head := make([]byte, 8)
		if _, err := io.ReadFull(f, head); err != nil {
			return 0, err
		}
		size := binary.BigEndian.Uint32(head[0:4])
		atom := string(head[4:8])
		if size < 8 {
			return 0, fmt.Errorf("invalid atom size")
		}
		if atom == "moov" {
			limit := int64(size) - 8
			for read := int64(0); read < limit; {
				subHead := make([]byte, 8)
				if _, err := io.ReadFull(f, subHead); err != nil {
					return 0, err
				}
				subSize := binary.BigEndian.Uint32(subHead[0:4])
				subAtom := string(subHead[4:8])
				if subAtom == "mvhd" {
					return readMVHD(f)
				}
				if subSize < 8 {
					return 0, fmt.Errorf("invalid sub-atom size")
				}
				if _, err := f.Seek(int64(subSize)-8, io.SeekCurrent); err != nil {
					return 0, err
				}
				read += int64(subSize)
			}
			break
		}
		if _, err := f.Seek(int64(size)-8, io.SeekCurrent); err != nil {
			return 0, err
		}
	}
	return 0, fmt.Errorf("mvhd atom not found")
}

// readMVHD parses the body of an mvhd atom positioned at its version byte
func readMVHD(r io.ReadSeeker) (int, error) {
	version := make([]byte, 1)
	if _, err := io.ReadFull(r, version); err != nil {
		return 0, err
	}

	var skip int64
	if version[0] == 1 { // 64-bit
		skip = 3 + 8 + 8 // flags + creation + modification times
	} else {
		skip = 3 + 4 + 4
	}
	if _, err := r.Seek(skip, io.SeekCurrent); err != nil {
		return 0, err
	}

	tsBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, tsBuf); err != nil {
		return 0, err
	}
	timescale := binary.BigEndian.Uint32(tsBuf)
	if timescale == 0 {
		return 0, fmt.Errorf("invalid timescale")
	}

	var units uint64
	if version[0] == 1 {
		durBuf := make([]byte, 8)
		if _, err := io.ReadFull(r, durBuf); err != nil {
			return 0, err
		}
		units = binary.BigEndian.Uint64(durBuf)
	} else {
		durBuf := make([]byte, 4)
		if _, err := io.ReadFull(r, durBuf); err != nil {
			return 0, err
		}
		units = uint64(binary.BigEndian.Uint32(durBuf))
	}

	secs := float64(units) / float64(timescale)
	return int(secs + 0.5), nil
}

// estimateFromFileSize provides last-resort estimation if parsing fails.
func (e *Extractor) estimateFromFileSize(path string, bitrate int) (int, error) {
	st, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if bitrate <= 0 {
		return 0, fmt.Errorf("invalid bitrate")
	}
	dur := (st.Size() * 8) / int64(bitrate)
	return int(dur), nil
}

// extractAlbumArt writes embedded cover art to the thumbnail directory and
// returns its file URL. Files are named by content hash so shared covers are
// written once.
func (e *Extractor) extractAlbumArt(metadata tag.Metadata) (string, bool) {
	if e.thumbnailDir == "" || metadata == nil {
		return "", false
	}
	picture := metadata.Picture()
	if picture == nil || len(picture.Data) == 0 {
		return "", false
	}

	hash := md5.Sum(picture.Data)
	name := fmt.Sprintf("%x%s", hash, imageExtension(GetAlbumArtMimeType(picture.Data)))
	path, err := filepath.Abs(filepath.Join(e.thumbnailDir, name))
	if err != nil {
		return "", false
	}

	if _, err := os.Stat(path); err != nil {
		if err := os.MkdirAll(e.thumbnailDir, 0755); err != nil {
			e.logger.WithError(err).Warn("Failed to create thumbnail directory")
			return "", false
		}
		if err := os.WriteFile(path, picture.Data, 0644); err != nil {
			e.logger.WithError(err).WithField("path", path).Warn("Failed to write thumbnail")
			return "", false
		}
	}
	return fileURL(path), true
}

// GetAlbumArtMimeType guesses MIME type from album art data
func GetAlbumArtMimeType(data []byte) string {
	if len(data) < 4 {
		return "application/octet-stream"
	}

	// Check for common image formats
	if data[0] == 0xFF && data[1] == 0xD8 {
		return "image/jpeg"
	}
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 {
		return "image/gif"
	}

	return "application/octet-stream"
}

func imageExtension(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	default:
		return ".bin"
	}
}

// IsAudioFile checks if a file is a supported audio format
func (e *Extractor) IsAudioFile(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	for _, format := range e.supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}

func durationLabel(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func fileURL(absPath string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(absPath)}).String()
}
