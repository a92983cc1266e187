// Package media plays catalog audio through the system speaker. The
// Element it provides is the player's MediaElement.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

var (
	ErrNoSource          = errors.New("no audio source assigned")
	ErrAudioUnavailable  = errors.New("audio output is not available in this build")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrForeignSource     = errors.New("source was not prepared by this element")
)

// maxRemoteSize caps how much of a remote file is buffered for decoding
const maxRemoteSize = 256 << 20

var contentTypes = map[string]string{
	"audio/mpeg":   ".mp3",
	"audio/mp3":    ".mp3",
	"audio/wav":    ".wav",
	"audio/wave":   ".wav",
	"audio/x-wav":  ".wav",
	"audio/flac":   ".flac",
	"audio/x-flac": ".flac",
}

// Open fetches src (http(s), file:// or a bare path) and decodes it
func Open(ctx context.Context, client *http.Client, src string) (beep.StreamSeekCloser, beep.Format, error) {
	u, err := url.Parse(src)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("invalid source %q: %w", src, err)
	}

	switch u.Scheme {
	case "http", "https":
		return openRemote(ctx, client, u)
	case "file":
		return openLocal(u.Path)
	case "":
		return openLocal(src)
	default:
		return nil, beep.Format{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}

func openLocal(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	streamer, format, err := decode(f, filepath.Ext(path))
	if err != nil {
		f.Close()
		return nil, beep.Format{}, err
	}
	return streamer, format, nil
}

func openRemote(ctx context.Context, client *http.Client, u *url.URL) (beep.StreamSeekCloser, beep.Format, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, beep.Format{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to fetch audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, beep.Format{}, fmt.Errorf("failed to fetch audio: status %d", resp.StatusCode)
	}

	// Buffered in memory so the decoders can seek
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteSize))
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to read audio: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(u.Path))
	if _, known := decoders[ext]; !known {
		if mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil {
			ext = contentTypes[mediaType]
		}
	}
	return decode(nopCloser{bytes.NewReader(data)}, ext)
}

type decoder func(rc io.ReadSeekCloser) (beep.StreamSeekCloser, beep.Format, error)

var decoders = map[string]decoder{
	".mp3": func(rc io.ReadSeekCloser) (beep.StreamSeekCloser, beep.Format, error) {
		return mp3.Decode(rc)
	},
	".wav": func(rc io.ReadSeekCloser) (beep.StreamSeekCloser, beep.Format, error) {
		return wav.Decode(rc)
	},
	".flac": func(rc io.ReadSeekCloser) (beep.StreamSeekCloser, beep.Format, error) {
		return flac.Decode(rc)
	},
}

func decode(rc io.ReadSeekCloser, ext string) (beep.StreamSeekCloser, beep.Format, error) {
	dec, ok := decoders[strings.ToLower(ext)]
	if !ok {
		return nil, beep.Format{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	streamer, format, err := dec(rc)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to decode %s: %w", ext, err)
	}
	return streamer, format, nil
}

// Prepared is a source fetched and decoded by Element.Prepare
type Prepared struct {
	url    string
	source beep.StreamSeekCloser
	format beep.Format
}

func (p *Prepared) URL() string { return p.url }

func (p *Prepared) Close() error {
	if p.source == nil {
		return nil
	}
	return p.source.Close()
}

// stream is a decoded track wired for output: resampled to the speaker rate,
// scaled by the volume and paused through a Ctrl
type stream struct {
	source beep.StreamSeekCloser
	format beep.Format
	gain   *effects.Volume
	ctrl   *beep.Ctrl
	queued bool // handed to the speaker and not finished yet
}

func newStream(source beep.StreamSeekCloser, format beep.Format, target beep.SampleRate, volume float64) *stream {
	s := &stream{source: source, format: format}
	s.gain = &effects.Volume{
		Streamer: beep.Resample(4, format.SampleRate, target, source),
		Base:     2,
	}
	setGain(s.gain, volume)
	s.ctrl = &beep.Ctrl{Streamer: s.gain, Paused: true}
	return s
}

// setGain maps a linear 0..1 volume onto beep's exponential scale
func setGain(v *effects.Volume, volume float64) {
	if volume <= 0 {
		v.Silent = true
		v.Volume = 0
		return
	}
	v.Silent = false
	v.Volume = math.Log2(math.Min(volume, 1))
}

func (s *stream) position() time.Duration {
	return s.format.SampleRate.D(s.source.Position())
}

func (s *stream) duration() time.Duration {
	return s.format.SampleRate.D(s.source.Len())
}

func (s *stream) seek(d time.Duration) error {
	n := s.format.SampleRate.N(d)
	if n < 0 {
		n = 0
	}
	if last := s.source.Len() - 1; last >= 0 && n > last {
		n = last
	}
	return s.source.Seek(n)
}

// detach removes the stream from the speaker mix and releases the decoder
func (s *stream) detach() error {
	s.ctrl.Paused = true
	s.ctrl.Streamer = nil
	return s.source.Close()
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
