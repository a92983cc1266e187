package metadata

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"ostplayer/pkg/models"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
)

// ImportOptions control a directory import
type ImportOptions struct {
	Workers  int       // defaults to runtime.NumCPU()
	Progress io.Writer // progress bar output; nil hides it
}

// ImportResult holds the imported tracks in path order and the files that failed
type ImportResult struct {
	Tracks []models.Track
	Failed map[string]error
}

// Import walks dir, extracts every supported audio file with a worker pool
// and returns tracks sorted by file path.
func (e *Extractor) Import(ctx context.Context, dir string, opts ImportOptions) (*ImportResult, error) {
	var paths []string
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && e.IsAudioFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, walkErr)
	}
	sort.Strings(paths)

	e.logger.WithFields(logrus.Fields{
		"dir":   dir,
		"files": len(paths),
	}).Info("Importing audio files")

	bar := newProgressBar(len(paths), opts.Progress)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	type outcome struct {
		index int
		track models.Track
		err   error
	}

	jobs := make(chan int)
	results := make(chan outcome, len(paths))
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				track, err := e.ExtractFromFile(paths[idx])
				results <- outcome{index: idx, track: track, err: err}
				bar.Add(1)
			}
		}()
	}

enqueue:
	for idx := range paths {
		select {
		case jobs <- idx:
		case <-ctx.Done():
			break enqueue
		}
	}
	close(jobs)
	wg.Wait()
	close(results)
	bar.Finish()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ordered := make([]*models.Track, len(paths))
	result := &ImportResult{Failed: make(map[string]error)}
	for r := range results {
		if r.err != nil {
			result.Failed[paths[r.index]] = r.err
			continue
		}
		track := r.track
		ordered[r.index] = &track
	}
	for _, t := range ordered {
		if t != nil {
			result.Tracks = append(result.Tracks, *t)
		}
	}

	e.logger.WithFields(logrus.Fields{
		"imported": len(result.Tracks),
		"failed":   len(result.Failed),
	}).Info("Import finished")
	return result, nil
}

func newProgressBar(total int, w io.Writer) *progressbar.ProgressBar {
	if w == nil {
		w = io.Discard
	}
	return progressbar.NewOptions(
		total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionFullWidth(),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Reading tags[reset]"),
	)
}

// Describe summarizes an import for the command line
func (r *ImportResult) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Imported %d tracks", len(r.Tracks))
	if len(r.Failed) > 0 {
		fmt.Fprintf(&b, ", %d failed:", len(r.Failed))
		failed := make([]string, 0, len(r.Failed))
		for path := range r.Failed {
			failed = append(failed, path)
		}
		sort.Strings(failed)
		for _, path := range failed {
			fmt.Fprintf(&b, "\n  %s: %v", path, r.Failed[path])
		}
	}
	return b.String()
}
