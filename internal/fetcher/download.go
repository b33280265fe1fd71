package fetcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"media-fetch/internal/extractor"
	"media-fetch/internal/logging"
	"media-fetch/internal/metrics"
	"media-fetch/internal/staging"

	"github.com/spf13/afero"
)

const (
	// mergeFormat is the container yt-dlp merges separate streams into.
	mergeFormat = "mp4"
	// timestampLayout formats the local time used in output filenames.
	timestampLayout = "20060102_150405"
)

// Job is a single download. Path, Filename and Size are set once the file is
// staged and renamed.
type Job struct {
	ID             string
	URL            string
	FormatID       string
	BaseName       string
	Dir            string
	OutputTemplate string
	FFmpegPath     string

	Path     string
	Filename string
	Size     int64
}

// Download fetches url in the given format into a fresh job directory and
// renames the produced file to its sanitized name. The caller streams
// job.Path and must call Release when done with it.
func (s *Service) Download(ctx context.Context, url, formatID string) (*Job, error) {
	job, err := s.download(ctx, url, formatID)
	if err != nil {
		metrics.DownloadsTotal.WithLabelValues(outcome(err)).Inc()
		return nil, err
	}

	metrics.DownloadsTotal.WithLabelValues(metrics.StatusSuccess).Inc()
	return job, nil
}

func (s *Service) download(ctx context.Context, url, formatID string) (*Job, error) {
	if strings.TrimSpace(url) == "" || strings.TrimSpace(formatID) == "" {
		return nil, Validation("URL and format_id are required")
	}
	if err := checkURL(url); err != nil {
		return nil, err
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, Processing("Download cancelled while waiting for a free slot", err)
	}
	defer s.sem.Release(1)

	metrics.DownloadsInFlight.Inc()
	defer metrics.DownloadsInFlight.Dec()

	ffmpegPath, ffmpegFound := s.locator.Locate()
	if !ffmpegFound && strings.Contains(formatID, "+") {
		return nil, Processing(fmt.Sprintf("ffmpeg is required to merge format %s but was not found", formatID), nil)
	}

	job := &Job{
		ID:         s.newID(),
		URL:        url,
		FormatID:   formatID,
		BaseName:   "video_" + s.now().Format(timestampLayout),
		FFmpegPath: ffmpegPath,
	}

	dir, err := s.staging.NewJobDir(job.ID)
	if err != nil {
		return nil, Processing("Failed to prepare download directory", err)
	}
	job.Dir = dir
	job.OutputTemplate = filepath.Join(dir, job.BaseName+".%(ext)s")

	if err := s.fetch(ctx, job); err != nil {
		if _, relErr := s.staging.Release(job.Dir, staging.ReasonFailed); relErr != nil {
			logging.Warn("Failed to clean up job %s: %v", job.ID, relErr)
		}
		return nil, err
	}

	logging.Info("Downloaded %s (format %s) to %s (%d bytes)", url, formatID, job.Path, job.Size)
	return job, nil
}

func (s *Service) fetch(ctx context.Context, job *Job) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.DownloadTimeout)
	defer cancel()

	info, err := s.extractor.Fetch(ctx, job.URL, extractor.FetchOptions{
		Format:            job.FormatID,
		OutputTemplate:    job.OutputTemplate,
		MergeOutputFormat: mergeFormat,
		FFmpegLocation:    job.FFmpegPath,
	})
	if err != nil {
		return Extraction(err.Error(), err)
	}
	if info == nil {
		return Processing("Failed to process download", nil)
	}

	path, err := s.resolveOutput(job, info)
	if err != nil {
		return err
	}

	clean := SanitizeFilename(filepath.Base(path))
	final := filepath.Join(filepath.Dir(path), clean)
	if final != path {
		if err := s.fs.Rename(path, final); err != nil {
			return Processing(fmt.Sprintf("Failed to rename downloaded file: %v", err), err)
		}
	}

	stat, err := s.fs.Stat(final)
	if err != nil {
		return FileMissing("Downloaded file not found at "+final, err)
	}

	job.Path = final
	job.Filename = clean
	job.Size = stat.Size()
	return nil
}

// resolveOutput returns the path of the produced file. yt-dlp's reported path
// is preferred; if it is missing, a single file in the job directory that
// starts with the job's base name is accepted instead.
func (s *Service) resolveOutput(job *Job, info *extractor.Info) (string, error) {
	predicted := info.OutputPath()
	if predicted != "" && s.isFile(predicted) {
		return predicted, nil
	}

	if found, ok := s.findStaged(job); ok {
		logging.Debug("yt-dlp reported %q but produced %q", predicted, found)
		return found, nil
	}

	if predicted == "" {
		predicted = job.OutputTemplate
	}
	msg := "Downloaded file not found at " + predicted
	if info.Problem != "" {
		msg += ": " + info.Problem
	}
	return "", FileMissing(msg, os.ErrNotExist)
}

func (s *Service) findStaged(job *Job) (string, bool) {
	matches, err := afero.Glob(s.fs, filepath.Join(job.Dir, job.BaseName+".*"))
	if err != nil {
		return "", false
	}

	var found []string
	for _, m := range matches {
		if strings.HasSuffix(m, ".part") || strings.HasSuffix(m, ".ytdl") || !s.isFile(m) {
			continue
		}
		found = append(found, m)
	}
	if len(found) != 1 {
		return "", false
	}
	return found[0], true
}

func (s *Service) isFile(path string) bool {
	info, err := s.fs.Stat(path)
	return err == nil && !info.IsDir()
}

// Release disposes of a served job according to the retention policy.
func (s *Service) Release(job *Job) {
	if job == nil || job.Dir == "" {
		return
	}

	if !s.cfg.DeleteAfterServe {
		s.staging.Finish(job.Dir)
		return
	}

	if _, err := s.staging.Release(job.Dir, staging.ReasonServed); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn("Failed to remove served job %s: %v", job.ID, err)
	}
}
