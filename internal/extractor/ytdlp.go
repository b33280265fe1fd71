package extractor

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"media-fetch/internal/logging"
	"media-fetch/internal/metrics"

	"github.com/lrstanley/go-ytdlp"
)

// ErrNoOutput indicates yt-dlp exited without printing any info JSON.
var ErrNoOutput = errors.New("yt-dlp produced no output")

// endOfOptions stops yt-dlp's option parsing so a URL can never be read as a flag.
const endOfOptions = "--"

// RunError carries the message yt-dlp reported for a failed invocation.
type RunError struct {
	Message string
	Err     error
}

func (e *RunError) Error() string {
	return e.Message
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// YtDlp drives the yt-dlp executable through go-ytdlp.
type YtDlp struct {
	executable string
}

// NewYtDlp creates an extractor. An empty executable lets go-ytdlp resolve
// yt-dlp from PATH.
func NewYtDlp(executable string) *YtDlp {
	return &YtDlp{executable: executable}
}

func (y *YtDlp) command() *ytdlp.Command {
	cmd := ytdlp.New()
	if y.executable != "" {
		cmd = cmd.SetExecutable(y.executable)
	}
	return cmd.Quiet().NoWarnings().IgnoreErrors()
}

// Probe runs yt-dlp in simulation mode and returns the single JSON document.
// Playlists are only expanded flat, which is enough to detect them.
func (y *YtDlp) Probe(ctx context.Context, url string) (*Info, error) {
	start := time.Now()
	cmd := y.command().
		Simulate().
		DumpSingleJSON().
		FlatPlaylist()

	result, runErr := cmd.Run(ctx, endOfOptions, url)
	info, err := y.finish("probe", start, result, runErr)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, &RunError{Message: ErrNoOutput.Error(), Err: ErrNoOutput}
	}
	return info, nil
}

// Fetch downloads one format into opts.OutputTemplate. The info JSON is
// printed by yt-dlp before the download starts, so Filename is the predicted
// path and may not exist if the download itself failed.
func (y *YtDlp) Fetch(ctx context.Context, url string, opts FetchOptions) (*Info, error) {
	start := time.Now()
	cmd := y.command().
		Format(opts.Format).
		Output(opts.OutputTemplate).
		WindowsFilenames().
		RestrictFilenames().
		NoPlaylist().
		NoProgress().
		DumpJSON().
		NoSimulate()

	if opts.MergeOutputFormat != "" {
		cmd = cmd.MergeOutputFormat(opts.MergeOutputFormat)
	}
	if opts.FFmpegLocation != "" {
		cmd = cmd.FFmpegLocation(opts.FFmpegLocation)
	}

	result, runErr := cmd.Run(ctx, endOfOptions, url)
	return y.finish("fetch", start, result, runErr)
}

// finish records metrics and decides whether a run failed. A run that printed
// info JSON is treated as a result even when yt-dlp exited non-zero, since
// --ignore-errors makes partial failures normal.
func (y *YtDlp) finish(op string, start time.Time, result *ytdlp.Result, runErr error) (*Info, error) {
	metrics.ExtractorDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	var stdout, stderr string
	if result != nil {
		stdout, stderr = result.Stdout, result.Stderr
	}

	info, decodeErr := decodeInfo(stdout)
	if decodeErr != nil {
		logging.Warn("Failed to decode yt-dlp output for %s: %v", op, decodeErr)
	}

	if runErr != nil && info == nil {
		metrics.ExtractorRunsTotal.WithLabelValues(op, metrics.StatusError).Inc()
		if ctxErr := contextError(runErr); ctxErr != nil {
			return nil, &RunError{Message: ctxErr.Error(), Err: ctxErr}
		}
		return nil, &RunError{Message: errorMessage(stderr, runErr), Err: runErr}
	}

	if runErr != nil {
		info.Problem = errorMessage(stderr, runErr)
		logging.Debug("yt-dlp %s exited with error but produced output: %s", op, info.Problem)
	}

	metrics.ExtractorRunsTotal.WithLabelValues(op, metrics.StatusSuccess).Inc()
	return info, nil
}

func contextError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("extraction timed out: %w", context.DeadlineExceeded)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("extraction canceled: %w", context.Canceled)
	}
	return nil
}

// decodeInfo parses the last JSON object line on stdout. It returns nil, nil
// when stdout holds no JSON.
func decodeInfo(stdout string) (*Info, error) {
	var last string
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "{") {
			last = line
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read yt-dlp output: %w", err)
	}
	if last == "" {
		return nil, nil
	}

	var info Info
	if err := json.Unmarshal([]byte(last), &info); err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp JSON: %w", err)
	}
	return &info, nil
}

// errorMessage picks the most useful line from yt-dlp's stderr: the last
// "ERROR:" line, else the last non-empty line, else the process error.
func errorMessage(stderr string, err error) string {
	var lastError, lastLine string
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lastLine = line
		if strings.HasPrefix(line, "ERROR:") {
			lastError = line
		}
	}

	switch {
	case lastError != "":
		return lastError
	case lastLine != "":
		return lastLine
	case err != nil:
		return err.Error()
	default:
		return "unknown extraction error"
	}
}

// Version returns the first line of `yt-dlp --version`.
func (y *YtDlp) Version(ctx context.Context) (string, error) {
	cmd := ytdlp.New()
	if y.executable != "" {
		cmd = cmd.SetExecutable(y.executable)
	}

	result, err := cmd.Version(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get yt-dlp version: %w", err)
	}
	if result == nil {
		return "", ErrNoOutput
	}

	version, _, _ := strings.Cut(strings.TrimSpace(result.Stdout), "\n")
	return version, nil
}
