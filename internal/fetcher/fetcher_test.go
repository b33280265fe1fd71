package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"media-fetch/internal/extractor"
	"media-fetch/internal/staging"

	"github.com/spf13/afero"
)

type fakeExtractor struct {
	mu sync.Mutex

	probeInfo *extractor.Info
	probeErr  error
	fetchFn   func(ctx context.Context, url string, opts extractor.FetchOptions) (*extractor.Info, error)

	probeCalls int
	fetchCalls []extractor.FetchOptions
}

func (f *fakeExtractor) Probe(_ context.Context, _ string) (*extractor.Info, error) {
	f.mu.Lock()
	f.probeCalls++
	f.mu.Unlock()
	return f.probeInfo, f.probeErr
}

func (f *fakeExtractor) Fetch(ctx context.Context, url string, opts extractor.FetchOptions) (*extractor.Info, error) {
	f.mu.Lock()
	f.fetchCalls = append(f.fetchCalls, opts)
	f.mu.Unlock()
	if f.fetchFn == nil {
		return nil, nil
	}
	return f.fetchFn(ctx, url, opts)
}

type fakeLocator struct {
	path string
}

func (l fakeLocator) Locate() (string, bool) {
	return l.path, l.path != ""
}

var fixedNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local)

func newTestService(t *testing.T, ext extractor.Extractor, loc Locator, cfg Config) (*Service, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	area, err := staging.New(fs, "/staging")
	if err != nil {
		t.Fatalf("staging.New() error = %v", err)
	}

	svc := NewService(ext, loc, area, cfg)
	svc.now = func() time.Time { return fixedNow }
	svc.newID = func() string { return "job-1" }
	return svc, fs
}

// writeOutput returns a fetch function that writes a file where the template
// points, with the given extension, and reports that path.
func writeOutput(fs afero.Fs, ext string, data string) func(context.Context, string, extractor.FetchOptions) (*extractor.Info, error) {
	return func(_ context.Context, _ string, opts extractor.FetchOptions) (*extractor.Info, error) {
		path := strings.Replace(opts.OutputTemplate, "%(ext)s", ext, 1)
		if err := afero.WriteFile(fs, path, []byte(data), 0o644); err != nil {
			return nil, err
		}
		return &extractor.Info{ID: "abc", Ext: ext, Filename: path}, nil
	}
}

func TestNewServiceDefaults(t *testing.T) {
	svc, _ := newTestService(t, &fakeExtractor{}, fakeLocator{}, Config{})
	cfg := svc.Config()

	if cfg.ExtractTimeout != DefaultExtractTimeout {
		t.Errorf("ExtractTimeout = %v, want %v", cfg.ExtractTimeout, DefaultExtractTimeout)
	}
	if cfg.DownloadTimeout != DefaultDownloadTimeout {
		t.Errorf("DownloadTimeout = %v, want %v", cfg.DownloadTimeout, DefaultDownloadTimeout)
	}
	if cfg.MaxConcurrent != DefaultMaxConcurrent {
		t.Errorf("MaxConcurrent = %d, want %d", cfg.MaxConcurrent, DefaultMaxConcurrent)
	}
}

func TestFFmpegAvailable(t *testing.T) {
	with, _ := newTestService(t, &fakeExtractor{}, fakeLocator{path: "/usr/bin/ffmpeg"}, Config{})
	without, _ := newTestService(t, &fakeExtractor{}, fakeLocator{}, Config{})

	if !with.FFmpegAvailable() {
		t.Error("FFmpegAvailable() = false, want true")
	}
	if without.FFmpegAvailable() {
		t.Error("FFmpegAvailable() = true, want false")
	}
}

// Format listing

func TestListFormatsRequiresURL(t *testing.T) {
	ext := &fakeExtractor{}
	svc, _ := newTestService(t, ext, fakeLocator{}, Config{})

	for _, url := range []string{"", "   "} {
		_, err := svc.ListFormats(context.Background(), url)
		if KindOf(err) != KindValidation {
			t.Fatalf("ListFormats(%q) kind = %v, want validation", url, KindOf(err))
		}
		if err.Error() != "URL parameter is required" {
			t.Errorf("message = %q", err.Error())
		}
	}
	if ext.probeCalls != 0 {
		t.Errorf("extractor was called %d times for an empty URL", ext.probeCalls)
	}
}

func TestRejectsOptionLikeURLs(t *testing.T) {
	for _, url := range []string{"--batch-file=/etc/passwd", " -a/etc/passwd", "-"} {
		t.Run(url, func(t *testing.T) {
			ext := &fakeExtractor{}
			svc, _ := newTestService(t, ext, fakeLocator{path: "/usr/bin/ffmpeg"}, Config{})

			_, err := svc.ListFormats(context.Background(), url)
			if KindOf(err) != KindValidation || err.Error() != "Invalid URL" {
				t.Errorf("ListFormats(%q) = %v, want validation error", url, err)
			}

			_, err = svc.Download(context.Background(), url, "18")
			if KindOf(err) != KindValidation || err.Error() != "Invalid URL" {
				t.Errorf("Download(%q) = %v, want validation error", url, err)
			}

			if ext.probeCalls != 0 || len(ext.fetchCalls) != 0 {
				t.Error("extractor should not be called")
			}
		})
	}
}

func TestListFormatsRejectsCollections(t *testing.T) {
	tests := []struct {
		name string
		info *extractor.Info
	}{
		{"playlist type", &extractor.Info{Type: "playlist"}},
		{"multi video type", &extractor.Info{Type: "multi_video"}},
		{"entries present", &extractor.Info{Entries: []json.RawMessage{json.RawMessage(`{"id":"a"}`)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, &fakeExtractor{probeInfo: tt.info}, fakeLocator{}, Config{})

			_, err := svc.ListFormats(context.Background(), "https://example.com/playlist")
			if KindOf(err) != KindUnsupportedInput {
				t.Fatalf("kind = %v, want unsupported_input", KindOf(err))
			}
			if Status(err) != 400 {
				t.Errorf("Status() = %d, want 400", Status(err))
			}
			if err.Error() != "Playlists are not supported" {
				t.Errorf("message = %q", err.Error())
			}
		})
	}
}

func TestListFormatsExtractionFailure(t *testing.T) {
	cause := &extractor.RunError{Message: "ERROR: [generic] Unsupported URL: https://example.com"}
	svc, _ := newTestService(t, &fakeExtractor{probeErr: cause}, fakeLocator{}, Config{})

	_, err := svc.ListFormats(context.Background(), "https://example.com")
	if KindOf(err) != KindExtraction {
		t.Fatalf("kind = %v, want extraction", KindOf(err))
	}
	if Status(err) != 500 {
		t.Errorf("Status() = %d, want 500", Status(err))
	}
	if err.Error() != cause.Message {
		t.Errorf("message = %q, want %q", err.Error(), cause.Message)
	}
}

func TestListFormatsNilInfo(t *testing.T) {
	svc, _ := newTestService(t, &fakeExtractor{}, fakeLocator{}, Config{})

	_, err := svc.ListFormats(context.Background(), "https://example.com")
	if KindOf(err) != KindExtraction {
		t.Errorf("kind = %v, want extraction", KindOf(err))
	}
}

func sampleFormats() []extractor.Format {
	return []extractor.Format{
		{FormatID: "18", Ext: "mp4", Width: 640, Height: 360, VCodec: "avc1", ACodec: "mp4a"},
		{FormatID: "137", Ext: "mp4", Width: 1920, Height: 1080, VCodec: "avc1", ACodec: "none"},
		{FormatID: "140", Ext: "m4a", VCodec: "none", ACodec: "mp4a"},
		{FormatID: "22", Ext: "mp4", Width: 1280, Height: 720, VCodec: "avc1", ACodec: "mp4a"},
		{FormatID: "sb0", Ext: "mhtml", VCodec: "none", ACodec: "none"},
	}
}

func TestListFormatsWithoutFFmpeg(t *testing.T) {
	svc, _ := newTestService(t, &fakeExtractor{probeInfo: &extractor.Info{Formats: sampleFormats()}}, fakeLocator{}, Config{})

	list, err := svc.ListFormats(context.Background(), "https://example.com/v")
	if err != nil {
		t.Fatalf("ListFormats() error = %v", err)
	}

	if list.FFmpegAvailable {
		t.Error("FFmpegAvailable = true, want false")
	}
	want := []Format{
		{FormatID: "18", Resolution: "640x360", Ext: "mp4"},
		{FormatID: "22", Resolution: "1280x720", Ext: "mp4"},
	}
	assertFormats(t, list.Formats, want)
}

func TestListFormatsWithFFmpeg(t *testing.T) {
	svc, _ := newTestService(t, &fakeExtractor{probeInfo: &extractor.Info{Formats: sampleFormats()}}, fakeLocator{path: "/usr/bin/ffmpeg"}, Config{})

	list, err := svc.ListFormats(context.Background(), "https://example.com/v")
	if err != nil {
		t.Fatalf("ListFormats() error = %v", err)
	}

	if !list.FFmpegAvailable {
		t.Error("FFmpegAvailable = false, want true")
	}
	want := []Format{
		{FormatID: "18", Resolution: "640x360", Ext: "mp4"},
		{FormatID: "137", Resolution: "1920x1080", Ext: "mp4", RequiresFFmpeg: true},
		{FormatID: "140", Resolution: "0x0", Ext: "m4a", RequiresFFmpeg: true},
		{FormatID: "22", Resolution: "1280x720", Ext: "mp4"},
		{FormatID: "sb0", Resolution: "0x0", Ext: "mhtml", RequiresFFmpeg: true},
	}
	assertFormats(t, list.Formats, want)
}

func TestListFormatsDeduplicates(t *testing.T) {
	info := &extractor.Info{Formats: []extractor.Format{
		{FormatID: "a", Ext: "mp4", Width: 1920, Height: 1080, VCodec: "avc1", ACodec: "mp4a"},
		{FormatID: "b", Ext: "mp4", Width: 1920, Height: 1080, VCodec: "vp9", ACodec: "opus"},
		{FormatID: "c", Ext: "webm", Width: 1920, Height: 1080, VCodec: "vp9", ACodec: "opus"},
	}}
	svc, _ := newTestService(t, &fakeExtractor{probeInfo: info}, fakeLocator{}, Config{})

	list, err := svc.ListFormats(context.Background(), "https://example.com/v")
	if err != nil {
		t.Fatalf("ListFormats() error = %v", err)
	}

	want := []Format{
		{FormatID: "a", Resolution: "1920x1080", Ext: "mp4"},
		{FormatID: "c", Resolution: "1920x1080", Ext: "webm"},
	}
	assertFormats(t, list.Formats, want)
}

func TestListFormatsEmptyListIsNotNil(t *testing.T) {
	info := &extractor.Info{Formats: []extractor.Format{
		{FormatID: "137", Ext: "mp4", Width: 1920, Height: 1080, VCodec: "avc1", ACodec: "none"},
	}}
	svc, _ := newTestService(t, &fakeExtractor{probeInfo: info}, fakeLocator{}, Config{})

	list, err := svc.ListFormats(context.Background(), "https://example.com/v")
	if err != nil {
		t.Fatalf("ListFormats() error = %v", err)
	}
	if list.Formats == nil {
		t.Fatal("Formats is nil, want empty slice")
	}

	body, err := json.Marshal(list)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != `{"formats":[],"ffmpeg_available":false}` {
		t.Errorf("JSON = %s", body)
	}
}

func TestSelectFormatsDefaults(t *testing.T) {
	got := selectFormats([]extractor.Format{
		{FormatID: "", Ext: "mp4", VCodec: "avc1", ACodec: "mp4a"},
		{FormatID: "x", VCodec: "avc1", ACodec: "mp4a"},
	}, false)

	want := []Format{{FormatID: "x", Resolution: "0x0", Ext: "mp4"}}
	assertFormats(t, got, want)
}

func TestSelectFormatsInvariants(t *testing.T) {
	exts := []string{"mp4", "webm", ""}
	codecs := []string{"avc1", "none", ""}

	var raw []extractor.Format
	for i := 0; i < 60; i++ {
		raw = append(raw, extractor.Format{
			FormatID: string(rune('A' + i%26)),
			Ext:      exts[i%len(exts)],
			Width:    (i % 4) * 640,
			Height:   (i % 4) * 360,
			VCodec:   codecs[i%len(codecs)],
			ACodec:   codecs[(i/3)%len(codecs)],
		})
	}

	for _, ffmpeg := range []bool{true, false} {
		got := selectFormats(raw, ffmpeg)

		seen := make(map[string]bool)
		for _, f := range got {
			key := f.Resolution + "|" + f.Ext
			if seen[key] {
				t.Errorf("ffmpeg=%v: duplicate (resolution, ext) %s", ffmpeg, key)
			}
			seen[key] = true

			if !ffmpeg && f.RequiresFFmpeg {
				t.Errorf("ffmpeg=%v: format %s requires ffmpeg", ffmpeg, f.FormatID)
			}
		}
	}
}

func assertFormats(t *testing.T, got, want []Format) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d formats %+v, want %d %+v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("format[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

// Downloads

func TestDownloadRequiresURLAndFormat(t *testing.T) {
	tests := []struct {
		name, url, format string
	}{
		{"missing url", "", "22"},
		{"missing format", "https://example.com/v", ""},
		{"both missing", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext := &fakeExtractor{}
			svc, _ := newTestService(t, ext, fakeLocator{}, Config{})

			_, err := svc.Download(context.Background(), tt.url, tt.format)
			if KindOf(err) != KindValidation {
				t.Fatalf("kind = %v, want validation", KindOf(err))
			}
			if err.Error() != "URL and format_id are required" {
				t.Errorf("message = %q", err.Error())
			}
			if len(ext.fetchCalls) != 0 {
				t.Error("extractor should not be called")
			}
		})
	}
}

func TestDownloadSuccess(t *testing.T) {
	ext := &fakeExtractor{}
	svc, fs := newTestService(t, ext, fakeLocator{path: "/usr/bin/ffmpeg"}, Config{})
	ext.fetchFn = writeOutput(fs, "mp4", "media-bytes")

	job, err := svc.Download(context.Background(), "https://example.com/v", "137+140")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	if job.Filename != "video_20240101_120000.mp4" {
		t.Errorf("Filename = %q, want video_20240101_120000.mp4", job.Filename)
	}
	if job.Path != "/staging/job-1/video_20240101_120000.mp4" {
		t.Errorf("Path = %q", job.Path)
	}
	if job.Size != int64(len("media-bytes")) {
		t.Errorf("Size = %d, want %d", job.Size, len("media-bytes"))
	}

	if len(ext.fetchCalls) != 1 {
		t.Fatalf("fetch called %d times, want 1", len(ext.fetchCalls))
	}
	opts := ext.fetchCalls[0]
	if opts.Format != "137+140" {
		t.Errorf("Format = %q", opts.Format)
	}
	if opts.OutputTemplate != "/staging/job-1/video_20240101_120000.%(ext)s" {
		t.Errorf("OutputTemplate = %q", opts.OutputTemplate)
	}
	if opts.MergeOutputFormat != "mp4" {
		t.Errorf("MergeOutputFormat = %q, want mp4", opts.MergeOutputFormat)
	}
	if opts.FFmpegLocation != "/usr/bin/ffmpeg" {
		t.Errorf("FFmpegLocation = %q", opts.FFmpegLocation)
	}
}

func TestDownloadSanitizesReportedName(t *testing.T) {
	ext := &fakeExtractor{}
	svc, fs := newTestService(t, ext, fakeLocator{}, Config{})
	ext.fetchFn = func(_ context.Context, _ string, _ extractor.FetchOptions) (*extractor.Info, error) {
		path := "/staging/job-1/clip: part|1?.webm"
		if err := afero.WriteFile(fs, path, []byte("x"), 0o644); err != nil {
			return nil, err
		}
		return &extractor.Info{Filename: path}, nil
	}

	job, err := svc.Download(context.Background(), "https://example.com/v", "22")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	if job.Filename != "clip part1.webm" {
		t.Errorf("Filename = %q, want %q", job.Filename, "clip part1.webm")
	}
	if ok, _ := afero.Exists(fs, "/staging/job-1/clip part1.webm"); !ok {
		t.Error("renamed file does not exist")
	}
	if ok, _ := afero.Exists(fs, "/staging/job-1/clip: part|1?.webm"); ok {
		t.Error("original file should have been renamed")
	}
}

func TestDownloadMergeWithoutFFmpeg(t *testing.T) {
	ext := &fakeExtractor{}
	svc, fs := newTestService(t, ext, fakeLocator{}, Config{})

	_, err := svc.Download(context.Background(), "https://example.com/v", "137+140")
	if KindOf(err) != KindProcessing {
		t.Fatalf("kind = %v, want processing", KindOf(err))
	}
	if Status(err) != 500 {
		t.Errorf("Status() = %d, want 500", Status(err))
	}
	if msg := WithFFmpegHint(err.Error()); !strings.HasSuffix(msg, FFmpegHint) {
		t.Errorf("message %q should take the ffmpeg hint", msg)
	}
	if len(ext.fetchCalls) != 0 {
		t.Error("extractor should not be called")
	}
	if ok, _ := afero.DirExists(fs, "/staging/job-1"); ok {
		t.Error("no job directory should be created")
	}
}

func TestDownloadNoResult(t *testing.T) {
	ext := &fakeExtractor{}
	svc, fs := newTestService(t, ext, fakeLocator{}, Config{})

	_, err := svc.Download(context.Background(), "https://example.com/v", "22")
	if KindOf(err) != KindProcessing {
		t.Fatalf("kind = %v, want processing", KindOf(err))
	}
	if err.Error() != "Failed to process download" {
		t.Errorf("message = %q", err.Error())
	}
	if ok, _ := afero.DirExists(fs, "/staging/job-1"); ok {
		t.Error("failed job directory should be removed")
	}
}

func TestDownloadExtractorError(t *testing.T) {
	ext := &fakeExtractor{fetchFn: func(context.Context, string, extractor.FetchOptions) (*extractor.Info, error) {
		return nil, &extractor.RunError{Message: "ERROR: Postprocessing: ffprobe and ffmpeg not found"}
	}}
	svc, _ := newTestService(t, ext, fakeLocator{}, Config{})

	_, err := svc.Download(context.Background(), "https://example.com/v", "22")
	if KindOf(err) != KindExtraction {
		t.Fatalf("kind = %v, want extraction", KindOf(err))
	}
	want := "ERROR: Postprocessing: ffprobe and ffmpeg not found. Please install FFmpeg and add it to your PATH."
	if got := WithFFmpegHint(err.Error()); got != want {
		t.Errorf("hinted message = %q, want %q", got, want)
	}
}

func TestDownloadFileMissing(t *testing.T) {
	ext := &fakeExtractor{fetchFn: func(context.Context, string, extractor.FetchOptions) (*extractor.Info, error) {
		return &extractor.Info{
			Filename: "/staging/job-1/video_20240101_120000.mp4",
			Problem:  "ERROR: ffmpeg exited with code 1",
		}, nil
	}}
	svc, _ := newTestService(t, ext, fakeLocator{}, Config{})

	_, err := svc.Download(context.Background(), "https://example.com/v", "22")
	if KindOf(err) != KindFileMissing {
		t.Fatalf("kind = %v, want file_missing", KindOf(err))
	}
	want := "Downloaded file not found at /staging/job-1/video_20240101_120000.mp4: ERROR: ffmpeg exited with code 1"
	if err.Error() != want {
		t.Errorf("message = %q, want %q", err.Error(), want)
	}
}

func TestDownloadFindsFileWhenPredictionDiffers(t *testing.T) {
	ext := &fakeExtractor{}
	svc, fs := newTestService(t, ext, fakeLocator{path: "/usr/bin/ffmpeg"}, Config{})
	ext.fetchFn = func(_ context.Context, _ string, opts extractor.FetchOptions) (*extractor.Info, error) {
		actual := strings.Replace(opts.OutputTemplate, "%(ext)s", "mp4", 1)
		_ = afero.WriteFile(fs, actual, []byte("merged"), 0o644)
		_ = afero.WriteFile(fs, strings.Replace(opts.OutputTemplate, "%(ext)s", "f137.mp4.part", 1), []byte("p"), 0o644)
		return &extractor.Info{Filename: strings.Replace(opts.OutputTemplate, "%(ext)s", "webm", 1)}, nil
	}

	job, err := svc.Download(context.Background(), "https://example.com/v", "137+140")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if job.Filename != "video_20240101_120000.mp4" {
		t.Errorf("Filename = %q", job.Filename)
	}
}

func TestDownloadHonoursCancelledQueue(t *testing.T) {
	started := make(chan struct{})
	unblock := make(chan struct{})

	ext := &fakeExtractor{}
	svc, fs := newTestService(t, ext, fakeLocator{}, Config{MaxConcurrent: 1})
	write := writeOutput(fs, "mp4", "x")
	ext.fetchFn = func(ctx context.Context, url string, opts extractor.FetchOptions) (*extractor.Info, error) {
		close(started)
		<-unblock
		return write(ctx, url, opts)
	}

	done := make(chan error, 1)
	go func() {
		_, err := svc.Download(context.Background(), "https://example.com/v", "22")
		done <- err
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := svc.Download(ctx, "https://example.com/other", "22")
	if KindOf(err) != KindProcessing {
		t.Errorf("queued download kind = %v, want processing", KindOf(err))
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("queued download error = %v, want deadline exceeded", err)
	}

	close(unblock)
	if err := <-done; err != nil {
		t.Errorf("first download error = %v", err)
	}
}

func TestRelease(t *testing.T) {
	tests := []struct {
		name             string
		deleteAfterServe bool
		wantKept         bool
	}{
		{"delete after serve", true, false},
		{"keep for janitor", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext := &fakeExtractor{}
			svc, fs := newTestService(t, ext, fakeLocator{}, Config{DeleteAfterServe: tt.deleteAfterServe})
			ext.fetchFn = writeOutput(fs, "mp4", "x")

			job, err := svc.Download(context.Background(), "https://example.com/v", "22")
			if err != nil {
				t.Fatalf("Download() error = %v", err)
			}

			svc.Release(job)

			kept, _ := afero.Exists(fs, job.Path)
			if kept != tt.wantKept {
				t.Errorf("file kept = %v, want %v", kept, tt.wantKept)
			}
		})
	}
}

func TestReleaseNilJob(t *testing.T) {
	svc, _ := newTestService(t, &fakeExtractor{}, fakeLocator{}, Config{})
	svc.Release(nil)
	svc.Release(&Job{})
}
