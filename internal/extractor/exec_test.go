package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
)

// stubYtDlp writes a shell script standing in for yt-dlp. It records its
// arguments one per line, prints stdout and stderr, and exits with code.
func stubYtDlp(t *testing.T, stdout, stderr string, code int) (exe, argsFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub executable is a shell script")
	}
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	dir := t.TempDir()
	exe = filepath.Join(dir, "yt-dlp")
	argsFile = filepath.Join(dir, "args")

	var script strings.Builder
	script.WriteString("#!/bin/sh\n")
	fmt.Fprintf(&script, "for a in \"$@\"; do printf '%%s\\n' \"$a\" >> %s; done\n", shellQuote(argsFile))
	if stdout != "" {
		fmt.Fprintf(&script, "printf '%%s\\n' %s\n", shellQuote(stdout))
	}
	if stderr != "" {
		fmt.Fprintf(&script, "printf '%%s\\n' %s >&2\n", shellQuote(stderr))
	}
	fmt.Fprintf(&script, "exit %d\n", code)

	if err := os.WriteFile(exe, []byte(script.String()), 0o755); err != nil {
		t.Fatalf("failed to write stub: %v", err)
	}
	return exe, argsFile
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func readArgs(t *testing.T, argsFile string) []string {
	t.Helper()
	data, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("stub was not run: %v", err)
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

// flagValue returns the argument following flag, or "" if flag is absent.
func flagValue(args []string, flag string) (string, bool) {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return "", false
	}
	return args[i+1], true
}

func TestProbeArguments(t *testing.T) {
	exe, argsFile := stubYtDlp(t, `{"id":"abc","formats":[{"format_id":"18","ext":"mp4"}]}`, "", 0)

	info, err := NewYtDlp(exe).Probe(context.Background(), "https://example.com/watch?v=abc")
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if info.ID != "abc" || len(info.Formats) != 1 {
		t.Errorf("unexpected info: %+v", info)
	}

	args := readArgs(t, argsFile)
	for _, flag := range []string{"--simulate", "--dump-single-json", "--flat-playlist", "--ignore-errors", "--quiet", "--no-warnings"} {
		if !slices.Contains(args, flag) {
			t.Errorf("expected %s in %q", flag, args)
		}
	}
	if slices.Contains(args, "--no-simulate") {
		t.Errorf("listing must not download: %q", args)
	}
}

func TestURLIsNeverParsedAsOption(t *testing.T) {
	urls := []string{
		"--batch-file=/etc/passwd",
		"-a/etc/passwd",
		"https://example.com/watch?v=abc",
	}

	for _, url := range urls {
		t.Run(url, func(t *testing.T) {
			exe, argsFile := stubYtDlp(t, `{"id":"abc"}`, "", 0)
			if _, err := NewYtDlp(exe).Probe(context.Background(), url); err != nil {
				t.Fatalf("Probe failed: %v", err)
			}

			args := readArgs(t, argsFile)
			n := len(args)
			if n < 2 || args[n-2] != "--" || args[n-1] != url {
				t.Errorf("expected args to end with [-- %s], got %q", url, args)
			}

			exe, argsFile = stubYtDlp(t, `{"id":"abc"}`, "", 0)
			if _, err := NewYtDlp(exe).Fetch(context.Background(), url, FetchOptions{Format: "18", OutputTemplate: "/tmp/x.%(ext)s"}); err != nil {
				t.Fatalf("Fetch failed: %v", err)
			}

			args = readArgs(t, argsFile)
			n = len(args)
			if n < 2 || args[n-2] != "--" || args[n-1] != url {
				t.Errorf("expected fetch args to end with [-- %s], got %q", url, args)
			}
		})
	}
}

func TestFetchArguments(t *testing.T) {
	tests := []struct {
		name       string
		opts       FetchOptions
		wantFFmpeg string
	}{
		{
			name: "with ffmpeg",
			opts: FetchOptions{
				Format:            "137+140",
				OutputTemplate:    "/staging/job/video_20240101_120000.%(ext)s",
				MergeOutputFormat: "mp4",
				FFmpegLocation:    "/usr/bin/ffmpeg",
			},
			wantFFmpeg: "/usr/bin/ffmpeg",
		},
		{
			name: "without ffmpeg",
			opts: FetchOptions{
				Format:            "18",
				OutputTemplate:    "/staging/job/video_20240101_120000.%(ext)s",
				MergeOutputFormat: "mp4",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exe, argsFile := stubYtDlp(t, `{"id":"abc","filename":"/staging/job/video_20240101_120000.mp4"}`, "", 0)

			info, err := NewYtDlp(exe).Fetch(context.Background(), "https://example.com/v", tt.opts)
			if err != nil {
				t.Fatalf("Fetch failed: %v", err)
			}
			if got := info.OutputPath(); got != "/staging/job/video_20240101_120000.mp4" {
				t.Errorf("OutputPath() = %q", got)
			}

			args := readArgs(t, argsFile)

			wantValues := map[string]string{
				"--format":              tt.opts.Format,
				"--output":              tt.opts.OutputTemplate,
				"--merge-output-format": "mp4",
			}
			for flag, want := range wantValues {
				if got, ok := flagValue(args, flag); !ok || got != want {
					t.Errorf("%s = %q (present %v), want %q", flag, got, ok, want)
				}
			}

			got, ok := flagValue(args, "--ffmpeg-location")
			if tt.wantFFmpeg == "" && ok {
				t.Errorf("expected no --ffmpeg-location, got %q", got)
			}
			if tt.wantFFmpeg != "" && got != tt.wantFFmpeg {
				t.Errorf("--ffmpeg-location = %q, want %q", got, tt.wantFFmpeg)
			}

			for _, flag := range []string{
				"--windows-filenames", "--restrict-filenames", "--ignore-errors",
				"--no-playlist", "--no-simulate", "--dump-json", "--no-progress",
				"--quiet", "--no-warnings",
			} {
				if !slices.Contains(args, flag) {
					t.Errorf("expected %s in %q", flag, args)
				}
			}
		})
	}
}

func TestFetchExitErrorWithOutput(t *testing.T) {
	exe, _ := stubYtDlp(t,
		`{"id":"abc","filename":"/staging/job/video.mp4"}`,
		"WARNING: slow\nERROR: Postprocessing: ffmpeg exited with code 1",
		1)

	info, err := NewYtDlp(exe).Fetch(context.Background(), "https://example.com/v", FetchOptions{Format: "18"})
	if err != nil {
		t.Fatalf("expected result despite exit code, got %v", err)
	}
	if info.Problem != "ERROR: Postprocessing: ffmpeg exited with code 1" {
		t.Errorf("Problem = %q", info.Problem)
	}
	if info.OutputPath() != "/staging/job/video.mp4" {
		t.Errorf("OutputPath() = %q", info.OutputPath())
	}
}

func TestProbeFailure(t *testing.T) {
	exe, _ := stubYtDlp(t, "", "ERROR: [generic] Unsupported URL: https://example.com", 1)

	_, err := NewYtDlp(exe).Probe(context.Background(), "https://example.com")

	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("expected RunError, got %v", err)
	}
	if runErr.Message != "ERROR: [generic] Unsupported URL: https://example.com" {
		t.Errorf("Message = %q", runErr.Message)
	}
}

func TestProbeWithoutOutput(t *testing.T) {
	exe, _ := stubYtDlp(t, "", "", 0)

	_, err := NewYtDlp(exe).Probe(context.Background(), "https://example.com")
	if !errors.Is(err, ErrNoOutput) {
		t.Errorf("expected ErrNoOutput, got %v", err)
	}
}

func TestFetchWithoutOutput(t *testing.T) {
	exe, _ := stubYtDlp(t, "", "", 0)

	info, err := NewYtDlp(exe).Fetch(context.Background(), "https://example.com", FetchOptions{Format: "18"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info != nil {
		t.Errorf("expected nil info, got %+v", info)
	}
}

func TestVersion(t *testing.T) {
	exe, argsFile := stubYtDlp(t, "2025.08.27\nextra", "", 0)

	version, err := NewYtDlp(exe).Version(context.Background())
	if err != nil {
		t.Fatalf("Version failed: %v", err)
	}
	if version != "2025.08.27" {
		t.Errorf("Version() = %q, want 2025.08.27", version)
	}
	if args := readArgs(t, argsFile); !slices.Equal(args, []string{"--version"}) {
		t.Errorf("expected only --version, got %q", args)
	}
}

func TestVersionFailure(t *testing.T) {
	exe, _ := stubYtDlp(t, "", "boom", 2)

	if _, err := NewYtDlp(exe).Version(context.Background()); err == nil {
		t.Error("expected error from failing executable")
	}
}
