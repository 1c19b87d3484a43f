package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sternrassler/episode-fetch/internal/testutil"
	"github.com/Sternrassler/episode-fetch/pkg/batch"
	"github.com/Sternrassler/episode-fetch/pkg/fetch"
)

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"--version"}, &stdout, &stderr)

	if code != 0 {
		t.Errorf("Expected exit code 0, got %d", code)
	}
	if !strings.HasPrefix(stdout.String(), "episode-fetch ") {
		t.Errorf("Unexpected version output %q", stdout.String())
	}
}

func TestRun_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"--help"}, &stdout, &stderr)

	if code != 0 {
		t.Errorf("Expected exit code 0, got %d", code)
	}
	if !strings.Contains(stdout.String(), "--width") {
		t.Errorf("Expected usage to mention --width, got %q", stdout.String())
	}
}

func TestRun_InvalidConfiguration(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()

	rules := writeRules(t, origin)
	origin.SetEpisode("/primary/CCEp001.mp3", "episode one")

	tests := []struct {
		name string
		args []string
		env  map[string]string
		want string
	}{
		{"missing_directory", []string{"-o", filepath.Join(t.TempDir(), "missing")}, nil, "invalid output directory"},
		{"reversed_range", []string{"-o", t.TempDir(), "--first", "5", "--last", "2"}, nil, "must be >= first"},
		{"unknown_flag", []string{"--bogus"}, nil, "unknown flag"},
		{"unknown_strategy", []string{"-o", t.TempDir(), "--strategy", "fast"}, nil, "fast"},
		{"zero_width", []string{"-c", rules, "-o", t.TempDir(), "--first", "1", "--last", "1", "--width", "0"}, nil, "width must be > 0"},
		{"zero_width_env", []string{"-c", rules, "-o", t.TempDir(), "--first", "1", "--last", "1"}, map[string]string{"EPISODE_FETCH_WIDTH": "0"}, "width must be > 0"},
		{"zero_first", []string{"-c", rules, "-o", t.TempDir(), "--first", "0", "--last", "1"}, nil, "first must be >= 1"},
		{"pause_with_pool", []string{"-c", rules, "-o", t.TempDir(), "--first", "1", "--last", "1", "--pause", "1s"}, nil, "pause requires the groups strategy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			var stdout, stderr bytes.Buffer

			code := run(context.Background(), tt.args, &stdout, &stderr)

			if code != 1 {
				t.Errorf("Expected exit code 1, got %d", code)
			}
			if !strings.Contains(stderr.String(), tt.want) {
				t.Errorf("Expected stderr to contain %q, got %q", tt.want, stderr.String())
			}
			if stdout.Len() != 0 {
				t.Errorf("Expected no summary, got %q", stdout.String())
			}
		})
	}

	if origin.GetTotalRequests() != 0 {
		t.Errorf("Invalid configuration must not touch the network, got %d requests", origin.GetTotalRequests())
	}
}

// writeRules writes a config file with two rules against the mock origin.
func writeRules(t *testing.T, origin *testutil.MockOrigin) string {
	t.Helper()

	content := fmt.Sprintf(`width: 2
files:
  prefix: CC
  extension: mp3
rules:
  - name: primary
    base: %[1]s/primary/CCEp
    pad_width: 3
    extension: .mp3
  - name: mirror
    base: %[1]s/mirror/CCEp
    extension: .mp3
`, origin.URL())

	path := filepath.Join(t.TempDir(), "episode-fetch.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_DownloadsRange(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()

	origin.SetEpisode("/primary/CCEp001.mp3", "episode one")
	origin.SetResponse("/primary/CCEp002.mp3", testutil.NewServerErrorResponse())
	origin.SetEpisode("/mirror/CCEp2.mp3", "episode two")

	dir := t.TempDir()
	args := []string{"-c", writeRules(t, origin), "-o", dir, "--first", "1", "--last", "3", "--user-agent", "episode-fetch-test"}

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)

	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d\nstderr: %s", code, stderr.String())
	}

	for name, want := range map[string]string{"CC1.mp3": "episode one", "CC2.mp3": "episode two"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if string(data) != want {
			t.Errorf("%s = %q, want %q", name, data, want)
		}
	}

	if _, err := os.Stat(filepath.Join(dir, "CC3.mp3")); !os.IsNotExist(err) {
		t.Errorf("CC3.mp3 should not exist, stat err = %v", err)
	}

	out := stdout.String()
	if !strings.Contains(out, "All done: 2/3 episodes downloaded") {
		t.Errorf("Unexpected summary %q", out)
	}
	if !strings.Contains(out, "Failed episodes: [3]") {
		t.Errorf("Expected failed episode 3 in summary, got %q", out)
	}

	if got := origin.GetLastRequestHeader().Get("User-Agent"); got != "episode-fetch-test" {
		t.Errorf("User-Agent = %q", got)
	}
}

func TestRun_Canceled(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	args := []string{"-c", writeRules(t, origin), "-o", t.TempDir(), "--first", "1", "--last", "4"}

	var stdout, stderr bytes.Buffer
	code := run(ctx, args, &stdout, &stderr)

	if code != 1 {
		t.Errorf("Expected exit code 1 for an interrupted run, got %d", code)
	}
	if !strings.Contains(stdout.String(), "Canceled episodes: 4") {
		t.Errorf("Unexpected summary %q", stdout.String())
	}
	if origin.GetTotalRequests() != 0 {
		t.Errorf("Expected no requests after cancellation, got %d", origin.GetTotalRequests())
	}
}

func TestRun_BucketDestination(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()
	origin.SetEpisode("/primary/CCEp001.mp3", "episode one")

	bucketDir := t.TempDir()
	args := []string{
		"-c", writeRules(t, origin),
		"--bucket", "file://" + filepath.ToSlash(bucketDir),
		"--bucket-prefix", "crate",
		"--first", "1", "--last", "1",
	}

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)

	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d\nstderr: %s", code, stderr.String())
	}

	data, err := os.ReadFile(filepath.Join(bucketDir, "crate", "CC1.mp3"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "episode one" {
		t.Errorf("Object content = %q", data)
	}
}

func TestRun_SetupFailure(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"redis_unreachable", []string{"-o", t.TempDir(), "--redis-addr", "127.0.0.1:1"}, "connect to redis"},
		{"postgres_bad_dsn", []string{"-o", t.TempDir(), "--postgres-dsn", "postgres://user@localhost:notaport/db"}, "connect to postgres"},
		{"bad_proxy", []string{"-o", t.TempDir(), "--proxy", ":bad"}, "create http client"},
		{"bad_bucket", []string{"--bucket", "nosuchscheme://bucket"}, "open bucket"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer

			code := run(context.Background(), tt.args, &stdout, &stderr)

			if code != 1 {
				t.Errorf("Expected exit code 1, got %d", code)
			}
			if !strings.Contains(stderr.String(), tt.want) {
				t.Errorf("Expected stderr to contain %q, got %q", tt.want, stderr.String())
			}
		})
	}
}

func TestPrintSummary(t *testing.T) {
	s := &batch.Summary{
		First: 1,
		Last:  3,
		Outcomes: []fetch.Outcome{
			{Item: 1, Status: fetch.StatusSuccess, Bytes: 10},
			{Item: 2, Status: fetch.StatusExhausted},
			{Item: 3, Status: fetch.StatusSuccess, Bytes: 5},
		},
		Succeeded: 2,
		Exhausted: 1,
		Bytes:     15,
	}

	var buf bytes.Buffer
	printSummary(&buf, s)

	out := buf.String()
	if !strings.Contains(out, "All done: 2/3 episodes downloaded (15 bytes)") {
		t.Errorf("Unexpected summary line %q", out)
	}
	if !strings.Contains(out, "Failed episodes: [2]") {
		t.Errorf("Expected failed list, got %q", out)
	}
	if strings.Contains(out, "Canceled") {
		t.Errorf("Did not expect canceled line, got %q", out)
	}
}
