package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-scraper/pkg/models"
	"image-scraper/pkg/storage"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))
	return cfgPath
}

// testApp loads an app whose save and state directories live under t.TempDir()
func testApp(t *testing.T, history bool) *app {
	t.Helper()
	dir := t.TempDir()
	content := "save_dir: " + filepath.Join(dir, "images") + "\n" +
		"state_dir: " + filepath.Join(dir, "state") + "\n"
	if !history {
		content += "enable_history: false\n"
	}
	opts := &rootOptions{configPath: writeConfig(t, content), configExplicit: true, logLevel: "error"}

	a, err := loadApp(opts, io.Discard, io.Discard)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func gallery(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/gallery", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<img src="/a.png"><img src="/b.txt"><img src="/gone.png">`))
	})
	mux.HandleFunc("/a.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	})
	mux.HandleFunc("/b.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("text"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestDoValidate_Valid(t *testing.T) {
	cfgPath := writeConfig(t, "save_dir: ./pics\nchunk_size: 2048\n")

	var stdout, stderr bytes.Buffer
	exitCode := doValidate(cfgPath, &stdout, &stderr)

	assert.Equal(t, 0, exitCode)
	assert.Contains(t, stdout.String(), "save_dir:   ./pics")
	assert.Contains(t, stdout.String(), "OK: Configuration valid")
	assert.Empty(t, stderr.String())
}

func TestDoValidate_Warnings(t *testing.T) {
	cfgPath := writeConfig(t, "respect_robots_txt: true\n")

	var stdout, stderr bytes.Buffer
	exitCode := doValidate(cfgPath, &stdout, &stderr)

	assert.Equal(t, 0, exitCode)
	assert.Contains(t, stdout.String(), "WARN:")
}

func TestDoValidate_InvalidValues(t *testing.T) {
	cfgPath := writeConfig(t, "fallback_extension: webp\n")

	var stdout, stderr bytes.Buffer
	exitCode := doValidate(cfgPath, &stdout, &stderr)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "ERROR:")
}

func TestDoValidate_MissingFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	exitCode := doValidate(filepath.Join(t.TempDir(), "nope.yaml"), &stdout, &stderr)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "read config")
}

func TestLoadApp_MissingDefaultConfigUsesDefaults(t *testing.T) {
	opts := &rootOptions{configPath: filepath.Join(t.TempDir(), "config.yaml"), logLevel: "bogus"}
	t.Setenv("IMAGE_SCRAPER_STATE_DIR", filepath.Join(t.TempDir(), "state"))

	a, err := loadApp(opts, io.Discard, io.Discard)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "images", a.cfg.SaveDir)
	assert.NotNil(t, a.store, "history is on by default")
}

func TestLoadApp_ExplicitMissingConfigFails(t *testing.T) {
	opts := &rootOptions{configPath: filepath.Join(t.TempDir(), "config.yaml"), configExplicit: true, logLevel: "info"}

	_, err := loadApp(opts, io.Discard, io.Discard)
	assert.Error(t, err)
}

func TestDoFetch_WithArgument(t *testing.T) {
	server := gallery(t)
	a := testApp(t, false)

	var stdout bytes.Buffer
	exitCode := doFetch(context.Background(), a, server.URL+"/gallery", nil, &stdout)

	assert.Equal(t, 0, exitCode)
	out := stdout.String()
	assert.Contains(t, out, "Found 3 image(s):")
	assert.Contains(t, out, "1. "+server.URL+"/a.png")
	assert.Contains(t, out, "image_1.png")
	assert.Contains(t, out, "skipped")
	assert.Contains(t, out, "The server responded with HTTP 404.")
	assert.Contains(t, out, "Downloaded 1 image(s).")
	assert.NotContains(t, out, urlPrompt)

	data, err := os.ReadFile(filepath.Join(a.cfg.SaveDir, "image_1.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestDoFetch_PromptsForURL(t *testing.T) {
	server := gallery(t)
	a := testApp(t, false)

	var stdout bytes.Buffer
	exitCode := doFetch(context.Background(), a, "", strings.NewReader(server.URL+"/gallery\n"), &stdout)

	assert.Equal(t, 0, exitCode)
	assert.True(t, strings.HasPrefix(stdout.String(), urlPrompt))
	assert.Contains(t, stdout.String(), "Downloaded 1 image(s).")
}

func TestDoFetch_EmptyPromptWarns(t *testing.T) {
	a := testApp(t, false)

	var stdout bytes.Buffer
	exitCode := doFetch(context.Background(), a, "", strings.NewReader("\n"), &stdout)

	assert.Equal(t, 0, exitCode)
	assert.Contains(t, stdout.String(), "Please enter a URL.")
	assert.NotContains(t, stdout.String(), "Found")
}

func TestDoFetch_NoImages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<p>text only</p>"))
	}))
	defer server.Close()
	a := testApp(t, false)

	var stdout bytes.Buffer
	doFetch(context.Background(), a, server.URL, nil, &stdout)

	assert.Contains(t, stdout.String(), "No images found on the page.")
}

func TestDoFetch_RecordsHistory(t *testing.T) {
	server := gallery(t)
	a := testApp(t, true)
	require.NotNil(t, a.store)

	var stdout bytes.Buffer
	doFetch(context.Background(), a, server.URL+"/gallery", nil, &stdout)

	var out, errOut bytes.Buffer
	exitCode := doHistory(a.store, 10, &out, &errOut)
	assert.Equal(t, 0, exitCode)
	assert.Contains(t, out.String(), server.URL+"/gallery")
	assert.Contains(t, out.String(), "saved=1 rejected=1 failed=1")
}

func TestDoImageStatus(t *testing.T) {
	server := gallery(t)
	a := testApp(t, true)
	require.NotNil(t, a.store)

	var fetchOut bytes.Buffer
	doFetch(context.Background(), a, server.URL+"/gallery", nil, &fetchOut)

	t.Run("saved image", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		assert.Equal(t, 0, doImageStatus(a.store, server.URL+"/a.png", &stdout, &stderr))
		assert.Contains(t, stdout.String(), "status:       success")
		assert.Contains(t, stdout.String(), "file:         image_1.png")
		assert.Contains(t, stdout.String(), "content type: image/png")
	})

	t.Run("failed image", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		assert.Equal(t, 0, doImageStatus(a.store, server.URL+"/gone.png", &stdout, &stderr))
		assert.Contains(t, stdout.String(), "status:       failure")
		assert.Contains(t, stdout.String(), "error:        HTTP_404")
	})

	t.Run("unknown image", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		assert.Equal(t, 0, doImageStatus(a.store, server.URL+"/never.png", &stdout, &stderr))
		assert.Contains(t, stdout.String(), "No history for")
	})

	t.Run("key count", func(t *testing.T) {
		var stdout bytes.Buffer
		printStoreStats(a.store, &stdout)
		// Three image entries plus one run
		assert.Contains(t, stdout.String(), "4 entries in history store")
	})
}

type fakeRuns struct {
	runs []models.RunRecord
}

func (f *fakeRuns) RecordRun(run *models.RunRecord) error { return nil }
func (f *fakeRuns) RecentRuns(limit int) ([]models.RunRecord, error) {
	return f.runs, nil
}

var _ storage.RunStore = (*fakeRuns)(nil)

func TestDoHistory(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		assert.Equal(t, 0, doHistory(&fakeRuns{}, 5, &stdout, &stderr))
		assert.Contains(t, stdout.String(), "No runs recorded yet.")
	})

	t.Run("lists runs", func(t *testing.T) {
		store := &fakeRuns{runs: []models.RunRecord{{
			ID:         "run-1",
			PageURL:    "https://example.com/gallery",
			StartedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			Discovered: 4,
			Saved:      []string{"image_1.png", "image_2.gif"},
			Rejected:   1,
			Failed:     1,
			Category:   models.CategorySuccess,
			Message:    "Downloaded 2 image(s).",
		}}}

		var stdout, stderr bytes.Buffer
		assert.Equal(t, 0, doHistory(store, 5, &stdout, &stderr))
		assert.Contains(t, stdout.String(), "https://example.com/gallery")
		assert.Contains(t, stdout.String(), "discovered=4 saved=2 rejected=1 failed=1")
		assert.Contains(t, stdout.String(), "Downloaded 2 image(s).")
	})
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()

	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"fetch", "serve", "validate", "history", "mcp-server", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestVersionCmd(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "image-scraper "+version+"\n", out.String())
}

func TestExitCode(t *testing.T) {
	assert.NoError(t, exitCode(0))
	assert.EqualError(t, exitCode(1), "exit status 1")
}
