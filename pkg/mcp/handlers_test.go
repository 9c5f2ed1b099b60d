package mcp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-scraper/pkg/config"
	"image-scraper/pkg/orchestrate"
	"image-scraper/pkg/storage"
)

func testServer(t *testing.T, withHistory bool) (*Server, *httptest.Server) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<img src="/one.png"><img src="/two.jpg"><img src="/one.png">`))
	})
	mux.HandleFunc("/one.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("1"))
	})
	mux.HandleFunc("/two.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("2"))
	})
	upstream := httptest.NewServer(mux)
	t.Cleanup(upstream.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.AppConfig{SaveDir: filepath.Join(t.TempDir(), "images")}
	_, err := cfg.Validate()
	require.NoError(t, err)

	var store *storage.BadgerStore
	opts := &orchestrate.Options{HTTPClient: upstream.Client()}
	serverCfg := &ServerConfig{AppConfig: cfg, Transport: "stdio", Logger: logger}
	if withHistory {
		store, err = storage.NewBadgerStore(t.TempDir(), logrus.NewEntry(logger))
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		opts.Store = store
		serverCfg.Store = store
	}
	serverCfg.Orchestrator = orchestrate.NewOrchestratorWithOptions(cfg, logrus.NewEntry(logger), opts)

	s, err := NewServer(serverCfg)
	require.NoError(t, err)
	return s, upstream
}

func callTool(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultJSON(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out), text.Text)
	return out
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	_, err := NewServer(&ServerConfig{})
	assert.Error(t, err)

	_, err = NewServer(&ServerConfig{AppConfig: config.Default()})
	assert.Error(t, err)
}

func TestHandleScanPage(t *testing.T) {
	s, upstream := testServer(t, false)

	res, err := s.handleScanPage(context.Background(), callTool("scan_page", map[string]any{"url": upstream.URL + "/page"}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	out := resultJSON(t, res)
	assert.Equal(t, float64(2), out["total_found"])
	assert.Equal(t, []any{upstream.URL + "/one.png", upstream.URL + "/two.jpg"}, out["images"])
}

func TestHandleScanPage_Errors(t *testing.T) {
	s, upstream := testServer(t, false)

	t.Run("missing url", func(t *testing.T) {
		res, err := s.handleScanPage(context.Background(), callTool("scan_page", nil))
		require.NoError(t, err)
		assert.True(t, res.IsError)
	})

	t.Run("page not found", func(t *testing.T) {
		res, err := s.handleScanPage(context.Background(), callTool("scan_page", map[string]any{"url": upstream.URL + "/missing"}))
		require.NoError(t, err)
		assert.True(t, res.IsError)
	})
}

func TestHandleDownloadImagesAndList(t *testing.T) {
	s, upstream := testServer(t, false)

	res, err := s.handleDownloadImages(context.Background(), callTool("download_images", map[string]any{"url": upstream.URL + "/page"}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	out := resultJSON(t, res)
	assert.Equal(t, "success", out["category"])
	assert.Equal(t, "Downloaded 2 image(s).", out["message"])
	assert.Equal(t, []any{"image_1.png", "image_2.jpg"}, out["saved"])
	assert.Len(t, out["images"], 2)

	res, err = s.handleListImages(context.Background(), callTool("list_images", nil))
	require.NoError(t, err)
	listed := resultJSON(t, res)
	assert.Equal(t, float64(2), listed["total"])
}

func TestHandleDownloadImages_PageErrorIsToolError(t *testing.T) {
	s, upstream := testServer(t, false)

	res, err := s.handleDownloadImages(context.Background(), callTool("download_images", map[string]any{"url": upstream.URL + "/missing"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleRecentRuns(t *testing.T) {
	s, upstream := testServer(t, true)

	_, err := s.handleDownloadImages(context.Background(), callTool("download_images", map[string]any{"url": upstream.URL + "/page"}))
	require.NoError(t, err)

	res, err := s.handleRecentRuns(context.Background(), callTool("recent_runs", map[string]any{"limit": 5}))
	require.NoError(t, err)
	out := resultJSON(t, res)
	assert.Equal(t, float64(1), out["total"])
}

func TestHandleImageStatus(t *testing.T) {
	s, upstream := testServer(t, true)

	_, err := s.handleDownloadImages(context.Background(), callTool("download_images", map[string]any{"url": upstream.URL + "/page"}))
	require.NoError(t, err)

	res, err := s.handleImageStatus(context.Background(), callTool("image_status", map[string]any{"url": upstream.URL + "/one.png"}))
	require.NoError(t, err)
	out := resultJSON(t, res)
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, true, out["recorded"])
	entry, ok := out["entry"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "image_1.png", entry["local_path"])

	res, err = s.handleImageStatus(context.Background(), callTool("image_status", map[string]any{"url": upstream.URL + "/never.png"}))
	require.NoError(t, err)
	out = resultJSON(t, res)
	assert.Equal(t, "not_found", out["status"])
	assert.Equal(t, false, out["recorded"])

	res, err = s.handleImageStatus(context.Background(), callTool("image_status", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestRun_UnknownTransport(t *testing.T) {
	s, _ := testServer(t, false)
	s.cfg.Transport = "carrier-pigeon"

	err := s.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown transport")
}

func TestFormatJSON(t *testing.T) {
	out := formatJSON(map[string]interface{}{"a": 1})
	assert.JSONEq(t, `{"a":1}`, out)

	out = formatJSON(map[string]interface{}{"bad": make(chan int)})
	assert.Contains(t, out, "error")
}
