package mcp

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"image-scraper/pkg/config"
	"image-scraper/pkg/orchestrate"
	"image-scraper/pkg/storage"
)

const serverName = "image-scraper"

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	AppConfig    *config.AppConfig
	Orchestrator *orchestrate.Orchestrator
	Store        storage.HistoryStore // Optional, enables recent_runs and image_status
	Transport    string               // "stdio" or "sse"
	Port         int
	Version      string
	Logger       *logrus.Logger
}

// Server exposes the scrape pipeline as MCP tools
type Server struct {
	mcpServer *server.MCPServer
	cfg       *ServerConfig
	log       *logrus.Entry

	mu        sync.Mutex
	sseServer *server.SSEServer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("AppConfig is required")
	}
	if cfg.Orchestrator == nil {
		return nil, fmt.Errorf("Orchestrator is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	mcpServer := server.NewMCPServer(
		serverName,
		cfg.Version,
		server.WithLogging(),
	)

	s := &Server{
		mcpServer: mcpServer,
		cfg:       cfg,
		log:       cfg.Logger.WithField("component", "mcp"),
	}
	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	scanPageTool := mcp.NewTool("scan_page",
		mcp.WithDescription("Fetch a web page and list the absolute URLs of its <img> elements without downloading them"),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The http(s) page URL to scan"),
		),
	)
	s.mcpServer.AddTool(scanPageTool, s.handleScanPage)

	downloadTool := mcp.NewTool("download_images",
		mcp.WithDescription("Download every image referenced by a page into the save directory. Returns the run summary."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The http(s) page URL to scrape"),
		),
	)
	s.mcpServer.AddTool(downloadTool, s.handleDownloadImages)

	listImagesTool := mcp.NewTool("list_images",
		mcp.WithDescription("List the files currently in the save directory, newest first"),
	)
	s.mcpServer.AddTool(listImagesTool, s.handleListImages)

	count := 3
	if s.cfg.Store != nil {
		recentRunsTool := mcp.NewTool("recent_runs",
			mcp.WithDescription("List recent scrape runs from the history store"),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of runs to return (default: 10, max: 100)"),
			),
		)
		s.mcpServer.AddTool(recentRunsTool, s.handleRecentRuns)

		imageStatusTool := mcp.NewTool("image_status",
			mcp.WithDescription("Show the last recorded download outcome for one image URL"),
			mcp.WithString("url",
				mcp.Required(),
				mcp.Description("The absolute image URL as listed by scan_page"),
			),
		)
		s.mcpServer.AddTool(imageStatusTool, s.handleImageStatus)
		count += 2
	}

	s.log.Infof("Registered %d MCP tools", count)
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		sseServer := server.NewSSEServer(s.mcpServer)
		s.mu.Lock()
		s.sseServer = sseServer
		s.mu.Unlock()
		return sseServer.Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown stops the SSE listener if one is running
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	s.mu.Lock()
	sseServer := s.sseServer
	s.mu.Unlock()
	if sseServer == nil {
		return nil
	}
	return sseServer.Shutdown(ctx)
}
