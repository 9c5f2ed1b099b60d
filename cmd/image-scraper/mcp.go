package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"image-scraper/pkg/mcp"
	"image-scraper/pkg/storage"
)

func newMcpServerCmd(opts *rootOptions) *cobra.Command {
	var (
		transport string
		port      int
	)

	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Start MCP server for AI tool integration",
		Long: `Start an MCP (Model Context Protocol) server exposing the scraper as tools.

Available MCP Tools:
  scan_page        List the image URLs referenced by a page
  download_images  Download every image referenced by a page
  list_images      List files in the save directory
  recent_runs      List recent runs (when history is enabled)
  image_status     Last recorded outcome for one image URL (when history is enabled)`,
		Example: `  # Start with stdio transport
  image-scraper mcp-server

  # Start with SSE transport on port 8080
  image-scraper mcp-server --transport sse --port 8080`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			// MCP protocol uses stdout, logs go to stderr
			a, err := loadApp(opts, c.ErrOrStderr(), c.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			return exitCode(doMcpServer(c.Context(), a, transport, port, c.ErrOrStderr()))
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport type (stdio, sse)")
	cmd.Flags().IntVar(&port, "port", 8080, "HTTP port (for sse transport)")
	return cmd
}

// doMcpServer is the testable implementation of the MCP server.
// Returns exit code (0 = success, 1 = error).
func doMcpServer(ctx context.Context, a *app, transport string, port int, stderr io.Writer) int {
	var history storage.HistoryStore
	if a.store != nil {
		history = a.store
	}

	serverCfg := &mcp.ServerConfig{
		AppConfig:    a.cfg,
		Orchestrator: a.orch,
		Store:        history,
		Transport:    transport,
		Port:         port,
		Version:      version,
		Logger:       a.log.Logger,
	}

	server, err := mcp.NewServer(serverCfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error creating MCP server: %v\n", err)
		return 1
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.log.Warnf("MCP shutdown error: %v", err)
		}
	}()

	a.log.Infof("Starting MCP server (transport: %s)", transport)
	if err := server.Run(); err != nil {
		fmt.Fprintf(stderr, "MCP server error: %v\n", err)
		return 1
	}
	return 0
}
