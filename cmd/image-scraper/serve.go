package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"image-scraper/pkg/storage"
	"image-scraper/pkg/web"
)

const historyGCInterval = 10 * time.Minute

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web form and image server",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			a, err := loadApp(opts, c.ErrOrStderr(), c.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.ListenAddr
			}
			return exitCode(doServe(c.Context(), a, addr, c.ErrOrStderr()))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, ':5000')")
	return cmd
}

// doServe runs the web server until ctx is cancelled.
// Returns exit code (0 = success, 1 = error).
func doServe(ctx context.Context, a *app, addr string, stderr io.Writer) int {
	if a.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	var runs storage.RunStore
	if a.store != nil {
		runs = a.store
		gcCtx, cancelGC := context.WithCancel(ctx)
		defer cancelGC()
		go a.store.RunGC(gcCtx, historyGCInterval)
	}

	server, err := web.NewServer(a.cfg, a.orch, runs, a.log.WithField("component", "web"))
	if err != nil {
		fmt.Fprintf(stderr, "Error creating web server: %v\n", err)
		return 1
	}

	if err := server.ListenAndServe(ctx, addr); err != nil {
		fmt.Fprintf(stderr, "Web server error: %v\n", err)
		return 1
	}
	return 0
}
