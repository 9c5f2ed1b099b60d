package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"image-scraper/pkg/config"
	"image-scraper/pkg/orchestrate"
	"image-scraper/pkg/storage"
)

//go:embed templates/*.html static/*
var assets embed.FS

const shutdownTimeout = 5 * time.Second

// Server is the HTTP front end: the form, the image endpoint and the JSON API
type Server struct {
	appCfg  *config.AppConfig
	orch    *orchestrate.Orchestrator
	saveDir *storage.SaveDir
	store   storage.RunStore // nil when history is disabled
	runSem  *semaphore.Weighted
	log     *logrus.Entry
	engine  *gin.Engine
}

// NewServer builds the gin engine and registers every route. store may be nil.
func NewServer(appCfg *config.AppConfig, orch *orchestrate.Orchestrator, store storage.RunStore, log *logrus.Entry) (*Server, error) {
	tmpl, err := template.ParseFS(assets, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	staticFS, err := newEmbedFileSystem(assets, "static")
	if err != nil {
		return nil, fmt.Errorf("static assets: %w", err)
	}

	s := &Server{
		appCfg:  appCfg,
		orch:    orch,
		saveDir: orch.SaveDir(),
		store:   store,
		runSem:  semaphore.NewWeighted(int64(appCfg.MaxConcurrentRuns)),
		log:     log,
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(loggingMiddleware(log))
	engine.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))
	engine.Use(static.Serve("/static", staticFS))
	engine.SetHTMLTemplate(tmpl)

	engine.GET("/", s.handleIndex)
	engine.POST("/", s.handleSubmit)
	engine.GET("/images/:filename", s.handleImage)

	api := engine.Group("/api")
	api.POST("/scrape", s.handleAPIScrape)
	api.GET("/images", s.handleAPIImages)
	api.GET("/runs", s.handleAPIRuns)

	s.engine = engine
	return s, nil
}

// Handler returns the HTTP handler for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("Web server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down web server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// runPipeline runs the orchestrator under the concurrent-run limit
func (s *Server) runPipeline(ctx context.Context, pageURL string) (*orchestrate.RunResult, error) {
	if err := s.runSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.runSem.Release(1)
	return s.orch.Run(ctx, pageURL, nil), nil
}

func loggingMiddleware(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("HTTP request")
			return
		}
		entry.Debug("HTTP request")
	}
}

// embedFileSystem adapts an embedded directory to static.ServeFileSystem
type embedFileSystem struct {
	http.FileSystem
	fsys fs.FS
}

func newEmbedFileSystem(root embed.FS, dir string) (*embedFileSystem, error) {
	sub, err := fs.Sub(root, dir)
	if err != nil {
		return nil, err
	}
	return &embedFileSystem{FileSystem: http.FS(sub), fsys: sub}, nil
}

// Exists reports whether the request path names a file in the embedded directory
func (e *embedFileSystem) Exists(prefix, path string) bool {
	name, ok := strings.CutPrefix(path, prefix)
	if !ok {
		return false
	}
	name = strings.TrimPrefix(name, "/")
	if name == "" || !fs.ValidPath(name) {
		return false
	}
	info, err := fs.Stat(e.fsys, name)
	return err == nil && !info.IsDir()
}
