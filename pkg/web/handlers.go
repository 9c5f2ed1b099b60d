package web

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"image-scraper/pkg/models"
	"image-scraper/pkg/orchestrate"
	"image-scraper/pkg/storage"
	"image-scraper/pkg/utils"
)

// APIResponse is the envelope of every /api response
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func respondSuccess(c *gin.Context, httpStatus int, data any, message string) {
	if message == "" {
		message = "ok"
	}
	c.JSON(httpStatus, APIResponse{Success: true, Data: data, Message: message, Code: httpStatus})
}

func respondError(c *gin.Context, httpStatus int, message string, data any) {
	c.JSON(httpStatus, APIResponse{Success: false, Data: data, Message: message, Code: httpStatus})
}

// pageData feeds templates/index.html
type pageData struct {
	URL    string
	Images []string
	Status orchestrate.Status
}

func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", pageData{})
}

func (s *Server) handleSubmit(c *gin.Context) {
	pageURL := c.PostForm("url")

	result, err := s.runPipeline(c.Request.Context(), pageURL)
	if err != nil {
		// Client went away while waiting for a run slot
		c.HTML(http.StatusServiceUnavailable, "index.html", pageData{
			URL:    pageURL,
			Status: orchestrate.Status{Category: models.CategoryDanger, Message: "The server is busy, please try again."},
		})
		return
	}

	c.HTML(http.StatusOK, "index.html", pageData{
		URL:    pageURL,
		Images: result.Saved,
		Status: result.Status,
	})
}

func (s *Server) handleImage(c *gin.Context) {
	name := c.Param("filename")

	f, info, err := s.saveDir.Open(name)
	switch {
	case errors.Is(err, utils.ErrInvalidFilename):
		c.String(http.StatusBadRequest, "invalid filename")
		return
	case errors.Is(err, fs.ErrNotExist):
		c.String(http.StatusNotFound, "not found")
		return
	case err != nil:
		s.log.WithField("filename", name).Errorf("Cannot open stored image: %v", err)
		c.String(http.StatusInternalServerError, "cannot read image")
		return
	}
	defer f.Close()

	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), f)
}

type scrapeRequest struct {
	URL string `json:"url"`
}

// imageResultJSON is the API view of one models.DownloadResult
type imageResultJSON struct {
	Index       int    `json:"index"`
	URL         string `json:"url"`
	Outcome     string `json:"outcome"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Bytes       int64  `json:"bytes"`
	Reason      string `json:"reason,omitempty"`
	Error       string `json:"error,omitempty"`
}

type scrapeResponse struct {
	*orchestrate.RunResult
	Results []imageResultJSON `json:"results"`
}

func newScrapeResponse(result *orchestrate.RunResult) scrapeResponse {
	resp := scrapeResponse{RunResult: result, Results: make([]imageResultJSON, 0, len(result.Results))}
	for _, r := range result.Results {
		item := imageResultJSON{
			Index:       r.Index,
			URL:         r.URL,
			Outcome:     r.Outcome.String(),
			Filename:    r.Filename,
			ContentType: r.ContentType,
			Bytes:       r.BytesWritten,
			Reason:      r.Reason,
		}
		if r.Err != nil {
			item.Error = utils.UserMessage(r.Err)
		}
		resp.Results = append(resp.Results, item)
	}
	return resp
}

func (s *Server) handleAPIScrape(c *gin.Context) {
	var req scrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "request body must be JSON with a \"url\" field", nil)
		return
	}

	result, err := s.runPipeline(c.Request.Context(), req.URL)
	if err != nil {
		respondError(c, http.StatusServiceUnavailable, "The server is busy, please try again.", nil)
		return
	}

	resp := newScrapeResponse(result)
	switch {
	case errors.Is(result.Err, utils.ErrMissingURL), errors.Is(result.Err, utils.ErrInvalidURL):
		respondError(c, http.StatusBadRequest, result.Status.Message, resp)
	case result.Status.Category == models.CategoryDanger:
		respondError(c, http.StatusBadGateway, result.Status.Message, resp)
	default:
		respondSuccess(c, http.StatusOK, resp, result.Status.Message)
	}
}

func (s *Server) handleAPIImages(c *gin.Context) {
	images, err := s.saveDir.List()
	if err != nil {
		s.log.Errorf("Cannot list save directory: %v", err)
		respondError(c, http.StatusInternalServerError, "cannot list images", nil)
		return
	}
	if images == nil {
		images = []storage.StoredImage{}
	}
	respondSuccess(c, http.StatusOK, images, "")
}

func (s *Server) handleAPIRuns(c *gin.Context) {
	if s.store == nil {
		respondSuccess(c, http.StatusOK, []models.RunRecord{}, "history disabled")
		return
	}

	limit := storage.DefaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > storage.MaxRunsLimit {
			respondError(c, http.StatusBadRequest,
				fmt.Sprintf("limit must be an integer between 1 and %d", storage.MaxRunsLimit), nil)
			return
		}
		limit = n
	}

	runs, err := s.store.RecentRuns(limit)
	if err != nil {
		s.log.Errorf("Cannot read run history: %v", err)
		respondError(c, http.StatusInternalServerError, "cannot read run history", nil)
		return
	}
	if runs == nil {
		runs = []models.RunRecord{}
	}
	respondSuccess(c, http.StatusOK, runs, "")
}
