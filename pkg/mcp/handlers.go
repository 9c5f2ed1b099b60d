package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"image-scraper/pkg/models"
	"image-scraper/pkg/utils"
)

// handleScanPage handles the scan_page tool
func (s *Server) handleScanPage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	urlStr := request.GetString("url", "")
	if urlStr == "" {
		return mcp.NewToolResultError("url parameter is required"), nil
	}

	set, err := s.cfg.Orchestrator.Scanner().Scan(ctx, urlStr)
	if err != nil {
		s.log.WithField("page_url", urlStr).Warnf("scan_page failed: %v", err)
		return mcp.NewToolResultError(fmt.Sprintf("%s (%s)", utils.UserMessage(err), utils.CategorizeError(err))), nil
	}

	images := set.URLs()
	if images == nil {
		images = []string{}
	}
	result := map[string]interface{}{
		"url":         urlStr,
		"images":      images,
		"total_found": len(images),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleDownloadImages handles the download_images tool
func (s *Server) handleDownloadImages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	urlStr := request.GetString("url", "")
	if urlStr == "" {
		return mcp.NewToolResultError("url parameter is required"), nil
	}

	run := s.cfg.Orchestrator.Run(ctx, urlStr, nil)

	images := make([]map[string]interface{}, 0, len(run.Results))
	for _, r := range run.Results {
		item := map[string]interface{}{
			"index":   r.Index,
			"url":     r.URL,
			"outcome": r.Outcome.String(),
		}
		if r.Filename != "" {
			item["filename"] = r.Filename
		}
		if r.Reason != "" {
			item["reason"] = r.Reason
		}
		if r.Err != nil && r.Outcome == models.OutcomeFailed {
			item["error"] = utils.UserMessage(r.Err)
		}
		images = append(images, item)
	}

	saved := run.Saved
	if saved == nil {
		saved = []string{}
	}
	result := map[string]interface{}{
		"run_id":     run.RunID,
		"url":        run.PageURL,
		"category":   run.Status.Category,
		"message":    run.Status.Message,
		"discovered": len(run.Discovered),
		"saved":      saved,
		"rejected":   run.Rejected,
		"failed":     run.Failed,
		"images":     images,
		"save_dir":   s.cfg.AppConfig.SaveDir,
	}

	if run.Status.Category == models.CategoryDanger {
		return mcp.NewToolResultError(formatJSON(result)), nil
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleListImages handles the list_images tool
func (s *Server) handleListImages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	images, err := s.cfg.Orchestrator.SaveDir().List()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list images: %v", err)), nil
	}

	result := map[string]interface{}{
		"save_dir": s.cfg.AppConfig.SaveDir,
		"images":   images,
		"total":    len(images),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleRecentRuns handles the recent_runs tool
func (s *Server) handleRecentRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 10)
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	runs, err := s.cfg.Store.RecentRuns(limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read run history: %v", err)), nil
	}
	if runs == nil {
		runs = []models.RunRecord{}
	}

	result := map[string]interface{}{
		"runs":  runs,
		"total": len(runs),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleImageStatus handles the image_status tool
func (s *Server) handleImageStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	imgURL := request.GetString("url", "")
	if imgURL == "" {
		return mcp.NewToolResultError("url parameter is required"), nil
	}

	status, entry, err := s.cfg.Store.CheckImageStatus(imgURL)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read image history: %v", err)), nil
	}

	result := map[string]interface{}{
		"url":      imgURL,
		"status":   status.String(),
		"recorded": status.IsValid(),
	}
	if entry != nil {
		result["entry"] = entry
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// formatJSON formats data as indented JSON
func formatJSON(data map[string]interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
