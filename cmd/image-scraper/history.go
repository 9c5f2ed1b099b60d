package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"image-scraper/pkg/models"
	"image-scraper/pkg/storage"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		limit  int
		imgURL string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent scrape runs, or look up one image URL",
		Example: `  # Last 5 runs
  image-scraper history -n 5

  # What happened to one image
  image-scraper history --url https://example.com/cat.png`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			a, err := loadApp(opts, c.ErrOrStderr(), c.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.cfg.HistoryEnabled() {
				fmt.Fprintln(c.OutOrStdout(), "History is disabled (enable_history: false).")
				return nil
			}
			if a.store == nil {
				fmt.Fprintf(c.ErrOrStderr(), "Error: history store at '%s' could not be opened\n", a.cfg.StateDir)
				return exitCode(1)
			}
			if imgURL != "" {
				return exitCode(doImageStatus(a.store, imgURL, c.OutOrStdout(), c.ErrOrStderr()))
			}
			if code := doHistory(a.store, limit, c.OutOrStdout(), c.ErrOrStderr()); code != 0 {
				return exitCode(code)
			}
			printStoreStats(a.store, c.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", storage.DefaultRunsLimit,
		fmt.Sprintf("Number of runs to show (max %d)", storage.MaxRunsLimit))
	cmd.Flags().StringVar(&imgURL, "url", "", "Show the last recorded outcome for this image URL")
	return cmd
}

// doHistory prints the most recent runs, newest first.
// Returns exit code (0 = success, 1 = error).
func doHistory(store storage.RunStore, limit int, stdout, stderr io.Writer) int {
	runs, err := store.RecentRuns(limit)
	if err != nil {
		fmt.Fprintf(stderr, "Error reading history: %v\n", err)
		return 1
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "No runs recorded yet.")
		return 0
	}

	for _, r := range runs {
		status := categoryStyles[r.Category].Render(strings.ToUpper(r.Category))
		fmt.Fprintf(stdout, "%s  %-7s  %s\n", r.StartedAt.Local().Format("2006-01-02 15:04:05"), status, r.PageURL)
		fmt.Fprintf(stdout, "    %s  discovered=%d saved=%d rejected=%d failed=%d\n",
			dimStyle.Render(r.ID), r.Discovered, len(r.Saved), r.Rejected, r.Failed)
		if r.Message != "" {
			fmt.Fprintf(stdout, "    %s\n", r.Message)
		}
	}
	return 0
}

// doImageStatus prints the last recorded outcome for one image URL.
// Returns exit code (0 = found or not recorded, 1 = store error).
func doImageStatus(store storage.ImageStore, imgURL string, stdout, stderr io.Writer) int {
	status, entry, err := store.CheckImageStatus(imgURL)
	switch {
	case err != nil || status == models.ImageStatusDBError:
		fmt.Fprintf(stderr, "Error reading image history: %v\n", err)
		return 1
	case status == models.ImageStatusNotFound:
		fmt.Fprintf(stdout, "No history for %s\n", imgURL)
		return 0
	case !status.IsValid() || entry == nil:
		fmt.Fprintf(stdout, "%s: stored entry is unreadable (status %s)\n", imgURL, status)
		return 0
	}

	fmt.Fprintf(stdout, "%s\n", imgURL)
	fmt.Fprintf(stdout, "    status:       %s\n", status)
	if entry.LocalPath != "" {
		fmt.Fprintf(stdout, "    file:         %s\n", entry.LocalPath)
	}
	if entry.ContentType != "" {
		fmt.Fprintf(stdout, "    content type: %s\n", entry.ContentType)
	}
	if entry.ErrorType != "" {
		fmt.Fprintf(stdout, "    error:        %s\n", entry.ErrorType)
	}
	fmt.Fprintf(stdout, "    run:          %s\n", entry.RunID)
	fmt.Fprintf(stdout, "    last attempt: %s\n", entry.LastAttempt.Local().Format("2006-01-02 15:04:05"))
	return 0
}

func printStoreStats(admin storage.StoreAdmin, stdout io.Writer) {
	count, err := admin.GetKeyCount()
	if err != nil {
		return
	}
	fmt.Fprintln(stdout, dimStyle.Render(fmt.Sprintf("%d entries in history store", count)))
}
