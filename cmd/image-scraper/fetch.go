package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"image-scraper/pkg/models"
	"image-scraper/pkg/orchestrate"
	"image-scraper/pkg/utils"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89"))
	savedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a"))
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0af68"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#f7768e"))

	categoryStyles = map[string]lipgloss.Style{
		models.CategorySuccess: savedStyle.Bold(true),
		models.CategoryWarning: skippedStyle.Bold(true),
		models.CategoryDanger:  failedStyle.Bold(true),
	}
)

const urlPrompt = "Enter website URL to scan for images: "

func newFetchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch [url]",
		Short: "Scrape one page and download its images",
		Long:  "Scans the page for <img> elements and downloads each image into the save directory.\nPrompts for the URL when none is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			var pageURL string
			if len(args) == 1 {
				pageURL = args[0]
			}

			a, err := loadApp(opts, c.ErrOrStderr(), c.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			return exitCode(doFetch(c.Context(), a, pageURL, c.InOrStdin(), c.OutOrStdout()))
		},
	}
}

// doFetch runs one page through the pipeline, printing discovered URLs and one line per image.
// The URL is read from stdin when pageURL is empty. Returns exit code (0 = success, 1 = error).
func doFetch(ctx context.Context, a *app, pageURL string, stdin io.Reader, stdout io.Writer) int {
	if pageURL == "" {
		var err error
		pageURL, err = promptURL(stdin, stdout)
		if err != nil {
			fmt.Fprintf(stdout, "%s\n", failedStyle.Render("Could not read URL: "+err.Error()))
			return 1
		}
	}

	result := a.orch.Run(ctx, pageURL, func(ev orchestrate.Event) {
		switch ev.Kind {
		case orchestrate.EventDiscovered:
			printDiscovered(stdout, ev.Discovered)
		case orchestrate.EventImageDone:
			printProgress(stdout, ev.Result, ev.Total, a.cfg.SaveDir)
		}
	})

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, categoryStyles[result.Status.Category].Render(result.Status.Message))
	if result.RunID != "" {
		fmt.Fprintln(stdout, dimStyle.Render("run "+result.RunID))
	}
	return 0
}

// promptURL asks for a page URL on stdout and reads one line from stdin
func promptURL(stdin io.Reader, stdout io.Writer) (string, error) {
	if stdin == nil {
		stdin = os.Stdin
	}
	fmt.Fprint(stdout, urlPrompt)
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func printDiscovered(w io.Writer, urls []string) {
	if len(urls) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n\n", headingStyle.Render(fmt.Sprintf("Found %d image(s):", len(urls))))
	for i, u := range urls {
		fmt.Fprintf(w, "  %d. %s\n", i+1, u)
	}
	fmt.Fprintf(w, "\n%s\n\n", headingStyle.Render("Starting download..."))
}

func printProgress(w io.Writer, res *models.DownloadResult, total int, saveDir string) {
	counter := dimStyle.Render(fmt.Sprintf("[%d/%d]", res.Index, total))
	switch res.Outcome {
	case models.OutcomeSaved:
		fmt.Fprintf(w, "%s %s %s/%s %s\n", counter, savedStyle.Render("saved"), saveDir, res.Filename,
			dimStyle.Render(fmt.Sprintf("(%s, %d bytes)", contentTypeLabel(res.ContentType), res.BytesWritten)))
	case models.OutcomeRejected:
		fmt.Fprintf(w, "%s %s %s: %s\n", counter, skippedStyle.Render("skipped"), res.URL, res.Reason)
	default:
		fmt.Fprintf(w, "%s %s %s: %s\n", counter, failedStyle.Render("failed"), res.URL, utils.UserMessage(res.Err))
	}
}

func contentTypeLabel(ct string) string {
	if ct == "" {
		return "no content type"
	}
	return ct
}
