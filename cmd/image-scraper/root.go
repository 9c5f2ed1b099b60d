package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// rootOptions are the persistent flags shared by every subcommand
type rootOptions struct {
	configPath     string
	configExplicit bool // --config was given, so the file must exist
	logLevel       string
}

// exitCode turns a non-zero status from a doX function into an error for cobra
func exitCode(code int) error {
	if code == 0 {
		return nil
	}
	return fmt.Errorf("exit status %d", code)
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "image-scraper",
		Short: "Download every image referenced by a web page",
		Long: "Fetches a web page, collects the URLs of its <img> elements and saves each image\n" +
			"into a local directory, naming files from the declared content type.",
		Example: `  # Scrape one page from the terminal
  image-scraper fetch https://example.com/gallery

  # Start the web form on :5000
  image-scraper serve

  # Expose the scraper to MCP clients over stdio
  image-scraper mcp-server`,
		SilenceUsage: true,
		PersistentPreRun: func(c *cobra.Command, args []string) {
			opts.configExplicit = c.Flags().Changed("config")
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "Path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "loglevel", "info", "Log level (trace, debug, info, warn, error)")

	cmd.AddCommand(
		newFetchCmd(opts),
		newServeCmd(opts),
		newValidateCmd(opts),
		newHistoryCmd(opts),
		newMcpServerCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Args:  cobra.NoArgs,
		Run: func(c *cobra.Command, args []string) {
			fmt.Fprintf(c.OutOrStdout(), "image-scraper %s\n", version)
		},
	}
}
