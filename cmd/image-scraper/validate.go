package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"image-scraper/pkg/config"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return exitCode(doValidate(opts.configPath, c.OutOrStdout(), c.ErrOrStderr()))
		},
	}
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	appCfg, warnings, err := config.Load(configPath, true)
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "save_dir:   %s\n", appCfg.SaveDir)
	fmt.Fprintf(stdout, "state_dir:  %s (history %s)\n", appCfg.StateDir, enabledLabel(appCfg.HistoryEnabled()))
	fmt.Fprintf(stdout, "listen:     %s\n", appCfg.ListenAddr)
	fmt.Fprintf(stdout, "timeout:    %v\n", appCfg.HTTPClientSettings.Timeout)
	fmt.Fprintln(stdout, "OK: Configuration valid")
	return 0
}

func enabledLabel(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}
