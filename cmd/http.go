package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tern-dl/tern/internal/output"
	"github.com/tern-dl/tern/internal/scheduler"
	"github.com/tern-dl/tern/internal/utils"
)

func newHTTPCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "http [URL]... [--output OUTPUT_PATH]",
		Short: "Download files via HTTP/HTTPS",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			var jobs []utils.TernJob
			for _, url := range args {
				jobs = append(jobs, newJob("http", url, outputPath))
			}
			if err := scheduler.Run(jobs, workers, quiet); err != nil {
				output.PrintError("Encountered failed download(s)")
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (inferred from the server if not provided)")
	return cmd
}
