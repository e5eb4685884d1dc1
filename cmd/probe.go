package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tern-dl/tern/internal/output"
	"github.com/tern-dl/tern/internal/probe"
	"github.com/tern-dl/tern/internal/utils"
)

func newProbeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe [URL]",
		Short: "Inspect a URL without downloading it",
		Long:  "Issue a metadata-only request and report size, range support, and the filename the server suggests.",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			client := utils.NewTernHTTPClient(globalHTTPConfig)
			result, err := probe.Probe(args[0], client)
			if err != nil {
				output.PrintError(fmt.Sprintf("Probe failed: %v", err))
				os.Exit(1)
			}

			output.PrintHeader(args[0])
			if result.Size > 0 {
				output.PrintDetail(fmt.Sprintf("  Size:          %s (%d bytes)", utils.FormatBytes(uint64(result.Size)), result.Size))
			} else {
				output.PrintDetail("  Size:          unknown")
			}
			rangeSupport := "no"
			if result.AcceptRanges {
				rangeSupport = "yes"
			}
			output.PrintDetail(fmt.Sprintf("  Range support: %s", rangeSupport))
			output.PrintDetail(fmt.Sprintf("  Filename:      %s", result.Filename))
			if result.ContentType != "" {
				output.PrintDetail(fmt.Sprintf("  Content-Type:  %s", result.ContentType))
			}
			if result.LastModified != "" {
				output.PrintDetail(fmt.Sprintf("  Last-Modified: %s", result.LastModified))
			}
			if result.Server != "" {
				output.PrintDetail(fmt.Sprintf("  Server:        %s", result.Server))
			}
		},
	}
	return cmd
}
