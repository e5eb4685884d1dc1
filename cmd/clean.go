package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tern-dl/tern/internal/output"
	"github.com/tern-dl/tern/internal/utils"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [OUTPUT_PATH]",
		Short: "Clean up leftover segment files",
		Long:  "Remove segment files for the given output path, or the whole temp directory in the current directory when no path is given.",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			var err error
			if len(args) == 0 {
				err = utils.CleanLocal()
			} else {
				err = utils.CleanFunction(args[0])
			}
			if err != nil {
				output.PrintError(fmt.Sprintf("Error cleaning up temporary files: %v", err))
				os.Exit(1)
			}
			output.PrintSuccess("Temporary files cleaned up")
		},
	}
}
