package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tern-dl/tern/internal/output"
	"github.com/tern-dl/tern/internal/scheduler"
	"github.com/tern-dl/tern/internal/utils"
)

func newS3Cmd() *cobra.Command {
	var outputPath string
	var profile string

	cmd := &cobra.Command{
		Use:   "s3 [s3://BUCKET/KEY]",
		Short: "Download objects from AWS S3",
		Long: `Download objects or whole prefixes from AWS S3.

Examples:
  tern s3 s3://mybucket/path/to/file.zip
  tern s3 s3://mybucket/path/to/folder/
  tern s3 s3://mybucket/file.zip --profile myprofile`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			job := newJob("s3", args[0], outputPath)
			job.Metadata["profile"] = profile
			if err := scheduler.Run([]utils.TernJob{job}, workers, quiet); err != nil {
				output.PrintError("Encountered failed download(s)")
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output path")
	cmd.Flags().StringVar(&profile, "profile", "default", "AWS profile to use")
	return cmd
}
