package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tern-dl/tern/internal/output"
	"github.com/tern-dl/tern/internal/scheduler"
	"github.com/tern-dl/tern/internal/utils"
)

func newGitCloneCmd() *cobra.Command {
	var outputPath string
	var depth int

	cmd := &cobra.Command{
		Use:   "gitclone [REPO_URL]",
		Short: "Clone a Git repository",
		Long: `Clone a Git repository from GitHub, GitLab, or Bitbucket.

Supported formats:
  - github.com/owner/repo
  - gitlab.com/owner/repo
  - bitbucket.org/owner/repo

Authentication:
  - Set GIT_TOKEN environment variable for token-based auth
  - Set GIT_SSH environment variable for an SSH key path`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			job := newJob("git-clone", args[0], outputPath)
			job.ProgressType = "stream"
			if depth > 0 {
				job.Metadata["depth"] = depth
			}
			if token := os.Getenv("GIT_TOKEN"); token != "" {
				job.Metadata["token"] = token
			}
			if sshKey := os.Getenv("GIT_SSH"); sshKey != "" {
				job.Metadata["sshKey"] = sshKey
			}
			if err := scheduler.Run([]utils.TernJob{job}, workers, quiet); err != nil {
				output.PrintError("Encountered failed clone(s)")
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output directory path")
	cmd.Flags().IntVarP(&depth, "depth", "d", 0, "Clone depth (0 for full history)")
	return cmd
}
