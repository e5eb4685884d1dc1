package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tern-dl/tern/internal/output"
	"github.com/tern-dl/tern/internal/scheduler"
	"github.com/tern-dl/tern/internal/utils"
)

type BatchEntry struct {
	OutputPath string `yaml:"op,omitempty"`
	Link       string `yaml:"link"`
}

// BatchFile groups entries under a job-type key, e.g.
//
//	http:
//	  - link: https://example.com/a.bin
//	  - link: https://example.com/b.bin
//	    op: downloads/b.bin
//	s3:
//	  - link: s3://bucket/key
type BatchFile map[string][]BatchEntry

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [YAML_FILE]",
		Short: "Process multiple downloads from a YAML file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			data, err := os.ReadFile(args[0])
			if err != nil {
				output.PrintError(fmt.Sprintf("Error reading batch file: %v", err))
				os.Exit(1)
			}
			var batchFile BatchFile
			if err := yaml.Unmarshal(data, &batchFile); err != nil {
				output.PrintError(fmt.Sprintf("Error parsing batch file: %v", err))
				os.Exit(1)
			}
			jobs := buildJobsFromBatch(batchFile)
			if len(jobs) == 0 {
				output.PrintError("No valid jobs found in the batch file")
				os.Exit(1)
			}
			if err := scheduler.Run(jobs, workers, quiet); err != nil {
				output.PrintError("Encountered failed download(s)")
				os.Exit(1)
			}
		},
	}
	return cmd
}

func buildJobsFromBatch(batchFile BatchFile) []utils.TernJob {
	var jobs []utils.TernJob
	for jobType, entries := range batchFile {
		normalizedType := normalizeJobType(jobType)
		if normalizedType == "" {
			output.PrintWarning(fmt.Sprintf("Unknown job type %q, skipping", jobType))
			continue
		}
		for _, entry := range entries {
			if entry.Link == "" {
				output.PrintWarning(fmt.Sprintf("Empty link in %s section, skipping", jobType))
				continue
			}
			job := newJob(normalizedType, entry.Link, entry.OutputPath)
			switch normalizedType {
			case "s3":
				job.Metadata["profile"] = "default"
			case "git-clone":
				job.ProgressType = "stream"
				job.Metadata["depth"] = 0
			}
			jobs = append(jobs, job)
		}
	}
	return jobs
}

func normalizeJobType(jobType string) string {
	switch strings.ToLower(jobType) {
	case "http", "https":
		return "http"
	case "s3":
		return "s3"
	case "git", "gitclone", "git-clone":
		return "git-clone"
	}
	return ""
}
