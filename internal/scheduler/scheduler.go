package scheduler

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tern-dl/tern/internal/downloaders/gitclone"
	ternhttp "github.com/tern-dl/tern/internal/downloaders/http"
	"github.com/tern-dl/tern/internal/downloaders/s3"
	"github.com/tern-dl/tern/internal/output"
	"github.com/tern-dl/tern/internal/utils"
)

var httpDownloader = ternhttp.NewHTTPDownloader()

// downloaderRegistry maps job types to their transport adapters.
var downloaderRegistry = map[string]utils.Downloader{
	"http":      httpDownloader,
	"s3":        s3.NewS3Downloader(),
	"git-clone": gitclone.NewGitCloneDownloader(),
}

// HTTPDownloader exposes the shared HTTP adapter so callers can adjust its
// policy rules and sizing knobs before jobs run.
func HTTPDownloader() *ternhttp.HTTPDownloader {
	return httpDownloader
}

// Run processes jobs with a fixed-size worker pool and renders live status
// through the output manager. It returns an error when any job failed.
func Run(jobs []utils.TernJob, numWorkers int, quiet bool) error {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if numWorkers > len(jobs) {
		numWorkers = len(jobs)
	}

	outputMgr := output.NewManager()
	if quiet {
		outputMgr.SetQuiet()
	}
	outputMgr.StartDisplay()

	jobCh := make(chan utils.TernJob, len(jobs))
	for _, job := range jobs {
		jobCh <- job
	}
	close(jobCh)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			processJobs(jobCh, outputMgr)
		}()
	}
	wg.Wait()

	outputMgr.StopDisplay()

	_, failures := outputMgr.Counts()
	if failures > 0 {
		return fmt.Errorf("%d of %d jobs failed", failures, len(jobs))
	}
	return nil
}

func processJobs(jobCh <-chan utils.TernJob, outputMgr *output.Manager) {
	for job := range jobCh {
		job.ID = uuid.NewString()
		name := job.OutputPath
		if name == "" {
			name = job.URL
		}
		funcID := outputMgr.Register(name)

		downloader, exists := downloaderRegistry[job.JobType]
		if !exists {
			outputMgr.Fail(funcID, fmt.Errorf("unknown job type: %s", job.JobType))
			continue
		}

		log.Debug().Str("op", "scheduler").Str("jobID", job.ID).Msgf("Validating %s job for %s", job.JobType, job.URL)
		outputMgr.SetMessage(funcID, fmt.Sprintf("Validating %s job", job.JobType))
		if err := downloader.ValidateJob(&job); err != nil {
			outputMgr.Fail(funcID, fmt.Errorf("validation failed: %w", err))
			continue
		}

		outputMgr.SetMessage(funcID, fmt.Sprintf("Preparing %s job", job.JobType))
		if err := downloader.BuildJob(&job); err != nil {
			if errors.Is(err, utils.ErrAlreadyComplete) {
				outputMgr.Complete(funcID, fmt.Sprintf("Already complete: %s", job.OutputPath))
				continue
			}
			outputMgr.Fail(funcID, fmt.Errorf("build failed: %w", err))
			continue
		}

		job.ProgressFunc = func(downloaded, total int64) {
			outputMgr.SetProgress(funcID, downloaded, total, utils.FormatBytes(uint64(downloaded)))
		}
		job.StreamFunc = func(line string) {
			outputMgr.AddStreamLine(funcID, line)
		}

		outputMgr.SetStatus(funcID, "active")
		outputMgr.SetMessage(funcID, fmt.Sprintf("Downloading %s", job.OutputPath))
		if err := downloader.Download(&job); err != nil {
			outputMgr.Fail(funcID, fmt.Errorf("download failed: %w", err))
			continue
		}

		outputMgr.Complete(funcID, fmt.Sprintf("Completed %s", job.OutputPath))
	}
}
