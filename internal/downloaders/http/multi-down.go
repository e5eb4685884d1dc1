package ternhttp

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tern-dl/tern/internal/progress"
	"github.com/tern-dl/tern/internal/utils"
)

// PerformMultiDownload fetches the target in parallel segments and
// reassembles them into the destination. A failed segment never cancels its
// siblings; they run to their own terminal state and the session fails as a
// whole afterwards.
func PerformMultiDownload(ctx context.Context, config SessionConfig, client utils.HTTPDoer, fileSize int64, tracker *progress.Tracker) error {
	if fileSize == 0 {
		// trivially complete: a zero-length write and nothing else
		return os.WriteFile(config.OutputPath, nil, 0644)
	}
	tempDir := utils.TempDirFor(config.OutputPath)
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return utils.DiskError("multi-download", fmt.Errorf("error creating temp directory: %v", err))
	}

	segments := planSegments(fileSize, config.Connections)
	for i := range segments {
		segments[i].SinkPath = sinkPathFor(config.OutputPath, i)
	}
	limiter := config.newLimiter()

	// deliberately not errgroup.WithContext: one segment failing must not
	// cancel the others
	var eg errgroup.Group
	for i := range segments {
		segment := &segments[i]
		eg.Go(func() error {
			return downloadSegment(ctx, &config, segment, client, tracker, limiter)
		})
	}
	err := eg.Wait()

	failed := 0
	for i := range segments {
		if segments[i].State != SegmentComplete {
			failed++
		}
	}
	if failed > 0 {
		log.Error().Str("op", "http/multi-download").Int("failed", failed).Int("total", len(segments)).Msg("Session failed, discarding partial result")
		if !config.KeepParts {
			cleanupSinks(segments)
		}
		if err == nil {
			err = fmt.Errorf("%d of %d segments failed", failed, len(segments))
		}
		return fmt.Errorf("segmented download failed: %w", err)
	}

	return assembleSegments(config.OutputPath, fileSize, segments)
}

// cleanupSinks is the single teardown path for a voided session; workers
// never delete sinks on their own error paths.
func cleanupSinks(segments []Segment) {
	for i := range segments {
		if segments[i].SinkPath != "" {
			os.Remove(segments[i].SinkPath)
		}
	}
}
