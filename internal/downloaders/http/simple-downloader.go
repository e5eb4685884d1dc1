package ternhttp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/tern-dl/tern/internal/progress"
	"github.com/tern-dl/tern/internal/utils"
)

const maxSimpleRetries = 3

// PerformSimpleDownload is the single-stream path for targets without range
// support (or when only one connection is wanted). Same contract as the
// segmented path with one implicit segment: progress through the tracker,
// the session rate limiter, resume of a partial transfer.
func PerformSimpleDownload(ctx context.Context, config SessionConfig, client utils.HTTPDoer, fileSize int64, tracker *progress.Tracker) error {
	tempDir := utils.TempDirFor(config.OutputPath)
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return utils.DiskError("simple-download", fmt.Errorf("error creating temp directory: %v", err))
	}
	tempOutputPath := fmt.Sprintf("%s.part", filepath.Join(tempDir, filepath.Base(config.OutputPath)))
	limiter := config.newLimiter()

	// already fully present from an earlier run, just finalize
	if fileSize > 0 {
		if fileInfo, err := os.Stat(tempOutputPath); err == nil && fileInfo.Size() == fileSize && config.Resume {
			tracker.Add(fileSize)
			return os.Rename(tempOutputPath, config.OutputPath)
		}
	}

	var lastErr error
	var counted int64 // bytes this session has already reported to the tracker
	for retry := 0; retry < maxSimpleRetries; retry++ {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		if retry > 0 {
			log.Warn().Str("op", "http/simple-download").Msgf("Retrying download for %s (attempt %d/%d)", config.OutputPath, retry+1, maxSimpleRetries)
			if err := retryBackoff(ctx, retry); err != nil {
				lastErr = err
				break
			}
		}
		err := downloadAttempt(ctx, config, client, tempOutputPath, tracker, limiter, &counted)
		if err != nil {
			lastErr = err
			log.Error().Str("op", "http/simple-download").Err(err).Msgf("Download attempt %d failed", retry+1)
			continue
		}
		if fileSize > 0 {
			if fileInfo, err := os.Stat(tempOutputPath); err == nil && fileInfo.Size() != fileSize {
				lastErr = utils.ProtocolError("simple-download", fmt.Errorf("size mismatch: expected %d, got %d", fileSize, fileInfo.Size()))
				continue
			}
		}
		if err := os.Rename(tempOutputPath, config.OutputPath); err != nil {
			return utils.DiskError("simple-download", fmt.Errorf("error finalizing output file: %v", err))
		}
		log.Info().Str("op", "http/simple-download").Msgf("Download complete for %s", config.OutputPath)
		return nil
	}
	if !config.KeepParts {
		os.Remove(tempOutputPath)
	}
	return fmt.Errorf("download failed after %d attempts: %w", maxSimpleRetries, lastErr)
}

func downloadAttempt(ctx context.Context, config SessionConfig, client utils.HTTPDoer, tempOutputPath string, tracker *progress.Tracker, limiter *rate.Limiter, counted *int64) error {
	var resumeOffset int64 = 0
	fileMode := os.O_CREATE | os.O_WRONLY
	if fileInfo, err := os.Stat(tempOutputPath); err == nil && config.Resume {
		resumeOffset = fileInfo.Size()
		fileMode |= os.O_APPEND
	} else {
		fileMode |= os.O_TRUNC
	}

	outFile, err := os.OpenFile(tempOutputPath, fileMode, 0644)
	if err != nil {
		return utils.DiskError("simple-download", fmt.Errorf("error creating output file: %v", err))
	}
	// closure so the restart branch's reopened handle is the one closed
	defer func() { outFile.Close() }()

	req, err := http.NewRequestWithContext(ctx, "GET", config.URL, nil)
	if err != nil {
		return fmt.Errorf("error creating GET request: %v", err)
	}
	if resumeOffset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", resumeOffset))
		log.Debug().Str("op", "http/simple-download").Msgf("Resuming download from offset %d", resumeOffset)
	}
	req.Header.Set("Connection", "keep-alive")
	resp, err := client.Do(req)
	if err != nil {
		return utils.NetworkError("simple-download", err)
	}
	defer resp.Body.Close()

	if resumeOffset > 0 {
		switch resp.StatusCode {
		case http.StatusPartialContent:
			if resumeOffset > *counted {
				tracker.Add(resumeOffset - *counted)
				*counted = resumeOffset
			}
		case http.StatusOK:
			// server ignored the Range header, restart from scratch
			log.Warn().Str("op", "http/simple-download").Msgf("Server does not support resume (status %d), restarting", resp.StatusCode)
			outFile.Close()
			outFile, err = os.OpenFile(tempOutputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
			if err != nil {
				return utils.DiskError("simple-download", fmt.Errorf("error recreating output file: %v", err))
			}
			tracker.Add(-*counted)
			*counted = 0
			resumeOffset = 0
		default:
			return utils.ProtocolError("simple-download", fmt.Errorf("unexpected status code: %d", resp.StatusCode))
		}
	} else if resp.StatusCode != http.StatusOK {
		return utils.ProtocolError("simple-download", fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	buffer := make([]byte, config.chunkSize())
	for {
		bytesRead, readErr := resp.Body.Read(buffer)
		if bytesRead > 0 {
			if limiter != nil {
				if err := limiter.WaitN(ctx, bytesRead); err != nil {
					return err
				}
			}
			if _, writeErr := outFile.Write(buffer[:bytesRead]); writeErr != nil {
				return utils.DiskError("simple-download", fmt.Errorf("error writing to output file: %v", writeErr))
			}
			tracker.Add(int64(bytesRead))
			*counted += int64(bytesRead)
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return utils.NetworkError("simple-download", fmt.Errorf("error reading response body: %v", readErr))
		}
	}
	outFile.Sync()
	return nil
}
