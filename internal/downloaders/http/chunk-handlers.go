package ternhttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/tern-dl/tern/internal/progress"
	"github.com/tern-dl/tern/internal/utils"
)

const maxSegmentRetries = 3

// retryBackoff waits out the linear backoff for the given retry, returning
// early when the context is cancelled.
func retryBackoff(ctx context.Context, retry int) error {
	timer := time.NewTimer(time.Duration(retry+1) * 500 * time.Millisecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// downloadSegment drives one segment to a terminal state. Retries happen
// here, inside the segment, with resume of whatever the sink already holds;
// the session above only ever sees Complete or Failed.
func downloadSegment(ctx context.Context, config *SessionConfig, segment *Segment, client utils.HTTPDoer, tracker *progress.Tracker, limiter *rate.Limiter) error {
	segment.State = SegmentInFlight
	expectedSize := segment.expectedSize()

	resumeOffset := int64(0)
	if fileInfo, err := os.Stat(segment.SinkPath); err == nil && config.Resume {
		resumeOffset = fileInfo.Size()
		if resumeOffset == expectedSize {
			segment.Downloaded = resumeOffset
			segment.State = SegmentComplete
			tracker.Add(resumeOffset)
			return nil
		}
		if resumeOffset > expectedSize {
			os.Remove(segment.SinkPath)
			resumeOffset = 0
		}
	}

	var lastErr error
	for retry := 0; retry < maxSegmentRetries; retry++ {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		if retry > 0 {
			if err := retryBackoff(ctx, retry); err != nil {
				lastErr = err
				break
			}
			// a partial write from the failed attempt is resumable as long
			// as the sink still matches what we counted
			if fileInfo, err := os.Stat(segment.SinkPath); err == nil {
				currentSize := fileInfo.Size()
				if currentSize != segment.Downloaded {
					os.Remove(segment.SinkPath)
					tracker.Add(-segment.Downloaded)
					segment.Downloaded = 0
					resumeOffset = 0
				} else {
					resumeOffset = currentSize
				}
			}
		}
		if err := fetchSegmentRange(ctx, config, segment, client, tracker, limiter, resumeOffset); err != nil {
			lastErr = err
			continue
		}
		segment.State = SegmentComplete
		return nil
	}

	segment.State = SegmentFailed
	segment.Err = lastErr
	return fmt.Errorf("segment %d failed: %w", segment.Index, lastErr)
}

func fetchSegmentRange(ctx context.Context, config *SessionConfig, segment *Segment, client utils.HTTPDoer, tracker *progress.Tracker, limiter *rate.Limiter, resumeOffset int64) error {
	flag := os.O_WRONLY | os.O_CREATE
	if resumeOffset > 0 {
		flag |= os.O_APPEND
	} else {
		flag |= os.O_TRUNC
	}
	sink, err := os.OpenFile(segment.SinkPath, flag, 0644)
	if err != nil {
		return utils.DiskError("segment-fetch", fmt.Errorf("error opening sink: %v", err))
	}
	defer sink.Close()

	startByte := segment.StartByte + resumeOffset
	req, err := http.NewRequestWithContext(ctx, "GET", config.URL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", startByte, segment.EndByte))
	req.Header.Set("Connection", "keep-alive")
	resp, err := client.Do(req)
	if err != nil {
		return utils.NetworkError("segment-fetch", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent {
		return utils.ProtocolError("segment-fetch", fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}
	if resp.Header.Get("Content-Range") == "" {
		return utils.ProtocolError("segment-fetch", errors.New("missing Content-Range header"))
	}

	if resumeOffset > 0 && segment.Downloaded != resumeOffset {
		tracker.Add(resumeOffset - segment.Downloaded)
		segment.Downloaded = resumeOffset
	}
	remainingBytes := segment.EndByte - startByte + 1
	buffer := make([]byte, config.chunkSize())
	newBytes := int64(0)
	for {
		bytesRead, readErr := resp.Body.Read(buffer)
		if bytesRead > 0 {
			if limiter != nil {
				if err := limiter.WaitN(ctx, bytesRead); err != nil {
					return err
				}
			}
			if _, writeErr := sink.Write(buffer[:bytesRead]); writeErr != nil {
				return utils.DiskError("segment-fetch", writeErr)
			}
			newBytes += int64(bytesRead)
			segment.Downloaded += int64(bytesRead)
			tracker.Add(int64(bytesRead))
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return utils.NetworkError("segment-fetch", readErr)
		}
	}
	if newBytes != remainingBytes {
		return utils.ProtocolError("segment-fetch", fmt.Errorf("size mismatch: expected %d remaining bytes, got %d", remainingBytes, newBytes))
	}
	if segment.Downloaded != segment.expectedSize() {
		return utils.ProtocolError("segment-fetch", fmt.Errorf("total size mismatch: expected %d bytes, got %d", segment.expectedSize(), segment.Downloaded))
	}
	return nil
}
