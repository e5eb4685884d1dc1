package ternhttp

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tern-dl/tern/internal/policy"
	"github.com/tern-dl/tern/internal/probe"
	"github.com/tern-dl/tern/internal/progress"
	"github.com/tern-dl/tern/internal/utils"
	"github.com/tern-dl/tern/internal/verify"
)

// HTTPDownloader drives single and multi-connection HTTP transfers. Rules
// are checked once in ValidateJob; FreeSpaceMargin is the headroom kept on
// the destination filesystem beyond the reported file size.
type HTTPDownloader struct {
	Rules           policy.Rules
	FreeSpaceMargin int64
	MinSegmentSize  int64
	ChunkSize       int64
	HashSizeLimit   int64
}

func NewHTTPDownloader() *HTTPDownloader {
	return &HTTPDownloader{
		Rules:           policy.DefaultRules(),
		FreeSpaceMargin: utils.DefaultFreeSpaceMargin,
		MinSegmentSize:  utils.MinSegmentSize,
		HashSizeLimit:   utils.HashSizeLimit,
	}
}

func (d *HTTPDownloader) ValidateJob(job *utils.TernJob) error {
	if err := d.Rules.Check(job.URL); err != nil {
		return err
	}

	client := utils.NewTernHTTPClient(job.HTTPClientConfig)

	req, err := http.NewRequest("HEAD", job.URL, nil)
	if err != nil {
		return utils.ValidationError("validate", fmt.Errorf("error creating request: %v", err))
	}
	resp, err := client.Do(req)
	if err != nil {
		return utils.NetworkError("validate", fmt.Errorf("error checking URL: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusMovedPermanently || resp.StatusCode == http.StatusFound {
		if location := resp.Header.Get("Location"); location != "" {
			if err := d.Rules.Check(location); err != nil {
				return err
			}
			job.URL = location
		}
	} else if resp.StatusCode == http.StatusNotFound {
		return utils.ProtocolError("validate", fmt.Errorf("URL not found (404)"))
	} else if resp.StatusCode >= 400 {
		return utils.ProtocolError("validate", fmt.Errorf("server returned error: %d", resp.StatusCode))
	}

	return nil
}

func (d *HTTPDownloader) BuildJob(job *utils.TernJob) error {
	job.HTTPClientConfig.HighThreadMode = job.Connections > 5

	client := utils.NewTernHTTPClient(job.HTTPClientConfig)

	info, err := probe.Probe(job.URL, client)
	if err != nil {
		return fmt.Errorf("error probing URL: %w", err)
	}

	if job.OutputPath == "" {
		job.OutputPath = info.Filename
	} else if stat, err := os.Stat(job.OutputPath); err == nil && stat.IsDir() {
		job.OutputPath = filepath.Join(job.OutputPath, info.Filename)
	}

	if existingFile, err := os.Stat(job.OutputPath); err == nil && !existingFile.IsDir() {
		if info.Size > 0 && existingFile.Size() == info.Size {
			return utils.ErrAlreadyComplete
		}
		if !job.Resume {
			job.OutputPath = utils.RenewOutputPath(job.OutputPath)
		}
	}

	if info.Size > 0 {
		destDir := filepath.Dir(job.OutputPath)
		if destDir == "" {
			destDir = "."
		}
		if free, err := utils.FreeSpace(destDir); err == nil {
			if free < info.Size+d.FreeSpaceMargin {
				return utils.DiskError("build", fmt.Errorf("insufficient disk space: need %s plus margin, have %s",
					utils.FormatBytes(uint64(info.Size)), utils.FormatBytes(uint64(free))))
			}
		}
	}

	job.Metadata["fileSize"] = info.Size
	job.Metadata["rangeSupported"] = info.AcceptRanges
	if info.ContentType != "" {
		job.Metadata["contentType"] = info.ContentType
	}

	return nil
}

func (d *HTTPDownloader) Download(job *utils.TernJob) error {
	client := utils.NewTernHTTPClient(job.HTTPClientConfig)

	fileSize, _ := job.Metadata["fileSize"].(int64)
	rangeSupported, _ := job.Metadata["rangeSupported"].(bool)

	tracker := progress.NewTracker(fileSize)
	startTime := time.Now()
	tracker.Start(100*time.Millisecond, func(ev progress.Event) {
		if job.ProgressFunc != nil {
			job.ProgressFunc(ev.Downloaded, ev.Total)
		}
		job.Metadata["downloadSpeed"] = ev.Speed
		job.Metadata["elapsedTime"] = time.Since(startTime).Seconds()
	})

	config := SessionConfig{
		URL:         job.URL,
		OutputPath:  job.OutputPath,
		Connections: job.Connections,
		ChunkSize:   d.ChunkSize,
		RateLimit:   job.RateLimit,
		Resume:      job.Resume,
		KeepParts:   job.KeepParts,
	}

	ctx := context.Background()

	var err error
	if !rangeSupported || job.Connections == 1 || fileSize == 0 {
		err = PerformSimpleDownload(ctx, config, client, fileSize, tracker)
	} else if fileSize < d.minSegmentSize() {
		// Files under the segment minimum go single stream.
		err = PerformSimpleDownload(ctx, config, client, fileSize, tracker)
	} else {
		// Shrink the pool so no segment falls below the minimum size.
		if conns := fileSize / d.minSegmentSize(); conns < int64(config.Connections) {
			config.Connections = int(conns)
		}
		err = PerformMultiDownload(ctx, config, client, fileSize, tracker)
	}

	tracker.Stop()

	stats := tracker.Stats()
	job.Metadata["totalDownloaded"] = stats.Downloaded
	job.Metadata["totalTime"] = stats.Elapsed.Seconds()

	if err != nil {
		return err
	}

	if job.VerifyHash {
		digest, digestErr := verify.FileDigestUnder(job.OutputPath, d.hashSizeLimit())
		if digestErr != nil {
			return digestErr
		}
		if digest != "" {
			job.Metadata["sha256"] = digest
		}
	}

	return nil
}

func (d *HTTPDownloader) minSegmentSize() int64 {
	if d.MinSegmentSize <= 0 {
		return utils.MinSegmentSize
	}
	return d.MinSegmentSize
}

func (d *HTTPDownloader) hashSizeLimit() int64 {
	if d.HashSizeLimit <= 0 {
		return utils.HashSizeLimit
	}
	return d.HashSizeLimit
}
