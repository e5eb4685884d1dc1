package s3

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/tern-dl/tern/internal/progress"
	"github.com/tern-dl/tern/internal/utils"
)

// S3Downloader fetches single objects or whole prefixes. The AWS profile
// comes from job metadata, falling back to AWS_PROFILE and then "default".
type S3Downloader struct{}

func NewS3Downloader() *S3Downloader {
	return &S3Downloader{}
}

func (d *S3Downloader) ValidateJob(job *utils.TernJob) error {
	bucket, key, err := parseS3URL(job.URL)
	if err != nil {
		return err
	}
	job.Metadata["bucket"] = bucket
	job.Metadata["key"] = key
	log.Debug().Str("op", "s3/validate").Msgf("Job validated for s3://%s/%s", bucket, key)
	return nil
}

func (d *S3Downloader) BuildJob(job *utils.TernJob) error {
	bucket := job.Metadata["bucket"].(string)
	key := job.Metadata["key"].(string)
	profile, _ := job.Metadata["profile"].(string)

	client, err := getS3Client(profile)
	if err != nil {
		return fmt.Errorf("error creating S3 client: %v", err)
	}

	fileType, size, err := getObjectInfo(bucket, key, client)
	if err != nil {
		return err
	}
	job.Metadata["fileType"] = fileType
	job.Metadata["fileSize"] = size

	if job.OutputPath == "" {
		if fileType == "folder" {
			parts := strings.Split(strings.TrimSuffix(key, "/"), "/")
			job.OutputPath = parts[len(parts)-1]
			if job.OutputPath == "" {
				job.OutputPath = bucket
			}
		} else {
			job.OutputPath = filepath.Base(key)
		}
	}
	if _, err := os.Stat(job.OutputPath); err == nil {
		job.OutputPath = utils.RenewOutputPath(job.OutputPath)
	}
	log.Debug().Str("op", "s3/build").Msgf("Job built for s3://%s/%s (%s)", bucket, key, fileType)
	return nil
}

func (d *S3Downloader) Download(job *utils.TernJob) error {
	bucket := job.Metadata["bucket"].(string)
	key := job.Metadata["key"].(string)
	fileType := job.Metadata["fileType"].(string)
	profile, _ := job.Metadata["profile"].(string)

	client, err := getS3Client(profile)
	if err != nil {
		return fmt.Errorf("error creating S3 client: %v", err)
	}

	ctx := context.Background()
	if fileType == "folder" {
		log.Info().Str("op", "s3/download").Msgf("Starting folder download for s3://%s/%s", bucket, key)
		return d.downloadFolder(ctx, job, bucket, key, client)
	}
	log.Info().Str("op", "s3/download").Msgf("Starting object download for s3://%s/%s", bucket, key)
	return d.downloadObject(ctx, job, bucket, key, client)
}

func (d *S3Downloader) downloadObject(ctx context.Context, job *utils.TernJob, bucket, key string, client *awss3.Client) error {
	size, _ := job.Metadata["fileSize"].(int64)
	tracker := progress.NewTracker(size)
	startTime := time.Now()
	tracker.Start(100*time.Millisecond, func(ev progress.Event) {
		if job.ProgressFunc != nil {
			job.ProgressFunc(ev.Downloaded, ev.Total)
		}
	})
	err := performObjectDownload(ctx, bucket, key, job.OutputPath, client, tracker)
	tracker.Stop()
	job.Metadata["totalDownloaded"] = tracker.Downloaded()
	job.Metadata["elapsedTime"] = time.Since(startTime).Seconds()
	return err
}

func (d *S3Downloader) downloadFolder(ctx context.Context, job *utils.TernJob, bucket, prefix string, client *awss3.Client) error {
	objects, err := listObjects(bucket, prefix, client)
	if err != nil {
		return err
	}
	if len(objects) == 0 {
		return utils.ProtocolError("s3/download", fmt.Errorf("no objects found in s3://%s/%s", bucket, prefix))
	}
	var totalSize int64
	for _, obj := range objects {
		totalSize += obj.Size
	}
	log.Debug().Str("op", "s3/download").Msgf("Found %d objects totaling %s", len(objects), utils.FormatBytes(uint64(totalSize)))

	tracker := progress.NewTracker(totalSize)
	tracker.Start(100*time.Millisecond, func(ev progress.Event) {
		if job.ProgressFunc != nil {
			job.ProgressFunc(ev.Downloaded, ev.Total)
		}
	})
	defer tracker.Stop()

	jobCh := make(chan s3Object, len(objects))
	for _, obj := range objects {
		jobCh <- obj
	}
	close(jobCh)

	numWorkers := job.Connections
	if numWorkers > len(objects) {
		numWorkers = len(objects)
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	var mu sync.Mutex
	var downloadErr error
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for obj := range jobCh {
				relPath := strings.TrimPrefix(strings.TrimPrefix(obj.Key, prefix), "/")
				outputPath := filepath.Join(job.OutputPath, relPath)
				if err := performObjectDownload(ctx, bucket, obj.Key, outputPath, client, tracker); err != nil {
					mu.Lock()
					if downloadErr == nil {
						downloadErr = err
					}
					mu.Unlock()
					return
				}
			}
		}()
	}
	wg.Wait()

	job.Metadata["totalDownloaded"] = tracker.Downloaded()
	job.Metadata["objectCount"] = len(objects)
	return downloadErr
}

