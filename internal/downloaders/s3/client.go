package s3

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/tern-dl/tern/internal/progress"
	"github.com/tern-dl/tern/internal/utils"
)

type s3Object struct {
	Key  string
	Size int64
}

func getS3Client(profile string) (*awss3.Client, error) {
	if profile == "" {
		profile = os.Getenv("AWS_PROFILE")
	}
	if profile == "" {
		profile = "default"
	}
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithSharedConfigProfile(profile),
		config.WithRetryMode("adaptive"),
	)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %v", err)
	}
	return awss3.NewFromConfig(cfg, func(o *awss3.Options) {
		o.DisableLogOutputChecksumValidationSkipped = true
	}), nil
}

func parseS3URL(rawURL string) (string, string, error) {
	if !strings.HasPrefix(rawURL, "s3://") {
		return "", "", utils.ValidationError("s3/parse", fmt.Errorf("not an s3:// URL: %s", rawURL))
	}
	parts := strings.SplitN(strings.TrimPrefix(rawURL, "s3://"), "/", 2)
	if parts[0] == "" {
		return "", "", utils.ValidationError("s3/parse", fmt.Errorf("missing bucket in %s", rawURL))
	}
	key := ""
	if len(parts) > 1 {
		key = parts[1]
	}
	return parts[0], key, nil
}

// getObjectInfo classifies the key as a file or a folder prefix. Folder
// size is reported as -1; the real total is summed during listing.
func getObjectInfo(bucket, key string, client *awss3.Client) (string, int64, error) {
	headObj, err := client.HeadObject(context.Background(), &awss3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		size := int64(0)
		if headObj.ContentLength != nil {
			size = *headObj.ContentLength
		}
		return "file", size, nil
	}

	result, err := client.ListObjectsV2(context.Background(), &awss3.ListObjectsV2Input{
		Bucket:    aws.String(bucket),
		Prefix:    aws.String(key),
		MaxKeys:   aws.Int32(1),
		Delimiter: aws.String("/"),
	})
	if err != nil {
		return "", 0, utils.NetworkError("s3/info", err)
	}
	if len(result.Contents) > 0 || len(result.CommonPrefixes) > 0 {
		return "folder", -1, nil
	}
	return "", 0, utils.ProtocolError("s3/info", fmt.Errorf("s3://%s/%s not found", bucket, key))
}

func listObjects(bucket, prefix string, client *awss3.Client) ([]s3Object, error) {
	var objects []s3Object
	paginator := awss3.NewListObjectsV2Paginator(client, &awss3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(context.Background())
		if err != nil {
			return nil, utils.NetworkError("s3/list", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil || obj.Size == nil {
				continue
			}
			// 0-byte keys ending with / are folder placeholders
			if *obj.Size == 0 && strings.HasSuffix(*obj.Key, "/") {
				continue
			}
			objects = append(objects, s3Object{Key: *obj.Key, Size: *obj.Size})
		}
	}
	return objects, nil
}

// trackedWriter feeds the shared tracker from the SDK's parallel WriteAt
// calls.
type trackedWriter struct {
	writer  io.WriterAt
	tracker *progress.Tracker
}

func (w *trackedWriter) WriteAt(p []byte, off int64) (int, error) {
	n, err := w.writer.WriteAt(p, off)
	if n > 0 {
		w.tracker.Add(int64(n))
	}
	return n, err
}

func performObjectDownload(ctx context.Context, bucket, key, outputPath string, client *awss3.Client, tracker *progress.Tracker) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return utils.DiskError("s3/download", fmt.Errorf("error creating output directory: %v", err))
	}
	file, err := os.Create(outputPath)
	if err != nil {
		return utils.DiskError("s3/download", fmt.Errorf("error creating output file: %v", err))
	}
	defer file.Close()

	downloader := manager.NewDownloader(client, func(d *manager.Downloader) {
		d.PartSize = 2 * utils.DefaultBufferSize
		d.Concurrency = 4
		d.BufferProvider = manager.NewPooledBufferedWriterReadFromProvider(utils.DefaultBufferSize)
	})
	_, err = downloader.Download(ctx, &trackedWriter{writer: file, tracker: tracker}, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return utils.NetworkError("s3/download", fmt.Errorf("error downloading s3://%s/%s: %v", bucket, key, err))
	}
	return nil
}
