package utils

import (
	"errors"
	"regexp"
	"time"
)

// Downloader is the contract every transport adapter implements. ValidateJob
// runs before any transfer I/O, BuildJob resolves metadata (size, range
// support, output path), and Download performs the transfer.
type Downloader interface {
	ValidateJob(job *TernJob) error
	BuildJob(job *TernJob) error
	Download(job *TernJob) error
}

type TernJob struct {
	ID           string
	JobType      string
	URL          string
	OutputPath   string
	Connections  int
	ProgressType string
	ProgressFunc func(downloaded, total int64)
	StreamFunc   func(line string)
	Metadata     map[string]any
	HTTPClientConfig HTTPClientConfig
	RateLimit    int64 // session-wide cap in bytes/sec, 0 = unlimited
	Resume       bool
	VerifyHash   bool
	KeepParts    bool // keep segment sinks on failure for a later resume
}

const DefaultBufferSize = 1024 * 1024 // 1MB stream buffer
const TempDirName = ".tern-temp"
const ToolUserAgent = "tern/1.0"

// Segmented download is skipped when a segment would end up smaller than
// this (tiny ranged requests cost more than they save).
const MinSegmentSize = 10 * 1024 * 1024

const MaxConnections = 16

// Hash verification is skipped for files larger than this.
const HashSizeLimit = 100 * 1024 * 1024

const DefaultFreeSpaceMargin = 100 * 1024 * 1024

const DefaultTimeout = 3 * time.Minute
const DefaultKATimeout = 90 * time.Second

var ErrRangeRequestsNotSupported = errors.New("range requests are not supported")
var ErrAlreadyComplete = errors.New("file already exists with expected size")

var SegmentIndexRegex = regexp.MustCompile(`\.part(\d+)$`)

// Local-only User-Agent list for the randomize option
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:135.0) Gecko/20100101 Firefox/135.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64; rv:135.0) Gecko/20100101 Firefox/135.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.3 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 Safari/537.36 Edg/132.0.0.0",
	"curl/7.88.1",
	"Wget/1.21.4",
}
