package ternhttp

import (
	"bytes"
	"context"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tern-dl/tern/internal/progress"
	"github.com/tern-dl/tern/internal/utils"
)

func randomData(t *testing.T, size int) []byte {
	t.Helper()
	data := make([]byte, size)
	if _, err := rand.Read(data); err != nil {
		t.Fatalf("generating test data: %v", err)
	}
	return data
}

// rangeServer serves data with full Range support and records every Range
// header it sees.
type rangeServer struct {
	server *httptest.Server
	mu     sync.Mutex
	ranges []string
}

func newRangeServer(t *testing.T, data []byte) *rangeServer {
	t.Helper()
	rs := &rangeServer{}
	modTime := time.Now()
	rs.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rng := r.Header.Get("Range"); rng != "" {
			rs.mu.Lock()
			rs.ranges = append(rs.ranges, rng)
			rs.mu.Unlock()
		}
		http.ServeContent(w, r, "data.bin", modTime, bytes.NewReader(data))
	}))
	t.Cleanup(rs.server.Close)
	return rs
}

func (rs *rangeServer) seenRanges() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]string(nil), rs.ranges...)
}

func testClient() utils.HTTPDoer {
	return utils.NewTernHTTPClient(utils.HTTPClientConfig{})
}

func TestMultiDownloadRoundTrip(t *testing.T) {
	data := randomData(t, 1<<20)
	rs := newRangeServer(t, data)

	outputPath := filepath.Join(t.TempDir(), "out.bin")
	config := SessionConfig{
		URL:         rs.server.URL,
		OutputPath:  outputPath,
		Connections: 4,
	}
	tracker := progress.NewTracker(int64(len(data)))

	if err := PerformMultiDownload(context.Background(), config, testClient(), int64(len(data)), tracker); err != nil {
		t.Fatalf("PerformMultiDownload() error: %v", err)
	}

	got, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("output differs from source: got %d bytes, want %d", len(got), len(data))
	}
	if tracker.Downloaded() != int64(len(data)) {
		t.Errorf("tracker.Downloaded() = %d, want %d", tracker.Downloaded(), len(data))
	}

	// sinks are consumed during assembly
	sinks, _ := filepath.Glob(filepath.Join(utils.TempDirFor(outputPath), "*.part*"))
	if len(sinks) != 0 {
		t.Errorf("leftover sinks after assembly: %v", sinks)
	}
}

func TestMultiDownloadSegmentFailureVoidsSession(t *testing.T) {
	data := randomData(t, 256 * 1024)
	half := int64(len(data) / 2)
	modTime := time.Now()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// refuse the upper half of the file so some segments always fail
		if start, ok := rangeStart(r.Header.Get("Range")); ok && start >= half {
			http.Error(w, "nope", http.StatusInternalServerError)
			return
		}
		http.ServeContent(w, r, "data.bin", modTime, bytes.NewReader(data))
	}))
	defer server.Close()

	outputPath := filepath.Join(t.TempDir(), "out.bin")
	config := SessionConfig{
		URL:         server.URL,
		OutputPath:  outputPath,
		Connections: 4,
	}
	tracker := progress.NewTracker(int64(len(data)))

	err := PerformMultiDownload(context.Background(), config, testClient(), int64(len(data)), tracker)
	if err == nil {
		t.Fatal("PerformMultiDownload() succeeded, want failure")
	}
	if _, statErr := os.Stat(outputPath); !os.IsNotExist(statErr) {
		t.Error("destination file exists after failed session")
	}
	sinks, _ := filepath.Glob(filepath.Join(utils.TempDirFor(outputPath), "*.part*"))
	if len(sinks) != 0 {
		t.Errorf("sinks not cleaned up after failed session: %v", sinks)
	}
}

func rangeStart(header string) (int64, bool) {
	if !strings.HasPrefix(header, "bytes=") {
		return 0, false
	}
	parts := strings.SplitN(strings.TrimPrefix(header, "bytes="), "-", 2)
	if len(parts) != 2 || parts[0] == "" {
		return 0, false
	}
	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, false
	}
	return start, true
}

func TestMultiDownloadResumeSkipsCompleteSegment(t *testing.T) {
	data := randomData(t, 400 * 1024)
	rs := newRangeServer(t, data)

	outputPath := filepath.Join(t.TempDir(), "out.bin")
	config := SessionConfig{
		URL:         rs.server.URL,
		OutputPath:  outputPath,
		Connections: 4,
		Resume:      true,
	}

	// pre-stage the first segment's sink in full
	segments := planSegments(int64(len(data)), 4)
	tempDir := utils.TempDirFor(outputPath)
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		t.Fatal(err)
	}
	sink0 := sinkPathFor(outputPath, 0)
	if err := os.WriteFile(sink0, data[:segments[0].expectedSize()], 0644); err != nil {
		t.Fatal(err)
	}

	tracker := progress.NewTracker(int64(len(data)))
	if err := PerformMultiDownload(context.Background(), config, testClient(), int64(len(data)), tracker); err != nil {
		t.Fatalf("PerformMultiDownload() error: %v", err)
	}

	got, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("output differs from source after resumed session")
	}
	for _, rng := range rs.seenRanges() {
		if strings.HasPrefix(rng, "bytes=0-") {
			t.Errorf("segment 0 was refetched despite complete sink: %s", rng)
		}
	}
	if tracker.Downloaded() != int64(len(data)) {
		t.Errorf("tracker.Downloaded() = %d, want %d", tracker.Downloaded(), len(data))
	}
}

func TestSimpleDownloadRoundTrip(t *testing.T) {
	data := randomData(t, 128 * 1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// no range support at all
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Write(data)
	}))
	defer server.Close()

	outputPath := filepath.Join(t.TempDir(), "out.bin")
	config := SessionConfig{
		URL:        server.URL,
		OutputPath: outputPath,
	}
	tracker := progress.NewTracker(int64(len(data)))

	if err := PerformSimpleDownload(context.Background(), config, testClient(), int64(len(data)), tracker); err != nil {
		t.Fatalf("PerformSimpleDownload() error: %v", err)
	}
	got, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("output differs from source")
	}
	if tracker.Downloaded() != int64(len(data)) {
		t.Errorf("tracker.Downloaded() = %d, want %d", tracker.Downloaded(), len(data))
	}
}

func TestSimpleDownloadResume(t *testing.T) {
	data := randomData(t, 256 * 1024)
	rs := newRangeServer(t, data)

	outputPath := filepath.Join(t.TempDir(), "out.bin")
	config := SessionConfig{
		URL:        rs.server.URL,
		OutputPath: outputPath,
		Resume:     true,
	}

	// stage half of the transfer as an interrupted part file
	tempDir := utils.TempDirFor(outputPath)
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		t.Fatal(err)
	}
	partPath := filepath.Join(tempDir, filepath.Base(outputPath)+".part")
	half := len(data) / 2
	if err := os.WriteFile(partPath, data[:half], 0644); err != nil {
		t.Fatal(err)
	}

	tracker := progress.NewTracker(int64(len(data)))
	if err := PerformSimpleDownload(context.Background(), config, testClient(), int64(len(data)), tracker); err != nil {
		t.Fatalf("PerformSimpleDownload() error: %v", err)
	}

	got, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("resumed output differs from source")
	}

	wantRange := "bytes=" + strconv.Itoa(half) + "-"
	found := false
	for _, rng := range rs.seenRanges() {
		if rng == wantRange {
			found = true
		}
	}
	if !found {
		t.Errorf("resume did not request %q, saw %v", wantRange, rs.seenRanges())
	}
	if tracker.Downloaded() != int64(len(data)) {
		t.Errorf("tracker.Downloaded() = %d, want %d", tracker.Downloaded(), len(data))
	}
}

func TestSimpleDownloadResumeRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	outputPath := filepath.Join(t.TempDir(), "out.bin")
	config := SessionConfig{
		URL:        server.URL,
		OutputPath: outputPath,
		Resume:     true,
	}

	// stage an interrupted part so the session issues a resume request
	tempDir := utils.TempDirFor(outputPath)
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		t.Fatal(err)
	}
	partPath := filepath.Join(tempDir, filepath.Base(outputPath)+".part")
	if err := os.WriteFile(partPath, randomData(t, 4*1024), 0644); err != nil {
		t.Fatal(err)
	}

	// size unknown, as after a probe without Content-Length
	tracker := progress.NewTracker(0)
	err := PerformSimpleDownload(context.Background(), config, testClient(), 0, tracker)
	if err == nil {
		t.Fatal("PerformSimpleDownload() succeeded against an error status")
	}
	if !utils.IsKind(err, utils.KindProtocol) {
		t.Errorf("PerformSimpleDownload() error = %v, want protocol kind", err)
	}
	if _, statErr := os.Stat(outputPath); !os.IsNotExist(statErr) {
		t.Error("destination file exists after rejected resume")
	}
}

func TestRetryBackoffStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := retryBackoff(ctx, 2); err == nil {
		t.Fatal("retryBackoff() returned nil for cancelled context")
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("retryBackoff() took %v after cancellation", elapsed)
	}
}

func TestRateLimitBoundsThroughput(t *testing.T) {
	if testing.Short() {
		t.Skip("timing sensitive")
	}
	data := randomData(t, 32 * 1024)
	rs := newRangeServer(t, data)

	outputPath := filepath.Join(t.TempDir(), "out.bin")
	config := SessionConfig{
		URL:        rs.server.URL,
		OutputPath: outputPath,
		ChunkSize:  4 * 1024,
		RateLimit:  16 * 1024, // burst covers half the payload, the rest is metered
	}
	tracker := progress.NewTracker(int64(len(data)))

	start := time.Now()
	if err := PerformSimpleDownload(context.Background(), config, testClient(), int64(len(data)), tracker); err != nil {
		t.Fatalf("PerformSimpleDownload() error: %v", err)
	}
	elapsed := time.Since(start)

	// 16 KiB beyond the burst at 16 KiB/s should take about a second
	if elapsed < 700*time.Millisecond {
		t.Errorf("download finished in %v, rate limit not applied", elapsed)
	}
}

func TestMultiDownloadZeroSize(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "empty.bin")
	config := SessionConfig{OutputPath: outputPath, Connections: 4}
	tracker := progress.NewTracker(0)

	if err := PerformMultiDownload(context.Background(), config, testClient(), 0, tracker); err != nil {
		t.Fatalf("PerformMultiDownload() error: %v", err)
	}
	info, err := os.Stat(outputPath)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Errorf("zero-size download produced %d bytes", info.Size())
	}
}
