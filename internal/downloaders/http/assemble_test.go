package ternhttp

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/tern-dl/tern/internal/utils"
)

func stageSegments(t *testing.T, outputPath string, data []byte, connections int) []Segment {
	t.Helper()
	segments := planSegments(int64(len(data)), connections)
	tempDir := utils.TempDirFor(outputPath)
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		t.Fatal(err)
	}
	for i := range segments {
		segments[i].SinkPath = sinkPathFor(outputPath, i)
		segments[i].State = SegmentComplete
		if err := os.WriteFile(segments[i].SinkPath, data[segments[i].StartByte:segments[i].EndByte+1], 0644); err != nil {
			t.Fatal(err)
		}
	}
	return segments
}

func TestAssembleSegments(t *testing.T) {
	data := randomData(t, 64*1024)
	outputPath := filepath.Join(t.TempDir(), "out.bin")
	segments := stageSegments(t, outputPath, data, 4)

	if err := assembleSegments(outputPath, int64(len(data)), segments); err != nil {
		t.Fatalf("assembleSegments() error: %v", err)
	}
	got, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("assembled file differs from source")
	}
	for i := range segments {
		if _, err := os.Stat(segments[i].SinkPath); !os.IsNotExist(err) {
			t.Errorf("sink %d not removed after assembly", i)
		}
	}
}

func TestAssembleRejectsIncompleteSegment(t *testing.T) {
	data := randomData(t, 64*1024)
	outputPath := filepath.Join(t.TempDir(), "out.bin")
	segments := stageSegments(t, outputPath, data, 4)
	segments[2].State = SegmentFailed

	err := assembleSegments(outputPath, int64(len(data)), segments)
	if !utils.IsKind(err, utils.KindIncompleteTransfer) {
		t.Fatalf("assembleSegments() error = %v, want incomplete-transfer kind", err)
	}
	if _, statErr := os.Stat(outputPath); !os.IsNotExist(statErr) {
		t.Error("destination created despite incomplete segment")
	}
}

func TestAssembleRejectsShortSink(t *testing.T) {
	data := randomData(t, 64*1024)
	outputPath := filepath.Join(t.TempDir(), "out.bin")
	segments := stageSegments(t, outputPath, data, 4)

	// re-verification must catch a sink whose on-disk size disagrees with
	// the recorded state
	if err := os.WriteFile(segments[1].SinkPath, data[:10], 0644); err != nil {
		t.Fatal(err)
	}

	err := assembleSegments(outputPath, int64(len(data)), segments)
	if !utils.IsKind(err, utils.KindIncompleteTransfer) {
		t.Fatalf("assembleSegments() error = %v, want incomplete-transfer kind", err)
	}
}

func TestAssembleRejectsMissingSink(t *testing.T) {
	data := randomData(t, 32*1024)
	outputPath := filepath.Join(t.TempDir(), "out.bin")
	segments := stageSegments(t, outputPath, data, 2)
	os.Remove(segments[0].SinkPath)

	err := assembleSegments(outputPath, int64(len(data)), segments)
	if !utils.IsKind(err, utils.KindIncompleteTransfer) {
		t.Fatalf("assembleSegments() error = %v, want incomplete-transfer kind", err)
	}
}
