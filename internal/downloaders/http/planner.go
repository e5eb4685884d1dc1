package ternhttp

import (
	"fmt"
	"path/filepath"

	"github.com/tern-dl/tern/internal/utils"
)

type SegmentState int

const (
	SegmentPending SegmentState = iota
	SegmentInFlight
	SegmentComplete
	SegmentFailed
)

// Segment is one contiguous byte range [StartByte, EndByte] of the target,
// owned by exactly one worker while in flight. Index is the reassembly
// order; SinkPath is the temp file the bytes land in.
type Segment struct {
	Index      int
	StartByte  int64
	EndByte    int64
	State      SegmentState
	Downloaded int64
	SinkPath   string
	Err        error
}

func (s *Segment) expectedSize() int64 {
	return s.EndByte - s.StartByte + 1
}

// planSegments partitions [0, totalSize-1] into connections contiguous
// ranges of floor(totalSize/connections) bytes, the last segment absorbing
// the remainder. Invariant: the ranges tile the whole interval with no gaps
// or overlaps. A zero totalSize yields no segments.
func planSegments(totalSize int64, connections int) []Segment {
	if totalSize == 0 {
		return nil
	}
	if connections < 1 {
		connections = 1
	}
	if connections > utils.MaxConnections {
		connections = utils.MaxConnections
	}
	if int64(connections) > totalSize {
		connections = int(totalSize)
	}
	segmentSize := totalSize / int64(connections)
	segments := make([]Segment, 0, connections)
	for i := 0; i < connections; i++ {
		startByte := int64(i) * segmentSize
		endByte := startByte + segmentSize - 1
		if i == connections-1 {
			endByte = totalSize - 1
		}
		segments = append(segments, Segment{
			Index:     i,
			StartByte: startByte,
			EndByte:   endByte,
		})
	}
	return segments
}

// sinkPathFor names a segment's sink after the output file so concurrent
// sessions in the same directory never collide.
func sinkPathFor(outputPath string, index int) string {
	return filepath.Join(utils.TempDirFor(outputPath), fmt.Sprintf("%s.part%d", filepath.Base(outputPath), index))
}
