package ternhttp

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/tern-dl/tern/internal/utils"
)

// assembleSegments concatenates completed sinks into the destination in
// index order and deletes each sink after its copy. It re-verifies segment
// state itself rather than trusting the caller; being handed a non-complete
// set is a contract violation. On a copy error the partially written
// destination and the remaining sinks are left in place for inspection.
func assembleSegments(outputPath string, fileSize int64, segments []Segment) error {
	for i := range segments {
		if segments[i].State != SegmentComplete {
			return utils.IncompleteTransferError("assemble", fmt.Errorf("segment %d is not complete", segments[i].Index))
		}
		if info, err := os.Stat(segments[i].SinkPath); err != nil {
			return utils.IncompleteTransferError("assemble", fmt.Errorf("segment %d sink missing: %v", segments[i].Index, err))
		} else if info.Size() != segments[i].expectedSize() {
			return utils.IncompleteTransferError("assemble", fmt.Errorf("segment %d sink has %d bytes, expected %d", segments[i].Index, info.Size(), segments[i].expectedSize()))
		}
	}

	destFile, err := os.Create(outputPath)
	if err != nil {
		return utils.DiskError("assemble", fmt.Errorf("error creating destination: %v", err))
	}
	defer destFile.Close()

	var totalWritten int64
	for i := range segments {
		sink, err := os.Open(segments[i].SinkPath)
		if err != nil {
			return utils.DiskError("assemble", fmt.Errorf("error opening sink %d: %v", segments[i].Index, err))
		}
		written, err := io.Copy(destFile, sink)
		sink.Close()
		if err != nil {
			return utils.DiskError("assemble", fmt.Errorf("error copying segment %d: %v", segments[i].Index, err))
		}
		totalWritten += written
		os.Remove(segments[i].SinkPath)
	}

	if totalWritten != fileSize {
		return fmt.Errorf("size mismatch after assembly: expected %d, got %d", fileSize, totalWritten)
	}
	log.Debug().Str("op", "http/assemble").Int64("bytes", totalWritten).Msgf("Assembled %d segments into %s", len(segments), outputPath)
	return nil
}
