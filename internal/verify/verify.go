package verify

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/tern-dl/tern/internal/utils"
)

// FileDigest streams the file through SHA-256 and returns the hex digest.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FileDigestUnder computes the digest only when the file is at most
// sizeLimit bytes; larger files are skipped (empty digest, no error) to keep
// post-download verification cheap. A sizeLimit of 0 applies the default.
func FileDigestUnder(path string, sizeLimit int64) (string, error) {
	if sizeLimit == 0 {
		sizeLimit = utils.HashSizeLimit
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.Size() > sizeLimit {
		return "", nil
	}
	return FileDigest(path)
}

// Compare checks a computed digest against an expected one; an empty
// expected digest always passes (computation is for display only then).
func Compare(computed, expected string) error {
	if expected == "" {
		return nil
	}
	if computed != expected {
		return fmt.Errorf("digest mismatch: got %s, want %s", computed, expected)
	}
	return nil
}
