package verify

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func TestFileDigest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	content := []byte("the quick brown fox jumps over the lazy dog")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	sum := sha256.Sum256(content)
	want := hex.EncodeToString(sum[:])

	got, err := FileDigest(path)
	if err != nil {
		t.Fatalf("FileDigest: %v", err)
	}
	if got != want {
		t.Errorf("FileDigest = %s, want %s", got, want)
	}
}

func TestFileDigestUnderSkipsLargeFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.bin")
	if err := os.WriteFile(path, make([]byte, 2048), 0644); err != nil {
		t.Fatal(err)
	}

	digest, err := FileDigestUnder(path, 1024)
	if err != nil {
		t.Fatalf("FileDigestUnder: %v", err)
	}
	if digest != "" {
		t.Errorf("expected skip for oversized file, got digest %q", digest)
	}

	digest, err = FileDigestUnder(path, 4096)
	if err != nil {
		t.Fatalf("FileDigestUnder: %v", err)
	}
	if digest == "" {
		t.Error("expected digest for file under limit")
	}
}

func TestCompare(t *testing.T) {
	if err := Compare("abc", ""); err != nil {
		t.Errorf("empty expected digest should pass: %v", err)
	}
	if err := Compare("abc", "abc"); err != nil {
		t.Errorf("matching digests should pass: %v", err)
	}
	if err := Compare("abc", "def"); err == nil {
		t.Error("mismatched digests should fail")
	}
}
