package cmd

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestNormalizeJobType(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"http", "http"},
		{"HTTPS", "http"},
		{"s3", "s3"},
		{"git", "git-clone"},
		{"gitclone", "git-clone"},
		{"git-clone", "git-clone"},
		{"torrent", ""},
	}
	for _, tc := range tests {
		if got := normalizeJobType(tc.input); got != tc.want {
			t.Errorf("normalizeJobType(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestBuildJobsFromBatch(t *testing.T) {
	data := []byte(`
http:
  - link: https://example.com/a.bin
  - link: https://example.com/b.bin
    op: downloads/b.bin
s3:
  - link: s3://bucket/key
git-clone:
  - link: github.com/owner/repo
unknown-type:
  - link: https://example.com/ignored
http-extra:
  - link: ""
`)
	var batchFile BatchFile
	if err := yaml.Unmarshal(data, &batchFile); err != nil {
		t.Fatalf("parsing fixture: %v", err)
	}

	jobs := buildJobsFromBatch(batchFile)
	if len(jobs) != 4 {
		t.Fatalf("got %d jobs, want 4", len(jobs))
	}

	byURL := make(map[string]string)
	for _, job := range jobs {
		byURL[job.URL] = job.JobType
	}
	if byURL["https://example.com/a.bin"] != "http" {
		t.Errorf("a.bin job type = %q", byURL["https://example.com/a.bin"])
	}
	if byURL["s3://bucket/key"] != "s3" {
		t.Errorf("s3 job type = %q", byURL["s3://bucket/key"])
	}
	if byURL["github.com/owner/repo"] != "git-clone" {
		t.Errorf("git job type = %q", byURL["github.com/owner/repo"])
	}

	for _, job := range jobs {
		if job.URL == "https://example.com/b.bin" && job.OutputPath != "downloads/b.bin" {
			t.Errorf("b.bin output path = %q", job.OutputPath)
		}
		if job.JobType == "s3" {
			if profile, _ := job.Metadata["profile"].(string); profile != "default" {
				t.Errorf("s3 profile = %q", profile)
			}
		}
	}
}
