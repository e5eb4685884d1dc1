package gitclone

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/rs/zerolog/log"

	"github.com/tern-dl/tern/internal/utils"
)

// GitCloneDownloader clones a repository from a hosted provider. Progress
// arrives as sideband text lines through StreamFunc rather than a byte
// counter, so there is no percentage for clones.
type GitCloneDownloader struct{}

func NewGitCloneDownloader() *GitCloneDownloader {
	return &GitCloneDownloader{}
}

func (d *GitCloneDownloader) ValidateJob(job *utils.TernJob) error {
	provider, owner, repo, err := parseGitURL(job.URL)
	if err != nil {
		return err
	}
	job.Metadata["provider"] = provider
	job.Metadata["owner"] = owner
	job.Metadata["repo"] = repo
	return nil
}

func (d *GitCloneDownloader) BuildJob(job *utils.TernJob) error {
	provider := job.Metadata["provider"].(string)
	owner := job.Metadata["owner"].(string)
	repo := job.Metadata["repo"].(string)

	job.Metadata["cloneURL"] = fmt.Sprintf("https://%s/%s/%s", provider, owner, repo)

	if job.OutputPath == "" {
		job.OutputPath = repo
	}
	if info, err := os.Stat(job.OutputPath); err == nil && info.IsDir() {
		job.OutputPath = utils.RenewOutputPath(job.OutputPath)
	}
	if err := os.MkdirAll(filepath.Dir(job.OutputPath), 0755); err != nil {
		return utils.DiskError("gitclone/build", fmt.Errorf("error creating output directory: %v", err))
	}
	return nil
}

// sidebandWriter forwards the server's progress lines to StreamFunc.
type sidebandWriter struct {
	streamFunc func(string)
}

func (w *sidebandWriter) Write(data []byte) (int, error) {
	message := strings.TrimSpace(string(data))
	if message != "" && w.streamFunc != nil {
		w.streamFunc(message)
	}
	return len(data), nil
}

func (d *GitCloneDownloader) Download(job *utils.TernJob) error {
	cloneURL := job.Metadata["cloneURL"].(string)
	depth, _ := job.Metadata["depth"].(int)

	auth, err := getAuthMethod(cloneURL, job.Metadata)
	if err != nil {
		// anonymous clone still works for public repos
		log.Debug().Str("op", "gitclone/download").Msgf("Proceeding without auth: %v", err)
	}

	cloneOptions := &git.CloneOptions{
		URL:      cloneURL,
		Progress: &sidebandWriter{streamFunc: job.StreamFunc},
		Auth:     auth,
	}
	if depth > 0 {
		cloneOptions.Depth = depth
	}

	if job.StreamFunc != nil {
		job.StreamFunc(fmt.Sprintf("Cloning %s", cloneURL))
	}
	if _, err := git.PlainClone(job.OutputPath, false, cloneOptions); err != nil {
		return utils.NetworkError("gitclone/download", fmt.Errorf("git clone failed: %v", err))
	}

	if size, err := dirSize(job.OutputPath); err == nil {
		job.Metadata["totalDownloaded"] = size
		if job.StreamFunc != nil {
			job.StreamFunc(fmt.Sprintf("Clone complete, total size %s", utils.FormatBytes(uint64(size))))
		}
	}
	return nil
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			if info, err := d.Info(); err == nil {
				size += info.Size()
			}
		}
		return nil
	})
	return size, err
}

func parseGitURL(url string) (string, string, string, error) {
	url = strings.TrimSpace(url)
	url = strings.TrimSuffix(url, ".git")
	url = strings.TrimSuffix(url, "/")
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")

	parts := strings.Split(url, "/")
	if len(parts) < 3 {
		return "", "", "", utils.ValidationError("gitclone/parse", fmt.Errorf("invalid git URL, expected provider/owner/repo"))
	}

	provider, owner, repo := parts[0], parts[1], parts[2]
	switch provider {
	case "github.com", "gitlab.com", "bitbucket.org":
	default:
		return "", "", "", utils.ValidationError("gitclone/parse", fmt.Errorf("unsupported git provider: %s", provider))
	}
	return provider, owner, repo, nil
}
