package gitclone

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// getAuthMethod derives credentials from job metadata. A token maps to the
// provider's HTTP basic-auth convention; an SSH key path wins otherwise.
// No credentials at all is reported as an error so the caller can fall back
// to an anonymous clone.
func getAuthMethod(repoURL string, metadata map[string]any) (transport.AuthMethod, error) {
	token, _ := metadata["token"].(string)
	if token != "" {
		username := "oauth2"
		if strings.Contains(repoURL, "bitbucket.org") {
			username = "x-token-auth"
		}
		return &http.BasicAuth{Username: username, Password: token}, nil
	}

	sshKeyPath, _ := metadata["sshKey"].(string)
	if sshKeyPath != "" {
		publicKeys, err := ssh.NewPublicKeysFromFile("git", sshKeyPath, "")
		if err != nil {
			return nil, fmt.Errorf("couldn't load SSH key: %v", err)
		}
		return publicKeys, nil
	}

	return nil, errors.New("no authentication method found")
}
