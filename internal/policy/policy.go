package policy

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/tern-dl/tern/internal/utils"
)

// Rules is the download policy applied to every URL before any network I/O.
// Zero-value fields disable their respective check, except AllowedSchemes
// which always applies.
type Rules struct {
	AllowedSchemes    []string
	BlockedExtensions []string
	BlockedHosts      []string
}

func DefaultRules() Rules {
	return Rules{
		AllowedSchemes:    []string{"http", "https"},
		BlockedExtensions: []string{".exe", ".scr", ".bat", ".cmd"},
		BlockedHosts:      []string{"localhost", "127.0.0.1", "0.0.0.0"},
	}
}

// Check validates rawURL against the rules. A URL that cannot be parsed is
// reported as a plain parse error; URLs that parse but violate policy return
// a ValidationError. No I/O happens here.
func (r Rules) Check(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if !slices.Contains(r.AllowedSchemes, parsed.Scheme) {
		return utils.ValidationError("policy", fmt.Errorf("scheme %q not allowed", parsed.Scheme))
	}
	if parsed.Host == "" {
		return utils.ValidationError("policy", fmt.Errorf("missing host"))
	}
	host := strings.ToLower(parsed.Hostname())
	if slices.Contains(r.BlockedHosts, host) {
		return utils.ValidationError("policy", fmt.Errorf("host %q is blocked", host))
	}
	path := strings.ToLower(parsed.Path)
	for _, ext := range r.BlockedExtensions {
		if strings.HasSuffix(path, strings.ToLower(ext)) {
			return utils.ValidationError("policy", fmt.Errorf("blocked file type: %s", ext))
		}
	}
	return nil
}
