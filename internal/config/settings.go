package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tern-dl/tern/internal/utils"
)

// Settings is the explicit, typed download configuration. It is constructed
// once (defaults, optional settings file, flag overrides), validated, and
// then passed by reference into sessions; nothing here is process-global.
type Settings struct {
	DownloadDir       string        `yaml:"download_dir"`
	Connections       int           `yaml:"connections"`
	ChunkSize         int64         `yaml:"chunk_size"`
	Timeout           time.Duration `yaml:"timeout"`
	KATimeout         time.Duration `yaml:"keep_alive_timeout"`
	InsecureTLS       bool          `yaml:"insecure_tls"`
	ProxyURL          string        `yaml:"proxy_url"`
	ProxyUsername     string        `yaml:"proxy_username"`
	ProxyPassword     string        `yaml:"proxy_password"`
	UserAgent         string        `yaml:"user_agent"`
	RateLimit         int64         `yaml:"rate_limit"` // bytes/sec per session, 0 = unlimited
	Resume            bool          `yaml:"resume"`
	KeepParts         bool          `yaml:"keep_parts"`
	VerifyHash        bool          `yaml:"verify_hash"`
	HashSizeLimit     int64         `yaml:"hash_size_limit"`
	FreeSpaceMargin   int64         `yaml:"free_space_margin"`
	MinSegmentSize    int64         `yaml:"min_segment_size"`
	AllowedSchemes    []string      `yaml:"allowed_schemes"`
	BlockedExtensions []string      `yaml:"blocked_extensions"`
	BlockedHosts      []string      `yaml:"blocked_hosts"`
}

func Default() Settings {
	return Settings{
		DownloadDir:       ".",
		Connections:       8,
		ChunkSize:         utils.DefaultBufferSize,
		Timeout:           utils.DefaultTimeout,
		KATimeout:         utils.DefaultKATimeout,
		UserAgent:         utils.ToolUserAgent,
		Resume:            true,
		KeepParts:         true,
		VerifyHash:        true,
		HashSizeLimit:     utils.HashSizeLimit,
		FreeSpaceMargin:   utils.DefaultFreeSpaceMargin,
		MinSegmentSize:    utils.MinSegmentSize,
		AllowedSchemes:    []string{"http", "https"},
		BlockedExtensions: []string{".exe", ".scr", ".bat", ".cmd"},
		BlockedHosts:      []string{"localhost", "127.0.0.1", "0.0.0.0"},
	}
}

// Load reads a YAML settings file over the defaults. A missing file is not
// an error; a present but invalid one is.
func Load(path string) (Settings, error) {
	settings := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("error reading settings file: %v", err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("error parsing settings file: %v", err)
	}
	return settings, settings.Validate()
}

// Validate clamps and checks field values once at construction so the rest
// of the code never re-checks them.
func (s *Settings) Validate() error {
	if s.Connections < 1 {
		s.Connections = 1
	}
	if s.Connections > utils.MaxConnections {
		s.Connections = utils.MaxConnections
	}
	if s.ChunkSize <= 0 {
		s.ChunkSize = utils.DefaultBufferSize
	}
	if s.Timeout <= 0 {
		s.Timeout = utils.DefaultTimeout
	}
	if s.KATimeout <= 0 {
		s.KATimeout = utils.DefaultKATimeout
	}
	if s.RateLimit < 0 {
		return fmt.Errorf("rate_limit must be >= 0, got %d", s.RateLimit)
	}
	if s.HashSizeLimit < 0 {
		return fmt.Errorf("hash_size_limit must be >= 0, got %d", s.HashSizeLimit)
	}
	if s.FreeSpaceMargin < 0 {
		return fmt.Errorf("free_space_margin must be >= 0, got %d", s.FreeSpaceMargin)
	}
	if s.MinSegmentSize < 0 {
		return fmt.Errorf("min_segment_size must be >= 0, got %d", s.MinSegmentSize)
	}
	if len(s.AllowedSchemes) == 0 {
		return fmt.Errorf("allowed_schemes must not be empty")
	}
	return nil
}

// HTTPClientConfig maps the settings onto the shared HTTP client
// configuration.
func (s *Settings) HTTPClientConfig(headers map[string]string) utils.HTTPClientConfig {
	return utils.HTTPClientConfig{
		Timeout:       s.Timeout,
		KATimeout:     s.KATimeout,
		ProxyURL:      s.ProxyURL,
		ProxyUsername: s.ProxyUsername,
		ProxyPassword: s.ProxyPassword,
		UserAgent:     s.UserAgent,
		Headers:       headers,
		InsecureTLS:   s.InsecureTLS,
	}
}
