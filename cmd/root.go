package cmd

import (
	"fmt"
	u "net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/tern-dl/tern/internal/config"
	"github.com/tern-dl/tern/internal/policy"
	"github.com/tern-dl/tern/internal/scheduler"
	"github.com/tern-dl/tern/internal/utils"
)

var (
	cfgFile       string
	connections   int
	workers       int
	timeout       time.Duration
	kaTimeout     time.Duration
	userAgent     string
	proxyURL      string
	proxyUsername string
	proxyPassword string
	headers       []string
	rateLimitStr  string
	insecureTLS   bool
	resumeFlag    bool
	verifyFlag    bool
	keepParts     bool
	debug         bool
	quiet         bool

	settings         config.Settings
	globalHTTPConfig utils.HTTPClientConfig
)

var TernVersion = "dev"

var rootCmd = &cobra.Command{
	Use:     "tern",
	Short:   "Tern is a fast multi-protocol download manager",
	Version: TernVersion,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command) error {
	utils.InitLogger(debug)

	path := cfgFile
	if path == "" {
		if configDir, err := os.UserConfigDir(); err == nil {
			path = filepath.Join(configDir, "tern", "config.yaml")
		}
	}
	var err error
	settings, err = config.Load(path)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if err := applyFlagOverrides(cmd); err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if settings.UserAgent == "randomize" {
		settings.UserAgent = utils.GetRandomUserAgent()
	}

	// credentials embedded in the proxy URL win unless given explicitly
	if parsedProxy, err := u.Parse(settings.ProxyURL); err == nil && parsedProxy.User != nil && settings.ProxyUsername == "" {
		settings.ProxyUsername = parsedProxy.User.Username()
		if password, set := parsedProxy.User.Password(); set {
			settings.ProxyPassword = password
		}
		parsedProxy.User = nil
		settings.ProxyURL = parsedProxy.String()
	}

	globalHTTPConfig = settings.HTTPClientConfig(utils.ParseHeaderArgs(headers))

	hd := scheduler.HTTPDownloader()
	hd.Rules = policy.Rules{
		AllowedSchemes:    settings.AllowedSchemes,
		BlockedExtensions: settings.BlockedExtensions,
		BlockedHosts:      settings.BlockedHosts,
	}
	hd.FreeSpaceMargin = settings.FreeSpaceMargin
	hd.MinSegmentSize = settings.MinSegmentSize
	hd.ChunkSize = settings.ChunkSize
	hd.HashSizeLimit = settings.HashSizeLimit
	return nil
}

func applyFlagOverrides(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if flags.Changed("connections") {
		settings.Connections = connections
	}
	if flags.Changed("timeout") {
		settings.Timeout = timeout
	}
	if flags.Changed("keep-alive-timeout") {
		settings.KATimeout = kaTimeout
	}
	if flags.Changed("user-agent") {
		settings.UserAgent = userAgent
	}
	if flags.Changed("proxy") {
		settings.ProxyURL = proxyURL
	}
	if flags.Changed("proxy-username") {
		settings.ProxyUsername = proxyUsername
	}
	if flags.Changed("proxy-password") {
		settings.ProxyPassword = proxyPassword
	}
	if flags.Changed("insecure") {
		settings.InsecureTLS = insecureTLS
	}
	if flags.Changed("resume") {
		settings.Resume = resumeFlag
	}
	if flags.Changed("verify") {
		settings.VerifyHash = verifyFlag
	}
	if flags.Changed("keep-parts") {
		settings.KeepParts = keepParts
	}
	if flags.Changed("rate-limit") {
		limit, err := utils.ParseByteSize(rateLimitStr)
		if err != nil {
			return fmt.Errorf("invalid rate limit %q: %w", rateLimitStr, err)
		}
		settings.RateLimit = limit
	}
	return nil
}

// newJob applies session-wide settings to a fresh job of the given type.
func newJob(jobType, url, outputPath string) utils.TernJob {
	if outputPath == "" && settings.DownloadDir != "" {
		outputPath = settings.DownloadDir + string(os.PathSeparator)
	}
	return utils.TernJob{
		JobType:          jobType,
		URL:              url,
		OutputPath:       outputPath,
		Connections:      settings.Connections,
		ProgressType:     "progress",
		HTTPClientConfig: globalHTTPConfig,
		Metadata:         make(map[string]any),
		RateLimit:        settings.RateLimit,
		Resume:           settings.Resume,
		VerifyHash:       settings.VerifyHash,
		KeepParts:        settings.KeepParts,
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Path to YAML config file")
	pf.IntVarP(&connections, "connections", "c", 8, "Number of connections per download (above 5 enables high-thread-mode)")
	pf.IntVarP(&workers, "workers", "w", 1, "Number of downloads to run in parallel")
	pf.DurationVarP(&timeout, "timeout", "t", utils.DefaultTimeout, "Connection timeout (eg. 5s, 10m)")
	pf.DurationVarP(&kaTimeout, "keep-alive-timeout", "k", utils.DefaultKATimeout, "Keep-alive timeout for client (eg. 10s, 1m, 80s)")
	pf.StringVarP(&userAgent, "user-agent", "a", utils.ToolUserAgent, "User agent, or 'randomize' for a random browser UA")
	pf.StringVarP(&proxyURL, "proxy", "p", "", "HTTP/HTTPS proxy URL (e.g., proxy.example.com:8080)")
	pf.StringVar(&proxyUsername, "proxy-username", "", "Proxy username (if not provided in proxy URL)")
	pf.StringVar(&proxyPassword, "proxy-password", "", "Proxy password (if not provided in proxy URL)")
	pf.StringArrayVarP(&headers, "header", "H", []string{}, "Custom headers (like 'Authorization: Basic dXNlcjpwYXNz'); can be specified multiple times")
	pf.StringVarP(&rateLimitStr, "rate-limit", "r", "", "Bandwidth cap per download (eg. 500k, 2M), 0 or empty for unlimited")
	pf.BoolVar(&insecureTLS, "insecure", false, "Skip TLS certificate verification")
	pf.BoolVar(&resumeFlag, "resume", false, "Resume partial transfers from existing segment files")
	pf.BoolVar(&verifyFlag, "verify", false, "Record a SHA-256 digest of the completed file")
	pf.BoolVar(&keepParts, "keep-parts", false, "Keep segment files when a download fails")
	pf.BoolVar(&debug, "debug", false, "Enable debug logging")
	pf.BoolVarP(&quiet, "quiet", "q", false, "Disable the live progress display")

	rootCmd.AddCommand(newHTTPCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newS3Cmd())
	rootCmd.AddCommand(newGitCloneCmd())
	rootCmd.AddCommand(newProbeCmd())
	rootCmd.AddCommand(newCleanCmd())
}
