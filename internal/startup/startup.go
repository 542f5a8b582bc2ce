package startup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"mov-converter/internal/logging"

	"github.com/joho/godotenv"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Config holds all application configuration
type Config struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	LogHealthChecks bool

	WorkDir        string
	FFmpegPath     string
	FFprobePath    string
	ConvertTimeout time.Duration
	DownloadTTL    time.Duration
	PreviewEnabled bool

	// AuthPasswordHash enables basic auth when non-empty.
	AuthPasswordHash string
}

// AuthEnabled reports whether a password hash was configured.
func (c *Config) AuthEnabled() bool {
	return c.AuthPasswordHash != ""
}

// DefaultWorkDir is used when WORK_DIR is unset.
func DefaultWorkDir() string {
	return filepath.Join(os.TempDir(), "mov-converter")
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	// Must run before the first log call so LOG_LEVEL from .env applies.
	envErr := loadDotEnv(".env")

	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	if envErr != nil {
		logging.Warn("  Failed to load .env: %v", envErr)
	}

	config, err := readConfig()
	if err != nil {
		return nil, err
	}

	logging.Info("  PORT:                %s", config.Port)
	logging.Info("  METRICS_PORT:        %s", config.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", config.MetricsEnabled)
	logging.Info("  WORK_DIR:            %s", config.WorkDir)
	logging.Info("  FFMPEG_PATH:         %s", config.FFmpegPath)
	logging.Info("  FFPROBE_PATH:        %s", config.FFprobePath)
	logging.Info("  CONVERT_TIMEOUT:     %s", timeoutString(config.ConvertTimeout))
	logging.Info("  DOWNLOAD_TTL:        %v", config.DownloadTTL)
	logging.Info("  PREVIEW_ENABLED:     %v", config.PreviewEnabled)
	logging.Info("  AUTH:                %s", enabledString(config.AuthEnabled()))
	logging.Info("  LOG_HEALTH_CHECKS:   %v", config.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Work directory (absolute): %s", config.WorkDir)

	if err := ensureDirectory(config.WorkDir); err != nil {
		return nil, fmt.Errorf("work directory error: %w", err)
	}

	logging.Debug("  Testing work directory write access...")
	if err := testWriteAccess(config.WorkDir); err != nil {
		return nil, fmt.Errorf("work directory is not writable (required for conversions): %w", err)
	}
	logging.Info("  [OK] Work directory is writable")

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Conversion:  ENABLED (required)")
	logging.Info("    Previews:    %s", enabledString(config.PreviewEnabled))
	logging.Info("    Auth:        %s", enabledString(config.AuthEnabled()))
	logging.Info("    Metrics:     %s", enabledString(config.MetricsEnabled))

	return config, nil
}

// readConfig resolves every setting from the environment without touching
// the filesystem.
func readConfig() (*Config, error) {
	workDir, err := filepath.Abs(getEnv("WORK_DIR", DefaultWorkDir()))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve work directory path: %w", err)
	}

	return &Config{
		Port:             getEnv("PORT", "8080"),
		MetricsPort:      getEnv("METRICS_PORT", "9090"),
		MetricsEnabled:   getEnvBool("METRICS_ENABLED", true),
		LogHealthChecks:  getEnvBool("LOG_HEALTH_CHECKS", true),
		WorkDir:          workDir,
		FFmpegPath:       getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:      getEnv("FFPROBE_PATH", "ffprobe"),
		ConvertTimeout:   getEnvDuration("CONVERT_TIMEOUT", 30*time.Minute),
		DownloadTTL:      getEnvDuration("DOWNLOAD_TTL", 10*time.Minute),
		PreviewEnabled:   getEnvBool("PREVIEW_ENABLED", true),
		AuthPasswordHash: os.Getenv("AUTH_PASSWORD_HASH"),
	}, nil
}

// loadDotEnv loads path into the environment. A missing file is not an
// error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func timeoutString(d time.Duration) string {
	if d <= 0 {
		return "none"
	}
	return d.String()
}

func printBanner() {
	banner := `
------------------------------------------------------------
    __  _______ _    __      __        __  _______  __ __
   /  |/  / __ \ |  / /     / /_____  /  |/  / __ \/ // /
  / /|_/ / / / / | / /_____/ __/ __ \/ /|_/ / /_/ / // /_
 / /  / / /_/ /| |/ /_____/ /_/ /_/ / /  / / ____/__  __/
/_/  /_/\____/ |___/      \__/\____/_/  /_/_/      /_/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
