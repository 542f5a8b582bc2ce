package memory

import (
	"fmt"
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"mov-converter/internal/logging"
)

// DefaultMemoryRatio is the share of the container limit given to the Go heap.
const DefaultMemoryRatio = 0.75

// Sources reported in ConfigResult.Source.
const (
	SourceGoMemLimit  = "GOMEMLIMIT"
	SourceMemoryLimit = "MEMORY_LIMIT"
	SourceNone        = "none"
)

// ConfigResult holds the result of memory configuration
type ConfigResult struct {
	Configured     bool
	Source         string
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// settings are the raw environment values.
type settings struct {
	goMemLimit  string
	memoryLimit string
	memoryRatio string
}

// ConfigureFromEnv sets the soft memory limit. Call it early in main,
// before large allocations.
func ConfigureFromEnv() ConfigResult {
	return configure(settings{
		goMemLimit:  os.Getenv("GOMEMLIMIT"),
		memoryLimit: os.Getenv("MEMORY_LIMIT"),
		memoryRatio: os.Getenv("MEMORY_RATIO"),
	}, debug.SetMemoryLimit)
}

// configure applies s through setLimit, which has the signature of
// debug.SetMemoryLimit.
func configure(s settings, setLimit func(int64) int64) ConfigResult {
	if s.goMemLimit != "" {
		result := ConfigResult{Source: SourceGoMemLimit}
		// The runtime has already parsed GOMEMLIMIT; -1 only reads it.
		if limit := setLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", s.goMemLimit)
		return result
	}

	if s.memoryLimit == "" {
		logging.Debug("MEMORY_LIMIT not set, GOMEMLIMIT will not be configured automatically")
		return ConfigResult{Source: SourceNone}
	}

	containerLimit, err := strconv.ParseInt(s.memoryLimit, 10, 64)
	if err != nil || containerLimit <= 0 {
		logging.Warn("Ignoring invalid MEMORY_LIMIT %q", s.memoryLimit)
		return ConfigResult{Source: SourceNone}
	}

	ratio := parseRatio(s.memoryRatio)
	goMemLimit := int64(float64(containerLimit) * ratio)
	setLimit(goMemLimit)

	logging.Info("Configured GOMEMLIMIT: %s (%.0f%% of %s container limit)",
		formatBytes(goMemLimit), ratio*100, formatBytes(containerLimit))

	return ConfigResult{
		Configured:     true,
		Source:         SourceMemoryLimit,
		ContainerLimit: containerLimit,
		GoMemLimit:     goMemLimit,
		Ratio:          ratio,
	}
}

func parseRatio(s string) float64 {
	if s == "" {
		return DefaultMemoryRatio
	}
	ratio, err := strconv.ParseFloat(s, 64)
	if err != nil || ratio <= 0 || ratio > 1 {
		logging.Warn("Ignoring MEMORY_RATIO %q (want 0 < ratio <= 1), using %.2f", s, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	return ratio
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
