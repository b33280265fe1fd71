package memory

import (
	"math"
	"runtime/debug"
	"strconv"

	"media-fetch/internal/logging"
	"media-fetch/internal/metrics"

	"github.com/spf13/viper"
)

// Configuration keys, read from the upper-cased environment variables.
const (
	KeyGoMemLimit  = "gomemlimit"
	KeyMemoryLimit = "memory_limit"
	KeyMemoryRatio = "memory_ratio"
)

// DefaultMemoryRatio is the share of the container limit given to the Go heap.
// The rest is left to the yt-dlp and ffmpeg child processes, which share the
// container's memory budget.
const DefaultMemoryRatio = 0.5

// Sources reported in ConfigResult.Source.
const (
	SourceGoMemLimit  = "GOMEMLIMIT"
	SourceMemoryLimit = "MEMORY_LIMIT"
	SourceNone        = "none"
)

// ConfigResult holds the result of memory configuration
type ConfigResult struct {
	// Configured indicates whether GOMEMLIMIT was set
	Configured bool

	// Source indicates where the configuration came from
	Source string

	// ContainerLimit is the container memory limit in bytes (0 if not set)
	ContainerLimit int64

	// GoMemLimit is the configured GOMEMLIMIT in bytes (0 if not set)
	GoMemLimit int64

	// Ratio is the memory ratio used (0 if not applicable)
	Ratio float64
}

// Configure sets GOMEMLIMIT from the container memory limit held by v.
// Call it early, before significant allocations.
//
//   - GOMEMLIMIT: if set, the runtime has already applied it; it is only reported
//   - MEMORY_LIMIT: container memory limit in bytes (Kubernetes Downward API)
//   - MEMORY_RATIO: share of MEMORY_LIMIT for the Go heap (default 0.5)
func Configure(v *viper.Viper) ConfigResult {
	return configure(v, debug.SetMemoryLimit)
}

func configure(v *viper.Viper, setLimit func(int64) int64) ConfigResult {
	result := ConfigResult{Source: SourceNone}

	if goMemLimit := v.GetString(KeyGoMemLimit); goMemLimit != "" {
		if limit := setLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.Source = SourceGoMemLimit
			result.GoMemLimit = limit
			metrics.GoMemLimitBytes.Set(float64(limit))
		}
		logging.Info("GOMEMLIMIT set via environment: %s", goMemLimit)
		return result
	}

	memLimitStr := v.GetString(KeyMemoryLimit)
	if memLimitStr == "" {
		logging.Debug("MEMORY_LIMIT not set, GOMEMLIMIT will not be configured automatically")
		return result
	}

	memLimit, err := strconv.ParseInt(memLimitStr, 10, 64)
	if err != nil || memLimit <= 0 {
		logging.Warn("Invalid MEMORY_LIMIT %q, GOMEMLIMIT not configured", memLimitStr)
		return result
	}
	result.ContainerLimit = memLimit

	ratio := DefaultMemoryRatio
	if ratioStr := v.GetString(KeyMemoryRatio); ratioStr != "" {
		parsed, err := strconv.ParseFloat(ratioStr, 64)
		switch {
		case err != nil:
			logging.Warn("Failed to parse MEMORY_RATIO %q: %v, using default %.2f", ratioStr, err, DefaultMemoryRatio)
		case parsed <= 0 || parsed > 1.0:
			logging.Warn("MEMORY_RATIO %q out of range (0.0-1.0), using default %.2f", ratioStr, DefaultMemoryRatio)
		default:
			ratio = parsed
		}
	}
	result.Ratio = ratio

	goMemLimit := int64(float64(memLimit) * ratio)
	setLimit(goMemLimit)

	result.Configured = true
	result.Source = SourceMemoryLimit
	result.GoMemLimit = goMemLimit
	metrics.GoMemLimitBytes.Set(float64(goMemLimit))

	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s container limit)",
		formatBytes(goMemLimit),
		ratio*100,
		formatBytes(memLimit),
	)

	return result
}

// formatBytes formats bytes into human-readable string
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
