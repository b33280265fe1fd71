package startup

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"media-fetch/internal/logging"
	"media-fetch/internal/workers"

	"github.com/spf13/viper"
)

// Configuration keys. Each key is read from the upper-cased environment
// variable of the same name.
const (
	KeyPort                   = "port"
	KeyMetricsPort            = "metrics_port"
	KeyMetricsEnabled         = "metrics_enabled"
	KeyStagingDir             = "staging_dir"
	KeyDeleteAfterServe       = "delete_after_serve"
	KeyStagingMaxAge          = "staging_max_age"
	KeyStagingSweepInterval   = "staging_sweep_interval"
	KeyExtractTimeout         = "extract_timeout"
	KeyDownloadTimeout        = "download_timeout"
	KeyMaxConcurrentDownloads = "max_concurrent_downloads"
	KeyFFmpegPath             = "ffmpeg_path"
	KeyYtDlpPath              = "ytdlp_path"
	KeyCORSAllowedOrigins     = "cors_allowed_origins"
	KeyLogHealthChecks        = "log_health_checks"
)

// Default values for durations, also used when a configured value is invalid.
const (
	DefaultStagingMaxAge        = time.Hour
	DefaultStagingSweepInterval = 10 * time.Minute
	DefaultExtractTimeout       = 2 * time.Minute
	DefaultDownloadTimeout      = 30 * time.Minute
)

// Config holds all application configuration
type Config struct {
	Port           string
	MetricsPort    string
	MetricsEnabled bool

	// StagingDir is empty when a temporary directory should be created.
	StagingDir           string
	DeleteAfterServe     bool
	StagingMaxAge        time.Duration
	StagingSweepInterval time.Duration

	ExtractTimeout         time.Duration
	DownloadTimeout        time.Duration
	MaxConcurrentDownloads int

	FFmpegPath string
	YtDlpPath  string

	CORSAllowedOrigins []string
	LogHealthChecks    bool
}

// NewViper returns a viper instance that reads the environment and carries
// the application defaults.
func NewViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// SetDefaults registers the default value of every configuration key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyPort, "5000")
	v.SetDefault(KeyMetricsPort, "9090")
	v.SetDefault(KeyMetricsEnabled, "true")
	v.SetDefault(KeyStagingDir, "")
	v.SetDefault(KeyDeleteAfterServe, "true")
	v.SetDefault(KeyStagingMaxAge, DefaultStagingMaxAge.String())
	v.SetDefault(KeyStagingSweepInterval, DefaultStagingSweepInterval.String())
	v.SetDefault(KeyExtractTimeout, DefaultExtractTimeout.String())
	v.SetDefault(KeyDownloadTimeout, DefaultDownloadTimeout.String())
	v.SetDefault(KeyMaxConcurrentDownloads, strconv.Itoa(workers.ForDownloads()))
	v.SetDefault(KeyFFmpegPath, "")
	v.SetDefault(KeyYtDlpPath, "")
	v.SetDefault(KeyCORSAllowedOrigins, "*")
	v.SetDefault(KeyLogHealthChecks, "true")
}

// LoadConfig prints the startup banner, then reads, validates and logs the
// configuration held by v.
func LoadConfig(v *viper.Viper) (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info(rule)
	logging.Info("CONFIGURATION")
	logging.Info(rule)

	config, err := ParseConfig(v)
	if err != nil {
		return nil, err
	}

	stagingDir := config.StagingDir
	if stagingDir == "" {
		stagingDir = "(temporary)"
	}

	logging.Info("  PORT:                     %s", config.Port)
	logging.Info("  METRICS_PORT:             %s", config.MetricsPort)
	logging.Info("  METRICS_ENABLED:          %v", config.MetricsEnabled)
	logging.Info("  STAGING_DIR:              %s", stagingDir)
	logging.Info("  DELETE_AFTER_SERVE:       %v", config.DeleteAfterServe)
	logging.Info("  STAGING_MAX_AGE:          %v", config.StagingMaxAge)
	logging.Info("  STAGING_SWEEP_INTERVAL:   %v", config.StagingSweepInterval)
	logging.Info("  EXTRACT_TIMEOUT:          %v", config.ExtractTimeout)
	logging.Info("  DOWNLOAD_TIMEOUT:         %v", config.DownloadTimeout)
	logging.Info("  MAX_CONCURRENT_DOWNLOADS: %d", config.MaxConcurrentDownloads)
	logging.Info("  FFMPEG_PATH:              %s", orAuto(config.FFmpegPath))
	logging.Info("  YTDLP_PATH:               %s", orAuto(config.YtDlpPath))
	logging.Info("  CORS_ALLOWED_ORIGINS:     %s", strings.Join(config.CORSAllowedOrigins, ", "))
	logging.Info("  LOG_HEALTH_CHECKS:        %v", config.LogHealthChecks)
	logging.Info("  LOG_LEVEL:                %s", logging.GetLevel())

	return config, nil
}

// ParseConfig reads the configuration held by v without logging it.
// Unparseable durations, booleans and counts fall back to their defaults
// with a warning; invalid ports are an error.
func ParseConfig(v *viper.Viper) (*Config, error) {
	config := &Config{
		Port:                   strings.TrimSpace(v.GetString(KeyPort)),
		MetricsPort:            strings.TrimSpace(v.GetString(KeyMetricsPort)),
		MetricsEnabled:         getBool(v, KeyMetricsEnabled, true),
		StagingDir:             strings.TrimSpace(v.GetString(KeyStagingDir)),
		DeleteAfterServe:       getBool(v, KeyDeleteAfterServe, true),
		StagingMaxAge:          getDuration(v, KeyStagingMaxAge, DefaultStagingMaxAge),
		StagingSweepInterval:   getDuration(v, KeyStagingSweepInterval, DefaultStagingSweepInterval),
		ExtractTimeout:         getDuration(v, KeyExtractTimeout, DefaultExtractTimeout),
		DownloadTimeout:        getDuration(v, KeyDownloadTimeout, DefaultDownloadTimeout),
		MaxConcurrentDownloads: getPositiveInt(v, KeyMaxConcurrentDownloads, workers.ForDownloads()),
		FFmpegPath:             strings.TrimSpace(v.GetString(KeyFFmpegPath)),
		YtDlpPath:              strings.TrimSpace(v.GetString(KeyYtDlpPath)),
		CORSAllowedOrigins:     splitList(v.GetString(KeyCORSAllowedOrigins)),
		LogHealthChecks:        getBool(v, KeyLogHealthChecks, true),
	}

	if err := validatePort(KeyPort, config.Port); err != nil {
		return nil, err
	}
	if config.MetricsEnabled {
		if err := validatePort(KeyMetricsPort, config.MetricsPort); err != nil {
			return nil, err
		}
		if config.MetricsPort == config.Port {
			return nil, fmt.Errorf("PORT and METRICS_PORT must differ (both %s)", config.Port)
		}
	}

	return config, nil
}

func validatePort(key, value string) error {
	port, err := strconv.Atoi(value)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid %s %q: must be a number between 1 and 65535", strings.ToUpper(key), value)
	}
	return nil
}

func getBool(v *viper.Viper, key string, defaultValue bool) bool {
	value := strings.TrimSpace(v.GetString(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", strings.ToUpper(key), value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getDuration(v *viper.Viper, key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(v.GetString(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		logging.Warn("  Invalid %s %q, using default: %v", strings.ToUpper(key), value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getPositiveInt(v *viper.Viper, key string, defaultValue int) int {
	value := strings.TrimSpace(v.GetString(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		logging.Warn("  Invalid %s %q, using default: %d", strings.ToUpper(key), value, defaultValue)
		return defaultValue
	}
	return parsed
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func orAuto(value string) string {
	if value == "" {
		return "(auto)"
	}
	return value
}
