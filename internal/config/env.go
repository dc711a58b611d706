package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "CHECKRECON"

// envOverrides mirrors the settings that can be supplied through the
// environment. Zero values mean "not set".
type envOverrides struct {
	DataDir          string  `envconfig:"DATA_DIR"`
	DatabasePath     string  `envconfig:"DATABASE_PATH"`
	ImageDir         string  `envconfig:"IMAGE_DIR"`
	ExportDir        string  `envconfig:"EXPORT_DIR"`
	BatchSize        int     `envconfig:"BATCH_SIZE"`
	MaxBatches       int     `envconfig:"MAX_BATCHES"`
	ConfirmThreshold float64 `envconfig:"CONFIRM_THRESHOLD"`
	ReviewThreshold  float64 `envconfig:"REVIEW_THRESHOLD"`
	AcquisitionMode  string  `envconfig:"ACQUISITION_MODE"`
	AcquisitionURL   string  `envconfig:"ACQUISITION_BASE_URL"`
	SourceDir        string  `envconfig:"ACQUISITION_SOURCE_DIR"`
	NtfyTopic        string  `envconfig:"NTFY_TOPIC"`
	LogFormat        string  `envconfig:"LOG_FORMAT"`
	LogLevel         string  `envconfig:"LOG_LEVEL"`
	LogFile          string  `envconfig:"LOG_FILE"`
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("environment overrides: %w", err)
	}
	setString(&c.Paths.DataDir, env.DataDir)
	setString(&c.Paths.DatabasePath, env.DatabasePath)
	setString(&c.Paths.ImageDir, env.ImageDir)
	setString(&c.Paths.ExportDir, env.ExportDir)
	setInt(&c.Batch.Size, env.BatchSize)
	setInt(&c.Batch.MaxBatches, env.MaxBatches)
	if env.ConfirmThreshold > 0 {
		c.Matching.ConfirmThreshold = env.ConfirmThreshold
	}
	if env.ReviewThreshold > 0 {
		c.Matching.ReviewThreshold = env.ReviewThreshold
	}
	setString(&c.Acquisition.Mode, env.AcquisitionMode)
	setString(&c.Acquisition.BaseURL, env.AcquisitionURL)
	setString(&c.Acquisition.SourceDir, env.SourceDir)
	setString(&c.Notifications.NtfyTopic, env.NtfyTopic)
	setString(&c.Logging.Format, env.LogFormat)
	setString(&c.Logging.Level, env.LogLevel)
	setString(&c.Logging.File, env.LogFile)
	return nil
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func setInt(dst *int, value int) {
	if value != 0 {
		*dst = value
	}
}
