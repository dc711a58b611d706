package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBatch(); err != nil {
		return err
	}
	if err := c.validateMatching(); err != nil {
		return err
	}
	if err := c.validateAcquisition(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	if c.Notifications.NtfyTopic != "" && c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout_seconds must be positive")
	}
	return c.validateLogging()
}

func (c *Config) validateBatch() error {
	if err := ensurePositiveMap(map[string]int{
		"batch.size":                       c.Batch.Size,
		"batch.poll_interval_seconds":      c.Batch.PollInterval,
		"batch.heartbeat_interval_seconds": c.Batch.HeartbeatInterval,
		"batch.heartbeat_timeout_seconds":  c.Batch.HeartbeatTimeout,
	}); err != nil {
		return err
	}
	if c.Batch.MaxBatches < 0 {
		return errors.New("batch.max_batches must be zero (unbounded) or positive")
	}
	if c.Batch.HeartbeatTimeout <= c.Batch.HeartbeatInterval {
		return errors.New("batch.heartbeat_timeout_seconds must be greater than batch.heartbeat_interval_seconds")
	}
	return nil
}

func (c *Config) validateMatching() error {
	m := c.Matching
	if m.ConfirmThreshold <= 0 || m.ConfirmThreshold > 100 {
		return errors.New("matching.confirm_threshold must be in (0, 100]")
	}
	if m.ReviewThreshold <= 0 || m.ReviewThreshold > 100 {
		return errors.New("matching.review_threshold must be in (0, 100]")
	}
	if m.ReviewThreshold > m.ConfirmThreshold {
		return fmt.Errorf("matching.review_threshold (%g) must not exceed matching.confirm_threshold (%g)", m.ReviewThreshold, m.ConfirmThreshold)
	}
	if m.WindowPadding < 0 {
		return errors.New("matching.window_padding must be non-negative")
	}
	return nil
}

func (c *Config) validateAcquisition() error {
	switch c.Acquisition.Mode {
	case AcquisitionHTTP:
		if c.Acquisition.BaseURL == "" {
			return errors.New("acquisition.base_url is required when acquisition.mode is \"http\"")
		}
	case AcquisitionDirectory:
		if c.Acquisition.SourceDir == "" {
			return errors.New("acquisition.source_dir is required when acquisition.mode is \"directory\"")
		}
	default:
		return fmt.Errorf("acquisition.mode: unsupported value %q (want %q or %q)", c.Acquisition.Mode, AcquisitionHTTP, AcquisitionDirectory)
	}
	if c.Acquisition.RetryAttempts < 0 {
		return errors.New("acquisition.retry_attempts must be non-negative")
	}
	return ensurePositiveMap(map[string]int{
		"acquisition.timeout_seconds": c.Acquisition.TimeoutSeconds,
	})
}

func (c *Config) validateTools() error {
	if c.Recognition.PageSegmentationMode < 0 || c.Recognition.PageSegmentationMode > 13 {
		return errors.New("recognition.page_segmentation_mode must be between 0 and 13")
	}
	return ensurePositiveMap(map[string]int{
		"rasterize.dpi":               c.Rasterize.DPI,
		"rasterize.timeout_seconds":   c.Rasterize.TimeoutSeconds,
		"recognition.timeout_seconds": c.Recognition.TimeoutSeconds,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
