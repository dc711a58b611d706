package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAcquisition()
	c.normalizeTools()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}

	derived := []struct {
		key   string
		value *string
		name  string
	}{
		{"paths.database_path", &c.Paths.DatabasePath, defaultDatabaseName},
		{"paths.image_dir", &c.Paths.ImageDir, "images"},
		{"paths.export_dir", &c.Paths.ExportDir, "exports"},
		{"paths.lock_path", &c.Paths.LockPath, defaultLockName},
		{"acquisition.source_dir", &c.Acquisition.SourceDir, "inbox"},
	}
	for _, entry := range derived {
		if strings.TrimSpace(*entry.value) == "" {
			*entry.value = filepath.Join(c.Paths.DataDir, entry.name)
		}
		if *entry.value, err = expandPath(*entry.value); err != nil {
			return fmt.Errorf("%s: %w", entry.key, err)
		}
	}

	if c.Logging.File != "" {
		if c.Logging.File, err = expandPath(c.Logging.File); err != nil {
			return fmt.Errorf("logging.file: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeAcquisition() {
	c.Acquisition.Mode = strings.ToLower(strings.TrimSpace(c.Acquisition.Mode))
	if c.Acquisition.Mode == "" {
		c.Acquisition.Mode = defaultAcquisitionMode
	}
	c.Acquisition.BaseURL = strings.TrimRight(strings.TrimSpace(c.Acquisition.BaseURL), "/")
	c.Acquisition.DocumentPath = strings.TrimSpace(c.Acquisition.DocumentPath)
	if c.Acquisition.DocumentPath == "" {
		c.Acquisition.DocumentPath = defaultDocumentPath
	}
	if strings.TrimSpace(c.Acquisition.UserAgent) == "" {
		c.Acquisition.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizeTools() {
	c.Rasterize.Binary = strings.TrimSpace(c.Rasterize.Binary)
	if c.Rasterize.Binary == "" {
		c.Rasterize.Binary = defaultRasterizeBinary
	}
	c.Recognition.Binary = strings.TrimSpace(c.Recognition.Binary)
	if c.Recognition.Binary == "" {
		c.Recognition.Binary = defaultRecognitionBinary
	}
	c.Recognition.Language = strings.TrimSpace(c.Recognition.Language)
	if c.Recognition.Language == "" {
		c.Recognition.Language = defaultRecognitionLanguage
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
