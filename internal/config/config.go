package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains storage locations.
type Paths struct {
	DataDir      string `toml:"data_dir"`
	DatabasePath string `toml:"database_path"`
	ImageDir     string `toml:"image_dir"`
	ExportDir    string `toml:"export_dir"`
	LockPath     string `toml:"lock_path"`
}

// Batch controls how many records are claimed together and how the polling
// loop paces itself. Intervals are in seconds.
type Batch struct {
	Size              int `toml:"size"`
	MaxBatches        int `toml:"max_batches"`
	PollInterval      int `toml:"poll_interval_seconds"`
	HeartbeatInterval int `toml:"heartbeat_interval_seconds"`
	HeartbeatTimeout  int `toml:"heartbeat_timeout_seconds"`
}

// Matching holds the payee classification thresholds on a 0..100 scale.
type Matching struct {
	ConfirmThreshold float64 `toml:"confirm_threshold"`
	ReviewThreshold  float64 `toml:"review_threshold"`
	// WindowPadding is added to the longest candidate's token count to size
	// the sliding token windows.
	WindowPadding int `toml:"window_padding"`
}

// Acquisition configures where check documents come from.
type Acquisition struct {
	// Mode is "http" for the document portal or "directory" for a local
	// folder of pre-fetched PDFs.
	Mode           string `toml:"mode"`
	BaseURL        string `toml:"base_url"`
	DocumentPath   string `toml:"document_path"`
	SourceDir      string `toml:"source_dir"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryAttempts  int    `toml:"retry_attempts"`
	UserAgent      string `toml:"user_agent"`
}

// Rasterize configures the PDF to image converter.
type Rasterize struct {
	Binary         string `toml:"binary"`
	DPI            int    `toml:"dpi"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Recognition configures the OCR engine.
type Recognition struct {
	Binary               string `toml:"binary"`
	Language             string `toml:"language"`
	PageSegmentationMode int    `toml:"page_segmentation_mode"`
	TimeoutSeconds       int    `toml:"timeout_seconds"`
}

// Notifications configures ntfy alerts for batch outcomes. An empty topic
// disables them.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	File   string `toml:"file"`
}

// Config encapsulates all configuration values for checkrecon.
//
// Configuration sections by subsystem:
//   - Paths: database, image, export, and lock file locations
//   - Batch: claim size and polling cadence
//   - Matching: payee similarity thresholds
//   - Acquisition: document portal or local source
//   - Rasterize: pdftoppm settings
//   - Recognition: tesseract settings
//   - Notifications: optional ntfy topic
//   - Logging: log format, level, and optional file
type Config struct {
	Paths         Paths         `toml:"paths"`
	Batch         Batch         `toml:"batch"`
	Matching      Matching      `toml:"matching"`
	Acquisition   Acquisition   `toml:"acquisition"`
	Rasterize     Rasterize     `toml:"rasterize"`
	Recognition   Recognition   `toml:"recognition"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. Environment
// overrides are applied after the file. The returned config has all path
// fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file).DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("checkrecon.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data, image, and export directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.ImageDir, c.Paths.ExportDir, filepath.Dir(c.Paths.DatabasePath)}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// PollInterval returns the idle wait of the polling loop.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Batch.PollInterval) * time.Second
}

// HeartbeatInterval returns how often an active batch is touched.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Batch.HeartbeatInterval) * time.Second
}

// HeartbeatTimeout returns the age after which an unfinished batch is
// considered abandoned.
func (c *Config) HeartbeatTimeout() time.Duration {
	return time.Duration(c.Batch.HeartbeatTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
