package config

const (
	defaultConfigPath               = "~/.config/checkrecon/config.toml"
	defaultDataDir                  = "~/.local/share/checkrecon"
	defaultDatabaseName             = "checkrecon.db"
	defaultLockName                 = "claim.lock"
	defaultBatchSize                = 25
	defaultPollInterval             = 5
	defaultHeartbeatInterval        = 15
	defaultHeartbeatTimeout         = 120
	defaultConfirmThreshold         = 90
	defaultReviewThreshold          = 70
	defaultWindowPadding            = 2
	defaultAcquisitionMode          = AcquisitionDirectory
	defaultDocumentPath             = "/checks/{account}/{check}.pdf"
	defaultAcquisitionTimeout       = 60
	defaultAcquisitionRetryAttempts = 3
	defaultUserAgent                = "checkrecon/dev"
	defaultRasterizeBinary          = "pdftoppm"
	defaultRasterizeDPI             = 300
	defaultRasterizeTimeout         = 120
	defaultRecognitionBinary        = "tesseract"
	defaultRecognitionLanguage      = "eng"
	defaultRecognitionPSM           = 3
	defaultRecognitionTimeout       = 120
	defaultNotifyTimeout            = 10
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
)

// Acquisition modes.
const (
	AcquisitionHTTP      = "http"
	AcquisitionDirectory = "directory"
)

// Default returns a Config populated with repository defaults. Paths derived
// from data_dir are filled in during normalization.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
		},
		Batch: Batch{
			Size:              defaultBatchSize,
			PollInterval:      defaultPollInterval,
			HeartbeatInterval: defaultHeartbeatInterval,
			HeartbeatTimeout:  defaultHeartbeatTimeout,
		},
		Matching: Matching{
			ConfirmThreshold: defaultConfirmThreshold,
			ReviewThreshold:  defaultReviewThreshold,
			WindowPadding:    defaultWindowPadding,
		},
		Acquisition: Acquisition{
			Mode:           defaultAcquisitionMode,
			DocumentPath:   defaultDocumentPath,
			TimeoutSeconds: defaultAcquisitionTimeout,
			RetryAttempts:  defaultAcquisitionRetryAttempts,
			UserAgent:      defaultUserAgent,
		},
		Rasterize: Rasterize{
			Binary:         defaultRasterizeBinary,
			DPI:            defaultRasterizeDPI,
			TimeoutSeconds: defaultRasterizeTimeout,
		},
		Recognition: Recognition{
			Binary:               defaultRecognitionBinary,
			Language:             defaultRecognitionLanguage,
			PageSegmentationMode: defaultRecognitionPSM,
			TimeoutSeconds:       defaultRecognitionTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
