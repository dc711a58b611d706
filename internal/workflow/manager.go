package workflow

import (
	"log/slog"
	"sync"
	"time"

	"checkrecon/internal/config"
	"checkrecon/internal/logging"
	"checkrecon/internal/notifications"
	"checkrecon/internal/records"
)

// Manager coordinates batch processing using registered stage handlers.
type Manager struct {
	cfg          *config.Config
	store        *records.Store
	logger       *slog.Logger
	notifier     notifications.Service
	pollInterval time.Duration

	heartbeat *HeartbeatMonitor
	stages    []pipelineStage

	mu         sync.RWMutex
	running    bool
	cancel     func()
	wg         sync.WaitGroup
	lastErr    error
	lastReport *Report
}

// NewManager constructs a workflow manager that notifies through the
// configured ntfy topic.
func NewManager(cfg *config.Config, store *records.Store, logger *slog.Logger) *Manager {
	return NewManagerWithNotifier(cfg, store, logger, notifications.NewService(cfg.Notifications))
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier.
func NewManagerWithNotifier(cfg *config.Config, store *records.Store, logger *slog.Logger, notifier notifications.Service) *Manager {
	logger = logging.NewComponentLogger(logger, "workflow")
	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		notifier:     notifier,
		pollInterval: cfg.PollInterval(),
		heartbeat:    NewHeartbeatMonitor(store, logger, cfg.HeartbeatInterval(), cfg.HeartbeatTimeout()),
	}
}

// ConfigureStages registers the stage handlers in pipeline order. The
// finalize step is always appended.
func (m *Manager) ConfigureStages(set StageSet) {
	candidates := []pipelineStage{
		{name: "download", handler: set.Download, done: records.StatusDownloaded},
		{name: "convert", handler: set.Convert, done: records.StatusConverted},
		{name: "imagesave", handler: set.ImageSave, done: records.StatusRawImageSaved},
		{name: "extract", handler: set.Extract, done: records.StatusTextExtracted},
		{name: "payee", handler: set.Payee, done: records.StatusPayeeMatchAttempted},
	}
	stages := make([]pipelineStage, 0, len(candidates)+1)
	for _, stg := range candidates {
		if stg.handler != nil {
			stages = append(stages, stg)
		}
	}
	stages = append(stages, pipelineStage{
		name:    "finalize",
		handler: newFinalizer(m.store),
		done:    records.StatusProcessed,
	})

	m.mu.Lock()
	m.stages = stages
	m.mu.Unlock()
}

func (m *Manager) stageList() []pipelineStage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]pipelineStage, len(m.stages))
	copy(out, m.stages)
	return out
}
