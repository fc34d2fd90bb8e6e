package workflow

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"newsreel/internal/config"
	"newsreel/internal/logging"
	"newsreel/internal/notifications"
	"newsreel/internal/queue"
)

// Manager coordinates queue processing using registered stage executors.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	notifier     notifications.Service
	owner        string
	pollInterval time.Duration

	mu       sync.RWMutex
	stages   []pipelineStage
	running  bool
	cancel   func()
	wg       sync.WaitGroup
	lastErr  error
	lastJob  *queue.Job
	lastRun  RunReport
	runCount int
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithOwner sets the lease owner ID. Each manager sharing a store needs a
// distinct owner; the default is a random UUID.
func WithOwner(owner string) ManagerOption {
	return func(m *Manager) {
		if owner != "" {
			m.owner = owner
		}
	}
}

// WithNotifier replaces the notification service built from config.
func WithNotifier(notifier notifications.Service) ManagerOption {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// NewManager constructs a new workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		notifier:     notifications.NewService(cfg),
		owner:        "newsreel-" + uuid.NewString(),
		pollInterval: cfg.Workflow.PollIntervalDuration(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.pollInterval <= 0 {
		m.pollInterval = 15 * time.Second
	}
	m.logger = logging.NewComponentLogger(m.logger, "workflow-manager").With(
		logging.String(logging.FieldLeaseOwner, m.owner),
	)
	return m
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Manager {
	return NewManager(cfg, store, logger, WithNotifier(notifier))
}

// Owner returns the lease owner ID this manager claims jobs under.
func (m *Manager) Owner() string {
	return m.owner
}
