package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/garyjia/travel-review/internal/application/dispatcher"
	"github.com/garyjia/travel-review/internal/application/port"
	"github.com/garyjia/travel-review/internal/application/service"
	"github.com/garyjia/travel-review/internal/infrastructure/metrics"
	"github.com/garyjia/travel-review/internal/infrastructure/notify"
	"github.com/garyjia/travel-review/internal/infrastructure/persistence/repository"
	"github.com/garyjia/travel-review/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/travel-review/internal/infrastructure/worker"
	"github.com/garyjia/travel-review/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// Components start in dependency order and are torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	raw          *database.DB
	db           *sqlite.DB
	repositories *RepositoryBundle

	// Infrastructure - Delivery
	notifier *notify.MultiNotifier
	natsConn *nats.Conn
	queue    port.NoticeQueue
	metrics  *metrics.Metrics

	// Application
	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle

	// Workers
	workers *worker.Manager

	// Lifecycle
	mu     sync.Mutex
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Review          service.Repositories
	NotificationLog port.NotificationLogRepository
	Org             *repository.OrgRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Requests     service.RequestService
	Trips        service.TripService
	Notification service.NotificationService
	Consistency  service.ConsistencyService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components. Components are initialized in dependency order:
// 1. Database and repositories
// 2. Delivery channels, queue and metrics
// 3. Event dispatcher
// 4. Application services and their event handlers
// Background workers are started separately with StartWorkers.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	if err := c.initDelivery(); err != nil {
		c.closeResources()
		return fmt.Errorf("failed to initialize notification delivery: %w", err)
	}
	c.logger.Info("Notification delivery initialized", zap.Strings("channels", c.notifier.Channels()), zap.Bool("queued", c.queue != nil))

	disp, err := ProvideDispatcher(c.logger.Named("dispatcher"))
	if err != nil {
		c.closeResources()
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}
	c.dispatcher = disp

	if err := c.initServices(); err != nil {
		c.closeResources()
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	workers, err := ProvideWorkers(&WorkerDeps{
		Conn:      c.natsConn,
		Queue:     &c.config.Queue,
		Deliverer: c.services.Notification,
		Logger:    c.logger,
	})
	if err != nil {
		c.closeResources()
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	c.workers = workers

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// StartWorkers starts the background workers, the NATS notice relay when
// the queue is enabled.
func (c *Container) StartWorkers(ctx context.Context) error {
	if !c.ready.Load() {
		return fmt.Errorf("container not started")
	}
	return c.workers.StartAll(ctx)
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}

	// Waits for in-flight notice deliveries
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if err := c.closeResources(); err != nil {
		errs = append(errs, err)
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return errors.Join(errs...)
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// closeResources releases the NATS connection and the database
func (c *Container) closeResources() error {
	if c.natsConn != nil {
		if err := c.natsConn.Drain(); err != nil {
			c.logger.Warn("Failed to drain NATS connection", zap.Error(err))
			c.natsConn.Close()
		}
		c.natsConn = nil
	}

	if c.raw != nil {
		err := c.raw.Close()
		c.raw = nil
		if err != nil {
			return fmt.Errorf("close database: %w", err)
		}
	}
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health() *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	if c.raw != nil {
		if err := c.raw.Ping(); err != nil {
			status.Components["database"] = ComponentHealth{Healthy: false, Message: fmt.Sprintf("ping failed: %v", err)}
			status.Overall = false
		} else {
			status.Components["database"] = ComponentHealth{Healthy: true}
		}
	} else {
		status.Components["database"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	if c.natsConn != nil {
		connected := c.natsConn.IsConnected()
		status.Components["queue"] = ComponentHealth{Healthy: connected, Message: c.natsConn.Status().String()}
		if !connected {
			status.Overall = false
		}
	}

	if c.workers != nil {
		status.Components["workers"] = ComponentHealth{
			Healthy: c.workers.Count() == 0 || c.workers.IsRunning(),
			Message: fmt.Sprintf("worker count: %d", c.workers.Count()),
		}
	}

	if c.dispatcher == nil {
		status.Components["dispatcher"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	} else {
		status.Components["dispatcher"] = ComponentHealth{Healthy: true}
	}

	return status
}

// initDatabase initializes the database and all repositories using providers.
func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.raw = dbBundle.Raw
	c.db = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.db, c.logger)
	if err != nil {
		c.closeResources()
		return err
	}
	c.repositories = repos
	return nil
}

// initDelivery builds the notifier, the optional queue and metrics.
func (c *Container) initDelivery() error {
	notifier, err := ProvideNotifier(&c.config.Notify, c.logger.Named("notify"))
	if err != nil {
		return err
	}
	c.notifier = notifier

	conn, q, err := ProvideQueue(&c.config.Queue, c.logger.Named("queue"))
	if err != nil {
		return err
	}
	c.natsConn = conn
	c.queue = q

	c.metrics = metrics.New()
	return nil
}

// initServices creates the services and subscribes their handlers.
func (c *Container) initServices() error {
	services, err := ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		Policy:     ProvidePolicy(&c.config.Review),
		Dispatcher: c.dispatcher,
		Notifier:   c.notifier,
		Queue:      c.queue,
		Metrics:    c.metrics,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services

	RegisterHandlers(c.dispatcher, services, c.metrics)
	return nil
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Metrics returns the Prometheus metrics.
func (c *Container) Metrics() *metrics.Metrics {
	return c.metrics
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.Manager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// ServiceLogger adapts the container logger to the key-value Logger used by
// the services and the HTTP layer.
func (c *Container) ServiceLogger(name string) service.Logger {
	return &zapLoggerAdapter{logger: c.logger.Named(name)}
}

// zapLoggerAdapter adapts zap.Logger to the key-value Logger interfaces
// of the service, dispatcher and http packages.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
