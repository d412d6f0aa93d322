package container

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/garyjia/travel-review/internal/application/dispatcher"
	"github.com/garyjia/travel-review/internal/application/port"
	"github.com/garyjia/travel-review/internal/application/service"
	"github.com/garyjia/travel-review/internal/domain/chain"
	"github.com/garyjia/travel-review/internal/domain/event"
	infraLark "github.com/garyjia/travel-review/internal/infrastructure/external/lark"
	"github.com/garyjia/travel-review/internal/infrastructure/metrics"
	"github.com/garyjia/travel-review/internal/infrastructure/notify"
	"github.com/garyjia/travel-review/internal/infrastructure/persistence/repository"
	"github.com/garyjia/travel-review/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/travel-review/internal/infrastructure/queue"
	"github.com/garyjia/travel-review/internal/infrastructure/worker"
	"github.com/garyjia/travel-review/migrations"
	"github.com/garyjia/travel-review/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Raw            *database.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the database and applies pending embedded migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	raw, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if _, err := database.NewMigrator(raw, logger).RunMigrations(migrations.FS); err != nil {
		raw.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		Raw:            raw,
		TransactionMgr: sqlite.NewDB(raw.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories on top of the transaction manager.
func ProvideRepositories(db *sqlite.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Review: service.Repositories{
			Requests:      repository.NewRequestRepository(db.DB, logger),
			Travellers:    repository.NewTravellerRepository(db.DB, logger),
			Reviewers:     repository.NewReviewerRepository(db.DB, logger),
			Trips:         repository.NewTripRepository(db.DB, logger),
			TripReviewers: repository.NewTripReviewerRepository(db.DB, logger),
			History:       repository.NewHistoryRepository(db.DB, logger),
		},
		NotificationLog: repository.NewNotificationLogRepository(db.DB, logger),
		Org:             repository.NewOrgRepository(db, logger),
	}, nil
}

// ProvidePolicy turns review configuration into the service policy.
func ProvidePolicy(cfg *ReviewConfig) service.Policy {
	return service.Policy{
		Builder:    chain.NewBuilder(chain.DefaultSkipRules(), cfg.RegionReviewers),
		Seeker:     chain.NewSeeker(nil),
		CostGuard:  chain.NewCostGuard(cfg.CostWarningThreshold, cfg.TravelAdminEmails, nil),
		AdminIDs:   cfg.AdminUserIDs,
		LateWindow: cfg.LateSubmissionWindow,
	}
}

// ProvideNotifier builds the enabled delivery channels behind one fan-out
// notifier. With no channel enabled notices are written to the log.
func ProvideNotifier(cfg *NotifyConfig, logger *zap.Logger) (*notify.MultiNotifier, error) {
	renderer, err := notify.NewRenderer(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to build message templates: %w", err)
	}

	var channels []notify.Channel
	if cfg.SMTPEnabled {
		dialer := notify.NewSMTPDialer(notify.SMTPConfig{
			Host:          cfg.SMTPHost,
			Port:          cfg.SMTPPort,
			Username:      cfg.SMTPUsername,
			Password:      cfg.SMTPPassword,
			From:          cfg.SMTPFrom,
			SkipTLSVerify: cfg.SMTPSkipTLSVerify,
		})
		channels = append(channels, notify.NewEmailNotifier(cfg.SMTPFrom, dialer, renderer, logger))
	}
	if cfg.LarkEnabled {
		client := infraLark.NewSDKClient(infraLark.Config{
			AppID:     cfg.LarkAppID,
			AppSecret: cfg.LarkAppSecret,
		}, logger)
		channels = append(channels, infraLark.NewMessenger(client, renderer, logger))
	}
	if len(channels) == 0 {
		logger.Warn("No notification channel enabled, notices will only be logged")
		channels = append(channels, notify.NewLogChannel(renderer, logger))
	}

	return notify.NewMultiNotifier(logger, channels...), nil
}

// ProvideQueue connects to NATS when the queue is enabled. Both results
// are nil when it is not.
func ProvideQueue(cfg *QueueConfig, logger *zap.Logger) (*nats.Conn, port.NoticeQueue, error) {
	if !cfg.Enabled {
		return nil, nil, nil
	}

	conn, err := queue.Connect(queue.Config{URL: cfg.URL, Subject: cfg.Subject, Queue: cfg.Queue}, logger)
	if err != nil {
		return nil, nil, err
	}
	return conn, queue.NewNATSQueue(conn, cfg.Subject, logger), nil
}

// handlerTimeout bounds one inline notice delivery
const handlerTimeout = 30 * time.Second

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(&zapLoggerAdapter{logger: logger}),
		dispatcher.WithHandlerTimeout(handlerTimeout),
	), nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Policy     service.Policy
	Dispatcher dispatcher.Dispatcher
	Notifier   port.Notifier
	Queue      port.NoticeQueue
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}

	serviceLogger := &zapLoggerAdapter{logger: deps.Logger.Named("service")}

	opts := []service.NotificationOption{}
	if deps.Queue != nil {
		opts = append(opts, service.WithQueue(deps.Queue))
	}
	if deps.Metrics != nil {
		opts = append(opts, service.WithNotificationMetrics(deps.Metrics))
	}

	return &ServiceBundle{
		Requests: service.NewRequestService(
			deps.Repos.Review,
			deps.Repos.Org,
			deps.TxManager,
			deps.Policy,
			deps.Dispatcher,
			serviceLogger,
		),
		Trips: service.NewTripService(
			deps.Repos.Review,
			deps.Repos.Org,
			deps.TxManager,
			deps.Policy,
			deps.Dispatcher,
			serviceLogger,
		),
		Notification: service.NewNotificationService(
			deps.Repos.Org,
			deps.Notifier,
			deps.Repos.NotificationLog,
			serviceLogger,
			opts...,
		),
		Consistency: service.NewConsistencyService(
			deps.Repos.Review,
			deps.TxManager,
			deps.Policy,
			deps.Dispatcher,
			serviceLogger,
		),
	}, nil
}

// RegisterHandlers subscribes notification delivery and metrics to the dispatcher.
func RegisterHandlers(d dispatcher.Dispatcher, services *ServiceBundle, m *metrics.Metrics) {
	d.SubscribeAll(event.NoticeTypes(), "notification.deliver", services.Notification.HandleEvent)

	if m != nil {
		d.SubscribeAll([]event.Type{event.TypeRequestStatusChanged, event.TypeTripStatusChanged}, "metrics.transitions", m.HandleStatusChange)
		d.SubscribeNamed(event.TypeTripCostWarning, "metrics.cost_warnings", m.HandleCostWarning)
	}
}

// WorkerDeps holds dependencies required for creating workers.
type WorkerDeps struct {
	Conn      *nats.Conn
	Queue     *QueueConfig
	Deliverer worker.Deliverer
	Logger    *zap.Logger
}

// ProvideWorkers creates the worker manager. The notice relay is registered
// only when a NATS connection exists.
func ProvideWorkers(deps *WorkerDeps) (*worker.Manager, error) {
	if deps == nil || deps.Logger == nil {
		return nil, fmt.Errorf("worker dependencies are required")
	}

	manager := worker.NewManager(deps.Logger.Named("worker"))
	if deps.Conn != nil {
		relayCfg := worker.DefaultNoticeRelayConfig()
		if deps.Queue != nil {
			if deps.Queue.Subject != "" {
				relayCfg.Subject = deps.Queue.Subject
			}
			if deps.Queue.Queue != "" {
				relayCfg.Queue = deps.Queue.Queue
			}
		}
		manager.Register(worker.NewNoticeRelay(relayCfg, deps.Conn, deps.Deliverer, deps.Logger.Named("relay")))
	}
	return manager, nil
}
