// Package container provides dependency injection and lifecycle management
// for the invoicing service.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/invoicing/internal/application/port"
	"github.com/garyjia/invoicing/internal/application/service"
	"github.com/garyjia/invoicing/internal/config"
	"github.com/garyjia/invoicing/internal/domain/entity"
	infraLark "github.com/garyjia/invoicing/internal/infrastructure/external/lark"
	"github.com/garyjia/invoicing/internal/infrastructure/external/mollie"
	"github.com/garyjia/invoicing/internal/infrastructure/external/warehouse"
	"github.com/garyjia/invoicing/internal/infrastructure/persistence/repository"
	"github.com/garyjia/invoicing/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/invoicing/internal/infrastructure/storage"
	"github.com/garyjia/invoicing/internal/infrastructure/worker"
	"github.com/garyjia/invoicing/internal/mt940"
	"github.com/garyjia/invoicing/pkg/database"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	SqlDB          *database.DB
	TransactionMgr *sqlite.DB
}

// ExternalBundle holds the clients of external collaborators.
type ExternalBundle struct {
	// Gateway is nil when the payment gateway is disabled
	Gateway  port.PaymentGateway
	Stock    port.StockAdjuster
	Mailer   port.InvoiceMailer
	Notifier port.OperatorNotifier
}

// ProvideDatabase opens the database and applies the embedded migrations.
func ProvideDatabase(cfg *config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(db, logger)
	if err := migrator.Run(database.Migrations()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		SqlDB:          db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Invoice:  repository.NewInvoiceRepository(db.DB, logger),
		Product:  repository.NewProductRepository(db.DB, logger),
		Payment:  repository.NewPaymentRepository(db.DB, logger),
		Platform: repository.NewPlatformRepository(db.DB, logger),
		Counter:  repository.NewCounterRepository(db.DB, logger),
		Gateway:  repository.NewGatewayTransactionRepository(db.DB, logger),
		Client:   repository.NewClientRepository(db.DB, logger),
		Company:  repository.NewCompanyRepository(db.DB, logger),
	}, nil
}

// ProvideExternalClients creates the gateway, warehouse and Lark clients.
// Disabled integrations get no-op implementations, except the gateway which
// stays nil so checkout requests fail with a configuration error. Invoice
// mail carries the document rendered by renderer.
func ProvideExternalClients(cfg *config.Config, renderer infraLark.DocumentRenderer, logger *zap.Logger) (*ExternalBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	bundle := &ExternalBundle{}

	if cfg.Mollie.Enabled {
		client, err := mollie.NewClient(mollie.Config{
			APIKey:  cfg.Mollie.APIKey,
			BaseURL: cfg.Mollie.BaseURL,
			Timeout: cfg.Mollie.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		bundle.Gateway = client
	} else {
		logger.Info("Payment gateway disabled")
	}

	if cfg.Warehouse.Enabled {
		bundle.Stock = warehouse.NewClient(warehouse.Config{
			BaseURL: cfg.Warehouse.BaseURL,
			APIKey:  cfg.Warehouse.APIKey,
			Timeout: cfg.Warehouse.Timeout,
		}, logger)
	} else {
		bundle.Stock = warehouse.NewNoopAdjuster(logger)
	}

	if cfg.Lark.Enabled {
		larkCfg := infraLark.Config{
			AppID:          cfg.Lark.AppID,
			AppSecret:      cfg.Lark.AppSecret,
			OperatorChatID: cfg.Lark.OperatorChatID,
		}
		messenger := infraLark.NewMessenger(infraLark.NewSDKClient(larkCfg, logger), larkCfg, renderer, logger)
		bundle.Mailer = messenger
		bundle.Notifier = messenger
	} else {
		noop := infraLark.NewNoopMessenger(logger)
		bundle.Mailer = noop
		bundle.Notifier = noop
	}

	return bundle, nil
}

// ProvideStorage creates the statement archive.
func ProvideStorage(cfg *config.StorageConfig, logger *zap.Logger) (port.StatementArchive, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	if cfg.StatementDir == "" {
		return nil, fmt.Errorf("storage statement dir is required")
	}
	return storage.NewLocalFileStorage(cfg.StatementDir, logger), nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Repos     *RepositoryBundle
	TxManager port.TransactionManager
	External  *ExternalBundle
	Archive   port.StatementArchive
	Config    *config.Config
	Now       func() time.Time
	Logger    *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.External == nil {
		return nil, fmt.Errorf("external clients are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}
	cfg := deps.Config
	serviceLogger := &zapLoggerAdapter{logger: deps.Logger}
	repos := deps.Repos

	clients := service.NewClientDirectory(repos.Client)

	sequences := service.NewSequenceService(repos.Invoice, repos.Counter, deps.TxManager, now, serviceLogger)

	invoices := service.NewInvoiceService(
		repos.Invoice,
		repos.Product,
		repos.Payment,
		repos.Company,
		clients,
		sequences,
		deps.External.Stock,
		deps.External.Mailer,
		deps.TxManager,
		service.InvoiceConfig{
			PaymentPeriod: cfg.Invoice.PaymentPeriod(),
			DefaultPrefix: cfg.Invoice.DefaultPrefix,
		},
		now,
		serviceLogger,
	)

	ledger := service.NewLedgerService(
		repos.Invoice,
		repos.Product,
		repos.Payment,
		repos.Platform,
		invoices,
		deps.TxManager,
		now,
		serviceLogger,
	)

	reconcile := service.NewReconcileService(
		mt940.NewParser(deps.Logger),
		repos.Invoice,
		ledger,
		deps.Archive,
		deps.External.Notifier,
		entity.PlatformIDEAL,
		now,
		serviceLogger,
	)

	gateway := service.NewGatewayService(
		deps.External.Gateway,
		repos.Gateway,
		repos.Invoice,
		ledger,
		deps.External.Notifier,
		deps.TxManager,
		service.GatewayConfig{
			PublicBaseURL: cfg.Mollie.PublicBaseURL,
			RedirectURL:   cfg.Mollie.RedirectURL,
			Currency:      cfg.Mollie.Currency,
		},
		now,
		serviceLogger,
	)

	return &ServiceBundle{
		Clients:   clients,
		Sequence:  sequences,
		Invoice:   invoices,
		Ledger:    ledger,
		Reconcile: reconcile,
		Gateway:   gateway,
	}, nil
}

// WorkerDeps holds dependencies required for creating workers.
type WorkerDeps struct {
	Services  *ServiceBundle
	WorkerCfg *config.WorkerConfig
	// GatewayEnabled registers the gateway sweeper
	GatewayEnabled bool
	Now            func() time.Time
	Logger         *zap.Logger
}

// ProvideWorkers creates and registers all background workers.
// Returns a *worker.Manager with all workers registered but not started.
func ProvideWorkers(deps *WorkerDeps) (*worker.Manager, error) {
	if deps == nil {
		return nil, fmt.Errorf("worker dependencies are required")
	}
	if deps.Services == nil {
		return nil, fmt.Errorf("services are required")
	}
	if deps.WorkerCfg == nil {
		return nil, fmt.Errorf("worker config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	manager := worker.NewManager(deps.Logger)

	if deps.GatewayEnabled {
		sweeper := worker.NewGatewaySweeper(worker.GatewaySweeperConfig{
			Schedule:   deps.WorkerCfg.GatewaySweepSchedule,
			StaleAfter: deps.WorkerCfg.GatewayStaleAfter,
		}, deps.Services.Gateway, now, deps.Logger)
		manager.Register(sweeper)
	}

	return manager, nil
}
