package app

import (
	"context"
	"fmt"
	"time"

	"github.com/upb/cluster-policy-builder/config"
	"github.com/upb/cluster-policy-builder/internal/observability"
	corepolicy "github.com/upb/cluster-policy-builder/internal/policy"
	"github.com/upb/cluster-policy-builder/repositories"
	"github.com/upb/cluster-policy-builder/repositories/memory"
	"github.com/upb/cluster-policy-builder/repositories/postgres"
	"github.com/upb/cluster-policy-builder/services/audit"
	catalogsvc "github.com/upb/cluster-policy-builder/services/catalog"
	"github.com/upb/cluster-policy-builder/services/policy"
	"github.com/upb/cluster-policy-builder/services/session"
	"github.com/upb/cluster-policy-builder/services/workspace"
	"go.uber.org/zap"
)

const auditStopTimeout = 10 * time.Second

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *postgres.DB // nil with the memory draft store
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Drafts    repositories.DraftRepository
	AuditLogs repositories.AuditRepository

	// Remote workspace and catalog
	Workspace     *workspace.Client
	Catalog       *catalogsvc.Service
	PolicyCatalog *corepolicy.Catalog
	Builder       *corepolicy.Builder

	// Services
	Coordinator *policy.Coordinator
	Audit       *audit.AuditService // nil when audit is disabled
	Sessions    *session.Service

	stopCh chan struct{}
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics(nil),
		stopCh:  make(chan struct{}),
	}

	// Initialize draft and audit storage
	if err := deps.initStorage(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Initialize workspace client and catalog cache
	deps.initWorkspace(cfg)

	// Initialize audit service
	if err := deps.initAudit(cfg); err != nil {
		deps.closeStorage()
		return nil, fmt.Errorf("failed to initialize audit: %w", err)
	}

	// Initialize editor services
	deps.initServices()

	deps.startWorkers(ctx, cfg)

	logger.Info("all dependencies initialized successfully",
		zap.String("draft_store", cfg.Drafts.Store),
		zap.String("workspace", deps.Workspace.Host()),
		zap.Bool("audit_enabled", deps.Audit != nil))
	return deps, nil
}

// initStorage opens PostgreSQL for the postgres draft store, or falls back
// to in-process repositories
func (d *Dependencies) initStorage(ctx context.Context, cfg *config.Config) error {
	if !cfg.UsesPostgres() {
		d.Drafts = memory.NewDraftRepository()
		d.AuditLogs = memory.NewAuditRepository()
		d.Logger.Info("using in-memory draft store")
		return nil
	}

	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	// Test the connection
	if err := d.DB.PingContext(ctx); err != nil {
		_ = factory.Close()
		return fmt.Errorf("database ping failed: %w", err)
	}

	if err := factory.InitSchema(ctx); err != nil {
		_ = factory.Close()
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	repos := factory.NewRepositories()
	d.Drafts = repos.Drafts
	d.AuditLogs = repos.AuditLogs

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))

	return nil
}

func (d *Dependencies) initWorkspace(cfg *config.Config) {
	d.Workspace = workspace.NewClient(workspace.Config{
		Host:    cfg.Workspace.Host,
		Token:   cfg.Workspace.Token,
		Timeout: cfg.Workspace.Timeout,
	}, d.Metrics, d.Logger)

	d.Catalog = catalogsvc.NewService(d.Workspace, d.Workspace, catalogsvc.Config{
		MaxEntries:   cfg.Catalog.MaxEntries,
		TTL:          cfg.Catalog.TTL,
		FetchTimeout: cfg.Workspace.Timeout,
	}, d.Metrics, d.Logger)

	d.PolicyCatalog = corepolicy.DefaultCatalog()
	d.Builder = corepolicy.NewBuilder(d.PolicyCatalog, d.Catalog)
}

func (d *Dependencies) initAudit(cfg *config.Config) error {
	if !cfg.Audit.Enabled {
		d.Logger.Warn("audit disabled, editor events will not be recorded")
		return nil
	}

	auditCfg := audit.DefaultConfig()
	auditCfg.BufferSize = cfg.Audit.BufferSize
	auditCfg.WorkerCount = cfg.Audit.WorkerCount
	auditCfg.BatchSize = cfg.Audit.BatchSize
	auditCfg.FlushInterval = cfg.Audit.FlushInterval

	svc := audit.NewAuditService(d.AuditLogs, d.Metrics, d.Logger, auditCfg)
	if err := svc.Start(); err != nil {
		return err
	}
	d.Audit = svc
	return nil
}

func (d *Dependencies) initServices() {
	d.Coordinator = policy.NewCoordinator(d.Workspace, d.Catalog, d.PolicyCatalog, d.Metrics, d.Logger)

	// A nil *AuditService must not reach the interface as a typed nil
	var recorder session.AuditRecorder
	if d.Audit != nil {
		recorder = d.Audit
	}
	d.Sessions = session.NewService(d.Drafts, d.Builder, d.Coordinator, recorder, d.Metrics, d.Logger)
}

// startWorkers launches the background cleanup loops. They exit when Close
// is called.
func (d *Dependencies) startWorkers(ctx context.Context, cfg *config.Config) {
	if cfg.Catalog.CleanupInterval > 0 {
		go d.Catalog.StartCleanupWorker(cfg.Catalog.CleanupInterval, d.stopCh)
	}
	if cfg.Drafts.CleanupInterval > 0 && cfg.Drafts.MaxAge > 0 {
		d.Sessions.StartCleanupWorker(cfg.Drafts.CleanupInterval, cfg.Drafts.MaxAge, d.stopCh)
	}
	if cfg.Catalog.WarmOnStart {
		go func() {
			if err := d.Catalog.Warm(ctx); err != nil {
				d.Logger.Warn("catalog warm-up failed", zap.Error(err))
			}
		}()
	}
}

func (d *Dependencies) closeStorage() {
	if d.RepoFactory != nil {
		_ = d.RepoFactory.Close()
	}
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.stopCh != nil {
		close(d.stopCh)
		d.stopCh = nil
	}

	// Flush queued audit events before the database goes away
	if d.Audit != nil {
		timeout := auditStopTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.Audit.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	// Close database connection
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
