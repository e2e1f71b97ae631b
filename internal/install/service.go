package install

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plumeworks/plume/internal/auth"
	"github.com/plumeworks/plume/internal/config"
	"github.com/plumeworks/plume/internal/lock"
	"github.com/plumeworks/plume/internal/model"
	"github.com/plumeworks/plume/internal/storage"
)

// Composite lock operation names. One named operation runs at most once at
// a time, in-process and best-effort across instances.
const (
	OpDatabaseInit = "database_initialization"
	OpCreateAdmin  = "create_admin_user"
	OpComplete     = "complete_installation"
)

// Lock budgets per operation. Bootstrap gets a generous TTL because schema
// creation and seeding take seconds on slow stores.
const (
	initLockWait  = 30 * time.Second
	initLockTTL   = 90 * time.Second
	adminLockWait = 10 * time.Second
	adminLockTTL  = 30 * time.Second
	tokenTTL      = 24 * time.Hour
)

// Service is the process-scoped install coordinator. Exactly one Service
// is constructed at startup and injected everywhere installation state is
// needed; it owns the lock set, the marker files, and the (lazily opened)
// database pool, so no package-level mutable state exists.
type Service struct {
	cfg     *config.Manager
	markers *Markers
	gates   *lock.Gates
	coord   *lock.Coordinator
	locks   *lock.Composite
	logger  *slog.Logger

	dbMu  sync.Mutex
	db    *storage.DB
	dbDSN string // DSN the current pool was opened against

	restartMu        sync.Mutex
	restartRequested bool
	restartDelay     time.Duration
	shutdown         func()
}

// Options configures a Service.
type Options struct {
	Config  *config.Manager
	DataDir string
	Logger  *slog.Logger

	// Shutdown is invoked (after RestartDelay) when a restart is
	// triggered. The host wires this to its graceful-stop function.
	Shutdown     func()
	RestartDelay time.Duration
}

// NewService constructs the install coordinator.
func NewService(opts Options) *Service {
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = 3 * time.Second
	}
	gates := lock.NewGates()
	coord := lock.NewCoordinator(nil, uuid.New().String(), opts.Logger)
	return &Service{
		cfg:          opts.Config,
		markers:      NewMarkers(opts.DataDir),
		gates:        gates,
		coord:        coord,
		locks:        lock.NewComposite(gates, coord, opts.Logger),
		logger:       opts.Logger,
		restartDelay: opts.RestartDelay,
		shutdown:     opts.Shutdown,
	}
}

// Markers exposes the marker files, mainly for the completion handler and
// tests.
func (s *Service) Markers() *Markers { return s.markers }

// Config exposes the configuration manager.
func (s *Service) Config() *config.Manager { return s.cfg }

// database returns a pool for the currently configured store, opening one
// lazily and reopening when the connection string changed. The coordinator
// is pointed at the new pool so distributed locking engages as soon as a
// store exists.
func (s *Service) database(ctx context.Context) (*storage.DB, error) {
	doc, err := s.cfg.Peek()
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return nil, Validationf("database is not configured yet")
		}
		return nil, Validationf("configuration is invalid: %v", err)
	}

	s.dbMu.Lock()
	defer s.dbMu.Unlock()

	dsn := doc.Database.ConnectionString
	if s.db != nil && s.dbDSN == dsn {
		return s.db, nil
	}
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}

	db, err := storage.New(ctx, dsn, s.logger)
	if err != nil {
		return nil, Connectivity("cannot reach the database", err)
	}
	s.db = db
	s.dbDSN = dsn
	s.coord.SetStore(db)
	return db, nil
}

// TestDatabase validates a candidate database configuration and tests
// connectivity without persisting anything.
func (s *Service) TestDatabase(ctx context.Context, req model.DatabaseConfigRequest) error {
	doc := config.Document{}
	doc.Database.Provider = req.Provider
	doc.Database.ConnectionString = req.ConnectionString
	doc.Secrets.Key = "probe" // satisfy whole-document validation
	if err := doc.Validate(); err != nil {
		return Validationf("invalid database configuration: %v", err)
	}
	if err := storage.TestConnection(ctx, req.ConnectionString); err != nil {
		return Connectivity("database connection test failed", err)
	}
	return nil
}

// SaveDatabaseConfig validates, connection-tests, and persists the
// database section of the installation document. A fresh document gets a
// generated secret key; an existing one keeps its secrets and server
// sections. Cross-process coordination is not used here — config writes
// are rare and wizard-driven, and the manager serializes them in-process.
func (s *Service) SaveDatabaseConfig(ctx context.Context, req model.DatabaseConfigRequest) error {
	if err := s.TestDatabase(ctx, req); err != nil {
		return err
	}

	doc := &config.Document{}
	if existing, err := s.cfg.Peek(); err == nil {
		doc = existing
	}
	doc.Database.Provider = req.Provider
	doc.Database.ConnectionString = req.ConnectionString
	if doc.Secrets.Key == "" {
		key, err := generateSecretKey()
		if err != nil {
			return Internal("generate secret key", err)
		}
		doc.Secrets.Key = key
	}
	if doc.Logging.Level == "" {
		doc.Logging.Level = "info"
	}

	if err := s.cfg.Save(doc); err != nil {
		return Internal("save configuration", err)
	}
	return nil
}

// Complete records the installation as finished. It verifies that the
// database is initialized and an admin exists, then writes the
// installation marker — the only thing that ever sets is_installed.
func (s *Service) Complete(ctx context.Context, req model.CompleteRequest) error {
	if s.markers.Installed() {
		return Conflictf("installation is already complete")
	}

	h, err := s.locks.Acquire(ctx, OpComplete, adminLockWait, adminLockTTL)
	if err != nil {
		return lockError(err)
	}
	defer h.Release(ctx)

	if s.markers.Installed() {
		return Conflictf("installation is already complete")
	}
	if !s.markers.DBInitialized() {
		return Validationf("database has not been initialized")
	}

	db, err := s.database(ctx)
	if err != nil {
		return err
	}
	hasAdmin, err := db.HasRoleAssignment(ctx, model.RoleAdmin)
	if err != nil {
		return Integrity("cannot verify admin account", err)
	}
	if !hasAdmin {
		return Validationf("no admin account exists yet")
	}

	marker := InstallationMarker{
		InstalledAt: time.Now().UTC(),
		SiteName:    req.SiteName,
		AdminEmail:  req.AdminEmail,
	}
	if err := s.markers.WriteInstallation(marker); err != nil {
		return Internal("write installation marker", err)
	}
	s.logger.Info("installation complete", "site_name", req.SiteName)
	return nil
}

// PingDatabase checks connectivity to the configured store. Used by the
// health endpoint.
func (s *Service) PingDatabase(ctx context.Context) error {
	db, err := s.database(ctx)
	if err != nil {
		return err
	}
	return db.Ping(ctx)
}

// CleanupExpiredLocks reaps expired distributed lock records. Safe to call
// periodically; a no-op until a store exists.
func (s *Service) CleanupExpiredLocks(ctx context.Context) {
	s.coord.CleanupExpired(ctx)
}

// Close releases the database pool if one was opened.
func (s *Service) Close() {
	s.dbMu.Lock()
	defer s.dbMu.Unlock()
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
}

// tokenManager builds a TokenManager from the current document's secret.
func (s *Service) tokenManager() (*auth.TokenManager, error) {
	doc, err := s.cfg.Peek()
	if err != nil {
		return nil, fmt.Errorf("install: load config for token issuance: %w", err)
	}
	return auth.NewTokenManager(doc.Secrets.Key, tokenTTL)
}

// lockError converts lock acquisition failures into conflict errors; the
// taxonomy treats "busy" as retry-later. The lock sentinel stays wrapped
// so the API layer can report busy distinctly from other conflicts.
func lockError(err error) error {
	switch {
	case errors.Is(err, lock.ErrBusy):
		return &Error{Kind: KindConflict, msg: "operation already in progress, try again shortly", err: err}
	case errors.Is(err, lock.ErrHeldElsewhere):
		return &Error{Kind: KindConflict, msg: "operation in progress on another instance, try again shortly", err: err}
	default:
		return Internal("acquire lock", err)
	}
}

func generateSecretKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
