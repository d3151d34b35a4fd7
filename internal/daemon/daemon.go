package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"fieldtag/internal/api"
	"fieldtag/internal/assign"
	"fieldtag/internal/catalog"
	"fieldtag/internal/config"
	"fieldtag/internal/ingest"
	"fieldtag/internal/logging"
	"fieldtag/internal/notifications"
	"fieldtag/internal/objectstore"
	"fieldtag/internal/preflight"
	"fieldtag/internal/schema"
	"fieldtag/internal/staging"
	"fieldtag/internal/store"
)

// Daemon coordinates the ingestion and tagging services and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	objects  objectstore.Store
	notifier notifications.Service

	catalog *catalog.Catalog
	engine  *assign.Engine
	parser  *ingest.Parser
	recon   *ingest.Reconciler

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	preflight []preflight.Result
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, objects objectstore.Store, logger *slog.Logger, notifier notifications.Service) (*Daemon, error) {
	if cfg == nil || st == nil || objects == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, object store, and logger")
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	validator := schema.NewValidator()
	lockPath := filepath.Join(cfg.Paths.DataDir, "fieldtagd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		objects:  objects,
		notifier: notifier,
		catalog:  catalog.New(st, objects, logger),
		engine:   assign.NewEngine(st, validator, logger),
		parser:   ingest.NewParser(st, validator, cfg, logger),
		recon:    ingest.NewReconciler(st, objects, cfg, logger),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, sweeps stale ingestion scratch
// directories, and records preflight results.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another fieldtag daemon instance is already running")
	}

	maxAge := time.Duration(d.cfg.Ingest.ScratchMaxAgeHours) * time.Hour
	if maxAge > 0 {
		swept := staging.CleanStale(ctx, d.cfg.Paths.StagingDir, maxAge, d.logger)
		if len(swept.Removed) > 0 || len(swept.Errors) > 0 {
			d.logger.Info("staging sweep finished",
				logging.Int("removed", len(swept.Removed)),
				logging.Int("errors", len(swept.Errors)),
			)
		}
	}

	d.preflight = preflight.RunAll(ctx, d.cfg, d.objects)
	for _, check := range d.preflight {
		if check.Passed {
			continue
		}
		d.logger.Warn("preflight check failed",
			logging.String("check", check.Name),
			logging.String("detail", check.Detail),
		)
		if err := d.notifier.NotifyError(ctx, errors.New(check.Detail), check.Name); err != nil {
			d.logger.Warn("notify preflight failure", logging.Error(err))
		}
	}

	d.running.Store(true)
	d.logger.Info("fieldtag daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("fieldtag daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status aggregates daemon runtime information.
func (d *Daemon) Status(ctx context.Context) (api.DaemonStatus, error) {
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		StorePath:    d.store.Path(),
		LockFilePath: d.lockPath,
	}
	for _, check := range d.preflight {
		status.Preflight = append(status.Preflight, api.PreflightCheck{
			Name:   check.Name,
			Passed: check.Passed,
			Detail: check.Detail,
		})
	}

	entries, err := d.store.ListEntries(ctx)
	if err != nil {
		return status, fmt.Errorf("list entries: %w", err)
	}
	status.Entries = len(entries)

	studies, err := d.store.ListStudies(ctx)
	if err != nil {
		return status, fmt.Errorf("list studies: %w", err)
	}
	status.Studies = len(studies)

	rows, err := d.store.ListStagingRows(ctx)
	if err != nil {
		return status, fmt.Errorf("list staging rows: %w", err)
	}
	status.StagingRows = len(rows)
	return status, nil
}
