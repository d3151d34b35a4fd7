package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"fieldtag/internal/config"
	"fieldtag/internal/logging"
	"fieldtag/internal/notifications"
	"fieldtag/internal/objectstore"
	"fieldtag/internal/store"
)

// Run starts the fieldtag daemon runtime loop and blocks until the context
// is cancelled or a termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "fieldtagd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}
	defer st.Close()

	objects, err := objectstore.NewFromConfig(cfg)
	if err != nil {
		logger.Error("init object store", logging.Error(err))
		return err
	}

	notifier := notifications.NewService(cfg)
	d, err := New(cfg, st, objects, logger, notifier)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return err
	}
	if srv != nil {
		if err := srv.start(signalCtx); err != nil {
			return err
		}
		defer srv.stop()
	}

	<-signalCtx.Done()
	logger.Info("fieldtag daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
