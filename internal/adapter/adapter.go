// Package adapter assembles the filesystem: namespace table, dispatcher,
// metrics, and the kernel mount, owned explicitly rather than as process
// globals.
package adapter

import (
	"context"
	"fmt"
	"os"

	"github.com/spoolfs/spoolfs/internal/config"
	"github.com/spoolfs/spoolfs/internal/dispatch"
	"github.com/spoolfs/spoolfs/internal/fuse"
	"github.com/spoolfs/spoolfs/internal/metrics"
	"github.com/spoolfs/spoolfs/internal/namespace"
	"github.com/spoolfs/spoolfs/pkg/utils"
)

// Adapter owns every component of a running SpoolFS instance.
type Adapter struct {
	mountPoint string
	config     *config.Configuration
	logger     *utils.Logger

	table      *namespace.Table
	dispatcher *dispatch.Dispatcher
	collector  *metrics.Collector
	mount      *fuse.MountManager
}

// New creates an adapter for the given mount point.
func New(mountPoint string, cfg *config.Configuration, logger *utils.Logger) (*Adapter, error) {
	if mountPoint == "" {
		return nil, fmt.Errorf("mount point cannot be empty")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Adapter{
		mountPoint: mountPoint,
		config:     cfg,
		logger:     logger.WithComponent("adapter"),
	}, nil
}

// Start builds the component graph, starts metrics, and mounts.
func (a *Adapter) Start(ctx context.Context) error {
	threshold, err := a.config.ThresholdBytes()
	if err != nil {
		return err
	}
	maxWrite, err := a.config.MaxWriteBytes()
	if err != nil {
		return err
	}

	scratchDir := a.config.ScratchDir()
	if err := os.MkdirAll(scratchDir, 0700); err != nil {
		return fmt.Errorf("cannot prepare scratch directory: %w", err)
	}

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:        a.config.Metrics.Enabled,
		Port:           a.config.Metrics.Port,
		Path:           a.config.Metrics.Path,
		Namespace:      "spoolfs",
		UpdateInterval: a.config.Metrics.UpdateInterval,
	})
	if err != nil {
		return fmt.Errorf("cannot build metrics collector: %w", err)
	}
	a.collector = collector

	a.table = namespace.NewTable(scratchDir, threshold, 0755,
		uint32(os.Getuid()), uint32(os.Getgid()))
	a.table.SetPromotionHook(collector.RecordPromotion)
	collector.SetEntrySource(a.table.Len)

	a.dispatcher = dispatch.NewDispatcher(a.table, a.logger, collector)

	filesystem := fuse.NewFileSystem(a.dispatcher, a.logger)
	a.mount = fuse.NewMountManager(filesystem, &fuse.MountConfig{
		MountPoint:     a.mountPoint,
		FSName:         a.config.Mount.FSName,
		AllowOther:     a.config.Mount.AllowOther,
		MaxWrite:       int(maxWrite),
		SingleThreaded: a.config.Mount.SingleThreaded,
		Debug:          a.config.Mount.Debug,
	}, a.logger)

	if err := collector.Start(ctx); err != nil {
		return fmt.Errorf("cannot start metrics: %w", err)
	}

	if err := a.mount.Mount(); err != nil {
		_ = collector.Stop(ctx)
		return err
	}

	a.logger.Info("spoolfs started: mount=%s threshold=%d scratch=%s",
		a.mountPoint, threshold, scratchDir)
	return nil
}

// Wait blocks until the kernel connection is gone.
func (a *Adapter) Wait() {
	if a.mount != nil {
		a.mount.Wait()
	}
}

// Stop unmounts, stops metrics, and destroys all spooled storage.
func (a *Adapter) Stop(ctx context.Context) error {
	var firstErr error

	if a.mount != nil && a.mount.IsMounted() {
		if err := a.mount.Unmount(); err != nil {
			firstErr = err
		}
	}

	if a.collector != nil {
		if err := a.collector.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if a.table != nil {
		if err := a.table.Destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	a.logger.Info("spoolfs stopped")
	return firstErr
}

// Dispatcher exposes the request dispatcher, mainly for tests.
func (a *Adapter) Dispatcher() *dispatch.Dispatcher {
	return a.dispatcher
}
