package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spoolfs/spoolfs/internal/adapter"
	"github.com/spoolfs/spoolfs/internal/config"
	"github.com/spoolfs/spoolfs/pkg/utils"
)

var (
	singleThreaded bool
	allowOther     bool
	debugFuse      bool
)

var mountCmd = &cobra.Command{
	Use:   "mount <mountpoint>",
	Short: "Mount the filesystem",
	Long: `Mount the filesystem at the given directory and serve requests until
interrupted.

Examples:
  # Mount with defaults
  spoolfs mount /mnt/spool

  # Mount with a custom config file
  spoolfs mount --config /etc/spoolfs/config.yaml /mnt/spool

  # Serialize request handling for debugging
  spoolfs mount --single-threaded /mnt/spool

  # Use environment variable overrides
  SPOOLFS_SPOOL_THRESHOLD=4Ki spoolfs mount /mnt/spool`,
	Args: cobra.ExactArgs(1),
	RunE: runMount,
}

func init() {
	mountCmd.Flags().BoolVar(&singleThreaded, "single-threaded", false, "Serve requests on a single thread")
	mountCmd.Flags().BoolVar(&allowOther, "allow-other", false, "Allow other users to access the mount")
	mountCmd.Flags().BoolVar(&debugFuse, "debug-fuse", false, "Log raw kernel requests")
}

func runMount(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	// Flags win over config and environment.
	if singleThreaded {
		cfg.Mount.SingleThreaded = true
	}
	if allowOther {
		cfg.Mount.AllowOther = true
	}
	if debugFuse {
		cfg.Mount.Debug = true
	}

	logger, err := utils.SetupLogging(cfg.Global.LogLevel, cfg.Global.LogFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := adapter.New(args[0], cfg, logger)
	if err != nil {
		return err
	}

	if err := a.Start(ctx); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		a.Wait()
		close(done)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("serving. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received")
	case <-done:
		logger.Info("kernel connection closed")
	}

	return a.Stop(ctx)
}
