package fuse

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/spoolfs/spoolfs/pkg/utils"
)

// MountConfig contains mount-specific configuration
type MountConfig struct {
	MountPoint     string
	FSName         string
	AllowOther     bool
	MaxWrite       int
	SingleThreaded bool
	Debug          bool
}

// MountManager manages the FUSE mount lifecycle
type MountManager struct {
	filesystem *FileSystem
	server     *fuse.Server
	config     *MountConfig
	logger     *utils.Logger
	mounted    bool
}

// NewMountManager creates a new mount manager
func NewMountManager(filesystem *FileSystem, config *MountConfig, logger *utils.Logger) *MountManager {
	return &MountManager{
		filesystem: filesystem,
		config:     config,
		logger:     logger.WithComponent("mount"),
	}
}

// Mount mounts the filesystem at the configured mount point
func (m *MountManager) Mount() error {
	if m.mounted {
		return fmt.Errorf("filesystem is already mounted")
	}

	if err := m.validateMountPoint(); err != nil {
		return fmt.Errorf("invalid mount point: %w", err)
	}

	opts := m.buildFUSEOptions()

	server, err := fuse.NewServer(m.filesystem, m.config.MountPoint, opts)
	if err != nil {
		return fmt.Errorf("failed to mount filesystem: %w", err)
	}

	m.server = server
	go server.Serve()

	if err := server.WaitMount(); err != nil {
		return fmt.Errorf("mount did not complete: %w", err)
	}

	m.mounted = true
	m.logger.Info("mounted at %s", m.config.MountPoint)
	return nil
}

// Unmount unmounts the filesystem
func (m *MountManager) Unmount() error {
	if !m.mounted {
		return fmt.Errorf("filesystem is not mounted")
	}
	if m.server == nil {
		return fmt.Errorf("no active server to unmount")
	}

	m.logger.Info("unmounting %s", m.config.MountPoint)

	if err := m.server.Unmount(); err != nil {
		m.logger.Warn("normal unmount failed, trying force unmount: %v", err)
		if forceErr := m.forceUnmount(); forceErr != nil {
			return fmt.Errorf("unmount failed: %w (force unmount also failed: %v)", err, forceErr)
		}
	}

	m.mounted = false
	m.server = nil
	return nil
}

// IsMounted reports whether the filesystem is currently mounted.
func (m *MountManager) IsMounted() bool {
	return m.mounted
}

// GetMountPoint returns the current mount point
func (m *MountManager) GetMountPoint() string {
	return m.config.MountPoint
}

// Wait blocks until the kernel connection is torn down.
func (m *MountManager) Wait() {
	if m.server != nil {
		m.server.Wait()
	}
}

func (m *MountManager) validateMountPoint() error {
	if m.config.MountPoint == "" {
		return fmt.Errorf("mount point cannot be empty")
	}

	info, err := os.Stat(m.config.MountPoint)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("mount point does not exist: %s", m.config.MountPoint)
		}
		return fmt.Errorf("cannot access mount point: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("mount point is not a directory: %s", m.config.MountPoint)
	}

	entries, err := os.ReadDir(m.config.MountPoint)
	if err != nil {
		return fmt.Errorf("cannot read mount point directory: %w", err)
	}
	if len(entries) > 0 {
		m.logger.Warn("mount point %s is not empty", m.config.MountPoint)
	}

	if m.isAlreadyMounted() {
		return fmt.Errorf("mount point %s is already mounted", m.config.MountPoint)
	}

	return nil
}

func (m *MountManager) buildFUSEOptions() *fuse.MountOptions {
	return &fuse.MountOptions{
		Name:           m.config.FSName,
		FsName:         m.config.FSName,
		AllowOther:     m.config.AllowOther,
		MaxWrite:       m.config.MaxWrite,
		SingleThreaded: m.config.SingleThreaded,
		Debug:          m.config.Debug,
		DisableXAttrs:  true,
	}
}

func (m *MountManager) isAlreadyMounted() bool {
	data, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return false
	}

	mountPoint := filepath.Clean(m.config.MountPoint)
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == mountPoint {
			return true
		}
	}
	return false
}

func (m *MountManager) forceUnmount() error {
	// Lazy detach first, then force.
	if err := syscall.Unmount(m.config.MountPoint, 2); err == nil {
		return nil
	}
	return syscall.Unmount(m.config.MountPoint, 1)
}
