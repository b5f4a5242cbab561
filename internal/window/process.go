package window

import (
	"fmt"

	"github.com/prometheus/procfs"
)

// ProcessNamer resolves a process id to its command name.
type ProcessNamer interface {
	ProcessName(pid int) (string, error)
}

// ProcFS reads process names from a proc filesystem.
type ProcFS struct {
	fs procfs.FS
}

// NewProcFS opens the proc filesystem mounted at mountPoint.
func NewProcFS(mountPoint string) (*ProcFS, error) {
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("open procfs %s: %w", mountPoint, err)
	}
	return &ProcFS{fs: fs}, nil
}

// NewDefaultProcFS opens /proc.
func NewDefaultProcFS() (*ProcFS, error) {
	return NewProcFS(procfs.DefaultMountPoint)
}

// ProcessName returns the comm name of pid.
func (p *ProcFS) ProcessName(pid int) (string, error) {
	proc, err := p.fs.Proc(pid)
	if err != nil {
		return "", err
	}
	return proc.Comm()
}
