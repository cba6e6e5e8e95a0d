//go:build unix

package store

import (
	"fmt"
	"os"
	"syscall"
)

// fileLock is an exclusive flock(2) held on a sidecar lock file.
type fileLock struct {
	file *os.File
}

func lockFile(path string) (*fileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("flock: %w", err)
	}
	return &fileLock{file: f}, nil
}

func (fl *fileLock) Unlock() {
	_ = syscall.Flock(int(fl.file.Fd()), syscall.LOCK_UN)
	_ = fl.file.Close()
}
