package logging

import (
	"fmt"
	"os"
	"sync"
)

// rotatingFile is an io.Writer over a log file capped at maxBytes. When a
// write would exceed the cap the file is shifted to <path>.1, older backups
// move up one slot, and anything beyond backups is deleted.
type rotatingFile struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	backups  int
	file     *os.File
	size     int64
}

func newRotatingFile(path string, maxMB, backups int) (*rotatingFile, error) {
	if maxMB <= 0 {
		maxMB = 10
	}
	if backups <= 0 {
		backups = 1
	}
	w := &rotatingFile{path: path, maxBytes: int64(maxMB) << 20, backups: backups}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *rotatingFile) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		if err := w.open(); err != nil {
			return 0, err
		}
	}
	if w.size > 0 && w.size+int64(len(p)) > w.maxBytes {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *rotatingFile) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *rotatingFile) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	w.file, w.size = f, info.Size()
	return nil
}

func (w *rotatingFile) backupPath(n int) string {
	return fmt.Sprintf("%s.%d", w.path, n)
}

func (w *rotatingFile) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	w.file = nil

	if err := os.Remove(w.backupPath(w.backups)); err != nil && !os.IsNotExist(err) {
		return err
	}
	for n := w.backups - 1; n >= 1; n-- {
		if err := os.Rename(w.backupPath(n), w.backupPath(n+1)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	if err := os.Rename(w.path, w.backupPath(1)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return w.open()
}
