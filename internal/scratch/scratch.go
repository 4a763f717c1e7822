// Package scratch manages the temp-file directories and sweeps them by
// file age.
package scratch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/1broseidon/floatdrop/internal/metrics"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "scratch")

// Dir is a scratch directory with its own retention.
type Dir struct {
	Name string
	Path string
	TTL  time.Duration
}

// Ensure creates each directory (user-only permissions) if missing.
func Ensure(dirs ...Dir) error {
	for _, d := range dirs {
		if err := os.MkdirAll(d.Path, 0700); err != nil {
			return fmt.Errorf("failed to create %s scratch dir: %w", d.Name, err)
		}
	}
	return nil
}

// Sweep removes entries in dir whose modification time is more than ttl
// before now. A missing directory is not an error. Per-entry failures are
// logged and skipped; the first one is returned after the pass.
func Sweep(dir string, ttl time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	removed := 0
	var firstErr error
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		info, err := e.Info()
		if err != nil {
			// Removed concurrently.
			continue
		}
		if now.Sub(info.ModTime()) <= ttl {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			log.WithError(err).WithField("path", path).Warn("failed to remove expired file")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed++
	}
	return removed, firstErr
}

// SweepAll sweeps every directory. Errors are logged and swallowed; the
// result maps directory name to files removed.
func SweepAll(dirs []Dir, now time.Time) map[string]int {
	out := make(map[string]int, len(dirs))
	for _, d := range dirs {
		n, err := Sweep(d.Path, d.TTL, now)
		if err != nil {
			log.WithError(err).WithField("dir", d.Name).Warn("sweep incomplete")
		}
		if n > 0 {
			log.WithFields(logrus.Fields{"dir": d.Name, "removed": n}).Info("swept expired files")
		}
		metrics.RecordSwept(d.Name, n)
		out[d.Name] = n
	}
	return out
}
