// Package relay is the thin HTTP relay that receives uploads from floatdrop
// clients and serves them back for download until they expire.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/1broseidon/floatdrop/internal/config"
	"github.com/1broseidon/floatdrop/internal/runtimepath"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "relay")

// ErrBlobNotFound is returned when a key has no stored blob.
var ErrBlobNotFound = errors.New("blob not found")

// Backend stores uploaded blobs by key.
type Backend interface {
	// Put stores size bytes read from body under key.
	Put(ctx context.Context, key string, body io.Reader, size int64) error
	// Get opens the blob and returns its size.
	Get(ctx context.Context, key string) (io.ReadCloser, int64, error)
	// Delete removes the blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Type returns the backend type identifier ("local", "s3").
	Type() string
}

// NewBackend creates the backend selected by cfg.Storage.
func NewBackend(ctx context.Context, cfg config.RelayConfig) (Backend, error) {
	switch cfg.Storage {
	case "", "local":
		path := cfg.LocalPath
		if path == "" {
			root, err := runtimepath.ScratchRoot("")
			if err != nil {
				return nil, err
			}
			path = filepath.Join(root, "relay")
		}
		return NewLocalBackend(path)
	case "s3":
		return NewS3Backend(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown relay storage: %s", cfg.Storage)
	}
}
