package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/1broseidon/floatdrop/internal/config"
	"github.com/1broseidon/floatdrop/internal/events"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// DefaultMaxFileSize is the per-file upload ceiling.
const DefaultMaxFileSize int64 = config.DefaultMaxFileSize

// FileUploader uploads one file. Client satisfies it.
type FileUploader interface {
	Upload(ctx context.Context, path string, progress ProgressFunc) (*UploadResult, error)
}

// Uploader runs upload batches and publishes their events.
type Uploader struct {
	client  FileUploader
	events  events.Publisher

	mu      sync.RWMutex
	maxSize int64
}

// NewUploader returns a batch uploader. maxSize <= 0 uses DefaultMaxFileSize.
func NewUploader(client FileUploader, pub events.Publisher, maxSize int64) *Uploader {
	if pub == nil {
		pub = events.Discard
	}
	u := &Uploader{client: client, events: pub}
	u.SetMaxSize(maxSize)
	return u
}

// SetMaxSize replaces the per-file limit. n <= 0 restores DefaultMaxFileSize.
func (u *Uploader) SetMaxSize(n int64) {
	if n <= 0 {
		n = DefaultMaxFileSize
	}
	u.mu.Lock()
	u.maxSize = n
	u.mu.Unlock()
}

// MaxSize returns the per-file limit in effect.
func (u *Uploader) MaxSize() int64 {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.maxSize
}

// UploadFiles uploads paths in order. Each failure publishes upload-error
// and the batch continues; upload-completed carries every success.
func (u *Uploader) UploadFiles(ctx context.Context, paths []string) []FileDescriptor {
	total := len(paths)
	u.events.Publish(events.New(events.UploadStarted, events.UploadStartedPayload{Count: total}))

	uploaded := make([]FileDescriptor, 0, total)
	for i, path := range paths {
		name := filepath.Base(path)
		desc, err := u.uploadOne(ctx, i, total, path)
		if err != nil {
			log.WithFields(logrus.Fields{"file": path, "index": i}).WithError(err).Error("upload failed")
			u.events.Publish(events.New(events.UploadError, events.ErrorPayload{
				Name:  name,
				Path:  path,
				Error: err.Error(),
			}))
			continue
		}
		uploaded = append(uploaded, desc)
		u.events.Publish(events.New(events.FileUploaded, desc))
	}

	u.events.Publish(events.New(events.UploadCompleted, uploaded))
	log.WithFields(logrus.Fields{"ok": len(uploaded), "total": total}).Info("upload batch finished")
	return uploaded
}

func (u *Uploader) uploadOne(ctx context.Context, index, total int, path string) (FileDescriptor, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return FileDescriptor{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return FileDescriptor{}, err
	}
	if info.IsDir() {
		return FileDescriptor{}, fmt.Errorf("%s is a directory", path)
	}
	name := filepath.Base(path)
	if limit := u.MaxSize(); info.Size() > limit {
		return FileDescriptor{}, fmt.Errorf("%w: %s is %s (limit %s)", ErrFileTooLarge,
			name, humanize.IBytes(uint64(info.Size())), humanize.IBytes(uint64(limit)))
	}

	res, err := u.client.Upload(ctx, path, func(percent int) {
		u.events.Publish(events.New(events.UploadProgress, events.ProgressPayload{
			Index:   index,
			Name:    name,
			Percent: percent,
			Overall: OverallProgress(index, total, percent),
		}))
	})
	if err != nil {
		return FileDescriptor{}, err
	}
	return DescriptorFor(path, info.Size(), res), nil
}

// OverallProgress combines per-item progress into a batch percentage.
func OverallProgress(index, total, percent int) int {
	if total <= 0 {
		return 0
	}
	return (index*100 + percent + total/2) / total
}
