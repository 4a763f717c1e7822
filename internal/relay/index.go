package relay

import (
	"sort"
	"sync"
	"time"

	"github.com/1broseidon/floatdrop/internal/transfer"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Index is the in-memory record of stored uploads. It is lost on restart;
// blobs left behind are removed by the age sweep.
type Index struct {
	mu    sync.RWMutex
	files map[string]transfer.RemoteFile
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{files: make(map[string]transfer.RemoteFile)}
}

// Put records f under its FileID.
func (i *Index) Put(f transfer.RemoteFile) {
	i.mu.Lock()
	i.files[f.FileID] = f
	i.mu.Unlock()
}

// Get returns the file with id.
func (i *Index) Get(id string) (transfer.RemoteFile, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	f, ok := i.files[id]
	return f, ok
}

// Remove drops id and reports whether it was present.
func (i *Index) Remove(id string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.files[id]; !ok {
		return false
	}
	delete(i.files, id)
	return true
}

// Len returns the number of indexed files.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.files)
}

// Expired returns the files whose ExpiresAt is not after now.
func (i *Index) Expired(now time.Time) []transfer.RemoteFile {
	i.mu.RLock()
	defer i.mu.RUnlock()
	var out []transfer.RemoteFile
	for _, f := range i.files {
		if !f.ExpiresAt.After(now) {
			out = append(out, f)
		}
	}
	return out
}

// List returns one page of files, newest first, optionally filtered by
// type. Page numbers start at 1; out-of-range values are clamped.
func (i *Index) List(params transfer.ListParams) transfer.FileList {
	i.mu.RLock()
	matched := make([]transfer.RemoteFile, 0, len(i.files))
	for _, f := range i.files {
		if params.Type != "" && f.Type != params.Type {
			continue
		}
		matched = append(matched, f)
	}
	i.mu.RUnlock()

	sort.Slice(matched, func(a, b int) bool {
		if matched[a].UploadedAt.Equal(matched[b].UploadedAt) {
			return matched[a].FileID < matched[b].FileID
		}
		return matched[a].UploadedAt.After(matched[b].UploadedAt)
	})

	limit := params.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	limit = min(limit, maxPageLimit)
	page := max(params.Page, 1)

	total := len(matched)
	pages := (total + limit - 1) / limit
	start := min((page-1)*limit, total)
	end := min(start+limit, total)

	return transfer.FileList{
		Files: matched[start:end],
		Pagination: transfer.Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: pages,
		},
	}
}
