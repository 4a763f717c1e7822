package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/floatdrop/internal/config"
	"github.com/1broseidon/floatdrop/internal/transfer"
)

func newTestRelay(t *testing.T, cfg config.RelayConfig) (*Server, *LocalBackend, *httptest.Server) {
	t.Helper()
	backend, err := NewLocalBackend(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)
	s := NewServer(cfg, backend)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, backend, ts
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func uploadForm(t *testing.T, name, declared string, body []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("fileName", name))
	require.NoError(t, mw.WriteField("fileSize", declared))
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decode(t *testing.T, resp *http.Response) transfer.Envelope {
	t.Helper()
	defer resp.Body.Close()
	var env transfer.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func TestUploadDownloadThroughClient(t *testing.T) {
	_, backend, ts := newTestRelay(t, config.RelayConfig{})
	client := transfer.NewClient(transfer.ClientConfig{BaseURL: ts.URL})
	ctx := context.Background()

	res, err := client.Upload(ctx, writeFile(t, "notes.txt", "hello relay"), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, res.FileID)
	assert.Equal(t, "notes.txt", res.FileName)
	assert.Equal(t, int64(11), res.FileSize)
	assert.Equal(t, ts.URL+"/api/files/"+res.FileID+"/download", res.DownloadURL)

	ok, err := backend.Exists(ctx, res.FileID)
	require.NoError(t, err)
	assert.True(t, ok)

	dest := filepath.Join(t.TempDir(), "out", "notes.txt")
	n, err := client.Download(ctx, res.DownloadURL, dest, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "hello relay", string(data))
}

func TestUploadThumbnailURL(t *testing.T) {
	_, _, ts := newTestRelay(t, config.RelayConfig{})
	client := transfer.NewClient(transfer.ClientConfig{BaseURL: ts.URL})

	tests := []struct {
		name      string
		wantThumb bool
	}{
		{"photo.png", true},
		{"photo.JPG", true},
		{"report.pdf", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := client.Upload(context.Background(), writeFile(t, tt.name, "data"), nil)
			require.NoError(t, err)
			if tt.wantThumb {
				assert.Equal(t, res.DownloadURL, res.ThumbnailURL)
			} else {
				assert.Empty(t, res.ThumbnailURL)
			}
		})
	}
}

func TestDownloadHeaders(t *testing.T) {
	_, _, ts := newTestRelay(t, config.RelayConfig{PublicURL: "https://drop.example.com/"})
	client := transfer.NewClient(transfer.ClientConfig{BaseURL: ts.URL})

	res, err := client.Upload(context.Background(), writeFile(t, "my photo.png", "PNGDATA"), nil)
	require.NoError(t, err)
	assert.Equal(t, "https://drop.example.com/api/files/"+res.FileID+"/download", res.DownloadURL)

	resp, err := http.Get(ts.URL + "/api/files/" + res.FileID + "/download")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, "7", resp.Header.Get("Content-Length"))
	assert.Equal(t, `attachment; filename="my photo.png"`, resp.Header.Get("Content-Disposition"))
}

func TestListPaginationAndFilter(t *testing.T) {
	s, _, ts := newTestRelay(t, config.RelayConfig{})
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	client := transfer.NewClient(transfer.ClientConfig{BaseURL: ts.URL})
	ctx := context.Background()
	for _, name := range []string{"a.txt", "b.png", "c.txt", "d.jpg", "e.txt"} {
		_, err := client.Upload(ctx, writeFile(t, name, name), nil)
		require.NoError(t, err)
	}

	page, err := client.List(ctx, transfer.ListParams{Page: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Files, 2)
	assert.Equal(t, "e.txt", page.Files[0].FileName)
	assert.Equal(t, "d.jpg", page.Files[1].FileName)
	assert.Equal(t, transfer.Pagination{Page: 1, Limit: 2, Total: 5, Pages: 3}, page.Pagination)

	last, err := client.List(ctx, transfer.ListParams{Page: 3, Limit: 2})
	require.NoError(t, err)
	require.Len(t, last.Files, 1)
	assert.Equal(t, "a.txt", last.Files[0].FileName)

	images, err := client.List(ctx, transfer.ListParams{Type: transfer.CategoryImage})
	require.NoError(t, err)
	require.Len(t, images.Files, 2)
	assert.Equal(t, 20, images.Pagination.Limit)
	for _, f := range images.Files {
		assert.Equal(t, transfer.CategoryImage, f.Type)
	}
}

func TestIndexListClamps(t *testing.T) {
	idx := NewIndex()
	for i, id := range []string{"x", "y", "z"} {
		idx.Put(transfer.RemoteFile{FileID: id, UploadedAt: time.Unix(int64(i), 0)})
	}

	tests := []struct {
		name      string
		params    transfer.ListParams
		wantIDs   []string
		wantPage  int
		wantLimit int
	}{
		{"defaults", transfer.ListParams{}, []string{"z", "y", "x"}, 1, 20},
		{"negative page", transfer.ListParams{Page: -3, Limit: 1}, []string{"z"}, 1, 1},
		{"past the end", transfer.ListParams{Page: 9, Limit: 2}, nil, 9, 2},
		{"limit capped", transfer.ListParams{Limit: 500}, []string{"z", "y", "x"}, 1, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := idx.List(tt.params)
			var ids []string
			for _, f := range got.Files {
				ids = append(ids, f.FileID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantPage, got.Pagination.Page)
			assert.Equal(t, tt.wantLimit, got.Pagination.Limit)
			assert.Equal(t, 3, got.Pagination.Total)
		})
	}
}

func TestDelete(t *testing.T) {
	s, backend, ts := newTestRelay(t, config.RelayConfig{})
	client := transfer.NewClient(transfer.ClientConfig{BaseURL: ts.URL})
	ctx := context.Background()

	res, err := client.Upload(ctx, writeFile(t, "gone.txt", "bye"), nil)
	require.NoError(t, err)

	require.NoError(t, client.Delete(ctx, res.FileID))
	assert.Equal(t, 0, s.Index().Len())
	ok, err := backend.Exists(ctx, res.FileID)
	require.NoError(t, err)
	assert.False(t, ok)

	err = client.Delete(ctx, res.FileID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")

	resp, err := http.Get(ts.URL + "/api/files/" + res.FileID + "/download")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUploadTooLarge(t *testing.T) {
	tests := []struct {
		name     string
		declared string
		body     []byte
	}{
		{"declared size over limit", "1000", []byte("tiny")},
		{"actual size over limit", "4", bytes.Repeat([]byte("x"), 64)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, ts := newTestRelay(t, config.RelayConfig{MaxUpload: 16})
			body, ctype := uploadForm(t, "big.bin", tt.declared, tt.body)

			resp, err := http.Post(ts.URL+"/api/files/upload", ctype, body)
			require.NoError(t, err)
			assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
			env := decode(t, resp)
			assert.False(t, env.Success)
			assert.Contains(t, env.Error, "16 byte limit")
			assert.Equal(t, 0, s.Index().Len())
		})
	}
}

func TestUploadRequiresFile(t *testing.T) {
	_, _, ts := newTestRelay(t, config.RelayConfig{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("fileName", "x.txt"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/api/files/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "file is required", decode(t, resp).Error)

	resp, err = http.Post(ts.URL+"/api/files/upload", "text/plain", strings.NewReader("nope"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestUploadStripsDirectories(t *testing.T) {
	s, _, ts := newTestRelay(t, config.RelayConfig{})
	body, ctype := uploadForm(t, `..\..\etc/passwd`, "3", []byte("abc"))

	resp, err := http.Post(ts.URL+"/api/files/upload", ctype, body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var res transfer.UploadResult
	require.NoError(t, json.Unmarshal(decode(t, resp).Data, &res))
	assert.Equal(t, "passwd", res.FileName)

	f, ok := s.Index().Get(res.FileID)
	require.True(t, ok)
	assert.Equal(t, "passwd", f.FileName)
}

func TestAPIKey(t *testing.T) {
	_, _, ts := newTestRelay(t, config.RelayConfig{APIKey: "secret"})
	ctx := context.Background()
	path := writeFile(t, "a.txt", "a")

	_, err := transfer.NewClient(transfer.ClientConfig{BaseURL: ts.URL}).Upload(ctx, path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")

	_, err = transfer.NewClient(transfer.ClientConfig{BaseURL: ts.URL, APIKey: "wrong"}).List(ctx, transfer.ListParams{})
	require.Error(t, err)

	good := transfer.NewClient(transfer.ClientConfig{BaseURL: ts.URL, APIKey: "secret"})
	_, err = good.Upload(ctx, path, nil)
	require.NoError(t, err)

	// Health stays open so clients can check reachability without a key.
	assert.True(t, good.CheckConnection(ctx))
	assert.True(t, transfer.NewClient(transfer.ClientConfig{BaseURL: ts.URL}).CheckConnection(ctx))
}

func TestHealthAndBanner(t *testing.T) {
	_, _, ts := newTestRelay(t, config.RelayConfig{})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "local", health["storage"])

	resp, err = http.Get(ts.URL + "/")
	require.NoError(t, err)
	var banner map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&banner))
	resp.Body.Close()
	assert.Equal(t, Version, banner["version"])

	resp, err = http.Get(ts.URL + "/nothing-here")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSweepRemovesExpired(t *testing.T) {
	s, backend, ts := newTestRelay(t, config.RelayConfig{BlobTTL: config.Duration(time.Hour)})
	client := transfer.NewClient(transfer.ClientConfig{BaseURL: ts.URL})
	ctx := context.Background()

	now := time.Now()
	s.now = func() time.Time { return now }
	old, err := client.Upload(ctx, writeFile(t, "old.txt", "old"), nil)
	require.NoError(t, err)

	s.now = func() time.Time { return now.Add(30 * time.Minute) }
	fresh, err := client.Upload(ctx, writeFile(t, "fresh.txt", "fresh"), nil)
	require.NoError(t, err)

	s.now = func() time.Time { return now.Add(time.Hour) }
	assert.Equal(t, 1, s.Sweep(ctx))

	_, ok := s.Index().Get(old.FileID)
	assert.False(t, ok)
	_, ok = s.Index().Get(fresh.FileID)
	assert.True(t, ok)

	exists, err := backend.Exists(ctx, old.FileID)
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = backend.Exists(ctx, fresh.FileID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLocalBackendKeys(t *testing.T) {
	b, err := NewLocalBackend(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"", ".", "..", "a/b", `a\b`, "../escape"} {
		err := b.Put(ctx, key, strings.NewReader("x"), 1)
		assert.Error(t, err, "key %q", key)
	}

	require.NoError(t, b.Put(ctx, "blob", strings.NewReader("payload"), 7))
	rc, size, err := b.Get(ctx, "blob")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, int64(7), size)
	assert.Equal(t, "payload", string(data))

	require.NoError(t, b.Delete(ctx, "blob"))
	require.NoError(t, b.Delete(ctx, "blob"))
	_, _, err = b.Get(ctx, "blob")
	assert.ErrorIs(t, err, ErrBlobNotFound)
}

func TestNewBackend(t *testing.T) {
	ctx := context.Background()

	b, err := NewBackend(ctx, config.RelayConfig{Storage: "local", LocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "local", b.Type())

	_, err = NewBackend(ctx, config.RelayConfig{Storage: "s3"})
	assert.ErrorContains(t, err, "bucket is required")

	_, err = NewBackend(ctx, config.RelayConfig{Storage: "ftp"})
	assert.ErrorContains(t, err, "unknown relay storage")

	s3b, err := NewBackend(ctx, config.RelayConfig{Storage: "s3", S3: config.S3Config{
		Endpoint:  "http://127.0.0.1:9000",
		Bucket:    "drops",
		Region:    "us-east-1",
		AccessKey: "minio",
		SecretKey: "minio123",
	}})
	require.NoError(t, err)
	assert.Equal(t, "s3", s3b.Type())
}
