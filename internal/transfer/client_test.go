package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvelope(w http.ResponseWriter, status int, data any, errMsg string) {
	env := map[string]any{"success": errMsg == ""}
	if data != nil {
		env["data"] = data
	}
	if errMsg != "" {
		env["error"] = errMsg
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

func TestClientUpload_SendsMultipartWithBearer(t *testing.T) {
	var gotAuth, gotName, gotSize, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/files/upload", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotName = r.FormValue("fileName")
		gotSize = r.FormValue("fileSize")
		f, _, err := r.FormFile("file")
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		gotBody = string(data)
		writeEnvelope(w, http.StatusOK, UploadResult{FileID: "abc", FileName: gotName, DownloadURL: "/api/files/abc/download"}, "")
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello relay"), 0644))

	var progress []int
	c := NewClient(ClientConfig{BaseURL: srv.URL + "/", APIKey: "k1"})
	res, err := c.Upload(context.Background(), path, func(p int) { progress = append(progress, p) })
	require.NoError(t, err)

	assert.Equal(t, "abc", res.FileID)
	assert.Equal(t, "Bearer k1", gotAuth)
	assert.Equal(t, "hello.txt", gotName)
	assert.Equal(t, "11", gotSize)
	assert.Equal(t, "hello relay", gotBody)
	require.NotEmpty(t, progress)
	assert.Equal(t, 100, progress[len(progress)-1])
}

func TestClientUpload_RelayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		writeEnvelope(w, http.StatusRequestEntityTooLarge, nil, "file too large")
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "big.bin")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	_, err := NewClient(ClientConfig{BaseURL: srv.URL}).Upload(context.Background(), path, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUploadFailed))
	assert.Contains(t, err.Error(), "file too large")
}

func TestClientUpload_MissingFile(t *testing.T) {
	c := NewClient(ClientConfig{BaseURL: "http://127.0.0.1:1"})
	_, err := c.Upload(context.Background(), filepath.Join(t.TempDir(), "nope"), nil)
	assert.True(t, errors.Is(err, ErrFileNotFound))
}

func TestClientDownload_WritesFileWithProgress(t *testing.T) {
	payload := strings.Repeat("z", 64*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k2", r.Header.Get("Authorization"))
		w.Header().Set("Content-Length", "65536")
		io.WriteString(w, payload)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "nested", "out.bin")
	var last int
	c := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "k2"})
	n, err := c.Download(context.Background(), "/api/files/x/download", dest, func(p int) { last = p })
	require.NoError(t, err)

	assert.Equal(t, int64(len(payload)), n)
	assert.Equal(t, 100, last)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))
}

func TestClientDownload_HTTPErrorLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")
	_, err := NewClient(ClientConfig{BaseURL: srv.URL}).Download(context.Background(), srv.URL+"/missing", dest, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDownloadFailed))

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

func TestClientListDeleteHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/health":
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodGet && r.URL.Path == "/api/files":
			assert.Equal(t, "image", r.URL.Query().Get("type"))
			writeEnvelope(w, http.StatusOK, FileList{
				Files:      []RemoteFile{{FileID: "a", FileName: "a.png"}},
				Pagination: Pagination{Page: 1, Limit: 20, Total: 1, Pages: 1},
			}, "")
		case r.Method == http.MethodDelete && r.URL.Path == "/api/files/a":
			writeEnvelope(w, http.StatusOK, nil, "")
		default:
			writeEnvelope(w, http.StatusNotFound, nil, "not found")
		}
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	ctx := context.Background()

	assert.True(t, c.CheckConnection(ctx))

	list, err := c.List(ctx, ListParams{Type: CategoryImage})
	require.NoError(t, err)
	require.Len(t, list.Files, 1)
	assert.Equal(t, "a.png", list.Files[0].FileName)

	require.NoError(t, c.Delete(ctx, "a"))
	err = c.Delete(ctx, "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestCheckConnection_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	assert.False(t, NewClient(ClientConfig{BaseURL: url}).CheckConnection(context.Background()))
}
