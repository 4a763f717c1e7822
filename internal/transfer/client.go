package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/1broseidon/floatdrop/internal/metrics"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "transfer")

// DefaultTimeout bounds a single upload or download.
const DefaultTimeout = 5 * time.Minute

const healthTimeout = 5 * time.Second

// ProgressFunc receives whole percentages in 0..100.
type ProgressFunc func(percent int)

// Client talks to the relay server.
type Client struct {
	httpClient *http.Client

	mu      sync.RWMutex
	baseURL string
	apiKey  string
}

// ClientConfig holds client configuration.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	// Timeout bounds each transfer; defaults to DefaultTimeout.
	Timeout time.Duration
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// NewClient creates a relay client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}
	return &Client{
		httpClient: hc,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
	}
}

// SetAPIKey replaces the bearer key.
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	c.apiKey = key
	c.mu.Unlock()
}

// SetBaseURL replaces the relay base URL.
func (c *Client) SetBaseURL(base string) {
	c.mu.Lock()
	c.baseURL = strings.TrimRight(base, "/")
	c.mu.Unlock()
}

// BaseURL returns the relay base URL.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

func (c *Client) applyAuth(req *http.Request) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// Upload sends the file at path to the relay as multipart form data.
func (c *Client) Upload(ctx context.Context, path string, progress ProgressFunc) (*UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	name := filepath.Base(path)
	size := info.Size()

	// Stream the body through a pipe so progress tracks bytes on the wire.
	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(mw, f, name, size, progress))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL()+"/api/files/upload", pr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.applyAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordUpload(size, false)
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	var result UploadResult
	if err := decodeEnvelope(resp, &result); err != nil {
		metrics.RecordUpload(size, false)
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	metrics.RecordUpload(size, true)
	log.WithFields(logrus.Fields{"file": name, "id": result.FileID}).Debug("uploaded")
	return &result, nil
}

func writeUploadForm(mw *multipart.Writer, src io.Reader, name string, size int64, progress ProgressFunc) error {
	if err := mw.WriteField("fileName", name); err != nil {
		return err
	}
	if err := mw.WriteField("fileSize", strconv.FormatInt(size, 10)); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, newProgressReader(src, size, progress)); err != nil {
		return err
	}
	return mw.Close()
}

// Download fetches url into dest, creating parent directories. The file is
// written under a temp name and renamed on success.
func (c *Client) Download(ctx context.Context, rawURL, dest string, progress ProgressFunc) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(rawURL), nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	c.applyAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordDownload(0, false)
		return 0, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordDownload(0, false)
		return 0, fmt.Errorf("%w: server returned %d", ErrDownloadFailed, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	tmpName := tmp.Name()

	n, copyErr := io.Copy(tmp, newProgressReader(resp.Body, resp.ContentLength, progress))
	closeErr := tmp.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr == nil {
		copyErr = os.Rename(tmpName, dest)
	}
	if copyErr != nil {
		os.Remove(tmpName)
		metrics.RecordDownload(n, false)
		return 0, fmt.Errorf("%w: %v", ErrDownloadFailed, copyErr)
	}

	metrics.RecordDownload(n, true)
	return n, nil
}

// resolve makes relative download URLs absolute against the base URL.
func (c *Client) resolve(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.IsAbs() {
		return rawURL
	}
	return c.BaseURL() + "/" + strings.TrimLeft(rawURL, "/")
}

// List returns one page of files held by the relay.
func (c *Client) List(ctx context.Context, params ListParams) (*FileList, error) {
	q := url.Values{}
	if params.Page > 0 {
		q.Set("page", strconv.Itoa(params.Page))
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Type != "" {
		q.Set("type", string(params.Type))
	}
	endpoint := c.BaseURL() + "/api/files"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.applyAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer resp.Body.Close()

	var list FileList
	if err := decodeEnvelope(resp, &list); err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return &list, nil
}

// Delete removes a file from the relay.
func (c *Client) Delete(ctx context.Context, fileID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.BaseURL()+"/api/files/"+url.PathEscape(fileID), nil)
	if err != nil {
		return err
	}
	c.applyAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	if err := decodeEnvelope(resp, nil); err != nil {
		return fmt.Errorf("failed to delete %s: %w", fileID, err)
	}
	return nil
}

// CheckConnection reports whether the relay answers /health with 200.
func (c *Client) CheckConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL()+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.WithError(err).Debug("relay health check failed")
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// decodeEnvelope reads a relay response. A false success flag or a non-2xx
// status becomes an error carrying the relay's message.
func decodeEnvelope(resp *http.Response, data any) error {
	var env Envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env); err != nil {
		if resp.StatusCode/100 != 2 {
			return fmt.Errorf("server returned %d", resp.StatusCode)
		}
		return fmt.Errorf("invalid response: %w", err)
	}
	if !env.Success || resp.StatusCode/100 != 2 {
		msg := env.Error
		if msg == "" {
			msg = fmt.Sprintf("server returned %d", resp.StatusCode)
		}
		return errors.New(msg)
	}
	if data != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, data); err != nil {
			return fmt.Errorf("invalid response data: %w", err)
		}
	}
	return nil
}

// progressReader reports read progress as whole percentages, only when
// the value changes.
type progressReader struct {
	r     io.Reader
	total int64
	read  int64
	last  int
	fn    ProgressFunc
}

func newProgressReader(r io.Reader, total int64, fn ProgressFunc) io.Reader {
	if fn == nil || total <= 0 {
		return r
	}
	return &progressReader{r: r, total: total, last: -1, fn: fn}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	pct := int(p.read * 100 / p.total)
	if pct > 100 {
		pct = 100
	}
	if pct != p.last {
		p.last = pct
		p.fn(pct)
	}
	return n, err
}
