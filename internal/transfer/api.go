package transfer

import (
	"encoding/json"
	"time"
)

// Envelope is the relay's JSON response wrapper.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// UploadResult is the relay's answer to an upload.
type UploadResult struct {
	FileID       string `json:"fileId"`
	FileName     string `json:"fileName"`
	FileSize     int64  `json:"fileSize"`
	DownloadURL  string `json:"downloadUrl"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// RemoteFile is a file held by the relay.
type RemoteFile struct {
	FileID      string    `json:"fileId"`
	FileName    string    `json:"fileName"`
	FileSize    int64     `json:"fileSize"`
	Type        Category  `json:"type"`
	MimeType    string    `json:"mimeType"`
	DownloadURL string    `json:"downloadUrl"`
	UploadedAt  time.Time `json:"uploadedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// FileList is one page of relay files.
type FileList struct {
	Files      []RemoteFile `json:"files"`
	Pagination Pagination   `json:"pagination"`
}

// ListParams filters a listing. Zero values are omitted.
type ListParams struct {
	Page  int
	Limit int
	Type  Category
}
