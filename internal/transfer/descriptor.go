// Package transfer moves files between the desktop and the relay server:
// file descriptors, the HTTP relay client and the batch uploader.
package transfer

import (
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// Category groups files by extension.
type Category string

const (
	CategoryImage    Category = "image"
	CategoryVideo    Category = "video"
	CategoryAudio    Category = "audio"
	CategoryDocument Category = "document"
	CategoryArchive  Category = "archive"
	CategoryOther    Category = "other"
)

var categoryByExt = map[string]Category{
	".jpg": CategoryImage, ".jpeg": CategoryImage, ".png": CategoryImage,
	".gif": CategoryImage, ".bmp": CategoryImage, ".webp": CategoryImage,

	".mp4": CategoryVideo, ".avi": CategoryVideo, ".mov": CategoryVideo,
	".wmv": CategoryVideo, ".flv": CategoryVideo, ".mkv": CategoryVideo,

	".mp3": CategoryAudio, ".wav": CategoryAudio, ".flac": CategoryAudio,
	".aac": CategoryAudio, ".ogg": CategoryAudio,

	".pdf": CategoryDocument, ".doc": CategoryDocument, ".docx": CategoryDocument,
	".xls": CategoryDocument, ".xlsx": CategoryDocument, ".ppt": CategoryDocument,
	".pptx": CategoryDocument, ".txt": CategoryDocument,

	".zip": CategoryArchive, ".rar": CategoryArchive, ".7z": CategoryArchive,
	".tar": CategoryArchive, ".gz": CategoryArchive,
}

// CategoryOf classifies a file name by extension.
func CategoryOf(name string) Category {
	if c, ok := categoryByExt[strings.ToLower(filepath.Ext(name))]; ok {
		return c
	}
	return CategoryOther
}

// MimeTypeOf guesses a MIME type from the file extension.
func MimeTypeOf(name string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); t != "" {
		return t
	}
	return "application/octet-stream"
}

// FileDescriptor is metadata for a transferable file.
type FileDescriptor struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Size         int64    `json:"size"`
	Category     Category `json:"type"`
	MimeType     string   `json:"mimeType,omitempty"`
	LocalPath    string   `json:"path,omitempty"`
	DownloadURL  string   `json:"downloadUrl,omitempty"`
	ThumbnailURL string   `json:"thumbnailUrl,omitempty"`
}

// HasLocalFile reports whether LocalPath names an existing regular file.
func (d FileDescriptor) HasLocalFile() bool {
	if d.LocalPath == "" {
		return false
	}
	info, err := os.Stat(d.LocalPath)
	return err == nil && info.Mode().IsRegular()
}

// Draggable reports whether the file can be handed to another app, either
// directly from disk or after a download.
func (d FileDescriptor) Draggable() bool {
	return d.HasLocalFile() || d.DownloadURL != ""
}

// DescriptorFor builds the descriptor for a local file that was uploaded.
func DescriptorFor(path string, size int64, res *UploadResult) FileDescriptor {
	name := filepath.Base(path)
	d := FileDescriptor{
		Name:      name,
		Size:      size,
		Category:  CategoryOf(name),
		MimeType:  MimeTypeOf(name),
		LocalPath: path,
	}
	if res != nil {
		d.ID = res.FileID
		d.DownloadURL = res.DownloadURL
		d.ThumbnailURL = res.ThumbnailURL
	}
	return d
}
