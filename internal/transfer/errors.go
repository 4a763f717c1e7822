package transfer

import "errors"

var (
	// ErrFileNotFound is returned when a local file to upload does not exist.
	ErrFileNotFound = errors.New("file not found")
	// ErrFileUnavailable is returned when a descriptor has neither a local
	// file nor a download URL.
	ErrFileUnavailable = errors.New("file unavailable")
	// ErrFileTooLarge is returned before any I/O for files over the limit.
	ErrFileTooLarge = errors.New("file exceeds size limit")
	// ErrDownloadFailed wraps transport and HTTP failures while downloading.
	ErrDownloadFailed = errors.New("download failed")
	// ErrUploadFailed wraps transport, HTTP and relay-reported failures.
	ErrUploadFailed = errors.New("upload failed")
)
