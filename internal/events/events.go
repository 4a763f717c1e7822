// Package events is the daemon's event surface: typed payloads for
// transfer, window and screenshot notifications and a broadcaster that
// fans them out to subscribers.
package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/1broseidon/floatdrop/internal/metrics"
)

const (
	UploadStarted      = "upload-started"
	UploadProgress     = "upload-progress"
	FileUploaded       = "file-uploaded"
	UploadCompleted    = "upload-completed"
	UploadError        = "upload-error"
	DownloadProgress   = "download-progress"
	WindowStateChanged = "window-state-changed"
	ScreenshotCaptured = "screenshot-captured"
	ScreenshotError    = "screenshot-error"
	StatusChanged      = "status-changed"
)

// Event is a single notification. Payload holds one of the typed payload
// structs below.
type Event struct {
	Type      string `json:"type"`
	Payload   any    `json:"payload,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// UploadStartedPayload announces a batch.
type UploadStartedPayload struct {
	Count int `json:"count"`
}

// ProgressPayload reports transfer progress for one item of a batch.
// Percent is 0..100; Overall is the combined batch percentage.
type ProgressPayload struct {
	Index   int    `json:"index"`
	Name    string `json:"fileName"`
	Percent int    `json:"progress"`
	Overall int    `json:"overall"`
}

// ErrorPayload reports a per-item failure.
type ErrorPayload struct {
	Name  string `json:"fileName,omitempty"`
	Path  string `json:"path,omitempty"`
	Error string `json:"error"`
}

// ScreenshotPayload reports a captured screenshot.
type ScreenshotPayload struct {
	Path   string `json:"path"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// StatusPayload reports the tray status and its tooltip.
type StatusPayload struct {
	Status  string `json:"status"`
	Tooltip string `json:"tooltip"`
}

// Publisher is the write side of the event surface.
type Publisher interface {
	Publish(event Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Event)

// Publish calls f(event).
func (f PublisherFunc) Publish(event Event) { f(event) }

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(Event) {})

// New builds an event of the given type.
func New(eventType string, payload any) Event {
	return Event{Type: eventType, Payload: payload}
}

// Broadcaster manages subscribers and publishes events.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	buffer      int
}

// NewBroadcaster creates a new event broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan Event]struct{}),
		buffer:      64,
	}
}

// Subscribe adds a new subscriber and returns its event channel.
// The caller must call Unsubscribe when done.
func (b *Broadcaster) Subscribe() chan Event {
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	n := len(b.subscribers)
	b.mu.Unlock()
	metrics.SetSubscribersActive(n)
	return ch
}

// Unsubscribe removes a subscriber and closes its channel. Unsubscribing
// twice is a no-op.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
	n := len(b.subscribers)
	b.mu.Unlock()
	metrics.SetSubscribersActive(n)
}

// Publish sends an event to all subscribers. Non-blocking: drops events
// for slow consumers.
func (b *Broadcaster) Publish(event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Drop event for slow consumer
		}
	}
	metrics.RecordEvent(event.Type)
}

// Count returns the current number of subscribers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Marshal serializes an event to JSON.
func Marshal(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", e.Type, err)
	}
	return data, nil
}
