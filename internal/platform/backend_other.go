//go:build !linux

package platform

import "fmt"

// NewDefault reports that no window-system backend exists for this platform.
func NewDefault() (Backend, error) {
	return nil, fmt.Errorf("floating window backend: %w", ErrUnsupported)
}
