package nexus

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when scraped pages do not contain the expected
// markers.
var ErrNotFound = errors.New("not found")

// UpstreamError is a non-200 response from the upstream.
type UpstreamError struct {
	Status  int
	Message string
	URL     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("Error %d: %s", e.Status, e.Message)
}
