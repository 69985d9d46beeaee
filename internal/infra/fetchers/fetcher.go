// Package fetchers downloads rule inventories from remote sources: published
// Google Sheets over HTTPS and CSV objects in S3-compatible buckets.
package fetchers

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Fetch errors.
var (
	// ErrTooLarge is returned when a payload exceeds the configured limit.
	ErrTooLarge = errors.New("payload exceeds size limit")

	// ErrBlockedURL is returned when a URL targets a disallowed destination.
	ErrBlockedURL = errors.New("url is not allowed")

	// ErrCircuitOpen is returned while the upstream circuit breaker is open.
	ErrCircuitOpen = errors.New("upstream temporarily unavailable: too many recent failures")
)

// StatusError is a non-success HTTP status from the upstream.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("failed to fetch: HTTP %d", e.StatusCode)
}

// Result is one downloaded inventory.
type Result struct {
	// Body is the raw CSV payload.
	Body []byte

	// Location is the URL actually fetched (after CSV rewriting).
	Location string

	// ETag is the upstream entity tag, when provided.
	ETag string

	FetchedAt time.Time
}

// Fetcher downloads one inventory from a location.
type Fetcher interface {
	Fetch(ctx context.Context, location string) (*Result, error)
}
