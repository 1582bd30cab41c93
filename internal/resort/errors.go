package resort

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownResort is returned when an id is not in the registry.
	ErrUnknownResort = errors.New("unknown resort")

	// ErrNoFacilities is returned when a payload carries neither facilities nor a summary.
	ErrNoFacilities = errors.New("payload has no facilities and no summary")
)

// FetchError is a network or HTTP failure while talking to an upstream.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// TimeoutError is returned when a request or cycle deadline is exceeded.
type TimeoutError struct {
	URL   string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	if e.After > 0 {
		return fmt.Sprintf("timeout after %s: %s", e.After, e.URL)
	}
	return fmt.Sprintf("timeout: %s", e.URL)
}

// ParseError is returned when a payload does not match the vendor schema.
type ParseError struct {
	Source string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.Source, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UnmappedStatusError reports a vendor code missing from the status map.
// It is only ever logged; the facility resolves to unknown.
type UnmappedStatusError struct {
	Code string
}

func (e *UnmappedStatusError) Error() string {
	return fmt.Sprintf("unmapped status code %q", e.Code)
}
