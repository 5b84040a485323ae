package feed

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedXML = errors.New("malformed XML")
	ErrNotFeed      = errors.New("not an RSS/Atom document")
	ErrInvalidRSS   = errors.New("RSS format is invalid")

	ErrBodyTooLarge = errors.New("response body too large")
)

// ParseError is returned by the normalizer. Kind is one of ErrMalformedXML,
// ErrNotFeed or ErrInvalidRSS.
type ParseError struct {
	Kind error
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to parse feed: %v: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("failed to parse feed: %v", e.Kind)
}

func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// FeedError is the single user-facing failure for a feed that could not be
// fetched or read.
type FeedError struct {
	Message string
	Err     error
}

func (e *FeedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *FeedError) Unwrap() error {
	return e.Err
}

// FetchError reports a non-2xx upstream response.
type FetchError struct {
	URL        string
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("HTTP error: %d fetching %s", e.StatusCode, e.URL)
}
