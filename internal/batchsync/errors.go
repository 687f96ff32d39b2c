package batchsync

import (
	"encoding/json"
	"errors"
	"fmt"
)

var errNoResponses = errors.New("no canned responses left")

// FetchError reports that a candidate batch could not be obtained.
// No local state is touched when a sync fails with a FetchError.
type FetchError struct {
	Source     string
	StatusCode int // HTTP status, 0 when not applicable
	Retryable  bool
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Source, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ValidationError indicates the fetched document does not match the batch
// contract.
type ValidationError struct {
	Content json.RawMessage
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid batch document: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
