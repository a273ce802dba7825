package dictionary

import (
	"errors"
	"fmt"
)

// ErrEmptyWord is returned when the word is blank after trimming
var ErrEmptyWord = errors.New("empty word")

// ErrNoEntries indicates the API answered with an empty result list
var ErrNoEntries = errors.New("dictionary returned no entries")

// ErrMalformedResponse indicates the body did not match the expected schema
var ErrMalformedResponse = errors.New("malformed dictionary response")

// ErrRetriesExhausted is returned once every lookup attempt has failed
var ErrRetriesExhausted = errors.New("dictionary lookup retries exhausted")

// StatusError represents a non-2xx answer from the dictionary API
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("dictionary API error: HTTP %d", e.StatusCode)
}
