package dictionary

import (
	"context"
)

// Entry is the part of a dictionary entry the exporter cares about.
type Entry struct {
	Headword      string
	Pronunciation string
	ShortDefs     []string
}

// Response is the decoded first element of a lookup. Exactly one of Entry
// and Suggestions is set: Suggestions when the API did not recognise the word
// and offered closest matches instead.
type Response struct {
	Entry       *Entry
	Suggestions []string
}

// Client defines the interface for dictionary API providers.
type Client interface {
	Lookup(ctx context.Context, word string) (*Response, error)
	Name() string
}
