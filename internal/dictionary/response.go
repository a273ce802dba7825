package dictionary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Merriam-Webster Collegiate API response types. A hit is an array of entry
// objects; a miss is an array of suggestion strings.

type mwEntry struct {
	HWI      *mwHeadwordInfo `json:"hwi"`
	ShortDef []string        `json:"shortdef"`
}

type mwHeadwordInfo struct {
	HW  string            `json:"hw"`
	PRS []mwPronunciation `json:"prs"`
}

type mwPronunciation struct {
	MW string `json:"mw"`
}

func decodeResponse(body []byte) (*Response, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(items) == 0 {
		return nil, ErrNoEntries
	}

	first := bytes.TrimSpace(items[0])
	if len(first) == 0 {
		return nil, ErrMalformedResponse
	}

	switch first[0] {
	case '"':
		return decodeSuggestions(items)
	case '{':
		return decodeEntry(first)
	default:
		return nil, fmt.Errorf("%w: unexpected element %.40s", ErrMalformedResponse, first)
	}
}

func decodeSuggestions(items []json.RawMessage) (*Response, error) {
	suggestions := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			return nil, fmt.Errorf("%w: mixed suggestion list: %v", ErrMalformedResponse, err)
		}
		if s = strings.TrimSpace(s); s != "" {
			suggestions = append(suggestions, s)
		}
	}
	if len(suggestions) == 0 {
		return nil, ErrNoEntries
	}
	return &Response{Suggestions: suggestions}, nil
}

func decodeEntry(raw json.RawMessage) (*Response, error) {
	var e mwEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if e.HWI == nil || e.HWI.HW == "" {
		return nil, fmt.Errorf("%w: entry has no headword", ErrMalformedResponse)
	}

	entry := &Entry{
		Headword:  e.HWI.HW,
		ShortDefs: e.ShortDef,
	}
	if len(e.HWI.PRS) > 0 {
		entry.Pronunciation = e.HWI.PRS[0].MW
	}
	return &Response{Entry: entry}, nil
}
