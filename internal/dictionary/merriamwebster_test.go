package dictionary

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loosestrifeBody = `[{
	"meta": {"id": "loosestrife", "stems": ["loosestrife"]},
	"hwi": {"hw": "loose*strife", "prs": [{"mw": "ˈlüs-ˌstrīf", "sound": {"audio": "loose01"}}]},
	"fl": "noun",
	"shortdef": ["any of a genus of plants of the primrose family", "any of several plants of the loosestrife family"]
}]`

func newTestClient(url string) *MerriamWebsterClient {
	return NewMerriamWebsterClient(MerriamWebsterConfig{
		APIKey:  "test-key",
		BaseURL: url,
	}, nil)
}

func TestMerriamWebsterClient_Lookup_Entry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/loosestrife", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(loosestrifeBody))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).Lookup(context.Background(), "loosestrife")
	require.NoError(t, err)
	require.NotNil(t, resp.Entry)
	assert.Nil(t, resp.Suggestions)

	assert.Equal(t, "loose*strife", resp.Entry.Headword)
	assert.Equal(t, "ˈlüs-ˌstrīf", resp.Entry.Pronunciation)
	assert.Len(t, resp.Entry.ShortDefs, 2)
}

func TestMerriamWebsterClient_Lookup_Suggestions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["cardiopathy", "cardioid", "carding"]`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).Lookup(context.Background(), "cardipnipd")
	require.NoError(t, err)
	assert.Nil(t, resp.Entry)
	assert.Equal(t, []string{"cardiopathy", "cardioid", "carding"}, resp.Suggestions)
}

func TestMerriamWebsterClient_Lookup_EscapesPhrase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/carte%20blanche", r.URL.EscapedPath())
		w.Write([]byte(`[{"hwi": {"hw": "carte blanche"}, "shortdef": ["full discretionary power"]}]`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).Lookup(context.Background(), "carte blanche")
	require.NoError(t, err)
	require.NotNil(t, resp.Entry)
	assert.Equal(t, "carte blanche", resp.Entry.Headword)
	assert.Empty(t, resp.Entry.Pronunciation)
}

func TestMerriamWebsterClient_Lookup_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(loosestrifeBody))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).Lookup(context.Background(), "loosestrife")
	require.NoError(t, err)
	require.NotNil(t, resp.Entry)
	assert.Equal(t, int32(3), calls.Load())
}

func TestMerriamWebsterClient_Lookup_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Lookup(context.Background(), "loosestrife")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRetriesExhausted))

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.Equal(t, int32(3), calls.Load(), "never more than three attempts")
}

func TestMerriamWebsterClient_Lookup_AttemptsCappedAtThree(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewMerriamWebsterClient(MerriamWebsterConfig{BaseURL: srv.URL, MaxAttempts: 10}, nil)
	_, err := client.Lookup(context.Background(), "word")
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestMerriamWebsterClient_Lookup_MalformedNotRetried(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"not json", `<html>Invalid API key</html>`, ErrMalformedResponse},
		{"object instead of array", `{"error": "nope"}`, ErrMalformedResponse},
		{"entry without headword", `[{"meta": {"id": "x"}, "shortdef": []}]`, ErrMalformedResponse},
		{"number element", `[42]`, ErrMalformedResponse},
		{"empty array", `[]`, ErrNoEntries},
		{"blank suggestions", `["", "  "]`, ErrNoEntries},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).Lookup(context.Background(), "word")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestMerriamWebsterClient_Lookup_EmptyWord(t *testing.T) {
	client := newTestClient("http://127.0.0.1:0")
	_, err := client.Lookup(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyWord)
}

func TestMerriamWebsterClient_Lookup_ContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewMerriamWebsterClient(MerriamWebsterConfig{
		BaseURL:    srv.URL,
		RetryDelay: time.Hour,
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Lookup(ctx, "word")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMerriamWebsterClient_ErrorDoesNotLeakKey(t *testing.T) {
	client := NewMerriamWebsterClient(MerriamWebsterConfig{
		APIKey:  "super-secret",
		BaseURL: "http://127.0.0.1:1",
		Timeout: time.Second,
	}, nil)

	_, err := client.Lookup(context.Background(), "word")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "super-secret")
}

func TestCalculateRetryDelay(t *testing.T) {
	client := NewMerriamWebsterClient(MerriamWebsterConfig{RetryDelay: 2 * time.Second}, nil)

	assert.Equal(t, 2*time.Second, client.calculateRetryDelay(1))
	assert.Equal(t, 4*time.Second, client.calculateRetryDelay(2))
	assert.Equal(t, maxRetryDelay, client.calculateRetryDelay(3))
}
