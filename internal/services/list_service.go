package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/mrlokans/kindle-vocab/internal/dictionary"
	"github.com/mrlokans/kindle-vocab/internal/logging"
)

// SampleWords are looked up when list is called without arguments. They cover
// a plain entry, a misspelling that needs a suggestion, a phrase and a word
// with a diacritic.
var SampleWords = []string{"loosestrife", "cardipnipd", "carte blanche", "outré"}

// ListService prints dictionary data for words without touching the Kindle
// database or the watermark.
type ListService struct {
	resolver WordResolver
	workers  int
	log      *slog.Logger
}

func NewListService(resolver WordResolver, workers int, logger *slog.Logger) *ListService {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &ListService{
		resolver: resolver,
		workers:  workers,
		log:      logger.With("component", "list"),
	}
}

// List resolves words concurrently and writes one block per word to w,
// in input order. An empty words slice uses SampleWords.
func (s *ListService) List(ctx context.Context, words []string, w io.Writer) error {
	if len(words) == 0 {
		words = SampleWords
	}

	results := make([]dictionary.Resolution, len(words))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, word := range words {
		i, word := i, word
		g.Go(func() error {
			results[i] = s.resolver.Resolve(gctx, word)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	found := 0
	for i, word := range words {
		res := results[i]
		if res.Found() {
			found++
		}
		if _, err := fmt.Fprintf(w, "%14s %s\n%14s %s\n%14s %s\n%14s %s\n\n",
			"Word:", word,
			"Headword:", res.Headword,
			"Pronunciation:", res.Pronunciation,
			"Definition:", res.Definition,
		); err != nil {
			return fmt.Errorf("write definition of %q: %w", word, err)
		}
	}

	s.log.DebugContext(ctx, "listed definitions",
		slog.Int("words", len(words)),
		slog.Int("found", found),
	)
	return nil
}
