package dictionary

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mrlokans/kindle-vocab/internal/entities"
	"github.com/mrlokans/kindle-vocab/internal/logging"
)

// DefaultMaxHops bounds how many closest-match suggestions are followed.
const DefaultMaxHops = 5

type Outcome string

const (
	OutcomeFound    Outcome = "found"
	OutcomeNotFound Outcome = "not_found"
)

// Reason explains a not-found outcome.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonRetriesExhausted Reason = "retries_exhausted"
	ReasonMalformed        Reason = "malformed_response"
	ReasonNoEntries        Reason = "no_entries"
	ReasonHopLimit         Reason = "hop_limit"
	ReasonCycle            Reason = "suggestion_cycle"
	ReasonCancelled        Reason = "cancelled"
	ReasonLookupFailed     Reason = "lookup_failed"
)

// Resolution is the outcome of resolving one word. The embedded
// DefinitionResult is always usable: on a miss it carries the fallback
// headword and empty pronunciation and definition.
type Resolution struct {
	entities.DefinitionResult
	Outcome Outcome
	Reason  Reason
	Hops    int // Suggestions followed before the final lookup
}

func (r Resolution) Found() bool {
	return r.Outcome == OutcomeFound
}

// Resolver turns words into headword, pronunciation and definition,
// following the API's closest-match suggestions when a word is unknown.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	client  Client
	maxHops int
	log     *slog.Logger
}

// NewResolver creates a Resolver. A maxHops of zero disables suggestion
// following; a negative value uses DefaultMaxHops.
func NewResolver(client Client, maxHops int, logger *slog.Logger) *Resolver {
	if maxHops < 0 {
		maxHops = DefaultMaxHops
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Resolver{
		client:  client,
		maxHops: maxHops,
		log:     logger.With("component", "resolver", "client", client.Name()),
	}
}

// Resolve never fails: per-word problems degrade to a not-found Resolution.
func (r *Resolver) Resolve(ctx context.Context, word string) Resolution {
	word = strings.TrimSpace(word)
	current := word
	visited := map[string]bool{strings.ToLower(current): true}

	for hops := 0; ; hops++ {
		resp, err := r.client.Lookup(ctx, current)
		if err != nil {
			reason := reasonFor(err)
			r.log.WarnContext(ctx, "definition not found",
				slog.String("word", word),
				slog.String("queried", current),
				slog.String("reason", string(reason)),
				slog.String("error", err.Error()),
			)
			return notFound(word, current, reason, hops)
		}

		if resp == nil || (resp.Entry == nil && len(resp.Suggestions) == 0) {
			r.log.WarnContext(ctx, "definition not found",
				slog.String("word", word),
				slog.String("queried", current),
				slog.String("reason", string(ReasonNoEntries)),
			)
			return notFound(word, current, ReasonNoEntries, hops)
		}

		if resp.Entry != nil {
			res := Resolution{
				DefinitionResult: entities.DefinitionResult{
					Headword:      strings.ReplaceAll(resp.Entry.Headword, "*", ""),
					Pronunciation: resp.Entry.Pronunciation,
					Definition:    strings.Join(resp.Entry.ShortDefs, "; "),
					SourceWord:    word,
				},
				Outcome: OutcomeFound,
				Hops:    hops,
			}
			r.log.DebugContext(ctx, "definition resolved",
				slog.String("word", word),
				slog.String("headword", res.Headword),
				slog.String("pronunciation", res.Pronunciation),
				slog.Int("hops", hops),
			)
			return res
		}

		next := resp.Suggestions[0]
		if hops >= r.maxHops {
			r.log.WarnContext(ctx, "suggestion hop limit reached",
				slog.String("word", word), slog.Int("max_hops", r.maxHops))
			return notFound(word, word, ReasonHopLimit, hops)
		}
		if visited[strings.ToLower(next)] {
			r.log.WarnContext(ctx, "suggestion cycle",
				slog.String("word", word), slog.String("suggestion", next))
			return notFound(word, word, ReasonCycle, hops)
		}
		visited[strings.ToLower(next)] = true

		r.log.WarnContext(ctx, "definition not found, searching closest match instead",
			slog.String("word", current), slog.String("suggestion", next))
		current = next
	}
}

func notFound(source, headword string, reason Reason, hops int) Resolution {
	return Resolution{
		DefinitionResult: entities.DefinitionResult{
			Headword:   headword,
			SourceWord: source,
		},
		Outcome: OutcomeNotFound,
		Reason:  reason,
		Hops:    hops,
	}
}

func reasonFor(err error) Reason {
	switch {
	case errors.Is(err, ErrRetriesExhausted):
		return ReasonRetriesExhausted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCancelled
	case errors.Is(err, ErrMalformedResponse):
		return ReasonMalformed
	case errors.Is(err, ErrNoEntries), errors.Is(err, ErrEmptyWord):
		return ReasonNoEntries
	default:
		return ReasonLookupFailed
	}
}
