package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mrlokans/kindle-vocab/internal/config"
	"github.com/mrlokans/kindle-vocab/internal/database"
	"github.com/mrlokans/kindle-vocab/internal/database/runs"
	"github.com/mrlokans/kindle-vocab/internal/dictionary"
	"github.com/mrlokans/kindle-vocab/internal/logging"
)

var errMissingAPIKey = errors.New("dictionary API key required: set DICTIONARY_API_KEY or pass -key")

// newResolver wires the Merriam-Webster client and the suggestion-following
// resolver from configuration.
func newResolver(cfg config.Dictionary, apiKey string, logger *slog.Logger) (*dictionary.Resolver, error) {
	if apiKey == "" {
		return nil, errMissingAPIKey
	}
	client := dictionary.NewMerriamWebsterClient(dictionary.MerriamWebsterConfig{
		APIKey:      apiKey,
		BaseURL:     cfg.BaseURL,
		Timeout:     cfg.Timeout,
		MaxAttempts: cfg.MaxAttempts,
		RetryDelay:  cfg.RetryDelay,
	}, logger)
	return dictionary.NewResolver(client, cfg.MaxHops, logger), nil
}

func newLogger(level, format string, w io.Writer) *slog.Logger {
	logger := logging.New(level, format, w)
	slog.SetDefault(logger)
	return logger
}

// openHistory opens the run history database. An empty path disables history.
func openHistory(path string) (*database.Database, *runs.Repository, error) {
	if path == "" {
		return nil, nil, nil
	}
	db, err := database.NewDatabase(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open history database %s: %w", path, err)
	}
	return db, runs.NewRepository(db.DB), nil
}
