package config

// Default paths and endpoints
const (
	// DefaultVocabDBPath is where a mounted Kindle exposes its vocabulary builder
	// database when copied next to the binary.
	DefaultVocabDBPath = "./vocab.db"

	// DefaultOutputPath is the Anki import file written by the export command
	DefaultOutputPath = "./import.csv"

	// DefaultTimestampFile records the watermark of the last successful export
	DefaultTimestampFile = "./last_timestamp.txt"

	// DefaultHistoryDBPath stores the export run history
	DefaultHistoryDBPath = "./kindle-vocab-history.db"

	// DefaultDictionaryBaseURL is the Merriam-Webster Collegiate JSON endpoint
	DefaultDictionaryBaseURL = "https://dictionaryapi.com/api/v3/references/collegiate/json"

	// MaxDictionaryAttempts is the hard ceiling on lookup attempts per word
	MaxDictionaryAttempts = 3
)
