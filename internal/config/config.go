package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		Kindle
		Output
		Dictionary
		Export
		History
		Schedule
		Log
	}

	Kindle struct {
		VocabDBPath string
	}
	Output struct {
		Path          string
		Delimiter     string // "comma" or "tab"
		TimestampFile string
	}
	Dictionary struct {
		APIKey      string
		BaseURL     string
		Timeout     time.Duration
		MaxAttempts int           // Attempts per word, 1..3
		RetryDelay  time.Duration // Initial backoff, doubled per attempt
		MaxHops     int           // Closest-match redirects followed per word
	}
	Export struct {
		Workers int // 0 = runtime.NumCPU()
	}
	History struct {
		DBPath string // Empty disables run history
	}
	Schedule struct {
		Cron string // Cron format: "0 * * * *" = hourly
	}
	Log struct {
		Level  string
		Format string
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("kindle_vocab_db", DefaultVocabDBPath)
	v.SetDefault("anki_output_path", DefaultOutputPath)
	v.SetDefault("output_delimiter", "comma")
	v.SetDefault("timestamp_file", DefaultTimestampFile)

	v.SetDefault("dictionary_api_key", "")
	v.SetDefault("dictionary_base_url", DefaultDictionaryBaseURL)
	v.SetDefault("dictionary_timeout", "10s")
	v.SetDefault("dictionary_max_attempts", MaxDictionaryAttempts)
	v.SetDefault("dictionary_retry_delay", "500ms")
	v.SetDefault("dictionary_max_hops", 5)

	v.SetDefault("export_workers", 0)
	v.SetDefault("history_db_path", DefaultHistoryDBPath)
	v.SetDefault("export_schedule", "0 * * * *") // Hourly at :00

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	return &Config{
		Kindle: Kindle{
			VocabDBPath: v.GetString("KINDLE_VOCAB_DB"),
		},
		Output: Output{
			Path:          v.GetString("ANKI_OUTPUT_PATH"),
			Delimiter:     v.GetString("OUTPUT_DELIMITER"),
			TimestampFile: v.GetString("TIMESTAMP_FILE"),
		},
		Dictionary: Dictionary{
			APIKey:      v.GetString("DICTIONARY_API_KEY"),
			BaseURL:     v.GetString("DICTIONARY_BASE_URL"),
			Timeout:     v.GetDuration("DICTIONARY_TIMEOUT"),
			MaxAttempts: v.GetInt("DICTIONARY_MAX_ATTEMPTS"),
			RetryDelay:  v.GetDuration("DICTIONARY_RETRY_DELAY"),
			MaxHops:     v.GetInt("DICTIONARY_MAX_HOPS"),
		},
		Export: Export{
			Workers: v.GetInt("EXPORT_WORKERS"),
		},
		History: History{
			DBPath: v.GetString("HISTORY_DB_PATH"),
		},
		Schedule: Schedule{
			Cron: v.GetString("EXPORT_SCHEDULE"),
		},
		Log: Log{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}
}

// Validate checks the dictionary settings that would otherwise fail deep
// inside a run. Commands that never reach the dictionary skip it.
func (d Dictionary) Validate() error {
	if d.MaxAttempts < 1 || d.MaxAttempts > MaxDictionaryAttempts {
		return fmt.Errorf("dictionary attempts must be between 1 and %d, got %d", MaxDictionaryAttempts, d.MaxAttempts)
	}
	if d.MaxHops < 0 {
		return fmt.Errorf("dictionary max hops must not be negative, got %d", d.MaxHops)
	}
	return nil
}
