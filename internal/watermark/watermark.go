// Package watermark persists the timestamp of the most recently exported
// lookup so repeated exports only pick up new ones.
//
// The file is plain text. Every successful export appends one line holding
// epoch milliseconds; the last non-empty line is the current value.
package watermark

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

// Load returns the current watermark. A missing, empty or unparseable file
// yields 0 so that everything gets exported.
func (s *FileStore) Load() (int64, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read watermark file %s: %w", s.path, err)
	}
	return Parse(data), nil
}

// Parse extracts the watermark from file contents.
func Parse(data []byte) int64 {
	var last string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			last = line
		}
	}

	value, err := strconv.ParseInt(last, 10, 64)
	if err != nil || value < 0 {
		return 0
	}
	return value
}

// Advance appends value if it is greater than the stored watermark and
// reports whether the file changed. The watermark never moves backward.
func (s *FileStore) Advance(value int64) (bool, error) {
	current, err := s.Load()
	if err != nil {
		return false, err
	}
	if value <= current {
		return false, nil
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return false, fmt.Errorf("open watermark file %s: %w", s.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("stat watermark file %s: %w", s.path, err)
	}

	line := strconv.FormatInt(value, 10) + "\n"
	if info.Size() > 0 && !endsWithNewline(s.path, info.Size()) {
		line = "\n" + line
	}

	if _, err := f.WriteString(line); err != nil {
		return false, fmt.Errorf("write watermark file %s: %w", s.path, err)
	}
	if err := f.Sync(); err != nil {
		return false, fmt.Errorf("sync watermark file %s: %w", s.path, err)
	}
	return true, nil
}

func endsWithNewline(path string, size int64) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, 1)
	if _, err := f.ReadAt(buf, size-1); err != nil {
		return false
	}
	return buf[0] == '\n'
}
