package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/kartikbazzad/bunbase/bunjson/internal/util"
)

// commentPattern matches a "//" comment up to and including the line break.
// It is a plain text filter and does not know about JSON strings.
var commentPattern = regexp.MustCompile(`[ \t]*//.*[ \t]*[\r\n]`)

// StripComments removes line comments from a backing file's text
func StripComments(text string) string {
	return commentPattern.ReplaceAllString(text, "")
}

// LoadFile reads the backing file at path.
// A missing file is an empty collection; any other read error is a load
// failure and malformed content is a parse failure.
func LoadFile(path string) (*DocumentSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDocumentSet(), nil
		}
		return nil, fmt.Errorf("%w: %s: %v", util.ErrLoadFailure, path, err)
	}
	set, err := ParseDocumentSet(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// ParseDocumentSet decodes backing file content after stripping comments
func ParseDocumentSet(data []byte) (*DocumentSet, error) {
	cleaned := []byte(StripComments(string(data)))
	if len(bytes.TrimSpace(cleaned)) == 0 {
		return NewDocumentSet(), nil
	}

	set := NewDocumentSet()
	if err := json.Unmarshal(cleaned, set); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrParseFailure, err)
	}
	return set, nil
}

// EncodeDocumentSet serializes a set the way it is written to disk
func EncodeDocumentSet(set *DocumentSet, indent bool) ([]byte, error) {
	data, err := set.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize documents: %w", err)
	}
	if !indent {
		return data, nil
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return nil, fmt.Errorf("failed to indent documents: %w", err)
	}
	return out.Bytes(), nil
}

// SaveFile rewrites the whole backing file with the content of set
func SaveFile(path string, set *DocumentSet, indent bool, perm os.FileMode) error {
	data, err := EncodeDocumentSet(set, indent)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: %v", util.ErrWriteFailure, err)
		}
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("%w: %v", util.ErrWriteFailure, err)
	}
	return nil
}
