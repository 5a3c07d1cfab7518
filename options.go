package bunjson

import (
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// Options configures a collection
type Options struct {
	// Path to the backing JSON file
	Path string

	// PrimaryKey is the field holding the document ID (default: "_id")
	PrimaryKey string

	// OldIDKey is the field a map stage uses to remember a replaced ID (default: "_old")
	OldIDKey string

	// CacheData keeps the loaded documents in memory for the collection's
	// lifetime instead of re-reading the file on every load. External edits
	// to the file are not seen while the cache is warm.
	CacheData bool

	// Schema is an optional JSON schema every written document must satisfy
	Schema string

	// IDGenerator creates IDs for inserted documents (default: UUID v4)
	IDGenerator func() string

	// Indent writes the backing file pretty-printed
	Indent bool

	// FileMode for the backing file (default: 0644)
	FileMode os.FileMode

	// Logger receives load/persist events (default: logger.Get())
	Logger *slog.Logger
}

// DefaultOptions returns default collection options
func DefaultOptions(path string) *Options {
	return &Options{
		Path:        path,
		PrimaryKey:  "_id",
		OldIDKey:    "_old",
		IDGenerator: generateID,
		FileMode:    0644,
	}
}

func (o *Options) withDefaults() *Options {
	opts := *o
	defaults := DefaultOptions(o.Path)
	if opts.PrimaryKey == "" {
		opts.PrimaryKey = defaults.PrimaryKey
	}
	if opts.OldIDKey == "" {
		opts.OldIDKey = defaults.OldIDKey
	}
	if opts.IDGenerator == nil {
		opts.IDGenerator = defaults.IDGenerator
	}
	if opts.FileMode == 0 {
		opts.FileMode = defaults.FileMode
	}
	return &opts
}

func generateID() string {
	return uuid.NewString()
}
