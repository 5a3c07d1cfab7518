// Package bunjson implements an embedded document collection stored in a
// single JSON file.
//
// The file holds one JSON object mapping each record's primary key to the
// record. A Collection loads it, and a Query runs a pipeline of stages
// (Where, Filter, Map, SortBy, Select, Skip, Take, joins) over a working
// copy before a terminal call either returns data or writes the matched
// records back:
//
//	users, _ := bunjson.Open(bunjson.DefaultOptions("users.json"))
//	n, err := users.Where("score", ">=", 80).Update(map[string]interface{}{"score": 90})
//
// Every write rewrites the whole file. A Collection serializes its own
// writes but does not coordinate with other processes.
package bunjson

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kartikbazzad/bunbase/bunjson/internal/metrics"
	"github.com/kartikbazzad/bunbase/bunjson/pkg/logger"
	"github.com/kartikbazzad/bunbase/bunjson/storage"
	"github.com/xeipuuv/gojsonschema"
)

// Collection is a set of records backed by one JSON file
type Collection struct {
	opts   *Options
	schema *gojsonschema.Schema // nil when no schema is configured
	logger *slog.Logger

	// mu serializes loads and read-modify-write cycles
	mu    sync.Mutex
	cache *storage.DocumentSet // only used with CacheData
}

// Open creates a collection. The backing file is read lazily and may not
// exist yet.
func Open(opts *Options) (*Collection, error) {
	if opts == nil || opts.Path == "" {
		return nil, fmt.Errorf("%w: collection path is required", ErrInvalidArgument)
	}
	o := opts.withDefaults()
	if o.PrimaryKey == o.OldIDKey {
		return nil, fmt.Errorf("%w: primary key and old id field must differ", ErrInvalidArgument)
	}

	l := o.Logger
	if l == nil {
		l = logger.Get()
	}
	c := &Collection{
		opts:   o,
		logger: logger.WithCollection(l, o.Path),
	}

	if o.Schema != "" {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(o.Schema))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid json schema: %v", ErrInvalidArgument, err)
		}
		c.schema = schema
	}

	return c, nil
}

// New opens a collection at path with default options
func New(path string) (*Collection, error) {
	return Open(DefaultOptions(path))
}

// Path returns the backing file path
func (c *Collection) Path() string {
	return c.opts.Path
}

// PrimaryKey returns the name of the ID field
func (c *Collection) PrimaryKey() string {
	return c.opts.PrimaryKey
}

// OldIDKey returns the name of the field that tracks remapped IDs
func (c *Collection) OldIDKey() string {
	return c.opts.OldIDKey
}

// LoadData returns a copy of the stored records.
// Without CacheData the backing file is read on every call.
func (c *Collection) LoadData() (*DocumentSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := c.load()
	if err != nil {
		return nil, err
	}
	return data.Clone(), nil
}

// load returns the stored set. Callers must hold c.mu and must not modify
// the result when caching is enabled.
func (c *Collection) load() (*storage.DocumentSet, error) {
	if c.opts.CacheData && c.cache != nil {
		return c.cache, nil
	}

	start := time.Now()
	data, err := storage.LoadFile(c.opts.Path)
	metrics.Since(metrics.LoadDuration, start)
	if err != nil {
		c.logger.Error("Failed to load collection", "error", err)
		return nil, err
	}
	c.logger.Debug("Loaded collection", "count", data.Len())
	metrics.DocumentsStored.WithLabelValues(c.opts.Path).Set(float64(data.Len()))

	if c.opts.CacheData {
		c.cache = data
	}
	return data, nil
}

// loadForWrite returns a set the caller may modify and then persist
func (c *Collection) loadForWrite() (*storage.DocumentSet, error) {
	data, err := c.load()
	if err != nil {
		return nil, err
	}
	if c.opts.CacheData {
		return data.Clone(), nil
	}
	return data, nil
}

// persist rewrites the backing file. Callers must hold c.mu.
func (c *Collection) persist(data *storage.DocumentSet) error {
	start := time.Now()
	err := storage.SaveFile(c.opts.Path, data, c.opts.Indent, c.opts.FileMode)
	metrics.Since(metrics.PersistDuration, start)
	if err != nil {
		c.cache = nil
		c.logger.Error("Failed to persist collection", "error", err)
		return err
	}
	if c.opts.CacheData {
		c.cache = data
	}
	c.logger.Debug("Persisted collection", "count", data.Len())
	metrics.DocumentsStored.WithLabelValues(c.opts.Path).Set(float64(data.Len()))
	return nil
}

// Validate checks a record against the collection's schema
func (c *Collection) Validate(doc *Document) error {
	if c.schema == nil {
		return nil
	}

	result, err := c.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		sort.Strings(errs)
		return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(errs, "; "))
	}
	return nil
}

// Query starts a new query over the collection
func (c *Collection) Query() *Query {
	return NewQuery(c)
}

// Insert stores one record, assigning an ID when it has none.
// The stored record is returned.
func (c *Collection) Insert(doc *Document) (*Document, error) {
	res, err := c.Execute(nil, OpInsert, doc)
	if err != nil {
		return nil, err
	}
	return res.Documents[0], nil
}

// Inserts stores several records at once
func (c *Collection) Inserts(docs []*Document) (int, error) {
	res, err := c.Execute(nil, OpInsert, docs)
	if err != nil {
		return 0, err
	}
	return res.Affected, nil
}

// Find returns the record stored under id
func (c *Collection) Find(id string) (*Document, error) {
	data, err := c.LoadData()
	if err != nil {
		return nil, err
	}
	doc, ok := data.Get(id)
	if !ok || doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	return doc, nil
}

// All returns every stored record in file order
func (c *Collection) All() ([]*Document, error) {
	return c.Query().All()
}

// Truncate removes every record and returns how many there were
func (c *Collection) Truncate() (n int, err error) {
	defer func() { metrics.ObserveOperation("truncate", n, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := c.load()
	if err != nil {
		return 0, err
	}
	if err := c.persist(storage.NewDocumentSet()); err != nil {
		return 0, err
	}
	c.logger.Info("Truncated collection", "count", data.Len())
	return data.Len(), nil
}

// Stage shortcuts, each starting a new query

func (c *Collection) Where(field, operator string, value interface{}) *Query {
	return c.Query().Where(field, operator, value)
}

func (c *Collection) WhereEq(field string, value interface{}) *Query {
	return c.Query().WhereEq(field, value)
}

func (c *Collection) WhereExpr(expression string) *Query {
	return c.Query().WhereExpr(expression)
}

func (c *Collection) Filter(pred Predicate) *Query {
	return c.Query().Filter(pred)
}

func (c *Collection) Map(mapper Mapper) *Query {
	return c.Query().Map(mapper)
}

func (c *Collection) Sort(cmp Comparator) *Query {
	return c.Query().Sort(cmp)
}

func (c *Collection) SortBy(field, direction string) *Query {
	return c.Query().SortBy(field, direction)
}

func (c *Collection) Select(columns ...string) *Query {
	return c.Query().Select(columns...)
}

func (c *Collection) Skip(offset int) *Query {
	return c.Query().Skip(offset)
}

func (c *Collection) Take(limit int, offset ...int) *Query {
	return c.Query().Take(limit, offset...)
}

func (c *Collection) Through(pipes ...Pipe) *Query {
	return c.Query().Through(pipes...)
}

func (c *Collection) WithOne(relation interface{}, as, otherField, operator, thisField string) *Query {
	return c.Query().WithOne(relation, as, otherField, operator, thisField)
}

func (c *Collection) WithMany(relation interface{}, as, otherField, operator, thisField string) *Query {
	return c.Query().WithMany(relation, as, otherField, operator, thisField)
}

// Read shortcuts over the whole collection

func (c *Collection) Get(columns ...string) ([]*Document, error) {
	return c.Query().Get(columns...)
}

func (c *Collection) First(columns ...string) (*Document, error) {
	return c.Query().First(columns...)
}

func (c *Collection) Count() (int, error) {
	return c.Query().Count()
}

func (c *Collection) Sum(field string) (float64, error) {
	return c.Query().Sum(field)
}

func (c *Collection) Avg(field string) (float64, error) {
	return c.Query().Avg(field)
}

func (c *Collection) Min(field string) (interface{}, error) {
	return c.Query().Min(field)
}

func (c *Collection) Max(field string) (interface{}, error) {
	return c.Query().Max(field)
}

func (c *Collection) Lists(field string, keyField ...string) (*Document, error) {
	return c.Query().Lists(field, keyField...)
}

func (c *Collection) Pluck(field string, keyField ...string) (*Document, error) {
	return c.Query().Pluck(field, keyField...)
}
