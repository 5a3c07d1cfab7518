package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kartikbazzad/bunbase/bunjson"
	apperrors "github.com/kartikbazzad/bunbase/bunjson/pkg/errors"
	"github.com/kartikbazzad/bunbase/bunjson/pkg/logger"
	"github.com/kartikbazzad/bunbase/bunjson/storage"
)

type queryFlags struct {
	where   []string
	expr    string
	columns []string
	sort    string
	skip    int
	take    int
}

// --- Cobra root and commands ---

func newRootCmd(cfg *Config) *cobra.Command {
	flags := &queryFlags{}

	rootCmd := &cobra.Command{
		Use:           "bunjson",
		Short:         "Query and edit a JSON document collection",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfg.File, "file", "f", cfg.File, "Collection file (env BUNJSON_FILE)")
	pf.BoolVar(&cfg.Indent, "indent", cfg.Indent, "Write the collection file indented")
	pf.StringArrayVarP(&flags.where, "where", "w", nil, `Filter clause "field op value", repeatable`)
	pf.StringVar(&flags.expr, "expr", "", "CEL filter over row, e.g. 'row.score >= 80'")
	pf.StringSliceVar(&flags.columns, "select", nil, "Columns to return, field or field:alias")
	pf.StringVar(&flags.sort, "sort", "", "Sort by field[:asc|desc]")
	pf.IntVar(&flags.skip, "skip", 0, "Records to skip")
	pf.IntVar(&flags.take, "take", -1, "Maximum records to return")

	// runQuery opens the collection and applies the shared stages
	runQuery := func() (*bunjson.Query, error) {
		c, err := openCollection(cfg)
		if err != nil {
			return nil, err
		}
		return buildQuery(c, flags)
	}

	// get
	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Print the matching records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := runQuery()
			if err != nil {
				return err
			}
			docs, err := q.Get()
			if err != nil {
				return wrapError(err)
			}
			return printJSON(cmd.OutOrStdout(), docs)
		},
	}

	// first
	firstCmd := &cobra.Command{
		Use:   "first",
		Short: "Print the first matching record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := runQuery()
			if err != nil {
				return err
			}
			doc, err := q.First()
			if err != nil {
				return wrapError(err)
			}
			if doc == nil {
				return apperrors.NotFound("no matching record")
			}
			return printJSON(cmd.OutOrStdout(), doc)
		},
	}

	// count
	countCmd := &cobra.Command{
		Use:   "count",
		Short: "Count the matching records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := runQuery()
			if err != nil {
				return err
			}
			n, err := q.Count()
			if err != nil {
				return wrapError(err)
			}
			return printJSON(cmd.OutOrStdout(), n)
		},
	}

	// sum, avg
	aggregateCmd := func(name, short string, fn func(q *bunjson.Query, field string) (float64, error)) *cobra.Command {
		return &cobra.Command{
			Use:   name + " <field>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				q, err := runQuery()
				if err != nil {
					return err
				}
				v, err := fn(q, args[0])
				if err != nil {
					return wrapError(err)
				}
				if math.IsNaN(v) {
					return printJSON(cmd.OutOrStdout(), nil)
				}
				return printJSON(cmd.OutOrStdout(), v)
			},
		}
	}
	sumCmd := aggregateCmd("sum", "Sum a field over the matching records", (*bunjson.Query).Sum)
	avgCmd := aggregateCmd("avg", "Average a field over the matching records", (*bunjson.Query).Avg)

	// min, max
	extremeCmd := func(name, short string, fn func(q *bunjson.Query, field string) (interface{}, error)) *cobra.Command {
		return &cobra.Command{
			Use:   name + " <field>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				q, err := runQuery()
				if err != nil {
					return err
				}
				v, err := fn(q, args[0])
				if err != nil {
					return wrapError(err)
				}
				return printJSON(cmd.OutOrStdout(), v)
			},
		}
	}
	minCmd := extremeCmd("min", "Smallest value of a field", (*bunjson.Query).Min)
	maxCmd := extremeCmd("max", "Largest value of a field", (*bunjson.Query).Max)

	// lists
	listsCmd := &cobra.Command{
		Use:     "lists <field> [key-field]",
		Aliases: []string{"pluck"},
		Short:   "Map position or key-field to a field's value",
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := runQuery()
			if err != nil {
				return err
			}
			list, err := q.Lists(args[0], args[1:]...)
			if err != nil {
				return wrapError(err)
			}
			return printJSON(cmd.OutOrStdout(), list)
		},
	}

	// insert
	insertCmd := &cobra.Command{
		Use:   "insert <json|->",
		Short: "Insert a record or an array of records, '-' reads stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := []byte(args[0])
			if args[0] == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return apperrors.Internal(err)
				}
				input = data
			}
			docs, err := parseDocuments(input)
			if err != nil {
				return apperrors.Usage("invalid insert payload", err)
			}
			c, err := openCollection(cfg)
			if err != nil {
				return err
			}
			n, err := c.Inserts(docs)
			if err != nil {
				return wrapError(err)
			}
			logger.Info("Inserted documents", "collection", cfg.File, "count", n)
			return printJSON(cmd.OutOrStdout(), n)
		},
	}

	// update
	updateCmd := &cobra.Command{
		Use:   "update <patch-json>",
		Short: "Merge a patch into the matching records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := parsePatch([]byte(args[0]))
			if err != nil {
				return apperrors.Usage("invalid patch", err)
			}
			q, err := runQuery()
			if err != nil {
				return err
			}
			n, err := q.Update(patch)
			if err != nil {
				return wrapError(err)
			}
			logger.Info("Updated documents", "collection", cfg.File, "count", n)
			return printJSON(cmd.OutOrStdout(), n)
		},
	}

	// delete
	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the matching records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := runQuery()
			if err != nil {
				return err
			}
			n, err := q.Delete()
			if err != nil {
				return wrapError(err)
			}
			logger.Info("Deleted documents", "collection", cfg.File, "count", n)
			return printJSON(cmd.OutOrStdout(), n)
		},
	}

	rootCmd.AddCommand(getCmd, firstCmd, countCmd, sumCmd, avgCmd, minCmd, maxCmd, listsCmd, insertCmd, updateCmd, deleteCmd)
	return rootCmd
}

func openCollection(cfg *Config) (*bunjson.Collection, error) {
	if cfg.File == "" {
		return nil, apperrors.Usage("no collection file, use --file or BUNJSON_FILE", nil)
	}
	opts := bunjson.DefaultOptions(cfg.File)
	opts.Indent = cfg.Indent
	opts.Logger = logger.Get()
	c, err := bunjson.Open(opts)
	if err != nil {
		return nil, wrapError(err)
	}
	return c, nil
}

func buildQuery(c *bunjson.Collection, flags *queryFlags) (*bunjson.Query, error) {
	q := c.Query()
	for _, clause := range flags.where {
		field, op, value, err := parseWhere(clause)
		if err != nil {
			return nil, apperrors.Usage("invalid --where", err)
		}
		q.Where(field, op, value)
	}
	if flags.expr != "" {
		q.WhereExpr(flags.expr)
	}
	if flags.sort != "" {
		field, dir, _ := strings.Cut(flags.sort, ":")
		if dir == "" {
			dir = "asc"
		}
		q.SortBy(field, dir)
	}
	if flags.skip != 0 {
		q.Skip(flags.skip)
	}
	if flags.take >= 0 {
		q.Take(flags.take)
	}
	if len(flags.columns) > 0 {
		q.Select(flags.columns...)
	}
	if err := q.Err(); err != nil {
		return nil, wrapError(err)
	}
	return q, nil
}

// wrapError attaches an exit code to a library error
func wrapError(err error) error {
	switch {
	case errors.Is(err, bunjson.ErrInvalidOperator),
		errors.Is(err, bunjson.ErrInvalidArgument),
		errors.Is(err, bunjson.ErrSchemaViolation):
		return apperrors.Usage("invalid request", err)
	case errors.Is(err, bunjson.ErrDocumentNotFound):
		return apperrors.New(apperrors.CodeNotFound, "not found", err)
	default:
		return apperrors.Internal(err)
	}
}

func parseDocuments(input []byte) ([]*bunjson.Document, error) {
	input = bytes.TrimSpace(input)
	if len(input) > 0 && input[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(input, &raw); err != nil {
			return nil, err
		}
		docs := make([]*bunjson.Document, 0, len(raw))
		for i, r := range raw {
			doc, err := storage.DeserializeDocument(r)
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			docs = append(docs, doc)
		}
		return docs, nil
	}

	doc, err := storage.DeserializeDocument(input)
	if err != nil {
		return nil, err
	}
	return []*bunjson.Document{doc}, nil
}

func parsePatch(input []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(input))
	dec.UseNumber()

	var patch map[string]interface{}
	if err := dec.Decode(&patch); err != nil {
		return nil, err
	}
	if patch == nil {
		return nil, fmt.Errorf("patch must be a JSON object")
	}
	return patch, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
