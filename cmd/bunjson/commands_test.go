package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/kartikbazzad/bunbase/bunjson/pkg/errors"
)

const testData = `{
  // three users
  "a": {"_id": "a", "email": "a@site.com", "name": "A", "score": 80},
  "b": {"_id": "b", "email": "b@site.com", "name": "B", "score": 76},
  "c": {"_id": "c", "email": "c@site.com", "name": "C", "score": 95}
}`

func runCLI(t *testing.T, file string, args ...string) (string, error) {
	t.Helper()
	cfg := &Config{File: file}
	cmd := newRootCmd(cfg)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func setupFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.json")
	if err := os.WriteFile(path, []byte(testData), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCLIReadCommands(t *testing.T) {
	file := setupFile(t)

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"count"}, "3"},
		{[]string{"count", "--where", "score >= 80"}, "2"},
		{[]string{"count", "--expr", "row.score < 80"}, "1"},
		{[]string{"sum", "score"}, "251"},
		{[]string{"max", "score"}, "95"},
		{[]string{"min", "score", "--where", "score between [80, 95]"}, "80"},
		{[]string{"lists", "name", "--sort", "score:desc", "--take", "2"}, "{\n  \"0\": \"C\",\n  \"1\": \"A\"\n}"},
		{[]string{"get", "--where", "name = B", "--select", "email"}, "[\n  {\n    \"email\": \"b@site.com\"\n  }\n]"},
	}

	for _, tt := range tests {
		got, err := runCLI(t, file, tt.args...)
		if err != nil {
			t.Errorf("%v failed: %v", tt.args, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%v = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestCLIWriteCommands(t *testing.T) {
	file := setupFile(t)

	if got, err := runCLI(t, file, "update", "--where", "score >= 80", `{"score": 90}`); err != nil || got != "2" {
		t.Fatalf("update = %q, %v", got, err)
	}
	if got, _ := runCLI(t, file, "sum", "score"); got != "256" {
		t.Errorf("Expected sum 256 after update, got %s", got)
	}

	if got, err := runCLI(t, file, "insert", `[{"name": "D"}, {"name": "E"}]`); err != nil || got != "2" {
		t.Fatalf("insert = %q, %v", got, err)
	}
	if got, err := runCLI(t, file, "delete", "--where", "name in [\"D\", \"E\"]"); err != nil || got != "2" {
		t.Fatalf("delete = %q, %v", got, err)
	}
	if got, _ := runCLI(t, file, "count"); got != "3" {
		t.Errorf("Expected 3 records, got %s", got)
	}
}

func TestCLIErrors(t *testing.T) {
	file := setupFile(t)

	tests := []struct {
		args []string
		code int
	}{
		{[]string{"count", "--where", "score ~ 1"}, apperrors.CodeUsage},
		{[]string{"count", "--where", "score between 1"}, apperrors.CodeUsage},
		{[]string{"get", "--sort", "score:sideways"}, apperrors.CodeUsage},
		{[]string{"first", "--where", "score > 1000"}, apperrors.CodeNotFound},
		{[]string{"update", "not json"}, apperrors.CodeUsage},
	}

	for _, tt := range tests {
		_, err := runCLI(t, file, tt.args...)
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			t.Errorf("%v: expected AppError, got %v", tt.args, err)
			continue
		}
		if appErr.Code != tt.code {
			t.Errorf("%v: exit code %d, want %d", tt.args, appErr.Code, tt.code)
		}
	}

	if _, err := runCLI(t, "", "count"); exitCode(err) != apperrors.CodeUsage {
		t.Errorf("Expected usage error without a file, got %v", err)
	}
}
