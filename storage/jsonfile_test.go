package storage

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/kartikbazzad/bunbase/bunjson/internal/util"
)

func TestStripComments(t *testing.T) {
	input := "{\n  // users\n  \"a\": {\"_id\": \"a\"} // trailing\n}\n"
	want := "{\n  \"a\": {\"_id\": \"a\"}}\n"

	if got := StripComments(input); got != want {
		t.Errorf("StripComments() = %q, want %q", got, want)
	}
}

func TestLoadFileMissingIsEmpty(t *testing.T) {
	set, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Expected missing file to load as empty, got %v", err)
	}
	if set.Len() != 0 {
		t.Errorf("Expected empty set, got %d entries", set.Len())
	}
}

func TestLoadFileWithComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	content := "{\n" +
		"  // first record\n" +
		"  \"b\": {\"_id\": \"b\", \"n\": 2},\n" +
		"  \"a\": {\"_id\": \"a\", \"n\": 1}\n" +
		"}"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	set, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(set.Keys(), []string{"b", "a"}) {
		t.Errorf("Expected file order [b a], got %v", set.Keys())
	}
}

func TestLoadFileCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte(`{"a": {"_id": `), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFile(path)
	if !errors.Is(err, util.ErrParseFailure) {
		t.Errorf("Expected ErrParseFailure, got %v", err)
	}
}

func TestLoadFileNonObjectRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte(`{"a": 1}`), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFile(path)
	if !errors.Is(err, util.ErrParseFailure) {
		t.Errorf("Expected ErrParseFailure, got %v", err)
	}
}

func TestLoadFileUnreadable(t *testing.T) {
	// A directory cannot be read as a file
	_, err := LoadFile(t.TempDir())
	if !errors.Is(err, util.ErrLoadFailure) {
		t.Errorf("Expected ErrLoadFailure, got %v", err)
	}
}

func TestParseEmptyArray(t *testing.T) {
	set, err := ParseDocumentSet([]byte(`[]`))
	if err != nil {
		t.Fatal(err)
	}
	if set.Len() != 0 {
		t.Errorf("Expected empty set, got %d", set.Len())
	}
}

func TestSaveFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data.json")
	input := `{"x":{"_id":"x","v":1},"y":{"_id":"y","v":2.25}}`

	set, err := ParseDocumentSet([]byte(input))
	if err != nil {
		t.Fatal(err)
	}
	if err := SaveFile(path, set, false, 0644); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != input {
		t.Errorf("Saved content = %s, want %s", data, input)
	}
}

func TestDocumentSetSliceRekeys(t *testing.T) {
	set, err := ParseDocumentSet([]byte(`{"a":{"n":1},"b":{"n":2},"c":{"n":3}}`))
	if err != nil {
		t.Fatal(err)
	}

	sliced := set.Slice(1, 5)
	if !reflect.DeepEqual(sliced.Keys(), []string{"0", "1"}) {
		t.Errorf("Expected positional keys [0 1], got %v", sliced.Keys())
	}
	doc, _ := sliced.Get("0")
	if v, _ := doc.Get("n"); v.(interface{ String() string }).String() != "2" {
		t.Errorf("Expected first sliced record n=2, got %v", v)
	}

	if set.Slice(10, 1).Len() != 0 {
		t.Error("Expected empty slice past the end")
	}
}

func TestDocumentSetRename(t *testing.T) {
	set := NewDocumentSet()
	set.Set("a", NewDocument())
	set.Set("b", NewDocument())
	set.Set("c", NewDocument())

	if !set.Rename("b", "z") {
		t.Fatal("Expected rename to succeed")
	}
	if !reflect.DeepEqual(set.Keys(), []string{"a", "z", "c"}) {
		t.Errorf("Expected rename in place, got %v", set.Keys())
	}

	// Renaming onto an existing key drops the old holder
	set.Rename("a", "c")
	if !reflect.DeepEqual(set.Keys(), []string{"c", "z"}) {
		t.Errorf("Expected [c z], got %v", set.Keys())
	}
}

func TestDocumentSetRelocateSwap(t *testing.T) {
	set := NewDocumentSet()
	for _, id := range []string{"a", "b", "c"} {
		doc := NewDocument()
		doc.Set("name", id)
		set.Set(id, doc)
	}
	docA, _ := set.Get("a")
	docC, _ := set.Get("c")

	n := set.Relocate([]Relocation{
		{From: "a", To: "c", Doc: docA},
		{From: "c", To: "a", Doc: docC},
		{From: "missing", To: "b", Doc: NewDocument()},
	})
	if n != 2 {
		t.Errorf("Expected 2 moves applied, got %d", n)
	}
	if !reflect.DeepEqual(set.Keys(), []string{"c", "b", "a"}) {
		t.Fatalf("Expected [c b a], got %v", set.Keys())
	}
	if doc, _ := set.Get("c"); doc != docA {
		t.Error("Expected c to hold the first record")
	}
	if doc, _ := set.Get("a"); doc != docC {
		t.Error("Expected a to hold the last record")
	}
}
