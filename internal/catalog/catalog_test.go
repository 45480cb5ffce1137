package catalog

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/grapher/internal/owid"
	"github.com/JonMunkholm/grapher/internal/table"
)

const testCSV = "entityName,entityCode,entityId,year,gdp\n" +
	"Norway,NOR,1,2000,10\n" +
	"Sweden,SWE,2,2000,20\n" +
	"Norway,NOR,1,2001,30\n"

const testLegacy = `{
  "variables": {
    "1": {"id": 1, "name": "GDP", "entities": [1, 2], "years": [2000, 2000], "values": [10, 20]}
  },
  "entityKey": {
    "1": {"id": 1, "name": "Norway", "code": "NOR"},
    "2": {"id": 2, "name": "Sweden", "code": "SWE"}
  }
}`

// ============================================================================
// MapError Tests
// ============================================================================

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{name: "nil error returns empty", err: nil, wantCode: ""},
		{name: "missing columns", err: table.ErrMissingColumns, wantCode: "VAL004"},
		{name: "wrapped missing columns", err: errors.New("load x: missing required columns: entityId"), wantCode: "VAL004"},
		{name: "column not found", err: table.ErrColumnNotFound, wantCode: "VAL005"},
		{name: "unknown entity", err: ErrEntityNotFound, wantCode: "VAL006"},
		{name: "invalid spec", err: table.ErrInvalidSpec, wantCode: "VAL007"},
		{name: "zero day", err: errors.New("variable 3: invalid zeroDay \"x\""), wantCode: "VAL001"},
		{name: "file too large", err: ErrFileTooLarge, wantCode: "FILE001"},
		{name: "csv parse error", err: errors.New("read line 3: parse error on line 3, column 4: bare \" in non-quoted-field"), wantCode: "FILE002"},
		{name: "bad json", err: errors.New("decode legacy payload: unexpected EOF"), wantCode: "FILE003"},
		{name: "empty", err: table.ErrEmptyInput, wantCode: "FILE005"},
		{name: "unsupported format", err: ErrUnsupported, wantCode: "FILE006"},
		{name: "unsupported export format", err: errors.New("unsupported export format 9"), wantCode: "TBL003"},
		{name: "not found", err: ErrDatasetNotFound, wantCode: "TBL001"},
		{name: "duplicate", err: ErrDatasetExists, wantCode: "TBL002"},
		{name: "unknown error returns default", err: errors.New("boom"), wantCode: "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapError(tt.err); got.Code != tt.wantCode {
				t.Errorf("MapError(%v).Code = %q, want %q", tt.err, got.Code, tt.wantCode)
			}
		})
	}
}

func TestUserError(t *testing.T) {
	if NewUserError(nil) != nil {
		t.Error("NewUserError(nil) should be nil")
	}

	ue := NewUserError(ErrDatasetNotFound)
	if ue.Error() != "The specified dataset does not exist" {
		t.Errorf("Error() = %q", ue.Error())
	}
	if !errors.Is(ue, ErrDatasetNotFound) {
		t.Error("UserError should unwrap to the technical error")
	}
	if !IsUserFacing(ErrDatasetNotFound) || IsUserFacing(errors.New("boom")) {
		t.Error("IsUserFacing mismatch")
	}

	want := "The specified dataset does not exist (Code: TBL001). Verify the dataset key or id"
	if got := FormatUserError(ErrDatasetNotFound); got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
}

// ============================================================================
// Reader Tests
// ============================================================================

func TestPrepare(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{name: "file with BOM", input: append([]byte{0xEF, 0xBB, 0xBF}, "a,b"...), expected: "a,b"},
		{name: "file without BOM", input: []byte("a,b"), expected: "a,b"},
		{name: "empty file", input: []byte{}, expected: ""},
		{name: "invalid byte replaced", input: []byte{'a', 0xFF, 'b'}, expected: "a\ufffdb"},
		{name: "multi-byte kept", input: []byte("Curaçao"), expected: "Curaçao"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(prepare(bytes.NewReader(tt.input), 0))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestPrepare_SizeLimit(t *testing.T) {
	_, err := io.ReadAll(prepare(strings.NewReader(strings.Repeat("x", 100)), 10))
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("err = %v, want ErrFileTooLarge", err)
	}

	got, err := io.ReadAll(prepare(strings.NewReader("short"), 10))
	if err != nil || string(got) != "short" {
		t.Errorf("got %q, %v", got, err)
	}
}

// ============================================================================
// Registry Tests
// ============================================================================

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	a := NewDataset("b-set", "", owid.New(nil, nil))
	b := NewDataset("a-set", "A", owid.New(nil, nil))

	if err := r.Register(a); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(b); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(NewDataset("a-set", "", owid.New(nil, nil))); !errors.Is(err, ErrDatasetExists) {
		t.Errorf("duplicate Register err = %v, want ErrDatasetExists", err)
	}

	if a.Label != "b-set" {
		t.Errorf("Label = %q, want key fallback", a.Label)
	}
	if got, ok := r.Get(a.ID.String()); !ok || got != a {
		t.Error("Get by id failed")
	}
	if got, ok := r.Get("a-set"); !ok || got != b {
		t.Error("Get by key failed")
	}
	if _, err := r.Lookup("missing"); !errors.Is(err, ErrDatasetNotFound) {
		t.Errorf("Lookup err = %v, want ErrDatasetNotFound", err)
	}

	all := r.All()
	if len(all) != 2 || all[0].Key != "a-set" || all[1].Key != "b-set" {
		t.Errorf("All() not sorted by key")
	}

	if !r.Remove("b-set") || r.Count() != 1 {
		t.Error("Remove failed")
	}
	if _, ok := r.Get(a.ID.String()); ok {
		t.Error("removed dataset still reachable by id")
	}
}

// ============================================================================
// Loader Tests
// ============================================================================

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoader_LoadFile_Delimited(t *testing.T) {
	path := writeFile(t, "gdp.csv", "\ufeff"+testCSV)
	l := NewLoader(NewRegistry())

	d, err := l.LoadFile(context.Background(), "", path)
	if err != nil {
		t.Fatal(err)
	}

	if d.Key != "gdp" || d.Source != path || d.Format != SourceDelimited {
		t.Errorf("unexpected metadata: key=%q source=%q format=%q", d.Key, d.Source, d.Format)
	}

	info := d.Info()
	if info.Rows != 3 {
		t.Errorf("Rows = %d, want 3", info.Rows)
	}
	if len(info.Entities) != 2 {
		t.Errorf("Entities = %v", info.Entities)
	}
	if info.MinTime == nil || *info.MinTime != 2000 || *info.MaxTime != 2001 {
		t.Errorf("time range = %v..%v", info.MinTime, info.MaxTime)
	}
	if info.Columns[0].Slug != "entityName" {
		t.Errorf("first column = %q, want entityName (BOM not stripped?)", info.Columns[0].Slug)
	}
	if l.Registry().Count() != 1 {
		t.Error("dataset not registered")
	}
}

func TestLoader_LoadFile_TSV(t *testing.T) {
	path := writeFile(t, "gdp.tsv", strings.ReplaceAll(testCSV, ",", "\t"))

	d, err := NewLoader(NewRegistry()).LoadFile(context.Background(), "tabs", path)
	if err != nil {
		t.Fatal(err)
	}
	if got := d.Summary(); got.Rows != 3 || got.Columns != 5 {
		t.Errorf("Summary() = %+v", got)
	}
}

func TestLoader_LoadLegacy(t *testing.T) {
	l := NewLoader(NewRegistry())

	d, err := l.Load(context.Background(), "legacy", "Legacy GDP", strings.NewReader(testLegacy), SourceLegacyJSON)
	if err != nil {
		t.Fatal(err)
	}

	err = d.With(func(tbl *owid.Table) error {
		if !tbl.Has("1-gdp") {
			t.Error("variable column missing")
		}
		return tbl.SelectEntity("Norway")
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := d.Info().Selected; len(got) != 1 || got[0] != "Norway" {
		t.Errorf("Selected = %v", got)
	}
}

func TestLoader_Errors(t *testing.T) {
	ctx := context.Background()
	l := NewLoader(NewRegistry(), WithMaxBytes(64))

	_, err := l.Load(ctx, "bad", "", strings.NewReader("entityName,year\nNorway,2000\n"), SourceDelimited)
	if got := MapError(err).Code; got != "VAL004" {
		t.Errorf("missing columns code = %q (err %v)", got, err)
	}

	_, err = l.Load(ctx, "big", "", strings.NewReader(testCSV+testCSV), SourceDelimited)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("err = %v, want ErrFileTooLarge", err)
	}

	_, err = l.Load(ctx, "", "", strings.NewReader(testCSV), SourceDelimited)
	if !errors.Is(err, table.ErrInvalidSpec) {
		t.Errorf("empty key err = %v", err)
	}

	if _, err := DetectFormat("data.xlsx"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("DetectFormat err = %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := l.Load(cancelled, "c", "", strings.NewReader("x"), SourceDelimited); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled err = %v", err)
	}

	if l.Registry().Count() != 0 {
		t.Errorf("failed loads registered %d datasets", l.Registry().Count())
	}
}

func TestLoader_DuplicateKey(t *testing.T) {
	l := NewLoader(NewRegistry())
	ctx := context.Background()

	if _, err := l.Load(ctx, "gdp", "", strings.NewReader(testCSV), SourceDelimited); err != nil {
		t.Fatal(err)
	}
	_, err := l.Load(ctx, "gdp", "", strings.NewReader(testCSV), SourceDelimited)
	if got := MapError(err).Code; got != "TBL002" {
		t.Errorf("duplicate code = %q", got)
	}
}
