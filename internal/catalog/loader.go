package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/grapher/internal/owid"
	"github.com/JonMunkholm/grapher/internal/table"
)

// Loader parses payloads into tables and registers them.
type Loader struct {
	registry  *Registry
	logger    *slog.Logger
	delimiter rune
	maxBytes  int64
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithDelimiter sets the delimiter for delimited payloads. Files ending in
// .tsv always use a tab.
func WithDelimiter(d rune) LoaderOption {
	return func(l *Loader) {
		if d != 0 {
			l.delimiter = d
		}
	}
}

// WithMaxBytes caps the size of a payload. Zero means no limit.
func WithMaxBytes(n int64) LoaderOption {
	return func(l *Loader) {
		l.maxBytes = n
	}
}

// WithLogger sets the loader's logger, which tables also inherit.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader creates a loader registering into r.
func NewLoader(r *Registry, opts ...LoaderOption) *Loader {
	l := &Loader{
		registry:  r,
		logger:    slog.Default(),
		delimiter: ',',
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Registry returns the registry the loader writes to.
func (l *Loader) Registry() *Registry {
	return l.registry
}

// DetectFormat picks a source format from a file name.
func DetectFormat(name string) (SourceFormat, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return SourceLegacyJSON, nil
	case ".csv", ".tsv", ".txt":
		return SourceDelimited, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupported, filepath.Ext(name))
	}
}

// LoadFile loads the file at path under key. The key defaults to the file
// name without its extension.
func (l *Loader) LoadFile(ctx context.Context, key, path string) (*Dataset, error) {
	if _, err := DetectFormat(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	d, err := l.LoadNamed(ctx, key, "", path, f)
	if err != nil {
		return nil, err
	}
	d.Source = path
	return d, nil
}

// LoadNamed loads r, taking the format from name's extension. The key
// defaults to name without its extension; .tsv names are tab separated.
func (l *Loader) LoadNamed(ctx context.Context, key, label, name string, r io.Reader) (*Dataset, error) {
	format, err := DetectFormat(name)
	if err != nil {
		return nil, err
	}
	if key == "" {
		key = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	}

	delimiter := l.delimiter
	if strings.EqualFold(filepath.Ext(name), ".tsv") {
		delimiter = '\t'
	}
	return l.load(ctx, key, label, r, format, delimiter)
}

// Load parses r as format and registers the result under key.
func (l *Loader) Load(ctx context.Context, key, label string, r io.Reader, format SourceFormat) (*Dataset, error) {
	return l.load(ctx, key, label, r, format, l.delimiter)
}

func (l *Loader) load(ctx context.Context, key, label string, r io.Reader, format SourceFormat, delimiter rune) (*Dataset, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: dataset key is required", table.ErrInvalidSpec)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, exists := l.registry.Get(key); exists {
		return nil, fmt.Errorf("%w: %s", ErrDatasetExists, key)
	}

	start := time.Now()
	logger := l.logger.With("dataset", key, "format", string(format))
	opts := []table.Option{table.WithLogger(logger)}
	in := prepare(r, l.maxBytes)

	var (
		t   *owid.Table
		err error
	)
	switch format {
	case SourceLegacyJSON:
		var p *owid.LegacyPayload
		p, err = owid.ReadLegacyJSON(in)
		if err == nil {
			t, err = owid.FromLegacy(p, opts...)
		}
	case SourceDelimited:
		t, err = owid.ReadDelimited(in, delimiter, opts...)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupported, format)
	}
	if err != nil {
		logger.Warn("dataset load failed", "error", err)
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d := NewDataset(key, label, t)
	d.Format = format
	if err := l.registry.Register(d); err != nil {
		return nil, err
	}

	logger.Info("dataset loaded",
		"id", d.ID,
		"rows", t.NumRows(),
		"columns", t.NumColumns(),
		"entities", len(t.AvailableEntities()),
		"duration", time.Since(start),
	)
	return d, nil
}
