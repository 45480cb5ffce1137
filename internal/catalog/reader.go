package catalog

// reader.go prepares payload streams for parsing without buffering them:
//
//   - a UTF-8 byte order mark, common in files saved on Windows, is dropped
//   - invalid UTF-8 sequences are replaced with U+FFFD
//   - reading past the configured size limit fails with ErrFileTooLarge

import (
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// sanitize wraps r so that it yields BOM-free, valid UTF-8.
func sanitize(r io.Reader) io.Reader {
	return transform.NewReader(r, transform.Chain(
		unicode.BOMOverride(transform.Nop),
		runes.ReplaceIllFormed(),
	))
}

// limitedReader fails once more than limit bytes have been read.
type limitedReader struct {
	reader io.Reader
	limit  int64
	read   int64
}

func newLimitedReader(r io.Reader, limit int64) io.Reader {
	if limit <= 0 {
		return r
	}
	return &limitedReader{reader: r, limit: limit}
}

// Read implements io.Reader.
func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.reader.Read(p)
	l.read += int64(n)
	if l.read > l.limit {
		return n, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, l.limit)
	}
	return n, err
}

// prepare applies the size limit and sanitizes the stream.
func prepare(r io.Reader, maxBytes int64) io.Reader {
	return sanitize(newLimitedReader(r, maxBytes))
}
