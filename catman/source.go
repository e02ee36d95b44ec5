package catman

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Source hands out independent read handles on the same byte content. The
// decoder keeps one handle for its cursor; parallel payload tasks each open
// their own.
type Source interface {
	Open() (io.ReadSeekCloser, error)
	// Name is the base name used to qualify channel and group names.
	Name() string
}

// FileSource opens a file on disk.
type FileSource string

func (p FileSource) Open() (io.ReadSeekCloser, error) { return os.Open(string(p)) }

// Name returns the file name without directory and extension.
func (p FileSource) Name() string {
	base := filepath.Base(string(p))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// BytesSource serves an in-memory copy of a file.
type BytesSource struct {
	Label string
	Data  []byte
}

func (b BytesSource) Open() (io.ReadSeekCloser, error) {
	return nopSeekCloser{bytes.NewReader(b.Data)}, nil
}

func (b BytesSource) Name() string {
	if b.Label == "" {
		return "unknown"
	}
	return b.Label
}

type nopSeekCloser struct {
	io.ReadSeeker
}

func (nopSeekCloser) Close() error { return nil }
