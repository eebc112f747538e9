package rpmmd

import (
	"compress/bzip2"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ulikunitz/xz"
)

// indexReader decorates an open index file with its decompressor so the
// caller gets one Close for both.
type indexReader struct {
	io.Reader
	closers []io.Closer
}

func (r *indexReader) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// OpenIndex opens a repodata index file, transparently decompressing
// .gz, .xz and .bz2 contents. Plain files are passed through.
func OpenIndex(path string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, errors.Wrap(err, "rpmmd: open index")
	}

	switch {
	case strings.HasSuffix(path, ".gz"):
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.Wrap(err, "rpmmd: gzip index "+path)
		}
		return &indexReader{Reader: zr, closers: []io.Closer{zr, f}}, nil
	case strings.HasSuffix(path, ".xz"):
		xr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.Wrap(err, "rpmmd: xz index "+path)
		}
		return &indexReader{Reader: xr, closers: []io.Closer{f}}, nil
	case strings.HasSuffix(path, ".bz2"):
		return &indexReader{Reader: bzip2.NewReader(f), closers: []io.Closer{f}}, nil
	default:
		return f, nil
	}
}
