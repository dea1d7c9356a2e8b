package model

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// compressed lists the file suffixes the loader decompresses on the fly.
var compressed = map[string]func(io.Reader) (io.ReadCloser, error){
	".gz": func(r io.Reader) (io.ReadCloser, error) {
		return gzip.NewReader(r)
	},
	".zst": func(r io.Reader) (io.ReadCloser, error) {
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return d.IOReadCloser(), nil
	},
	".xz": func(r io.Reader) (io.ReadCloser, error) {
		x, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(x), nil
	},
}

// stem strips a compression suffix and then the model extension, leaving
// the path of the model without any extension.
func stem(path string) string {
	if _, ok := compressed[filepath.Ext(path)]; ok {
		path = strings.TrimSuffix(path, filepath.Ext(path))
	}
	return strings.TrimSuffix(path, filepath.Ext(path))
}

type modelFile struct {
	io.Reader
	closers []io.Closer
}

func (f *modelFile) Close() error {
	var first error
	for i := len(f.closers) - 1; i >= 0; i-- {
		if err := f.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func openModel(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	open, ok := compressed[filepath.Ext(path)]
	if !ok {
		return f, nil
	}
	r, err := open(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &modelFile{Reader: r, closers: []io.Closer{f, r}}, nil
}
