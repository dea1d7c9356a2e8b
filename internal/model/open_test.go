package model

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

func compress(t *testing.T, ext string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	var err error
	switch ext {
	case ".gz":
		w = gzip.NewWriter(&buf)
	case ".zst":
		w, err = zstd.NewWriter(&buf)
	case ".xz":
		w, err = xz.NewWriter(&buf)
	}
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestLoadCompressedModels(t *testing.T) {
	t.Parallel()
	for _, ext := range []string{".gz", ".zst", ".xz"} {
		ext := ext
		t.Run(ext, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			path := filepath.Join(dir, "arm.cnf"+ext)
			require.NoError(t, os.WriteFile(path, compress(t, ext, []byte(x86Model)), 0o644))
			require.NoError(t, os.WriteFile(filepath.Join(dir, "arm.meta"), []byte("ALWAYS_OFF: CONFIG_BAZ\n"), 0o644))

			m, err := LoadCnf(path)
			require.NoError(t, err)
			assert.Equal(t, "arm", m.Name())
			assert.True(t, m.IsTristate("CONFIG_FOO"))

			off, ok := m.MetaValue(MetaAlwaysOff)
			require.True(t, ok)
			assert.Equal(t, []string{"CONFIG_BAZ"}, off)
		})
	}
}

func TestLoadCorruptCompressedModel(t *testing.T) {
	t.Parallel()
	path := writeModel(t, "arm.cnf.gz", "not gzip at all")
	_, err := LoadCnf(path)
	assert.ErrorIs(t, err, ErrModelLoad)
}

func TestStem(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{"x86.cnf", "x86"},
		{"x86.cnf.xz", "x86"},
		{"models/x86.model.zst", "models/x86"},
		{"x86", "x86"},
		{"x86.gz", "x86"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stem(tt.in), tt.in)
	}
}
