package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	tempDir := t.TempDir()
	for path, content := range files {
		fullPath := filepath.Join(tempDir, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0o755))
		require.NoError(t, os.WriteFile(fullPath, []byte(content), 0o644))
	}
	return tempDir
}

func TestProjectScanner(t *testing.T) {
	t.Parallel()
	tempDir := writeTree(t, map[string]string{
		"main.c":              "int main;",
		"include/main.h":      "#define X",
		"arch/x86/entry.S":    "#ifdef A\n#endif",
		"README.txt":          "This is a text file",
		"scripts/gen.py":      "print()",
		"drivers/net/e1000.c": "int x;",
	})

	scannedFiles, err := New(tempDir).Scan()
	require.NoError(t, err)

	var paths []string
	for _, file := range scannedFiles {
		rel, err := filepath.Rel(tempDir, file.Path)
		require.NoError(t, err)
		paths = append(paths, filepath.ToSlash(rel))
		assert.Greater(t, file.Size, int64(0), "File size should be greater than 0")
	}
	assert.Equal(t, []string{"arch/x86/entry.S", "drivers/net/e1000.c", "include/main.h", "main.c"}, paths)
}

func TestScannerExtensions(t *testing.T) {
	t.Parallel()
	tempDir := writeTree(t, map[string]string{
		"a.c": "x",
		"b.h": "x",
	})

	files, err := New(tempDir, ".h").Scan()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(tempDir, "b.h"), files[0].Path)
}

func TestScannerExclude(t *testing.T) {
	t.Parallel()
	tempDir := writeTree(t, map[string]string{
		"kernel/fork.c":           "x",
		"tools/perf/perf.c":       "x",
		"arch/x86/boot/setup.c":   "x",
		"arch/x86/kernel/setup.c": "x",
		"lib/test_sort.c":         "x",
	})

	s := New(tempDir)
	require.NoError(t, s.Exclude("tools", "arch/*/boot", "**/test_*.c"))

	files, err := s.Scan()
	require.NoError(t, err)

	var paths []string
	for _, file := range files {
		rel, _ := filepath.Rel(tempDir, file.Path)
		paths = append(paths, filepath.ToSlash(rel))
	}
	assert.Equal(t, []string{"arch/x86/kernel/setup.c", "kernel/fork.c"}, paths)

	assert.False(t, s.IsTarget(filepath.Join(tempDir, "lib/test_list.c")))
	assert.True(t, s.IsTarget(filepath.Join(tempDir, "lib/list.c")))
	assert.False(t, s.IsTarget(filepath.Join(tempDir, "lib/list.py")))
}

func TestScannerBadPattern(t *testing.T) {
	t.Parallel()
	assert.Error(t, New(".").Exclude("[unclosed"))
}

func TestScannerMissingRoot(t *testing.T) {
	t.Parallel()
	_, err := New(filepath.Join(t.TempDir(), "absent")).Scan()
	assert.ErrorIs(t, err, os.ErrNotExist)
}
