package scanner

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/gobwas/glob"
)

// DefaultExtensions are the C source and header suffixes.
var DefaultExtensions = []string{".c", ".h", ".S"}

type FileInfo struct {
	Path string
	Size int64
}

type Scanner struct {
	rootDir    string
	extensions []string
	exclude    []excludePattern
}

type excludePattern struct {
	compiled glob.Glob
	pattern  string
}

func New(rootDir string, extensions ...string) *Scanner {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	return &Scanner{
		rootDir:    rootDir,
		extensions: extensions,
	}
}

// Exclude skips files and directories whose path relative to the root
// matches one of the glob patterns. `*` stops at `/`, `**` does not.
func (s *Scanner) Exclude(patterns ...string) error {
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return fmt.Errorf("exclude pattern %q: %w", p, err)
		}
		s.exclude = append(s.exclude, excludePattern{compiled: g, pattern: p})
	}
	return nil
}

// Scan returns the matching files below the root in lexical order.
func (s *Scanner) Scan() ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.WalkDir(s.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if s.isExcluded(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !s.IsTarget(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, FileInfo{Path: path, Size: info.Size()})
		return nil
	})

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, err
}

// IsTarget reports whether path has one of the scanned extensions and is
// not excluded.
func (s *Scanner) IsTarget(path string) bool {
	ext := filepath.Ext(path)
	for _, targetExt := range s.extensions {
		if ext == targetExt {
			return !s.isExcluded(path)
		}
	}
	return false
}

func (s *Scanner) isExcluded(path string) bool {
	if len(s.exclude) == 0 {
		return false
	}
	rel, err := filepath.Rel(s.rootDir, path)
	if err != nil || rel == "." {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, p := range s.exclude {
		if p.compiled.Match(rel) {
			return true
		}
	}
	return false
}
