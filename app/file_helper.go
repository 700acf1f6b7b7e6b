package app

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/dchest/safefile"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/ludo-technologies/jsinspect/internal/constants"
)

// FileFilter decides which files take part in an analysis. Include and
// exclude patterns use gitignore syntax and are matched against paths
// relative to the collection root.
type FileFilter struct {
	include *ignore.GitIgnore
	exclude *ignore.GitIgnore
}

// NewFileFilter compiles include and exclude patterns. No include patterns
// means every JavaScript/TypeScript file is included.
func NewFileFilter(includePatterns, excludePatterns []string) *FileFilter {
	f := &FileFilter{}
	if len(includePatterns) > 0 {
		f.include = ignore.CompileIgnoreLines(includePatterns...)
	}
	if len(excludePatterns) > 0 {
		f.exclude = ignore.CompileIgnoreLines(excludePatterns...)
	}
	return f
}

// ShouldInclude reports whether a file passes the filter
func (f *FileFilter) ShouldInclude(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	if !IsJSFile(relPath) {
		return false
	}
	if f.exclude != nil && f.exclude.MatchesPath(relPath) {
		return false
	}
	if f.include != nil && !f.include.MatchesPath(relPath) {
		return false
	}
	return true
}

func (f *FileFilter) excluded(path string) bool {
	return f.exclude != nil && f.exclude.MatchesPath(filepath.ToSlash(path))
}

// SkipDir reports whether a whole directory is excluded
func (f *FileFilter) SkipDir(relPath string) bool {
	if f.exclude == nil || relPath == "." {
		return false
	}
	relPath = filepath.ToSlash(relPath)
	return f.exclude.MatchesPath(relPath) || f.exclude.MatchesPath(relPath+"/")
}

// FileHelper provides file operation utilities
type FileHelper struct{}

// NewFileHelper creates a new FileHelper
func NewFileHelper() *FileHelper {
	return &FileHelper{}
}

// CollectOptions controls file collection
type CollectOptions struct {
	Recursive        bool
	IncludePatterns  []string
	ExcludePatterns  []string
	RespectGitignore bool
}

// CollectJSFiles collects JavaScript/TypeScript files from paths. Files named
// directly are kept if they have a supported extension; directories are
// walked and filtered. The result is sorted and free of duplicates.
func (h *FileHelper) CollectJSFiles(paths []string, opts CollectOptions) ([]string, error) {
	filter := NewFileFilter(opts.IncludePatterns, opts.ExcludePatterns)
	var files []string

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}

		if !info.IsDir() {
			if IsJSFile(path) && !filter.excluded(path) {
				files = append(files, path)
			}
			continue
		}

		var gitignore *ignore.GitIgnore
		if opts.RespectGitignore {
			if gi, err := ignore.CompileIgnoreFile(filepath.Join(path, ".gitignore")); err == nil {
				gitignore = gi
			}
		}

		err = filepath.WalkDir(path, func(filePath string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(path, filePath)
			if err != nil {
				return err
			}

			if d.IsDir() {
				if rel == "." {
					return nil
				}
				if !opts.Recursive || d.Name() == ".git" || filter.SkipDir(rel) ||
					(gitignore != nil && gitignore.MatchesPath(filepath.ToSlash(rel)+"/")) {
					return filepath.SkipDir
				}
				return nil
			}

			if gitignore != nil && gitignore.MatchesPath(filepath.ToSlash(rel)) {
				return nil
			}
			if filter.ShouldInclude(rel) {
				files = append(files, filePath)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", path, err)
		}
	}

	sort.Strings(files)
	return slices.Compact(files), nil
}

// FileExists checks if a regular file exists
func (h *FileHelper) FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

// IsJSFile checks if a file is JavaScript/TypeScript based on extension
func IsJSFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return slices.Contains(constants.JavaScriptExtensions, ext) ||
		slices.Contains(constants.TypeScriptExtensions, ext)
}

// FileSystem reads and writes file content on disk. Writes are atomic.
type FileSystem struct{}

// NewFileSystem creates a disk-backed content source
func NewFileSystem() *FileSystem {
	return &FileSystem{}
}

// ReadContent implements domain.ContentSource
func (fsys *FileSystem) ReadContent(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteContent implements domain.ContentWriter. The file keeps its mode.
func (fsys *FileSystem) WriteContent(path string, content []byte) error {
	perm := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}
	if err := safefile.WriteFile(path, content, perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
