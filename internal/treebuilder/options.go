package treebuilder

import "github.com/spf13/afero"

const (
	DefaultConcurrency = 4

	// IgnoreFileName is an optional gitignore-style file at the build root.
	IgnoreFileName = ".treesyncignore"
)

var (
	DefaultExcludedDirs = []string{
		".git",
		"__pycache__",
		"node_modules",
		".venv",
		"venv",
		".tox",
		".mypy_cache",
	}

	DefaultExcludedExtensions = []string{
		".pyc",
		".pyo",
		".so",
		".dylib",
		".dll",
	}
)

// Option configures a Builder
type Option func(*Builder)

// WithFs sets the filesystem the builder walks. Defaults to the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(b *Builder) {
		b.fs = fs
	}
}

// WithExcludedDirs adds directory names that are pruned before descent.
func WithExcludedDirs(names ...string) Option {
	return func(b *Builder) {
		b.excludedDirs.Append(names...)
	}
}

// WithExcludedExtensions adds file name suffixes that are skipped.
func WithExcludedExtensions(exts ...string) Option {
	return func(b *Builder) {
		b.excludedExts = append(b.excludedExts, exts...)
	}
}

// WithConcurrency sets the number of files hashed at once. Values < 1 use DefaultConcurrency.
func WithConcurrency(n int) Option {
	return func(b *Builder) {
		b.concurrency = n
	}
}
