package treebuilder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	gitignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/openmined/treesync/internal/merkle"
)

var (
	ErrRootNotFound = errors.New("build root not found")
	ErrRootNotDir   = errors.New("build root is not a directory")
)

// Builder walks a directory and produces a merkle.Tree of its files.
type Builder struct {
	fs           afero.Fs
	excludedDirs mapset.Set[string]
	excludedExts []string
	concurrency  int
}

func New(opts ...Option) *Builder {
	b := &Builder{
		fs:           afero.NewOsFs(),
		excludedDirs: mapset.NewSet(DefaultExcludedDirs...),
		excludedExts: append([]string{}, DefaultExcludedExtensions...),
		concurrency:  DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.concurrency < 1 {
		b.concurrency = DefaultConcurrency
	}

	return b
}

type hashJob struct {
	absPath string
	relPath string
}

// Build walks root and hashes every included file with a fixed pool of workers.
// Files that cannot be read are logged and left out of the tree. Errors on the
// root itself abort the build.
func (b *Builder) Build(ctx context.Context, root string) (merkle.Tree, error) {
	root, err := b.resolveRoot(root)
	if err != nil {
		return nil, err
	}

	info, err := b.fs.Stat(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRootNotFound, root)
		}
		return nil, fmt.Errorf("stat root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrRootNotDir, root)
	}

	ignore := b.loadIgnore(root)

	eg, egCtx := errgroup.WithContext(ctx)
	jobs := make(chan hashJob, b.concurrency*4)

	eg.Go(func() error {
		defer close(jobs)
		return b.walk(egCtx, root, ignore, jobs)
	})

	var (
		mu   sync.Mutex
		tree = make(merkle.Tree)
	)

	for range b.concurrency {
		eg.Go(func() error {
			// each worker fills its own partition, merged once at the end
			local := make(merkle.Tree)
			for job := range jobs {
				if err := egCtx.Err(); err != nil {
					return err
				}
				digest, err := b.hashFile(job.absPath)
				if err != nil {
					slog.Warn("unhashable file", "path", job.relPath, "error", err)
					continue
				}
				local[job.relPath] = digest
			}

			mu.Lock()
			for path, digest := range local {
				tree[path] = digest
			}
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("build tree %s: %w", root, err)
	}

	return tree, nil
}

func (b *Builder) walk(ctx context.Context, root string, ignore *gitignore.GitIgnore, jobs chan<- hashJob) error {
	return afero.Walk(b.fs, root, func(path string, info os.FileInfo, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if walkErr != nil {
			if path == root {
				return walkErr
			}
			slog.Warn("walk skip", "path", path, "error", walkErr)
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if path == root {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("walk rel path: %w", err)
		}
		relPath = filepath.ToSlash(relPath)

		// the tree only carries paths that survive the wire unchanged
		if err := merkle.ValidatePath(relPath); err != nil {
			slog.Warn("unsyncable path", "path", path, "error", err)
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() {
			if b.excludedDirs.Contains(info.Name()) || (ignore != nil && ignore.MatchesPath(relPath+"/")) {
				return filepath.SkipDir
			}
			return nil
		}

		// regular files and symlinks only; a symlink to a directory fails to hash and is dropped
		if !info.Mode().IsRegular() && info.Mode()&os.ModeSymlink == 0 {
			return nil
		}

		if b.excludedExtension(info.Name()) || (ignore != nil && ignore.MatchesPath(relPath)) {
			return nil
		}

		select {
		case jobs <- hashJob{absPath: path, relPath: relPath}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// resolveRoot follows symlinks in root on the OS filesystem. afero.Walk lstats
// the root and would not descend into a linked directory.
func (b *Builder) resolveRoot(root string) (string, error) {
	if _, ok := b.fs.(*afero.OsFs); !ok {
		return root, nil
	}

	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrRootNotFound, root)
		}
		return "", fmt.Errorf("resolve root %s: %w", root, err)
	}
	return resolved, nil
}

func (b *Builder) excludedExtension(name string) bool {
	for _, ext := range b.excludedExts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

func (b *Builder) hashFile(path string) (string, error) {
	file, err := b.fs.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	return merkle.HashReader(file)
}

// loadIgnore compiles the root ignore file. A missing file means no extra rules.
func (b *Builder) loadIgnore(root string) *gitignore.GitIgnore {
	data, err := afero.ReadFile(b.fs, filepath.Join(root, IgnoreFileName))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("ignore file unreadable", "root", root, "error", err)
		}
		return nil
	}

	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}

	if len(lines) == 0 {
		return nil
	}

	slog.Debug("ignore file loaded", "root", root, "rules", len(lines))
	return gitignore.CompileIgnoreLines(lines...)
}
