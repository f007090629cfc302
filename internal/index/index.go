// Package index scans a codebase and builds the structured CodeIndex of its
// files, functions, and classes.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/phobologic/codemap/internal/discover"
	"github.com/phobologic/codemap/internal/lang"
	"github.com/phobologic/codemap/internal/model"
	"github.com/phobologic/codemap/internal/parse"
)

// DefaultMaxFileSize is the largest file that will be read and parsed.
const DefaultMaxFileSize = 1 << 20

// Config controls what the indexer visits.
type Config struct {
	IndexDepth       int
	ExcludeDirs      []string
	FileExtensions   []string
	RespectGitignore bool
	Workers          int
	MaxFileSize      int64
}

// DefaultConfig returns the indexer defaults.
func DefaultConfig() Config {
	return Config{
		IndexDepth:     3,
		ExcludeDirs:    []string{"node_modules", ".git", "dist", "build", "coverage", ".next", "vendor"},
		FileExtensions: []string{".js", ".jsx", ".ts", ".tsx"},
		Workers:        runtime.GOMAXPROCS(0),
		MaxFileSize:    DefaultMaxFileSize,
	}
}

// Indexer builds a CodeIndex from a directory tree.
type Indexer struct {
	fs  afero.Fs
	cfg Config
	log *slog.Logger
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithFs sets the filesystem to scan. Defaults to the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(ix *Indexer) { ix.fs = fs }
}

// WithLogger sets the logger for per-file failures and progress.
func WithLogger(l *slog.Logger) Option {
	return func(ix *Indexer) { ix.log = l }
}

// New returns an Indexer for cfg.
func New(cfg Config, opts ...Option) *Indexer {
	ix := &Indexer{fs: afero.NewOsFs(), cfg: cfg, log: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(ix)
	}
	if ix.cfg.Workers <= 0 {
		ix.cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if ix.cfg.MaxFileSize <= 0 {
		ix.cfg.MaxFileSize = DefaultMaxFileSize
	}
	return ix
}

type outcome int

const (
	indexed outcome = iota
	failed
	skipped
)

type fileResult struct {
	entry   model.FileEntry
	outcome outcome
	err     error
}

// IndexCodebase scans root and returns a fresh CodeIndex. Read and parse
// failures on individual files are logged and recorded in the stats; the
// affected file stays in the index with no functions or classes. Only a
// cancelled context stops the run.
func (ix *Indexer) IndexCodebase(ctx context.Context, root string) (*model.CodeIndex, *model.IndexStats, error) {
	start := time.Now()

	found, err := discover.Files(ctx, ix.fs, root, discover.Options{
		Depth:            ix.cfg.IndexDepth,
		ExcludeDirs:      ix.cfg.ExcludeDirs,
		Extensions:       ix.cfg.FileExtensions,
		RespectGitignore: ix.cfg.RespectGitignore,
		Logger:           ix.log,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("discovering files: %w", err)
	}

	stats := &model.IndexStats{FilesScanned: len(found.Files)}
	for _, e := range found.Errors {
		stats.Errors = append(stats.Errors, e.Error())
	}

	results, err := ix.parseAll(ctx, root, found.Files)
	if err != nil {
		return nil, nil, err
	}

	ci := &model.CodeIndex{}
	for _, r := range results {
		switch r.outcome {
		case skipped:
			stats.FilesSkipped++
			continue
		case failed:
			stats.FilesFailed++
			stats.Errors = append(stats.Errors, r.err.Error())
		default:
			stats.FilesIndexed++
		}
		ci.Files = append(ci.Files, r.entry)
		ci.Functions = append(ci.Functions, r.entry.Functions...)
		ci.Classes = append(ci.Classes, r.entry.Classes...)
	}

	ci.Metadata = model.IndexMetadata{
		Root:          root,
		FileCount:     len(ci.Files),
		FunctionCount: len(ci.Functions),
		ClassCount:    len(ci.Classes),
		IndexedAt:     time.Now(),
	}
	stats.Functions = len(ci.Functions)
	stats.Classes = len(ci.Classes)
	stats.Duration = time.Since(start)

	ix.log.Info("indexed codebase",
		"root", root,
		"files", stats.FilesIndexed,
		"failed", stats.FilesFailed,
		"skipped", stats.FilesSkipped,
		"functions", stats.Functions,
		"classes", stats.Classes,
		"duration", stats.Duration)
	return ci, stats, nil
}

// parseAll reads and parses files on a fixed pool of workers. Results keep
// discovery order.
func (ix *Indexer) parseAll(ctx context.Context, root string, files []discover.Entry) ([]fileResult, error) {
	results := make([]fileResult, len(files))
	jobs := make(chan int)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for i := range files {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	workers := min(ix.cfg.Workers, max(len(files), 1))
	for range workers {
		g.Go(func() error {
			var parsers parse.Parsers
			defer parsers.Close()
			for i := range jobs {
				results[i] = ix.indexFile(gctx, &parsers, root, files[i])
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("indexing %s: %w", root, err)
	}
	return results, nil
}

func (ix *Indexer) indexFile(ctx context.Context, parsers *parse.Parsers, root string, f discover.Entry) (res fileResult) {
	res.entry = model.FileEntry{
		Path:      f.Path,
		Name:      path.Base(f.Path),
		Extension: path.Ext(f.Path),
		Language:  f.Language,
		Size:      f.Size,
		ModTime:   f.ModTime,
	}

	if f.Size > ix.cfg.MaxFileSize {
		ix.log.Debug("skipping large file", "path", f.Path, "size", f.Size)
		res.outcome = skipped
		return res
	}

	defer func() {
		if r := recover(); r != nil {
			res.entry.Functions, res.entry.Classes = nil, nil
			res.outcome = failed
			res.err = fmt.Errorf("%s: panic during parse: %v", f.Path, r)
			ix.log.Warn("parse panic", "path", f.Path, "err", res.err)
		}
	}()

	source, err := afero.ReadFile(ix.fs, filepath.Join(root, filepath.FromSlash(f.Path)))
	if err != nil {
		res.outcome = failed
		res.err = fmt.Errorf("reading %s: %w", f.Path, err)
		ix.log.Warn("reading file", "path", f.Path, "err", err)
		return res
	}
	res.entry.Size = int64(len(source))

	l := lang.Languages[f.Language]
	if l == nil {
		// Allowed extension without a grammar: indexed as a bare file.
		return res
	}

	parsed, err := parsers.Extract(ctx, l, source, f.Path)
	if err != nil {
		res.outcome = failed
		res.err = err
		if !errors.Is(err, parse.ErrSyntax) {
			res.err = fmt.Errorf("parsing %s: %w", f.Path, err)
		}
		ix.log.Warn("parsing file", "path", f.Path, "err", err)
		return res
	}
	res.entry.Functions = parsed.Functions
	res.entry.Classes = parsed.Classes
	return res
}
