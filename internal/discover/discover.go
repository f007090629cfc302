// Package discover finds indexable source files under a root directory.
package discover

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"

	"github.com/phobologic/codemap/internal/lang"
)

// Entry represents a discovered source file.
type Entry struct {
	Path     string // Relative to root, slash-separated
	Language string // "" when the extension is allowed but has no grammar
	Size     int64
	ModTime  time.Time
}

// Options controls which directories are visited and which files are kept.
type Options struct {
	// Depth is the deepest directory level read; root is level 0.
	Depth            int
	ExcludeDirs      []string
	Extensions       []string
	RespectGitignore bool
	Logger           *slog.Logger
}

// Result is the outcome of a scan. Errors holds directory read failures;
// the scan continues past them.
type Result struct {
	Files  []Entry
	Errors []error
}

type walker struct {
	fs      afero.Fs
	root    string
	opts    Options
	exclude map[string]struct{}
	exts    map[string]struct{}
	gi      *ignore.GitIgnore
	log     *slog.Logger
	res     *Result
}

// Files walks root on fsys and returns matching files in traversal order
// (entries sorted by name within each directory). Only a cancelled context
// aborts the walk.
func Files(ctx context.Context, fsys afero.Fs, root string, opts Options) (*Result, error) {
	w := &walker{
		fs:      fsys,
		root:    root,
		opts:    opts,
		exclude: make(map[string]struct{}, len(opts.ExcludeDirs)),
		exts:    make(map[string]struct{}, len(opts.Extensions)),
		log:     opts.Logger,
		res:     &Result{},
	}
	if w.log == nil {
		w.log = slog.New(slog.DiscardHandler)
	}
	for _, d := range opts.ExcludeDirs {
		w.exclude[d] = struct{}{}
	}
	for _, e := range opts.Extensions {
		w.exts[strings.ToLower(e)] = struct{}{}
	}
	if opts.RespectGitignore {
		w.gi = loadGitignore(fsys, root)
	}

	if err := w.walk(ctx, "", 0); err != nil {
		return nil, err
	}
	return w.res, nil
}

func (w *walker) walk(ctx context.Context, rel string, depth int) error {
	if depth > w.opts.Depth {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Join(w.root, filepath.FromSlash(rel))
	infos, err := afero.ReadDir(w.fs, dir)
	if err != nil {
		w.log.Warn("reading directory", "path", dir, "err", err)
		w.res.Errors = append(w.res.Errors, fmt.Errorf("reading directory %s: %w", dir, err))
		return nil
	}

	for _, info := range infos {
		name := info.Name()
		childRel := path.Join(rel, name)

		// Skip symlinks
		if info.Mode()&os.ModeSymlink != 0 {
			continue
		}

		if info.IsDir() {
			if _, skip := w.exclude[name]; skip {
				continue
			}
			if w.gi != nil && w.gi.MatchesPath(childRel+"/") {
				continue
			}
			if err := w.walk(ctx, childRel, depth+1); err != nil {
				return err
			}
			continue
		}

		ext := filepath.Ext(name)
		if _, ok := w.exts[strings.ToLower(ext)]; !ok {
			continue
		}
		if w.gi != nil && w.gi.MatchesPath(childRel) {
			continue
		}

		w.res.Files = append(w.res.Files, Entry{
			Path:     childRel,
			Language: lang.ForExtension(ext),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		})
	}
	return nil
}

func loadGitignore(fsys afero.Fs, root string) *ignore.GitIgnore {
	data, err := afero.ReadFile(fsys, filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return ignore.CompileIgnoreLines(strings.Split(string(data), "\n")...)
}
