package graph

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/phobologic/codemap/internal/lang"
	"github.com/phobologic/codemap/internal/model"
	"github.com/phobologic/codemap/internal/parse"
)

// BuildConfig controls import resolution during a build.
type BuildConfig struct {
	Extensions         []string
	IncludeNodeModules bool
	Workers            int
}

// Builder turns a CodeIndex into a dependency graph.
type Builder struct {
	fs   afero.Fs
	root string
	cfg  BuildConfig
	log  *slog.Logger
}

// NewBuilder returns a Builder reading sources under root from fs. A nil
// logger discards output.
func NewBuilder(fs afero.Fs, root string, cfg BuildConfig, log *slog.Logger) *Builder {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Builder{fs: fs, root: root, cfg: cfg, log: log}
}

// Build seeds one node per indexed element, links declarations to their
// files and classes, then re-parses every file for import and call edges.
// Files that fail to read or parse contribute no edges.
func (b *Builder) Build(ctx context.Context, ci *model.CodeIndex) (*Graph, error) {
	g := New()
	if ci == nil {
		return g, nil
	}
	seed(g, ci)

	refs, err := b.references(ctx, ci.Files)
	if err != nil {
		return nil, err
	}

	resolver := NewResolver(b.fs, b.root, b.cfg.Extensions, b.cfg.IncludeNodeModules)
	callees := newCalleeIndex(ci.Functions)

	for i, f := range ci.Files {
		res := refs[i]
		if res == nil {
			continue
		}
		from := model.FileKey(f.Path)

		for _, imp := range res.Imports {
			target, ok := resolver.Resolve(f.Path, imp)
			if !ok {
				continue
			}
			to := model.FileKey(target)
			if _, exists := g.Node(to); !exists && strings.HasPrefix(target, nodeModules+"/") && resolver.exists(target) {
				g.AddNode(&FileNode{Path: target, Name: path.Base(target), Extension: path.Ext(target), External: true})
			}
			typ := EdgeImports
			if imp.Kind == parse.KindRequire {
				typ = EdgeRequires
			}
			g.AddEdge(from, to, typ, 1, map[string]string{
				"specifier": imp.Specifier,
				"line":      strconv.Itoa(imp.Line),
			})
		}

		for _, call := range res.Calls {
			if call.Caller == "" {
				continue
			}
			callee, ok := callees.resolve(call.Callee, f.Path)
			if !ok {
				continue
			}
			caller := model.FunctionKey(f.Path, call.Caller)
			if call.Method {
				caller = model.ElementKey(model.ElementMethod, f.Path, call.Caller)
			}
			g.AddEdge(caller, callee, EdgeCalls, 1, map[string]string{"line": strconv.Itoa(call.Line)})
		}
	}

	b.log.Debug("dependency graph built", "nodes", g.NodeCount(), "edges", g.EdgeCount())
	return g, nil
}

func seed(g *Graph, ci *model.CodeIndex) {
	for _, f := range ci.Files {
		g.AddNode(&FileNode{Path: f.Path, Name: f.Name, Extension: f.Extension})
	}
	for _, fn := range ci.Functions {
		n := &FunctionNode{Path: fn.FilePath, Name: fn.Name, Params: fn.Params, Location: fn.Location}
		g.AddNode(n)
		g.AddEdge(n.ID(), model.FileKey(fn.FilePath), EdgeContains, 1, nil)
	}
	for _, cls := range ci.Classes {
		c := &ClassNode{Path: cls.FilePath, Name: cls.Name, Location: cls.Location}
		for _, m := range cls.Methods {
			c.Methods = append(c.Methods, m.Name)
		}
		g.AddNode(c)
		g.AddEdge(c.ID(), model.FileKey(cls.FilePath), EdgeContains, 1, nil)

		for _, m := range cls.Methods {
			mn := &MethodNode{Path: cls.FilePath, Class: cls.Name, Name: m.Name, Params: m.Params, Location: m.Location}
			g.AddNode(mn)
			g.AddEdge(mn.ID(), model.FileKey(cls.FilePath), EdgeContains, 1, nil)
			g.AddEdge(mn.ID(), c.ID(), EdgeMemberOf, 1, nil)
		}
	}
}

// references re-parses files in parallel; the result at i belongs to
// files[i] and is nil when the file could not be read or parsed.
func (b *Builder) references(ctx context.Context, files []model.FileEntry) ([]*parse.Result, error) {
	out := make([]*parse.Result, len(files))
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
	for range min(b.cfg.Workers, max(len(files), 1)) {
		g.Go(func() error {
			var parsers parse.Parsers
			defer parsers.Close()
			for i := range jobs {
				out[i] = b.parseFile(gctx, &parsers, files[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analyzing references: %w", err)
	}
	return out, nil
}

func (b *Builder) parseFile(ctx context.Context, parsers *parse.Parsers, f model.FileEntry) (res *parse.Result) {
	l := lang.ForPath(f.Path)
	if l == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			b.log.Warn("parse panic", "path", f.Path, "err", r)
			res = nil
		}
	}()

	source, err := afero.ReadFile(b.fs, filepath.Join(b.root, filepath.FromSlash(f.Path)))
	if err != nil {
		b.log.Debug("reading file for references", "path", f.Path, "err", err)
		return nil
	}
	res, err = parsers.Extract(ctx, l, source, f.Path)
	if err != nil {
		b.log.Debug("parsing file for references", "path", f.Path, "err", err)
		return nil
	}
	return res
}

// calleeIndex maps function names to node IDs in index order.
type calleeIndex map[string][]calleeRef

type calleeRef struct {
	id   string
	path string
}

func newCalleeIndex(fns []model.FunctionEntry) calleeIndex {
	idx := make(calleeIndex)
	for _, fn := range fns {
		if fn.Name == model.AnonymousName {
			continue
		}
		idx[fn.Name] = append(idx[fn.Name], calleeRef{id: model.FunctionKey(fn.FilePath, fn.Name), path: fn.FilePath})
	}
	return idx
}

// resolve prefers a definition in the calling file, then the first one
// indexed.
func (c calleeIndex) resolve(name, fromPath string) (string, bool) {
	refs := c[name]
	if len(refs) == 0 {
		return "", false
	}
	for _, r := range refs {
		if r.path == fromPath {
			return r.id, true
		}
	}
	return refs[0].id, true
}
