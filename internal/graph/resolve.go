package graph

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/phobologic/codemap/internal/parse"
)

const nodeModules = "node_modules"

// Resolver maps import specifiers to root-relative file paths by probing
// the filesystem.
type Resolver struct {
	fs                 afero.Fs
	root               string
	extensions         []string
	includeNodeModules bool
}

// NewResolver returns a Resolver for files under root.
func NewResolver(fs afero.Fs, root string, extensions []string, includeNodeModules bool) *Resolver {
	return &Resolver{fs: fs, root: root, extensions: extensions, includeNodeModules: includeNodeModules}
}

// Resolve returns the root-relative, slash-separated target of imp as seen
// from the file at from. ok is false for specifiers that are skipped: bare
// module names (unless node_modules inclusion is enabled), targets that
// escape the root, and root-anchored imports with no file on disk.
func (r *Resolver) Resolve(from string, imp parse.Import) (target string, ok bool) {
	spec := imp.Specifier
	switch {
	case isRelative(spec):
		target = path.Join(path.Dir(from), spec)
		if escapes(target) {
			return "", false
		}
	case strings.HasPrefix(spec, "/"):
		rel, err := filepath.Rel(r.root, filepath.FromSlash(spec))
		if err != nil || escapes(filepath.ToSlash(rel)) {
			return spec, true
		}
		target = filepath.ToSlash(rel)
	case imp.RootRelative:
		// Python dotted imports only count when they name a project file.
		found, exists := r.probe(path.Clean(spec))
		return found, exists
	default:
		if !r.includeNodeModules {
			return "", false
		}
		target = path.Join(nodeModules, spec)
	}

	found, _ := r.probe(target)
	return found, true
}

// probe tries target with each extension, then as a directory index, and
// falls back to target itself.
func (r *Resolver) probe(target string) (string, bool) {
	if !r.hasKnownExtension(target) {
		for _, ext := range r.extensions {
			if r.exists(target + ext) {
				return target + ext, true
			}
		}
		for _, ext := range r.extensions {
			if candidate := path.Join(target, "index"+ext); r.exists(candidate) {
				return candidate, true
			}
			if ext == ".py" {
				if candidate := path.Join(target, "__init__.py"); r.exists(candidate) {
					return candidate, true
				}
			}
		}
	}
	return target, r.exists(target)
}

func (r *Resolver) hasKnownExtension(p string) bool {
	ext := path.Ext(p)
	if ext == "" {
		return false
	}
	for _, e := range r.extensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

func (r *Resolver) exists(rel string) bool {
	info, err := r.fs.Stat(filepath.Join(r.root, filepath.FromSlash(rel)))
	return err == nil && !info.IsDir()
}

func isRelative(spec string) bool {
	return spec == "." || spec == ".." || strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, "../")
}
