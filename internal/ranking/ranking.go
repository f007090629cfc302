// Package ranking narrows a code index to the files worth showing.
package ranking

import (
	"strings"

	"github.com/phobologic/codemap/internal/graph"
	"github.com/phobologic/codemap/internal/model"
)

// SelectFiles returns an index holding only the maxFiles highest-ranked
// files and their declarations, plus ranks trimmed to match. If maxFiles is
// <= 0 or covers every ranked file, the inputs are returned unchanged.
func SelectFiles(ci *model.CodeIndex, ranks []graph.FileRank, maxFiles int) (*model.CodeIndex, []graph.FileRank) {
	if maxFiles <= 0 || maxFiles >= len(ranks) {
		return ci, ranks
	}

	selected := ranks[:maxFiles]
	paths := make(map[string]struct{}, maxFiles)
	for _, r := range selected {
		paths[r.Path] = struct{}{}
	}
	return restrict(ci, paths), selected
}

// FilterByFile returns an index holding only files whose path contains
// substr, case-insensitively.
func FilterByFile(ci *model.CodeIndex, substr string) *model.CodeIndex {
	lower := strings.ToLower(substr)
	paths := make(map[string]struct{})
	for i := range ci.Files {
		if strings.Contains(strings.ToLower(ci.Files[i].Path), lower) {
			paths[ci.Files[i].Path] = struct{}{}
		}
	}
	return restrict(ci, paths)
}

// FilterBySymbol returns an index holding the functions and classes whose
// name contains substr (case-insensitive), the direct callers and callees
// of matched functions according to g, and the files defining any of them.
// g may be nil, in which case only direct matches are kept.
func FilterBySymbol(ci *model.CodeIndex, g *graph.Graph, substr string) *model.CodeIndex {
	lower := strings.ToLower(substr)

	keep := make(map[string]struct{})
	for i := range ci.Functions {
		fn := &ci.Functions[i]
		if strings.Contains(strings.ToLower(fn.Name), lower) {
			keep[model.FunctionKey(fn.FilePath, fn.Name)] = struct{}{}
		}
	}
	for i := range ci.Classes {
		c := &ci.Classes[i]
		if strings.Contains(strings.ToLower(c.Name), lower) {
			keep[model.ClassKey(c.FilePath, c.Name)] = struct{}{}
		}
	}

	// Expand to direct callers and callees.
	if g != nil {
		related := make(map[string]struct{})
		for _, e := range g.Edges() {
			if e.Type != graph.EdgeCalls {
				continue
			}
			if _, ok := keep[e.Source]; ok {
				related[e.Target] = struct{}{}
			}
			if _, ok := keep[e.Target]; ok {
				related[e.Source] = struct{}{}
			}
		}
		for id := range related {
			keep[id] = struct{}{}
		}
	}

	out := &model.CodeIndex{Metadata: ci.Metadata}
	paths := make(map[string]struct{})
	for i := range ci.Functions {
		fn := ci.Functions[i]
		if _, ok := keep[model.FunctionKey(fn.FilePath, fn.Name)]; ok {
			out.Functions = append(out.Functions, fn)
			paths[fn.FilePath] = struct{}{}
		}
	}
	for i := range ci.Classes {
		c := ci.Classes[i]
		if _, ok := keep[model.ClassKey(c.FilePath, c.Name)]; ok {
			out.Classes = append(out.Classes, c)
			paths[c.FilePath] = struct{}{}
		}
	}
	// Calls made from methods keep the method's file.
	for id := range keep {
		if strings.HasPrefix(id, string(model.ElementMethod)+":") {
			if n, ok := nodeOf(g, id); ok {
				paths[n.FilePath()] = struct{}{}
			}
		}
	}
	for i := range ci.Files {
		if _, ok := paths[ci.Files[i].Path]; ok {
			out.Files = append(out.Files, ci.Files[i])
		}
	}
	return out
}

func nodeOf(g *graph.Graph, id string) (graph.Node, bool) {
	if g == nil {
		return nil, false
	}
	return g.Node(id)
}

func restrict(ci *model.CodeIndex, paths map[string]struct{}) *model.CodeIndex {
	out := &model.CodeIndex{Metadata: ci.Metadata}
	for i := range ci.Files {
		if _, ok := paths[ci.Files[i].Path]; ok {
			out.Files = append(out.Files, ci.Files[i])
		}
	}
	for i := range ci.Functions {
		if _, ok := paths[ci.Functions[i].FilePath]; ok {
			out.Functions = append(out.Functions, ci.Functions[i])
		}
	}
	for i := range ci.Classes {
		if _, ok := paths[ci.Classes[i].FilePath]; ok {
			out.Classes = append(out.Classes, ci.Classes[i])
		}
	}
	return out
}
