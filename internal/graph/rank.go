package graph

import (
	"math"
	"sort"
)

// FileRank is a file's PageRank score over import edges.
type FileRank struct {
	Path string  `json:"path" yaml:"path"`
	Rank float64 `json:"rank" yaml:"rank"`
}

// Rank applies PageRank to the file nodes of g, treating each imports or
// requires edge as a link weighted by its accumulated weight. Results are
// sorted by rank descending, then path.
func Rank(g *Graph) []FileRank {
	nodes := make(map[string]struct{})
	paths := make(map[string]string)
	for _, n := range g.Nodes() {
		if f, ok := n.(*FileNode); ok {
			nodes[f.ID()] = struct{}{}
			paths[f.ID()] = f.Path
		}
	}
	if len(nodes) == 0 {
		return nil
	}

	outEdges := make(map[string]map[string]float64)
	outDegree := make(map[string]float64)
	for _, e := range g.edges {
		if e.Type != EdgeImports && e.Type != EdgeRequires {
			continue
		}
		if outEdges[e.Source] == nil {
			outEdges[e.Source] = make(map[string]float64)
		}
		outEdges[e.Source][e.Target] += e.Weight
		outDegree[e.Source] += e.Weight
	}

	var ranks map[string]float64
	if len(outEdges) == 0 {
		ranks = make(map[string]float64, len(nodes))
		uniform := 1.0 / float64(len(nodes))
		for id := range nodes {
			ranks[id] = uniform
		}
	} else {
		ranks = pageRank(nodes, outEdges, outDegree, 0.85, 100, 1e-6)
	}

	out := make([]FileRank, 0, len(nodes))
	for id := range nodes {
		out = append(out, FileRank{Path: paths[id], Rank: ranks[id]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank > out[j].Rank
		}
		return out[i].Path < out[j].Path
	})
	return out
}

func pageRank(
	nodes map[string]struct{},
	outEdges map[string]map[string]float64,
	outDegree map[string]float64,
	alpha float64,
	maxIter int,
	tol float64,
) map[string]float64 {
	n := len(nodes)
	rank := make(map[string]float64, n)
	initial := 1.0 / float64(n)
	for node := range nodes {
		rank[node] = initial
	}

	teleport := (1.0 - alpha) / float64(n)

	for iter := 0; iter < maxIter; iter++ {
		newRank := make(map[string]float64, n)

		// Dangling node contribution (nodes with no outgoing edges)
		var danglingSum float64
		for node := range nodes {
			if outDegree[node] == 0 {
				danglingSum += rank[node]
			}
		}
		danglingContrib := alpha * danglingSum / float64(n)

		for node := range nodes {
			newRank[node] = teleport + danglingContrib
		}

		for src, targets := range outEdges {
			deg := outDegree[src]
			for tgt, w := range targets {
				newRank[tgt] += alpha * rank[src] * w / deg
			}
		}

		var diff float64
		for node := range nodes {
			diff += math.Abs(newRank[node] - rank[node])
		}

		rank = newRank

		if diff < tol {
			break
		}
	}

	return rank
}
