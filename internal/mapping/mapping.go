// Package mapping locates a task in code by fusing several semantic searches
// and re-ranking the hits with the dependency graph.
package mapping

import (
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/phobologic/codemap/internal/graph"
	"github.com/phobologic/codemap/internal/model"
	"github.com/phobologic/codemap/internal/semantic"
)

// ErrNoAnalyzer is returned when the Mapper has no semantic searcher.
var ErrNoAnalyzer = errors.New("semantic analyzer not available")

const (
	similarityWeight = 0.8
	dependencyWeight = 0.2
	dependencyMatch  = 0.1

	titleThresholdFactor       = 0.8
	descriptionThresholdFactor = 1.0
	keywordsThresholdFactor    = 0.9
)

// Searcher answers similarity queries over indexed elements.
type Searcher interface {
	FindSimilarElements(query string, opts semantic.SearchOptions) []semantic.Match
}

// Traverser exposes bounded graph traversal.
type Traverser interface {
	Dependencies(id string, opts graph.TraverseOptions) ([]graph.Dependency, error)
}

// Config tunes the search and blending.
type Config struct {
	SimilarityThreshold float64
	MaxResults          int
	WeightKeywords      float64
	WeightDescription   float64
}

// DefaultConfig returns the mapping defaults.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.3,
		MaxResults:          10,
		WeightKeywords:      0.3,
		WeightDescription:   0.4,
	}
}

// Mapper maps tasks onto code elements.
type Mapper struct {
	searcher Searcher
	cfg      Config
	log      *slog.Logger
}

// New returns a Mapper that searches with s. A nil logger discards output.
func New(s Searcher, cfg Config, log *slog.Logger) *Mapper {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultConfig().MaxResults
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Mapper{searcher: s, cfg: cfg, log: log}
}

type query struct {
	name      string
	text      string
	threshold float64
	weight    float64
}

type candidate struct {
	match      semantic.Match
	similarity float64
	weight     float64
}

// MapTask searches for the task's title, description, and keywords, merges
// the hits per element, and re-ranks them. deps may be nil, in which case
// every dependency score is zero.
func (m *Mapper) MapTask(task model.Task, deps Traverser) ([]model.MappingResult, error) {
	if m.searcher == nil {
		return nil, ErrNoAnalyzer
	}

	th := m.cfg.SimilarityThreshold
	queries := []query{
		{"title", task.Title, th * titleThresholdFactor, 1 - m.cfg.WeightKeywords - m.cfg.WeightDescription},
		{"description", task.Description, th * descriptionThresholdFactor, m.cfg.WeightDescription},
		{"keywords", strings.Join(task.Keywords, " "), th * keywordsThresholdFactor, m.cfg.WeightKeywords},
	}

	merged := make(map[string]*candidate)
	var order []string
	for _, q := range queries {
		if strings.TrimSpace(q.text) == "" {
			continue
		}
		hits := m.searcher.FindSimilarElements(q.text, semantic.SearchOptions{
			Limit:     m.cfg.MaxResults,
			Threshold: q.threshold,
		})
		m.log.Debug("task query", "task", task.ID, "query", q.name, "hits", len(hits))

		for _, hit := range hits {
			key := hit.Element.Key()
			c, ok := merged[key]
			if !ok {
				merged[key] = &candidate{match: hit, similarity: hit.Similarity, weight: q.weight}
				order = append(order, key)
				continue
			}
			// Running weighted average across contributing queries.
			total := c.weight + q.weight
			if total > 0 {
				c.similarity = (c.similarity*c.weight + hit.Similarity*q.weight) / total
			}
			c.weight = total
		}
	}

	results := make([]model.MappingResult, 0, len(merged))
	for _, key := range order {
		c := merged[key]
		depScore := dependencyScore(deps, c.match.Element, task.Dependencies)
		final := c.similarity*similarityWeight + depScore*dependencyWeight
		results = append(results, model.MappingResult{
			TaskID:    task.ID,
			TaskTitle: task.Title,
			Element:   c.match.Element,
			Mapping: model.MappingScore{
				Similarity:      c.similarity,
				DependencyScore: depScore,
				FinalScore:      final,
				Confidence:      model.ConfidenceFor(max(final, c.similarity)),
			},
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Mapping.FinalScore != results[j].Mapping.FinalScore {
			return results[i].Mapping.FinalScore > results[j].Mapping.FinalScore
		}
		return results[i].Element.Key() < results[j].Element.Key()
	})
	if len(results) > m.cfg.MaxResults {
		results = results[:m.cfg.MaxResults]
	}
	return results, nil
}

// dependencyScore adds dependencyMatch for every pair of one-hop neighbor
// and task dependency where either contains the other, case-insensitively.
func dependencyScore(deps Traverser, el model.CodeElement, taskDeps []string) float64 {
	if deps == nil || len(taskDeps) == 0 {
		return 0
	}
	neighbors, err := deps.Dependencies(el.NodeID(), graph.TraverseOptions{Direction: graph.Both, Depth: 1})
	if err != nil {
		return 0
	}

	var score float64
	for _, n := range neighbors {
		id := strings.ToLower(n.ID)
		label := ""
		if n.Node != nil {
			label = strings.ToLower(n.Node.Label())
		}
		for _, td := range taskDeps {
			td = strings.ToLower(strings.TrimSpace(td))
			if td == "" {
				continue
			}
			if overlaps(id, td) || (label != "" && overlaps(label, td)) {
				score += dependencyMatch
			}
		}
	}
	return score
}

func overlaps(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}
