// Package predict estimates which files a change will touch by walking the
// dependency graph outward from mapped code elements.
package predict

import (
	"log/slog"
	"sort"

	"github.com/phobologic/codemap/internal/graph"
	"github.com/phobologic/codemap/internal/model"
)

// fallbackDepth is the traversal depth used when the graph has no impact
// analysis of its own.
const fallbackDepth = 2

// ImpactAnalyzer reports the nodes reaching and reached from a node.
type ImpactAnalyzer interface {
	ImpactAnalysis(id string, depth int) (*graph.Impact, error)
}

// Traverser exposes bounded graph traversal.
type Traverser interface {
	Dependencies(id string, opts graph.TraverseOptions) ([]graph.Dependency, error)
}

// Config tunes the change plan.
type Config struct {
	ImpactThreshold  float64
	MaxImpactedFiles int
	MaxDepth         int
}

// DefaultConfig returns the prediction defaults.
func DefaultConfig() Config {
	return Config{ImpactThreshold: 0.5, MaxImpactedFiles: 10, MaxDepth: 3}
}

// Predictor turns mapping results into a ChangeImpact.
type Predictor struct {
	cfg Config
	log *slog.Logger
}

// New returns a Predictor. A nil logger discards output.
func New(cfg Config, log *slog.Logger) *Predictor {
	if cfg.MaxDepth < 1 {
		cfg.MaxDepth = DefaultConfig().MaxDepth
	}
	if cfg.MaxImpactedFiles < 0 {
		cfg.MaxImpactedFiles = 0
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Predictor{cfg: cfg, log: log}
}

// PredictChanges weights every node reachable from the mapped elements and
// groups the touched files into a prioritized plan. g is used through
// ImpactAnalyzer when it implements it, else through Traverser; any other
// value, nil included, contributes no impact.
func (p *Predictor) PredictChanges(results []model.MappingResult, g any) *model.ChangeImpact {
	out := &model.ChangeImpact{
		FilesToModify:    []string{},
		ElementsToModify: []model.ElementChange{},
	}

	seenFiles := make(map[string]struct{})
	seenElements := make(map[string]struct{})
	impacted := newAccumulator()
	dependencies := newAccumulator()

	for _, r := range results {
		el := r.Element
		if _, ok := seenFiles[el.FilePath]; !ok && el.FilePath != "" {
			seenFiles[el.FilePath] = struct{}{}
			out.FilesToModify = append(out.FilesToModify, el.FilePath)
		}
		key := el.Key()
		if _, ok := seenElements[key]; ok {
			continue
		}
		seenElements[key] = struct{}{}
		out.ElementsToModify = append(out.ElementsToModify, model.ElementChange{
			Type:       el.Type,
			Name:       el.Name,
			FilePath:   el.FilePath,
			Location:   el.Location,
			Confidence: r.Mapping.Confidence,
		})

		in, deps := p.impactOf(g, el.NodeID())
		factor := r.Mapping.Confidence.Factor()
		for _, d := range in {
			impacted.add(key, d, factor)
		}
		for _, d := range deps {
			dependencies.add(key, d, factor)
		}
	}

	out.ImpactAnalysis = model.ImpactAnalysis{
		ImpactedNodes:        impacted.rankedNodes(),
		DependencyNodes:      dependencies.rankedNodes(),
		ImpactedFiles:        impacted.rankedFiles(),
		DependencyFiles:      dependencies.rankedFiles(),
		TotalImpactScore:     impacted.total,
		TotalDependencyScore: dependencies.total,
	}
	out.ChangePlan = p.plan(out.FilesToModify, &out.ImpactAnalysis)

	p.log.Debug("predicted changes",
		"elements", len(out.ElementsToModify),
		"impacted_files", len(out.ImpactAnalysis.ImpactedFiles),
		"risk", out.ChangePlan.ImpactSummary.RiskLevel,
	)
	return out
}

// impactOf returns the incoming and outgoing traversals from id.
func (p *Predictor) impactOf(g any, id string) (impacted, deps []graph.Dependency) {
	switch a := g.(type) {
	case ImpactAnalyzer:
		imp, err := a.ImpactAnalysis(id, p.cfg.MaxDepth)
		if err != nil || imp == nil {
			p.log.Debug("impact analysis", "node", id, "err", err)
			return nil, nil
		}
		return imp.Impacted, imp.Dependencies
	case Traverser:
		in, err := a.Dependencies(id, graph.TraverseOptions{Direction: graph.Incoming, Depth: fallbackDepth})
		if err != nil {
			p.log.Debug("incoming traversal", "node", id, "err", err)
			return nil, nil
		}
		outgoing, err := a.Dependencies(id, graph.TraverseOptions{Direction: graph.Outgoing, Depth: fallbackDepth})
		if err != nil {
			p.log.Debug("outgoing traversal", "node", id, "err", err)
			return nil, nil
		}
		return in, outgoing
	default:
		return nil, nil
	}
}

func (p *Predictor) plan(primary []string, ia *model.ImpactAnalysis) model.ChangePlan {
	isPrimary := make(map[string]struct{}, len(primary))
	plan := model.ChangePlan{
		PrimaryChanges:   []model.PlannedChange{},
		SecondaryChanges: []model.PlannedChange{},
		DependencyChecks: []model.PlannedChange{},
	}
	for _, f := range primary {
		isPrimary[f] = struct{}{}
		plan.PrimaryChanges = append(plan.PrimaryChanges, model.PlannedChange{
			File: f, Priority: model.PriorityHigh, Action: model.ActionModify,
		})
	}

	tier := func(files []model.RankedFile, limit int, prio model.Priority, action model.Action) []model.PlannedChange {
		out := []model.PlannedChange{}
		for _, f := range files {
			if len(out) >= limit {
				break
			}
			if _, ok := isPrimary[f.Path]; ok || f.Weight < p.cfg.ImpactThreshold {
				continue
			}
			out = append(out, model.PlannedChange{File: f.Path, Priority: prio, Action: action, Weight: f.Weight})
		}
		return out
	}
	plan.SecondaryChanges = tier(ia.ImpactedFiles, p.cfg.MaxImpactedFiles, model.PriorityMedium, model.ActionCheck)
	plan.DependencyChecks = tier(ia.DependencyFiles, p.cfg.MaxImpactedFiles/2, model.PriorityLow, model.ActionVerify)

	plan.ImpactSummary = model.RiskSummary{
		RiskLevel:            model.RiskLevelFor(ia.TotalImpactScore, len(ia.ImpactedFiles)),
		TotalImpactScore:     ia.TotalImpactScore,
		TotalDependencyScore: ia.TotalDependencyScore,
		ImpactedFileCount:    len(ia.ImpactedFiles),
		DependencyFileCount:  len(ia.DependencyFiles),
	}
	return plan
}

// edgeFactor scales a node's weight by how it was reached.
func edgeFactor(t graph.EdgeType) float64 {
	switch t {
	case graph.EdgeCalls:
		return 1.5
	case graph.EdgeImports, graph.EdgeRequires:
		return 1.2
	case graph.EdgeContains:
		return 0.8
	default:
		return 1
	}
}

// weight is the contribution of one reached node: closer nodes and stronger
// edges count more, scaled by the mapped element's confidence.
func weight(d graph.Dependency, confidence float64) float64 {
	depth := max(d.Depth, 1)
	return 1 / float64(depth) * edgeFactor(d.Edge.Type) * confidence
}

// accumulator merges per-element traversals into ranked nodes and files.
type accumulator struct {
	nodes map[string]*model.RankedNode
	order []string
	// files maps path -> element key -> the element's strongest
	// contribution to that file.
	files     map[string]map[string]float64
	fileOrder []string
	total     float64
}

func newAccumulator() *accumulator {
	return &accumulator{
		nodes: make(map[string]*model.RankedNode),
		files: make(map[string]map[string]float64),
	}
}

func (a *accumulator) add(element string, d graph.Dependency, confidence float64) {
	w := weight(d, confidence)
	a.total += w

	n, ok := a.nodes[d.ID]
	if !ok {
		n = &model.RankedNode{ID: d.ID}
		if d.Node != nil {
			n.Type = d.Node.Kind()
			n.Name = d.Node.Label()
			n.FilePath = d.Node.FilePath()
		}
		a.nodes[d.ID] = n
		a.order = append(a.order, d.ID)
	}
	n.Weight += w
	n.Occurrences++

	if n.FilePath == "" {
		return
	}
	byElement, ok := a.files[n.FilePath]
	if !ok {
		byElement = make(map[string]float64)
		a.files[n.FilePath] = byElement
		a.fileOrder = append(a.fileOrder, n.FilePath)
	}
	byElement[element] = max(byElement[element], w)
}

func (a *accumulator) rankedNodes() []model.RankedNode {
	out := make([]model.RankedNode, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, *a.nodes[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (a *accumulator) rankedFiles() []model.RankedFile {
	out := make([]model.RankedFile, 0, len(a.fileOrder))
	for _, path := range a.fileOrder {
		f := model.RankedFile{Path: path, Elements: len(a.files[path])}
		for _, w := range a.files[path] {
			f.Weight += w
		}
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Path < out[j].Path
	})
	return out
}
