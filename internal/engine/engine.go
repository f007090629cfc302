// Package engine wires the indexer, semantic analyzer, dependency graph,
// mapper, and change predictor behind one long-lived handle.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"

	"github.com/phobologic/codemap/internal/config"
	"github.com/phobologic/codemap/internal/graph"
	"github.com/phobologic/codemap/internal/index"
	"github.com/phobologic/codemap/internal/mapping"
	"github.com/phobologic/codemap/internal/metrics"
	"github.com/phobologic/codemap/internal/model"
	"github.com/phobologic/codemap/internal/predict"
	"github.com/phobologic/codemap/internal/semantic"
)

var (
	// ErrNotInitialized is returned by queries made before Initialize.
	ErrNotInitialized = errors.New("engine not initialized")
	// ErrGraphNotBuilt is returned by PredictChanges before Initialize.
	ErrGraphNotBuilt = errors.New("dependency graph not built")
	// ErrNotDirectory is returned when the codebase root is a file.
	ErrNotDirectory = errors.New("not a directory")
)

// Engine owns the index, semantic model, and graph of one codebase. Queries
// may run concurrently with each other and with Initialize; they see either
// the previous or the new state, never a mix.
type Engine struct {
	cfg     config.Config
	fs      afero.Fs
	log     *slog.Logger
	metrics *metrics.Collector

	initMu sync.Mutex
	group  singleflight.Group

	mu    sync.RWMutex
	state *state
}

type state struct {
	root     string
	index    *model.CodeIndex
	stats    *model.IndexStats
	analyzer *semantic.Analyzer
	graph    *graph.Graph
}

// Option configures an Engine.
type Option func(*Engine)

// WithFs sets the filesystem the codebase is read from.
func WithFs(fs afero.Fs) Option {
	return func(e *Engine) { e.fs = fs }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics records engine activity in c.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

// New returns an uninitialized Engine.
func New(cfg config.Config, opts ...Option) *Engine {
	e := &Engine{cfg: cfg, fs: afero.NewOsFs(), log: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Initialize indexes root, analyzes it, and builds its dependency graph,
// replacing any previous state only when every phase succeeds. Concurrent
// calls for the same root share one run; calls for different roots run one
// after another.
func (e *Engine) Initialize(ctx context.Context, root string) error {
	root = filepath.Clean(root)
	_, err, _ := e.group.Do(root, func() (any, error) {
		e.initMu.Lock()
		defer e.initMu.Unlock()
		return nil, e.initialize(ctx, root)
	})
	return err
}

func (e *Engine) initialize(ctx context.Context, root string) (err error) {
	defer func() {
		if err != nil {
			e.metrics.InitFailed()
		}
	}()

	fi, err := e.fs.Stat(root)
	if err != nil {
		return fmt.Errorf("codebase %s: %w", root, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("codebase %s: %w", root, ErrNotDirectory)
	}

	start := time.Now()
	phase := time.Now()

	ix := index.New(index.Config{
		IndexDepth:       e.cfg.IndexDepth,
		ExcludeDirs:      e.cfg.ExcludeDirs,
		FileExtensions:   e.cfg.FileExtensions,
		RespectGitignore: e.cfg.RespectGitignore,
		Workers:          e.cfg.Workers,
		MaxFileSize:      e.cfg.MaxFileSize,
	}, index.WithFs(e.fs), index.WithLogger(e.log))
	ci, stats, err := ix.IndexCodebase(ctx, root)
	if err != nil {
		return fmt.Errorf("indexing %s: %w", root, err)
	}
	e.metrics.ObservePhase("index", time.Since(phase))
	e.metrics.IndexRun(stats.FilesIndexed, stats.FilesFailed, stats.FilesSkipped, len(ci.Files), stats.Functions, stats.Classes)

	phase = time.Now()
	analyzer := semantic.NewAnalyzer(semantic.Config{
		MinTokenLength: e.cfg.MinTokenLength,
		KeywordCount:   e.cfg.KeywordCount,
	}, e.log)
	analyzer.AnalyzeCodebase(ci)
	e.metrics.ObservePhase("semantic", time.Since(phase))

	phase = time.Now()
	g, err := graph.NewBuilder(e.fs, root, graph.BuildConfig{
		Extensions:         e.cfg.FileExtensions,
		IncludeNodeModules: e.cfg.IncludeNodeModules,
		Workers:            e.cfg.Workers,
	}, e.log).Build(ctx, ci)
	if err != nil {
		return fmt.Errorf("building dependency graph: %w", err)
	}
	e.metrics.ObservePhase("graph", time.Since(phase))
	e.metrics.GraphSize(g.NodeCount(), g.EdgeCount())

	e.mu.Lock()
	e.state = &state{root: root, index: ci, stats: stats, analyzer: analyzer, graph: g}
	e.mu.Unlock()

	e.metrics.ObservePhase("total", time.Since(start))
	e.log.Info("engine initialized",
		"root", root,
		"files", len(ci.Files),
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"duration", time.Since(start))
	return nil
}

func (e *Engine) current() *state {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Root returns the initialized codebase root, or "" before Initialize.
func (e *Engine) Root() string {
	if s := e.current(); s != nil {
		return s.root
	}
	return ""
}

// Index returns the current code index and the stats of the run that built
// it.
func (e *Engine) Index() (*model.CodeIndex, *model.IndexStats, error) {
	s := e.current()
	if s == nil {
		return nil, nil, ErrNotInitialized
	}
	return s.index, s.stats, nil
}

// Graph returns the current dependency graph.
func (e *Engine) Graph() (*graph.Graph, error) {
	s := e.current()
	if s == nil || s.graph == nil {
		return nil, ErrGraphNotBuilt
	}
	return s.graph, nil
}

// Search runs a similarity query against the semantic index.
func (e *Engine) Search(query string, opts semantic.SearchOptions) ([]semantic.Match, error) {
	s := e.current()
	if s == nil {
		return nil, ErrNotInitialized
	}
	return s.analyzer.FindSimilarElements(query, opts), nil
}

func (e *Engine) mapperConfig() mapping.Config {
	return mapping.Config{
		SimilarityThreshold: e.cfg.SimilarityThreshold,
		MaxResults:          e.cfg.MaxResults,
		WeightKeywords:      e.cfg.WeightKeywords,
		WeightDescription:   e.cfg.WeightDescription,
	}
}

// MapTaskToCode ranks the code elements most likely to implement task.
func (e *Engine) MapTaskToCode(task model.Task) ([]model.MappingResult, error) {
	s := e.current()
	if s == nil {
		return nil, ErrNotInitialized
	}
	results, err := mapping.New(s.analyzer, e.mapperConfig(), e.log).MapTask(task, s.graph)
	if err != nil {
		return nil, fmt.Errorf("mapping task %q: %w", task.ID, err)
	}

	best := ""
	if len(results) > 0 {
		best = string(results[0].Mapping.Confidence)
	}
	e.metrics.Mapped(len(results), best)
	e.log.Debug("mapped task", "task", task.ID, "results", len(results), "best", best)
	return results, nil
}

// PredictChanges estimates the impact of modifying the mapped elements.
func (e *Engine) PredictChanges(results []model.MappingResult) (*model.ChangeImpact, error) {
	s := e.current()
	if s == nil || s.graph == nil {
		return nil, ErrGraphNotBuilt
	}
	impact := predict.New(predict.Config{
		ImpactThreshold:  e.cfg.ImpactThreshold,
		MaxImpactedFiles: e.cfg.MaxImpactedFiles,
		MaxDepth:         e.cfg.MaxDepth,
	}, e.log).PredictChanges(results, s.graph)

	e.metrics.Predicted(string(impact.ChangePlan.ImpactSummary.RiskLevel))
	return impact, nil
}

// FileModification is the suggested edit for one mapped file.
type FileModification struct {
	File       string                `json:"file" yaml:"file"`
	Priority   model.Priority        `json:"priority" yaml:"priority"`
	Elements   []model.ElementChange `json:"elements" yaml:"elements"`
	Suggestion string                `json:"suggestion" yaml:"suggestion"`
}

// Suggestions bundles the mapping, its predicted impact, and a per-file
// modification plan for one task.
type Suggestions struct {
	Task             model.Task            `json:"task" yaml:"task"`
	MappingResults   []model.MappingResult `json:"mappingResults" yaml:"mappingResults"`
	ChangeImpact     *model.ChangeImpact   `json:"changeImpact" yaml:"changeImpact"`
	ModificationPlan []FileModification    `json:"modificationPlan" yaml:"modificationPlan"`
}

// GenerateCodeModificationSuggestions maps task, predicts the impact, and
// proposes one modification per mapped file.
func (e *Engine) GenerateCodeModificationSuggestions(task model.Task) (*Suggestions, error) {
	results, err := e.MapTaskToCode(task)
	if err != nil {
		return nil, err
	}
	impact, err := e.PredictChanges(results)
	if err != nil {
		return nil, err
	}

	byFile := make(map[string][]model.ElementChange)
	for _, el := range impact.ElementsToModify {
		byFile[el.FilePath] = append(byFile[el.FilePath], el)
	}
	plan := make([]FileModification, 0, len(impact.FilesToModify))
	for _, f := range impact.FilesToModify {
		plan = append(plan, FileModification{
			File:       f,
			Priority:   model.PriorityHigh,
			Elements:   byFile[f],
			Suggestion: fmt.Sprintf("Implement %s here", task.Title),
		})
	}

	return &Suggestions{
		Task:             task,
		MappingResults:   results,
		ChangeImpact:     impact,
		ModificationPlan: plan,
	}, nil
}
