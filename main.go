// codemap maps natural-language tasks onto code and predicts the impact of
// changing it.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/codemap/internal/config"
	"github.com/phobologic/codemap/internal/engine"
	"github.com/phobologic/codemap/internal/graph"
	"github.com/phobologic/codemap/internal/logging"
	"github.com/phobologic/codemap/internal/metrics"
	"github.com/phobologic/codemap/internal/model"
	"github.com/phobologic/codemap/internal/ranking"
	"github.com/phobologic/codemap/internal/semantic"
	"github.com/phobologic/codemap/internal/toon"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd(&app{stdout: stdout, stderr: stderr})
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

// app carries the flags and collaborators shared by every subcommand.
type app struct {
	stdout, stderr io.Writer

	configPath  string
	root        string
	format      string
	logLevel    string
	logFormat   string
	metricsFile string
	verbose     int
	quiet       bool

	cfg config.Config
	log *slog.Logger
	reg *prometheus.Registry
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codemap",
		Short: "Map tasks onto code and predict the impact of changes",
		Long: `codemap indexes a JavaScript/TypeScript (and optionally Python) codebase,
builds a TF-IDF model and a dependency graph over it, and uses both to find
the code a natural-language task most likely touches.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return a.setup(cmd) },
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.writeMetrics()
		},
	}
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)
	cmd.SetVersionTemplate("codemap {{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "config file (default ./"+config.FileName+" or ~/"+config.FileName+")")
	pf.StringVarP(&a.root, "root", "C", ".", "codebase root")
	pf.StringVarP(&a.format, "format", "f", "toon", "output format: toon, json, or yaml")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, or error (overrides config)")
	pf.StringVar(&a.logFormat, "log-format", "", "log format: text or json (overrides config)")
	pf.StringVar(&a.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
	pf.CountVarP(&a.verbose, "verbose", "v", "more logging; repeatable")
	pf.BoolVarP(&a.quiet, "quiet", "q", false, "log errors only")

	cmd.AddCommand(
		newIndexCmd(a),
		newSearchCmd(a),
		newDepsCmd(a),
		newMapCmd(a),
		newImpactCmd(a),
		newSuggestCmd(a),
		newWatchCmd(a),
		newInitCmd(a),
	)
	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	switch a.format {
	case "toon", "json", "yaml":
	default:
		return fmt.Errorf("unsupported format %q", a.format)
	}

	// init writes the config file; it must work when the existing one is
	// invalid.
	if cmd.Name() == "init" {
		a.cfg = config.Default()
	} else {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}

	level := a.cfg.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}
	format := a.cfg.LogFormat
	if a.logFormat != "" {
		format = a.logFormat
	}
	lvl := logging.Verbosity(logging.ParseLevel(level), a.verbose, a.quiet)
	a.log = logging.NewAt(a.stderr, lvl, format)
	a.reg = prometheus.NewRegistry()
	return nil
}

func (a *app) writeMetrics() error {
	if a.metricsFile == "" || a.reg == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(a.metricsFile, a.reg); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}

// engine builds an engine over root and initializes it.
func (a *app) engine(ctx context.Context, root string) (*engine.Engine, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	e := engine.New(a.cfg, engine.WithLogger(a.log), engine.WithMetrics(metrics.New(a.reg)))
	if err := e.Initialize(ctx, abs); err != nil {
		return nil, err
	}
	return e, nil
}

// emit writes v as JSON or YAML, or the TOON rendering otherwise.
func (a *app) emit(v any, asToon func() string) error {
	switch a.format {
	case "json":
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(a.stdout)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		_, err := fmt.Fprintln(a.stdout, asToon())
		return err
	}
}

func newIndexCmd(a *app) *cobra.Command {
	var (
		maxFiles int
		file     string
		symbol   string
	)
	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a codebase and list its files by import rank",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := a.root
			if len(args) > 0 {
				root = args[0]
			}
			e, err := a.engine(cmd.Context(), root)
			if err != nil {
				return err
			}
			ci, stats, err := e.Index()
			if err != nil {
				return err
			}
			g, err := e.Graph()
			if err != nil {
				return err
			}
			if len(ci.Files) == 0 {
				return errors.New("no indexable files found")
			}

			ranks := graph.Rank(g)
			if file != "" {
				ci = ranking.FilterByFile(ci, file)
			}
			if symbol != "" {
				ci = ranking.FilterBySymbol(ci, g, symbol)
			}
			if file != "" || symbol != "" {
				ranks = keepRanks(ranks, ci)
			}
			ci, ranks = ranking.SelectFiles(ci, ranks, maxFiles)

			out := struct {
				Root  string            `json:"root" yaml:"root"`
				Stats *model.IndexStats `json:"stats" yaml:"stats"`
				Ranks []graph.FileRank  `json:"ranks" yaml:"ranks"`
				Index *model.CodeIndex  `json:"index" yaml:"index"`
			}{e.Root(), stats, ranks, ci}
			return a.emit(out, func() string { return toon.EncodeIndex(filepath.Base(e.Root()), ci, stats, ranks) })
		},
	}
	cmd.Flags().IntVarP(&maxFiles, "max-files", "n", 0, "show only the top N ranked files")
	cmd.Flags().StringVar(&file, "file", "", "show only files whose path contains this substring")
	cmd.Flags().StringVarP(&symbol, "symbol", "s", "", "show only declarations matching this substring, with their callers and callees")
	return cmd
}

func keepRanks(ranks []graph.FileRank, ci *model.CodeIndex) []graph.FileRank {
	var out []graph.FileRank
	for _, r := range ranks {
		if ci.File(r.Path) != nil {
			out = append(out, r)
		}
	}
	return out
}

func newSearchCmd(a *app) *cobra.Command {
	var (
		limit     int
		threshold float64
		types     []string
		byName    bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find code elements similar to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			e, err := a.engine(cmd.Context(), a.root)
			if err != nil {
				return err
			}
			if byName {
				ci, _, err := e.Index()
				if err != nil {
					return err
				}
				r := ci.Lookup(query)
				return a.emit(r, func() string { return toon.EncodeLookup(query, r) })
			}

			opts := semantic.SearchOptions{Limit: limit, Threshold: threshold}
			for _, t := range types {
				opts.Types = append(opts.Types, model.ElementType(t))
			}
			matches, err := e.Search(query, opts)
			if err != nil {
				return err
			}
			return a.emit(matches, func() string { return toon.EncodeMatches(query, matches) })
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", semantic.DefaultLimit, "maximum results")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "minimum similarity")
	cmd.Flags().StringSliceVarP(&types, "type", "t", nil, "element types to include: file, function, class")
	cmd.Flags().BoolVar(&byName, "name", false, "match names by substring instead of similarity")
	return cmd
}

func newDepsCmd(a *app) *cobra.Command {
	var (
		direction  string
		types      []string
		depth      int
		maxResults int
		impact     bool
	)
	cmd := &cobra.Command{
		Use:   "deps <node-id>",
		Short: "Traverse the dependency graph from a node",
		Long: `Traverse the dependency graph from a node such as file:src/a.js,
function:src/a.js:main, class:src/a.js:User, or method:src/a.js:User.save.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			e, err := a.engine(cmd.Context(), a.root)
			if err != nil {
				return err
			}
			g, err := e.Graph()
			if err != nil {
				return err
			}

			if impact {
				imp, err := g.ImpactAnalysis(id, depth)
				if err != nil {
					return err
				}
				return a.emit(imp, func() string {
					return toon.EncodeDependencies(id, append(imp.Impacted, imp.Dependencies...))
				})
			}

			opts := graph.TraverseOptions{Direction: graph.Direction(direction), Depth: depth, MaxResults: maxResults}
			for _, t := range types {
				opts.Types = append(opts.Types, graph.EdgeType(t))
			}
			deps, err := g.Dependencies(id, opts)
			if err != nil {
				return err
			}
			return a.emit(deps, func() string { return toon.EncodeDependencies(id, deps) })
		},
	}
	cmd.Flags().StringVar(&direction, "direction", string(graph.Outgoing), "outgoing, incoming, or both")
	cmd.Flags().StringSliceVarP(&types, "type", "t", nil, "edge types to follow: contains, memberOf, imports, requires, calls")
	cmd.Flags().IntVarP(&depth, "depth", "d", 1, "maximum hops")
	cmd.Flags().IntVarP(&maxResults, "max-results", "n", 0, "maximum nodes (0 = unlimited)")
	cmd.Flags().BoolVar(&impact, "impact", false, "report incoming and outgoing nodes together")
	return cmd
}

// taskFlags reads a task from a YAML or JSON file, flags, or both; flags
// override the file.
type taskFlags struct {
	file         string
	id           string
	title        string
	description  string
	keywords     []string
	dependencies []string
}

func (f *taskFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.file, "task", "", "task file (YAML or JSON)")
	cmd.Flags().StringVar(&f.id, "id", "", "task id (default: random UUID)")
	cmd.Flags().StringVar(&f.title, "title", "", "task title")
	cmd.Flags().StringVar(&f.description, "description", "", "task description")
	cmd.Flags().StringSliceVarP(&f.keywords, "keyword", "k", nil, "task keyword; repeatable")
	cmd.Flags().StringSliceVar(&f.dependencies, "dependency", nil, "identifier the task depends on; repeatable")
}

var validate = validator.New()

func (f *taskFlags) task(args []string) (model.Task, error) {
	var t model.Task
	if f.file != "" {
		data, err := os.ReadFile(f.file)
		if err != nil {
			return t, fmt.Errorf("reading task: %w", err)
		}
		if err := yaml.Unmarshal(data, &t); err != nil {
			return t, fmt.Errorf("parsing task %s: %w", f.file, err)
		}
	}
	if f.id != "" {
		t.ID = f.id
	}
	if f.title != "" {
		t.Title = f.title
	} else if t.Title == "" && len(args) > 0 {
		t.Title = strings.Join(args, " ")
	}
	if f.description != "" {
		t.Description = f.description
	}
	if len(f.keywords) > 0 {
		t.Keywords = f.keywords
	}
	if len(f.dependencies) > 0 {
		t.Dependencies = f.dependencies
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if err := validate.Struct(t); err != nil {
		return t, fmt.Errorf("invalid task: %w", err)
	}
	return t, nil
}

func newMapCmd(a *app) *cobra.Command {
	var tf taskFlags
	cmd := &cobra.Command{
		Use:   "map [title...]",
		Short: "Map a task onto the code most likely to implement it",
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := tf.task(args)
			if err != nil {
				return err
			}
			e, err := a.engine(cmd.Context(), a.root)
			if err != nil {
				return err
			}
			results, err := e.MapTaskToCode(task)
			if err != nil {
				return err
			}
			return a.emit(results, func() string { return toon.EncodeMappings(task, results) })
		},
	}
	tf.register(cmd)
	return cmd
}

func newImpactCmd(a *app) *cobra.Command {
	var tf taskFlags
	cmd := &cobra.Command{
		Use:   "impact [title...]",
		Short: "Predict the files affected by implementing a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := tf.task(args)
			if err != nil {
				return err
			}
			e, err := a.engine(cmd.Context(), a.root)
			if err != nil {
				return err
			}
			results, err := e.MapTaskToCode(task)
			if err != nil {
				return err
			}
			impact, err := e.PredictChanges(results)
			if err != nil {
				return err
			}
			return a.emit(impact, func() string { return toon.EncodeImpact(impact) })
		},
	}
	tf.register(cmd)
	return cmd
}

func newSuggestCmd(a *app) *cobra.Command {
	var tf taskFlags
	cmd := &cobra.Command{
		Use:   "suggest [title...]",
		Short: "Propose per-file modifications for a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := tf.task(args)
			if err != nil {
				return err
			}
			e, err := a.engine(cmd.Context(), a.root)
			if err != nil {
				return err
			}
			s, err := e.GenerateCodeModificationSuggestions(task)
			if err != nil {
				return err
			}
			return a.emit(s, func() string { return toon.EncodeSuggestions(s) })
		},
	}
	tf.register(cmd)
	return cmd
}
