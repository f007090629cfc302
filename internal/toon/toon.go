// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/phobologic/codemap/internal/engine"
	"github.com/phobologic/codemap/internal/graph"
	"github.com/phobologic/codemap/internal/model"
	"github.com/phobologic/codemap/internal/semantic"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// EncodeIndex renders an index run: files in rank order when ranks are
// given, then functions, classes, and any per-file errors.
func EncodeIndex(root string, ci *model.CodeIndex, stats *model.IndexStats, ranks []graph.FileRank) string {
	parts := statsFields(root, stats)

	rank := make(map[string]float64, len(ranks))
	order := make([]string, 0, len(ranks))
	for _, r := range ranks {
		rank[r.Path] = r.Rank
		order = append(order, r.Path)
	}
	if len(order) == 0 {
		for i := range ci.Files {
			order = append(order, ci.Files[i].Path)
		}
	}
	var fileRows [][]string
	for _, p := range order {
		f := ci.File(p)
		if f == nil {
			continue
		}
		fileRows = append(fileRows, []string{
			f.Path,
			f.Language,
			strconv.FormatInt(f.Size, 10),
			fmt.Sprintf("%.4f", rank[f.Path]),
		})
	}
	parts = append(parts, formatTabular("files", []string{"path", "language", "size", "rank"}, fileRows))

	var fnRows [][]string
	for i := range ci.Functions {
		fn := &ci.Functions[i]
		fnRows = append(fnRows, []string{
			fn.FilePath,
			fn.Name,
			strings.Join(fn.Params, " "),
			itoa(fn.Location.Start),
			itoa(fn.Location.End),
		})
	}
	parts = append(parts, formatTabular("functions", []string{"file", "name", "params", "start", "end"}, fnRows))

	var classRows [][]string
	for i := range ci.Classes {
		c := &ci.Classes[i]
		methods := make([]string, len(c.Methods))
		for j, m := range c.Methods {
			methods[j] = m.Name
		}
		classRows = append(classRows, []string{
			c.FilePath,
			c.Name,
			strings.Join(methods, " "),
			itoa(c.Location.Start),
			itoa(c.Location.End),
		})
	}
	parts = append(parts, formatTabular("classes", []string{"file", "name", "methods", "start", "end"}, classRows))

	if stats != nil && len(stats.Errors) > 0 {
		var errRows [][]string
		for _, e := range stats.Errors {
			errRows = append(errRows, []string{e})
		}
		parts = append(parts, formatTabular("errors", []string{"error"}, errRows))
	}

	return strings.Join(parts, "\n")
}

// EncodeStats renders the summary of an index run.
func EncodeStats(root string, stats *model.IndexStats) string {
	return strings.Join(statsFields(root, stats), "\n")
}

func statsFields(root string, stats *model.IndexStats) []string {
	parts := []string{field("root", root)}
	if stats != nil {
		parts = append(parts,
			field("indexed", itoa(stats.FilesIndexed)),
			field("failed", itoa(stats.FilesFailed)),
			field("skipped", itoa(stats.FilesSkipped)),
			field("duration", stats.Duration.Round(time.Millisecond).String()),
		)
	}
	return parts
}

// EncodeLookup renders a name lookup.
func EncodeLookup(query string, r model.LookupResult) string {
	var rows [][]string
	for i := range r.Files {
		rows = append(rows, []string{string(model.ElementFile), r.Files[i].Path, r.Files[i].Name, ""})
	}
	for i := range r.Functions {
		fn := &r.Functions[i]
		rows = append(rows, []string{string(model.ElementFunction), fn.FilePath, fn.Name, itoa(fn.Location.Start)})
	}
	for i := range r.Classes {
		c := &r.Classes[i]
		rows = append(rows, []string{string(model.ElementClass), c.FilePath, c.Name, itoa(c.Location.Start)})
	}
	return field("query", query) + "\n" +
		formatTabular("matches", []string{"type", "file", "name", "line"}, rows)
}

// EncodeMatches renders similarity search hits.
func EncodeMatches(query string, matches []semantic.Match) string {
	var rows [][]string
	for i := range matches {
		m := &matches[i]
		rows = append(rows, []string{
			string(m.Type),
			m.Element.FilePath,
			m.Element.Name,
			line(m.Element.Location),
			score(m.Similarity),
			strings.Join(m.Keywords, " "),
		})
	}
	return field("query", query) + "\n" +
		formatTabular("results", []string{"type", "file", "name", "line", "similarity", "keywords"}, rows)
}

// EncodeDependencies renders a traversal from id.
func EncodeDependencies(id string, deps []graph.Dependency) string {
	var rows [][]string
	for i := range deps {
		d := &deps[i]
		kind := ""
		if d.Node != nil {
			kind = string(d.Node.Kind())
		}
		rows = append(rows, []string{
			d.ID,
			kind,
			d.Edge.Source,
			d.Edge.Target,
			string(d.Edge.Type),
			itoa(d.Depth),
		})
	}
	return field("node", id) + "\n" +
		formatTabular("dependencies", []string{"id", "type", "source", "target", "edge", "depth"}, rows)
}

// EncodeMappings renders task mapping results.
func EncodeMappings(task model.Task, results []model.MappingResult) string {
	return field("task", task.ID) + "\n" + field("title", task.Title) + "\n" + mappingTable(results)
}

func mappingTable(results []model.MappingResult) string {
	var rows [][]string
	for i := range results {
		r := &results[i]
		rows = append(rows, []string{
			string(r.Element.Type),
			r.Element.FilePath,
			r.Element.Name,
			line(r.Element.Location),
			score(r.Mapping.Similarity),
			score(r.Mapping.DependencyScore),
			score(r.Mapping.FinalScore),
			string(r.Mapping.Confidence),
		})
	}
	return formatTabular("mappings",
		[]string{"type", "file", "name", "line", "similarity", "dependency", "score", "confidence"}, rows)
}

// EncodeImpact renders a change prediction: the risk summary, the plan, and
// the ranked files behind it.
func EncodeImpact(ci *model.ChangeImpact) string {
	sum := ci.ChangePlan.ImpactSummary
	parts := []string{
		field("risk", string(sum.RiskLevel)),
		field("impactScore", score(sum.TotalImpactScore)),
		field("dependencyScore", score(sum.TotalDependencyScore)),
	}

	var elRows [][]string
	for i := range ci.ElementsToModify {
		el := &ci.ElementsToModify[i]
		elRows = append(elRows, []string{string(el.Type), el.FilePath, el.Name, line(el.Location), string(el.Confidence)})
	}
	parts = append(parts, formatTabular("elements", []string{"type", "file", "name", "line", "confidence"}, elRows))

	var planRows [][]string
	plan := ci.ChangePlan
	for _, tier := range [][]model.PlannedChange{plan.PrimaryChanges, plan.SecondaryChanges, plan.DependencyChecks} {
		for _, c := range tier {
			planRows = append(planRows, []string{c.File, string(c.Priority), string(c.Action), score(c.Weight)})
		}
	}
	parts = append(parts, formatTabular("plan", []string{"file", "priority", "action", "weight"}, planRows))

	parts = append(parts,
		rankedFiles("impacted", ci.ImpactAnalysis.ImpactedFiles),
		rankedFiles("dependencies", ci.ImpactAnalysis.DependencyFiles),
	)
	return strings.Join(parts, "\n")
}

func rankedFiles(name string, files []model.RankedFile) string {
	var rows [][]string
	for _, f := range files {
		rows = append(rows, []string{f.Path, score(f.Weight), itoa(f.Elements)})
	}
	return formatTabular(name, []string{"path", "weight", "elements"}, rows)
}

// EncodeSuggestions renders the per-file modification plan followed by the
// mappings and impact it was derived from.
func EncodeSuggestions(s *engine.Suggestions) string {
	var rows [][]string
	for _, m := range s.ModificationPlan {
		names := make([]string, len(m.Elements))
		for i, el := range m.Elements {
			names[i] = el.Name
		}
		rows = append(rows, []string{m.File, string(m.Priority), strings.Join(names, " "), m.Suggestion})
	}
	parts := []string{
		field("task", s.Task.ID),
		field("title", s.Task.Title),
		formatTabular("suggestions", []string{"file", "priority", "elements", "suggestion"}, rows),
		mappingTable(s.MappingResults),
	}
	if s.ChangeImpact != nil {
		parts = append(parts, EncodeImpact(s.ChangeImpact))
	}
	return strings.Join(parts, "\n")
}

func field(name, value string) string {
	return name + ": " + encodeValue(value)
}

func itoa(n int) string { return strconv.Itoa(n) }

func score(f float64) string { return fmt.Sprintf("%.4f", f) }

func line(l model.Location) string {
	if l.Start == 0 {
		return ""
	}
	return itoa(l.Start)
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
