// Package semantic embeds indexed code elements as TF-IDF vectors and
// answers similarity queries against them.
package semantic

import (
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/phobologic/codemap/internal/model"
	"github.com/phobologic/codemap/internal/vecmath"
)

// Defaults for Config fields left zero.
const (
	DefaultMinTokenLength = 2
	DefaultKeywordCount   = 5
	DefaultLimit          = 10
)

// Config controls tokenization and keyword extraction.
type Config struct {
	MinTokenLength int
	KeywordCount   int
}

// Entry is the semantic record of one element.
type Entry struct {
	Key      string
	Element  model.CodeElement
	Tokens   []string
	Vector   vecmath.Vector
	Keywords []string
}

// Index is the semantic index built from one CodeIndex.
type Index struct {
	Entries []Entry
	Corpus  *Corpus
	byKey   map[string]int
}

// Entry returns the entry for key.
func (ix *Index) Entry(key string) (Entry, bool) {
	if ix == nil {
		return Entry{}, false
	}
	i, ok := ix.byKey[key]
	if !ok {
		return Entry{}, false
	}
	return ix.Entries[i], true
}

// SearchOptions filters FindSimilarElements. A zero Limit means
// DefaultLimit; empty Types means every type.
type SearchOptions struct {
	Limit     int
	Types     []model.ElementType
	Threshold float64
}

// Match is one similarity search hit.
type Match struct {
	Type       model.ElementType `json:"type" yaml:"type"`
	Element    model.CodeElement `json:"item" yaml:"item"`
	Keywords   []string          `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Similarity float64           `json:"similarity" yaml:"similarity"`
}

// Analyzer builds and queries a semantic index. It is safe for concurrent
// queries; AnalyzeCodebase swaps the index atomically.
type Analyzer struct {
	tok      Tokenizer
	keywords int
	log      *slog.Logger

	mu    sync.RWMutex
	index *Index
}

// NewAnalyzer returns an Analyzer for cfg. A nil logger discards output.
func NewAnalyzer(cfg Config, log *slog.Logger) *Analyzer {
	if cfg.MinTokenLength <= 0 {
		cfg.MinTokenLength = DefaultMinTokenLength
	}
	if cfg.KeywordCount <= 0 {
		cfg.KeywordCount = DefaultKeywordCount
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Analyzer{
		tok:      Tokenizer{MinLength: cfg.MinTokenLength},
		keywords: cfg.KeywordCount,
		log:      log,
	}
}

// Tokenize runs the analyzer's tokenizer over text.
func (a *Analyzer) Tokenize(text string) []string {
	return a.tok.Tokenize(text)
}

// Index returns the current semantic index, or nil before AnalyzeCodebase.
func (a *Analyzer) Index() *Index {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.index
}

// AnalyzeCodebase registers every file, function, and class of ci as a
// document, then computes each element's vector and keywords.
func (a *Analyzer) AnalyzeCodebase(ci *model.CodeIndex) *Index {
	ix := &Index{Corpus: NewCorpus(), byKey: make(map[string]int)}

	add := func(el model.CodeElement, tokens []string) {
		key := el.NodeID()
		if i, ok := ix.byKey[key]; ok {
			// Same-named declarations in one file share an element.
			ix.Entries[i].Tokens = append(ix.Entries[i].Tokens, tokens...)
			ix.Corpus.Add(key, ix.Entries[i].Tokens)
			return
		}
		ix.byKey[key] = len(ix.Entries)
		ix.Entries = append(ix.Entries, Entry{Key: key, Element: el, Tokens: tokens})
		ix.Corpus.Add(key, tokens)
	}

	if ci != nil {
		for _, f := range ci.Files {
			base := strings.TrimSuffix(path.Base(f.Path), path.Ext(f.Path))
			add(model.CodeElement{Type: model.ElementFile, Name: f.Name, FilePath: f.Path},
				a.tok.Tokenize(base))
		}
		for _, fn := range ci.Functions {
			tokens := append(a.tok.Tokenize(fn.Name), a.tok.Tokenize(fn.Code)...)
			add(model.CodeElement{Type: model.ElementFunction, Name: fn.Name, FilePath: fn.FilePath, Location: fn.Location},
				tokens)
		}
		for _, cls := range ci.Classes {
			tokens := append(a.tok.Tokenize(cls.Name), a.tok.Tokenize(cls.Code)...)
			add(model.CodeElement{Type: model.ElementClass, Name: cls.Name, FilePath: cls.FilePath, Location: cls.Location},
				tokens)
		}
	}

	// Weights depend on the whole corpus, so vectors come after every
	// document is registered.
	for i := range ix.Entries {
		e := &ix.Entries[i]
		e.Vector = ix.Corpus.Vector(e.Key)
		e.Keywords = ix.Corpus.Keywords(e.Key, a.keywords)
	}

	a.mu.Lock()
	a.index = ix
	a.mu.Unlock()

	a.log.Debug("semantic index built", "documents", ix.Corpus.Len())
	return ix
}

// FindSimilarElements ranks indexed elements by cosine similarity to query.
// Results are at or above opts.Threshold, sorted by non-increasing
// similarity, and at most opts.Limit long.
func (a *Analyzer) FindSimilarElements(query string, opts SearchOptions) []Match {
	ix := a.Index()
	if ix == nil {
		return nil
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	var types map[model.ElementType]struct{}
	if len(opts.Types) > 0 {
		types = make(map[model.ElementType]struct{}, len(opts.Types))
		for _, t := range opts.Types {
			types[t] = struct{}{}
		}
	}

	qv := ix.Corpus.QueryVector(a.tok.Tokenize(query))

	var matches []Match
	for _, e := range ix.Entries {
		if types != nil {
			if _, ok := types[e.Element.Type]; !ok {
				continue
			}
		}
		sim := vecmath.CosineSimilarity(qv, e.Vector)
		if sim < opts.Threshold {
			continue
		}
		matches = append(matches, Match{
			Type:       e.Element.Type,
			Element:    e.Element,
			Keywords:   e.Keywords,
			Similarity: sim,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
