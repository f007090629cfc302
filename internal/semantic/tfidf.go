package semantic

import (
	"math"
	"sort"

	"github.com/phobologic/codemap/internal/vecmath"
)

// Corpus is a TF-IDF model over keyed token documents. Term frequency is
// the raw count of a term in a document; idf(t) = 1 + ln(N / (1 + df(t))).
type Corpus struct {
	docs  []document
	byKey map[string]int
	df    map[string]int
}

type document struct {
	key    string
	counts map[string]int
}

// NewCorpus returns an empty corpus.
func NewCorpus() *Corpus {
	return &Corpus{byKey: make(map[string]int), df: make(map[string]int)}
}

// Add registers tokens as the document for key. Adding an existing key
// replaces its document.
func (c *Corpus) Add(key string, tokens []string) {
	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}

	if i, ok := c.byKey[key]; ok {
		for t := range c.docs[i].counts {
			c.df[t]--
			if c.df[t] == 0 {
				delete(c.df, t)
			}
		}
		c.docs[i].counts = counts
	} else {
		c.byKey[key] = len(c.docs)
		c.docs = append(c.docs, document{key: key, counts: counts})
	}
	for t := range counts {
		c.df[t]++
	}
}

// Len returns the number of documents.
func (c *Corpus) Len() int { return len(c.docs) }

// DocFreq returns how many documents contain term.
func (c *Corpus) DocFreq(term string) int { return c.df[term] }

// IDF returns the inverse document frequency of term.
func (c *Corpus) IDF(term string) float64 {
	return 1 + math.Log(float64(len(c.docs))/float64(1+c.df[term]))
}

// TFIDF returns the weight of term in the document for key.
func (c *Corpus) TFIDF(key, term string) float64 {
	i, ok := c.byKey[key]
	if !ok {
		return 0
	}
	return float64(c.docs[i].counts[term]) * c.IDF(term)
}

// Vector returns the sparse TF-IDF vector of the document for key.
func (c *Corpus) Vector(key string) vecmath.Vector {
	i, ok := c.byKey[key]
	if !ok {
		return vecmath.Vector{}
	}
	v := make(vecmath.Vector, len(c.docs[i].counts))
	for t, n := range c.docs[i].counts {
		v[t] = float64(n) * c.IDF(t)
	}
	return v
}

// Term is a weighted term of one document.
type Term struct {
	Term   string
	Weight float64
}

// Terms returns the document's terms ordered by descending TF-IDF weight,
// ties broken alphabetically.
func (c *Corpus) Terms(key string) []Term {
	v := c.Vector(key)
	terms := make([]Term, 0, len(v))
	for t, w := range v {
		terms = append(terms, Term{Term: t, Weight: w})
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Weight != terms[j].Weight {
			return terms[i].Weight > terms[j].Weight
		}
		return terms[i].Term < terms[j].Term
	})
	return terms
}

// Keywords returns up to k of the document's highest-weighted terms.
func (c *Corpus) Keywords(key string, k int) []string {
	terms := c.Terms(key)
	if k >= 0 && len(terms) > k {
		terms = terms[:k]
	}
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = t.Term
	}
	return out
}

// QueryVector weights each query token by its IDF, or 0 when no document
// contains it.
func (c *Corpus) QueryVector(tokens []string) vecmath.Vector {
	v := make(vecmath.Vector, len(tokens))
	for _, t := range tokens {
		if c.df[t] == 0 {
			v[t] = 0
			continue
		}
		v[t] = c.IDF(t)
	}
	return v
}
