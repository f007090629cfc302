package semantic

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
)

var (
	// fooBar -> foo Bar, v2Api -> v2 Api
	lowerUpperRe = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	// HTTPServer -> HTTP Server
	acronymRe = regexp.MustCompile(`([A-Z]+)([A-Z][a-z])`)
)

var stopwords = toSet(
	// English
	"a", "about", "above", "after", "again", "against", "all", "am", "an", "and",
	"any", "are", "as", "at", "be", "because", "been", "before", "being", "below",
	"between", "both", "but", "by", "can", "could", "did", "do", "does", "doing",
	"down", "during", "each", "few", "for", "from", "further", "had", "has", "have",
	"having", "he", "her", "here", "hers", "herself", "him", "himself", "his", "how",
	"i", "if", "in", "into", "is", "it", "its", "itself", "just", "me", "more", "most",
	"my", "myself", "no", "nor", "not", "now", "of", "off", "on", "once", "only", "or",
	"other", "our", "ours", "ourselves", "out", "over", "own", "same", "she", "should",
	"so", "some", "such", "than", "that", "the", "their", "theirs", "them", "themselves",
	"then", "there", "these", "they", "this", "those", "through", "to", "too", "under",
	"until", "up", "very", "was", "we", "were", "what", "when", "where", "which",
	"while", "who", "whom", "why", "will", "with", "would", "you", "your", "yours",
	"yourself", "yourselves",
	// JavaScript / TypeScript
	"async", "await", "break", "case", "catch", "class", "const", "continue",
	"debugger", "default", "delete", "else", "enum", "export", "extends", "false",
	"finally", "function", "implements", "import", "instanceof", "interface", "let",
	"new", "null", "package", "private", "protected", "public", "require", "return",
	"static", "super", "switch", "throw", "true", "try", "typeof", "undefined", "var",
	"void", "yield", "module", "exports", "string", "number", "boolean", "any",
	// Python
	"def", "elif", "except", "lambda", "none", "pass", "raise", "self",
)

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// Tokenizer turns identifiers and source text into stemmed terms.
type Tokenizer struct {
	MinLength int
}

// Tokenize splits text on camel-case boundaries and non-alphanumeric runes,
// lowercases, drops short tokens and stopwords, and stems what remains.
func (t Tokenizer) Tokenize(text string) []string {
	text = acronymRe.ReplaceAllString(text, "$1 $2")
	text = lowerUpperRe.ReplaceAllString(text, "$1 $2")
	text = strings.ToLower(text)

	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < t.MinLength {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		tokens = append(tokens, english.Stem(f, false))
	}
	return tokens
}
