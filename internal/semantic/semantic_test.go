package semantic

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/codemap/internal/model"
)

func TestTokenize(t *testing.T) {
	t.Parallel()

	tok := Tokenizer{MinLength: 2}
	tests := []struct {
		in   string
		want []string
	}{
		{"loginUser", []string{"login", "user"}},
		{"HTTPServer_config", []string{"http", "server", "config"}},
		{"users", []string{"user"}},
		{"the user is a admin", []string{"user", "admin"}},
		{"const x = function () { return y; }", []string{}},
		{"", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got := tok.Tokenize(tt.in)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenizeMinLength(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"id", "db"}, Tokenizer{MinLength: 2}.Tokenize("id db x"))
	assert.Empty(t, Tokenizer{MinLength: 3}.Tokenize("id db x"))
}

func TestCorpusWeights(t *testing.T) {
	t.Parallel()

	c := NewCorpus()
	c.Add("d1", []string{"login", "user", "login"})
	c.Add("d2", []string{"logout", "user"})

	require.Equal(t, 2, c.Len())
	assert.Equal(t, 2, c.DocFreq("user"))
	assert.InDelta(t, 1.0, c.IDF("login"), 1e-9)
	assert.InDelta(t, 1+math.Log(2.0/3.0), c.IDF("user"), 1e-9)
	assert.InDelta(t, 2.0, c.TFIDF("d1", "login"), 1e-9)
	assert.Zero(t, c.TFIDF("d2", "login"))
	assert.Zero(t, c.TFIDF("missing", "login"))

	v := c.Vector("d1")
	assert.Len(t, v, 2)
	assert.InDelta(t, 2.0, v["login"], 1e-9)

	assert.Equal(t, []string{"login", "user"}, c.Keywords("d1", 5))
	assert.Equal(t, []string{"login"}, c.Keywords("d1", 1))

	q := c.QueryVector([]string{"login", "missing"})
	assert.InDelta(t, 1.0, q["login"], 1e-9)
	assert.Zero(t, q["missing"])
}

func TestCorpusReplaceDocument(t *testing.T) {
	t.Parallel()

	c := NewCorpus()
	c.Add("d1", []string{"alpha"})
	c.Add("d1", []string{"beta"})

	assert.Equal(t, 1, c.Len())
	assert.Zero(t, c.DocFreq("alpha"))
	assert.Equal(t, 1, c.DocFreq("beta"))
}

func sampleIndex() *model.CodeIndex {
	fns := []model.FunctionEntry{
		{
			Name:     "loginUser",
			FilePath: "src/auth.js",
			Code:     "function loginUser(user, password) { return authenticate(user, password); }",
			Location: model.Location{Start: 1, End: 3},
		},
		{
			Name:     "renderChart",
			FilePath: "src/chart.js",
			Code:     "function renderChart(data) { return draw(data.points); }",
		},
		{
			Name:     "formatDate",
			FilePath: "src/util.js",
			Code:     "function formatDate(date) { return date.toISOString(); }",
		},
	}
	classes := []model.ClassEntry{
		{Name: "SessionStore", FilePath: "src/auth.js", Code: "class SessionStore { save(session) {} }"},
	}
	return &model.CodeIndex{
		Files: []model.FileEntry{
			{Path: "src/auth.js", Name: "auth.js"},
			{Path: "src/chart.js", Name: "chart.js"},
			{Path: "src/util.js", Name: "util.js"},
		},
		Functions: fns,
		Classes:   classes,
	}
}

func TestAnalyzeCodebase(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(Config{}, nil)
	assert.Nil(t, a.Index())

	ix := a.AnalyzeCodebase(sampleIndex())
	require.Len(t, ix.Entries, 7)
	assert.Same(t, ix, a.Index())

	e, ok := ix.Entry("function:src/auth.js:loginUser")
	require.True(t, ok)
	assert.Equal(t, model.ElementFunction, e.Element.Type)
	assert.Equal(t, model.Location{Start: 1, End: 3}, e.Element.Location)
	assert.Contains(t, e.Tokens, "login")
	assert.Contains(t, e.Tokens, "password")
	assert.NotEmpty(t, e.Vector)
	assert.LessOrEqual(t, len(e.Keywords), DefaultKeywordCount)

	file, ok := ix.Entry("file:src/chart.js")
	require.True(t, ok)
	assert.Equal(t, []string{"chart"}, file.Tokens)

	_, ok = ix.Entry("class:src/auth.js:SessionStore")
	assert.True(t, ok)
}

func TestFindSimilarElements(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(Config{}, nil)
	a.AnalyzeCodebase(sampleIndex())

	matches := a.FindSimilarElements("user login", SearchOptions{})
	require.NotEmpty(t, matches)
	assert.Equal(t, "loginUser", matches[0].Element.Name)
	assert.Greater(t, matches[0].Similarity, 0.5)

	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Similarity, matches[i].Similarity)
	}
	for _, m := range matches {
		assert.GreaterOrEqual(t, m.Similarity, 0.0)
		assert.LessOrEqual(t, m.Similarity, 1.0)
	}
}

func TestFindSimilarElementsFilters(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(Config{}, nil)
	a.AnalyzeCodebase(sampleIndex())

	t.Run("threshold", func(t *testing.T) {
		for _, m := range a.FindSimilarElements("chart data", SearchOptions{Threshold: 0.4}) {
			assert.GreaterOrEqual(t, m.Similarity, 0.4)
		}
	})
	t.Run("types", func(t *testing.T) {
		matches := a.FindSimilarElements("auth session", SearchOptions{Types: []model.ElementType{model.ElementClass}})
		require.Len(t, matches, 1)
		assert.Equal(t, "SessionStore", matches[0].Element.Name)
	})
	t.Run("limit", func(t *testing.T) {
		assert.Len(t, a.FindSimilarElements("user", SearchOptions{Limit: 2}), 2)
	})
	t.Run("unknown terms", func(t *testing.T) {
		for _, m := range a.FindSimilarElements("zzzqqq", SearchOptions{}) {
			assert.Zero(t, m.Similarity)
		}
		assert.Empty(t, a.FindSimilarElements("zzzqqq", SearchOptions{Threshold: 0.01}))
	})
}

func TestFindSimilarElementsBeforeAnalyze(t *testing.T) {
	t.Parallel()

	assert.Nil(t, NewAnalyzer(Config{}, nil).FindSimilarElements("anything", SearchOptions{}))
}
