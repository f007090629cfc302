package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleIndex() *CodeIndex {
	return &CodeIndex{
		Files: []FileEntry{
			{Path: "src/auth/login.js", Name: "login.js"},
			{Path: "src/user.js", Name: "user.js"},
		},
		Functions: []FunctionEntry{
			{Name: "loginUser", FilePath: "src/auth/login.js"},
			{Name: "logout", FilePath: "src/auth/login.js"},
		},
		Classes: []ClassEntry{
			{Name: "UserStore", FilePath: "src/user.js"},
		},
	}
}

func TestLookupCaseInsensitive(t *testing.T) {
	t.Parallel()

	res := sampleIndex().Lookup("LOGIN")
	assert.Len(t, res.Files, 1)
	assert.Len(t, res.Functions, 1)
	assert.Equal(t, "loginUser", res.Functions[0].Name)
	assert.Empty(t, res.Classes)

	res = sampleIndex().Lookup("user")
	assert.Len(t, res.Files, 1)
	assert.Len(t, res.Functions, 1)
	assert.Len(t, res.Classes, 1)
}

func TestLookupEmptyQuery(t *testing.T) {
	t.Parallel()

	res := sampleIndex().Lookup("")
	assert.Empty(t, res.Files)
	assert.Empty(t, res.Functions)
	assert.Empty(t, res.Classes)

	var nilIndex *CodeIndex
	assert.Empty(t, nilIndex.Lookup("x").Files)
}

func TestElementKeys(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "file:a.js", FileKey("a.js"))
	assert.Equal(t, "function:a.js:foo", FunctionKey("a.js", "foo"))
	assert.Equal(t, "class:a.js:Foo", ClassKey("a.js", "Foo"))
	assert.Equal(t, "method:a.js:Foo.bar", MethodKey("a.js", "Foo", "bar"))
	assert.Equal(t, "method:a.js:Foo.bar", ElementKey(ElementMethod, "a.js", "Foo.bar"))

	el := CodeElement{Type: ElementFunction, Name: "foo", FilePath: "a.js"}
	assert.Equal(t, "function:a.js:foo", el.Key())
	assert.Equal(t, "function:a.js:foo", el.NodeID())

	file := CodeElement{Type: ElementFile, Name: "a.js", FilePath: "a.js"}
	assert.Equal(t, "file:a.js", file.NodeID())
}

func TestConfidenceFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score float64
		want  Confidence
	}{
		{1.0, ConfidenceHigh},
		{0.8, ConfidenceHigh},
		{0.79, ConfidenceMedium},
		{0.6, ConfidenceMedium},
		{0.59, ConfidenceLow},
		{0, ConfidenceLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ConfidenceFor(tt.score), "score %v", tt.score)
	}
	assert.InDelta(t, 1.2, ConfidenceHigh.Factor(), 1e-9)
	assert.InDelta(t, 1.0, ConfidenceMedium.Factor(), 1e-9)
	assert.InDelta(t, 0.8, ConfidenceLow.Factor(), 1e-9)
}

func TestRiskLevelFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		score float64
		files int
		want  RiskLevel
	}{
		{"high by score", 55, 3, RiskHigh},
		{"high by files", 1, 21, RiskHigh},
		{"boundary score is medium", 50, 0, RiskMedium},
		{"medium by score", 21, 0, RiskMedium},
		{"medium by files", 0, 11, RiskMedium},
		{"boundary files is low", 20, 10, RiskLow},
		{"low", 0, 0, RiskLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, RiskLevelFor(tt.score, tt.files))
		})
	}
}
