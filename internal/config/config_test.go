package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Default().Validate())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"threshold above one", func(c *Config) { c.SimilarityThreshold = 1.5 }, "SimilarityThreshold"},
		{"zero depth", func(c *Config) { c.IndexDepth = 0 }, "IndexDepth"},
		{"zero max depth", func(c *Config) { c.MaxDepth = 0 }, "MaxDepth"},
		{"no extensions", func(c *Config) { c.FileExtensions = nil }, "FileExtensions"},
		{"extension without dot", func(c *Config) { c.FileExtensions = []string{"js"} }, "FileExtensions"},
		{"weights over one", func(c *Config) { c.WeightKeywords, c.WeightDescription = 0.6, 0.6 }, "must not exceed 1"},
		{"unknown log level", func(c *Config) { c.LogLevel = "trace" }, "LogLevel"},
		{"unknown log format", func(c *Config) { c.LogFormat = "xml" }, "LogFormat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := Default()
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "codemap.yaml")
	writeFile(t, path, `indexDepth: 5
fileExtensions: [js, .py]
similarityThreshold: 0.25
excludeDirs:
  - node_modules
  - tmp
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.IndexDepth)
	assert.Equal(t, []string{".js", ".py"}, cfg.FileExtensions)
	assert.InDelta(t, 0.25, cfg.SimilarityThreshold, 1e-9)
	assert.Equal(t, []string{"node_modules", "tmp"}, cfg.ExcludeDirs)
	// Unset keys keep their defaults.
	assert.Equal(t, 10, cfg.MaxResults)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codemap.yaml")
	writeFile(t, path, "maxResults: 5\n")
	t.Setenv("CODEMAP_MAXRESULTS", "25")
	t.Setenv("CODEMAP_INCLUDENODEMODULES", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.MaxResults)
	assert.True(t, cfg.IncludeNodeModules)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	writeFile(t, invalid, "maxDepth: 0\n")
	_, err = Load(invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MaxDepth")
}

func TestMergeEmpty(t *testing.T) {
	t.Parallel()

	out, added, err := Merge(nil)
	require.NoError(t, err)
	assert.Contains(t, added, "indexDepth")
	assert.Contains(t, added, "maxImpactedFiles")

	var got Config
	require.NoError(t, yaml.Unmarshal(out, &got))
	assert.Equal(t, Default(), got)
}

func TestMergeKeepsExisting(t *testing.T) {
	t.Parallel()

	existing := "# project settings\nmaxResults: 3\nfileExtensions:\n  - .py\n"
	out, added, err := Merge([]byte(existing))
	require.NoError(t, err)
	assert.NotContains(t, added, "maxResults")
	assert.NotContains(t, added, "fileExtensions")
	assert.Contains(t, added, "maxDepth")
	assert.Contains(t, string(out), "# project settings")

	var got Config
	require.NoError(t, yaml.Unmarshal(out, &got))
	assert.Equal(t, 3, got.MaxResults)
	assert.Equal(t, []string{".py"}, got.FileExtensions)
	assert.Equal(t, Default().MaxDepth, got.MaxDepth)

	// A second merge adds nothing.
	_, again, err := Merge(out)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestMergeRejectsNonMapping(t *testing.T) {
	t.Parallel()

	_, _, err := Merge([]byte("- a\n- b\n"))
	assert.Error(t, err)
	_, _, err = Merge([]byte("key: [unclosed\n"))
	assert.Error(t, err)
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), FileName)
	added, err := WriteDefault(path)
	require.NoError(t, err)
	assert.NotEmpty(t, added)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().FileExtensions, cfg.FileExtensions)
	assert.Equal(t, Default().MaxImpactedFiles, cfg.MaxImpactedFiles)
}
