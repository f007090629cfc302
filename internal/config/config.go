// Package config loads codemap settings from defaults, a YAML file, a .env
// file, and CODEMAP_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// FileName is the config file searched for in the working and home
	// directories.
	FileName = ".codemap.yaml"

	envPrefix = "CODEMAP"
)

// Config holds every tunable of the indexer, analyzer, mapper, and
// predictor.
type Config struct {
	IndexDepth         int      `mapstructure:"indexDepth" yaml:"indexDepth" validate:"min=1"`
	ExcludeDirs        []string `mapstructure:"excludeDirs" yaml:"excludeDirs"`
	FileExtensions     []string `mapstructure:"fileExtensions" yaml:"fileExtensions" validate:"min=1,dive,startswith=."`
	RespectGitignore   bool     `mapstructure:"respectGitignore" yaml:"respectGitignore"`
	IncludeNodeModules bool     `mapstructure:"includeNodeModules" yaml:"includeNodeModules"`
	MaxFileSize        int64    `mapstructure:"maxFileSize" yaml:"maxFileSize" validate:"min=0"`
	Workers            int      `mapstructure:"workers" yaml:"workers" validate:"min=0"`

	MinTokenLength int `mapstructure:"minTokenLength" yaml:"minTokenLength" validate:"min=1"`
	KeywordCount   int `mapstructure:"keywordCount" yaml:"keywordCount" validate:"min=1"`

	SimilarityThreshold float64 `mapstructure:"similarityThreshold" yaml:"similarityThreshold" validate:"gte=0,lte=1"`
	MaxResults          int     `mapstructure:"maxResults" yaml:"maxResults" validate:"min=1"`
	WeightKeywords      float64 `mapstructure:"weightKeywords" yaml:"weightKeywords" validate:"gte=0,lte=1"`
	WeightDescription   float64 `mapstructure:"weightDescription" yaml:"weightDescription" validate:"gte=0,lte=1"`

	ImpactThreshold  float64 `mapstructure:"impactThreshold" yaml:"impactThreshold" validate:"gte=0"`
	MaxImpactedFiles int     `mapstructure:"maxImpactedFiles" yaml:"maxImpactedFiles" validate:"min=0"`
	MaxDepth         int     `mapstructure:"maxDepth" yaml:"maxDepth" validate:"min=1"`

	LogLevel  string `mapstructure:"logLevel" yaml:"logLevel" validate:"oneof=debug info warn error"`
	LogFormat string `mapstructure:"logFormat" yaml:"logFormat" validate:"oneof=text json"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		IndexDepth:          3,
		ExcludeDirs:         []string{"node_modules", ".git", "dist", "build", "coverage", ".next", "vendor"},
		FileExtensions:      []string{".js", ".jsx", ".ts", ".tsx"},
		MaxFileSize:         1 << 20,
		Workers:             runtime.GOMAXPROCS(0),
		MinTokenLength:      2,
		KeywordCount:        5,
		SimilarityThreshold: 0.3,
		MaxResults:          10,
		WeightKeywords:      0.3,
		WeightDescription:   0.4,
		ImpactThreshold:     0.5,
		MaxImpactedFiles:    10,
		MaxDepth:            3,
		LogLevel:            "info",
		LogFormat:           "text",
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		c := sl.Current().Interface().(Config)
		if c.WeightKeywords+c.WeightDescription > 1 {
			sl.ReportError(c.WeightDescription, "WeightDescription", "weightDescription", "weightsum", "")
		}
	}, Config{})
	return v
}

// Validate reports every field that is out of range.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		if e.Tag() == "weightsum" {
			msgs = append(msgs, "weightKeywords + weightDescription must not exceed 1")
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", e.Field(), strings.TrimSuffix(e.Tag()+"="+e.Param(), "="), e.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Load reads settings. An explicit path must exist; with an empty path a
// FileName in the working or home directory is used when present. A .env
// file in the working directory is applied to the environment first.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, ".yaml"))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	for i, ext := range cfg.FileExtensions {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			cfg.FileExtensions[i] = "." + ext
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every key so environment variables can override
// keys that no file mentions.
func setDefaults(v *viper.Viper, d Config) {
	for key, val := range toMap(d) {
		v.SetDefault(key, val)
	}
}

func toMap(c Config) map[string]any {
	data, err := yaml.Marshal(c)
	if err != nil {
		panic(fmt.Sprintf("config: marshal defaults: %v", err))
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		panic(fmt.Sprintf("config: unmarshal defaults: %v", err))
	}
	return m
}

// Merge adds every default key missing from existing, a YAML document, and
// returns the result with the names of the added keys. Keys already present
// keep their values and order.
func Merge(existing []byte) ([]byte, []string, error) {
	var doc yaml.Node
	if len(strings.TrimSpace(string(existing))) > 0 {
		if err := yaml.Unmarshal(existing, &doc); err != nil {
			return nil, nil, fmt.Errorf("parsing existing config: %w", err)
		}
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode}}}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, nil, errors.New("existing config is not a YAML mapping")
	}
	root := doc.Content[0]

	present := make(map[string]bool, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		present[root.Content[i].Value] = true
	}

	var defaults yaml.Node
	if err := defaults.Encode(Default()); err != nil {
		return nil, nil, fmt.Errorf("encoding defaults: %w", err)
	}

	var added []string
	for i := 0; i+1 < len(defaults.Content); i += 2 {
		key, val := defaults.Content[i], defaults.Content[i+1]
		if present[key.Value] {
			continue
		}
		root.Content = append(root.Content, key, val)
		added = append(added, key.Value)
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding config: %w", err)
	}
	return out, added, nil
}

// WriteDefault writes the defaults to path, keeping any values already set
// in an existing file. It returns the keys that were added.
func WriteDefault(path string) ([]string, error) {
	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	out, added, err := Merge(existing)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", path, err)
	}
	return added, nil
}
