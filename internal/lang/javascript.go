package lang

import (
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

func init() {
	// The javascript grammar parses JSX natively.
	Languages["javascript"] = &Language{
		Name:       "javascript",
		Family:     ECMAScript,
		Extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
		lang:       javascript.GetLanguage(),
	}
	Languages["typescript"] = &Language{
		Name:       "typescript",
		Family:     ECMAScript,
		Extensions: []string{".ts", ".mts", ".cts"},
		lang:       typescript.GetLanguage(),
	}
	Languages["tsx"] = &Language{
		Name:       "tsx",
		Family:     ECMAScript,
		Extensions: []string{".tsx"},
		lang:       tsx.GetLanguage(),
	}
}
