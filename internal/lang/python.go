package lang

import (
	"github.com/smacker/go-tree-sitter/python"
)

func init() {
	Languages["python"] = &Language{
		Name:       "python",
		Family:     Python,
		Extensions: []string{".py"},
		lang:       python.GetLanguage(),
	}
}
