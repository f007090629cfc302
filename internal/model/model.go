// Package model defines the core data structures shared by the code-mapping
// engine: the code index, tasks, mapping results, and change impact reports.
package model

import (
	"strings"
	"time"
)

// ElementType identifies the kind of an indexed code element.
type ElementType string

const (
	ElementFile     ElementType = "file"
	ElementFunction ElementType = "function"
	ElementClass    ElementType = "class"
	ElementMethod   ElementType = "method"
)

// AnonymousName is used for declarations that carry no name.
const AnonymousName = "anonymous"

// Location is a 1-based inclusive line span.
type Location struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// MethodEntry describes a method member of a class.
type MethodEntry struct {
	Name     string   `json:"name" yaml:"name"`
	Params   []string `json:"params" yaml:"params"`
	Location Location `json:"location" yaml:"location"`
}

// FunctionEntry describes a function declared in a file.
type FunctionEntry struct {
	Name     string   `json:"name" yaml:"name"`
	Params   []string `json:"params" yaml:"params"`
	Location Location `json:"location" yaml:"location"`
	Code     string   `json:"code" yaml:"code"`
	FilePath string   `json:"filePath" yaml:"filePath"`
}

// ClassEntry describes a class declared in a file.
type ClassEntry struct {
	Name     string        `json:"name" yaml:"name"`
	Location Location      `json:"location" yaml:"location"`
	Code     string        `json:"code" yaml:"code"`
	Methods  []MethodEntry `json:"methods" yaml:"methods"`
	FilePath string        `json:"filePath" yaml:"filePath"`
}

// FileEntry holds metadata and the declarations found in one source file.
// Path is relative to the indexed root, slash-separated, and unique.
type FileEntry struct {
	Path      string          `json:"path" yaml:"path"`
	Name      string          `json:"name" yaml:"name"`
	Extension string          `json:"extension" yaml:"extension"`
	Language  string          `json:"language" yaml:"language"`
	Size      int64           `json:"size" yaml:"size"`
	ModTime   time.Time       `json:"lastModified" yaml:"lastModified"`
	Functions []FunctionEntry `json:"functions" yaml:"functions"`
	Classes   []ClassEntry    `json:"classes" yaml:"classes"`
}

// IndexMetadata summarizes an index run.
type IndexMetadata struct {
	Root          string    `json:"root" yaml:"root"`
	FileCount     int       `json:"fileCount" yaml:"fileCount"`
	FunctionCount int       `json:"functionCount" yaml:"functionCount"`
	ClassCount    int       `json:"classCount" yaml:"classCount"`
	IndexedAt     time.Time `json:"indexedAt" yaml:"indexedAt"`
}

// CodeIndex is the structured index produced by one indexer run.
type CodeIndex struct {
	Files     []FileEntry     `json:"files" yaml:"files"`
	Functions []FunctionEntry `json:"functions" yaml:"functions"`
	Classes   []ClassEntry    `json:"classes" yaml:"classes"`
	Metadata  IndexMetadata   `json:"metadata" yaml:"metadata"`
}

// LookupResult holds the entries matched by CodeIndex.Lookup.
type LookupResult struct {
	Files     []FileEntry
	Functions []FunctionEntry
	Classes   []ClassEntry
}

// Lookup returns files, functions, and classes whose name contains query,
// compared case-insensitively. An empty query matches nothing.
func (ci *CodeIndex) Lookup(query string) LookupResult {
	var res LookupResult
	if ci == nil || query == "" {
		return res
	}
	lower := strings.ToLower(query)
	for i := range ci.Files {
		if strings.Contains(strings.ToLower(ci.Files[i].Name), lower) {
			res.Files = append(res.Files, ci.Files[i])
		}
	}
	for i := range ci.Functions {
		if strings.Contains(strings.ToLower(ci.Functions[i].Name), lower) {
			res.Functions = append(res.Functions, ci.Functions[i])
		}
	}
	for i := range ci.Classes {
		if strings.Contains(strings.ToLower(ci.Classes[i].Name), lower) {
			res.Classes = append(res.Classes, ci.Classes[i])
		}
	}
	return res
}

// File returns the entry for path, or nil.
func (ci *CodeIndex) File(path string) *FileEntry {
	if ci == nil {
		return nil
	}
	for i := range ci.Files {
		if ci.Files[i].Path == path {
			return &ci.Files[i]
		}
	}
	return nil
}

// IndexStats reports what happened during an indexer run.
type IndexStats struct {
	FilesScanned int
	FilesIndexed int
	FilesFailed  int
	FilesSkipped int
	Functions    int
	Classes      int
	Duration     time.Duration
	Errors       []string
}

// FileKey returns the stable identifier of a file element.
func FileKey(path string) string {
	return "file:" + path
}

// FunctionKey returns the stable identifier of a function element.
func FunctionKey(path, name string) string {
	return "function:" + path + ":" + name
}

// ClassKey returns the stable identifier of a class element.
func ClassKey(path, name string) string {
	return "class:" + path + ":" + name
}

// MethodKey returns the stable identifier of a class method.
func MethodKey(path, class, method string) string {
	return "method:" + path + ":" + class + "." + method
}

// ElementKey returns the identifier for an element of the given type.
// For methods, name is expected in "Class.method" form.
func ElementKey(typ ElementType, path, name string) string {
	switch typ {
	case ElementFile:
		return FileKey(path)
	case ElementFunction:
		return FunctionKey(path, name)
	case ElementClass:
		return ClassKey(path, name)
	case ElementMethod:
		return "method:" + path + ":" + name
	default:
		return string(typ) + ":" + path + ":" + name
	}
}
