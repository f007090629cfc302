package model

// Task is a unit of work described in natural language.
type Task struct {
	ID           string   `json:"id" yaml:"id" validate:"required"`
	Title        string   `json:"title" yaml:"title" validate:"required,max=500"`
	Description  string   `json:"description" yaml:"description"`
	Type         string   `json:"type,omitempty" yaml:"type,omitempty"`
	Keywords     []string `json:"keywords" yaml:"keywords"`
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// Confidence is a discretized mapping score.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ConfidenceFor buckets a final mapping score.
func ConfidenceFor(score float64) Confidence {
	switch {
	case score >= 0.8:
		return ConfidenceHigh
	case score >= 0.6:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Factor is the multiplier applied to impact weights contributed by an
// element mapped with this confidence.
func (c Confidence) Factor() float64 {
	switch c {
	case ConfidenceHigh:
		return 1.2
	case ConfidenceLow:
		return 0.8
	default:
		return 1.0
	}
}

// CodeElement references one indexed element.
type CodeElement struct {
	Type     ElementType `json:"type" yaml:"type"`
	Name     string      `json:"name" yaml:"name"`
	FilePath string      `json:"filePath" yaml:"filePath"`
	Location Location    `json:"location" yaml:"location"`
}

// Key returns the element's merge key, "type:filePath:name".
func (e CodeElement) Key() string {
	return string(e.Type) + ":" + e.FilePath + ":" + e.Name
}

// NodeID returns the dependency-graph identifier of the element.
func (e CodeElement) NodeID() string {
	return ElementKey(e.Type, e.FilePath, e.Name)
}

// MappingScore holds the signals behind a mapping.
type MappingScore struct {
	Similarity      float64    `json:"similarity" yaml:"similarity"`
	DependencyScore float64    `json:"dependencyScore" yaml:"dependencyScore"`
	FinalScore      float64    `json:"finalScore" yaml:"finalScore"`
	Confidence      Confidence `json:"confidence" yaml:"confidence"`
}

// MappingResult links a task to one code element.
type MappingResult struct {
	TaskID    string       `json:"taskId" yaml:"taskId"`
	TaskTitle string       `json:"taskTitle" yaml:"taskTitle"`
	Element   CodeElement  `json:"codeElement" yaml:"codeElement"`
	Mapping   MappingScore `json:"mapping" yaml:"mapping"`
}
