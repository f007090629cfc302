package model

// RiskLevel is the overall risk of a change plan.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "high"
	RiskMedium RiskLevel = "medium"
	RiskLow    RiskLevel = "low"
)

// RiskLevelFor classifies a change by its total impact score and the number
// of impacted files.
func RiskLevelFor(totalImpact float64, impactedFiles int) RiskLevel {
	switch {
	case totalImpact > 50 || impactedFiles > 20:
		return RiskHigh
	case totalImpact > 20 || impactedFiles > 10:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Priority orders entries of a change plan.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Action says what should be done with a planned file.
type Action string

const (
	ActionModify Action = "modify"
	ActionCheck  Action = "check"
	ActionVerify Action = "verify"
)

// ElementChange is a mapped element that is expected to change.
type ElementChange struct {
	Type       ElementType `json:"type" yaml:"type"`
	Name       string      `json:"name" yaml:"name"`
	FilePath   string      `json:"filePath" yaml:"filePath"`
	Location   Location    `json:"location" yaml:"location"`
	Confidence Confidence  `json:"confidence" yaml:"confidence"`
}

// RankedNode is a graph node with its aggregated impact weight.
type RankedNode struct {
	ID       string      `json:"id" yaml:"id"`
	Type     ElementType `json:"type" yaml:"type"`
	Name     string      `json:"name" yaml:"name"`
	FilePath string      `json:"filePath" yaml:"filePath"`
	Weight   float64     `json:"weight" yaml:"weight"`
	// Occurrences counts how many mapped elements reached this node.
	Occurrences int `json:"occurrences" yaml:"occurrences"`
}

// RankedFile is a file with its aggregated impact weight.
type RankedFile struct {
	Path     string  `json:"path" yaml:"path"`
	Weight   float64 `json:"weight" yaml:"weight"`
	Elements int     `json:"elements" yaml:"elements"`
}

// ImpactAnalysis is the merged, weighted impact of all mapped elements.
type ImpactAnalysis struct {
	ImpactedNodes        []RankedNode `json:"impactedNodes" yaml:"impactedNodes"`
	DependencyNodes      []RankedNode `json:"dependencyNodes" yaml:"dependencyNodes"`
	ImpactedFiles        []RankedFile `json:"impactedFiles" yaml:"impactedFiles"`
	DependencyFiles      []RankedFile `json:"dependencyFiles" yaml:"dependencyFiles"`
	TotalImpactScore     float64      `json:"totalImpactScore" yaml:"totalImpactScore"`
	TotalDependencyScore float64      `json:"totalDependencyScore" yaml:"totalDependencyScore"`
}

// PlannedChange is one file entry of a change plan.
type PlannedChange struct {
	File     string   `json:"file" yaml:"file"`
	Priority Priority `json:"priority" yaml:"priority"`
	Action   Action   `json:"action" yaml:"action"`
	Weight   float64  `json:"weight,omitempty" yaml:"weight,omitempty"`
}

// RiskSummary aggregates the change plan into a risk level.
type RiskSummary struct {
	RiskLevel            RiskLevel `json:"riskLevel" yaml:"riskLevel"`
	TotalImpactScore     float64   `json:"totalImpactScore" yaml:"totalImpactScore"`
	TotalDependencyScore float64   `json:"totalDependencyScore" yaml:"totalDependencyScore"`
	ImpactedFileCount    int       `json:"impactedFileCount" yaml:"impactedFileCount"`
	DependencyFileCount  int       `json:"dependencyFileCount" yaml:"dependencyFileCount"`
}

// ChangePlan groups files into prioritized tiers.
type ChangePlan struct {
	PrimaryChanges   []PlannedChange `json:"primaryChanges" yaml:"primaryChanges"`
	SecondaryChanges []PlannedChange `json:"secondaryChanges" yaml:"secondaryChanges"`
	DependencyChecks []PlannedChange `json:"dependencyChecks" yaml:"dependencyChecks"`
	ImpactSummary    RiskSummary     `json:"impactSummary" yaml:"impactSummary"`
}

// ChangeImpact is the predicted blast radius of a set of mapping results.
type ChangeImpact struct {
	FilesToModify    []string        `json:"filesToModify" yaml:"filesToModify"`
	ElementsToModify []ElementChange `json:"codeElementsToModify" yaml:"codeElementsToModify"`
	ImpactAnalysis   ImpactAnalysis  `json:"impactAnalysis" yaml:"impactAnalysis"`
	ChangePlan       ChangePlan      `json:"changePlan" yaml:"changePlan"`
}
