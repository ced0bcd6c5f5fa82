package domain

import "strings"

// TaskType selects the prompt set and output shape of an analysis.
type TaskType string

const (
	TaskTakeoff     TaskType = "takeoff"
	TaskQuality     TaskType = "quality"
	TaskBidAnalysis TaskType = "bid_analysis"
)

// ValidTaskTypes lists the accepted analysis task types.
var ValidTaskTypes = map[TaskType]bool{
	TaskTakeoff:     true,
	TaskQuality:     true,
	TaskBidAnalysis: true,
}

// ProducesIssues reports whether the task yields AnalysisIssues instead of ExtractedItems.
func (t TaskType) ProducesIssues() bool {
	return t == TaskQuality
}

// Unit is a construction measurement unit.
type Unit string

const (
	UnitLF Unit = "LF"
	UnitSF Unit = "SF"
	UnitCF Unit = "CF"
	UnitCY Unit = "CY"
	UnitEA Unit = "EA"
	UnitSQ Unit = "SQ"
)

var unitAliases = map[string]Unit{
	"lf":           UnitLF,
	"lin ft":       UnitLF,
	"linear ft":    UnitLF,
	"linear feet":  UnitLF,
	"linear foot":  UnitLF,
	"ft":           UnitLF,
	"sf":           UnitSF,
	"sq ft":        UnitSF,
	"sqft":         UnitSF,
	"square feet":  UnitSF,
	"square foot":  UnitSF,
	"cf":           UnitCF,
	"cu ft":        UnitCF,
	"cubic feet":   UnitCF,
	"cy":           UnitCY,
	"cu yd":        UnitCY,
	"cubic yards":  UnitCY,
	"cubic yard":   UnitCY,
	"yd3":          UnitCY,
	"ea":           UnitEA,
	"each":         UnitEA,
	"pcs":          UnitEA,
	"pc":           UnitEA,
	"count":        UnitEA,
	"sq":           UnitSQ,
	"square":       UnitSQ,
	"squares":      UnitSQ,
	"roofing sq":   UnitSQ,
	"roof squares": UnitSQ,
}

// NormalizeUnit maps common spellings onto the canonical takeoff units.
// Unknown units (invoice units such as "HR" or "LS") are upper-cased and kept.
func NormalizeUnit(raw string) Unit {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimSuffix(s, ".")
	if s == "" {
		return ""
	}
	if u, ok := unitAliases[s]; ok {
		return u
	}
	return Unit(strings.ToUpper(s))
}

// Severity grades an AnalysisIssue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// NormalizeSeverity maps model wording onto the three severities. Unknown values become info.
func NormalizeSeverity(raw string) Severity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "critical", "high", "severe", "error", "blocker":
		return SeverityCritical
	case "warning", "medium", "moderate", "warn":
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// CategoryOther is the catch-all category assigned when a model omits or invents one.
const CategoryOther = "other"

// KnownCategories are the construction categories the prompts ask models to use.
var KnownCategories = map[string]bool{
	"sitework":      true,
	"concrete":      true,
	"masonry":       true,
	"metals":        true,
	"framing":       true,
	"carpentry":     true,
	"roofing":       true,
	"insulation":    true,
	"doors":         true,
	"windows":       true,
	"drywall":       true,
	"finishes":      true,
	"flooring":      true,
	"painting":      true,
	"plumbing":      true,
	"hvac":          true,
	"electrical":    true,
	"fire":          true,
	"specialties":   true,
	"equipment":     true,
	"labor":         true,
	"materials":     true,
	"dimensions":    true,
	"annotations":   true,
	"code":          true,
	"coordination":  true,
	"documentation": true,
	CategoryOther:   true,
}

// AnalysisStatus is the outcome of one model in a consensus round.
type AnalysisStatus string

const (
	StatusSuccess AnalysisStatus = "success"
	StatusFailed  AnalysisStatus = "failed"
	StatusTimeout AnalysisStatus = "timeout"
)

// ParseStrategy records which decoding path produced an extraction.
type ParseStrategy string

const (
	StrategyDirect    ParseStrategy = "direct"
	StrategyRepaired  ParseStrategy = "repaired"
	StrategyExtracted ParseStrategy = "extracted"
)

// DisagreementKind distinguishes numeric spreads from categorical conflicts.
type DisagreementKind string

const (
	DisagreementNumeric     DisagreementKind = "numeric"
	DisagreementCategorical DisagreementKind = "categorical"
)
