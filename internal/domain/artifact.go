package domain

import "time"

type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomePartial     Outcome = "partial"
	OutcomeFailed      Outcome = "failed"
	OutcomeExploratory Outcome = "exploratory"
	OutcomeUndistilled Outcome = "undistilled"
)

func ValidOutcome(o string) bool {
	switch Outcome(o) {
	case OutcomeSuccess, OutcomePartial, OutcomeFailed, OutcomeExploratory, OutcomeUndistilled:
		return true
	}
	return false
}

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

func ValidConfidence(c string) bool {
	switch Confidence(c) {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// ExpectedSections are the five narrative sections every distilled
// artifact carries, in serialization order. Extra sections are allowed.
var ExpectedSections = []string{
	"What Was Built",
	"What Failed First",
	"What Worked",
	"Gotchas",
	"Code Patterns",
}

// KnowledgeArtifact is the immutable record of one past problem-solving
// session. Produced by the offline distillation pipeline; the serving
// path only reads these.
type KnowledgeArtifact struct {
	ID              string     `yaml:"session_id" json:"session_id"`
	Timestamp       time.Time  `yaml:"timestamp" json:"timestamp"`
	Project         string     `yaml:"project" json:"project"`
	Task            string     `yaml:"task" json:"task"`
	Outcome         Outcome    `yaml:"outcome" json:"outcome"`
	Tags            []string   `yaml:"tags" json:"tags"`
	Stack           []string   `yaml:"stack,omitempty" json:"stack,omitempty"`
	DurationMinutes float64    `yaml:"duration_minutes" json:"duration_minutes"`
	KeyInsight      string     `yaml:"key_insight" json:"key_insight"`
	Confidence      Confidence `yaml:"confidence" json:"confidence"`

	// Sections maps section heading to body text.
	Sections map[string]string `yaml:"-" json:"sections,omitempty"`
}

// ExpertiseDomain is one cluster of artifacts in an expertise index.
type ExpertiseDomain struct {
	Name        string   `yaml:"name" json:"name"`
	Summary     string   `yaml:"summary" json:"summary"`
	Depth       string   `yaml:"depth" json:"depth"`
	Tags        []string `yaml:"tags" json:"tags"`
	ArtifactIDs []string `yaml:"sessions" json:"sessions"`
	Insights    []string `yaml:"key_insights" json:"key_insights"`
}

// ExpertiseIndex is a versioned snapshot clustering artifacts into
// domains. Rebuilt offline; loaded atomically, never mutated.
type ExpertiseIndex struct {
	Domains      []ExpertiseDomain `yaml:"domains" json:"domains"`
	SessionCount int               `yaml:"session_count" json:"session_count"`
	GeneratedAt  string            `yaml:"generated_at" json:"generated_at"`
}
