package artifact

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/peerwise/peerwise/internal/domain"
	"gopkg.in/yaml.v3"
)

var (
	ErrNoFrontMatter = errors.New("artifact has no front matter")

	sectionHeading = regexp.MustCompile(`(?m)^## (.+)$`)
)

// frontMatter mirrors domain.KnowledgeArtifact for YAML decoding; the
// enum and section checks happen in Validate, not here.
type frontMatter struct {
	SessionID       string    `yaml:"session_id"`
	Timestamp       yaml.Node `yaml:"timestamp"`
	Project         string    `yaml:"project"`
	Task            string    `yaml:"task"`
	Outcome         string    `yaml:"outcome"`
	Tags            []string  `yaml:"tags"`
	Stack           []string  `yaml:"stack"`
	DurationMinutes float64   `yaml:"duration_minutes"`
	KeyInsight      string    `yaml:"key_insight"`
	Confidence      string    `yaml:"confidence"`
}

// Parse decodes a distilled artifact: YAML front matter between ---
// fences followed by "## Heading" sections.
func Parse(content string) (*domain.KnowledgeArtifact, error) {
	body := content
	if !strings.HasPrefix(body, "---") {
		return nil, ErrNoFrontMatter
	}
	body = strings.TrimPrefix(body, "---")
	end := strings.Index(body, "\n---")
	if end < 0 {
		return nil, ErrNoFrontMatter
	}
	fmRaw := body[:end]
	rest := body[end+len("\n---"):]

	var fm frontMatter
	if err := yaml.Unmarshal([]byte(fmRaw), &fm); err != nil {
		return nil, fmt.Errorf("parse front matter: %w", err)
	}

	a := &domain.KnowledgeArtifact{
		ID:              fm.SessionID,
		Project:         fm.Project,
		Task:            fm.Task,
		Outcome:         domain.Outcome(fm.Outcome),
		Tags:            fm.Tags,
		Stack:           fm.Stack,
		DurationMinutes: fm.DurationMinutes,
		KeyInsight:      fm.KeyInsight,
		Confidence:      domain.Confidence(fm.Confidence),
		Sections:        parseSections(rest),
	}
	if !fm.Timestamp.IsZero() {
		// Timestamps may arrive quoted or bare; yaml.Node lets us
		// accept either and fall back to the zero time on garbage.
		_ = fm.Timestamp.Decode(&a.Timestamp)
	}
	return a, nil
}

func parseSections(body string) map[string]string {
	matches := sectionHeading.FindAllStringSubmatchIndex(body, -1)
	if len(matches) == 0 {
		return map[string]string{}
	}

	sections := make(map[string]string, len(matches))
	for i, m := range matches {
		name := strings.TrimSpace(body[m[2]:m[3]])
		start := m[1]
		end := len(body)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		sections[name] = strings.TrimSpace(body[start:end])
	}
	return sections
}

// Validate reports every schema violation in an artifact. A nil slice
// means the artifact is well-formed.
func Validate(a *domain.KnowledgeArtifact) []string {
	var problems []string

	if a.ID == "" {
		problems = append(problems, "missing required field: session_id")
	}
	if a.Timestamp.IsZero() {
		problems = append(problems, "missing required field: timestamp")
	}
	if a.Project == "" {
		problems = append(problems, "missing required field: project")
	}
	if a.Task == "" {
		problems = append(problems, "missing required field: task")
	}
	if a.KeyInsight == "" {
		problems = append(problems, "missing required field: key_insight")
	}
	if a.Outcome == "" {
		problems = append(problems, "missing required field: outcome")
	} else if !domain.ValidOutcome(string(a.Outcome)) {
		problems = append(problems, fmt.Sprintf("invalid outcome: %q", a.Outcome))
	}
	if a.Confidence == "" {
		problems = append(problems, "missing required field: confidence")
	} else if !domain.ValidConfidence(string(a.Confidence)) {
		problems = append(problems, fmt.Sprintf("invalid confidence: %q", a.Confidence))
	}
	if len(a.Tags) == 0 {
		problems = append(problems, "tags must not be empty")
	}
	if a.DurationMinutes <= 0 {
		problems = append(problems, "duration_minutes must be a positive number")
	}
	for _, name := range domain.ExpectedSections {
		if strings.TrimSpace(a.Sections[name]) == "" {
			problems = append(problems, fmt.Sprintf("missing or empty section: %s", name))
		}
	}
	return problems
}
