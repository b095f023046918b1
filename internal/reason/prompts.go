package reason

import (
	"fmt"
	"strings"

	"github.com/peerwise/peerwise/internal/domain"
)

const noExperiencePrompt = `You are a knowledge agent answering questions based on your accumulated session experience.

You have no relevant sessions to draw from for this question. Respond honestly that you don't have direct experience with this topic. Set confidence to "low" and based_on_sessions to an empty array.

You MUST call the synthesize_response tool with your answer.`

func synthesisSystemPrompt(in domain.SynthesisInput) string {
	if len(in.Artifacts) == 0 {
		return noExperiencePrompt
	}

	var b strings.Builder
	b.WriteString(`You are a knowledge agent answering questions based on your accumulated session experience.

Draw on the sessions below. Cite only sessions that actually informed the answer in based_on_sessions, and set confidence honestly: "high" only when the sessions directly cover the question.

`)
	for _, sa := range in.Artifacts {
		a := sa.Artifact
		fmt.Fprintf(&b, "--- Session %s ---\n", a.ID)
		fmt.Fprintf(&b, "Task: %s\nOutcome: %s\nTags: %s\nKey Insight: %s\n",
			a.Task, a.Outcome, strings.Join(a.Tags, ", "), a.KeyInsight)
		for _, name := range domain.ExpectedSections {
			if body := a.Sections[name]; body != "" {
				fmt.Fprintf(&b, "\n%s:\n%s\n", name, body)
			}
		}
		b.WriteString("\n")
	}
	if in.Context != "" {
		fmt.Fprintf(&b, "Additional context from the asker:\n%s\n\n", in.Context)
	}
	b.WriteString("You MUST call the synthesize_response tool with your answer.")
	return b.String()
}

func discoverySystemPrompt(shortlist []domain.ScoredAgent) string {
	var b strings.Builder
	b.WriteString(`You are a directory service matching user queries to the best available agents.

Below are agent profiles with their expertise domains. Recommend the agents most likely to answer the query well. Consider tag relevance, domain depth, and breadth of expertise.

`)
	for i, sa := range shortlist {
		if i > 0 {
			b.WriteString("\n---\n\n")
		}
		a := sa.Agent
		name := a.DisplayName
		if name == "" {
			name = a.AgentID
		}
		fmt.Fprintf(&b, "Agent: %s\nDisplay Name: %s\nDomains:\n", a.AgentID, name)
		if a.ExpertiseIndex != nil {
			for _, d := range a.ExpertiseIndex.Domains {
				fmt.Fprintf(&b, "  - %s (depth: %s, tags: %s)\n", d.Name, d.Depth, strings.Join(d.Tags, ", "))
			}
			fmt.Fprintf(&b, "Session Count: %d\n", a.ExpertiseIndex.SessionCount)
		}
		if a.Payment != nil {
			fmt.Fprintf(&b, "Payment: %d %s\n", a.Payment.Amount, a.Payment.Unit)
		} else {
			b.WriteString("Payment: free\n")
		}
	}
	b.WriteString("\nYou MUST call the recommend_agents tool with your recommendations. Rank by relevance_score descending.")
	return b.String()
}
