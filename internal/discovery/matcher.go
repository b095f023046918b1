package discovery

import (
	"context"
	"fmt"
	"sort"

	"github.com/peerwise/peerwise/internal/domain"
	"github.com/peerwise/peerwise/internal/relevance"
	"go.uber.org/zap"
)

const (
	DefaultMaxShortlist = 10

	// Rationale attached when no reasoner refines the shortlist.
	genericReasoning = "Matched by keyword scoring"
)

// Matcher ranks registered agents against a query: a deterministic
// keyword shortlist, optionally refined by the reasoning collaborator.
// Once the reasoner is invoked, its ranking is authoritative.
type Matcher struct {
	reasoner     domain.Reasoner
	maxShortlist int
	logger       *zap.Logger
}

type Options struct {
	MaxShortlist int
}

// NewMatcher builds a matcher. A nil reasoner is valid: discovery then
// returns the raw shortlist with a generic rationale.
func NewMatcher(reasoner domain.Reasoner, opts Options, logger *zap.Logger) *Matcher {
	if opts.MaxShortlist <= 0 {
		opts.MaxShortlist = DefaultMaxShortlist
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{reasoner: reasoner, maxShortlist: opts.MaxShortlist, logger: logger}
}

// Shortlist scores every candidate's domains with the discovery
// weights, keeping an agent's best domain score. Agents scoring zero
// are dropped.
func Shortlist(query string, agents []domain.AgentRecord, max int) []domain.ScoredAgent {
	keywords := relevance.ExtractKeywords(query)
	if len(keywords) == 0 {
		return nil
	}

	var scored []domain.ScoredAgent
	for _, agent := range agents {
		if agent.ExpertiseIndex == nil {
			continue
		}
		var best float64
		for _, d := range agent.ExpertiseIndex.Domains {
			if s := relevance.DiscoveryScore(keywords, d.Tags, d.Insights); s > best {
				best = s
			}
		}
		if best > 0 {
			scored = append(scored, domain.ScoredAgent{Agent: agent, Score: best})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > max {
		scored = scored[:max]
	}
	return scored
}

// Discover returns ranked recommendations for the query. A reasoner
// failure propagates to the caller; it is never papered over with
// fabricated rankings.
func (m *Matcher) Discover(ctx context.Context, query string, onlineAgents []domain.AgentRecord) ([]domain.Recommendation, error) {
	shortlist := Shortlist(query, onlineAgents, m.maxShortlist)
	if len(shortlist) == 0 {
		return []domain.Recommendation{}, nil
	}

	if m.reasoner == nil {
		return rawRecommendations(shortlist), nil
	}

	recs, err := m.reasoner.RecommendAgents(ctx, query, shortlist)
	if err != nil {
		return nil, fmt.Errorf("recommend agents: %w", err)
	}
	m.logger.Info("discovery refined by reasoner",
		zap.Int("shortlist", len(shortlist)), zap.Int("recommendations", len(recs)))
	return recs, nil
}

// rawRecommendations maps the shortlist directly, preserving scores.
func rawRecommendations(shortlist []domain.ScoredAgent) []domain.Recommendation {
	recs := make([]domain.Recommendation, 0, len(shortlist))
	for _, sa := range shortlist {
		rec := domain.Recommendation{
			AgentID:        sa.Agent.AgentID,
			RelevanceScore: sa.Score,
			Reasoning:      genericReasoning,
		}
		if sa.Agent.ExpertiseIndex != nil {
			for _, d := range sa.Agent.ExpertiseIndex.Domains {
				rec.MatchingDomains = append(rec.MatchingDomains, domain.MatchingDomain{
					Name:  d.Name,
					Depth: d.Depth,
					Tags:  d.Tags,
				})
			}
		}
		recs = append(recs, rec)
	}
	return recs
}
