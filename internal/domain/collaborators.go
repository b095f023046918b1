package domain

import "context"

// SynthesisInput is everything the reasoning collaborator needs to
// answer one consultation question.
type SynthesisInput struct {
	Question  string
	Context   string
	Artifacts []ScoredArtifact
	History   []Exchange
}

// SynthesisResult is the forced structured output of a synthesis call.
type SynthesisResult struct {
	Response          string     `json:"response"`
	Confidence        Confidence `json:"confidence"`
	BasedOnSessions   []string   `json:"based_on_sessions"`
	FollowupAvailable bool       `json:"followup_available"`
}

// ScoredArtifact pairs an artifact with its relevance score and the
// tags that matched the query, for explainability.
type ScoredArtifact struct {
	Artifact    KnowledgeArtifact `json:"artifact"`
	Score       float64           `json:"score"`
	MatchedTags []string          `json:"matched_tags"`
}

// MatchingDomain names an expertise domain that matched a discovery query.
type MatchingDomain struct {
	Name  string   `json:"name"`
	Depth string   `json:"depth"`
	Tags  []string `json:"tags"`
}

// Recommendation is one ranked entry in a discovery response.
type Recommendation struct {
	AgentID         string           `json:"agent_id"`
	RelevanceScore  float64          `json:"relevance_score"`
	Reasoning       string           `json:"reasoning"`
	MatchingDomains []MatchingDomain `json:"matching_domains"`
}

// Reasoner is the reasoning collaborator: a blocking, cancellable
// external call that either returns forced structured output or fails.
// Callers never retry; a failure surfaces as CollaboratorFailure.
type Reasoner interface {
	Synthesize(ctx context.Context, in SynthesisInput) (*SynthesisResult, error)
	RecommendAgents(ctx context.Context, query string, shortlist []ScoredAgent) ([]Recommendation, error)
}

// ScoredAgent pairs a registry record with its shortlist score.
type ScoredAgent struct {
	Agent AgentRecord
	Score float64
}

// Wallet is the e-cash collaborator. Claim is irreversible: once it
// returns nil the token's funds belong to this wallet.
type Wallet interface {
	Claim(ctx context.Context, token string) error
	Balance(ctx context.Context, mintURL string) (int64, error)
}

// TransportHandle is a live expose or proxy handle. Close is idempotent.
type TransportHandle interface {
	Address() string
	Close(ctx context.Context) error
}

// Transport is the P2P tunnel collaborator. Expose publishes a local
// port under a stable address derived from seed (fresh random address
// when seed is empty); Proxy forwards a local port to a remote address.
type Transport interface {
	Expose(ctx context.Context, host string, port int, seed string) (TransportHandle, error)
	Proxy(ctx context.Context, address string, localPort int) (TransportHandle, error)
}
