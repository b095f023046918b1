package reason

import (
	"context"

	"github.com/peerwise/peerwise/internal/domain"
)

// MockClient is a configurable reasoner for testing. Set the response
// fields to control what each method returns.
type MockClient struct {
	SynthesizeResponse *domain.SynthesisResult
	SynthesizeError    error
	RecommendResponse  []domain.Recommendation
	RecommendError     error

	// Call tracking for assertions
	SynthesizeCalls []domain.SynthesisInput
	RecommendCalls  []string
}

func NewMockClient() *MockClient {
	return &MockClient{
		SynthesizeResponse: &domain.SynthesisResult{
			Response:          "Mock response",
			Confidence:        domain.ConfidenceMedium,
			BasedOnSessions:   []string{},
			FollowupAvailable: false,
		},
		RecommendResponse: []domain.Recommendation{},
	}
}

func (c *MockClient) Synthesize(ctx context.Context, in domain.SynthesisInput) (*domain.SynthesisResult, error) {
	c.SynthesizeCalls = append(c.SynthesizeCalls, in)
	if c.SynthesizeError != nil {
		return nil, c.SynthesizeError
	}
	return c.SynthesizeResponse, nil
}

func (c *MockClient) RecommendAgents(ctx context.Context, query string, shortlist []domain.ScoredAgent) ([]domain.Recommendation, error) {
	c.RecommendCalls = append(c.RecommendCalls, query)
	if c.RecommendError != nil {
		return nil, c.RecommendError
	}
	return c.RecommendResponse, nil
}
