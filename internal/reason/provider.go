package reason

import (
	"errors"
	"fmt"

	"github.com/peerwise/peerwise/internal/domain"
)

// ErrCollaborator wraps every reasoner transport or timeout failure so
// callers can map it to a 5xx without leaking provider detail.
var ErrCollaborator = errors.New("reasoning collaborator failure")

const (
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// NewClient creates a reasoner for the named provider. Returns an
// error for unknown providers or a missing API key (except for mock).
func NewClient(provider, apiKey string) (domain.Reasoner, error) {
	switch provider {
	case ProviderAnthropic:
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for Anthropic provider")
		}
		return NewAnthropicClient(apiKey), nil

	case ProviderMock:
		return NewMockClient(), nil

	default:
		return nil, fmt.Errorf("unknown reasoner provider: %s (valid options: anthropic, mock)", provider)
	}
}
