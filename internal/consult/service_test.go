package consult

import (
	"context"
	"errors"
	"testing"

	"github.com/peerwise/peerwise/internal/domain"
	"github.com/peerwise/peerwise/internal/reason"
	"github.com/peerwise/peerwise/internal/retrieval"
	"github.com/peerwise/peerwise/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T, mock *reason.MockClient) *Service {
	t.Helper()
	store := session.NewStore(session.Options{}, zap.NewNop())
	t.Cleanup(store.Destroy)
	engine := retrieval.NewEngine(t.TempDir(), "", retrieval.Options{}, zap.NewNop())
	return NewService(engine, mock, store, zap.NewNop())
}

func TestConsultRejectsEmptyQuestion(t *testing.T) {
	svc := newTestService(t, reason.NewMockClient())

	_, err := svc.Consult(context.Background(), "", "", "")
	assert.ErrorIs(t, err, ErrQuestionEmpty)
}

func TestConsultCreatesSession(t *testing.T) {
	mock := reason.NewMockClient()
	svc := newTestService(t, mock)

	result, err := svc.Consult(context.Background(), "how do I use nix flakes", "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, result.SessionID)
	assert.Equal(t, "Mock response", result.Response)
	require.Len(t, mock.SynthesizeCalls, 1)
	assert.Empty(t, mock.SynthesizeCalls[0].History)
}

func TestConsultTwoTurnConversation(t *testing.T) {
	mock := reason.NewMockClient()
	svc := newTestService(t, mock)

	first, err := svc.Consult(context.Background(), "first question", "", "")
	require.NoError(t, err)

	second, err := svc.Consult(context.Background(), "follow-up question", first.SessionID, "")
	require.NoError(t, err)

	// Turn 2 reuses the session and sees the prior exchange.
	assert.Equal(t, first.SessionID, second.SessionID)
	require.Len(t, mock.SynthesizeCalls, 2)
	history := mock.SynthesizeCalls[1].History
	require.Len(t, history, 1)
	assert.Equal(t, "first question", history[0].Question)
	assert.Equal(t, "Mock response", history[0].Response)
}

func TestConsultUnknownSessionStartsFresh(t *testing.T) {
	mock := reason.NewMockClient()
	svc := newTestService(t, mock)

	result, err := svc.Consult(context.Background(), "a question", "no-such-session", "")
	require.NoError(t, err)
	assert.NotEqual(t, "no-such-session", result.SessionID)
	assert.Empty(t, mock.SynthesizeCalls[0].History)
}

func TestConsultSurfacesReasonerFailure(t *testing.T) {
	mock := reason.NewMockClient()
	mock.SynthesizeError = errors.New("model timeout")
	svc := newTestService(t, mock)

	_, err := svc.Consult(context.Background(), "a question", "", "")
	assert.Error(t, err)
}

func TestConsultPassesContext(t *testing.T) {
	mock := reason.NewMockClient()
	svc := newTestService(t, mock)

	_, err := svc.Consult(context.Background(), "a question", "", "running NixOS 25.05")
	require.NoError(t, err)
	assert.Equal(t, "running NixOS 25.05", mock.SynthesizeCalls[0].Context)
}

var _ domain.Reasoner = (*reason.MockClient)(nil)
