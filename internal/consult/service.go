package consult

import (
	"context"
	"errors"
	"fmt"

	"github.com/peerwise/peerwise/internal/domain"
	"github.com/peerwise/peerwise/internal/retrieval"
	"github.com/peerwise/peerwise/internal/session"
	"go.uber.org/zap"
)

var ErrQuestionEmpty = errors.New("question is required")

// Service orchestrates one consultation: retrieval, synthesis through
// the reasoning collaborator, and session bookkeeping. Payment
// admission happens upstream, before Consult runs.
type Service struct {
	engine   *retrieval.Engine
	reasoner domain.Reasoner
	sessions *session.Store
	logger   *zap.Logger
}

func NewService(engine *retrieval.Engine, reasoner domain.Reasoner, sessions *session.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{engine: engine, reasoner: reasoner, sessions: sessions, logger: logger}
}

// Result is one answered consultation turn.
type Result struct {
	Response          string            `json:"response"`
	Confidence        domain.Confidence `json:"confidence"`
	BasedOnSessions   []string          `json:"based_on_sessions"`
	SessionID         string            `json:"session_id"`
	FollowupAvailable bool              `json:"followup_available"`
}

// Consult answers one question. A known sessionID continues that
// conversation; an unknown or empty one starts a fresh session whose
// id is returned for follow-ups.
func (s *Service) Consult(ctx context.Context, question, sessionID, extraContext string) (*Result, error) {
	if question == "" {
		return nil, ErrQuestionEmpty
	}

	retrieved := s.engine.Retrieve(question)
	s.logger.Debug("retrieved artifacts",
		zap.Int("count", len(retrieved.Artifacts)),
		zap.Strings("matched_domains", retrieved.MatchedDomains))

	var history []domain.Exchange
	if sessionID != "" {
		h, err := s.sessions.GetHistory(sessionID)
		if err != nil {
			// Expired or bogus id: start over rather than failing the turn.
			sessionID = ""
		} else {
			history = h
		}
	}
	if sessionID == "" {
		sessionID = s.sessions.CreateSession()
	}

	synth, err := s.reasoner.Synthesize(ctx, domain.SynthesisInput{
		Question:  question,
		Context:   extraContext,
		Artifacts: retrieved.Artifacts,
		History:   history,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}

	if err := s.sessions.AddExchange(sessionID, question, synth.Response); err != nil {
		// The session can only vanish between create and append if the
		// TTL sweep raced us; the answer is still valid.
		s.logger.Warn("failed to record exchange", zap.String("session_id", sessionID), zap.Error(err))
	}

	return &Result{
		Response:          synth.Response,
		Confidence:        synth.Confidence,
		BasedOnSessions:   synth.BasedOnSessions,
		SessionID:         sessionID,
		FollowupAvailable: synth.FollowupAvailable,
	}, nil
}
