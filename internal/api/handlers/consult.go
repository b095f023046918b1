package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/peerwise/peerwise/internal/artifact"
	"github.com/peerwise/peerwise/internal/buildconfig"
	"github.com/peerwise/peerwise/internal/consult"
	"github.com/peerwise/peerwise/internal/domain"
	"github.com/peerwise/peerwise/internal/session"
	"go.uber.org/zap"
)

// ConsultHandler serves the expert agent's public surface: /ask,
// /profile and /status.
type ConsultHandler struct {
	svc       *consult.Service
	sessions  *session.Store
	agentID   string
	name      string
	indexPath string
	terms     *domain.PaymentTerms
	startTime time.Time
	logger    *zap.Logger
}

func NewConsultHandler(svc *consult.Service, sessions *session.Store, agentID, displayName, indexPath string, terms *domain.PaymentTerms, logger *zap.Logger) *ConsultHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsultHandler{
		svc:       svc,
		sessions:  sessions,
		agentID:   agentID,
		name:      displayName,
		indexPath: indexPath,
		terms:     terms,
		startTime: time.Now(),
		logger:    logger,
	}
}

type askRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
	Context   string `json:"context,omitempty"`
}

func (h *ConsultHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.Consult(r.Context(), req.Question, req.SessionID, req.Context)
	if err != nil {
		if errors.Is(err, consult.ErrQuestionEmpty) {
			writeError(w, http.StatusBadRequest, "question is required and must be a string")
			return
		}
		h.logger.Error("consultation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type profileDomain struct {
	Name  string   `json:"name"`
	Depth string   `json:"depth"`
	Tags  []string `json:"tags"`
}

type profileResponse struct {
	AgentID      string               `json:"agent_id"`
	DisplayName  string               `json:"display_name"`
	Domains      []profileDomain      `json:"domains"`
	SessionCount int                  `json:"session_count"`
	Status       string               `json:"status"`
	Payment      *domain.PaymentTerms `json:"payment,omitempty"`
}

func (h *ConsultHandler) Profile(w http.ResponseWriter, r *http.Request) {
	resp := profileResponse{
		AgentID:     h.agentID,
		DisplayName: h.name,
		Domains:     []profileDomain{},
		Status:      "available",
		Payment:     h.terms,
	}

	if h.indexPath != "" {
		if idx, err := artifact.LoadIndex(h.indexPath); err == nil {
			for _, d := range idx.Domains {
				resp.Domains = append(resp.Domains, profileDomain{Name: d.Name, Depth: d.Depth, Tags: d.Tags})
			}
			resp.SessionCount = idx.SessionCount
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *ConsultHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":               "ok",
		"version":              buildconfig.Version(),
		"uptime_seconds":       int64(time.Since(h.startTime).Seconds()),
		"active_consultations": h.sessions.ActiveCount(),
	})
}
