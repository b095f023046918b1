package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/peerwise/peerwise/internal/buildconfig"
	"github.com/peerwise/peerwise/internal/discovery"
	"github.com/peerwise/peerwise/internal/domain"
	"github.com/peerwise/peerwise/internal/registry"
	"go.uber.org/zap"
)

// DirectoryHandler serves the directory's public surface: agent
// registration, heartbeats, discovery and connection brokering.
type DirectoryHandler struct {
	reg       *registry.Registry
	matcher   *discovery.Matcher
	startTime time.Time
	logger    *zap.Logger
}

func NewDirectoryHandler(reg *registry.Registry, matcher *discovery.Matcher, logger *zap.Logger) *DirectoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryHandler{reg: reg, matcher: matcher, startTime: time.Now(), logger: logger}
}

func (h *DirectoryHandler) Register(w http.ResponseWriter, r *http.Request) {
	var profile domain.AgentProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if profile.AgentID == "" {
		writeError(w, http.StatusBadRequest, "agent_id is required and must be a string")
		return
	}
	if profile.ConnectionKey == "" {
		writeError(w, http.StatusBadRequest, "connection_key is required and must be a string")
		return
	}

	rec := h.reg.Register(profile)
	h.logger.Info("agent registered",
		zap.String("agent_id", rec.AgentID), zap.String("display_name", rec.DisplayName))
	writeJSON(w, http.StatusOK, map[string]any{"registered": true, "agent_id": rec.AgentID})
}

type heartbeatRequest struct {
	AgentID string `json:"agent_id"`
}

func (h *DirectoryHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AgentID == "" {
		writeError(w, http.StatusBadRequest, "agent_id is required and must be a string")
		return
	}

	if !h.reg.Heartbeat(req.AgentID) {
		writeError(w, http.StatusNotFound, "Unknown agent")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Unregister lets an agent announce its own shutdown instead of
// waiting for the liveness sweep to notice the missing heartbeats.
func (h *DirectoryHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AgentID == "" {
		writeError(w, http.StatusBadRequest, "agent_id is required and must be a string")
		return
	}

	if !h.reg.MarkOffline(req.AgentID) {
		writeError(w, http.StatusNotFound, "Unknown agent")
		return
	}
	h.logger.Info("agent unregistered", zap.String("agent_id", req.AgentID))
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type discoverRequest struct {
	Query string `json:"query"`
}

func (h *DirectoryHandler) Discover(w http.ResponseWriter, r *http.Request) {
	var req discoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required and must be a string")
		return
	}

	h.logger.Info("discovery query", zap.String("query", req.Query))

	recs, err := h.matcher.Discover(r.Context(), req.Query, h.reg.OnlineAgents())
	if err != nil {
		h.logger.Error("discovery failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"recommendations": recs})
}

type connectRequest struct {
	AgentID string `json:"agent_id"`
}

func (h *DirectoryHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AgentID == "" {
		writeError(w, http.StatusBadRequest, "agent_id is required and must be a string")
		return
	}

	rec := h.reg.Get(req.AgentID)
	if rec == nil {
		writeError(w, http.StatusNotFound, "Agent not found")
		return
	}
	if rec.Status != domain.AgentOnline {
		writeError(w, http.StatusGone, "Agent is offline")
		return
	}

	h.logger.Info("connect requested", zap.String("agent_id", rec.AgentID))
	writeJSON(w, http.StatusOK, map[string]string{
		"connection_key": rec.ConnectionKey,
		"display_name":   rec.DisplayName,
	})
}

func (h *DirectoryHandler) Status(w http.ResponseWriter, r *http.Request) {
	total, online := h.reg.Counts()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        buildconfig.Version(),
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"agents":         map[string]int{"total": total, "online": online},
	})
}
