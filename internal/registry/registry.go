package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/peerwise/peerwise/internal/domain"
	"go.uber.org/zap"
)

const (
	DefaultOfflineThreshold = 90 * time.Second
	DefaultSweepInterval    = 15 * time.Second
)

// Registry is the durable directory of known agents. Liveness is
// recomputed by a periodic sweep, never synchronously on read; the
// full table is persisted after every mutation, best-effort.
type Registry struct {
	persistPath      string
	offlineThreshold time.Duration
	logger           *zap.Logger

	mu     sync.Mutex
	agents map[string]*domain.AgentRecord

	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	now func() time.Time
}

type Options struct {
	OfflineThreshold time.Duration
	SweepInterval    time.Duration
}

// Open loads the persisted snapshot (every record forced offline: a
// cold process cannot vouch for liveness it did not observe) and
// starts the liveness sweep. A missing or corrupt snapshot yields an
// empty registry.
func Open(persistPath string, opts Options, logger *zap.Logger) (*Registry, error) {
	if opts.OfflineThreshold <= 0 {
		opts.OfflineThreshold = DefaultOfflineThreshold
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.SweepInterval >= opts.OfflineThreshold {
		return nil, fmt.Errorf("sweep interval %s must be shorter than offline threshold %s",
			opts.SweepInterval, opts.OfflineThreshold)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Registry{
		persistPath:      persistPath,
		offlineThreshold: opts.OfflineThreshold,
		logger:           logger,
		agents:           make(map[string]*domain.AgentRecord),
		interval:         opts.SweepInterval,
		stopCh:           make(chan struct{}),
		now:              time.Now,
	}
	r.load()

	r.wg.Add(1)
	go r.sweepLoop()
	return r, nil
}

func (r *Registry) load() {
	data, err := os.ReadFile(r.persistPath)
	if err != nil {
		return
	}
	var records []*domain.AgentRecord
	if err := json.Unmarshal(data, &records); err != nil {
		r.logger.Warn("corrupt registry snapshot, starting empty",
			zap.String("path", r.persistPath), zap.Error(err))
		return
	}
	for _, rec := range records {
		if rec.AgentID == "" {
			continue
		}
		rec.Status = domain.AgentOffline
		r.agents[rec.AgentID] = rec
	}
	r.logger.Info("loaded registry snapshot",
		zap.Int("agents", len(r.agents)), zap.String("path", r.persistPath))
}

// persistLocked writes the full table. Failures are logged, not
// returned: availability over durability for this metadata.
func (r *Registry) persistLocked() {
	records := make([]*domain.AgentRecord, 0, len(r.agents))
	for _, rec := range r.agents {
		records = append(records, rec)
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		r.logger.Error("marshal registry snapshot", zap.Error(err))
		return
	}
	if err := os.MkdirAll(filepath.Dir(r.persistPath), 0o755); err != nil {
		r.logger.Error("create registry dir", zap.Error(err))
		return
	}
	if err := os.WriteFile(r.persistPath, data, 0o644); err != nil {
		r.logger.Error("persist registry snapshot", zap.Error(err))
	}
}

func (r *Registry) sweepLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.stopCh:
			return
		}
	}
}

// sweep flips agents with stale heartbeats to offline in one bounded
// pass under the lock.
func (r *Registry) sweep() {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	flipped := 0
	for _, rec := range r.agents {
		if rec.Status == domain.AgentOnline && now.Sub(rec.LastHeartbeat) > r.offlineThreshold {
			rec.Status = domain.AgentOffline
			flipped++
			r.logger.Info("agent went offline",
				zap.String("agent_id", rec.AgentID),
				zap.Time("last_heartbeat", rec.LastHeartbeat))
		}
	}
	if flipped > 0 {
		r.persistLocked()
	}
}

// Register upserts an agent by id, preserving registered_at across
// re-registration, and persists synchronously.
func (r *Registry) Register(profile domain.AgentProfile) *domain.AgentRecord {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	registeredAt := now
	if existing, ok := r.agents[profile.AgentID]; ok {
		registeredAt = existing.RegisteredAt
	}

	rec := &domain.AgentRecord{
		AgentID:        profile.AgentID,
		DisplayName:    profile.DisplayName,
		ConnectionKey:  profile.ConnectionKey,
		ExpertiseIndex: profile.ExpertiseIndex,
		Payment:        profile.Payment,
		Status:         domain.AgentOnline,
		RegisteredAt:   registeredAt,
		LastHeartbeat:  now,
	}
	r.agents[profile.AgentID] = rec
	r.persistLocked()

	out := *rec
	return &out
}

// Heartbeat refreshes an agent's liveness. Returns false for unknown
// ids so callers can distinguish "no such agent" from a server error.
func (r *Registry) Heartbeat(agentID string) bool {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.agents[agentID]
	if !ok {
		return false
	}
	rec.LastHeartbeat = now
	rec.Status = domain.AgentOnline
	r.persistLocked()
	return true
}

// MarkOffline flips an agent offline immediately, ahead of the sweep.
// Used when an agent announces its own shutdown. Returns false for
// unknown ids.
func (r *Registry) MarkOffline(agentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.agents[agentID]
	if !ok {
		return false
	}
	if rec.Status != domain.AgentOffline {
		rec.Status = domain.AgentOffline
		r.persistLocked()
	}
	return true
}

// Get returns a copy of the record, or nil if unknown.
func (r *Registry) Get(agentID string) *domain.AgentRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.agents[agentID]
	if !ok {
		return nil
	}
	out := *rec
	return &out
}

// OnlineAgents returns copies of every record the last sweep left online.
func (r *Registry) OnlineAgents() []domain.AgentRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	var online []domain.AgentRecord
	for _, rec := range r.agents {
		if rec.Status == domain.AgentOnline {
			online = append(online, *rec)
		}
	}
	return online
}

// Counts reports total and online agent counts.
func (r *Registry) Counts() (total, online int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.agents {
		if rec.Status == domain.AgentOnline {
			online++
		}
	}
	return len(r.agents), online
}

// Close stops the liveness sweep. The snapshot on disk stays as the
// last mutation left it.
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}
