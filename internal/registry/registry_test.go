package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/peerwise/peerwise/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testProfile(id string) domain.AgentProfile {
	return domain.AgentProfile{
		AgentID:       id,
		DisplayName:   "Agent " + id,
		ConnectionKey: "key-" + id,
	}
}

func openTest(t *testing.T, path string) *Registry {
	t.Helper()
	r, err := Open(path, Options{OfflineThreshold: time.Hour, SweepInterval: time.Minute}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func TestRegisterAndGet(t *testing.T) {
	r := openTest(t, filepath.Join(t.TempDir(), "registry.json"))

	rec := r.Register(testProfile("a1"))
	assert.Equal(t, domain.AgentOnline, rec.Status)
	assert.False(t, rec.RegisteredAt.IsZero())

	got := r.Get("a1")
	require.NotNil(t, got)
	assert.Equal(t, "key-a1", got.ConnectionKey)
	assert.Nil(t, r.Get("missing"))
}

func TestReRegisterPreservesRegisteredAt(t *testing.T) {
	r := openTest(t, filepath.Join(t.TempDir(), "registry.json"))

	first := r.Register(testProfile("a1"))

	r.now = func() time.Time { return first.RegisteredAt.Add(time.Hour) }
	p := testProfile("a1")
	p.DisplayName = "Renamed"
	second := r.Register(p)

	assert.Equal(t, first.RegisteredAt, second.RegisteredAt)
	assert.True(t, second.LastHeartbeat.After(first.LastHeartbeat))
	assert.Equal(t, "Renamed", second.DisplayName)
}

func TestHeartbeat(t *testing.T) {
	r := openTest(t, filepath.Join(t.TempDir(), "registry.json"))

	assert.False(t, r.Heartbeat("unknown"))

	r.Register(testProfile("a1"))
	assert.True(t, r.Heartbeat("a1"))
}

func TestSweepFlipsStaleAgentsOffline(t *testing.T) {
	r := openTest(t, filepath.Join(t.TempDir(), "registry.json"))

	r.Register(testProfile("stale"))
	r.Register(testProfile("fresh"))

	base := time.Now()
	r.now = func() time.Time { return base.Add(2 * time.Hour) }
	r.Heartbeat("fresh")
	r.sweep()

	assert.Equal(t, domain.AgentOffline, r.Get("stale").Status)
	assert.Equal(t, domain.AgentOnline, r.Get("fresh").Status)

	online := r.OnlineAgents()
	require.Len(t, online, 1)
	assert.Equal(t, "fresh", online[0].AgentID)

	// A later heartbeat revives the offline agent.
	assert.True(t, r.Heartbeat("stale"))
	assert.Equal(t, domain.AgentOnline, r.Get("stale").Status)
}

func TestColdReloadForcesOffline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")

	r := openTest(t, path)
	r.Register(testProfile("a1"))
	r.Register(testProfile("a2"))
	r.Close()

	reloaded := openTest(t, path)
	total, online := reloaded.Counts()
	assert.Equal(t, 2, total)
	assert.Zero(t, online)
	assert.Equal(t, domain.AgentOffline, reloaded.Get("a1").Status)
	// registered_at survives the restart.
	assert.False(t, reloaded.Get("a1").RegisteredAt.IsZero())
}

func TestCorruptSnapshotStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	r := openTest(t, path)
	total, _ := r.Counts()
	assert.Zero(t, total)
}

func TestMarkOffline(t *testing.T) {
	r := openTest(t, filepath.Join(t.TempDir(), "registry.json"))
	r.Register(testProfile("a1"))

	assert.False(t, r.MarkOffline("ghost"))
	assert.True(t, r.MarkOffline("a1"))
	assert.Equal(t, domain.AgentOffline, r.Get("a1").Status)

	// A heartbeat brings the agent back.
	assert.True(t, r.Heartbeat("a1"))
	assert.Equal(t, domain.AgentOnline, r.Get("a1").Status)
}

func TestOpenRejectsSweepSlowerThanThreshold(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "r.json"),
		Options{OfflineThreshold: time.Second, SweepInterval: time.Minute}, zap.NewNop())
	assert.Error(t, err)
}
