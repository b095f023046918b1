package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	s := NewStore(opts, zap.NewNop())
	t.Cleanup(s.Destroy)
	return s
}

func TestCreateAndGetHistory(t *testing.T) {
	s := newTestStore(t, Options{})

	id := s.CreateSession()
	require.NotEmpty(t, id)
	assert.Equal(t, 1, s.ActiveCount())

	require.NoError(t, s.AddExchange(id, "q1", "r1"))
	require.NoError(t, s.AddExchange(id, "q2", "r2"))

	history, err := s.GetHistory(id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "q1", history[0].Question)
	assert.Equal(t, "r2", history[1].Response)
}

func TestUnknownSessionID(t *testing.T) {
	s := newTestStore(t, Options{})

	_, err := s.GetHistory("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, s.AddExchange("nope", "q", "r"), ErrSessionNotFound)
	assert.ErrorIs(t, s.ExpireSession("nope"), ErrSessionNotFound)
}

func TestExpireSession(t *testing.T) {
	s := newTestStore(t, Options{})

	id := s.CreateSession()
	require.NoError(t, s.ExpireSession(id))
	assert.Zero(t, s.ActiveCount())

	_, err := s.GetHistory(id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	s := newTestStore(t, Options{TTL: time.Hour, CleanupInterval: time.Hour})

	idle := s.CreateSession()
	fresh := s.CreateSession()

	// Age only the idle session past the TTL, then force one pass.
	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	require.NoError(t, s.AddExchange(fresh, "q", "r"))
	s.sweep()

	assert.Equal(t, 1, s.ActiveCount())
	_, err := s.GetHistory(idle)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = s.GetHistory(fresh)
	assert.NoError(t, err)
}

func TestBackgroundSweep(t *testing.T) {
	s := newTestStore(t, Options{TTL: 10 * time.Millisecond, CleanupInterval: 20 * time.Millisecond})

	s.CreateSession()
	assert.Eventually(t, func() bool { return s.ActiveCount() == 0 },
		time.Second, 5*time.Millisecond)
}

func TestDestroyIsIdempotent(t *testing.T) {
	s := NewStore(Options{}, zap.NewNop())
	s.CreateSession()

	s.Destroy()
	s.Destroy()
	assert.Zero(t, s.ActiveCount())
}
