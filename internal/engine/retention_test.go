package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reverie-ai/reverie/internal/index"
	"github.com/reverie-ai/reverie/internal/store"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, index.New(0, -1), zerolog.Nop())
}

func daysAgoMillis(days float64) int64 {
	return time.Now().Add(-time.Duration(days * 24 * float64(time.Hour))).UnixMilli()
}

func TestCalculateRetentionZeroElapsed(t *testing.T) {
	assert.Equal(t, 1.0, CalculateRetention(0, 0.1, 0, false))
	assert.Equal(t, 1.0, CalculateRetention(0, 5.0, 100, false))
	assert.Equal(t, 1.0, CalculateRetention(-3, 0.1, 0, false))
}

func TestCalculateRetentionPinned(t *testing.T) {
	assert.Equal(t, 1.0, CalculateRetention(365, 10.0, 0, true))
	assert.Equal(t, 1.0, CalculateRetention(1e6, 0.5, 0, true))
}

func TestCalculateRetentionMonotonicInDays(t *testing.T) {
	prev := 1.0
	for days := 0.0; days <= 120; days += 5 {
		r := CalculateRetention(days, 0.1, 3, false)
		assert.LessOrEqual(t, r, prev, "retention increased at %v days", days)
		assert.GreaterOrEqual(t, r, 0.0)
		assert.LessOrEqual(t, r, 1.0)
		prev = r
	}
}

func TestCalculateRetentionAccessReinforcement(t *testing.T) {
	cold := CalculateRetention(30, 0.1, 0, false)
	warm := CalculateRetention(30, 0.1, 10, false)
	assert.Greater(t, warm, cold)
}

func TestDecayConfigStrengthFallback(t *testing.T) {
	cfg := DecayConfig{
		BaseDecayStrength:    0.05,
		PerTypeDecayStrength: map[store.MemoryType]float64{store.TypeEpisodic: 0.08},
	}
	assert.Equal(t, 0.08, cfg.strengthFor(store.TypeEpisodic))
	assert.Equal(t, 0.05, cfg.strengthFor(store.TypeProcedural))
}

func TestSetDecayConfigValidation(t *testing.T) {
	e := testEngine(t)

	bad := DefaultDecayConfig()
	bad.WorkerIntervalHours = 0
	assert.ErrorIs(t, e.SetDecayConfig(bad), ErrInvalidConfig)

	bad = DefaultDecayConfig()
	bad.BaseDecayStrength = 0
	assert.ErrorIs(t, e.SetDecayConfig(bad), ErrInvalidConfig)

	bad = DefaultDecayConfig()
	bad.PruneThreshold = 1.5
	assert.ErrorIs(t, e.SetDecayConfig(bad), ErrInvalidConfig)

	bad = DefaultDecayConfig()
	bad.PerTypeDecayStrength = map[store.MemoryType]float64{"imaginary": 0.1}
	assert.ErrorIs(t, e.SetDecayConfig(bad), ErrInvalidConfig)

	good := DefaultDecayConfig()
	good.PruneThreshold = 0.2
	require.NoError(t, e.SetDecayConfig(good))
	assert.Equal(t, 0.2, e.DecayConfig().PruneThreshold)
}

func TestUpdateAllRetentionScores(t *testing.T) {
	e := testEngine(t)

	old := &store.MemoryRecord{Content: "old episodic memory", MemoryType: store.TypeEpisodic, CreatedAt: daysAgoMillis(60)}
	require.NoError(t, e.DB.CreateMemory(old))
	fresh := &store.MemoryRecord{Content: "fresh memory", MemoryType: store.TypeEpisodic}
	require.NoError(t, e.DB.CreateMemory(fresh))
	pinned := &store.MemoryRecord{Content: "pinned memory", MemoryType: store.TypeEpisodic, CreatedAt: daysAgoMillis(60)}
	require.NoError(t, e.DB.CreateMemory(pinned))
	require.NoError(t, e.PinMemory(pinned.ID))

	updated, err := e.UpdateAllRetentionScores(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, updated, 1)

	got, err := e.DB.GetMemory(old.ID)
	require.NoError(t, err)
	assert.Less(t, got.RetentionScore, 0.9)

	gotFresh, err := e.DB.GetMemory(fresh.ID)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, gotFresh.RetentionScore, 1e-6)

	gotPinned, err := e.DB.GetMemory(pinned.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, gotPinned.RetentionScore)
}

func TestUpdateAllRetentionPerTypeStrength(t *testing.T) {
	e := testEngine(t)

	episodic := &store.MemoryRecord{Content: "a", MemoryType: store.TypeEpisodic, CreatedAt: daysAgoMillis(30)}
	require.NoError(t, e.DB.CreateMemory(episodic))
	procedural := &store.MemoryRecord{Content: "b", MemoryType: store.TypeProcedural, CreatedAt: daysAgoMillis(30)}
	require.NoError(t, e.DB.CreateMemory(procedural))

	_, err := e.UpdateAllRetentionScores(context.Background())
	require.NoError(t, err)

	gotEpisodic, err := e.DB.GetMemory(episodic.ID)
	require.NoError(t, err)
	gotProcedural, err := e.DB.GetMemory(procedural.ID)
	require.NoError(t, err)

	// Episodic decays faster than procedural under the default strengths.
	assert.Less(t, gotEpisodic.RetentionScore, gotProcedural.RetentionScore)
}

func TestPruneLowRetentionMemories(t *testing.T) {
	e := testEngine(t)

	keep := &store.MemoryRecord{Content: "keep"}
	require.NoError(t, e.DB.CreateMemory(keep))
	require.NoError(t, e.DB.UpdateRetention(keep.ID, 0.5))

	drop := &store.MemoryRecord{Content: "drop"}
	require.NoError(t, e.DB.CreateMemory(drop))
	require.NoError(t, e.DB.UpdateRetention(drop.ID, 0.01))

	boundary := &store.MemoryRecord{Content: "exactly at threshold"}
	require.NoError(t, e.DB.CreateMemory(boundary))
	require.NoError(t, e.DB.UpdateRetention(boundary.ID, 0.05))

	pinnedLow := &store.MemoryRecord{Content: "pinned low"}
	require.NoError(t, e.DB.CreateMemory(pinnedLow))
	require.NoError(t, e.PinMemory(pinnedLow.ID))
	require.NoError(t, e.DB.UpdateRetention(pinnedLow.ID, 0.001))

	removed, err := e.PruneLowRetentionMemories(context.Background(), 0.05)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	gone, err := e.DB.GetMemory(drop.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	for _, id := range []string{keep.ID, boundary.ID, pinnedLow.ID} {
		m, err := e.DB.GetMemory(id)
		require.NoError(t, err)
		assert.NotNil(t, m, "memory %s should survive", id)
	}
}

func TestPruneThresholdValidation(t *testing.T) {
	e := testEngine(t)
	_, err := e.PruneLowRetentionMemories(context.Background(), 1.5)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = e.PruneLowRetentionMemories(context.Background(), -0.1)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestPinUnpinRoundTrip(t *testing.T) {
	e := testEngine(t)

	m := &store.MemoryRecord{Content: "round trip", CreatedAt: daysAgoMillis(45)}
	require.NoError(t, e.DB.CreateMemory(m))

	require.NoError(t, e.PinMemory(m.ID))
	require.NoError(t, e.PinMemory(m.ID)) // idempotent

	pinned, err := e.DB.GetMemory(m.ID)
	require.NoError(t, err)
	assert.True(t, pinned.IsPinned)
	assert.Equal(t, 1.0, pinned.RetentionScore)

	require.NoError(t, e.UnpinMemory(m.ID))
	require.NoError(t, e.UnpinMemory(m.ID)) // idempotent

	// After unpin, decay resumes from the original timestamps: no clock reset.
	_, err = e.UpdateAllRetentionScores(context.Background())
	require.NoError(t, err)

	unpinned, err := e.DB.GetMemory(m.ID)
	require.NoError(t, err)
	assert.False(t, unpinned.IsPinned)

	want := CalculateRetention(45, e.DecayConfig().strengthFor(unpinned.MemoryType), 0, false)
	assert.InDelta(t, want, unpinned.RetentionScore, 0.01)
}

func TestDecayIntervalTracksConfig(t *testing.T) {
	e := testEngine(t)
	assert.Equal(t, 24*time.Hour, e.decayInterval())

	cfg := DefaultDecayConfig()
	cfg.WorkerIntervalHours = 6
	require.NoError(t, e.SetDecayConfig(cfg))
	assert.Equal(t, 6*time.Hour, e.decayInterval())
}

func TestDecayWorkerStops(t *testing.T) {
	e := testEngine(t)
	e.StartDecayWorker()
	e.Stop()
	// No assertion beyond not leaking: Stop closes the worker's channel.
}
