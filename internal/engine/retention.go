package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/reverie-ai/reverie/internal/store"
)

// DecayConfig controls the temporal retention model.
type DecayConfig struct {
	WorkerIntervalHours  int
	BaseDecayStrength    float64
	PerTypeDecayStrength map[store.MemoryType]float64
	PruneThreshold       float64
	AutoPrune            bool
}

// DefaultDecayConfig returns the stock retention parameters: daily worker,
// episodic memories fading fastest, procedural slowest.
func DefaultDecayConfig() DecayConfig {
	return DecayConfig{
		WorkerIntervalHours: 24,
		BaseDecayStrength:   0.05,
		PerTypeDecayStrength: map[store.MemoryType]float64{
			store.TypeEpisodic:   0.08,
			store.TypeSemantic:   0.03,
			store.TypeProcedural: 0.02,
		},
		PruneThreshold: 0.05,
		AutoPrune:      false,
	}
}

// validate rejects out-of-range decay parameters.
func (c DecayConfig) validate() error {
	if c.WorkerIntervalHours < 1 {
		return fmt.Errorf("%w: decay worker interval must be >= 1 hour, got %d", ErrInvalidConfig, c.WorkerIntervalHours)
	}
	if c.BaseDecayStrength <= 0 {
		return fmt.Errorf("%w: base decay strength must be > 0, got %g", ErrInvalidConfig, c.BaseDecayStrength)
	}
	for t, s := range c.PerTypeDecayStrength {
		if !store.ValidMemoryType(t) {
			return fmt.Errorf("%w: unknown memory type %q in decay strengths", ErrInvalidConfig, t)
		}
		if s <= 0 {
			return fmt.Errorf("%w: decay strength for %s must be > 0, got %g", ErrInvalidConfig, t, s)
		}
	}
	if c.PruneThreshold < 0 || c.PruneThreshold > 1 {
		return fmt.Errorf("%w: prune threshold must be in [0,1], got %g", ErrInvalidConfig, c.PruneThreshold)
	}
	return nil
}

// strengthFor selects the decay strength for a memory type, falling back to
// the base strength for types without an explicit entry.
func (c DecayConfig) strengthFor(t store.MemoryType) float64 {
	if s, ok := c.PerTypeDecayStrength[t]; ok {
		return s
	}
	return c.BaseDecayStrength
}

// CalculateRetention computes an Ebbinghaus-style retention score:
//
//	retention = exp(-decayStrength * daysElapsed / sqrt(1 + accessCount))
//
// clamped to [0,1]. Pinned memories always return exactly 1.0, as does zero
// elapsed time. Pure function; used by the worker and by preview callers.
func CalculateRetention(daysElapsed, decayStrength float64, accessCount int, isPinned bool) float64 {
	if isPinned {
		return 1.0
	}
	if daysElapsed <= 0 {
		return 1.0
	}
	if accessCount < 0 {
		accessCount = 0
	}

	retention := math.Exp(-decayStrength * daysElapsed / math.Sqrt(1+float64(accessCount)))
	if retention > 1 {
		return 1
	}
	if retention < 0 {
		return 0
	}
	return retention
}

// daysSinceReference returns elapsed days since the memory's last access,
// falling back to its creation time. Unpinning does not reset any timestamp:
// elapsed time always runs from the pre-pin access history.
func daysSinceReference(m store.MemoryRecord, now time.Time) float64 {
	ref := m.CreatedAt
	if m.LastAccessedAt != nil {
		ref = *m.LastAccessedAt
	}
	elapsed := now.UnixMilli() - ref
	if elapsed <= 0 {
		return 0
	}
	return float64(elapsed) / float64(24*time.Hour/time.Millisecond)
}

// UpdateAllRetentionScores recomputes and persists retention for every
// non-pinned memory. Best-effort: on a mid-batch persistence failure it
// returns how many updates succeeded along with the error.
func (e *Engine) UpdateAllRetentionScores(ctx context.Context) (int, error) {
	cfg := e.DecayConfig()

	memories, err := e.DB.ListUnpinned()
	if err != nil {
		return 0, fmt.Errorf("list unpinned: %w", err)
	}

	now := time.Now()
	updated := 0
	for _, m := range memories {
		if err := ctx.Err(); err != nil {
			return updated, err
		}

		days := daysSinceReference(m, now)
		retention := CalculateRetention(days, cfg.strengthFor(m.MemoryType), m.AccessCount, false)
		if retention == m.RetentionScore {
			continue
		}
		if err := e.DB.UpdateRetention(m.ID, retention); err != nil {
			return updated, fmt.Errorf("persist retention for %s: %w", m.ID, err)
		}
		updated++
	}
	return updated, nil
}

// PruneLowRetentionMemories deletes all non-pinned memories with a retention
// score strictly below threshold. Irreversible — no soft-delete exists.
// Returns the number of memories removed.
func (e *Engine) PruneLowRetentionMemories(ctx context.Context, threshold float64) (int, error) {
	if threshold < 0 || threshold > 1 {
		return 0, fmt.Errorf("%w: prune threshold must be in [0,1], got %g", ErrInvalidConfig, threshold)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	memories, err := e.DB.ListUnpinned()
	if err != nil {
		return 0, fmt.Errorf("list unpinned: %w", err)
	}

	var ids []string
	for _, m := range memories {
		if m.RetentionScore < threshold {
			ids = append(ids, m.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	removed, err := e.DB.DeleteMemories(ids)
	if err != nil {
		return 0, fmt.Errorf("prune memories: %w", err)
	}
	e.log.Info().Int("removed", removed).Float64("threshold", threshold).Msg("pruned low-retention memories")
	return removed, nil
}

// PinMemory freezes a memory: it reports full retention and is exempt from
// decay and pruning until unpinned. Idempotent.
func (e *Engine) PinMemory(id string) error {
	return e.DB.SetPinned(id, true)
}

// UnpinMemory restores normal decay behavior. Idempotent. No timestamp is
// reset: the next decay cycle measures elapsed time from the memory's
// existing last access.
func (e *Engine) UnpinMemory(id string) error {
	return e.DB.SetPinned(id, false)
}

// StartDecayWorker runs a retention pass immediately and then once per
// configured interval on its own goroutine. The interval is re-read after
// each cycle, so an interval change applies from the following tick. Cycle
// errors are logged and the worker resumes on the next tick; it never blocks
// query-serving paths.
func (e *Engine) StartDecayWorker() {
	e.runDecayCycle()

	go func() {
		interval := e.decayInterval()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				e.runDecayCycle()
				if next := e.decayInterval(); next != interval {
					interval = next
					ticker.Reset(interval)
				}
			case <-e.stopCh:
				return
			}
		}
	}()
}

// decayInterval reads the worker interval from the current config snapshot.
func (e *Engine) decayInterval() time.Duration {
	return time.Duration(e.DecayConfig().WorkerIntervalHours) * time.Hour
}

func (e *Engine) runDecayCycle() {
	ctx := context.Background()
	cfg := e.DecayConfig()

	if updated, err := e.UpdateAllRetentionScores(ctx); err != nil {
		e.log.Error().Err(err).Int("updated", updated).Msg("decay cycle failed")
	} else if updated > 0 {
		e.log.Info().Int("updated", updated).Msg("decay cycle complete")
	}

	if cfg.AutoPrune {
		if removed, err := e.PruneLowRetentionMemories(ctx, cfg.PruneThreshold); err != nil {
			e.log.Error().Err(err).Msg("auto-prune failed")
		} else if removed > 0 {
			e.log.Info().Int("removed", removed).Msg("auto-prune complete")
		}
	}
}
