package ledger

import (
	"context"
	"time"
)

// EngineConfig configures every component of an Engine.
type EngineConfig struct {
	Options
	Reactor ReactorConfig
}

// Engine bundles the components around one store and one Locker, so every
// entry point serializes on the same per-account locks.
type Engine struct {
	Store      Store
	Recomputer *Recomputer
	Delta      *DeltaApplier // nil when the store has no atomic increment
	Reactor    *Reactor
	Sweeper    *Sweeper // nil when the store cannot enumerate users
	Admin      *Admin

	opts Options
}

// NewEngine wires the components the store's capabilities allow.
func NewEngine(store Store, cfg EngineConfig) *Engine {
	opts := cfg.Options.withDefaults()

	e := &Engine{
		Store:      store,
		Recomputer: NewRecomputer(store, opts),
		opts:       opts,
	}
	if ds, ok := store.(DeltaStore); ok {
		e.Delta = NewDeltaApplier(ds, opts)
	}
	if ss, ok := store.(SweepStore); ok {
		runs, _ := store.(RunStore)
		e.Sweeper = NewSweeper(ss, runs, e.Recomputer, opts)
	}
	e.Reactor = NewReactor(e.Recomputer, e.Delta, cfg.Reactor)
	e.Admin = NewAdmin(store, e.Recomputer)
	return e
}

// Sweep runs one sweep.
func (e *Engine) Sweep(ctx context.Context) (SweepRun, error) {
	if e.Sweeper == nil {
		return SweepRun{}, ErrStoreRequired
	}
	return e.Sweeper.Run(ctx)
}

// Now returns the cutoff every eligibility decision uses.
func (e *Engine) Now() time.Time {
	return cutoff(e.opts.Clock, e.opts.Location)
}

// Close flushes debounced work.
func (e *Engine) Close() {
	e.Reactor.Close()
}
