// Package tracker polls the bomb derivations and keeps a journal of state
// transitions.
package tracker

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bombwatch/extension/internal/cache"
	"github.com/bombwatch/extension/internal/registry"
	"github.com/bombwatch/extension/internal/state"
	"github.com/bombwatch/extension/pkg/core"
)

// Snapshot kinds registered with the registry.
const (
	KindPlantedC4   = "planted_c4"
	KindBombCarrier = "bomb_carrier"
)

// Dependencies holds all dependencies for the tracker service
type Dependencies struct {
	State    state.Deps
	Logger   *slog.Logger
	Registry *registry.Registry // created if nil
	// CacheTTL > 0 reuses snapshots for that long.
	CacheTTL time.Duration
}

// Service derives bomb state on demand or on a fixed interval.
type Service struct {
	deps     Dependencies
	logger   *slog.Logger
	registry *registry.Registry

	ticks cache.SafeCounter

	mu        sync.RWMutex
	isRunning bool
	stopChan  chan struct{}
	done      chan struct{}
	last      core.BombState
	lastTick  int
	journal   journal
}

// journal remembers the last successfully observed values.
type journal struct {
	kind    *core.PlantedStateKind
	carrier *uint32
	seen    bool // carrier derivation has succeeded at least once
}

// NewService creates a tracker and registers its derivations.
func NewService(deps Dependencies) (*Service, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	reg := deps.Registry
	if reg == nil {
		var err error
		reg, err = registry.New(logger)
		if err != nil {
			return nil, fmt.Errorf("creating registry: %w", err)
		}
	}

	s := &Service{
		deps:     deps,
		logger:   logger,
		registry: reg,
	}

	opts := []registry.Option{registry.Logged()}
	if deps.CacheTTL > 0 {
		opts = append(opts, registry.Timed(deps.CacheTTL))
	}
	reg.Register(KindPlantedC4, func() (any, error) {
		return state.PlantedC4(s.deps.State)
	}, opts...)
	reg.Register(KindBombCarrier, func() (any, error) {
		return state.BombCarrier(s.deps.State)
	}, opts...)

	return s, nil
}

// Registry returns the registry the derivations are registered with.
func (s *Service) Registry() *registry.Registry {
	return s.registry
}

// PlantedC4 returns the current planted-bomb snapshot.
func (s *Service) PlantedC4() (core.PlantedC4, error) {
	return registry.Get[core.PlantedC4](s.registry, KindPlantedC4)
}

// BombCarrier returns the current carrier snapshot.
func (s *Service) BombCarrier() (core.BombCarrier, error) {
	return registry.Get[core.BombCarrier](s.registry, KindBombCarrier)
}

// Tick runs both derivations once. A failed derivation leaves its member nil
// and is logged; it never aborts the other.
func (s *Service) Tick() core.BombState {
	n := s.ticks.Inc()

	var out core.BombState

	planted, err := s.PlantedC4()
	if err != nil {
		s.logger.Warn("Planted C4 derivation failed", "error", err)
	} else {
		out.Planted = &planted
	}

	carrier, err := s.BombCarrier()
	if err != nil {
		s.logger.Warn("Bomb carrier derivation failed", "error", err)
	} else {
		out.Carrier = &carrier
	}

	s.mu.Lock()
	// a slower concurrent tick must not overwrite a newer result
	if n > s.lastTick {
		s.last, s.lastTick = out, n
		s.observe(out)
	}
	s.mu.Unlock()

	return out
}

// Ticks returns how many times Tick has run.
func (s *Service) Ticks() int {
	return s.ticks.Value()
}

// Last returns the result of the most recent Tick.
func (s *Service) Last() core.BombState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// LastTick returns the number of the tick whose result Last reports.
func (s *Service) LastTick() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastTick
}

// LogContext adds the current tick to log records.
func (s *Service) LogContext() []slog.Attr {
	return []slog.Attr{slog.Int("tick", s.ticks.Value())}
}

// observe logs transitions against the journal. Caller holds s.mu.
func (s *Service) observe(st core.BombState) {
	if st.Planted != nil {
		kind := st.Planted.State.Kind
		if s.journal.kind == nil || *s.journal.kind != kind {
			s.logPlanted(s.journal.kind, *st.Planted)
			s.journal.kind = &kind
		}
	}

	if st.Carrier != nil {
		var id *uint32
		if st.Carrier.EntityID != nil {
			v := *st.Carrier.EntityID
			id = &v
		}
		if !s.journal.seen || !sameID(s.journal.carrier, id) {
			s.logCarrier(s.journal.carrier, *st.Carrier)
			s.journal.carrier = id
			s.journal.seen = true
		}
	}
}

func (s *Service) logPlanted(prev *core.PlantedStateKind, c4 core.PlantedC4) {
	switch c4.State.Kind {
	case core.Active:
		s.logger.Info("Bomb planted",
			"site", c4.BombSite.String(),
			"time_to_detonation", c4.State.TimeToDetonation,
			"position", c4.Position)
	case core.Defused:
		s.logger.Info("Bomb defused", "site", c4.BombSite.String())
	case core.Detonated:
		s.logger.Info("Bomb detonated", "site", c4.BombSite.String())
	case core.NotPlanted:
		if prev == nil {
			return
		}
		s.logger.Info("Bomb cleared")
	}
}

func (s *Service) logCarrier(prev *uint32, c core.BombCarrier) {
	if !c.HasCarrier() {
		if prev != nil {
			s.logger.Info("Bomb dropped", "entity_id", *prev)
		}
		return
	}
	name := ""
	if c.Name != nil {
		name = *c.Name
	}
	attrs := []any{"entity_id", *c.EntityID, "name", name}
	if c.TeamID != nil {
		attrs = append(attrs, "team", *c.TeamID)
	}
	s.logger.Info("Bomb picked up", attrs...)
}

func sameID(a, b *uint32) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// IsRunning returns whether the polling loop is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Start ticks every interval until Stop is called.
func (s *Service) Start(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid poll interval: %s", interval)
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		s.logger.Debug("Starting tracker loop", "interval", interval)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.Tick()
			}
		}
	}()

	return nil
}

// Stop stops the polling loop and waits for the current tick to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning || s.stopChan == nil {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	s.stopChan = nil
	done := s.done
	s.mu.Unlock()
	<-done
}
