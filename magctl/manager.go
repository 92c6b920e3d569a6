package magctl

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/creasty/defaults"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nordix/magtable/healthmonitor"
	"github.com/nordix/magtable/magdata"
	ilog "github.com/nordix/magtable/internal/log"
)

// Manager is the single writer of a magdata region: it owns
// active[]/lookup[] mutation, feeds slot add/remove from a
// healthmonitor.HealthMonitor, and maintains the per-slot descriptor
// table the data plane consults after Dispatch.
//
// Manager.mu is the single-writer discipline the core leaves to its
// control-plane collaborator (spec §4.5): exactly one goroutine may
// mutate active[]/lookup[]/the descriptor table at a time.
type Manager struct {
	view *magdata.View

	mu         sync.Mutex
	slots      []*Descriptor
	nameToSlot map[string]uint32

	hm     healthmonitor.HealthMonitor
	logger zerolog.Logger
	cfg    Config
}

// NewManager allocates a fresh region sized per cfg, initializes it,
// and wires an internal health monitor to slot activation.
func NewManager(ctx context.Context, opts ...Option) (*Manager, error) {
	cfg := Config{
		logger: ilog.Logger.With().Str("component", "magctl").Logger().Level(zerolog.InfoLevel),
	}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if err := defaults.Set(&cfg); err != nil {
		return nil, err
	}

	need, err := magdata.Len(cfg.M0, cfg.N)
	if err != nil {
		return nil, err
	}
	if cfg.RegionSize != 0 && uint64(cfg.RegionSize) < uint64(need) {
		return nil, fmt.Errorf("magctl: configured region_size %s is smaller than the %d bytes table_size_bound=%d max_targets=%d requires", cfg.RegionSize, need, cfg.M0, cfg.N)
	}

	view, err := magdata.Init(cfg.M0, cfg.N, make([]byte, need))
	if err != nil {
		return nil, err
	}

	hm, err := healthmonitor.NewHealthMonitor(ctx,
		healthmonitor.WithConfig(&cfg.HealthCheck),
		healthmonitor.EnableHealthyChannel(),
		healthmonitor.EnableUnhealthyChannel(),
	)
	if err != nil {
		return nil, err
	}

	return &Manager{
		view:       view,
		slots:      make([]*Descriptor, cfg.N),
		nameToSlot: make(map[string]uint32),
		hm:         hm,
		logger:     cfg.logger,
		cfg:        cfg,
	}, nil
}

// View exposes the underlying shared-memory view, e.g. so a caller can
// hand its backing region to a reader process.
func (m *Manager) View() *magdata.View { return m.view }

// Start begins health checking and slot maintenance in the background.
func (m *Manager) Start() error {
	if err := m.hm.Start(); err != nil {
		return err
	}
	healthyCh, err := m.hm.EnterHealthyChan()
	if err != nil {
		return err
	}
	unhealthyCh, err := m.hm.EnterUnhealthyChan()
	if err != nil {
		return err
	}
	go m.watch(healthyCh, unhealthyCh)
	return nil
}

// Stop stops health checking. Already-activated slots remain active;
// callers that want a clean shutdown should RemoveBackend each one
// first.
func (m *Manager) Stop() {
	m.hm.Stop()
}

// AddBackend registers a backend for health checking. It becomes an
// active slot once (or if) it is observed healthy.
func (m *Manager) AddBackend(name string, u url.URL) {
	m.hm.Add(&healthmonitor.Backend{Name: name, Url: u})
}

// RemoveBackend stops health checking a backend and, if it currently
// occupies a slot, deactivates and releases it.
func (m *Manager) RemoveBackend(name string) {
	m.hm.Remove(&healthmonitor.Backend{Name: name})
	m.releaseSlot(name)
}

// Dispatch maps a packet fingerprint to the descriptor of the target
// slot currently owns it, or false if there is none (empty pool, or
// the slot was deactivated in the same instant).
func (m *Manager) Dispatch(fingerprint uint64) (*Descriptor, bool) {
	slot := m.view.Dispatch(fingerprint)
	if slot < 0 {
		return nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.slots[slot]
	if d == nil {
		return nil, false
	}
	return d, true
}

func (m *Manager) watch(healthyCh, unhealthyCh <-chan *healthmonitor.HealthNoti) {
	for {
		select {
		case noti, ok := <-healthyCh:
			if !ok {
				return
			}
			m.activate(noti)
		case noti, ok := <-unhealthyCh:
			if !ok {
				return
			}
			m.releaseSlot(noti.Name)
		}
	}
}

func (m *Manager) activate(noti *healthmonitor.HealthNoti) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.nameToSlot[noti.Name]; ok {
		return
	}
	slot, ok := m.freeSlotLocked()
	if !ok {
		m.logger.Warn().Str("backend", noti.Name).Msg("no free slot for newly healthy backend")
		return
	}

	generation := uuid.New()
	m.view.Active()[slot] = int32(slot) + 1
	m.view.Populate()
	m.nameToSlot[noti.Name] = slot
	m.slots[slot] = &Descriptor{Name: noti.Name, Url: noti.Url}

	m.logger.Info().
		Str("backend", noti.Name).
		Uint32("slot", slot).
		Str("generation", generation.String()).
		Msg("slot activated")
}

// releaseSlot deactivates the slot owned by name, if any: mutate
// active[], populate, and only then drop the descriptor -- the
// ordering the publication discipline requires so no reader can
// resolve a Dispatch to a descriptor that has already been freed
// (spec §5, ordering guarantees).
func (m *Manager) releaseSlot(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot, ok := m.nameToSlot[name]
	if !ok {
		return
	}
	m.view.Active()[slot] = -1
	m.view.Populate()
	delete(m.nameToSlot, name)
	m.slots[slot] = nil

	m.logger.Info().Str("backend", name).Uint32("slot", slot).Msg("slot deactivated")
}

func (m *Manager) freeSlotLocked() (uint32, bool) {
	for i, d := range m.slots {
		if d == nil {
			return uint32(i), true
		}
	}
	return 0, false
}
