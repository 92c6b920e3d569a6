// Package magctl is the control plane around a magdata region: it
// owns the single-writer side of active[]/lookup[], wires a
// healthmonitor.HealthMonitor to slot activation/deactivation, and
// keeps a per-slot descriptor table for the data plane to consult
// after a successful Dispatch.
package magctl

import (
	"github.com/inhies/go-bytesize"
	"github.com/rs/zerolog"

	"github.com/nordix/magtable/healthmonitor"
)

// Config describes how to size the shared region and how to health
// check the backends that occupy its slots.
type Config struct {
	// M0 is the upper bound on the lookup table size; the actual size
	// is the largest prime <= M0.
	M0 uint32 `mapstructure:"table_size_bound" default:"65537"`
	// N is the maximum number of target slots.
	N uint32 `mapstructure:"max_targets" default:"256"`
	// RegionSize, if set, must be large enough to hold magdata.Len(M0,
	// N); it exists so operators can reason about and cap the
	// shared-memory footprint in config rather than computing it by
	// hand.
	RegionSize bytesize.ByteSize `mapstructure:"region_size"`

	// HealthCheck configures the embedded health monitor.
	HealthCheck healthmonitor.Config `mapstructure:"health_check"`

	logger zerolog.Logger
}
