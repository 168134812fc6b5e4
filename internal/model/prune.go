package model

import "time"

// PruneConfig is the retention rule of one event case.
type PruneConfig struct {
	before     time.Time
	hasBefore  bool
	keep       int
	varyOnData bool
}

// PruneOption configures a PruneConfig.
type PruneOption func(*PruneConfig)

// NewPruneConfig builds a retention rule. Payload variants are partitioned
// separately unless VaryOnData(false) is given.
func NewPruneConfig(opts ...PruneOption) *PruneConfig {
	c := &PruneConfig{varyOnData: true}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OlderThan makes rows created before t deletable.
func OlderThan(t time.Time) PruneOption {
	return func(c *PruneConfig) {
		c.before = t
		c.hasBefore = true
	}
}

// KeepLast retains the n most recent rows per partition. Negative values are
// treated as zero.
func KeepLast(n int) PruneOption {
	return func(c *PruneConfig) {
		if n < 0 {
			n = 0
		}
		c.keep = n
	}
}

// VaryOnData controls whether the serialized payload is part of the partition key.
func VaryOnData(vary bool) PruneOption {
	return func(c *PruneConfig) { c.varyOnData = vary }
}

// Before returns the absolute cutoff, if any.
func (c PruneConfig) Before() (time.Time, bool) {
	return c.before, c.hasBefore
}

// Keep returns the per-partition retention count; 0 disables count-based retention.
func (c PruneConfig) Keep() int {
	return c.keep
}

// VaryOnData reports whether payload variants keep their own window.
func (c PruneConfig) VaryOnData() bool {
	return c.varyOnData
}
