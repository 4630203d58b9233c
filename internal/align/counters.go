package align

import "github.com/Carla-Radames/Rhisat/pkg/metrics"

// Counters measures how much work the hierarchical search has done. Each
// worker accumulates into its own Counters and publishes at read
// granularity.
type Counters struct {
	LocalAtts          int64
	AnchorAtts         int64
	LocalIndexAtts     int64
	LocalExtAtts       int64
	LocalSearchRecur   int64
	GlobalGenomeCoords int64
	LocalGenomeCoords  int64
}

// Merge adds other into c.
func (c *Counters) Merge(other *Counters) {
	c.LocalAtts += other.LocalAtts
	c.AnchorAtts += other.AnchorAtts
	c.LocalIndexAtts += other.LocalIndexAtts
	c.LocalExtAtts += other.LocalExtAtts
	c.LocalSearchRecur += other.LocalSearchRecur
	c.GlobalGenomeCoords += other.GlobalGenomeCoords
	c.LocalGenomeCoords += other.LocalGenomeCoords
}

// Reset zeroes all counters.
func (c *Counters) Reset() {
	*c = Counters{}
}

// Publish adds the counters to the shared Prometheus collectors and resets
// them.
func (c *Counters) Publish(m *metrics.Metrics) {
	if m == nil {
		c.Reset()
		return
	}
	m.LocalAtts.Add(float64(c.LocalAtts))
	m.AnchorAtts.Add(float64(c.AnchorAtts))
	m.LocalIndexAtts.Add(float64(c.LocalIndexAtts))
	m.LocalExtAtts.Add(float64(c.LocalExtAtts))
	m.LocalSearchRecur.Add(float64(c.LocalSearchRecur))
	m.GlobalGenomeCoords.Add(float64(c.GlobalGenomeCoords))
	m.LocalGenomeCoords.Add(float64(c.LocalGenomeCoords))
	c.Reset()
}
