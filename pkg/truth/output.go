package truth

import (
	"fmt"
)

// CellEnergy is the energy one particle deposited in one cell. Fraction is
// that energy over the cell's total in the event, set by FinalizeEvent.
type CellEnergy struct {
	Cell     CellID  `json:"cell"`
	Energy   float64 `json:"energy"`
	Fraction float64 `json:"fraction"`
}

// SimCluster holds the hits of one simulated particle.
type SimCluster struct {
	TrackID       TrackID      `json:"trackId"`
	BunchCrossing int          `json:"bunchCrossing"`
	Hits          []int        `json:"hits"`
	Cells         []CellEnergy `json:"cells"`
	Energy        float64      `json:"energy"`
}

// CaloParticle is a primary particle with the clusters of its whole decay
// tree, ClusterStart inclusive and ClusterStop exclusive.
type CaloParticle struct {
	TrackID       TrackID    `json:"trackId"`
	BunchCrossing int        `json:"bunchCrossing"`
	Charge        float64    `json:"charge"`
	Momentum      FourVector `json:"momentum"`
	GenParticle   int        `json:"genParticle"`
	ClusterStart  int        `json:"clusterStart"`
	ClusterStop   int        `json:"clusterStop"`
	SimEnergy     float64    `json:"simEnergy"`
}

// NumClusters returns the number of clusters in the particle's range.
func (p CaloParticle) NumClusters() int {
	return p.ClusterStop - p.ClusterStart
}

// Output is the finalized truth of one event.
type Output struct {
	EventID       uint64          `json:"eventId"`
	Hits          []SimHit        `json:"hits"`
	Clusters      []SimCluster    `json:"clusters"`
	CaloParticles []CaloParticle  `json:"caloParticles"`
	Graphs        []GraphSnapshot `json:"graphs"`
	Diagnostics   Diagnostics     `json:"diagnostics"`
	Fingerprint   string          `json:"fingerprint"`
}

// ClustersOf returns the clusters belonging to a calo particle.
func (o *Output) ClustersOf(p CaloParticle) []SimCluster {
	return o.Clusters[p.ClusterStart:p.ClusterStop]
}

// Validate checks that calo-particle ranges are well formed, inside the
// cluster array and pairwise disjoint, and that cluster hit references
// point into the hit array.
func (o *Output) Validate() error {
	prevStop := 0
	for i, p := range o.CaloParticles {
		if p.ClusterStart > p.ClusterStop {
			return fmt.Errorf("calo particle %d: start %d > stop %d", i, p.ClusterStart, p.ClusterStop)
		}
		if p.ClusterStart < 0 || p.ClusterStop > len(o.Clusters) {
			return fmt.Errorf("calo particle %d: range [%d,%d) outside %d clusters", i, p.ClusterStart, p.ClusterStop, len(o.Clusters))
		}
		if p.ClusterStart < prevStop {
			return fmt.Errorf("calo particle %d: range [%d,%d) overlaps previous stop %d", i, p.ClusterStart, p.ClusterStop, prevStop)
		}
		prevStop = p.ClusterStop
	}
	for i, c := range o.Clusters {
		for _, h := range c.Hits {
			if h < 0 || h >= len(o.Hits) {
				return fmt.Errorf("cluster %d: hit %d outside %d hits", i, h, len(o.Hits))
			}
		}
	}
	return nil
}
