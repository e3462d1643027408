// Package truth builds Monte-Carlo truth for calorimeter reconstruction.
//
// For every simulated event the package reconstructs the particle decay chain
// from the flat lists of simulated tracks and vertices, attaches the number of
// calorimeter hits each particle produced, and turns the annotated chain into
// two collections used as ground truth downstream:
//
//   - SimClusters: the hits of one simulated particle, with the share of every
//     cell's energy that particle deposited.
//   - CaloParticles: one primary particle together with the contiguous range
//     of SimClusters produced by it and all of its descendants.
//
// Pipeline for one sub-event (one bunch crossing):
//
//	hits ──► HitIndex ──► BuildDecayChain ──► LinkStableParticles
//	                                               │
//	            Output ◄── Assemble ◄── Annotate ◄─┘
//
// The Accumulator drives the pipeline over the signal sub-event and any
// pileup sub-events of the bunch-crossing window, and finalizes the event.
//
// Example:
//
//	acc := truth.NewAccumulator(truth.DefaultOptions(), logger)
//	out, err := acc.Process(signal, pileup...)
//	if err != nil {
//		return err
//	}
//	for _, cp := range out.CaloParticles {
//		fmt.Printf("track %d: clusters [%d,%d)\n", cp.TrackID, cp.ClusterStart, cp.ClusterStop)
//	}
package truth

import (
	"math"
)

// CellID identifies a detector readout cell. It is only ever used as a key.
type CellID uint32

// TrackID is the simulation barcode of a track, unique within one sub-event.
type TrackID int32

// NoParent marks a vertex without a parent track (a primary interaction).
const NoParent TrackID = -1

// NoVertex marks a track whose production vertex is unknown.
const NoVertex = -1

// NoGenParticle marks a track that has no generator-level particle.
const NoGenParticle = -1

// FourVector is a momentum four-vector in GeV.
type FourVector struct {
	Px float64 `json:"px" yaml:"px"`
	Py float64 `json:"py" yaml:"py"`
	Pz float64 `json:"pz" yaml:"pz"`
	E  float64 `json:"e" yaml:"e"`
}

// Pt returns the transverse momentum.
func (p FourVector) Pt() float64 {
	return math.Hypot(p.Px, p.Py)
}

// Eta returns the pseudorapidity. Tracks along the beam axis get ±Inf.
func (p FourVector) Eta() float64 {
	pt := p.Pt()
	if pt == 0 {
		switch {
		case p.Pz > 0:
			return math.Inf(1)
		case p.Pz < 0:
			return math.Inf(-1)
		default:
			return 0
		}
	}
	return math.Asinh(p.Pz / pt)
}

// Position is a space-time point in cm and ns.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
	T float64 `json:"t" yaml:"t"`
}

// SimTrack is one simulated particle.
type SimTrack struct {
	TrackID     TrackID    `json:"trackId" yaml:"trackId"`
	VertexIndex int        `json:"vertexIndex" yaml:"vertexIndex"`
	Charge      float64    `json:"charge" yaml:"charge"`
	ProcessType int        `json:"processType" yaml:"processType"`
	Momentum    FourVector `json:"momentum" yaml:"momentum"`
	GenParticle int        `json:"genParticle" yaml:"genParticle"`
}

// HasGenParticle reports whether the track comes from the event generator.
func (t SimTrack) HasGenParticle() bool {
	return t.GenParticle >= 0
}

// SimVertex is a point where a track was produced, decayed or interacted.
type SimVertex struct {
	Position    Position `json:"position" yaml:"position"`
	ParentTrack TrackID  `json:"parentTrack" yaml:"parentTrack"`
	ProcessType int      `json:"processType" yaml:"processType"`
}

// IsPrimary reports whether the vertex has no parent track.
func (v SimVertex) IsPrimary() bool {
	return v.ParentTrack == NoParent
}

// SimHit is one energy deposit in a calorimeter cell.
type SimHit struct {
	Cell        CellID  `json:"cell" yaml:"cell"`
	Energy      float64 `json:"energy" yaml:"energy"`
	TrackID     TrackID `json:"trackId" yaml:"trackId"`
	ProcessType int     `json:"processType" yaml:"processType"`
	Time        float64 `json:"time" yaml:"time"`

	// Detector is the collection the hit was read from. Filled by the HitIndex.
	Detector string `json:"detector,omitempty" yaml:"detector,omitempty"`
}

// Event is the simulation record of one bunch crossing.
//
// A nil Tracks or Vertices slice, or a configured hit collection missing from
// Hits, means the collection is absent and the sub-event cannot be
// accumulated. Empty but non-nil collections are a valid empty event.
type Event struct {
	ID            uint64              `json:"id" yaml:"id"`
	BunchCrossing int                 `json:"bunchCrossing" yaml:"bunchCrossing"`
	Tracks        []SimTrack          `json:"tracks" yaml:"tracks"`
	Vertices      []SimVertex         `json:"vertices" yaml:"vertices"`
	Hits          map[string][]SimHit `json:"hits" yaml:"hits"`
}
