package truth

import (
	"errors"
)

var (
	// ErrMissingInput is returned when a sub-event lacks a required collection.
	ErrMissingInput = errors.New("missing input collection")
	// ErrOutOfOrder is returned when pileup arrives with a smaller bunch crossing than before.
	ErrOutOfOrder = errors.New("bunch crossing out of order")
	// ErrNoEvent is returned when accumulating before InitializeEvent.
	ErrNoEvent = errors.New("no event initialized")
	// ErrVertexRange is returned when an edge references an unknown vertex.
	ErrVertexRange = errors.New("vertex index out of range")
	// ErrSecondParent is returned when a vertex already has an incoming edge.
	ErrSecondParent = errors.New("vertex already has a parent edge")
	// ErrCycle is returned when an edge would close a cycle.
	ErrCycle = errors.New("edge would create a cycle")
)

// Diagnostics counts the recoverable problems and filtering outcomes of one
// event. It is returned with the Output and never carried across events.
type Diagnostics struct {
	// MalformedReferences counts tracks and vertices skipped because they
	// point outside the known ranges or would break the tree shape.
	MalformedReferences int `json:"malformedReferences"`
	// OrphanHits counts hits whose track id matches no simulated track.
	OrphanHits int `json:"orphanHits"`
	// ProcessTypeMismatches counts hits excluded by the process-type rule.
	ProcessTypeMismatches int `json:"processTypeMismatches"`
	// CollapsedVertices counts extra decay vertices merged into the first one.
	CollapsedVertices int `json:"collapsedVertices"`
	// GhostVertices counts vertices allocated for stable particles.
	GhostVertices int `json:"ghostVertices"`
	// UnlinkedTracks counts tracks without a known production vertex.
	UnlinkedTracks int `json:"unlinkedTracks"`
	// SkippedSubEvents counts pileup sub-events outside the bunch-crossing window.
	SkippedSubEvents int `json:"skippedSubEvents"`
	// Rejected counts calo-particle candidates by rejection reason.
	Rejected map[Rejection]int `json:"rejected,omitempty"`
}

// Warnings reports whether any malformed input was seen.
func (d Diagnostics) Warnings() bool {
	return d.MalformedReferences > 0 || d.OrphanHits > 0
}

func (d *Diagnostics) reject(r Rejection) {
	if d.Rejected == nil {
		d.Rejected = make(map[Rejection]int)
	}
	d.Rejected[r]++
}

// TotalRejected returns the number of rejected calo-particle candidates.
func (d Diagnostics) TotalRejected() int {
	n := 0
	for _, c := range d.Rejected {
		n += c
	}
	return n
}

func (d *Diagnostics) merge(o Diagnostics) {
	d.MalformedReferences += o.MalformedReferences
	d.OrphanHits += o.OrphanHits
	d.ProcessTypeMismatches += o.ProcessTypeMismatches
	d.CollapsedVertices += o.CollapsedVertices
	d.GhostVertices += o.GhostVertices
	d.UnlinkedTracks += o.UnlinkedTracks
	d.SkippedSubEvents += o.SkippedSubEvents
	for r, c := range o.Rejected {
		if d.Rejected == nil {
			d.Rejected = make(map[Rejection]int)
		}
		d.Rejected[r] += c
	}
}
