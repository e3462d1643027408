package truth

import (
	"fmt"
	"sort"

	"github.com/orneryd/calotruth/pkg/pool"
)

// HitIndex maps cells to their deposited energy and tracks to the hits they
// produced, for the hits of one sub-event.
//
// Hits are flattened in the order of the configured collections, so a hit's
// position is stable for identical input. Every hit contributes to the cell
// energy totals. Only hits that pass the process-type rule are attributed to
// their track; hits of unknown tracks are attributed too but never reached
// from the decay graph.
type HitIndex struct {
	hits       []SimHit
	cellEnergy map[CellID]float64
	byTrack    map[TrackID][]int
	mismatches int
}

type processKey struct {
	track    TrackID
	detector string
}

// BuildHitIndex indexes the hits of the given collections.
//
// When allowDifferentProcessTypes is false a track's hits only count if they
// share the process type of the first counted hit of that track. When true,
// the first hit of that track in the same detector sets the reference instead.
//
// Returns ErrMissingInput if a collection is absent from hits.
func BuildHitIndex(hits map[string][]SimHit, collections []string, allowDifferentProcessTypes bool) (*HitIndex, error) {
	total := 0
	for _, name := range collections {
		c, ok := hits[name]
		if !ok || c == nil {
			return nil, fmt.Errorf("%w: hit collection %q", ErrMissingInput, name)
		}
		total += len(c)
	}

	idx := &HitIndex{
		hits:       make([]SimHit, 0, total),
		cellEnergy: make(map[CellID]float64),
		byTrack:    make(map[TrackID][]int),
	}
	reference := make(map[processKey]int)

	for _, name := range collections {
		for _, h := range hits[name] {
			h.Detector = name
			pos := len(idx.hits)
			idx.hits = append(idx.hits, h)
			idx.cellEnergy[h.Cell] += h.Energy

			key := processKey{track: h.TrackID}
			if allowDifferentProcessTypes {
				key.detector = name
			}
			ref, seen := reference[key]
			if !seen {
				reference[key] = h.ProcessType
			} else if ref != h.ProcessType {
				idx.mismatches++
				continue
			}

			list, ok := idx.byTrack[h.TrackID]
			if !ok {
				list = pool.GetIntSlice()
			}
			idx.byTrack[h.TrackID] = append(list, pos)
		}
	}
	return idx, nil
}

// Hits returns the flattened hits. The slice must not be modified.
func (x *HitIndex) Hits() []SimHit {
	return x.hits
}

// Len returns the number of indexed hits.
func (x *HitIndex) Len() int {
	return len(x.hits)
}

// CellEnergy returns the total energy deposited in a cell.
func (x *HitIndex) CellEnergy(cell CellID) float64 {
	return x.cellEnergy[cell]
}

// CellEnergies returns the cell energy map. The map must not be modified.
func (x *HitIndex) CellEnergies() map[CellID]float64 {
	return x.cellEnergy
}

// HitsOf returns the positions of the hits attributed to a track.
func (x *HitIndex) HitsOf(track TrackID) []int {
	return x.byTrack[track]
}

// HitCount returns the number of hits attributed to a track.
func (x *HitIndex) HitCount(track TrackID) int {
	return len(x.byTrack[track])
}

// ProcessTypeMismatches returns the number of hits excluded by the process-type rule.
func (x *HitIndex) ProcessTypeMismatches() int {
	return x.mismatches
}

// TrackIDs returns the ids of all tracks with attributed hits, ascending.
func (x *HitIndex) TrackIDs() []TrackID {
	ids := make([]TrackID, 0, len(x.byTrack))
	for id := range x.byTrack {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Orphans counts the hits whose track is not known to the sub-event.
func (x *HitIndex) Orphans(known func(TrackID) bool) int {
	n := 0
	for _, h := range x.hits {
		if !known(h.TrackID) {
			n++
		}
	}
	return n
}

// Release hands the per-track buckets back to the pool. The index must not
// be used afterwards.
func (x *HitIndex) Release() {
	for id, list := range x.byTrack {
		pool.PutIntSlice(list)
		delete(x.byTrack, id)
	}
}
