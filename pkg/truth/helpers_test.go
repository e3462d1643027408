package truth

const testCollection = "EE"

func testOptions() Options {
	return Options{
		Collections: []string{testCollection},
		Selector: Selector{
			MaxPseudoRapidity:  5.0,
			RequireGenParticle: true,
			SignalOnly:         true,
		},
	}
}

// central returns a momentum at eta 0 with the given energy.
func central(e float64) FourVector {
	return FourVector{Px: e, E: e}
}

func track(id TrackID, vertex int) SimTrack {
	return SimTrack{
		TrackID:     id,
		VertexIndex: vertex,
		Charge:      1,
		Momentum:    central(10),
		GenParticle: int(id),
	}
}

func primaryVertex() SimVertex {
	return SimVertex{ParentTrack: NoParent}
}

func decayVertex(parent TrackID) SimVertex {
	return SimVertex{ParentTrack: parent}
}

// hitsOf returns n hits of 1 GeV for a track in consecutive cells from firstCell.
func hitsOf(id TrackID, n int, firstCell CellID) []SimHit {
	hits := make([]SimHit, n)
	for i := range hits {
		hits[i] = SimHit{Cell: firstCell + CellID(i), Energy: 1, TrackID: id}
	}
	return hits
}

// simpleDecay builds A→V→{B,C} on top of a primary vertex: A leaves 10 hits,
// B leaves 5 and C none.
//
//	V0 --A(1)--> V1 --B(2)--> ghost
//	                 --C(3)--> ghost
func simpleDecay() *Event {
	var hits []SimHit
	hits = append(hits, hitsOf(1, 10, 100)...)
	hits = append(hits, hitsOf(2, 5, 200)...)
	return &Event{
		ID: 1,
		Tracks: []SimTrack{
			track(1, 0),
			track(2, 1),
			track(3, 1),
		},
		Vertices: []SimVertex{
			primaryVertex(),
			decayVertex(1),
		},
		Hits: map[string][]SimHit{testCollection: hits},
	}
}

func emptyEvent() *Event {
	return &Event{
		Tracks:   []SimTrack{},
		Vertices: []SimVertex{},
		Hits:     map[string][]SimHit{testCollection: {}},
	}
}

// buildChain runs the per-sub-event pipeline up to annotation.
func buildChain(ev *Event, allowDifferentProcessTypes bool) (*DecayChain, *HitIndex, Diagnostics) {
	idx, err := BuildHitIndex(ev.Hits, []string{testCollection}, allowDifferentProcessTypes)
	if err != nil {
		panic(err)
	}
	var diag Diagnostics
	c := BuildDecayChain(ev.Tracks, ev.Vertices, idx, &diag)
	diag.OrphanHits = idx.Orphans(c.HasTrack)
	LinkStableParticles(c, idx, &diag)
	Annotate(c.Graph)
	return c, idx, diag
}
