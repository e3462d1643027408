package truth

// HitCounter returns the number of hits attributed to a track.
type HitCounter interface {
	HitCount(track TrackID) int
}

// DecayChain is a decay graph together with the bookkeeping needed to link
// stable particles and to resolve track indices.
type DecayChain struct {
	Graph  *DecayGraph
	Tracks []SimTrack

	// decayVertex[i] is the decay vertex of track i, or NoVertex.
	decayVertex []int
	// skipped[i] is set for tracks dropped as malformed.
	skipped []bool
	// collapsed maps extra decay vertices of a track onto its first one.
	collapsed map[int]int
	// trackIndex maps barcodes to positions in Tracks.
	trackIndex map[TrackID]int
}

// Track returns the track with the given index.
func (c *DecayChain) Track(i int) SimTrack {
	return c.Tracks[i]
}

// HasTrack reports whether a barcode belongs to the sub-event.
func (c *DecayChain) HasTrack(id TrackID) bool {
	_, ok := c.trackIndex[id]
	return ok
}

// DecayVertex returns the decay vertex of track i, or NoVertex.
func (c *DecayChain) DecayVertex(i int) int {
	return c.decayVertex[i]
}

// resolve maps a vertex index through the collapse table.
func (c *DecayChain) resolve(v int) int {
	if to, ok := c.collapsed[v]; ok {
		return to
	}
	return v
}

// BuildDecayChain builds the decay graph of one sub-event.
//
// Every vertex becomes a graph vertex. Every track that decays, i.e. is the
// parent track of at least one vertex, becomes an edge from its production
// vertex to its first decay vertex, labelled with its own hit count. Later
// vertices with the same parent track are collapsed into the first one so the
// particle and its hits are only counted once.
//
// Tracks with an unknown barcode, a production vertex out of range, or an
// edge that would give a vertex a second parent or close a cycle are skipped
// and counted in diag.MalformedReferences. A decaying track without a known
// production vertex is counted in diag.UnlinkedTracks and its decay vertex
// stays a root. Tracks that never decay are left for LinkStableParticles.
//
// Hits carry only a barcode, so the hits of a duplicate barcode stay with the
// first track that uses it.
func BuildDecayChain(tracks []SimTrack, vertices []SimVertex, hits HitCounter, diag *Diagnostics) *DecayChain {
	c := &DecayChain{
		Graph:       NewDecayGraph(len(vertices)),
		Tracks:      tracks,
		decayVertex: make([]int, len(tracks)),
		skipped:     make([]bool, len(tracks)),
		collapsed:   make(map[int]int),
		trackIndex:  make(map[TrackID]int, len(tracks)),
	}
	for i := range c.decayVertex {
		c.decayVertex[i] = NoVertex
	}
	for i, t := range tracks {
		if _, dup := c.trackIndex[t.TrackID]; dup {
			c.skipped[i] = true
			diag.MalformedReferences++
			continue
		}
		c.trackIndex[t.TrackID] = i
	}

	// First pass: pick the decay vertex of every track and collapse the rest.
	for vi, v := range vertices {
		if v.IsPrimary() {
			continue
		}
		ti, ok := c.trackIndex[v.ParentTrack]
		if !ok {
			diag.MalformedReferences++
			continue
		}
		if first := c.decayVertex[ti]; first != NoVertex {
			c.collapsed[vi] = first
			diag.CollapsedVertices++
			continue
		}
		c.decayVertex[ti] = vi
	}

	// Second pass: one edge per decaying track, in vertex order.
	for vi := range vertices {
		if vertices[vi].IsPrimary() {
			continue
		}
		ti, ok := c.trackIndex[vertices[vi].ParentTrack]
		if !ok || c.decayVertex[ti] != vi {
			continue
		}
		t := tracks[ti]
		if t.VertexIndex == NoVertex {
			// Unknown production vertex: the decay vertex stays a root.
			c.Graph.setVertexTrack(vi, ti)
			diag.UnlinkedTracks++
			continue
		}
		origin := c.resolve(t.VertexIndex)
		if _, err := c.Graph.AddEdge(origin, vi, ti, hitCount(hits, t.TrackID)); err != nil {
			c.decayVertex[ti] = NoVertex
			c.skipped[ti] = true
			diag.MalformedReferences++
			continue
		}
		c.Graph.setVertexTrack(vi, ti)
	}
	return c
}

func hitCount(hits HitCounter, id TrackID) int {
	if hits == nil {
		return 0
	}
	return hits.HitCount(id)
}
