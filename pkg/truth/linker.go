package truth

// LinkStableParticles gives every selected track that never decayed its own
// ghost vertex, appended after the highest real vertex, and an edge from the
// track's production vertex to it carrying the track's own hit count.
//
// Tracks skipped as malformed by BuildDecayChain are not linked. Tracks
// without a known production vertex are counted in diag.UnlinkedTracks; a
// production vertex out of range counts as a malformed reference. Returns the
// number of ghost vertices allocated.
func LinkStableParticles(c *DecayChain, hits HitCounter, diag *Diagnostics) int {
	linked := 0
	for i, t := range c.Tracks {
		if c.skipped[i] || c.decayVertex[i] != NoVertex {
			continue
		}
		if t.VertexIndex == NoVertex {
			diag.UnlinkedTracks++
			continue
		}
		origin := c.resolve(t.VertexIndex)
		if origin < 0 || origin >= c.Graph.NumReal() {
			c.skipped[i] = true
			diag.MalformedReferences++
			continue
		}

		ghost := c.Graph.AddGhost()
		if _, err := c.Graph.AddEdge(origin, ghost, i, hitCount(hits, t.TrackID)); err != nil {
			c.skipped[i] = true
			diag.MalformedReferences++
			continue
		}
		linked++
	}
	diag.GhostVertices += linked
	return linked
}
