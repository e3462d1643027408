package truth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDecayChain(t *testing.T) {
	t.Run("one_edge_per_decaying_track", func(t *testing.T) {
		ev := simpleDecay()
		var diag Diagnostics
		c := BuildDecayChain(ev.Tracks, ev.Vertices, nil, &diag)

		require.Equal(t, 1, c.Graph.NumEdges())
		e := c.Graph.Edge(0)
		assert.Equal(t, 0, e.Parent)
		assert.Equal(t, 1, e.Child)
		assert.Equal(t, 0, e.Track)
		assert.Equal(t, 0, e.Hits)
		assert.Equal(t, 0, c.Graph.Vertex(1).Track)
		assert.Equal(t, NoTrack, c.Graph.Vertex(0).Track)
		assert.Equal(t, 1, c.DecayVertex(0))
		assert.Equal(t, NoVertex, c.DecayVertex(1))
		assert.True(t, c.HasTrack(3))
		assert.False(t, c.HasTrack(4))
		assert.Equal(t, Diagnostics{}, diag)
	})

	t.Run("collapses_extra_decay_vertices", func(t *testing.T) {
		// A decays twice; B comes out of the second vertex.
		tracks := []SimTrack{track(1, 0), track(2, 2)}
		vertices := []SimVertex{primaryVertex(), decayVertex(1), decayVertex(1)}
		hits := map[string][]SimHit{testCollection: append(hitsOf(1, 4, 0), hitsOf(2, 2, 10)...)}
		c, _, diag := buildChain(&Event{Tracks: tracks, Vertices: vertices, Hits: hits}, false)

		assert.Equal(t, 1, diag.CollapsedVertices)
		assert.Equal(t, 1, c.DecayVertex(0))
		// A is counted once, B hangs off the first decay vertex.
		assert.Equal(t, 6, c.Graph.Vertex(0).Cumulative)
		assert.Equal(t, 2, c.Graph.Vertex(1).Cumulative)
		assert.True(t, c.Graph.IsLeaf(2))
		assert.Equal(t, 0, diag.MalformedReferences)
		require.NoError(t, c.Graph.Validate())
	})

	t.Run("counts_malformed_references", func(t *testing.T) {
		tracks := []SimTrack{
			track(1, 0),
			track(1, 0), // duplicate barcode
			track(2, 7), // decays, production vertex out of range
			track(3, 9), // stable, production vertex out of range
		}
		vertices := []SimVertex{
			primaryVertex(),
			decayVertex(42), // unknown parent track
			decayVertex(2),
		}
		var diag Diagnostics
		c := BuildDecayChain(tracks, vertices, nil, &diag)
		LinkStableParticles(c, nil, &diag)

		assert.Equal(t, 4, diag.MalformedReferences)
		assert.Equal(t, NoVertex, c.DecayVertex(2))
		assert.True(t, diag.Warnings())
		require.NoError(t, c.Graph.Validate())
	})

	t.Run("decaying_track_without_vertex_is_unlinked", func(t *testing.T) {
		ev := simpleDecay()
		ev.Tracks[0].VertexIndex = NoVertex
		c, _, diag := buildChain(ev, false)

		assert.Equal(t, 0, diag.MalformedReferences)
		assert.Equal(t, 1, diag.UnlinkedTracks)
		assert.False(t, diag.Warnings())
		assert.Equal(t, 1, c.DecayVertex(0))
		assert.Equal(t, 0, c.Graph.Vertex(1).Track)
		assert.Equal(t, []int{0, 1}, c.Graph.Roots())
		assert.Equal(t, 5, c.Graph.Vertex(1).Cumulative)
		require.NoError(t, c.Graph.Validate())
	})

	t.Run("duplicate_barcode_hits_stay_with_first_track", func(t *testing.T) {
		ev := &Event{
			Tracks:   []SimTrack{track(1, 0), track(1, 0)},
			Vertices: []SimVertex{primaryVertex()},
			Hits:     map[string][]SimHit{testCollection: hitsOf(1, 3, 0)},
		}
		c, _, diag := buildChain(ev, false)

		assert.Equal(t, 1, diag.MalformedReferences)
		assert.Equal(t, 1, diag.GhostVertices)
		require.Equal(t, 1, c.Graph.NumEdges())
		assert.Equal(t, 0, c.Graph.Edge(0).Track)
		assert.Equal(t, 3, c.Graph.Edge(0).Hits)
	})

	t.Run("empty_input", func(t *testing.T) {
		var diag Diagnostics
		c := BuildDecayChain([]SimTrack{}, []SimVertex{}, nil, &diag)
		assert.Equal(t, 0, c.Graph.NumVertices())
		assert.Equal(t, 0, LinkStableParticles(c, nil, &diag))
	})
}

func TestLinkStableParticles(t *testing.T) {
	t.Run("ghost_ids_follow_real_ids", func(t *testing.T) {
		ev := simpleDecay()
		idx, err := BuildHitIndex(ev.Hits, []string{testCollection}, false)
		require.NoError(t, err)
		var diag Diagnostics
		c := BuildDecayChain(ev.Tracks, ev.Vertices, idx, &diag)

		n := LinkStableParticles(c, idx, &diag)
		assert.Equal(t, 2, n)
		assert.Equal(t, 2, diag.GhostVertices)

		g := c.Graph
		require.Equal(t, 4, g.NumVertices())
		for v := 0; v < g.NumVertices(); v++ {
			if g.Vertex(v).Kind == VertexGhost {
				assert.GreaterOrEqual(t, v, g.NumReal())
				assert.True(t, g.IsLeaf(v))
			} else {
				assert.Less(t, v, g.NumReal())
			}
		}
		assert.Equal(t, 5, g.Edge(g.ParentEdge(2)).Hits)
		assert.Equal(t, 0, g.Edge(g.ParentEdge(3)).Hits)
	})

	t.Run("tracks_without_vertex_are_unlinked", func(t *testing.T) {
		tracks := []SimTrack{track(1, NoVertex)}
		var diag Diagnostics
		c := BuildDecayChain(tracks, []SimVertex{primaryVertex()}, nil, &diag)
		assert.Equal(t, 0, LinkStableParticles(c, nil, &diag))
		assert.Equal(t, 1, diag.UnlinkedTracks)
		assert.Equal(t, 0, diag.MalformedReferences)
	})
}
