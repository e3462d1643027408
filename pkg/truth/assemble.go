package truth

import (
	"sort"

	"github.com/orneryd/calotruth/pkg/pool"
)

var edgeStackPool = pool.NewSlicePool[int](64)

// Assemble walks an annotated decay chain and appends its clusters and calo
// particles to out.
//
// Every edge leaving a root vertex is a calo-particle candidate. Accepted
// candidates get one SimCluster per track with hits in their subtree, in
// depth-first pre-order, and a CaloParticle covering exactly that run of
// clusters. Rejected candidates contribute nothing and are counted in
// diag.Rejected. hitBase is the position of the sub-event's first hit in
// out.Hits.
func Assemble(c *DecayChain, idx *HitIndex, sel Selector, bunchCrossing, hitBase int, out *Output, diag *Diagnostics) {
	g := c.Graph
	stack := edgeStackPool.Get()
	defer func() { edgeStackPool.Put(stack) }()

	for _, root := range g.Roots() {
		for _, e := range g.Children(root) {
			edge := g.edges[e]
			t := c.Tracks[edge.Track]
			if ok, reason := sel.Accept(t, edge.Cumulative, bunchCrossing); !ok {
				diag.reject(reason)
				continue
			}

			start := len(out.Clusters)
			stack = append(stack[:0], e)
			for len(stack) > 0 {
				cur := g.edges[stack[len(stack)-1]]
				stack = stack[:len(stack)-1]

				if cl, ok := newCluster(c.Tracks[cur.Track].TrackID, idx, bunchCrossing, hitBase); ok {
					out.Clusters = append(out.Clusters, cl)
				}
				children := g.Children(cur.Child)
				for i := len(children) - 1; i >= 0; i-- {
					stack = append(stack, children[i])
				}
			}

			out.CaloParticles = append(out.CaloParticles, CaloParticle{
				TrackID:       t.TrackID,
				BunchCrossing: bunchCrossing,
				Charge:        t.Charge,
				Momentum:      t.Momentum,
				GenParticle:   t.GenParticle,
				ClusterStart:  start,
				ClusterStop:   len(out.Clusters),
			})
		}
	}
}

// newCluster groups the hits of one track by cell. Cells are ordered by id.
func newCluster(track TrackID, idx *HitIndex, bunchCrossing, hitBase int) (SimCluster, bool) {
	positions := idx.HitsOf(track)
	if len(positions) == 0 {
		return SimCluster{}, false
	}

	cl := SimCluster{
		TrackID:       track,
		BunchCrossing: bunchCrossing,
		Hits:          make([]int, len(positions)),
	}
	perCell := make(map[CellID]int)
	hits := idx.Hits()
	for i, pos := range positions {
		cl.Hits[i] = hitBase + pos
		h := hits[pos]
		j, ok := perCell[h.Cell]
		if !ok {
			j = len(cl.Cells)
			perCell[h.Cell] = j
			cl.Cells = append(cl.Cells, CellEnergy{Cell: h.Cell})
		}
		cl.Cells[j].Energy += h.Energy
		cl.Energy += h.Energy
	}
	sort.Slice(cl.Cells, func(i, j int) bool { return cl.Cells[i].Cell < cl.Cells[j].Cell })
	return cl, true
}
