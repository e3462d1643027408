package truth

import (
	"bufio"
	"fmt"
	"io"
)

// ExportDOT writes the decay graph in Graphviz DOT format to the writer.
//
// Real vertices are drawn as circles labelled with their cumulative hit count,
// ghost vertices as grey points. Edges are labelled with the track barcode
// and its own/cumulative hit counts.
func (s GraphSnapshot) ExportDOT(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "digraph DecayGraph_bx%d {\n", s.BunchCrossing)
	fmt.Fprintln(bw, "  rankdir=TB;")
	fmt.Fprintln(bw, "  node [fontname=\"Arial\", fontsize=10];")
	fmt.Fprintln(bw, "  edge [fontname=\"Arial\", fontsize=9];")

	for _, v := range s.Vertices {
		switch v.Kind {
		case VertexGhost:
			fmt.Fprintf(bw, "  v%d [shape=point, color=\"#9e9e9e\"];\n", v.ID)
		default:
			color := "#e1f5fe"
			if v.Cumulative == 0 {
				color = "white"
			}
			fmt.Fprintf(bw, "  v%d [label=\"%d\\n%d\", shape=circle, style=filled, fillcolor=\"%s\"];\n",
				v.ID, v.ID, v.Cumulative, color)
		}
	}

	for _, e := range s.Edges {
		label := fmt.Sprintf("#%d", e.Track)
		if e.Track >= 0 && e.Track < len(s.TrackIDs) {
			label = fmt.Sprintf("%d", s.TrackIDs[e.Track])
		}
		fmt.Fprintf(bw, "  v%d -> v%d [label=\"%s\\n%d/%d\"];\n",
			e.Parent, e.Child, label, e.Hits, e.Cumulative)
	}

	fmt.Fprintln(bw, "}")
	return bw.Flush()
}
