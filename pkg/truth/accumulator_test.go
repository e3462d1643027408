package truth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingObserver struct {
	events []uint64
}

func (r *recordingObserver) ObserveEvent(out *Output, _ time.Duration) {
	r.events = append(r.events, out.EventID)
}

func pileupEvent(bx int, id TrackID) *Event {
	return &Event{
		BunchCrossing: bx,
		Tracks:        []SimTrack{track(id, 0)},
		Vertices:      []SimVertex{primaryVertex()},
		Hits:          map[string][]SimHit{testCollection: hitsOf(id, 2, 500)},
	}
}

func TestAccumulator_SimpleDecay(t *testing.T) {
	acc := NewAccumulator(testOptions(), nil)
	out, err := acc.Process(simpleDecay())
	require.NoError(t, err)
	require.NoError(t, out.Validate())

	assert.Equal(t, uint64(1), out.EventID)
	assert.Len(t, out.Hits, 15)
	require.Len(t, out.CaloParticles, 1)
	cp := out.CaloParticles[0]
	assert.Equal(t, TrackID(1), cp.TrackID)
	assert.Equal(t, 2, cp.NumClusters())
	assert.Equal(t, 15.0, cp.SimEnergy)

	for _, cl := range out.ClustersOf(cp) {
		for _, cell := range cl.Cells {
			assert.Equal(t, 1.0, cell.Fraction)
		}
	}

	require.Len(t, out.Graphs, 1)
	g := out.Graphs[0]
	assert.Equal(t, 15, g.Vertices[0].Cumulative)
	assert.Equal(t, 5, g.Edges[1].Cumulative)
	assert.Equal(t, 0, g.Edges[2].Cumulative)
	assert.Equal(t, 2, out.Diagnostics.GhostVertices)
	assert.NotEmpty(t, out.Fingerprint)
}

func TestAccumulator_CellFractions(t *testing.T) {
	ev := simpleDecay()
	// B shares a cell with A and deposits three times as much there.
	ev.Hits[testCollection] = []SimHit{
		{Cell: 7, Energy: 1, TrackID: 1},
		{Cell: 7, Energy: 3, TrackID: 2},
	}
	out, err := NewAccumulator(testOptions(), nil).Process(ev)
	require.NoError(t, err)

	require.Len(t, out.Clusters, 2)
	assert.InDelta(t, 0.25, out.Clusters[0].Cells[0].Fraction, 1e-12)
	assert.InDelta(t, 0.75, out.Clusters[1].Cells[0].Fraction, 1e-12)
}

func TestAccumulator_EmptyEvent(t *testing.T) {
	out, err := NewAccumulator(testOptions(), nil).Process(emptyEvent())
	require.NoError(t, err)
	assert.Empty(t, out.Clusters)
	assert.Empty(t, out.CaloParticles)
	assert.Empty(t, out.Hits)
	assert.False(t, out.Diagnostics.Warnings())
}

func TestAccumulator_OrphanHitWarnsOnce(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	acc := NewAccumulator(testOptions(), zap.New(core))

	withOrphan := func() *Event {
		ev := simpleDecay()
		ev.Hits[testCollection] = append(ev.Hits[testCollection], SimHit{Cell: 999, Energy: 1, TrackID: 99})
		return ev
	}

	acc.InitializeEvent()
	require.NoError(t, acc.Accumulate(withOrphan()))
	require.NoError(t, acc.AccumulatePileup(func() *Event { ev := withOrphan(); ev.BunchCrossing = 0; return ev }()))
	out, err := acc.FinalizeEvent()
	require.NoError(t, err)

	assert.Equal(t, 2, out.Diagnostics.OrphanHits)
	assert.Equal(t, 1, logs.Len())
	// Orphan hits stay in the event hit list.
	assert.Len(t, out.Hits, 32)

	// Warnings are per event.
	_, err = acc.Process(withOrphan())
	require.NoError(t, err)
	assert.Equal(t, 2, logs.Len())
}

func TestAccumulator_MissingInput(t *testing.T) {
	acc := NewAccumulator(testOptions(), nil)
	acc.InitializeEvent()
	require.NoError(t, acc.Accumulate(simpleDecay()))

	noHits := simpleDecay()
	delete(noHits.Hits, testCollection)
	assert.ErrorIs(t, acc.AccumulatePileup(noHits), ErrMissingInput)

	noTracks := simpleDecay()
	noTracks.Tracks = nil
	assert.ErrorIs(t, acc.AccumulatePileup(noTracks), ErrMissingInput)

	noVertices := simpleDecay()
	noVertices.Vertices = nil
	assert.ErrorIs(t, acc.AccumulatePileup(noVertices), ErrMissingInput)

	assert.ErrorIs(t, acc.Accumulate(nil), ErrMissingInput)

	// A rejected signal does not claim the event id.
	fresh := NewAccumulator(testOptions(), nil)
	fresh.InitializeEvent()
	badSignal := simpleDecay()
	badSignal.ID = 5
	badSignal.Tracks = nil
	assert.ErrorIs(t, fresh.Accumulate(badSignal), ErrMissingInput)
	badSignal = simpleDecay()
	badSignal.ID = 6
	delete(badSignal.Hits, testCollection)
	assert.ErrorIs(t, fresh.Accumulate(badSignal), ErrMissingInput)
	require.NoError(t, fresh.Accumulate(simpleDecay()))
	freshOut, err := fresh.FinalizeEvent()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), freshOut.EventID)

	// The failed calls left the event as it was.
	out, err := acc.FinalizeEvent()
	require.NoError(t, err)
	assert.Len(t, out.Graphs, 1)
	assert.Len(t, out.Hits, 15)
	assert.Len(t, out.CaloParticles, 1)

	_, err = NewAccumulator(testOptions(), nil).Process(noHits)
	assert.ErrorIs(t, err, ErrMissingInput)
}

func TestAccumulator_Lifecycle(t *testing.T) {
	acc := NewAccumulator(testOptions(), nil)
	assert.ErrorIs(t, acc.Accumulate(simpleDecay()), ErrNoEvent)
	_, err := acc.FinalizeEvent()
	assert.ErrorIs(t, err, ErrNoEvent)

	rec := &recordingObserver{}
	acc.SetObserver(rec)
	_, err = acc.Process(simpleDecay())
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, rec.events)

	// Finalizing resets the accumulator.
	_, err = acc.FinalizeEvent()
	assert.ErrorIs(t, err, ErrNoEvent)
}

func TestAccumulator_PileupWindow(t *testing.T) {
	opts := testOptions()
	opts.MaximumPreviousBunchCrossing = 1
	opts.MaximumSubsequentBunchCrossing = 1
	opts.Selector.SignalOnly = false

	out, err := NewAccumulator(opts, nil).Process(simpleDecay(),
		pileupEvent(2, 30),
		pileupEvent(-2, 10),
		pileupEvent(-1, 20),
		pileupEvent(1, 40),
	)
	require.NoError(t, err)
	require.NoError(t, out.Validate())

	assert.Equal(t, 2, out.Diagnostics.SkippedSubEvents)
	require.Len(t, out.Graphs, 3)
	assert.Equal(t, []int{0, -1, 1}, []int{out.Graphs[0].BunchCrossing, out.Graphs[1].BunchCrossing, out.Graphs[2].BunchCrossing})

	var crossings []int
	for _, cp := range out.CaloParticles {
		crossings = append(crossings, cp.BunchCrossing)
	}
	assert.Equal(t, []int{0, -1, 1}, crossings)
	assert.Len(t, out.Hits, 19)
}

func TestAccumulator_SignalOnlyRejectsPileup(t *testing.T) {
	opts := testOptions()
	opts.MaximumPreviousBunchCrossing = 1

	out, err := NewAccumulator(opts, nil).Process(simpleDecay(), pileupEvent(-1, 20))
	require.NoError(t, err)
	assert.Len(t, out.CaloParticles, 1)
	assert.Equal(t, 1, out.Diagnostics.Rejected[RejectPileup])
	// Pileup energy still enters the cell totals.
	assert.Len(t, out.Hits, 17)
}

func TestAccumulator_OutOfOrder(t *testing.T) {
	opts := testOptions()
	opts.MaximumPreviousBunchCrossing = 3
	opts.MaximumSubsequentBunchCrossing = 3
	acc := NewAccumulator(opts, nil)

	acc.InitializeEvent()
	require.NoError(t, acc.Accumulate(simpleDecay()))
	require.NoError(t, acc.AccumulatePileup(pileupEvent(1, 10)))
	require.NoError(t, acc.AccumulatePileup(pileupEvent(1, 11)))
	assert.ErrorIs(t, acc.AccumulatePileup(pileupEvent(0, 12)), ErrOutOfOrder)
	// Skipped crossings also advance the order.
	require.NoError(t, acc.AccumulatePileup(pileupEvent(5, 13)))
	assert.ErrorIs(t, acc.AccumulatePileup(pileupEvent(2, 14)), ErrOutOfOrder)

	out, err := acc.FinalizeEvent()
	require.NoError(t, err)
	assert.Len(t, out.Graphs, 3)
	assert.Equal(t, 1, out.Diagnostics.SkippedSubEvents)
}

func TestAccumulator_Idempotent(t *testing.T) {
	opts := testOptions()
	opts.MaximumPreviousBunchCrossing = 1
	acc := NewAccumulator(opts, nil)

	first, err := acc.Process(simpleDecay(), pileupEvent(-1, 20))
	require.NoError(t, err)
	second, err := acc.Process(simpleDecay(), pileupEvent(-1, 20))
	require.NoError(t, err)
	third, err := NewAccumulator(opts, nil).Process(simpleDecay(), pileupEvent(-1, 20))
	require.NoError(t, err)

	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, first.Fingerprint, third.Fingerprint)
	assert.Equal(t, first, second)

	fp, err := first.ComputeFingerprint()
	require.NoError(t, err)
	assert.Equal(t, first.Fingerprint, fp)

	other, err := acc.Process(branchingEvent())
	require.NoError(t, err)
	assert.NotEqual(t, first.Fingerprint, other.Fingerprint)
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.NotEmpty(t, opts.Collections)
	assert.Equal(t, 0.5, opts.Selector.MinEnergy)
	assert.Equal(t, 5.0, opts.Selector.MaxPseudoRapidity)
	assert.True(t, opts.Selector.SignalOnly)
	assert.False(t, opts.AllowDifferentProcessTypes)
	assert.Equal(t, opts, NewAccumulator(opts, nil).Options())
}
