package truth

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Options configures the Accumulator.
type Options struct {
	// Collections are the hit collections (selected detectors) to read.
	Collections []string
	// Selector promotes primary particles to calo particles.
	Selector Selector
	// MaximumPreviousBunchCrossing is how many crossings before the signal
	// crossing are accumulated. Zero keeps none.
	MaximumPreviousBunchCrossing uint
	// MaximumSubsequentBunchCrossing is how many crossings after the signal
	// crossing are accumulated. Zero keeps none.
	MaximumSubsequentBunchCrossing uint
	// AllowDifferentProcessTypes lets hits in different detectors of the same
	// track carry different process types.
	AllowDifferentProcessTypes bool
}

// DefaultOptions returns the options used for calorimeter truth production.
func DefaultOptions() Options {
	return Options{
		Collections: []string{"EcalHitsEB", "HGCHitsEE", "HGCHitsHEfront", "HGCHitsHEback", "HcalHits"},
		Selector: Selector{
			MinEnergy:          0.5,
			MaxPseudoRapidity:  5.0,
			RequireGenParticle: true,
			SignalOnly:         true,
		},
	}
}

// Observer is notified when events are finalized.
type Observer interface {
	ObserveEvent(out *Output, elapsed time.Duration)
}

// Accumulator drives the truth pipeline over the sub-events of one event.
//
// Usage follows the event lifecycle: InitializeEvent, Accumulate for the
// signal crossing, AccumulatePileup for each pileup crossing in increasing
// bunch-crossing order, then FinalizeEvent. Process runs all of it.
//
// An Accumulator is not safe for concurrent use. Use one per goroutine.
type Accumulator struct {
	opts     Options
	log      *zap.Logger
	observer Observer
	ev       *eventState
}

type eventState struct {
	out        Output
	cellEnergy map[CellID]float64
	lastPileup int
	havePileup bool
	warned     bool
	started    time.Time
}

// NewAccumulator creates an Accumulator. A nil logger disables logging.
func NewAccumulator(opts Options, logger *zap.Logger) *Accumulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Accumulator{
		opts: opts,
		log:  logger.Named("truth"),
	}
}

// SetObserver registers an observer for finalized events.
func (a *Accumulator) SetObserver(o Observer) {
	a.observer = o
}

// Options returns the accumulator options.
func (a *Accumulator) Options() Options {
	return a.opts
}

// InitializeEvent discards any previous state and starts a new event.
func (a *Accumulator) InitializeEvent() {
	a.ev = &eventState{
		cellEnergy: make(map[CellID]float64),
		started:    time.Now(),
	}
}

// Accumulate adds the signal sub-event. Its bunch crossing is taken as 0.
func (a *Accumulator) Accumulate(ev *Event) error {
	if a.ev == nil {
		return ErrNoEvent
	}
	if ev == nil {
		return fmt.Errorf("%w: signal event", ErrMissingInput)
	}
	if err := a.checkInput(ev, 0); err != nil {
		return err
	}
	if a.ev.out.EventID == 0 {
		a.ev.out.EventID = ev.ID
	}
	return a.accumulate(ev, 0)
}

// AccumulatePileup adds a pileup sub-event. Sub-events outside the
// configured bunch-crossing window are skipped. Pileup must arrive with
// non-decreasing bunch crossing; otherwise ErrOutOfOrder is returned.
func (a *Accumulator) AccumulatePileup(ev *Event) error {
	if a.ev == nil {
		return ErrNoEvent
	}
	if ev == nil {
		return fmt.Errorf("%w: pileup event", ErrMissingInput)
	}
	bx := ev.BunchCrossing
	if a.ev.havePileup && bx < a.ev.lastPileup {
		return fmt.Errorf("%w: got %d after %d", ErrOutOfOrder, bx, a.ev.lastPileup)
	}

	if !a.inWindow(bx) {
		a.ev.lastPileup, a.ev.havePileup = bx, true
		a.ev.out.Diagnostics.SkippedSubEvents++
		a.log.Debug("pileup outside bunch-crossing window",
			zap.Uint64("event", a.ev.out.EventID),
			zap.Int("bunch_crossing", bx))
		return nil
	}
	if err := a.accumulate(ev, bx); err != nil {
		return err
	}
	a.ev.lastPileup, a.ev.havePileup = bx, true
	return nil
}

func (a *Accumulator) inWindow(bx int) bool {
	return bx >= -int(a.opts.MaximumPreviousBunchCrossing) && bx <= int(a.opts.MaximumSubsequentBunchCrossing)
}

// checkInput reports ErrMissingInput for absent tracks, vertices or hit
// collections.
func (a *Accumulator) checkInput(ev *Event, bx int) error {
	if ev.Tracks == nil {
		return fmt.Errorf("%w: tracks (bunch crossing %d)", ErrMissingInput, bx)
	}
	if ev.Vertices == nil {
		return fmt.Errorf("%w: vertices (bunch crossing %d)", ErrMissingInput, bx)
	}
	for _, name := range a.opts.Collections {
		if ev.Hits[name] == nil {
			return fmt.Errorf("%w: hit collection %q (bunch crossing %d)", ErrMissingInput, name, bx)
		}
	}
	return nil
}

// accumulate runs the pipeline for one sub-event. All validation happens
// before the event state is touched, so a failed call leaves it unchanged.
func (a *Accumulator) accumulate(ev *Event, bx int) error {
	if err := a.checkInput(ev, bx); err != nil {
		return err
	}
	idx, err := BuildHitIndex(ev.Hits, a.opts.Collections, a.opts.AllowDifferentProcessTypes)
	if err != nil {
		return fmt.Errorf("bunch crossing %d: %w", bx, err)
	}
	defer idx.Release()

	st := a.ev
	var diag Diagnostics
	diag.ProcessTypeMismatches = idx.ProcessTypeMismatches()

	chain := BuildDecayChain(ev.Tracks, ev.Vertices, idx, &diag)
	diag.OrphanHits = idx.Orphans(chain.HasTrack)
	LinkStableParticles(chain, idx, &diag)
	Annotate(chain.Graph)

	hitBase := len(st.out.Hits)
	clustersBefore, particlesBefore := len(st.out.Clusters), len(st.out.CaloParticles)
	Assemble(chain, idx, a.opts.Selector, bx, hitBase, &st.out, &diag)

	st.out.Hits = append(st.out.Hits, idx.Hits()...)
	for cell, e := range idx.CellEnergies() {
		st.cellEnergy[cell] += e
	}
	st.out.Graphs = append(st.out.Graphs, chain.Graph.Snapshot(bx, ev.Tracks))
	st.out.Diagnostics.merge(diag)

	if diag.Warnings() && !st.warned {
		st.warned = true
		a.log.Warn("malformed simulation references, continuing with partial decay graph",
			zap.Uint64("event", st.out.EventID),
			zap.Int("bunch_crossing", bx),
			zap.Int("malformed_references", diag.MalformedReferences),
			zap.Int("orphan_hits", diag.OrphanHits))
	}
	a.log.Debug("sub-event accumulated",
		zap.Uint64("event", st.out.EventID),
		zap.Int("bunch_crossing", bx),
		zap.Int("tracks", len(ev.Tracks)),
		zap.Int("vertices", len(ev.Vertices)),
		zap.Int("hits", idx.Len()),
		zap.Int("ghosts", diag.GhostVertices),
		zap.Int("clusters", len(st.out.Clusters)-clustersBefore),
		zap.Int("calo_particles", len(st.out.CaloParticles)-particlesBefore))
	return nil
}

// FinalizeEvent normalizes cell fractions, sums calo-particle energies,
// fingerprints the result and returns it. The accumulator is reset.
func (a *Accumulator) FinalizeEvent() (*Output, error) {
	st := a.ev
	if st == nil {
		return nil, ErrNoEvent
	}
	a.ev = nil
	out := &st.out

	for i := range out.Clusters {
		cells := out.Clusters[i].Cells
		for j := range cells {
			if total := st.cellEnergy[cells[j].Cell]; total > 0 {
				cells[j].Fraction = cells[j].Energy / total
			}
		}
	}
	for i := range out.CaloParticles {
		p := &out.CaloParticles[i]
		p.SimEnergy = 0
		for _, c := range out.ClustersOf(*p) {
			p.SimEnergy += c.Energy
		}
	}

	fp, err := out.ComputeFingerprint()
	if err != nil {
		return nil, err
	}
	out.Fingerprint = fp

	elapsed := time.Since(st.started)
	a.log.Info("event finalized",
		zap.Uint64("event", out.EventID),
		zap.Int("sub_events", len(out.Graphs)),
		zap.Int("clusters", len(out.Clusters)),
		zap.Int("calo_particles", len(out.CaloParticles)),
		zap.Int("rejected", out.Diagnostics.TotalRejected()),
		zap.Duration("elapsed", elapsed))
	if a.observer != nil {
		a.observer.ObserveEvent(out, elapsed)
	}
	return out, nil
}

// Process runs the whole event lifecycle. Pileup sub-events are ordered by
// bunch crossing first. On error the event is discarded.
func (a *Accumulator) Process(signal *Event, pileup ...*Event) (*Output, error) {
	a.InitializeEvent()
	if err := a.Accumulate(signal); err != nil {
		a.ev = nil
		return nil, err
	}

	ordered := make([]*Event, 0, len(pileup))
	for _, p := range pileup {
		if p == nil {
			a.ev = nil
			return nil, fmt.Errorf("%w: pileup event", ErrMissingInput)
		}
		ordered = append(ordered, p)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].BunchCrossing < ordered[j].BunchCrossing
	})
	for _, p := range ordered {
		if err := a.AccumulatePileup(p); err != nil {
			a.ev = nil
			return nil, err
		}
	}
	return a.FinalizeEvent()
}
