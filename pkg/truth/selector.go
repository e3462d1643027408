package truth

import (
	"math"
)

// Rejection names the reason a calo-particle candidate was dropped.
type Rejection string

const (
	// RejectNoHits drops branches that left no hits anywhere.
	RejectNoHits Rejection = "no_hits"
	// RejectNoGenParticle drops tracks without a generator particle.
	RejectNoGenParticle Rejection = "no_gen_particle"
	// RejectEnergy drops tracks below the minimum energy.
	RejectEnergy Rejection = "energy"
	// RejectEta drops tracks beyond the maximum pseudorapidity.
	RejectEta Rejection = "eta"
	// RejectNeutral drops neutral tracks when only charged ones are kept.
	RejectNeutral Rejection = "neutral"
	// RejectPileup drops pileup tracks when only the signal is kept.
	RejectPileup Rejection = "pileup"
)

// Selector decides which primary particles become calo particles.
type Selector struct {
	MinEnergy          float64
	MaxPseudoRapidity  float64
	ChargedOnly        bool
	SignalOnly         bool
	RequireGenParticle bool
}

// Accept applies the selection to a track leaving a root vertex. cumulative
// is the cumulative hit count of the track's edge. The returned Rejection is
// empty when the track is accepted.
func (s Selector) Accept(t SimTrack, cumulative, bunchCrossing int) (bool, Rejection) {
	switch {
	case cumulative <= 0:
		return false, RejectNoHits
	case s.RequireGenParticle && !t.HasGenParticle():
		return false, RejectNoGenParticle
	case t.Momentum.E < 0 || t.Momentum.E < s.MinEnergy:
		return false, RejectEnergy
	case math.Abs(t.Momentum.Eta()) > s.MaxPseudoRapidity:
		return false, RejectEta
	case s.ChargedOnly && t.Charge == 0:
		return false, RejectNeutral
	case s.SignalOnly && bunchCrossing != 0:
		return false, RejectPileup
	}
	return true, ""
}
