package dice

import (
	"math"

	"go.uber.org/zap"
)

// chanceResolution is the number of steps Chance divides [0, 1) into.
const chanceResolution = 1_000_000

// Roller draws from a Source and logs every roll at debug level.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller that rolls with src and logs each roll to logger.
//
// Precondition: src and logger must be non-nil.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// Between returns a uniform integer in [lo, hi]. When hi < lo it returns lo.
//
// Postcondition: lo <= result <= max(lo, hi).
func (r *Roller) Between(label string, lo, hi int) int {
	v := lo
	if hi > lo {
		v = lo + r.src.Intn(hi-lo+1)
	}
	r.logger.Debug("range roll",
		zap.String("roll", label),
		zap.Int("min", lo),
		zap.Int("max", hi),
		zap.Int("result", v),
	)
	return v
}

// Chance reports success with probability p, clamped to [0, 1].
func (r *Roller) Chance(label string, p float64) bool {
	if math.IsNaN(p) || p <= 0 {
		r.logChance(label, p, false)
		return false
	}
	if p >= 1 {
		r.logChance(label, p, true)
		return true
	}
	hit := r.src.Intn(chanceResolution) < int(p*chanceResolution)
	r.logChance(label, p, hit)
	return hit
}

func (r *Roller) logChance(label string, p float64, hit bool) {
	r.logger.Debug("chance roll",
		zap.String("roll", label),
		zap.Float64("p", p),
		zap.Bool("hit", hit),
	)
}
