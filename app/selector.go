package app

import (
	"math"
	"math/rand/v2"
	"time"

	"example/cpl-trainer/app/models"
)

// Sampler draws from a normal distribution. Tests substitute a fixed value.
type Sampler interface {
	Normal(mean, stddev float64) float64
}

// GaussianSampler is a seedable Sampler. It is not safe for concurrent use.
type GaussianSampler struct {
	rng *rand.Rand
}

// NewGaussianSampler seeds from the clock when seed is 0.
func NewGaussianSampler(seed uint64) *GaussianSampler {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &GaussianSampler{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (g *GaussianSampler) Normal(mean, stddev float64) float64 {
	return mean + stddev*g.rng.NormFloat64()
}

// Selector picks an emulated move whose loss tracks a tier's target CPL.
type Selector struct {
	params  models.SelectorParams
	sampler Sampler
}

func NewSelector(params models.SelectorParams, sampler Sampler) *Selector {
	return &Selector{params: params, sampler: sampler}
}

// Sigma is the spread of the desired-loss distribution for one move.
// spread is the score gap between the best and worst ranked line, tilt the
// loss of the previous emulated move.
func (s *Selector) Sigma(tier models.SkillTier, spread, tilt int) float64 {
	p := s.params
	k := p.LowTierK
	if tier.TargetCPL >= p.HighTierFrom {
		k = p.HighTierK
	}
	sigma := math.Max(p.BaseSigmaMin, float64(tier.TargetCPL)*k)
	sigma += math.Min(p.SpreadCap, float64(max(0, spread))*p.SpreadFactor)
	if tilt >= p.TiltThreshold {
		sigma += p.TiltBonus
	}
	return sigma
}

// Epsilon is how far below the desired loss a candidate may fall and still be accepted.
func (s *Selector) Epsilon(tier models.SkillTier) float64 {
	return math.Max(s.params.EpsilonMin, float64(tier.TargetCPL)*s.params.EpsilonFactor)
}

// Select picks one of candidates (ranked best first, never empty) and
// records the attributed loss in tilt.
func (s *Selector) Select(candidates []models.AnalysisLine, tier models.SkillTier, tilt *Tilt) models.SelectionResult {
	if len(candidates) == 0 {
		return models.SelectionResult{}
	}
	best := candidates[0].Score

	if tier.Perfect {
		tilt.Reset()
		return models.SelectionResult{Move: candidates[0].Move}
	}

	spread := best - candidates[len(candidates)-1].Score
	sigma := s.Sigma(tier, spread, tilt.Last())
	desired := max(0, int(s.sampler.Normal(float64(tier.TargetCPL), sigma)))
	threshold := float64(desired) - s.Epsilon(tier)

	pick := -1
	for i, c := range candidates {
		if float64(lossOf(best, c.Score)) >= threshold {
			pick = i
			break
		}
	}

	if pick < 0 {
		bestDiff := math.MaxInt
		for i, c := range candidates {
			diff := lossOf(best, c.Score) - desired
			if diff < 0 {
				diff = -diff
			}
			if diff < bestDiff {
				bestDiff, pick = diff, i
			}
		}
	}

	res := models.SelectionResult{
		Move:          candidates[pick].Move,
		AttributedCPL: lossOf(best, candidates[pick].Score),
	}
	tilt.Record(res.AttributedCPL)
	return res
}

// lossOf is the centipawn gap from best, floored at zero.
func lossOf(best, score int) int {
	return max(0, best-score)
}
