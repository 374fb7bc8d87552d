package app

import (
	"testing"

	"example/cpl-trainer/app/models"

	"github.com/google/go-cmp/cmp"
)

type fixedSampler struct {
	value float64
	calls []float64 // sigmas seen
}

func (f *fixedSampler) Normal(mean, stddev float64) float64 {
	f.calls = append(f.calls, stddev)
	return f.value
}

var scenarioA = []models.AnalysisLine{
	{Move: "e2e4", Score: 50},
	{Move: "d2d4", Score: 40},
	{Move: "g1f3", Score: 10},
	{Move: "a2a3", Score: -20},
}

func tier30() models.SkillTier {
	return models.SkillTier{Name: "cpl30", Depth: 12, Breadth: 8, TargetCPL: 30}
}

func TestSelectScenarioA(t *testing.T) {
	sel := NewSelector(models.DefaultSelectorParams(), &fixedSampler{value: 38})
	tilt := &Tilt{}

	got := sel.Select(scenarioA, tier30(), tilt)
	want := models.SelectionResult{Move: "g1f3", AttributedCPL: 40}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Select mismatch (-want +got):\n%s", diff)
	}
	if tilt.Last() != 40 {
		t.Fatalf("tilt = %d, want 40", tilt.Last())
	}
}

func TestSelectSatisficingPrefersBetterMove(t *testing.T) {
	// desired 12, epsilon 3: d2d4 (delta 10) already meets 9 and ranks above g1f3.
	sel := NewSelector(models.DefaultSelectorParams(), &fixedSampler{value: 12})
	got := sel.Select(scenarioA, tier30(), &Tilt{})
	if got.Move != "d2d4" || got.AttributedCPL != 10 {
		t.Fatalf("Select = %+v, want d2d4/10", got)
	}
}

func TestSelectLowDesiredTakesBest(t *testing.T) {
	sel := NewSelector(models.DefaultSelectorParams(), &fixedSampler{value: -25})
	got := sel.Select(scenarioA, tier30(), &Tilt{last: 80})
	if got.Move != "e2e4" || got.AttributedCPL != 0 {
		t.Fatalf("Select = %+v, want best move with zero loss", got)
	}
}

func TestSelectFallsBackToNearest(t *testing.T) {
	cands := []models.AnalysisLine{
		{Move: "a", Score: 100},
		{Move: "b", Score: 60},
		{Move: "c", Score: 60},
	}
	sel := NewSelector(models.DefaultSelectorParams(), &fixedSampler{value: 200})
	tilt := &Tilt{}
	got := sel.Select(cands, tier30(), tilt)
	if got.Move != "b" || got.AttributedCPL != 40 {
		t.Fatalf("Select = %+v, want first nearest b/40", got)
	}
	if tilt.Last() != 40 {
		t.Fatalf("tilt = %d, want 40", tilt.Last())
	}
}

func TestSelectPerfectTier(t *testing.T) {
	perfect := models.SkillTier{Name: "perfect", Depth: 18, Breadth: 4, TargetCPL: 1, Perfect: true}
	sampler := &fixedSampler{value: 500}
	sel := NewSelector(models.DefaultSelectorParams(), sampler)
	tilt := &Tilt{last: 300}

	got := sel.Select(scenarioA, perfect, tilt)
	if got.Move != "e2e4" || got.AttributedCPL != 0 {
		t.Fatalf("Select perfect = %+v, want e2e4/0", got)
	}
	if tilt.Last() != 0 {
		t.Fatalf("perfect tier should reset tilt, got %d", tilt.Last())
	}
	if len(sampler.calls) != 0 {
		t.Fatalf("perfect tier should not sample")
	}
}

func TestSelectSingleCandidate(t *testing.T) {
	for _, desired := range []float64{0, 30, 400} {
		sel := NewSelector(models.DefaultSelectorParams(), &fixedSampler{value: desired})
		got := sel.Select([]models.AnalysisLine{{Move: "h2h3", Score: -70}}, tier30(), &Tilt{})
		if got.Move != "h2h3" || got.AttributedCPL != 0 {
			t.Fatalf("desired %v: Select = %+v, want h2h3/0", desired, got)
		}
	}
}

func TestSelectNeverNegativeLoss(t *testing.T) {
	// Out-of-order scores (re-evaluation noise) must not yield negative loss.
	cands := []models.AnalysisLine{
		{Move: "a", Score: 10},
		{Move: "b", Score: 25},
		{Move: "c", Score: -models.MateScore},
	}
	sel := NewSelector(models.DefaultSelectorParams(), NewGaussianSampler(7))
	for i := 0; i < 200; i++ {
		got := sel.Select(cands, tier30(), &Tilt{})
		if got.AttributedCPL < 0 {
			t.Fatalf("negative loss: %+v", got)
		}
	}
}

func TestSelectReproducibleWithSeed(t *testing.T) {
	run := func() []models.SelectionResult {
		sel := NewSelector(models.DefaultSelectorParams(), NewGaussianSampler(1234))
		tilt := &Tilt{}
		var out []models.SelectionResult
		for i := 0; i < 50; i++ {
			out = append(out, sel.Select(scenarioA, tier30(), tilt))
		}
		return out
	}
	if diff := cmp.Diff(run(), run()); diff != "" {
		t.Fatalf("seeded selector not reproducible (-first +second):\n%s", diff)
	}
}

func TestSigmaTiltBonus(t *testing.T) {
	sel := NewSelector(models.DefaultSelectorParams(), &fixedSampler{})
	calm := sel.Sigma(tier30(), 70, 0)
	tilted := sel.Sigma(tier30(), 70, 120)
	if tilted <= calm {
		t.Fatalf("sigma after a 120 loss = %v, want > %v", tilted, calm)
	}
	if sel.Sigma(tier30(), 70, 119) != calm {
		t.Fatalf("tilt below threshold should not change sigma")
	}
}

func TestSelectTiltWidensNextSample(t *testing.T) {
	sampler := &fixedSampler{value: 130}
	sel := NewSelector(models.DefaultSelectorParams(), sampler)
	tilt := &Tilt{}

	blunder := []models.AnalysisLine{{Move: "a", Score: 200}, {Move: "b", Score: 60}}
	if got := sel.Select(blunder, tier30(), tilt); got.AttributedCPL != 140 {
		t.Fatalf("first Select = %+v, want loss 140", got)
	}
	sel.Select(blunder, tier30(), tilt)
	sel.Select(blunder, tier30(), &Tilt{})

	if len(sampler.calls) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(sampler.calls))
	}
	if sampler.calls[1] <= sampler.calls[2] {
		t.Fatalf("sigma after blunder %v should exceed untilted %v", sampler.calls[1], sampler.calls[2])
	}
}

func TestSigmaScaling(t *testing.T) {
	sel := NewSelector(models.DefaultSelectorParams(), &fixedSampler{})
	cases := []struct {
		name   string
		target int
		spread int
		want   float64
	}{
		{"floor", 1, 0, 4},
		{"low tier k", 30, 0, 7.5},
		{"high tier k", 40, 0, 14},
		{"spread adds", 30, 100, 17.5},
		{"spread capped", 30, 5000, 37.5},
		{"mate spread capped", 70, 2 * models.MateScore, 24.5 + 30},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tier := models.SkillTier{Name: "x", Depth: 1, Breadth: 1, TargetCPL: tc.target}
			if got := sel.Sigma(tier, tc.spread, 0); got != tc.want {
				t.Fatalf("Sigma = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEpsilon(t *testing.T) {
	sel := NewSelector(models.DefaultSelectorParams(), &fixedSampler{})
	if got := sel.Epsilon(tier30()); got != 3 {
		t.Fatalf("Epsilon(30) = %v, want 3", got)
	}
	if got := sel.Epsilon(models.SkillTier{TargetCPL: 70}); got != 7 {
		t.Fatalf("Epsilon(70) = %v, want 7", got)
	}
}
