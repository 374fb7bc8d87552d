package app

import (
	"encoding/json"
	"fmt"
	"os"

	"example/cpl-trainer/app/config"
	"example/cpl-trainer/app/models"
)

// HumanEvalMinBreadth is the least number of lines ranked when scoring a
// human move, whatever the tier asks for.
const HumanEvalMinBreadth = 6

// DefaultTiers is the built-in skill table. Higher targets search shallower
// and wider so that plausible bad alternatives exist.
func DefaultTiers() []models.SkillTier {
	return []models.SkillTier{
		{Name: "perfect", Depth: 18, Breadth: 4, TargetCPL: 1, Perfect: true},
		{Name: "cpl15", Depth: 14, Breadth: 6, TargetCPL: 15},
		{Name: "cpl30", Depth: 12, Breadth: 8, TargetCPL: 30},
		{Name: "cpl40", Depth: 10, Breadth: 10, TargetCPL: 40},
		{Name: "cpl55", Depth: 9, Breadth: 12, TargetCPL: 55},
		{Name: "cpl70", Depth: 8, Breadth: 14, TargetCPL: 70},
	}
}

// TierTable is an immutable, validated set of skill tiers.
type TierTable struct {
	order []string
	tiers map[string]models.SkillTier
	deflt string
}

// NewTierTable validates tiers and picks defaultName as the fallback tier.
func NewTierTable(tiers []models.SkillTier, defaultName string) (*TierTable, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("%w: empty tier table", ErrInvalidTier)
	}
	t := &TierTable{tiers: make(map[string]models.SkillTier, len(tiers))}
	for _, tier := range tiers {
		if err := ValidateTier(tier); err != nil {
			return nil, err
		}
		if _, dup := t.tiers[tier.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate tier %q", ErrInvalidTier, tier.Name)
		}
		t.tiers[tier.Name] = tier
		t.order = append(t.order, tier.Name)
	}
	if defaultName == "" {
		defaultName = t.order[0]
	}
	if _, ok := t.tiers[defaultName]; !ok {
		return nil, fmt.Errorf("%w: default %q", ErrUnknownTier, defaultName)
	}
	t.deflt = defaultName
	return t, nil
}

// ValidateTier rejects non-positive depth/breadth and negative targets.
func ValidateTier(tier models.SkillTier) error {
	switch {
	case tier.Name == "":
		return fmt.Errorf("%w: missing name", ErrInvalidTier)
	case tier.Depth <= 0:
		return fmt.Errorf("%w: %s: depth must be positive, got %d", ErrInvalidTier, tier.Name, tier.Depth)
	case tier.Breadth <= 0:
		return fmt.Errorf("%w: %s: breadth must be positive, got %d", ErrInvalidTier, tier.Name, tier.Breadth)
	case tier.TargetCPL < 0:
		return fmt.Errorf("%w: %s: target_cpl must be non-negative, got %d", ErrInvalidTier, tier.Name, tier.TargetCPL)
	}
	return nil
}

// LoadTierTable reads TIERS_FILE when set, otherwise uses DefaultTiers.
func LoadTierTable(cfg config.TierConfig) (*TierTable, error) {
	tiers := DefaultTiers()
	if cfg.File != "" {
		data, err := os.ReadFile(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("reading tiers file: %w", err)
		}
		tiers = nil
		if err := json.Unmarshal(data, &tiers); err != nil {
			return nil, fmt.Errorf("parsing tiers file %s: %w", cfg.File, err)
		}
	}
	return NewTierTable(tiers, cfg.Default)
}

func (t *TierTable) Get(name string) (models.SkillTier, error) {
	tier, ok := t.tiers[name]
	if !ok {
		return models.SkillTier{}, fmt.Errorf("%w: %q", ErrUnknownTier, name)
	}
	return tier, nil
}

func (t *TierTable) Default() models.SkillTier {
	return t.tiers[t.deflt]
}

// All returns the tiers in configuration order.
func (t *TierTable) All() []models.SkillTier {
	out := make([]models.SkillTier, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.tiers[name])
	}
	return out
}
