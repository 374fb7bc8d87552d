package models

// SkillTier bundles the search limits and target loss used to emulate one playing strength.
type SkillTier struct {
	Name      string `json:"name"`
	Depth     int    `json:"depth"`
	Breadth   int    `json:"breadth"`
	TargetCPL int    `json:"target_cpl"`
	Perfect   bool   `json:"perfect"`
}

// SelectorParams are the tuning constants of the move selector.
type SelectorParams struct {
	BaseSigmaMin  float64 `json:"base_sigma_min"`
	LowTierK      float64 `json:"low_tier_k"`
	HighTierK     float64 `json:"high_tier_k"`
	HighTierFrom  int     `json:"high_tier_from"` // target CPL at which HighTierK starts
	SpreadFactor  float64 `json:"spread_factor"`
	SpreadCap     float64 `json:"spread_cap"`
	TiltThreshold int     `json:"tilt_threshold"` // inclusive
	TiltBonus     float64 `json:"tilt_bonus"`
	EpsilonMin    float64 `json:"epsilon_min"`
	EpsilonFactor float64 `json:"epsilon_factor"`
}

func DefaultSelectorParams() SelectorParams {
	return SelectorParams{
		BaseSigmaMin:  4,
		LowTierK:      0.25,
		HighTierK:     0.35,
		HighTierFrom:  40,
		SpreadFactor:  0.10,
		SpreadCap:     30,
		TiltThreshold: 120,
		TiltBonus:     20,
		EpsilonMin:    3,
		EpsilonFactor: 0.10,
	}
}
