package contracts

// DenominatorMode selects what "percent known" is measured against
type DenominatorMode string

const (
	// DenominatorTotal measures known tickers against the whole roster
	DenominatorTotal DenominatorMode = "total"
	// DenominatorEligible measures known tickers against tickers with any data
	DenominatorEligible DenominatorMode = "eligible"
)

// UniverseItem is one configured ticker of a universe (deck)
type UniverseItem struct {
	Ticker         string            `yaml:"ticker" json:"ticker"`
	ProviderSymbol string            `yaml:"provider_symbol" json:"providerSymbol"`
	Name           string            `yaml:"name" json:"name,omitempty"`
	Group          string            `yaml:"group" json:"group,omitempty"`
	Tags           []string          `yaml:"tags" json:"tags,omitempty"`
	Display        map[string]string `yaml:"display" json:"display,omitempty"`
}

// Symbol returns the provider symbol, falling back to the ticker
func (i UniverseItem) Symbol() string {
	if i.ProviderSymbol != "" {
		return i.ProviderSymbol
	}
	return i.Ticker
}

// Universe is an ordered roster of tickers plus its validity settings
type Universe struct {
	ID               string          `yaml:"id" json:"id"`
	Name             string          `yaml:"name" json:"name"`
	DenominatorMode  DenominatorMode `yaml:"denominator_mode" json:"denominatorMode"`
	MinEligibleCount int             `yaml:"min_eligible_count" json:"minEligibleCount"`
	MinKnownPct      float64         `yaml:"min_known_pct" json:"minKnownPct,omitempty"`
	GroupHistory     bool            `yaml:"group_history" json:"groupHistory"`
	Items            []UniverseItem  `yaml:"items" json:"items"`
}

// Size returns the roster size
func (u *Universe) Size() int {
	return len(u.Items)
}

// Groups returns distinct non-empty groups in roster order
func (u *Universe) Groups() []string {
	seen := make(map[string]bool)
	groups := make([]string, 0)
	for _, item := range u.Items {
		if item.Group == "" || seen[item.Group] {
			continue
		}
		seen[item.Group] = true
		groups = append(groups, item.Group)
	}
	return groups
}

// Subset returns a copy of the universe restricted to one group
func (u *Universe) Subset(group string) *Universe {
	sub := *u
	sub.Items = make([]UniverseItem, 0)
	for _, item := range u.Items {
		if item.Group == group {
			sub.Items = append(sub.Items, item)
		}
	}
	return &sub
}
