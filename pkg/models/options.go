package models

// CostTier classifies a strategy's resource cost per § 4.7.2.
type CostTier string

const (
	TierIntelligence CostTier = "intelligence"
	TierLightweight  CostTier = "lightweight"
	TierPlaywright   CostTier = "playwright"
)

// tierRank orders tiers for maxCostTier comparisons (higher rank = more expensive).
var tierRank = map[CostTier]int{
	TierIntelligence: 0,
	TierLightweight:  1,
	TierPlaywright:   2,
}

// Allows reports whether a strategy at tier `want` may run under a cap `max`.
func (max CostTier) Allows(want CostTier) bool {
	if max == "" {
		return true
	}
	return tierRank[want] <= tierRank[max]
}

// VerifyOptions configures the Verification Engine (C8) for one request.
type VerifyOptions struct {
	Enabled        bool
	Mode           RunMode
	ValidateSchema bool
	Schema         map[string]interface{}
	Checks         []VerificationCheck
}

// SessionOptions seeds cookies/localStorage before any fetch for a request.
type SessionOptions struct {
	Cookies      []Cookie
	LocalStorage map[string]string
}

// Cookie is one cookie applied to every request of a session.
type Cookie struct {
	Name   string
	Value  string
	Domain string
}

// ExtractOptions is the full recognized option set of extract(url, options)
// from § 6.1.
type ExtractOptions struct {
	TimeoutMs         int64
	MinContentLength  int
	ForceStrategy     string
	SkipStrategies    []string
	AllowBrowser      bool
	MaxLatencyMs      int64
	MaxCostTier       CostTier
	Headers           map[string]string
	UserAgent         string
	Verify            VerifyOptions
	Session           *SessionOptions
	// Tenant overrides the engine's configured default tenant id for this
	// request; empty means "use the default tenant". It prefixes every
	// cache/persistence key this request touches, per § 6.5.
	Tenant            string
	OnChallengeDetected func(info string) bool
	OnExtractionSuccess func(ExtractionSuccessEvent)
}

// EffectiveMinContentLength applies § 4.7.3 rule 1: 500 by default, 100 when
// forceStrategy is set, unless the caller set an explicit MinContentLength.
func (o ExtractOptions) EffectiveMinContentLength() int {
	if o.MinContentLength > 0 {
		return o.MinContentLength
	}
	if o.ForceStrategy != "" {
		return 100
	}
	return 500
}

// NewExtractOptions returns an ExtractOptions with every documented default applied.
func NewExtractOptions() ExtractOptions {
	return ExtractOptions{
		TimeoutMs:        60000,
		MinContentLength: 500,
		AllowBrowser:     true,
		Verify: VerifyOptions{
			Enabled: true,
			Mode:    RunModeStandard,
		},
	}
}
