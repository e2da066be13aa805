package entitlements

import (
	"strings"
	"time"
)

type Tier string

const (
	TierFree     Tier = "free"
	TierPro      Tier = "pro"
	TierInvestor Tier = "investor"
)

// BoostDuration is the visibility window bought by a single boost unit.
const BoostDuration = 7 * 24 * time.Hour

// Unbounded is the max-listings value for tiers without a listing cap.
const Unbounded = -1

func NormalizeTier(tier string) Tier {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case string(TierPro):
		return TierPro
	case string(TierInvestor):
		return TierInvestor
	default:
		return TierFree
	}
}

func TierRank(tier Tier) int {
	switch NormalizeTier(string(tier)) {
	case TierInvestor:
		return 2
	case TierPro:
		return 1
	default:
		return 0
	}
}

// MaxActiveListings returns how many active listings a tier allows,
// or Unbounded.
func MaxActiveListings(tier Tier) int {
	switch NormalizeTier(string(tier)) {
	case TierInvestor:
		return Unbounded
	case TierPro:
		return 3
	default:
		return 1
	}
}
