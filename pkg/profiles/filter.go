package profiles

import (
	"fmt"
	"sort"
)

// FilterConfig holds the thresholds a profile must clear before it is
// announced.
type FilterConfig struct {
	// MinFollowers drops profiles below this follower count; 0 disables
	// the check
	MinFollowers int64

	// MinEngagementRate drops profiles whose likes-to-followers percentage
	// is below this value; 0 disables the check
	MinEngagementRate float64

	// VerifiedOnly keeps only platform-verified accounts
	VerifiedOnly bool

	// ExcludePosted drops profiles already present in the announcement
	// ledger
	ExcludePosted bool
}

func (c FilterConfig) Validate() error {
	if c.MinFollowers < 0 {
		return fmt.Errorf("min followers cannot be negative, got %d", c.MinFollowers)
	}
	if c.MinEngagementRate < 0 {
		return fmt.Errorf("min engagement rate cannot be negative, got %v", c.MinEngagementRate)
	}
	return nil
}

// Apply runs the full filtering pipeline over a scraped batch. The stages are
// order-sensitive: normalize, dedupe by ID (first occurrence wins), follower
// threshold, engagement threshold, verified-only, ledger exclusion, then a
// stable sort by follower count descending. Inputs are never mutated; the
// returned slice may be empty but is never nil.
func Apply(records []Profile, cfg FilterConfig, posted map[string]struct{}) []Profile {
	normalized := make([]Profile, 0, len(records))
	for _, p := range records {
		normalized = append(normalized, Normalize(p))
	}

	deduped := Dedupe(normalized)

	out := make([]Profile, 0, len(deduped))
	for _, p := range deduped {
		if cfg.MinFollowers > 0 && p.FollowerCount < cfg.MinFollowers {
			continue
		}
		if cfg.MinEngagementRate > 0 && EngagementRate(p) < cfg.MinEngagementRate {
			continue
		}
		if cfg.VerifiedOnly && !p.Verified {
			continue
		}
		if cfg.ExcludePosted {
			if _, ok := posted[p.ID]; ok {
				continue
			}
		}
		out = append(out, p)
	}

	// Equal follower counts keep their relative order from the dedupe stage.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FollowerCount > out[j].FollowerCount
	})

	return out
}
