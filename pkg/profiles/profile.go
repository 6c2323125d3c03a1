// Package profiles defines the canonical creator-profile record and the pure
// filtering pipeline applied between scraping and posting.
package profiles

import (
	"fmt"
	"strings"
)

// Profile is the normalized representation of one creator account on the
// source platform.
type Profile struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	DisplayName    string `json:"display_name"`
	Bio            string `json:"bio"`
	FollowerCount  int64  `json:"follower_count"`
	FollowingCount int64  `json:"following_count"`
	TotalLikes     int64  `json:"total_likes"`
	VideoCount     int64  `json:"video_count"`
	Verified       bool   `json:"verified"`
	ProfileURL     string `json:"profile_url"`
	AvatarURL      string `json:"avatar_url"`
}

// EngagementRate returns total likes relative to followers, as a percentage.
// A profile with zero followers has an engagement rate of zero; the ratio is
// undefined and such accounts are not meaningfully comparable anyway.
func EngagementRate(p Profile) float64 {
	if p.FollowerCount <= 0 {
		return 0
	}
	return float64(p.TotalLikes) / float64(p.FollowerCount) * 100
}

// Normalize returns a copy of p with source-variant fields mapped onto the
// canonical schema: usernames are stripped of a leading "@", the profile URL
// is derived from the username when the source omitted it, and negative
// counters from partial API payloads are clamped to zero.
func Normalize(p Profile) Profile {
	p.Username = strings.TrimPrefix(strings.TrimSpace(p.Username), "@")
	if p.Username == "" {
		p.Username = strings.TrimSpace(p.DisplayName)
	}

	if p.ProfileURL == "" && p.Username != "" {
		p.ProfileURL = fmt.Sprintf("https://www.tiktok.com/@%s", p.Username)
	}

	if p.FollowerCount < 0 {
		p.FollowerCount = 0
	}
	if p.FollowingCount < 0 {
		p.FollowingCount = 0
	}
	if p.TotalLikes < 0 {
		p.TotalLikes = 0
	}
	if p.VideoCount < 0 {
		p.VideoCount = 0
	}

	return p
}

// Dedupe removes records sharing an ID, keeping the first occurrence. The
// input slice is never modified.
func Dedupe(records []Profile) []Profile {
	seen := make(map[string]struct{}, len(records))
	out := make([]Profile, 0, len(records))

	for _, p := range records {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}

	return out
}
