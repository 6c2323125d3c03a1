package tiktok

import (
	"github.com/lisanmuaddib/trendscout/pkg/profiles"
)

// trendingResponse is one page of the trending feed.
type trendingResponse struct {
	StatusCode int            `json:"statusCode"`
	StatusMsg  string         `json:"statusMsg"`
	ItemList   []trendingItem `json:"itemList"`
	HasMore    bool           `json:"hasMore"`
	Cursor     string         `json:"cursor"`
}

// trendingItem is a single trending video; only the author payload matters
// here.
type trendingItem struct {
	ID          string      `json:"id"`
	Author      author      `json:"author"`
	AuthorStats authorStats `json:"authorStats"`
}

// author carries the creator fields the web API exposes on a video. The API
// has shipped several shapes over time, so both avatar sizes are kept and the
// stats block tolerates the old "heart" key next to "heartCount".
type author struct {
	ID           string `json:"id"`
	UniqueID     string `json:"uniqueId"`
	Nickname     string `json:"nickname"`
	Signature    string `json:"signature"`
	Verified     bool   `json:"verified"`
	AvatarLarger string `json:"avatarLarger"`
	AvatarThumb  string `json:"avatarThumb"`
}

type authorStats struct {
	FollowerCount  int64 `json:"followerCount"`
	FollowingCount int64 `json:"followingCount"`
	Heart          int64 `json:"heart"`
	HeartCount     int64 `json:"heartCount"`
	VideoCount     int64 `json:"videoCount"`
}

// profile maps a trending item's author onto the canonical record, resolving
// the field variants the API is known to serve.
func (it trendingItem) profile() profiles.Profile {
	id := it.Author.ID
	if id == "" {
		id = it.Author.UniqueID
	}

	likes := it.AuthorStats.HeartCount
	if likes == 0 {
		likes = it.AuthorStats.Heart
	}

	avatar := it.Author.AvatarLarger
	if avatar == "" {
		avatar = it.Author.AvatarThumb
	}

	return profiles.Normalize(profiles.Profile{
		ID:             id,
		Username:       it.Author.UniqueID,
		DisplayName:    it.Author.Nickname,
		Bio:            it.Author.Signature,
		FollowerCount:  it.AuthorStats.FollowerCount,
		FollowingCount: it.AuthorStats.FollowingCount,
		TotalLikes:     likes,
		VideoCount:     it.AuthorStats.VideoCount,
		Verified:       it.Author.Verified,
		AvatarURL:      avatar,
	})
}
