package discord

import (
	"fmt"
	"strconv"

	"github.com/lisanmuaddib/trendscout/pkg/profiles"
)

// embedColor is TikTok's brand red.
const embedColor = 0xFE2C55

// BuildProfileEmbed renders a profile into the announcement embed.
func BuildProfileEmbed(p profiles.Profile) Embed {
	description := p.Bio
	if description == "" {
		description = "No bio provided."
	}

	embed := Embed{
		Title:       fmt.Sprintf("New Trending Profile: @%s", p.Username),
		URL:         p.ProfileURL,
		Description: description,
		Color:       embedColor,
		Fields: []EmbedField{
			{Name: "Followers", Value: formatCount(p.FollowerCount), Inline: true},
			{Name: "Total Likes", Value: formatCount(p.TotalLikes), Inline: true},
			{Name: "Total Videos", Value: formatCount(p.VideoCount), Inline: true},
			{Name: "Engagement Rate", Value: fmt.Sprintf("%.2f%%", profiles.EngagementRate(p)), Inline: true},
		},
	}

	if p.AvatarURL != "" {
		embed.Thumbnail = &EmbedThumbnail{URL: p.AvatarURL}
	}
	if p.DisplayName != "" {
		embed.Footer = &EmbedFooter{Text: fmt.Sprintf("Nickname: %s", p.DisplayName)}
	}

	return embed
}

// threadName builds the per-profile thread title, truncated to Discord's
// length limit.
func threadName(p profiles.Profile) string {
	name := fmt.Sprintf("@%s - %s Followers", p.Username, formatCount(p.FollowerCount))

	runes := []rune(name)
	if len(runes) > ThreadNameLimit {
		name = string(runes[:ThreadNameLimit])
	}
	return name
}

// formatCount renders n with thousands separators.
func formatCount(n int64) string {
	s := strconv.FormatInt(n, 10)

	neg := false
	if s[0] == '-' {
		neg = true
		s = s[1:]
	}

	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}

	if neg {
		return "-" + string(out)
	}
	return string(out)
}
