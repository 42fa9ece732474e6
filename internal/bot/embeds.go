package bot

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/avatarrealms/arc-bot/internal/rally"
	"github.com/avatarrealms/arc-bot/internal/store"
)

const (
	colorRecruiting = 0x3498db
	colorComplete   = 0x2ecc71
	colorGold       = 0xf1c40f
)

// rallyEmbed renders the public rally post.
func rallyEmbed(r rally.Rally, complete bool) *discordgo.MessageEmbed {
	title := fmt.Sprintf("Rally: %s", r.LevelName)
	color := colorRecruiting
	status := fmt.Sprintf("Recruiting — expires <t:%d:R>", r.ExpiresAt.Unix())
	if complete {
		title = fmt.Sprintf("Rally complete: %s", r.LevelName)
		color = colorComplete
		status = "Full — heading out!"
	}

	participants := "*Nobody yet*"
	if len(r.Participants) > 0 {
		mentions := make([]string, len(r.Participants))
		for idx, p := range r.Participants {
			mentions[idx] = "<@" + p + ">"
		}
		participants = strings.Join(mentions, "\n")
	}

	return &discordgo.MessageEmbed{
		Title: title,
		Color: color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Leader", Value: "<@" + r.CreatorID + ">", Inline: true},
			{Name: "Reward", Value: fmt.Sprintf("%d points", r.Points), Inline: true},
			{
				Name:   fmt.Sprintf("Participants (%d/%d)", len(r.Participants), r.Capacity),
				Value:  participants,
				Inline: false,
			},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: status},
	}
}

// statsEmbed renders a user's ledger record.
func statsEmbed(user *discordgo.User, rec store.Record) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Rally stats for %s", user.Username),
		Color: colorRecruiting,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Rallies created", Value: fmt.Sprintf("%d", rec.RalliesCreated), Inline: true},
			{Name: "Rallies joined", Value: fmt.Sprintf("%d", rec.RalliesJoined), Inline: true},
			{Name: "Total rallies", Value: fmt.Sprintf("%d", rec.TotalRallies), Inline: true},
			{Name: "Points earned", Value: fmt.Sprintf("%d", rec.PointsEarned), Inline: true},
		},
	}
}

// leaderboardEmbed renders the top point earners.
func leaderboardEmbed(entries []store.Entry) *discordgo.MessageEmbed {
	var sb strings.Builder
	for idx, entry := range entries {
		sb.WriteString(fmt.Sprintf("%d. <@%s> — **%d** points (%d rallies)\n",
			idx+1, entry.UserID, entry.PointsEarned, entry.TotalRallies))
	}

	return &discordgo.MessageEmbed{
		Title:       "Rally Leaderboard",
		Color:       colorGold,
		Description: sb.String(),
	}
}

// timersEmbed renders a user's pending timers.
func timersEmbed(timers []store.Timer) *discordgo.MessageEmbed {
	var sb strings.Builder
	for _, timer := range timers {
		sb.WriteString(fmt.Sprintf("**%s** — done <t:%d:R>\n", timer.Label, timer.EndsAt.Unix()))
	}

	return &discordgo.MessageEmbed{
		Title:       "Your timers",
		Color:       colorRecruiting,
		Description: sb.String(),
	}
}

// usageEmbed renders the command usage counters.
func usageEmbed(counts []store.CommandCount) *discordgo.MessageEmbed {
	var sb strings.Builder
	for _, count := range counts {
		sb.WriteString(fmt.Sprintf("`/%s` — %d\n", count.Command, count.Count))
	}

	return &discordgo.MessageEmbed{
		Title:       "Command usage",
		Color:       colorRecruiting,
		Description: sb.String(),
	}
}
