package bot

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

const (
	joinPrefix   = "rally_join"
	cancelPrefix = "rally_cancel"
)

// rallyComponents builds the join/cancel buttons attached to a rally post.
func rallyComponents(rallyID string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			&discordgo.Button{
				CustomID: joinPrefix + "|" + rallyID,
				Label:    "Join Rally",
				Style:    discordgo.SuccessButton,
			},
			&discordgo.Button{
				CustomID: cancelPrefix + "|" + rallyID,
				Label:    "Cancel",
				Style:    discordgo.DangerButton,
			},
		}},
	}
}

// handleComponent routes button presses on rally posts
func (b *Bot) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	cid := i.MessageComponentData().CustomID
	parts := strings.SplitN(cid, "|", 2)
	if len(parts) != 2 {
		return
	}
	action, rallyID := parts[0], parts[1]
	user := interactionUser(i)

	switch action {
	case joinPrefix:
		b.handleJoin(s, i, rallyID, user.ID)
	case cancelPrefix:
		b.handleCancel(s, i, rallyID, user.ID)
	}
}

func (b *Bot) handleJoin(s *discordgo.Session, i *discordgo.InteractionCreate, rallyID, userID string) {
	res, err := b.registry.Join(rallyID, userID)
	if err != nil {
		respondEphemeral(s, i, rallyErrorMessage(err))
		if !isUserError(err) {
			b.log.Error().Err(err).Str("rally", rallyID).Str("user", userID).Msg("join failed")
		}
		return
	}

	if res.Completed {
		respondEphemeral(s, i, fmt.Sprintf("You filled the rally! The %s rally is heading out. +%d points.",
			res.Rally.LevelName, res.Rally.Points))
		return
	}

	respondEphemeral(s, i, fmt.Sprintf("You joined the %s rally (%d/%d). +%d points.",
		res.Rally.LevelName, len(res.Rally.Participants), res.Rally.Capacity, res.Rally.Points))
}

func (b *Bot) handleCancel(s *discordgo.Session, i *discordgo.InteractionCreate, rallyID, userID string) {
	_, err := b.registry.Cancel(rallyID, userID, isAdmin(i))
	if err != nil {
		respondEphemeral(s, i, rallyErrorMessage(err))
		return
	}

	respondEphemeral(s, i, "Rally cancelled.")
}
