package bot

import (
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/avatarrealms/arc-bot/internal/rally"
	"github.com/avatarrealms/arc-bot/internal/store"
)

var (
	setupPermission = int64(discordgo.PermissionManageServer)
	noDMs           = false

	levelMin float64 = 1
	levelMax float64 = 6
	timerMin float64 = 1
	timerMax float64 = 1440
)

// Slash command definitions
func (b *Bot) getCommandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "setup",
			Description:              "Choose the channel where rally posts appear (admin only)",
			DefaultMemberPermissions: &setupPermission,
			DMPermission:             &noDMs,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "The channel to post rallies in",
					Required:    true,
					ChannelTypes: []discordgo.ChannelType{
						discordgo.ChannelTypeGuildText,
					},
				},
			},
		},
		{
			Name:         "rally",
			Description:  "Start a rally against a fortress",
			DMPermission: &noDMs,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "level",
					Description: "Fortress level (1-6)",
					Required:    true,
					MinValue:    &levelMin,
					MaxValue:    levelMax,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "time_limit",
					Description: "How long the rally stays open",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "5 minutes", Value: 5},
						{Name: "15 minutes", Value: 15},
						{Name: "30 minutes", Value: 30},
						{Name: "1 hour", Value: 60},
					},
				},
			},
		},
		{
			Name:        "rally_stats",
			Description: "Show your rally participation stats",
		},
		{
			Name:        "rally_leaderboard",
			Description: "Show the top rally point earners",
		},
		{
			Name:        "timer",
			Description: "Set a personal reminder timer",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "minutes",
					Description: "Minutes until the reminder",
					Required:    true,
					MinValue:    &timerMin,
					MaxValue:    timerMax,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "label",
					Description: "What the timer is for",
				},
			},
		},
		{
			Name:        "timers",
			Description: "List your pending timers",
		},
		{
			Name:        "botstats",
			Description: "Show bot command usage",
		},
	}
}

// registerCommands registers all slash commands with Discord
func (b *Bot) registerCommands() error {
	b.log.Info().Msg("registering slash commands")

	commandDefinitions := b.getCommandDefinitions()
	registeredCommands := make([]*discordgo.ApplicationCommand, 0, len(commandDefinitions))

	for _, cmd := range commandDefinitions {
		registered, err := b.session.ApplicationCommandCreate(
			b.session.State.User.ID,
			"", // Empty string = global command
			cmd,
		)
		if err != nil {
			return fmt.Errorf("failed to register command %s: %w", cmd.Name, err)
		}
		registeredCommands = append(registeredCommands, registered)
		b.log.Debug().Str("name", cmd.Name).Msg("registered command")
	}

	b.commands = registeredCommands
	b.log.Info().Int("count", len(registeredCommands)).Msg("slash commands registered")
	return nil
}

// handleSetup handles the /setup command
func (b *Bot) handleSetup(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !isAdmin(i) {
		respondEphemeral(s, i, "You need the Manage Server permission to configure the rally channel.")
		return
	}

	channel := i.ApplicationCommandData().Options[0].ChannelValue(s)

	if err := b.bindings.Set(i.GuildID, channel.ID); err != nil {
		b.log.Error().Err(err).Str("guild", i.GuildID).Msg("failed to save channel binding")
		respondEphemeral(s, i, "Failed to save the rally channel. Please try again.")
		return
	}

	respondEphemeral(s, i, fmt.Sprintf("Rally posts will be sent to <#%s>.", channel.ID))
}

// handleRally handles the /rally command
func (b *Bot) handleRally(s *discordgo.Session, i *discordgo.InteractionCreate) {
	options := i.ApplicationCommandData().Options
	level := int(options[0].IntValue())
	timeLimit := time.Duration(options[1].IntValue()) * time.Minute
	user := interactionUser(i)

	r, err := b.registry.Create(i.GuildID, user.ID, level, timeLimit)
	if err != nil {
		respondEphemeral(s, i, rallyErrorMessage(err))
		if !isUserError(err) {
			b.log.Error().Err(err).Str("guild", i.GuildID).Msg("failed to create rally")
		}
		return
	}

	// Post the public rally message with its join/cancel controls.
	msg, err := s.ChannelMessageSendComplex(r.ChannelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{rallyEmbed(r, false)},
		Components: rallyComponents(r.ID),
	})
	if err != nil {
		b.log.Error().Err(err).Str("rally", r.ID).Msg("failed to post rally message")
		// Without a public post nobody can join; withdraw the rally.
		b.registry.Cancel(r.ID, r.CreatorID, false)
		respondEphemeral(s, i, "Failed to post the rally. Check that I can send messages in the rally channel.")
		return
	}
	if !b.registry.SetMessage(r.ID, msg.ID) {
		// The rally resolved before the post landed; clean the post up.
		s.ChannelMessageDelete(r.ChannelID, msg.ID)
	}

	respondEphemeral(s, i, fmt.Sprintf("%s rally opened in <#%s>. It expires <t:%d:R>.",
		r.LevelName, r.ChannelID, r.ExpiresAt.Unix()))
}

// handleRallyStats handles the /rally_stats command
func (b *Bot) handleRallyStats(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := interactionUser(i)

	rec, ok := b.ledger.Stats(user.ID)
	if !ok {
		respondEphemeral(s, i, "You haven't created or joined any rallies yet. Start one with `/rally`!")
		return
	}

	respondEmbedEphemeral(s, i, statsEmbed(user, rec))
}

// handleRallyLeaderboard handles the /rally_leaderboard command
func (b *Bot) handleRallyLeaderboard(s *discordgo.Session, i *discordgo.InteractionCreate) {
	entries := b.ledger.TopN(10)
	if len(entries) == 0 {
		respondWithMessage(s, i, "Nobody has earned rally points yet.")
		return
	}

	respondEmbed(s, i, leaderboardEmbed(entries))
}

// handleTimer handles the /timer command
func (b *Bot) handleTimer(s *discordgo.Session, i *discordgo.InteractionCreate) {
	options := i.ApplicationCommandData().Options
	minutes := options[0].IntValue()
	label := "Timer"
	if len(options) > 1 {
		label = options[1].StringValue()
	}
	user := interactionUser(i)

	now := time.Now()
	timer := store.Timer{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Label:     label,
		CreatedAt: now,
		EndsAt:    now.Add(time.Duration(minutes) * time.Minute),
	}

	if err := b.timers.Add(timer); err != nil {
		b.log.Error().Err(err).Str("user", user.ID).Msg("failed to save timer")
		respondEphemeral(s, i, "Failed to save your timer. Please try again.")
		return
	}

	respondEphemeral(s, i, fmt.Sprintf("I'll DM you about **%s** <t:%d:R>.", label, timer.EndsAt.Unix()))
}

// handleTimers handles the /timers command
func (b *Bot) handleTimers(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := interactionUser(i)

	timers := b.timers.ByUser(user.ID)
	if len(timers) == 0 {
		respondEphemeral(s, i, "You have no pending timers. Set one with `/timer`!")
		return
	}

	respondEmbedEphemeral(s, i, timersEmbed(timers))
}

// handleBotStats handles the /botstats command
func (b *Bot) handleBotStats(s *discordgo.Session, i *discordgo.InteractionCreate) {
	counts := b.usage.Counts()
	if len(counts) == 0 {
		respondWithMessage(s, i, "No commands recorded yet.")
		return
	}

	respondEmbed(s, i, usageEmbed(counts))
}

// rallyErrorMessage turns a registry error into a user-facing reply. Each
// rejection gets its own message so the user can correct their action.
func rallyErrorMessage(err error) string {
	switch {
	case errors.Is(err, rally.ErrInvalidLevel):
		return "Fortress level must be between 1 and 6."
	case errors.Is(err, rally.ErrInvalidTimeLimit):
		return "Time limit must be 5, 15 or 30 minutes, or 1 hour."
	case errors.Is(err, rally.ErrNotConfigured):
		return "No rally channel is configured. Ask an admin to run `/setup` first."
	case errors.Is(err, rally.ErrNotFound):
		return "This rally is no longer active."
	case errors.Is(err, rally.ErrSelfJoin):
		return "You can't join your own rally."
	case errors.Is(err, rally.ErrAlreadyJoined):
		return "You already joined this rally."
	case errors.Is(err, rally.ErrFull):
		return "This rally is already full."
	case errors.Is(err, rally.ErrPermissionDenied):
		return "Only the rally creator or an admin can cancel this rally."
	default:
		return "Something went wrong. Please try again."
	}
}

// isUserError reports whether err is a business-rule rejection rather than
// an operational failure worth logging.
func isUserError(err error) bool {
	for _, userErr := range []error{
		rally.ErrInvalidLevel, rally.ErrInvalidTimeLimit, rally.ErrNotConfigured,
		rally.ErrNotFound, rally.ErrSelfJoin, rally.ErrAlreadyJoined,
		rally.ErrFull, rally.ErrPermissionDenied,
	} {
		if errors.Is(err, userErr) {
			return true
		}
	}
	return false
}

// Helper functions

func respondWithMessage(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
		},
	})
}

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func respondEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	})
}

func respondEmbedEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
}
