package bot

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/avatarrealms/arc-bot/internal/config"
	"github.com/avatarrealms/arc-bot/internal/metrics"
	"github.com/avatarrealms/arc-bot/internal/poller"
	"github.com/avatarrealms/arc-bot/internal/rally"
	"github.com/avatarrealms/arc-bot/internal/store"
)

// Bot represents the Discord bot instance
type Bot struct {
	config   *config.Config
	session  *discordgo.Session
	log      zerolog.Logger

	bindings *store.Bindings
	ledger   *store.Ledger
	timers   *store.Timers
	usage    *store.Usage

	registry *rally.Registry
	poller   *poller.Poller
	commands []*discordgo.ApplicationCommand
}

// New creates a new Bot instance
func New(cfg *config.Config, log zerolog.Logger) (*Bot, error) {
	// Create Discord session
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	// Set intents
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	// Open the JSON stores
	bindings, err := store.OpenBindings(filepath.Join(cfg.DataDir, "channel_bindings.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to open channel bindings: %w", err)
	}
	ledger, err := store.OpenLedger(filepath.Join(cfg.DataDir, "rally_ledger.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to open participation ledger: %w", err)
	}
	timers, err := store.OpenTimers(filepath.Join(cfg.DataDir, "timers.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to open timers: %w", err)
	}
	usage, err := store.OpenUsage(filepath.Join(cfg.DataDir, "usage.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to open usage counters: %w", err)
	}

	b := &Bot{
		config:   cfg,
		session:  session,
		log:      log,
		bindings: bindings,
		ledger:   ledger,
		timers:   timers,
		usage:    usage,
	}

	// The dispatcher delivers lifecycle notifications; the registry owns the
	// rally state machine.
	dispatcher := newDispatcher(session, log.With().Str("component", "dispatcher").Logger())
	b.registry = rally.NewRegistry(ledger, bindings, dispatcher, log.With().Str("component", "rally").Logger())

	// Register event handlers
	b.registerHandlers()

	return b, nil
}

// Start opens the Discord connection and starts background tasks
func (b *Bot) Start(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	b.log.Info().Str("user", b.session.State.User.Username).Msg("connected to Discord")

	// Register slash commands
	if err := b.registerCommands(); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	// Start the timer poller
	b.poller = poller.New(b.timers, b.session, b.config.TimerPollSeconds,
		b.log.With().Str("component", "poller").Logger())
	go b.poller.Start(ctx)

	return nil
}

// Stop gracefully shuts down the bot
func (b *Bot) Stop() error {
	if b.poller != nil {
		b.poller.Stop()
	}

	// Disarm pending rally expiry timers. They are not persisted: a rally
	// open across a restart stays joinable until someone cancels it.
	if b.registry != nil {
		b.registry.Close()
	}

	if b.session != nil {
		return b.session.Close()
	}

	return nil
}

// registerHandlers sets up Discord event handlers
func (b *Bot) registerHandlers() {
	b.session.AddHandler(b.handleInteraction)
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.log.Info().Int("guilds", len(r.Guilds)).Msg("bot is ready")
	})
}

// handleInteraction routes slash commands and rally post components
func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(s, i)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(s, i)
	}
}

func (b *Bot) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	b.log.Debug().Str("command", data.Name).Str("guild", i.GuildID).Msg("received command")

	metrics.CommandsHandled.WithLabelValues(data.Name).Inc()
	if err := b.usage.Increment(data.Name); err != nil {
		// Usage counters are cosmetic; the command still runs.
		b.log.Error().Err(err).Str("command", data.Name).Msg("failed to persist usage counter")
	}

	switch data.Name {
	case "setup":
		b.handleSetup(s, i)
	case "rally":
		b.handleRally(s, i)
	case "rally_stats":
		b.handleRallyStats(s, i)
	case "rally_leaderboard":
		b.handleRallyLeaderboard(s, i)
	case "timer":
		b.handleTimer(s, i)
	case "timers":
		b.handleTimers(s, i)
	case "botstats":
		b.handleBotStats(s, i)
	default:
		b.log.Warn().Str("command", data.Name).Msg("unknown command")
	}
}

// interactionUser returns the invoking user for both guild and DM contexts.
func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil {
		return i.Member.User
	}
	return i.User
}

// isAdmin reports whether the invoking member holds administrative
// capability in the guild.
func isAdmin(i *discordgo.InteractionCreate) bool {
	if i.Member == nil {
		return false
	}
	return i.Member.Permissions&(discordgo.PermissionAdministrator|discordgo.PermissionManageServer) != 0
}
