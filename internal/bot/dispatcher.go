package bot

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/avatarrealms/arc-bot/internal/metrics"
	"github.com/avatarrealms/arc-bot/internal/rally"
)

// fullPostGrace is how long a completed rally's post stays visible so
// participants can see the filled state before it disappears.
const fullPostGrace = 10 * time.Second

const expiryTips = "Tip: lower-level rallies need fewer people. Try a shorter fortress or a longer time limit next time."

// dispatcher delivers rally lifecycle notifications. Every delivery is
// best-effort: the registry has already committed the transition, so
// failures are logged and swallowed.
type dispatcher struct {
	session *discordgo.Session
	log     zerolog.Logger
}

func newDispatcher(session *discordgo.Session, log zerolog.Logger) *dispatcher {
	return &dispatcher{session: session, log: log}
}

// Notify implements rally.Notifier.
func (d *dispatcher) Notify(ev rally.Event) {
	switch ev.Kind {
	case rally.EventCreated:
		metrics.RalliesCreated.Inc()
	case rally.EventJoined:
		d.updatePost(ev.Rally, false)
	case rally.EventFull:
		metrics.RalliesCompleted.Inc()
		d.updatePost(ev.Rally, true)
		d.removePostAfter(ev.Rally, fullPostGrace)
	case rally.EventExpired:
		metrics.RalliesExpired.Inc()
		d.removePost(ev.Rally)
		d.dmExpiry(ev.Rally)
	case rally.EventCancelled:
		metrics.RalliesCancelled.Inc()
		d.removePost(ev.Rally)
	}
}

// updatePost re-renders the public rally message. Completed posts lose
// their buttons.
func (d *dispatcher) updatePost(r rally.Rally, complete bool) {
	if r.MessageID == "" {
		return
	}

	edit := &discordgo.MessageEdit{
		Channel: r.ChannelID,
		ID:      r.MessageID,
		Embeds:  &[]*discordgo.MessageEmbed{rallyEmbed(r, complete)},
	}
	if complete {
		edit.Components = &[]discordgo.MessageComponent{}
	}

	if _, err := d.session.ChannelMessageEditComplex(edit); err != nil {
		d.log.Error().Err(err).Str("rally", r.ID).Msg("failed to update rally post")
	}
}

func (d *dispatcher) removePost(r rally.Rally) {
	if r.MessageID == "" {
		return
	}
	if err := d.session.ChannelMessageDelete(r.ChannelID, r.MessageID); err != nil {
		d.log.Error().Err(err).Str("rally", r.ID).Msg("failed to delete rally post")
	}
}

func (d *dispatcher) removePostAfter(r rally.Rally, delay time.Duration) {
	time.AfterFunc(delay, func() { d.removePost(r) })
}

// dmExpiry tells the creator their rally ran out of time.
func (d *dispatcher) dmExpiry(r rally.Rally) {
	channel, err := d.session.UserChannelCreate(r.CreatorID)
	if err != nil {
		d.log.Error().Err(err).Str("user", r.CreatorID).Msg("failed to open DM channel for expiry notice")
		return
	}

	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Rally expired: %s", r.LevelName),
		Color: 0xe74c3c,
		Description: fmt.Sprintf("Your rally reached %d/%d participants before the time limit.\n\n%s",
			len(r.Participants), r.Capacity, expiryTips),
	}
	if _, err := d.session.ChannelMessageSendEmbed(channel.ID, embed); err != nil {
		d.log.Error().Err(err).Str("user", r.CreatorID).Msg("failed to deliver expiry notice")
	}
}
