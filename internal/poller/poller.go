// Package poller delivers user timer reminders. It checks the timer store
// on a fixed interval and direct-messages the owner of each timer that has
// reached its end time.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/avatarrealms/arc-bot/internal/metrics"
	"github.com/avatarrealms/arc-bot/internal/store"
)

// Poller periodically collects due timers and notifies their owners
type Poller struct {
	timers   *store.Timers
	discord  *discordgo.Session
	interval time.Duration
	log      zerolog.Logger

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a new Poller over the timer store
func New(timers *store.Timers, discord *discordgo.Session, intervalSeconds int, log zerolog.Logger) *Poller {
	return &Poller{
		timers:   timers,
		discord:  discord,
		interval: time.Duration(intervalSeconds) * time.Second,
		log:      log,
		stopChan: make(chan struct{}),
	}
}

// Start begins the polling loop
func (p *Poller) Start(ctx context.Context) {
	p.log.Info().Dur("interval", p.interval).Msg("starting timer poller")

	p.wg.Add(1)
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Initial poll picks up timers that came due while the bot was down
	p.poll()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("timer poller stopped (context cancelled)")
			return
		case <-p.stopChan:
			p.log.Info().Msg("timer poller stopped")
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

// Stop signals the poller to stop and waits for the loop to exit
func (p *Poller) Stop() {
	close(p.stopChan)
	p.wg.Wait()
}

// poll delivers every due timer
func (p *Poller) poll() {
	due := p.timers.Due(time.Now())
	if len(due) == 0 {
		return
	}

	p.log.Debug().Int("count", len(due)).Msg("delivering due timers")

	for _, timer := range due {
		p.deliver(timer)
	}
}

// deliver notifies the timer's owner and removes the timer. A failed DM
// still removes the timer; re-delivering on every later tick would be worse
// than dropping one reminder.
func (p *Poller) deliver(timer store.Timer) {
	channel, err := p.discord.UserChannelCreate(timer.UserID)
	if err != nil {
		p.log.Error().Err(err).Str("user", timer.UserID).Msg("failed to open DM channel for timer")
	} else {
		embed := &discordgo.MessageEmbed{
			Title:       "Timer complete",
			Description: fmt.Sprintf("**%s** finished <t:%d:R>.", timer.Label, timer.EndsAt.Unix()),
			Color:       0x2ecc71,
		}
		if _, err := p.discord.ChannelMessageSendEmbed(channel.ID, embed); err != nil {
			p.log.Error().Err(err).Str("user", timer.UserID).Msg("failed to deliver timer reminder")
		} else {
			metrics.TimersCompleted.Inc()
			p.log.Info().Str("user", timer.UserID).Str("label", timer.Label).Msg("timer reminder delivered")
		}
	}

	if err := p.timers.Remove(timer.ID); err != nil {
		p.log.Error().Err(err).Str("timer", timer.ID).Msg("failed to remove completed timer")
	}
}
