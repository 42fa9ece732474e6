package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	// RalliesCreated counts rallies opened, regardless of outcome.
	RalliesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arcbot_rallies_created_total",
		Help: "Total number of rallies created.",
	})

	// RalliesCompleted counts rallies that reached capacity.
	RalliesCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arcbot_rallies_completed_total",
		Help: "Total number of rallies that filled before their time limit.",
	})

	// RalliesExpired counts rallies whose timer fired before they filled.
	RalliesExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arcbot_rallies_expired_total",
		Help: "Total number of rallies that expired without filling.",
	})

	// RalliesCancelled counts creator or admin cancellations.
	RalliesCancelled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arcbot_rallies_cancelled_total",
		Help: "Total number of rallies cancelled.",
	})

	// CommandsHandled counts slash command invocations per command.
	CommandsHandled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arcbot_commands_handled_total",
		Help: "Total number of slash commands handled.",
	}, []string{"command"})

	// TimersCompleted counts delivered timer reminders.
	TimersCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arcbot_timers_completed_total",
		Help: "Total number of user timers that completed and were delivered.",
	})
)

// MustRegister registers the package collectors with the given registry.
// Safe to call more than once.
func MustRegister(registerer prometheus.Registerer) {
	registerOnce.Do(func() {
		registerer.MustRegister(
			RalliesCreated,
			RalliesCompleted,
			RalliesExpired,
			RalliesCancelled,
			CommandsHandled,
			TimersCompleted,
		)
	})
}
