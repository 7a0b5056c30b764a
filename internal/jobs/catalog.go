// Package jobs holds the concrete job handlers and maps them onto the
// queues declared in the worker configuration.
package jobs

import (
	"net/http"

	"github.com/cuongbtq/pgjobqueue/internal/config"
	"github.com/cuongbtq/pgjobqueue/internal/worker"
)

const (
	// SlackQueue carries messages relayed to the Slack webhook
	SlackQueue = "slack"
	// DiscordQueue carries messages relayed to the Discord webhook
	DiscordQueue = "discord"

	// PostMessage posts args.text to the chat webhook of its queue
	PostMessage = "PostMessage"
)

// Catalog returns the handlers of every known queue, keyed by queue then job name
func Catalog(cfg config.WebhooksConfig) map[string]map[string]worker.Handler {
	client := &http.Client{Timeout: cfg.Timeout}

	return map[string]map[string]worker.Handler{
		SlackQueue: {
			PostMessage: &WebhookRelay{URL: cfg.SlackURL, Field: "text", Client: client},
		},
		DiscordQueue: {
			PostMessage: &WebhookRelay{URL: cfg.DiscordURL, Field: "content", Client: client},
		},
	}
}

// Definitions builds one worker definition per configured queue. A queue
// with no handlers in the catalog gets an empty handler map, which the
// registry rejects at startup.
func Definitions(cfg *config.Config) []worker.Definition {
	catalog := Catalog(cfg.Webhooks)

	defs := make([]worker.Definition, 0, len(cfg.Worker.Queues))
	for _, q := range cfg.Worker.Queues {
		defs = append(defs, worker.Definition{
			Queue:            q.Name,
			Trigger:          q.Trigger,
			PollInterval:     q.PollInterval,
			MaxJobsPerSecond: q.MaxJobsPerSecond,
			Drain:            q.Drain,
			Handlers:         catalog[q.Name],
		})
	}
	return defs
}
