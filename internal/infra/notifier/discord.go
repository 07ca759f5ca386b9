package notifier

import (
	"context"
	"fmt"
	"time"

	"storywire/internal/domain/entity"
)

// DiscordConfig contains configuration for Discord webhook notifications.
type DiscordConfig = WebhookConfig

// DiscordNotifier posts breaking stories to a Discord webhook.
type DiscordNotifier struct {
	hook *webhook
}

// NewDiscordNotifier creates a DiscordNotifier rate limited to 0.5
// requests/second with burst of 3 (Discord allows 30 requests per minute).
func NewDiscordNotifier(config DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{hook: newWebhook("discord", config, 0.5, 3)}
}

// DiscordWebhookPayload represents the JSON payload sent to Discord webhook.
type DiscordWebhookPayload struct {
	Embeds []DiscordEmbed `json:"embeds"`
}

// DiscordEmbed represents a Discord embed message.
type DiscordEmbed struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	URL         string              `json:"url,omitempty"`
	Color       int                 `json:"color"`
	Fields      []DiscordEmbedField `json:"fields,omitempty"`
	Footer      DiscordEmbedFooter  `json:"footer"`
	Timestamp   string              `json:"timestamp"`
}

// DiscordEmbedField is one name/value row in an embed.
type DiscordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// DiscordEmbedFooter represents the footer of a Discord embed.
type DiscordEmbedFooter struct {
	Text string `json:"text"`
}

const (
	// Discord limits
	maxTitleLength       = 256
	maxDescriptionLength = 4096
	maxEmbedFields       = 25
	maxFieldValueLength  = 1024
	truncationSuffix     = "..."

	// Discord red (#ED4245)
	discordBreakingColor = 15548997
)

// buildEmbedPayload renders a story as one embed: the title links to the first
// source article and each source becomes a field.
func buildEmbedPayload(story *entity.Story) DiscordWebhookPayload {
	embed := DiscordEmbed{
		Title: truncate("BREAKING: "+story.Title, maxTitleLength, truncationSuffix),
		Description: truncate(fmt.Sprintf("Corroborated by %d sources: %s",
			story.VerificationLevel, sourceNames(story)), maxDescriptionLength, truncationSuffix),
		Color: discordBreakingColor,
		Footer: DiscordEmbedFooter{
			Text: fmt.Sprintf("%s • confidence %d%%", story.Category, story.ConfidenceScore),
		},
		Timestamp: breakingAt(story).Format(time.RFC3339),
	}
	if len(story.SourceArticles) > 0 {
		embed.URL = story.SourceArticles[0].URL
	}
	for i, sa := range story.SourceArticles {
		if i == maxEmbedFields {
			break
		}
		embed.Fields = append(embed.Fields, DiscordEmbedField{
			Name:  sa.Source,
			Value: truncate(fmt.Sprintf("[%s](%s)", sa.Title, sa.URL), maxFieldValueLength, truncationSuffix),
		})
	}
	return DiscordWebhookPayload{Embeds: []DiscordEmbed{embed}}
}

// NotifyBreaking implements Notifier.
func (d *DiscordNotifier) NotifyBreaking(ctx context.Context, story *entity.Story) error {
	return d.hook.deliver(ctx, story, buildEmbedPayload(story))
}
