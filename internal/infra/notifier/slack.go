package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storywire/internal/domain/entity"
)

// SlackConfig contains configuration for Slack webhook notifications.
type SlackConfig = WebhookConfig

// SlackNotifier posts breaking stories to a Slack Incoming Webhook.
type SlackNotifier struct {
	hook *webhook
}

// NewSlackNotifier creates a SlackNotifier rate limited to 1 request/second
// with burst of 1 (the Slack webhook limit).
func NewSlackNotifier(config SlackConfig) *SlackNotifier {
	return &SlackNotifier{hook: newWebhook("slack", config, 1.0, 1)}
}

// SlackWebhookPayload represents the JSON payload sent to Slack webhook using Block Kit.
type SlackWebhookPayload struct {
	Text   string       `json:"text"`   // Fallback text (required)
	Blocks []SlackBlock `json:"blocks"` // Rich formatting blocks
}

// SlackBlock represents a Slack Block Kit block.
type SlackBlock struct {
	Type     string            `json:"type"`               // "header", "section", "context"
	Text     *SlackTextObject  `json:"text,omitempty"`     // Text content (for header and section)
	Elements []SlackTextObject `json:"elements,omitempty"` // Elements (for context)
}

// SlackTextObject represents a text object in Slack Block Kit.
type SlackTextObject struct {
	Type string `json:"type"` // "mrkdwn" or "plain_text"
	Text string `json:"text"`
}

const (
	// Slack Block Kit limits
	maxHeaderTextLength  = 150
	maxSectionTextLength = 3000
	maxFallbackLength    = 150

	slackTruncationSuffix = "..."
)

// buildBlockKitPayload renders a story as a header, a section linking each
// source article and a context line with category, confidence and time.
func buildBlockKitPayload(story *entity.Story) SlackWebhookPayload {
	fallback := truncate(fmt.Sprintf("BREAKING: %s (%d sources)", story.Title, story.VerificationLevel),
		maxFallbackLength, slackTruncationSuffix)

	var links strings.Builder
	fmt.Fprintf(&links, "*Corroborated by %d sources*", story.VerificationLevel)
	for _, sa := range story.SourceArticles {
		fmt.Fprintf(&links, "\n• <%s|%s> (%s)", sa.URL, sa.Title, sa.Source)
	}

	return SlackWebhookPayload{
		Text: fallback,
		Blocks: []SlackBlock{
			{
				Type: "header",
				Text: &SlackTextObject{
					Type: "plain_text",
					Text: truncate("BREAKING: "+story.Title, maxHeaderTextLength, slackTruncationSuffix),
				},
			},
			{
				Type: "section",
				Text: &SlackTextObject{
					Type: "mrkdwn",
					Text: truncate(links.String(), maxSectionTextLength, slackTruncationSuffix),
				},
			},
			{
				Type: "context",
				Elements: []SlackTextObject{{
					Type: "mrkdwn",
					Text: fmt.Sprintf("%s • confidence %d%% • %s",
						story.Category, story.ConfidenceScore, breakingAt(story).Format(time.RFC3339)),
				}},
			},
		},
	}
}

// NotifyBreaking implements Notifier.
func (s *SlackNotifier) NotifyBreaking(ctx context.Context, story *entity.Story) error {
	return s.hook.deliver(ctx, story, buildBlockKitPayload(story))
}
