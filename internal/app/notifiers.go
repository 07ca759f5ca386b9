package app

import (
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"storywire/internal/infra/notifier"
)

// webhookRule describes the accepted shape of a provider's webhook URL.
type webhookRule struct {
	name       string
	host       string
	pathPrefix string
}

var (
	slackRule   = webhookRule{name: "Slack", host: "hooks.slack.com", pathPrefix: "/services/"}
	discordRule = webhookRule{name: "Discord", host: "discord.com", pathPrefix: "/api/webhooks/"}
)

// NotifierFromEnv builds the breaking-news notifier from SLACK_* and DISCORD_*
// variables. With no channel enabled it returns a no-op notifier.
func NotifierFromEnv(logger *slog.Logger) notifier.Notifier {
	var channels notifier.Multi

	if cfg := loadWebhookConfig(logger, "SLACK", slackRule); cfg.Enabled {
		channels = append(channels, notifier.NewSlackNotifier(cfg))
		logger.Info("Slack channel initialized", slog.String("status", "enabled"))
	} else {
		logger.Info("Slack channel disabled")
	}

	if cfg := loadWebhookConfig(logger, "DISCORD", discordRule); cfg.Enabled {
		channels = append(channels, notifier.NewDiscordNotifier(cfg))
		logger.Info("Discord channel initialized", slog.String("status", "enabled"))
	} else {
		logger.Info("Discord channel disabled")
	}

	if len(channels) == 0 {
		return notifier.NewNoOpNotifier()
	}
	return channels
}

// loadWebhookConfig reads <prefix>_ENABLED and <prefix>_WEBHOOK_URL.
// An enabled channel whose URL does not match rule is disabled with a warning.
func loadWebhookConfig(logger *slog.Logger, prefix string, rule webhookRule) notifier.WebhookConfig {
	if os.Getenv(prefix+"_ENABLED") != "true" {
		return notifier.WebhookConfig{Enabled: false}
	}
	webhookURL := os.Getenv(prefix + "_WEBHOOK_URL")
	if webhookURL == "" {
		logger.Warn(rule.name + " webhook URL is empty, disabling notifications")
		return notifier.WebhookConfig{Enabled: false}
	}

	u, err := url.Parse(webhookURL)
	if err != nil {
		logger.Warn("Invalid "+rule.name+" webhook URL format, disabling notifications", slog.Any("error", err))
		return notifier.WebhookConfig{Enabled: false}
	}
	if u.Scheme != "https" {
		logger.Warn(rule.name + " webhook URL must use HTTPS, disabling notifications")
		return notifier.WebhookConfig{Enabled: false}
	}
	if u.Host != rule.host {
		logger.Warn("Invalid "+rule.name+" webhook host, disabling notifications", slog.String("host", u.Host))
		return notifier.WebhookConfig{Enabled: false}
	}
	if !strings.HasPrefix(u.Path, rule.pathPrefix) {
		logger.Warn("Invalid "+rule.name+" webhook path, disabling notifications", slog.String("path", u.Path))
		return notifier.WebhookConfig{Enabled: false}
	}

	return notifier.WebhookConfig{
		Enabled:    true,
		WebhookURL: webhookURL,
		Timeout:    30 * time.Second,
	}
}
