package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"vpuppets-console/models"
	"vpuppets-console/system"
)

// WebhookService handles Discord webhook notifications
type WebhookService struct {
	webhookURL string
	client     *http.Client
}

// DiscordEmbed represents a Discord embed object
type DiscordEmbed struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Fields      []DiscordEmbedField `json:"fields,omitempty"`
	Footer      *DiscordEmbedFooter `json:"footer,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
}

type DiscordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type DiscordEmbedFooter struct {
	Text string `json:"text"`
}

// DiscordWebhookPayload represents a Discord webhook message
type DiscordWebhookPayload struct {
	Username string         `json:"username,omitempty"`
	Content  string         `json:"content,omitempty"`
	Embeds   []DiscordEmbed `json:"embeds,omitempty"`
}

func NewWebhookService(url string) *WebhookService {
	return &WebhookService{
		webhookURL: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// IsEnabled returns whether a webhook URL is configured
func (w *WebhookService) IsEnabled() bool {
	return w != nil && w.webhookURL != ""
}

// Discord color constants
const (
	ColorRed    = 0xFF0000 // Attack/Error
	ColorOrange = 0xFFAA00 // Warning
	ColorGreen  = 0x00FF00 // Success
	ColorBlue   = 0x00AAFF // Info
)

const footerText = "Virtual Puppets"

// SendAttackAlert reports a new attacker seen by an actor
func (w *WebhookService) SendAttackAlert(actorName string, rec models.ThreatRecord, country string) error {
	if !w.IsEnabled() {
		return nil
	}
	if country == "" {
		country = "Unknown"
	}
	port := rec.Port
	if port == "" {
		port = "-"
	}

	embed := DiscordEmbed{
		Title:       "🚨 Attacker Detected",
		Description: fmt.Sprintf("**%s** is being probed by **%s**", actorName, rec.IP),
		Color:       ColorRed,
		Fields: []DiscordEmbedField{
			{Name: "Source IP", Value: fmt.Sprintf("`%s`", rec.IP), Inline: true},
			{Name: "Country", Value: country, Inline: true},
			{Name: "Protocol", Value: rec.Protocol, Inline: true},
			{Name: "Target Port", Value: port, Inline: true},
			{Name: "Events", Value: fmt.Sprintf("%d", rec.Count), Inline: true},
		},
		Footer:    &DiscordEmbedFooter{Text: footerText},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := w.sendEmbed(embed); err != nil {
		return err
	}
	alertsSent.WithLabelValues("attack").Inc()
	return nil
}

// SendStatusAlert reports an actor status transition
func (w *WebhookService) SendStatusAlert(actorName string, from, to models.ActorStatus) error {
	if !w.IsEnabled() {
		return nil
	}
	color := ColorBlue
	switch to {
	case models.StatusCompromised:
		color = ColorRed
	case models.StatusOffline:
		color = ColorOrange
	case models.StatusOnline:
		color = ColorGreen
	}
	if from == "" {
		from = "NEW"
	}
	msg := fmt.Sprintf("Actor **%s** changed status: `%s` → `%s`", actorName, from, to)
	if err := w.SendSystemAlert("Actor Status", msg, color); err != nil {
		return err
	}
	alertsSent.WithLabelValues("status").Inc()
	return nil
}

// SendSystemAlert sends a plain titled message
func (w *WebhookService) SendSystemAlert(title, message string, color int) error {
	if !w.IsEnabled() {
		return nil
	}
	return w.sendEmbed(DiscordEmbed{
		Title:       title,
		Description: message,
		Color:       color,
		Footer:      &DiscordEmbedFooter{Text: footerText},
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
}

// SendTestAlert sends a test notification to verify webhook connectivity
func (w *WebhookService) SendTestAlert() error {
	if !w.IsEnabled() {
		return fmt.Errorf("webhook not configured")
	}

	embed := DiscordEmbed{
		Title:       "✅ Webhook Test",
		Description: "Discord webhook is configured correctly!",
		Color:       ColorGreen,
		Fields: []DiscordEmbedField{
			{Name: "Status", Value: "Connected", Inline: true},
			{Name: "Server Time", Value: time.Now().Format("2006-01-02 15:04:05"), Inline: true},
		},
		Footer:    &DiscordEmbedFooter{Text: footerText},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	return w.sendEmbed(embed)
}

func (w *WebhookService) sendEmbed(embed DiscordEmbed) error {
	payload := DiscordWebhookPayload{
		Username: "Virtual Puppets",
		Embeds:   []DiscordEmbed{embed},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, w.webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned error status: %d", resp.StatusCode)
	}

	system.Debug("Discord webhook sent: %s", embed.Title)
	return nil
}
