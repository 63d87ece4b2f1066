// Package config loads the service's environment-variable configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config is the top-level configuration for the sanctuaryd process.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Gateway  GatewayConfig
	Notifier NotifierConfig
	Admin    AdminConfig
	Links    LinkConfig
	Webhook  WebhookConfig
}

// ServerConfig controls the HTTP listeners.
type ServerConfig struct {
	ListenAddr  string
	MetricsAddr string
	APIKey      string

	// MetricsAllowedIPs is the raw METRICS_ALLOWED_IPS value, a
	// comma-separated list of IPs/CIDRs. internal/ipfilter parses it.
	MetricsAllowedIPs string
}

// DatabaseConfig holds the relational store connection string.
type DatabaseConfig struct {
	URL string
}

// GatewayConfig holds telephony provider credentials.
type GatewayConfig struct {
	AccountSID          string
	AuthToken           string
	MessagingServiceSID string
	SendURL             string
}

// NotifierConfig holds chat-notification sink credentials.
type NotifierConfig struct {
	BotToken string
	Channel  string
	PostURL  string
}

// AdminConfig controls the courtesy-SMS-to-operator behavior.
type AdminConfig struct {
	PhoneNumber            string
	EnableSMSNotifications bool
}

// LinkConfig controls short-link minting.
type LinkConfig struct {
	BaseURL string
}

// WebhookConfig controls inbound webhook signature verification.
type WebhookConfig struct {
	RequireSignature bool
	SigningSecret    string
}

// Load reads configuration from the process environment. DATABASE_URL is
// the only strictly required variable; everything else has a safe
// default so the service is runnable in development without a full
// credential set.
func Load() (*Config, error) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return nil, fmt.Errorf("config: DATABASE_URL is required")
	}

	cfg := &Config{
		Server: ServerConfig{
			ListenAddr:        getEnv("LISTEN_ADDR", ":8080"),
			MetricsAddr:       getEnv("METRICS_ADDR", ":9090"),
			APIKey:            os.Getenv("API_KEY"),
			MetricsAllowedIPs: os.Getenv("METRICS_ALLOWED_IPS"),
		},
		Database: DatabaseConfig{URL: url},
		Gateway: GatewayConfig{
			AccountSID:          os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:           os.Getenv("TWILIO_AUTH_TOKEN"),
			MessagingServiceSID: os.Getenv("TWILIO_MESSAGING_SERVICE_SID"),
			SendURL:             os.Getenv("SMS_GATEWAY_URL"),
		},
		Notifier: NotifierConfig{
			BotToken: os.Getenv("NOTIFIER_BOT_TOKEN"),
			Channel:  os.Getenv("NOTIFIER_CHANNEL"),
			PostURL:  os.Getenv("NOTIFIER_POST_URL"),
		},
		Admin: AdminConfig{
			PhoneNumber:            os.Getenv("ADMIN_PHONE_NUMBER"),
			EnableSMSNotifications: getEnvBool("ENABLE_SMS_NOTIFICATIONS", true),
		},
		Links: LinkConfig{BaseURL: resolveBaseURL()},
		Webhook: WebhookConfig{
			RequireSignature: getEnvBool("REQUIRE_WEBHOOK_SIGNATURE", true),
			SigningSecret:    os.Getenv("WEBHOOK_SIGNING_SECRET"),
		},
	}

	return cfg, nil
}

// resolveBaseURL returns the first of VERCEL_PROJECT_PRODUCTION_URL,
// VERCEL_URL, NEXTAUTH_URL, http://localhost:3000.
func resolveBaseURL() string {
	for _, key := range []string{"VERCEL_PROJECT_PRODUCTION_URL", "VERCEL_URL", "NEXTAUTH_URL"} {
		if v := os.Getenv(key); v != "" {
			return normalizeBaseURL(v)
		}
	}
	return "http://localhost:3000"
}

// normalizeBaseURL adds an https:// scheme to bare Vercel hostnames, which
// are published without one.
func normalizeBaseURL(v string) string {
	if len(v) >= 8 && v[:8] == "https://" {
		return v
	}
	if len(v) >= 7 && v[:7] == "http://" {
		return v
	}
	return "https://" + v
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return v != "false"
	}
	return b
}
