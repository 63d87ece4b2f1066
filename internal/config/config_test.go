package config

import "testing"

func withEnv(t *testing.T, kv map[string]string, fn func()) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
	fn()
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is unset")
	}
}

func TestLoadDefaults(t *testing.T) {
	withEnv(t, map[string]string{"DATABASE_URL": "file:test.db"}, func() {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if cfg.Server.ListenAddr != ":8080" {
			t.Errorf("ListenAddr = %q, want :8080", cfg.Server.ListenAddr)
		}
		if cfg.Links.BaseURL != "http://localhost:3000" {
			t.Errorf("BaseURL = %q, want http://localhost:3000", cfg.Links.BaseURL)
		}
		if !cfg.Admin.EnableSMSNotifications {
			t.Error("EnableSMSNotifications should default true")
		}
		if !cfg.Webhook.RequireSignature {
			t.Error("RequireSignature should default true")
		}
	})
}

func TestResolveBaseURLPriority(t *testing.T) {
	withEnv(t, map[string]string{
		"DATABASE_URL":                  "file:test.db",
		"NEXTAUTH_URL":                  "https://nextauth.example.com",
		"VERCEL_URL":                    "preview.vercel.app",
		"VERCEL_PROJECT_PRODUCTION_URL": "prod.vercel.app",
	}, func() {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if cfg.Links.BaseURL != "https://prod.vercel.app" {
			t.Errorf("BaseURL = %q, want https://prod.vercel.app", cfg.Links.BaseURL)
		}
	})
}

func TestResolveBaseURLAddsScheme(t *testing.T) {
	withEnv(t, map[string]string{
		"DATABASE_URL": "file:test.db",
		"VERCEL_URL":   "preview.vercel.app",
	}, func() {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if cfg.Links.BaseURL != "https://preview.vercel.app" {
			t.Errorf("BaseURL = %q, want https://preview.vercel.app", cfg.Links.BaseURL)
		}
	})
}

func TestEnableSMSNotificationsFalse(t *testing.T) {
	withEnv(t, map[string]string{
		"DATABASE_URL":             "file:test.db",
		"ENABLE_SMS_NOTIFICATIONS": "false",
	}, func() {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if cfg.Admin.EnableSMSNotifications {
			t.Error("EnableSMSNotifications should be false")
		}
	})
}
