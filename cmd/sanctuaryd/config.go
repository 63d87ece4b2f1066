package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/organizer/sanctuary/internal/config"
	"github.com/organizer/sanctuary/internal/ipfilter"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate environment configuration",
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configValidateCmd)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Println("Configuration is valid")
	fmt.Printf("  Listen address: %s\n", cfg.Server.ListenAddr)
	fmt.Printf("  Metrics address: %s\n", cfg.Server.MetricsAddr)
	allowlist := ipfilter.New(cfg.Server.MetricsAllowedIPs, newLogger())
	fmt.Printf("  Metrics IP filtering: %d networks\n", allowlist.Count())
	fmt.Printf("  API key configured: %v\n", cfg.Server.APIKey != "")
	fmt.Printf("  Short-link base URL: %s\n", cfg.Links.BaseURL)
	fmt.Printf("  Admin SMS notifications: %v\n", cfg.Admin.EnableSMSNotifications)
	fmt.Printf("  Webhook signature required: %v\n", cfg.Webhook.RequireSignature)

	return nil
}
