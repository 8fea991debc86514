package main

import (
	"fmt"
	"os"

	"github.com/promptvaultdev/promptvault/internal/config"
	"github.com/promptvaultdev/promptvault/internal/daemon"
	"github.com/promptvaultdev/promptvault/internal/telegram"
	"github.com/promptvaultdev/promptvault/internal/vault"
)

func cmdStart(args []string) {
	foreground := false
	for _, a := range args {
		if a == "--foreground" || a == "-f" {
			foreground = true
		}
	}

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := daemon.Run(cfg, foreground); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func cmdStop() {
	if err := daemon.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "error stopping daemon: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("promptvault stopped")
}

func cmdStatus() {
	if err := daemon.Status(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func cmdSetup(args []string) {
	nonInteractive := false
	for _, a := range args {
		if a == "--non-interactive" {
			nonInteractive = true
		}
	}

	if nonInteractive {
		// Generate default config and start
		cmdInitConfig()
		fmt.Println("Setup complete. Run 'promptvault start' to begin.")
		return
	}

	fmt.Println("PromptVault Setup Wizard")
	fmt.Println("========================")
	fmt.Println()

	// Step 1: Generate config
	cmdInitConfig()

	// Step 2: Point at the secrets CLI
	fmt.Println("\nTo add secrets, run: promptvault keys set <name>")
	fmt.Println("Common names: openai (AI analysis), telegram (bot), stripe, lemonsqueezy")
	fmt.Println()
	fmt.Println("Setup complete. Run 'promptvault start' to begin.")
}

func cmdInitConfig() {
	if err := config.InitConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "error generating config: %v\n", err)
		os.Exit(1)
	}
}

func cmdSetWebhook() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	if !cfg.Telegram.Enabled {
		fmt.Fprintln(os.Stderr, "telegram is disabled in config; set telegram.enabled = true first")
		os.Exit(1)
	}

	bot := telegram.NewBot(vault.New(), cfg)
	if !bot.Enabled() {
		fmt.Fprintln(os.Stderr, "no telegram bot token available; run 'promptvault keys set telegram'")
		os.Exit(1)
	}

	webhookURL := cfg.Server.PublicURL() + "/api/telegram/webhook"
	if err := bot.SetWebhook(webhookURL, cfg.Telegram.WebhookSecret); err != nil {
		fmt.Fprintf(os.Stderr, "error registering webhook: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Telegram webhook registered: %s\n", webhookURL)
}

func cmdInstallService() {
	if err := daemon.InstallService(); err != nil {
		fmt.Fprintf(os.Stderr, "error installing service: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Service installed successfully")
}

func cmdConfigExport(args []string) {
	path := "promptvault-export.toml"
	if len(args) > 0 {
		path = args[0]
	}
	// Load current config first.
	config.Load("")
	if err := config.ExportConfig(path); err != nil {
		fmt.Fprintf(os.Stderr, "error exporting config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Config exported to %s\n", path)
}

func cmdConfigImport(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: promptvault config-import <file>")
		os.Exit(1)
	}
	if err := config.ImportConfig(args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "error importing config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Config imported from %s\n", args[0])
}
