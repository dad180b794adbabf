package main

import (
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"media-resolver/internal/config"
	"media-resolver/internal/platform"
	"media-resolver/internal/provider"
	"media-resolver/internal/ratelimit"
	"media-resolver/internal/resolver"
	"media-resolver/internal/storage"
	"media-resolver/internal/tui"
)

func main() {
	// Load configuration
	configManager := config.NewManager()
	cfg, err := configManager.Load("")
	if err != nil {
		log.Fatal(err)
	}

	// Initialize storage
	store, err := storage.NewSQLite(cfg.Database.Path)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	// Build the resolution engine
	classifier := platform.NewClassifier(cfg.Platforms.AllowedDomains)
	limiter := ratelimit.NewManager(&ratelimit.Config{
		Enabled:           cfg.RateLimit.Enabled,
		RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
		Window:            time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
		WhitelistedIPs:    cfg.RateLimit.WhitelistedIPs,
	})
	defer limiter.Stop()

	providers := provider.Chain(cfg, provider.NewClient(cfg))
	engine := resolver.NewEngine(classifier, limiter, providers,
		resolver.WithStorage(store),
		resolver.WithTimeouts(
			time.Duration(cfg.Resolver.AttemptTimeout)*time.Second,
			time.Duration(cfg.Resolver.TotalTimeout)*time.Second,
		),
	)

	// Initialize the TUI application
	model := tui.InitialModel(engine, store)

	// Create a new Bubble Tea program
	p := tea.NewProgram(model, tea.WithAltScreen())

	// Run the program
	if _, err := p.Run(); err != nil {
		log.Fatal(err)
		os.Exit(1)
	}
}
