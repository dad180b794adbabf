package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"media-resolver/internal/config"
	"media-resolver/internal/export"
	"media-resolver/internal/platform"
	"media-resolver/internal/provider"
	"media-resolver/internal/ratelimit"
	"media-resolver/internal/resolver"
	"media-resolver/internal/server"
	"media-resolver/internal/storage"
	"media-resolver/pkg/models"
)

var (
	configPath string
	format     string
	quality    string
	audioRate  string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "media-resolver",
	Short: "Resolve media URLs into direct download links",
	Long: `Media Resolver turns public media page URLs into time-limited direct
download links using an ordered chain of conversion providers.

Features:
- Support for YouTube, TikTok, Instagram, Twitter/X, and more
- Automatic provider fallback with failure classification
- Audio and video output formats
- Resolution history tracking
- Proxy support`,
	Version: "1.0.0",
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [url]",
	Short: "Resolve a media URL into a download link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := args[0]

		cfg, store, err := loadEnvironment()
		if err != nil {
			return err
		}
		defer store.Close()

		engine, limiter := buildEngine(cfg, store)
		defer limiter.Stop()

		req := &models.ResolutionRequest{
			URL:    url,
			Format: parseFormat(format),
			Options: models.ConversionOptions{
				Resolution: quality,
				Bitrate:    audioRate,
			},
		}

		fmt.Printf("Resolving: %s\n", url)
		result, err := engine.Resolve(context.Background(), req, "cli")
		if err != nil {
			var resErr *resolver.Error
			if errors.As(err, &resErr) {
				fmt.Printf("❌ %s\n", resErr.Message)
				if resErr.RetryAfter > 0 {
					fmt.Printf("   Retry after: %s\n", resErr.RetryAfter)
				}
				return nil
			}
			return fmt.Errorf("error resolving URL: %w", err)
		}

		fmt.Printf("✅ Resolved via %s\n", result.Provider)
		fmt.Printf("   Filename: %s\n", result.Filename)
		fmt.Printf("   Size: %s\n", result.FileSize)
		fmt.Printf("   URL: %s\n", result.DownloadURL)

		return nil
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch [urls-file]",
	Short: "Resolve multiple URLs from a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		urls, err := readURLsFromFile(args[0])
		if err != nil {
			return fmt.Errorf("error reading URLs file: %w", err)
		}

		if len(urls) == 0 {
			fmt.Println("No URLs found in file")
			return nil
		}

		fmt.Printf("Found %d URLs to resolve\n", len(urls))

		cfg, store, err := loadEnvironment()
		if err != nil {
			return err
		}
		defer store.Close()

		engine, limiter := buildEngine(cfg, store)
		defer limiter.Stop()

		success := 0
		failed := 0
		for _, url := range urls {
			req := &models.ResolutionRequest{
				URL:    url,
				Format: parseFormat(format),
				Options: models.ConversionOptions{
					Resolution: quality,
					Bitrate:    audioRate,
				},
			}

			result, err := engine.Resolve(context.Background(), req, "cli")
			if err != nil {
				failed++
				fmt.Printf("❌ %s: %v\n", url, err)
				continue
			}

			success++
			fmt.Printf("✅ %s\n", result.DownloadURL)
		}

		fmt.Printf("\nResolution summary: %d success, %d failed\n", success, failed)
		return nil
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify [url]",
	Short: "Classify a URL without contacting any provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := args[0]

		cfg, store, err := loadEnvironment()
		if err != nil {
			return err
		}
		store.Close()

		classifier := platform.NewClassifier(cfg.Platforms.AllowedDomains)
		result, ok := classifier.Classify(url)
		if !ok {
			fmt.Println("Unsupported or invalid URL")
			return nil
		}

		fmt.Printf("🔍 URL Classification\n")
		fmt.Printf("   Platform: %s\n", result.Platform)
		if result.CanonicalID != "" {
			fmt.Printf("   Canonical ID: %s\n", result.CanonicalID)
		}
		fmt.Printf("   Direct media: %v\n", result.DirectMedia)

		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past resolutions",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, err := loadEnvironment()
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.ListRecords(models.HistoryFilter{Limit: 50})
		if err != nil {
			return fmt.Errorf("error listing history: %w", err)
		}

		if len(records) == 0 {
			fmt.Println("No resolutions found")
			return nil
		}

		fmt.Printf("📚 Resolution History (%d)\n", len(records))
		for i, rec := range records {
			fmt.Printf("\n%d. %s\n", i+1, rec.URL)
			fmt.Printf("   Platform: %s | Format: %s\n", rec.Platform, rec.Format)
			fmt.Printf("   Status: %s", rec.Status)
			if rec.Status == models.StatusSuccess {
				fmt.Printf(" | Provider: %s | Size: %s", rec.Provider, rec.FileSize)
			} else if rec.FailureClass != "" {
				fmt.Printf(" | Failure: %s", rec.FailureClass)
			}
			fmt.Println()
			fmt.Printf("   Resolved: %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))
		}

		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [output-file]",
	Short: "Export resolution history to CSV, XLSX, or JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFile := args[0]

		_, store, err := loadEnvironment()
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.ListRecords(models.HistoryFilter{Limit: 10000})
		if err != nil {
			return fmt.Errorf("error listing history: %w", err)
		}

		exportFormat := export.FormatCSV
		switch {
		case strings.HasSuffix(outputFile, ".xlsx"):
			exportFormat = export.FormatXLSX
		case strings.HasSuffix(outputFile, ".json"):
			exportFormat = export.FormatJSON
		}

		exporter := export.NewHistoryExporter(export.ExportConfig{
			Format:   exportFormat,
			FilePath: outputFile,
		})
		if err := exporter.Export(records); err != nil {
			return fmt.Errorf("error exporting history: %w", err)
		}

		fmt.Printf("Exported %d records to %s\n", len(records), outputFile)
		return nil
	},
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, err := loadEnvironment()
		if err != nil {
			return err
		}
		defer store.Close()

		srv := server.NewServer(cfg, store)
		if err := srv.Run(); err != nil {
			return fmt.Errorf("error running server: %w", err)
		}

		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var initConfigCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configManager := config.NewManager()
		_, err := configManager.Load(configPath)
		if err != nil {
			return fmt.Errorf("error initializing configuration: %w", err)
		}
		fmt.Println("Configuration file created successfully")
		return nil
	},
}

var showConfigCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		configManager := config.NewManager()
		cfg, err := configManager.Load(configPath)
		if err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}

		fmt.Printf("📋 Current Configuration\n")
		fmt.Printf("   Server Host: %s\n", cfg.Server.Host)
		fmt.Printf("   Server Port: %d\n", cfg.Server.Port)
		fmt.Printf("   Attempt Timeout: %ds\n", cfg.Resolver.AttemptTimeout)
		fmt.Printf("   Total Timeout: %ds\n", cfg.Resolver.TotalTimeout)
		fmt.Printf("   RapidAPI Enabled: %v\n", cfg.Providers.RapidAPI.Enabled)
		fmt.Printf("   Cobalt Instances: %d\n", len(cfg.Providers.Cobalt.Instances))
		fmt.Printf("   Database Path: %s\n", cfg.Database.Path)
		fmt.Printf("   Log Level: %s\n", cfg.Log.Level)
		fmt.Printf("   Proxy Enabled: %v\n", cfg.Proxy.Enabled)

		return nil
	},
}

func loadEnvironment() (*models.Config, *storage.SQLite, error) {
	configManager := config.NewManager()
	cfg, err := configManager.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("error loading configuration: %w", err)
	}

	store, err := storage.NewSQLite(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("error initializing storage: %w", err)
	}

	return cfg, store, nil
}

func buildEngine(cfg *models.Config, store models.Storage) (*resolver.Engine, *ratelimit.Manager) {
	classifier := platform.NewClassifier(cfg.Platforms.AllowedDomains)
	limiter := ratelimit.NewManager(&ratelimit.Config{
		Enabled:           cfg.RateLimit.Enabled,
		RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
		Window:            time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
		WhitelistedIPs:    cfg.RateLimit.WhitelistedIPs,
	})

	providers := provider.Chain(cfg, provider.NewClient(cfg))
	engine := resolver.NewEngine(classifier, limiter, providers,
		resolver.WithStorage(store),
		resolver.WithTimeouts(
			time.Duration(cfg.Resolver.AttemptTimeout)*time.Second,
			time.Duration(cfg.Resolver.TotalTimeout)*time.Second,
		),
	)

	return engine, limiter
}

func parseFormat(s string) models.FileFormat {
	switch strings.ToLower(s) {
	case "mp3":
		return models.FormatMP3
	case "jpeg", "jpg":
		return models.FormatJPEG
	case "png":
		return models.FormatPNG
	case "webp":
		return models.FormatWEBP
	default:
		return models.FormatMP4
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVarP(&format, "format", "f", "mp4", "Output format (mp4, mp3, jpeg, png, webp)")
	rootCmd.PersistentFlags().StringVarP(&quality, "quality", "q", "", "Video quality (4k, 720p, etc.)")
	rootCmd.PersistentFlags().StringVarP(&audioRate, "bitrate", "b", "", "Audio bitrate (320k, 192k, 128k)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	// Add commands
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(configCmd)

	// Config subcommands
	configCmd.AddCommand(initConfigCmd)
	configCmd.AddCommand(showConfigCmd)
}

func readURLsFromFile(filename string) ([]string, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	// Split by lines and filter empty lines
	lines := strings.Split(string(content), "\n")
	var urls []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			urls = append(urls, line)
		}
	}

	return urls, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
