// jarvisd is the chat-driven operator daemon.
// It runs the Telegram bot, the inventory scanner, and the local HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bborn/jarvis/internal/agent"
	"github.com/bborn/jarvis/internal/ai"
	"github.com/bborn/jarvis/internal/bot"
	"github.com/bborn/jarvis/internal/ccm"
	"github.com/bborn/jarvis/internal/config"
	"github.com/bborn/jarvis/internal/db"
	"github.com/bborn/jarvis/internal/inventory"
	"github.com/bborn/jarvis/internal/webapi"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var configPath string

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "jarvisd",
	})

	rootCmd := &cobra.Command{
		Use:     "jarvisd",
		Short:   "Chat-driven operator console",
		Long:    "jarvisd answers a single Telegram user, drives the CCM task service, and runs claude on this host.",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath, logger)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default ~/.config/jarvis/config.yaml)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the bot, scanner, and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath, logger)
		},
	}
	rootCmd.AddCommand(serveCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("jarvisd", version)
		},
	}
	rootCmd.AddCommand(versionCmd)

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one inventory scan and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			database, err := db.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer database.Close()

			scanner := inventory.NewScanner(database, cfg.Scan)
			n, err := scanner.Scan(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Recorded %d assets under %s\n", n, cfg.Scan.Dir)
			return nil
		},
	}
	rootCmd.AddCommand(scanCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Fatal("jarvisd failed", "error", err)
	}
}

func serve(configPath string, logger *log.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()
	logger.Info("database opened", "path", cfg.DBPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ccmClient := ccm.NewClient(cfg.CCM.URL)
	aiClient := ai.NewClient(cfg.AI)
	orchestrator := ai.NewOrchestrator(aiClient, ccmClient, cfg.AI.Strategy)
	runner := agent.NewRunner(cfg.Agent)

	apiServer := webapi.New(cfg.HTTPAddr, database)

	scanner := inventory.NewScanner(database, cfg.Scan)
	scanner.OnScan = func(count int) {
		apiServer.Hub().Publish(webapi.Event{
			Type: "scan_complete",
			Data: map[string]int{"assets": count},
		})
	}
	go scanner.Run(ctx)

	logger.Info("starting jarvisd",
		"http", cfg.HTTPAddr,
		"ccm", cfg.CCM.URL,
		"strategy", cfg.AI.Strategy,
		"scan_dir", cfg.Scan.Dir,
	)

	errCh := make(chan error, 2)
	go func() {
		errCh <- apiServer.Start(ctx)
	}()

	if cfg.BotEnabled() {
		if !aiClient.IsAvailable() {
			logger.Warn("no Anthropic API key configured, conversational replies will fail")
		}
		b := bot.New(cfg, database, ccmClient, orchestrator, runner)
		b.OnTurn = func(userText, reply string) {
			apiServer.Hub().Publish(webapi.Event{
				Type: "turn",
				Data: map[string]string{"user": userText, "reply": reply},
			})
		}
		go func() {
			b.Notify(ctx, "Jarvis is online.")
			errCh <- b.Run(ctx)
		}()
	} else {
		logger.Warn("Telegram credentials missing, bot disabled")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
		return nil
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			return err
		}
		return nil
	}
}
