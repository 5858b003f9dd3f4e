package main

import (
	"flag"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"quidque.com/discord-jukebox/internal/chat"
	"quidque.com/discord-jukebox/internal/command"
	"quidque.com/discord-jukebox/internal/config"
	"quidque.com/discord-jukebox/internal/discord"
	"quidque.com/discord-jukebox/internal/downloader"
	"quidque.com/discord-jukebox/internal/logger"
	"quidque.com/discord-jukebox/internal/queue"
	"quidque.com/discord-jukebox/internal/shutdown"
	"quidque.com/discord-jukebox/internal/voice"
)

func main() {
	envPath := flag.String("env", ".env", "Path to env file")
	logLevel := flag.Int("log", -1, "Log level, overrides LOG_LEVEL")
	flag.Parse()

	cfg, err := config.Load(*envPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	level := cfg.LOG_LEVEL
	if *logLevel >= 0 {
		level = *logLevel
	}
	logger.Setup(level)
	logger.InfoLogger.Println("Starting Discord Jukebox...")

	if err := checkFFmpeg(cfg.FFMPEG_PATH); err != nil {
		logger.ErrorLogger.Printf("ffmpeg not usable: %v", err)
		logger.InfoLogger.Println("Playback will fail until ffmpeg is installed")
	}

	phrases, err := chat.LoadPhrases(cfg.PHRASES_FILE)
	if err != nil {
		log.Fatalf("Failed to load phrases: %v", err)
	}

	shutdownManager := shutdown.NewManager()

	discordClient, err := discord.NewClient(cfg)
	if err != nil {
		log.Fatalf("Failed to create Discord client: %v", err)
	}

	registry := queue.NewRegistry(queue.Options{
		VotePercentage: cfg.VOTE_PERCENTAGE,
		HistoryLimit:   cfg.HISTORY_LIMIT,
	})

	media := downloader.NewClient(downloader.Options{
		FFmpegPath: cfg.FFMPEG_PATH,
		CacheTTL:   cfg.CACHE_TTL,
	})

	driver := voice.NewDriver(registry, discordClient.Platform, media, voice.Options{
		TrackGap:       cfg.TRACK_GAP,
		StatusInterval: cfg.STATUS_INTERVAL,
		Phrases:        phrases,
	})

	dispatcher := command.NewDispatcher(registry, discordClient.Platform, media, driver, command.Options{
		Usage:        discordClient.Usage(),
		Phrases:      phrases,
		CommandRate:  cfg.COMMAND_RATE,
		CommandBurst: cfg.COMMAND_BURST,
	})

	discordClient.Bind(registry, dispatcher, driver)

	if err := discordClient.Connect(); err != nil {
		log.Fatalf("Failed to connect to Discord: %v", err)
	}

	shutdownManager.Register(discordClient)
	shutdownManager.Register(driver)

	logger.InfoLogger.Println("Bot is now running. Press Ctrl+C to exit.")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.InfoLogger.Println("Shutdown signal received...")

	if err := shutdownManager.Shutdown(30 * time.Second); err != nil {
		logger.ErrorLogger.Printf("Shutdown error: %v", err)
		os.Exit(1)
	}

	logger.InfoLogger.Println("Shutdown complete.")
}

func checkFFmpeg(path string) error {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return err
	}

	if err := exec.Command(resolved, "-hide_banner", "-version").Run(); err != nil {
		return err
	}

	logger.DebugLogger.Printf("Using ffmpeg at %s", resolved)
	return nil
}
