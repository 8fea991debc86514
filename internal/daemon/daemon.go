package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/promptvaultdev/promptvault/internal/analyze"
	"github.com/promptvaultdev/promptvault/internal/auth"
	"github.com/promptvaultdev/promptvault/internal/billing"
	"github.com/promptvaultdev/promptvault/internal/config"
	"github.com/promptvaultdev/promptvault/internal/metrics"
	"github.com/promptvaultdev/promptvault/internal/prompts"
	"github.com/promptvaultdev/promptvault/internal/quota"
	"github.com/promptvaultdev/promptvault/internal/server"
	"github.com/promptvaultdev/promptvault/internal/store"
	"github.com/promptvaultdev/promptvault/internal/telegram"
	"github.com/promptvaultdev/promptvault/internal/vault"
	"github.com/promptvaultdev/promptvault/internal/version"
)

// Run is the main daemon orchestrator. It initialises all subsystems,
// starts the HTTP server, and blocks until a shutdown signal is
// received.
func Run(cfg *config.Config, foreground bool) error {
	// 1. Set up zerolog logger.
	dataDir := expandHome(cfg.Server.DataDir)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory %s: %w", dataDir, err)
	}

	logLevel := parseLogLevel(cfg.Server.LogLevel)
	zerolog.SetGlobalLevel(logLevel)

	writers := []io.Writer{}

	// Always log to file.
	logPath := filepath.Join(dataDir, "promptvault.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file %s: %w", logPath, err)
	}
	defer logFile.Close()
	writers = append(writers, logFile)

	// If foreground, also write to stdout with console formatting.
	if foreground {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
		writers = append(writers, consoleWriter)
	}

	multi := zerolog.MultiLevelWriter(writers...)
	log.Logger = zerolog.New(multi).With().Timestamp().Str("service", "promptvault").Logger()

	log.Info().
		Str("version", version.Version).
		Str("data_dir", dataDir).
		Bool("foreground", foreground).
		Msg("promptvault starting")

	// 2. Check if already running.
	if IsRunning(dataDir) {
		return fmt.Errorf("promptvault is already running (PID file exists at %s)", filepath.Join(dataDir, pidFilename))
	}

	// 3. Open store.
	dbPath := filepath.Join(dataDir, "promptvault.db")
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	log.Info().Str("db_path", dbPath).Msg("store opened")

	// 4. Write PID file.
	if err := WritePID(dataDir); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer func() {
		if err := RemovePID(dataDir); err != nil {
			log.Error().Err(err).Msg("failed to remove PID file")
		}
	}()

	log.Info().Int("pid", os.Getpid()).Msg("PID file written")

	// 5. Start config watcher.
	configFile := config.ConfigFilePath()
	if configFile == "" {
		configFile = filepath.Join(dataDir, config.DefaultConfigFilename)
	}

	var watcher *config.Watcher
	if _, statErr := os.Stat(configFile); statErr == nil {
		w, watchErr := config.Watch(configFile)
		if watchErr != nil {
			log.Warn().Err(watchErr).Msg("failed to start config watcher; continuing without hot-reload")
		} else {
			watcher = w
			defer watcher.Close()
			watcher.OnChange(func(old, newCfg *config.Config) {
				log.Info().Msg("configuration reloaded")
				newLevel := parseLogLevel(newCfg.Server.LogLevel)
				zerolog.SetGlobalLevel(newLevel)
			})
			log.Info().Str("file", configFile).Msg("config watcher started")
		}
	}

	// 6. Wire up the service stack.
	v := vault.New()
	svc := prompts.NewService(st)
	gate := quota.NewGate(st, cfg.Analysis.FreeMonthlyLimit)
	billingSvc := billing.NewService(st, v, cfg)
	collector := metrics.NewCollector()

	authMgr, err := auth.NewManager(v, cfg)
	if err != nil {
		return fmt.Errorf("initialising auth: %w", err)
	}

	analyzer, err := analyze.New(st, v, gate, cfg)
	if err != nil {
		return fmt.Errorf("initialising analyzer: %w", err)
	}
	log.Info().Bool("ai_enabled", analyzer.AIEnabled()).Msg("analyzer initialized")

	// 7. Background maintenance: analysis cache purging and data
	// pruning share one lifecycle context.
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	purgerDone := analyzer.StartPurger(bgCtx)
	prunerDone := make(chan struct{})
	go func() {
		defer close(prunerDone)
		runPruner(bgCtx, st, cfg.Metrics.RetentionDays)
	}()

	// 8. Telegram webhook handler (optional).
	var tgHandler *telegram.Handler
	bot := telegram.NewBot(v, cfg)
	if bot.Enabled() {
		tgHandler = telegram.NewHandler(bot, svc, analyzer, cfg.Auth.OwnerEmail, cfg.Telegram.WebhookSecret)
		log.Info().Msg("telegram webhook handler enabled")
	}

	// 9. Create and start the HTTP server.
	srv := server.New(cfg, server.Deps{
		Store:     st,
		Prompts:   svc,
		Analyzer:  analyzer,
		Gate:      gate,
		Billing:   billingSvc,
		Auth:      authMgr,
		Telegram:  tgHandler,
		Collector: collector,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	log.Info().
		Int("port", cfg.Server.Port).
		Str("public_url", cfg.Server.PublicURL()).
		Bool("tls", cfg.Server.TLSEnabled).
		Bool("auth", cfg.Auth.Enabled).
		Msg("promptvault is ready")

	if foreground {
		fmt.Printf("\n  PromptVault is running!\n")
		fmt.Printf("  Dashboard: %s\n\n", cfg.Server.PublicURL())
	}

	// 10. Wait for shutdown signal or fatal error.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("fatal server error")
		return err
	}

	// 11. Graceful shutdown with 30-second timeout.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Info().Msg("shutting down server...")

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	// 12. Wait for background goroutines before closing the store.
	bgCancel()
	<-purgerDone
	<-prunerDone
	st.Close()
	if err := RemovePID(dataDir); err != nil {
		log.Error().Err(err).Msg("failed to remove PID file during shutdown")
	}

	log.Info().Msg("promptvault stopped")
	return nil
}

// Stop reads the PID file and sends SIGTERM to the running daemon.
func Stop() error {
	dataDir := expandHome(config.Get().Server.DataDir)

	pid, err := ReadPID(dataDir)
	if err != nil {
		return fmt.Errorf("promptvault does not appear to be running: %w", err)
	}

	if !isProcessAlive(pid) {
		// Stale PID file; clean it up.
		if rmErr := RemovePID(dataDir); rmErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to remove stale PID file: %v\n", rmErr)
		}
		return fmt.Errorf("promptvault is not running (stale PID file removed)")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("sending SIGTERM to process %d: %w", pid, err)
	}

	fmt.Printf("Sent SIGTERM to promptvault (PID %d)\n", pid)

	// Wait briefly for the process to exit.
	for i := 0; i < 30; i++ {
		time.Sleep(100 * time.Millisecond)
		if !isProcessAlive(pid) {
			return nil
		}
	}

	return nil
}

// Status checks if the daemon is running and prints a summary.
func Status() error {
	cfg := config.Get()
	dataDir := expandHome(cfg.Server.DataDir)

	if !IsRunning(dataDir) {
		fmt.Println("promptvault is not running")
		return nil
	}

	pid, _ := ReadPID(dataDir)
	fmt.Printf("promptvault is running (PID %d)\n", pid)

	if cfg.Auth.Enabled {
		// The stats endpoint needs a token; skip the summary.
		return nil
	}

	statsURL := fmt.Sprintf("http://localhost:%d/api/stats", cfg.Server.Port)
	client := &http.Client{Timeout: 3 * time.Second}

	resp, err := client.Get(statsURL)
	if err != nil {
		fmt.Println("  (API unreachable)")
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}

	var stats struct {
		Library struct {
			Total     int64 `json:"total"`
			Favorites int64 `json:"favorites"`
			AddedIn7d int64 `json:"added_in_7d"`
		} `json:"library"`
		Runtime metrics.Stats `json:"runtime"`
	}
	if err := json.Unmarshal(body, &stats); err != nil {
		return nil
	}

	fmt.Printf("\n  Uptime:          %s\n", stats.Runtime.Uptime)
	fmt.Printf("  Prompts:         %d (%d favorites, %d added in 7d)\n",
		stats.Library.Total, stats.Library.Favorites, stats.Library.AddedIn7d)
	fmt.Printf("  Analyses:        %d (%d AI, %d fallback, %d cached)\n",
		stats.Runtime.AnalysesTotal, stats.Runtime.AnalysesAI, stats.Runtime.AnalysesFallback, stats.Runtime.AnalysesCached)
	fmt.Printf("  Cache Hit Rate:  %.1f%%\n", stats.Runtime.CacheHitRate)
	fmt.Printf("  Quota Denials:   %d\n", stats.Runtime.QuotaDenials)
	fmt.Printf("  Shared Fetches:  %d\n", stats.Runtime.SharedFetches)
	fmt.Printf("  Active:          %d\n", stats.Runtime.ActiveRequests)

	return nil
}

// runPruner periodically prunes expired analysis rows from the store.
func runPruner(ctx context.Context, st *store.Store, retentionDays int) {
	if retentionDays <= 0 {
		return
	}

	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Error().Interface("panic", r).Msg("data pruner: recovered from panic")
					}
				}()
				n, err := st.Prune(retentionDays)
				if err != nil {
					log.Error().Err(err).Msg("data pruning failed")
				} else if n > 0 {
					log.Info().Int64("rows", n).Int("retention_days", retentionDays).Msg("pruned old data")
				}
			}()
		}
	}
}

// parseLogLevel converts a string log level to a zerolog.Level.
func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
