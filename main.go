package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/synapse/server/api"
	"github.com/synapse/server/chat"
	"github.com/synapse/server/config"
	"github.com/synapse/server/dashboard"
	"github.com/synapse/server/logger"
	"github.com/synapse/server/middleware"
	"github.com/synapse/server/notify"
	"github.com/synapse/server/session"
	"github.com/synapse/server/startup"
	"github.com/synapse/server/telemetry"
	"github.com/synapse/server/watch"
	"github.com/synapse/server/ws"
)

var version = "dev"

func newHandler(cfg config.Config, manager *session.Manager, hub *notify.Hub, dashboardService *dashboard.Service, wsHandler *ws.RPCHandler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	api.NewChatProxyHandler(cfg.WebhookURL, cfg.WebhookToken, cfg.ChatTimeout).Register(mux)
	api.NewNotifyHandler(hub).Register(mux)
	api.NewSessionHandler(manager).Register(mux)
	api.NewDashboardHandler(dashboardService).Register(mux)

	mux.Handle("GET /ws", wsHandler)

	return middleware.Auth(cfg.AuthToken)(mux)
}

func main() {
	portFlag := flag.Int("port", 0, "server port (default 8080)")
	tokenFlag := flag.String("auth-token", "", "API authentication token (optional)")
	devModeFlag := flag.Bool("dev", false, "enable development mode")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("synapse-server %s\n", version)
		os.Exit(0)
	}

	cfg := config.Load()
	if *portFlag != 0 {
		cfg.Port = strconv.Itoa(*portFlag)
	}
	if *tokenFlag != "" {
		cfg.AuthToken = *tokenFlag
	}
	if *devModeFlag {
		cfg.DevMode = true
	}

	absDataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		slog.Error("failed to resolve data directory", "error", err)
		os.Exit(1)
	}
	cfg.DataDir = absDataDir

	logger.Init(logger.Config{
		DataDir: cfg.DataDir,
		DevMode: cfg.DevMode,
	})

	_, _, telemetryCleanup, err := telemetry.Init(context.Background(), cfg.DataDir, version)
	if err != nil {
		slog.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}

	// Session store and manager
	store, err := session.NewFileStore(cfg.DataDir)
	if err != nil {
		slog.Error("failed to initialize session store", "error", err)
		os.Exit(1)
	}
	manager := session.NewManager(store)

	// Notification hub and the listener routing alerts into sessions
	hub := notify.NewHub()
	listener := notify.NewListener(hub, manager)
	if err := listener.Start(); err != nil {
		slog.Error("failed to start notification listener", "error", err)
		os.Exit(1)
	}

	// Session list watcher pushes collection changes to ws subscribers
	listWatcher := watch.NewSessionListWatcher(store)
	if err := listWatcher.Start(); err != nil {
		slog.Error("failed to start session list watcher", "error", err)
		os.Exit(1)
	}

	// Store watcher reloads after external edits of the history document
	storeWatcher := watch.NewStoreWatcher(store)
	if err := storeWatcher.Start(); err != nil {
		slog.Error("failed to start store watcher", "error", err)
		os.Exit(1)
	}

	dispatcher := chat.NewDispatcher(cfg.WebhookURL, cfg.WebhookToken, manager, cfg.ChatTimeout)
	dashboardService := dashboard.NewService(dashboard.NewClient("", cfg.SpreadsheetID, cfg.SheetsAPIKey))

	wsHandler := ws.NewRPCHandler(cfg.AuthToken, cfg.DevMode, manager, dispatcher, hub, listWatcher)
	handler := newHandler(cfg, manager, hub, dashboardService, wsHandler)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		storeWatcher.Stop()
		listWatcher.Stop()
		listener.Stop()
		hub.Stop()
		telemetryCleanup()
		close(shutdownDone)
	}()

	startup.PrintBanner(startup.BannerOptions{
		Version:  version,
		LocalURL: "http://localhost:" + cfg.Port,
		DataDir:  cfg.DataDir,
	})
	startup.PrintFooter()

	slog.Info("server starting",
		"port", cfg.Port,
		"dataDir", cfg.DataDir,
		"devMode", cfg.DevMode,
		"webhookConfigured", cfg.WebhookURL != "",
		"dashboardConfigured", dashboardService.Configured())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-shutdownDone
	slog.Info("server stopped")
}
