package main

import (
	"context"
	"fmt"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"tsp-search/internal/database"
	"tsp-search/internal/logging"
	"tsp-search/internal/server"
)

// App struct holds the Wails application state
type App struct {
	ctx    context.Context
	server *server.Server
	logger *zap.Logger
	url    string
}

// NewApp starts the in-process HTTP server the window navigates to
func NewApp() (*App, error) {
	logPath, err := database.GetLogFilePath()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New("info", false, logPath)
	if err != nil {
		return nil, err
	}

	srv, err := server.New(server.Config{
		Addr:    "127.0.0.1:0", // 0 = random available port
		Logger:  logger,
		Desktop: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	addr, err := srv.Start()
	if err != nil {
		return nil, fmt.Errorf("failed to start server: %w", err)
	}

	app := &App{
		server: srv,
		logger: logger,
		url:    fmt.Sprintf("http://%s", addr),
	}
	logger.Info("internal HTTP server running", zap.String("url", app.url))
	return app, nil
}

// startup is called when the app starts
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	go func() {
		runtime.WindowExecJS(ctx, fmt.Sprintf(`window.location.href = "%s"`, a.url))
	}()
}

// shutdown is called when the app closes; the active run is archived
func (a *App) shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("error shutting down server", zap.Error(err))
	}
	a.logger.Sync()
}
