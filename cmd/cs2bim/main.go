// Command cs2bim runs the HTTP submission surface and the
// generate-model worker pool as one process.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"cs2bim-go/internal/app"
	"cs2bim-go/internal/config"
	"cs2bim-go/internal/logging"
)

var (
	flagConfigFile string
	flagLogLevel   string
)

func init() {
	flag.StringVar(&flagConfigFile, "config", "", "path to the YAML configuration document")
	flag.StringVar(&flagLogLevel, "log-level", "info", "logging level (trace, debug, info, warn, error)")
}

func main() {
	flag.Parse()

	logger := logging.Init(flagLogLevel)
	entry := log.NewEntry(logger)

	cfg, err := config.Load(flagConfigFile)
	if err != nil {
		entry.WithError(err).Fatal("failed to load configuration")
	}

	a, err := app.New(cfg, entry)
	if err != nil {
		entry.WithError(err).Fatal("failed to initialize application")
	}
	defer func() {
		if err := a.Close(); err != nil {
			entry.WithError(err).Warn("error during shutdown")
		}
	}()

	httpServer := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: a.HTTP.Handler(),
	}

	go func() {
		entry.WithField("addr", cfg.Server.ListenAddr).Info("generate-model HTTP surface listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			entry.WithError(err).Fatal("HTTP server stopped unexpectedly")
		}
	}()

	go func() {
		entry.Info("generate-model worker pool starting")
		if err := a.Runner.Run(); err != nil {
			entry.WithError(err).Fatal("worker pool stopped unexpectedly")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	entry.Info("shutting down")
	a.Runner.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		entry.WithError(err).Warn("error shutting down HTTP server")
	}
}
