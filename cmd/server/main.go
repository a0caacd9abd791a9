package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kybradar/kybradar"
	"github.com/kybradar/kybradar/helper"
	"github.com/kybradar/kybradar/httpserver"
	"github.com/kybradar/kybradar/mcp"
)

func main() {
	cfg := helper.LoadConfig()

	radar, err := kybradar.New(cfg)
	if err != nil {
		os.Stderr.WriteString("startup failed: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer radar.Close()
	logger := radar.Logger()

	client := mcp.NewClient(cfg.MCPServerURL, logger)
	server := httpserver.New(cfg.ListenAddr, radar.Conductor, radar.Server, radar.Hub, client, radar.Sentiment, logger)

	errs := make(chan error, 1)
	go func() {
		errs <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errs:
		if err != nil {
			logger.Error("http server failed", "error", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown failed", "error", err)
			os.Exit(1)
		}
	}
}
