package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/nfrund/goby-chat/internal/app"
	"github.com/nfrund/goby-chat/internal/config"
	"github.com/nfrund/goby-chat/internal/logging"
	"github.com/nfrund/goby-chat/internal/server"
)

func main() {
	cfg := config.New()
	logger := logging.New()

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		logger.Error("Failed to initialize application", slog.Any("error", err))
		os.Exit(1)
	}

	s := server.New(a)
	if err := s.Start(); err != nil {
		logger.Error("Server stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}
