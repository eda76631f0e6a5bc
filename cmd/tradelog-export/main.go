package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"

	"tradingapi/internal/app"
	"tradingapi/internal/config"
	"tradingapi/internal/logger"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	lg := logger.New(cfg.LogLevel, false, cfg.Environment)

	clients, err := app.LoadClients(ctx, cfg)
	if err != nil {
		log.Fatalf("load aws clients: %v", err)
	}

	h, err := app.NewExporter(cfg, clients, lg)
	if err != nil {
		log.Fatalf("build exporter: %v", err)
	}

	lambda.Start(h.Handle)
}
