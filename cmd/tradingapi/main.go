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

	gw, err := app.NewGateway(ctx, cfg, clients, lg)
	if err != nil {
		log.Fatalf("build gateway: %v", err)
	}

	lambda.Start(gw.HandleEvent)
}
