// Package app builds the gateway and the export job from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"tradingapi/internal/advisor"
	"tradingapi/internal/alerts"
	"tradingapi/internal/config"
	"tradingapi/internal/db"
	"tradingapi/internal/etl"
	"tradingapi/internal/handlers"
	"tradingapi/internal/mothership"
	"tradingapi/internal/proxy"
	"tradingapi/internal/router"
	"tradingapi/internal/security"
	"tradingapi/internal/trading"
)

// DynamoClient covers the trading log and the summary cache.
type DynamoClient interface {
	db.DynamoAPI
	advisor.CacheClient
}

// Clients holds the AWS clients the service may use. A nil client disables the
// features that need it.
type Clients struct {
	SSM     security.ParameterClient
	S3      db.S3API
	Dynamo  DynamoClient
	Bedrock advisor.BedrockClient
	SNS     alerts.Publisher
	Glue    etl.GlueClient
	Athena  etl.AthenaClient
}

func NewClients(awsCfg aws.Config) Clients {
	return Clients{
		SSM:     ssm.NewFromConfig(awsCfg),
		S3:      s3.NewFromConfig(awsCfg),
		Dynamo:  dynamodb.NewFromConfig(awsCfg),
		Bedrock: bedrockruntime.NewFromConfig(awsCfg),
		SNS:     sns.NewFromConfig(awsCfg),
		Glue:    glue.NewFromConfig(awsCfg),
		Athena:  athena.NewFromConfig(awsCfg),
	}
}

// NeedsAWS reports whether cfg names any AWS resource.
func NeedsAWS(cfg *config.Config) bool {
	return cfg.APIKeyParameter != "" ||
		cfg.PositionsBucket != "" ||
		cfg.TradingLogTable != "" ||
		cfg.BedrockModelID != "" ||
		cfg.SummaryCacheTable != "" ||
		cfg.AlertsTopicArn != "" ||
		cfg.AnalyticsBucket != "" ||
		cfg.GlueTable != ""
}

// LoadClients uses the default credential chain (the Lambda execution role in
// production). It returns zero Clients when nothing in cfg needs AWS.
func LoadClients(ctx context.Context, cfg *config.Config) (Clients, error) {
	if !NeedsAWS(cfg) {
		return Clients{}, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return Clients{}, fmt.Errorf("load aws config: %w", err)
	}
	return NewClients(awsCfg), nil
}

func stores(cfg *config.Config, c Clients, logger *slog.Logger) (trading.PositionStore, trading.TradeLog, error) {
	var (
		positions trading.PositionStore = &db.MemoryPositions{}
		log       trading.TradeLog      = &db.MemoryTradeLog{}
	)
	if cfg.PositionsBucket != "" {
		s, err := db.NewS3PositionStore(c.S3, cfg.PositionsBucket, cfg.PositionsKey)
		if err != nil {
			return nil, nil, err
		}
		positions = s
	} else {
		logger.Warn("positions_bucket not set, keeping positions in memory")
	}
	if cfg.TradingLogTable != "" {
		l, err := db.NewDynamoTradeLog(c.Dynamo, cfg.TradingLogTable)
		if err != nil {
			return nil, nil, err
		}
		log = l
	} else {
		logger.Warn("trading_log_table not set, keeping trading log in memory")
	}
	return positions, log, nil
}

// NewGateway assembles the catch-all gateway with every trading route mounted.
func NewGateway(ctx context.Context, cfg *config.Config, c Clients, logger *slog.Logger) (*proxy.Gateway, error) {
	apiKey, err := security.LoadAPIKey(ctx, c.SSM, cfg.APIKeyParameter, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("api key: %w", err)
	}

	positions, log, err := stores(cfg, c, logger)
	if err != nil {
		return nil, err
	}

	deps := trading.AnalyzerDeps{Positions: positions, Log: log, Logger: logger}
	var summarizer handlers.Summarizer

	if cfg.BedrockModelID != "" {
		opts := advisor.Options{Timeout: cfg.OutboundTimeout, Logger: logger}
		if cfg.SummaryCacheTable != "" {
			cache, err := advisor.NewSummaryCache(c.Dynamo, cfg.SummaryCacheTable, cfg.SummaryCacheTTL)
			if err != nil {
				return nil, err
			}
			opts.Cache = cache
		}
		adv, err := advisor.New(c.Bedrock, cfg.BedrockModelID, opts)
		if err != nil {
			return nil, err
		}
		deps.Advisor = adv
		summarizer = adv
	}
	if cfg.MakeTradeURL != "" {
		mc, err := mothership.New(cfg.MakeTradeURL, cfg.MakeTradeAPIKey, cfg.OutboundTimeout, nil)
		if err != nil {
			return nil, err
		}
		deps.Trades = mc
	}
	if cfg.AlertsTopicArn != "" {
		n, err := alerts.NewNotifier(c.SNS, cfg.AlertsTopicArn)
		if err != nil {
			return nil, err
		}
		deps.Notifier = n
	}

	api := handlers.NewAPI(handlers.Deps{
		APIKey:     apiKey,
		Analyzer:   trading.NewAnalyzer(deps),
		Positions:  positions,
		Log:        log,
		Summarizer: summarizer,
		Logger:     logger,
	})

	r := router.New(router.WithBasePath(cfg.StageName))
	api.Mount(r)

	return proxy.NewGateway(cfg.Proxy(), r, logger), nil
}

// NewExporter assembles the scheduled trading log export.
func NewExporter(cfg *config.Config, c Clients, logger *slog.Logger) (*etl.Exporter, error) {
	if cfg.TradingLogTable == "" {
		return nil, fmt.Errorf("trading_log_table is required for the export")
	}
	log, err := db.NewDynamoTradeLog(c.Dynamo, cfg.TradingLogTable)
	if err != nil {
		return nil, err
	}

	var (
		glueClient etl.GlueClient
		repairer   *etl.Repairer
	)
	if cfg.GlueDatabase != "" && cfg.GlueTable != "" {
		glueClient = c.Glue
		repairer, err = etl.NewRepairer(c.Athena, cfg.GlueDatabase, cfg.GlueTable, cfg.AthenaWorkgroup, cfg.AthenaOutput, logger)
		if err != nil {
			return nil, err
		}
	}

	return etl.NewExporter(log, c.S3, glueClient, repairer, etl.ExportConfig{
		Bucket:   cfg.AnalyticsBucket,
		Prefix:   cfg.TradingLogPrefix,
		Database: cfg.GlueDatabase,
		Table:    cfg.GlueTable,
		DaysBack: cfg.ExportDaysBack,
	}, logger), nil
}
