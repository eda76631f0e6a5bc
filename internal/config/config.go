package config

import (
	"errors"
	"log/slog"
	"net"
	"net/textproto"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"

	"tradingapi/internal/proxy"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`

	InvokeTimeout   time.Duration     `mapstructure:"invoke_timeout"`
	OutboundTimeout time.Duration     `mapstructure:"outbound_timeout"`
	BodyParsing     string            `mapstructure:"body_parsing"`
	MaxBodyBytes    int64             `mapstructure:"max_body_bytes"`
	DefaultHeaders  map[string]string `mapstructure:"default_headers"`
	StageName       string            `mapstructure:"stage_name"`
	ListenAddress   string            `mapstructure:"listen_address"`

	// APIKeyParameter names an SSM parameter holding the key; it wins over APIKey.
	APIKey          string `mapstructure:"api_key"`
	APIKeyParameter string `mapstructure:"api_key_parameter"`

	PositionsBucket string `mapstructure:"positions_bucket"`
	PositionsKey    string `mapstructure:"positions_key"`
	TradingLogTable string `mapstructure:"trading_log_table"`

	BedrockModelID  string `mapstructure:"bedrock_model_id"`
	MakeTradeURL    string `mapstructure:"make_trade_url"`
	MakeTradeAPIKey string `mapstructure:"make_trade_api_key"`
	AlertsTopicArn  string `mapstructure:"alerts_topic_arn"`

	SummaryCacheTable string        `mapstructure:"summary_cache_table"`
	SummaryCacheTTL   time.Duration `mapstructure:"summary_cache_ttl"`

	AnalyticsBucket  string `mapstructure:"analytics_bucket"`
	TradingLogPrefix string `mapstructure:"trading_log_prefix"`
	GlueDatabase     string `mapstructure:"glue_database"`
	GlueTable        string `mapstructure:"glue_table"`
	AthenaWorkgroup  string `mapstructure:"athena_workgroup"`
	AthenaOutput     string `mapstructure:"athena_output"`
	ExportDaysBack   int    `mapstructure:"export_days_back"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", EnvDev)
	v.SetDefault("log_level", LogLevelInfo)
	v.SetDefault("invoke_timeout", "30s")
	v.SetDefault("outbound_timeout", "20s")
	v.SetDefault("body_parsing", string(proxy.BodyParsingJSON))
	v.SetDefault("max_body_bytes", 6<<20)
	v.SetDefault("default_headers", map[string]string{"Content-Type": "application/json"})
	v.SetDefault("stage_name", "")
	v.SetDefault("listen_address", ":8080")
	v.SetDefault("api_key", "")
	v.SetDefault("api_key_parameter", "")
	v.SetDefault("positions_bucket", "")
	v.SetDefault("positions_key", "positions.json")
	v.SetDefault("trading_log_table", "")
	v.SetDefault("bedrock_model_id", "")
	v.SetDefault("make_trade_url", "")
	v.SetDefault("make_trade_api_key", "")
	v.SetDefault("alerts_topic_arn", "")
	v.SetDefault("summary_cache_table", "")
	v.SetDefault("summary_cache_ttl", "10m")
	v.SetDefault("analytics_bucket", "")
	v.SetDefault("trading_log_prefix", "analytics/trading_log/")
	v.SetDefault("glue_database", "")
	v.SetDefault("glue_table", "")
	v.SetDefault("athena_workgroup", "primary")
	v.SetDefault("athena_output", "")
	v.SetDefault("export_days_back", 1)
}

// Load reads config.yaml from ./config or the working directory when present,
// then lets environment variables (upper-cased keys, e.g. INVOKE_TIMEOUT) override it.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Debug("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Environment, validation.Required, validation.In(EnvDev, EnvStaging, EnvProd)),
		validation.Field(&c.LogLevel, validation.Required, validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError)),
		validation.Field(&c.InvokeTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.OutboundTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.BodyParsing, validation.Required, validation.In(string(proxy.BodyParsingJSON), string(proxy.BodyParsingRaw))),
		validation.Field(&c.MaxBodyBytes, validation.Min(int64(0))),
		validation.Field(&c.ListenAddress, validation.Required, validation.By(validateHostPort)),
		validation.Field(&c.MakeTradeURL, is.URL),
		validation.Field(&c.MakeTradeAPIKey, validation.When(c.MakeTradeURL != "", validation.Required)),
		validation.Field(&c.PositionsKey, validation.When(c.PositionsBucket != "", validation.Required)),
		validation.Field(&c.GlueTable, validation.When(c.GlueDatabase != "", validation.Required)),
		validation.Field(&c.AthenaOutput, validation.When(c.GlueTable != "", validation.Required)),
		validation.Field(&c.ExportDaysBack, validation.Min(0)),
		validation.Field(&c.SummaryCacheTTL, validation.When(c.SummaryCacheTable != "", validation.Required, validation.Min(time.Second))),
	)
}

// Proxy projects the pipeline settings.
func (c *Config) Proxy() proxy.Config {
	headers := make(map[string]string, len(c.DefaultHeaders))
	for k, v := range c.DefaultHeaders {
		headers[textproto.CanonicalMIMEHeaderKey(k)] = v
	}
	return proxy.Config{
		Timeout:        c.InvokeTimeout,
		DefaultHeaders: headers,
		BodyParsing:    proxy.BodyParsing(c.BodyParsing),
		MaxBodyBytes:   c.MaxBodyBytes,
	}
}

func (c *Config) IsProd() bool { return c.Environment == EnvProd }

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}
	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}
	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}
	return nil
}
