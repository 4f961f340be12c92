package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Crawl      CrawlConfig      `yaml:"crawl" mapstructure:"crawl"`
	Browser    BrowserConfig    `yaml:"browser" mapstructure:"browser"`
	Generation GenerationConfig `yaml:"generation" mapstructure:"generation"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	LlamaCpp   LlamaCppConfig   `yaml:"llamacpp" mapstructure:"llamacpp"`
	Process    ProcessConfig    `yaml:"process" mapstructure:"process"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// CrawlConfig configures listing and detail crawling.
type CrawlConfig struct {
	Mode            string   `yaml:"mode" mapstructure:"mode"` // http or browser
	PagesPerKeyword int      `yaml:"pages_per_keyword" mapstructure:"pages_per_keyword"`
	DelayMin        float64  `yaml:"delay_min" mapstructure:"delay_min"`
	DelayMax        float64  `yaml:"delay_max" mapstructure:"delay_max"`
	DetailDelayMin  float64  `yaml:"detail_delay_min" mapstructure:"detail_delay_min"`
	DetailDelayMax  float64  `yaml:"detail_delay_max" mapstructure:"detail_delay_max"`
	HTTPTimeoutSecs int      `yaml:"http_timeout_secs" mapstructure:"http_timeout_secs"`
	Keywords        []string `yaml:"keywords" mapstructure:"keywords"`
	Vocabulary      []string `yaml:"vocabulary" mapstructure:"vocabulary"`
	SourcesFile     string   `yaml:"sources_file" mapstructure:"sources_file"`
	SkipBoss        bool     `yaml:"skip_boss" mapstructure:"skip_boss"`
}

// BrowserConfig configures the headless browser fetcher.
type BrowserConfig struct {
	Headless        bool   `yaml:"headless" mapstructure:"headless"`
	NoSandbox       bool   `yaml:"no_sandbox" mapstructure:"no_sandbox"`
	WaitTimeoutSecs int    `yaml:"wait_timeout_secs" mapstructure:"wait_timeout_secs"`
	UserAgent       string `yaml:"user_agent" mapstructure:"user_agent"`
}

// GenerationConfig configures the text-generation backend.
type GenerationConfig struct {
	Provider          string  `yaml:"provider" mapstructure:"provider"` // anthropic, gemini or llamacpp
	Model             string  `yaml:"model" mapstructure:"model"`
	MaxNewTokens      int     `yaml:"max_new_tokens" mapstructure:"max_new_tokens"`
	Temperature       float64 `yaml:"temperature" mapstructure:"temperature"`
	RequestsPerMinute int     `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// GeminiConfig holds Google Gemini API settings.
type GeminiConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// LlamaCppConfig points at a local llama.cpp server.
type LlamaCppConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ProcessConfig configures the enrichment batch processor.
type ProcessConfig struct {
	BatchSize      int `yaml:"batch_size" mapstructure:"batch_size"`
	MaxUnprocessed int `yaml:"max_unprocessed" mapstructure:"max_unprocessed"`
}

// MetricsConfig configures the Prometheus Pushgateway target.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url" mapstructure:"pushgateway_url"`
	Job            string `yaml:"job" mapstructure:"job"`
}

// DefaultKeywords are the search terms used when none are configured.
var DefaultKeywords = []string{
	"web3", "区块链", "blockchain", "DeFi", "NFT", "DAO", "智能合约", "smart contract",
	"solidity", "ethereum", "以太坊", "比特币", "bitcoin", "crypto", "加密货币",
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	// .env is optional; existing environment variables win.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("JOBINSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees keys viper knows about, so every key needs a
	// default for its environment variable to apply.
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "jobinsight.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("crawl.mode", "http")
	v.SetDefault("crawl.pages_per_keyword", 3)
	v.SetDefault("crawl.delay_min", 2.0)
	v.SetDefault("crawl.delay_max", 5.0)
	v.SetDefault("crawl.detail_delay_min", 1.0)
	v.SetDefault("crawl.detail_delay_max", 3.0)
	v.SetDefault("crawl.http_timeout_secs", 10)
	v.SetDefault("crawl.keywords", DefaultKeywords)
	v.SetDefault("crawl.vocabulary", []string{})
	v.SetDefault("crawl.sources_file", "")
	v.SetDefault("crawl.skip_boss", false)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.wait_timeout_secs", 10)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("generation.provider", "llamacpp")
	v.SetDefault("generation.model", "meta-llama/Meta-Llama-3.1-8B-Instruct")
	v.SetDefault("generation.max_new_tokens", 512)
	v.SetDefault("generation.temperature", 0.1)
	v.SetDefault("generation.requests_per_minute", 60)
	v.SetDefault("generation.max_retries", 2)
	v.SetDefault("generation.timeout_secs", 120)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("gemini.key", "")
	v.SetDefault("llamacpp.base_url", "http://127.0.0.1:8080")
	v.SetDefault("process.batch_size", 10)
	v.SetDefault("process.max_unprocessed", 1000)
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "jobinsight")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings a command needs are present.
// Command is one of "crawl", "process" or "pipeline"; anything else only
// needs the store.
func (c *Config) Validate(command string) error {
	var missing []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Store.DatabaseURL == "" {
		missing = append(missing, "store.database_url is required")
	}

	if command == "crawl" || command == "pipeline" {
		switch c.Crawl.Mode {
		case "http", "browser":
		default:
			return eris.Errorf("config: unknown crawl mode %q", c.Crawl.Mode)
		}
		if c.Crawl.DelayMin < 0 || c.Crawl.DelayMax < c.Crawl.DelayMin {
			return eris.Errorf("config: invalid crawl delay range [%v, %v]", c.Crawl.DelayMin, c.Crawl.DelayMax)
		}
	}

	if command == "process" || command == "pipeline" {
		switch c.Generation.Provider {
		case "anthropic":
			if c.Anthropic.Key == "" {
				missing = append(missing, "anthropic.key is required")
			}
		case "gemini":
			if c.Gemini.Key == "" {
				missing = append(missing, "gemini.key is required")
			}
		case "llamacpp":
			if c.LlamaCpp.BaseURL == "" {
				missing = append(missing, "llamacpp.base_url is required")
			}
		default:
			return eris.Errorf("config: unknown generation provider %q", c.Generation.Provider)
		}
		if c.Generation.Model == "" {
			missing = append(missing, "generation.model is required")
		}
	}

	if len(missing) > 0 {
		return eris.Errorf("config: %s", strings.Join(missing, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
