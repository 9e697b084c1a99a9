package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Cron       CronConfig       `yaml:"cron"`
	NewsAPI    NewsAPIConfig    `yaml:"newsapi"`
	Feed       FeedConfig       `yaml:"feed"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Worker     WorkerConfig     `yaml:"worker"`
	News       NewsConfig       `yaml:"news"`
	Blocklist  []string         `yaml:"blocklist"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release
}

type DatabaseConfig struct {
	Path  string `yaml:"path"`
	Table string `yaml:"table"`
}

type CronConfig struct {
	APIInterval  string        `yaml:"api_interval"`  // NewsAPI抓取间隔
	FeedInterval string        `yaml:"feed_interval"` // RSS抓取间隔
	RunOnStart   bool          `yaml:"run_on_start"`
	CycleTimeout time.Duration `yaml:"cycle_timeout"`
}

type NewsAPIConfig struct {
	URL      string        `yaml:"url"`
	APIKey   string        `yaml:"api_key"`
	Query    string        `yaml:"query"`
	Language string        `yaml:"language"`
	PageSize int           `yaml:"page_size"`
	SortBy   string        `yaml:"sort_by"`
	Timeout  time.Duration `yaml:"timeout"`
	Retries  int           `yaml:"retries"`
}

type FeedSource struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type FeedConfig struct {
	Mode         string       `yaml:"mode"` // native, script
	PerFeedLimit int          `yaml:"per_feed_limit"`
	Sources      []FeedSource `yaml:"sources"`
	Script       string       `yaml:"script"`
}

type SummarizerConfig struct {
	Command         string        `yaml:"command"`
	Args            []string      `yaml:"args"`
	Protocol        string        `yaml:"protocol"` // tagged, legacy
	Timeout         time.Duration `yaml:"timeout"`
	MaxPending      int           `yaml:"max_pending"`
	Restart         string        `yaml:"restart"` // none, immediate, backoff
	RestartDelay    time.Duration `yaml:"restart_delay"`
	MaxRestartDelay time.Duration `yaml:"max_restart_delay"`
	IgnoreStderr    []string      `yaml:"ignore_stderr"`
}

type WorkerConfig struct {
	Mode         string        `yaml:"mode"` // extractive, llm
	MaxWords     int           `yaml:"max_words"`
	Concurrency  int           `yaml:"concurrency"`   // 单批次并发摘要数
	BatchTimeout time.Duration `yaml:"batch_timeout"` // 不超过 summarizer.timeout 的 3/4
	LLM          LLMConfig     `yaml:"llm"`
}

type LLMConfig struct {
	ApiURL  string        `yaml:"api_url"`
	ApiKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Prompt  string        `yaml:"prompt"`
	Timeout time.Duration `yaml:"timeout"`
}

type NewsConfig struct {
	PageSize int           `yaml:"page_size"`
	MaxAge   time.Duration `yaml:"max_age"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// MaxPageSize 单次读取文章数上限
const MaxPageSize = 50

// Default 默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "5001",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Path:  "data/news.db",
			Table: "news_articles",
		},
		Cron: CronConfig{
			APIInterval:  "*/30 * * * *", // 每30分钟
			FeedInterval: "*/30 * * * *",
			CycleTimeout: 10 * time.Minute,
		},
		NewsAPI: NewsAPIConfig{
			URL:      "https://newsapi.org/v2/everything",
			Query:    "technology",
			Language: "en",
			PageSize: 50,
			SortBy:   "publishedAt",
			Timeout:  15 * time.Second,
			Retries:  3,
		},
		Feed: FeedConfig{
			Mode:         "native",
			PerFeedLimit: 20,
			Sources: []FeedSource{
				{Name: "The Verge", URL: "https://www.theverge.com/rss/index.xml"},
				{Name: "TechCrunch", URL: "https://techcrunch.com/feed/"},
				{Name: "Engadget", URL: "https://www.engadget.com/rss.xml"},
			},
		},
		Summarizer: SummarizerConfig{
			Protocol:        "tagged",
			Timeout:         20 * time.Second,
			MaxPending:      4,
			Restart:         "backoff",
			RestartDelay:    time.Second,
			MaxRestartDelay: time.Minute,
			IgnoreStderr:    []string{"Device set to use"},
		},
		Worker: WorkerConfig{
			Mode:         "extractive",
			MaxWords:     120,
			Concurrency:  8,
			BatchTimeout: 15 * time.Second,
			LLM: LLMConfig{
				ApiURL:  "https://api.openai.com/v1",
				Model:   "gpt-4o-mini",
				Prompt:  "Summarize the following news article in two or three plain sentences.",
				Timeout: 8 * time.Second,
			},
		},
		News: NewsConfig{
			PageSize: 50,
			MaxAge:   72 * time.Hour,
			CacheTTL: time.Minute,
		},
		Blocklist: []string{"dealcatcher.com"},
	}
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	cfg := Default()

	// 如果配置文件存在,读取配置
	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", configPath, err)
		}
	} else {
		log.Printf("[Config] %s not found, using defaults", configPath)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// 环境变量覆盖配置
func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("PORT", &cfg.Server.Port)
	setString("GIN_MODE", &cfg.Server.Mode)
	setString("DB_PATH", &cfg.Database.Path)
	setString("DB_TABLE", &cfg.Database.Table)
	setString("NEWS_API_URL", &cfg.NewsAPI.URL)
	setString("NEWS_API_KEY", &cfg.NewsAPI.APIKey)
	setString("API_FETCH_INTERVAL", &cfg.Cron.APIInterval)
	setString("FEED_FETCH_INTERVAL", &cfg.Cron.FeedInterval)
	setString("SUMMARIZER_CMD", &cfg.Summarizer.Command)
	setString("LLM_API_URL", &cfg.Worker.LLM.ApiURL)
	setString("LLM_API_KEY", &cfg.Worker.LLM.ApiKey)
	setString("LLM_MODEL", &cfg.Worker.LLM.Model)

	if v := os.Getenv("SUMMARIZER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Summarizer.Timeout = d
		} else {
			log.Printf("[Config] ignoring SUMMARIZER_TIMEOUT=%q: %v", v, err)
		}
	}

	if v, ok := os.LookupEnv("BLOCKED_SOURCES"); ok {
		cfg.Blocklist = nil
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.Blocklist = append(cfg.Blocklist, s)
			}
		}
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{"api_interval": c.Cron.APIInterval, "feed_interval": c.Cron.FeedInterval} {
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("cron.%s %q: %w", name, spec, err)
		}
	}

	switch c.Summarizer.Protocol {
	case "tagged", "legacy":
	default:
		return fmt.Errorf("summarizer.protocol must be tagged or legacy, got %q", c.Summarizer.Protocol)
	}
	switch c.Summarizer.Restart {
	case "none", "immediate", "backoff":
	default:
		return fmt.Errorf("summarizer.restart must be none, immediate or backoff, got %q", c.Summarizer.Restart)
	}
	switch c.Feed.Mode {
	case "native":
	case "script":
		if c.Feed.Script == "" {
			return fmt.Errorf("feed.script is required when feed.mode is script")
		}
	default:
		return fmt.Errorf("feed.mode must be native or script, got %q", c.Feed.Mode)
	}
	switch c.Worker.Mode {
	case "extractive", "llm":
	default:
		return fmt.Errorf("worker.mode must be extractive or llm, got %q", c.Worker.Mode)
	}

	if c.Summarizer.Timeout <= 0 {
		return fmt.Errorf("summarizer.timeout must be positive")
	}
	if c.Summarizer.MaxPending <= 0 {
		return fmt.Errorf("summarizer.max_pending must be positive")
	}
	if c.News.PageSize <= 0 || c.News.PageSize > MaxPageSize {
		return fmt.Errorf("news.page_size must be between 1 and %d, got %d", MaxPageSize, c.News.PageSize)
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be positive")
	}
	if c.Database.Table == "" {
		return fmt.Errorf("database.table is required")
	}
	return nil
}

// GetServerAddress 获取服务器监听地址
func (c *Config) GetServerAddress() string {
	// 如果端口是纯数字,加上冒号前缀
	if _, err := strconv.Atoi(c.Server.Port); err == nil {
		return ":" + c.Server.Port
	}
	return c.Server.Port
}
