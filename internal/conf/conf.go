package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/DevRickLin/social-reactor/internal/biz/domain"
)

// Config represents application configuration
type Config struct {
	// X configuration
	X XConfig

	// News configuration (optional)
	News NewsConfig

	// Feishu configuration (optional)
	Feishu FeishuConfig

	// Generation API configuration
	LLM LLMConfig

	// Watermark store configuration
	Store StoreConfig

	// HTTP API configuration
	API APIConfig

	// Logging configuration
	Log LogConfig

	// Run every job once at startup
	RunOnStart bool

	// Agent configuration (loaded from YAML)
	Agent *AgentConfig

	// Debug mode
	Debug bool
}

// XConfig contains X credentials. OAuth 2.0 user context is required for
// posting; with ClientID and RefreshToken set the access token is refreshed.
type XConfig struct {
	BaseURL           string
	ClientID          string
	ClientSecret      string
	AccessToken       string
	RefreshToken      string
	UserID            string
	RequestsPerMinute int
}

// NewsConfig contains newsapi configuration
type NewsConfig struct {
	APIKey   string
	BaseURL  string
	Language string
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string
	AppSecret string
	ChatID    string // Chat that Post sends to
}

// LLMConfig contains the OpenAI-compatible endpoint configuration
type LLMConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// StoreConfig contains watermark store configuration
type StoreConfig struct {
	DBPath string
}

// APIConfig contains HTTP API configuration
type APIConfig struct {
	Addr string
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	// Watermark DB path
	dbPath := os.Getenv("WATERMARK_DB_PATH")
	if dbPath == "" {
		homeDir, _ := os.UserHomeDir()
		dbPath = filepath.Join(homeDir, ".social-reactor", "watermarks.db")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	addr := os.Getenv("API_ADDR")
	if addr == "" {
		addr = ":" + port
	}

	// Older deployments only set TWITTER_USER_ID
	userID := os.Getenv("X_USER_ID")
	if userID == "" {
		userID = os.Getenv("TWITTER_USER_ID")
	}

	agent, err := LoadAgentConfig(os.Getenv("AGENT_CONFIG_PATH"))
	if err != nil {
		return nil, err
	}

	return &Config{
		X: XConfig{
			BaseURL:           os.Getenv("X_API_BASE_URL"),
			ClientID:          os.Getenv("X_CLIENT_ID"),
			ClientSecret:      os.Getenv("X_CLIENT_SECRET"),
			AccessToken:       os.Getenv("X_ACCESS_TOKEN"),
			RefreshToken:      os.Getenv("X_REFRESH_TOKEN"),
			UserID:            userID,
			RequestsPerMinute: envInt("X_REQUESTS_PER_MINUTE", 30),
		},
		News: NewsConfig{
			APIKey:   os.Getenv("NEWS_API_KEY"),
			BaseURL:  os.Getenv("NEWS_API_BASE_URL"),
			Language: envString("NEWS_LANGUAGE", "en"),
		},
		Feishu: FeishuConfig{
			AppID:     os.Getenv("FEISHU_APP_ID"),
			AppSecret: os.Getenv("FEISHU_APP_SECRET"),
			ChatID:    os.Getenv("FEISHU_CHAT_ID"),
		},
		LLM: LLMConfig{
			APIKey:    os.Getenv("LLM_API_KEY"),
			BaseURL:   os.Getenv("LLM_BASE_URL"),
			Model:     os.Getenv("LLM_MODEL"),
			MaxTokens: envInt("LLM_MAX_TOKENS", 0),
			Timeout:   time.Duration(envInt("LLM_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Store: StoreConfig{
			DBPath: dbPath,
		},
		API: APIConfig{
			Addr: addr,
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "console"),
		},
		RunOnStart: os.Getenv("SCHEDULER_RUN_ON_START") == "true",
		Agent:      agent,
		Debug:      os.Getenv("DEBUG") == "true",
	}, nil
}

func envString(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func envInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

// Validate validates the configuration: the agent file, and credentials for
// every platform a job reads from or writes to
func (c *Config) Validate() error {
	if c.Agent == nil {
		return &ConfigError{Field: "agent", Message: "not loaded"}
	}
	if _, err := c.Agent.BuildJobSpecs(); err != nil {
		return err
	}

	if len(c.Agent.Jobs) > 0 && c.LLM.APIKey == "" && c.LLM.BaseURL == "" {
		return &ConfigError{Field: "LLM_API_KEY/LLM_BASE_URL", Message: "required to generate content"}
	}

	uses := c.Agent.UsedPlatforms()
	if uses.X && c.X.AccessToken == "" {
		return &ConfigError{Field: "X_ACCESS_TOKEN", Message: "required by X jobs"}
	}
	if uses.News && c.News.APIKey == "" {
		return &ConfigError{Field: "NEWS_API_KEY", Message: "required by news jobs"}
	}
	if uses.Feishu && (c.Feishu.AppID == "" || c.Feishu.AppSecret == "") {
		return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required by Feishu jobs"}
	}
	if uses.FeishuPost && c.Feishu.ChatID == "" {
		return &ConfigError{Field: "FEISHU_CHAT_ID", Message: "required by jobs posting to Feishu"}
	}
	return nil
}

// HasX reports whether X credentials are present
func (c *Config) HasX() bool {
	return c.X.AccessToken != ""
}

// HasFeishu reports whether Feishu credentials are present
func (c *Config) HasFeishu() bool {
	return c.Feishu.AppID != "" && c.Feishu.AppSecret != ""
}

// Platforms records which platforms the configured jobs touch
type Platforms struct {
	X          bool
	News       bool
	Feishu     bool
	FeishuPost bool
}

// UsedPlatforms returns the platforms jobs read from or write to
func (a *AgentConfig) UsedPlatforms() Platforms {
	var p Platforms
	for _, job := range a.Jobs {
		switch domain.StreamKind(job.Stream.Kind) {
		case domain.StreamKindXMentions, domain.StreamKindXTimeline:
			p.X = true
		case domain.StreamKindNews:
			p.News = true
		case domain.StreamKindFeishuChat:
			p.Feishu = true
		}

		target := job.target()
		switch target {
		case domain.PlatformX:
			p.X = true
		case domain.PlatformFeishu:
			p.Feishu = true
			if domain.Action(strings.ToLower(job.Action)) == domain.ActionPost {
				p.FeishuPost = true
			}
		}
	}
	return p
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
