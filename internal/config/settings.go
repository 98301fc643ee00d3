package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Settings holds everything that differs between deployments.
// Constants that never change per environment stay in environmentVariables.go.
type Settings struct {
	ListenAddr string `mapstructure:"LISTEN_ADDR"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`

	LLMProvider       string `mapstructure:"LLM_PROVIDER"`
	OpenAIAPIKey      string `mapstructure:"OPENAI_API_KEY"`
	OpenAIChatModel   string `mapstructure:"OPENAI_CHAT_MODEL"`
	OpenAIVisionModel string `mapstructure:"OPENAI_VISION_MODEL"`
	OpenAIEmbedModel  string `mapstructure:"OPENAI_EMBEDDING_MODEL"`
	GeminiAPIKey      string `mapstructure:"GEMINI_API_KEY"`
	GeminiModel       string `mapstructure:"GEMINI_MODEL"`
	GeminiEmbedModel  string `mapstructure:"GEMINI_EMBEDDING_MODEL"`
	VisionAPIKey      string `mapstructure:"GOOGLE_VISION_API_KEY"`

	QdrantHost   string `mapstructure:"QDRANT_HOST"`
	QdrantPort   int    `mapstructure:"QDRANT_PORT"`
	QdrantAPIKey string `mapstructure:"QDRANT_API_KEY"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUser     string `mapstructure:"SMTP_USER"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`

	AuthMode    string `mapstructure:"AUTH_MODE"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`
	JWTIssuer   string `mapstructure:"JWT_ISSUER"`
	StaticToken string `mapstructure:"STATIC_TOKEN"`
	StaticUser  string `mapstructure:"STATIC_USER_ID"`

	RateLimitPerSecond float64 `mapstructure:"RATE_LIMIT_PER_SECOND"`
	RateLimitBurst     int     `mapstructure:"RATE_LIMIT_BURST"`

	PopplerBinary   string `mapstructure:"POPPLER_BINARY"`
	PageConcurrency int    `mapstructure:"PAGE_CONCURRENCY"`
}

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	AuthModeJWT    = "jwt"
	AuthModeStatic = "static"

	envPrefix = "STUDYMENTOR"
)

var settingKeys = map[string]any{
	"LISTEN_ADDR":            ServerListenAddr,
	"LOG_LEVEL":              "debug",
	"LLM_PROVIDER":           ProviderOpenAI,
	"OPENAI_API_KEY":         "",
	"OPENAI_CHAT_MODEL":      OpenAIChatModel,
	"OPENAI_VISION_MODEL":    OpenAIVisionModel,
	"OPENAI_EMBEDDING_MODEL": OpenAIEmbeddingModel,
	"GEMINI_API_KEY":         "",
	"GEMINI_MODEL":           GeminiModelName,
	"GEMINI_EMBEDDING_MODEL": GoogleEmbeddingModel,
	"GOOGLE_VISION_API_KEY":  "",
	"QDRANT_HOST":            QdrantHost,
	"QDRANT_PORT":            QdrantGrpcPort,
	"QDRANT_API_KEY":         "",
	"REDIS_ADDR":             RedisAddr,
	"REDIS_PASSWORD":         "",
	"SMTP_HOST":              SMTPHost,
	"SMTP_PORT":              SMTPPort,
	"SMTP_USER":              "",
	"SMTP_PASSWORD":          "",
	"SMTP_FROM":              "",
	"AUTH_MODE":              AuthModeJWT,
	"JWT_SECRET":             "",
	"JWT_ISSUER":             "",
	"STATIC_TOKEN":           "",
	"STATIC_USER_ID":         "local-user",
	"RATE_LIMIT_PER_SECOND":  float64(RATE_LIMIT_PER_SECOND),
	"RATE_LIMIT_BURST":       BURST_RATE_LIMIT_PER_SECOND,
	"POPPLER_BINARY":         PopplerBinary,
	"PAGE_CONCURRENCY":       PageConcurrency,
}

// Load reads .env (if present), config.yaml (if present) and STUDYMENTOR_* environment variables.
func Load() (*Settings, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("loading .env: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	for key, def := range settingKeys {
		v.SetDefault(key, def)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config.yaml: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	return &s, s.Validate()
}

func (s *Settings) Validate() error {
	switch s.LLMProvider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", s.LLMProvider)
	}
	switch s.AuthMode {
	case AuthModeJWT:
		if s.JWTSecret == "" {
			return errors.New("JWT_SECRET is required when AUTH_MODE=jwt")
		}
	case AuthModeStatic:
		if s.StaticToken == "" {
			return errors.New("STATIC_TOKEN is required when AUTH_MODE=static")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", s.AuthMode)
	}
	if s.PageConcurrency < 1 {
		s.PageConcurrency = PageConcurrency
	}
	return nil
}
