package helper

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the process configuration, read from the environment after a
// best-effort .env load.
type Config struct {
	ListenAddr    string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	MCPServerURL  string
	RefDataDir    string
	DatabaseURL   string
	StageTimeout  time.Duration
}

// LoadConfig reads configuration from the environment. A missing .env file
// is not an error.
func LoadConfig() Config {
	_ = godotenv.Load()

	return Config{
		ListenAddr:    envOr("LISTEN_ADDR", ":8080"),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   envOr("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		MCPServerURL:  envOr("MCP_SERVER_URL", "http://localhost:8080/mcp"),
		RefDataDir:    os.Getenv("KYB_REFDATA_DIR"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		StageTimeout:  time.Duration(envIntOr("KYB_STAGE_TIMEOUT_SECONDS", 30)) * time.Second,
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
