package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by FACTGRAPH_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("FACTGRAPH_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// Store backends
const (
	BackendPostgres = "postgres"
	BackendNeo4j    = "neo4j"
	BackendMemory   = "memory"
)

// StoreBackend returns the graph store backend.
// Defaults to "postgres" if not set.
// Valid values: postgres, neo4j, memory
func StoreBackend() string {
	b := os.Getenv("STORE_BACKEND")
	if b == "" {
		return BackendPostgres
	}
	return b
}

func Neo4jURI() string {
	return os.Getenv("NEO4J_URI")
}

func Neo4jUser() string {
	u := os.Getenv("NEO4J_USER")
	if u == "" {
		return "neo4j"
	}
	return u
}

func Neo4jPassword() string {
	return os.Getenv("NEO4J_PASSWORD")
}

func Neo4jDatabase() string {
	return os.Getenv("NEO4J_DATABASE")
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// OpenAIBaseURL points the OpenAI provider at a compatible host (Cerebras, Ollama, ...).
func OpenAIBaseURL() string {
	return os.Getenv("OPENAI_BASE_URL")
}

func AnthropicAPIKey() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}

func GeminiAPIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}

// LLMProvider returns the configured LLM provider used for extraction and grounding.
// Defaults to "gemini" if not set.
// Valid values: openai, anthropic, gemini, mock
func LLMProvider() string {
	p := os.Getenv("LLM_PROVIDER")
	if p == "" {
		return "gemini"
	}
	return p
}

// LLMAPIKey returns the API key for the configured LLM provider.
func LLMAPIKey() string {
	switch LLMProvider() {
	case "anthropic":
		return AnthropicAPIKey()
	case "openai":
		return OpenAIAPIKey()
	case "mock":
		return ""
	default:
		return GeminiAPIKey()
	}
}

// LLMExtractModel overrides the provider's extraction model.
func LLMExtractModel() string {
	return os.Getenv("LLM_EXTRACT_MODEL")
}

// LLMGroundModel overrides the provider's grounding model.
func LLMGroundModel() string {
	return os.Getenv("LLM_GROUND_MODEL")
}

func MigrationsPath() string {
	p := os.Getenv("MIGRATIONS_PATH")
	if p == "" {
		return "migrations"
	}
	return p
}

// CorroborationConfigPath returns the YAML file with sources, trust, slots and rules.
func CorroborationConfigPath() string {
	p := os.Getenv("CORROBORATION_CONFIG")
	if p == "" {
		return "corroboration.yaml"
	}
	return p
}

// AdminToken guards client registration. Empty disables the endpoint.
func AdminToken() string {
	return os.Getenv("ADMIN_TOKEN")
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

// IngestWorkers bounds how many per-source transactions run at once.
// Defaults to 4.
func IngestWorkers() int {
	return positiveInt("INGEST_WORKERS", 4)
}

// ProduceWorkers bounds how many sources are fetched and extracted at once.
// Defaults to 4.
func ProduceWorkers() int {
	return positiveInt("PRODUCE_WORKERS", 4)
}

// IngestMaxRetries is how often a transaction aborted by an isolation
// conflict is attempted again. Defaults to 3.
func IngestMaxRetries() int {
	n, err := strconv.Atoi(os.Getenv("INGEST_MAX_RETRIES"))
	if err != nil || n < 0 {
		return 3
	}
	return n
}

// RunInterval is the period of scheduled runs. Zero disables the scheduler.
func RunInterval() time.Duration {
	return duration("RUN_INTERVAL", 0)
}

func FetchTimeout() time.Duration {
	return duration("FETCH_TIMEOUT", 30*time.Second)
}

func FetchUserAgent() string {
	ua := os.Getenv("FETCH_USER_AGENT")
	if ua == "" {
		return "factgraph/1.0 (+https://github.com/Harshitk-cp/factgraph)"
	}
	return ua
}

// FetchMaxBytes caps the size of a fetched page. Defaults to 5 MiB.
func FetchMaxBytes() int64 {
	n, err := strconv.ParseInt(os.Getenv("FETCH_MAX_BYTES"), 10, 64)
	if err != nil || n <= 0 {
		return 5 << 20
	}
	return n
}

// FetchRPS is the per-host request rate of the crawler. Defaults to 1.
func FetchRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("FETCH_RPS"), 64)
	if err != nil || rps <= 0 {
		return 1
	}
	return rps
}

func positiveInt(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func duration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d < 0 {
		return def
	}
	return d
}
