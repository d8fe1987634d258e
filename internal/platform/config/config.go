package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// サポートするドキュメントソース種別
const (
	SourceTypeLocal = "local"
	SourceTypeS3    = "s3"
	SourceTypeGit   = "git"
)

// サポートするベクトルストア種別
const (
	VectorStoreMemory   = "memory"
	VectorStorePostgres = "postgres"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// HTTPサーバ設定
	Server ServerConfig

	// チャンク分割と検索の設定
	Pipeline PipelineConfig

	// OpenAI設定（Embeddings + チャット）
	OpenAI OpenAIConfig

	// ドキュメントソース設定
	Source SourceConfig

	// ベクトルストア設定
	VectorStore string

	// Database設定（VectorStoreがpostgresの場合に使用）
	Database DatabaseConfig

	// ログ設定
	Log LogConfig
}

// ServerConfig はHTTPサーバ設定
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// PipelineConfig はチャンク分割と検索の設定
type PipelineConfig struct {
	ChunkSize    int
	ChunkOverlap int
	TopK         int
}

// OpenAIConfig はOpenAI API設定
type OpenAIConfig struct {
	APIKey             string
	BaseURL            string
	EmbeddingModel     string
	EmbeddingDimension int
	ChatModel          string
	Temperature        float64
	MaxTokens          int
}

// SourceConfig はドキュメントソース設定
type SourceConfig struct {
	Type string

	// local用
	DocumentsDir string

	// s3用
	S3Bucket string
	S3Prefix string

	// git用
	GitURL         string
	GitRef         string
	GitCloneDir    string
	GitSSHKeyPath  string
	GitSSHPassword string
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// LogConfig はログ設定
type LogConfig struct {
	Level  string
	Format string
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:           getEnv("HTTP_ADDR", ":8000"),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		},
		Pipeline: PipelineConfig{
			ChunkSize:    getEnvAsInt("CHUNK_SIZE", 1000),
			ChunkOverlap: getEnvAsInt("CHUNK_OVERLAP", 200),
			TopK:         getEnvAsInt("TOP_K", 3),
		},
		OpenAI: OpenAIConfig{
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			BaseURL:            getEnv("OPENAI_BASE_URL", ""),
			EmbeddingModel:     getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension: getEnvAsInt("OPENAI_EMBEDDING_DIMENSION", 1536),
			ChatModel:          getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
			Temperature:        getEnvAsFloat("OPENAI_TEMPERATURE", 0.3),
			MaxTokens:          getEnvAsInt("OPENAI_MAX_TOKENS", 1024),
		},
		Source: SourceConfig{
			Type:           getEnv("SOURCE_TYPE", SourceTypeLocal),
			DocumentsDir:   getEnv("DOCUMENTS_DIR", "./documents"),
			S3Bucket:       getEnv("S3_BUCKET", ""),
			S3Prefix:       getEnv("S3_PREFIX", "documents/"),
			GitURL:         getEnv("GIT_URL", ""),
			GitRef:         getEnv("GIT_REF", "main"),
			GitCloneDir:    getEnv("GIT_CLONE_DIR", "/var/lib/portfolio-rag/repos"),
			GitSSHKeyPath:  getEnv("GIT_SSH_KEY_PATH", ""),
			GitSSHPassword: getEnv("GIT_SSH_PASSWORD", ""),
		},
		VectorStore: getEnv("VECTOR_STORE", VectorStoreMemory),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "portfolio"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "portfolio"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate は設定値の整合性を検証します。
// 不正な設定は起動時に検出してエラーにします
func (c *Config) Validate() error {
	if c.Pipeline.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.Pipeline.ChunkSize)
	}
	if c.Pipeline.ChunkOverlap < 0 {
		return fmt.Errorf("CHUNK_OVERLAP must not be negative, got %d", c.Pipeline.ChunkOverlap)
	}
	if c.Pipeline.ChunkOverlap >= c.Pipeline.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)",
			c.Pipeline.ChunkOverlap, c.Pipeline.ChunkSize)
	}
	if c.Pipeline.TopK <= 0 {
		return fmt.Errorf("TOP_K must be positive, got %d", c.Pipeline.TopK)
	}

	switch c.Source.Type {
	case SourceTypeLocal:
	case SourceTypeS3:
		if c.Source.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when SOURCE_TYPE is %s", SourceTypeS3)
		}
	case SourceTypeGit:
		if c.Source.GitURL == "" {
			return fmt.Errorf("GIT_URL is required when SOURCE_TYPE is %s", SourceTypeGit)
		}
	default:
		return fmt.Errorf("unknown SOURCE_TYPE: %s", c.Source.Type)
	}

	switch c.VectorStore {
	case VectorStoreMemory, VectorStorePostgres:
	default:
		return fmt.Errorf("unknown VECTOR_STORE: %s", c.VectorStore)
	}

	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat は環境変数を浮動小数点数として取得します
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList は環境変数をカンマ区切りのリストとして取得します
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
