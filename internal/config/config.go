package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Mongo      MongoConfig
	Postgres   PostgresConfig
	Links      LinksConfig
	Redis      RedisConfig
	Milvus     MilvusConfig
	Embedding  EmbeddingConfig
	Analysis   AnalysisConfig
	LLM        LLMConfig
	Prometheus PrometheusConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type MongoConfig struct {
	URI string
	DB  string
}

type PostgresConfig struct {
	URL string
}

// LinksConfig 资产-文档关联存储
type LinksConfig struct {
	Provider string // mongo | postgres
}

type RedisConfig struct {
	Enabled           bool
	Host              string
	Port              string
	DB                int
	EmbeddingCacheTTL int // 秒
}

// MilvusConfig 全局默认连接，租户级覆盖通过环境变量 MILVUS_URI_<domain> 读取
type MilvusConfig struct {
	URI      string
	Token    string
	SearchEf int
	Shards   int
}

type EmbeddingConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	Dimension int
}

type AnalysisConfig struct {
	DataDir     string
	TopK        int
	ResultLimit int
	MaxParallel int
}

type LLMConfig struct {
	Structured ChatModelConfig
	Evidence   ChatModelConfig
}

type ChatModelConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	Temperature       float64
	RequestsPerMinute int
}

type PrometheusConfig struct {
	Enabled bool
}

var AppConfig *Config

// GetAppConfig 获取已加载的配置
func GetAppConfig() *Config {
	return AppConfig
}

func LoadConfig() error {
	v := viper.New()

	v.SetDefault("server.port", "9090")
	v.SetDefault("server.env", "development")
	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.db", "")
	v.SetDefault("postgres.url", "")
	v.SetDefault("links.provider", "mongo")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.embedding_cache_ttl", 3600)
	v.SetDefault("milvus.uri", "")
	v.SetDefault("milvus.token", "")
	v.SetDefault("milvus.search_ef", 64)
	v.SetDefault("milvus.shards", 2)

	// 向量维度必须与入库时一致
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimension", 384)

	v.SetDefault("analysis.data_dir", "./data")
	v.SetDefault("analysis.top_k", 10)
	v.SetDefault("analysis.result_limit", 5)
	v.SetDefault("analysis.max_parallel", 8)

	v.SetDefault("llm.structured.model", "gpt-4o")
	v.SetDefault("llm.structured.temperature", 0.7)
	v.SetDefault("llm.evidence.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.evidence.model", "meta-llama/llama-4-maverick-17b-128e-instruct")
	v.SetDefault("llm.evidence.temperature", 0.2)
	v.SetDefault("llm.structured.requests_per_minute", 60)
	v.SetDefault("llm.evidence.requests_per_minute", 30)
	v.SetDefault("prometheus.enabled", true)

	// 读取环境变量
	v.SetEnvPrefix("OPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if port := os.Getenv("PORT"); port != "" {
		v.Set("server.port", port)
	}
	if env := os.Getenv("ENV"); env != "" {
		v.Set("server.env", env)
	}
	if mongoURI := os.Getenv("MONGO_URI"); mongoURI != "" {
		v.Set("mongo.uri", mongoURI)
	}
	if mongoDB := os.Getenv("MONGO_DB"); mongoDB != "" {
		v.Set("mongo.db", mongoDB)
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		v.Set("postgres.url", dbURL)
	}
	if provider := os.Getenv("LINKS_PROVIDER"); provider != "" {
		v.Set("links.provider", strings.ToLower(provider))
	}
	if redisHost := os.Getenv("REDIS_HOST"); redisHost != "" {
		v.Set("redis.host", redisHost)
		v.Set("redis.enabled", true)
	}
	if redisPort := os.Getenv("REDIS_PORT"); redisPort != "" {
		v.Set("redis.port", redisPort)
	}
	if milvusURI := os.Getenv("MILVUS_URI"); milvusURI != "" {
		v.Set("milvus.uri", milvusURI)
	}
	if milvusToken := os.Getenv("MILVUS_TOKEN"); milvusToken != "" {
		v.Set("milvus.token", milvusToken)
	}
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		v.Set("analysis.data_dir", dataDir)
	}

	// 模型密钥
	openaiKey := os.Getenv("OPENAI_API_KEY")
	if openaiKey != "" {
		v.Set("llm.structured.api_key", openaiKey)
	}
	if groqKey := os.Getenv("GROQ_API_KEY"); groqKey != "" {
		v.Set("llm.evidence.api_key", groqKey)
	}
	if key := os.Getenv("EMBEDDING_API_KEY"); key != "" {
		v.Set("embedding.api_key", key)
	} else if openaiKey != "" {
		v.Set("embedding.api_key", openaiKey)
	}
	if baseURL := os.Getenv("EMBEDDING_BASE_URL"); baseURL != "" {
		v.Set("embedding.base_url", baseURL)
	}
	if model := os.Getenv("EMBEDDING_MODEL"); model != "" {
		v.Set("embedding.model", model)
	}
	if dim := os.Getenv("EMBEDDING_DIMENSION"); dim != "" {
		v.Set("embedding.dimension", dim)
	}
	if rpm := os.Getenv("LLM_STRUCTURED_RPM"); rpm != "" {
		v.Set("llm.structured.requests_per_minute", rpm)
	}
	if rpm := os.Getenv("LLM_EVIDENCE_RPM"); rpm != "" {
		v.Set("llm.evidence.requests_per_minute", rpm)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("server.port"),
			Env:  v.GetString("server.env"),
		},
		Mongo: MongoConfig{
			URI: v.GetString("mongo.uri"),
			DB:  v.GetString("mongo.db"),
		},
		Postgres: PostgresConfig{
			URL: v.GetString("postgres.url"),
		},
		Links: LinksConfig{
			Provider: v.GetString("links.provider"),
		},
		Redis: RedisConfig{
			Enabled:           v.GetBool("redis.enabled"),
			Host:              v.GetString("redis.host"),
			Port:              v.GetString("redis.port"),
			DB:                v.GetInt("redis.db"),
			EmbeddingCacheTTL: v.GetInt("redis.embedding_cache_ttl"),
		},
		Milvus: MilvusConfig{
			URI:      v.GetString("milvus.uri"),
			Token:    v.GetString("milvus.token"),
			SearchEf: v.GetInt("milvus.search_ef"),
			Shards:   v.GetInt("milvus.shards"),
		},
		Embedding: EmbeddingConfig{
			APIKey:    v.GetString("embedding.api_key"),
			BaseURL:   v.GetString("embedding.base_url"),
			Model:     v.GetString("embedding.model"),
			Dimension: v.GetInt("embedding.dimension"),
		},
		Analysis: AnalysisConfig{
			DataDir:     v.GetString("analysis.data_dir"),
			TopK:        v.GetInt("analysis.top_k"),
			ResultLimit: v.GetInt("analysis.result_limit"),
			MaxParallel: v.GetInt("analysis.max_parallel"),
		},
		LLM: LLMConfig{
			Structured: ChatModelConfig{
				APIKey:            v.GetString("llm.structured.api_key"),
				BaseURL:           v.GetString("llm.structured.base_url"),
				Model:             v.GetString("llm.structured.model"),
				Temperature:       v.GetFloat64("llm.structured.temperature"),
				RequestsPerMinute: v.GetInt("llm.structured.requests_per_minute"),
			},
			Evidence: ChatModelConfig{
				APIKey:            v.GetString("llm.evidence.api_key"),
				BaseURL:           v.GetString("llm.evidence.base_url"),
				Model:             v.GetString("llm.evidence.model"),
				Temperature:       v.GetFloat64("llm.evidence.temperature"),
				RequestsPerMinute: v.GetInt("llm.evidence.requests_per_minute"),
			},
		},
		Prometheus: PrometheusConfig{
			Enabled: v.GetBool("prometheus.enabled"),
		},
	}

	if err := cfg.validate(); err != nil {
		return err
	}
	AppConfig = cfg
	return nil
}

// validate 检查无法在运行期兜底的配置
func (c *Config) validate() error {
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.LLM.Structured.RequestsPerMinute < 0 || c.LLM.Evidence.RequestsPerMinute < 0 {
		return fmt.Errorf("llm requests_per_minute must not be negative")
	}
	return nil
}
