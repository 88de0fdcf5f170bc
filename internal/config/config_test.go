package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv 清理可能影响测试的环境变量
func clearEnv(t *testing.T) {
	for _, key := range []string{
		"PORT", "ENV", "MONGO_URI", "MONGO_DB", "DATABASE_URL", "LINKS_PROVIDER",
		"REDIS_HOST", "REDIS_PORT", "MILVUS_URI", "MILVUS_TOKEN", "DATA_DIR",
		"OPENAI_API_KEY", "GROQ_API_KEY", "EMBEDDING_API_KEY", "EMBEDDING_BASE_URL",
		"EMBEDDING_MODEL", "EMBEDDING_DIMENSION", "LLM_STRUCTURED_RPM", "LLM_EVIDENCE_RPM",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	require.NoError(t, LoadConfig())
	cfg := GetAppConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "mongo", cfg.Links.Provider)
	assert.Equal(t, 384, cfg.Embedding.Dimension)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, 10, cfg.Analysis.TopK)
	assert.Equal(t, 5, cfg.Analysis.ResultLimit)
	assert.Equal(t, 8, cfg.Analysis.MaxParallel)
	assert.Equal(t, "./data", cfg.Analysis.DataDir)
	assert.Equal(t, "gpt-4o", cfg.LLM.Structured.Model)
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.LLM.Evidence.BaseURL)
	assert.Equal(t, 60, cfg.LLM.Structured.RequestsPerMinute)
	assert.Equal(t, 30, cfg.LLM.Evidence.RequestsPerMinute)
	assert.Empty(t, cfg.Milvus.URI)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8088")
	t.Setenv("MILVUS_URI", "https://in01.zillizcloud.com")
	t.Setenv("MILVUS_TOKEN", "secret")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("MONGO_DB", "ops")
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("GROQ_API_KEY", "gsk-groq")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("LINKS_PROVIDER", "Postgres")
	t.Setenv("EMBEDDING_DIMENSION", "768")
	t.Setenv("LLM_EVIDENCE_RPM", "12")

	require.NoError(t, LoadConfig())
	cfg := GetAppConfig()

	assert.Equal(t, "8088", cfg.Server.Port)
	assert.Equal(t, "https://in01.zillizcloud.com", cfg.Milvus.URI)
	assert.Equal(t, "secret", cfg.Milvus.Token)
	assert.Equal(t, "ops", cfg.Mongo.DB)
	assert.Equal(t, "sk-openai", cfg.LLM.Structured.APIKey)
	assert.Equal(t, "sk-openai", cfg.Embedding.APIKey)
	assert.Equal(t, "gsk-groq", cfg.LLM.Evidence.APIKey)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache", cfg.Redis.Host)
	assert.Equal(t, "postgres", cfg.Links.Provider)
	assert.Equal(t, 768, cfg.Embedding.Dimension)
	assert.Equal(t, 12, cfg.LLM.Evidence.RequestsPerMinute)
}

func TestLoadConfig_RejectsInvalidValues(t *testing.T) {
	for name, env := range map[string][2]string{
		"negative dimension": {"EMBEDDING_DIMENSION", "-1"},
		"zero dimension":     {"EMBEDDING_DIMENSION", "0"},
		"non numeric":        {"EMBEDDING_DIMENSION", "wide"},
		"negative rpm":       {"LLM_STRUCTURED_RPM", "-5"},
	} {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			require.NoError(t, LoadConfig())
			before := GetAppConfig()

			t.Setenv(env[0], env[1])
			assert.Error(t, LoadConfig())
			assert.Same(t, before, GetAppConfig())
		})
	}
}
