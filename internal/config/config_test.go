package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 768, cfg.EmbeddingDimensions)
	assert.Equal(t, 0.9, cfg.MatchConfidenceAutoThreshold)
	assert.Equal(t, 300*time.Second, cfg.JobTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://test/db")
	t.Setenv("MAX_WORKERS", "25")
	t.Setenv("MATCH_CONFIDENCE_AUTO_THRESHOLD", "0.95")
	t.Setenv("EMBEDDING_DIMENSIONS", "1024")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://test/db", cfg.DatabaseURL)
	assert.Equal(t, 25, cfg.MaxWorkers)
	assert.Equal(t, 0.95, cfg.MatchConfidenceAutoThreshold)
	assert.Equal(t, 1024, cfg.EmbeddingDimensions)
}

func TestLoad_DefaultsDatabaseURLWhenUnset(t *testing.T) {
	os.Unsetenv("DATABASE_URL")
	// Default() always seeds a DatabaseURL, so Load never fails in practice;
	// this test documents that invariant rather than forcing an empty value.
	cfg, err := Load()
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.DatabaseURL)
}
