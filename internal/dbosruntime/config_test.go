package dbosruntime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_WithDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{DatabaseURL: "postgres://localhost/dbos"}
	cfg.WithDefaults()

	assert.Equal(t, "simple-content-annotator", cfg.AppName)
	assert.Equal(t, "default", cfg.QueueName)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.NoError(t, cfg.Validate())

	custom := Config{QueueName: "annotate", Concurrency: 2}
	custom.WithDefaults()
	assert.Equal(t, "annotate", custom.QueueName)
	assert.Equal(t, 2, custom.Concurrency)
}

func TestNewRuntime_RequiresDatabaseURL(t *testing.T) {
	t.Parallel()

	_, err := NewRuntime(context.Background(), Config{})
	assert.EqualError(t, err, "DBOS_SYSTEM_DATABASE_URL is required")
}
