package internal

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv("STORAGE_PROVIDER", "")
	t.Setenv("COLLAB_BASE_URL", "")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.StorageProvider)
	assert.Equal(t, 30*time.Minute, cfg.SessionIdleTimeout)
	assert.Equal(t, 150.0, cfg.KitBasePrice)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestNewConfig_ProviderValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "postgres needs a database url",
			env:     map[string]string{"STORAGE_PROVIDER": "postgres", "DATABASE_URL": ""},
			wantErr: "DATABASE_URL",
		},
		{
			name:    "r2 needs an account",
			env:     map[string]string{"STORAGE_PROVIDER": "r2", "R2_ACCOUNT_ID": ""},
			wantErr: "R2_ACCOUNT_ID",
		},
		{
			name:    "unknown provider",
			env:     map[string]string{"STORAGE_PROVIDER": "floppy"},
			wantErr: "STORAGE_PROVIDER",
		},
		{
			name:    "non-positive burst",
			env:     map[string]string{"STORAGE_PROVIDER": "memory", "RATE_LIMIT_BURST": "-1"},
			wantErr: "RATE_LIMIT",
		},
		{
			name: "redis is self-contained",
			env:  map[string]string{"STORAGE_PROVIDER": "redis", "REDIS_DB": "2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := NewConfig()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 2, cfg.RedisDB)
		})
	}
}

func TestNewLogger_FormatByEnv(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "production", "info").Info("hello", "form_id", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.EqualValues(t, 3, entry["form_id"])

	buf.Reset()
	NewLogger(&buf, "development", "warn").Info("dropped")
	assert.Empty(t, buf.String(), "info is below the warn level")
}
