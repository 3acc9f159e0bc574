package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv("STORAGE", "memory")

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "0 1 * * *", cfg.SweepSchedule)
	assert.Equal(t, "log", cfg.EmailBackend)
	assert.Equal(t, 3, cfg.NotifyRetries)
	assert.Equal(t, "Asia/Kolkata", cfg.SweepTimezone.String())
}

func TestNewConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown storage", map[string]string{"STORAGE": "mongo"}},
		{"empty db conn", map[string]string{"STORAGE": "postgres", "DB_CONN": ""}},
		{"empty jwt secret", map[string]string{"STORAGE": "memory", "JWT_SECRET": ""}},
		{"bad retries", map[string]string{"STORAGE": "memory", "NOTIFY_RETRIES": "-1"}},
		{"bad timezone", map[string]string{"STORAGE": "memory", "SWEEP_TIMEZONE": "Mars/Olympus"}},
		{"sendgrid without key", map[string]string{"STORAGE": "memory", "EMAIL_BACKEND": "sendgrid", "SENDGRID_API_KEY": ""}},
		{"unknown email backend", map[string]string{"STORAGE": "memory", "EMAIL_BACKEND": "pigeon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := NewConfig()
			assert.Error(t, err)
		})
	}
}
