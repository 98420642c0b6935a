package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, WizardStoreMemory, cfg.Wizard.Store)
	assert.Equal(t, 2*time.Hour, cfg.Wizard.TTL)
	assert.Equal(t, 15*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "instructor", cfg.Backend.InstructorRole)
	assert.False(t, cfg.CommitLog.Enabled)
	assert.Equal(t, 1, cfg.CommitLog.Workers)
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("BACKEND_BASE_URL", "https://swim.example.com/api/")
	v.Set("WIZARD_STORE", "Redis")
	v.Set("WIZARD_TTL", "45m")
	v.Set("BACKEND_TIMEOUT", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
	v.Set("COMMIT_LOG_WORKERS", 0)

	cfg := fromViper(v)
	assert.Equal(t, "https://swim.example.com/api", cfg.Backend.BaseURL)
	assert.Equal(t, WizardStoreRedis, cfg.Wizard.Store)
	assert.Equal(t, 45*time.Minute, cfg.Wizard.TTL)
	assert.Equal(t, 15*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 1, cfg.CommitLog.Workers)
}

func TestUnknownStoreFallsBackToMemory(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("WIZARD_STORE", "etcd")

	assert.Equal(t, WizardStoreMemory, fromViper(v).Wizard.Store)
}
