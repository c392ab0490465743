package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, RendererChrome, cfg.Reports.Renderer)
	assert.Equal(t, 12*time.Hour, cfg.Reports.CacheTTL)
	assert.Equal(t, 72*time.Hour, cfg.Notifications.DueSoonWindow)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("REPORTS_RENDERER", "BASIC")
	t.Setenv("REPORTS_RENDER_TIMEOUT", "5s")
	t.Setenv("REPORTS_CACHE_TTL", "not-a-duration")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, RendererBasic, cfg.Reports.Renderer)
	assert.Equal(t, 5*time.Second, cfg.Reports.RenderTimeout)
	assert.Equal(t, 12*time.Hour, cfg.Reports.CacheTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestNormalizeRenderer(t *testing.T) {
	assert.Equal(t, RendererNone, normalizeRenderer("disabled"))
	assert.Equal(t, RendererChrome, normalizeRenderer(""))
}
