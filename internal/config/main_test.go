package config

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func getValidConfig(t *testing.T) Config {
	baseURL, err := url.Parse("https://scheduler.example.org")
	require.NoError(t, err)
	return Config{
		RunningEnvironment: Production,
		API: APIConfig{
			BaseURL:     baseURL,
			BasePath:    "/api",
			Timeout:     30 * time.Second,
			RefreshPath: "/auth/refresh",
		},
		Session: SessionConfig{
			IdleTimeout:       15 * time.Minute,
			KeepaliveInterval: 14 * time.Minute,
			LoginPath:         "/login",
		},
		Drafts: DraftsConfig{
			Type:  DBTypeRedis,
			Redis: RedisConfig{Addresses: []string{"localhost:6379"}},
		},
		Upload: UploadConfig{
			PartSize:    25 * 1024 * 1024,
			Concurrency: 2,
		},
		Agent: AgentConfig{Host: "127.0.0.1", Port: 8765},
	}
}

func TestValidConfig(t *testing.T) {
	config := getValidConfig(t)

	assert.NoError(t, config.Validate())
}

func TestInvalidRunningEnvironment(t *testing.T) {
	config := getValidConfig(t)
	config.RunningEnvironment = "staging"

	assert.ErrorContains(t, config.Validate(), "unknown running environment \"staging\"")
}

func TestInvalidAPIConfig(t *testing.T) {
	config := getValidConfig(t)
	config.API.BaseURL = nil
	assert.ErrorContains(t, config.Validate(), "missing the base url")

	config = getValidConfig(t)
	config.API.RefreshPath = "auth/refresh"
	assert.ErrorContains(t, config.Validate(), "must start with a slash")

	config = getValidConfig(t)
	config.API.RateLimits = RateLimits{Enabled: true}
	assert.ErrorContains(t, config.Validate(), "rate limits need a positive rate and burst")
}

func TestInvalidSessionConfig(t *testing.T) {
	config := getValidConfig(t)
	config.Session.KeepaliveInterval = 10 * time.Second

	assert.ErrorContains(t, config.Validate(), "keepalive interval (10s) needs to be at least one minute")
}

func TestInvalidDraftsConfig(t *testing.T) {
	config := getValidConfig(t)
	config.Drafts.Type = DBTypeRedisMock
	assert.ErrorContains(t, config.Validate(), "drafts type cannot be \"redis-mock\" in production")

	config.RunningEnvironment = Development
	assert.NoError(t, config.Validate())

	config.Drafts.Encryption = EncryptionConfig{Enabled: true, SecretKey: "invalid-key"}
	assert.ErrorContains(t, config.Validate(), "draft encryption key has to be 32 bytes long, the provided one is 11 long")

	config = getValidConfig(t)
	config.Drafts.Type = "mongo"
	assert.ErrorContains(t, config.Validate(), "unknown drafts store type \"mongo\"")
}

func TestInvalidUploadConfig(t *testing.T) {
	config := getValidConfig(t)
	config.Upload.PartSize = 1024

	assert.ErrorContains(t, config.Validate(), "upload part size (1024) cannot be less than 5242880 bytes")
}

func TestConfigPrintsAsYAML(t *testing.T) {
	config := getValidConfig(t)
	config.Drafts.Redis.Password = "hunter22"
	out, err := yaml.Marshal(config)
	require.NoError(t, err)
	assert.Contains(t, string(out), "baseURL: https://scheduler.example.org")
	assert.Contains(t, string(out), "timeout: 30s")
	assert.NotContains(t, string(out), "hunter22")
	assert.NotContains(t, string(out), "scheme")
}
