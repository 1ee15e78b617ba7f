package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Env:                      "development",
		JWTSecret:                "secure-secret-at-least-32-chars-long",
		DBPassword:               "secure-password",
		DBSSLMode:                "disable",
		Port:                     "8080",
		PageSize:                 10,
		ImageMaxUploadSizeMB:     10,
		DBConnMaxLifetimeMinutes: 1,
		RedisURL:                 "redis://localhost:6379",
		TracingSampleRatio:       1,
	}
}

func TestConfig_ValidateSSLMode(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		sslMode     string
		expectError bool
	}{
		{"Production with empty SSL mode", "production", "", true},
		{"Production with disable SSL mode", "production", "disable", true},
		{"Production with require SSL mode", "production", "require", false},
		{"Prod with verify-full SSL mode", "prod", "verify-full", false},
		{"Development with disable SSL mode", "development", "disable", false},
		{"Test with empty SSL mode", "test", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = tt.env
			c.DBSSLMode = tt.sslMode

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateProductionSecrets(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"default secret", func(c *Config) { c.JWTSecret = defaultJWTSecret }, "changed from the default"},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, "at least 32 characters"},
		{"weak db password", func(c *Config) { c.DBPassword = "password" }, "DB_PASSWORD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = "production"
			c.DBSSLMode = "require"
			tt.mutate(c)

			err := c.Validate()
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateRanges(t *testing.T) {
	c := validConfig()
	c.PageSize = 500
	assert.Error(t, c.Validate())

	c = validConfig()
	c.TracingSampleRatio = 1.5
	assert.Error(t, c.Validate())

	c = validConfig()
	c.DBSchemaMode = "yolo"
	assert.Error(t, c.Validate())

	c = validConfig()
	c.TracingExporter = "zipkin"
	assert.Error(t, c.Validate())

	c = validConfig()
	c.Port = ""
	assert.EqualError(t, c.Validate(), "PORT is required")
}

func TestConfig_EnvironmentProfiles(t *testing.T) {
	tests := []struct {
		env         string
		limited     bool
		productLike bool
	}{
		{"", false, false},
		{"development", false, false},
		{"test", false, false},
		{"stress", false, false},
		{"staging", true, true},
		{"production", true, true},
		{"demo", true, false},
	}
	for _, tt := range tests {
		c := &Config{Env: tt.env}
		assert.Equal(t, tt.limited, c.RateLimitsEnabled(), tt.env)
		assert.Equal(t, tt.productLike, c.IsProductionLike(), tt.env)
	}
}

func TestConfig_EffectivePageSize(t *testing.T) {
	c := validConfig()
	c.PageSize = 0
	assert.Equal(t, 10, c.EffectivePageSize())
	c.PageSize = 25
	assert.Equal(t, 25, c.EffectivePageSize())
}

func TestLoadConfig_Normalization(t *testing.T) {
	defer os.Unsetenv("APP_ENV")
	defer os.Unsetenv("DB_SSLMODE")
	defer os.Unsetenv("MEDIA_BASE_URL")
	defer viper.Reset()

	os.Setenv("APP_ENV", "development")
	os.Setenv("DB_SSLMODE", "  DISABLE  ")
	os.Setenv("MEDIA_BASE_URL", "http://cdn.local/media/")

	c, err := LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, "http://cdn.local/media", c.MediaBaseURL)
	assert.Equal(t, 10, c.PageSize)
	assert.Equal(t, "hybrid", c.DBSchemaMode)
}
