package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-admin/internal/platform/blob"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SESSION_SECRET", "session-secret")
	t.Setenv("CSRF_SECRET", "csrf-secret")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("BLOB_DRIVER", "local")
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "60")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("APP_ENV", "")
	t.Setenv("DEMO_MODE", "true")
	t.Setenv("SESSION_TTL", "2h")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.DemoMode)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "odyssey-admin", cfg.JWTIssuer)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"short jwt secret":  {"JWT_SECRET", "short"},
		"unknown driver":    {"BLOB_DRIVER", "ftp"},
		"s3 without bucket": {"BLOB_DRIVER", "s3"},
		"bad level":         {"LOG_LEVEL", "loud"},
		"zero rate limit":   {"RATE_LIMIT_PER_MINUTE", "0"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv("S3_BUCKET", "")
			t.Setenv(kv[0], kv[1])
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestBlobConfig(t *testing.T) {
	cfg := &Config{
		BlobDriver:      blob.DriverS3,
		UploadDir:       "/tmp/up",
		UploadURLPrefix: "/files",
		S3Bucket:        "assets",
		S3Region:        "eu-west-1",
		S3UsePathStyle:  true,
	}
	bc := cfg.BlobConfig()
	assert.Equal(t, blob.DriverS3, bc.Driver)
	assert.Equal(t, "/tmp/up", bc.LocalDir)
	assert.Equal(t, "/files", bc.LocalURLPrefix)
	assert.Equal(t, "assets", bc.S3Bucket)
	assert.Equal(t, "eu-west-1", bc.S3Region)
	assert.True(t, bc.S3UsePathStyle)
}
