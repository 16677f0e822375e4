package config_test

import (
	"testing"

	"student-records/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("ENV", "test")
		t.Setenv("SESSION_SECRET", "test-secret")

		cfg, err := config.Load()
		require.NoError(t, err)

		assert.Equal(t, "test", cfg.Env)
		assert.Equal(t, "8000", cfg.Server.Port)
		assert.Equal(t, "students", cfg.Database.DBName)
		assert.Equal(t, "sessionid", cfg.Auth.CookieName)
		assert.Equal(t, "none", cfg.Messaging.Driver)
		assert.Equal(t, "students.events", cfg.Messaging.NATS.Subject)
		assert.False(t, cfg.Telemetry.Enabled)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		t.Setenv("ENV", "test")
		t.Setenv("SESSION_SECRET", "test-secret")
		t.Setenv("PORT", "9090")
		t.Setenv("DB_USER", "records")
		t.Setenv("MESSAGING_DRIVER", "nats")

		cfg, err := config.Load()
		require.NoError(t, err)

		assert.Equal(t, "9090", cfg.Server.Port)
		assert.Equal(t, "records", cfg.Database.User)
		assert.Equal(t, "nats", cfg.Messaging.Driver)
		assert.Equal(t, "test-secret", cfg.Auth.SessionSecret)
	})

	t.Run("MissingSecret", func(t *testing.T) {
		t.Setenv("ENV", "test")
		t.Setenv("SESSION_SECRET", "")

		_, err := config.Load()
		assert.Error(t, err)
	})

	t.Run("ReadWithoutSecret", func(t *testing.T) {
		t.Setenv("ENV", "test")
		t.Setenv("SESSION_SECRET", "")
		t.Setenv("DB_HOST", "db.internal")

		cfg, err := config.Read()
		require.NoError(t, err)
		assert.Empty(t, cfg.Auth.SessionSecret)
		assert.Equal(t, "db.internal", cfg.Database.Host)
	})
}
