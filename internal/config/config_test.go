package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func TestUnmarshal_Defaults(t *testing.T) {
	cfg, err := unmarshal(newTestViper())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.Fleet.DownThreshold)
	assert.Equal(t, 30*time.Second, cfg.Fleet.StreamKeepAlive)
	assert.Equal(t, 5*time.Second, cfg.Fleet.LockTimeout)
	assert.Equal(t, 720*time.Hour, cfg.Fleet.TelemetryRetention)
	assert.Equal(t, "localhost", cfg.Database.AppDB.Host)
	assert.False(t, cfg.Database.TimescaleDB.Enabled())
	assert.False(t, cfg.Redis.Enabled())
}

func TestUnmarshal_Overrides(t *testing.T) {
	v := newTestViper()
	v.Set("fleet.down_threshold", "5m")
	v.Set("redis.host", "redis")

	cfg, err := unmarshal(v)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Fleet.DownThreshold)
	assert.True(t, cfg.Redis.Enabled())
}

func TestUnmarshal_Validation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"missing app db host", "database.postgres_app.host", ""},
		{"zero down threshold", "fleet.down_threshold", "0s"},
		{"zero keep alive", "fleet.stream_keep_alive", "0s"},
		{"zero lock timeout", "fleet.lock_timeout", "0s"},
		{"zero maintenance interval", "fleet.maintenance_interval", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestViper()
			v.Set(tt.key, tt.val)

			_, err := unmarshal(v)
			assert.Error(t, err)
		})
	}
}

func TestUnmarshal_LeaderTTLOnlyCheckedWithRedis(t *testing.T) {
	v := newTestViper()
	v.Set("fleet.leader_ttl", "100ms")

	_, err := unmarshal(v)
	require.NoError(t, err)

	v.Set("redis.host", "redis")
	_, err = unmarshal(v)
	assert.Error(t, err)
}
