package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	var (
		addr = "localhost:8080"
		dsn  = "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"
		key  = "c29tZV9zZWNyZXQ="
	)

	tcases := []struct {
		name string
		cfg  Config
		err  bool
	}{
		{
			name: "valid config",
			cfg:  Config{ServerAddr: addr, DatabaseDSN: dsn, SigningSecret: key},
			err:  false,
		},
		{
			name: "empty address",
			cfg:  Config{ServerAddr: "", DatabaseDSN: dsn, SigningSecret: key},
			err:  true,
		},
		{
			name: "empty DSN",
			cfg:  Config{ServerAddr: addr, DatabaseDSN: "", SigningSecret: key},
			err:  true,
		},
		{
			name: "empty signing secret",
			cfg:  Config{ServerAddr: addr, DatabaseDSN: dsn, SigningSecret: ""},
			err:  true,
		},
		{
			name: "signing secret not base64",
			cfg:  Config{ServerAddr: addr, DatabaseDSN: dsn, SigningSecret: "not_base64!"},
			err:  true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.err {
				assert.Error(t, err, "expected error for config: %s", tc.name)
				return
			}
			assert.NoError(t, err, "expected no error for config: %s", tc.name)
			assert.Equal(t, []byte("some_secret"), tc.cfg.SigningKey, "expected signing key to be decoded")
		})
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("CHATWIRE_SERVER_ADDR", "0.0.0.0:9000")
	t.Setenv("CHATWIRE_DATABASE_DSN", "host=db")
	t.Setenv("CHATWIRE_SIGNING_KEY", "c29tZV9zZWNyZXQ=")
	t.Setenv("CHATWIRE_ALLOWED_ORIGINS", "http://localhost:3000,https://chat.example.com")

	cfg, err := FromEnv()
	assert.NoError(t, err, "expected env config to load")
	assert.Equal(t, "0.0.0.0:9000", cfg.ServerAddr, "expected server address from env")
	assert.Equal(t, "host=db", cfg.DatabaseDSN, "expected DSN from env")
	assert.Equal(t, []string{"http://localhost:3000", "https://chat.example.com"}, cfg.AllowedOrigins,
		"expected allowed origins to be split on commas")
}
