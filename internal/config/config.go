package config

import (
	"encoding/base64"
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ServerAddr     string   `envconfig:"SERVER_ADDR" default:"localhost:8000"`
	DatabaseDSN    string   `envconfig:"DATABASE_DSN"`
	SigningSecret  string   `envconfig:"SIGNING_KEY"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"`

	// SigningKey is the decoded form of SigningSecret.
	SigningKey []byte `ignored:"true"`
}

// FromEnv loads configuration from CHATWIRE_* environment variables. The
// caller may still override individual fields (flags win over env) before
// calling Validate.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("chatwire", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerAddr == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("database DSN cannot be empty")
	}
	if c.SigningSecret == "" {
		return fmt.Errorf("signing secret cannot be empty")
	}

	// the signing secret is supplied base64 encoded
	signingKey, err := base64.StdEncoding.DecodeString(c.SigningSecret)
	if err != nil {
		return fmt.Errorf("decode signing secret: %w", err)
	}
	c.SigningKey = signingKey

	return nil
}
