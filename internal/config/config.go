// Package config provides configuration loading for incidentd.
package config

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/incidentd/internal/auth"
	"github.com/fyrsmithlabs/incidentd/internal/embeddings"
	"github.com/fyrsmithlabs/incidentd/internal/logging"
	"github.com/fyrsmithlabs/incidentd/internal/redact"
	"github.com/fyrsmithlabs/incidentd/internal/vectorstore"
)

// Config is the root incidentd configuration.
type Config struct {
	Server     ServerConfig       `koanf:"server"`
	Logging    logging.Config     `koanf:"logging"`
	Embeddings EmbeddingsConfig   `koanf:"embeddings"`
	Vectors    vectorstore.Config `koanf:"vectors"`
	Redaction  redact.Config      `koanf:"redaction"`
	Audit      AuditConfig        `koanf:"audit"`
	Keys       []SeedKey          `koanf:"keys"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Address returns host:port.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// EmbeddingsConfig wraps the provider settings with the lifecycle
// timeout budget.
type EmbeddingsConfig struct {
	embeddings.ProviderConfig `koanf:",squash"`

	Timeout time.Duration `koanf:"timeout"`
}

// AuditConfig holds audit chain settings.
type AuditConfig struct {
	MaxAppendRetries int `koanf:"max_append_retries"`
}

// SeedKey is an API key provisioned at startup. The plaintext comes
// from configuration, is loaded into the in-memory key store, and is
// never written anywhere else.
type SeedKey struct {
	TenantID string `koanf:"tenant_id"`
	ActorID  string `koanf:"actor_id"`
	Role     string `koanf:"role"`
	Key      string `koanf:"key"`
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8780
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Fields == nil {
		cfg.Logging.Fields = logging.NewDefaultConfig().Fields
	}

	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = embeddings.ProviderLocal
	}
	if cfg.Embeddings.Dimension == 0 {
		cfg.Embeddings.Dimension = embeddings.DefaultDimension
	}
	if cfg.Embeddings.Timeout == 0 {
		cfg.Embeddings.Timeout = embeddings.DefaultTimeout
	}

	if len(cfg.Redaction.Rules) == 0 {
		cfg.Redaction = *redact.DefaultConfig()
	}

	if cfg.Audit.MaxAppendRetries == 0 {
		cfg.Audit.MaxAppendRetries = 5
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Embeddings.ProviderConfig.Validate(); err != nil {
		return fmt.Errorf("embeddings: %w", err)
	}
	if c.Embeddings.Timeout <= 0 {
		return fmt.Errorf("embeddings.timeout must be positive")
	}
	if err := c.Redaction.Validate(); err != nil {
		return fmt.Errorf("redaction: %w", err)
	}
	for i, k := range c.Keys {
		if k.TenantID == "" || k.ActorID == "" || k.Key == "" {
			return fmt.Errorf("keys[%d]: tenant_id, actor_id and key are required", i)
		}
		if !auth.Role(k.Role).Valid() {
			return fmt.Errorf("keys[%d]: invalid role %q", i, k.Role)
		}
	}
	return nil
}
