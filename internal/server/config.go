package server

import (
	"fmt"
	"time"

	"github.com/inferloop/anonsearch/pkg/constants"
	"github.com/inferloop/anonsearch/pkg/errors"
)

// Config contains server configuration
type Config struct {
	Host            string        `json:"host" mapstructure:"host"`
	Port            int           `json:"port" mapstructure:"port"`
	ReadTimeout     time.Duration `json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout" mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	EnableCORS      bool          `json:"enable_cors" mapstructure:"enable_cors"`
	MaxRequestSize  int64         `json:"max_request_size" mapstructure:"max_request_size"`
	MaxRecords      int           `json:"max_records" mapstructure:"max_records"`
	MaxK            int           `json:"max_k" mapstructure:"max_k"`
	TLSCertFile     string        `json:"tls_cert_file,omitempty" mapstructure:"tls_cert_file"`
	TLSKeyFile      string        `json:"tls_key_file,omitempty" mapstructure:"tls_key_file"`
}

// Validate checks the listener settings
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.NewConfigurationError(fmt.Sprintf("invalid port %d", c.Port))
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return errors.NewConfigurationError("TLS requires both a certificate and a key file")
	}
	if c.MaxRequestSize <= 0 {
		return errors.NewConfigurationError("max request size must be positive")
	}
	if c.MaxK < 0 || c.MaxK == 1 {
		return errors.NewConfigurationError(fmt.Sprintf("server max k must be 0 or >= 2, got %d", c.MaxK))
	}
	return nil
}

// getDefaultConfig returns the default server configuration
func getDefaultConfig() *Config {
	return &Config{
		Host:            constants.DefaultHost,
		Port:            constants.DefaultPort,
		ReadTimeout:     constants.DefaultReadTimeout,
		WriteTimeout:    constants.DefaultWriteTimeout,
		IdleTimeout:     constants.DefaultIdleTimeout,
		ShutdownTimeout: constants.DefaultShutdownTimeout,
		EnableCORS:      false,
		MaxRequestSize:  constants.MaxRequestBytes,
		MaxRecords:      constants.MaxRequestRecords,
		MaxK:            constants.MaxRequestMaxK,
	}
}

// DefaultConfig returns the default server configuration
func DefaultConfig() *Config {
	return getDefaultConfig()
}
