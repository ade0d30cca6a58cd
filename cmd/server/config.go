package main

import (
	"github.com/spf13/viper"

	"github.com/inferloop/anonsearch/internal/observability/metrics"
	"github.com/inferloop/anonsearch/internal/search"
	"github.com/inferloop/anonsearch/internal/server"
	"github.com/inferloop/anonsearch/internal/settings"
	"github.com/inferloop/anonsearch/internal/storage"
	"github.com/inferloop/anonsearch/pkg/constants"
)

// ServerConfig is the file layout accepted by --config
type ServerConfig struct {
	Server  server.Config            `json:"server" mapstructure:"server"`
	Search  search.Config            `json:"search" mapstructure:"search"`
	Storage storage.Config           `json:"storage" mapstructure:"storage"`
	Metrics metrics.PrometheusConfig `json:"metrics" mapstructure:"metrics"`
}

func defaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Server:  *server.DefaultConfig(),
		Search:  search.DefaultConfig(),
		Storage: *storage.DefaultConfig(),
		Metrics: metrics.PrometheusConfig{
			Enabled:   true,
			Port:      constants.DefaultMetricsPort,
			Path:      "/metrics",
			Namespace: constants.MetricsNamespace,
			Subsystem: constants.MetricsSubsystem,
		},
	}
}

// loadConfig layers defaults, the optional file, ANONSEARCH_* variables and
// finally the flags that were set explicitly.
func loadConfig(flags *Flags) (*ServerConfig, error) {
	config := defaultServerConfig()

	v := viper.New()
	if flags.ConfigFile != "" {
		v.SetConfigFile(flags.ConfigFile)
	} else {
		v.SetConfigName("server")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/" + constants.AppName)
	}
	if err := settings.Load(v, config); err != nil {
		return nil, err
	}

	if flags.IsSet("port") {
		config.Server.Port = flags.Port
	}
	if flags.IsSet("host") {
		config.Server.Host = flags.Host
	}
	if flags.IsSet("tls-cert") {
		config.Server.TLSCertFile = flags.TLSCert
	}
	if flags.IsSet("tls-key") {
		config.Server.TLSKeyFile = flags.TLSKey
	}
	if flags.IsSet("enable-cors") {
		config.Server.EnableCORS = flags.EnableCORS
	}
	if flags.IsSet("metrics-port") {
		config.Metrics.Port = flags.MetricsPort
		config.Metrics.Enabled = flags.MetricsPort > 0
	}
	if flags.IsSet("storage") {
		config.Storage.Type = flags.Storage
	}
	if flags.IsSet("max-k") {
		config.Search.MaxK = flags.MaxK
	}
	if flags.IsSet("allowed-drop") {
		config.Search.AllowedDrop = flags.AllowedDrop
	}

	if err := config.Search.Validate(); err != nil {
		return nil, err
	}
	if err := config.Server.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
