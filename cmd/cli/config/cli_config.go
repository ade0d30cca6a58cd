package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/inferloop/anonsearch/internal/dataset"
	"github.com/inferloop/anonsearch/internal/search"
	"github.com/inferloop/anonsearch/internal/settings"
	"github.com/inferloop/anonsearch/internal/storage"
	"github.com/inferloop/anonsearch/pkg/constants"
	"github.com/inferloop/anonsearch/pkg/models"
)

type CLIConfig struct {
	Search   search.Config           `json:"search" mapstructure:"search"`
	Storage  storage.Config          `json:"storage" mapstructure:"storage"`
	Generate dataset.GeneratorConfig `json:"generate" mapstructure:"generate"`
	Output   OutputConfig            `json:"output" mapstructure:"output"`
	Log      LogConfig               `json:"log" mapstructure:"log"`
}

type OutputConfig struct {
	Format    string `json:"format" mapstructure:"format"`
	Directory string `json:"directory" mapstructure:"directory"`
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
}

type LogConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"`
}

// DefaultConfig returns the configuration used when no file or env overrides exist
func DefaultConfig() *CLIConfig {
	return &CLIConfig{
		Search:  search.DefaultConfig(),
		Storage: *storage.DefaultConfig(),
		Generate: dataset.GeneratorConfig{
			NumRecords: constants.DefaultNumRecords,
			Seed:       constants.DefaultSeed,
			Conditions: append([]string(nil), models.MedicalConditions...),
		},
		Output: OutputConfig{
			Format:    "csv",
			Directory: ".",
		},
		Log: LogConfig{
			Level:  constants.DefaultLogLevel,
			Format: "text",
		},
	}
}

// LoadConfig reads cfgFile, or ~/.anonsearch/config.yaml when cfgFile is
// empty, and applies ANONSEARCH_* environment overrides. A missing default
// file is not an error.
func LoadConfig(cfgFile string) (*CLIConfig, error) {
	config := DefaultConfig()
	v := viper.New()

	if cfgFile == "" {
		cfgFile = os.Getenv(constants.EnvConfigFile)
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}

		v.AddConfigPath(filepath.Join(home, "."+constants.AppName))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := settings.Load(v, config); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig writes config as YAML to cfgFile, or to the default path
func SaveConfig(config *CLIConfig, cfgFile string) error {
	if cfgFile == "" {
		cfgFile = GetDefaultConfigPath()
	}
	return settings.Save(config, cfgFile)
}

func GetDefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+constants.AppName, "config.yaml")
}
