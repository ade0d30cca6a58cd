package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/inferloop/anonsearch/pkg/constants"
	"github.com/inferloop/anonsearch/pkg/errors"
)

// Load fills target from the file v points at and from ANONSEARCH_* variables.
// Whatever target already holds is used as the default layer, so every key is
// known to viper and can be overridden from the environment. A missing file
// found through search paths is not an error; an explicit file that cannot be
// read is.
func Load(v *viper.Viper, target interface{}) error {
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	values, err := ToMap(target)
	if err != nil {
		return err
	}
	for key, value := range Flatten("", values) {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errors.WrapError(err, errors.ErrorTypeConfiguration, errors.CodeInvalidConfiguration,
				"error reading config file")
		}
	}

	if err := v.Unmarshal(target); err != nil {
		return errors.WrapError(err, errors.ErrorTypeConfiguration, errors.CodeInvalidConfiguration,
			"error unmarshaling config")
	}
	return nil
}

// Save writes source to path; the format follows the file extension.
func Save(source interface{}, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	values, err := ToMap(source)
	if err != nil {
		return err
	}

	v := viper.New()
	for key, value := range values {
		v.Set(key, value)
	}
	return v.WriteConfigAs(path)
}

// ToMap converts a config struct into a nested map keyed by its json tags,
// which mirror the mapstructure tags.
func ToMap(source interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(source)
	if err != nil {
		return nil, fmt.Errorf("error encoding config: %w", err)
	}

	var values map[string]interface{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	return values, nil
}

// Flatten joins nested keys with dots.
func Flatten(prefix string, values map[string]interface{}) map[string]interface{} {
	flat := make(map[string]interface{})
	for key, value := range values {
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := value.(map[string]interface{}); ok {
			for k, v := range Flatten(key, nested) {
				flat[k] = v
			}
			continue
		}
		flat[key] = value
	}
	return flat
}
