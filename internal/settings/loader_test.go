package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/anonsearch/pkg/errors"
)

type testConfig struct {
	Name    string        `json:"name" mapstructure:"name"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
	Nested  struct {
		Port  int      `json:"port" mapstructure:"port"`
		Items []string `json:"items" mapstructure:"items"`
	} `json:"nested" mapstructure:"nested"`
}

func defaults() *testConfig {
	cfg := &testConfig{Name: "default", Timeout: 30 * time.Second}
	cfg.Nested.Port = 8080
	cfg.Nested.Items = []string{"age", "zipcode"}
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	v.SetConfigName("missing")
	v.AddConfigPath(t.TempDir())

	cfg := defaults()
	require.NoError(t, Load(v, cfg))

	assert.Equal(t, "default", cfg.Name)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 8080, cfg.Nested.Port)
	assert.Equal(t, []string{"age", "zipcode"}, cfg.Nested.Items)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: file\ntimeout: 5s\nnested:\n  port: 9000\n"), 0o644))
	t.Setenv("ANONSEARCH_NESTED_PORT", "9100")

	v := viper.New()
	v.SetConfigFile(path)

	cfg := defaults()
	require.NoError(t, Load(v, cfg))

	assert.Equal(t, "file", cfg.Name)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 9100, cfg.Nested.Port)
	assert.Equal(t, []string{"age", "zipcode"}, cfg.Nested.Items)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	v := viper.New()
	v.SetConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))

	err := Load(v, defaults())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfiguration))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	saved := defaults()
	saved.Name = "saved"
	saved.Nested.Items = []string{"zipcode"}
	require.NoError(t, Save(saved, path))

	v := viper.New()
	v.SetConfigFile(path)

	loaded := &testConfig{}
	require.NoError(t, Load(v, loaded))
	assert.Equal(t, saved, loaded)
}

func TestFlatten(t *testing.T) {
	flat := Flatten("", map[string]interface{}{
		"a": 1,
		"b": map[string]interface{}{
			"c": "x",
			"d": map[string]interface{}{"e": true},
		},
	})

	assert.Equal(t, map[string]interface{}{
		"a":     1,
		"b.c":   "x",
		"b.d.e": true,
	}, flat)
}
