package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the CLI configuration, read from ~/.csm/cli.yaml and CSM_*
// environment variables
type Config struct {
	URL      string
	Username string
	Password string
	Timeout  time.Duration
	LogLevel string
}

// DefaultConfigDir is where the CLI looks for cli.yaml under the home directory
const DefaultConfigDir = ".csm"

// LoadConfig reads the CLI configuration. An explicit path must exist; the
// default file is optional.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("CSM")
	v.AutomaticEnv()

	v.SetDefault("url", "http://localhost:28101")
	v.SetDefault("timeout", "30s")
	v.SetDefault("log_level", "warn")
	// registered so AutomaticEnv resolves them without a config file
	v.SetDefault("username", "")
	v.SetDefault("password", "")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read cli config %s: %w", path, err)
		}
	} else if home, err := os.UserHomeDir(); err == nil {
		v.SetConfigName("cli")
		v.AddConfigPath(filepath.Join(home, DefaultConfigDir))
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read cli config: %w", err)
			}
		}
	}

	return &Config{
		URL:      v.GetString("url"),
		Username: v.GetString("username"),
		Password: v.GetString("password"),
		Timeout:  v.GetDuration("timeout"),
		LogLevel: v.GetString("log_level"),
	}, nil
}
