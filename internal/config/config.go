package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const dirName = ".go_hce"

var (
	configData Config
	v          *viper.Viper
	bindings   = map[string]*pflag.Flag{}
)

// Config holds all configuration settings.
type Config struct {
	// Server configuration
	Server struct {
		Host string
		Port int
	}
	// Logging configuration
	Log struct {
		Level  string
		Format string
	}
	// Store configuration. Key seals PAN and CVV at rest when set.
	Store struct {
		Path string
		Key  string
	}
	// Card application configuration
	Card struct {
		Label      string
		AdvanceATC bool `mapstructure:"advance_atc"`
	}
	// Authorization network simulation
	Authorization struct {
		MinDelay time.Duration `mapstructure:"min_delay"`
		MaxDelay time.Duration `mapstructure:"max_delay"`
		Timeout  time.Duration
	}
	// Clock configuration
	Clock struct {
		NTPServer string `mapstructure:"ntp_server"`
	}
	// PC/SC reader configuration
	Reader struct {
		Name string
	}
}

// Initialize sets up the configuration system.
func Initialize() error {
	return initialize(os.Getenv("HOME"), "")
}

// InitializeFile is Initialize with an explicit config file.
func InitializeFile(path string) error {
	return initialize(os.Getenv("HOME"), path)
}

func initialize(home, file string) error {
	v = viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(home, dirName))
		v.AddConfigPath("/etc/go_hce/")
	}

	setDefaults(home)

	v.SetEnvPrefix("GOHCE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(
		strings.NewReplacer(".", "_"),
	)

	if file == "" {
		if err := ensureConfig(home); err != nil {
			return fmt.Errorf("error creating config file: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// It's okay if we can't find a config file, we'll use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	for key, flag := range bindings {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag.Name, err)
		}
	}

	if err := v.Unmarshal(&configData); err != nil {
		return fmt.Errorf("unable to decode into config struct: %w", err)
	}

	return nil
}

// setDefaults sets default values for all configuration options.
func setDefaults(home string) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 1600)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "human")

	v.SetDefault("store.path", filepath.Join(home, dirName, "data"))
	v.SetDefault("store.key", "")

	v.SetDefault("card.label", "PayPlus")
	v.SetDefault("card.advance_atc", true)

	v.SetDefault("authorization.min_delay", 300*time.Millisecond)
	v.SetDefault("authorization.max_delay", 1500*time.Millisecond)
	v.SetDefault("authorization.timeout", 30*time.Second)

	v.SetDefault("clock.ntp_server", "")

	v.SetDefault("reader.name", "")
}

// ensureConfig creates a default config file if none exists.
func ensureConfig(home string) error {
	dir := filepath.Join(home, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	configFile := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		defaultConfig := `# GO HCE Configuration File
server:
  host: localhost
  port: 1600

log:
  level: info
  format: human

store:
  # path: ~/.go_hce/data
  # key seals PAN and CVV at rest: 64 hex chars or any passphrase.
  key: ""

card:
  label: PayPlus
  advance_atc: true

authorization:
  min_delay: 300ms
  max_delay: 1500ms
  timeout: 30s

clock:
  ntp_server: ""

reader:
  name: ""
`
		if err := os.WriteFile(configFile, []byte(defaultConfig), 0o600); err != nil {
			return err
		}
	}

	return nil
}

// BindFlag makes flag override key when it is set on the command line.
// Bindings take effect on the next Initialize.
func BindFlag(key string, flag *pflag.Flag) {
	bindings[key] = flag
}

// Get returns the current configuration.
func Get() *Config {
	return &configData
}

// GetViper returns the viper instance.
func GetViper() *viper.Viper {
	return v
}
