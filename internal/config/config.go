package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// ServerConfig holds configuration variables for the server.
type ServerConfig struct {
	Scheme string
	Host   string
	Port   string
}

// URL returns the main gateway URL for the server.
func (s *ServerConfig) URL() string {
	host := s.Host
	includePort := func() bool {
		if s.Port == "" {
			return false
		}
		if s.Scheme == "http" {
			return s.Port != "80"
		}
		// s.Scheme == "https"
		return s.Port != "443"
	}()
	if includePort {
		host = fmt.Sprintf("%s:%s", host, s.Port)
	}
	uri := url.URL{
		Scheme: s.Scheme,
		Host:   host,
	}
	return uri.String()
}

// Addr returns the address the server listens on.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}

// DatabaseConfig holds configuration variables for the database.
type DatabaseConfig struct {
	Backend string // badger or dgraph

	// For Dgraph
	URL string

	// For embedded DB
	Dir      string // Path to store data in (for embedded)
	InMemory bool
}

// AuthConfig holds the settings used to verify bearer tokens.
type AuthConfig struct {
	SigningKey string
	Issuer     string
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string
	Environment string
}

// EventsConfig holds the message broker settings. Events are disabled
// when AMQPURL is empty.
type EventsConfig struct {
	AMQPURL  string `mapstructure:"amqpURL"`
	Exchange string
}

// BackfillConfig holds settings for the tenancy backfill.
type BackfillConfig struct {
	BatchSize  int
	Checkpoint bool
}

// CORSConfig lists the origins allowed to call the API.
type CORSConfig struct {
	Origins []string
}

// Config holds configuration information for the program.
type Config struct {
	Server   *ServerConfig
	Database *DatabaseConfig
	Auth     *AuthConfig
	Log      *LogConfig
	Events   *EventsConfig
	Backfill *BackfillConfig
	CORS     *CORSConfig            `mapstructure:"cors"`
	Remain   map[string]interface{} `mapstructure:",remain"`
}

var (
	// Current is the current configuration for the server.
	Current Config

	configPath string
)

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("server", map[string]interface{}{
		"scheme": "http",
		"host":   "localhost",
		"port":   "8000",
	})

	v.SetDefault("database", map[string]interface{}{
		"backend":  "badger",
		"url":      "localhost:9080",
		"inMemory": false,
	})

	v.SetDefault("auth", map[string]interface{}{
		"signingKey": "",
		"issuer":     "rentwise",
	})

	v.SetDefault("log", map[string]interface{}{
		"level":       "info",
		"environment": "development",
	})

	v.SetDefault("events", map[string]interface{}{
		"amqpURL":  "",
		"exchange": "rentwise.events",
	})

	v.SetDefault("backfill", map[string]interface{}{
		"batchSize":  100,
		"checkpoint": true,
	})

	v.SetDefault("cors.origins", []string{"*"})
}

// LoadConfig loads the config file into Current. When file is empty the
// default locations are searched; a missing file means running with
// defaults.
func LoadConfig(file string) error {
	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath("/etc/rentwise/")
		v.AddConfigPath("$HOME/.rentwise")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	setConfigDefaults(v)

	v.SetEnvPrefix("rentwise")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("unable to read config file: %v", err)
		}
		configPath, err = getConfigurationDirectory()
		if err != nil {
			return err
		}
	} else {
		configPath = filepath.Dir(v.ConfigFileUsed())
	}

	var conf Config
	err = v.Unmarshal(&conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return fmt.Errorf("error unmarshalling config: %v", err)
	}

	// Set paths with known configPath
	if conf.Database.Dir == "" && !conf.Database.InMemory {
		conf.Database.Dir = filepath.Join(configPath, "data")
	}

	Current = conf
	return nil
}

// getConfigurationDirectory returns the first usable of /etc/rentwise and
// ~/.rentwise, creating it when possible.
func getConfigurationDirectory() (string, error) {
	candidates := []string{"/etc/rentwise"}
	if home, err := homedir.Dir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".rentwise"))
	}

	for _, configDir := range candidates {
		if _, err := os.Stat(configDir); err == nil {
			return configDir, nil
		} else if !os.IsNotExist(err) {
			return "", err
		}
		// For non-sudo users, creating /etc/rentwise is not possible
		if err := os.MkdirAll(configDir, 0770); err == nil {
			return configDir, nil
		}
	}

	return "", errors.New("could not locate viable storage dir")
}
