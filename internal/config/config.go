// Package config loads the client and mock server settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override: api.base_url is JOKBO_API_BASE_URL.
const EnvPrefix = "JOKBO"

// legacyBaseURLEnv is read when JOKBO_API_BASE_URL is unset.
const legacyBaseURLEnv = "VITE_API_BASE_URL"

// Config holds every setting. Values come from defaults, then config.yaml, then env.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Session  SessionConfig  `mapstructure:"session"`
	Search   SearchConfig   `mapstructure:"search"`
	Download DownloadConfig `mapstructure:"download"`
	Log      LogConfig      `mapstructure:"log"`
	Mock     MockConfig     `mapstructure:"mock"`
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type SessionConfig struct {
	CookieName string `mapstructure:"cookie_name" validate:"required"`
	Dir        string `mapstructure:"dir" validate:"required"`
}

type SearchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" validate:"gte=0"`
}

type DownloadConfig struct {
	Dir      string `mapstructure:"dir" validate:"required"`
	Parallel int    `mapstructure:"parallel" validate:"gte=1"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

// MockConfig is read by the development backend only.
type MockConfig struct {
	Addr       string        `mapstructure:"addr"`
	SignKey    string        `mapstructure:"sign_key"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`

	// AuthMaxFails invalid session cookies from one client block it for AuthBlock.
	// Zero disables the limiter.
	AuthMaxFails int           `mapstructure:"auth_max_fails" validate:"gte=0"`
	AuthBlock    time.Duration `mapstructure:"auth_block" validate:"gte=0"`
}

// Dir is $XDG_CONFIG_HOME/jokbo, or ~/.config/jokbo.
func Dir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "jokbo")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "jokbo")
}

// Load reads ./.env, then the config file (file, or config.yaml in Dir() or the
// working directory when file is ""), then the environment. The API base URL is
// required.
func Load(file string) (Config, error) {
	return load(file, ".env", true)
}

// LoadServer is Load without the client-only requirements.
func LoadServer(file string) (Config, error) {
	return load(file, ".env", false)
}

func load(file, dotenv string, client bool) (Config, error) {
	if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", dotenv, err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("api.base_url", EnvPrefix+"_API_BASE_URL", legacyBaseURLEnv); err != nil {
		return Config{}, err
	}

	v.SetDefault("api.base_url", "")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("session.cookie_name", "accessToken")
	v.SetDefault("session.dir", Dir())
	v.SetDefault("search.debounce", "250ms")
	v.SetDefault("download.dir", ".")
	v.SetDefault("download.parallel", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("mock.addr", ":8080")
	v.SetDefault("mock.sign_key", "")
	v.SetDefault("mock.session_ttl", "24h")
	v.SetDefault("mock.auth_max_fails", 5)
	v.SetDefault("mock.auth_block", "15m")

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(Dir())
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.API.BaseURL), "/")
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)

	if err := check(cfg, client); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New()

func check(cfg Config, client bool) error {
	var err error
	if client {
		err = validate.Struct(cfg)
	} else {
		err = validate.StructExcept(cfg, "API.BaseURL")
	}
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, len(verrs))
		for i, fe := range verrs {
			fields[i] = fe.Namespace()
		}
		return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
	}
	return fmt.Errorf("invalid config: %w", err)
}
