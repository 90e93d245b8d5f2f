package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FileName is the workspace config file.
const FileName = "donortrack.yml"

// Config models donortrack.yml.
type Config struct {
	Database DatabaseConfig  `yaml:"database"`
	Server   ServerConfig    `yaml:"server"`
	Upstream UpstreamConfig  `yaml:"upstream"`
	Tasks    TasksConfig     `yaml:"tasks"`
	Log      LogConfig       `yaml:"log"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty" validate:"dive"`
}

type DatabaseConfig struct {
	Name string `yaml:"name" validate:"required,excludesall=/\\"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr" validate:"required"`
	BasePath  string `yaml:"base_path" validate:"omitempty,startswith=/"`
	JWTSecret string `yaml:"jwt_secret,omitempty"`
	// TokenTTLMinutes bounds tokens issued by /auth/login.
	TokenTTLMinutes int `yaml:"token_ttl_minutes,omitempty" validate:"gte=0"`
}

type UpstreamConfig struct {
	BaseURL        string `yaml:"base_url" validate:"required,url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"gte=0"`
}

type TasksConfig struct {
	TransitionPolicy string `yaml:"transition_policy" validate:"omitempty,oneof=open locked"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	// File enables a rotating JSON log file next to console output.
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups,omitempty" validate:"gte=0"`
}

// WebhookConfig configures delivery of activity entries to an external URL.
type WebhookConfig struct {
	URL            string   `yaml:"url" validate:"required,url"`
	Events         []string `yaml:"events,omitempty"`
	Secret         string   `yaml:"secret,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty" validate:"gte=0"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Name: "production"},
		Server:   ServerConfig{Addr: "127.0.0.1:8080", BasePath: "/api", TokenTTLMinutes: 720},
		Upstream: UpstreamConfig{BaseURL: "https://bc-cancer-faux.onrender.com", TimeoutSeconds: 15},
		Tasks:    TasksConfig{TransitionPolicy: "open"},
		Log:      LogConfig{Level: "info", MaxSizeMB: 50, MaxBackups: 3},
	}
}

// Validate checks struct tags and the few cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			ns := fe.Namespace()
			if i := strings.Index(ns, "."); i >= 0 {
				ns = ns[i+1:]
			}
			return fmt.Errorf("config %s: failed %s check", ns, fe.Tag())
		}
		return fmt.Errorf("config validation failed: %w", err)
	}
	if strings.HasSuffix(c.Server.BasePath, "/") && c.Server.BasePath != "/" {
		return fmt.Errorf("config server.base_path must not end with /")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with donortrack config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns Default() if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses config over the defaults and validates the result.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// YAML renders cfg as it would be written to donortrack.yml.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
