package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	SourceFile      = "file"
	SourceConfigMap = "configmap"
	SourceWordPress = "wordpress"
)

type MarketingConfig struct {
	Server    ServerConfig    `yaml:"server"`
	HTTP      HTTPConfig      `yaml:"http"`
	Content   ContentConfig   `yaml:"content"`
	Auth      AuthConfig      `yaml:"auth"`
	Policy    PolicyConfig    `yaml:"policy"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Abilities AbilitiesConfig `yaml:"abilities"`
	Adapter   AdapterConfig   `yaml:"adapter"`
}

type Config = MarketingConfig

type ServerConfig struct {
	Name      string `yaml:"name"`
	Version   string `yaml:"version"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	SafeMode  bool   `yaml:"safe_mode"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	BaseURL         string        `yaml:"base_url"`
	BasePath        string        `yaml:"base_path"`
	RESTPrefix      string        `yaml:"rest_prefix"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type ContentConfig struct {
	Source    string          `yaml:"source"`
	SiteURL   string          `yaml:"site_url"`
	Timezone  string          `yaml:"timezone"`
	File      FileConfig      `yaml:"file"`
	ConfigMap ConfigMapConfig `yaml:"configmap"`
	WordPress WordPressConfig `yaml:"wordpress"`
}

type FileConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

type ConfigMapConfig struct {
	Kubeconfig string `yaml:"kubeconfig"`
	Namespace  string `yaml:"namespace"`
	Name       string `yaml:"name"`
	Key        string `yaml:"key"`
	Watch      bool   `yaml:"watch"`
}

type WordPressConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Username    string        `yaml:"username"`
	AppPassword string        `yaml:"app_password"`
	Timeout     time.Duration `yaml:"timeout"`
	RetryMax    int           `yaml:"retry_max"`
}

type AuthConfig struct {
	Users             []UserConfig `yaml:"users"`
	StdioCapabilities []string     `yaml:"stdio_capabilities"`
}

type UserConfig struct {
	Login        string   `yaml:"login"`
	PasswordHash string   `yaml:"password_hash"`
	Capabilities []string `yaml:"capabilities"`
}

type PolicyConfig struct {
	AllowAbilities []string `yaml:"allow_abilities"`
	DenyAbilities  []string `yaml:"deny_abilities"`
}

type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
	Metrics  bool   `yaml:"metrics"`
}

// AbilitiesConfig and AdapterConfig toggle the two collaborating frameworks.
// A disabled framework is handed to the plugin as unavailable.
type AbilitiesConfig struct {
	Enabled bool `yaml:"enabled"`
}

type AdapterConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Transports []string `yaml:"transports"`
}

func DefaultConfig() *MarketingConfig {
	return &MarketingConfig{
		Server: ServerConfig{
			Name:      "marketing-mcp",
			Version:   "0.1.0",
			LogLevel:  "info",
			LogFormat: "text",
			SafeMode:  true,
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			BasePath:        "/mcp",
			RESTPrefix:      "/wp-abilities/v1",
			ShutdownTimeout: 10 * time.Second,
		},
		Content: ContentConfig{
			Source:   SourceFile,
			SiteURL:  "http://localhost",
			Timezone: "UTC",
			File: FileConfig{
				Path: "content.yaml",
			},
			ConfigMap: ConfigMapConfig{
				Kubeconfig: "~/.kube/config",
				Namespace:  "default",
				Name:       "marketing-content",
				Key:        "content.yaml",
			},
			WordPress: WordPressConfig{
				Timeout:  20 * time.Second,
				RetryMax: 2,
			},
		},
		Auth: AuthConfig{
			Users:             []UserConfig{},
			StdioCapabilities: []string{},
		},
		Telemetry: TelemetryConfig{
			Enabled:  false,
			Exporter: "stdout",
		},
		Abilities: AbilitiesConfig{
			Enabled: true,
		},
		Adapter: AdapterConfig{
			Enabled:    true,
			Transports: []string{"streamable-http", "sse"},
		},
	}
}

func LoadConfig(path string) (*MarketingConfig, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		applyEnv(cfg)
		return cfg, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		applyEnv(cfg)
		return cfg, err
	}

	applyDefaults(cfg)
	applyEnv(cfg)
	return cfg, nil
}

func applyDefaults(cfg *MarketingConfig) {
	if cfg.Server.Name == "" {
		cfg.Server.Name = "marketing-mcp"
	}
	if cfg.Server.Version == "" {
		cfg.Server.Version = "0.1.0"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if cfg.Server.LogFormat == "" {
		cfg.Server.LogFormat = "text"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.BasePath == "" {
		cfg.HTTP.BasePath = "/mcp"
	}
	if cfg.HTTP.RESTPrefix == "" {
		cfg.HTTP.RESTPrefix = "/wp-abilities/v1"
	}
	if cfg.HTTP.ShutdownTimeout <= 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Content.Source == "" {
		cfg.Content.Source = SourceFile
	}
	if cfg.Content.SiteURL == "" {
		cfg.Content.SiteURL = "http://localhost"
	}
	if cfg.Content.Timezone == "" {
		cfg.Content.Timezone = "UTC"
	}
	if cfg.Content.File.Path == "" {
		cfg.Content.File.Path = "content.yaml"
	}
	if cfg.Content.ConfigMap.Kubeconfig == "" {
		cfg.Content.ConfigMap.Kubeconfig = "~/.kube/config"
	}
	if cfg.Content.ConfigMap.Namespace == "" {
		cfg.Content.ConfigMap.Namespace = "default"
	}
	if cfg.Content.ConfigMap.Name == "" {
		cfg.Content.ConfigMap.Name = "marketing-content"
	}
	if cfg.Content.ConfigMap.Key == "" {
		cfg.Content.ConfigMap.Key = "content.yaml"
	}
	if cfg.Content.WordPress.Timeout <= 0 {
		cfg.Content.WordPress.Timeout = 20 * time.Second
	}
	if cfg.Content.WordPress.RetryMax < 0 {
		cfg.Content.WordPress.RetryMax = 0
	}
	if cfg.Telemetry.Exporter == "" {
		cfg.Telemetry.Exporter = "stdout"
	}
	if len(cfg.Adapter.Transports) == 0 {
		cfg.Adapter.Transports = []string{"streamable-http", "sse"}
	}
}

// applyEnv lets deployments keep WordPress credentials out of the config file.
func applyEnv(cfg *MarketingConfig) {
	if v := os.Getenv("WP_BASE_URL"); v != "" {
		cfg.Content.WordPress.BaseURL = v
	}
	if v := os.Getenv("WP_APP_USER"); v != "" {
		cfg.Content.WordPress.Username = v
	}
	if v := os.Getenv("WP_APP_PASSWORD"); v != "" {
		cfg.Content.WordPress.AppPassword = v
	}
	if v := os.Getenv("MARKETING_MCP_LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = v
	}
}
