package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultSecretKey is the development secret shipped in defaults.
const DefaultSecretKey = "dev-secret-key-change-in-production"

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Upload      UploadConfig      `mapstructure:"upload"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Caption     CaptionConfig     `mapstructure:"caption"`
	LocalModel  LocalModelConfig  `mapstructure:"local_model"`
	Remote      RemoteConfig      `mapstructure:"remote"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Performance PerformanceConfig `mapstructure:"performance"`
	Batch       BatchConfig       `mapstructure:"batch"`
}

type ServerConfig struct {
	Port      int        `mapstructure:"port"`
	Mode      string     `mapstructure:"mode"`
	Debug     bool       `mapstructure:"debug"`
	SecretKey string     `mapstructure:"secret_key"`
	CORS      CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type UploadConfig struct {
	MaxSize           int64    `mapstructure:"max_size"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
	StorageQuality    int      `mapstructure:"storage_quality"`
	AutoOrient        bool     `mapstructure:"auto_orient"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	Debug           bool          `mapstructure:"debug"`
}

// DSN builds the driver-specific connection string.
// Parameters: none.
// Returns:
//   - string: sqlite file path or postgres key/value DSN.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	}
	return c.Path
}

type StorageConfig struct {
	Type      string `mapstructure:"type"` // local, s3, r2, s3compatible
	LocalDir  string `mapstructure:"local_dir"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

type CaptionConfig struct {
	UseRemote bool   `mapstructure:"use_remote"`
	Prompt    string `mapstructure:"prompt"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

type LocalModelConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	LoadTimeout time.Duration `mapstructure:"load_timeout"`
}

type RemoteConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type CacheConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type PerformanceConfig struct {
	InferenceTimeout    time.Duration `mapstructure:"inference_timeout"`
	TargetInferenceTime time.Duration `mapstructure:"target_inference_time"`
	MaxImageDimension   int           `mapstructure:"max_image_dimension"`
}

type BatchConfig struct {
	Workers   int    `mapstructure:"workers"`
	BatchSize int    `mapstructure:"batch_size"`
	Dir       string `mapstructure:"dir"` // inbox directory for admin-triggered runs; empty disables them
	Recursive bool   `mapstructure:"recursive"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Explicit bindings keep the historical environment names working
	v.BindEnv("server.secret_key", "SECRET_KEY")
	v.BindEnv("server.debug", "DEBUG")
	v.BindEnv("server.cors.allowed_origins", "CORS_ORIGINS")
	v.BindEnv("caption.use_remote", "USE_REMOTE_PROVIDER", "USE_GEMINI")
	v.BindEnv("remote.api_key", "REMOTE_API_KEY", "GEMINI_API_KEY")
	v.BindEnv("remote.base_url", "REMOTE_BASE_URL")
	v.BindEnv("remote.model", "REMOTE_MODEL")
	v.BindEnv("local_model.base_url", "OLLAMA_HOST")
	v.BindEnv("local_model.model", "MODEL_NAME")
	v.BindEnv("cache.enabled", "CACHE_ENABLED")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("database.password", "DATABASE_PASSWORD")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Server.CORS.AllowedOrigins = splitList(cfg.Server.CORS.AllowedOrigins)
	cfg.Upload.AllowedExtensions = splitList(cfg.Upload.AllowedExtensions)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5001)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.debug", true)
	v.SetDefault("server.secret_key", DefaultSecretKey)
	v.SetDefault("server.cors.allow_all_origins", false)
	v.SetDefault("server.cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("upload.max_size", 16*1024*1024)
	v.SetDefault("upload.allowed_extensions", []string{"png", "jpg", "jpeg"})
	v.SetDefault("upload.storage_quality", 95)
	v.SetDefault("upload.auto_orient", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/captions.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_dir", "./uploads")
	v.SetDefault("storage.bucket", "captions")
	v.SetDefault("caption.use_remote", false)
	v.SetDefault("caption.prompt", "Describe this image in a single, concise sentence.")
	v.SetDefault("caption.max_tokens", 50)
	v.SetDefault("local_model.base_url", "http://localhost:11434")
	v.SetDefault("local_model.model", "llava:7b")
	v.SetDefault("local_model.load_timeout", 5*time.Minute)
	v.SetDefault("remote.base_url", "https://generativelanguage.googleapis.com/v1beta/openai")
	v.SetDefault("remote.model", "gemini-2.5-flash")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("performance.inference_timeout", 30*time.Second)
	v.SetDefault("performance.target_inference_time", 5*time.Second)
	v.SetDefault("performance.max_image_dimension", 512)
	v.SetDefault("batch.workers", 4)
	v.SetDefault("batch.batch_size", 20)
	v.SetDefault("batch.dir", "")
	v.SetDefault("batch.recursive", false)
}

// Validate rejects configuration values the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Upload.MaxSize <= 0 {
		return fmt.Errorf("upload.max_size must be positive")
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		return fmt.Errorf("upload.allowed_extensions must not be empty")
	}
	if c.Upload.StorageQuality < 1 || c.Upload.StorageQuality > 100 {
		return fmt.Errorf("upload.storage_quality must be in [1,100], got %d", c.Upload.StorageQuality)
	}
	if c.Performance.MaxImageDimension <= 0 {
		return fmt.Errorf("performance.max_image_dimension must be positive")
	}
	if c.Performance.InferenceTimeout <= 0 {
		return fmt.Errorf("performance.inference_timeout must be positive")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	return nil
}

// splitList expands comma separated entries so that env values such as
// CORS_ORIGINS="a,b" and YAML lists end up in the same shape.
func splitList(items []string) []string {
	var out []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
