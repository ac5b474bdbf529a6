package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/supplyhub/backend/internal/domain"
	"github.com/supplyhub/backend/pkg/utils/crypto"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Security SecurityConfig `mapstructure:"security"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Features FeaturesConfig `mapstructure:"features"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

type SecurityConfig struct {
	EncryptionKey string `mapstructure:"encryption_key"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	BodyLimit    int           `mapstructure:"body_limit"`
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type LoggerConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// UploadConfig holds the defaults for every batch; runtime settings may override
// them for batches started later.
type UploadConfig struct {
	ConcurrencyLimit int           `mapstructure:"concurrency_limit"`
	MaxBytes         int64         `mapstructure:"max_bytes"`
	AllowedTypes     []string      `mapstructure:"allowed_types"`
	PreviewPolicy    string        `mapstructure:"preview_policy"`
	PreviewDir       string        `mapstructure:"preview_dir"`
	Retention        time.Duration `mapstructure:"retention"`
	HistoryRetention time.Duration `mapstructure:"history_retention"`
}

func (u *UploadConfig) Policy() domain.UploadPolicy {
	return domain.UploadPolicy{
		ConcurrencyLimit: u.ConcurrencyLimit,
		MaxBytes:         u.MaxBytes,
		AllowedTypes:     append([]string(nil), u.AllowedTypes...),
		PreviewPolicy:    domain.PreviewPolicy(u.PreviewPolicy),
	}
}

type StorageConfig struct {
	Backend string      `mapstructure:"backend"`
	S3      S3Config    `mapstructure:"s3"`
	SFTP    SFTPConfig  `mapstructure:"sftp"`
	Local   LocalConfig `mapstructure:"local"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Prefix    string `mapstructure:"prefix"`
	Endpoint  string `mapstructure:"endpoint"`
	PublicURL string `mapstructure:"public_url"`
	PathStyle bool   `mapstructure:"path_style"`
}

type SFTPConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	PrivateKeyPath string        `mapstructure:"private_key_path"`
	RemoteDir      string        `mapstructure:"remote_dir"`
	PublicURL      string        `mapstructure:"public_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

type LocalConfig struct {
	Root      string `mapstructure:"root"`
	PublicURL string `mapstructure:"public_url"`
}

type FeaturesConfig struct {
	RequestIDHeader      string `mapstructure:"request_id_header"`
	EnableRequestLogging bool   `mapstructure:"enable_request_logging"`
	EnableLocks          bool   `mapstructure:"enable_locks"`
}

type AuthConfig struct {
	AdminAPIKey    string   `mapstructure:"admin_api_key"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

var ErrUnknownBackend = errors.New("config: unknown storage backend")

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.body_limit", 64*1024*1024)

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "console")
	v.SetDefault("logger.output_paths", []string{"stdout"})
	v.SetDefault("logger.error_output_paths", []string{"stderr"})

	v.SetDefault("upload.concurrency_limit", 3)
	v.SetDefault("upload.max_bytes", 10*1024*1024)
	v.SetDefault("upload.allowed_types", []string{"image/*"})
	v.SetDefault("upload.preview_policy", "deferred")
	v.SetDefault("upload.preview_dir", "")
	v.SetDefault("upload.retention", 30*time.Minute)
	v.SetDefault("upload.history_retention", 30*24*time.Hour)

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local.root", "data/assets")
	v.SetDefault("storage.sftp.port", 22)
	v.SetDefault("storage.sftp.timeout", 30*time.Second)
	v.SetDefault("storage.sftp.max_retries", 3)

	v.SetDefault("features.request_id_header", "X-Request-ID")
	v.SetDefault("features.enable_request_logging", true)
	v.SetDefault("features.enable_locks", true)
}

// Load reads the YAML file at path (when non-empty) and the SUPPLYHUB_* environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SUPPLYHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.decryptSecrets(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values the rest of the service relies on.
func (c *Config) Validate() error {
	if c.Upload.ConcurrencyLimit < 1 {
		return fmt.Errorf("config: upload.concurrency_limit must be >= 1, got %d", c.Upload.ConcurrencyLimit)
	}
	if c.Upload.MaxBytes < 1 {
		return fmt.Errorf("config: upload.max_bytes must be >= 1, got %d", c.Upload.MaxBytes)
	}
	switch c.Upload.PreviewPolicy {
	case "immediate", "deferred":
	default:
		return fmt.Errorf("config: upload.preview_policy must be immediate or deferred, got %q", c.Upload.PreviewPolicy)
	}
	switch c.Storage.Backend {
	case "local":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return errors.New("config: storage.s3.bucket is required")
		}
	case "sftp":
		if c.Storage.SFTP.Host == "" || c.Storage.SFTP.User == "" {
			return errors.New("config: storage.sftp.host and storage.sftp.user are required")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Storage.Backend)
	}
	return nil
}

// decryptSecrets replaces sealed "enc:" secrets with their plaintext.
func (c *Config) decryptSecrets() error {
	secrets := []*string{&c.Database.Password, &c.Storage.SFTP.Password, &c.Auth.AdminAPIKey}
	for _, s := range secrets {
		if !crypto.IsSealed(*s) {
			continue
		}
		plain, err := crypto.OpenSecret(*s, c.Security.EncryptionKey)
		if err != nil {
			return fmt.Errorf("config: failed to decrypt secret: %w", err)
		}
		*s = plain
	}
	return nil
}
