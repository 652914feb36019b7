package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port         string `yaml:"port"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// AuditConfig selects the backing store for delivery records.
// Driver is one of "postgres", "mysql" or "sqlite".
type AuditConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	Path     string `yaml:"path"` // sqlite only
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MQConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
	Enabled  bool   `yaml:"enabled"`
}

type CloudinaryConfig struct {
	CloudName     string `yaml:"cloud_name"`
	APIKey        string `yaml:"api_key"`
	APISecret     string `yaml:"api_secret"`
	DefaultFolder string `yaml:"default_folder"`
	BatchFolder   string `yaml:"batch_folder"`
	MaxWidth      int    `yaml:"max_width"`
	MaxHeight     int    `yaml:"max_height"`
	Quality       string `yaml:"quality"`
}

type UploadConfig struct {
	MaxRetries   int           `yaml:"max_retries"`
	BaseDelay    time.Duration `yaml:"base_delay"`
	MaxBatchSize int           `yaml:"max_batch_size"`
	Compensate   bool          `yaml:"compensate"`
}

type MailConfig struct {
	CredentialStore string        `yaml:"credential_store"` // file | redis
	TokenPath       string        `yaml:"token_path"`
	RedisKey        string        `yaml:"redis_key"`
	Transport       string        `yaml:"transport"` // gmail_api | smtp
	SMTPAddr        string        `yaml:"smtp_addr"`
	SenderName      string        `yaml:"sender_name"`
	DefaultSender   string        `yaml:"default_sender"`
	MockDelay       time.Duration `yaml:"mock_delay"`
	ErrorCap        int           `yaml:"error_cap"`
	RedirectURL     string        `yaml:"redirect_url"`
}

// TracingConfig controls OpenTelemetry export. Endpoint is an OTLP/HTTP
// host:port or a full collector URL.
type TracingConfig struct {
	Enabled        bool    `yaml:"enabled"`
	Endpoint       string  `yaml:"endpoint"`
	ServiceName    string  `yaml:"service_name"`
	ServiceVersion string  `yaml:"service_version"`
	SampleRatio    float64 `yaml:"sample_ratio"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	JWT        JWTConfig        `yaml:"jwt"`
	Audit      AuditConfig      `yaml:"audit"`
	Redis      RedisConfig      `yaml:"redis"`
	MQ         MQConfig         `yaml:"mq"`
	Cloudinary CloudinaryConfig `yaml:"cloudinary"`
	Upload     UploadConfig     `yaml:"upload"`
	Mail       MailConfig       `yaml:"mail"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Log        LogConfig        `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: ":8080", MaxBodyBytes: 20 << 20},
		Audit:  AuditConfig{Driver: "sqlite", Path: "greyinsaat.db", Port: 5432},
		Redis:  RedisConfig{Addr: "localhost:6379"},
		MQ:     MQConfig{Exchange: "grey.delivery"},
		Cloudinary: CloudinaryConfig{
			DefaultFolder: "greyinsaat",
			BatchFolder:   "greyinsaat/projects",
			MaxWidth:      1920,
			MaxHeight:     1080,
			Quality:       "auto:good",
		},
		Upload: UploadConfig{
			MaxRetries:   2,
			BaseDelay:    500 * time.Millisecond,
			MaxBatchSize: 7,
		},
		Mail: MailConfig{
			CredentialStore: "file",
			TokenPath:       "./myToken.json",
			RedisKey:        "greyinsaat:gmail:credential",
			Transport:       "gmail_api",
			SMTPAddr:        "smtp.gmail.com:587",
			SenderName:      "Grey Insaat",
			DefaultSender:   "noreply@greyinsaat.com",
			MockDelay:       time.Second,
			ErrorCap:        500,
			RedirectURL:     "https://developers.google.com/oauthplayground",
		},
		Tracing: TracingConfig{
			Endpoint:       "localhost:4318",
			ServiceName:    "greybackend-api",
			ServiceVersion: "2.0.0",
			SampleRatio:    1,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the YAML file at path on top of the defaults, then applies
// .env and process environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", path, err)
			}
		}
	}

	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	overrideFromEnv(cfg)
	return cfg, nil
}

func overrideFromEnv(cfg *Config) {
	setString(&cfg.Server.Port, "SERVER_PORT")
	setString(&cfg.JWT.Secret, "JWT_SECRET")

	setString(&cfg.Audit.Driver, "AUDIT_DRIVER")
	setString(&cfg.Audit.Host, "DB_HOST")
	setInt(&cfg.Audit.Port, "DB_PORT")
	setString(&cfg.Audit.User, "DB_USER")
	setString(&cfg.Audit.Password, "DB_PASSWORD")
	setString(&cfg.Audit.Name, "DB_NAME")
	setString(&cfg.Audit.SSLMode, "DB_SSLMODE")
	setString(&cfg.Audit.Path, "DB_PATH")

	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.MQ.Exchange, "MQ_EXCHANGE")

	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.MQ.URL = url
		cfg.MQ.Enabled = true
	}

	setString(&cfg.Cloudinary.CloudName, "CLOUDINARY_CLOUD_NAME")
	setString(&cfg.Cloudinary.APIKey, "CLOUDINARY_API_KEY")
	setString(&cfg.Cloudinary.APISecret, "CLOUDINARY_API_SECRET")

	setString(&cfg.Mail.TokenPath, "GMAIL_TOKEN_PATH")
	setString(&cfg.Mail.CredentialStore, "MAIL_CREDENTIAL_STORE")
	setString(&cfg.Mail.Transport, "MAIL_TRANSPORT")

	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		cfg.Tracing.Endpoint = endpoint
		cfg.Tracing.Enabled = true
	}

	setString(&cfg.Log.Level, "LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// GetEnv returns the environment value for key, or defaultValue when unset.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
