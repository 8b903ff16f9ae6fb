package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type GRPC struct {
	Addr string `yaml:"addr"`
}

type HTTP struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"`
	CORSOrigins       []string      `yaml:"corsOrigins"`
	SendRatePerSec    float64       `yaml:"sendRatePerSec"` // лимит отправки сообщений на пользователя
	SendBurst         int           `yaml:"sendBurst"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // chat-service
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	Level     string `yaml:"level"`     // debug|info|warn|error
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

// Postgres: пустой dsn: хранилище в памяти (локальный запуск).
type Postgres struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"maxConns"`
	MinConns        int32         `yaml:"minConns"`
	MaxConnLifetime time.Duration `yaml:"maxConnLifetime"`
	MaxConnIdleTime time.Duration `yaml:"maxConnIdleTime"`
	ApplicationName string        `yaml:"applicationName"`
	Migrate         bool          `yaml:"migrate"`
}

type JWT struct {
	Alg           string        `yaml:"alg"`           // HS256|RS256, пусто: по заданному ключу
	Secret        string        `yaml:"secret"`        // HS256
	PublicKeyPath string        `yaml:"publicKeyPath"` // RS256
	Issuer        string        `yaml:"issuer"`
	Audience      string        `yaml:"audience"`
	ClockSkew     time.Duration `yaml:"clockSkew"`
}

type Auth struct {
	JWT JWT `yaml:"jwt"`
}

// Storage: пустой bucket: удаление медиа отключено.
type Storage struct {
	Endpoint      string `yaml:"endpoint"`
	Region        string `yaml:"region"`
	Bucket        string `yaml:"bucket"`
	AccessKey     string `yaml:"accessKey"`
	SecretKey     string `yaml:"secretKey"`
	PublicBaseURL string `yaml:"publicBaseURL"`
	PathStyle     bool   `yaml:"pathStyle"`
}

type Chat struct {
	MaxTextLength       int  `yaml:"maxTextLength"`
	MaxURLLength        int  `yaml:"maxURLLength"`
	MaxFileNameLength   int  `yaml:"maxFileNameLength"`
	MaxPinned           int  `yaml:"maxPinned"`
	MaxForwardTargets   int  `yaml:"maxForwardTargets"`
	DefaultPageSize     int  `yaml:"defaultPageSize"`
	MaxPageSize         int  `yaml:"maxPageSize"`
	MaxSearchPage       int  `yaml:"maxSearchPage"`
	SnippetRadius       int  `yaml:"snippetRadius"`
	ApplyBlocksOnFanout bool `yaml:"applyBlocksOnFanout"`
}

type WS struct {
	MaxFrameSize   string        `yaml:"maxFrameSize"` // 64KiB, 1MB ...
	PingInterval   time.Duration `yaml:"pingInterval"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	SendBuffer     int           `yaml:"sendBuffer"`
	RatePerSec     float64       `yaml:"ratePerSec"` // входящие кадры на соединение
	RateBurst      int           `yaml:"rateBurst"`
	AllowedOrigins []string      `yaml:"allowedOrigins"` // пусто: любой Origin

	maxFrameBytes int64
}

// MaxFrameBytes: разобранный maxFrameSize.
func (w WS) MaxFrameBytes() int64 {
	return w.maxFrameBytes
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	GRPC     GRPC     `yaml:"grpc"`
	Logging  Logging  `yaml:"logging"`
	Postgres Postgres `yaml:"postgres"`
	Auth     Auth     `yaml:"auth"`
	Storage  Storage  `yaml:"storage"`
	Chat     Chat     `yaml:"chat"`
	WS       WS       `yaml:"ws"`
}

// LoadConfig читает YAML из CONFIG_PATH. Перед разбором подставляются
// переменные окружения (${VAR}); .env, если есть, подхватывается заранее.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	switch c.Auth.JWT.Alg {
	case "":
		if c.Auth.JWT.PublicKeyPath != "" {
			c.Auth.JWT.Alg = "RS256"
		} else {
			c.Auth.JWT.Alg = "HS256"
		}
	case "HS256", "RS256":
	default:
		return fmt.Errorf("auth.jwt.alg: unsupported %q", c.Auth.JWT.Alg)
	}
	if c.Auth.JWT.Alg == "HS256" && c.Auth.JWT.Secret == "" {
		return errors.New("auth.jwt.secret is required for HS256")
	}
	if c.Auth.JWT.Alg == "RS256" && c.Auth.JWT.PublicKeyPath == "" {
		return errors.New("auth.jwt.publicKeyPath is required for RS256")
	}
	if c.Auth.JWT.ClockSkew < 0 || c.Auth.JWT.ClockSkew > time.Minute {
		return errors.New("auth.jwt.clockSkew must be in [0..1m]")
	}
	if c.Storage.Bucket != "" && c.Storage.PublicBaseURL == "" {
		return errors.New("storage.publicBaseURL is required when storage.bucket is set")
	}

	// установка дефолтов, если значения не указаны
	if c.Logging.Service == "" {
		c.Logging.Service = "chat-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	if c.Postgres.ApplicationName == "" {
		c.Postgres.ApplicationName = c.Logging.Service
	}

	if c.HTTP.ReadHeaderTimeout <= 0 {
		c.HTTP.ReadHeaderTimeout = 5 * time.Second
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.HTTP.SendRatePerSec <= 0 {
		c.HTTP.SendRatePerSec = 5
	}
	if c.HTTP.SendBurst <= 0 {
		c.HTTP.SendBurst = 10
	}

	if c.Storage.Region == "" {
		c.Storage.Region = "us-east-1"
	}

	if c.WS.MaxFrameSize == "" {
		c.WS.MaxFrameSize = "64KiB"
	}
	n, err := humanize.ParseBytes(c.WS.MaxFrameSize)
	if err != nil || n == 0 {
		return fmt.Errorf("ws.maxFrameSize: invalid size %q", c.WS.MaxFrameSize)
	}
	c.WS.maxFrameBytes = int64(n)
	if c.WS.PingInterval <= 0 {
		c.WS.PingInterval = 15 * time.Second
	}
	if c.WS.WriteTimeout <= 0 {
		c.WS.WriteTimeout = 5 * time.Second
	}
	if c.WS.SendBuffer <= 0 {
		c.WS.SendBuffer = 64
	}
	if c.WS.RatePerSec <= 0 {
		c.WS.RatePerSec = 20
	}
	if c.WS.RateBurst <= 0 {
		c.WS.RateBurst = 40
	}
	return nil
}
