package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
	RequestTimeout  time.Duration
	CORSOrigins     []string `mapstructure:"cors_origins"`
}

type App struct {
	Name  string
	Env   string
	HTTP  HTTP
	Admin HTTP
}

type Log struct {
	Level      string
	JSON       bool
	File       string // empty: stdout only
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool
}

type JWT struct {
	Secret             string
	Issuer             string
	AccessTokenTTLMin  int `mapstructure:"access_token_ttl_min"`
	RefreshTokenTTLHrs int `mapstructure:"refresh_token_ttl_hrs"`
}

func (j JWT) AccessTTL() time.Duration  { return time.Duration(j.AccessTokenTTLMin) * time.Minute }
func (j JWT) RefreshTTL() time.Duration { return time.Duration(j.RefreshTokenTTLHrs) * time.Hour }

type Cookie struct {
	Name     string
	Domain   string
	Path     string
	Secure   bool
	SameSite string `mapstructure:"same_site"` // strict | lax | none
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DB struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
}

type OAuthProvider struct {
	Enabled      bool
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	Scopes       []string `mapstructure:"scopes"`
}

type OAuth struct {
	Google   OAuthProvider
	Facebook OAuthProvider
	Apple    OAuthProvider
	StateTTL time.Duration `mapstructure:"state_ttl"`
}

type Security struct {
	BcryptCost   int     `mapstructure:"bcrypt_cost"`
	AuthRPS      float64 `mapstructure:"auth_rps"`
	AuthBurst    int     `mapstructure:"auth_burst"`
	GlobalRPS    float64 `mapstructure:"global_rps"`
	GlobalBurst  int     `mapstructure:"global_burst"`
	MaxInFlight  int64   `mapstructure:"max_in_flight"`
	MaxBodyBytes int64   `mapstructure:"max_body_bytes"`
}

type Maintenance struct {
	TokenGCCron string `mapstructure:"token_gc_cron"`
}

type Config struct {
	App         App
	Log         Log
	JWT         JWT
	Cookie      Cookie
	DB          DB
	Redis       Redis `mapstructure:"redis"`
	OAuth       OAuth
	Security    Security
	Maintenance Maintenance
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "learnhub-auth")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 8080)
	v.SetDefault("app.http.readtimeoutsec", 5)
	v.SetDefault("app.http.writetimeoutsec", 10)
	v.SetDefault("app.http.idletimeoutsec", 60)
	v.SetDefault("app.http.requesttimeout", 10*time.Second)
	v.SetDefault("app.admin.host", "127.0.0.1")
	v.SetDefault("app.admin.port", 8081)
	v.SetDefault("app.admin.readtimeoutsec", 5)
	v.SetDefault("app.admin.writetimeoutsec", 10)
	v.SetDefault("app.admin.idletimeoutsec", 60)
	v.SetDefault("app.admin.requesttimeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("jwt.issuer", "learnhub")
	v.SetDefault("jwt.access_token_ttl_min", 15)
	v.SetDefault("jwt.refresh_token_ttl_hrs", 7*24)
	v.SetDefault("cookie.name", "refresh_token")
	v.SetDefault("cookie.path", "/api/v1/auth")
	v.SetDefault("cookie.secure", true)
	v.SetDefault("cookie.same_site", "strict")
	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.maxopenconns", 20)
	v.SetDefault("db.maxidleconns", 5)
	v.SetDefault("db.connmaxlifetimemin", 30)
	v.SetDefault("db.loglevel", "warn")
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("oauth.state_ttl", 10*time.Minute)
	v.SetDefault("oauth.google.scopes", []string{"openid", "email", "profile"})
	v.SetDefault("oauth.facebook.scopes", []string{"email", "public_profile"})
	v.SetDefault("oauth.apple.scopes", []string{"name", "email"})
	v.SetDefault("security.bcrypt_cost", 12)
	v.SetDefault("security.auth_rps", 5)
	v.SetDefault("security.auth_burst", 10)
	v.SetDefault("security.global_rps", 200)
	v.SetDefault("security.global_burst", 400)
	v.SetDefault("security.max_in_flight", 300)
	v.SetDefault("security.max_body_bytes", 1<<20)
	v.SetDefault("maintenance.token_gc_cron", "@hourly")
}

// Default returns the built-in configuration without reading any file.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		log.Fatalf("unmarshal default config: %v", err)
	}
	return &c
}

// Load reads a YAML file (a missing file is fine) and applies APP_* env overrides.
func Load(path string) *Config {
	v := viper.New()
	setDefaults(v)
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			log.Fatalf("read config: %v", err)
		}
		log.Printf("config file %s not found, using defaults and env", path)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		log.Fatalf("unmarshal config: %v", err)
	}
	if c.JWT.Secret == "" {
		log.Fatalf("jwt.secret is required (APP_JWT_SECRET)")
	}
	return &c
}
