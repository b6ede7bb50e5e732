package database

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	sqlmysql "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"

	"learnhub-auth/internal/core/logger"
	"learnhub-auth/internal/domain"
)

var ErrUnsupportedDriver = errors.New("database: unsupported driver")

type Opts struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	LogLevel           string // silent | error | warn | info
	SlowThreshold      time.Duration
	// Logger receives gorm's own output; nil keeps it quiet.
	Logger *zap.Logger
}

func NewGorm(o Opts) (*gorm.DB, error) {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	var dial gorm.Dialector
	switch o.Driver {
	case "postgres":
		dial = postgres.Open(o.DSN)
	case "mysql":
		cfg, err := mysqlConfig(o.DSN, o.Username, o.Password)
		if err != nil {
			return nil, fmt.Errorf("mysql dsn: %w", err)
		}
		o.Logger.Info("mysql dsn normalized", zap.String("dsn", redacted(cfg)))
		dial = mysql.Open(cfg.FormatDSN())
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, o.Driver)
	}

	db, err := gorm.Open(dial, &gorm.Config{
		Logger:         gormLogger(o),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(o.MaxOpenConns)
	sqlDB.SetMaxIdleConns(o.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(o.ConnMaxLifetimeMin) * time.Minute)
	return db.Session(&gorm.Session{
		PrepareStmt: true,
		// Transactions are opened explicitly by the repositories that need them.
		SkipDefaultTransaction: true,
	}), nil
}

func gormLevel(s string) glogger.LogLevel {
	switch strings.ToLower(s) {
	case "silent":
		return glogger.Silent
	case "error":
		return glogger.Error
	case "info":
		return glogger.Info
	default:
		return glogger.Warn
	}
}

// gormLogger routes gorm's printf-style output into zap at warn.
func gormLogger(o Opts) glogger.Interface {
	slow := o.SlowThreshold
	if slow <= 0 {
		slow = 200 * time.Millisecond
	}
	return glogger.New(logger.ToStdLogger(o.Logger.Named("gorm"), zapcore.WarnLevel), glogger.Config{
		SlowThreshold:             slow,
		LogLevel:                  gormLevel(o.LogLevel),
		IgnoreRecordNotFoundError: true,
		ParameterizedQueries:      true,
	})
}

// Models lists every table owned by the identity core, in dependency order.
func Models() []any {
	return []any{
		&domain.User{},
		&domain.Role{},
		&domain.Permission{},
		&domain.UserRole{},
		&domain.RolePermission{},
		&domain.OAuthConnection{},
		&domain.RefreshToken{},
	}
}

func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(Models()...)
}

func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// mysqlConfig accepts a go-sql-driver DSN or a mysql:// (also jdbc:mysql://)
// URL. Explicit user and password win over what the DSN carries, and
// parseTime is always on since the models use time.Time.
func mysqlConfig(raw, user, pass string) (*sqlmysql.Config, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "jdbc:")
	var (
		cfg *sqlmysql.Config
		err error
	)
	if strings.HasPrefix(raw, "mysql://") {
		cfg, err = mysqlConfigFromURL(raw)
	} else {
		cfg, err = sqlmysql.ParseDSN(raw)
	}
	if err != nil {
		return nil, err
	}
	if user != "" {
		cfg.User = user
	}
	if pass != "" {
		cfg.Passwd = pass
	}
	cfg.ParseTime = true
	return cfg, nil
}

// jdbcParams maps connector/J options onto their go-sql-driver names.
var jdbcParams = map[string]string{
	"characterEncoding": "charset",
	"serverTimezone":    "loc",
	"useSSL":            "tls",
}

// unknown to go-sql-driver; passing them on would turn them into SET statements
var jdbcOnly = []string{"useUnicode", "zeroDateTimeBehavior", "autoReconnect"}

func mysqlConfigFromURL(raw string) (*sqlmysql.Config, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	var user, pass string
	if u.User != nil {
		user = u.User.Username()
		pass, _ = u.User.Password()
	}
	if v := q.Get("user"); v != "" {
		user = v
	}
	if v := q.Get("password"); v != "" {
		pass = v
	}
	q.Del("user")
	q.Del("password")

	for from, to := range jdbcParams {
		if v := q.Get(from); v != "" {
			if q.Get(to) == "" {
				q.Set(to, v)
			}
			q.Del(from)
		}
	}
	for _, k := range jdbcOnly {
		q.Del(k)
	}

	native := fmt.Sprintf("tcp(%s)/%s", u.Host, strings.TrimPrefix(u.Path, "/"))
	if enc := q.Encode(); enc != "" {
		native += "?" + enc
	}
	cfg, err := sqlmysql.ParseDSN(native)
	if err != nil {
		return nil, err
	}
	cfg.User, cfg.Passwd = user, pass
	return cfg, nil
}

func redacted(cfg *sqlmysql.Config) string {
	c := cfg.Clone()
	if c.Passwd != "" {
		c.Passwd = "****"
	}
	return c.FormatDSN()
}
