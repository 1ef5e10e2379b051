package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/cmsconsultores/cmsweb/internal/contacts"
	"github.com/cmsconsultores/cmsweb/internal/database"
	"github.com/cmsconsultores/cmsweb/internal/storage"
	pkgconfig "github.com/cmsconsultores/cmsweb/pkg/config"
	"github.com/cmsconsultores/cmsweb/pkg/logger"
)

// EnvPrefix prefixes every environment variable, e.g. CMSWEB_SERVER_PORT.
const EnvPrefix = "CMSWEB_"

// AppConfig holds the service configuration
type AppConfig struct {
	Server  ServerConfig     `mapstructure:"server"`
	Log     logger.Config    `mapstructure:"log"`
	Storage storage.Config   `mapstructure:"storage"`
	DB      database.Config  `mapstructure:"db"`
	Ledger  contacts.Options `mapstructure:"ledger"`
	Auth    AuthConfig       `mapstructure:"auth"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Port       int    `mapstructure:"port"`
	CORSOrigin string `mapstructure:"corsorigin"`
	BodyLimit  int64  `mapstructure:"bodylimit"`
	// RateLimit is requests per minute per client IP on the contact endpoint; 0 disables it.
	RateLimit int `mapstructure:"ratelimit"`
	RateBurst int `mapstructure:"rateburst"`
}

// AuthConfig configures the admin endpoints. With no JWTSecret they are not mounted.
type AuthConfig struct {
	JWTSecret         string        `mapstructure:"jwtsecret"`
	AdminUser         string        `mapstructure:"adminuser"`
	AdminPasswordHash string        `mapstructure:"adminpasswordhash"`
	TokenTTL          time.Duration `mapstructure:"tokenttl"`
}

// Enabled reports whether the admin endpoints can be served.
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != ""
}

// Defaults returns the default value of every key.
func Defaults() map[string]any {
	return map[string]any{
		"server.port":             3001,
		"server.corsorigin":       "*",
		"server.bodylimit":        65536,
		"server.ratelimit":        10,
		"server.rateburst":        5,
		"log.level":               "INFO",
		"log.format":              "json",
		"storage.driver":          storage.DriverMemory,
		"storage.bucket":          "cms-web",
		"storage.usessl":          false,
		"db.host":                 "localhost",
		"db.port":                 5432,
		"db.user":                 "cmsweb",
		"db.name":                 "cmsweb",
		"db.sslmode":              "disable",
		"ledger.key":              contacts.DefaultKey,
		"ledger.strategy":         string(contacts.StrategyList),
		"ledger.maxattempts":      contacts.DefaultMaxAttempts,
		"ledger.quarantineprefix": contacts.DefaultQuarantinePrefix,
		"auth.adminuser":          "admin",
		"auth.tokenttl":           "12h",
	}
}

// Load reads .env and the environment over Defaults and validates the result.
func Load() (*AppConfig, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path.
func LoadFile(envFile string) (*AppConfig, error) {
	var cfg AppConfig
	if err := pkgconfig.LoadFile(envFile, EnvPrefix, &cfg, Defaults()); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Storage.Driver {
	case storage.DriverMemory, storage.DriverMinIO, storage.DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not one of memory, minio, postgres", c.Storage.Driver))
	}
	if c.Storage.Driver == storage.DriverMinIO && c.Storage.Endpoint == "" {
		errs = append(errs, errors.New("storage.endpoint is required for the minio driver"))
	}
	switch c.Ledger.Strategy {
	case contacts.StrategyList, contacts.StrategyGet, contacts.StrategyHead:
	default:
		errs = append(errs, fmt.Errorf("ledger.strategy %q is not one of list, get, head", c.Ledger.Strategy))
	}
	if c.Auth.Enabled() && c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.tokenttl must be positive"))
	}
	return errors.Join(errs...)
}
