package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"

	HasherBcrypt = "bcrypt"
	HasherArgon2 = "argon2"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"3000"`

	StoreDriver   string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL   string `env:"DATABASE_URL"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"goodwe.db"`
	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"goodwe_app"`

	JWTSecret     string `env:"JWT_SECRET,required,notEmpty"`
	JWTIssuer     string `env:"JWT_ISSUER" envDefault:"goodwe-gateway"`
	JWTTTLMinutes int    `env:"JWT_TTL_MINUTES" envDefault:"60"`

	PasswordHasher string `env:"PASSWORD_HASHER" envDefault:"bcrypt"`
	BcryptCost     int    `env:"BCRYPT_COST" envDefault:"10"`

	SEMSBaseURL        string `env:"SEMS_BASE_URL,required,notEmpty"`
	SEMSPortalURL      string `env:"SEMS_PORTAL_URL"`
	SEMSTimeoutSeconds int    `env:"SEMS_TIMEOUT_SECONDS" envDefault:"20"`

	SMTPHost      string `env:"SMTP_HOST"`
	SMTPPort      int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser      string `env:"SMTP_USER"`
	SMTPPass      string `env:"SMTP_PASS"`
	SMTPFrom      string `env:"SMTP_FROM"`
	SMTPFromName  string `env:"SMTP_FROM_NAME"`
	EmailLogCodes bool   `env:"EMAIL_LOG_CODES" envDefault:"false"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate revisa las reglas que dependen de más de una variable.
func (c *Config) Validate() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	c.PasswordHasher = strings.ToLower(strings.TrimSpace(c.PasswordHasher))

	switch c.StoreDriver {
	case StoreDriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	case StoreDriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return errors.New("SQLITE_PATH is required when STORE_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.PasswordHasher {
	case HasherBcrypt, HasherArgon2:
	default:
		return fmt.Errorf("unknown PASSWORD_HASHER %q", c.PasswordHasher)
	}

	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET must not be blank")
	}
	if c.JWTTTLMinutes <= 0 {
		return errors.New("JWT_TTL_MINUTES must be positive")
	}
	if c.SEMSTimeoutSeconds <= 0 {
		return errors.New("SEMS_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

// JWTTTL devuelve la vigencia de los tokens de sesión.
func (c *Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLMinutes) * time.Minute
}

// SEMSTimeout devuelve el timeout de cada llamada al portal.
func (c *Config) SEMSTimeout() time.Duration {
	return time.Duration(c.SEMSTimeoutSeconds) * time.Second
}
