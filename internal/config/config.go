package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

var (
	ErrMissingJWTSecret   = errors.New("auth.jwt-secret-key is required")
	ErrGranularityTooFine = errors.New("game-list.ratchet-granularity must not be shorter than game-list.drain-interval")
	ErrLeaseTooShort      = errors.New("game-list.drain-lease must be longer than game-list.drain-interval")
)

type Config struct {
	LogLevel string   `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort string   `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	Redis    Redis    `yaml:"redis"`
	Auth     Auth     `yaml:"auth"`
	GameList GameList `yaml:"game-list"`
	Store    Store    `yaml:"store"`
}

type Redis struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Auth struct {
	JWTSecretKey string        `yaml:"jwt-secret-key" env:"JWT_SECRET_KEY"`
	Issuer       string        `yaml:"issuer" env:"JWT_ISSUER" env-default:"connect4-backend"`
	TokenTTL     time.Duration `yaml:"token-ttl" env:"JWT_TOKEN_TTL" env-default:"24h"`
}

// GameList - pacing of the public game list aggregator.
type GameList struct {
	RatchetGranularity time.Duration `yaml:"ratchet-granularity" env:"GAME_LIST_RATCHET_GRANULARITY" env-default:"10s"`
	DrainInterval      time.Duration `yaml:"drain-interval" env:"GAME_LIST_DRAIN_INTERVAL" env-default:"1s"`
	DrainLease         time.Duration `yaml:"drain-lease" env:"GAME_LIST_DRAIN_LEASE" env-default:"30s"`
}

type Store struct {
	MaxTxRetries int `yaml:"max-tx-retries" env:"STORE_MAX_TX_RETRIES" env-default:"10"`
}

// Load - reads the file at path, applies env overrides and validates the result.
func Load(path string) (*Config, error) {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("unable to load config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

func (that *Config) Validate() error {
	if that.Auth.JWTSecretKey == "" {
		return ErrMissingJWTSecret
	}

	if that.GameList.RatchetGranularity < that.GameList.DrainInterval {
		return ErrGranularityTooFine
	}

	if that.GameList.DrainLease <= that.GameList.DrainInterval {
		return ErrLeaseTooShort
	}

	return nil
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
