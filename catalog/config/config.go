package config

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/Maruda-Patryk/api-library/pkg/circuit_breaker"
	"github.com/Maruda-Patryk/api-library/pkg/kafka"
	"github.com/Maruda-Patryk/api-library/pkg/logger"
	"github.com/Maruda-Patryk/api-library/pkg/postgres"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type HTTPServer struct {
	Host         string        `yaml:"host" envconfig:"CATALOG_HTTP_HOST" default:"0.0.0.0"`
	Port         string        `yaml:"port" envconfig:"CATALOG_HTTP_PORT" default:"8060"`
	ReadTimeout  time.Duration `yaml:"readTimeout" envconfig:"HTTP_READ" default:"10s"`
	WriteTimeout time.Duration `yaml:"writeTimeout" envconfig:"HTTP_WRITE"`
}

type Catalog struct {
	// LockTimeout bounds a borrow or return, waiting for the book lock included.
	LockTimeout time.Duration `yaml:"lockTimeout" envconfig:"CATALOG_LOCK_TIMEOUT" default:"5s"`
	Storage     string        `yaml:"storage" envconfig:"CATALOG_STORAGE"`
}

type Config struct {
	Server   HTTPServer `yaml:"server"`
	Database postgres.DB
	Kafka    kafka.Config
	Breaker  circuit_breaker.Config
	Catalog  Catalog
	Log      logger.Log `yaml:"log"`
}

func (c Config) Validate() error {
	switch c.Catalog.Storage {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("CATALOG_STORAGE must be %q or %q, got %q", StoragePostgres, StorageMemory, c.Catalog.Storage)
	}
	if c.Catalog.LockTimeout < 0 {
		return fmt.Errorf("CATALOG_LOCK_TIMEOUT must not be negative")
	}
	if c.Kafka.Enabled && len(c.Kafka.Addrs) == 0 {
		return fmt.Errorf("KAFKA_ADDRS is required when kafka is enabled")
	}
	return nil
}

var (
	once sync.Once
	cfg  Config
)

// NewConfig reads config from environment. Options set defaults that the environment overrides.
func NewConfig(ops ...Option) Config {
	once.Do(func() {
		config, err := Load(ops...)
		if err != nil {
			log.Fatal("NewConfig ", err)
		}
		cfg = config
		printConfig(cfg)
	})

	return cfg
}

// Load reads and validates config without caching it.
func Load(ops ...Option) (Config, error) {
	var config Config
	for _, op := range ops {
		op(&config)
	}
	if err := envconfig.Process("", &config); err != nil {
		return Config{}, err
	}
	if config.Catalog.Storage == "" {
		config.Catalog.Storage = StoragePostgres
	}
	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = 10 * time.Second
	}
	return config, config.Validate()
}

func printConfig(cfg Config) {
	jscfg, _ := json.MarshalIndent(cfg, "", "	") //nolint:errcheck
	fmt.Println(string(jscfg))
}
