// Package config holds the toml configuration shared by the server and the
// developer console.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"proof_bridge/internal/protocol/envelope"
	"proof_bridge/internal/protocol/router"
	"proof_bridge/internal/utils/log"
	"time"

	"github.com/BurntSushi/toml"
)

const DefaultFile = "config.toml"

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
)

type (
	// Duration is a time.Duration written as "10s" in toml.
	Duration struct {
		time.Duration
	}

	Config struct {
		Path string `toml:"-"`

		Origin    string           `toml:"origin"`
		Server    ServerConfig     `toml:"server"`
		Router    RouterConfig     `toml:"router"`
		Store     StoreConfig      `toml:"store"`
		Redis     RedisConfig      `toml:"redis"`
		Mongo     MongoConfig      `toml:"mongo"`
		Verify    VerifyConfig     `toml:"verify"`
		Resources ResourcesConfig  `toml:"resources"`
		Logger    log.LoggerConfig `toml:"logger"`
	}

	ServerConfig struct {
		// Listen is also the address the console dials.
		Listen string `toml:"listen"`
	}

	RouterConfig struct {
		RequestTimeout Duration `toml:"request_timeout"`
		SweepInterval  Duration `toml:"sweep_interval"`
	}

	StoreConfig struct {
		Backend string `toml:"backend"`
	}

	RedisConfig struct {
		Addr     string `toml:"addr"`
		Password string `toml:"password"`
		DB       int    `toml:"db"`
		Prefix   string `toml:"prefix"`
		// PageChannel, when set, carries the console's page broadcast over
		// redis pub/sub so other processes can join it.
		PageChannel string `toml:"page_channel"`
	}

	MongoConfig struct {
		URI      string `toml:"uri"`
		Database string `toml:"database"`
	}

	VerifyConfig struct {
		URL     string   `toml:"url"`
		Timeout Duration `toml:"timeout"`
	}

	ResourcesConfig struct {
		BaseURL string `toml:"base_url"`
	}
)

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Default returns a config that runs everything locally.
func Default() *Config {
	return &Config{
		Path:   DefaultFile,
		Origin: envelope.DefaultOrigin,
		Server: ServerConfig{Listen: "localhost:9090"},
		Router: RouterConfig{
			RequestTimeout: Duration{router.DefaultRequestTimeout},
			SweepInterval:  Duration{router.DefaultSweepInterval},
		},
		Store: StoreConfig{Backend: BackendMemory},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "proof_bridge:",
		},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "proof_bridge",
		},
		Verify: VerifyConfig{
			URL:     "http://localhost:8080/verify",
			Timeout: Duration{10 * time.Second},
		},
		Resources: ResourcesConfig{BaseURL: "chrome-extension://proof-bridge/"},
		Logger: log.LoggerConfig{
			Environment: "development",
		},
	}
}

// Load reads the file at path on top of the defaults.
func Load(path string) (*Config, error) {
	conf := Default()
	if _, err := toml.DecodeFile(path, conf); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	conf.Path = path
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (conf *Config) Validate() error {
	switch conf.Store.Backend {
	case BackendMemory, BackendRedis, BackendMongo:
	default:
		return fmt.Errorf("config: unknown store backend %q", conf.Store.Backend)
	}
	if conf.Origin == "" {
		return fmt.Errorf("config: origin is empty")
	}
	return nil
}

// Save writes conf to conf.Path.
func (conf *Config) Save() error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(conf); err != nil {
		return err
	}
	if dir := filepath.Dir(conf.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(conf.Path, buf.Bytes(), 0o644)
}

func (conf *Config) RouterConfig() router.Config {
	return router.Config{
		Origin:         conf.Origin,
		RequestTimeout: conf.Router.RequestTimeout.Duration,
		SweepInterval:  conf.Router.SweepInterval.Duration,
	}
}
