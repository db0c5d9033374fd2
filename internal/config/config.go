// config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "STOREFRONT_"

type Config struct {
	Port     string `koanf:"port"`
	LogLevel string `koanf:"log_level"`
	LogFile  string `koanf:"log_file"`

	Mongo struct {
		URI    string `koanf:"uri"`
		DBName string `koanf:"db_name"`
	} `koanf:"mongo"`

	Redis struct {
		Addr     string        `koanf:"addr"`
		Password string        `koanf:"password"`
		CartTTL  time.Duration `koanf:"cart_ttl"`
		IdemTTL  time.Duration `koanf:"idempotency_ttl"`
	} `koanf:"redis"`

	Rabbit struct {
		URL             string `koanf:"url"`
		OrderExchange   string `koanf:"order_exchange"`
		PaymentExchange string `koanf:"payment_exchange"`
		CaptureQueue    string `koanf:"capture_queue"`
	} `koanf:"rabbit"`

	Identity struct {
		URL     string        `koanf:"url"`
		Timeout time.Duration `koanf:"timeout"`
	} `koanf:"identity"`

	Catalog struct {
		URL     string        `koanf:"url"`
		Timeout time.Duration `koanf:"timeout"`
	} `koanf:"catalog"`

	Gateway struct {
		Driver       string        `koanf:"driver"`
		URL          string        `koanf:"url"`
		ClientID     string        `koanf:"client_id"`
		ClientSecret string        `koanf:"client_secret"`
		Timeout      time.Duration `koanf:"timeout"`
		ReturnURL    string        `koanf:"return_url"`
		CancelURL    string        `koanf:"cancel_url"`
	} `koanf:"gateway"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// Load lee .env (si existe), después el YAML opcional indicado por
// STOREFRONT_CONFIG y por último las variables STOREFRONT_*. Las claves
// anidadas usan "__", p. ej. STOREFRONT_MONGO__URI.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(envPrefix, ".", envKeyValue), nil); err != nil {
		return nil, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKeyValue mapea STOREFRONT_MONGO__URI a mongo.uri. Las listas llegan
// separadas por comas.
func envKeyValue(key, value string) (string, any) {
	key = strings.TrimPrefix(key, envPrefix)
	key = strings.ToLower(strings.ReplaceAll(key, "__", "."))
	if _, isList := listKeys[key]; isList {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return key, out
	}
	return key, value
}

var listKeys = map[string]struct{}{
	"cors_origins": {},
}

func (c *Config) applyDefaults() {
	setDefault(&c.Port, "8080")
	setDefault(&c.LogLevel, "info")
	setDefault(&c.LogFile, "./logs/storefront.log")
	setDefault(&c.Mongo.DBName, "storefront")
	setDefault(&c.Redis.Addr, "localhost:6379")
	setDefault(&c.Rabbit.OrderExchange, "storefront.orders")
	setDefault(&c.Rabbit.PaymentExchange, "payment_events")
	setDefault(&c.Rabbit.CaptureQueue, "storefront_payment_captures")
	setDefault(&c.Gateway.Driver, "mock")

	setDefaultDuration(&c.Redis.CartTTL, 15*time.Minute)
	setDefaultDuration(&c.Redis.IdemTTL, 24*time.Hour)
	setDefaultDuration(&c.Identity.Timeout, 5*time.Second)
	setDefaultDuration(&c.Catalog.Timeout, 2*time.Second)
	setDefaultDuration(&c.Gateway.Timeout, 8*time.Second)
}

func (c *Config) Validate() error {
	if c.Mongo.URI == "" {
		return fmt.Errorf("mongo.uri required")
	}
	if c.Identity.URL == "" {
		return fmt.Errorf("identity.url required")
	}
	if c.Catalog.URL == "" {
		return fmt.Errorf("catalog.url required")
	}
	switch c.Gateway.Driver {
	case "mock":
	case "http":
		if c.Gateway.URL == "" || c.Gateway.ClientID == "" || c.Gateway.ClientSecret == "" {
			return fmt.Errorf("gateway.url, gateway.client_id and gateway.client_secret required for http driver")
		}
	default:
		return fmt.Errorf("unknown gateway.driver %q", c.Gateway.Driver)
	}
	return nil
}

func setDefault(v *string, fallback string) {
	if *v == "" {
		*v = fallback
	}
}

func setDefaultDuration(v *time.Duration, fallback time.Duration) {
	if *v <= 0 {
		*v = fallback
	}
}
