package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"gomarket_mdm/config/values"
)

type AppConfig struct {
	Pull        PullConfig        `yaml:"pull"`
	Marketplace MarketplaceConfig `yaml:"marketplace"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Catalog     values.Catalog    `yaml:"catalog"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Debug       bool              `yaml:"debug"`
}

// Default возвращает конфигурацию по умолчанию: 3 попытки, база 1s, дедлайн 60s.
func Default() *AppConfig {
	return &AppConfig{
		Pull: PullConfig{
			Retries:          3,
			BaseDelay:        time.Second,
			Deadline:         60 * time.Second,
			ProgressInterval: time.Second,
			SampleLimit:      100,
			UploadDir:        "uploads",
		},
		Marketplace: MarketplaceConfig{
			Endpoint:          "https://sellingpartnerapi-na.amazon.com",
			AuthURL:           "https://api.amazon.com/auth/o2/token",
			MarketplaceID:     "ATVPDKIKX0DER",
			BatchSize:         20,
			InterCallDelay:    time.Second,
			TokenSafetyMargin: 60 * time.Second,
			RequestTimeout:    30 * time.Second,
		},
	}
}

// LoadConfig читает YAML поверх значений по умолчанию и применяет переменные окружения.
// Пустой filename: только значения по умолчанию и окружение.
func LoadConfig(filename string) (*AppConfig, error) {
	cfg := Default()

	if filename != "" {
		file, err := os.Open(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to open config %s: %w", filename, err)
		}
		defer file.Close()

		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", filename, err)
		}
	}

	cfg.Postgres.applyEnv()
	cfg.Marketplace.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("config error: %s failed on '%s'", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}
