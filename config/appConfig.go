package config

import (
	"time"
)

// PullConfig: параметры выгрузки образца данных из удалённого источника.
type PullConfig struct {
	Retries          int           `yaml:"retries" validate:"gte=1,lte=10"`
	BaseDelay        time.Duration `yaml:"base_delay" validate:"gte=0"`
	Deadline         time.Duration `yaml:"deadline" validate:"gt=0"`
	ProgressInterval time.Duration `yaml:"progress_interval" validate:"gt=0"`
	SampleLimit      int           `yaml:"sample_limit" validate:"gte=1"`
	UploadDir        string        `yaml:"upload_dir"`
}

// MarketplaceConfig: доступ к API продавца маркетплейса.
// Секреты обычно приходят из окружения (MARKETPLACE_*), а не из файла.
type MarketplaceConfig struct {
	Endpoint          string        `yaml:"endpoint" validate:"omitempty,url"`
	AuthURL           string        `yaml:"auth_url" validate:"omitempty,url"`
	MarketplaceID     string        `yaml:"marketplace_id"`
	SellerID          string        `yaml:"seller_id"`
	ClientID          string        `yaml:"client_id"`
	ClientSecret      string        `yaml:"client_secret"`
	RefreshToken      string        `yaml:"refresh_token"`
	BatchSize         int           `yaml:"batch_size" validate:"gte=1,lte=20"`
	InterCallDelay    time.Duration `yaml:"inter_call_delay" validate:"gte=0"`
	TokenSafetyMargin time.Duration `yaml:"token_safety_margin" validate:"gte=0"`
	RequestTimeout    time.Duration `yaml:"request_timeout" validate:"gt=0"`
}

func (mc *MarketplaceConfig) applyEnv() {
	mc.Endpoint = getEnv("MARKETPLACE_ENDPOINT", mc.Endpoint)
	mc.AuthURL = getEnv("MARKETPLACE_AUTH_URL", mc.AuthURL)
	mc.MarketplaceID = getEnv("MARKETPLACE_ID", mc.MarketplaceID)
	mc.SellerID = getEnv("MARKETPLACE_SELLER_ID", mc.SellerID)
	mc.ClientID = getEnv("MARKETPLACE_CLIENT_ID", mc.ClientID)
	mc.ClientSecret = getEnv("MARKETPLACE_CLIENT_SECRET", mc.ClientSecret)
	mc.RefreshToken = getEnv("MARKETPLACE_REFRESH_TOKEN", mc.RefreshToken)
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}
