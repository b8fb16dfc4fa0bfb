package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Port        string
		Debug       bool
		FrontendURL string
		MediaRoot   string
		BaseURL     string
	}
	DB struct {
		Host     string
		Port     string
		User     string
		Password string
		DBName   string
		SSLMode  string
		Debug    bool
	}
	Redis struct {
		Host     string
		Port     string
		Password string
		DB       int
	}
	Storage struct {
		Backend        string
		MinioEndpoint  string
		MinioAccessKey string
		MinioSecretKey string
		MinioBucket    string
		MinioUseSSL    bool
	}
	Facilities FacilitiesConfig
	Thumbnail  struct {
		MaxWidth  int
		MaxHeight int
		CacheTTL  time.Duration
	}
	RateLimit struct {
		RequestsPerSecond int
		Burst             int
	}
}

// FacilitiesConfig holds per-facility settings keyed the way the optional
// facilities YAML file is.
type FacilitiesConfig struct {
	Enabled []string         `yaml:"enabled"`
	LCO     FacilitySettings `yaml:"LCO"`
}

type FacilitySettings struct {
	PortalURL string `yaml:"portal_url"`
	APIKey    string `yaml:"api_key"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	// App
	cfg.App.Port = getEnv("PORT", "8080")
	cfg.App.Debug = getEnvAsBool("DEBUG", false)
	cfg.App.FrontendURL = getEnv("FRONTEND_URL", "http://localhost:3000")
	cfg.App.MediaRoot = getEnv("MEDIA_ROOT", "./data/media")
	cfg.App.BaseURL = getEnv("BASE_URL", "/api/v1")

	// DB
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", "5432")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.DBName = getEnv("DB_NAME", "tom")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.DB.Debug = cfg.App.Debug

	// Redis
	cfg.Redis.Host = getEnv("REDIS_HOST", "localhost")
	cfg.Redis.Port = getEnv("REDIS_PORT", "6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", 0)

	// Storage
	cfg.Storage.Backend = getEnv("STORAGE_BACKEND", "local")
	cfg.Storage.MinioEndpoint = getEnv("MINIO_ENDPOINT", "localhost:9000")
	cfg.Storage.MinioAccessKey = getEnv("MINIO_ACCESS_KEY", "minio")
	cfg.Storage.MinioSecretKey = getEnv("MINIO_SECRET_KEY", "")
	cfg.Storage.MinioBucket = getEnv("MINIO_BUCKET", "dataproducts")
	cfg.Storage.MinioUseSSL = getEnvAsBool("MINIO_USE_SSL", false)

	// Facilities
	cfg.Facilities.Enabled = getEnvAsList("FACILITIES", []string{"LCO"})
	cfg.Facilities.LCO.PortalURL = getEnv("LCO_PORTAL_URL", "https://observe.lco.global")
	cfg.Facilities.LCO.APIKey = getEnv("LCO_API_KEY", "")

	if path := os.Getenv("FACILITIES_CONFIG"); path != "" {
		if err := loadFacilities(path, &cfg.Facilities); err != nil {
			return nil, err
		}
	}

	// Thumbnail
	cfg.Thumbnail.MaxWidth = getEnvAsInt("THUMBNAIL_MAX_WIDTH", 800)
	cfg.Thumbnail.MaxHeight = getEnvAsInt("THUMBNAIL_MAX_HEIGHT", 800)
	cfg.Thumbnail.CacheTTL = getEnvAsDuration("THUMBNAIL_CACHE_TTL", 24*time.Hour)

	// Rate Limit
	cfg.RateLimit.RequestsPerSecond = getEnvAsInt("RATE_LIMIT_RPS", 10)
	cfg.RateLimit.Burst = getEnvAsInt("RATE_LIMIT_BURST", 20)

	if cfg.Storage.Backend != "local" && cfg.Storage.Backend != "minio" {
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.Storage.Backend)
	}

	return cfg, nil
}

// loadFacilities overlays the YAML file at path onto facilities. Keys absent
// from the file keep their environment values.
func loadFacilities(path string, facilities *FacilitiesConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read facilities config: %w", err)
	}

	var override FacilitiesConfig
	if err := yaml.Unmarshal(data, &override); err != nil {
		return fmt.Errorf("parse facilities config: %w", err)
	}

	if len(override.Enabled) > 0 {
		facilities.Enabled = override.Enabled
	}
	if override.LCO.PortalURL != "" {
		facilities.LCO.PortalURL = override.LCO.PortalURL
	}
	if override.LCO.APIKey != "" {
		facilities.LCO.APIKey = override.LCO.APIKey
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if dur, err := time.ParseDuration(value); err == nil {
			return dur
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
