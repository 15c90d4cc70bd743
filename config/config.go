package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"streeteasy_scraper/models"
)

type Config struct {
	Fetch        FetchConfig
	Scraper      ScraperConfig
	Cache        CacheConfig
	Scheduler    SchedulerConfig
	S3           S3Config
	Catalog      *Catalog
	DBPath       string
	DatabaseURL  string
	HTTPAddr     string
	LogLevel     string
	LogPath      string
	CreditBudget int
	SearchesDir  string
	Searches     map[string]*models.SearchPreset
}

type FetchConfig struct {
	Mode       string // scrapingbee | direct
	APIKey     string
	ProxyURL   string
	Timeout    time.Duration
	APITimeout time.Duration
}

type ScraperConfig struct {
	SiteBaseURL   string
	SearchBaseURL string
	PageDelay     time.Duration
	DetailDelay   time.Duration
}

type CacheConfig struct {
	TTL       time.Duration
	RedisAddr string
	RedisDB   int
}

type SchedulerConfig struct {
	Cron string
}

type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	PublicURL string
}

func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != ""
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Fetch: FetchConfig{
			Mode:       getEnv("FETCH_MODE", "scrapingbee"),
			APIKey:     os.Getenv("SCRAPINGBEE_API_KEY"),
			ProxyURL:   os.Getenv("PROXY_URL"),
			Timeout:    getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
			APITimeout: getEnvDuration("SCRAPINGBEE_TIMEOUT", 90*time.Second),
		},
		Scraper: ScraperConfig{
			SiteBaseURL:   getEnv("SITE_BASE_URL", "https://streeteasy.com"),
			SearchBaseURL: getEnv("SEARCH_BASE_URL", "https://streeteasy.com/for-sale/nyc"),
			PageDelay:     time.Duration(getEnvInt("PAGE_DELAY_MS", 2000)) * time.Millisecond,
			DetailDelay:   time.Duration(getEnvInt("DETAIL_DELAY_MS", 1000)) * time.Millisecond,
		},
		Cache: CacheConfig{
			TTL:       getEnvDuration("CACHE_TTL", 24*time.Hour),
			RedisAddr: os.Getenv("REDIS_ADDR"),
			RedisDB:   getEnvInt("REDIS_DB", 0),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SCRAPE_CRON"),
		},
		S3: S3Config{
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			Bucket:    os.Getenv("S3_BUCKET"),
			Region:    getEnv("S3_REGION", "us-east-1"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			PublicURL: os.Getenv("S3_PUBLIC_URL"),
		},
		DBPath:       getEnv("DB_PATH", "scraper.db"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogPath:      getEnv("LOG_PATH", "scraper.log"),
		CreditBudget: getEnvInt("CREDIT_BUDGET", 1000),
		SearchesDir:  getEnv("SEARCHES_DIR", "config/searches"),
		Searches:     make(map[string]*models.SearchPreset),
	}

	catalog, err := LoadCatalog(getEnv("CATALOG_PATH", "config/catalog.yaml"))
	if err != nil {
		return nil, err
	}
	cfg.Catalog = catalog

	if err := cfg.loadSearches(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadSearches() error {
	presets, err := LoadSearches(c.SearchesDir)
	if err != nil {
		return err
	}
	for _, p := range presets {
		c.Searches[p.ID] = p
	}
	return nil
}

// LoadSearches reads every preset file in dir. A missing dir is not an error.
func LoadSearches(dir string) ([]*models.SearchPreset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var presets []*models.SearchPreset
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		var preset models.SearchPreset
		if err := yaml.Unmarshal(data, &preset); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if preset.ID == "" {
			preset.ID = entry.Name()[:len(entry.Name())-len(ext)]
		}
		presets = append(presets, &preset)
	}

	sort.Slice(presets, func(i, j int) bool { return presets[i].ID < presets[j].ID })
	return presets, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
