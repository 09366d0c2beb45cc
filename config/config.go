package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Region identifiers for the two national operations.
const (
	RegionUS = "us"
	RegionCA = "ca"
)

type Config struct {
	Port        string
	Environment string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBNameUS   string
	DBNameCA   string

	// Refresh cadence and cache lifetimes
	BookingsInterval   time.Duration
	OpenOrdersInterval time.Duration
	BookingsCacheTTL   time.Duration
	OpenOrdersCacheTTL time.Duration

	// Source query bound
	QueryTimeout time.Duration

	// Exchange rate resolution
	RateProviderTimeout time.Duration
	FallbackRate        float64

	// Local snapshot history database
	ArchivePath string
}

var AppConfig *Config

// LoadConfig loads environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBNameUS:   getEnv("DB_NAME_US", "pro05"),
		DBNameCA:   getEnv("DB_NAME_CA", "pro06"),

		BookingsInterval:   getEnvDuration("BOOKINGS_INTERVAL", 10*time.Minute),
		OpenOrdersInterval: getEnvDuration("OPEN_ORDERS_INTERVAL", 60*time.Minute),
		BookingsCacheTTL:   getEnvDuration("BOOKINGS_CACHE_TTL", 15*time.Minute),
		OpenOrdersCacheTTL: getEnvDuration("OPEN_ORDERS_CACHE_TTL", 65*time.Minute),

		QueryTimeout: getEnvDuration("QUERY_TIMEOUT", 30*time.Second),

		RateProviderTimeout: getEnvDuration("RATE_PROVIDER_TIMEOUT", 10*time.Second),
		FallbackRate:        getEnvFloat("FALLBACK_CAD_TO_USD", 0.72),

		ArchivePath: getEnv("ARCHIVE_PATH", "data/snapshots.db"),
	}

	AppConfig = config
	return config, nil
}

// Regions returns the configured region identifiers in refresh order.
func (c *Config) Regions() []string {
	return []string{RegionUS, RegionCA}
}

// DBName returns the source database name for a region.
func (c *Config) DBName(region string) string {
	if region == RegionCA {
		return c.DBNameCA
	}
	return c.DBNameUS
}

// InitRegionDB opens a read-only source connection for one region's database.
func InitRegionDB(region string) (*gorm.DB, error) {
	dbname := AppConfig.DBName(region)

	log.Printf("Connecting to %s source database: host=%s port=%s dbname=%s",
		region, maskHost(AppConfig.DBHost), AppConfig.DBPort, dbname)

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=require",
		AppConfig.DBHost,
		AppConfig.DBUser,
		AppConfig.DBPassword,
		dbname,
		AppConfig.DBPort,
	)

	var logLevel logger.LogLevel
	if AppConfig.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Warn
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", region, err)
	}

	// Verify connection with ping
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get %s database handle: %w", region, err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("%s database ping failed: %w", region, err)
	}

	// The sources must only see a handful of queries per hour; keep the pool tiny.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	log.Printf("%s database connection verified", region)
	return db, nil
}

// maskHost masks host for logging, preserving domain structure
func maskHost(host string) string {
	if len(host) <= 3 {
		return "***"
	}
	if len(host) <= 15 {
		return host[:3] + "***"
	}
	return host[:8] + "***" + host[len(host)-10:]
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid duration for %s (%q), using default %v", key, value, defaultValue)
		return defaultValue
	}
	return d
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("Invalid number for %s (%q), using default %v", key, value, defaultValue)
		return defaultValue
	}
	return f
}
