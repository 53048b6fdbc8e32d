// Package config reads application configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// A Config is the application configuration.
type Config struct {
	ListenAddr          string
	SegmentationMethod  string
	LowPointsPath       string
	DTMPath             string
	DTMNoDataFill       *float64
	SourceCRS           string
	VillagesPath        string
	VillageNameProperty string
	HistoryBackend      string
	PointCacheSize      int
	SegmentWorkers      int
	Redis               RedisConfig
	Postgres            PostgresConfig
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Prefix   string
}

// Addr returns the host:port address of the Redis server.
func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DB       string
	SSLMode  string
}

// DSN returns the connection string for lib/pq.
func (c PostgresConfig) DSN() string {
	dsn := "postgres://" + c.User
	if c.Password != "" {
		dsn += ":" + c.Password
	}
	dsn += "@" + c.Host + ":" + c.Port + "/" + c.DB + "?sslmode=" + c.SSLMode
	return dsn
}

// Load loads .env files, if they exist, and then reads the configuration
// from the environment. Variables already set in the environment take
// precedence over .env files.
func Load(envFiles ...string) (*Config, error) {
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", envFile, err)
		}
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup reads the configuration using lookup.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	getenv := func(key, defaultValue string) string {
		if value, ok := lookup(key); ok && value != "" {
			return value
		}
		return defaultValue
	}
	var errs []error
	getint := func(key string, defaultValue int) int {
		value, ok := lookup(key)
		if !ok || value == "" {
			return defaultValue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return defaultValue
		}
		return n
	}

	c := &Config{
		ListenAddr:          getenv("LISTEN_ADDR", ":8080"),
		SegmentationMethod:  getenv("SEGMENTATION_METHOD", "static"),
		LowPointsPath:       getenv("LOW_POINTS_PATH", "output/low_lying_pts.csv"),
		DTMPath:             getenv("DTM_PATH", "data/n12_e077_1arc_v3.tif"),
		SourceCRS:           getenv("SOURCE_CRS", "epsg:4326"),
		VillagesPath:        getenv("VILLAGES_PATH", "data/villages.geojson"),
		VillageNameProperty: getenv("VILLAGE_NAME_PROPERTY", "KGISVill_2"),
		HistoryBackend:      strings.ToLower(getenv("HISTORY_BACKEND", "memory")),
		PointCacheSize:      getint("POINT_CACHE_SIZE", 128),
		SegmentWorkers:      getint("SEGMENT_WORKERS", 1),
		Redis: RedisConfig{
			Host:     getenv("REDIS_HOST", "127.0.0.1"),
			Port:     getenv("REDIS_PORT", "6379"),
			Password: getenv("REDIS_PASS", ""),
			DB:       getint("REDIS_DB", 0),
			Prefix:   getenv("REDIS_PREFIX", "lowlying:"),
		},
		Postgres: PostgresConfig{
			Host:     getenv("PG_HOST", "localhost"),
			Port:     getenv("PG_PORT", "5432"),
			User:     getenv("PG_USER", "postgres"),
			Password: getenv("PG_PASSWORD", ""),
			DB:       getenv("PG_DB", "lowlying"),
			SSLMode:  getenv("PG_SSLMODE", "disable"),
		},
	}
	if value := getenv("DTM_NODATA_FILL", ""); value != "" {
		fill, err := strconv.ParseFloat(value, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("DTM_NODATA_FILL: %w", err))
		} else {
			c.DTMNoDataFill = &fill
		}
	}
	if c.PointCacheSize <= 0 {
		errs = append(errs, fmt.Errorf("POINT_CACHE_SIZE: must be positive, got %d", c.PointCacheSize))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}
