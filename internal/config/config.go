package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all run settings, populated from environment variables.
type Config struct {
	// Input and output files.
	StatsWorkbookPath  string
	StatsDose1Sheet    string
	StatsDose2Sheet    string
	PopulationCSVPath  string
	InspectionsXMLPath string
	OutputPath         string

	// RegionPrefix restricts the run to regions whose code starts with it.
	RegionPrefix string

	// Reverse geocoding configuration.
	GeocoderURL         string
	GeocoderUserAgent   string
	GeocoderTimeout     time.Duration
	GeocoderMinInterval time.Duration
	GeocoderMaxRetries  int
	GeocoderErrorWait   time.Duration
	GeocoderCacheSize   int
	GeocoderCachePath   string

	ProgressInterval int

	KafkaBrokers   []string
	KafkaSinkTopic string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	geocoderTimeout, err := parsePositiveDuration("GEOCODER_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	minInterval, err := parsePositiveDuration("GEOCODER_MIN_INTERVAL", "1s")
	if err != nil {
		return nil, err
	}
	errorWait, err := parseNonNegativeDuration("GEOCODER_ERROR_WAIT", "5s")
	if err != nil {
		return nil, err
	}
	maxRetries, err := parseInt("GEOCODER_MAX_RETRIES", 5, 0)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseInt("GEOCODER_CACHE_SIZE", 4096, 1)
	if err != nil {
		return nil, err
	}
	progressInterval, err := parseInt("PROGRESS_INTERVAL", 250, 1)
	if err != nil {
		return nil, err
	}

	var brokers []string
	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		StatsWorkbookPath:  sharedcfg.EnvOrDefault("STATS_WORKBOOK_PATH", "ICES-COVID19-Vaccination-Data-by-FSA.xlsx"),
		StatsDose1Sheet:    sharedcfg.EnvOrDefault("STATS_DOSE1_SHEET", "At least 1 Dose  by FSA"),
		StatsDose2Sheet:    sharedcfg.EnvOrDefault("STATS_DOSE2_SHEET", "2 doses by FSA"),
		PopulationCSVPath:  sharedcfg.EnvOrDefault("POPULATION_CSV_PATH", "T120120211212055123.csv"),
		InspectionsXMLPath: sharedcfg.EnvOrDefault("INSPECTIONS_XML_PATH", "ds.xml"),
		OutputPath:         sharedcfg.EnvOrDefault("OUTPUT_PATH", "cleaned_data.csv"),
		RegionPrefix:       strings.ToUpper(envOrDefaultAllowEmpty("REGION_PREFIX", "M")),

		GeocoderURL:         strings.TrimRight(sharedcfg.EnvOrDefault("GEOCODER_URL", "https://nominatim.openstreetmap.org"), "/"),
		GeocoderUserAgent:   sharedcfg.EnvOrDefault("GEOCODER_USER_AGENT", "restaurant-covid-analysis"),
		GeocoderTimeout:     geocoderTimeout,
		GeocoderMinInterval: minInterval,
		GeocoderMaxRetries:  maxRetries,
		GeocoderErrorWait:   errorWait,
		GeocoderCacheSize:   cacheSize,
		GeocoderCachePath:   os.Getenv("GEOCODER_CACHE_PATH"),

		ProgressInterval: progressInterval,

		KafkaBrokers:   brokers,
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "region-health-records"),

		HTTPAddr:        envOrDefaultAllowEmpty("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.GeocoderUserAgent == "" {
		return nil, errors.New("GEOCODER_USER_AGENT is required")
	}
	if !strings.HasPrefix(cfg.GeocoderURL, "http://") && !strings.HasPrefix(cfg.GeocoderURL, "https://") {
		return nil, errors.New("GEOCODER_URL must be an http(s) URL")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// KafkaEnabled reports whether finished records should be published to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// envOrDefaultAllowEmpty distinguishes an unset variable from one explicitly
// set to "", which disables the feature it configures.
func envOrDefaultAllowEmpty(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return def
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseNonNegativeDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def, minimum int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minimum {
		return 0, fmt.Errorf("invalid %s: must be an integer >= %d", key, minimum)
	}
	return n, nil
}
