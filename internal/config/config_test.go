package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserAgent = "region-etl-test"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ICES-COVID19-Vaccination-Data-by-FSA.xlsx", cfg.StatsWorkbookPath)
	assert.Equal(t, "At least 1 Dose  by FSA", cfg.StatsDose1Sheet)
	assert.Equal(t, "2 doses by FSA", cfg.StatsDose2Sheet)
	assert.Equal(t, "T120120211212055123.csv", cfg.PopulationCSVPath)
	assert.Equal(t, "ds.xml", cfg.InspectionsXMLPath)
	assert.Equal(t, "cleaned_data.csv", cfg.OutputPath)
	assert.Equal(t, "M", cfg.RegionPrefix)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.GeocoderURL)
	assert.Equal(t, "restaurant-covid-analysis", cfg.GeocoderUserAgent)
	assert.Equal(t, 10*time.Second, cfg.GeocoderTimeout)
	assert.Equal(t, time.Second, cfg.GeocoderMinInterval)
	assert.Equal(t, 5, cfg.GeocoderMaxRetries)
	assert.Equal(t, 5*time.Second, cfg.GeocoderErrorWait)
	assert.Equal(t, 4096, cfg.GeocoderCacheSize)
	assert.Empty(t, cfg.GeocoderCachePath)
	assert.Equal(t, 250, cfg.ProgressInterval)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.KafkaEnabled())
	assert.Equal(t, "region-health-records", cfg.KafkaSinkTopic)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("STATS_WORKBOOK_PATH", "/data/ices.xlsx")
	t.Setenv("STATS_DOSE1_SHEET", "Dose 1")
	t.Setenv("STATS_DOSE2_SHEET", "Dose 2")
	t.Setenv("POPULATION_CSV_PATH", "/data/pop.csv")
	t.Setenv("INSPECTIONS_XML_PATH", "/data/dinesafe.xml")
	t.Setenv("OUTPUT_PATH", "/out/table.csv")
	t.Setenv("REGION_PREFIX", "k")
	t.Setenv("GEOCODER_URL", "http://localhost:8088/")
	t.Setenv("GEOCODER_USER_AGENT", testUserAgent)
	t.Setenv("GEOCODER_TIMEOUT", "3s")
	t.Setenv("GEOCODER_MIN_INTERVAL", "250ms")
	t.Setenv("GEOCODER_MAX_RETRIES", "2")
	t.Setenv("GEOCODER_ERROR_WAIT", "0s")
	t.Setenv("GEOCODER_CACHE_SIZE", "10")
	t.Setenv("GEOCODER_CACHE_PATH", "/var/cache/lookups.db")
	t.Setenv("PROGRESS_INTERVAL", "10")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/ices.xlsx", cfg.StatsWorkbookPath)
	assert.Equal(t, "Dose 1", cfg.StatsDose1Sheet)
	assert.Equal(t, "Dose 2", cfg.StatsDose2Sheet)
	assert.Equal(t, "/data/pop.csv", cfg.PopulationCSVPath)
	assert.Equal(t, "/data/dinesafe.xml", cfg.InspectionsXMLPath)
	assert.Equal(t, "/out/table.csv", cfg.OutputPath)
	assert.Equal(t, "K", cfg.RegionPrefix)
	assert.Equal(t, "http://localhost:8088", cfg.GeocoderURL)
	assert.Equal(t, testUserAgent, cfg.GeocoderUserAgent)
	assert.Equal(t, 3*time.Second, cfg.GeocoderTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.GeocoderMinInterval)
	assert.Equal(t, 2, cfg.GeocoderMaxRetries)
	assert.Zero(t, cfg.GeocoderErrorWait)
	assert.Equal(t, 10, cfg.GeocoderCacheSize)
	assert.Equal(t, "/var/cache/lookups.db", cfg.GeocoderCachePath)
	assert.Equal(t, 10, cfg.ProgressInterval)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_EmptyPrefixAndAddrDisable(t *testing.T) {
	t.Setenv("REGION_PREFIX", "")
	t.Setenv("HTTP_ADDR", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.RegionPrefix)
	assert.Empty(t, cfg.HTTPAddr)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidDurations(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"GEOCODER_TIMEOUT", "bad"},
		{"GEOCODER_TIMEOUT", "0s"},
		{"GEOCODER_MIN_INTERVAL", "-1s"},
		{"GEOCODER_MIN_INTERVAL", "0s"},
		{"GEOCODER_ERROR_WAIT", "-5s"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_InvalidIntegers(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"GEOCODER_MAX_RETRIES", "-1"},
		{"GEOCODER_MAX_RETRIES", "many"},
		{"GEOCODER_CACHE_SIZE", "0"},
		{"PROGRESS_INTERVAL", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_ZeroRetriesAllowed(t *testing.T) {
	t.Setenv("GEOCODER_MAX_RETRIES", "0")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Zero(t, cfg.GeocoderMaxRetries)
}

func TestLoad_InvalidGeocoderURL(t *testing.T) {
	t.Setenv("GEOCODER_URL", "nominatim.local")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEOCODER_URL")
}
