package config

import (
	"os"
	"strconv"
)

type Config struct {
	OpPath      string
	Output      string
	Concurrency int
	RatePerSec  int
	LogLevel    string
	LogFormat   string
	MetricsFile string

	// Optional S3 publication of the report artifact.
	S3Bucket   string
	S3Region   string
	S3Endpoint string
	S3Prefix   string
}

func Load() *Config {
	return &Config{
		OpPath:      getEnv("OPAUDIT_OP_PATH", "op"),
		Output:      getEnv("OPAUDIT_OUTPUT", "vault_access_report.csv"),
		Concurrency: GetEnvInt("OPAUDIT_CONCURRENCY", 8),
		RatePerSec:  GetEnvInt("OPAUDIT_RATE_PER_SEC", 10),
		LogLevel:    getEnv("OPAUDIT_LOG_LEVEL", "INFO"),
		LogFormat:   getEnv("OPAUDIT_LOG_FORMAT", "text"),
		MetricsFile: getEnv("OPAUDIT_METRICS_FILE", ""),
		S3Bucket:    getEnv("OPAUDIT_S3_BUCKET", ""),
		S3Region:    getEnv("OPAUDIT_S3_REGION", "us-east-1"),
		S3Endpoint:  getEnv("OPAUDIT_S3_ENDPOINT", ""),
		S3Prefix:    getEnv("OPAUDIT_S3_PREFIX", "opaudit"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func GetEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}
