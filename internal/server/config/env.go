package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config fields from environment variables, loading a
// .env file first when one is present. Unset variables leave the
// corresponding fields untouched.
func parseEnv(config *Config) {
	// A missing .env file is fine, the process environment still applies.
	_ = godotenv.Load()

	if v, ok := os.LookupEnv("ADDRESS"); ok {
		config.EndpointAddr = v
	}
	if v, ok := os.LookupEnv("DATABASE_DSN"); ok {
		config.DatabaseDSN = v
	}
	if v, ok := os.LookupEnv("TLS_CERT_FILE"); ok {
		config.TLSCertFile = v
	}
	if v, ok := os.LookupEnv("TLS_KEY_FILE"); ok {
		config.TLSKeyFile = v
	}
	if v, ok := os.LookupEnv("DISCOVERY_ADDRESS"); ok {
		config.DiscoveryAddr = v
	}
	if v, ok := os.LookupEnv("HISTORY_LIMIT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			config.HistoryLimit = n
		}
	}
	if v, ok := os.LookupEnv("KDF_ITERATIONS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			config.KDFIterations = n
		}
	}
}
