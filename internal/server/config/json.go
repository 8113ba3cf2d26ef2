package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/chatrelay/internal/flagx"
)

// JsonConfig is an intermediate DTO used only for reading JSON
// configuration files. After unmarshalling, its non-zero fields are copied
// into the runtime Config struct.
type JsonConfig struct {
	EndpointAddr  string `json:"endpoint_addr"`
	DatabaseDSN   string `json:"database_dsn"`
	TLSCertFile   string `json:"tls_cert_file"`
	TLSKeyFile    string `json:"tls_key_file"`
	DiscoveryAddr string `json:"discovery_addr"`
	HistoryLimit  int    `json:"history_limit"`
	KDFIterations int    `json:"kdf_iterations"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c or -config command-line flags; if neither
// is set, no JSON file is loaded. If the file cannot be read or contains
// invalid JSON, the function panics. Zero-valued fields in the file leave
// the corresponding Config fields untouched.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	if c.EndpointAddr != "" {
		config.EndpointAddr = c.EndpointAddr
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.TLSCertFile != "" {
		config.TLSCertFile = c.TLSCertFile
	}
	if c.TLSKeyFile != "" {
		config.TLSKeyFile = c.TLSKeyFile
	}
	if c.DiscoveryAddr != "" {
		config.DiscoveryAddr = c.DiscoveryAddr
	}
	if c.HistoryLimit != 0 {
		config.HistoryLimit = c.HistoryLimit
	}
	if c.KDFIterations != 0 {
		config.KDFIterations = c.KDFIterations
	}
}
