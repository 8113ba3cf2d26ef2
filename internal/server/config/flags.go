package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/chatrelay/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   TLS bind address (e.g., ":5555")
//	-d string   PostgreSQL DSN
//	-t string   TLS certificate file
//	-k string   TLS key file
//	-m string   UDP discovery multicast address
//	-l int      default history limit
//	-i int      PBKDF2 iteration count
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-t", "-k", "-m", "-l", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.TLSCertFile, "t", config.TLSCertFile, "TLS certificate file")
	fs.StringVar(&config.TLSKeyFile, "k", config.TLSKeyFile, "TLS key file")
	fs.StringVar(&config.DiscoveryAddr, "m", config.DiscoveryAddr, "UDP discovery multicast address")
	fs.IntVar(&config.HistoryLimit, "l", config.HistoryLimit, "default history limit")
	fs.IntVar(&config.KDFIterations, "i", config.KDFIterations, "PBKDF2 iteration count")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
