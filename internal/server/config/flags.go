package config

import (
	"flag"
	"fmt"

	"github.com/dmitrijs2005/guildkeeper/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (bootstrap, health, metrics)
//	-g string   gRPC health bind address
//	-s string   gateway login token
//	-b string   credential backend (dynamodb, postgres, sqlite, memory)
//	-t string   credential table name
//	-d string   database DSN for the SQL backends
//	-l string   log level
//
// Arguments are filtered with flagx.FilterArgs first so the -c flag of the
// JSON layer and any flags of other components do not collide.
func parseFlags(config *Config, args []string) error {
	filtered := flagx.FilterArgs(args, []string{"-a", "-g", "-s", "-b", "-t", "-d", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port of the HTTP endpoint")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "address and port of the gRPC health endpoint")
	fs.StringVar(&config.LoginToken, "s", config.LoginToken, "gateway login token")
	fs.StringVar(&config.CredentialBackend, "b", config.CredentialBackend, "credential backend")
	fs.StringVar(&config.CredentialTableName, "t", config.CredentialTableName, "credential table name")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(filtered); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
