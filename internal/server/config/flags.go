package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/pilosopo/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string     HTTP bind address (e.g., ":5000")
//	-g string     gRPC health bind address (e.g., ":50051")
//	-d string     PostgreSQL DSN
//	-k string     identity provider web API key
//	-l string     log backend: slog | zerolog
//	-r duration   record-store reconnect delay (e.g., "5s")
//	-s string     SurrealDB endpoint URL
//	-b string     S3 dead-letter bucket
//	-e string     S3 base endpoint
//	-f bool       allow the provider-lookup login fallback (write -f=false to disable)
//
// os.Args is filtered with a flagx.Set first so that -c/-config and
// foreign flags do not break parsing.
func parseFlags(config *Config) {
	args := flagx.Set{
		Flags: []string{"-a", "-g", "-d", "-k", "-l", "-r", "-s", "-b", "-e"},
		Bools: []string{"-f"},
	}.Filter(os.Args[1:])

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "gRPC health address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.FirebaseAPIKey, "k", config.FirebaseAPIKey, "identity provider web API key")
	fs.StringVar(&config.LogBackend, "l", config.LogBackend, "log backend (slog|zerolog)")
	fs.DurationVar(&config.ConnectRetryDelay, "r", config.ConnectRetryDelay, "record store reconnect delay")
	fs.StringVar(&config.SurrealDBURL, "s", config.SurrealDBURL, "SurrealDB endpoint URL")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 dead-letter bucket")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.BoolVar(&config.AllowExistenceFallback, "f", config.AllowExistenceFallback, "allow provider-lookup login fallback")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
