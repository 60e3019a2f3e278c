package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// parseEnv overlays config with process environment variables. Only
// variables that are set are applied; malformed booleans and durations panic,
// as a bad config file does.
func parseEnv(config *Config) {
	if port, ok := os.LookupEnv("PORT"); ok && port != "" {
		if !strings.Contains(port, ":") {
			port = ":" + port
		}
		config.EndpointAddrHTTP = port
	}
	envString(&config.EndpointAddrGRPC, "GRPC_ADDR")
	envString(&config.Environment, "NODE_ENV")
	envString(&config.Environment, "APP_ENV")
	envString(&config.LogBackend, "LOG_BACKEND")
	if v, ok := os.LookupEnv("CORS_ORIGINS"); ok && v != "" {
		config.CORSOrigins = splitList(v)
	}

	envString(&config.FirebaseAPIKey, "FIREBASE_API_KEY")
	envString(&config.FirebaseCredentialsJSON, "GOOGLE_SERVICE_KEY")
	envString(&config.FirebaseCredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
	envBool(&config.AllowExistenceFallback, "ALLOW_EXISTENCE_FALLBACK")

	envString(&config.DatabaseDSN, "DATABASE_DSN")
	envDuration(&config.ConnectRetryDelay, "CONNECT_RETRY_DELAY")
	envDuration(&config.HealthCheckInterval, "HEALTH_CHECK_INTERVAL")

	envString(&config.SurrealDBURL, "SURREALDB_URL")
	envString(&config.SurrealDBNamespace, "SURREALDB_NS")
	envString(&config.SurrealDBDatabase, "SURREALDB_DB")
	envString(&config.SurrealDBUser, "SURREALDB_USER")
	envString(&config.SurrealDBPassword, "SURREALDB_PASS")

	envString(&config.S3RootUser, "S3_ROOT_USER")
	envString(&config.S3RootPassword, "S3_ROOT_PASSWORD")
	envString(&config.S3Bucket, "S3_BUCKET")
	envString(&config.S3Region, "S3_REGION")
	envString(&config.S3BaseEndpoint, "S3_BASE_ENDPOINT")
}

func envString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envBool(dst *bool, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		panic(fmt.Errorf("%s: %w", key, err))
	}
	*dst = b
}

func envDuration(dst *time.Duration, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(fmt.Errorf("%s: %w", key, err))
	}
	*dst = d
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
