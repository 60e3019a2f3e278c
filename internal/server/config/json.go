package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/pilosopo/internal/flagx"
	"github.com/dmitrijs2005/pilosopo/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Duration fields
// accept both "5s" strings and integer nanoseconds.
type JsonConfig struct {
	EndpointAddrHTTP        string          `json:"endpoint_addr_http"`
	EndpointAddrGRPC        string          `json:"endpoint_addr_grpc"`
	Environment             string          `json:"environment"`
	LogBackend              string          `json:"log_backend"`
	CORSOrigins             []string        `json:"cors_origins"`
	FirebaseAPIKey          string          `json:"firebase_api_key"`
	FirebaseCredentialsJSON string          `json:"firebase_credentials_json"`
	FirebaseCredentialsFile string          `json:"firebase_credentials_file"`
	AllowExistenceFallback  *bool           `json:"allow_existence_fallback"`
	DatabaseDSN             string          `json:"database_dsn"`
	ConnectRetryDelay       *timex.Duration `json:"connect_retry_delay"`
	HealthCheckInterval     *timex.Duration `json:"health_check_interval"`
	SurrealDBURL            string          `json:"surrealdb_url"`
	SurrealDBNamespace      string          `json:"surrealdb_namespace"`
	SurrealDBDatabase       string          `json:"surrealdb_database"`
	SurrealDBUser           string          `json:"surrealdb_user"`
	SurrealDBPassword       string          `json:"surrealdb_password"`
	S3RootUser              string          `json:"s3_root_user"`
	S3RootPassword          string          `json:"s3_root_password"`
	S3Bucket                string          `json:"s3_bucket"`
	S3Region                string          `json:"s3_region"`
	S3BaseEndpoint          string          `json:"s3_base_endpoint"`
}

// parseJson loads the file named by -c/-config (if any) into config. Keys
// absent from the file leave the current value untouched. A file that cannot
// be read or parsed panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.Environment, c.Environment)
	setString(&config.LogBackend, c.LogBackend)
	if len(c.CORSOrigins) > 0 {
		config.CORSOrigins = c.CORSOrigins
	}
	setString(&config.FirebaseAPIKey, c.FirebaseAPIKey)
	setString(&config.FirebaseCredentialsJSON, c.FirebaseCredentialsJSON)
	setString(&config.FirebaseCredentialsFile, c.FirebaseCredentialsFile)
	if c.AllowExistenceFallback != nil {
		config.AllowExistenceFallback = *c.AllowExistenceFallback
	}
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	if c.ConnectRetryDelay != nil {
		config.ConnectRetryDelay = c.ConnectRetryDelay.Duration
	}
	if c.HealthCheckInterval != nil {
		config.HealthCheckInterval = c.HealthCheckInterval.Duration
	}
	setString(&config.SurrealDBURL, c.SurrealDBURL)
	setString(&config.SurrealDBNamespace, c.SurrealDBNamespace)
	setString(&config.SurrealDBDatabase, c.SurrealDBDatabase)
	setString(&config.SurrealDBUser, c.SurrealDBUser)
	setString(&config.SurrealDBPassword, c.SurrealDBPassword)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
