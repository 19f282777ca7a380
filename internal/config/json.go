package config

import (
	"encoding/json"
	"os"

	"github.com/sapatrack/sapatrack/internal/flagx"
	"github.com/sapatrack/sapatrack/internal/timex"
)

// JsonConfig is the JSON-file shape of Config. Interval fields accept both
// duration strings ("45s") and integer nanoseconds via timex.Duration. It is
// an intermediate DTO; values are copied into the runtime Config after
// unmarshalling.
type JsonConfig struct {
	UserID             string         `json:"user_id"`
	LocalDBPath        string         `json:"local_db_path"`
	RemoteBackend      string         `json:"remote_backend"`
	FirestoreProjectID string         `json:"firestore_project_id"`
	PostgresDSN        string         `json:"postgres_dsn"`
	SyncInterval       timex.Duration `json:"sync_interval"`
	SuppressionTTL     timex.Duration `json:"suppression_ttl"`
	CacheQuotaBytes    int64          `json:"cache_quota_bytes"`
	S3Bucket           string         `json:"s3_bucket"`
	S3Region           string         `json:"s3_region"`
	S3BaseEndpoint     string         `json:"s3_base_endpoint"`
	S3AccessKey        string         `json:"s3_access_key"`
	S3SecretKey        string         `json:"s3_secret_key"`
	LogBackend         string         `json:"log_backend"`
}

// parseJson loads configuration from the JSON file named by the -c/-config
// flags, if any. Missing flag means no JSON overlay. An unreadable or
// invalid file panics: a config file that exists but cannot be parsed is a
// deployment error, not a runtime condition.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
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

	if c.UserID != "" {
		config.UserID = c.UserID
	}
	if c.LocalDBPath != "" {
		config.LocalDBPath = c.LocalDBPath
	}
	if c.RemoteBackend != "" {
		config.RemoteBackend = c.RemoteBackend
	}
	if c.FirestoreProjectID != "" {
		config.FirestoreProjectID = c.FirestoreProjectID
	}
	if c.PostgresDSN != "" {
		config.PostgresDSN = c.PostgresDSN
	}
	if c.SyncInterval.Duration != 0 {
		config.SyncInterval = c.SyncInterval.Duration
	}
	if c.SuppressionTTL.Duration != 0 {
		config.SuppressionTTL = c.SuppressionTTL.Duration
	}
	if c.CacheQuotaBytes != 0 {
		config.CacheQuotaBytes = c.CacheQuotaBytes
	}
	if c.S3Bucket != "" {
		config.S3Bucket = c.S3Bucket
	}
	if c.S3Region != "" {
		config.S3Region = c.S3Region
	}
	if c.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = c.S3BaseEndpoint
	}
	if c.S3AccessKey != "" {
		config.S3AccessKey = c.S3AccessKey
	}
	if c.S3SecretKey != "" {
		config.S3SecretKey = c.S3SecretKey
	}
	if c.LogBackend != "" {
		config.LogBackend = c.LogBackend
	}
}
