package config

import (
	"flag"
	"os"
	"time"

	"github.com/sapatrack/sapatrack/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-u string   user identifier to sync for
//	-d string   local SQLite database path
//	-m string   remote backend (memory|firestore|postgres)
//	-f string   Firestore project id
//	-n string   Postgres DSN
//	-i int      sync interval, seconds
//	-t int      ingestion suppression TTL, seconds
//	-b string   S3 backup bucket
//	-r string   S3 region
//	-e string   S3 base endpoint (e.g. "http://127.0.0.1:9000/")
//	-a string   S3 access key
//	-s string   S3 secret key
//	-l string   log backend (zerolog|slog)
//
// Args are first filtered with flagx.FilterArgs so that flags owned by other
// components (e.g. -c/-config) are not reported as errors.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-u", "-d", "-m", "-f", "-n", "-i", "-t", "-b", "-r", "-e", "-a", "-s", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.UserID, "u", config.UserID, "user identifier")
	fs.StringVar(&config.LocalDBPath, "d", config.LocalDBPath, "local SQLite database path")
	fs.StringVar(&config.RemoteBackend, "m", config.RemoteBackend, "remote backend (memory|firestore|postgres)")
	fs.StringVar(&config.FirestoreProjectID, "f", config.FirestoreProjectID, "Firestore project id")
	fs.StringVar(&config.PostgresDSN, "n", config.PostgresDSN, "Postgres DSN")

	syncInterval := fs.Int("i", int(config.SyncInterval.Seconds()), "sync interval (in seconds)")
	suppressionTTL := fs.Int("t", int(config.SuppressionTTL.Seconds()), "ingestion suppression TTL (in seconds)")

	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 backup bucket")
	fs.StringVar(&config.S3Region, "r", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3AccessKey, "a", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "s", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.LogBackend, "l", config.LogBackend, "log backend (zerolog|slog)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SyncInterval = time.Duration(*syncInterval) * time.Second
	config.SuppressionTTL = time.Duration(*suppressionTTL) * time.Second
}
