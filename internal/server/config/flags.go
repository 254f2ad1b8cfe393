package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/drmkeeper/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-m string   master secret for content-key wrapping
//	-k string   path to the server RSA private key (PEM)
//	-l int      license TTL, hours
//	-n int      max devices per user
//	-o string   access-oracle base URL
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. The license
// TTL is accepted as an integer in hours and converted to a time.Duration.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-m", "-k", "-l", "-n", "-o", "-u", "-p", "-b", "-g", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.MasterSecret, "m", config.MasterSecret, "master secret")
	fs.StringVar(&config.ServerPrivateKeyFile, "k", config.ServerPrivateKeyFile, "server private key file (PEM)")

	licenseTTL := fs.Int("l", int(config.LicenseTTL.Hours()), "license_ttl (in hours)")
	fs.IntVar(&config.MaxDevices, "n", config.MaxDevices, "max devices per user")

	fs.StringVar(&config.AccessServiceURL, "o", config.AccessServiceURL, "access oracle base URL")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.LicenseTTL = time.Duration(*licenseTTL) * time.Hour
}
