package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/drmkeeper/internal/flagx"
	"github.com/dmitrijs2005/drmkeeper/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "24h" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files. After unmarshalling, its fields are copied into the
// runtime Config struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddr         string         `json:"endpoint_addr"`
	DatabaseDSN          string         `json:"database_dsn"`
	SecretKey            string         `json:"secret_key"`
	MasterSecret         string         `json:"master_secret"`
	ServerPrivateKeyFile string         `json:"server_private_key_file"`
	LicenseTTL           timex.Duration `json:"license_ttl"`
	MaxDevices           int            `json:"max_devices"`
	PushTimeout          timex.Duration `json:"push_timeout"`
	AccessServiceURL     string         `json:"access_service_url"`
	S3RootUser           string         `json:"s3_root_user"`
	S3RootPassword       string         `json:"s3_root_password"`
	S3Bucket             string         `json:"s3_bucket"`
	S3Region             string         `json:"s3_region"`
	S3BaseEndpoint       string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The JSON file path comes from the -c or -config command-line flags; when
// neither is set, no JSON file is loaded. If the file cannot be read or
// contains invalid JSON, the function panics: a present-but-broken config
// file is a deployment error, not something to silently skip.
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

	config.EndpointAddr = c.EndpointAddr
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.MasterSecret = c.MasterSecret
	config.ServerPrivateKeyFile = c.ServerPrivateKeyFile
	config.LicenseTTL = time.Duration(c.LicenseTTL.Duration)
	config.MaxDevices = c.MaxDevices
	config.PushTimeout = time.Duration(c.PushTimeout.Duration)
	config.AccessServiceURL = c.AccessServiceURL
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
}
