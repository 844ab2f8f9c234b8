// Package config resolves the export configuration from the environment.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvAPIToken       = "UPMIND_API_TOKEN"
	EnvAPIURL         = "UPMIND_API_URL"
	EnvOwnerID        = "CRM_OWNER_ID"
	EnvOrganizationID = "CRM_ORGANIZATION_ID"
	EnvStatus         = "CRM_STATUS"
	EnvClientType     = "CRM_CLIENT_TYPE"
	EnvOutputPath     = "OUTPUT_PATH"
	EnvUserAgent      = "USER_AGENT"
	EnvLogLevel       = "LOG_LEVEL"
	EnvLogPretty      = "LOG_PRETTY"
	EnvRedisURL       = "REDIS_URL"
	EnvMetricsFile    = "METRICS_TEXTFILE"
)

// Defaults.
const (
	DefaultAPIURL     = "https://api.upmind.com/clients"
	DefaultStatus     = "active"
	DefaultClientType = "customer"
	DefaultOutputPath = "upmind_clients_import.csv"
	DefaultUserAgent  = "upmind-client-export/0.1.0"
	DefaultLogLevel   = "info"
)

// ErrMissingToken is returned when no API token is configured.
var ErrMissingToken = errors.New("missing " + EnvAPIToken + " env var")

// Config is the export configuration. It is resolved once at startup.
type Config struct {
	// APIToken is the bearer credential. Never log it.
	APIToken string

	// APIURL is the first page of the client listing.
	APIURL string

	// Constant CSV columns.
	OwnerID        string
	OrganizationID string
	Status         string
	ClientType     string

	// OutputPath is the CSV destination.
	OutputPath string

	UserAgent string
	LogLevel  string
	LogPretty bool

	// RedisURL enables the run lock and last-run summary when set.
	RedisURL string

	// MetricsFile receives a Prometheus text dump at exit when set.
	MetricsFile string
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, file := range files {
		if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return err
		}
	}
	return nil
}

// Load resolves the configuration from the process environment.
func Load() (Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom resolves the configuration using lookup for each key.
func LoadFrom(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, defaultValue string) string {
		if value, ok := lookup(key); ok && value != "" {
			return value
		}
		return defaultValue
	}

	token := get(EnvAPIToken, "")
	if token == "" {
		return Config{}, ErrMissingToken
	}

	pretty, err := strconv.ParseBool(get(EnvLogPretty, "false"))
	if err != nil {
		pretty = false
	}

	return Config{
		APIToken:       token,
		APIURL:         get(EnvAPIURL, DefaultAPIURL),
		OwnerID:        strings.TrimSpace(get(EnvOwnerID, "")),
		OrganizationID: strings.TrimSpace(get(EnvOrganizationID, "")),
		Status:         strings.TrimSpace(get(EnvStatus, DefaultStatus)),
		ClientType:     strings.TrimSpace(get(EnvClientType, DefaultClientType)),
		OutputPath:     get(EnvOutputPath, DefaultOutputPath),
		UserAgent:      get(EnvUserAgent, DefaultUserAgent),
		LogLevel:       get(EnvLogLevel, DefaultLogLevel),
		LogPretty:      pretty,
		RedisURL:       get(EnvRedisURL, ""),
		MetricsFile:    get(EnvMetricsFile, ""),
	}, nil
}
