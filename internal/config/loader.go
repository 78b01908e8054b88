package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures environment driven configuration values for the CRM bridge.
type Config struct {
	DBPath         string
	HTTPPort       int
	EspoAPIURL     string
	EspoAPIKey     string
	EspoTimeout    time.Duration
	OrgEmailDomain string
	SearchCacheTTL time.Duration
	SweepInterval  time.Duration
	SyncPageSize   int
	LogLevel       string
	LogFormat      string
}

// DefaultEnvFile is read by Load when no files are named.
const DefaultEnvFile = ".env"

// Load parses configuration values from the process environment, falling
// back to the given dotenv files (DefaultEnvFile when none are named). Files
// that do not exist are ignored and real environment variables always win.
//
// The loader applies defaults for optional fields and reports every missing
// or invalid entry in one error.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{DefaultEnvFile}
	}
	fileValues := make(map[string]string)
	for _, path := range envFiles {
		values, err := godotenv.Read(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("failed to read %s: %w", path, err)
		}
		for k, v := range values {
			if _, seen := fileValues[k]; !seen {
				fileValues[k] = v
			}
		}
	}
	return parse(func(key string) string {
		if value, ok := os.LookupEnv(key); ok {
			return strings.TrimSpace(value)
		}
		return strings.TrimSpace(fileValues[key])
	})
}

func parse(lookup func(string) string) (Config, error) {
	cfg := Config{
		DBPath:         "data/service_data.db",
		HTTPPort:       8080,
		EspoTimeout:    10 * time.Second,
		OrgEmailDomain: "508.dev",
		SearchCacheTTL: 5 * time.Minute,
		SweepInterval:  10 * time.Minute,
		SyncPageSize:   200,
		LogLevel:       "info",
		LogFormat:      "json",
	}

	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 2)

	if path := lookup("CRMBRIDGE_DB_PATH"); path != "" {
		cfg.DBPath = path
	}

	if portValue := lookup("CRMBRIDGE_HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "CRMBRIDGE_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if url := lookup("ESPO_API_URL"); url == "" {
		missing = append(missing, "ESPO_API_URL")
	} else if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		invalid = append(invalid, "ESPO_API_URL")
	} else {
		cfg.EspoAPIURL = strings.TrimRight(url, "/")
	}

	if key := lookup("ESPO_API_KEY"); key == "" {
		missing = append(missing, "ESPO_API_KEY")
	} else {
		cfg.EspoAPIKey = key
	}

	durations := []struct {
		key       string
		into      *time.Duration
		allowZero bool
	}{
		{"ESPO_TIMEOUT", &cfg.EspoTimeout, false},
		{"CRMBRIDGE_SEARCH_CACHE_TTL", &cfg.SearchCacheTTL, false},
		{"CRMBRIDGE_SWEEP_INTERVAL", &cfg.SweepInterval, true},
	}
	for _, d := range durations {
		value := lookup(d.key)
		if value == "" {
			continue
		}
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed < 0 || (parsed == 0 && !d.allowZero) {
			invalid = append(invalid, d.key)
			continue
		}
		*d.into = parsed
	}

	if domain := lookup("CRMBRIDGE_ORG_EMAIL_DOMAIN"); domain != "" {
		cfg.OrgEmailDomain = strings.TrimPrefix(domain, "@")
	}

	if sizeValue := lookup("CRMBRIDGE_SYNC_PAGE_SIZE"); sizeValue != "" {
		size, err := strconv.Atoi(sizeValue)
		if err != nil || size <= 0 {
			invalid = append(invalid, "CRMBRIDGE_SYNC_PAGE_SIZE")
		} else {
			cfg.SyncPageSize = size
		}
	}

	if level := lookup("CRMBRIDGE_LOG_LEVEL"); level != "" {
		switch strings.ToLower(level) {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = strings.ToLower(level)
		default:
			invalid = append(invalid, "CRMBRIDGE_LOG_LEVEL")
		}
	}

	if format := lookup("CRMBRIDGE_LOG_FORMAT"); format != "" {
		switch strings.ToLower(format) {
		case "json", "text":
			cfg.LogFormat = strings.ToLower(format)
		default:
			invalid = append(invalid, "CRMBRIDGE_LOG_FORMAT")
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
