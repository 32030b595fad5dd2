package config

import (
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

func getEnv(key, defaultVal string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value, ok := os.LookupEnv(key); ok {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if v, err := strconv.ParseBool(value); err == nil {
			return v
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvAsStringSlice(key string, defaults []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		parts := strings.Split(value, ",")
		filtered := make([]string, 0, len(parts))
		for _, part := range parts {
			p := strings.TrimSpace(part)
			if p != "" {
				filtered = append(filtered, p)
			}
		}
		if len(filtered) > 0 {
			return filtered
		}
	}
	return defaults
}

// firebirdDSNFromEnv assembles a firebirdsql DSN from the discrete
// FIREBIRD_* variables the ERP installations are configured with. It returns
// "" when no database path is set.
func firebirdDSNFromEnv() string {
	path := getEnv("FIREBIRD_DB_PATH", "")
	if path == "" {
		return ""
	}
	return firebirdDSN(
		getEnv("FIREBIRD_HOST", "localhost"),
		getEnvAsInt("FIREBIRD_PORT", 3050),
		path,
		getEnv("FIREBIRD_USER", "SYSDBA"),
		getEnv("FIREBIRD_PASSWORD", ""),
		getEnv("FIREBIRD_ROLE", ""),
		getEnv("FIREBIRD_AUTH", ""),
	)
}

func firebirdDSN(host string, port int, path, user, password, role, authPlugin string) string {
	var b strings.Builder
	b.WriteString(url.UserPassword(user, password).String())
	b.WriteByte('@')
	b.WriteString(net.JoinHostPort(host, strconv.Itoa(port)))
	if !strings.HasPrefix(path, "/") {
		b.WriteByte('/')
	}
	b.WriteString(path)

	params := url.Values{}
	if role != "" {
		params.Set("role", role)
	}
	if authPlugin != "" {
		params.Set("auth_plugin_name", authPlugin)
	}
	if len(params) > 0 {
		b.WriteByte('?')
		b.WriteString(params.Encode())
	}
	return b.String()
}
