// Package envconfig reads server and CLI settings from MIMIC_* environment
// variables.
package envconfig

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mimic-ml/mimic/internal/tensor"
)

const defaultPort = "11534"

// Host returns the scheme and host of the mimic server. Configurable via
// MIMIC_HOST, default http://127.0.0.1:11534.
func Host() *url.URL {
	port := defaultPort

	s := strings.TrimSpace(Var("MIMIC_HOST"))
	scheme, hostport, ok := strings.Cut(s, "://")
	switch {
	case !ok:
		scheme, hostport = "http", s
	case scheme == "http":
		port = "80"
	case scheme == "https":
		port = "443"
	}

	hostport, path, _ := strings.Cut(hostport, "/")
	host, p, err := net.SplitHostPort(hostport)
	if err != nil {
		host, p = "127.0.0.1", port
		if ip := net.ParseIP(strings.Trim(hostport, "[]")); ip != nil {
			host = ip.String()
		} else if hostport != "" {
			host = hostport
		}
	}

	if n, err := strconv.ParseInt(p, 10, 32); err != nil || n > 65535 || n < 0 {
		slog.Warn("invalid port, using default", "port", p, "default", port)
		p = port
	}

	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, p),
		Path:   path,
	}
}

// KeepAlive returns how long an idle session survives before it is ended.
// Configurable via MIMIC_KEEP_ALIVE as a duration or whole seconds. Negative
// values keep sessions forever. Default 5m.
func KeepAlive() (keepAlive time.Duration) {
	keepAlive = 5 * time.Minute
	if s := Var("MIMIC_KEEP_ALIVE"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			keepAlive = d
		} else if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			keepAlive = time.Duration(n) * time.Second
		}
	}

	if keepAlive < 0 {
		return time.Duration(math.MaxInt64)
	}
	return keepAlive
}

// LogLevel returns the log level. MIMIC_DEBUG=1 enables debug logging and
// MIMIC_DEBUG=2 enables trace logging.
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("MIMIC_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}
	return level
}

// Device returns the device sessions compile for unless a request names one.
// Configurable via MIMIC_DEVICE.
func Device() tensor.Device {
	d, err := tensor.ParseDevice(Var("MIMIC_DEVICE"))
	if err != nil {
		slog.Warn("invalid device, using default", "error", err)
		return tensor.AnyDevice
	}
	return d
}

var (
	// Backend is the execution backend new sessions use.
	Backend = StringWithDefault("MIMIC_BACKEND", "cpu")
	// NumParallel bounds how many batches execute at once across sessions.
	NumParallel = Uint("MIMIC_NUM_PARALLEL", 1)
	// MaxSessions bounds how many sessions the server holds.
	MaxSessions = Uint("MIMIC_MAX_SESSIONS", 16)
)

// Var returns an environment variable stripped of surrounding quotes and
// spaces.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// StringWithDefault returns a getter for key falling back to defaultValue.
func StringWithDefault(key, defaultValue string) func() string {
	return func() string {
		if s := Var(key); s != "" {
			return s
		}
		return defaultValue
	}
}

// Uint returns a getter for a positive integer. Invalid or zero values fall
// back to defaultValue with a warning.
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil || n == 0 {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

// EnvVar describes one setting for help output.
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap returns every setting with its current value.
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"MIMIC_HOST":         {"MIMIC_HOST", Host(), "IP address for the mimic server (default 127.0.0.1:11534)"},
		"MIMIC_DEBUG":        {"MIMIC_DEBUG", LogLevel(), "Show additional debug information (e.g. MIMIC_DEBUG=1)"},
		"MIMIC_BACKEND":      {"MIMIC_BACKEND", Backend(), "Execution backend for new sessions (default cpu)"},
		"MIMIC_DEVICE":       {"MIMIC_DEVICE", Device(), "Device sessions compile for: any, cpu or gpu"},
		"MIMIC_NUM_PARALLEL": {"MIMIC_NUM_PARALLEL", NumParallel(), "Maximum number of batches executing at once"},
		"MIMIC_MAX_SESSIONS": {"MIMIC_MAX_SESSIONS", MaxSessions(), "Maximum number of open sessions"},
		"MIMIC_KEEP_ALIVE":   {"MIMIC_KEEP_ALIVE", KeepAlive(), "How long idle sessions stay open (default \"5m\")"},
	}
}

// Values returns the current settings as strings.
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
