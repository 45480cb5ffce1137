// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"time"
	"unicode/utf8"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Data     DataConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// TrustedProxies is a comma-separated list of proxy CIDRs or addresses whose
	// X-Real-IP and X-Forwarded-For headers are honoured
	TrustedProxies ProxyList `env:"TRUSTED_PROXIES"`
}

// SecurityConfig holds settings guarding the mutating API routes.
type SecurityConfig struct {
	// RequireAPIKey enables X-API-Key checks on uploads and selection changes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`

	// UploadsPerMinute limits dataset uploads per client IP; 0 disables (default: 10)
	UploadsPerMinute int `env:"RATE_LIMIT_UPLOAD" default:"10"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`

	// SeqURL is an optional Seq ingestion endpoint; logs are also sent there when set
	SeqURL string `env:"LOG_SEQ_URL" envAlt:"SEQ_URL"`
}

// DataConfig holds dataset loading and export settings.
type DataConfig struct {
	// LegacyPaths are legacy JSON payloads loaded at startup
	LegacyPaths []string `env:"DATA_LEGACY_PATHS"`

	// DelimitedPaths are CSV/TSV files loaded at startup
	DelimitedPaths []string `env:"DATA_DELIMITED_PATHS" envAlt:"DATA_CSV_PATHS"`

	// Delimiter is the field separator for delimited files not ending in .tsv (default: ,)
	Delimiter Delimiter `env:"DATA_DELIMITER" default:","`

	// MaxUploadBytes is the maximum size of a loaded or uploaded payload (default: 100MB)
	MaxUploadBytes int64 `env:"DATA_MAX_UPLOAD_BYTES" default:"104857600"`

	// ExportRowLimit caps the rows of an export; 0 means no limit (default: 0)
	ExportRowLimit int `env:"DATA_EXPORT_ROW_LIMIT" default:"0"`

	// PreviewRows is the number of rows shown on the HTML preview (default: 50)
	PreviewRows int `env:"DATA_PREVIEW_ROWS" default:"50"`

	// RollingWindow is the default window of derived rolling averages (default: 7)
	RollingWindow int `env:"DATA_ROLLING_WINDOW" default:"7"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Delimiter is the field separator of delimited files. DATA_DELIMITER takes
// the character itself, or "tab" (also `\t`) for a tab.
type Delimiter rune

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Delimiter) UnmarshalText(text []byte) error {
	s := string(text)
	if s == "tab" || s == `\t` {
		*d = '\t'
		return nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || size != len(s) {
		return fmt.Errorf("delimiter %q must be a single character", s)
	}
	if !validDelimiter(r) {
		return fmt.Errorf("delimiter %q cannot separate fields", s)
	}
	*d = Delimiter(r)
	return nil
}

// Rune returns the delimiter, defaulting to a comma when unset.
func (d Delimiter) Rune() rune {
	if d == 0 {
		return ','
	}
	return rune(d)
}

func (d Delimiter) String() string {
	if d == '\t' {
		return "tab"
	}
	return string(d.Rune())
}

// validDelimiter mirrors the separators encoding/csv accepts.
func validDelimiter(r rune) bool {
	return r != 0 && r != '"' && r != '\r' && r != '\n' && r != utf8.RuneError && utf8.ValidRune(r)
}

// ProxyList holds trusted proxy prefixes. A single address is stored as a
// full-length prefix.
type ProxyList []netip.Prefix

// UnmarshalText implements encoding.TextUnmarshaler for a comma-separated list.
func (p *ProxyList) UnmarshalText(text []byte) error {
	var out ProxyList
	for _, entry := range splitList(string(text)) {
		prefix, err := parseProxy(entry)
		if err != nil {
			return err
		}
		out = append(out, prefix)
	}
	*p = out
	return nil
}

// MustParseProxies builds a ProxyList from literals and panics on a bad entry.
func MustParseProxies(entries ...string) ProxyList {
	out := make(ProxyList, 0, len(entries))
	for _, e := range entries {
		prefix, err := parseProxy(e)
		if err != nil {
			panic(err)
		}
		out = append(out, prefix)
	}
	return out
}

// Contains reports whether addr belongs to one of the prefixes.
func (p ProxyList) Contains(addr netip.Addr) bool {
	if !addr.IsValid() {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range p {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func parseProxy(s string) (netip.Prefix, error) {
	if prefix, err := netip.ParsePrefix(s); err == nil {
		return prefix.Masked(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("trusted proxy %q is neither a CIDR nor an address", s)
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}
