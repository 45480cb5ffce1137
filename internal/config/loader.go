package config

// loader.go fills a Config from the environment.
//
// Every exported field names its variable with an `env` tag and may add an
// `envAlt` fallback variable, a `default`, or `required:"true"`. Values are
// decoded by field type. Types implementing encoding.TextUnmarshaler
// (Delimiter, ProxyList) decode themselves, so a bad delimiter or proxy entry
// fails at load time. All bad variables are reported together.

import (
	"encoding"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var (
	durationType        = reflect.TypeOf(time.Duration(0))
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// lookupFunc resolves an environment variable.
type lookupFunc func(name string) (string, bool)

// Load reads configuration from environment variables, applies defaults and
// validates the result.
func Load() (*Config, error) {
	return load(os.LookupEnv)
}

// MustLoad is Load for main(): it panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

func load(lookup lookupFunc) (*Config, error) {
	cfg := &Config{}

	var errs []error
	eachField(reflect.ValueOf(cfg).Elem(), func(f reflect.StructField, v reflect.Value) {
		if err := loadField(f, v, lookup); err != nil {
			errs = append(errs, err)
		}
	})
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// eachField calls fn for every settable leaf field, descending into section
// structs.
func eachField(v reflect.Value, fn func(reflect.StructField, reflect.Value)) {
	t := v.Type()
	for i := range t.NumField() {
		f, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if f.Type.Kind() == reflect.Struct && !decodesItself(fv) {
			eachField(fv, fn)
			continue
		}
		fn(f, fv)
	}
}

// loadField resolves one tagged field. An empty variable counts as unset.
func loadField(f reflect.StructField, v reflect.Value, lookup lookupFunc) error {
	name := f.Tag.Get("env")
	if name == "" {
		return nil
	}

	raw, source := lookupValue(lookup, name, f.Tag.Get("envAlt"))
	if raw == "" {
		if f.Tag.Get("required") == "true" {
			return fmt.Errorf("required environment variable %s is not set", name)
		}
		raw, source = f.Tag.Get("default"), name
	}
	if raw == "" {
		return nil
	}

	if err := decode(v, raw); err != nil {
		return fmt.Errorf("invalid value for %s=%q: %w", source, raw, err)
	}
	return nil
}

func lookupValue(lookup lookupFunc, names ...string) (value, source string) {
	for _, n := range names {
		if n == "" {
			continue
		}
		if v, ok := lookup(n); ok && v != "" {
			return v, n
		}
	}
	return "", ""
}

func decodesItself(v reflect.Value) bool {
	return v.CanAddr() && v.Addr().Type().Implements(textUnmarshalerType)
}

// decode parses raw into v according to v's type.
func decode(v reflect.Value, raw string) error {
	if decodesItself(v) {
		return v.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(raw))
	}
	if v.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		v.SetInt(int64(d))
		return nil
	}

	switch v.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, v.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		v.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		v.SetBool(b)
	case reflect.Slice:
		parts := splitList(raw)
		out := reflect.MakeSlice(v.Type(), 0, len(parts))
		for _, p := range parts {
			elem := reflect.New(v.Type().Elem()).Elem()
			if err := decode(elem, p); err != nil {
				return fmt.Errorf("item %q: %w", p, err)
			}
			out = reflect.Append(out, elem)
		}
		v.Set(out)
	default:
		return fmt.Errorf("unsupported field type: %s", v.Type())
	}
	return nil
}

// splitList splits a comma-separated value, dropping blank items.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// problems collects validation failures, one per offending variable.
type problems []string

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

// Validate checks the loaded values and reports every failure at once.
func (c *Config) Validate() error {
	var p problems
	c.Server.validate(&p)
	c.Security.validate(&p)
	c.Logging.validate(&p)
	c.Data.validate(&p)

	if len(p) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(p, "\n  - "))
	}
	return nil
}

func (s *ServerConfig) validate(p *problems) {
	if s.Port < 1 || s.Port > 65535 {
		p.addf("SERVER_PORT (%d) must be 1-65535", s.Port)
	}
	for name, d := range map[string]time.Duration{
		"SERVER_READ_TIMEOUT":    s.ReadTimeout,
		"SERVER_WRITE_TIMEOUT":   s.WriteTimeout,
		"SERVER_IDLE_TIMEOUT":    s.IdleTimeout,
		"SERVER_REQUEST_TIMEOUT": s.RequestTimeout,
	} {
		if d < 0 {
			p.addf("%s (%s) must not be negative", name, d)
		}
	}
	if s.ShutdownTimeout <= 0 {
		p.addf("SERVER_SHUTDOWN_TIMEOUT (%s) must be positive", s.ShutdownTimeout)
	}
}

func (s *SecurityConfig) validate(p *problems) {
	if s.RequireAPIKey && len(s.APIKeys) == 0 {
		p.addf("REQUIRE_API_KEY is set but API_KEYS is empty; configure a key or disable auth")
	}
	if s.UploadsPerMinute < 0 {
		p.addf("RATE_LIMIT_UPLOAD (%d) must not be negative", s.UploadsPerMinute)
	}
}

func (l *LoggingConfig) validate(p *problems) {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		p.addf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", l.Level)
	}
	switch strings.ToLower(l.Format) {
	case "text", "json":
	default:
		p.addf("LOG_FORMAT (%q) must be one of: text, json", l.Format)
	}
}

func (d *DataConfig) validate(p *problems) {
	if d.Delimiter != 0 && !validDelimiter(rune(d.Delimiter)) {
		p.addf("DATA_DELIMITER (%q) cannot separate fields", rune(d.Delimiter))
	}
	if d.MaxUploadBytes <= 0 {
		p.addf("DATA_MAX_UPLOAD_BYTES (%d) must be positive", d.MaxUploadBytes)
	}
	if d.ExportRowLimit < 0 {
		p.addf("DATA_EXPORT_ROW_LIMIT (%d) must not be negative", d.ExportRowLimit)
	}
	if d.PreviewRows <= 0 {
		p.addf("DATA_PREVIEW_ROWS (%d) must be positive", d.PreviewRows)
	}
	if d.RollingWindow <= 0 {
		p.addf("DATA_ROLLING_WINDOW (%d) must be positive", d.RollingWindow)
	}
	for _, path := range d.LegacyPaths {
		if !strings.EqualFold(filepath.Ext(path), ".json") {
			p.addf("DATA_LEGACY_PATHS entry %q must be a .json file", path)
		}
	}
	for _, path := range d.DelimitedPaths {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".csv", ".tsv", ".txt":
		default:
			p.addf("DATA_DELIMITED_PATHS entry %q must be a .csv, .tsv or .txt file", path)
		}
	}
}

// String summarizes the config for the startup log. API keys are counted and
// the Seq URL, which may carry an API key, is masked.
func (c *Config) String() string {
	seq := ""
	if c.Logging.SeqURL != "" {
		seq = "[MASKED]"
	}
	return fmt.Sprintf("Config{Server: {Addr: %q, TrustedProxies: %d}, "+
		"Security: {RequireAPIKey: %t, APIKeys: %d, UploadsPerMinute: %d}, "+
		"Data: {Legacy: %d, Delimited: %d, Delimiter: %s, MaxUploadBytes: %d, ExportRowLimit: %d}, "+
		"Logging: {Level: %q, Format: %q, Seq: %q}}",
		c.Server.Addr(), len(c.Server.TrustedProxies),
		c.Security.RequireAPIKey, len(c.Security.APIKeys), c.Security.UploadsPerMinute,
		len(c.Data.LegacyPaths), len(c.Data.DelimitedPaths), c.Data.Delimiter, c.Data.MaxUploadBytes, c.Data.ExportRowLimit,
		c.Logging.Level, c.Logging.Format, seq)
}
