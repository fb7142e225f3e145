// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/redactor/internal/cloud"
	"github.com/jeranaias/redactor/internal/jurisdiction"
	"github.com/jeranaias/redactor/internal/logging"
	"github.com/jeranaias/redactor/internal/ollama"
	"github.com/jeranaias/redactor/internal/sanitize"
	"github.com/jeranaias/redactor/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete redactor configuration.
type Config struct {
	// Local (Ollama) backend used for screening, redaction and risk
	Local LocalConfig `toml:"local" json:"local"`

	// Remote (OpenAI-compatible) endpoint used for summary and leak audit
	Remote RemoteConfig `toml:"remote" json:"remote"`

	// Session defaults
	Session SessionConfig `toml:"session" json:"session"`

	// Report output
	Output OutputConfig `toml:"output" json:"output"`

	// Session history database
	Storage StorageConfig `toml:"storage" json:"storage"`

	// Logging
	Logging LoggingConfig `toml:"logging" json:"logging"`

	// HTTP server for `redactor serve`
	Server ServerConfig `toml:"server" json:"server"`
}

// LocalConfig contains local Ollama configuration.
type LocalConfig struct {
	// OllamaURL is the URL of the Ollama server
	OllamaURL string `toml:"ollama_url" json:"ollama_url"`
	// Model is the model name used for every local call
	Model string `toml:"model" json:"model"`
	// ChunkLimit is the per-chunk character budget for redaction
	ChunkLimit int `toml:"chunk_limit" json:"chunk_limit"`
	// NumCtx is the context window requested per chunk
	NumCtx int `toml:"num_ctx" json:"num_ctx"`
	// Temperature for redaction calls
	Temperature float64 `toml:"temperature" json:"temperature"`
	// ProbeTimeoutSecs bounds the reachability check
	ProbeTimeoutSecs int `toml:"probe_timeout_secs" json:"probe_timeout_secs"`
	// GenerateTimeoutSecs bounds one generate call (0 = unbounded)
	GenerateTimeoutSecs int `toml:"generate_timeout_secs" json:"generate_timeout_secs"`
}

// RemoteConfig contains the remote analysis endpoint configuration.
type RemoteConfig struct {
	BaseURL            string  `toml:"base_url" json:"base_url"`
	APIKey             string  `toml:"api_key" json:"api_key"`
	SummaryModel       string  `toml:"summary_model" json:"summary_model"`
	AuditModel         string  `toml:"audit_model" json:"audit_model"`
	SummaryTemperature float64 `toml:"summary_temperature" json:"summary_temperature"`
	MaxRetries         int     `toml:"max_retries" json:"max_retries"`
	TimeoutSecs        int     `toml:"timeout_secs" json:"timeout_secs"`
}

// SessionConfig contains per-session defaults.
type SessionConfig struct {
	// DefaultJurisdiction is used when screening does not suggest one
	DefaultJurisdiction string `toml:"default_jurisdiction" json:"default_jurisdiction"`
	// DefaultContext is the context description used when none is given
	DefaultContext string `toml:"default_context" json:"default_context"`
	// LocalOnly blocks every remote call
	LocalOnly bool `toml:"local_only" json:"local_only"`
}

// OutputConfig controls where and how reports are written.
type OutputConfig struct {
	Dir          string `toml:"dir" json:"dir"`
	ReportFormat string `toml:"report_format" json:"report_format"`
}

// StorageConfig controls the session history database.
type StorageConfig struct {
	HistoryEnabled bool   `toml:"history_enabled" json:"history_enabled"`
	HistoryPath    string `toml:"history_path" json:"history_path"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level string `toml:"level" json:"level"`
	JSON  bool   `toml:"json" json:"json"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Addr           string `toml:"addr" json:"addr"`
	MaxUploadBytes int64  `toml:"max_upload_bytes" json:"max_upload_bytes"`
	// RateLimit is requests per second across the server (0 = unlimited)
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"`
	RateBurst int     `toml:"rate_burst" json:"rate_burst"`
}

// validReportFormats mirrors the export package's formats.
var validReportFormats = []string{"pdf", "txt", "md", "html", "json"}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Local: LocalConfig{
			OllamaURL:           ollama.DefaultBaseURL,
			Model:               ollama.DefaultModel,
			ChunkLimit:          12000,
			NumCtx:              32768,
			Temperature:         0.1,
			ProbeTimeoutSecs:    2,
			GenerateTimeoutSecs: 0, // unbounded; big chunks on CPU take minutes
		},

		Remote: RemoteConfig{
			BaseURL:            cloud.DefaultBaseURL,
			SummaryModel:       cloud.DefaultSummaryModel,
			AuditModel:         cloud.DefaultAuditModel,
			SummaryTemperature: cloud.DefaultSummaryTemperature,
			MaxRetries:         cloud.DefaultMaxRetries,
			TimeoutSecs:        120,
		},

		Session: SessionConfig{
			DefaultJurisdiction: jurisdiction.DefaultID,
			DefaultContext:      jurisdiction.DefaultContext,
		},

		Output: OutputConfig{
			Dir:          ".",
			ReportFormat: "pdf",
		},

		Storage: StorageConfig{
			HistoryEnabled: true,
		},

		Logging: LoggingConfig{
			Level: "info",
		},

		Server: ServerConfig{
			Addr:           "127.0.0.1:8000",
			MaxUploadBytes: 5 << 20,
			RateLimit:      2,
			RateBurst:      4,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the redactor configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".redactor"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ensureSecurePermissions tightens a config file to 0600; it may hold an API key.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from ~/.redactor. TOML is tried first, then
// JSON, then built-in defaults. A .env file in the working directory is
// read next (existing variables win), then REDACTOR_* overrides apply.
//
// A broken config file does not stop the load: defaults are returned
// together with the load error so callers can warn and carry on.
func Load() (*Config, error) {
	cfg := Default()
	var loadErr error

	loaded := false
	if tomlPath, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
				cfg = Default()
			} else {
				loaded = true
			}
		}
	}

	if !loaded {
		if jsonPath, err := ConfigPathJSON(); err == nil {
			if _, statErr := os.Stat(jsonPath); statErr == nil {
				if err := LoadJSON(cfg, jsonPath); err != nil {
					loadErr = errors.Join(loadErr, fmt.Errorf("failed to load JSON config: %w", err))
					cfg = Default()
				}
			}
		}
	}

	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, loadErr
}

// LoadFromPath loads configuration from a specific file with full
// validation. Files ending in .json are read as JSON, anything else as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(strings.ToLower(path), ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish runs the shared tail of every load: .env, env overrides,
// defaults for zeroed fields and validation.
func finish(cfg *Config) error {
	if err := LoadDotEnv(".env"); err != nil {
		logging.Default().Warn("ignoring .env file", "error", err)
	}
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadDotEnv reads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is
// not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		logging.Default().Warn("could not ensure secure permissions", "path", path, "error", err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		logging.Default().Warn("unknown config keys ignored", "path", path, "keys", strings.Join(keys, ", "))
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		logging.Default().Warn("could not ensure secure permissions", "path", path, "error", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# redactor configuration file\n")
	buf.WriteString("# Generated by redactor - edit with care\n")
	buf.WriteString("#\n")
	buf.WriteString("# remote.api_key may also come from OPENROUTER_API_KEY.\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, buf.Bytes(), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes the configuration as indented JSON with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, data, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns ValidateErrors listing
// every problem, or nil.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Local
	if err := validateHTTPURL(c.Local.OllamaURL); err != nil {
		add("local.ollama_url", "%v", err)
	}
	if strings.TrimSpace(c.Local.Model) == "" {
		add("local.model", "model name is required")
	}
	if c.Local.ChunkLimit < 1000 {
		add("local.chunk_limit", "must be at least 1000, got %d", c.Local.ChunkLimit)
	}
	if c.Local.NumCtx < 2048 {
		add("local.num_ctx", "must be at least 2048, got %d", c.Local.NumCtx)
	}
	if c.Local.Temperature < 0 || c.Local.Temperature > 2 {
		add("local.temperature", "must be between 0 and 2, got %g", c.Local.Temperature)
	}
	if c.Local.ProbeTimeoutSecs < 1 || c.Local.ProbeTimeoutSecs > 60 {
		add("local.probe_timeout_secs", "must be between 1 and 60, got %d", c.Local.ProbeTimeoutSecs)
	}
	if c.Local.GenerateTimeoutSecs < 0 {
		add("local.generate_timeout_secs", "cannot be negative")
	}

	// Remote
	if err := validateHTTPURL(c.Remote.BaseURL); err != nil {
		add("remote.base_url", "%v", err)
	}
	if c.Remote.SummaryTemperature < 0 || c.Remote.SummaryTemperature > 2 {
		add("remote.summary_temperature", "must be between 0 and 2, got %g", c.Remote.SummaryTemperature)
	}
	if c.Remote.MaxRetries < 0 || c.Remote.MaxRetries > 10 {
		add("remote.max_retries", "must be between 0 and 10, got %d", c.Remote.MaxRetries)
	}
	if c.Remote.TimeoutSecs < 1 {
		add("remote.timeout_secs", "must be at least 1, got %d", c.Remote.TimeoutSecs)
	}

	// Session
	if _, ok := jurisdiction.Lookup(c.Session.DefaultJurisdiction); !ok {
		add("session.default_jurisdiction", "unknown jurisdiction '%s', must be one of: %s",
			c.Session.DefaultJurisdiction, strings.Join(jurisdiction.IDs(), ", "))
	}

	// Output
	if !contains(validReportFormats, strings.ToLower(c.Output.ReportFormat)) {
		add("output.report_format", "invalid format '%s', must be one of: %s",
			c.Output.ReportFormat, strings.Join(validReportFormats, ", "))
	}

	// Logging
	if !logging.ValidLevel(c.Logging.Level) {
		add("logging.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}

	// Server
	if c.Server.MaxUploadBytes <= 0 {
		add("server.max_upload_bytes", "must be positive")
	}
	if c.Server.RateLimit < 0 {
		add("server.rate_limit", "cannot be negative")
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		add("server.rate_burst", "must be at least 1 when rate_limit is set")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateHTTPURL(raw string) error {
	if raw == "" {
		return errors.New("URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got '%s'", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("URL has no host")
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// SetDefaults fills zero-valued fields that have no meaningful zero.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Local.OllamaURL == "" {
		c.Local.OllamaURL = d.Local.OllamaURL
	}
	if c.Local.Model == "" {
		c.Local.Model = d.Local.Model
	}
	if c.Local.ChunkLimit == 0 {
		c.Local.ChunkLimit = d.Local.ChunkLimit
	}
	if c.Local.NumCtx == 0 {
		c.Local.NumCtx = d.Local.NumCtx
	}
	if c.Local.ProbeTimeoutSecs == 0 {
		c.Local.ProbeTimeoutSecs = d.Local.ProbeTimeoutSecs
	}

	if c.Remote.BaseURL == "" {
		c.Remote.BaseURL = d.Remote.BaseURL
	}
	if c.Remote.SummaryModel == "" {
		c.Remote.SummaryModel = d.Remote.SummaryModel
	}
	if c.Remote.AuditModel == "" {
		c.Remote.AuditModel = d.Remote.AuditModel
	}
	if c.Remote.TimeoutSecs == 0 {
		c.Remote.TimeoutSecs = d.Remote.TimeoutSecs
	}

	c.Session.DefaultJurisdiction = strings.ToLower(strings.TrimSpace(c.Session.DefaultJurisdiction))
	if c.Session.DefaultJurisdiction == "" {
		c.Session.DefaultJurisdiction = d.Session.DefaultJurisdiction
	}
	if strings.TrimSpace(c.Session.DefaultContext) == "" {
		c.Session.DefaultContext = d.Session.DefaultContext
	}

	if c.Output.Dir == "" {
		c.Output.Dir = d.Output.Dir
	}
	c.Output.ReportFormat = strings.ToLower(strings.TrimPrefix(c.Output.ReportFormat, "."))
	if c.Output.ReportFormat == "" {
		c.Output.ReportFormat = d.Output.ReportFormat
	}

	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}

	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = d.Server.MaxUploadBytes
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - REDACTOR_OLLAMA_URL: overrides local.ollama_url
//   - REDACTOR_MODEL: overrides local.model
//   - REDACTOR_CHUNK_LIMIT: overrides local.chunk_limit
//   - REDACTOR_REMOTE_API_KEY: overrides remote.api_key
//   - OPENROUTER_API_KEY: used for remote.api_key when nothing else set it
//   - REDACTOR_REMOTE_BASE_URL: overrides remote.base_url
//   - REDACTOR_LOCAL_ONLY: "1" or "true" blocks remote calls
//   - REDACTOR_LOG_LEVEL: overrides logging.level
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("REDACTOR_OLLAMA_URL"); v != "" {
		c.Local.OllamaURL = v
	}
	if v := os.Getenv("REDACTOR_MODEL"); v != "" {
		c.Local.Model = v
	}
	if v := os.Getenv("REDACTOR_CHUNK_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Local.ChunkLimit = n
		}
	}

	if c.Remote.APIKey == "" {
		if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
			c.Remote.APIKey = v
		}
	}
	if v := os.Getenv("REDACTOR_REMOTE_API_KEY"); v != "" {
		c.Remote.APIKey = v
	}
	if v := os.Getenv("REDACTOR_REMOTE_BASE_URL"); v != "" {
		c.Remote.BaseURL = v
	}

	if v := os.Getenv("REDACTOR_LOCAL_ONLY"); v != "" {
		c.Session.LocalOnly = parseBool(v)
	}
	if v := os.Getenv("REDACTOR_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes"
}

// =============================================================================
// COMPONENT SETTINGS
// =============================================================================

// OllamaConfig returns the local client settings.
func (c *Config) OllamaConfig() ollama.ClientConfig {
	return ollama.ClientConfig{
		BaseURL:      c.Local.OllamaURL,
		Model:        c.Local.Model,
		Timeout:      time.Duration(c.Local.GenerateTimeoutSecs) * time.Second,
		ProbeTimeout: time.Duration(c.Local.ProbeTimeoutSecs) * time.Second,
	}
}

// SanitizeOptions returns the chunk loop settings.
func (c *Config) SanitizeOptions() sanitize.Options {
	return sanitize.Options{
		ChunkLimit:  c.Local.ChunkLimit,
		Temperature: c.Local.Temperature,
		NumCtx:      c.Local.NumCtx,
	}
}

// CloudConfig returns the remote client settings.
func (c *Config) CloudConfig() cloud.Config {
	cfg := cloud.DefaultConfig()
	cfg.BaseURL = c.Remote.BaseURL
	cfg.APIKey = c.Remote.APIKey
	cfg.SummaryModel = c.Remote.SummaryModel
	cfg.AuditModel = c.Remote.AuditModel
	cfg.SummaryTemperature = c.Remote.SummaryTemperature
	cfg.MaxRetries = c.Remote.MaxRetries
	cfg.Timeout = time.Duration(c.Remote.TimeoutSecs) * time.Second
	return cfg
}

// DefaultJurisdiction returns the configured default jurisdiction.
func (c *Config) DefaultJurisdiction() jurisdiction.Jurisdiction {
	return jurisdiction.Resolve(c.Session.DefaultJurisdiction)
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "local.model").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

// lookup walks key's dot-separated parts down the struct tree.
func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		result.WriteString(strings.ToUpper(part[:1]))
		result.WriteString(strings.ToLower(part[1:]))
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			field.SetBool(parseBool(strVal))
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Kind() != reflect.String && val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"local.ollama_url",
		"local.model",
		"local.chunk_limit",
		"local.num_ctx",
		"local.temperature",
		"local.probe_timeout_secs",
		"local.generate_timeout_secs",
		"remote.base_url",
		"remote.api_key",
		"remote.summary_model",
		"remote.audit_model",
		"remote.summary_temperature",
		"remote.max_retries",
		"remote.timeout_secs",
		"session.default_jurisdiction",
		"session.default_context",
		"session.local_only",
		"output.dir",
		"output.report_format",
		"storage.history_enabled",
		"storage.history_path",
		"logging.level",
		"logging.json",
		"server.addr",
		"server.max_upload_bytes",
		"server.rate_limit",
		"server.rate_burst",
	}
}

// IsSecretKey reports whether a dot-notation key holds a credential.
func IsSecretKey(key string) bool {
	return strings.EqualFold(key, "remote.api_key")
}

// Clone returns a copy of the configuration. Config holds no reference
// types, so a value copy is deep.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns a JSON rendering with the API key redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Remote.APIKey != "" {
		safe.Remote.APIKey = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance, loading it on first
// access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			logging.Default().Warn("config load failed, using defaults", "error", err)
		}
		if cfg == nil {
			cfg = Default()
		}
		globalConfigMu.Lock()
		globalConfig = cfg
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if cfg == nil {
		return err
	}
	globalConfigMu.Lock()
	globalConfig = cfg
	globalConfigMu.Unlock()
	return err
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigOnce.Do(func() {})
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state between tests.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
