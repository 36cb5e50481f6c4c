package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// DirName is the name of both the global (~/.intake) and repo (.intake)
// configuration directories.
const DirName = ".intake"

// EnvPrefix prefixes every environment override (INTAKE_API_URL, ...).
const EnvPrefix = "INTAKE_"

// Config holds application configuration.
type Config struct {
	// APIBaseURL is the root of the intake API (participants, relationships, search)
	APIBaseURL string `json:"api_base_url,omitempty" env:"API_URL" validate:"omitempty,url"`

	// RequestTimeoutSeconds bounds every outbound request
	RequestTimeoutSeconds int `json:"request_timeout_seconds,omitempty" env:"REQUEST_TIMEOUT_SECONDS" validate:"gte=1,lte=600"`

	// SearchPageSize is the number of hits requested per search page
	SearchPageSize int `json:"search_page_size,omitempty" env:"SEARCH_PAGE_SIZE" validate:"gte=1,lte=500"`

	// RequestsPerSecond and RequestBurst rate-limit outbound calls. 0 disables limiting.
	RequestsPerSecond float64 `json:"requests_per_second,omitempty" env:"REQUESTS_PER_SECOND" validate:"gte=0"`
	RequestBurst      int     `json:"request_burst,omitempty" env:"REQUEST_BURST" validate:"gte=1"`

	// RelationshipTypes maps relationship type codes to display labels.
	// Codes without a label are displayed as-is.
	RelationshipTypes map[string]string `json:"relationship_types,omitempty" env:"RELATIONSHIP_TYPES"`

	// HistoryScope is the default history-of-involvements scope: "screenings" or "snapshots"
	HistoryScope string `json:"history_scope,omitempty" env:"HISTORY_SCOPE" validate:"omitempty,oneof=screenings snapshots"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty" env:"DB_MAX_OPEN_CONNS" validate:"gte=0"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty" env:"DB_MAX_IDLE_CONNS" validate:"gte=0"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty" env:"DISABLED_TOOLS"`

	// DisabledTypes is a list of tool type prefixes to disable entirely.
	// Known types: "participant", "relationship", "people".
	DisabledTypes []string `json:"disabled_types,omitempty" env:"DISABLED_TYPES"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `json:"log_level,omitempty" env:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn error"`

	// MetricsAddr, when set, serves /metrics on this address during `intake serve`
	MetricsAddr string `json:"metrics_addr,omitempty" env:"METRICS_ADDR" validate:"omitempty,hostname_port"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		RequestTimeoutSeconds: 30,
		SearchPageSize:        25,
		RequestsPerSecond:     10,
		RequestBurst:          5,
		HistoryScope:          "screenings",
		LogLevel:              "info",
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// LoadWithRepo loads configuration from both global (~/.intake) and repo (.intake) directories,
// then applies INTAKE_* environment overrides and validates the result.
// Repo config is found by walking upward from startDir to find the nearest .intake/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	cfg := Merge(Merge(DefaultConfig(), global), repo)
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindRepoConfig walks upward from startDir to find the nearest .intake/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		configPath := filepath.Join(dir, DirName, "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// ApplyEnv overrides cfg with any INTAKE_* environment variables that are set.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and enumerations.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the path is empty or the file doesn't exist.
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated;
// relationship type labels are merged key by key.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.APIBaseURL = firstString(overlay.APIBaseURL, base.APIBaseURL)
	result.HistoryScope = firstString(overlay.HistoryScope, base.HistoryScope)
	result.LogLevel = firstString(overlay.LogLevel, base.LogLevel)
	result.MetricsAddr = firstString(overlay.MetricsAddr, base.MetricsAddr)

	result.RequestTimeoutSeconds = firstInt(overlay.RequestTimeoutSeconds, base.RequestTimeoutSeconds)
	result.SearchPageSize = firstInt(overlay.SearchPageSize, base.SearchPageSize)
	result.RequestBurst = firstInt(overlay.RequestBurst, base.RequestBurst)
	result.DBMaxOpenConns = firstInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = firstInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	result.RequestsPerSecond = overlay.RequestsPerSecond
	if result.RequestsPerSecond == 0 {
		result.RequestsPerSecond = base.RequestsPerSecond
	}

	if len(base.RelationshipTypes)+len(overlay.RelationshipTypes) > 0 {
		result.RelationshipTypes = make(map[string]string, len(base.RelationshipTypes)+len(overlay.RelationshipTypes))
		for k, v := range base.RelationshipTypes {
			result.RelationshipTypes[k] = v
		}
		for k, v := range overlay.RelationshipTypes {
			result.RelationshipTypes[k] = v
		}
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func firstString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

func firstInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
