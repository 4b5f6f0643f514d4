package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/pagecascade/internal/paging"
)

const (
	defaultPort           = "8080"
	defaultRateLimitRPS   = 25.0
	defaultRateLimitBurst = 50
	defaultLogLevel       = "info"
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	Port                 string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int
	LogLevel             string
	Deprecation          string
	Pagination           Pagination
	Entities             map[string]EntityOverrides
}

// Pagination holds the baseline pagination settings applied to the
// process-wide paging.Config at startup.
type Pagination struct {
	DefaultPerPage    int
	MaxPerPage        paging.Optional[int]
	Window            int
	OuterWindow       int
	Left              int
	Right             int
	PageMethodName    string
	ParamName         string
	MaxPages          paging.Optional[int]
	ParamsOnFirstPage bool

	// ParamEnv names an environment variable read on every resolution of the
	// page parameter name. ParamName is used while it is empty.
	ParamEnv string
}

// EntityOverrides holds the overrides of one entity type. A nil field leaves
// the slot untouched; a non-nil limit holding paging.None means "no cap".
type EntityOverrides struct {
	DefaultPerPage *int
	MaxPerPage     *paging.Optional[int]
	MaxPages       *paging.Optional[int]
	// MaxPagesPer is the legacy spelling of MaxPages. It is applied through
	// the deprecated setter so its use is reported.
	MaxPagesPer *paging.Optional[int]
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Port                 string                          `yaml:"port"`
	ShutdownGracePeriod  string                          `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string                          `yaml:"read_header_timeout"`
	WriteTimeout         string                          `yaml:"write_timeout"`
	IdleTimeout          string                          `yaml:"idle_timeout"`
	EnableRequestLogging *bool                           `yaml:"enable_request_logging"`
	LogLevel             string                          `yaml:"log_level"`
	Deprecation          string                          `yaml:"deprecation"`
	RateLimit            yamlRateLimit                   `yaml:"rate_limit"`
	Pagination           yamlPagination                  `yaml:"pagination"`
	Entities             map[string]map[string]yaml.Node `yaml:"entities"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

// yamlPagination represents the pagination section in YAML. The caps are
// kept as raw nodes so that null ("no cap") differs from an absent key.
type yamlPagination struct {
	DefaultPerPage    *int      `yaml:"default_per_page"`
	MaxPerPage        yaml.Node `yaml:"max_per_page"`
	Window            *int      `yaml:"window"`
	OuterWindow       *int      `yaml:"outer_window"`
	Left              *int      `yaml:"left"`
	Right             *int      `yaml:"right"`
	PageMethodName    string    `yaml:"page_method_name"`
	ParamName         string    `yaml:"param_name"`
	ParamEnv          string    `yaml:"param_env"`
	MaxPages          yaml.Node `yaml:"max_pages"`
	ParamsOnFirstPage *bool     `yaml:"params_on_first_page"`
}

// envConfig lists the environment variables understood by Load.
type envConfig struct {
	Port           string        `env:"PORT"`
	RateLimitRPS   *float64      `env:"RATE_LIMIT_RPS"`
	RateLimitBurst *int          `env:"RATE_LIMIT_BURST"`
	LogLevel       string        `env:"LOG_LEVEL"`
	Deprecation    string        `env:"DEPRECATION_BEHAVIOR"`
	Pagination     envPagination `envPrefix:"PAGINATION_"`
}

type envPagination struct {
	DefaultPerPage *int   `env:"DEFAULT_PER_PAGE"`
	MaxPerPage     *int   `env:"MAX_PER_PAGE"`
	MaxPages       *int   `env:"MAX_PAGES"`
	Window         *int   `env:"WINDOW"`
	ParamName      string `env:"PARAM_NAME"`
	ParamEnv       string `env:"PARAM_ENV"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	Port           *string
	RateLimitRPS   *float64
	RateLimitBurst *int
	DefaultPerPage *int
	MaxPerPage     *int
	LogLevel       *string
	Deprecation    *string
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	// Environment variables sit just above the defaults
	if err := applyEnvConfig(&cfg); err != nil {
		return Config{}, err
	}

	// Load from YAML file if specified
	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
	}

	// Apply CLI overrides (highest precedence)
	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	// Validate final configuration
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	base := paging.New()
	return Config{
		Port:                 defaultPort,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		LogLevel:             defaultLogLevel,
		Deprecation:          paging.DeprecationLog.String(),
		Pagination: Pagination{
			DefaultPerPage:    base.DefaultPerPage,
			MaxPerPage:        base.MaxPerPage,
			Window:            base.Window,
			OuterWindow:       base.OuterWindow,
			Left:              base.Left,
			Right:             base.Right,
			PageMethodName:    base.PageMethodName,
			ParamName:         base.PageParameterName(),
			MaxPages:          base.MaxPages,
			ParamsOnFirstPage: base.ParamsOnFirstPage,
		},
		Entities: map[string]EntityOverrides{},
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}

	applyDuration(&cfg.ShutdownGracePeriod, yamlCfg.ShutdownGracePeriod)
	applyDuration(&cfg.ReadHeaderTimeout, yamlCfg.ReadHeaderTimeout)
	applyDuration(&cfg.WriteTimeout, yamlCfg.WriteTimeout)
	applyDuration(&cfg.IdleTimeout, yamlCfg.IdleTimeout)

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}

	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}

	if yamlCfg.Deprecation != "" {
		cfg.Deprecation = yamlCfg.Deprecation
	}

	if rps := yamlCfg.RateLimit.RPS; rps != nil && *rps >= 0 {
		cfg.RateLimitRPS = *rps
	}

	if burst := yamlCfg.RateLimit.Burst; burst != nil && *burst >= 0 {
		cfg.RateLimitBurst = *burst
	}

	if err := applyYAMLPagination(&cfg.Pagination, yamlCfg.Pagination); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}

	names := make([]string, 0, len(yamlCfg.Entities))
	for name := range yamlCfg.Entities {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		entity, err := parseEntityOverrides(yamlCfg.Entities[name])
		if err != nil {
			return fmt.Errorf("entity %q: %w", name, err)
		}
		cfg.Entities[name] = entity
	}

	return nil
}

func applyYAMLPagination(p *Pagination, y yamlPagination) error {
	applyInt(&p.DefaultPerPage, y.DefaultPerPage)
	applyInt(&p.Window, y.Window)
	applyInt(&p.OuterWindow, y.OuterWindow)
	applyInt(&p.Left, y.Left)
	applyInt(&p.Right, y.Right)

	if err := applyLimit(&p.MaxPerPage, y.MaxPerPage); err != nil {
		return fmt.Errorf("max_per_page: %w", err)
	}
	if err := applyLimit(&p.MaxPages, y.MaxPages); err != nil {
		return fmt.Errorf("max_pages: %w", err)
	}
	if y.PageMethodName != "" {
		p.PageMethodName = y.PageMethodName
	}
	if y.ParamName != "" {
		p.ParamName = y.ParamName
	}
	if y.ParamEnv != "" {
		p.ParamEnv = y.ParamEnv
	}
	if y.ParamsOnFirstPage != nil {
		p.ParamsOnFirstPage = *y.ParamsOnFirstPage
	}
	return nil
}

// applyLimit leaves dst alone when the key was absent.
func applyLimit(dst *paging.Optional[int], node yaml.Node) error {
	if node.Kind == 0 {
		return nil
	}
	limit, err := decodeLimit(node)
	if err != nil {
		return err
	}
	*dst = limit
	return nil
}

// parseEntityOverrides decodes one entity section. Keys are read as raw nodes
// so that an explicit null is not confused with an absent key.
func parseEntityOverrides(nodes map[string]yaml.Node) (EntityOverrides, error) {
	var out EntityOverrides
	for key, node := range nodes {
		switch key {
		case "default_per_page":
			if isNull(node) {
				continue
			}
			var v int
			if err := node.Decode(&v); err != nil {
				return EntityOverrides{}, fmt.Errorf("%s: %w", key, err)
			}
			out.DefaultPerPage = &v
		case "max_per_page", "max_pages", "max_pages_per":
			limit, err := decodeLimit(node)
			if err != nil {
				return EntityOverrides{}, fmt.Errorf("%s: %w", key, err)
			}
			switch key {
			case "max_per_page":
				out.MaxPerPage = &limit
			case "max_pages":
				out.MaxPages = &limit
			default:
				out.MaxPagesPer = &limit
			}
		default:
			return EntityOverrides{}, fmt.Errorf("unknown key %q", key)
		}
	}
	return out, nil
}

func decodeLimit(node yaml.Node) (paging.Optional[int], error) {
	if isNull(node) {
		return paging.None[int](), nil
	}
	var v int
	if err := node.Decode(&v); err != nil {
		return paging.Optional[int]{}, err
	}
	return paging.Some(v), nil
}

func isNull(node yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null"
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) error {
	var envCfg envConfig
	if err := env.Parse(&envCfg); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	if port := strings.TrimSpace(envCfg.Port); port != "" {
		cfg.Port = port
	}

	if rps := envCfg.RateLimitRPS; rps != nil && *rps >= 0 {
		cfg.RateLimitRPS = *rps
	}

	if burst := envCfg.RateLimitBurst; burst != nil && *burst >= 0 {
		cfg.RateLimitBurst = *burst
	}

	if level := strings.TrimSpace(envCfg.LogLevel); level != "" {
		cfg.LogLevel = level
	}

	if mode := strings.TrimSpace(envCfg.Deprecation); mode != "" {
		cfg.Deprecation = mode
	}

	p := envCfg.Pagination
	applyInt(&cfg.Pagination.DefaultPerPage, p.DefaultPerPage)
	applyInt(&cfg.Pagination.Window, p.Window)
	if p.MaxPerPage != nil {
		cfg.Pagination.MaxPerPage = paging.Some(*p.MaxPerPage)
	}
	if p.MaxPages != nil {
		cfg.Pagination.MaxPages = paging.Some(*p.MaxPages)
	}
	if name := strings.TrimSpace(p.ParamName); name != "" {
		cfg.Pagination.ParamName = name
	}
	if name := strings.TrimSpace(p.ParamEnv); name != "" {
		cfg.Pagination.ParamEnv = name
	}

	return nil
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}

	applyInt(&cfg.Pagination.DefaultPerPage, overrides.DefaultPerPage)

	if overrides.MaxPerPage != nil {
		cfg.Pagination.MaxPerPage = paging.Some(*overrides.MaxPerPage)
	}

	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}

	if overrides.Deprecation != nil && *overrides.Deprecation != "" {
		cfg.Deprecation = *overrides.Deprecation
	}
}

// validateConfig validates the final configuration. Pagination values are
// passed through as is.
func validateConfig(cfg Config) error {
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	if _, err := paging.ParseDeprecationBehavior(cfg.Deprecation); err != nil {
		return fmt.Errorf("invalid deprecation behavior: %w", err)
	}
	return nil
}

func applyInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func applyDuration(dst *time.Duration, raw string) {
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil {
		*dst = d
	}
}
