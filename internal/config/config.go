package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for a gherkit run. It is populated once at
// process start from defaults, an optional YAML file, GHERKIT_* environment
// variables and command-line flags (in ascending precedence).
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Run       RunConfig       `mapstructure:"run" yaml:"run"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
	Report    ReportConfig    `mapstructure:"report" yaml:"report"`
	Triage    TriageConfig    `mapstructure:"triage" yaml:"triage"`
}

// LoggerConfig controls the console and rotating file logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
	Colors      bool   `mapstructure:"colors" yaml:"colors"`
}

// BrowserConfig selects and tunes the browser engine shared by all scenarios.
type BrowserConfig struct {
	// Engine is "playwright" or "chromedp".
	Engine   string `mapstructure:"engine" yaml:"engine"`
	Headless bool   `mapstructure:"headless" yaml:"headless"`
	// SlowMo inserts a delay before every page action.
	SlowMo time.Duration `mapstructure:"slow_mo" yaml:"slow_mo"`
	// ActionTimeout bounds every element wait and interaction.
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// MaxContexts bounds how many browsing contexts may be open at once.
	MaxContexts    int           `mapstructure:"max_contexts" yaml:"max_contexts"`
	Install        bool          `mapstructure:"install" yaml:"install"`
	InstallTimeout time.Duration `mapstructure:"install_timeout" yaml:"install_timeout"`
	// Args are extra flags passed to the launched browser.
	Args []string `mapstructure:"args" yaml:"args"`
}

// RunConfig controls suite selection and the runner itself.
type RunConfig struct {
	BaseURL         string        `mapstructure:"base_url" yaml:"base_url"`
	Features        []string      `mapstructure:"features" yaml:"features"`
	Tags            string        `mapstructure:"tags" yaml:"tags"`
	Format          string        `mapstructure:"format" yaml:"format"`
	Workers         int           `mapstructure:"workers" yaml:"workers"`
	ScenarioTimeout time.Duration `mapstructure:"scenario_timeout" yaml:"scenario_timeout"`
	StopOnFailure   bool          `mapstructure:"stop_on_failure" yaml:"stop_on_failure"`
	Strict          bool          `mapstructure:"strict" yaml:"strict"`
	Randomize       int64         `mapstructure:"randomize" yaml:"randomize"`
	// Environment names a profile from the profiles file; its base URL and
	// credentials override run.base_url when set.
	Environment  string `mapstructure:"environment" yaml:"environment"`
	ProfilesFile string `mapstructure:"profiles_file" yaml:"profiles_file"`
}

// ArtifactsConfig controls where scenario diagnostics are persisted.
type ArtifactsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
	// Compress writes text trace logs brotli-compressed (.log.br).
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// ReportConfig selects the report sinks for a finished run.
type ReportConfig struct {
	JSONFile    string       `mapstructure:"json_file" yaml:"json_file"`
	JUnitFile   string       `mapstructure:"junit_file" yaml:"junit_file"`
	HTMLFile    string       `mapstructure:"html_file" yaml:"html_file"`
	DatabaseURL string       `mapstructure:"database_url" yaml:"database_url"`
	GitHub      GitHubConfig `mapstructure:"github" yaml:"github"`
}

// GitHubConfig publishes the run outcome as a commit status when Repository
// and Token are set.
type GitHubConfig struct {
	// Repository is "owner/name".
	Repository string `mapstructure:"repository" yaml:"repository"`
	// SHA defaults to the commit recorded in the run metadata.
	SHA     string `mapstructure:"sha" yaml:"sha"`
	Context string `mapstructure:"context" yaml:"context"`
	Token   string `mapstructure:"token" yaml:"token"`
}

// TriageConfig enables Gemini-backed failure notes on report entries.
type TriageConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	Model   string        `mapstructure:"model" yaml:"model"`
	APIKey  string        `mapstructure:"api_key" yaml:"api_key"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SetDefaults installs the default value for every known key on the given
// viper instance. Call before ReadInConfig/Unmarshal so partial config files
// merge over a complete baseline.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "gherkit")
	v.SetDefault("logger.log_file", "gherkit.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors", true)

	v.SetDefault("browser.engine", "playwright")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.slow_mo", "0s")
	v.SetDefault("browser.action_timeout", "10s")
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.max_contexts", 4)
	v.SetDefault("browser.install", true)
	v.SetDefault("browser.install_timeout", "4m")
	v.SetDefault("browser.args", []string{})

	v.SetDefault("run.base_url", "")
	v.SetDefault("run.features", []string{"features"})
	v.SetDefault("run.tags", "")
	v.SetDefault("run.format", "pretty")
	v.SetDefault("run.workers", 1)
	v.SetDefault("run.scenario_timeout", "2m")
	v.SetDefault("run.stop_on_failure", false)
	v.SetDefault("run.strict", false)
	v.SetDefault("run.randomize", 0)
	v.SetDefault("run.environment", "")
	v.SetDefault("run.profiles_file", "environments.yaml")

	v.SetDefault("artifacts.dir", "artifacts")
	v.SetDefault("artifacts.compress", false)

	v.SetDefault("report.json_file", "artifacts/run.json")
	v.SetDefault("report.junit_file", "")
	v.SetDefault("report.html_file", "")
	v.SetDefault("report.database_url", "")
	v.SetDefault("report.github.repository", "")
	v.SetDefault("report.github.sha", "")
	v.SetDefault("report.github.context", "gherkit")

	v.SetDefault("triage.enabled", false)
	v.SetDefault("triage.model", "gemini-2.0-flash")
	v.SetDefault("triage.timeout", "20s")
}

// NewFromViper builds and validates a Config from a viper instance.
func NewFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Secrets are only ever read from the environment.
	v.BindEnv("report.github.token", "GHERKIT_GITHUB_TOKEN")
	v.BindEnv("triage.api_key", "GHERKIT_GEMINI_API_KEY")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.Report.GitHub.Token == "" {
		cfg.Report.GitHub.Token = os.Getenv("GHERKIT_GITHUB_TOKEN")
	}
	if cfg.Triage.APIKey == "" {
		cfg.Triage.APIKey = os.Getenv("GHERKIT_GEMINI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Default returns a validated Config carrying only defaults.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := NewFromViper(v)
	if err != nil {
		// Defaults are maintained together with Validate; a failure here is
		// a programming error.
		panic(fmt.Sprintf("config defaults are invalid: %v", err))
	}
	return cfg
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.Browser.Engine {
	case "playwright", "chromedp":
	default:
		return fmt.Errorf("browser.engine must be %q or %q, got %q", "playwright", "chromedp", c.Browser.Engine)
	}
	if c.Browser.ActionTimeout <= 0 {
		return fmt.Errorf("browser.action_timeout must be a positive duration")
	}
	if c.Browser.MaxContexts <= 0 {
		return fmt.Errorf("browser.max_contexts must be a positive integer")
	}
	if c.Run.Workers <= 0 {
		return fmt.Errorf("run.workers must be a positive integer")
	}
	if c.Run.ScenarioTimeout <= 0 {
		return fmt.Errorf("run.scenario_timeout must be a positive duration")
	}
	if len(c.Run.Features) == 0 {
		return fmt.Errorf("run.features must name at least one feature path")
	}
	if c.Artifacts.Dir == "" {
		return fmt.Errorf("artifacts.dir must not be empty")
	}
	if err := c.Report.GitHub.Validate(); err != nil {
		return fmt.Errorf("report.github configuration invalid: %w", err)
	}
	if c.Triage.Enabled && c.Triage.Model == "" {
		return fmt.Errorf("triage.model is required when triage is enabled")
	}
	return nil
}

// Validate checks the GitHub publication settings.
func (g *GitHubConfig) Validate() error {
	if g.Repository == "" {
		return nil
	}
	parts := strings.Split(g.Repository, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("repository must be in owner/name form, got %q", g.Repository)
	}
	return nil
}

// Owner returns the owner half of Repository. Valid only after Validate.
func (g *GitHubConfig) Owner() string {
	return strings.SplitN(g.Repository, "/", 2)[0]
}

// Name returns the repository half of Repository. Valid only after Validate.
func (g *GitHubConfig) Name() string {
	parts := strings.SplitN(g.Repository, "/", 2)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
