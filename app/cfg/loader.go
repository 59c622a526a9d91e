package cfg

import (
	"cmp"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath     string `long:"db-path" env:"DB_PATH" default:"./data/newshub.db" description:"SQLite database file"`
	SourcesDir string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source configuration files"`

	// Application configuration
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"600" description:"Seconds between scheduled runs"`
	RunOnce           bool   `long:"once" env:"RUN_ONCE" description:"Execute a single run and exit"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Run limits
	RunBudgetMs       int `long:"run-budget-ms" env:"RUN_BUDGET_MS" default:"25000" description:"Wall-clock budget of a single run in milliseconds"`
	LockTTL           int `long:"lock-ttl" env:"LOCK_TTL" default:"300" description:"Run lease time-to-live in seconds"`
	MaxNewItemsPerRun int `long:"max-new-items-per-run" env:"MAX_NEW_ITEMS_PER_RUN" default:"25" description:"Default number of entries read from each source"`
	HTTPTimeout       int `long:"http-timeout" env:"HTTP_TIMEOUT" default:"10" description:"Timeout of a single outbound HTTP call in seconds"`

	// Summary generation
	SummaryTargetMin int    `long:"summary-target-min" env:"SUMMARY_TARGET_MIN" default:"400" description:"Minimum summary body length in characters"`
	SummaryTargetMax int    `long:"summary-target-max" env:"SUMMARY_TARGET_MAX" default:"700" description:"Maximum summary body length in characters"`
	SummaryProviders string `long:"summary-providers" env:"SUMMARY_PROVIDERS" default:"gemini,claude,google_translate,rule_based" description:"Comma-separated provider order"`
	GeminiAPIKey     string `long:"gemini-api-key" env:"GEMINI_API_KEY" description:"Gemini API key"`
	GeminiModel      string `long:"gemini-model" env:"GEMINI_MODEL" default:"gemini-2.0-flash" description:"Gemini model"`
	AnthropicAPIKey  string `long:"anthropic-api-key" env:"ANTHROPIC_API_KEY" description:"Anthropic API key"`
	AnthropicModel   string `long:"anthropic-model" env:"ANTHROPIC_MODEL" default:"claude-haiku-4-5-20251001" description:"Anthropic model"`

	// Social crosspost
	FBPostingEnabled  bool   `long:"fb-posting-enabled" env:"FB_POSTING_ENABLED" description:"Enable Facebook page crossposting"`
	FBPageID          string `long:"fb-page-id" env:"FB_PAGE_ID" description:"Facebook page ID"`
	FBPageAccessToken string `long:"fb-page-access-token" env:"FB_PAGE_ACCESS_TOKEN" description:"Facebook page access token"`
	PublicSiteBaseURL string `long:"public-site-base-url" env:"PUBLIC_SITE_BASE_URL" description:"Public site base URL used in story links"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"NewsHub/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Asia/Jerusalem)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

func Load() (*Cfg, error) {
	return LoadArgs(os.Args[1:])
}

// LoadArgs parses args on top of the environment. A .env file (ENV_FILE,
// default ".env") is read first when present; variables already set win.
func LoadArgs(args []string) (*Cfg, error) {
	if err := loadDotEnv(cmp.Or(os.Getenv("ENV_FILE"), ".env")); err != nil {
		return nil, err
	}

	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		SourcesDir:        raw.SourcesDir,
		Port:              raw.Port,
		SchedulerInterval: raw.SchedulerInterval,
		RunOnce:           raw.RunOnce,
		APIAccessKey:      raw.APIAccessKey,
		RunBudgetMs:       raw.RunBudgetMs,
		LockTTL:           raw.LockTTL,
		MaxNewItemsPerRun: raw.MaxNewItemsPerRun,
		HTTPTimeout:       raw.HTTPTimeout,
		SummaryTargetMin:  raw.SummaryTargetMin,
		SummaryTargetMax:  raw.SummaryTargetMax,
		SummaryProviders:  raw.SummaryProviders,
		GeminiAPIKey:      raw.GeminiAPIKey,
		GeminiModel:       raw.GeminiModel,
		AnthropicAPIKey:   raw.AnthropicAPIKey,
		AnthropicModel:    raw.AnthropicModel,
		FBPostingEnabled:  raw.FBPostingEnabled,
		FBPageID:          raw.FBPageID,
		FBPageAccessToken: raw.FBPageAccessToken,
		PublicSiteBaseURL: raw.PublicSiteBaseURL,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func validate(cfg *Cfg) error {
	if cfg.SchedulerInterval <= 0 {
		return fmt.Errorf("scheduler interval must be positive")
	}

	nonNegativeFields := map[string]int{
		"run budget":            cfg.RunBudgetMs,
		"lock ttl":              cfg.LockTTL,
		"max new items per run": cfg.MaxNewItemsPerRun,
		"summary target min":    cfg.SummaryTargetMin,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	if cfg.SummaryTargetMax < cfg.SummaryTargetMin {
		return fmt.Errorf("summary target max (%d) is below min (%d)", cfg.SummaryTargetMax, cfg.SummaryTargetMin)
	}

	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
