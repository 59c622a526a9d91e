package cfg

import "time"

type Cfg struct {
	// Storage
	DBPath     string
	SourcesDir string

	// Application configuration
	Port              string
	SchedulerInterval int
	RunOnce           bool
	APIAccessKey      string

	// Run limits
	RunBudgetMs       int
	LockTTL           int
	MaxNewItemsPerRun int
	HTTPTimeout       int

	// Summary generation
	SummaryTargetMin int
	SummaryTargetMax int
	SummaryProviders string
	GeminiAPIKey     string
	GeminiModel      string
	AnthropicAPIKey  string
	AnthropicModel   string

	// Social crosspost
	FBPostingEnabled  bool
	FBPageID          string
	FBPageAccessToken string
	PublicSiteBaseURL string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

func (c *Cfg) RunBudget() time.Duration {
	return time.Duration(c.RunBudgetMs) * time.Millisecond
}

func (c *Cfg) LockTTLDuration() time.Duration {
	return time.Duration(c.LockTTL) * time.Second
}

func (c *Cfg) HTTPTimeoutDuration() time.Duration {
	if c.HTTPTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.HTTPTimeout) * time.Second
}

func (c *Cfg) SchedulerPeriod() time.Duration {
	return time.Duration(c.SchedulerInterval) * time.Second
}

// CrosspostConfigured reports whether social posting is enabled and has the
// credentials it needs.
func (c *Cfg) CrosspostConfigured() bool {
	return c.FBPostingEnabled && c.FBPageID != "" && c.FBPageAccessToken != ""
}
