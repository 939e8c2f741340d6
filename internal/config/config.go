package config

import (
	"fmt"
	"strings"
	"time"
)

// AppConfig holds application-level settings.
type AppConfig struct {
	LogLevel string `mapstructure:"log_level"`
	DataDir  string `mapstructure:"data_dir"`
}

// RedisConfig holds redis connection settings. An empty Addr disables the search cache.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	CacheTTL string `mapstructure:"cache_ttl"` // duration string, e.g., "72h"
}

// OpenAIConfig configures the OpenAI-compatible chat backend.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// GeminiConfig configures the Gemini backend.
type GeminiConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// JudgesConfig picks a backend ("openai" or "gemini") per judgment call site.
type JudgesConfig struct {
	Merge    string `mapstructure:"merge"`
	Rank     string `mapstructure:"rank"`
	Draft    string `mapstructure:"draft"`
	Critique string `mapstructure:"critique"`
	Revise   string `mapstructure:"revise"`
	Email    string `mapstructure:"email"`
	Reading  string `mapstructure:"reading"`
	Timeout  string `mapstructure:"timeout"` // per call, e.g., "180s"
}

// PerplexityConfig controls the news search collector.
type PerplexityConfig struct {
	APIKey        string   `mapstructure:"api_key"`
	BaseURL       string   `mapstructure:"base_url"`
	Model         string   `mapstructure:"model"`
	Recency       string   `mapstructure:"recency"`
	MaxConcurrent int      `mapstructure:"max_concurrent"`
	RatePerSecond float64  `mapstructure:"rate_per_second"`
	Timeout       string   `mapstructure:"timeout"`
	Queries       []string `mapstructure:"queries"`
}

// CloudflareConfig enables browser-rendered fetching for script-heavy venue pages.
type CloudflareConfig struct {
	AccountID string `mapstructure:"account_id"`
	APIToken  string `mapstructure:"api_token"`
	Timeout   string `mapstructure:"timeout"`
}

// SelectorConfig holds the CSS selectors used to pull events from a venue page.
type SelectorConfig struct {
	Item        string `mapstructure:"item"`
	Title       string `mapstructure:"title"`
	Date        string `mapstructure:"date"`
	Link        string `mapstructure:"link"`
	Description string `mapstructure:"description"`
}

// VenueConfig describes one venue page to scrape.
type VenueConfig struct {
	Name      string         `mapstructure:"name"`
	URL       string         `mapstructure:"url"`
	Render    bool           `mapstructure:"render"`    // fetch through Cloudflare Browser Rendering
	Watchlist bool           `mapstructure:"watchlist"` // eligible for the venue spotlight
	Selectors SelectorConfig `mapstructure:"selectors"`
}

// EventFilterConfig suppresses recurring standard sessions from venue scrapes.
type EventFilterConfig struct {
	Exclude      []string `mapstructure:"exclude"`
	Include      []string `mapstructure:"include"`
	AlwaysVenues []string `mapstructure:"always_venues"`
}

// GmailConfig points at OAuth material for the ingest job.
type GmailConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	TokenFile       string `mapstructure:"token_file"`
	Query           string `mapstructure:"query"`
	MaxResults      int    `mapstructure:"max_results"`
}

// EmailConfig controls the email artifact store and its collector.
type EmailConfig struct {
	DBPath        string      `mapstructure:"db_path"`
	MinConfidence float64     `mapstructure:"min_confidence"`
	DaysBack      int         `mapstructure:"days_back"`
	Gmail         GmailConfig `mapstructure:"gmail"`
}

// GatherConfig controls the gather pipeline.
type GatherConfig struct {
	RunsDir          string            `mapstructure:"runs_dir"`
	CollectorTimeout string            `mapstructure:"collector_timeout"`
	WindowDays       int               `mapstructure:"window_days"`
	DateTolerance    string            `mapstructure:"date_tolerance"` // merge tolerance, e.g., "36h"
	SpotlightQueries []string          `mapstructure:"spotlight_queries"`
	ReadingQueries   []string          `mapstructure:"reading_queries"`
	ReadingBlocklist []string          `mapstructure:"reading_blocklist"` // domains never offered to the reading corner
	EventFilter      EventFilterConfig `mapstructure:"event_filter"`
}

// DraftConfig controls the shortlist and editorial loop.
type DraftConfig struct {
	TargetCount       int    `mapstructure:"target_count"`
	MaxIterations     int    `mapstructure:"max_iterations"`
	SeverityThreshold string `mapstructure:"severity_threshold"`
	WordMin           int    `mapstructure:"word_min"`
	WordMax           int    `mapstructure:"word_max"`
	PastIssues        int    `mapstructure:"past_issues"`
	DraftsDir         string `mapstructure:"drafts_dir"`
	Title             string `mapstructure:"title"` // supports {.IssueDate} and {.WeekRange}
	Rubric            string `mapstructure:"rubric"`
	StyleFile         string `mapstructure:"style_file"` // overrides the embedded house style
	Language          string `mapstructure:"language"`
}

// NotionConfig points the publisher at the drafts database.
type NotionConfig struct {
	APIKey     string `mapstructure:"api_key"`
	DatabaseID string `mapstructure:"database_id"`
	Timeout    string `mapstructure:"timeout"`
}

// Config is the top-level configuration structure.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Redis      RedisConfig      `mapstructure:"redis"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	Judges     JudgesConfig     `mapstructure:"judges"`
	Perplexity PerplexityConfig `mapstructure:"perplexity"`
	Cloudflare CloudflareConfig `mapstructure:"cloudflare"`
	Venues     []VenueConfig    `mapstructure:"venues"`
	Email      EmailConfig      `mapstructure:"email"`
	Gather     GatherConfig     `mapstructure:"gather"`
	Draft      DraftConfig      `mapstructure:"draft"`
	Notion     NotionConfig     `mapstructure:"notion"`
}

// DefaultRubric is what the shortlist ranker is told to optimise for.
const DefaultRubric = `Rank for a weekly London sauna newsletter. Prefer, in order:
1. Novelty: openings, closures, access or pricing changes, one-off events.
2. Diversity: avoid several items from the same venue.
3. Recency: upcoming events in the coming week beat stale news.
4. Reader relevance: things a London sauna-goer can act on.`

// DefaultQueries are the weekly news searches.
var DefaultQueries = []string{
	"London sauna new openings",
	"London sauna events this week",
	"London sauna closures",
	"London wellness sauna trends",
	"latest scientific studies sauna health benefits",
	"UK sauna culture trends bathing community",
}

// DefaultReadingQueries look for research, essays and features for the Reading Corner.
var DefaultReadingQueries = []string{
	"recent sauna health benefits research studies",
	"sauna culture essays commentary UK London bathing wellness",
	"sauna wellness feature articles London UK bathing",
}

// DefaultReadingBlocklist holds promotional and press-release domains.
var DefaultReadingBlocklist = []string{
	"saunasteamcenter.com", "salussaunas.com", "resident.com", "hudsonvalleycountry.com",
	"brownhealth.org", "cfpic.org", "lifestance.com", "aol.com", "happi.com", "prnewswire.com",
	"hospitalitynet.org", "leisureopportunities.co.uk", "spaopportunities.com",
	"professionalbeauty.co.uk", "goodspaguide.co.uk", "elitetraveler.com",
}

// DefaultExcludePatterns match high-frequency standard sessions.
var DefaultExcludePatterns = []string{
	`free\s*flow\s*\d+`,
	`member.?s.?suite`,
	`contrast.?immersion`,
	`off[-\s]*peak\s*\d*h?\s*sauna`,
	`peak\s*\d+min\s*sauna`,
	`peak\s*\d+h\s*sauna`,
	`peak\s*time\s*\d*h?\s*sauna`,
	`\d+h?\s*sauna\s*session`,
	`members?\s*slot`,
	`nhs\s*free\s*sauna`,
}

// DefaultIncludePatterns mark special events; they override the exclude list.
var DefaultIncludePatterns = []string{
	`workshop`, `special`, `birthday`, `ritual`, `ceremony`, `aufguss`, `banya`,
	`halloween`, `new\s*year`, `valentine`, `solstice`, `equinox`, `full\s*moon`,
	`sound\s*bath`, `sound\s*healing`,
}

// FillDefaults applies default values if not provided.
func (c *Config) FillDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.DataDir == "" {
		c.App.DataDir = "./data"
	}
	if c.Redis.CacheTTL == "" {
		c.Redis.CacheTTL = "72h"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o"
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.5-flash"
	}
	def := c.defaultBackend()
	for _, p := range []*string{&c.Judges.Merge, &c.Judges.Rank, &c.Judges.Draft, &c.Judges.Critique, &c.Judges.Revise, &c.Judges.Email, &c.Judges.Reading} {
		if *p == "" {
			*p = def
		}
		*p = strings.ToLower(strings.TrimSpace(*p))
	}
	if c.Judges.Timeout == "" {
		c.Judges.Timeout = "180s"
	}
	if c.Perplexity.BaseURL == "" {
		c.Perplexity.BaseURL = "https://api.perplexity.ai"
	}
	if c.Perplexity.Model == "" {
		c.Perplexity.Model = "sonar"
	}
	if c.Perplexity.Recency == "" {
		c.Perplexity.Recency = "week"
	}
	if c.Perplexity.MaxConcurrent <= 0 || c.Perplexity.MaxConcurrent > 5 {
		c.Perplexity.MaxConcurrent = 5
	}
	if c.Perplexity.Timeout == "" {
		c.Perplexity.Timeout = "60s"
	}
	if len(c.Perplexity.Queries) == 0 {
		c.Perplexity.Queries = append([]string(nil), DefaultQueries...)
	}
	if c.Cloudflare.Timeout == "" {
		c.Cloudflare.Timeout = "30s"
	}
	if c.Email.DBPath == "" {
		c.Email.DBPath = c.App.DataDir + "/email.db"
	}
	if c.Email.MinConfidence == 0 {
		c.Email.MinConfidence = 0.5
	}
	if c.Email.DaysBack == 0 {
		c.Email.DaysBack = 7
	}
	if c.Email.Gmail.TokenFile == "" {
		c.Email.Gmail.TokenFile = "token.json"
	}
	if c.Email.Gmail.MaxResults == 0 {
		c.Email.Gmail.MaxResults = 100
	}
	if c.Gather.RunsDir == "" {
		c.Gather.RunsDir = c.App.DataDir + "/runs"
	}
	if c.Gather.CollectorTimeout == "" {
		c.Gather.CollectorTimeout = "5m"
	}
	if c.Gather.WindowDays == 0 {
		c.Gather.WindowDays = 7
	}
	if c.Gather.DateTolerance == "" {
		c.Gather.DateTolerance = "36h"
	}
	if len(c.Gather.SpotlightQueries) == 0 {
		c.Gather.SpotlightQueries = []string{
			"{venue} London sauna reviews what people say",
			"{venue} London sauna facilities prices who it is for",
		}
	}
	if len(c.Gather.ReadingQueries) == 0 {
		c.Gather.ReadingQueries = append([]string(nil), DefaultReadingQueries...)
	}
	if c.Gather.ReadingBlocklist == nil {
		c.Gather.ReadingBlocklist = append([]string(nil), DefaultReadingBlocklist...)
	}
	if c.Gather.EventFilter.Exclude == nil {
		c.Gather.EventFilter.Exclude = append([]string(nil), DefaultExcludePatterns...)
	}
	if c.Gather.EventFilter.Include == nil {
		c.Gather.EventFilter.Include = append([]string(nil), DefaultIncludePatterns...)
	}
	if c.Draft.TargetCount == 0 {
		c.Draft.TargetCount = 15
	}
	if c.Draft.MaxIterations == 0 {
		c.Draft.MaxIterations = 2
	}
	if c.Draft.SeverityThreshold == "" {
		c.Draft.SeverityThreshold = "low"
	}
	if c.Draft.WordMin == 0 {
		c.Draft.WordMin = 700
	}
	if c.Draft.WordMax == 0 {
		c.Draft.WordMax = 1400
	}
	if c.Draft.PastIssues == 0 {
		c.Draft.PastIssues = 3
	}
	if c.Draft.DraftsDir == "" {
		c.Draft.DraftsDir = c.App.DataDir + "/drafts"
	}
	if c.Draft.Title == "" {
		c.Draft.Title = "Draft - {.IssueDate}"
	}
	if c.Draft.Rubric == "" {
		c.Draft.Rubric = DefaultRubric
	}
	if c.Draft.Language == "" {
		c.Draft.Language = "English"
	}
	if c.Notion.Timeout == "" {
		c.Notion.Timeout = "30s"
	}
}

func (c *Config) defaultBackend() string {
	if strings.TrimSpace(c.OpenAI.APIKey) == "" && strings.TrimSpace(c.Gemini.APIKey) != "" {
		return "gemini"
	}
	return "openai"
}

// Duration parses a duration string from config, falling back to def when empty.
func Duration(field, s string, def time.Duration) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", field, err)
	}
	return d, nil
}
