// Package config holds all tribune configuration: YAML file, defaults, and
// environment overrides. The file is optional; missing files fall back to
// DefaultConfig with env overrides applied on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all tribune configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	DataDir string `yaml:"data_dir"`

	// Master switch: when false every publish is a dry run
	Live bool `yaml:"live"`

	// Objective weighting mode: IMPACT, FAME, REVENUE, AUTHORITY, MONETIZE
	GoalMode string `yaml:"goal_mode"`

	// Local quiet window during which no content is posted
	QuietHours QuietHoursConfig `yaml:"quiet_hours"`

	// Job cadence
	Jobs JobsConfig `yaml:"jobs"`

	// Action selection
	Selector SelectorConfig `yaml:"selector"`

	// Intensity policy
	Intensity IntensityConfig `yaml:"intensity"`

	// Evidence requirements
	Evidence EvidenceConfig `yaml:"evidence"`

	// Per-mode objective weights
	GoalWeights map[string]GoalWeights `yaml:"goal_weights"`

	// Platform adapters
	Platforms PlatformsConfig `yaml:"platforms"`

	// Write reliability (breaker, retry)
	Breaker BreakerConfig `yaml:"breaker"`

	// Crisis detection
	Crisis CrisisConfig `yaml:"crisis"`

	// Metrics and scoring
	Analytics AnalyticsConfig `yaml:"analytics"`

	// Impact targets
	Impact ImpactConfig `yaml:"impact"`

	// LLM provider and budget
	LLM LLMConfig `yaml:"llm"`

	// SQLite storage
	Store StoreConfig `yaml:"store"`

	// Persona file paths
	Persona PersonaConfig `yaml:"persona"`

	// Perception ingest
	Perception PerceptionConfig `yaml:"perception"`

	// Dashboard HTTP API
	Server ServerConfig `yaml:"server"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Guards Live and GoalMode, the only fields mutated after boot.
	runtime sync.RWMutex
}

// IsLive reports the live flag. The dashboard toggles it at runtime, so
// concurrent readers go through the lock.
func (c *Config) IsLive() bool {
	c.runtime.RLock()
	defer c.runtime.RUnlock()
	return c.Live
}

// SetLive flips the live flag.
func (c *Config) SetLive(v bool) {
	c.runtime.Lock()
	defer c.runtime.Unlock()
	c.Live = v
}

// CurrentGoalMode reports the active goal mode.
func (c *Config) CurrentGoalMode() string {
	c.runtime.RLock()
	defer c.runtime.RUnlock()
	return c.GoalMode
}

// SetGoalMode switches the active goal mode. The caller validates it.
func (c *Config) SetGoalMode(mode string) {
	c.runtime.Lock()
	defer c.runtime.Unlock()
	c.GoalMode = mode
}

// QuietHoursConfig defines a local-time posting blackout window.
// Start > End means the window wraps midnight.
type QuietHoursConfig struct {
	Enabled bool `yaml:"enabled"`
	Start   int  `yaml:"start"` // hour 0-23, inclusive
	End     int  `yaml:"end"`   // hour 0-23, inclusive
}

// JobRange is a randomized interval in minutes plus jitter.
type JobRange struct {
	MinMinutes    int `yaml:"min_minutes"`
	MaxMinutes    int `yaml:"max_minutes"`
	JitterMinutes int `yaml:"jitter_minutes"`
}

// JobsConfig holds cadence for every recurring job.
type JobsConfig struct {
	PostProposal     JobRange `yaml:"post_proposal"`
	ReplyMentions    JobRange `yaml:"reply_mentions"`
	SearchEngage     JobRange `yaml:"search_engage"`
	PostThread       JobRange `yaml:"post_thread"`
	ValueDM          JobRange `yaml:"value_dm"`
	PerceptionIngest JobRange `yaml:"perception_ingest"`
	CrisisWatch      JobRange `yaml:"crisis_watch"`
	AnalyticsPull    JobRange `yaml:"analytics_pull"`
	KPIRollup        JobRange `yaml:"kpi_rollup"`

	// Daily jobs run at a fixed local hour
	FollowerSnapshotHour  int `yaml:"follower_snapshot_hour"`
	NightlyReflectionHour int `yaml:"nightly_reflection_hour"`

	// Weekly planning runs Sunday at this hour
	WeeklyPlanHour int `yaml:"weekly_plan_hour"`
}

// SelectorConfig configures the action selector.
type SelectorConfig struct {
	// Base probability per action type
	BaseProbs map[string]float64 `yaml:"base_probs"`

	// Minimum minutes between actions of the same type
	MinIntervalsMinutes map[string]int `yaml:"min_intervals_minutes"`

	// Drive weights, should sum to ~1.0
	Drives map[string]float64 `yaml:"drives"`

	// Topic and CTA arm inventories
	Topics      []string `yaml:"topics"`
	CTAVariants []string `yaml:"cta_variants"`
}

// IntensityConfig configures the adaptive intensity policy.
type IntensityConfig struct {
	Adaptive      bool `yaml:"adaptive"`
	MinLevel      int  `yaml:"min_level"`
	MaxLevel      int  `yaml:"max_level"`
	DefaultLevel  int  `yaml:"default_level"`
	RagebaitGuard bool `yaml:"ragebait_guard"`
}

// EvidenceConfig configures citation requirements.
type EvidenceConfig struct {
	// Host suffixes accepted as receipts for high-intensity content
	WhitelistSuffixes []string `yaml:"whitelist_suffixes"`
}

// GoalWeights are the objective-function coefficients for one goal mode.
type GoalWeights struct {
	Alpha  float64 `yaml:"alpha"`  // fame / engagement
	Beta   float64 `yaml:"beta"`   // revenue
	Gamma  float64 `yaml:"gamma"`  // authority
	Lambda float64 `yaml:"lambda"` // penalty
}

// PlatformConfig configures one publishing platform.
type PlatformConfig struct {
	Enabled bool    `yaml:"enabled"`
	Weight  float64 `yaml:"weight"`
	BaseURL string  `yaml:"base_url"`
	Token   string  `yaml:"token"`

	// X-specific credentials
	APIKey       string `yaml:"api_key"`
	APISecret    string `yaml:"api_secret"`
	AccessToken  string `yaml:"access_token"`
	AccessSecret string `yaml:"access_secret"`
}

// PlatformsConfig configures the multiplexer and its adapters.
type PlatformsConfig struct {
	// Routing mode: broadcast, single, weighted
	Mode string `yaml:"mode"`

	X        PlatformConfig `yaml:"x"`
	Mastodon PlatformConfig `yaml:"mastodon"`
	LinkedIn PlatformConfig `yaml:"linkedin"`

	// Action toggles
	EnableDMs     bool `yaml:"enable_dms"`
	EnableLikes   bool `yaml:"enable_likes"`
	EnableReposts bool `yaml:"enable_reposts"`
}

// BreakerConfig configures the publish circuit breaker and retry policy.
type BreakerConfig struct {
	FailureThreshold  int    `yaml:"failure_threshold"`
	ResetAfter        string `yaml:"reset_after"`
	MaxWriteAttempts  int    `yaml:"max_write_attempts"`
	MaxBackoffSeconds int    `yaml:"max_backoff_seconds"`
}

// CrisisConfig configures crisis detection and response.
type CrisisConfig struct {
	SignalThreshold    float64  `yaml:"signal_threshold"`
	ResumeThreshold    float64  `yaml:"resume_threshold"` // 0 means threshold/2
	SentimentThreshold float64  `yaml:"sentiment_threshold"`
	Keywords           []string `yaml:"keywords"`
	CalmingMessage     string   `yaml:"calming_message"`
}

// AnalyticsConfig holds scoring references and weights.
type AnalyticsConfig struct {
	RevenuePerClick float64 `yaml:"revenue_per_click"`

	// Z-score normalization references
	EngagementMean float64 `yaml:"engagement_mean"`
	EngagementStd  float64 `yaml:"engagement_std"`
	FollowersMean  float64 `yaml:"followers_mean"`
	FollowersStd   float64 `yaml:"followers_std"`

	// Engagement point weights
	LikeWeight   float64 `yaml:"like_weight"`
	RepostWeight float64 `yaml:"repost_weight"`
	ReplyWeight  float64 `yaml:"reply_weight"`
	QuoteWeight  float64 `yaml:"quote_weight"`

	// Penalty weights
	RateLimitPenalty float64 `yaml:"rate_limit_penalty"`
	BlockMutePenalty float64 `yaml:"block_mute_penalty"`
}

// ImpactConfig configures mission-impact scoring.
type ImpactConfig struct {
	WeeklyFloor float64 `yaml:"weekly_floor"`

	// Per-signal weights (normalized at use) and weekly targets
	Weights map[string]float64 `yaml:"weights"`
	Targets map[string]float64 `yaml:"targets"`
}

// LLMConfig configures the LLM client and call budget.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`

	MaxCallsPerHour int `yaml:"max_calls_per_hour"`
	MaxCallsPerDay  int `yaml:"max_calls_per_day"`
	MaxTokens       int `yaml:"max_tokens"`
}

// StoreConfig configures SQLite storage.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// PersonaConfig configures persona storage.
type PersonaConfig struct {
	FilePath string `yaml:"file_path"`
}

// PerceptionConfig configures ingest sources and limits.
type PerceptionConfig struct {
	VoicesPath   string   `yaml:"voices_path"`
	Keywords     []string `yaml:"keywords"`
	MentionLimit int      `yaml:"mention_limit"`
	TimelineLimit int     `yaml:"timeline_limit"`
	TrendLimit   int      `yaml:"trend_limit"`
	KeywordLimit int      `yaml:"keyword_limit"`
	VoiceLimit   int      `yaml:"voice_limit"`
}

// ServerConfig configures the dashboard HTTP API.
type ServerConfig struct {
	Port       int    `yaml:"port"`
	AdminToken string `yaml:"admin_token"`

	// Sliding-window rate limit on admin routes
	RateLimitRequests int    `yaml:"rate_limit_requests"`
	RateLimitWindow   string `yaml:"rate_limit_window"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	Debug bool   `yaml:"debug"` // enable categorized file logs
}

// Goal modes.
const (
	GoalImpact    = "IMPACT"
	GoalFame      = "FAME"
	GoalRevenue   = "REVENUE"
	GoalAuthority = "AUTHORITY"
	GoalMonetize  = "MONETIZE"
)

// ValidGoalModes lists all supported goal modes.
var ValidGoalModes = []string{GoalImpact, GoalFame, GoalRevenue, GoalAuthority, GoalMonetize}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "tribune",
		Version: "1.0.0",
		DataDir: "data",

		Live:     false,
		GoalMode: GoalImpact,

		QuietHours: QuietHoursConfig{
			Enabled: true,
			Start:   23,
			End:     7,
		},

		Jobs: JobsConfig{
			PostProposal:     JobRange{MinMinutes: 45, MaxMinutes: 90, JitterMinutes: 5},
			ReplyMentions:    JobRange{MinMinutes: 12, MaxMinutes: 25, JitterMinutes: 2},
			SearchEngage:     JobRange{MinMinutes: 25, MaxMinutes: 45, JitterMinutes: 3},
			PostThread:       JobRange{MinMinutes: 240, MaxMinutes: 360, JitterMinutes: 7},
			ValueDM:          JobRange{MinMinutes: 180, MaxMinutes: 300, JitterMinutes: 6},
			PerceptionIngest: JobRange{MinMinutes: 15, MaxMinutes: 15, JitterMinutes: 1},
			CrisisWatch:      JobRange{MinMinutes: 5, MaxMinutes: 5, JitterMinutes: 1},
			AnalyticsPull:    JobRange{MinMinutes: 35, MaxMinutes: 60, JitterMinutes: 5},
			KPIRollup:        JobRange{MinMinutes: 60, MaxMinutes: 90, JitterMinutes: 10},

			FollowerSnapshotHour:  3,
			NightlyReflectionHour: 4,
			WeeklyPlanHour:        5,
		},

		Selector: SelectorConfig{
			BaseProbs: map[string]float64{
				"POST_PROPOSAL": 0.4,
				"REPLY_MENTIONS": 0.3,
				"SEARCH_ENGAGE": 0.2,
				"REST":          0.1,
			},
			MinIntervalsMinutes: map[string]int{
				"POST_PROPOSAL": 45,
				"REPLY_MENTIONS": 12,
				"SEARCH_ENGAGE": 25,
				"REST":          5,
			},
			Drives: map[string]float64{
				"curiosity": 0.35,
				"novelty":   0.25,
				"impact":    0.30,
				"stability": 0.10,
			},
			Topics: []string{
				"technology", "economics", "policy",
				"coordination", "energy", "automation",
			},
			CTAVariants: []string{
				"learn_more", "join_pilot", "provide_feedback",
				"share_experience", "book_call",
			},
		},

		Intensity: IntensityConfig{
			Adaptive:      true,
			MinLevel:      1,
			MaxLevel:      5,
			DefaultLevel:  2,
			RagebaitGuard: true,
		},

		Evidence: EvidenceConfig{
			WhitelistSuffixes: []string{
				".gov", ".edu",
				"reuters.com", "apnews.com", "bloomberg.com",
				"nature.com", "science.org", "arxiv.org",
			},
		},

		GoalWeights: map[string]GoalWeights{
			GoalImpact:    {Alpha: 0.40, Beta: 0.30, Gamma: 0.20, Lambda: 0.10},
			GoalFame:      {Alpha: 0.65, Beta: 0.15, Gamma: 0.25, Lambda: 0.20},
			GoalRevenue:   {Alpha: 0.30, Beta: 0.55, Gamma: 0.25, Lambda: 0.25},
			GoalAuthority: {Alpha: 0.45, Beta: 0.20, Gamma: 0.25, Lambda: 0.10},
			GoalMonetize:  {Alpha: 0.30, Beta: 0.55, Gamma: 0.25, Lambda: 0.25},
		},

		Platforms: PlatformsConfig{
			Mode: "broadcast",
			X: PlatformConfig{
				Enabled: true,
				Weight:  1.0,
				BaseURL: "https://api.x.com",
			},
			Mastodon: PlatformConfig{
				Enabled: false,
				Weight:  0.5,
				BaseURL: "https://mastodon.social",
			},
			LinkedIn: PlatformConfig{
				Enabled: false,
				Weight:  0.5,
				BaseURL: "https://api.linkedin.com",
			},
			EnableDMs:     true,
			EnableLikes:   true,
			EnableReposts: true,
		},

		Breaker: BreakerConfig{
			FailureThreshold:  5,
			ResetAfter:        "5m",
			MaxWriteAttempts:  5,
			MaxBackoffSeconds: 60,
		},

		Crisis: CrisisConfig{
			SignalThreshold:    12.0,
			SentimentThreshold: -0.5,
			Keywords: []string{
				"crisis", "scandal", "emergency", "bankrupt", "fail",
				"collapse", "fraud", "default", "lawsuit", "investigation",
			},
			CalmingMessage: "We are aware of heightened concerns and are pausing outgoing updates while we verify details.",
		},

		Analytics: AnalyticsConfig{
			RevenuePerClick: 0.05,
			EngagementMean:  100,
			EngagementStd:   50,
			FollowersMean:   10,
			FollowersStd:    20,
			LikeWeight:      1.0,
			RepostWeight:    2.0,
			ReplyWeight:     1.5,
			QuoteWeight:     1.5,
			RateLimitPenalty: 2.0,
			BlockMutePenalty: 5.0,
		},

		Impact: ImpactConfig{
			WeeklyFloor: 10,
			Weights: map[string]float64{
				"pilots":      0.40,
				"artifacts":   0.20,
				"coalitions":  0.20,
				"citations":   0.10,
				"helpfulness": 0.10,
			},
			Targets: map[string]float64{
				"pilots":      1,
				"artifacts":   2,
				"coalitions":  2,
				"citations":   5,
				"helpfulness": 5,
			},
		},

		LLM: LLMConfig{
			Provider:        "openai",
			Model:           "gpt-4o-mini",
			BaseURL:         "https://api.openai.com/v1",
			Timeout:         "60s",
			MaxCallsPerHour: 100,
			MaxCallsPerDay:  1000,
			MaxTokens:       4000,
		},

		Store: StoreConfig{
			DatabasePath: "data/tribune.db",
		},

		Persona: PersonaConfig{
			FilePath: "data/persona.json",
		},

		Perception: PerceptionConfig{
			VoicesPath:    "data/voices.yaml",
			Keywords:      []string{"pilot program", "coordination failure", "automation policy"},
			MentionLimit:  25,
			TimelineLimit: 25,
			TrendLimit:    10,
			KeywordLimit:  10,
			VoiceLimit:    5,
		},

		Server: ServerConfig{
			Port:              8088,
			RateLimitRequests: 10,
			RateLimitWindow:   "60s",
		},

		Logging: LoggingConfig{
			Level: "info",
			Debug: true,
		},
	}
}

// Load loads configuration from a YAML file. A missing file is not an error;
// defaults plus environment overrides are returned instead. A .env file in
// the working directory is loaded first if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TRIBUNE_LIVE"); v != "" {
		c.Live = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("TRIBUNE_GOAL_MODE"); v != "" {
		c.GoalMode = strings.ToUpper(v)
	}
	if v := os.Getenv("TRIBUNE_DB"); v != "" {
		c.Store.DatabasePath = v
	}
	if v := os.Getenv("TRIBUNE_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("TRIBUNE_ADMIN_TOKEN"); v != "" {
		c.Server.AdminToken = v
	}
	if v := os.Getenv("TRIBUNE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}

	// LLM credentials
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "openai"
		}
	}
	if key := os.Getenv("TRIBUNE_LLM_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if url := os.Getenv("TRIBUNE_LLM_BASE_URL"); url != "" {
		c.LLM.BaseURL = url
	}
	if model := os.Getenv("TRIBUNE_LLM_MODEL"); model != "" {
		c.LLM.Model = model
	}

	// Platform credentials
	if v := os.Getenv("X_BEARER_TOKEN"); v != "" {
		c.Platforms.X.Token = v
	}
	if v := os.Getenv("X_API_KEY"); v != "" {
		c.Platforms.X.APIKey = v
	}
	if v := os.Getenv("X_API_SECRET"); v != "" {
		c.Platforms.X.APISecret = v
	}
	if v := os.Getenv("X_ACCESS_TOKEN"); v != "" {
		c.Platforms.X.AccessToken = v
	}
	if v := os.Getenv("X_ACCESS_SECRET"); v != "" {
		c.Platforms.X.AccessSecret = v
	}
	if v := os.Getenv("MASTODON_TOKEN"); v != "" {
		c.Platforms.Mastodon.Token = v
	}
	if v := os.Getenv("MASTODON_BASE_URL"); v != "" {
		c.Platforms.Mastodon.BaseURL = v
	}
	if v := os.Getenv("LINKEDIN_TOKEN"); v != "" {
		c.Platforms.LinkedIn.Token = v
	}
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// GetBreakerReset returns the breaker reset window as a duration.
func (c *Config) GetBreakerReset() time.Duration {
	d, err := time.ParseDuration(c.Breaker.ResetAfter)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// GetRateLimitWindow returns the admin rate-limit window as a duration.
func (c *Config) GetRateLimitWindow() time.Duration {
	d, err := time.ParseDuration(c.Server.RateLimitWindow)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// CrisisResumeThreshold returns the configured resume threshold,
// defaulting to half the entry threshold.
func (c *Config) CrisisResumeThreshold() float64 {
	if c.Crisis.ResumeThreshold > 0 {
		return c.Crisis.ResumeThreshold
	}
	return c.Crisis.SignalThreshold / 2
}

// WeightsFor returns the objective weights for a goal mode, falling back
// to IMPACT weights for unknown modes.
func (c *Config) WeightsFor(mode string) GoalWeights {
	if w, ok := c.GoalWeights[strings.ToUpper(mode)]; ok {
		return w
	}
	return c.GoalWeights[GoalImpact]
}

// InQuietHours reports whether t falls inside the quiet window.
func (c *Config) InQuietHours(t time.Time) bool {
	if !c.QuietHours.Enabled {
		return false
	}
	h := t.Hour()
	start, end := c.QuietHours.Start, c.QuietHours.End
	if start == end {
		return false
	}
	// Both bounds are inclusive: End names the last quiet hour.
	if start < end {
		return h >= start && h <= end
	}
	// Window wraps midnight
	return h >= start || h <= end
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	valid := false
	for _, m := range ValidGoalModes {
		if c.GoalMode == m {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid goal mode: %s (valid: %v)", c.GoalMode, ValidGoalModes)
	}

	if c.QuietHours.Start < 0 || c.QuietHours.Start > 23 {
		return fmt.Errorf("quiet_hours.start out of range: %d", c.QuietHours.Start)
	}
	if c.QuietHours.End < 0 || c.QuietHours.End > 23 {
		return fmt.Errorf("quiet_hours.end out of range: %d", c.QuietHours.End)
	}

	if c.Intensity.MinLevel > c.Intensity.MaxLevel {
		return fmt.Errorf("intensity min_level %d exceeds max_level %d",
			c.Intensity.MinLevel, c.Intensity.MaxLevel)
	}
	if c.Intensity.DefaultLevel < c.Intensity.MinLevel || c.Intensity.DefaultLevel > c.Intensity.MaxLevel {
		return fmt.Errorf("intensity default_level %d outside [%d,%d]",
			c.Intensity.DefaultLevel, c.Intensity.MinLevel, c.Intensity.MaxLevel)
	}

	switch c.Platforms.Mode {
	case "broadcast", "single", "weighted":
	default:
		return fmt.Errorf("invalid platform mode: %s (valid: broadcast, single, weighted)", c.Platforms.Mode)
	}

	if c.Crisis.SignalThreshold <= 0 {
		return fmt.Errorf("crisis signal_threshold must be positive")
	}
	if c.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("breaker failure_threshold must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if len(c.Selector.BaseProbs) > 0 {
		sum := 0.0
		for _, p := range c.Selector.BaseProbs {
			sum += p
		}
		if sum < 0.95 || sum > 1.05 {
			return fmt.Errorf("selector base_probs sum to %.2f, expected ~1.0", sum)
		}
	}

	return nil
}
