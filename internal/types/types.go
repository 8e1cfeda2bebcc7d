// Package types holds the shared data model: actions, posts, receipts,
// bandit arms, sensed events, and the records the store persists.
package types

import "time"

// ActionType is a top-level action the agent can take in one cycle.
type ActionType string

const (
	ActionPostProposal  ActionType = "POST_PROPOSAL"
	ActionReplyMentions ActionType = "REPLY_MENTIONS"
	ActionSearchEngage  ActionType = "SEARCH_ENGAGE"
	ActionRest          ActionType = "REST"

	// Recorded by dedicated jobs rather than the selector.
	ActionPostThread ActionType = "POST_THREAD"
	ActionValueDM    ActionType = "SEND_VALUE_DM"
)

// AllActionTypes lists every selectable action type.
var AllActionTypes = []ActionType{
	ActionPostProposal, ActionReplyMentions, ActionSearchEngage, ActionRest,
}

// PostKind distinguishes the published content variants.
type PostKind string

const (
	KindProposal PostKind = "proposal"
	KindReply    PostKind = "reply"
	KindQuote    PostKind = "quote"
	KindThread   PostKind = "thread"
	KindDM       PostKind = "dm"
	KindCalming  PostKind = "calming"
)

// ArmSelection is the per-dimension arm choice attached to a decision.
type ArmSelection struct {
	Topic      string `json:"topic"`
	Intensity  int    `json:"intensity"`
	CTAVariant string `json:"cta_variant"`
	PostFormat string `json:"post_format"`
	Hour       int    `json:"hour"`
}

// Decision is the selector output for one cycle.
type Decision struct {
	Action       ActionType   `json:"action"`
	Arms         ArmSelection `json:"arms"`
	Score        float64      `json:"score"`
	SampledProb  float64      `json:"sampled_prob"`
	Deliberation string       `json:"deliberation"`
	NextCheckMin int          `json:"next_check_min"`
	DecidedAt    time.Time    `json:"decided_at"`
}

// Engagement holds raw interaction counts for one post.
type Engagement struct {
	Likes   int `json:"likes"`
	Reposts int `json:"reposts"`
	Replies int `json:"replies"`
	Quotes  int `json:"quotes"`
	Clicks  int `json:"clicks"`
}

// Post is a persisted published post with its measured outcomes.
type Post struct {
	ID          int64      `json:"id"`
	Platform    string     `json:"platform"`
	PlatformID  string     `json:"platform_id"`
	Kind        PostKind   `json:"kind"`
	Text        string     `json:"text"`
	TextHash    string     `json:"text_hash"`
	Topic       string     `json:"topic"`
	Intensity   int        `json:"intensity"`
	CTAVariant  string     `json:"cta_variant"`
	InReplyTo   string     `json:"in_reply_to,omitempty"`
	DryRun      bool       `json:"dry_run"`
	Engagement  Engagement `json:"engagement"`
	AuthorityHits int      `json:"authority_hits"`
	PenaltyScore  float64  `json:"penalty_score"`
	JScore      *float64   `json:"j_score,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Action is one recorded agent action (posting or otherwise).
type Action struct {
	ID        int64      `json:"id"`
	Type      ActionType `json:"type"`
	Kind      PostKind   `json:"kind,omitempty"`
	Target    string     `json:"target,omitempty"`
	Text      string     `json:"text,omitempty"`
	DMCopy    string     `json:"dm_copy,omitempty"`
	Arms      ArmSelection `json:"arms"`
	Result    string     `json:"result"` // published, rejected, dry_run, failed, rest
	Detail    string     `json:"detail,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Receipt is proof that a write reached (or would have reached) a platform.
type Receipt struct {
	Platform  string            `json:"platform"`
	PostID    string            `json:"post_id"`
	DryRun    bool              `json:"dry_run"`
	Meta      map[string]string `json:"meta,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// RemotePost is an inbound post observed during perception (mention,
// timeline item, or search hit).
type RemotePost struct {
	ID          string    `json:"id"`
	AuthorID    string    `json:"author_id"`
	Username    string    `json:"username"`
	Text        string    `json:"text"`
	Followers   int       `json:"followers"`
	Verified    bool      `json:"verified"`
	Engagement  int       `json:"engagement"`
	CreatedAt   time.Time `json:"created_at"`
}

// Trend is a trending topic observed during perception.
type Trend struct {
	Name   string `json:"name"`
	Volume int    `json:"volume"`
}

// SensedEvent is one persisted perception snapshot.
type SensedEvent struct {
	ID        int64          `json:"id"`
	Source    string         `json:"source"`
	Counts    map[string]int `json:"counts"`
	Payload   string         `json:"payload"` // JSON blob
	CreatedAt time.Time      `json:"created_at"`
}

// OutcomeKind tags a structured outcome extracted from engagement.
type OutcomeKind string

const (
	OutcomePilotAccepted OutcomeKind = "pilot_accepted"
	OutcomeArtifactFork  OutcomeKind = "artifact_fork"
	OutcomePartnerIntro  OutcomeKind = "partner_intro"
	OutcomeCitation      OutcomeKind = "citation"
	OutcomeHelpfulReply  OutcomeKind = "helpful_reply"
)

// StructuredOutcome is a mission-relevant outcome tied to a post.
type StructuredOutcome struct {
	ID        int64       `json:"id"`
	PostID    int64       `json:"post_id"`
	Kind      OutcomeKind `json:"kind"`
	Detail    string      `json:"detail"`
	CreatedAt time.Time   `json:"created_at"`
}

// Redirect is a tracked short link.
type Redirect struct {
	ID        string    `json:"id"`
	TargetURL string    `json:"target_url"`
	Clicks    int       `json:"clicks"`
	CreatedAt time.Time `json:"created_at"`
}

// FollowersSnapshot is one daily follower count sample.
type FollowersSnapshot struct {
	ID        int64     `json:"id"`
	Platform  string    `json:"platform"`
	Count     int       `json:"count"`
	CreatedAt time.Time `json:"created_at"`
}

// ImprovementNote is one entry in the agent's self-improvement memory.
type ImprovementNote struct {
	ID        int64     `json:"id"`
	Source    string    `json:"source"` // reflection, feedback, planner, operator
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// KPISnapshot is one value of one KPI series at rollup time.
type KPISnapshot struct {
	ID        int64     `json:"id"`
	Series    string    `json:"series"`
	Value     float64   `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// KPI series names.
const (
	KPIFameScore       = "fame_score"
	KPIRevenueDaily    = "revenue_daily"
	KPIAuthoritySignals = "authority_signals"
	KPIPenaltyScore    = "penalty_score"
	KPIEngagementRate  = "engagement_rate"
	KPIFollowerGrowth  = "follower_growth"
	KPIPostFrequency   = "post_frequency"
	KPIObjectiveScore  = "objective_score"
)

// AllKPISeries lists every tracked KPI series.
var AllKPISeries = []string{
	KPIFameScore, KPIRevenueDaily, KPIAuthoritySignals, KPIPenaltyScore,
	KPIEngagementRate, KPIFollowerGrowth, KPIPostFrequency, KPIObjectiveScore,
}

// ArmLogEntry is one bandit arm pull with its recorded reward.
type ArmLogEntry struct {
	ID        int64     `json:"id"`
	Dimension string    `json:"dimension"`
	Arm       string    `json:"arm"`
	Reward    float64   `json:"reward"`
	Sampled   float64   `json:"sampled_prob"`
	CreatedAt time.Time `json:"created_at"`
}

// PersonaVersionRecord is one saved persona version.
type PersonaVersionRecord struct {
	Version   int       `json:"version"`
	Hash      string    `json:"hash"`
	Body      string    `json:"body"` // JSON document
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DMLogEntry records one outbound direct message.
type DMLogEntry struct {
	ID        int64     `json:"id"`
	Platform  string    `json:"platform"`
	Recipient string    `json:"recipient"`
	Text      string    `json:"text"`
	DryRun    bool      `json:"dry_run"`
	CreatedAt time.Time `json:"created_at"`
}

// Voice is one whitelisted account the agent follows closely.
type Voice struct {
	Username        string  `yaml:"username" json:"username"`
	Platform        string  `yaml:"platform" json:"platform"`
	AuthorityWeight float64 `yaml:"authority_weight" json:"authority_weight"`
	Notes           string  `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// CrisisInput is the per-cycle signal sample fed to the crisis monitor.
type CrisisInput struct {
	Sentiment float64 `json:"sentiment"` // mean sentiment in [-1,1]
	Velocity  float64 `json:"velocity"`  // mention volume
	Authority float64 `json:"authority"` // max authority hint
}
