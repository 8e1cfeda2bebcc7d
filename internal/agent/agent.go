// Package agent wires the full perceive-decide-generate-publish-measure
// loop: it owns every subsystem, registers the recurring jobs on the
// scheduler, and supervises them until shutdown.
package agent

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"tribune/internal/analytics"
	"tribune/internal/bandit"
	"tribune/internal/config"
	"tribune/internal/crisis"
	"tribune/internal/gates"
	"tribune/internal/generator"
	"tribune/internal/llm"
	"tribune/internal/logging"
	"tribune/internal/perception"
	"tribune/internal/persona"
	"tribune/internal/publish"
	"tribune/internal/scheduler"
	"tribune/internal/selector"
	"tribune/internal/store"
	"tribune/internal/types"
)

// Agent owns all subsystems and the job schedule.
type Agent struct {
	cfg        *config.Config
	store      *store.Store
	persona    *persona.FileStore
	gen        *generator.Generator
	crisis     *crisis.Service
	analytics  *analytics.Service
	selector   *selector.Selector
	optimizer  *bandit.Optimizer
	perception *perception.Service
	mux        *publish.Multiplexer
	x          *publish.XClient
	sched      *scheduler.Scheduler

	mu  sync.Mutex
	rng *rand.Rand
}

// New wires every subsystem from configuration.
func New(cfg *config.Config) (*Agent, error) {
	st, err := store.Open(cfg.Store.DatabasePath)
	if err != nil {
		return nil, err
	}

	personaStore, err := persona.NewFileStore(cfg.Persona.FilePath, st)
	if err != nil {
		st.Close()
		return nil, err
	}

	var inner llm.Client
	if cfg.LLM.APIKey != "" {
		inner = llm.NewHTTPClient(llm.HTTPConfig{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.GetLLMTimeout(),
		})
	}
	budget := llm.NewBudget(cfg.LLM.MaxCallsPerHour, cfg.LLM.MaxCallsPerDay)
	client := llm.NewBudgetedClient(inner, budget, cfg.LLM.MaxTokens)

	pipeline := gates.NewPipeline(cfg.Evidence.WhitelistSuffixes, cfg.Intensity.RagebaitGuard)
	prompts := &promptSource{persona: personaStore, notes: st}
	gen := generator.New(client, pipeline, st, prompts)

	crisisSvc := crisis.New(crisis.Config{
		SignalThreshold:    cfg.Crisis.SignalThreshold,
		ResumeThreshold:    cfg.CrisisResumeThreshold(),
		SentimentThreshold: cfg.Crisis.SentimentThreshold,
		Keywords:           cfg.Crisis.Keywords,
		CalmingMessage:     cfg.Crisis.CalmingMessage,
	})

	analyticsSvc := analytics.New(st, cfg)
	optimizer := bandit.NewOptimizer(st, cfg.Selector.Topics, cfg.Selector.CTAVariants, nil)

	contentMix := func() map[string]float64 {
		if p := personaStore.Current(); p != nil {
			return p.ContentMix
		}
		return nil
	}
	sel := selector.New(cfg, crisisSvc, analyticsSvc, st, optimizer, contentMix, nil)

	xc := publish.NewXClient(cfg)
	mux := publish.NewMultiplexer(cfg, xc,
		publish.NewMastodonClient(cfg), publish.NewLinkedInClient(cfg))

	var source perception.XSource
	if cfg.Platforms.X.Enabled && cfg.Platforms.X.Token != "" {
		source = xc
	}
	perc, err := perception.New(cfg.Perception, st, source)
	if err != nil {
		personaStore.Close()
		st.Close()
		return nil, err
	}

	a := &Agent{
		cfg:        cfg,
		store:      st,
		persona:    personaStore,
		gen:        gen,
		crisis:     crisisSvc,
		analytics:  analyticsSvc,
		selector:   sel,
		optimizer:  optimizer,
		perception: perc,
		mux:        mux,
		x:          xc,
		sched:      scheduler.New(),
		rng:        rand.New(rand.NewSource(rand.Int63())),
	}
	a.registerJobs()
	return a, nil
}

// Run resolves the account identity and supervises the schedule until
// the context is canceled.
func (a *Agent) Run(ctx context.Context) error {
	if a.cfg.Platforms.X.Enabled && a.cfg.Platforms.X.Token != "" {
		if _, handle, followers, err := a.x.Me(ctx); err != nil {
			logging.Boot("Identity lookup failed, continuing without it: %v", err)
		} else {
			logging.Boot("Authenticated as @%s (%d followers)", handle, followers)
			if err := a.store.SaveFollowersSnapshot("x", followers); err != nil {
				logging.Boot("Failed to snapshot followers at boot: %v", err)
			}
		}
	}

	logging.Boot("Agent running: live=%v mode=%s platforms=%v jobs=%d",
		a.cfg.IsLive(), a.cfg.CurrentGoalMode(), a.mux.EnabledPlatforms(), len(a.sched.JobNames()))
	return a.sched.Run(ctx)
}

// Close releases the persona watcher and the database.
func (a *Agent) Close() error {
	err := a.persona.Close()
	if cerr := a.store.Close(); err == nil {
		err = cerr
	}
	return err
}

// Trigger runs a job by name outside its schedule.
func (a *Agent) Trigger(ctx context.Context, name string) bool {
	return a.sched.Trigger(ctx, name)
}

// Config returns the live configuration.
func (a *Agent) Config() *config.Config { return a.cfg }

// Store returns the state store.
func (a *Agent) Store() *store.Store { return a.store }

// Persona returns the persona file store.
func (a *Agent) Persona() *persona.FileStore { return a.persona }

// Crisis returns the crisis monitor.
func (a *Agent) Crisis() *crisis.Service { return a.crisis }

// Analytics returns the analytics service.
func (a *Agent) Analytics() *analytics.Service { return a.analytics }

// Selector returns the action selector.
func (a *Agent) Selector() *selector.Selector { return a.selector }

// Optimizer returns the per-post arm optimizer.
func (a *Agent) Optimizer() *bandit.Optimizer { return a.optimizer }

// Jobs lists the registered job names.
func (a *Agent) Jobs() []string { return a.sched.JobNames() }

func (a *Agent) chance(p float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rng.Float64() < p
}

// promptSource composes the system prompt from the current persona and
// the latest improvement notes.
type promptSource struct {
	persona *persona.FileStore
	notes   noteReader
}

type noteReader interface {
	RecentNotes(limit int) ([]types.ImprovementNote, error)
}

func (p *promptSource) SystemPrompt() string {
	doc := p.persona.Current()
	if doc == nil {
		doc = persona.Default()
	}
	var texts []string
	if notes, err := p.notes.RecentNotes(5); err == nil {
		for _, n := range notes {
			texts = append(texts, n.Text)
		}
	}
	return doc.SystemPrompt(texts)
}

func (a *Agent) registerJobs() {
	jobs := a.cfg.Jobs

	a.sched.AddInterval("post_proposal", jobs.PostProposal, a.postProposal)
	a.sched.AddInterval("reply_mentions", jobs.ReplyMentions, a.replyMentions)
	a.sched.AddInterval("search_engage", jobs.SearchEngage, a.searchEngage)
	a.sched.AddInterval("post_thread", jobs.PostThread, a.postThread)
	a.sched.AddInterval("value_dm", jobs.ValueDM, a.valueDM)
	a.sched.AddInterval("perception_ingest", jobs.PerceptionIngest, a.perceptionIngest)
	a.sched.AddInterval("crisis_watch", jobs.CrisisWatch, a.crisisWatch)
	a.sched.AddInterval("analytics_pull", jobs.AnalyticsPull, a.analyticsPull)
	a.sched.AddInterval("kpi_rollup", jobs.KPIRollup, a.kpiRollup)

	a.sched.AddDaily("follower_snapshot", jobs.FollowerSnapshotHour, a.followerSnapshot)
	a.sched.AddDaily("nightly_reflection", jobs.NightlyReflectionHour, a.nightlyReflection)
	a.sched.AddWeekly("weekly_plan", time.Sunday, jobs.WeeklyPlanHour, a.weeklyPlan)
}
