package agent

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tribune/internal/analytics"
	"tribune/internal/bandit"
	"tribune/internal/crisis"
	"tribune/internal/gates"
	"tribune/internal/generator"
	"tribune/internal/logging"
	"tribune/internal/publish"
	"tribune/internal/types"
)

// maxRepliesPerTick caps how many mentions one reply tick answers.
const maxRepliesPerTick = 3

// Engagement probabilities for relevant search hits.
const (
	likeChance  = 0.8
	boostChance = 0.3
	quoteChance = 0.2
)

// minRelevance is the score a search hit needs before the agent engages.
const minRelevance = 4

// postProposal runs one decision cycle and publishes a proposal when the
// selector picks one.
func (a *Agent) postProposal(ctx context.Context) error {
	decision := a.selector.NextAction()
	if decision.Action == types.ActionRest {
		_, err := a.store.SaveAction(&types.Action{
			Type:   types.ActionRest,
			Result: "rest",
			Detail: decision.Deliberation,
		})
		return err
	}
	if decision.Action != types.ActionPostProposal {
		logging.SelectorDebug("Proposal tick resolved to %s, deferring to its job", decision.Action)
		return nil
	}

	topic := decision.Arms.Topic
	if topic == "" {
		topic = a.selector.PickTopic()
		decision.Arms.Topic = topic
	}
	intensity := decision.Arms.Intensity

	text, err := a.gen.MakeProposal(ctx, topic, decision.Arms.CTAVariant, intensity)
	if err != nil {
		return a.recordRejection(types.ActionPostProposal, types.KindProposal, decision.Arms, err)
	}

	receipts, err := a.mux.Publish(ctx, &publish.Request{
		Text:           text,
		Kind:           types.KindProposal,
		Intensity:      intensity,
		IdempotencyKey: generator.TextHash(text),
	})
	if err != nil {
		_, _ = a.store.SaveAction(&types.Action{
			Type: types.ActionPostProposal, Kind: types.KindProposal,
			Arms: decision.Arms, Result: "failed", Detail: err.Error(),
		})
		return err
	}

	live := a.savePosts(receipts, types.KindProposal, text, "", decision.Arms, decision.SampledProb, true)
	if live {
		a.selector.RecordIntensity(types.ActionPostProposal, intensity)
	}
	_, err = a.store.SaveAction(&types.Action{
		Type: types.ActionPostProposal, Kind: types.KindProposal,
		Text: text, Arms: decision.Arms,
		Result: resultFor(live), Detail: "proposal_posted",
	})
	logging.Publish("Proposal posted: topic=%s intensity=%d live=%v", topic, intensity, live)
	return err
}

// replyMentions answers the freshest inbound mentions, at most a few
// per tick, skipping anything that reads like a crisis.
func (a *Agent) replyMentions(ctx context.Context) error {
	if !a.crisis.Guard(types.ActionReplyMentions) {
		logging.Selector("Crisis active, skipping mention replies")
		return nil
	}
	if a.cfg.InQuietHours(time.Now()) {
		return nil
	}

	mentions := a.perception.LastMentions()
	if len(mentions) == 0 {
		return nil
	}
	if len(mentions) > maxRepliesPerTick {
		mentions = mentions[:maxRepliesPerTick]
	}

	intensity := a.selector.NextIntensity(types.ActionReplyMentions)
	replied := 0
	for _, m := range mentions {
		if m.ID == "" || m.Text == "" {
			continue
		}
		if a.crisis.IsCrisisText(m.Text) {
			logging.Crisis("Mention %s reads as crisis material, not replying", m.ID)
			continue
		}

		original := m.Text
		if m.Username != "" {
			original = "@" + m.Username + ": " + m.Text
		}
		text, err := a.gen.MakeReply(ctx, original, intensity)
		if err != nil {
			if rerr := a.recordRejection(types.ActionReplyMentions, types.KindReply, types.ArmSelection{Intensity: intensity}, err); rerr != nil {
				return rerr
			}
			continue
		}

		receipts, err := a.mux.Publish(ctx, &publish.Request{
			Text:           text,
			Kind:           types.KindReply,
			InReplyTo:      m.ID,
			Intensity:      intensity,
			IdempotencyKey: generator.TextHash(text) + m.ID,
		})
		if err != nil {
			logging.Publish("Reply to %s failed: %v", m.ID, err)
			continue
		}

		arms := types.ArmSelection{Intensity: intensity}
		live := a.savePosts(receipts, types.KindReply, text, m.ID, arms, 0, false)
		_, _ = a.store.SaveAction(&types.Action{
			Type: types.ActionReplyMentions, Kind: types.KindReply,
			Target: m.ID, Text: text, Arms: arms,
			Result: resultFor(live), Detail: "replied_to_mention",
		})
		replied++
	}
	if replied > 0 {
		a.selector.RecordIntensity(types.ActionReplyMentions, intensity)
		logging.Publish("Replied to %d mentions", replied)
	}
	return nil
}

// searchEngage searches the tracked keywords and engages with relevant
// hits: likes often, boosts sometimes, quotes occasionally.
func (a *Agent) searchEngage(ctx context.Context) error {
	if !a.crisis.Guard(types.ActionSearchEngage) {
		logging.Selector("Crisis active, skipping search engagement")
		return nil
	}
	if a.cfg.InQuietHours(time.Now()) {
		return nil
	}
	if !a.cfg.Platforms.X.Enabled || a.cfg.Platforms.X.Token == "" {
		return nil
	}

	terms := a.cfg.Perception.Keywords
	if len(terms) == 0 {
		return nil
	}

	intensity := a.selector.NextIntensity(types.ActionSearchEngage)
	engaged := 0
	for _, term := range terms {
		hits, err := a.x.SearchRecent(ctx, term, 10)
		if err != nil {
			logging.Perception("Search %q failed: %v", term, err)
			continue
		}
		for _, hit := range hits {
			score := relevance(term, hit.Text)
			if score < minRelevance {
				continue
			}
			actions := a.engageWith(ctx, term, hit, intensity)
			if actions == "" {
				continue
			}
			_, _ = a.store.SaveAction(&types.Action{
				Type:   types.ActionSearchEngage,
				Target: hit.ID,
				Result: "engaged",
				Detail: fmt.Sprintf("term=%s score=%d actions=%s", term, score, actions),
			})
			engaged++
		}
	}
	if engaged > 0 {
		a.selector.RecordIntensity(types.ActionSearchEngage, intensity)
		logging.Publish("Engaged with %d search hits", engaged)
	}
	return nil
}

// engageWith applies the probabilistic like/boost/quote mix to one hit
// and returns a summary of what happened.
func (a *Agent) engageWith(ctx context.Context, term string, hit types.RemotePost, intensity int) string {
	var actions []string

	if a.cfg.Platforms.EnableLikes && a.chance(likeChance) {
		if _, err := a.x.Like(ctx, hit.ID); err != nil {
			logging.Publish("Like of %s failed: %v", hit.ID, err)
		} else {
			actions = append(actions, "like")
		}
	}
	if a.cfg.Platforms.EnableReposts && a.chance(boostChance) {
		if _, err := a.x.Repost(ctx, hit.ID); err != nil {
			logging.Publish("Repost of %s failed: %v", hit.ID, err)
		} else {
			actions = append(actions, "repost")
		}
	}
	if a.chance(quoteChance) {
		text, err := a.gen.MakeQuote(ctx, hit.Text, term, intensity)
		if err != nil {
			logging.GeneratorDebug("Quote draft for %s rejected: %v", hit.ID, err)
		} else {
			receipts, err := a.mux.Publish(ctx, &publish.Request{
				Text:           text,
				Kind:           types.KindQuote,
				QuoteTo:        hit.ID,
				Intensity:      intensity,
				IdempotencyKey: generator.TextHash(text) + hit.ID,
			})
			if err != nil {
				logging.Publish("Quote of %s failed: %v", hit.ID, err)
			} else {
				arms := types.ArmSelection{Topic: term, Intensity: intensity}
				a.savePosts(receipts, types.KindQuote, text, "", arms, 0, false)
				actions = append(actions, "quote")
			}
		}
	}
	return strings.Join(actions, "+")
}

// relatedKeywords broadens term matching during relevance scoring.
var relatedKeywords = map[string][]string{
	"mechanisms":   {"system", "process", "framework", "structure"},
	"coordination": {"collaborate", "organize", "align", "sync"},
	"energy":       {"power", "fuel", "renewable", "efficiency"},
	"policy":       {"regulation", "law", "governance", "rule"},
}

// relevance scores a search hit for one term on a 0-10 scale.
func relevance(term, text string) int {
	lower := strings.ToLower(text)
	lowerTerm := strings.ToLower(term)

	score := 0
	if strings.Contains(lower, lowerTerm) {
		score += 3
	}
	for group, words := range relatedKeywords {
		if !strings.Contains(lowerTerm, group) {
			continue
		}
		for _, w := range words {
			if strings.Contains(lower, w) {
				score++
			}
		}
	}
	if strings.Contains(text, "?") {
		score++
	}
	if len(text) > 100 {
		score++
	}
	if score > 10 {
		score = 10
	}
	return score
}

// postThread publishes a multi-post thread, chaining each segment onto
// the previous one.
func (a *Agent) postThread(ctx context.Context) error {
	if !a.crisis.Guard(types.ActionPostProposal) {
		logging.Selector("Crisis active, skipping thread")
		return nil
	}
	if a.cfg.InQuietHours(time.Now()) {
		return nil
	}

	topic := a.selector.PickTopic()
	intensity := a.selector.NextIntensity(types.ActionPostProposal)
	arms := types.ArmSelection{
		Topic:      topic,
		Intensity:  intensity,
		PostFormat: "thread",
		Hour:       time.Now().Hour(),
	}

	thread, err := a.gen.MakeThread(ctx, topic, intensity)
	if err != nil {
		return a.recordRejection(types.ActionPostThread, types.KindThread, arms, err)
	}

	prev := ""
	anyLive := false
	for i, seg := range thread.Posts {
		receipts, err := a.mux.Publish(ctx, &publish.Request{
			Text:           seg.Text,
			Kind:           types.KindThread,
			InReplyTo:      prev,
			Intensity:      intensity,
			IdempotencyKey: generator.TextHash(seg.Text),
		})
		if err != nil {
			logging.Publish("Thread segment %d failed, stopping chain: %v", i, err)
			break
		}
		// Arms are attributed to the root segment only.
		live := a.savePosts(receipts, types.KindThread, seg.Text, prev, arms, 0.5, i == 0)
		anyLive = anyLive || live
		prev = chainID(receipts)
	}

	if anyLive {
		a.selector.RecordIntensity(types.ActionPostProposal, intensity)
	}
	_, err = a.store.SaveAction(&types.Action{
		Type: types.ActionPostThread, Kind: types.KindThread,
		Arms: arms, Result: resultFor(anyLive),
		Detail: fmt.Sprintf("thread_posted segments=%d", len(thread.Posts)),
	})
	return err
}

// chainID picks the receipt id the next thread segment replies to,
// preferring the X receipt.
func chainID(receipts map[string]types.Receipt) string {
	if r, ok := receipts["x"]; ok {
		return r.PostID
	}
	for _, r := range receipts {
		return r.PostID
	}
	return ""
}

// valueDM sends one value-first direct message to a high-authority voice
// not contacted in the last day.
func (a *Agent) valueDM(ctx context.Context) error {
	if !a.crisis.Guard(types.ActionPostProposal) {
		logging.Selector("Crisis active, skipping DMs")
		return nil
	}
	if !a.cfg.Platforms.EnableDMs {
		return nil
	}
	if !a.cfg.Platforms.X.Enabled || a.cfg.Platforms.X.Token == "" {
		return nil
	}

	voices := a.perception.PriorityVoices(0.75, 10)
	target, ok := a.selector.PickDMTarget(voices)
	if !ok {
		logging.SelectorDebug("No eligible DM target this tick")
		return nil
	}

	copyText, err := a.gen.MakeDMCopy(ctx, target.Username, target.Notes)
	if err != nil {
		return a.recordRejection(types.ActionValueDM, types.KindDM, types.ArmSelection{}, err)
	}

	recipientID, err := a.x.UserByUsername(ctx, target.Username)
	if err != nil {
		logging.Publish("DM target %s could not be resolved: %v", target.Username, err)
		return nil
	}
	receipt, err := a.x.SendDM(ctx, recipientID, copyText)
	if err != nil {
		logging.Publish("DM to %s failed: %v", target.Username, err)
		return err
	}

	if err := a.store.SaveDM("x", target.Username, copyText, receipt.DryRun); err != nil {
		return err
	}
	_, err = a.store.SaveAction(&types.Action{
		Type: types.ActionValueDM, Kind: types.KindDM,
		Target: target.Username, DMCopy: copyText,
		Result: resultFor(!receipt.DryRun), Detail: "value_dm_sent",
	})
	logging.Publish("DM sent to @%s (dry_run=%v)", target.Username, receipt.DryRun)
	return err
}

// perceptionIngest runs one ingest pass, feeds the mentions to the
// crisis monitor, and extracts structured outcomes from them.
func (a *Agent) perceptionIngest(ctx context.Context) error {
	signals, err := a.perception.Ingest(ctx)
	if err != nil {
		return err
	}
	logging.PerceptionDebug("Ingest pass complete, %d signals", signals)

	mentions := a.perception.LastMentions()
	if len(mentions) > 0 {
		a.crisis.EvaluateMentions(ctx, mentions, 0, a.mux)
		a.extractOutcomes(mentions)
	}
	return nil
}

// extractOutcomes scans fresh mentions for mission-relevant outcomes and
// attributes them to the newest published post.
func (a *Agent) extractOutcomes(mentions []types.RemotePost) {
	posts, err := a.store.RecentPosts(time.Now().Add(-7*24*time.Hour), 1)
	if err != nil || len(posts) == 0 {
		return
	}
	anchor := posts[0].ID

	saved := 0
	for _, m := range mentions {
		for _, o := range analytics.ExtractOutcomes(anchor, m.Text) {
			if err := a.store.SaveOutcome(&o); err != nil {
				logging.Analytics("Failed to save outcome: %v", err)
				continue
			}
			saved++
		}
	}
	if saved > 0 {
		logging.Analytics("Extracted %d structured outcomes from mentions", saved)
	}
}

// crisisWatch logs the crisis state each tick.
func (a *Agent) crisisWatch(context.Context) error {
	if a.crisis.Active() {
		logging.Crisis("State: PAUSED (reason=%s signal=%.2f)", a.crisis.Reason(), a.crisis.LastSignal())
	} else {
		logging.Crisis("State: NORMAL (signal=%.2f)", a.crisis.LastSignal())
	}
	return nil
}

// analyticsPull refreshes engagement for recent posts, scores them,
// feeds rewards back to the bandits, and refreshes the crisis signal.
func (a *Agent) analyticsPull(ctx context.Context) error {
	measured := 0
	if a.cfg.Platforms.X.Enabled && a.cfg.Platforms.X.Token != "" {
		var err error
		measured, err = a.pullEngagement(ctx)
		if err != nil {
			logging.Analytics("Engagement pull failed: %v", err)
		}
	}

	scored, err := a.analytics.ScorePosts(func(p *types.Post, reward float64) {
		a.selector.RecordOutcome(actionForKind(p.Kind), reward)
	})
	if err != nil {
		return err
	}

	if rewards, err := a.analytics.RecentJScores(7, 100); err == nil && len(rewards) > 0 {
		a.optimizer.UpdateRewardHistory(rewards)
	}

	mentions := a.perception.LastMentions()
	if len(mentions) > 0 {
		texts := make([]string, 0, len(mentions))
		for _, m := range mentions {
			if m.Text != "" {
				texts = append(texts, m.Text)
			}
		}
		a.crisis.UpdateMetrics(ctx, "analytics", types.CrisisInput{
			Sentiment: crisis.MeanSentiment(texts),
			Velocity:  float64(len(texts)),
			Authority: crisis.EstimateAuthority(mentions),
		}, a.mux)
	}

	logging.Analytics("Analytics pull complete: %d posts measured, %d scored", measured, scored)
	return nil
}

// pullEngagement fetches fresh engagement counts for recent live posts.
// Click counts come from the redirect table, not the platform.
func (a *Agent) pullEngagement(ctx context.Context) (int, error) {
	posts, err := a.store.RecentPosts(time.Now().Add(-3*24*time.Hour), 100)
	if err != nil {
		return 0, err
	}

	byPlatformID := make(map[string]types.Post)
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		if p.DryRun || p.Platform != "x" || p.PlatformID == "" {
			continue
		}
		byPlatformID[p.PlatformID] = p
		ids = append(ids, p.PlatformID)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	metrics, err := a.x.MetricsFor(ctx, ids)
	if err != nil {
		return 0, err
	}

	updated := 0
	for platformID, e := range metrics {
		p, ok := byPlatformID[platformID]
		if !ok {
			continue
		}
		e.Clicks = p.Engagement.Clicks
		if err := a.store.UpdateEngagement(p.ID, e); err != nil {
			logging.Analytics("Failed to update engagement for post %d: %v", p.ID, err)
			continue
		}
		updated++
	}
	return updated, nil
}

// kpiRollup snapshots every KPI series.
func (a *Agent) kpiRollup(context.Context) error {
	return a.analytics.RollupKPIs()
}

// followerSnapshot records the daily follower count.
func (a *Agent) followerSnapshot(ctx context.Context) error {
	if !a.cfg.Platforms.X.Enabled || a.cfg.Platforms.X.Token == "" {
		return nil
	}
	_, _, followers, err := a.x.Me(ctx)
	if err != nil {
		return err
	}
	return a.store.SaveFollowersSnapshot("x", followers)
}

// nightlyReflection writes the reflection and feedback notes.
func (a *Agent) nightlyReflection(context.Context) error {
	note, err := a.analytics.Reflect()
	if err != nil {
		return err
	}
	logging.Analytics("Reflection: %s", note)

	feedback, err := a.analytics.DailyFeedback()
	if err != nil {
		return err
	}
	logging.Analytics("Feedback: %s", feedback)
	return nil
}

// weeklyPlan produces the weekly plan note.
func (a *Agent) weeklyPlan(context.Context) error {
	plan, err := a.analytics.CreateWeeklyPlan()
	if err != nil {
		return err
	}
	logging.Analytics("Weekly plan: focus=%s priorities=%d okr_progress=%.0f%%",
		plan.Focus, len(plan.Priorities), plan.OKRProgress)
	return nil
}

// savePosts persists one post row per receipt. Arm selections are logged
// for live posts only, so every logged selection eventually gets a reward.
func (a *Agent) savePosts(receipts map[string]types.Receipt, kind types.PostKind,
	text, inReplyTo string, arms types.ArmSelection, sampledProb float64, logArms bool) bool {

	hash := generator.TextHash(text)
	anyLive := false
	for platform, r := range receipts {
		post := &types.Post{
			Platform:   platform,
			PlatformID: r.PostID,
			Kind:       kind,
			Text:       text,
			TextHash:   hash,
			Topic:      arms.Topic,
			Intensity:  arms.Intensity,
			CTAVariant: arms.CTAVariant,
			InReplyTo:  inReplyTo,
			DryRun:     r.DryRun,
		}
		id, err := a.store.SavePost(post)
		if err != nil {
			logging.Store("Failed to save post on %s: %v", platform, err)
			continue
		}
		if r.DryRun {
			continue
		}
		anyLive = true
		if logArms {
			a.logArmSelections(id, kind, arms, sampledProb)
		}
	}
	return anyLive
}

func (a *Agent) logArmSelections(postID int64, kind types.PostKind,
	arms types.ArmSelection, sampledProb float64) {

	format := arms.PostFormat
	if format == "" {
		format = string(kind)
	}
	pulls := map[string]string{
		bandit.DimPostType:   format,
		bandit.DimTopic:      arms.Topic,
		bandit.DimHourBin:    strconv.Itoa(arms.Hour),
		bandit.DimCTAVariant: arms.CTAVariant,
	}
	for dimension, arm := range pulls {
		if arm == "" {
			continue
		}
		if err := a.store.LogArmSelection(postID, dimension, arm, sampledProb); err != nil {
			logging.Bandit("Failed to log %s arm for post %d: %v", dimension, postID, err)
		}
	}
}

// recordRejection logs a gate or duplicate rejection as a completed
// action; unexpected generation errors propagate to the scheduler.
func (a *Agent) recordRejection(action types.ActionType, kind types.PostKind,
	arms types.ArmSelection, err error) error {

	var gateErr *gates.GateError
	rejected := errors.As(err, &gateErr) || errors.Is(err, generator.ErrDuplicateContent)

	result := "failed"
	if rejected {
		result = "rejected"
	}
	if _, serr := a.store.SaveAction(&types.Action{
		Type: action, Kind: kind, Arms: arms,
		Result: result, Detail: err.Error(),
	}); serr != nil {
		return serr
	}
	if rejected {
		logging.Generator("%s draft rejected: %v", kind, err)
		return nil
	}
	return err
}

func actionForKind(kind types.PostKind) types.ActionType {
	switch kind {
	case types.KindReply:
		return types.ActionReplyMentions
	case types.KindQuote:
		return types.ActionSearchEngage
	default:
		return types.ActionPostProposal
	}
}

func resultFor(live bool) string {
	if live {
		return "published"
	}
	return "dry_run"
}
