package statesync

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"payquest/internal/core/domain"
	"payquest/internal/core/ports"
	"payquest/internal/metrics"
	"payquest/pkg/apperror"
	"payquest/pkg/clock"

	"github.com/rs/zerolog"
)

type achievementWrite struct {
	owner    domain.Identity
	stats    domain.Stats
	unlocked []string
}

// AchievementManager owns XP, counters, unlocked achievements and the daily
// streak of the signed-in user. Stats and unlocks are written through to the
// remote store; the streak is device-local.
type AchievementManager struct {
	remote   ports.RemoteStore
	cache    ports.LocalCache
	identity ports.IdentityProvider
	clock    clock.Clock
	opts     Options
	catalog  []Achievement
	rewards  []RewardTemplate
	pick     func(int) int
	log      zerolog.Logger

	mu         sync.Mutex
	owner      domain.Identity
	state      domain.AchievementState
	newly      []Achievement
	newlyGen   uint64
	newlyTimer *time.Timer
	inflight   atomic.Int32
	subMu      sync.Mutex
	subs       map[uint64]func(domain.AchievementState)
	nextSub    uint64
	debouncer  *Debouncer[achievementWrite]
}

// AchievementOption customizes an AchievementManager.
type AchievementOption func(*AchievementManager)

// WithPicker sets the random source used to choose streak rewards.
// pick(n) must return a value in [0, n).
func WithPicker(pick func(int) int) AchievementOption {
	return func(m *AchievementManager) { m.pick = pick }
}

// NewAchievementManager creates an AchievementManager holding default state until Load.
func NewAchievementManager(
	remote ports.RemoteStore,
	cache ports.LocalCache,
	identity ports.IdentityProvider,
	clk clock.Clock,
	opts Options,
	log zerolog.Logger,
	options ...AchievementOption,
) *AchievementManager {
	m := &AchievementManager{
		remote:   remote,
		cache:    cache,
		identity: identity,
		clock:    clk,
		opts:     opts,
		catalog:  DefaultCatalog(),
		rewards:  DefaultRewardTable,
		pick:     rand.IntN,
		log:      log.With().Str("entity", entityAchievements).Logger(),
		state:    defaultAchievementState(),
		subs:     make(map[uint64]func(domain.AchievementState)),
	}
	for _, o := range options {
		o(m)
	}
	if m.opts.Location == nil {
		m.opts.Location = time.Local
	}
	m.debouncer = NewDebouncer(opts.DebounceWindow, m.writeThrough)
	return m
}

func defaultAchievementState() domain.AchievementState {
	return domain.AchievementState{Stats: domain.NewStats(), Unlocked: []string{}}
}

// Load replaces in-memory state with the current identity's state and runs
// the once-per-load streak evaluation.
func (m *AchievementManager) Load(ctx context.Context) {
	id := m.identity.Current()
	// pending writes still belong to the previous owner
	m.debouncer.Flush()

	m.inflight.Add(1)
	st, ok := m.loadRemote(ctx, id)
	m.inflight.Add(-1)

	source := metrics.SourceRemote
	if !ok {
		st, source = m.loadCache(ctx, id.Scope())
	}

	var streak domain.Streak
	if _, err := m.cache.Load(ctx, id.Scope(), ports.KeyStreak, &streak); err != nil {
		m.log.Warn().Err(err).Str("scope", id.Scope()).Msg("reading cached streak")
	}
	st.Streak, _ = EvaluateStreak(streak, m.clock.Now().In(m.opts.Location), m.rewards, m.pick)

	m.mu.Lock()
	m.owner = id
	m.state = st
	m.clearNewlyLocked()
	unlocked := evaluateUnlocks(m.catalog, &m.state)
	m.announceLocked(unlocked)
	m.mirrorLocked(ctx, ports.KeyStats, ports.KeyUnlocked, ports.KeyStreak)
	w, snap := m.writeLocked(), m.state.Clone()
	m.mu.Unlock()

	metrics.RecordSyncLoad(entityAchievements, source)
	m.log.Debug().Str("user_id", id.Scope()).Str("source", source).Int("streak", snap.Streak.CurrentStreak).Msg("achievements loaded")
	m.notify(snap)
	if len(unlocked) > 0 {
		m.debouncer.Schedule(w)
	}
}

func (m *AchievementManager) loadRemote(ctx context.Context, id domain.Identity) (domain.AchievementState, bool) {
	if !id.Authenticated() {
		return domain.AchievementState{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.RemoteTimeout)
	defer cancel()

	rec, err := m.remote.GetOrCreateAchievementStats(ctx, id.UserID)
	if err != nil {
		m.warn(id, "get achievement stats", err)
		return domain.AchievementState{}, false
	}
	st := defaultAchievementState()
	if rec != nil {
		st.Stats = normalizeStats(rec.Stats)
		if rec.Unlocked != nil {
			st.Unlocked = rec.Unlocked
		}
	}
	return st, true
}

func (m *AchievementManager) loadCache(ctx context.Context, scope string) (domain.AchievementState, string) {
	st := defaultAchievementState()

	var stats domain.Stats
	found, err := m.cache.Load(ctx, scope, ports.KeyStats, &stats)
	if err != nil {
		m.log.Warn().Err(err).Str("scope", scope).Msg("reading cached stats")
	}
	if !found {
		return st, metrics.SourceDefault
	}
	st.Stats = normalizeStats(stats)

	var unlocked []string
	if ok, err := m.cache.Load(ctx, scope, ports.KeyUnlocked, &unlocked); err == nil && ok && unlocked != nil {
		st.Unlocked = unlocked
	}
	return st, metrics.SourceCache
}

// IncrementStat bumps a named counter by amount.
func (m *AchievementManager) IncrementStat(ctx context.Context, name string, amount int64) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperror.Validation("stat name is required")
	}
	if amount <= 0 {
		return apperror.ErrInvalidAmount()
	}

	m.mutate(ctx, func(st *domain.AchievementState) {
		st.Stats.Counters[name] += amount
	})
	return nil
}

// AddXP adds amount to total XP directly.
func (m *AchievementManager) AddXP(ctx context.Context, amount int64) error {
	if amount <= 0 {
		return apperror.ErrInvalidAmount()
	}
	m.mutate(ctx, func(st *domain.AchievementState) {
		st.Stats.TotalXP += amount
	})
	return nil
}

// mutate applies fn, re-evaluates unlocks, mirrors and schedules a write.
func (m *AchievementManager) mutate(ctx context.Context, fn func(*domain.AchievementState)) {
	m.mu.Lock()
	fn(&m.state)
	m.announceLocked(evaluateUnlocks(m.catalog, &m.state))
	m.mirrorLocked(ctx, ports.KeyStats, ports.KeyUnlocked)
	w, snap := m.writeLocked(), m.state.Clone()
	m.mu.Unlock()

	m.notify(snap)
	m.debouncer.Schedule(w)
}

// ClaimStreakReward clears the pending reward and returns it. XP rewards are
// added here; crediting a money reward is up to the caller.
func (m *AchievementManager) ClaimStreakReward(ctx context.Context) (domain.StreakReward, error) {
	m.mu.Lock()
	r := m.state.Streak.PendingReward
	if r == nil {
		m.mu.Unlock()
		return domain.StreakReward{}, apperror.ErrNotFound("streak reward")
	}
	reward := *r
	m.state.Streak.PendingReward = nil
	keys := []string{ports.KeyStreak}
	if reward.Kind == domain.RewardKindXP {
		m.state.Stats.TotalXP += reward.Amount
		m.announceLocked(evaluateUnlocks(m.catalog, &m.state))
		keys = append(keys, ports.KeyStats, ports.KeyUnlocked)
	}
	m.mirrorLocked(ctx, keys...)
	w, snap := m.writeLocked(), m.state.Clone()
	m.mu.Unlock()

	m.log.Info().
		Str("user_id", w.owner.Scope()).
		Str("kind", string(reward.Kind)).
		Int64("amount", reward.Amount).
		Int("streak_day", reward.StreakDay).
		Msg("streak reward claimed")

	m.notify(snap)
	if reward.Kind == domain.RewardKindXP {
		m.debouncer.Schedule(w)
	}
	return reward, nil
}

// NewlyUnlocked returns achievements unlocked within the last notification window.
func (m *AchievementManager) NewlyUnlocked() []Achievement {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Achievement(nil), m.newly...)
}

// announceLocked adds unlocks to the notification list and restarts its
// expiry timer. Caller holds mu.
func (m *AchievementManager) announceLocked(unlocked []Achievement) {
	if len(unlocked) == 0 {
		return
	}
	for _, a := range unlocked {
		m.log.Info().Str("user_id", m.owner.Scope()).Str("achievement", a.ID).Int64("xp", a.XP).Msg("achievement unlocked")
	}
	m.newly = append(m.newly, unlocked...)
	if m.newlyTimer != nil {
		m.newlyTimer.Stop()
	}
	m.newlyGen++
	gen := m.newlyGen
	m.newlyTimer = time.AfterFunc(m.opts.NotificationTTL, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.newlyGen == gen {
			m.newly = nil
			m.newlyTimer = nil
		}
	})
}

func (m *AchievementManager) clearNewlyLocked() {
	if m.newlyTimer != nil {
		m.newlyTimer.Stop()
		m.newlyTimer = nil
	}
	m.newlyGen++
	m.newly = nil
}

// Snapshot returns a copy of the current state.
func (m *AchievementManager) Snapshot() domain.AchievementState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// Catalog returns the achievement definitions.
func (m *AchievementManager) Catalog() []Achievement {
	return append([]Achievement(nil), m.catalog...)
}

// Syncing reports whether a remote call is in flight.
func (m *AchievementManager) Syncing() bool {
	return m.inflight.Load() > 0
}

// Subscribe registers fn to receive every new state. Call the returned
// function to unsubscribe.
func (m *AchievementManager) Subscribe(fn func(domain.AchievementState)) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
}

// Flush sends any pending write now. Returns false if nothing was pending.
func (m *AchievementManager) Flush() bool {
	return m.debouncer.Flush()
}

// Close flushes pending writes and stops the notification timer.
func (m *AchievementManager) Close() {
	m.debouncer.Flush()
	m.mu.Lock()
	m.clearNewlyLocked()
	m.mu.Unlock()
}

func (m *AchievementManager) notify(s domain.AchievementState) {
	m.subMu.Lock()
	fns := make([]func(domain.AchievementState), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(s.Clone())
	}
}

func (m *AchievementManager) writeLocked() achievementWrite {
	return achievementWrite{
		owner:    m.owner,
		stats:    m.state.Stats.Clone(),
		unlocked: append([]string(nil), m.state.Unlocked...),
	}
}

func (m *AchievementManager) mirrorLocked(ctx context.Context, keys ...string) {
	scope := m.owner.Scope()
	for _, key := range keys {
		var err error
		switch key {
		case ports.KeyStats:
			err = m.cache.Store(ctx, scope, key, m.state.Stats)
		case ports.KeyUnlocked:
			err = m.cache.Store(ctx, scope, key, m.state.Unlocked)
		case ports.KeyStreak:
			err = m.cache.Store(ctx, scope, key, m.state.Streak)
		}
		if err != nil {
			m.log.Warn().Err(err).Str("scope", scope).Str("key", key).Msg("mirroring to local cache")
		}
	}
}

func (m *AchievementManager) writeThrough(w achievementWrite) {
	if !w.owner.Authenticated() {
		return
	}

	m.inflight.Add(1)
	defer m.inflight.Add(-1)

	ctx, cancel := context.WithTimeout(context.Background(), m.opts.RemoteTimeout)
	defer cancel()

	err := m.remote.UpdateAchievementStats(ctx, w.owner.UserID, w.stats, w.unlocked)
	metrics.RecordSyncWrite(entityAchievements, err)
	if err != nil {
		m.warn(w.owner, "write-through", fmt.Errorf("update achievement stats: %w", err))
		return
	}
	m.log.Debug().
		Str("user_id", w.owner.UserID.String()).
		Int64("total_xp", w.stats.TotalXP).
		Int("unlocked", len(w.unlocked)).
		Msg("achievements synced")
}

func (m *AchievementManager) warn(id domain.Identity, op string, err error) {
	m.log.Warn().Err(err).Str("user_id", id.UserID.String()).Str("op", op).Msg("remote store call failed")
}

func normalizeStats(s domain.Stats) domain.Stats {
	if s.Counters == nil {
		s.Counters = make(map[string]int64)
	}
	return s
}
