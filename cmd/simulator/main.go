// Command simulator drives one client session against a running backend:
// it signs in, spends and refunds, records progress and flushes everything
// through the sync engine.
package main

import (
	"context"
	"fmt"
	"os"

	"payquest/config"
	"payquest/internal/adapter/identity"
	"payquest/internal/adapter/remote"
	redisStorage "payquest/internal/adapter/storage/redis"
	"payquest/internal/core/domain"
	"payquest/internal/service"
	"payquest/internal/statesync"
	"payquest/pkg/clock"
	"payquest/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error().Err(err).Msg("simulation failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	opts, err := statesync.OptionsFromConfig(cfg.Sync)
	if err != nil {
		return err
	}

	// Snapshots are namespaced by sync.cache_namespace on the shared Redis.
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return fmt.Errorf("connecting local cache: %w", err)
	}
	defer rdb.Close()

	cache := redisStorage.NewSnapshotCache(rdb, cfg.Sync.CacheNamespace)
	ids := identity.New(log)
	remoteStore := remote.New(cfg.Client, ids, log)
	hasher := service.NewArgon2HashServiceWithParams(service.PINArgon2Params)
	clk := clock.NewReal()

	wallet := statesync.NewWalletManager(remoteStore, cache, ids, hasher, clk, opts, log)
	achievements := statesync.NewAchievementManager(remoteStore, cache, ids, clk, opts, log)
	session := statesync.NewSession(ids, cache, wallet, achievements, cfg.Client.Language, log)
	defer session.Close()

	if cfg.Client.IdentityToken != "" {
		id, err := session.SignIn(ctx, cfg.Client.IdentityToken)
		if err != nil {
			return fmt.Errorf("signing in: %w", err)
		}
		log.Info().Str("user_id", id.UserID.String()).Str("name", id.Name).Msg("session started")
	} else {
		session.Start(ctx)
		log.Warn().Msg("no client.identity_token set, running as guest (local cache only)")
	}

	return simulate(ctx, session, log)
}

// simulate runs the spend-and-refund scenario on a started session.
func simulate(ctx context.Context, session *statesync.Session, log zerolog.Logger) error {
	wallet, achievements := session.Wallet(), session.Achievements()
	report(log, "loaded", session)

	amount := decimal.NewFromInt(2500)
	if _, err := session.Debit(ctx, amount, "Loan EMI Payment", "Bank"); err != nil {
		return fmt.Errorf("debit: %w", err)
	}
	report(log, "after debit", session)

	if _, err := session.Credit(ctx, amount, "Loan Disbursement", "Bank"); err != nil {
		return fmt.Errorf("credit: %w", err)
	}
	report(log, "after credit", session)

	if err := achievements.IncrementStat(ctx, domain.StatQRScans, 1); err != nil {
		return fmt.Errorf("increment stat: %w", err)
	}

	if !wallet.Snapshot().HasPIN() {
		if err := wallet.SetPIN(ctx, "1234"); err != nil {
			return fmt.Errorf("set pin: %w", err)
		}
	}

	if streak := achievements.Snapshot().Streak; streak.PendingReward != nil {
		reward, err := session.ClaimStreakReward(ctx)
		if err != nil {
			return fmt.Errorf("claim streak reward: %w", err)
		}
		log.Info().Str("kind", string(reward.Kind)).Int64("amount", reward.Amount).Msg("streak reward claimed")
	}

	for _, a := range achievements.NewlyUnlocked() {
		log.Info().Str("achievement", a.ID).Str("title", a.Title).Int64("xp", a.XP).Msg("achievement unlocked")
	}

	wallet.Flush()
	achievements.Flush()
	report(log, "flushed", session)
	return nil
}

func report(log zerolog.Logger, stage string, s *statesync.Session) {
	w := s.Wallet().Snapshot()
	a := s.Achievements().Snapshot()
	log.Info().
		Str("stage", stage).
		Str("balance", w.Balance.String()).
		Int("transactions", len(w.Transactions)).
		Int("contacts", len(w.Contacts)).
		Int64("total_xp", a.Stats.TotalXP).
		Int("unlocked", len(a.Unlocked)).
		Int("streak", a.Streak.CurrentStreak).
		Bool("pending_writes", s.Wallet().HasPendingWrites()).
		Msg("wallet state")
}
