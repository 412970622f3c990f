package statesync

import (
	"fmt"
	"time"

	"payquest/config"
	"payquest/internal/core/domain"

	"github.com/shopspring/decimal"
)

const (
	entityWallet       = "wallet"
	entityAchievements = "achievements"
)

// Options tunes both state managers.
type Options struct {
	DebounceWindow  time.Duration
	RemoteTimeout   time.Duration
	NotificationTTL time.Duration
	SeedBalance     decimal.Decimal
	Location        *time.Location
}

// DefaultOptions mirrors the config defaults.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  time.Second,
		RemoteTimeout:   10 * time.Second,
		NotificationTTL: 5 * time.Second,
		SeedBalance:     domain.DefaultSeedBalance,
		Location:        time.Local,
	}
}

// OptionsFromConfig builds Options from the sync config section.
func OptionsFromConfig(cfg config.SyncConfig) (Options, error) {
	opts := DefaultOptions()
	if cfg.DebounceWindow > 0 {
		opts.DebounceWindow = cfg.DebounceWindow
	}
	if cfg.RemoteTimeout > 0 {
		opts.RemoteTimeout = cfg.RemoteTimeout
	}
	if cfg.NotificationTTL > 0 {
		opts.NotificationTTL = cfg.NotificationTTL
	}
	if cfg.DefaultBalance != "" {
		seed, err := decimal.NewFromString(cfg.DefaultBalance)
		if err != nil {
			return Options{}, fmt.Errorf("parsing sync.default_balance: %w", err)
		}
		if seed.IsNegative() {
			return Options{}, fmt.Errorf("sync.default_balance must not be negative")
		}
		opts.SeedBalance = seed
	}
	loc, err := cfg.Location()
	if err != nil {
		return Options{}, err
	}
	opts.Location = loc
	return opts, nil
}
