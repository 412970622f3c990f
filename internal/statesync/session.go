package statesync

import (
	"context"
	"regexp"

	"payquest/internal/core/domain"
	"payquest/internal/core/ports"
	"payquest/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	// device-wide preferences, independent of who is signed in
	deviceScope = "device"

	rewardDescription  = "Streak reward"
	rewardCounterparty = "PayQuest"
)

var languageRe = regexp.MustCompile(`^[a-z]{2,3}(-[A-Z]{2})?$`)

// RewardClaimed is emitted when a money streak reward must be credited.
type RewardClaimed struct {
	Reward domain.StreakReward
}

// Session wires one WalletManager and one AchievementManager to a single
// identity and carries the events that cross between them.
type Session struct {
	identity     ports.IdentityProvider
	cache        ports.LocalCache
	wallet       *WalletManager
	achievements *AchievementManager
	language     string
	log          zerolog.Logger
}

// NewSession creates a session. defaultLanguage is used until one is selected.
func NewSession(
	identity ports.IdentityProvider,
	cache ports.LocalCache,
	wallet *WalletManager,
	achievements *AchievementManager,
	defaultLanguage string,
	log zerolog.Logger,
) *Session {
	if defaultLanguage == "" {
		defaultLanguage = "en"
	}
	return &Session{
		identity:     identity,
		cache:        cache,
		wallet:       wallet,
		achievements: achievements,
		language:     defaultLanguage,
		log:          log,
	}
}

// Wallet returns the wallet manager.
func (s *Session) Wallet() *WalletManager { return s.wallet }

// Achievements returns the achievement manager.
func (s *Session) Achievements() *AchievementManager { return s.achievements }

// Start loads both managers for the current identity.
func (s *Session) Start(ctx context.Context) {
	s.reload(ctx)
}

// SignIn flushes the current owner's pending writes, switches identity and reloads.
func (s *Session) SignIn(ctx context.Context, token string) (domain.Identity, error) {
	s.flush()
	id, err := s.identity.SignIn(ctx, token)
	if err != nil {
		return domain.Identity{}, err
	}
	s.reload(ctx)
	return id, nil
}

// SignOut flushes pending writes and reloads as a guest.
func (s *Session) SignOut(ctx context.Context) error {
	s.flush()
	if err := s.identity.SignOut(ctx); err != nil {
		return err
	}
	s.reload(ctx)
	return nil
}

func (s *Session) reload(ctx context.Context) {
	s.wallet.Load(ctx)
	s.achievements.Load(ctx)
	s.log.Info().Str("user_id", s.identity.Current().Scope()).Msg("session loaded")
}

func (s *Session) flush() {
	s.wallet.Flush()
	s.achievements.Flush()
}

// Debit records a payment and counts it toward achievements.
func (s *Session) Debit(ctx context.Context, amount decimal.Decimal, description, counterparty string) (domain.Transaction, error) {
	tx, err := s.wallet.Debit(ctx, amount, description, counterparty)
	if err != nil {
		return tx, err
	}
	s.countTransaction(ctx)
	return tx, nil
}

// Credit records incoming money and counts it toward achievements.
func (s *Session) Credit(ctx context.Context, amount decimal.Decimal, description, counterparty string) (domain.Transaction, error) {
	tx, err := s.wallet.Credit(ctx, amount, description, counterparty)
	if err != nil {
		return tx, err
	}
	s.countTransaction(ctx)
	return tx, nil
}

// Transfer pays a registered user and counts it toward achievements.
func (s *Session) Transfer(ctx context.Context, recipient domain.Contact, amount decimal.Decimal) (domain.Transaction, error) {
	if !recipient.IsUser() {
		return domain.Transaction{}, apperror.Validation("contact is not a registered user")
	}
	tx, err := s.wallet.TransferToRegisteredUser(ctx, *recipient.LinkedUserID, recipient.Name, amount)
	if err != nil {
		return tx, err
	}
	s.countTransaction(ctx)
	return tx, nil
}

func (s *Session) countTransaction(ctx context.Context) {
	if err := s.achievements.IncrementStat(ctx, domain.StatTotalTransactions, 1); err != nil {
		s.log.Warn().Err(err).Msg("counting transaction")
	}
}

// ClaimStreakReward claims the pending streak reward. Money rewards are
// credited to the wallet.
func (s *Session) ClaimStreakReward(ctx context.Context) (domain.StreakReward, error) {
	reward, err := s.achievements.ClaimStreakReward(ctx)
	if err != nil {
		return domain.StreakReward{}, err
	}
	if reward.Kind == domain.RewardKindMoney {
		if err := s.handle(ctx, RewardClaimed{Reward: reward}); err != nil {
			return reward, err
		}
	}
	return reward, nil
}

func (s *Session) handle(ctx context.Context, ev any) error {
	switch e := ev.(type) {
	case RewardClaimed:
		_, err := s.wallet.Credit(ctx, decimal.NewFromInt(e.Reward.Amount), rewardDescription, rewardCounterparty)
		if err != nil {
			s.log.Error().Err(err).Str("reward_id", e.Reward.ID.String()).Msg("crediting streak reward")
		}
		return err
	default:
		return nil
	}
}

// Language returns the selected interface language.
func (s *Session) Language(ctx context.Context) string {
	var lang string
	ok, err := s.cache.Load(ctx, deviceScope, ports.KeySelectedLanguage, &lang)
	if err != nil {
		s.log.Warn().Err(err).Msg("reading selected language")
	}
	if !ok || lang == "" {
		return s.language
	}
	return lang
}

// SetLanguage stores the selected interface language, e.g. "en" or "hi".
func (s *Session) SetLanguage(ctx context.Context, lang string) error {
	if !languageRe.MatchString(lang) {
		return apperror.Validation("invalid language code")
	}
	if err := s.cache.Store(ctx, deviceScope, ports.KeySelectedLanguage, lang); err != nil {
		return apperror.InternalError(err)
	}
	return nil
}

// Close flushes both managers.
func (s *Session) Close() {
	s.wallet.Close()
	s.achievements.Close()
}
