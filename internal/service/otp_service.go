package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"payquest/config"
	"payquest/internal/core/domain"
	"payquest/internal/core/ports"
	"payquest/pkg/apperror"
	"payquest/pkg/clock"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// OTPServiceImpl implements ports.OTPService.
type OTPServiceImpl struct {
	otpRepo     ports.OTPRepository
	profileRepo ports.ProfileRepository
	throttle    ports.OTPThrottle
	sms         ports.SMSSender
	transactor  ports.DBTransactor
	cfg         config.OTPConfig
	clock       clock.Clock
	log         zerolog.Logger
}

// NewOTPService creates a new OTPServiceImpl.
func NewOTPService(
	otpRepo ports.OTPRepository,
	profileRepo ports.ProfileRepository,
	throttle ports.OTPThrottle,
	sms ports.SMSSender,
	transactor ports.DBTransactor,
	cfg config.OTPConfig,
	clk clock.Clock,
	log zerolog.Logger,
) *OTPServiceImpl {
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = 6
	}
	return &OTPServiceImpl{
		otpRepo:     otpRepo,
		profileRepo: profileRepo,
		throttle:    throttle,
		sms:         sms,
		transactor:  transactor,
		cfg:         cfg,
		clock:       clk,
		log:         log,
	}
}

// Send issues a new passcode to phone. At most one code per resend
// interval is issued per user.
func (s *OTPServiceImpl) Send(ctx context.Context, userID uuid.UUID, phone string) (*ports.OTPIssued, error) {
	normalized := domain.NormalizePhone(phone)
	if normalized == "" {
		return nil, apperror.Validation("phone is required")
	}

	ok, err := s.throttle.Acquire(ctx, userID.String(), s.cfg.ResendInterval)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("otp throttle: %w", err))
	}
	if !ok {
		return nil, apperror.ErrOTPRateLimited()
	}

	code, err := generateCode(s.cfg.CodeLength)
	if err != nil {
		s.release(ctx, userID)
		return nil, apperror.InternalError(fmt.Errorf("generate code: %w", err))
	}

	now := s.clock.Now().UTC()
	rec := &domain.OTPRecord{
		ID:        uuid.New(),
		UserID:    userID,
		Phone:     normalized,
		Code:      code,
		ExpiresAt: now.Add(s.cfg.CodeTTL),
		CreatedAt: now,
	}
	if err := s.otpRepo.Create(ctx, rec); err != nil {
		s.release(ctx, userID)
		return nil, apperror.ErrDatabaseError(fmt.Errorf("store otp: %w", err))
	}

	msg := fmt.Sprintf("Your PayQuest verification code is %s. It expires in %d minutes.",
		code, int(s.cfg.CodeTTL.Minutes()))
	if err := s.sms.Send(ctx, phone, msg); err != nil {
		s.release(ctx, userID)
		s.log.Error().Err(err).Str("user_id", userID.String()).Msg("otp delivery failed")
		return nil, apperror.ErrOTPDeliveryFailed(err)
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Str("otp_id", rec.ID.String()).
		Time("expires_at", rec.ExpiresAt).
		Msg("otp issued")

	return &ports.OTPIssued{ExpiresAt: rec.ExpiresAt}, nil
}

// Verify accepts code if it matches an unverified, unexpired record for the
// user and phone. On success the normalized phone is stored on the profile.
func (s *OTPServiceImpl) Verify(ctx context.Context, userID uuid.UUID, phone, code string) (string, error) {
	normalized := domain.NormalizePhone(phone)
	code = strings.TrimSpace(code)
	if normalized == "" || code == "" {
		return "", apperror.Validation("phone and code are required")
	}

	rec, err := s.otpRepo.FindUnverified(ctx, userID, normalized, code)
	if err != nil {
		return "", apperror.ErrDatabaseError(fmt.Errorf("find otp: %w", err))
	}
	if rec == nil {
		return "", apperror.ErrOTPInvalid()
	}
	if rec.IsExpired(s.clock.Now()) {
		return "", apperror.ErrOTPExpired()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return "", apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	marked, err := s.otpRepo.MarkVerified(ctx, dbTx, rec.ID)
	if err != nil {
		return "", apperror.ErrDatabaseError(fmt.Errorf("mark otp verified: %w", err))
	}
	if !marked {
		// a concurrent Verify consumed the code first
		return "", apperror.ErrOTPInvalid()
	}
	if err := s.profileRepo.SetVerifiedPhone(ctx, dbTx, userID, normalized); err != nil {
		return "", apperror.ErrDatabaseError(fmt.Errorf("set verified phone: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return "", apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().Str("user_id", userID.String()).Msg("phone verified")
	return normalized, nil
}

func (s *OTPServiceImpl) release(ctx context.Context, userID uuid.UUID) {
	if err := s.throttle.Release(ctx, userID.String()); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to release otp throttle")
	}
}

// generateCode returns n uniformly random decimal digits.
func generateCode(n int) (string, error) {
	var b strings.Builder
	ten := big.NewInt(10)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}
