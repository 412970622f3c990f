package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"payquest/config"
	"payquest/internal/core/domain"
	"payquest/internal/core/ports/mocks"
	"payquest/pkg/apperror"
	"payquest/pkg/clock"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type otpTestDeps struct {
	svc         *OTPServiceImpl
	otpRepo     *mocks.MockOTPRepository
	profileRepo *mocks.MockProfileRepository
	throttle    *mocks.MockOTPThrottle
	sms         *mocks.MockSMSSender
	transactor  *mocks.MockDBTransactor
	clock       *clock.ManualClock
}

func setupOTPService(t *testing.T) *otpTestDeps {
	ctrl := gomock.NewController(t)
	d := &otpTestDeps{
		otpRepo:     mocks.NewMockOTPRepository(ctrl),
		profileRepo: mocks.NewMockProfileRepository(ctrl),
		throttle:    mocks.NewMockOTPThrottle(ctrl),
		sms:         mocks.NewMockSMSSender(ctrl),
		transactor:  mocks.NewMockDBTransactor(ctrl),
		clock:       clock.NewManual(testNow),
	}
	cfg := config.OTPConfig{CodeTTL: 5 * time.Minute, ResendInterval: 60 * time.Second, CodeLength: 6}
	d.svc = NewOTPService(d.otpRepo, d.profileRepo, d.throttle, d.sms, d.transactor, cfg, d.clock, zerolog.Nop())
	return d
}

// ==================== Send ====================

func TestOTPService_Send_Success(t *testing.T) {
	d := setupOTPService(t)
	ctx := context.Background()
	userID := uuid.New()

	var stored *domain.OTPRecord
	d.throttle.EXPECT().Acquire(ctx, userID.String(), 60*time.Second).Return(true, nil)
	d.otpRepo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, rec *domain.OTPRecord) error {
		stored = rec
		return nil
	})
	d.sms.EXPECT().Send(ctx, "+91 98765-43210", gomock.Any()).DoAndReturn(func(_ context.Context, _ string, msg string) error {
		assert.Contains(t, msg, stored.Code)
		return nil
	})

	issued, err := d.svc.Send(ctx, userID, "+91 98765-43210")
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(5*time.Minute), issued.ExpiresAt)

	require.NotNil(t, stored)
	assert.Regexp(t, regexp.MustCompile(`^[0-9]{6}$`), stored.Code)
	assert.Equal(t, "919876543210", stored.Phone)
	assert.False(t, stored.Verified)
	assert.Equal(t, userID, stored.UserID)
}

func TestOTPService_Send_RateLimited(t *testing.T) {
	d := setupOTPService(t)
	ctx := context.Background()
	userID := uuid.New()

	d.throttle.EXPECT().Acquire(ctx, userID.String(), 60*time.Second).Return(false, nil)

	issued, err := d.svc.Send(ctx, userID, "9876543210")
	assert.Nil(t, issued)
	assertAppError(t, err, apperror.CodeOTPRateLimited)
}

func TestOTPService_Send_DeliveryFailureReleasesThrottle(t *testing.T) {
	d := setupOTPService(t)
	ctx := context.Background()
	userID := uuid.New()

	d.throttle.EXPECT().Acquire(ctx, userID.String(), gomock.Any()).Return(true, nil)
	d.otpRepo.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	d.sms.EXPECT().Send(ctx, gomock.Any(), gomock.Any()).Return(errors.New("gateway 503"))
	d.throttle.EXPECT().Release(ctx, userID.String()).Return(nil)

	_, err := d.svc.Send(ctx, userID, "9876543210")
	assertAppError(t, err, apperror.CodeOTPDeliveryFailed)
}

func TestOTPService_Send_StorageFailure(t *testing.T) {
	d := setupOTPService(t)
	ctx := context.Background()
	userID := uuid.New()

	d.throttle.EXPECT().Acquire(ctx, userID.String(), gomock.Any()).Return(true, nil)
	d.otpRepo.EXPECT().Create(ctx, gomock.Any()).Return(errors.New("disk full"))
	d.throttle.EXPECT().Release(ctx, userID.String()).Return(nil)

	_, err := d.svc.Send(ctx, userID, "9876543210")
	assertAppError(t, err, apperror.CodeInternal)
}

func TestOTPService_Send_MissingPhone(t *testing.T) {
	d := setupOTPService(t)

	_, err := d.svc.Send(context.Background(), uuid.New(), " - ")
	assertAppError(t, err, apperror.CodeValidation)
}

// ==================== Verify ====================

func TestOTPService_Verify_Success(t *testing.T) {
	d := setupOTPService(t)
	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}
	rec := &domain.OTPRecord{ID: uuid.New(), UserID: userID, Phone: "9876543210", Code: "123456",
		ExpiresAt: testNow.Add(4 * time.Minute)}

	d.otpRepo.EXPECT().FindUnverified(ctx, userID, "9876543210", "123456").Return(rec, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.otpRepo.EXPECT().MarkVerified(ctx, tx, rec.ID).Return(true, nil)
	d.profileRepo.EXPECT().SetVerifiedPhone(ctx, tx, userID, "9876543210").Return(nil)

	phone, err := d.svc.Verify(ctx, userID, "09876543210", "123456")
	require.NoError(t, err)
	assert.Equal(t, "9876543210", phone)
}

func TestOTPService_Verify_ConsumedConcurrently(t *testing.T) {
	d := setupOTPService(t)
	ctx := context.Background()
	tx := &mockTx{}
	userID := uuid.New()
	rec := &domain.OTPRecord{ID: uuid.New(), UserID: userID, Phone: "9876543210", Code: "123456",
		ExpiresAt: testNow.Add(4 * time.Minute)}

	d.otpRepo.EXPECT().FindUnverified(ctx, userID, "9876543210", "123456").Return(rec, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.otpRepo.EXPECT().MarkVerified(ctx, tx, rec.ID).Return(false, nil)
	d.profileRepo.EXPECT().SetVerifiedPhone(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	phone, err := d.svc.Verify(ctx, userID, "9876543210", "123456")
	assert.Empty(t, phone)
	assertAppError(t, err, apperror.CodeOTPInvalid)
}

func TestOTPService_Verify_Expired(t *testing.T) {
	d := setupOTPService(t)
	ctx := context.Background()
	userID := uuid.New()
	rec := &domain.OTPRecord{ID: uuid.New(), UserID: userID, Phone: "9876543210", Code: "123456",
		ExpiresAt: testNow.Add(5 * time.Minute)}

	d.clock.Advance(5*time.Minute + time.Second)
	d.otpRepo.EXPECT().FindUnverified(ctx, userID, "9876543210", "123456").Return(rec, nil)

	_, err := d.svc.Verify(ctx, userID, "9876543210", "123456")
	assertAppError(t, err, apperror.CodeOTPExpired)
	assert.Contains(t, err.Error(), "Code expired")
}

func TestOTPService_Verify_InvalidCode(t *testing.T) {
	d := setupOTPService(t)
	ctx := context.Background()
	userID := uuid.New()

	d.otpRepo.EXPECT().FindUnverified(ctx, userID, "9876543210", "000000").Return(nil, nil)

	_, err := d.svc.Verify(ctx, userID, "9876543210", "000000")
	assertAppError(t, err, apperror.CodeOTPInvalid)
	assert.Contains(t, err.Error(), "Invalid code")
}

func TestOTPService_Verify_MissingFields(t *testing.T) {
	d := setupOTPService(t)

	_, err := d.svc.Verify(context.Background(), uuid.New(), "", "123456")
	assertAppError(t, err, apperror.CodeValidation)

	_, err = d.svc.Verify(context.Background(), uuid.New(), "9876543210", " ")
	assertAppError(t, err, apperror.CodeValidation)
}

func TestOTPService_Verify_StorageError(t *testing.T) {
	d := setupOTPService(t)
	ctx := context.Background()

	d.otpRepo.EXPECT().FindUnverified(ctx, gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("conn refused"))

	_, err := d.svc.Verify(ctx, uuid.New(), "9876543210", "123456")
	assertAppError(t, err, apperror.CodeInternal)
}

func TestGenerateCode(t *testing.T) {
	for _, n := range []int{4, 6, 8} {
		code, err := generateCode(n)
		require.NoError(t, err)
		assert.Len(t, code, n)
		assert.Regexp(t, `^[0-9]+$`, code)
	}
}
