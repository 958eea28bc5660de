package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/deviceguard/internal/fingerprint"
	"github.com/BradenHooton/deviceguard/internal/models"
	pkglogger "github.com/BradenHooton/deviceguard/pkg/logger"
)

// AttemptStore is the persistence contract for attempt records: point lookup
// and upsert keyed by device id. Get returns models.ErrNotFound for unknown devices.
type AttemptStore interface {
	Get(ctx context.Context, deviceID string) (*models.DeviceAttempt, error)
	Upsert(ctx context.Context, rec *models.DeviceAttempt) (*models.DeviceAttempt, error)
}

// FallbackStore holds records the primary store failed to persist
type FallbackStore interface {
	AttemptStore
	Delete(deviceID string)
}

// CredentialChecker verifies a submitted credential
type CredentialChecker interface {
	Verify(ctx context.Context, cred models.Credential) (bool, error)
}

// GuardConfig holds the lockout policy parameters
type GuardConfig struct {
	MaxAttempts   int
	BlockDuration time.Duration
	WarnAfter     int
	StoreTimeout  time.Duration
}

// AuthRequest is one submitted login form
type AuthRequest struct {
	DeviceID   string
	Credential models.Credential
	IPAddress  string
	UserAgent  string
}

// AttemptOutcome is the result of RecordAttempt
type AttemptOutcome struct {
	Record *models.DeviceAttempt
	// BlockedNow is set when this attempt moved the device into the blocked state
	BlockedNow bool
	// Refused is set when a success arrived for a device that is blocked; nothing was written
	Refused bool
	// Degraded is set when the record could not be read or written durably
	Degraded bool
}

// GuardService enforces per-device lockout around the access password
type GuardService struct {
	store       AttemptStore
	fallback    FallbackStore
	verifier    CredentialChecker
	alerts      AlertNotifier
	clock       Clock
	config      GuardConfig
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewGuardService creates a new GuardService
func NewGuardService(
	store AttemptStore,
	fallback FallbackStore,
	verifier CredentialChecker,
	alerts AlertNotifier,
	clock Clock,
	config GuardConfig,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *GuardService {
	if clock == nil {
		clock = SystemClock{}
	}
	if alerts == nil {
		alerts = NewLogAlertNotifier(logger)
	}
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = 2 * time.Second
	}
	return &GuardService{
		store:       store,
		fallback:    fallback,
		verifier:    verifier,
		alerts:      alerts,
		clock:       clock,
		config:      config,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Config returns the active policy parameters
func (s *GuardService) Config() GuardConfig {
	return s.config
}

// ComputeFingerprint derives the device id for signals
func (s *GuardService) ComputeFingerprint(signals fingerprint.Signals) string {
	return fingerprint.Compute(signals)
}

// CheckStatus reports whether deviceID is blocked and how many failures it has.
// It never writes. When the store cannot be read it fails open, using any
// record held from a degraded session, and marks the status degraded.
func (s *GuardService) CheckStatus(ctx context.Context, deviceID string) models.DeviceStatus {
	now := s.clock.Now()
	rec, err := s.lookup(ctx, deviceID, now)
	return s.statusOf(deviceID, rec, now, err != nil)
}

func (s *GuardService) statusOf(deviceID string, rec *models.DeviceAttempt, now time.Time, degraded bool) models.DeviceStatus {
	status := models.DeviceStatus{
		DeviceID:    deviceID,
		MaxAttempts: s.config.MaxAttempts,
		Degraded:    degraded,
	}
	if rec == nil {
		return status
	}

	status.Attempts = rec.EffectiveAttempts(now)
	if rec.IsBlocked(now) {
		status.Blocked = true
		until := *rec.BlockedUntil
		status.BlockedUntil = &until
	}
	return status
}

// RecordAttempt applies one login outcome to deviceID's record and upserts it.
// A success clears the record unless the device is blocked, in which case the
// attempt is refused and nothing is written. A failure increments the count and,
// on reaching MaxAttempts, blocks the device for BlockDuration.
//
// When the store cannot be read the new record is derived from the held copy and
// kept in the fallback store only, so a blind write can never overwrite a stored
// block or count. If the upsert fails the record is held the same way.
func (s *GuardService) RecordAttempt(ctx context.Context, deviceID string, success bool) AttemptOutcome {
	now := s.clock.Now()
	current, readErr := s.lookup(ctx, deviceID, now)

	if success && current != nil && current.IsBlocked(now) {
		return AttemptOutcome{Record: current, Refused: true, Degraded: readErr != nil}
	}

	next := &models.DeviceAttempt{DeviceID: deviceID, LastAttempt: now}
	if current != nil {
		next.ID = current.ID
		next.CreatedAt = current.CreatedAt
	}

	blockedNow := false
	if !success {
		next.Attempts = 1
		if current != nil {
			next.Attempts = current.EffectiveAttempts(now) + 1
		}

		switch {
		case current != nil && current.IsBlocked(now):
			// An active block is never extended or shortened by further failures
			until := *current.BlockedUntil
			next.BlockedUntil = &until
		case next.Attempts >= s.config.MaxAttempts:
			until := now.Add(s.config.BlockDuration)
			next.BlockedUntil = &until
			blockedNow = true
		}
	}

	outcome := AttemptOutcome{Record: next, BlockedNow: blockedNow}
	if readErr != nil {
		s.hold(ctx, next)
		outcome.Degraded = true
	} else if saved, err := s.persist(ctx, next); err != nil {
		s.persistenceFailed(ctx, deviceID, "upsert", err)
		outcome.Degraded = true
	} else {
		outcome.Record = saved
	}

	if blockedNow {
		s.deviceBlocked(ctx, outcome.Record)
	}
	return outcome
}

// Authenticate checks the device's status, verifies the credential and records
// the outcome. A blocked device is rejected without verifying or recording.
func (s *GuardService) Authenticate(ctx context.Context, req AuthRequest) models.AuthResult {
	status := s.CheckStatus(ctx, req.DeviceID)
	if status.Blocked {
		return s.rejectBlocked(ctx, req, status)
	}

	ok, err := s.verifier.Verify(ctx, req.Credential)
	if err != nil {
		// A broken verifier is an operator problem: deny, but don't count it against the device
		s.logger.Error("credential verification failed", slog.Any("error", err))
		return models.AuthResult{
			Granted:           false,
			Reason:            models.KindInvalidCredential,
			Attempts:          status.Attempts,
			AttemptsRemaining: s.remaining(status.Attempts),
			Degraded:          status.Degraded,
		}
	}

	outcome := s.RecordAttempt(ctx, req.DeviceID, ok)
	rec := outcome.Record
	degraded := status.Degraded || outcome.Degraded

	if outcome.Refused {
		// The status read missed a block the second read found
		refused := s.statusOf(req.DeviceID, rec, s.clock.Now(), degraded)
		return s.rejectBlocked(ctx, req, refused)
	}

	if ok {
		s.logger.Info("access granted", slog.String("device_id", fingerprint.Short(req.DeviceID)))
		s.auditLogger.Log(ctx, pkglogger.AuditEvent{
			EventType: pkglogger.EventAuthGranted,
			DeviceID:  req.DeviceID,
			IPAddress: req.IPAddress,
			UserAgent: req.UserAgent,
			Success:   true,
		})
		return models.AuthResult{
			Granted:           true,
			AttemptsRemaining: s.config.MaxAttempts,
			Degraded:          degraded,
		}
	}

	now := s.clock.Now()
	blocked := rec.IsBlocked(now)
	result := models.AuthResult{
		Granted:           false,
		Reason:            models.KindInvalidCredential,
		Attempts:          rec.Attempts,
		AttemptsRemaining: s.remaining(rec.Attempts),
		Blocked:           blocked,
		Warning:           !blocked && s.config.WarnAfter > 0 && rec.Attempts >= s.config.WarnAfter,
		Degraded:          degraded,
	}
	if blocked {
		until := *rec.BlockedUntil
		result.BlockedUntil = &until
	}

	s.logger.Info("access denied: invalid credential",
		slog.String("device_id", fingerprint.Short(req.DeviceID)),
		slog.Int("attempts", rec.Attempts),
		slog.Int("max_attempts", s.config.MaxAttempts))
	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType:     pkglogger.EventAuthFailed,
		DeviceID:      req.DeviceID,
		IPAddress:     req.IPAddress,
		UserAgent:     req.UserAgent,
		FailureReason: string(models.KindInvalidCredential),
		Attempts:      rec.Attempts,
	})
	return result
}

func (s *GuardService) rejectBlocked(ctx context.Context, req AuthRequest, status models.DeviceStatus) models.AuthResult {
	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType:     pkglogger.EventAuthRejectedBlocked,
		DeviceID:      req.DeviceID,
		IPAddress:     req.IPAddress,
		UserAgent:     req.UserAgent,
		FailureReason: string(models.KindBlocked),
		Attempts:      status.Attempts,
	})
	return models.AuthResult{
		Granted:      false,
		Reason:       models.KindBlocked,
		Attempts:     status.Attempts,
		Blocked:      true,
		BlockedUntil: status.BlockedUntil,
		Degraded:     status.Degraded,
	}
}

func (s *GuardService) remaining(attempts int) int {
	if r := s.config.MaxAttempts - attempts; r > 0 {
		return r
	}
	return 0
}

// lookup reads deviceID from the store, bounded by StoreTimeout, and merges in
// any record held in the fallback store. On a read error the held record alone
// is returned together with the error.
func (s *GuardService) lookup(ctx context.Context, deviceID string, now time.Time) (*models.DeviceAttempt, error) {
	held := s.fallbackRecord(ctx, deviceID)

	storeCtx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	rec, err := s.store.Get(storeCtx, deviceID)
	switch {
	case err == nil:
	case errors.Is(err, models.ErrNotFound):
		rec = nil
	default:
		s.persistenceFailed(ctx, deviceID, "read", err)
		return held, err
	}

	return mergeHeld(rec, held, now), nil
}

// mergeHeld combines a stored record with one held in memory. The result keeps
// the higher live count and the later active block, so a held record can never
// lower what the store already holds.
func mergeHeld(stored, held *models.DeviceAttempt, now time.Time) *models.DeviceAttempt {
	if held == nil {
		return stored
	}
	if stored == nil {
		return held
	}

	merged := stored.Clone()
	if held.LastAttempt.After(merged.LastAttempt) {
		merged.LastAttempt = held.LastAttempt
	}
	merged.Attempts = max(stored.EffectiveAttempts(now), held.EffectiveAttempts(now))
	merged.BlockedUntil = nil
	for _, r := range []*models.DeviceAttempt{stored, held} {
		if r.IsBlocked(now) && (merged.BlockedUntil == nil || r.BlockedUntil.After(*merged.BlockedUntil)) {
			until := *r.BlockedUntil
			merged.BlockedUntil = &until
		}
	}
	return merged
}

func (s *GuardService) fallbackRecord(ctx context.Context, deviceID string) *models.DeviceAttempt {
	if s.fallback == nil {
		return nil
	}
	rec, err := s.fallback.Get(ctx, deviceID)
	if err != nil {
		return nil
	}
	return rec
}

// persist upserts rec, bounded by StoreTimeout. On success any fallback copy is dropped.
func (s *GuardService) persist(ctx context.Context, rec *models.DeviceAttempt) (*models.DeviceAttempt, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	saved, err := s.store.Upsert(storeCtx, rec)
	if err != nil {
		s.hold(ctx, rec)
		return nil, err
	}

	if s.fallback != nil {
		s.fallback.Delete(rec.DeviceID)
	}
	return saved, nil
}

// hold keeps rec in the fallback store until a read-then-write cycle succeeds
func (s *GuardService) hold(ctx context.Context, rec *models.DeviceAttempt) {
	if s.fallback == nil {
		return
	}
	if _, err := s.fallback.Upsert(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Error("failed to hold attempt record in memory", slog.Any("error", err))
	}
}

func (s *GuardService) persistenceFailed(ctx context.Context, deviceID, op string, err error) {
	s.logger.Error("attempt store unavailable",
		slog.String("operation", op),
		slog.String("device_id", fingerprint.Short(deviceID)),
		slog.Any("error", fmt.Errorf("%w: %w", models.ErrPersistenceUnavailable, err)))
	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType:     pkglogger.EventPersistenceUnavailable,
		DeviceID:      deviceID,
		FailureReason: string(models.KindPersistenceUnavailable),
		Metadata:      map[string]string{"operation": op},
	})
}

func (s *GuardService) deviceBlocked(ctx context.Context, rec *models.DeviceAttempt) {
	s.logger.Warn("device blocked",
		slog.String("device_id", fingerprint.Short(rec.DeviceID)),
		slog.Int("attempts", rec.Attempts),
		slog.Time("blocked_until", *rec.BlockedUntil))
	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType:     pkglogger.EventDeviceBlocked,
		DeviceID:      rec.DeviceID,
		FailureReason: string(models.KindBlocked),
		Attempts:      rec.Attempts,
		Metadata:      map[string]string{"blocked_until": rec.BlockedUntil.UTC().Format(time.RFC3339)},
	})

	alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.alerts.DeviceBlocked(alertCtx, rec); err != nil {
		s.logger.Error("failed to send device blocked alert", slog.Any("error", err))
	}
}
