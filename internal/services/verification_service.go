package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/notify"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type Purpose string

const (
	PurposePhone Purpose = "phone"
	PurposeEmail Purpose = "email"
)

func (p Purpose) Valid() bool {
	return p == PurposePhone || p == PurposeEmail
}

const codeDigits = 6

// ContactBook resolves the contact details a member has on file and records
// a confirmed one.
type ContactBook interface {
	Contact(ctx context.Context, userID uuid.UUID, purpose Purpose) (string, error)
	MarkVerified(ctx context.Context, userID uuid.UUID) error
}

type VerificationConfig struct {
	CodeTTL        time.Duration
	ResendCooldown time.Duration
	MaxAttempts    int
}

// VerificationService issues and checks one-time codes. Codes live in Redis
// so every instance sees the same state and expiry is handled by TTLs.
type VerificationService struct {
	rdb      *redis.Client
	notifier notify.Dispatcher
	contacts ContactBook
	cfg      VerificationConfig
}

func NewVerificationService(rdb *redis.Client, notifier notify.Dispatcher, contacts ContactBook, cfg VerificationConfig) *VerificationService {
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 10 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &VerificationService{rdb: rdb, notifier: notifier, contacts: contacts, cfg: cfg}
}

func codeKey(userID uuid.UUID, p Purpose, identifier string) string {
	return "verify:" + userID.String() + ":" + string(p) + ":" + identifier
}

// ownIdentifier normalizes identifier and checks it is the phone or email
// userID has on file.
func (s *VerificationService) ownIdentifier(ctx context.Context, userID uuid.UUID, purpose Purpose, identifier string) (string, error) {
	identifier, err := normalizeIdentifier(purpose, identifier)
	if err != nil {
		return "", err
	}
	stored, err := s.contacts.Contact(ctx, userID, purpose)
	if err != nil {
		return "", err
	}
	onFile, err := normalizeIdentifier(purpose, stored)
	if err != nil {
		return "", fmt.Errorf("%w: no %s on your profile", ErrInvalidArgument, purpose)
	}
	if onFile != identifier {
		return "", fmt.Errorf("%w: %s does not match your profile", ErrInvalidArgument, purpose)
	}
	return identifier, nil
}

// Issue sends a fresh code for the member's own identifier, replacing any
// earlier one.
func (s *VerificationService) Issue(ctx context.Context, userID uuid.UUID, purpose Purpose, identifier string) error {
	identifier, err := s.ownIdentifier(ctx, userID, purpose, identifier)
	if err != nil {
		return err
	}
	key := codeKey(userID, purpose, identifier)

	if s.cfg.ResendCooldown > 0 {
		ok, err := s.rdb.SetNX(ctx, key+":cooldown", 1, s.cfg.ResendCooldown).Result()
		if err != nil {
			return fmt.Errorf("failed to check resend cooldown: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: wait before requesting another code", ErrRateLimited)
		}
	}

	code, err := generateCode()
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, code, s.cfg.CodeTTL)
		pipe.Del(ctx, key+":attempts")
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store verification code: %w", err)
	}

	if s.notifier != nil {
		err = s.notifier.Notify(ctx, userID, notify.KindVerificationCode, map[string]any{
			"purpose":     string(purpose),
			"destination": identifier,
			"code":        code,
			"expires_in":  int(s.cfg.CodeTTL.Seconds()),
		})
		if err != nil {
			return fmt.Errorf("failed to deliver verification code: %w", err)
		}
	}
	return nil
}

// Verify checks code against the one issued to userID. A wrong guess counts
// towards the attempt limit; reaching it burns the code.
func (s *VerificationService) Verify(ctx context.Context, userID uuid.UUID, purpose Purpose, identifier, code string) error {
	identifier, err := s.ownIdentifier(ctx, userID, purpose, identifier)
	if err != nil {
		return err
	}
	key := codeKey(userID, purpose, identifier)
	attemptsKey := key + ":attempts"

	stored, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: code expired or was never sent", ErrInvalidArgument)
	}
	if err != nil {
		return fmt.Errorf("failed to read verification code: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(strings.TrimSpace(code))) != 1 {
		var attempts *redis.IntCmd
		_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			attempts = pipe.Incr(ctx, attemptsKey)
			pipe.Expire(ctx, attemptsKey, s.cfg.CodeTTL)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to count attempt: %w", err)
		}
		if attempts.Val() >= int64(s.cfg.MaxAttempts) {
			if err := s.rdb.Del(ctx, key, attemptsKey).Err(); err != nil {
				return fmt.Errorf("failed to burn verification code: %w", err)
			}
			return fmt.Errorf("%w: too many incorrect attempts, request a new code", ErrRateLimited)
		}
		return fmt.Errorf("%w: incorrect code", ErrInvalidArgument)
	}

	if err := s.rdb.Del(ctx, key, attemptsKey).Err(); err != nil {
		return fmt.Errorf("failed to clear verification code: %w", err)
	}
	if err := s.contacts.MarkVerified(ctx, userID); err != nil {
		return fmt.Errorf("failed to mark user verified: %w", err)
	}
	return nil
}

// normalizeIdentifier lowercases emails and reduces phone numbers to an
// optional leading '+' and digits.
func normalizeIdentifier(purpose Purpose, identifier string) (string, error) {
	if !purpose.Valid() {
		return "", fmt.Errorf("%w: purpose must be phone or email", ErrInvalidArgument)
	}
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if purpose == PurposePhone {
		var b strings.Builder
		for i, r := range identifier {
			if (r >= '0' && r <= '9') || (r == '+' && i == 0) {
				b.WriteRune(r)
			}
		}
		identifier = b.String()
		if strings.Trim(identifier, "+") == "" {
			identifier = ""
		}
	}
	if identifier == "" {
		return "", fmt.Errorf("%w: identifier is required", ErrInvalidArgument)
	}
	return identifier, nil
}

func generateCode() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}
