// Package identity issues and checks one-time verification codes sent to
// an email address and exchanges a correct code for an access token.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iliyamo/smartpark/internal/utils"
)

// CodeLength is the number of digits in a verification code.
const CodeLength = 6

var (
	// ErrInvalidEmail is returned for malformed addresses.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrCodeNotFound is returned when no code was issued or it has lapsed.
	ErrCodeNotFound = errors.New("verification code not found or expired")
	// ErrCodeMismatch is returned when the supplied code is wrong.
	ErrCodeMismatch = errors.New("invalid verification code")
)

// Sender delivers a verification code to the user.  The notification
// service behind it is external to this process.
type Sender interface {
	SendVerificationCode(ctx context.Context, email, code string, expires time.Time) error
}

// Record is a stored, hashed code.
type Record struct {
	Hash      string    `json:"hash"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CodeStore keeps at most one Record per email.
type CodeStore interface {
	Put(ctx context.Context, email string, rec Record) error
	Get(ctx context.Context, email string) (Record, error)
	Delete(ctx context.Context, email string) error
}

// Options configures a Service.
type Options struct {
	Store      CodeStore
	Sender     Sender
	CodeTTL    time.Duration
	BcryptCost int
	JWTSecret  string
	TokenTTL   int // minutes
}

// Service is safe for concurrent use if its store is.
type Service struct {
	opts Options
	now  func() time.Time
	code func() (string, error)
}

// NewService returns a Service with defaults for zero options.
func NewService(opts Options) *Service {
	if opts.CodeTTL <= 0 {
		opts.CodeTTL = 10 * time.Minute
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 60
	}
	if opts.Sender == nil {
		opts.Sender = LogSender{}
	}
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	return &Service{opts: opts, now: time.Now, code: func() (string, error) { return utils.RandomDigits(CodeLength) }}
}

// NormalizeEmail validates and lower-cases an address.
func NormalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Name != "" {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}

// SendCode issues a new code for email, replacing any earlier one, and
// hands it to the sender.  The stored copy is a bcrypt hash.
func (s *Service) SendCode(ctx context.Context, email string) error {
	email, err := NormalizeEmail(email)
	if err != nil {
		return err
	}
	code, err := s.code()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	hash, err := utils.HashSecret(code, s.opts.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash code: %w", err)
	}
	expires := s.now().Add(s.opts.CodeTTL).UTC()
	if err := s.opts.Store.Put(ctx, email, Record{Hash: hash, ExpiresAt: expires}); err != nil {
		return fmt.Errorf("store code: %w", err)
	}
	if err := s.opts.Sender.SendVerificationCode(ctx, email, code, expires); err != nil {
		_ = s.opts.Store.Delete(ctx, email)
		return fmt.Errorf("send code: %w", err)
	}
	return nil
}

// Verify checks code for email.  A correct code is consumed and exchanged
// for a signed access token whose subject is the email.
func (s *Service) Verify(ctx context.Context, email, code string) (utils.AccessToken, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return utils.AccessToken{}, err
	}
	rec, err := s.opts.Store.Get(ctx, email)
	if err != nil {
		return utils.AccessToken{}, err
	}
	if !s.now().Before(rec.ExpiresAt) {
		_ = s.opts.Store.Delete(ctx, email)
		return utils.AccessToken{}, ErrCodeNotFound
	}
	if !utils.VerifySecret(rec.Hash, strings.TrimSpace(code)) {
		return utils.AccessToken{}, ErrCodeMismatch
	}
	if err := s.opts.Store.Delete(ctx, email); err != nil {
		log.Warn().Str("component", "identity").Err(err).Msg("delete consumed code")
	}
	return utils.NewAccessToken(s.opts.JWTSecret, email, s.opts.TokenTTL)
}

// LogSender writes codes to the log instead of emailing them.  Used when
// no broker is configured.
type LogSender struct{}

// SendVerificationCode logs the code at info level.
func (LogSender) SendVerificationCode(_ context.Context, email, code string, expires time.Time) error {
	log.Info().Str("component", "identity").Str("email", email).Str("code", code).
		Time("expires_at", expires).Msg("verification code (log delivery)")
	return nil
}
