package verification

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/akolanti/StudyMentor/internal/config"
	"github.com/akolanti/StudyMentor/internal/data/store"
	"github.com/akolanti/StudyMentor/internal/domain/apperr"
	"github.com/akolanti/StudyMentor/pkg/logger_i"
)

// User-facing replies of the code flow.
const (
	MsgEmailRequired   = "Email is required"
	MsgCodeSent        = "Verification code sent successfully"
	MsgMissingFields   = "Email or verification code is missing"
	MsgExpiredOrAbsent = "Email with expired or invalid credentials"
	MsgMismatch        = "Mismatched credentials"
	MsgVerified        = "Verification is complete"
	MsgSendFailed      = "Failed to send email"
)

type CodeStore interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	ConsumeIfMatch(ctx context.Context, key, value string) (store.CodeCheck, error)
}

type Service interface {
	SendCode(ctx context.Context, email string) error
	VerifyCode(ctx context.Context, email, code string) error
}

type service struct {
	codes   CodeStore
	mailer  Mailer
	ttl     time.Duration
	newCode func() (string, error)
	logger  *logger_i.Logger
}

func NewService(codes CodeStore, mailer Mailer) Service {
	return &service{
		codes:   codes,
		mailer:  mailer,
		ttl:     config.VerificationCodeTTL,
		newCode: generateCode,
		logger:  logger_i.NewLogger("Verification"),
	}
}

// SendCode stores a fresh code for the address, replacing any earlier one, then mails it.
func (s *service) SendCode(ctx context.Context, email string) error {
	const op = "verification.sendCode"
	email = strings.TrimSpace(email)
	if email == "" {
		return apperr.Validation(op, MsgEmailRequired)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return apperr.Validation(op, "Invalid email address")
	}

	code, err := s.newCode()
	if err != nil {
		return apperr.Internal(op, err)
	}
	if err := s.codes.Put(ctx, codeKey(email), code, s.ttl); err != nil {
		return apperr.BackendUnavailable(op, err, "code store unavailable")
	}
	if err := s.mailer.Send(ctx, email, config.VerificationMailSubject, fmt.Sprintf(config.VerificationMailBody, code)); err != nil {
		s.logger.WithTrace(ctx).Error("sending verification mail failed", "error", err)
		return apperr.BackendUnavailable(op, err, MsgSendFailed)
	}
	s.logger.WithTrace(ctx).Info("verification code sent")
	return nil
}

// VerifyCode consumes the stored code on a match. A mismatch leaves it in place until expiry.
func (s *service) VerifyCode(ctx context.Context, email, code string) error {
	const op = "verification.verifyCode"
	email, code = strings.TrimSpace(email), strings.TrimSpace(code)
	if email == "" || code == "" {
		return apperr.Validation(op, MsgMissingFields)
	}

	res, err := s.codes.ConsumeIfMatch(ctx, codeKey(email), code)
	if err != nil {
		return apperr.BackendUnavailable(op, err, "code store unavailable")
	}
	switch res {
	case store.CodeMatched:
		return nil
	case store.CodeMismatch:
		return apperr.Validation(op, MsgMismatch)
	default:
		return apperr.Validation(op, MsgExpiredOrAbsent)
	}
}

func codeKey(email string) string {
	return config.VerificationKeyPrefix + strings.ToLower(email)
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
