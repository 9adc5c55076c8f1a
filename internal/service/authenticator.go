package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"chat-api/internal/domain"
	"chat-api/internal/repository"
)

const (
	otpTTL                = 5 * time.Minute
	maxOTPAttempts        = 5
	minDisplayNameLength  = 2
	placeholderEmailHost  = "phone.chat.local"
	fallbackNameSuffixLen = 4
)

// Authenticator emite y verifica desafíos OTP por teléfono y resuelve la identidad del usuario.
type Authenticator struct {
	logger      *zap.Logger
	users       repository.UserRepository
	challenges  repository.OTPRepository
	limiter     OTPRateLimiter
	sender      CodeSender
	tokens      *JWTService
	countryCode string
	exposeCodes bool
	hashCost    int
	now         func() time.Time
}

type AuthenticatorOptions struct {
	// CountryCode se antepone a los números domésticos de 10 dígitos.
	CountryCode string
	// ExposeCodes devuelve el código en claro al solicitante. Solo fuera de producción.
	ExposeCodes bool
	// Sender entrega el código fuera de banda; nil solo registra la emisión.
	Sender   CodeSender
	HashCost int
	Clock    func() time.Time
}

// CodeSender entrega un código OTP al teléfono indicado.
type CodeSender interface {
	SendCode(ctx context.Context, phoneNumber string, code string, expiresAt time.Time) error
}

func NewAuthenticator(logger *zap.Logger, users repository.UserRepository, challenges repository.OTPRepository, limiter OTPRateLimiter, tokens *JWTService, opts AuthenticatorOptions) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.HashCost == 0 {
		opts.HashCost = bcrypt.DefaultCost
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &Authenticator{
		logger:      logger,
		users:       users,
		challenges:  challenges,
		limiter:     limiter,
		sender:      opts.Sender,
		tokens:      tokens,
		countryCode: opts.CountryCode,
		exposeCodes: opts.ExposeCodes,
		hashCost:    opts.HashCost,
		now:         opts.Clock,
	}
}

type ChallengeTicket struct {
	PhoneNumber string    `json:"phoneNumber"`
	ExpiresAt   time.Time `json:"expiresAt"`
	DevCode     string    `json:"devCode,omitempty"`
}

type VerifyInput struct {
	PhoneNumber string
	Code        string
	DisplayName string
}

type VerifyResult struct {
	User      domain.User `json:"user"`
	IsNewUser bool        `json:"isNewUser"`
	Tokens    TokenPair   `json:"tokens"`
}

func (a *Authenticator) RequestChallenge(ctx context.Context, rawPhone string) (ChallengeTicket, error) {
	phone, err := NormalizePhone(rawPhone, a.countryCode)
	if err != nil {
		return ChallengeTicket{}, err
	}

	if a.limiter != nil && !a.limiter.Allow(phone.Canonical) {
		return ChallengeTicket{}, ErrRateLimited
	}

	code, hash, err := a.generateOTP()
	if err != nil {
		return ChallengeTicket{}, fmt.Errorf("generate otp: %w", err)
	}

	now := a.now()
	challenge := domain.OtpChallenge{
		ID:          uuid.NewString(),
		PhoneNumber: phone.Canonical,
		CodeHash:    hash,
		ExpiresAt:   now.Add(otpTTL),
		CreatedAt:   now,
	}
	if err := a.challenges.Create(ctx, challenge); err != nil {
		return ChallengeTicket{}, fmt.Errorf("store otp challenge: %w", err)
	}

	if a.sender != nil {
		if err := a.sender.SendCode(ctx, phone.Canonical, code, challenge.ExpiresAt); err != nil {
			a.logger.Error("otp delivery failed",
				zap.Error(err),
				zap.String("phone_suffix", lastDigits(phone.Digits(), fallbackNameSuffixLen)),
			)
			return ChallengeTicket{}, ErrCodeDelivery
		}
	}

	a.logger.Info("otp challenge issued",
		zap.String("phone_suffix", lastDigits(phone.Digits(), fallbackNameSuffixLen)),
		zap.Time("expires_at", challenge.ExpiresAt),
	)

	ticket := ChallengeTicket{
		PhoneNumber: phone.Canonical,
		ExpiresAt:   challenge.ExpiresAt,
	}
	if a.exposeCodes {
		ticket.DevCode = code
	}
	return ticket, nil
}

func (a *Authenticator) VerifyChallenge(ctx context.Context, input VerifyInput) (VerifyResult, error) {
	phone, err := NormalizePhone(input.PhoneNumber, a.countryCode)
	if err != nil {
		return VerifyResult{}, err
	}
	code := strings.TrimSpace(input.Code)

	challenge, err := a.challenges.LatestByPhone(ctx, phone.Forms())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return VerifyResult{}, ErrChallengeNotFound
		}
		return VerifyResult{}, fmt.Errorf("load otp challenge: %w", err)
	}

	if a.now().After(challenge.ExpiresAt) {
		return VerifyResult{}, ErrChallengeExpired
	}
	if challenge.Attempts >= maxOTPAttempts {
		return VerifyResult{}, ErrTooManyAttempts
	}

	if bcrypt.CompareHashAndPassword([]byte(challenge.CodeHash), []byte(code)) != nil {
		if err := a.challenges.IncrementAttempts(ctx, challenge.ID); err != nil {
			// Otra verificación correcta consumió el desafío entre la lectura y el incremento.
			if errors.Is(err, pgx.ErrNoRows) {
				return VerifyResult{}, ErrInvalidCode
			}
			return VerifyResult{}, fmt.Errorf("increment otp attempts: %w", err)
		}
		return VerifyResult{}, ErrInvalidCode
	}

	if err := a.challenges.DeleteByPhone(ctx, phone.Forms()); err != nil {
		return VerifyResult{}, fmt.Errorf("consume otp challenges: %w", err)
	}

	user, isNew, err := a.resolveUser(ctx, phone, input.DisplayName)
	if err != nil {
		return VerifyResult{}, err
	}

	result := VerifyResult{User: user, IsNewUser: isNew}
	if a.tokens != nil {
		pair, err := a.tokens.GeneratePair(user)
		if err != nil {
			return VerifyResult{}, fmt.Errorf("issue tokens: %w", err)
		}
		result.Tokens = pair
	}
	return result, nil
}

// resolveUser busca al usuario por cualquiera de las formas del número o lo crea.
// Un conflicto de unicidad al crear significa que otra petición ganó la carrera.
func (a *Authenticator) resolveUser(ctx context.Context, phone PhoneNumber, displayName string) (domain.User, bool, error) {
	name := strings.TrimSpace(displayName)
	nameValid := utf8.RuneCountInString(name) >= minDisplayNameLength

	user, err := a.users.GetByPhone(ctx, phone.Forms())
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, false, fmt.Errorf("load user: %w", err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		now := a.now()
		user = domain.User{
			ID:          uuid.NewString(),
			PhoneNumber: phone.Canonical,
			Email:       placeholderEmail(phone),
			DisplayName: fallbackDisplayName(phone),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if nameValid {
			user.DisplayName = name
		}

		err := a.users.Create(ctx, user)
		if err == nil {
			a.logger.Info("user created from otp", zap.String("user_id", user.ID))
			return user, true, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return domain.User{}, false, fmt.Errorf("create user: %w", err)
		}

		user, err = a.users.GetByPhone(ctx, phone.Forms())
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// el conflicto fue sobre otra columna única, no el teléfono
				return domain.User{}, false, ErrDuplicateIdentity
			}
			return domain.User{}, false, fmt.Errorf("reload user: %w", err)
		}
	}

	changed := false
	if nameValid && name != user.DisplayName {
		user.DisplayName = name
		changed = true
	}
	if user.PhoneNumber != phone.Canonical {
		user.PhoneNumber = phone.Canonical
		changed = true
	}
	if user.Email == "" {
		user.Email = placeholderEmail(phone)
		changed = true
	}

	if changed {
		user.UpdatedAt = a.now()
		if err := a.users.Update(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return domain.User{}, false, ErrDuplicateIdentity
			}
			return domain.User{}, false, fmt.Errorf("update user: %w", err)
		}
	}
	return user, false, nil
}

func (a *Authenticator) generateOTP() (string, string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", "", err
	}
	code := fmt.Sprintf("%06d", n.Int64())

	hash, err := bcrypt.GenerateFromPassword([]byte(code), a.hashCost)
	if err != nil {
		return "", "", err
	}
	return code, string(hash), nil
}

func placeholderEmail(phone PhoneNumber) string {
	return phone.Digits() + "@" + placeholderEmailHost
}

func fallbackDisplayName(phone PhoneNumber) string {
	return "User " + lastDigits(phone.Digits(), fallbackNameSuffixLen)
}

func lastDigits(digits string, n int) string {
	if len(digits) <= n {
		return digits
	}
	return digits[len(digits)-n:]
}
