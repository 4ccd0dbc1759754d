package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pulsehq/pulse/internal/auth/domain"
	"github.com/pulsehq/pulse/internal/auth/notify"
	"github.com/pulsehq/pulse/internal/auth/store"
	"github.com/pulsehq/pulse/pkg/cryptox"
	"github.com/pulsehq/pulse/pkg/idx"
	"github.com/pulsehq/pulse/pkg/jwtx"
	"github.com/pulsehq/pulse/pkg/slogx"
	"github.com/pulsehq/pulse/pkg/validate"
)

// SessionService owns the credential and token lifecycle: registration,
// login, refresh and logout.
type SessionService struct {
	Store      store.Store
	Signer     jwtx.Signer
	Verifier   *VerifierService
	Notifier   notify.Notifier
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// dummyHash is compared against when login hits an unknown email, so the
// unknown-email path costs the same argon2 work as the known-email path.
var dummyHash = sync.OnceValue(func() string {
	h, err := cryptox.HashPassword("correct horse battery staple")
	if err != nil {
		panic(err)
	}
	return h
})

// RegisterResult carries everything a fresh registration produces. The
// recovery codes appear here in plaintext exactly once; only their
// fingerprints are stored.
type RegisterResult struct {
	Identity      domain.Identity
	Tokens        domain.TokenPair
	RecoveryCodes []string
}

// Register creates a new identity, provisions its recovery codes and signs
// an initial token pair. The identity and its codes are written in one
// transaction so a half-registered account cannot exist.
func (s *SessionService) Register(ctx context.Context, email, name, password, confirm string) (RegisterResult, error) {
	l := slogx.FromContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	if !validate.Email(email) {
		return RegisterResult{}, fmt.Errorf("%w: invalid email format", ErrInvalidCredentials)
	}
	if password != confirm {
		return RegisterResult{}, ErrPasswordMismatch
	}
	if err := validate.PasswordStrength(password); err != nil {
		return RegisterResult{}, fmt.Errorf("%w: %w", ErrWeakPassword, err)
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return RegisterResult{}, err
	}

	identity := domain.Identity{
		ID:           idx.New().String(),
		Email:        email,
		Name:         name,
		Role:         domain.RoleUser,
		PasswordHash: hash,
		Active:       true,
	}

	var codes []string
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Identities().CreateIdentity(ctx, identity); err != nil {
			return err
		}
		codes, err = provisionRecoveryCodes(ctx, tx, identity.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return RegisterResult{}, ErrEmailTaken
		}
		return RegisterResult{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	tokens, err := s.issuePair(identity, time.Now())
	if err != nil {
		return RegisterResult{}, err
	}

	l.Info("identity registered", slog.String("identity_id", identity.ID))
	s.Notifier.Publish(ctx, notify.Event{
		Kind:       notify.KindRegistration,
		Message:    "account registered",
		IdentityID: identity.ID,
		At:         time.Now(),
	})

	return RegisterResult{Identity: identity, Tokens: tokens, RecoveryCodes: codes}, nil
}

// Login checks the credentials and signs a fresh token pair. Unknown email,
// wrong password and deactivated account all come back as
// ErrInvalidCredentials; the unknown-email path still burns a hash
// comparison so response timing does not betray which emails exist.
func (s *SessionService) Login(ctx context.Context, email, password string) (domain.Identity, domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))

	identity, err := s.Store.Identities().GetIdentityByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = cryptox.VerifyPassword(password, dummyHash())
			return domain.Identity{}, domain.TokenPair{}, ErrInvalidCredentials
		}
		return domain.Identity{}, domain.TokenPair{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if err := cryptox.VerifyPassword(password, identity.PasswordHash); err != nil {
		l.Info("login rejected", slog.String("identity_id", identity.ID))
		return domain.Identity{}, domain.TokenPair{}, ErrInvalidCredentials
	}

	if !identity.Active {
		return domain.Identity{}, domain.TokenPair{}, ErrInvalidCredentials
	}

	tokens, err := s.issuePair(identity, time.Now())
	if err != nil {
		return domain.Identity{}, domain.TokenPair{}, err
	}

	s.Notifier.Publish(ctx, notify.Event{
		Kind:       notify.KindLogin,
		Message:    "login succeeded",
		IdentityID: identity.ID,
		At:         time.Now(),
	})

	return identity, tokens, nil
}

// Refresh exchanges a valid refresh token for a new access token. The
// refresh token itself is returned unchanged: it stays valid until it
// expires or is revoked, so refreshing never extends the session beyond
// the refresh token's original lifetime.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (domain.Identity, domain.TokenPair, error) {
	identity, _, err := s.Verifier.Verify(ctx, refreshToken, jwtx.KindRefresh)
	if err != nil {
		return domain.Identity{}, domain.TokenPair{}, err
	}

	access, err := s.Signer.Sign(jwtx.NewSessionClaims(
		identity.ID, identity.Email, jwtx.KindAccess, s.AccessTTL, s.Issuer, time.Now(),
	))
	if err != nil {
		return domain.Identity{}, domain.TokenPair{}, err
	}

	return identity, domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.AccessTTL,
	}, nil
}

// Logout revokes the presented token by its jti. Either token kind is
// accepted and revoking an already-revoked token succeeds, so logout is
// safe to retry.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	claims, err := s.Verifier.Verifier.Verify(token)
	if err != nil {
		if errors.Is(err, jwtx.ErrMalformed) {
			return ErrMalformedToken
		}
		return ErrInvalidSignature
	}

	expiresAt := time.Now().Add(s.RefreshTTL)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	if err := s.Store.RevokedTokens().Revoke(ctx, claims.ID, expiresAt); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	s.Notifier.Publish(ctx, notify.Event{
		Kind:       notify.KindLogout,
		Message:    "session ended",
		IdentityID: claims.Subject,
		At:         time.Now(),
	})

	return nil
}

// issuePair signs a fresh access + refresh token pair for the identity.
// Each token carries its own jti so one can be revoked without the other.
func (s *SessionService) issuePair(identity domain.Identity, now time.Time) (domain.TokenPair, error) {
	access, err := s.Signer.Sign(jwtx.NewSessionClaims(
		identity.ID, identity.Email, jwtx.KindAccess, s.AccessTTL, s.Issuer, now,
	))
	if err != nil {
		return domain.TokenPair{}, err
	}

	refresh, err := s.Signer.Sign(jwtx.NewSessionClaims(
		identity.ID, identity.Email, jwtx.KindRefresh, s.RefreshTTL, s.Issuer, now,
	))
	if err != nil {
		return domain.TokenPair{}, err
	}

	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    s.AccessTTL,
	}, nil
}
