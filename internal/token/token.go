// Package token issues and verifies the access/refresh JWT pair used by
// the API. Access tokens are short-lived and stateless; refresh tokens
// carry a JTI that logout can denylist in Redis, best-effort.
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	useAccess  = "access"
	useRefresh = "refresh"

	denylistPrefix = "token:denied:"
)

// ErrInvalidToken covers parse failures, expiry, wrong token use and
// revoked refresh tokens alike; callers answer 401 without distinguishing.
var ErrInvalidToken = errors.New("token: invalid token")

// Claims are the JWT claims carried by both token types.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	TokenUse string `json:"token_use"`
	// ImpersonatedBy records the admin who requested these credentials
	// when they were issued through impersonation.
	ImpersonatedBy *int64 `json:"imp_by,omitempty"`
}

// AccountID parses the subject claim.
func (c *Claims) AccountID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}

// Pair bundles one access and one refresh token.
type Pair struct {
	Access  string
	Refresh string
}

// Issuer signs and verifies tokens.
type Issuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	denylist   *redis.Client
	logger     *slog.Logger
	now        func() time.Time
}

// NewIssuer constructs an Issuer. denylist may be nil, in which case
// logout revocation becomes a no-op.
func NewIssuer(secret, issuer string, accessTTL, refreshTTL time.Duration, denylist *redis.Client, logger *slog.Logger) *Issuer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Issuer{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		denylist:   denylist,
		logger:     logger,
		now:        time.Now,
	}
}

func (i *Issuer) sign(subject int64, username, use string, ttl time.Duration, impersonatedBy *int64) (string, error) {
	now := i.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(subject, 10),
			Issuer:    i.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Username:       username,
		TokenUse:       use,
		ImpersonatedBy: impersonatedBy,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// IssuePair creates a fresh access/refresh pair for the account.
func (i *Issuer) IssuePair(accountID int64, username string) (Pair, error) {
	return i.issuePair(accountID, username, nil)
}

// IssueImpersonatedPair creates a pair for the target account that stays
// attributable to the admin who requested it.
func (i *Issuer) IssueImpersonatedPair(targetID int64, username string, adminID int64) (Pair, error) {
	return i.issuePair(targetID, username, &adminID)
}

func (i *Issuer) issuePair(accountID int64, username string, impersonatedBy *int64) (Pair, error) {
	access, err := i.sign(accountID, username, useAccess, i.accessTTL, impersonatedBy)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := i.sign(accountID, username, useRefresh, i.refreshTTL, impersonatedBy)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Access: access, Refresh: refresh}, nil
}

func (i *Issuer) parse(raw, use string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenUse != use {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ParseAccess verifies an access token and returns its claims.
func (i *Issuer) ParseAccess(raw string) (*Claims, error) {
	return i.parse(raw, useAccess)
}

// Refresh validates a refresh token and issues a new access token.
// Denylisted and expired refresh tokens are rejected with ErrInvalidToken.
func (i *Issuer) Refresh(ctx context.Context, raw string) (string, error) {
	claims, err := i.parse(raw, useRefresh)
	if err != nil {
		return "", err
	}
	if i.revoked(ctx, claims.ID) {
		return "", ErrInvalidToken
	}
	id, err := claims.AccountID()
	if err != nil {
		return "", err
	}
	return i.sign(id, claims.Username, useAccess, i.accessTTL, claims.ImpersonatedBy)
}

// RevokeRefresh denylists a refresh token's JTI until the token would have
// expired anyway. Best-effort: a malformed token or a Redis failure is
// logged and ignored, and never fails the caller.
func (i *Issuer) RevokeRefresh(ctx context.Context, raw string) {
	if i.denylist == nil || raw == "" {
		return
	}
	claims, err := i.parse(raw, useRefresh)
	if err != nil {
		return
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return
	}
	if err := i.denylist.Set(ctx, denylistPrefix+claims.ID, "1", ttl).Err(); err != nil {
		i.logger.Warn("token denylist write", slog.Any("error", err))
	}
}

func (i *Issuer) revoked(ctx context.Context, jti string) bool {
	if i.denylist == nil || jti == "" {
		return false
	}
	err := i.denylist.Get(ctx, denylistPrefix+jti).Err()
	if err == nil {
		return true
	}
	if !errors.Is(err, redis.Nil) {
		// Fail closed: an unreachable denylist must not revive revoked tokens.
		i.logger.Warn("token denylist read", slog.Any("error", err))
		return true
	}
	return false
}
