package token

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testIssuer(t *testing.T, denylist *redis.Client) *Issuer {
	t.Helper()
	return NewIssuer("test-secret", "tutorhub", 15*time.Minute, time.Hour, denylist, nil)
}

func redisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestIssuePairRoundTrip(t *testing.T) {
	issuer := testIssuer(t, nil)

	pair, err := issuer.IssuePair(42, "teacher1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := issuer.ParseAccess(pair.Access)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	id, err := claims.AccountID()
	if err != nil || id != 42 {
		t.Fatalf("expected account 42, got %d err=%v", id, err)
	}
	if claims.Username != "teacher1" {
		t.Fatalf("username mismatch: %q", claims.Username)
	}
	if claims.ImpersonatedBy != nil {
		t.Fatal("plain pair must not carry impersonation")
	}
}

func TestParseAccessRejectsRefreshToken(t *testing.T) {
	issuer := testIssuer(t, nil)
	pair, err := issuer.IssuePair(42, "teacher1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := issuer.ParseAccess(pair.Refresh); err == nil {
		t.Fatal("refresh token must not pass as access token")
	}
}

func TestParseAccessRejectsForeignSignature(t *testing.T) {
	issuer := testIssuer(t, nil)
	other := NewIssuer("other-secret", "tutorhub", 15*time.Minute, time.Hour, nil, nil)

	pair, err := other.IssuePair(42, "teacher1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := issuer.ParseAccess(pair.Access); err == nil {
		t.Fatal("token signed with another secret must be rejected")
	}
}

func TestParseAccessRejectsExpired(t *testing.T) {
	issuer := NewIssuer("test-secret", "tutorhub", -time.Minute, time.Hour, nil, nil)
	pair, err := issuer.IssuePair(42, "teacher1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := issuer.ParseAccess(pair.Access); err == nil {
		t.Fatal("expired access token must be rejected")
	}
}

func TestRefreshIssuesNewAccessToken(t *testing.T) {
	issuer := testIssuer(t, nil)
	pair, err := issuer.IssuePair(42, "teacher1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	access, err := issuer.Refresh(context.Background(), pair.Refresh)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	claims, err := issuer.ParseAccess(access)
	if err != nil {
		t.Fatalf("parse refreshed access: %v", err)
	}
	if claims.Username != "teacher1" {
		t.Fatalf("username mismatch: %q", claims.Username)
	}
}

func TestRevokeRefreshDenylistsToken(t *testing.T) {
	_, client := redisClient(t)
	issuer := testIssuer(t, client)

	pair, err := issuer.IssuePair(42, "teacher1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	ctx := context.Background()
	if _, err := issuer.Refresh(ctx, pair.Refresh); err != nil {
		t.Fatalf("refresh before revoke: %v", err)
	}

	issuer.RevokeRefresh(ctx, pair.Refresh)

	if _, err := issuer.Refresh(ctx, pair.Refresh); err == nil {
		t.Fatal("revoked refresh token must be rejected")
	}
}

func TestRefreshFailsClosedWhenDenylistUnreachable(t *testing.T) {
	mr, client := redisClient(t)
	issuer := testIssuer(t, client)

	pair, err := issuer.IssuePair(42, "teacher1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	mr.Close()

	if _, err := issuer.Refresh(context.Background(), pair.Refresh); err == nil {
		t.Fatal("unreachable denylist must reject the refresh")
	}
}

func TestRevokeRefreshIgnoresGarbage(t *testing.T) {
	_, client := redisClient(t)
	issuer := testIssuer(t, client)

	// Must not panic or error out.
	issuer.RevokeRefresh(context.Background(), "")
	issuer.RevokeRefresh(context.Background(), "not-a-jwt")
}

func TestImpersonatedPairCarriesAdmin(t *testing.T) {
	issuer := testIssuer(t, nil)

	pair, err := issuer.IssueImpersonatedPair(42, "student1", 1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := issuer.ParseAccess(pair.Access)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.ImpersonatedBy == nil || *claims.ImpersonatedBy != 1 {
		t.Fatalf("expected imp_by=1, got %v", claims.ImpersonatedBy)
	}

	// Refreshing keeps the attribution.
	access, err := issuer.Refresh(context.Background(), pair.Refresh)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	refreshed, err := issuer.ParseAccess(access)
	if err != nil {
		t.Fatalf("parse refreshed: %v", err)
	}
	if refreshed.ImpersonatedBy == nil || *refreshed.ImpersonatedBy != 1 {
		t.Fatalf("refresh dropped impersonation attribution: %v", refreshed.ImpersonatedBy)
	}
}
