package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/store"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	rs, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return rs, s
}

func testUser(id, name, role string) store.User {
	return store.User{ID: id, DisplayName: name, Role: role}
}

func TestNewRedisStore(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	rs, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer rs.Close()

	if err := rs.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestSaveAndLookupRefreshSession(t *testing.T) {
	rs, s := setupTestRedis(t)
	defer rs.Close()
	defer s.Close()

	ctx := context.Background()
	tokenHash := "test-token-hash"
	expiresAt := time.Now().Add(24 * time.Hour)

	err := rs.SaveRefreshSession(ctx, tokenHash, testUser("user-123", "Jiyoon Park", "manager"), expiresAt)
	if err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}

	user, err := rs.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		t.Fatalf("LookupRefreshSession failed: %v", err)
	}
	if user.ID != "user-123" {
		t.Errorf("expected user ID user-123, got %s", user.ID)
	}
	if user.Role != "manager" {
		t.Errorf("expected role manager, got %s", user.Role)
	}
	if user.DisplayName != "Jiyoon Park" {
		t.Errorf("expected display name to round-trip, got %s", user.DisplayName)
	}
}

func TestLookupExpiredSession(t *testing.T) {
	rs, s := setupTestRedis(t)
	defer rs.Close()
	defer s.Close()

	ctx := context.Background()
	tokenHash := "expired-token"

	expiresAt := time.Now().Add(1 * time.Millisecond)
	if err := rs.SaveRefreshSession(ctx, tokenHash, testUser("user-456", "", "sales"), expiresAt); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}

	s.FastForward(2 * time.Millisecond)

	if _, err := rs.LookupRefreshSession(ctx, tokenHash); err == nil {
		t.Error("expected error for expired token, got nil")
	}
}

func TestLookupNonExistentSession(t *testing.T) {
	rs, s := setupTestRedis(t)
	defer rs.Close()
	defer s.Close()

	if _, err := rs.LookupRefreshSession(context.Background(), "non-existent-token"); err == nil {
		t.Error("expected error for non-existent token, got nil")
	}
}

func TestRevokeRefreshSession(t *testing.T) {
	rs, s := setupTestRedis(t)
	defer rs.Close()
	defer s.Close()

	ctx := context.Background()
	tokenHash := "token-to-revoke"
	expiresAt := time.Now().Add(24 * time.Hour)

	if err := rs.SaveRefreshSession(ctx, tokenHash, testUser("user-789", "", "sales"), expiresAt); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}
	if _, err := rs.LookupRefreshSession(ctx, tokenHash); err != nil {
		t.Fatalf("Lookup before revoke failed: %v", err)
	}

	if err := rs.RevokeRefreshSession(ctx, tokenHash); err != nil {
		t.Fatalf("RevokeRefreshSession failed: %v", err)
	}
	if _, err := rs.LookupRefreshSession(ctx, tokenHash); err == nil {
		t.Error("expected error for revoked token, got nil")
	}
}

func TestRevokeNonExistentSession(t *testing.T) {
	rs, s := setupTestRedis(t)
	defer rs.Close()
	defer s.Close()

	if err := rs.RevokeRefreshSession(context.Background(), "non-existent-token"); err != nil {
		t.Errorf("RevokeRefreshSession for non-existent token failed: %v", err)
	}
}

func TestSessionIsolation(t *testing.T) {
	rs, s := setupTestRedis(t)
	defer rs.Close()
	defer s.Close()

	ctx := context.Background()
	expiresAt := time.Now().Add(24 * time.Hour)

	if err := rs.SaveRefreshSession(ctx, "token-1", testUser("user-1", "", "sales"), expiresAt); err != nil {
		t.Fatalf("SaveRefreshSession 1 failed: %v", err)
	}
	if err := rs.SaveRefreshSession(ctx, "token-2", testUser("user-2", "", "manager"), expiresAt); err != nil {
		t.Fatalf("SaveRefreshSession 2 failed: %v", err)
	}

	user1, err := rs.LookupRefreshSession(ctx, "token-1")
	if err != nil {
		t.Fatalf("Lookup token-1 failed: %v", err)
	}
	if user1.ID != "user-1" {
		t.Errorf("expected user-1, got %s", user1.ID)
	}

	if err := rs.RevokeRefreshSession(ctx, "token-1"); err != nil {
		t.Fatalf("Revoke token-1 failed: %v", err)
	}
	if _, err := rs.LookupRefreshSession(ctx, "token-1"); err == nil {
		t.Error("expected error for revoked token-1, got nil")
	}

	user2, err := rs.LookupRefreshSession(ctx, "token-2")
	if err != nil {
		t.Fatalf("Lookup token-2 after revoke failed: %v", err)
	}
	if user2.ID != "user-2" {
		t.Errorf("expected user-2 after revoke, got %s", user2.ID)
	}
}
