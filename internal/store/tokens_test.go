package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gatherly/pushpipe/internal/domain"
	"github.com/gatherly/pushpipe/internal/store"
)

func newToken(session string, platform domain.Platform, value string) *domain.PushToken {
	now := time.Now().UTC()
	return &domain.PushToken{
		ID:        uuid.NewString(),
		SessionID: session,
		Platform:  platform,
		Token:     value,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestTokensRegister_SupersedesPreviousActiveToken(t *testing.T) {
	repo := store.NewMockTokensRepository()
	ctx := context.Background()

	first := newToken("s-A", domain.PlatformIOS, "ExponentPushToken[old]")
	if err := repo.Register(ctx, first); err != nil {
		t.Fatal(err)
	}
	second := newToken("s-A", domain.PlatformIOS, "ExponentPushToken[new]")
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	if err := repo.Register(ctx, second); err != nil {
		t.Fatal(err)
	}

	old, ok := repo.Get(first.ID)
	if !ok {
		t.Fatal("superseded token missing from store")
	}
	if old.IsActive {
		t.Fatal("expected first token to be deactivated")
	}
	if old.RevokedReason == nil || *old.RevokedReason != "superseded" {
		t.Fatalf("expected revocation reason %q, got %v", "superseded", old.RevokedReason)
	}
	if old.RevokedAt == nil {
		t.Fatal("expected revoked_at to be set")
	}

	active, err := repo.ActiveBySession(ctx, "s-A")
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 {
		t.Fatalf("expected exactly 1 active token, got %d", len(active))
	}
	if active[0].Token != "ExponentPushToken[new]" {
		t.Fatalf("expected the new token to be the active one, got %q", active[0].Token)
	}
}

func TestTokensRegister_OtherPlatformIsUntouched(t *testing.T) {
	repo := store.NewMockTokensRepository()
	ctx := context.Background()

	ios := newToken("s-A", domain.PlatformIOS, "ExponentPushToken[ios]")
	if err := repo.Register(ctx, ios); err != nil {
		t.Fatal(err)
	}
	android := newToken("s-A", domain.PlatformAndroid, "ExponentPushToken[android]")
	if err := repo.Register(ctx, android); err != nil {
		t.Fatal(err)
	}

	active, err := repo.ActiveBySession(ctx, "s-A")
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 2 {
		t.Fatalf("expected one active token per platform, got %d", len(active))
	}
}
