package memory_test

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
	"github.com/vladislavdragonenkov/minicrm/internal/storage/memory"
)

func TestUserRepository_CreateAndGet(t *testing.T) {
	repo := memory.NewUserRepository()

	created, err := repo.Create(domain.StoredUser{User: domain.User{Email: " Alice@Example.com "}, PasswordHash: []byte("hash")})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.ID != 1 || created.Email != "alice@example.com" {
		t.Fatalf("unexpected user: %+v", created)
	}

	got, err := repo.GetByEmail("ALICE@example.com")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(got.PasswordHash) != "hash" {
		t.Fatalf("unexpected hash %q", got.PasswordHash)
	}

	if _, err := repo.Create(domain.StoredUser{User: domain.User{Email: "alice@example.com"}}); !errors.Is(err, domain.ErrEmailAlreadyExists) {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}
	if _, err := repo.GetByEmail("bob@example.com"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestKeyValueStorage(t *testing.T) {
	ctx := t.Context()
	kv := memory.NewKeyValueStorage()

	if _, err := kv.Get(ctx, "auth_token"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	if err := kv.Set(ctx, "auth_token", "tok"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if v, _ := kv.Get(ctx, "auth_token"); v != "tok" {
		t.Fatalf("unexpected value %q", v)
	}
	if err := kv.Remove(ctx, "missing"); err != nil {
		t.Fatalf("remove of missing key must succeed: %v", err)
	}
	if err := kv.Clear(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if _, err := kv.Get(ctx, "auth_token"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound after clear, got %v", err)
	}
}
