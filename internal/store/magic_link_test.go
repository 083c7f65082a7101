package store

import (
	"testing"

	"github.com/openspot/openspot/internal/database"
)

func setupMagicLinkTestDB(t *testing.T) *MagicLinkStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewMagicLinkStore(db)
}

func TestMagicLinkCreate(t *testing.T) {
	ml := setupMagicLinkTestDB(t)

	link, err := ml.Create("alice@example.com")
	if err != nil {
		t.Fatalf("create link: %v", err)
	}
	if link.Token == "" {
		t.Error("expected non-empty token")
	}
	if link.UsedAt != nil {
		t.Error("new link should be unused")
	}
}

func TestMagicLinkCreateInvalidatesPrevious(t *testing.T) {
	ml := setupMagicLinkTestDB(t)

	first, err := ml.Create("bob@example.com")
	if err != nil {
		t.Fatalf("create first link: %v", err)
	}
	second, err := ml.Create("bob@example.com")
	if err != nil {
		t.Fatalf("create second link: %v", err)
	}

	got, err := ml.GetByToken(first.Token)
	if err != nil {
		t.Fatalf("get first link: %v", err)
	}
	if got != nil {
		t.Error("first link should no longer be valid")
	}

	got, err = ml.GetByToken(second.Token)
	if err != nil {
		t.Fatalf("get second link: %v", err)
	}
	if got == nil {
		t.Fatal("second link should be valid")
	}
}

func TestMagicLinkMarkUsed(t *testing.T) {
	ml := setupMagicLinkTestDB(t)

	link, err := ml.Create("carol@example.com")
	if err != nil {
		t.Fatalf("create link: %v", err)
	}
	if err := ml.MarkUsed(link.ID); err != nil {
		t.Fatalf("mark used: %v", err)
	}

	got, err := ml.GetByToken(link.Token)
	if err != nil {
		t.Fatalf("get used link: %v", err)
	}
	if got != nil {
		t.Error("used link should not resolve")
	}
}
