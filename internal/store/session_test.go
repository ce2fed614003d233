package store

import (
	"testing"

	"github.com/askelund/dagsplan/internal/database"
)

func setupSessionTestDB(t *testing.T) (*SessionStore, *UserStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSessionStore(db), NewUserStore(db)
}

func TestSessionCreateAndLookup(t *testing.T) {
	ss, us := setupSessionTestDB(t)

	u, err := us.Create("mor@example.com", "Mor")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	sess, err := ss.Create(u.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if len(sess.Token) != 64 { // 32 bytes hex-encoded
		t.Errorf("token length = %d, want 64", len(sess.Token))
	}

	got, err := ss.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got == nil || got.UserID != u.ID {
		t.Fatalf("unexpected session: %+v", got)
	}

	if err := ss.Delete(sess.ID); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	got, err = ss.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get deleted session: %v", err)
	}
	if got != nil {
		t.Error("session still resolvable after delete")
	}
}

func TestSessionUnknownToken(t *testing.T) {
	ss, _ := setupSessionTestDB(t)

	got, err := ss.GetByToken("nope")
	if err != nil {
		t.Fatalf("get unknown token: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil session, got %+v", got)
	}
}

func TestLoginCodeConsume(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	lcs := NewLoginCodeStore(db)

	lc, err := lcs.Create("mor@example.com")
	if err != nil {
		t.Fatalf("create login code: %v", err)
	}
	if len(lc.Token) != 6 {
		t.Errorf("code length = %d, want 6", len(lc.Token))
	}

	// Wrong code does not consume. Generated codes start at 100000, so
	// 000000 can never collide.
	got, err := lcs.Consume("mor@example.com", "000000")
	if err != nil {
		t.Fatalf("consume wrong code: %v", err)
	}
	if got != nil {
		t.Error("wrong code should not consume")
	}

	got, err = lcs.Consume("mor@example.com", lc.Token)
	if err != nil {
		t.Fatalf("consume code: %v", err)
	}
	if got == nil {
		t.Fatal("expected code to be consumed")
	}

	// Second use fails.
	got, err = lcs.Consume("mor@example.com", lc.Token)
	if err != nil {
		t.Fatalf("re-consume code: %v", err)
	}
	if got != nil {
		t.Error("code should be single-use")
	}
}

func TestLoginCodeSupersedesPrevious(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	lcs := NewLoginCodeStore(db)

	first, _ := lcs.Create("mor@example.com")
	second, err := lcs.Create("mor@example.com")
	if err != nil {
		t.Fatalf("create second code: %v", err)
	}

	if first.Token != second.Token {
		if got, _ := lcs.Consume("mor@example.com", first.Token); got != nil {
			t.Error("superseded code should no longer work")
		}
	}
	if got, _ := lcs.Consume("mor@example.com", second.Token); got == nil {
		t.Error("latest code should work")
	}
}
