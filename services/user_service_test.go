package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/P1T0NN/cristian-website-sub000/models"
	"github.com/shopspring/decimal"
)

func newUserService(f *fixture) *UserService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewUserService(fakeTxRunner{}, f.users, f.ledger, nil, logger)
}

func TestTopUpBalance(t *testing.T) {
	f := newFixture()
	svc := newUserService(f)
	admin := f.seedUser("admin", "0")
	admin.IsAdmin = true
	user := f.seedUser("ana", "2.50")

	balance, err := svc.TopUpBalance(context.Background(), actorFor(admin), user.ID, decimal.RequireFromString("7.50"))
	if err != nil {
		t.Fatalf("top up: %v", err)
	}
	want := decimal.RequireFromString("10.00")
	if !balance.Equal(want) {
		t.Fatalf("balance = %s, want 10.00", balance)
	}
	if len(f.store.ledgerRows) != 1 || f.store.ledgerRows[0].Kind != models.LedgerKindTopUp {
		t.Fatalf("want one top-up ledger row, got %+v", f.store.ledgerRows)
	}
}

func TestTopUpBalanceForbidden(t *testing.T) {
	f := newFixture()
	svc := newUserService(f)
	user := f.seedUser("ana", "0")

	if _, err := svc.TopUpBalance(context.Background(), actorFor(user), user.ID, decimal.RequireFromString("5.00")); !errors.Is(err, ErrForbiddenOperation) {
		t.Fatalf("want ErrForbiddenOperation, got %v", err)
	}
}

func TestTopUpBalanceInvalidAmount(t *testing.T) {
	f := newFixture()
	svc := newUserService(f)
	admin := f.seedUser("admin", "0")
	admin.IsAdmin = true
	user := f.seedUser("ana", "0")

	if _, err := svc.TopUpBalance(context.Background(), actorFor(admin), user.ID, decimal.Zero); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("want ErrInvalidAmount, got %v", err)
	}
}

func TestSettlePlayerDebt(t *testing.T) {
	f := newFixture()
	svc := newUserService(f)
	admin := f.seedUser("admin", "0")
	admin.IsAdmin = true
	user := f.seedUser("ana", "0")
	user.PlayerDebt = decimal.RequireFromString("10.00")

	debt, err := svc.SettlePlayerDebt(context.Background(), actorFor(admin), user.ID, decimal.RequireFromString("4.00"))
	if err != nil {
		t.Fatalf("settle debt: %v", err)
	}
	if !debt.Equal(decimal.RequireFromString("6.00")) {
		t.Fatalf("remaining debt = %s, want 6.00", debt)
	}

	// Переплата не уводит долг в минус.
	debt, err = svc.SettlePlayerDebt(context.Background(), actorFor(admin), user.ID, decimal.RequireFromString("100.00"))
	if err != nil {
		t.Fatalf("overpaying settle: %v", err)
	}
	if !debt.IsZero() {
		t.Fatalf("remaining debt = %s, want 0", debt)
	}
}

func TestLedgerHistoryAccess(t *testing.T) {
	f := newFixture()
	svc := newUserService(f)
	owner := f.seedUser("ana", "0")
	other := f.seedUser("bob", "0")
	admin := f.seedUser("admin", "0")
	admin.IsAdmin = true

	f.store.ledgerRows = append(f.store.ledgerRows, &models.LedgerEntry{
		UserID: owner.ID, Amount: decimal.RequireFromString("5.00"), Kind: models.LedgerKindCharge,
	})

	rows, err := svc.LedgerHistory(context.Background(), actorFor(owner), owner.ID, 0)
	if err != nil {
		t.Fatalf("own history: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}

	if _, err := svc.LedgerHistory(context.Background(), actorFor(other), owner.ID, 0); !errors.Is(err, ErrForbiddenOperation) {
		t.Fatalf("want ErrForbiddenOperation, got %v", err)
	}
	if _, err := svc.LedgerHistory(context.Background(), actorFor(admin), owner.ID, 0); err != nil {
		t.Fatalf("admin must read any history: %v", err)
	}
}

func TestProfileHidesPasswordHash(t *testing.T) {
	f := newFixture()
	svc := newUserService(f)
	user := f.seedUser("ana", "0")
	user.PasswordHash = "bcrypt-hash"

	profile, err := svc.Profile(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.PasswordHash != "" {
		t.Fatal("password hash must not leak out of the service")
	}
}

func TestUploadAvatarWithoutStorage(t *testing.T) {
	f := newFixture()
	svc := newUserService(f)
	user := f.seedUser("ana", "0")

	if _, err := svc.UploadAvatar(context.Background(), user.ID, "image/png", nil); !errors.Is(err, ErrAvatarStorageDisabled) {
		t.Fatalf("want ErrAvatarStorageDisabled, got %v", err)
	}
}
