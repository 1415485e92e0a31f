package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/P1T0NN/cristian-website-sub000/models"
	"github.com/shopspring/decimal"
)

func newSubstitutionService(f *fixture) *SubstitutionService {
	return NewSubstitutionService(fakeTxRunner{}, f.matches, f.roster, f.ledger, nil, nil)
}

func TestRequestSubstitute(t *testing.T) {
	f := newFixture()
	svc := newSubstitutionService(f)
	match := f.seedMatch(models.MatchTypeF8, false, "5.00")
	user := f.seedUser("ana", "0")

	entry := f.store.addEntry(&models.RosterEntry{
		MatchID: match.ID, TeamNumber: 0,
		PlayerType: models.PlayerTypeRegular, UserID: user.ID,
	})

	if err := svc.RequestSubstitute(context.Background(), actorFor(user), match.ID, entry.ID); err != nil {
		t.Fatalf("request substitute: %v", err)
	}
	if !f.store.entries[entry.ID].SubstituteRequested {
		t.Fatal("substitute flag not set")
	}

	// Повторный запрос — no-op, не ошибка.
	if err := svc.RequestSubstitute(context.Background(), actorFor(user), match.ID, entry.ID); err != nil {
		t.Fatalf("repeated request must be a no-op: %v", err)
	}
}

func TestCancelSubstituteRequest(t *testing.T) {
	f := newFixture()
	svc := newSubstitutionService(f)
	match := f.seedMatch(models.MatchTypeF8, false, "5.00")
	user := f.seedUser("ana", "0")

	entry := f.store.addEntry(&models.RosterEntry{
		MatchID: match.ID, TeamNumber: 0,
		PlayerType: models.PlayerTypeRegular, UserID: user.ID,
		SubstituteRequested: true,
	})

	if err := svc.CancelSubstituteRequest(context.Background(), actorFor(user), match.ID, entry.ID); err != nil {
		t.Fatalf("cancel request: %v", err)
	}
	if f.store.entries[entry.ID].SubstituteRequested {
		t.Fatal("substitute flag not cleared")
	}
	if err := svc.CancelSubstituteRequest(context.Background(), actorFor(user), match.ID, entry.ID); err != nil {
		t.Fatalf("repeated cancel must be a no-op: %v", err)
	}
}

func TestRequestSubstituteForbidden(t *testing.T) {
	f := newFixture()
	svc := newSubstitutionService(f)
	match := f.seedMatch(models.MatchTypeF8, false, "5.00")
	owner := f.seedUser("ana", "0")
	other := f.seedUser("bob", "0")

	entry := f.store.addEntry(&models.RosterEntry{
		MatchID: match.ID, TeamNumber: 0,
		PlayerType: models.PlayerTypeRegular, UserID: owner.ID,
	})

	if err := svc.RequestSubstitute(context.Background(), actorFor(other), match.ID, entry.ID); !errors.Is(err, ErrForbiddenOperation) {
		t.Fatalf("want ErrForbiddenOperation, got %v", err)
	}

	// Глобальный админ распоряжается чужим местом.
	other.IsAdmin = true
	if err := svc.RequestSubstitute(context.Background(), actorFor(other), match.ID, entry.ID); err != nil {
		t.Fatalf("admin request on behalf of owner: %v", err)
	}
}

func TestReplacePlayerKeepsOccupancy(t *testing.T) {
	f := newFixture()
	svc := newSubstitutionService(f)
	svc.SetClock(beforeCutoff)
	match := f.seedMatch(models.MatchTypeF8, false, "10.00")
	leaver := f.seedUser("ana", "0")
	joiner := f.seedUser("bob", "10.00")

	entry := f.store.addEntry(&models.RosterEntry{
		MatchID: match.ID, TeamNumber: 0,
		PlayerType: models.PlayerTypeRegular, UserID: leaver.ID,
		SubstituteRequested: true,
	})
	match.PlacesOccupied = 1

	result, err := svc.ReplacePlayer(context.Background(), actorFor(joiner), match.ID, entry.ID, true)
	if err != nil {
		t.Fatalf("replace player: %v", err)
	}
	// Место переписано in-place: счётчик занятых не двигался.
	if result.PlacesOccupied != 1 || f.store.matches[match.ID].PlacesOccupied != 1 {
		t.Fatalf("places occupied must stay 1, got %d", f.store.matches[match.ID].PlacesOccupied)
	}
	stored := f.store.entries[entry.ID]
	if stored.UserID != joiner.ID || stored.PlayerType != models.PlayerTypeRegular {
		t.Fatalf("entry not repurposed: %+v", stored)
	}
	if stored.SubstituteRequested {
		t.Fatal("substitute flag must be cleared")
	}
	if result.UpdatedBalance == nil || !result.UpdatedBalance.IsZero() {
		t.Fatalf("updated balance = %v, want 0", result.UpdatedBalance)
	}
	if !f.store.users[joiner.ID].Balance.IsZero() {
		t.Fatalf("joiner balance = %s, want 0", f.store.users[joiner.ID].Balance)
	}
}

func TestReplacePlayerRefundsVacatingPlayer(t *testing.T) {
	f := newFixture()
	svc := newSubstitutionService(f)
	svc.SetClock(beforeCutoff)
	match := f.seedMatch(models.MatchTypeF8, false, "10.00")
	leaver := f.seedUser("ana", "0")
	joiner := f.seedUser("bob", "0")

	entry := f.store.addEntry(&models.RosterEntry{
		MatchID: match.ID, TeamNumber: 0,
		PlayerType: models.PlayerTypeRegular, UserID: leaver.ID,
		HasPaid: true, HasEnteredWithBalance: true,
		SubstituteRequested: true,
	})

	result, err := svc.ReplacePlayer(context.Background(), actorFor(joiner), match.ID, entry.ID, false)
	if err != nil {
		t.Fatalf("replace player: %v", err)
	}
	// Уходящий платил с баланса — взнос вернулся ему, а не остался в матче.
	want := decimal.RequireFromString("10.00")
	if !f.store.users[leaver.ID].Balance.Equal(want) {
		t.Fatalf("leaver balance = %s, want 10.00", f.store.users[leaver.ID].Balance)
	}
	if len(f.store.ledgerRows) != 1 || f.store.ledgerRows[0].Kind != models.LedgerKindRefund {
		t.Fatalf("want one refund ledger row, got %+v", f.store.ledgerRows)
	}
	if result.Entry.HasEnteredWithBalance || result.Entry.HasPaid {
		t.Fatalf("cash replacement must start unpaid: %+v", result.Entry)
	}
}

func TestReplacePlayerResetsInheritedFlags(t *testing.T) {
	f := newFixture()
	svc := newSubstitutionService(f)
	svc.SetClock(beforeCutoff)
	match := f.seedMatch(models.MatchTypeF8, false, "5.00")
	leaver := f.seedUser("ana", "0")
	joiner := f.seedUser("bob", "0")

	entry := f.store.addEntry(&models.RosterEntry{
		MatchID: match.ID, TeamNumber: 0,
		PlayerType: models.PlayerTypeRegular, UserID: leaver.ID,
		HasPaid: true, HasGratis: true,
		HasMatchAdmin: true, HasAddedFriend: true,
		SubstituteRequested: true,
	})

	if _, err := svc.ReplacePlayer(context.Background(), actorFor(joiner), match.ID, entry.ID, false); err != nil {
		t.Fatalf("replace player: %v", err)
	}
	stored := f.store.entries[entry.ID]
	if stored.HasPaid || stored.HasGratis || stored.HasDiscount {
		t.Fatalf("payment flags must not carry over: %+v", stored)
	}
	if stored.HasMatchAdmin || stored.HasAddedFriend {
		t.Fatalf("organizer and friend flags must not carry over: %+v", stored)
	}
}

func TestReplacePlayerAfterKickoff(t *testing.T) {
	f := newFixture()
	svc := newSubstitutionService(f)
	svc.SetClock(func() time.Time { return time.Date(2030, 6, 15, 18, 0, 0, 0, time.UTC) })
	match := f.seedMatch(models.MatchTypeF8, false, "5.00")
	leaver := f.seedUser("ana", "0")
	joiner := f.seedUser("bob", "0")

	entry := f.store.addEntry(&models.RosterEntry{
		MatchID: match.ID, TeamNumber: 0,
		PlayerType: models.PlayerTypeRegular, UserID: leaver.ID,
		SubstituteRequested: true,
	})

	if _, err := svc.ReplacePlayer(context.Background(), actorFor(joiner), match.ID, entry.ID, false); !errors.Is(err, ErrMatchAlreadyStarted) {
		t.Fatalf("want ErrMatchAlreadyStarted, got %v", err)
	}
}

func TestReplacePlayerAlreadyJoined(t *testing.T) {
	f := newFixture()
	svc := newSubstitutionService(f)
	svc.SetClock(beforeCutoff)
	match := f.seedMatch(models.MatchTypeF8, false, "5.00")
	leaver := f.seedUser("ana", "0")
	joiner := f.seedUser("bob", "0")

	entry := f.store.addEntry(&models.RosterEntry{
		MatchID: match.ID, TeamNumber: 0,
		PlayerType: models.PlayerTypeRegular, UserID: leaver.ID,
		SubstituteRequested: true,
	})
	f.store.addEntry(&models.RosterEntry{
		MatchID: match.ID, TeamNumber: 0,
		PlayerType: models.PlayerTypeRegular, UserID: joiner.ID,
	})

	if _, err := svc.ReplacePlayer(context.Background(), actorFor(joiner), match.ID, entry.ID, false); !errors.Is(err, ErrAlreadyJoined) {
		t.Fatalf("want ErrAlreadyJoined, got %v", err)
	}
}

func TestReplacePlayerWrongMatch(t *testing.T) {
	f := newFixture()
	svc := newSubstitutionService(f)
	svc.SetClock(beforeCutoff)
	match := f.seedMatch(models.MatchTypeF8, false, "5.00")
	otherMatch := f.seedMatch(models.MatchTypeF8, false, "5.00")
	leaver := f.seedUser("ana", "0")
	joiner := f.seedUser("bob", "0")

	entry := f.store.addEntry(&models.RosterEntry{
		MatchID: otherMatch.ID, TeamNumber: 0,
		PlayerType: models.PlayerTypeRegular, UserID: leaver.ID,
	})

	if _, err := svc.ReplacePlayer(context.Background(), actorFor(joiner), match.ID, entry.ID, false); !errors.Is(err, ErrPlayerNotInMatch) {
		t.Fatalf("want ErrPlayerNotInMatch, got %v", err)
	}
}
