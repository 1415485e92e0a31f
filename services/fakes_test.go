package services

import (
	"context"
	"sort"
	"time"

	"github.com/P1T0NN/cristian-website-sub000/models"
	"github.com/P1T0NN/cristian-website-sub000/repositories"
	"github.com/shopspring/decimal"
)

// Фейки работают в памяти и передают nil SQLExecutor: транзакционность
// здесь не проверяется, только бизнес-логика сервисов.

type fakeTxRunner struct{}

func (fakeTxRunner) RunInTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

type memStore struct {
	matches     map[int]*models.Match
	entries     map[int]*models.RosterEntry
	users       map[int]*models.User
	ledgerRows  []*models.LedgerEntry
	nextMatchID int
	nextEntryID int
	nextUserID  int
}

func newMemStore() *memStore {
	return &memStore{
		matches:     make(map[int]*models.Match),
		entries:     make(map[int]*models.RosterEntry),
		users:       make(map[int]*models.User),
		nextMatchID: 1,
		nextEntryID: 1,
		nextUserID:  1,
	}
}

func (s *memStore) addUser(u *models.User) *models.User {
	if u.ID == 0 {
		u.ID = s.nextUserID
	}
	if u.ID >= s.nextUserID {
		s.nextUserID = u.ID + 1
	}
	s.users[u.ID] = u
	return u
}

func (s *memStore) addMatch(m *models.Match) *models.Match {
	if m.ID == 0 {
		m.ID = s.nextMatchID
	}
	if m.ID >= s.nextMatchID {
		s.nextMatchID = m.ID + 1
	}
	s.matches[m.ID] = m
	return m
}

func (s *memStore) addEntry(e *models.RosterEntry) *models.RosterEntry {
	if e.ID == 0 {
		e.ID = s.nextEntryID
	}
	if e.ID >= s.nextEntryID {
		s.nextEntryID = e.ID + 1
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	s.entries[e.ID] = e
	return e
}

type fakeMatchRepo struct {
	store *memStore
}

func (r *fakeMatchRepo) Create(ctx context.Context, m *models.Match) error {
	m.CreatedAt = time.Now()
	r.store.addMatch(m)
	return nil
}

func (r *fakeMatchRepo) GetByID(ctx context.Context, id int) (*models.Match, error) {
	m, ok := r.store.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	copied := *m
	return &copied, nil
}

func (r *fakeMatchRepo) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeMatchRepo) List(ctx context.Context, filter repositories.ListMatchesFilter) ([]models.Match, error) {
	out := make([]models.Match, 0, len(r.store.matches))
	for _, m := range r.store.matches {
		if filter.Status != nil && m.Status != *filter.Status {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeMatchRepo) Update(ctx context.Context, m *models.Match) error {
	if _, ok := r.store.matches[m.ID]; !ok {
		return repositories.ErrMatchNotFound
	}
	copied := *m
	r.store.matches[m.ID] = &copied
	return nil
}

func (r *fakeMatchRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.MatchStatus) error {
	m, ok := r.store.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.Status = status
	return nil
}

func (r *fakeMatchRepo) UpdateAddedBy(ctx context.Context, exec repositories.SQLExecutor, id int, addedBy string) error {
	m, ok := r.store.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.AddedBy = addedBy
	return nil
}

func (r *fakeMatchRepo) UpdateExtraSpots(ctx context.Context, exec repositories.SQLExecutor, id, team, value int) error {
	m, ok := r.store.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if team == 1 {
		m.ExtraSpotsTeam1 = value
	} else {
		m.ExtraSpotsTeam2 = value
	}
	return nil
}

func (r *fakeMatchRepo) UpdateBlockedSpots(ctx context.Context, exec repositories.SQLExecutor, id, team, value int) error {
	m, ok := r.store.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if team == 1 {
		m.BlockSpotsTeam1 = value
	} else {
		m.BlockSpotsTeam2 = value
	}
	return nil
}

func (r *fakeMatchRepo) AdjustPlacesOccupied(ctx context.Context, exec repositories.SQLExecutor, id, delta int) (int, error) {
	m, ok := r.store.matches[id]
	if !ok {
		return 0, repositories.ErrMatchNotFound
	}
	m.PlacesOccupied += delta
	if m.PlacesOccupied < 0 {
		m.PlacesOccupied = 0
	}
	return m.PlacesOccupied, nil
}

func (r *fakeMatchRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	if _, ok := r.store.matches[id]; !ok {
		return repositories.ErrMatchNotFound
	}
	delete(r.store.matches, id)
	for entryID, e := range r.store.entries {
		if e.MatchID == id {
			delete(r.store.entries, entryID)
		}
	}
	return nil
}

func (r *fakeMatchRepo) ListStartedActive(ctx context.Context, now time.Time) ([]*models.Match, error) {
	var out []*models.Match
	for _, m := range r.store.matches {
		if m.Status == models.MatchStatusActive && !now.Before(m.Kickoff()) {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeRosterRepo struct {
	store *memStore
}

func (r *fakeRosterRepo) Create(ctx context.Context, exec repositories.SQLExecutor, e *models.RosterEntry) error {
	if e.PlayerType == models.PlayerTypeRegular {
		for _, other := range r.store.entries {
			if other.MatchID == e.MatchID && other.UserID == e.UserID && other.PlayerType == models.PlayerTypeRegular {
				return repositories.ErrRosterDuplicatePlayer
			}
		}
	}
	r.store.addEntry(e)
	return nil
}

func (r *fakeRosterRepo) CreateBatch(ctx context.Context, exec repositories.SQLExecutor, entries []*models.RosterEntry) error {
	for _, e := range entries {
		if err := r.Create(ctx, exec, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeRosterRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.RosterEntry, error) {
	e, ok := r.store.entries[id]
	if !ok {
		return nil, repositories.ErrRosterEntryNotFound
	}
	copied := *e
	return &copied, nil
}

func (r *fakeRosterRepo) FindRegularByUserAndMatch(ctx context.Context, exec repositories.SQLExecutor, userID, matchID int) (*models.RosterEntry, error) {
	for _, e := range r.store.entries {
		if e.MatchID == matchID && e.UserID == userID && e.PlayerType == models.PlayerTypeRegular {
			copied := *e
			return &copied, nil
		}
	}
	return nil, repositories.ErrRosterEntryNotFound
}

func (r *fakeRosterRepo) FindTemporaryByOwnerAndMatch(ctx context.Context, exec repositories.SQLExecutor, ownerID, matchID int) (*models.RosterEntry, error) {
	for _, e := range r.store.entries {
		if e.MatchID == matchID && e.UserID == ownerID && e.PlayerType == models.PlayerTypeTemporary {
			copied := *e
			return &copied, nil
		}
	}
	return nil, repositories.ErrRosterEntryNotFound
}

func (r *fakeRosterRepo) ListByMatch(ctx context.Context, matchID int) ([]*models.RosterEntry, error) {
	var out []*models.RosterEntry
	for _, e := range r.store.entries {
		if e.MatchID == matchID {
			copied := *e
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRosterRepo) ListBalanceEntrants(ctx context.Context, exec repositories.SQLExecutor, matchID int) ([]*models.RosterEntry, error) {
	var out []*models.RosterEntry
	for _, e := range r.store.entries {
		if e.MatchID == matchID && e.HasEnteredWithBalance {
			copied := *e
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRosterRepo) ListUnpaidRegulars(ctx context.Context, exec repositories.SQLExecutor, matchID int) ([]*models.RosterEntry, error) {
	var out []*models.RosterEntry
	for _, e := range r.store.entries {
		if e.MatchID == matchID && e.PlayerType == models.PlayerTypeRegular &&
			!e.HasPaid && !e.HasGratis && !e.HasEnteredWithBalance {
			copied := *e
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRosterRepo) CountByMatchAndTeam(ctx context.Context, exec repositories.SQLExecutor, matchID, team int) (int, error) {
	count := 0
	for _, e := range r.store.entries {
		if e.MatchID != matchID {
			continue
		}
		if team == 0 || e.TeamNumber == team {
			count++
		}
	}
	return count, nil
}

func (r *fakeRosterRepo) withEntry(id int, fn func(e *models.RosterEntry)) error {
	e, ok := r.store.entries[id]
	if !ok {
		return repositories.ErrRosterEntryNotFound
	}
	fn(e)
	return nil
}

func (r *fakeRosterRepo) UpdateTeamNumber(ctx context.Context, exec repositories.SQLExecutor, id, team int) error {
	return r.withEntry(id, func(e *models.RosterEntry) { e.TeamNumber = team })
}

func (r *fakeRosterRepo) UpdatePaymentFlags(ctx context.Context, exec repositories.SQLExecutor, id int, paid, discount, gratis bool) error {
	return r.withEntry(id, func(e *models.RosterEntry) {
		e.HasPaid, e.HasDiscount, e.HasGratis = paid, discount, gratis
	})
}

func (r *fakeRosterRepo) UpdateSubstituteRequested(ctx context.Context, exec repositories.SQLExecutor, id int, requested bool) error {
	return r.withEntry(id, func(e *models.RosterEntry) { e.SubstituteRequested = requested })
}

func (r *fakeRosterRepo) UpdateMatchAdmin(ctx context.Context, exec repositories.SQLExecutor, id int, isMatchAdmin bool) error {
	return r.withEntry(id, func(e *models.RosterEntry) { e.HasMatchAdmin = isMatchAdmin })
}

func (r *fakeRosterRepo) UpdateHasAddedFriend(ctx context.Context, exec repositories.SQLExecutor, id int, hasAddedFriend bool) error {
	return r.withEntry(id, func(e *models.RosterEntry) { e.HasAddedFriend = hasAddedFriend })
}

func (r *fakeRosterRepo) Repurpose(ctx context.Context, exec repositories.SQLExecutor, id, newUserID int, withBalance bool) error {
	return r.withEntry(id, func(e *models.RosterEntry) {
		e.UserID = newUserID
		e.PlayerType = models.PlayerTypeRegular
		e.TemporaryPlayerName = nil
		e.TemporaryPlayerPosition = nil
		e.PhoneNumber = nil
		e.SubstituteRequested = false
		e.HasEnteredWithBalance = withBalance
		e.HasPaid = withBalance
		e.HasDiscount = false
		e.HasGratis = false
		e.HasMatchAdmin = false
		e.HasAddedFriend = false
	})
}

func (r *fakeRosterRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	if _, ok := r.store.entries[id]; !ok {
		return repositories.ErrRosterEntryNotFound
	}
	delete(r.store.entries, id)
	return nil
}

type fakeUserRepo struct {
	store *memStore
}

func (r *fakeUserRepo) Create(ctx context.Context, u *models.User) error {
	for _, other := range r.store.users {
		if other.Email == u.Email {
			return repositories.ErrUserEmailConflict
		}
	}
	u.CreatedAt = time.Now()
	r.store.addUser(u)
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int) (*models.User, error) {
	u, ok := r.store.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range r.store.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) Search(ctx context.Context, query string, limit int) ([]*models.User, error) {
	var out []*models.User
	for _, u := range r.store.users {
		copied := *u
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeUserRepo) UpdateAvatarKey(ctx context.Context, userID int, avatarKey *string) error {
	u, ok := r.store.users[userID]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.AvatarKey = avatarKey
	return nil
}

func (r *fakeUserRepo) DebitBalance(ctx context.Context, exec repositories.SQLExecutor, userID int, amount decimal.Decimal) (decimal.Decimal, error) {
	u, ok := r.store.users[userID]
	if !ok {
		return decimal.Zero, repositories.ErrUserNotFound
	}
	if u.Balance.LessThan(amount) {
		return decimal.Zero, repositories.ErrUserInsufficientBalance
	}
	u.Balance = u.Balance.Sub(amount)
	return u.Balance, nil
}

func (r *fakeUserRepo) CreditBalance(ctx context.Context, exec repositories.SQLExecutor, userID int, amount decimal.Decimal) (decimal.Decimal, error) {
	u, ok := r.store.users[userID]
	if !ok {
		return decimal.Zero, repositories.ErrUserNotFound
	}
	u.Balance = u.Balance.Add(amount)
	return u.Balance, nil
}

func (r *fakeUserRepo) AddPlayerDebt(ctx context.Context, exec repositories.SQLExecutor, userID int, amount decimal.Decimal) (decimal.Decimal, error) {
	u, ok := r.store.users[userID]
	if !ok {
		return decimal.Zero, repositories.ErrUserNotFound
	}
	u.PlayerDebt = u.PlayerDebt.Add(amount)
	return u.PlayerDebt, nil
}

func (r *fakeUserRepo) SettlePlayerDebt(ctx context.Context, exec repositories.SQLExecutor, userID int, amount decimal.Decimal) (decimal.Decimal, error) {
	u, ok := r.store.users[userID]
	if !ok {
		return decimal.Zero, repositories.ErrUserNotFound
	}
	u.PlayerDebt = u.PlayerDebt.Sub(amount)
	if u.PlayerDebt.IsNegative() {
		u.PlayerDebt = decimal.Zero
	}
	return u.PlayerDebt, nil
}

// fixture собирает общий набор фейков и реальный LedgerService поверх них.
type fixture struct {
	store   *memStore
	matches *fakeMatchRepo
	roster  *fakeRosterRepo
	users   *fakeUserRepo
	ledger  *LedgerService
}

func newFixture() *fixture {
	store := newMemStore()
	userRepo := &fakeUserRepo{store: store}
	return &fixture{
		store:   store,
		matches: &fakeMatchRepo{store: store},
		roster:  &fakeRosterRepo{store: store},
		users:   userRepo,
		ledger:  NewLedgerService(userRepo, &fakeLedgerRepo{store: store}),
	}
}

// seedMatch добавляет активный матч с фиксированным началом
// (2030-06-15 18:00), чтобы тесты управляли временем через SetClock.
func (f *fixture) seedMatch(matchType models.MatchType, hasTeams bool, price string) *models.Match {
	p, _ := decimal.NewFromString(price)
	day := time.Date(2030, 6, 15, 0, 0, 0, 0, time.UTC)
	return f.store.addMatch(&models.Match{
		Location:     "Arena Central",
		Price:        p,
		Team1Name:    "Team A",
		Team2Name:    "Team B",
		StartsAtDay:  day,
		StartsAtHour: "18:00",
		MatchType:    matchType,
		MatchGender:  models.MatchGenderMixed,
		HasTeams:     hasTeams,
		Status:       models.MatchStatusActive,
	})
}

func (f *fixture) seedUser(name string, balance string) *models.User {
	b, _ := decimal.NewFromString(balance)
	return f.store.addUser(&models.User{
		FirstName: name,
		Email:     name + "@example.com",
		Balance:   b,
	})
}

type fakeLedgerRepo struct {
	store *memStore
}

func (r *fakeLedgerRepo) Create(ctx context.Context, exec repositories.SQLExecutor, e *models.LedgerEntry) error {
	e.ID = len(r.store.ledgerRows) + 1
	e.CreatedAt = time.Now()
	r.store.ledgerRows = append(r.store.ledgerRows, e)
	return nil
}

func (r *fakeLedgerRepo) ListByUser(ctx context.Context, userID, limit int) ([]*models.LedgerEntry, error) {
	var out []*models.LedgerEntry
	for _, e := range r.store.ledgerRows {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
