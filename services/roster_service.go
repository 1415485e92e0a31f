package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/P1T0NN/cristian-website-sub000/cache"
	"github.com/P1T0NN/cristian-website-sub000/live"
	"github.com/P1T0NN/cristian-website-sub000/models"
	"github.com/P1T0NN/cristian-website-sub000/repositories"
	"github.com/shopspring/decimal"
)

// RosterService инкапсулирует членство в составе матча: вход/выход,
// временные игроки, флаги оплаты, правки мест. Каждая мутация выполняется
// в одной транзакции с блокировкой строки матча (SELECT ... FOR UPDATE),
// чтобы два конкурентных входа не заняли одно последнее место.
type RosterService struct {
	tx                 TxRunner
	matchRepo          repositories.MatchRepository
	rosterRepo         repositories.RosterRepository
	userRepo           repositories.UserRepository
	ledger             AccountLedger
	cache              cache.Invalidator
	hub                *live.Hub
	leaveCutoff        time.Duration
	defaultPhoneRegion string
	now                func() time.Time
}

func NewRosterService(
	tx TxRunner,
	matchRepo repositories.MatchRepository,
	rosterRepo repositories.RosterRepository,
	userRepo repositories.UserRepository,
	ledger AccountLedger,
	invalidator cache.Invalidator,
	hub *live.Hub,
	leaveCutoff time.Duration,
	defaultPhoneRegion string,
) *RosterService {
	return &RosterService{
		tx:                 tx,
		matchRepo:          matchRepo,
		rosterRepo:         rosterRepo,
		userRepo:           userRepo,
		ledger:             ledger,
		cache:              invalidator,
		hub:                hub,
		leaveCutoff:        leaveCutoff,
		defaultPhoneRegion: defaultPhoneRegion,
		now:                time.Now,
	}
}

type JoinResult struct {
	Entry          *models.RosterEntry
	PlacesOccupied int
	// UpdatedBalance заполнен, если вход оплачен с баланса.
	UpdatedBalance *decimal.Decimal
}

type LeaveResult struct {
	PlacesOccupied int
	// UpdatedBalance заполнен, если выходящему вернули деньги на баланс.
	UpdatedBalance *decimal.Decimal
}

type NewTemporaryPlayer struct {
	Name     string `json:"name"`
	Position string `json:"position"`
	Phone    string `json:"phone"`
}

func matchTag(matchID int) string {
	return "match:" + strconv.Itoa(matchID)
}

// notifyRosterChanged сбрасывает кэш матча и шлёт событие в комнату.
// Оба действия fire-and-forget после успешного коммита.
func (s *RosterService) notifyRosterChanged(matchID, placesOccupied int) {
	if s.cache != nil {
		s.cache.InvalidateTag(matchTag(matchID))
	}
	if s.hub != nil {
		s.hub.BroadcastToRoom(matchTag(matchID), live.Message{
			Type: live.EventRosterUpdated,
			Payload: map[string]interface{}{
				"match_id":        matchID,
				"places_occupied": placesOccupied,
			},
		})
	}
}

func (s *RosterService) lockMatch(ctx context.Context, exec repositories.SQLExecutor, matchID int) (*models.Match, error) {
	match, err := s.matchRepo.GetByIDForUpdate(ctx, exec, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to lock match %d: %w", matchID, err)
	}
	return match, nil
}

// ensureTeamHasRoom перечитывает занятость команды под блокировкой матча.
func (s *RosterService) ensureTeamHasRoom(ctx context.Context, exec repositories.SQLExecutor, match *models.Match, team, needed int) error {
	occupied, err := s.rosterRepo.CountByMatchAndTeam(ctx, exec, match.ID, team)
	if err != nil {
		return fmt.Errorf("failed to count team occupants: %w", err)
	}
	capacity := CapacityForTeam(match, team)
	if occupied+needed > capacity {
		if needed > 1 {
			if IsFull(occupied, capacity) {
				return ErrMatchFull
			}
			return ErrNotEnoughSpots
		}
		if match.HasTeams {
			return ErrTeamFull
		}
		return ErrMatchFull
	}
	return nil
}

// JoinMatch добавляет авторизованного игрока в состав. При withBalance
// списание и занятие места происходят в одной транзакции: либо оба, либо
// ни одного.
func (s *RosterService) JoinMatch(ctx context.Context, actor ActorContext, matchID, teamNumber int, withBalance bool) (*JoinResult, error) {
	result := &JoinResult{}

	err := s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.lockMatch(ctx, exec, matchID)
		if err != nil {
			return err
		}
		if match.Status != models.MatchStatusActive {
			return ErrMatchAlreadyStarted
		}
		if !validTeamNumber(match, teamNumber) {
			return ErrInvalidTeamNumber
		}

		existing, err := s.rosterRepo.FindRegularByUserAndMatch(ctx, exec, actor.ID, matchID)
		if err != nil && !errors.Is(err, repositories.ErrRosterEntryNotFound) {
			return fmt.Errorf("failed to check existing entry: %w", err)
		}
		if existing != nil {
			return ErrAlreadyJoined
		}

		if err := s.ensureTeamHasRoom(ctx, exec, match, teamNumber, 1); err != nil {
			return err
		}

		if withBalance {
			balance, err := s.ledger.Debit(ctx, exec, actor.ID, match.Price, matchRefundReason("Match fee", match))
			if err != nil {
				return err
			}
			result.UpdatedBalance = &balance
		}

		entry := &models.RosterEntry{
			MatchID:               matchID,
			TeamNumber:            teamNumber,
			PlayerType:            models.PlayerTypeRegular,
			UserID:                actor.ID,
			HasPaid:               withBalance,
			HasEnteredWithBalance: withBalance,
		}
		if err := s.rosterRepo.Create(ctx, exec, entry); err != nil {
			if errors.Is(err, repositories.ErrRosterDuplicatePlayer) {
				return ErrAlreadyJoined
			}
			return err
		}
		result.Entry = entry

		occupied, err := s.matchRepo.AdjustPlacesOccupied(ctx, exec, matchID, 1)
		if err != nil {
			return err
		}
		result.PlacesOccupied = occupied
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyRosterChanged(matchID, result.PlacesOccupied)
	return result, nil
}

// AddFriend добавляет временного игрока ("друга") от имени участника.
// Один участник может привести максимум одного друга на матч.
func (s *RosterService) AddFriend(ctx context.Context, actor ActorContext, matchID, teamNumber int, friend NewTemporaryPlayer) (*JoinResult, error) {
	name := strings.TrimSpace(friend.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: friend name is required", ErrValidationFailed)
	}
	phone, err := normalizePhone(strings.TrimSpace(friend.Phone), s.defaultPhoneRegion)
	if err != nil {
		return nil, err
	}

	result := &JoinResult{}
	err = s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.lockMatch(ctx, exec, matchID)
		if err != nil {
			return err
		}
		if match.Status != models.MatchStatusActive {
			return ErrMatchAlreadyStarted
		}
		if !validTeamNumber(match, teamNumber) {
			return ErrInvalidTeamNumber
		}

		owner, err := s.rosterRepo.FindRegularByUserAndMatch(ctx, exec, actor.ID, matchID)
		if err != nil {
			if errors.Is(err, repositories.ErrRosterEntryNotFound) {
				return ErrPlayerNotInMatch
			}
			return fmt.Errorf("failed to find owner entry: %w", err)
		}
		if owner.HasAddedFriend {
			return ErrAlreadyAddedFriend
		}

		if err := s.ensureTeamHasRoom(ctx, exec, match, teamNumber, 1); err != nil {
			return err
		}

		entry := &models.RosterEntry{
			MatchID:             matchID,
			TeamNumber:          teamNumber,
			PlayerType:          models.PlayerTypeTemporary,
			UserID:              actor.ID,
			TemporaryPlayerName: &name,
			PhoneNumber:         phone,
		}
		if position := strings.TrimSpace(friend.Position); position != "" {
			entry.TemporaryPlayerPosition = &position
		}
		if err := s.rosterRepo.Create(ctx, exec, entry); err != nil {
			return err
		}
		result.Entry = entry

		if err := s.rosterRepo.UpdateHasAddedFriend(ctx, exec, owner.ID, true); err != nil {
			return err
		}

		occupied, err := s.matchRepo.AdjustPlacesOccupied(ctx, exec, matchID, 1)
		if err != nil {
			return err
		}
		result.PlacesOccupied = occupied
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyRosterChanged(matchID, result.PlacesOccupied)
	return result, nil
}

// LeaveMatch удаляет место из состава: своё, своего друга
// (isRemovingFriend) или любое указанное (глобальный админ, entryID != 0).
// Добровольный выход закрыт в пределах leaveCutoff до начала матча —
// вместо удаления вызывающий получает ErrTooLateToLeave и должен
// предложить запрос замены.
func (s *RosterService) LeaveMatch(ctx context.Context, actor ActorContext, matchID, entryID int, isRemovingFriend bool) (*LeaveResult, error) {
	result := &LeaveResult{}

	err := s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.lockMatch(ctx, exec, matchID)
		if err != nil {
			return err
		}

		adminOverride := actor.IsGlobalAdmin && entryID != 0

		var entry *models.RosterEntry
		switch {
		case adminOverride:
			entry, err = s.rosterRepo.GetByID(ctx, exec, entryID)
		case isRemovingFriend:
			entry, err = s.rosterRepo.FindTemporaryByOwnerAndMatch(ctx, exec, actor.ID, matchID)
		default:
			entry, err = s.rosterRepo.FindRegularByUserAndMatch(ctx, exec, actor.ID, matchID)
		}
		if err != nil {
			if errors.Is(err, repositories.ErrRosterEntryNotFound) {
				return ErrPlayerNotInMatch
			}
			return fmt.Errorf("failed to resolve entry to remove: %w", err)
		}
		if entry.MatchID != matchID {
			return ErrPlayerNotInMatch
		}

		if !adminOverride && s.now().After(match.Kickoff().Add(-s.leaveCutoff)) {
			return ErrTooLateToLeave
		}

		if entry.HasEnteredWithBalance {
			balance, err := s.ledger.Credit(ctx, exec, entry.UserID, match.Price, matchRefundReason("Refund", match))
			if err != nil {
				return err
			}
			result.UpdatedBalance = &balance
		}

		if err := s.rosterRepo.Delete(ctx, exec, entry.ID); err != nil {
			return err
		}

		// Удалили друга — владелец снова может привести одного.
		if entry.IsTemporary() {
			owner, err := s.rosterRepo.FindRegularByUserAndMatch(ctx, exec, entry.UserID, matchID)
			if err == nil {
				if err := s.rosterRepo.UpdateHasAddedFriend(ctx, exec, owner.ID, false); err != nil {
					return err
				}
			} else if !errors.Is(err, repositories.ErrRosterEntryNotFound) {
				return fmt.Errorf("failed to reset has_added_friend: %w", err)
			}
		}

		occupied, err := s.matchRepo.AdjustPlacesOccupied(ctx, exec, matchID, -1)
		if err != nil {
			return err
		}
		result.PlacesOccupied = occupied
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyRosterChanged(matchID, result.PlacesOccupied)
	return result, nil
}

// AdminAddPlayers вставляет пачку временных игроков целиком: либо всем
// хватило мест и все вставлены, либо транзакция откатывается.
func (s *RosterService) AdminAddPlayers(ctx context.Context, actor ActorContext, matchID, teamNumber int, players []NewTemporaryPlayer) ([]*models.RosterEntry, int, error) {
	if !actor.IsGlobalAdmin {
		return nil, 0, ErrForbiddenOperation
	}

	valid := make([]NewTemporaryPlayer, 0, len(players))
	for _, p := range players {
		if strings.TrimSpace(p.Name) != "" {
			valid = append(valid, p)
		}
	}
	if len(valid) == 0 {
		return nil, 0, ErrNoValidPlayers
	}

	entries := make([]*models.RosterEntry, 0, len(valid))
	var placesOccupied int

	err := s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.lockMatch(ctx, exec, matchID)
		if err != nil {
			return err
		}
		if !validTeamNumber(match, teamNumber) {
			return ErrInvalidTeamNumber
		}
		if err := s.ensureTeamHasRoom(ctx, exec, match, teamNumber, len(valid)); err != nil {
			return err
		}

		for _, p := range valid {
			name := strings.TrimSpace(p.Name)
			phone, err := normalizePhone(strings.TrimSpace(p.Phone), s.defaultPhoneRegion)
			if err != nil {
				return err
			}
			entry := &models.RosterEntry{
				MatchID:             matchID,
				TeamNumber:          teamNumber,
				PlayerType:          models.PlayerTypeTemporary,
				UserID:              actor.ID,
				TemporaryPlayerName: &name,
				PhoneNumber:         phone,
			}
			if position := strings.TrimSpace(p.Position); position != "" {
				entry.TemporaryPlayerPosition = &position
			}
			entries = append(entries, entry)
		}

		if err := s.rosterRepo.CreateBatch(ctx, exec, entries); err != nil {
			return err
		}

		occupied, err := s.matchRepo.AdjustPlacesOccupied(ctx, exec, matchID, len(entries))
		if err != nil {
			return err
		}
		placesOccupied = occupied
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	s.notifyRosterChanged(matchID, placesOccupied)
	return entries, placesOccupied, nil
}

// SwitchTeam перекидывает место между командами 1 и 2.
// В пуле (team 0) переключать нечего.
func (s *RosterService) SwitchTeam(ctx context.Context, actor ActorContext, matchID, entryID int) error {
	if !actor.CanManageMatch() {
		return ErrForbiddenOperation
	}

	err := s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.lockMatch(ctx, exec, matchID)
		if err != nil {
			return err
		}

		entry, err := s.rosterRepo.GetByID(ctx, exec, entryID)
		if err != nil {
			if errors.Is(err, repositories.ErrRosterEntryNotFound) {
				return ErrPlayerNotInMatch
			}
			return err
		}
		if entry.MatchID != matchID {
			return ErrPlayerNotInMatch
		}
		if entry.TeamNumber != 1 && entry.TeamNumber != 2 {
			return ErrTeamSwitchInPool
		}

		targetTeam := 3 - entry.TeamNumber
		if err := s.ensureTeamHasRoom(ctx, exec, match, targetTeam, 1); err != nil {
			return err
		}
		return s.rosterRepo.UpdateTeamNumber(ctx, exec, entry.ID, targetTeam)
	})
	if err != nil {
		return err
	}

	if s.cache != nil {
		s.cache.InvalidateTag(matchTag(matchID))
	}
	return nil
}

// SetPaymentFlag прогоняет действие оплаты через стейт-машину и
// сохраняет результат.
func (s *RosterService) SetPaymentFlag(ctx context.Context, actor ActorContext, matchID, entryID int, action PaymentAction) (*models.RosterEntry, error) {
	if !actor.CanManageMatch() {
		return nil, ErrForbiddenOperation
	}

	var updated *models.RosterEntry
	err := s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		entry, err := s.rosterRepo.GetByID(ctx, exec, entryID)
		if err != nil {
			if errors.Is(err, repositories.ErrRosterEntryNotFound) {
				return ErrPlayerNotInMatch
			}
			return err
		}
		if entry.MatchID != matchID {
			return ErrPlayerNotInMatch
		}

		flags := PaymentFlags{Paid: entry.HasPaid, Discount: entry.HasDiscount, Gratis: entry.HasGratis}
		next, err := flags.Apply(action)
		if err != nil {
			return err
		}

		if err := s.rosterRepo.UpdatePaymentFlags(ctx, exec, entry.ID, next.Paid, next.Discount, next.Gratis); err != nil {
			return err
		}
		entry.HasPaid, entry.HasDiscount, entry.HasGratis = next.Paid, next.Discount, next.Gratis
		updated = entry
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.InvalidateTag(matchTag(matchID))
	}
	return updated, nil
}

// SetMatchAdmin выдаёт/снимает флаг организатора матча на regular-месте.
// Только глобальный админ; при выдаче имя попадает в added_by матча.
func (s *RosterService) SetMatchAdmin(ctx context.Context, actor ActorContext, matchID, entryID int, grant bool) error {
	if !actor.IsGlobalAdmin {
		return ErrForbiddenOperation
	}

	return s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		entry, err := s.rosterRepo.GetByID(ctx, exec, entryID)
		if err != nil {
			if errors.Is(err, repositories.ErrRosterEntryNotFound) {
				return ErrPlayerNotInMatch
			}
			return err
		}
		if entry.MatchID != matchID {
			return ErrPlayerNotInMatch
		}
		if entry.IsTemporary() {
			return ErrMatchAdminRegular
		}

		if err := s.rosterRepo.UpdateMatchAdmin(ctx, exec, entry.ID, grant); err != nil {
			return err
		}

		if grant {
			user, err := s.userRepo.GetByID(ctx, entry.UserID)
			if err != nil {
				return fmt.Errorf("failed to load match admin user: %w", err)
			}
			if err := s.matchRepo.UpdateAddedBy(ctx, exec, matchID, user.FullName()); err != nil {
				return err
			}
		}
		return nil
	})
}

// AdjustExtraSpots меняет extra-места команды на delta (±).
func (s *RosterService) AdjustExtraSpots(ctx context.Context, actor ActorContext, matchID, team, delta int) error {
	if !actor.CanManageMatch() {
		return ErrForbiddenOperation
	}
	if team != 1 && team != 2 {
		return ErrInvalidTeamNumber
	}

	err := s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.lockMatch(ctx, exec, matchID)
		if err != nil {
			return err
		}
		occupied, err := s.rosterRepo.CountByMatchAndTeam(ctx, exec, matchID, team)
		if err != nil {
			return fmt.Errorf("failed to count team occupants: %w", err)
		}
		next, err := ValidateExtraSpotsChange(match, team, delta, occupied)
		if err != nil {
			return err
		}
		return s.matchRepo.UpdateExtraSpots(ctx, exec, matchID, team, next)
	})
	if err != nil {
		return err
	}

	if s.cache != nil {
		s.cache.InvalidateTag(matchTag(matchID))
	}
	return nil
}

// SetBlockedSpots выставляет число закрытых мест команды.
func (s *RosterService) SetBlockedSpots(ctx context.Context, actor ActorContext, matchID, team, value int) error {
	if !actor.CanManageMatch() {
		return ErrForbiddenOperation
	}
	if team != 1 && team != 2 {
		return ErrInvalidTeamNumber
	}

	err := s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.lockMatch(ctx, exec, matchID)
		if err != nil {
			return err
		}
		occupied, err := s.rosterRepo.CountByMatchAndTeam(ctx, exec, matchID, team)
		if err != nil {
			return fmt.Errorf("failed to count team occupants: %w", err)
		}
		if err := ValidateBlockedSpotsChange(match, team, value, occupied); err != nil {
			return err
		}
		return s.matchRepo.UpdateBlockedSpots(ctx, exec, matchID, team, value)
	})
	if err != nil {
		return err
	}

	if s.cache != nil {
		s.cache.InvalidateTag(matchTag(matchID))
	}
	return nil
}

// SetClock подменяет источник времени в тестах.
func (s *RosterService) SetClock(now func() time.Time) {
	s.now = now
}
