package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/P1T0NN/cristian-website-sub000/cache"
	"github.com/P1T0NN/cristian-website-sub000/live"
	"github.com/P1T0NN/cristian-website-sub000/models"
	"github.com/P1T0NN/cristian-website-sub000/repositories"
	"github.com/shopspring/decimal"
)

// SubstitutionService ведёт жизненный цикл замены:
// Active → SubstituteRequested → {Replaced, CancelledBackToActive, RemovedByAdmin}.
// Запрос замены — штатный выход, когда добровольный leave уже закрыт
// восьмичасовым окном, поэтому сам запрос времени не проверяет.
type SubstitutionService struct {
	tx         TxRunner
	matchRepo  repositories.MatchRepository
	rosterRepo repositories.RosterRepository
	ledger     AccountLedger
	cache      cache.Invalidator
	hub        *live.Hub
	now        func() time.Time
}

func NewSubstitutionService(
	tx TxRunner,
	matchRepo repositories.MatchRepository,
	rosterRepo repositories.RosterRepository,
	ledger AccountLedger,
	invalidator cache.Invalidator,
	hub *live.Hub,
) *SubstitutionService {
	return &SubstitutionService{
		tx:         tx,
		matchRepo:  matchRepo,
		rosterRepo: rosterRepo,
		ledger:     ledger,
		cache:      invalidator,
		hub:        hub,
		now:        time.Now,
	}
}

type ReplaceResult struct {
	Entry          *models.RosterEntry
	PlacesOccupied int
	UpdatedBalance *decimal.Decimal
}

func (s *SubstitutionService) invalidate(matchID int) {
	if s.cache != nil {
		s.cache.InvalidateTag(matchTag(matchID))
	}
	if s.hub != nil {
		s.hub.BroadcastToRoom(matchTag(matchID), live.Message{
			Type:    live.EventRosterUpdated,
			Payload: map[string]interface{}{"match_id": matchID},
		})
	}
}

// resolveOwnedEntry находит запись и проверяет право распоряжаться ею:
// владелец места (для временного игрока — тот, кто его добавил) или админ.
func (s *SubstitutionService) resolveOwnedEntry(ctx context.Context, exec repositories.SQLExecutor, actor ActorContext, matchID, entryID int) (*models.RosterEntry, error) {
	entry, err := s.rosterRepo.GetByID(ctx, exec, entryID)
	if err != nil {
		if errors.Is(err, repositories.ErrRosterEntryNotFound) {
			return nil, ErrPlayerNotInMatch
		}
		return nil, fmt.Errorf("failed to load roster entry %d: %w", entryID, err)
	}
	if entry.MatchID != matchID {
		return nil, ErrPlayerNotInMatch
	}
	if entry.UserID != actor.ID && !actor.IsGlobalAdmin {
		return nil, ErrForbiddenOperation
	}
	return entry, nil
}

// RequestSubstitute помечает место как ждущее замену.
func (s *SubstitutionService) RequestSubstitute(ctx context.Context, actor ActorContext, matchID, entryID int) error {
	err := s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		entry, err := s.resolveOwnedEntry(ctx, exec, actor, matchID, entryID)
		if err != nil {
			return err
		}
		if entry.SubstituteRequested {
			return nil // уже запрошено, повтор — no-op
		}
		return s.rosterRepo.UpdateSubstituteRequested(ctx, exec, entry.ID, true)
	})
	if err != nil {
		return err
	}
	s.invalidate(matchID)
	return nil
}

// CancelSubstituteRequest снимает запрос замены. Идемпотентен: повторный
// вызов на неактивном запросе — успешный no-op.
func (s *SubstitutionService) CancelSubstituteRequest(ctx context.Context, actor ActorContext, matchID, entryID int) error {
	err := s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		entry, err := s.resolveOwnedEntry(ctx, exec, actor, matchID, entryID)
		if err != nil {
			return err
		}
		if !entry.SubstituteRequested {
			return nil
		}
		return s.rosterRepo.UpdateSubstituteRequested(ctx, exec, entry.ID, false)
	})
	if err != nil {
		return err
	}
	s.invalidate(matchID)
	return nil
}

// ReplacePlayer сажает нового игрока на существующее место, не трогая
// places_occupied: место переписывается in-place, а не освобождается и
// занимается заново. Это разводит возврат уходящему и оплату входящего
// по независимым операциям и убирает гонку за освободившееся место.
func (s *SubstitutionService) ReplacePlayer(ctx context.Context, actor ActorContext, matchID, entryID int, withBalance bool) (*ReplaceResult, error) {
	result := &ReplaceResult{}

	err := s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.matchRepo.GetByIDForUpdate(ctx, exec, matchID)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return ErrMatchNotFound
			}
			return fmt.Errorf("failed to lock match %d: %w", matchID, err)
		}
		if !s.now().Before(match.Kickoff()) {
			return ErrMatchAlreadyStarted
		}

		entry, err := s.rosterRepo.GetByID(ctx, exec, entryID)
		if err != nil {
			if errors.Is(err, repositories.ErrRosterEntryNotFound) {
				return ErrPlayerNotInMatch
			}
			return fmt.Errorf("failed to load roster entry %d: %w", entryID, err)
		}
		if entry.MatchID != matchID {
			return ErrPlayerNotInMatch
		}

		existing, err := s.rosterRepo.FindRegularByUserAndMatch(ctx, exec, actor.ID, matchID)
		if err != nil && !errors.Is(err, repositories.ErrRosterEntryNotFound) {
			return fmt.Errorf("failed to check existing entry: %w", err)
		}
		if existing != nil {
			return ErrAlreadyJoined
		}

		// Уходящему, кто платил с баланса, возвращаем взнос той же
		// транзакцией — как при обычном выходе.
		if entry.HasEnteredWithBalance {
			if _, err := s.ledger.Credit(ctx, exec, entry.UserID, match.Price, matchRefundReason("Refund", match)); err != nil {
				return err
			}
		}

		if withBalance {
			balance, err := s.ledger.Debit(ctx, exec, actor.ID, match.Price, matchRefundReason("Match fee", match))
			if err != nil {
				return err
			}
			result.UpdatedBalance = &balance
		}

		if err := s.rosterRepo.Repurpose(ctx, exec, entry.ID, actor.ID, withBalance); err != nil {
			return err
		}

		entry.UserID = actor.ID
		entry.PlayerType = models.PlayerTypeRegular
		entry.TemporaryPlayerName = nil
		entry.TemporaryPlayerPosition = nil
		entry.PhoneNumber = nil
		entry.SubstituteRequested = false
		entry.HasEnteredWithBalance = withBalance
		entry.HasPaid = withBalance
		entry.HasDiscount = false
		entry.HasGratis = false
		entry.HasMatchAdmin = false
		entry.HasAddedFriend = false
		result.Entry = entry
		result.PlacesOccupied = match.PlacesOccupied
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(matchID)
	return result, nil
}

// SetClock подменяет источник времени в тестах.
func (s *SubstitutionService) SetClock(now func() time.Time) {
	s.now = now
}
