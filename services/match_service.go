package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/P1T0NN/cristian-website-sub000/cache"
	"github.com/P1T0NN/cristian-website-sub000/live"
	"github.com/P1T0NN/cristian-website-sub000/models"
	"github.com/P1T0NN/cristian-website-sub000/repositories"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
)

var ErrMatchAlreadyFinished = errors.New("match is already finished")

const matchesListTag = "matches"

var validate = validator.New()

// MatchInput — поля создания/редактирования матча.
type MatchInput struct {
	Location          string `json:"location" validate:"required"`
	LocationURL       string `json:"location_url" validate:"omitempty,url"`
	Price             string `json:"price" validate:"required"`
	Team1Name         string `json:"team1_name"`
	Team2Name         string `json:"team2_name"`
	StartsAtDay       string `json:"starts_at_day" validate:"required"`
	StartsAtHour      string `json:"starts_at_hour" validate:"required"`
	MatchType         string `json:"match_type" validate:"required,oneof=F7 F8 F11"`
	MatchGender       string `json:"match_gender" validate:"required,oneof=Male Female Mixed"`
	MatchDuration     int    `json:"match_duration" validate:"gt=0"`
	MatchLevel        string `json:"match_level"`
	HasTeams          bool   `json:"has_teams"`
	MatchInstructions string `json:"match_instructions"`
}

// TeamRoster — срез одной команды для отображения: игроки плюс
// свободные места от Seat Allocator-а.
type TeamRoster struct {
	Number    int                   `json:"number"`
	Name      string                `json:"name"`
	Capacity  int                   `json:"capacity"`
	Occupied  int                   `json:"occupied"`
	Players   []*models.RosterEntry `json:"players"`
	OpenSlots []Slot                `json:"open_slots"`
}

type MatchDetails struct {
	Match *models.Match `json:"match"`
	Teams []TeamRoster  `json:"teams"`
}

// MatchService управляет жизненным циклом матча: создание, правка,
// завершение с переводом неоплаченных взносов в долг, удаление с
// возвратами.
type MatchService struct {
	tx         TxRunner
	matchRepo  repositories.MatchRepository
	rosterRepo repositories.RosterRepository
	ledger     AccountLedger
	cache      cache.Invalidator
	hub        *live.Hub
	logger     *slog.Logger
}

func NewMatchService(
	tx TxRunner,
	matchRepo repositories.MatchRepository,
	rosterRepo repositories.RosterRepository,
	ledger AccountLedger,
	invalidator cache.Invalidator,
	hub *live.Hub,
	logger *slog.Logger,
) *MatchService {
	return &MatchService{
		tx:         tx,
		matchRepo:  matchRepo,
		rosterRepo: rosterRepo,
		ledger:     ledger,
		cache:      invalidator,
		hub:        hub,
		logger:     logger,
	}
}

func (s *MatchService) invalidateLists() {
	if s.cache != nil {
		s.cache.InvalidateTag(matchesListTag)
	}
}

func (s *MatchService) applyInput(m *models.Match, input MatchInput) error {
	if err := validate.Struct(input); err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	day, hour, err := ParseKickoff(input.StartsAtDay, input.StartsAtHour)
	if err != nil {
		return err
	}
	price, err := ParsePrice(input.Price)
	if err != nil {
		return err
	}

	m.Location = input.Location
	if input.LocationURL != "" {
		m.LocationURL = &input.LocationURL
	} else {
		m.LocationURL = nil
	}
	m.Price = price
	m.Team1Name = input.Team1Name
	m.Team2Name = input.Team2Name
	m.StartsAtDay = day
	m.StartsAtHour = hour
	m.MatchType = models.MatchType(input.MatchType)
	m.MatchGender = models.MatchGender(input.MatchGender)
	m.MatchDuration = input.MatchDuration
	m.MatchLevel = input.MatchLevel
	m.HasTeams = input.HasTeams
	if input.MatchInstructions != "" {
		m.MatchInstructions = &input.MatchInstructions
	} else {
		m.MatchInstructions = nil
	}
	return nil
}

func (s *MatchService) CreateMatch(ctx context.Context, actor ActorContext, input MatchInput) (*models.Match, error) {
	if !actor.IsGlobalAdmin {
		return nil, ErrForbiddenOperation
	}

	match := &models.Match{
		Status:  models.MatchStatusActive,
		AddedBy: actor.Name,
	}
	if err := s.applyInput(match, input); err != nil {
		return nil, err
	}
	if err := s.matchRepo.Create(ctx, match); err != nil {
		return nil, err
	}

	s.invalidateLists()
	return match, nil
}

func (s *MatchService) EditMatch(ctx context.Context, actor ActorContext, matchID int, input MatchInput) (*models.Match, error) {
	if !actor.IsGlobalAdmin {
		return nil, ErrForbiddenOperation
	}

	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	if err := s.applyInput(match, input); err != nil {
		return nil, err
	}
	if err := s.matchRepo.Update(ctx, match); err != nil {
		return nil, err
	}

	s.invalidateLists()
	if s.cache != nil {
		s.cache.InvalidateTag(matchTag(matchID))
	}
	if s.hub != nil {
		s.hub.BroadcastToRoom(matchTag(matchID), live.Message{
			Type:    live.EventMatchUpdated,
			Payload: map[string]interface{}{"match_id": matchID},
		})
	}
	return match, nil
}

func (s *MatchService) ListMatches(ctx context.Context, filter repositories.ListMatchesFilter) ([]models.Match, error) {
	return s.matchRepo.List(ctx, filter)
}

// GetMatchDetails забирает матч и состав параллельно и раскладывает
// состав по командам со свободными местами.
func (s *MatchService) GetMatchDetails(ctx context.Context, matchID int) (*MatchDetails, error) {
	var (
		match   *models.Match
		entries []*models.RosterEntry
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := s.matchRepo.GetByID(gCtx, matchID)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return ErrMatchNotFound
			}
			return err
		}
		match = m
		return nil
	})
	g.Go(func() error {
		list, err := s.rosterRepo.ListByMatch(gCtx, matchID)
		if err != nil {
			return err
		}
		entries = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byTeam := make(map[int][]*models.RosterEntry)
	for _, e := range entries {
		byTeam[e.TeamNumber] = append(byTeam[e.TeamNumber], e)
	}

	teamNumbers := []int{0}
	teamNames := map[int]string{0: ""}
	if match.HasTeams {
		teamNumbers = []int{1, 2}
		teamNames = map[int]string{1: match.Team1Name, 2: match.Team2Name}
	}

	details := &MatchDetails{Match: match}
	for _, n := range teamNumbers {
		players := byTeam[n]
		sort.SliceStable(players, func(i, j int) bool {
			return players[i].CreatedAt.Before(players[j].CreatedAt)
		})
		capacity := CapacityForTeam(match, n)
		details.Teams = append(details.Teams, TeamRoster{
			Number:    n,
			Name:      teamNames[n],
			Capacity:  capacity,
			Occupied:  len(players),
			Players:   players,
			OpenSlots: AvailableSlots(len(players), match.BlockedSpots(n), capacity),
		})
	}
	return details, nil
}

// FinishMatch закрывает матч: взнос каждого неоплатившего regular-игрока
// (без gratis и без входа с баланса) становится долгом одной транзакцией.
// Любой сбой по любому игроку откатывает всё — частично применённого
// finish не бывает.
func (s *MatchService) FinishMatch(ctx context.Context, actor ActorContext, matchID int) error {
	if !actor.CanManageMatch() {
		return ErrForbiddenOperation
	}

	err := s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.matchRepo.GetByIDForUpdate(ctx, exec, matchID)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return ErrMatchNotFound
			}
			return err
		}
		if match.Status == models.MatchStatusFinished {
			return ErrMatchAlreadyFinished
		}

		unpaid, err := s.rosterRepo.ListUnpaidRegulars(ctx, exec, matchID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDebtUpdateFailed, err)
		}
		reason := matchRefundReason("Unpaid match fee", match)
		for _, entry := range unpaid {
			if err := s.ledger.AddDebt(ctx, exec, entry.UserID, match.Price, reason); err != nil {
				return fmt.Errorf("%w: user %d: %v", ErrDebtUpdateFailed, entry.UserID, err)
			}
		}

		return s.matchRepo.UpdateStatus(ctx, exec, matchID, models.MatchStatusFinished)
	})
	if err != nil {
		return err
	}

	s.invalidateLists()
	if s.cache != nil {
		s.cache.InvalidateTag(matchTag(matchID))
	}
	if s.hub != nil {
		s.hub.BroadcastToRoom(matchTag(matchID), live.Message{
			Type:    live.EventMatchUpdated,
			Payload: map[string]interface{}{"match_id": matchID, "status": models.MatchStatusFinished},
		})
	}
	return nil
}

// DeleteMatch возвращает деньги всем вошедшим с баланса и удаляет матч
// (каскадом — все места состава) в одной транзакции.
func (s *MatchService) DeleteMatch(ctx context.Context, actor ActorContext, matchID int) error {
	if !actor.CanManageMatch() {
		return ErrForbiddenOperation
	}

	err := s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.matchRepo.GetByIDForUpdate(ctx, exec, matchID)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return ErrMatchNotFound
			}
			return err
		}

		entrants, err := s.rosterRepo.ListBalanceEntrants(ctx, exec, matchID)
		if err != nil {
			return err
		}
		reason := matchRefundReason("Match cancelled", match)
		for _, entry := range entrants {
			if _, err := s.ledger.Credit(ctx, exec, entry.UserID, match.Price, reason); err != nil {
				return err
			}
		}

		return s.matchRepo.Delete(ctx, exec, matchID)
	})
	if err != nil {
		return err
	}

	s.invalidateLists()
	if s.cache != nil {
		s.cache.InvalidateTag(matchTag(matchID))
	}
	if s.hub != nil {
		s.hub.BroadcastToRoom(matchTag(matchID), live.Message{
			Type:    live.EventMatchDeleted,
			Payload: map[string]interface{}{"match_id": matchID},
		})
	}
	return nil
}

// AutoUpdateMatchStatuses переводит активные матчи с прошедшим kickoff в
// pending (ждут закрытия организатором). Вызывается планировщиком из main.
func (s *MatchService) AutoUpdateMatchStatuses(ctx context.Context) error {
	started, err := s.matchRepo.ListStartedActive(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to list started matches: %w", err)
	}
	for _, match := range started {
		if err := s.matchRepo.UpdateStatus(ctx, nil, match.ID, models.MatchStatusPending); err != nil {
			s.logger.Error("failed to auto-update match status",
				slog.Int("match_id", match.ID), slog.Any("error", err))
			continue
		}
		s.logger.Info("match moved to pending", slog.Int("match_id", match.ID))
	}
	if len(started) > 0 {
		s.invalidateLists()
	}
	return nil
}
