package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/P1T0NN/cristian-website-sub000/repositories"
)

// ActorContext — авторизационное состояние запроса, разрешается один раз
// в обработчике и передаётся во все операции, вместо точечных запросов
// "а админ ли он" внутри каждой функции.
type ActorContext struct {
	ID            int
	Name          string
	IsGlobalAdmin bool
	IsMatchAdmin  bool
}

// CanManageMatch: глобальный админ или организатор этого матча.
func (a ActorContext) CanManageMatch() bool {
	return a.IsGlobalAdmin || a.IsMatchAdmin
}

type ActorService struct {
	userRepo   repositories.UserRepository
	rosterRepo repositories.RosterRepository
}

func NewActorService(userRepo repositories.UserRepository, rosterRepo repositories.RosterRepository) *ActorService {
	return &ActorService{userRepo: userRepo, rosterRepo: rosterRepo}
}

// Resolve строит ActorContext для пользователя. matchID == 0 —
// флаг матч-админа не разрешается (операция вне контекста матча).
func (s *ActorService) Resolve(ctx context.Context, userID, matchID int) (ActorContext, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ActorContext{}, ErrAuthenticationRequired
		}
		return ActorContext{}, fmt.Errorf("failed to resolve actor %d: %w", userID, err)
	}

	actor := ActorContext{
		ID:            user.ID,
		Name:          user.FullName(),
		IsGlobalAdmin: user.IsAdmin,
	}

	if matchID != 0 {
		entry, err := s.rosterRepo.FindRegularByUserAndMatch(ctx, nil, userID, matchID)
		if err != nil && !errors.Is(err, repositories.ErrRosterEntryNotFound) {
			return ActorContext{}, fmt.Errorf("failed to resolve match admin flag: %w", err)
		}
		if entry != nil {
			actor.IsMatchAdmin = entry.HasMatchAdmin
		}
	}

	return actor, nil
}
