package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/P1T0NN/cristian-website-sub000/models"
	"github.com/P1T0NN/cristian-website-sub000/repositories"
	"github.com/P1T0NN/cristian-website-sub000/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const defaultHistoryLimit = 50

var avatarExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// UserService — профили, поиск игроков и админские денежные операции
// (пополнение наличными, погашение долга).
type UserService struct {
	tx       TxRunner
	userRepo repositories.UserRepository
	ledger   *LedgerService
	uploader storage.FileUploader
	logger   *slog.Logger
}

func NewUserService(
	tx TxRunner,
	userRepo repositories.UserRepository,
	ledger *LedgerService,
	uploader storage.FileUploader,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		tx:       tx,
		userRepo: userRepo,
		ledger:   ledger,
		uploader: uploader,
		logger:   logger,
	}
}

func (s *UserService) fillAvatarURL(user *models.User) {
	if s.uploader == nil || user.AvatarKey == nil {
		return
	}
	if url := s.uploader.GetPublicURL(*user.AvatarKey); url != "" {
		user.AvatarURL = &url
	}
}

func (s *UserService) Profile(ctx context.Context, userID int) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	user.PasswordHash = ""
	s.fillAvatarURL(user)
	return user, nil
}

func (s *UserService) Search(ctx context.Context, query string, limit int) ([]*models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	users, err := s.userRepo.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		u.PasswordHash = ""
		s.fillAvatarURL(u)
	}
	return users, nil
}

// UploadAvatar кладёт файл в хранилище и запоминает ключ. Старый файл
// удаляется best-effort: профиль уже указывает на новый.
func (s *UserService) UploadAvatar(ctx context.Context, userID int, contentType string, reader io.Reader) (string, error) {
	if s.uploader == nil {
		return "", ErrAvatarStorageDisabled
	}
	ext, ok := avatarExtensions[contentType]
	if !ok {
		return "", fmt.Errorf("%w: unsupported avatar content type %q", ErrValidationFailed, contentType)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}

	key := fmt.Sprintf("avatars/%d/%s%s", userID, uuid.New().String(), ext)
	result, err := s.uploader.Upload(ctx, key, contentType, reader)
	if err != nil {
		return "", fmt.Errorf("failed to upload avatar: %w", err)
	}

	if err := s.userRepo.UpdateAvatarKey(ctx, userID, &result.Key); err != nil {
		return "", err
	}

	if user.AvatarKey != nil && *user.AvatarKey != result.Key {
		if err := s.uploader.Delete(ctx, *user.AvatarKey); err != nil {
			s.logger.Warn("failed to delete previous avatar",
				slog.Int("user_id", userID), slog.Any("error", err))
		}
	}
	return result.Location, nil
}

func (s *UserService) DeleteAvatar(ctx context.Context, userID int) error {
	if s.uploader == nil {
		return ErrAvatarStorageDisabled
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if user.AvatarKey == nil {
		return nil
	}
	if err := s.uploader.Delete(ctx, *user.AvatarKey); err != nil {
		return fmt.Errorf("failed to delete avatar: %w", err)
	}
	return s.userRepo.UpdateAvatarKey(ctx, userID, nil)
}

// TopUpBalance — админ заносит наличные на баланс игрока.
func (s *UserService) TopUpBalance(ctx context.Context, actor ActorContext, userID int, amount decimal.Decimal) (decimal.Decimal, error) {
	if !actor.IsGlobalAdmin {
		return decimal.Zero, ErrForbiddenOperation
	}
	var balance decimal.Decimal
	err := s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		b, err := s.ledger.TopUp(ctx, exec, userID, amount, fmt.Sprintf("Top-up by %s", actor.Name))
		if err != nil {
			return err
		}
		balance = b
		return nil
	})
	return balance, err
}

// SettlePlayerDebt — админ фиксирует оплату долга (floor 0 в репозитории).
func (s *UserService) SettlePlayerDebt(ctx context.Context, actor ActorContext, userID int, amount decimal.Decimal) (decimal.Decimal, error) {
	if !actor.IsGlobalAdmin {
		return decimal.Zero, ErrForbiddenOperation
	}
	var debt decimal.Decimal
	err := s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		d, err := s.ledger.SettleDebt(ctx, exec, userID, amount, fmt.Sprintf("Debt settled by %s", actor.Name))
		if err != nil {
			return err
		}
		debt = d
		return nil
	})
	return debt, err
}

// LedgerHistory — последние денежные записи игрока. Свою историю видит
// каждый, чужую — только админ.
func (s *UserService) LedgerHistory(ctx context.Context, actor ActorContext, userID, limit int) ([]*models.LedgerEntry, error) {
	if actor.ID != userID && !actor.IsGlobalAdmin {
		return nil, ErrForbiddenOperation
	}
	if limit <= 0 || limit > 200 {
		limit = defaultHistoryLimit
	}
	return s.ledger.History(ctx, userID, limit)
}
