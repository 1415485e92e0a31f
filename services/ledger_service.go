package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/P1T0NN/cristian-website-sub000/models"
	"github.com/P1T0NN/cristian-website-sub000/repositories"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountLedger — минимальная денежная способность, которую требует
// логика составов: списать/зачислить баланс и записать долг. Каждая
// операция выполняется на переданном SQLExecutor, чтобы жить в одной
// транзакции с изменением состава.
type AccountLedger interface {
	Debit(ctx context.Context, exec repositories.SQLExecutor, userID int, amount decimal.Decimal, reason string) (decimal.Decimal, error)
	Credit(ctx context.Context, exec repositories.SQLExecutor, userID int, amount decimal.Decimal, reason string) (decimal.Decimal, error)
	AddDebt(ctx context.Context, exec repositories.SQLExecutor, userID int, amount decimal.Decimal, reason string) error
}

type LedgerService struct {
	userRepo   repositories.UserRepository
	ledgerRepo repositories.LedgerRepository
}

func NewLedgerService(userRepo repositories.UserRepository, ledgerRepo repositories.LedgerRepository) *LedgerService {
	return &LedgerService{userRepo: userRepo, ledgerRepo: ledgerRepo}
}

func (s *LedgerService) record(ctx context.Context, exec repositories.SQLExecutor, userID int, amount decimal.Decimal, kind models.LedgerKind, reason string) error {
	entry := &models.LedgerEntry{
		UserID:    userID,
		Amount:    amount,
		Kind:      kind,
		Reason:    reason,
		Reference: uuid.New(),
	}
	return s.ledgerRepo.Create(ctx, exec, entry)
}

func (s *LedgerService) Debit(ctx context.Context, exec repositories.SQLExecutor, userID int, amount decimal.Decimal, reason string) (decimal.Decimal, error) {
	balance, err := s.userRepo.DebitBalance(ctx, exec, userID, amount)
	if err != nil {
		if errors.Is(err, repositories.ErrUserInsufficientBalance) {
			return decimal.Zero, ErrInsufficientBalance
		}
		if errors.Is(err, repositories.ErrUserNotFound) {
			return decimal.Zero, ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to debit balance of user %d: %w", userID, err)
	}
	if err := s.record(ctx, exec, userID, amount, models.LedgerKindCharge, reason); err != nil {
		return decimal.Zero, fmt.Errorf("failed to record balance charge: %w", err)
	}
	return balance, nil
}

func (s *LedgerService) Credit(ctx context.Context, exec repositories.SQLExecutor, userID int, amount decimal.Decimal, reason string) (decimal.Decimal, error) {
	balance, err := s.userRepo.CreditBalance(ctx, exec, userID, amount)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return decimal.Zero, ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to credit balance of user %d: %w", userID, err)
	}
	if err := s.record(ctx, exec, userID, amount, models.LedgerKindRefund, reason); err != nil {
		return decimal.Zero, fmt.Errorf("failed to record balance refund: %w", err)
	}
	return balance, nil
}

func (s *LedgerService) AddDebt(ctx context.Context, exec repositories.SQLExecutor, userID int, amount decimal.Decimal, reason string) error {
	if _, err := s.userRepo.AddPlayerDebt(ctx, exec, userID, amount); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to add debt of user %d: %w", userID, err)
	}
	if err := s.record(ctx, exec, userID, amount, models.LedgerKindDebt, reason); err != nil {
		return fmt.Errorf("failed to record debt entry: %w", err)
	}
	return nil
}

// TopUp — админское пополнение баланса (деньги занесены наличными).
func (s *LedgerService) TopUp(ctx context.Context, exec repositories.SQLExecutor, userID int, amount decimal.Decimal, reason string) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	balance, err := s.userRepo.CreditBalance(ctx, exec, userID, amount)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return decimal.Zero, ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to top up balance of user %d: %w", userID, err)
	}
	if err := s.record(ctx, exec, userID, amount, models.LedgerKindTopUp, reason); err != nil {
		return decimal.Zero, fmt.Errorf("failed to record top-up: %w", err)
	}
	return balance, nil
}

// SettleDebt уменьшает долг игрока (floor 0) и пишет запись о погашении.
func (s *LedgerService) SettleDebt(ctx context.Context, exec repositories.SQLExecutor, userID int, amount decimal.Decimal, reason string) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	debt, err := s.userRepo.SettlePlayerDebt(ctx, exec, userID, amount)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return decimal.Zero, ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to settle debt of user %d: %w", userID, err)
	}
	if err := s.record(ctx, exec, userID, amount, models.LedgerKindSettlement, reason); err != nil {
		return decimal.Zero, fmt.Errorf("failed to record settlement: %w", err)
	}
	return debt, nil
}

func (s *LedgerService) History(ctx context.Context, userID, limit int) ([]*models.LedgerEntry, error) {
	return s.ledgerRepo.ListByUser(ctx, userID, limit)
}
