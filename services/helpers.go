package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/P1T0NN/cristian-website-sub000/models"
	"github.com/P1T0NN/cristian-website-sub000/repositories"
	"github.com/nyaruka/phonenumbers"
	"github.com/shopspring/decimal"
)

// TxRunner выполняет функцию в одной транзакции БД. Вынесен в интерфейс,
// чтобы сервисы можно было тестировать без реального *sql.DB.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error
}

type sqlTxRunner struct {
	db *sql.DB
}

func NewTxRunner(db *sql.DB) TxRunner {
	return &sqlTxRunner{db: db}
}

func (r *sqlTxRunner) RunInTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ParsePrice разбирает цену матча из десятичной строки ("10.00").
func ParsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidPrice, raw)
	}
	if price.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: price cannot be negative", ErrInvalidPrice)
	}
	return price, nil
}

// ParseKickoff валидирует день и час начала ("2006-01-02", "15:04").
func ParseKickoff(day, hour string) (time.Time, string, error) {
	d, err := time.Parse("2006-01-02", day)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: day %q", ErrInvalidKickoff, day)
	}
	h, err := time.Parse("15:04", hour)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: hour %q", ErrInvalidKickoff, hour)
	}
	return d, h.Format("15:04"), nil
}

// normalizePhone приводит номер к E.164. Пустой номер допустим —
// у временного игрока телефон опционален.
func normalizePhone(raw, defaultRegion string) (*string, error) {
	if raw == "" {
		return nil, nil
	}
	num, err := phonenumbers.Parse(raw, defaultRegion)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPhoneNumber, raw)
	}
	if !phonenumbers.IsValidNumber(num) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPhoneNumber, raw)
	}
	formatted := phonenumbers.Format(num, phonenumbers.E164)
	return &formatted, nil
}

// matchRefundReason подписывает возврат/долг датой и местом матча.
func matchRefundReason(prefix string, m *models.Match) string {
	return fmt.Sprintf("%s: %s %s @ %s", prefix, m.StartsAtDay.Format("2006-01-02"), m.StartsAtHour, m.Location)
}

func validTeamNumber(m *models.Match, team int) bool {
	if m.HasTeams {
		return team == 1 || team == 2
	}
	return team == 0
}
