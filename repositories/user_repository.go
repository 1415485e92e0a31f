package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/P1T0NN/cristian-website-sub000/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

var (
	ErrUserNotFound            = errors.New("user not found")
	ErrUserEmailConflict       = errors.New("email address is already in use")
	ErrUserInsufficientBalance = errors.New("user balance is insufficient")
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Search(ctx context.Context, query string, limit int) ([]*models.User, error)
	UpdateAvatarKey(ctx context.Context, userID int, avatarKey *string) error

	// Денежные операции выполняются одним условным UPDATE, чтобы проверка
	// и изменение были атомарными на уровне БД.
	DebitBalance(ctx context.Context, exec SQLExecutor, userID int, amount decimal.Decimal) (decimal.Decimal, error)
	CreditBalance(ctx context.Context, exec SQLExecutor, userID int, amount decimal.Decimal) (decimal.Decimal, error)
	AddPlayerDebt(ctx context.Context, exec SQLExecutor, userID int, amount decimal.Decimal) (decimal.Decimal, error)
	SettlePlayerDebt(ctx context.Context, exec SQLExecutor, userID int, amount decimal.Decimal) (decimal.Decimal, error)
}

type postgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

func (r *postgresUserRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const userColumns = `id, first_name, last_name, email, password_hash, is_admin, balance, player_debt, organizer_debt, avatar_key, created_at`

func scanUser(row interface{ Scan(dest ...interface{}) error }, u *models.User) error {
	return row.Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.IsAdmin,
		&u.Balance, &u.PlayerDebt, &u.OrganizerDebt, &u.AvatarKey, &u.CreatedAt,
	)
}

func (r *postgresUserRepository) Create(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (first_name, last_name, email, password_hash, is_admin)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, balance, player_debt, organizer_debt, created_at`

	err := r.db.QueryRowContext(ctx, query,
		u.FirstName, u.LastName, u.Email, u.PasswordHash, u.IsAdmin,
	).Scan(&u.ID, &u.Balance, &u.PlayerDebt, &u.OrganizerDebt, &u.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrUserEmailConflict
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *postgresUserRepository) findOne(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	u := &models.User{}
	row := r.db.QueryRowContext(ctx, query, args...)
	if err := scanUser(row, u); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return u, nil
}

func (r *postgresUserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.findOne(ctx, query, id)
}

func (r *postgresUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.findOne(ctx, query, email)
}

func (r *postgresUserRepository) Search(ctx context.Context, search string, limit int) ([]*models.User, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE first_name ILIKE '%' || $1 || '%'
		   OR last_name ILIKE '%' || $1 || '%'
		   OR email ILIKE '%' || $1 || '%'
		ORDER BY first_name, last_name
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, search, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		var u models.User
		if err := scanUser(rows, &u); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, &u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}
	return users, nil
}

func (r *postgresUserRepository) UpdateAvatarKey(ctx context.Context, userID int, avatarKey *string) error {
	query := `UPDATE users SET avatar_key = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, avatarKey, userID)
	if err != nil {
		return fmt.Errorf("failed to update user avatar key: %w", err)
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

// DebitBalance списывает amount с баланса. Если средств не хватает,
// строка не обновляется и возвращается ErrUserInsufficientBalance.
func (r *postgresUserRepository) DebitBalance(ctx context.Context, exec SQLExecutor, userID int, amount decimal.Decimal) (decimal.Decimal, error) {
	executor := r.getExecutor(exec)
	query := `
		UPDATE users SET balance = balance - $1
		WHERE id = $2 AND balance >= $1
		RETURNING balance`

	var balance decimal.Decimal
	err := executor.QueryRowContext(ctx, query, amount, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Либо пользователя нет, либо не хватает баланса.
			if _, getErr := r.GetByID(ctx, userID); getErr != nil {
				return decimal.Zero, getErr
			}
			return decimal.Zero, ErrUserInsufficientBalance
		}
		return decimal.Zero, fmt.Errorf("failed to debit user balance: %w", err)
	}
	return balance, nil
}

func (r *postgresUserRepository) CreditBalance(ctx context.Context, exec SQLExecutor, userID int, amount decimal.Decimal) (decimal.Decimal, error) {
	executor := r.getExecutor(exec)
	query := `UPDATE users SET balance = balance + $1 WHERE id = $2 RETURNING balance`

	var balance decimal.Decimal
	err := executor.QueryRowContext(ctx, query, amount, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to credit user balance: %w", err)
	}
	return balance, nil
}

func (r *postgresUserRepository) AddPlayerDebt(ctx context.Context, exec SQLExecutor, userID int, amount decimal.Decimal) (decimal.Decimal, error) {
	executor := r.getExecutor(exec)
	query := `UPDATE users SET player_debt = player_debt + $1 WHERE id = $2 RETURNING player_debt`

	var debt decimal.Decimal
	err := executor.QueryRowContext(ctx, query, amount, userID).Scan(&debt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to add player debt: %w", err)
	}
	return debt, nil
}

func (r *postgresUserRepository) SettlePlayerDebt(ctx context.Context, exec SQLExecutor, userID int, amount decimal.Decimal) (decimal.Decimal, error) {
	executor := r.getExecutor(exec)
	query := `
		UPDATE users SET player_debt = GREATEST(player_debt - $1, 0)
		WHERE id = $2
		RETURNING player_debt`

	var debt decimal.Decimal
	err := executor.QueryRowContext(ctx, query, amount, userID).Scan(&debt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to settle player debt: %w", err)
	}
	return debt, nil
}
