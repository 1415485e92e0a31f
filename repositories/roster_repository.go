package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/P1T0NN/cristian-website-sub000/models"
	"github.com/lib/pq"
)

var (
	ErrRosterEntryNotFound       = errors.New("roster entry not found")
	ErrRosterDuplicatePlayer     = errors.New("player already has an entry in this match")
	ErrRosterMatchInvalid        = errors.New("roster entry match conflict or invalid")
	ErrRosterUserInvalid         = errors.New("roster entry user conflict or invalid")
	ErrRosterPaymentFlagsInvalid = errors.New("roster entry payment flags violate gratis constraint")
)

type RosterRepository interface {
	Create(ctx context.Context, exec SQLExecutor, entry *models.RosterEntry) error
	CreateBatch(ctx context.Context, exec SQLExecutor, entries []*models.RosterEntry) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.RosterEntry, error)
	FindRegularByUserAndMatch(ctx context.Context, exec SQLExecutor, userID, matchID int) (*models.RosterEntry, error)
	FindTemporaryByOwnerAndMatch(ctx context.Context, exec SQLExecutor, ownerID, matchID int) (*models.RosterEntry, error)
	ListByMatch(ctx context.Context, matchID int) ([]*models.RosterEntry, error)
	ListBalanceEntrants(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.RosterEntry, error)
	// ListUnpaidRegulars — regular-игроки без оплаты, без gratis и без входа
	// с баланса: именно их неоплаченный взнос превращается в долг при finish.
	ListUnpaidRegulars(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.RosterEntry, error)
	CountByMatchAndTeam(ctx context.Context, exec SQLExecutor, matchID, team int) (int, error)
	UpdateTeamNumber(ctx context.Context, exec SQLExecutor, id, team int) error
	UpdatePaymentFlags(ctx context.Context, exec SQLExecutor, id int, paid, discount, gratis bool) error
	UpdateSubstituteRequested(ctx context.Context, exec SQLExecutor, id int, requested bool) error
	UpdateMatchAdmin(ctx context.Context, exec SQLExecutor, id int, isMatchAdmin bool) error
	UpdateHasAddedFriend(ctx context.Context, exec SQLExecutor, id int, hasAddedFriend bool) error
	// Repurpose переписывает занятое место на нового regular-игрока,
	// не создавая новой строки (замена без смены places_occupied).
	Repurpose(ctx context.Context, exec SQLExecutor, id, newUserID int, withBalance bool) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresRosterRepository struct {
	db *sql.DB
}

func NewPostgresRosterRepository(db *sql.DB) RosterRepository {
	return &postgresRosterRepository{db: db}
}

func (r *postgresRosterRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const rosterColumns = `id, match_id, team_number, player_type, user_id,
	temporary_player_name, temporary_player_position, phone_number,
	has_paid, has_discount, has_gratis, has_match_admin, has_added_friend,
	substitute_requested, has_entered_with_balance, created_at`

func scanRosterEntry(row interface{ Scan(dest ...interface{}) error }, e *models.RosterEntry) error {
	return row.Scan(
		&e.ID, &e.MatchID, &e.TeamNumber, &e.PlayerType, &e.UserID,
		&e.TemporaryPlayerName, &e.TemporaryPlayerPosition, &e.PhoneNumber,
		&e.HasPaid, &e.HasDiscount, &e.HasGratis, &e.HasMatchAdmin, &e.HasAddedFriend,
		&e.SubstituteRequested, &e.HasEnteredWithBalance, &e.CreatedAt,
	)
}

func mapRosterError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return ErrRosterDuplicatePlayer
		case "23503": // foreign_key_violation
			if pqErr.Constraint == "roster_entries_match_id_fkey" {
				return ErrRosterMatchInvalid
			}
			return ErrRosterUserInvalid
		case "23514": // check_violation
			if pqErr.Constraint == "chk_gratis_implies_paid" {
				return ErrRosterPaymentFlagsInvalid
			}
		}
	}
	return err
}

func (r *postgresRosterRepository) Create(ctx context.Context, exec SQLExecutor, e *models.RosterEntry) error {
	query := `
		INSERT INTO roster_entries (
			match_id, team_number, player_type, user_id,
			temporary_player_name, temporary_player_position, phone_number,
			has_paid, has_discount, has_gratis, has_entered_with_balance
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		e.MatchID, e.TeamNumber, e.PlayerType, e.UserID,
		e.TemporaryPlayerName, e.TemporaryPlayerPosition, e.PhoneNumber,
		e.HasPaid, e.HasDiscount, e.HasGratis, e.HasEnteredWithBalance,
	).Scan(&e.ID, &e.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create roster entry: %w", mapRosterError(err))
	}
	return nil
}

func (r *postgresRosterRepository) CreateBatch(ctx context.Context, exec SQLExecutor, entries []*models.RosterEntry) error {
	for _, e := range entries {
		if err := r.Create(ctx, exec, e); err != nil {
			// Вызывающий сервис держит транзакцию: частичная вставка
			// откатывается целиком.
			return err
		}
	}
	return nil
}

func (r *postgresRosterRepository) findOne(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (*models.RosterEntry, error) {
	e := &models.RosterEntry{}
	row := r.getExecutor(exec).QueryRowContext(ctx, query, args...)
	if err := scanRosterEntry(row, e); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRosterEntryNotFound
		}
		return nil, fmt.Errorf("failed to find roster entry: %w", err)
	}
	return e, nil
}

func (r *postgresRosterRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.RosterEntry, error) {
	query := `SELECT ` + rosterColumns + ` FROM roster_entries WHERE id = $1`
	return r.findOne(ctx, exec, query, id)
}

func (r *postgresRosterRepository) FindRegularByUserAndMatch(ctx context.Context, exec SQLExecutor, userID, matchID int) (*models.RosterEntry, error) {
	query := `SELECT ` + rosterColumns + ` FROM roster_entries
		WHERE user_id = $1 AND match_id = $2 AND player_type = $3`
	return r.findOne(ctx, exec, query, userID, matchID, models.PlayerTypeRegular)
}

func (r *postgresRosterRepository) FindTemporaryByOwnerAndMatch(ctx context.Context, exec SQLExecutor, ownerID, matchID int) (*models.RosterEntry, error) {
	query := `SELECT ` + rosterColumns + ` FROM roster_entries
		WHERE user_id = $1 AND match_id = $2 AND player_type = $3
		ORDER BY created_at LIMIT 1`
	return r.findOne(ctx, exec, query, ownerID, matchID, models.PlayerTypeTemporary)
}

func (r *postgresRosterRepository) ListByMatch(ctx context.Context, matchID int) ([]*models.RosterEntry, error) {
	query := `
		SELECT e.id, e.match_id, e.team_number, e.player_type, e.user_id,
			e.temporary_player_name, e.temporary_player_position, e.phone_number,
			e.has_paid, e.has_discount, e.has_gratis, e.has_match_admin, e.has_added_friend,
			e.substitute_requested, e.has_entered_with_balance, e.created_at,
			COALESCE(u.first_name, ''), COALESCE(u.last_name, ''), u.avatar_key
		FROM roster_entries e
		LEFT JOIN users u ON e.user_id = u.id
		WHERE e.match_id = $1
		ORDER BY e.team_number, e.created_at`

	rows, err := r.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roster entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.RosterEntry, 0)
	for rows.Next() {
		var e models.RosterEntry
		var u models.User
		err := rows.Scan(
			&e.ID, &e.MatchID, &e.TeamNumber, &e.PlayerType, &e.UserID,
			&e.TemporaryPlayerName, &e.TemporaryPlayerPosition, &e.PhoneNumber,
			&e.HasPaid, &e.HasDiscount, &e.HasGratis, &e.HasMatchAdmin, &e.HasAddedFriend,
			&e.SubstituteRequested, &e.HasEnteredWithBalance, &e.CreatedAt,
			&u.FirstName, &u.LastName, &u.AvatarKey,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan roster entry row: %w", err)
		}
		if e.PlayerType == models.PlayerTypeRegular {
			u.ID = e.UserID
			e.User = &u
		}
		entries = append(entries, &e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating roster entry rows: %w", err)
	}
	return entries, nil
}

func (r *postgresRosterRepository) listWhere(ctx context.Context, exec SQLExecutor, condition string, args ...interface{}) ([]*models.RosterEntry, error) {
	query := `SELECT ` + rosterColumns + ` FROM roster_entries WHERE ` + condition + ` ORDER BY created_at`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list roster entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.RosterEntry, 0)
	for rows.Next() {
		var e models.RosterEntry
		if err := scanRosterEntry(rows, &e); err != nil {
			return nil, fmt.Errorf("failed to scan roster entry row: %w", err)
		}
		entries = append(entries, &e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating roster entry rows: %w", err)
	}
	return entries, nil
}

func (r *postgresRosterRepository) ListBalanceEntrants(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.RosterEntry, error) {
	return r.listWhere(ctx, exec, `match_id = $1 AND has_entered_with_balance = TRUE`, matchID)
}

func (r *postgresRosterRepository) ListUnpaidRegulars(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.RosterEntry, error) {
	return r.listWhere(ctx, exec,
		`match_id = $1 AND player_type = $2
		AND has_paid = FALSE AND has_gratis = FALSE AND has_entered_with_balance = FALSE`,
		matchID, models.PlayerTypeRegular,
	)
}

func (r *postgresRosterRepository) CountByMatchAndTeam(ctx context.Context, exec SQLExecutor, matchID, team int) (int, error) {
	var (
		query string
		args  []interface{}
	)
	if team == 0 {
		query = `SELECT COUNT(*) FROM roster_entries WHERE match_id = $1`
		args = []interface{}{matchID}
	} else {
		query = `SELECT COUNT(*) FROM roster_entries WHERE match_id = $1 AND team_number = $2`
		args = []interface{}{matchID, team}
	}

	var count int
	if err := r.getExecutor(exec).QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count roster entries: %w", err)
	}
	return count, nil
}

func (r *postgresRosterRepository) exec(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) error {
	result, err := r.getExecutor(exec).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update roster entry: %w", mapRosterError(err))
	}
	return checkAffectedRows(result, ErrRosterEntryNotFound)
}

func (r *postgresRosterRepository) UpdateTeamNumber(ctx context.Context, exec SQLExecutor, id, team int) error {
	return r.exec(ctx, exec, `UPDATE roster_entries SET team_number = $1 WHERE id = $2`, team, id)
}

func (r *postgresRosterRepository) UpdatePaymentFlags(ctx context.Context, exec SQLExecutor, id int, paid, discount, gratis bool) error {
	return r.exec(ctx, exec,
		`UPDATE roster_entries SET has_paid = $1, has_discount = $2, has_gratis = $3 WHERE id = $4`,
		paid, discount, gratis, id,
	)
}

func (r *postgresRosterRepository) UpdateSubstituteRequested(ctx context.Context, exec SQLExecutor, id int, requested bool) error {
	return r.exec(ctx, exec, `UPDATE roster_entries SET substitute_requested = $1 WHERE id = $2`, requested, id)
}

func (r *postgresRosterRepository) UpdateMatchAdmin(ctx context.Context, exec SQLExecutor, id int, isMatchAdmin bool) error {
	return r.exec(ctx, exec, `UPDATE roster_entries SET has_match_admin = $1 WHERE id = $2`, isMatchAdmin, id)
}

func (r *postgresRosterRepository) UpdateHasAddedFriend(ctx context.Context, exec SQLExecutor, id int, hasAddedFriend bool) error {
	return r.exec(ctx, exec, `UPDATE roster_entries SET has_added_friend = $1 WHERE id = $2`, hasAddedFriend, id)
}

// Repurpose стирает всё состояние прежнего владельца места: флаги оплаты,
// организатора и "привёл друга" не наследуются новым игроком.
func (r *postgresRosterRepository) Repurpose(ctx context.Context, exec SQLExecutor, id, newUserID int, withBalance bool) error {
	return r.exec(ctx, exec, `
		UPDATE roster_entries SET
			user_id = $1,
			player_type = $2,
			temporary_player_name = NULL,
			temporary_player_position = NULL,
			phone_number = NULL,
			substitute_requested = FALSE,
			has_entered_with_balance = $3,
			has_paid = $3,
			has_discount = FALSE,
			has_gratis = FALSE,
			has_match_admin = FALSE,
			has_added_friend = FALSE
		WHERE id = $4`,
		newUserID, models.PlayerTypeRegular, withBalance, id,
	)
}

func (r *postgresRosterRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	query := `DELETE FROM roster_entries WHERE id = $1`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete roster entry: %w", err)
	}
	return checkAffectedRows(result, ErrRosterEntryNotFound)
}
