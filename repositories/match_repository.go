package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/P1T0NN/cristian-website-sub000/models"
)

var (
	ErrMatchNotFound    = errors.New("match not found")
	ErrMatchInvalidTeam = errors.New("invalid team number for match update")
)

type ListMatchesFilter struct {
	Status  *models.MatchStatus
	FromDay *time.Time
	ToDay   *time.Time
	Limit   int
	Offset  int
}

type MatchRepository interface {
	Create(ctx context.Context, match *models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	// GetByIDForUpdate блокирует строку матча (SELECT ... FOR UPDATE):
	// проверка вместимости и запись места должны видеть один снимок.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	List(ctx context.Context, filter ListMatchesFilter) ([]models.Match, error)
	Update(ctx context.Context, match *models.Match) error
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.MatchStatus) error
	UpdateAddedBy(ctx context.Context, exec SQLExecutor, id int, addedBy string) error
	UpdateExtraSpots(ctx context.Context, exec SQLExecutor, id, team, value int) error
	UpdateBlockedSpots(ctx context.Context, exec SQLExecutor, id, team, value int) error
	// AdjustPlacesOccupied атомарно меняет счётчик занятых мест (floor 0)
	// и возвращает новое значение.
	AdjustPlacesOccupied(ctx context.Context, exec SQLExecutor, id, delta int) (int, error)
	Delete(ctx context.Context, exec SQLExecutor, id int) error
	ListStartedActive(ctx context.Context, now time.Time) ([]*models.Match, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `id, location, location_url, price, team1_name, team2_name,
	starts_at_day, starts_at_hour, match_type, match_gender, match_duration, match_level,
	has_teams, block_spots_team1, block_spots_team2, extra_spots_team1, extra_spots_team2,
	status, match_instructions, added_by, places_occupied, created_at`

func scanMatch(row interface{ Scan(dest ...interface{}) error }, m *models.Match) error {
	return row.Scan(
		&m.ID, &m.Location, &m.LocationURL, &m.Price, &m.Team1Name, &m.Team2Name,
		&m.StartsAtDay, &m.StartsAtHour, &m.MatchType, &m.MatchGender, &m.MatchDuration, &m.MatchLevel,
		&m.HasTeams, &m.BlockSpotsTeam1, &m.BlockSpotsTeam2, &m.ExtraSpotsTeam1, &m.ExtraSpotsTeam2,
		&m.Status, &m.MatchInstructions, &m.AddedBy, &m.PlacesOccupied, &m.CreatedAt,
	)
}

func (r *postgresMatchRepository) Create(ctx context.Context, m *models.Match) error {
	query := `
		INSERT INTO matches (
			location, location_url, price, team1_name, team2_name,
			starts_at_day, starts_at_hour, match_type, match_gender, match_duration, match_level,
			has_teams, block_spots_team1, block_spots_team2, extra_spots_team1, extra_spots_team2,
			status, match_instructions, added_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id, places_occupied, created_at`

	err := r.db.QueryRowContext(ctx, query,
		m.Location, m.LocationURL, m.Price, m.Team1Name, m.Team2Name,
		m.StartsAtDay, m.StartsAtHour, m.MatchType, m.MatchGender, m.MatchDuration, m.MatchLevel,
		m.HasTeams, m.BlockSpotsTeam1, m.BlockSpotsTeam2, m.ExtraSpotsTeam1, m.ExtraSpotsTeam2,
		m.Status, m.MatchInstructions, m.AddedBy,
	).Scan(&m.ID, &m.PlacesOccupied, &m.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create match: %w", err)
	}
	return nil
}

func (r *postgresMatchRepository) findOne(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (*models.Match, error) {
	m := &models.Match{}
	row := r.getExecutor(exec).QueryRowContext(ctx, query, args...)
	if err := scanMatch(row, m); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to find match: %w", err)
	}
	return m, nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	return r.findOne(ctx, nil, query, id)
}

func (r *postgresMatchRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1 FOR UPDATE`
	return r.findOne(ctx, exec, query, id)
}

func (r *postgresMatchRepository) List(ctx context.Context, filter ListMatchesFilter) ([]models.Match, error) {
	var qb strings.Builder
	qb.WriteString(`SELECT ` + matchColumns + ` FROM matches WHERE 1=1`)

	args := make([]interface{}, 0, 4)
	if filter.Status != nil {
		args = append(args, *filter.Status)
		qb.WriteString(fmt.Sprintf(" AND status = $%d", len(args)))
	}
	if filter.FromDay != nil {
		args = append(args, *filter.FromDay)
		qb.WriteString(fmt.Sprintf(" AND starts_at_day >= $%d", len(args)))
	}
	if filter.ToDay != nil {
		args = append(args, *filter.ToDay)
		qb.WriteString(fmt.Sprintf(" AND starts_at_day <= $%d", len(args)))
	}
	qb.WriteString(" ORDER BY starts_at_day, starts_at_hour")

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	qb.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		qb.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)))
	}

	rows, err := r.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	matches := make([]models.Match, 0)
	for rows.Next() {
		var m models.Match
		if err := scanMatch(rows, &m); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating match rows: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) Update(ctx context.Context, m *models.Match) error {
	query := `
		UPDATE matches SET
			location = $1, location_url = $2, price = $3, team1_name = $4, team2_name = $5,
			starts_at_day = $6, starts_at_hour = $7, match_type = $8, match_gender = $9,
			match_duration = $10, match_level = $11, has_teams = $12, match_instructions = $13
		WHERE id = $14`

	result, err := r.db.ExecContext(ctx, query,
		m.Location, m.LocationURL, m.Price, m.Team1Name, m.Team2Name,
		m.StartsAtDay, m.StartsAtHour, m.MatchType, m.MatchGender,
		m.MatchDuration, m.MatchLevel, m.HasTeams, m.MatchInstructions,
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update match: %w", err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.MatchStatus) error {
	query := `UPDATE matches SET status = $1 WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update match status: %w", err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateAddedBy(ctx context.Context, exec SQLExecutor, id int, addedBy string) error {
	query := `UPDATE matches SET added_by = $1 WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, addedBy, id)
	if err != nil {
		return fmt.Errorf("failed to update match added_by: %w", err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateExtraSpots(ctx context.Context, exec SQLExecutor, id, team, value int) error {
	column, err := teamColumn("extra_spots", team)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE matches SET %s = $1 WHERE id = $2`, column)
	result, err := r.getExecutor(exec).ExecContext(ctx, query, value, id)
	if err != nil {
		return fmt.Errorf("failed to update match extra spots: %w", err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateBlockedSpots(ctx context.Context, exec SQLExecutor, id, team, value int) error {
	column, err := teamColumn("block_spots", team)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE matches SET %s = $1 WHERE id = $2`, column)
	result, err := r.getExecutor(exec).ExecContext(ctx, query, value, id)
	if err != nil {
		return fmt.Errorf("failed to update match blocked spots: %w", err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) AdjustPlacesOccupied(ctx context.Context, exec SQLExecutor, id, delta int) (int, error) {
	query := `
		UPDATE matches SET places_occupied = GREATEST(places_occupied + $1, 0)
		WHERE id = $2
		RETURNING places_occupied`

	var occupied int
	err := r.getExecutor(exec).QueryRowContext(ctx, query, delta, id).Scan(&occupied)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrMatchNotFound
		}
		return 0, fmt.Errorf("failed to adjust places occupied: %w", err)
	}
	return occupied, nil
}

func (r *postgresMatchRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	query := `DELETE FROM matches WHERE id = $1`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete match: %w", err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

// ListStartedActive возвращает активные матчи, чей kickoff уже прошёл.
// Сравнение по дню и строке часа: день меньше сегодняшнего, либо сегодняшний
// с часом не позже текущего.
func (r *postgresMatchRepository) ListStartedActive(ctx context.Context, now time.Time) ([]*models.Match, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE status = $1
		  AND (starts_at_day < $2 OR (starts_at_day = $2 AND starts_at_hour <= $3))`

	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	hour := now.Format("15:04")

	rows, err := r.db.QueryContext(ctx, query, models.MatchStatusActive, day, hour)
	if err != nil {
		return nil, fmt.Errorf("failed to list started matches: %w", err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		var m models.Match
		if err := scanMatch(rows, &m); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		matches = append(matches, &m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating match rows: %w", err)
	}
	return matches, nil
}

func teamColumn(prefix string, team int) (string, error) {
	switch team {
	case 1:
		return prefix + "_team1", nil
	case 2:
		return prefix + "_team2", nil
	default:
		return "", ErrMatchInvalidTeam
	}
}
