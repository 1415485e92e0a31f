package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchType определяет формат матча и базовое число мест в команде,
// соответствует ENUM в БД.
type MatchType string

const (
	MatchTypeF7  MatchType = "F7"
	MatchTypeF8  MatchType = "F8"
	MatchTypeF11 MatchType = "F11"
)

// BaseSeats возвращает базовое число мест на команду (7/8/11).
// Для неизвестного формата возвращает 0.
func (t MatchType) BaseSeats() int {
	switch t {
	case MatchTypeF7:
		return 7
	case MatchTypeF8:
		return 8
	case MatchTypeF11:
		return 11
	default:
		return 0
	}
}

type MatchGender string

const (
	MatchGenderMale   MatchGender = "Male"
	MatchGenderFemale MatchGender = "Female"
	MatchGenderMixed  MatchGender = "Mixed"
)

type MatchStatus string

const (
	MatchStatusActive    MatchStatus = "active"
	MatchStatusPending   MatchStatus = "pending"
	MatchStatusFinished  MatchStatus = "finished"
	MatchStatusCancelled MatchStatus = "cancelled"
)

// Match представляет один запланированный матч.
type Match struct {
	ID          int             `json:"id"`
	Location    string          `json:"location"`
	LocationURL *string         `json:"location_url,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Team1Name   string          `json:"team1_name"`
	Team2Name   string          `json:"team2_name"`

	// Дата и время начала хранятся раздельно, как в исходной схеме:
	// starts_at_day — date, starts_at_hour — строка "HH:MM".
	StartsAtDay  time.Time `json:"starts_at_day"`
	StartsAtHour string    `json:"starts_at_hour"`

	MatchType     MatchType   `json:"match_type"`
	MatchGender   MatchGender `json:"match_gender"`
	MatchDuration int         `json:"match_duration"`
	MatchLevel    string      `json:"match_level"`

	// HasTeams: true — два фиксированных состава, false — общий пул (team 0).
	HasTeams        bool `json:"has_teams"`
	BlockSpotsTeam1 int  `json:"block_spots_team1"`
	BlockSpotsTeam2 int  `json:"block_spots_team2"`
	ExtraSpotsTeam1 int  `json:"extra_spots_team1"`
	ExtraSpotsTeam2 int  `json:"extra_spots_team2"`

	Status            MatchStatus `json:"status"`
	MatchInstructions *string     `json:"match_instructions,omitempty"`
	AddedBy           string      `json:"added_by"`
	PlacesOccupied    int         `json:"places_occupied"`
	CreatedAt         time.Time   `json:"created_at"`
}

const kickoffHourLayout = "15:04"

// Kickoff комбинирует день и час начала в один момент времени.
// Час валидируется при создании матча; при битом значении берётся полночь дня.
func (m *Match) Kickoff() time.Time {
	h, err := time.Parse(kickoffHourLayout, m.StartsAtHour)
	if err != nil {
		return m.StartsAtDay
	}
	return time.Date(
		m.StartsAtDay.Year(), m.StartsAtDay.Month(), m.StartsAtDay.Day(),
		h.Hour(), h.Minute(), 0, 0, m.StartsAtDay.Location(),
	)
}

// BlockedSpots возвращает число закрытых мест для команды (0 — общий пул).
func (m *Match) BlockedSpots(team int) int {
	switch team {
	case 1:
		return m.BlockSpotsTeam1
	case 2:
		return m.BlockSpotsTeam2
	default:
		return m.BlockSpotsTeam1 + m.BlockSpotsTeam2
	}
}

// ExtraSpots возвращает число добавленных мест для команды (0 — общий пул).
func (m *Match) ExtraSpots(team int) int {
	switch team {
	case 1:
		return m.ExtraSpotsTeam1
	case 2:
		return m.ExtraSpotsTeam2
	default:
		return m.ExtraSpotsTeam1 + m.ExtraSpotsTeam2
	}
}
