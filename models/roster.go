package models

import "time"

// PlayerType различает игроков с учётной записью и временных гостей.
type PlayerType string

const (
	PlayerTypeRegular   PlayerType = "regular"
	PlayerTypeTemporary PlayerType = "temporary"
)

// RosterEntry — одно занятое место в составе матча.
// Для regular UserID — владелец учётной записи; для temporary UserID —
// игрок (или админ), который добавил гостя.
type RosterEntry struct {
	ID         int        `json:"id"`
	MatchID    int        `json:"match_id"`
	TeamNumber int        `json:"team_number"` // 0 — общий пул, 1/2 — команды
	PlayerType PlayerType `json:"player_type"`
	UserID     int        `json:"user_id"`

	TemporaryPlayerName     *string `json:"temporary_player_name,omitempty"`
	TemporaryPlayerPosition *string `json:"temporary_player_position,omitempty"`
	PhoneNumber             *string `json:"phone_number,omitempty"`

	HasPaid               bool `json:"has_paid"`
	HasDiscount           bool `json:"has_discount"`
	HasGratis             bool `json:"has_gratis"`
	HasMatchAdmin         bool `json:"has_match_admin"`
	HasAddedFriend        bool `json:"has_added_friend"`
	SubstituteRequested   bool `json:"substitute_requested"`
	HasEnteredWithBalance bool `json:"has_entered_with_balance"`

	CreatedAt time.Time `json:"created_at"`

	// Заполняется join-ом в репозитории, не мапится напрямую.
	User *User `json:"user,omitempty"`
}

func (e *RosterEntry) IsTemporary() bool {
	return e.PlayerType == PlayerTypeTemporary
}

// DisplayName возвращает имя для отображения в составе.
func (e *RosterEntry) DisplayName() string {
	if e.IsTemporary() {
		if e.TemporaryPlayerName != nil {
			return *e.TemporaryPlayerName
		}
		return ""
	}
	if e.User != nil {
		return e.User.FullName()
	}
	return ""
}
