package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User — учётная запись игрока. Баланс и долги меняются только через
// операции леджера (services.AccountLedger).
type User struct {
	ID           int    `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	IsAdmin      bool   `json:"is_admin"`

	// Balance — предоплаченный кредит, которым можно платить за матчи.
	Balance decimal.Decimal `json:"balance"`
	// PlayerDebt — сколько игрок должен организатору (неоплаченные матчи).
	PlayerDebt decimal.Decimal `json:"player_debt"`
	// OrganizerDebt — сколько организатор должен игроку.
	OrganizerDebt decimal.Decimal `json:"organizer_debt"`

	AvatarKey *string   `json:"-"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
