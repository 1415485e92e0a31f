package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerKind — тип записи в леджере, соответствует ENUM в БД.
type LedgerKind string

const (
	LedgerKindDebt       LedgerKind = "debt"       // неоплаченный матч переведён в долг
	LedgerKindRefund     LedgerKind = "refund"     // возврат на баланс (выход/удаление матча)
	LedgerKindCharge     LedgerKind = "charge"     // списание с баланса при входе в матч
	LedgerKindTopUp      LedgerKind = "topup"      // пополнение баланса админом
	LedgerKindSettlement LedgerKind = "settlement" // погашение долга
)

// LedgerEntry — одна денежная запись по игроку. Сами суммы на счёте
// меняются атомарно той же транзакцией, что создаёт запись.
type LedgerEntry struct {
	ID        int             `json:"id"`
	UserID    int             `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Kind      LedgerKind      `json:"kind"`
	Reason    string          `json:"reason"`
	Reference uuid.UUID       `json:"reference"`
	CreatedAt time.Time       `json:"created_at"`
}
