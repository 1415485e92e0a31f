package services

import (
	"fmt"

	"github.com/P1T0NN/cristian-website-sub000/models"
)

// Seat Allocator: чистая арифметика вместимости команды/матча.
// Все функции детерминированы и не трогают БД.

const maxExtraSpots = 3

// Slot — дескриптор свободного места для отрисовки состава.
type Slot struct {
	Index   int  `json:"index"`
	Blocked bool `json:"blocked"`
}

// TeamCapacity возвращает итоговое число мест команды:
// base − blocked + extra, не меньше нуля.
func TeamCapacity(matchType models.MatchType, blocked, extra int) int {
	total := matchType.BaseSeats() - blocked + extra
	if total < 0 {
		return 0
	}
	return total
}

// CapacityForTeam считает вместимость для конкретной команды матча.
// team 0 — общий пул: обе половины base плюс суммарные правки мест.
func CapacityForTeam(m *models.Match, team int) int {
	if !m.HasTeams || team == 0 {
		total := 2*m.MatchType.BaseSeats() - m.BlockedSpots(0) + m.ExtraSpots(0)
		if total < 0 {
			return 0
		}
		return total
	}
	return TeamCapacity(m.MatchType, m.BlockedSpots(team), m.ExtraSpots(team))
}

// IsFull: мест нет, когда занято не меньше, чем вмещается.
func IsFull(occupied, totalSeats int) bool {
	return occupied >= totalSeats
}

// AvailableSlots строит конечный список свободных мест размером
// totalSeats − occupied, заблокированные первыми. Чистая функция —
// перегенерируется на каждый рендер.
func AvailableSlots(occupied, blocked, totalSeats int) []Slot {
	free := totalSeats - occupied
	if free <= 0 {
		return []Slot{}
	}
	slots := make([]Slot, free)
	for i := range slots {
		slots[i] = Slot{Index: occupied + i + 1, Blocked: i < blocked}
	}
	return slots
}

// ValidateExtraSpotsChange проверяет изменение extra-мест на delta.
// Выход из диапазона [0,3] — ошибка, не молчаливый clamp: молчаливое
// обрезание маскирует баги вызывающего кода. Возвращает новое значение.
func ValidateExtraSpotsChange(m *models.Match, team, delta, occupied int) (int, error) {
	current := m.ExtraSpots(team)
	next := current + delta
	if next < 0 || next > maxExtraSpots {
		return 0, fmt.Errorf("%w: %d", ErrSpotsLimitExceeded, next)
	}
	if delta < 0 {
		newTotal := TeamCapacity(m.MatchType, m.BlockedSpots(team), next)
		if newTotal < occupied {
			return 0, ErrSpotsOccupied
		}
	}
	return next, nil
}

// ValidateBlockedSpotsChange проверяет установку blocked-мест в value.
func ValidateBlockedSpotsChange(m *models.Match, team, value, occupied int) error {
	if value < 0 {
		return fmt.Errorf("%w: blocked spots cannot be negative", ErrValidationFailed)
	}
	newTotal := TeamCapacity(m.MatchType, value, m.ExtraSpots(team))
	if newTotal < occupied {
		return ErrSpotsOccupied
	}
	return nil
}
