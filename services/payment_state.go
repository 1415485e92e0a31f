package services

import "fmt"

// Payment-Status State Machine: единственный источник правды для связки
// paid/discount/gratis. UI может дизейблить кнопки, но инвариант
// (gratis ⇒ paid ∧ ¬discount) обеспечивается здесь, на сервере.

type PaymentAction string

const (
	PaymentActionPaid     PaymentAction = "paid"
	PaymentActionDiscount PaymentAction = "discount"
	PaymentActionGratis   PaymentAction = "gratis"
)

type PaymentFlags struct {
	Paid     bool
	Discount bool
	Gratis   bool
}

// Apply применяет переключение флага и возвращает новое состояние.
// Без I/O: персистит вызывающий.
func (f PaymentFlags) Apply(action PaymentAction) (PaymentFlags, error) {
	next := f
	switch action {
	case PaymentActionPaid:
		next.Paid = !f.Paid
	case PaymentActionDiscount:
		next.Discount = !f.Discount
		if next.Discount {
			// Взаимоисключение с gratis держит отдельная ветка ниже:
			// скидку нельзя включить поверх gratis.
			if f.Gratis {
				return f, fmt.Errorf("%w: discount cannot be combined with gratis", ErrInvalidPaymentFlags)
			}
		}
	case PaymentActionGratis:
		next.Gratis = !f.Gratis
		if next.Gratis {
			next.Paid = true
			next.Discount = false
		}
		// Выключение gratis намеренно не трогает paid/discount:
		// задним числом "разоплатить" нельзя.
	default:
		return f, fmt.Errorf("%w: %q", ErrInvalidPaymentFlags, action)
	}
	return next, nil
}

// Valid проверяет инвариант состояния.
func (f PaymentFlags) Valid() bool {
	if f.Gratis {
		return f.Paid && !f.Discount
	}
	return true
}
