package services

import "errors"

// Общие ошибки бизнес-правил, маппятся в коды ответа в handlers.
var (
	// Авторизация
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrForbiddenOperation     = errors.New("operation not allowed for the current user")

	// Отсутствующие сущности
	ErrMatchNotFound    = errors.New("match not found")
	ErrPlayerNotInMatch = errors.New("player is not in this match")
	ErrUserNotFound     = errors.New("user not found")

	// Вместимость
	ErrTeamFull       = errors.New("team is full")
	ErrMatchFull      = errors.New("match is full")
	ErrNotEnoughSpots = errors.New("not enough spots for all players")

	// Инварианты состава
	ErrAlreadyJoined      = errors.New("player already joined this match")
	ErrAlreadyAddedFriend = errors.New("player already added a friend to this match")
	ErrTeamSwitchInPool   = errors.New("cannot switch teams in a single-pool match")
	ErrMatchAdminRegular  = errors.New("match admin flag applies to regular players only")

	// Временные окна
	ErrTooLateToLeave      = errors.New("too late to leave the match")
	ErrMatchAlreadyStarted = errors.New("match has already started")

	// Деньги
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrDebtUpdateFailed    = errors.New("failed to convert unpaid fees into debt")

	// Места
	ErrSpotsLimitExceeded = errors.New("extra spots must stay within the 0..3 range")
	ErrSpotsOccupied      = errors.New("cannot remove spots, team has players")

	// Валидация
	ErrValidationFailed    = errors.New("validation failed")
	ErrInvalidTeamNumber   = errors.New("invalid team number for this match")
	ErrInvalidMatchType    = errors.New("invalid match type")
	ErrInvalidKickoff      = errors.New("invalid match start day or hour")
	ErrInvalidPrice        = errors.New("invalid match price")
	ErrInvalidPhoneNumber  = errors.New("invalid phone number")
	ErrNoValidPlayers      = errors.New("no valid players provided")
	ErrInvalidPaymentFlags = errors.New("invalid payment action")
	ErrInvalidAmount       = errors.New("amount must be positive")

	// Аутентификация
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrAuthEmailTaken         = errors.New("email is already taken")
	ErrPasswordTooShort       = errors.New("password is too short")

	// Хранилище аватаров не сконфигурировано
	ErrAvatarStorageDisabled = errors.New("avatar storage is not configured")
)
